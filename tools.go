//go:build tools

package activity

// Import packages used for go generate and other build steps so they are vendored and versioned
// with other dependencies.

import (
	_ "go.uber.org/mock/mockgen"
	_ "golang.org/x/tools/cmd/stringer"
)
