//go:build !windows

package failure

// errno values are not Win32 codes; let the generic classification handle them.
func platformCode(error) (Code, bool) { return OK, false }
