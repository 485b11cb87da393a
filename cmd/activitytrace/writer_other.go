//go:build !windows

package main

import (
	"errors"

	"github.com/Microsoft/go-activity/pkg/event"
)

var errETWUnsupported = errors.New("the etw writer is only supported on Windows")

func newETWWriter(string) (event.Writer, error) {
	return nil, errETWUnsupported
}
