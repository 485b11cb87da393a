//go:build windows

package failure

import (
	"errors"

	"golang.org/x/sys/windows"
)

func platformCode(err error) (Code, bool) {
	var errno windows.Errno
	if errors.As(err, &errno) {
		return FromWin32(uint32(errno)), true
	}
	return OK, false
}
