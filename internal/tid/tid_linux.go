//go:build linux

package tid

import "golang.org/x/sys/unix"

func current() uint32 {
	return uint32(unix.Gettid())
}
