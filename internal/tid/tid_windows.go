//go:build windows

package tid

import "golang.org/x/sys/windows"

func current() uint32 {
	return windows.GetCurrentThreadId()
}
