// Package failfast terminates the process on API misuse that leaves activity state unrecoverable,
// such as stopping an activity more times than it was split.
package failfast

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Handler is called with a description of the violated usage contract. It must not return
// normally; the default handler logs at [logrus.FatalLevel] (which exits the process).
type Handler func(msg string)

var handler atomic.Pointer[Handler]

func defaultHandler(msg string) {
	logrus.WithField("stack", string(debug.Stack())).Fatal(msg)
}

// SetHandler replaces the process-wide fail-fast handler and returns the previous one.
// Passing nil restores the default.
//
// Intended for tests, which typically swap in a handler that panics.
func SetHandler(h Handler) Handler {
	var p *Handler
	if h != nil {
		p = &h
	}
	if prev := handler.Swap(p); prev != nil {
		return *prev
	}
	return defaultHandler
}

// Immediate reports an unrecoverable usage violation.
//
// If the configured handler returns, Immediate panics so that execution cannot continue past
// the violation.
func Immediate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if h := handler.Load(); h != nil {
		(*h)(msg)
	} else {
		defaultHandler(msg)
	}
	panic("failfast: " + msg)
}

// If calls [Immediate] when cond is true.
func If(cond bool, format string, args ...any) {
	if cond {
		Immediate(format, args...)
	}
}
