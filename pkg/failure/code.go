package failure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
)

// Code is an HRESULT-style status code.
//
// [OK] (zero) is the only success value; every other code is a failure.
type Code int32

// Common codes. Values are the signed form of the equivalent Windows HRESULTs.
const (
	OK                     Code = 0
	CodeIllegalState       Code = -0x7FFFFFF3 // 0x8000000D
	CodeNotImplemented     Code = -0x7FFFBFFF // 0x80004001
	CodeFail               Code = -0x7FFFBFFB // 0x80004005
	CodeUnexpected         Code = -0x7FFF0001 // 0x8000FFFF
	CodeAccessDenied       Code = -0x7FF8FFFB // 0x80070005
	CodeNotReady           Code = -0x7FF8FFEB // 0x80070015
	CodeInvalidArgument    Code = -0x7FF8FFA9 // 0x80070057
	CodeAlreadyExists      Code = -0x7FF8FF49 // 0x800700B7
	CodeUnhandledException Code = -0x7FF8FDC2 // 0x8007023E
	CodeNotFound           Code = -0x7FF8FB70 // 0x80070490
	CodeCancelled          Code = -0x7FF8FB39 // 0x800704C7
	CodeTimeout            Code = -0x7FF8FA4C // 0x800705B4
)

const (
	facilityWin32 = 7
	severityError = 0x80000000
)

var codeNames = map[Code]string{
	OK:                     "S_OK",
	CodeIllegalState:       "E_ILLEGAL_STATE_CHANGE",
	CodeNotImplemented:     "E_NOTIMPL",
	CodeFail:               "E_FAIL",
	CodeUnexpected:         "E_UNEXPECTED",
	CodeAccessDenied:       "E_ACCESSDENIED",
	CodeNotReady:           "ERROR_NOT_READY",
	CodeInvalidArgument:    "E_INVALIDARG",
	CodeAlreadyExists:      "ERROR_ALREADY_EXISTS",
	CodeUnhandledException: "ERROR_UNHANDLED_EXCEPTION",
	CodeNotFound:           "ERROR_NOT_FOUND",
	CodeCancelled:          "ERROR_CANCELLED",
	CodeTimeout:            "ERROR_TIMEOUT",
}

// FromWin32 converts a Win32 error code to a Code in the Win32 facility.
//
// Values that are already HRESULTs (zero or with the severity bit set) are returned as-is.
func FromWin32(e uint32) Code {
	if int32(e) <= 0 {
		return Code(int32(e))
	}
	return Code(int32((e & 0xFFFF) | (facilityWin32 << 16) | severityError))
}

// Failed returns true for every code other than [OK].
func (c Code) Failed() bool { return c != OK }

// Succeeded returns true only for [OK].
func (c Code) Succeeded() bool { return c == OK }

func (c Code) String() string {
	return fmt.Sprintf("0x%08X", uint32(c))
}

// Name returns the symbolic name of well-known codes, or the hexadecimal representation otherwise.
func (c Code) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return c.String()
}

// ParseCode parses either a symbolic name (eg, "E_FAIL"), or a decimal or "0x"-prefixed
// hexadecimal number, interpreted as an unsigned 32 bit value.
func ParseCode(s string) (Code, error) {
	s = strings.TrimSpace(s)
	for c, n := range codeNames {
		if strings.EqualFold(n, s) {
			return c, nil
		}
	}

	if v, err := strconv.ParseInt(s, 0, 64); err == nil && v >= -(1<<31) && v < (1<<32) {
		if v < 0 {
			return Code(int32(v)), nil
		}
		return Code(int32(uint32(v))), nil
	}
	return OK, fmt.Errorf("invalid status code %q", s)
}

func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Code) UnmarshalText(b []byte) (err error) {
	*c, err = ParseCode(string(b))
	return err
}

// Coder is implemented by errors that carry their own [Code].
type Coder interface {
	Code() Code
}

// CodeOf returns the status code that best describes err.
//
// nil maps to [OK]. Errors implementing [Coder] return their code; platform errors and
// [github.com/containerd/errdefs] error classes are mapped to the equivalent Win32 codes.
// Everything else is [CodeFail].
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}

	var coder Coder
	if errors.As(err, &coder) {
		return coder.Code()
	}
	if c, ok := platformCode(err); ok {
		return c
	}

	switch {
	case errdefs.IsNotFound(err) || errors.Is(err, fs.ErrNotExist):
		return CodeNotFound
	case errdefs.IsAlreadyExists(err) || errors.Is(err, fs.ErrExist):
		return CodeAlreadyExists
	case errdefs.IsInvalidArgument(err) || errors.Is(err, fs.ErrInvalid):
		return CodeInvalidArgument
	case errors.Is(err, fs.ErrPermission):
		return CodeAccessDenied
	case errdefs.IsNotImplemented(err):
		return CodeNotImplemented
	case errdefs.IsFailedPrecondition(err):
		return CodeIllegalState
	case errdefs.IsUnavailable(err):
		return CodeNotReady
	case errdefs.IsCanceled(err) || errors.Is(err, context.Canceled):
		return CodeCancelled
	case errdefs.IsDeadlineExceeded(err) || errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	return CodeFail
}
