package core

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a backend can report.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound: a referenced source file or storage directory is missing
	// and cannot be created.
	KindNotFound
	// KindUnsupported: the bound backend has no implementation for the operation.
	KindUnsupported
	// KindIO: a read, write or copy failed.
	KindIO
	// KindPlatformCallFailed: the remote call to native code itself failed.
	KindPlatformCallFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindUnsupported:
		return "Unsupported"
	case KindIO:
		return "IO"
	case KindPlatformCallFailed:
		return "PlatformCallFailed"
	default:
		return "Unknown"
	}
}

// Error is the single error type returned by backends.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "saveFilePrivateFromBuffer"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality, so errors.Is(err, ErrNotFound) matches any NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrUnsupported        = &Error{Kind: KindUnsupported}
	ErrIO                 = &Error{Kind: KindIO}
	ErrPlatformCallFailed = &Error{Kind: KindPlatformCallFailed}

	// ErrInvalidFileName is wrapped inside an IO error when a file name cannot be used as a path leaf.
	ErrInvalidFileName = errors.New("invalid file name")
)

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func NotFound(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Unsupported(op string, format string, args ...any) *Error {
	return &Error{Kind: KindUnsupported, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func IO(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindIO, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

func PlatformCallFailed(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindPlatformCallFailed, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}
