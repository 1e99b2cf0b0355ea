package base

import (
	"github.com/cockroachdb/errors"
)

// Code is the oblsm status code set from spec.md §6/§7. It is
// deliberately a small closed enum so callers can switch on it without
// reaching into error-wrapping internals.
type Code int

const (
	// CodeOK is never actually returned as an error; it exists so Code's
	// zero value is not confused with a reportable failure.
	CodeOK Code = iota
	CodeNotFound
	CodeIOOpen
	CodeIORead
	CodeIOWrite
	CodeIOSync
	CodeInvalidArgument
	CodeFull
	CodeUnimplemented
	CodeJSONParse
	CodeMemberMissing
	CodeRecordEOF
	CodeChecksumMismatch
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeNotFound:
		return "not found"
	case CodeIOOpen:
		return "io: open"
	case CodeIORead:
		return "io: read"
	case CodeIOWrite:
		return "io: write"
	case CodeIOSync:
		return "io: sync"
	case CodeInvalidArgument:
		return "invalid argument"
	case CodeFull:
		return "full"
	case CodeUnimplemented:
		return "unimplemented"
	case CodeJSONParse:
		return "json parse error"
	case CodeMemberMissing:
		return "json member missing"
	case CodeRecordEOF:
		return "record eof"
	case CodeChecksumMismatch:
		return "checksum mismatch"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a stable status Code. It embeds
// the cockroachdb/errors tree so errors.Is/errors.As, stack traces, and
// %+v formatting keep working for callers that want more than the Code.
type Error struct {
	code  Code
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.code.String()
	}
	return e.code.String() + ": " + e.cause.Error()
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// ErrorCode returns the status code of err, or CodeOK if err is nil, or
// CodeIORead as a generic fallback if err is a plain (non-*Error) error.
func ErrorCode(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return CodeIORead
}

// NewError builds a *Error wrapping cause under the given code. msg is
// formatted with errors.Wrapf so stack traces accumulate the same way
// they would for any other cockroachdb/errors call site in this repo.
func NewError(code Code, cause error, msg string, args ...interface{}) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.Wrapf(cause, msg, args...)
	} else {
		wrapped = errors.Newf(msg, args...)
	}
	return &Error{code: code, cause: wrapped}
}

// Sentinel errors compared with errors.Is by callers and internally.
var (
	ErrNotFound      = &Error{code: CodeNotFound, cause: errors.New("key not found")}
	ErrRecordEOF     = &Error{code: CodeRecordEOF, cause: errors.New("record eof")}
	ErrFull          = &Error{code: CodeFull, cause: errors.New("block full")}
	ErrUnimplemented = &Error{code: CodeUnimplemented, cause: errors.New("unimplemented")}
)

// IsNotFound reports whether err denotes a not-found condition, whether
// it is exactly ErrNotFound or any *Error carrying CodeNotFound.
func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound
}
