// Package meilierr implements the §7 error taxonomy as a typed error the
// public API can switch on, instead of the ad-hoc sentinel-var-per-error
// style the teacher uses in index.go (ErrNoPostingList, ErrNoNextElement,
// ...). We keep that sentinel style for low-level internal packages
// (kvstore, posting) and reserve this richer type for errors that cross
// the public boundary and need a Code plus an optional source-span.
package meilierr

import "fmt"

// Code classifies an error per §7.
type Code int

const (
	CodeUserInput Code = iota
	CodeSchema
	CodeResource
	CodeConcurrency
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeUserInput:
		return "user_input"
	case CodeSchema:
		return "schema"
	case CodeResource:
		return "resource"
	case CodeConcurrency:
		return "concurrency"
	case CodeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Span is a 1-based line:column range into a parsed filter or query
// string, required on parse errors per §6.4.
type Span struct {
	StartLine, StartCol int
	EndLine, EndCol      int
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

// Error is the engine's public error type.
type Error struct {
	Code    Code
	Message string
	Span    *Span
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Span)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func UserInput(msg string, args ...any) *Error {
	return &Error{Code: CodeUserInput, Message: fmt.Sprintf(msg, args...)}
}

func UserInputAt(span Span, msg string, args ...any) *Error {
	return &Error{Code: CodeUserInput, Message: fmt.Sprintf(msg, args...), Span: &span}
}

func Schema(msg string, args ...any) *Error {
	return &Error{Code: CodeSchema, Message: fmt.Sprintf(msg, args...)}
}

func Resource(err error, msg string, args ...any) *Error {
	return &Error{Code: CodeResource, Message: fmt.Sprintf(msg, args...), Err: err}
}

func Internal(err error, msg string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(msg, args...), Err: err}
}

func Concurrency(msg string, args ...any) *Error {
	return &Error{Code: CodeConcurrency, Message: fmt.Sprintf(msg, args...)}
}
