// Package errors provides the coded errors wheelbench reports to users.
//
// A [Code] classifies what went wrong so that callers can react without
// matching on message text, and so the CLI can print a [Hint] next to the
// message:
//
//	err := errors.New(errors.ErrCodeNotFound, "scenario %q not found", name)
//	if errors.Is(err, errors.ErrCodeNotFound) { ... }
//
// Structural problems in a scenario document are reported through
// [ValidationError], which collects every issue instead of stopping at the
// first one and counts as [ErrCodeInvalidScenario].
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error class.
type Code string

const (
	ErrCodeInvalidInput    Code = "INVALID_INPUT"    // bad flags, requirements or input files
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"  // unusable package name
	ErrCodeInvalidScenario Code = "INVALID_SCENARIO" // scenario document fails validation
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"   // config file cannot be used
	ErrCodeNotFound        Code = "NOT_FOUND"        // scenario, wheelhouse or file missing
	ErrCodeInspectFailed   Code = "INSPECT_FAILED"   // target interpreter could not be inspected
)

// hints suggest a next step per code.
var hints = map[Code]string{
	ErrCodeInvalidScenario: "run 'wheelbench validate <scenario>' for the full report",
	ErrCodeInvalidConfig:   "check the file passed with --config or $XDG_CONFIG_HOME/wheelbench/config.toml",
	ErrCodeNotFound:        "run 'wheelbench list' to see stored scenarios",
	ErrCodeInspectFailed:   "pass --python with a working interpreter, or crawl from an --input file that records tags",
}

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err, or an error it wraps, carries code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode returns the code of the outermost coded error in err's chain, or
// "" if there is none. A *ValidationError has ErrCodeInvalidScenario.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return ErrCodeInvalidScenario
	}
	return ""
}

// UserMessage returns the message of a coded error without its code
// prefix, and err.Error() for anything else.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return err.Error()
}

// Hint suggests what to try next for err, or "" when there is nothing
// useful to say.
func Hint(err error) string {
	return hints[GetCode(err)]
}
