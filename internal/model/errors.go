package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that found nothing.
var ErrNotFound = errors.New("not found")

// UsageError reports a malformed invocation, such as a wrong number of window
// parameters or an unknown granularity.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

// Usagef builds a *UsageError.
func Usagef(format string, args ...interface{}) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ParseError reports a malformed filter expression. Token is the offending
// fragment, empty when the expression ended prematurely.
type ParseError struct {
	Token string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("parse error at end of expression: %s", e.Msg)
	}
	return fmt.Sprintf("parse error at %q: %s", e.Token, e.Msg)
}

// DataError wraps a datastore failure.
type DataError struct {
	Op  string
	Err error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("datastore %s failed: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// InvariantViolation is an internal consistency failure: misaligned windows or
// grids, rows out of order. It is never recoverable by the caller.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string {
	return "invariant violated: " + e.Msg
}

// Violationf builds an *InvariantViolation.
func Violationf(format string, args ...interface{}) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err stems from bad input (usage or parse errors)
// rather than from the datastore or the engine itself.
func IsUserError(err error) bool {
	var usage *UsageError
	var parse *ParseError
	return errors.As(err, &usage) || errors.As(err, &parse)
}
