// Package bterrors defines the error taxonomy this client's core
// subsystems report: every error is an *Error carrying one Kind, so a
// caller can branch on it with errors.As (see KindOf), and each wraps its
// underlying cause with github.com/pkg/errors so a "%+v" format verb
// prints a stack trace from the point of the fault.
package bterrors

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Kind names one of the eight error kinds in the taxonomy.
type Kind string

const (
	ParseFormat       Kind = "ParseFormat"
	MetainfoShape     Kind = "MetainfoShape"
	TrackerTransport  Kind = "TrackerTransport"
	TrackerFormat     Kind = "TrackerFormat"
	HandshakeProtocol Kind = "HandshakeProtocol"
	FramingProtocol   Kind = "FramingProtocol"
	IntegrityMismatch Kind = "IntegrityMismatch"
	IOFault           Kind = "IOFault"
)

// Error is a typed, wrapped error carrying one taxonomy Kind.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.cause.Error() }

func (e *Error) Unwrap() error { return e.cause }

// Format prints the wrapped cause with its stack trace for "%+v"; every
// other verb prints Error().
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.Kind, e.cause)
		return
	}
	io.WriteString(s, e.Error())
}

// Wrap builds a new *Error of the given kind around cause, annotating it
// with msg via errors.Wrap so the stack trace originates here.
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(cause, msg)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrapf(cause, format, args...)}
}

// New builds a new *Error of the given kind from a plain message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// KindOf returns the taxonomy Kind of err if it (or something it wraps) is
// a *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
