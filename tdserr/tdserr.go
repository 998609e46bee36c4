// Package tdserr provides structured error handling for the connection
// core: every failure surfaced to a caller is tagged with one of the three
// kinds the protocol distinguishes (socket, local, remote) so request code
// can decide whether to force-close the connection, leave it alone, or just
// report the server's message.
package tdserr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure the way the connection state machine needs to:
// socket failures force-close the connection, local failures leave it as
// is, remote failures are the server's own report of a problem.
type Kind int

const (
	// Socket indicates the transport failed: connect, send, receive, or a
	// timeout. The connection must be force-closed and left Disconnected.
	Socket Kind = iota
	// Local indicates a client-side protocol failure: a decode error, or
	// an unsupported server path such as AuthNegotiate. The connection is
	// left in its current state.
	Local
	// Remote indicates the server reported an error via a done segment
	// carrying the error flag; Message is the accompanying server text.
	Remote
)

func (k Kind) String() string {
	switch k {
	case Socket:
		return "socket"
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind, a message, optional
// context fields, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Op      string
	Fields  map[string]interface{}
	Cause   error
	Time    time.Time
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Cause != nil {
		s = s + ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// WithField attaches a context field and returns the error for chaining.
func (e *Error) WithField(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// Builder constructs an *Error fluently.
type Builder struct {
	kind    Kind
	message string
	op      string
	cause   error
	fields  map[string]interface{}
}

// New starts building an error of the given kind.
func New(kind Kind, message string) *Builder {
	return &Builder{kind: kind, message: message}
}

// Newf starts building an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Builder {
	return &Builder{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error under the given kind and message.
func Wrap(cause error, kind Kind, message string) *Builder {
	return &Builder{kind: kind, message: message, cause: cause}
}

// Wrapf wraps an existing error under the given kind with a formatted message.
func Wrapf(cause error, kind Kind, format string, args ...interface{}) *Builder {
	return &Builder{kind: kind, message: fmt.Sprintf(format, args...), cause: cause}
}

func (b *Builder) WithOp(op string) *Builder {
	b.op = op
	return b
}

func (b *Builder) WithField(key string, value interface{}) *Builder {
	if b.fields == nil {
		b.fields = make(map[string]interface{})
	}
	b.fields[key] = value
	return b
}

func (b *Builder) Build() *Error {
	return &Error{
		Kind:    b.kind,
		Message: b.message,
		Op:      b.op,
		Cause:   b.cause,
		Fields:  b.fields,
		Time:    time.Now(),
	}
}

func (b *Builder) Err() error { return b.Build() }

// GetKind extracts the Kind from an error, defaulting to Local when err
// doesn't carry one (e.g. a bare stdlib error from an unexpected path).
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Local
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// Standard library compatibility, mirrored from the teacher's errors package.

func As(err error, target interface{}) bool { return errors.As(err, target) }
func Join(errs ...error) error              { return errors.Join(errs...) }
