package domquery

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind tags a QueryError. Kinds are open so collaborators can add negated
// variants (an assertion layer's "found when none was expected").
type Kind string

const (
	// KindParameters: the query has no discriminating field or carries an
	// unknown property. Never retried.
	KindParameters Kind = "QueryParametersError"
	// KindEmpty: no node matched within the allotted attempts.
	KindEmpty Kind = "QueryEmptyError"
	// KindMultiple: more than one node matched where one was required.
	KindMultiple Kind = "QueryMultipleError"
	// KindIframe: a frame root has no reachable content document.
	KindIframe Kind = "QueryIframeError"
	// KindTimeout: the wait timed out before any attempt failed, or the
	// last failure was not a QueryError.
	KindTimeout Kind = "QueryTimeoutError"
)

// Sentinels for errors.Is. ErrQuery matches every QueryError.
var (
	ErrQuery      = &QueryError{msg: "query error"}
	ErrParameters = &QueryError{kind: KindParameters, msg: "invalid query parameters"}
	ErrEmpty      = &QueryError{kind: KindEmpty, msg: "no node found"}
	ErrMultiple   = &QueryError{kind: KindMultiple, msg: "more than one node found"}
	ErrIframe     = &QueryError{kind: KindIframe, msg: "frame document unavailable"}
	ErrTimeout    = &QueryError{kind: KindTimeout, msg: "timed out"}
)

// QueryError is the common error type of every query failure.
// It is immutable once built.
type QueryError struct {
	kind       Kind
	msg        string
	cause      error
	stack      []Frame
	attributed bool
}

// NewError builds a QueryError of the given kind and captures the stack of
// the caller.
func NewError(kind Kind, msg string) *QueryError {
	return newError(kind, msg, nil, 1)
}

func newError(kind Kind, msg string, cause error, skip int) *QueryError {
	return &QueryError{
		kind:  kind,
		msg:   msg,
		cause: cause,
		stack: captureStack(skip + 1),
	}
}

func (e *QueryError) Error() string {
	if e.kind == "" {
		return e.msg
	}
	return string(e.kind) + ": " + e.msg
}

// Kind returns the error's tag, e.g. "QueryEmptyError".
func (e *QueryError) Kind() Kind { return e.kind }

// Message returns the message without the kind prefix.
func (e *QueryError) Message() string { return e.msg }

// Unwrap returns the failure that caused a timeout, if any.
func (e *QueryError) Unwrap() error { return e.cause }

// Is matches sentinels by kind. ErrQuery matches any kind.
func (e *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	if !ok {
		return false
	}
	return t.kind == "" || t.kind == e.kind
}

// Stack returns a copy of the (possibly attributed) stack.
func (e *QueryError) Stack() []Frame {
	out := make([]Frame, len(e.stack))
	copy(out, e.stack)
	return out
}

// StackTrace renders the message followed by one frame per entry.
func (e *QueryError) StackTrace() string {
	var b strings.Builder
	b.WriteString(e.Error())
	for _, f := range e.stack {
		b.WriteString("\n")
		b.WriteString(f.String())
	}
	return b.String()
}

// Format prints the stack trace for %+v.
func (e *QueryError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, e.StackTrace())
			return
		}
		io.WriteString(s, e.Error())
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrParameters)
}
