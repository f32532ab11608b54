package network

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why an upload step failed.
type ErrorKind int

const (
	// KindLocalFile means the local file is missing, is not a regular file or could not be read.
	KindLocalFile ErrorKind = iota + 1
	// KindTransport means the request never produced an HTTP response (network, DNS, TLS, timeout).
	KindTransport
	// KindProtocol means the provider answered with a non-2xx status, a non-zero errno or an undecodable body.
	KindProtocol
	// KindContractViolation means an otherwise successful response is missing a required field
	// or contradicts what was declared.
	KindContractViolation
	// KindCancelled means the caller's context was cancelled.
	KindCancelled
	// KindInvalidArgument means the caller supplied unusable input, for example an empty access token.
	KindInvalidArgument
)

func (k ErrorKind) String() string {
	switch k {
	case KindLocalFile:
		return "local file error"
	case KindTransport:
		return "transport error"
	case KindProtocol:
		return "protocol error"
	case KindContractViolation:
		return "contract violation"
	case KindCancelled:
		return "cancelled"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return fmt.Sprintf("unknown error kind (%d)", int(k))
	}
}

// Error is the terminal failure of an upload step.
type Error struct {
	Kind   ErrorKind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Detail
	switch {
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case e.Err != nil:
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}

	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError ...
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf creates an Error with a formatted detail message.
func Errorf(kind ErrorKind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind ...
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// CancelledError reports ctx's error as a cancellation of op.
func CancelledError(ctx context.Context, op string) *Error {
	return NewError(KindCancelled, op, ctx.Err())
}

// transportError classifies a failed round trip. The parent context decides between
// a caller cancellation and a plain transport failure (which includes the per-call timeout).
func transportError(parent context.Context, op string, err error) *Error {
	if parent.Err() != nil {
		return CancelledError(parent, op)
	}
	return NewError(KindTransport, op, err)
}
