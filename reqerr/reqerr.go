/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package reqerr defines how failures of request operations are classified.
//
// Every failure surfaced by the retrier, scheduler, batcher and coordinator is either an *Error
// or wraps one, so callers can tell a fatal client error from an exhausted retry or a cancellation:
//
//	if reqerr.KindOf(err) == reqerr.KindCanceled {
//		return // superseded or canceled, nothing to report
//	}
package reqerr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// Kind is a class of a failed operation.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	KindClient
	KindServer
	KindRateLimited
	KindTimeout
	KindNetwork
	KindCanceled
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindClient:      "client",
	KindServer:      "server",
	KindRateLimited: "rate_limited",
	KindTimeout:     "timeout",
	KindNetwork:     "network",
	KindCanceled:    "canceled",
}

// String implements fmt.Stringer interface.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether an operation that failed with this kind may be attempted again.
// Client errors and cancellations are fatal, everything else is retryable.
func (k Kind) Retryable() bool {
	return k != KindClient && k != KindCanceled
}

// KindFromStatus maps HTTP-like status code of a failed operation to Kind.
func KindFromStatus(statusCode int) Kind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= 400 && statusCode < 500:
		return KindClient
	case statusCode >= 500:
		return KindServer
	}
	return KindUnknown
}

// IsRetryableStatus reports whether an operation failed with the given status code may be attempted again.
func IsRetryableStatus(statusCode int) bool {
	return KindFromStatus(statusCode).Retryable()
}

// ErrCanceled is the cause of cancellations that have no more specific cause.
var ErrCanceled = errors.New("operation canceled")

// Error is a classified failure of an operation.
type Error struct {
	Kind       Kind
	StatusCode int // 0 when the failure has no status (timeouts, network errors, cancellations)
	Err        error
}

// Error implements error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		if e.Err == nil {
			return fmt.Sprintf("%s error: status %d", e.Kind, e.StatusCode)
		}
		return fmt.Sprintf("%s error: status %d: %s", e.Kind, e.StatusCode, e.Err.Error())
	}
	if e.Err == nil {
		return fmt.Sprintf("%s error", e.Kind)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Err.Error())
}

// Unwrap returns the next error in the error chain.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failed operation may be attempted again.
func (e *Error) Retryable() bool {
	return e.Kind.Retryable()
}

// NewStatusError creates a classified error for an operation that finished with the given status code.
func NewStatusError(statusCode int, err error) *Error {
	return &Error{Kind: KindFromStatus(statusCode), StatusCode: statusCode, Err: err}
}

// Canceled creates a cancellation error with the given cause.
func Canceled(cause error) *Error {
	if cause == nil {
		cause = ErrCanceled
	}
	return &Error{Kind: KindCanceled, Err: cause}
}

// Timeout creates a timeout error.
func Timeout(err error) *Error {
	if err == nil {
		err = context.DeadlineExceeded
	}
	return &Error{Kind: KindTimeout, Err: err}
}

// Classify converts an arbitrary error of an operation run under ctx into *Error.
// Nil is returned for nil error. Already classified errors are returned as is
// unless ctx is done, in which case the result is always a cancellation (or timeout for passed deadline).
func Classify(ctx context.Context, err error) *Error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return Timeout(err)
		}
		return Canceled(context.Cause(ctx))
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err)
	}
	if errors.Is(err, context.Canceled) {
		return Canceled(err)
	}
	var statusErr interface{ StatusCode() int }
	if errors.As(err, &statusErr) {
		return NewStatusError(statusErr.StatusCode(), err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Kind: KindNetwork, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout(err)
		}
		return &Error{Kind: KindNetwork, Err: err}
	}
	return &Error{Kind: KindUnknown, Err: err}
}

// KindOf returns the kind of a classified error. Errors that are not classified are KindUnknown.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// IsCanceled reports whether err is a cancellation.
func IsCanceled(err error) bool {
	return err != nil && KindOf(err) == KindCanceled
}
