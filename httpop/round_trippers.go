/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpop

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/xid"
	"golang.org/x/time/rate"
)

// HeaderRequestID is the header used to pass the request identifier.
const HeaderRequestID = "X-Request-ID"

// DefaultRateLimitingWaitTimeout is the default maximum time to wait for a rate limiter token.
const DefaultRateLimitingWaitTimeout = 15 * time.Second

// UserAgentRoundTripper sets the User-Agent header if the request doesn't have it.
type UserAgentRoundTripper struct {
	Delegate  http.RoundTripper
	UserAgent string
}

// NewUserAgentRoundTripper creates a new UserAgentRoundTripper.
func NewUserAgentRoundTripper(delegate http.RoundTripper, userAgent string) *UserAgentRoundTripper {
	return &UserAgentRoundTripper{Delegate: delegate, UserAgent: userAgent}
}

// RoundTrip implements http.RoundTripper interface.
func (rt *UserAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.UserAgent == "" || req.Header.Get("User-Agent") != "" {
		return rt.Delegate.RoundTrip(req)
	}
	req = req.Clone(req.Context()) // Per RoundTripper contract.
	req.Header.Set("User-Agent", rt.UserAgent)
	return rt.Delegate.RoundTrip(req)
}

// RequestIDRoundTripper sets a unique X-Request-ID header if the request doesn't have it.
type RequestIDRoundTripper struct {
	Delegate http.RoundTripper
}

// NewRequestIDRoundTripper creates a new RequestIDRoundTripper.
func NewRequestIDRoundTripper(delegate http.RoundTripper) *RequestIDRoundTripper {
	return &RequestIDRoundTripper{Delegate: delegate}
}

// RoundTrip implements http.RoundTripper interface.
func (rt *RequestIDRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(HeaderRequestID) != "" {
		return rt.Delegate.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set(HeaderRequestID, xid.New().String())
	return rt.Delegate.RoundTrip(req)
}

// RateLimitingRoundTripper limits the rate of outgoing requests on the client side.
type RateLimitingRoundTripper struct {
	Delegate    http.RoundTripper
	WaitTimeout time.Duration

	rateLimiter *rate.Limiter
}

// NewRateLimitingRoundTripper creates a new RateLimitingRoundTripper
// that sends at most rateLimit requests per second with the given burst.
func NewRateLimitingRoundTripper(
	delegate http.RoundTripper, rateLimit rate.Limit, burst int, waitTimeout time.Duration,
) (*RateLimitingRoundTripper, error) {
	if rateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive")
	}
	if burst < 0 {
		return nil, fmt.Errorf("burst must be positive")
	}
	if burst == 0 {
		burst = 1
	}
	if waitTimeout == 0 {
		waitTimeout = DefaultRateLimitingWaitTimeout
	}
	return &RateLimitingRoundTripper{
		Delegate:    delegate,
		WaitTimeout: waitTimeout,
		rateLimiter: rate.NewLimiter(rateLimit, burst),
	}, nil
}

// RoundTrip implements http.RoundTripper interface.
func (rt *RateLimitingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), rt.WaitTimeout)
	defer cancel()

	if err := rt.rateLimiter.Wait(ctx); err != nil {
		if req.Body != nil {
			_ = req.Body.Close() // Per RoundTripper contract.
		}
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, &RateLimitingWaitError{Inner: err}
	}
	return rt.Delegate.RoundTrip(req)
}

// RateLimitingWaitError is returned when a request couldn't get a rate limiter token in time.
type RateLimitingWaitError struct {
	Inner error
}

func (e *RateLimitingWaitError) Error() string {
	return fmt.Sprintf("wait due to client side rate limiting: %s", e.Inner.Error())
}

// Unwrap returns the underlying error.
func (e *RateLimitingWaitError) Unwrap() error {
	return e.Inner
}

func isRateLimitingWaitError(err error) bool {
	var waitErr *RateLimitingWaitError
	return errors.As(err, &waitErr)
}
