/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package reqerr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return true }

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		wantKind   Kind
		want       bool
	}{
		{400, KindClient, false},
		{401, KindClient, false},
		{404, KindClient, false},
		{422, KindClient, false},
		{429, KindRateLimited, true},
		{499, KindClient, false},
		{500, KindServer, true},
		{503, KindServer, true},
		{504, KindServer, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.statusCode), func(t *testing.T) {
			require.Equal(t, tt.wantKind, KindFromStatus(tt.statusCode))
			require.Equal(t, tt.want, IsRetryableStatus(tt.statusCode))
		})
	}
}

func TestClassify(t *testing.T) {
	canceledCtx, cancel := context.WithCancelCause(context.Background())
	cancelCause := errors.New("superseded")
	cancel(cancelCause)

	tests := []struct {
		name          string
		ctx           context.Context
		err           error
		wantKind      Kind
		wantStatus    int
		wantRetryable bool
	}{
		{"status code provider, 404", context.Background(), statusErr(404), KindClient, 404, false},
		{"status code provider, 503", context.Background(), fmt.Errorf("get: %w", statusErr(503)), KindServer, 503, true},
		{"status code provider, 429", context.Background(), statusErr(429), KindRateLimited, 429, true},
		{"per-attempt deadline", context.Background(), context.DeadlineExceeded, KindTimeout, 0, true},
		{"net timeout", context.Background(), &url.Error{Op: "Get", URL: "/", Err: timeoutNetErr{}}, KindTimeout, 0, true},
		{"connection refused", context.Background(),
			&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindNetwork, 0, true},
		{"unexpected EOF", context.Background(), io.ErrUnexpectedEOF, KindNetwork, 0, true},
		{"already classified", context.Background(), NewStatusError(409, nil), KindClient, 409, false},
		{"anything else", context.Background(), errors.New("boom"), KindUnknown, 0, true},
		{"canceled parent", canceledCtx, statusErr(503), KindCanceled, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.ctx, tt.err)
			require.NotNil(t, got)
			require.Equal(t, tt.wantKind, got.Kind)
			require.Equal(t, tt.wantStatus, got.StatusCode)
			require.Equal(t, tt.wantRetryable, got.Retryable())
		})
	}

	require.Nil(t, Classify(context.Background(), nil))
	require.ErrorIs(t, Classify(canceledCtx, errors.New("late")), cancelCause)
}

func TestError(t *testing.T) {
	err := fmt.Errorf("load bookings: %w", NewStatusError(503, errors.New("unavailable")))
	require.EqualError(t, err, "load bookings: server error: status 503: unavailable")
	require.Equal(t, KindServer, KindOf(err))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	require.True(t, IsCanceled(Canceled(nil)))
	require.ErrorIs(t, Canceled(nil), ErrCanceled)
	require.False(t, IsCanceled(nil))
	require.ErrorIs(t, Timeout(nil), context.DeadlineExceeded)
	require.Equal(t, "rate_limited", KindRateLimited.String())
}
