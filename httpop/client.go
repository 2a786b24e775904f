/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpop adapts HTTP calls to operations that can be executed by
// retry, scheduler, batcher and coordinator packages.
// Failures are reported as *reqerr.Error, so non-2xx statuses are classified for retries.
package httpop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-reqkit/internal/libinfo"
	"github.com/acronis/go-reqkit/log"
	"github.com/acronis/go-reqkit/reqerr"
)

// DefaultUserAgent is used when ClientOpts.UserAgent is empty.
var DefaultUserAgent = libinfo.UserAgent()

// maxErrorBodySize limits how much of an error response body is kept in the error message.
const maxErrorBodySize = 1024

// ClientOpts represents options for Client.
type ClientOpts struct {
	// HTTPClient is used to send requests. A client without timeout over http.DefaultTransport is used if nil.
	// Its transport is wrapped, the passed client is not modified.
	HTTPClient *http.Client

	// UserAgent is set in requests without User-Agent header.
	UserAgent string

	// RateLimit is the maximum number of requests per second. Zero disables client side rate limiting.
	RateLimit rate.Limit

	// RateBurst is the burst of the rate limiter. 1 is used if zero.
	RateBurst int

	// Logger is used for logging requests at debug level. Logging is disabled if nil.
	Logger log.FieldLogger
}

// Client sends HTTP requests and converts failures into *reqerr.Error.
type Client struct {
	httpClient *http.Client
	logger     log.FieldLogger
}

// NewClient creates a new Client.
func NewClient(opts ClientOpts) (*Client, error) {
	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		*httpClient = *opts.HTTPClient
	}
	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.RateLimit > 0 {
		var err error
		if transport, err = NewRateLimitingRoundTripper(transport, opts.RateLimit, opts.RateBurst, 0); err != nil {
			return nil, fmt.Errorf("create rate limiting round tripper: %w", err)
		}
	}
	transport = NewRequestIDRoundTripper(transport)
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	transport = NewUserAgentRoundTripper(transport, opts.UserAgent)
	httpClient.Transport = transport

	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &Client{httpClient: httpClient, logger: opts.Logger}, nil
}

// Do sends req with ctx. A response with non-2xx status is closed and returned as *reqerr.Error with its status code.
// On success, the caller must close the response body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		c.logger.Debug("http request failed",
			log.String("method", req.Method), log.String("url", req.URL.String()),
			log.Duration("duration", time.Since(startTime)), log.Error(err))
		if ctx.Err() == nil && isRateLimitingWaitError(err) {
			return nil, &reqerr.Error{Kind: reqerr.KindRateLimited, Err: err}
		}
		return nil, reqerr.Classify(ctx, err)
	}

	c.logger.Debug("http request done",
		log.String("method", req.Method), log.String("url", req.URL.String()),
		log.Int("status", resp.StatusCode), log.Duration("duration", time.Since(startTime)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	_, _ = io.Copy(io.Discard, resp.Body)
	var statusErr error
	if len(body) != 0 {
		statusErr = fmt.Errorf("%s %s: %s", req.Method, req.URL.Redacted(), bytes.TrimSpace(body))
	} else {
		statusErr = fmt.Errorf("%s %s", req.Method, req.URL.Redacted())
	}
	return nil, reqerr.NewStatusError(resp.StatusCode, statusErr)
}

// JSON returns an operation that sends a request with body encoded as JSON (if not nil)
// and decodes JSON response into T.
func JSON[T any](c *Client, method, url string, body interface{}) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var res T

		var reqBody io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return res, &reqerr.Error{Kind: reqerr.KindClient, Err: fmt.Errorf("encode request body: %w", err)}
			}
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return res, &reqerr.Error{Kind: reqerr.KindClient, Err: fmt.Errorf("create request: %w", err)}
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.Do(ctx, req)
		if err != nil {
			return res, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusNoContent {
			return res, nil
		}
		if err = json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return res, reqerr.Classify(ctx, fmt.Errorf("decode response body: %w", err))
		}
		return res, nil
	}
}
