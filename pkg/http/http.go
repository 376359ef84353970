// Package http is the outgoing JSON client used for webhook deliveries.
//
//	resp, err := http.New(10*time.Second).Retry(3, 200*time.Millisecond).
//	    PostJSON(ctx, url, payload, nil)
//
// Transport errors and 5xx replies are retried with exponential backoff;
// other statuses are returned to the caller as they are.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	gohttp "net/http"
	"time"

	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

// ErrStatus is wrapped by Response.Throw for non-2xx replies.
var ErrStatus = errors.New("http: unexpected status")

// maxBody caps how much of a reply is read.
const maxBody = 1 << 20

// Client sends JSON requests with retries.
type Client struct {
	hc       *gohttp.Client
	attempts int
	wait     time.Duration
}

// New returns a client with a per-attempt timeout and a single attempt.
func New(timeout time.Duration) *Client {
	return &Client{hc: &gohttp.Client{Timeout: timeout}, attempts: 1, wait: 500 * time.Millisecond}
}

// Retry sets the total number of attempts and the first backoff, which
// doubles after every failure.
func (c *Client) Retry(attempts int, wait time.Duration) *Client {
	if attempts < 1 {
		attempts = 1
	}
	c.attempts, c.wait = attempts, wait
	return c
}

// PostJSON posts payload encoded as JSON.
func (c *Client) PostJSON(ctx context.Context, url string, payload any, headers map[string]string) (*Response, error) {
	return c.Do(ctx, gohttp.MethodPost, url, payload, headers)
}

// Do sends body, JSON-encoded unless it is nil, and returns the last reply.
func (c *Client) Do(ctx context.Context, method, url string, body any, headers map[string]string) (*Response, error) {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("http: marshal body: %w", err)
		}
	}

	var (
		resp    *Response
		lastErr error
	)
	backoff := c.wait
	for attempt := 1; attempt <= c.attempts; attempt++ {
		resp, lastErr = c.once(ctx, method, url, raw, headers)
		if lastErr == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if attempt == c.attempts {
			break
		}
		logger.WithCtx(ctx).Warn("http: request failed, retrying",
			"url", url, "attempt", attempt, "backoff", backoff.String(), "error", failure(resp, lastErr))
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr != nil {
		return nil, fmt.Errorf("http: %s %s failed after %d attempts: %w", method, url, c.attempts, lastErr)
	}
	return resp, nil
}

func failure(resp *Response, err error) error {
	if err != nil {
		return err
	}
	return resp.Throw()
}

func (c *Client) once(ctx context.Context, method, url string, body []byte, headers map[string]string) (*Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := gohttp.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Raw: data}, nil
}

// Response is a fully read reply.
type Response struct {
	StatusCode int
	Header     gohttp.Header
	Raw        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// JSON decodes the body into dest.
func (r *Response) JSON(dest any) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode JSON: %w", err)
	}
	return nil
}

// Throw returns an ErrStatus error unless the reply is 2xx.
func (r *Response) Throw() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w %d: %s", ErrStatus, r.StatusCode, bytes.TrimSpace(r.Raw))
}
