// internal/platform/client.go
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	custom_errors "scm-project-sync/internal/errors"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	userAgent         = "scm-project-sync"
)

// Client talks to the platform's JSON-over-HTTPS API.
type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	logger        *slog.Logger
	maxRetries    uint64
	retryInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every single HTTP round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetries sets how many times a retryable call is repeated and the
// initial backoff between attempts.
func WithRetries(maxRetries int, initialInterval time.Duration) Option {
	return func(c *Client) {
		if maxRetries < 0 {
			maxRetries = 0
		}
		c.maxRetries = uint64(maxRetries)
		c.retryInterval = initialInterval
	}
}

// NewClient creates and configures a new Client instance.
func NewClient(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		logger:        logger,
		maxRetries:    defaultMaxRetries,
		retryInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a successful API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Data       json.RawMessage
}

// Request issues verb against path (relative to the base URL, or absolute)
// with body encoded as JSON. Non-2xx responses become a RemoteCallError.
// Rate limiting, server errors and transport errors are retried with
// exponential backoff.
func (c *Client) Request(ctx context.Context, verb, path string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = b
	}

	var resp *Response
	op := func() error {
		r, err := c.do(ctx, verb, path, payload)
		if err != nil {
			var remoteErr *custom_errors.RemoteCallError
			if errors.As(err, &remoteErr) && !remoteErr.Retryable() {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Retrying API request", "verb", verb, "path", path, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx), notify); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, verb, path string, payload []byte) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(verb), c.url(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("API request", "verb", req.Method, "url", req.URL.String())
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &custom_errors.RemoteCallError{
			Verb:       req.Method,
			Path:       path,
			StatusCode: res.StatusCode,
			Message:    errorMessage(data),
		}
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Data: data}, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// errorMessage pulls a human readable message out of an error body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Errors  []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if len(body.Errors) > 0 && body.Errors[0].Detail != "" {
			return body.Errors[0].Detail
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

func decode(resp *Response, v any) error {
	if len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
