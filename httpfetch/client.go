// Package httpfetch downloads small text documents: release metadata and the
// remote default configuration.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/pkg/retry"
)

// UserAgent identifies the mod to remote endpoints.
const UserAgent = "V+ Server"

// maxBodyBytes caps a downloaded document.
const maxBodyBytes = 4 << 20

// Client downloads text over HTTP with a per-request timeout and a short retry.
type Client struct {
	http    *http.Client
	retry   retry.Config
	timeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithRetry replaces the retry configuration
func WithRetry(cfg retry.Config) Option {
	return func(cl *Client) {
		cl.retry = cfg
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(timeout time.Duration) Option {
	return func(cl *Client) {
		if timeout > 0 {
			cl.timeout = timeout
		}
	}
}

// New creates a client with startup retry defaults and a 10 second timeout.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		retry:   retry.Startup(),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultHeaders returns the identifying headers sent with every request.
func DefaultHeaders() map[string]string {
	return map[string]string{"User-Agent": UserAgent}
}

// DownloadText fetches url and returns the body. Non-2xx responses are errors;
// 4xx responses are not retried.
func (c *Client) DownloadText(ctx context.Context, url string, headers map[string]string) (string, error) {
	body, err := retry.DoWithResult(ctx, c.retry, func() (string, error) {
		return c.get(ctx, url, headers)
	})
	if err != nil {
		return "", errors.WrapTransient(err, "Client", "DownloadText", "download "+url)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string, headers map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", retry.NonRetryable(err)
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("%s: %d: %w", url, resp.StatusCode, errors.ErrUnexpectedStatus)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", retry.NonRetryable(statusErr)
		}
		return "", statusErr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
