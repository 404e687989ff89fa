package versioncheck

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/VplusR/VplusReforged/metric"
)

// Unknown is reported as the latest version when it could not be determined.
const Unknown = "Unknown"

// DefaultTimeout bounds the release lookup.
const DefaultTimeout = 10 * time.Second

var tagNamePattern = regexp.MustCompile(`"tag_name"\s*:\s*"([^"]*)"`)

// Fetcher downloads text from a URL.
type Fetcher interface {
	DownloadText(ctx context.Context, url string, headers map[string]string) (string, error)
}

// Checker looks up the latest release and caches it for display.
type Checker struct {
	fetcher Fetcher
	url     string
	current string
	headers map[string]string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metric.Metrics

	mu     sync.RWMutex
	latest string
}

// Option configures a Checker
type Option func(*Checker)

// WithHeaders sets request headers
func WithHeaders(headers map[string]string) Option {
	return func(c *Checker) {
		c.headers = headers
	}
}

// WithTimeout bounds the lookup
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records the result on the update-available gauge
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// NewChecker creates a checker for the release metadata at url.
func NewChecker(fetcher Fetcher, url, current string, opts ...Option) *Checker {
	c := &Checker{
		fetcher: fetcher,
		url:     url,
		current: current,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "version-check")
	return c
}

// Latest returns the version found by the last lookup, Unknown if it failed,
// or "" before the first lookup.
func (c *Checker) Latest() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// IsUpdateAvailable fetches the latest release and reports whether it is newer
// than the running version. It never fails: an unreachable or unreadable
// release source yields false and sets Latest to Unknown.
func (c *Checker) IsUpdateAvailable(ctx context.Context) bool {
	latest, ok := c.lookup(ctx)

	c.mu.Lock()
	c.latest = latest
	c.mu.Unlock()

	available := ok && c.newer(latest)
	if c.metrics != nil {
		if available {
			c.metrics.UpdateAvailable.Set(1)
		} else {
			c.metrics.UpdateAvailable.Set(0)
		}
	}
	return available
}

func (c *Checker) lookup(ctx context.Context) (string, bool) {
	if c.fetcher == nil {
		c.logger.Warn("The newest version could not be determined", "reason", "no fetcher")
		return Unknown, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.fetcher.DownloadText(ctx, c.url, c.headers)
	if err != nil {
		c.logger.Warn("The newest version could not be determined", "url", c.url, "error", err)
		return Unknown, false
	}

	match := tagNamePattern.FindStringSubmatch(reply)
	if match == nil || match[1] == "" {
		c.logger.Warn("The newest version could not be determined", "url", c.url, "reason", "no tag_name in reply")
		return Unknown, false
	}
	return match[1], true
}

func (c *Checker) newer(latest string) bool {
	cmp, err := Compare(latest, c.current)
	if err != nil {
		c.logger.Warn("Couldn't parse versions, comparing version strings with equality",
			"latest", latest, "current", c.current, "error", err)
		return latest != c.current
	}
	return cmp > 0
}
