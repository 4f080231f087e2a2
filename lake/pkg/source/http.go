package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/klauspost/compress/gzhttp"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultKeepAlive = 30 * time.Second
	// Caps a single download; the public workbooks and archive are a few MB.
	maxBodyBytes = 512 << 20
)

// Fetcher downloads a remote resource into memory.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type HTTPFetcherConfig struct {
	Logger    *slog.Logger
	Timeout   time.Duration
	UserAgent string
	// Retries is the number of extra attempts after a failed fetch. Zero disables retrying.
	Retries int
	// Client overrides the default gzip-aware client.
	Client *http.Client
}

func (c *HTTPFetcherConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries cannot be negative")
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Client == nil {
		c.Client = newHTTP(c.Timeout)
	}
	return nil
}

type HTTPFetcher struct {
	log *slog.Logger
	cfg HTTPFetcherConfig
}

func NewHTTPFetcher(cfg HTTPFetcherConfig) (*HTTPFetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPFetcher{log: cfg.Logger, cfg: cfg}, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		// Client errors will not change on retry.
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	if f.cfg.Retries == 0 {
		body, err := f.fetchOnce(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(f.cfg.Retries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			f.log.Warn("source: fetch failed, retrying", "url", url, "attempt", attempt, "next", next, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", url, attempt, err)
	}
	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)
	}

	f.log.Debug("source: fetched", "url", url, "bytes", len(body), "duration", time.Since(start).String())
	return body, nil
}

func newHTTP(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: defaultKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: gzhttp.Transport(tr),
	}
}
