// Package fetch downloads embedded post images over plain HTTP.
package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	errs "cyarchive/pkg/errors"
	"cyarchive/pkg/logger"
	"cyarchive/pkg/ratelimit"
	"cyarchive/pkg/retry"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// maxImageSize guards against endless bodies
const maxImageSize = 64 << 20

// Options configures the image client
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Referer   string
	// Attempts per image, including the first
	Attempts int
	Limiter  ratelimit.Limiter
	Backoff  retry.BackoffStrategy
}

// Client fetches images with rate limiting and bounded retries
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	attempts   int
	backoff    retry.BackoffStrategy
	sleep      retry.Sleeper
	logger     logger.Logger
}

// NewClient creates a new image client
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.DefaultExponentialBackoff()
	}

	headers := map[string]string{
		"User-Agent":      opts.UserAgent,
		"Accept":          "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
		"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8",
	}
	if opts.Referer != "" {
		headers["Referer"] = opts.Referer
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		headers:    headers,
		limiter:    opts.Limiter,
		attempts:   opts.Attempts,
		backoff:    opts.Backoff,
		sleep:      retry.Wait,
		logger:     log.WithField("component", "fetch"),
	}
}

// SetSleeper replaces the backoff sleeper
func (c *Client) SetSleeper(s retry.Sleeper) {
	c.sleep = s
}

// Fetch downloads url, retrying network and server errors
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	return retry.DoWithResult(func() ([]byte, error) {
		return c.fetchOnce(ctx, url)
	}, &retry.Config{
		MaxAttempts: c.attempts,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Sleep:       c.sleep,
		Logger:      c.logger,
	})
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "bad image url %q", url)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "GET %s", url)
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.FromStatus(resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "read body of %s", url)
	}
	if len(data) > maxImageSize {
		return nil, errs.New(errs.ErrorTypeUnknown, "image %s exceeds %d bytes", url, maxImageSize)
	}
	if len(data) == 0 {
		return nil, errs.New(errs.ErrorTypeNetwork, "empty body from %s", url)
	}

	return data, nil
}
