package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cyarchive/pkg/logger"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// Options configures the Chrome controller
type Options struct {
	Headless    bool
	ExecPath    string
	UserDataDir string
	UserAgent   string
	// WaitTimeout bounds element lookups and clicks
	WaitTimeout time.Duration
	// PageTimeout bounds navigations
	PageTimeout time.Duration
}

// Chrome implements Controller on chromedp
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
	logger      logger.Logger
}

// NewChrome launches a browser and opens one tab
func NewChrome(opts Options, log logger.Logger) (*Chrome, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 6 * opts.WaitTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(1280, 1024),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// The first Run starts the browser
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.InfoWithFields("Browser started", map[string]interface{}{
		"headless": opts.Headless,
	})

	return &Chrome{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		logger:      log,
	}, nil
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}

// Navigate loads url in the tab and waits for the page load event
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	c.logger.WithField("url", url).Debug("Navigating")
	if err := c.run(ctx, c.opts.PageTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the location of the tab
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := c.run(ctx, c.opts.WaitTimeout, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// SendKeys types text into the first element matching selector
func (c *Chrome) SendKeys(ctx context.Context, selector, text string) error {
	err := c.run(ctx, c.opts.WaitTimeout, chromedp.SendKeys(selector, text, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("send keys to %s: %w", selector, err)
	}
	return nil
}

// Click clicks the first visible element matching selector
func (c *Chrome) Click(ctx context.Context, selector string) error {
	err := c.run(ctx, c.opts.WaitTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// WaitURLChange polls the location until it differs from from. It returns
// ErrTimeout when timeout passes first.
func (c *Chrome) WaitURLChange(ctx context.Context, from string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		current, err := c.CurrentURL(ctx)
		if err != nil && !errors.Is(err, ErrTimeout) {
			return "", err
		}
		if err == nil && current != from {
			return current, nil
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitClickable blocks until selector is visible and enabled, or timeout
func (c *Chrome) WaitClickable(ctx context.Context, selector string, timeout time.Duration) error {
	return c.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.WaitEnabled(selector, chromedp.ByQuery),
	)
}

// nodes returns every match without waiting for one to appear
func (c *Chrome) nodes(ctx context.Context, selector string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := c.run(ctx, c.opts.WaitTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	return nodes, nil
}

// Attribute reads name from the first element matching selector
func (c *Chrome) Attribute(ctx context.Context, selector, name string) (string, error) {
	nodes, err := c.nodes(ctx, selector)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return nodes[0].AttributeValue(name), nil
}

// Attributes reads name from every element matching selector, in document
// order
func (c *Chrome) Attributes(ctx context.Context, selector, name string) ([]string, error) {
	nodes, err := c.nodes(ctx, selector)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		values = append(values, n.AttributeValue(name))
	}
	return values, nil
}

// HTML returns the outer HTML of the current document
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, c.opts.WaitTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// Exists reports whether any element matches selector right now
func (c *Chrome) Exists(ctx context.Context, selector string) (bool, error) {
	nodes, err := c.nodes(ctx, selector)
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// Close shuts the tab and the browser process
func (c *Chrome) Close() error {
	c.cancel()
	c.allocCancel()
	c.logger.Debug("Browser closed")
	return nil
}
