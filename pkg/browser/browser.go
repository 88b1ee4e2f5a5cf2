// Package browser drives a real browser session for pages that only render
// behind a logged-in session.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp/kb"
)

var (
	// ErrTimeout is returned when a bounded wait elapses
	ErrTimeout = errors.New("browser: wait timed out")
	// ErrNotFound is returned when a selector matches nothing
	ErrNotFound = errors.New("browser: element not found")
)

// Enter submits a form when appended to SendKeys text
const Enter = kb.Enter

// Controller is the subset of browser automation the archiver needs. All
// selectors are CSS selectors.
type Controller interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	SendKeys(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	// WaitURLChange blocks until the URL differs from from and returns it
	WaitURLChange(ctx context.Context, from string, timeout time.Duration) (string, error)
	WaitClickable(ctx context.Context, selector string, timeout time.Duration) error
	// Attribute reads name from the first match, ErrNotFound when nothing matches
	Attribute(ctx context.Context, selector, name string) (string, error)
	// Attributes reads name from every match in document order
	Attributes(ctx context.Context, selector, name string) ([]string, error)
	HTML(ctx context.Context) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Close() error
}

// IsWaitFailure reports whether err means an element or page never showed up
func IsWaitFailure(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNotFound)
}
