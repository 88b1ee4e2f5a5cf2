package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakePage is one scripted page of a Fake browser
type FakePage struct {
	URL  string
	HTML string
	// Attrs maps "selector@attribute" to the values of every match
	Attrs map[string][]string
	// Present lists selectors that match without carrying attributes
	Present map[string]bool
	// Clickable lists selectors that WaitClickable accepts
	Clickable map[string]bool
}

// Key builds a FakePage.Attrs key
func Key(selector, attr string) string {
	return selector + "@" + attr
}

// NewFakePage creates an empty page at url
func NewFakePage(url string) *FakePage {
	return &FakePage{
		URL:       url,
		Attrs:     make(map[string][]string),
		Present:   make(map[string]bool),
		Clickable: make(map[string]bool),
	}
}

// Fake is an in-memory Controller for tests. Pages are looked up by URL on
// Navigate; hooks let tests script what clicks and key presses do.
type Fake struct {
	mu      sync.Mutex
	pages   map[string]*FakePage
	current *FakePage

	// OnClick runs when selector is clicked
	OnClick map[string]func(f *Fake) error
	// OnKeys runs after text is sent to selector
	OnKeys func(f *Fake, selector, text string) error
	// NavigateErr fails navigations to the given URLs
	NavigateErr map[string]error

	Navigations []string
	Clicks      []string
	Typed       map[string]string
	Closed      bool
}

// NewFake creates a fake browser holding pages
func NewFake(pages ...*FakePage) *Fake {
	f := &Fake{
		pages:       make(map[string]*FakePage),
		OnClick:     make(map[string]func(f *Fake) error),
		NavigateErr: make(map[string]error),
		Typed:       make(map[string]string),
	}
	for _, p := range pages {
		f.pages[p.URL] = p
	}
	return f
}

// AddPage registers or replaces a page
func (f *Fake) AddPage(p *FakePage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[p.URL] = p
}

// Show makes the page at url current without recording a navigation
func (f *Fake) Show(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.lookup(url)
}

// Current returns the page on screen
func (f *Fake) Current() *FakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Fake) lookup(url string) *FakePage {
	if p, ok := f.pages[url]; ok {
		return p
	}
	p := NewFakePage(url)
	f.pages[url] = p
	return p
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigations = append(f.Navigations, url)
	if err := f.NavigateErr[url]; err != nil {
		return err
	}
	f.current = f.lookup(url)
	return nil
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return "about:blank", nil
	}
	return f.current.URL, nil
}

func (f *Fake) SendKeys(ctx context.Context, selector, text string) error {
	f.mu.Lock()
	if !f.matches(selector) {
		f.mu.Unlock()
		return fmt.Errorf("send keys to %s: %w", selector, ErrTimeout)
	}
	f.Typed[selector] += text
	hook := f.OnKeys
	f.mu.Unlock()

	if hook != nil {
		return hook(f, selector, text)
	}
	return nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if !f.matches(selector) {
		f.mu.Unlock()
		return fmt.Errorf("click %s: %w", selector, ErrTimeout)
	}
	f.Clicks = append(f.Clicks, selector)
	hook := f.OnClick[selector]
	f.mu.Unlock()

	if hook != nil {
		return hook(f)
	}
	return nil
}

// WaitURLChange never sleeps; the URL either already changed or it times out
func (f *Fake) WaitURLChange(ctx context.Context, from string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	current, _ := f.CurrentURL(ctx)
	if current == from {
		return "", ErrTimeout
	}
	return current, nil
}

func (f *Fake) WaitClickable(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil || !f.current.Clickable[selector] {
		return ErrTimeout
	}
	return nil
}

func (f *Fake) Attribute(ctx context.Context, selector, name string) (string, error) {
	values, err := f.Attributes(ctx, selector, name)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return values[0], nil
}

func (f *Fake) Attributes(ctx context.Context, selector, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	values := f.current.Attrs[Key(selector, name)]
	out := make([]string, len(values))
	copy(out, values)
	return out, nil
}

func (f *Fake) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return "", nil
	}
	return f.current.HTML, nil
}

func (f *Fake) Exists(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches(selector), nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// matches must be called with mu held
func (f *Fake) matches(selector string) bool {
	if f.current == nil {
		return false
	}
	if f.current.Present[selector] || f.current.Clickable[selector] {
		return true
	}
	prefix := selector + "@"
	for key, values := range f.current.Attrs {
		if len(values) > 0 && len(key) > len(prefix) && key[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
