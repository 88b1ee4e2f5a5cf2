// Package crawler walks the home feed's "load more" pagination and records
// every content identifier it sees.
package crawler

import (
	"context"
	"fmt"
	"time"

	"cyarchive/pkg/browser"
	"cyarchive/pkg/checkpoint"
	"cyarchive/pkg/cyworld"
	"cyarchive/pkg/logger"
	"cyarchive/pkg/retry"
)

// State is a step of the crawl loop
type State int

const (
	AwaitingPage State = iota
	ExtractingIDs
	AdvancingPage
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingPage:
		return "awaiting_page"
	case ExtractingIDs:
		return "extracting_ids"
	case AdvancingPage:
		return "advancing_page"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IDStore is the persisted identifier set the crawler appends to
type IDStore interface {
	Add(id string) (bool, error)
	Len() int
}

// Options tunes the crawl
type Options struct {
	// Wait bounds how long the load-more control may take to appear
	Wait time.Duration
	// PageDelay is slept before every click on load-more
	PageDelay time.Duration
	// MaxPages stops after that many extracted pages; 0 means no limit
	MaxPages int
}

// Stats summarises a crawl
type Stats struct {
	Pages int
	Seen  int
	Added int
}

// Crawler runs the pagination state machine on an already opened feed
type Crawler struct {
	browser browser.Controller
	ids     IDStore
	opts    Options
	sleep   retry.Sleeper
	logger  logger.Logger

	// OnAdded is called after each identifier is durably recorded
	OnAdded func(id string, total int)
}

// New creates a crawler writing into ids
func New(b browser.Controller, ids IDStore, opts Options, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{
		browser: b,
		ids:     ids,
		opts:    opts,
		sleep:   retry.Wait,
		logger:  log.WithField("component", "crawler"),
	}
}

// SetSleeper replaces the page delay sleeper
func (c *Crawler) SetSleeper(s retry.Sleeper) {
	c.sleep = s
}

// Run crawls until the feed is exhausted. A missing or stuck load-more
// control ends the crawl normally; only cancellation and unexpected browser
// errors are returned.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	state := AwaitingPage
	lastPage := false

	logger.LogComponentStart(c.logger, "crawler", map[string]interface{}{
		"known_ids": c.ids.Len(),
		"max_pages": c.opts.MaxPages,
	})

	for state != Done {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		switch state {
		case AwaitingPage:
			err := c.browser.WaitClickable(ctx, cyworld.LoadMoreSelector, c.opts.Wait)
			switch {
			case err == nil:
				state = ExtractingIDs
			case browser.IsWaitFailure(err):
				// No more pages; the identifiers already on screen still count
				lastPage = true
				state = ExtractingIDs
			default:
				return stats, fmt.Errorf("wait for %s: %w", cyworld.LoadMoreSelector, err)
			}

		case ExtractingIDs:
			seen, added, err := c.extract(ctx)
			if err != nil {
				return stats, err
			}
			stats.Pages++
			stats.Seen += seen
			stats.Added += added

			c.logger.InfoWithFields("Page extracted", map[string]interface{}{
				"page":  stats.Pages,
				"added": added,
				"total": c.ids.Len(),
			})

			switch {
			case lastPage:
				state = Done
			case c.opts.MaxPages > 0 && stats.Pages >= c.opts.MaxPages:
				c.logger.Info("Page limit reached")
				state = Done
			default:
				state = AdvancingPage
			}

		case AdvancingPage:
			if err := c.sleep(ctx, c.opts.PageDelay); err != nil {
				return stats, err
			}
			err := c.browser.Click(ctx, cyworld.LoadMoreSelector)
			switch {
			case err == nil:
				state = AwaitingPage
			case browser.IsWaitFailure(err):
				state = Done
			default:
				return stats, fmt.Errorf("click %s: %w", cyworld.LoadMoreSelector, err)
			}
		}
	}

	logger.LogComponentStop(c.logger, "crawler", "feed exhausted")
	return stats, nil
}

// extract records the identifiers on the page beyond the ones already known.
// The feed only grows at the bottom, so the set size is the offset of the
// first unseen entry.
func (c *Crawler) extract(ctx context.Context) (seen, added int, err error) {
	values, err := c.browser.Attributes(ctx, cyworld.ContentIDSelector, "value")
	if err != nil {
		return 0, 0, fmt.Errorf("read content ids: %w", err)
	}

	offset := c.ids.Len()
	if offset >= len(values) {
		return 0, 0, nil
	}

	for _, id := range values[offset:] {
		seen++
		if verr := checkpoint.ValidateID(id); verr != nil {
			c.logger.WithError(verr).Warn("Skipping malformed content id")
			continue
		}
		ok, err := c.ids.Add(id)
		if err != nil {
			return seen, added, fmt.Errorf("record content id %s: %w", id, err)
		}
		if ok {
			added++
			if c.OnAdded != nil {
				c.OnAdded(id, c.ids.Len())
			}
		}
	}
	return seen, added, nil
}
