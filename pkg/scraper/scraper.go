package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cyarchive/internal/downloader"
	"cyarchive/pkg/browser"
	"cyarchive/pkg/checkpoint"
	"cyarchive/pkg/config"
	"cyarchive/pkg/crawler"
	"cyarchive/pkg/cyworld"
	"cyarchive/pkg/fetch"
	"cyarchive/pkg/logger"
	"cyarchive/pkg/metadata"
	"cyarchive/pkg/parser"
	"cyarchive/pkg/ratelimit"
	"cyarchive/pkg/render"
	"cyarchive/pkg/retry"
	"cyarchive/pkg/storage"
	"cyarchive/pkg/ui"
)

// ErrNotLoggedIn is returned by phases that need a resolved user
var ErrNotLoggedIn = errors.New("not logged in")

// Deps overrides the collaborators New would otherwise build from the config
type Deps struct {
	// Browser is used instead of launching Chrome
	Browser browser.Controller
	// Images is used instead of the HTTP image client
	Images downloader.ImageFetcher
	// Sleep replaces every real sleep
	Sleep    retry.Sleeper
	Notifier *ui.Notifier
	Logger   logger.Logger
}

// Scraper owns the browser, the two persisted sets and the archive tree for
// the lifetime of a run and drives Session → Crawl → Download.
type Scraper struct {
	config   *config.Config
	logger   logger.Logger
	browser  browser.Controller
	session  *cyworld.Session
	user     *cyworld.UserContext
	ids      *checkpoint.Set
	done     *checkpoint.Set
	storage  *storage.Manager
	renderer *render.Renderer
	images   downloader.ImageFetcher
	notifier *ui.Notifier
	sleep    retry.Sleeper
}

// New opens both sets and the archive directory. The browser is launched
// lazily by Login.
func New(cfg *config.Config, deps Deps) (*Scraper, error) {
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "scraper")

	ids, err := checkpoint.Open(cfg.Crawl.IDSetFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open identifier set: %w", err)
	}
	done, err := checkpoint.Open(cfg.Download.CompletionSetFile)
	if err != nil {
		ids.Close()
		return nil, fmt.Errorf("failed to open completion set: %w", err)
	}

	s := &Scraper{
		config:   cfg,
		logger:   log,
		browser:  deps.Browser,
		ids:      ids,
		done:     done,
		images:   deps.Images,
		notifier: deps.Notifier,
		sleep:    deps.Sleep,
	}
	if s.sleep == nil {
		s.sleep = retry.Wait
	}
	if s.notifier == nil {
		s.notifier = ui.NewNotifierWithSender(nil)
	}

	if s.storage, err = storage.NewManager(cfg.Output.BaseDirectory); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	s.renderer = render.Default()
	if cfg.Output.TemplateFile != "" {
		if s.renderer, err = render.FromFile(cfg.Output.TemplateFile); err != nil {
			s.Close()
			return nil, err
		}
	}

	if s.images == nil {
		client := fetch.NewClient(fetch.Options{
			Timeout:   cfg.Download.ImageTimeout,
			UserAgent: cfg.Site.UserAgent,
			Referer:   cfg.Site.BaseURL,
			Attempts:  cfg.Download.ImageAttempts,
			Limiter:   ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize),
		}, log)
		client.SetSleeper(s.sleep)
		s.images = client
	}

	return s, nil
}

// User returns the logged-in user, or nil before Login
func (s *Scraper) User() *cyworld.UserContext {
	return s.user
}

// Login launches the browser if needed and signs in
func (s *Scraper) Login(ctx context.Context, creds cyworld.Credentials) (*cyworld.UserContext, error) {
	if s.browser == nil {
		chrome, err := browser.NewChrome(browser.Options{
			Headless:    s.config.Browser.Headless,
			ExecPath:    s.config.Browser.ExecPath,
			UserDataDir: s.config.Browser.UserDataDir,
			UserAgent:   s.config.Site.UserAgent,
			WaitTimeout: s.config.Browser.WaitTimeout,
		}, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		s.browser = chrome
	}

	s.session = cyworld.NewSession(s.browser, s.config.Site.BaseURL, s.config.Browser.WaitTimeout, s.logger)
	user, err := s.session.Authenticate(ctx, creds)
	if err != nil {
		s.logger.WithError(err).Error("Login failed")
		return nil, err
	}
	s.user = user
	return user, nil
}

// Crawl opens the home feed and records every content identifier
func (s *Scraper) Crawl(ctx context.Context) (crawler.Stats, error) {
	if s.user == nil {
		return crawler.Stats{}, ErrNotLoggedIn
	}

	if err := s.session.NavigateHome(ctx); err != nil {
		return crawler.Stats{}, err
	}

	ui.PrintHighlight("\n[SCANNING POST LIST]\n")
	c := crawler.New(s.browser, s.ids, crawler.Options{
		Wait:      s.config.Browser.WaitTimeout,
		PageDelay: s.config.Crawl.PageDelay,
		MaxPages:  s.config.Crawl.MaxPages,
	}, s.logger)
	c.SetSleeper(s.sleep)
	c.OnAdded = func(_ string, total int) { ui.Found(total) }

	stats, err := c.Run(ctx)
	if err != nil {
		return stats, fmt.Errorf("crawl failed: %w", err)
	}

	s.logger.InfoWithFields("Crawl finished", map[string]interface{}{
		"pages": stats.Pages,
		"seen":  stats.Seen,
		"added": stats.Added,
		"known": s.ids.Len(),
	})
	ui.PrintInfo("\nPosts known", fmt.Sprintf("%d (%d new)", s.ids.Len(), stats.Added))
	return stats, nil
}

// Download archives every identifier that is not complete yet
func (s *Scraper) Download(ctx context.Context) (downloader.Summary, error) {
	if s.user == nil {
		return downloader.Summary{}, ErrNotLoggedIn
	}

	baseURL := s.session.BaseURL()
	d := downloader.New(downloader.Deps{
		Pages:     s.browser,
		Parser:    parser.New(s.logger),
		Images:    s.images,
		Storage:   s.storage,
		Renderer:  s.renderer,
		IDs:       s.ids,
		Done:      s.done,
		PostURL:   func(id string) string { return s.user.PostURL(baseURL, id) },
		IsDeleted: parser.IsDeletedPage,
		Logger:    s.logger,
	}, downloader.Options{
		Policy: retry.Policy{
			Initial:        s.config.Retry.InitialBackoff,
			Increment:      s.config.Retry.BackoffIncrement,
			MaxDelay:       s.config.Retry.MaxBackoff,
			GraceThreshold: s.config.Retry.GraceThreshold,
			MaxAttempts:    s.config.Retry.MaxAttempts,
		},
		Delay:    s.config.Download.Delay,
		Sidecars: s.config.Output.Sidecars,
	})
	d.SetSleeper(s.sleep)

	pending := d.Pending()
	ui.PrintHighlight("\n[ARCHIVING POSTS]\n")
	ui.PrintInfo("Pending", fmt.Sprintf("%d of %d", len(pending), s.ids.Len()))

	progress := ui.NewProgress(len(pending), s.config.Logging.Level == "debug")
	d.OnResult = func(r downloader.Result) {
		progress.Post(r.ID, r.Outcome.String(), r.Images, r.Err)
	}

	summary, err := d.DownloadAll(ctx)
	progress.Complete()
	if err != nil {
		s.notifier.SendError("Archive stopped", err.Error())
		return summary, fmt.Errorf("download failed: %w", err)
	}

	s.notifier.SendSuccess("Archive complete", fmt.Sprintf("%d posts archived, %d skipped, %d failed",
		summary.Downloaded, summary.Skipped, summary.Failed))
	return summary, nil
}

// Run logs in, crawls and downloads
func (s *Scraper) Run(ctx context.Context, creds cyworld.Credentials) (downloader.Summary, error) {
	if _, err := s.Login(ctx, creds); err != nil {
		return downloader.Summary{}, err
	}
	if _, err := s.Crawl(ctx); err != nil {
		return downloader.Summary{}, err
	}
	return s.Download(ctx)
}

// Report is the outcome of Verify
type Report struct {
	// Completed is the size of the completion set
	Completed int
	// Archived counts completed identifiers with an intact sidecar and post file
	Archived int
	// Unarchived lists completed identifiers with nothing on disk. Posts
	// skipped as deleted land here too.
	Unarchived []string
	// Orphaned lists archived identifiers missing from the completion set
	Orphaned []string
	// Broken lists sidecars that are unreadable or point at a missing post
	Broken []string
	// Pending counts identifiers not completed yet
	Pending int
}

// OK reports whether the archive matches the completion set
func (r Report) OK() bool {
	return len(r.Orphaned) == 0 && len(r.Broken) == 0
}

// Verify cross-checks the completion set against the sidecars on disk. It
// needs no browser.
func (s *Scraper) Verify() (Report, error) {
	found, broken, err := metadata.Scan(s.storage.GetOutputDir())
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Completed: s.done.Len(),
		Broken:    broken,
		Pending:   len(s.ids.Missing(s.done)),
	}
	for _, id := range s.done.Items() {
		if _, ok := found[id]; ok {
			report.Archived++
			continue
		}
		report.Unarchived = append(report.Unarchived, id)
	}
	for id := range found {
		if !s.done.Has(id) {
			report.Orphaned = append(report.Orphaned, id)
		}
	}
	sort.Strings(report.Orphaned)

	s.logger.InfoWithFields("Archive verified", map[string]interface{}{
		"completed":  report.Completed,
		"archived":   report.Archived,
		"unarchived": len(report.Unarchived),
		"orphaned":   len(report.Orphaned),
		"broken":     len(report.Broken),
	})
	return report, nil
}

// Close shuts the browser down and closes both sets
func (s *Scraper) Close() error {
	var errs []error
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	if s.ids != nil {
		errs = append(errs, s.ids.Close())
	}
	if s.done != nil {
		errs = append(errs, s.done.Close())
	}
	return errors.Join(errs...)
}
