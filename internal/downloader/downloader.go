package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	errs "cyarchive/pkg/errors"
	"cyarchive/pkg/logger"
	"cyarchive/pkg/metadata"
	"cyarchive/pkg/models"
	"cyarchive/pkg/retry"
	"cyarchive/pkg/storage"
)

// ImageExtensions are the extensions treated as real images. Anything else
// is the site's placeholder for a lost upload.
var ImageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true, "webp": true,
}

// PageSource loads a post page and returns its markup
type PageSource interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
}

// PostParser turns markup into a post
type PostParser interface {
	Parse(markup, id string) (*models.Post, error)
}

// ImageFetcher downloads one image
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PostStorage writes images and rendered posts into the archive
type PostStorage interface {
	SaveImage(post *models.Post, index int, ext string, r io.Reader) (string, error)
	SavePost(post *models.Post, document []byte) (string, error)
}

// Renderer produces the archived document
type Renderer interface {
	Render(post *models.Post) []byte
}

// IDSet is a persisted identifier set
type IDSet interface {
	Items() []string
	Has(id string) bool
	Add(id string) (bool, error)
	Len() int
}

// Deps are the collaborators of a Downloader
type Deps struct {
	Pages    PageSource
	Parser   PostParser
	Images   ImageFetcher
	Storage  PostStorage
	Renderer Renderer
	// IDs is read, Done is appended to
	IDs  IDSet
	Done IDSet
	// PostURL maps a content id to its single-post page
	PostURL func(id string) string
	// IsDeleted recognises the error page served for removed posts
	IsDeleted func(markup string) bool
	Logger    logger.Logger
}

// Options tunes the downloader
type Options struct {
	Policy retry.Policy
	// Delay is slept between two posts
	Delay time.Duration
	// Sidecars writes a metadata JSON next to every post
	Sidecars bool
}

// Result describes what happened to one post
type Result struct {
	ID            string
	Outcome       retry.Outcome
	Path          string
	Attempts      int
	Images        int
	SkippedImages int
	Duration      time.Duration
	Err           error
}

// Summary counts the outcomes of DownloadAll
type Summary struct {
	Downloaded      int
	Skipped         int
	Failed          int
	AlreadyComplete int
}

// Processed is the number of posts this run touched
func (s Summary) Processed() int {
	return s.Downloaded + s.Skipped + s.Failed
}

// Downloader archives posts one at a time
type Downloader struct {
	deps   Deps
	opts   Options
	sleep  retry.Sleeper
	logger logger.Logger

	// OnResult is called after every post that was not already complete
	OnResult func(Result)
}

// New creates a downloader
func New(deps Deps, opts Options) *Downloader {
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{
		deps:   deps,
		opts:   opts,
		sleep:  retry.Wait,
		logger: log.WithField("component", "downloader"),
	}
}

// SetSleeper replaces the sleeper used for backoff and courtesy delays
func (d *Downloader) SetSleeper(s retry.Sleeper) {
	d.sleep = s
}

// Pending returns identifiers not yet completed, in crawl order
func (d *Downloader) Pending() []string {
	var pending []string
	for _, id := range d.deps.IDs.Items() {
		if !d.deps.Done.Has(id) {
			pending = append(pending, id)
		}
	}
	return pending
}

// DownloadAll walks the identifier set and downloads every identifier that
// is not complete yet. It stops early only on cancellation or a fatal error.
func (d *Downloader) DownloadAll(ctx context.Context) (Summary, error) {
	var summary Summary
	items := d.deps.IDs.Items()

	logger.LogComponentStart(d.logger, "downloader", map[string]interface{}{
		"known":     len(items),
		"completed": d.deps.Done.Len(),
	})

	first := true
	for _, id := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if d.deps.Done.Has(id) {
			summary.AlreadyComplete++
			continue
		}

		if !first {
			if err := d.sleep(ctx, d.opts.Delay); err != nil {
				return summary, err
			}
		}
		first = false

		res, err := d.DownloadOne(ctx, id)
		switch res.Outcome {
		case retry.Succeeded:
			summary.Downloaded++
		case retry.Skipped:
			summary.Skipped++
		case retry.Failed:
			summary.Failed++
		}
		if d.OnResult != nil {
			d.OnResult(res)
		}
		if err != nil {
			return summary, err
		}
	}

	logger.LogComponentStop(d.logger, "downloader", "all identifiers visited")
	return summary, nil
}

// DownloadOne fetches, parses and archives a single post. The returned error
// is non-nil only for fatal outcomes; a Failed outcome is left for the next
// run and reported through Result.Err.
func (d *Downloader) DownloadOne(ctx context.Context, id string) (Result, error) {
	start := time.Now()
	pageURL := d.deps.PostURL(id)
	log := d.logger.WithField("content_id", id)

	var (
		markup string
		post   *models.Post
	)
	attempt := func(ctx context.Context, n int) error {
		markup, post = "", nil
		if err := d.deps.Pages.Navigate(ctx, pageURL); err != nil {
			return errs.Wrap(errs.ErrorTypeNetwork, err, "open post %s", id)
		}
		html, err := d.deps.Pages.HTML(ctx)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeNetwork, err, "read post %s", id)
		}
		markup = html

		post, err = d.deps.Parser.Parse(html, id)
		return err
	}
	deleted := func(ctx context.Context) (bool, error) {
		if d.deps.IsDeleted == nil {
			return false, nil
		}
		return d.deps.IsDeleted(markup), nil
	}

	policy := d.opts.Policy
	policy.Sleep = d.sleep
	policy.Logger = log
	policy.RetryIf = retryable
	run := policy.Run(ctx, attempt, deleted)

	res := Result{ID: id, Outcome: run.Outcome, Attempts: run.Attempts, Err: run.Err}

	switch run.Outcome {
	case retry.Succeeded:
		path, saved, skipped, err := d.persist(ctx, post, pageURL, log)
		if err != nil {
			res.Outcome, res.Err = retry.Fatal, err
			break
		}
		res.Path, res.Images, res.SkippedImages, res.Err = path, saved, skipped, nil
		if err := d.markDone(id); err != nil {
			res.Outcome, res.Err = retry.Fatal, err
		}

	case retry.Skipped:
		log.Warn("Post looks deleted, marking complete")
		if err := d.markDone(id); err != nil {
			res.Outcome, res.Err = retry.Fatal, err
		}

	case retry.Failed:
		log.WithError(run.Err).WithField("attempts", run.Attempts).Error("Giving up on post for this run")
	}

	res.Duration = time.Since(start)
	logger.LogPost(log, id, res.Outcome.String(), fatalErr(res))
	return res, fatalErr(res)
}

func fatalErr(res Result) error {
	if res.Outcome == retry.Fatal {
		return res.Err
	}
	return nil
}

// retryable covers markup that is not ready yet and flaky page loads
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch errs.TypeOf(err) {
	case errs.ErrorTypeStructureMismatch, errs.ErrorTypeNetwork:
		return true
	}
	return false
}

func (d *Downloader) markDone(id string) error {
	if _, err := d.deps.Done.Add(id); err != nil {
		return fmt.Errorf("record completion of %s: %w", id, err)
	}
	return nil
}

// persist resolves images and writes the post. Images that are placeholders
// or fail to download are left out; only a storage failure aborts the post.
func (d *Downloader) persist(ctx context.Context, post *models.Post, pageURL string, log logger.Logger) (string, int, int, error) {
	skipped := make(map[int]string)
	saved := 0

	for n, i := range post.Images() {
		block := &post.Blocks[i]
		src := resolve(pageURL, block.SourceURL)
		ext := storage.ImageExt(src)

		if !ImageExtensions[ext] {
			log.WithField("src", src).Warn("Skipping placeholder image")
			skipped[i] = "placeholder"
			continue
		}

		data, err := d.deps.Images.Fetch(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return "", saved, len(skipped), ctx.Err()
			}
			log.WithError(err).WithField("src", src).Warn("Skipping image that failed to download")
			skipped[i] = err.Error()
			continue
		}

		name, err := d.deps.Storage.SaveImage(post, n, ext, bytes.NewReader(data))
		if err != nil {
			return "", saved, len(skipped), err
		}
		block.Path, block.Ext = name, ext
		saved++
	}

	path, err := d.deps.Storage.SavePost(post, d.deps.Renderer.Render(post))
	if err != nil {
		return "", saved, len(skipped), err
	}

	if d.opts.Sidecars {
		if err := metadata.FromPost(post, pageURL, path, skipped).Save(path); err != nil {
			return "", saved, len(skipped), err
		}
	}

	return path, saved, len(skipped), nil
}

// resolve makes protocol-relative and relative image sources absolute
func resolve(pageURL, src string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
