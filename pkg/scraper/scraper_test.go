package scraper

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cyarchive/pkg/browser"
	"cyarchive/pkg/checkpoint"
	"cyarchive/pkg/config"
	"cyarchive/pkg/cyworld"
	errs "cyarchive/pkg/errors"
	"cyarchive/pkg/logger"
	"cyarchive/pkg/ui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	base   = "https://cy.example"
	userID = "33445566"
)

var creds = cyworld.Credentials{Email: "me@example.com", Password: "secret"}

const livePost = `<div class="view1"><h3 id="cyTitle">봄 소풍</h3>
<p class="info">2015.03.10 14:22 PUBLIC</p></div>
<div id="contentArea">
<section class="imageBox"><img src="http://img.example/a.jpg"></section>
<section class="textBox"><p>벚꽃</p></section>
</div>`

const deletedPost = `<div class="errorPage"><p>삭제된 게시물입니다.</p></div>`

// site scripts the login form, the landing page, a one-page feed and the
// post layers for ids
func site(posts map[string]string, ids ...string) *browser.Fake {
	home := browser.NewFakePage(base)
	home.Present[cyworld.EmailInputSelector] = true
	home.Present[cyworld.PasswordInputSelector] = true

	landing := browser.NewFakePage(base + "/main")
	landing.Attrs[browser.Key(cyworld.ProfileLinkSelector, "href")] = []string{base + "/home/" + userID}
	landing.Present[cyworld.HomeButtonSelector] = true

	feed := browser.NewFakePage(cyworld.HomeURL(base, userID))
	feed.Attrs[browser.Key(cyworld.ContentIDSelector, "value")] = ids

	f := browser.NewFake(home, landing, feed)
	for id, markup := range posts {
		page := browser.NewFakePage(cyworld.PostURL(base, userID, id))
		page.HTML = markup
		f.AddPage(page)
	}

	f.OnKeys = func(f *browser.Fake, selector, text string) error {
		if selector == cyworld.PasswordInputSelector && text == creds.Password+browser.Enter {
			f.Show(base + "/main")
		}
		return nil
	}
	f.OnClick[cyworld.HomeButtonSelector] = func(f *browser.Fake) error {
		f.Show(cyworld.HomeURL(base, userID))
		return nil
	}
	return f
}

type fakeImages struct{ fetched []string }

func (f *fakeImages) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.fetched = append(f.fetched, url)
	return []byte("jpeg bytes"), nil
}

type sleeps struct{ total time.Duration }

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.total += d
	return ctx.Err()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = base
	cfg.Browser.WaitTimeout = time.Second
	cfg.Crawl.IDSetFile = filepath.Join(dir, "contents_ids.txt")
	cfg.Download.CompletionSetFile = filepath.Join(dir, "downloaded_ids.txt")
	cfg.Output.BaseDirectory = filepath.Join(dir, "archive")
	return cfg
}

func newScraper(t *testing.T, cfg *config.Config, b browser.Controller, images *fakeImages) *Scraper {
	t.Helper()
	ui.SetOutput(io.Discard)
	t.Cleanup(func() { ui.SetOutput(nil) })

	s, err := New(cfg, Deps{
		Browser: b,
		Images:  images,
		Sleep:   (&sleeps{}).sleep,
		Logger:  logger.NewNopLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunArchivesFeed(t *testing.T) {
	cfg := testConfig(t)
	f := site(map[string]string{"10": livePost, "11": deletedPost}, "10", "11")
	images := &fakeImages{}
	s := newScraper(t, cfg, f, images)

	summary, err := s.Run(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Downloaded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, userID, s.User().UserID)
	assert.Equal(t, []string{"http://img.example/a.jpg"}, images.fetched)

	report, err := s.Verify()
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 1, report.Archived)
	assert.Equal(t, []string{"11"}, report.Unarchived)
	assert.Equal(t, 0, report.Pending)
}

func TestRunIsResumable(t *testing.T) {
	cfg := testConfig(t)
	posts := map[string]string{"10": livePost, "11": livePost}

	first := newScraper(t, cfg, site(posts, "10"), &fakeImages{})
	summary, err := first.Run(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Downloaded)
	require.NoError(t, first.Close())

	// The first run was cut short before the second post loaded
	f := site(posts, "10", "11")
	second := newScraper(t, cfg, f, &fakeImages{})
	summary, err = second.Run(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Downloaded)
	assert.Equal(t, 1, summary.AlreadyComplete)
	assert.NotContains(t, f.Navigations, cyworld.PostURL(base, userID, "10"))
	assert.Contains(t, f.Navigations, cyworld.PostURL(base, userID, "11"))

	ids, err := checkpoint.Open(cfg.Crawl.IDSetFile)
	require.NoError(t, err)
	defer ids.Close()
	assert.Equal(t, []string{"10", "11"}, ids.Items())
}

func TestPhasesNeedLogin(t *testing.T) {
	s := newScraper(t, testConfig(t), site(nil), &fakeImages{})

	_, err := s.Crawl(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	_, err = s.Download(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLoginTimeout(t *testing.T) {
	s := newScraper(t, testConfig(t), site(nil), &fakeImages{})

	_, err := s.Login(context.Background(), cyworld.Credentials{Email: "me@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, errs.ErrAuthTimeout)
	assert.Nil(t, s.User())
}

func TestVerifyReportsBrokenSidecars(t *testing.T) {
	cfg := testConfig(t)
	s := newScraper(t, cfg, site(nil), &fakeImages{})

	broken := filepath.Join(cfg.Output.BaseDirectory, "2015", "03", "lost_1.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(broken), 0755))
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0644))

	report, err := s.Verify()
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{broken}, report.Broken)
}

func TestCloseShutsBrowser(t *testing.T) {
	f := site(nil)
	s := newScraper(t, testConfig(t), f, &fakeImages{})

	require.NoError(t, s.Close())
	assert.True(t, f.Closed)
}
