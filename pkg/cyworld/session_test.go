package cyworld

import (
	"context"
	"testing"
	"time"

	"cyarchive/pkg/browser"
	errs "cyarchive/pkg/errors"
	"cyarchive/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "https://cy.example"

// loginSite scripts a home page whose login form redirects to a landing page
func loginSite(href string) *browser.Fake {
	home := browser.NewFakePage(base)
	home.Present[EmailInputSelector] = true
	home.Present[PasswordInputSelector] = true

	landing := browser.NewFakePage(base + "/main")
	if href != "" {
		landing.Attrs[browser.Key(ProfileLinkSelector, "href")] = []string{href}
	}
	landing.Present[HomeButtonSelector] = true

	f := browser.NewFake(home, landing, browser.NewFakePage(base+"/home/33445566"))
	f.OnKeys = func(f *browser.Fake, selector, text string) error {
		if selector == PasswordInputSelector && text == "secret"+browser.Enter {
			f.Show(base + "/main")
		}
		return nil
	}
	f.OnClick[HomeButtonSelector] = func(f *browser.Fake) error {
		f.Show(base + "/home/33445566")
		return nil
	}
	return f
}

func TestAuthenticate(t *testing.T) {
	f := loginSite(base + "/home/33445566")
	s := NewSession(f, base+"/", time.Second, logger.NewNopLogger())

	user, err := s.Authenticate(context.Background(), Credentials{Email: "me@x", Password: "secret"})
	require.NoError(t, err)

	assert.Equal(t, "33445566", user.UserID)
	assert.Equal(t, base+"/home/33445566", user.HomeURL)
	assert.Equal(t, "me@x", f.Typed[EmailInputSelector])
	assert.Equal(t, base+"/home/33445566/post/77/layer", user.PostURL(base, "77"))

	require.NoError(t, s.NavigateHome(context.Background()))
	assert.Equal(t, base+"/home/33445566", f.Current().URL)
}

func TestAuthenticateTimeout(t *testing.T) {
	f := loginSite(base + "/home/1")
	s := NewSession(f, base, time.Second, logger.NewNopLogger())

	_, err := s.Authenticate(context.Background(), Credentials{Email: "me@x", Password: "wrong"})
	assert.ErrorIs(t, err, errs.ErrAuthTimeout)
}

func TestAuthenticateMissingForm(t *testing.T) {
	f := browser.NewFake(browser.NewFakePage(base))
	s := NewSession(f, base, time.Second, logger.NewNopLogger())

	_, err := s.Authenticate(context.Background(), Credentials{Email: "a", Password: "b"})
	assert.ErrorIs(t, err, errs.ErrAuthTimeout)
}

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name    string
		href    string
		want    string
		wantErr bool
	}{
		{name: "absolute", href: "https://cy.cyworld.com/home/123", want: "123"},
		{name: "relative", href: "/home/abc", want: "abc"},
		{name: "trailing slash", href: "/home/456/", want: "456"},
		{name: "missing link", href: "", wantErr: true},
		{name: "no segment", href: "/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browser.NewFakePage(base)
			if tt.href != "" {
				page.Attrs[browser.Key(ProfileLinkSelector, "href")] = []string{tt.href}
			}
			f := browser.NewFake(page)
			f.Show(base)

			id, err := NewSession(f, base, time.Second, logger.NewNopLogger()).ResolveIdentity(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.ErrIdentityNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestNavigateHomeTimeout(t *testing.T) {
	page := browser.NewFakePage(base + "/main")
	f := browser.NewFake(page)
	f.Show(base + "/main")

	err := NewSession(f, base, time.Second, logger.NewNopLogger()).NavigateHome(context.Background())
	assert.ErrorIs(t, err, errs.ErrAuthTimeout)
}

func TestURLs(t *testing.T) {
	assert.Equal(t, "https://cy.cyworld.com/home/u1", HomeURL(DefaultBaseURL+"/", "u1"))
	assert.Equal(t, "https://cy.cyworld.com/home/u1/post/c9/layer", PostURL(DefaultBaseURL, "u1", "c9"))
}
