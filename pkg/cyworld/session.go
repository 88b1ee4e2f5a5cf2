package cyworld

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cyarchive/pkg/browser"
	errs "cyarchive/pkg/errors"
	"cyarchive/pkg/logger"
)

// Credentials is the login pair
type Credentials struct {
	Email    string
	Password string
}

// UserContext identifies the logged-in user
type UserContext struct {
	UserID  string
	HomeURL string
}

// PostURL builds the single-post address for this user
func (u *UserContext) PostURL(baseURL, contentID string) string {
	return PostURL(baseURL, u.UserID, contentID)
}

// Session logs in and moves the browser to the user's feed
type Session struct {
	browser browser.Controller
	baseURL string
	wait    time.Duration
	logger  logger.Logger
}

// NewSession creates a session on b. wait bounds every redirect.
func NewSession(b browser.Controller, baseURL string, wait time.Duration, log logger.Logger) *Session {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Session{
		browser: b,
		baseURL: strings.TrimRight(baseURL, "/"),
		wait:    wait,
		logger:  log.WithField("component", "session"),
	}
}

// BaseURL returns the site root the session works against
func (s *Session) BaseURL() string {
	return s.baseURL
}

// Authenticate submits the login form and resolves the user's identity.
// It fails with errors.ErrAuthTimeout when no redirect follows the submit.
func (s *Session) Authenticate(ctx context.Context, creds Credentials) (*UserContext, error) {
	s.logger.Info("Opening home page")
	if err := s.browser.Navigate(ctx, s.baseURL); err != nil {
		return nil, err
	}
	before, err := s.browser.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Logging in")
	if err := s.browser.SendKeys(ctx, EmailInputSelector, creds.Email); err != nil {
		return nil, s.timeout("login form", err)
	}
	if err := s.browser.SendKeys(ctx, PasswordInputSelector, creds.Password+browser.Enter); err != nil {
		return nil, s.timeout("login form", err)
	}
	if _, err := s.browser.WaitURLChange(ctx, before, s.wait); err != nil {
		return nil, s.timeout("login redirect", err)
	}

	userID, err := s.ResolveIdentity(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", userID).Info("Logged in")

	return &UserContext{UserID: userID, HomeURL: HomeURL(s.baseURL, userID)}, nil
}

// ResolveIdentity reads the user id from the profile link's last path segment
func (s *Session) ResolveIdentity(ctx context.Context) (string, error) {
	href, err := s.browser.Attribute(ctx, ProfileLinkSelector, "href")
	if err != nil {
		if browser.IsWaitFailure(err) {
			return "", errs.Wrap(errs.ErrorTypeIdentityNotFound, err, "profile link %s", ProfileLinkSelector)
		}
		return "", err
	}

	id := lastSegment(href)
	if id == "" {
		return "", errs.New(errs.ErrorTypeIdentityNotFound, "profile link %q has no user id", href)
	}
	return id, nil
}

// NavigateHome clicks through to the user's own feed
func (s *Session) NavigateHome(ctx context.Context) error {
	before, err := s.browser.CurrentURL(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("Moving to home feed")
	if err := s.browser.Click(ctx, HomeButtonSelector); err != nil {
		return s.timeout("home button", err)
	}
	if _, err := s.browser.WaitURLChange(ctx, before, s.wait); err != nil {
		return s.timeout("home redirect", err)
	}
	return nil
}

// timeout maps wait failures to ErrAuthTimeout and passes other errors through
func (s *Session) timeout(step string, err error) error {
	if browser.IsWaitFailure(err) {
		return errs.Wrap(errs.ErrorTypeAuthTimeout, err, "%s", step)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w", step, err)
}

func lastSegment(href string) string {
	path := href
	if u, err := url.Parse(href); err == nil {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}
