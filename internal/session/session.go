package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// BaseURL is the site all collection requests are scoped to. A
// variable so tests can stand in a local server.
var BaseURL = "https://bandcamp.com"

// ErrNotAuthenticated is returned when the server signals that the
// session credential is missing, expired or invalid (401/403, or a
// redirect to the login page). It is fatal for the whole run and is
// never retried.
var ErrNotAuthenticated = errors.New("session is not authenticated (cookie credential expired or invalid?)")

// JarStore loads and saves the persisted cookie jar. The on-disk format
// is owned by the store; the session only sees http.Cookie values.
type JarStore interface {
	Load() ([]*http.Cookie, error)
	Save(cookies []*http.Cookie) error
}

// Session is an authenticated HTTP client bound to a cookie jar.
//
// A Session is created once per run and shared by all concurrent
// operations. The jar accumulates Set-Cookie values from responses
// transparently; cookiejar.Jar is safe for concurrent use, so callers
// never coordinate around it.
type Session struct {
	client    *http.Client
	jar       http.CookieJar
	store     JarStore
	base      *url.URL
	userAgent string
	log       zerolog.Logger
}

// New builds a Session primed with the cookies held by store.
//
// Returns an error when the store cannot be read or holds no cookies,
// since every collection request requires the identity cookie.
func New(store JarStore, logger zerolog.Logger) (*Session, error) {
	base, err := url.Parse(BaseURL)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	cookies, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("load cookies: %w", ErrNotAuthenticated)
	}
	jar.SetCookies(base, cookies)

	logger.Debug().Int("cookies", len(cookies)).Msg("session primed from cookie store")

	return &Session{
		client: &http.Client{
			Jar:           jar,
			Timeout:       60 * time.Second,
			CheckRedirect: checkLoginRedirect,
		},
		jar:       jar,
		store:     store,
		base:      base,
		userAgent: "bcsync",
		log:       logger,
	}, nil
}

// checkLoginRedirect aborts redirect chains that land on the login
// page, which is how the site signals an expired session on otherwise
// valid URLs.
func checkLoginRedirect(req *http.Request, via []*http.Request) error {
	if strings.HasPrefix(req.URL.Path, "/login") {
		return ErrNotAuthenticated
	}
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	return nil
}

// Do performs req as the authenticated user.
//
// Responses with status 401 or 403, and redirects to the login page,
// surface ErrNotAuthenticated. The caller owns the response body on
// success.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, ErrNotAuthenticated)
		}
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: HTTP %d: %w", req.Method, req.URL, resp.StatusCode, ErrNotAuthenticated)
	}

	return resp, nil
}

// SaveJar persists the jar's current cookies for the site back to the
// store, so values refreshed by Set-Cookie survive across runs.
func (s *Session) SaveJar() error {
	return s.store.Save(s.jar.Cookies(s.base))
}
