// Package browser attaches to a Chromium session logged into the host site.
// It supplies session cookies, drives the native bookmark control and feeds
// observed GraphQL requests to the operation-id cache.
package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/gateway"
)

// Options configures how the session is obtained.
type Options struct {
	// ControlURL attaches to a running browser (ws://...). Empty launches one.
	ControlURL  string
	UserDataDir string
	Headless    bool
	// HomeURL is opened when no host page is already open.
	HomeURL string
}

// Session is one attached browser page.
type Session struct {
	logger *slog.Logger
	opts   Options

	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	closed  bool
}

// Open connects to (or launches) the browser and selects the host page.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Session, error) {
	if opts.HomeURL == "" {
		opts.HomeURL = "https://x.com/home"
	}
	s := &Session{logger: logger, opts: opts}

	wsURL := opts.ControlURL
	if wsURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		logger.Info("launched local browser", "url", wsURL, "headless", opts.Headless)
	} else {
		logger.Info("attaching to browser", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	page, err := s.hostPage(ctx)
	if err != nil {
		s.cleanup()
		return nil, err
	}
	s.page = page
	return s, nil
}

// hostPage reuses an open tab on the host site or opens HomeURL in a new one.
func (s *Session) hostPage(ctx context.Context) (*rod.Page, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if isHostURL(info.URL) {
			s.logger.Info("using open tab", "url", info.URL)
			return p, nil
		}
	}

	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := page.Context(navCtx).Navigate(s.opts.HomeURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", s.opts.HomeURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.logger.Warn("wait load timeout", "url", s.opts.HomeURL, "error", err)
	}
	return page, nil
}

// Page returns the attached page, or CONTEXT_LOST once the session is gone.
func (s *Session) Page() (*rod.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.page == nil {
		return nil, errors.NewContextLost(nil)
	}
	return s.page, nil
}

// Credentials reads the ct0 and auth_token cookies. Implements gateway.CredentialSource.
func (s *Session) Credentials(ctx context.Context) (gateway.Credentials, error) {
	page, err := s.Page()
	if err != nil {
		return gateway.Credentials{}, err
	}
	cookies, err := page.Context(ctx).Cookies([]string{"https://x.com", "https://twitter.com"})
	if err != nil {
		return gateway.Credentials{}, s.lost(ctx, err)
	}
	return credentialsFrom(cookies)
}

// Close detaches from the browser, killing it when this session launched it.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup()
	return nil
}

func (s *Session) cleanup() {
	if s.lnch != nil {
		if s.browser != nil {
			s.browser.Close()
		}
		s.lnch.Cleanup()
		s.lnch = nil
	}
	s.browser = nil
	s.page = nil
}

// lost converts a CDP failure into CONTEXT_LOST. Caller cancellations pass through.
func (s *Session) lost(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.logger.Warn("browser call failed", "error", err)
	return errors.NewContextLost(err)
}

func credentialsFrom(cookies []*proto.NetworkCookie) (gateway.Credentials, error) {
	var c gateway.Credentials
	for _, ck := range cookies {
		switch ck.Name {
		case "ct0":
			c.CSRFToken = ck.Value
		case "auth_token":
			c.AuthToken = ck.Value
		}
	}
	if !c.Valid() {
		return gateway.Credentials{}, errors.NewNotAuthenticated()
	}
	return c, nil
}

func isHostURL(u string) bool {
	return strings.HasPrefix(u, "https://x.com/") || strings.HasPrefix(u, "https://twitter.com/")
}

var errPageGone = stderrors.New("browser: page event stream ended")
