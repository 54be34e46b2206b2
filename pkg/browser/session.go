// Package browser drives a Chrome session through chromedp and implements
// the live-timeline operations the crawl loop needs.
package browser

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"tweetcrawl/pkg/config"
	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/timeline"
)

const (
	// AuthCookie is the session cookie the site authenticates with
	AuthCookie = "auth_token"
	// cookieLifetime is how long the injected cookie stays valid
	cookieLifetime = 7 * 24 * time.Hour
	// DefaultItemSelector matches one timeline item
	DefaultItemSelector = `article[data-testid="tweet"]`
	// DefaultBannerText is shown by the site instead of the timeline when it wants a reload
	DefaultBannerText = "Try reloading"
)

// Options configure a Session
type Options struct {
	BaseURL      string
	Headless     bool
	UserAgent    string
	WaitTimeout  time.Duration
	ItemSelector string
	BannerText   string
}

// OptionsFromConfig maps loaded configuration onto session options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:     cfg.Twitter.BaseURL,
		Headless:    cfg.Browser.Headless,
		UserAgent:   cfg.Browser.UserAgent,
		WaitTimeout: cfg.Browser.WaitTimeout,
	}
}

// Session is one browser with one tab
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
	base        *url.URL
	logger      logger.Logger
}

var _ timeline.Driver = (*Session)(nil)

// Start launches the browser and opens BaseURL
func Start(ctx context.Context, opts Options, log logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if opts.ItemSelector == "" {
		opts.ItemSelector = DefaultItemSelector
	}
	if opts.BannerText == "" {
		opts.BannerText = DefaultBannerText
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" {
		return nil, errs.Configuration(fmt.Sprintf("invalid base URL %q", opts.BaseURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	s := &Session{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		base:        base,
		logger:      log.WithField("component", "browser"),
	}

	// the first Run allocates the browser and must use the long-lived context
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, errs.Browser("failed to launch browser", err)
	}
	if err := s.Navigate(ctx, base.String()); err != nil {
		s.Close()
		return nil, errs.Browser("failed to start browser", err)
	}
	s.logger.WithField("headless", opts.Headless).Info("Browser started")
	return s, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 2000),
		// Chrome refuses to sandbox as root
		chromedp.Flag("no-sandbox", os.Geteuid() == 0),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	return allocOpts
}

// ValidateToken rejects an empty or placeholder auth token
func ValidateToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errs.Configuration("auth token is empty")
	}
	if token == config.PlaceholderAuthToken {
		return errs.Configuration("auth token is still the placeholder value")
	}
	return nil
}

// CookieDomain is the domain the auth cookie is set on. Named hosts get a
// leading dot so subdomains share the cookie.
func CookieDomain(base *url.URL) string {
	host := strings.TrimPrefix(base.Hostname(), "www.")
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	return "." + host
}

// Authenticate injects the auth cookie into the session
func (s *Session) Authenticate(ctx context.Context, token string) error {
	if err := ValidateToken(token); err != nil {
		return err
	}

	expires := cdp.TimeSinceEpoch(time.Now().Add(cookieLifetime))
	setCookie := network.SetCookie(AuthCookie, strings.TrimSpace(token)).
		WithDomain(CookieDomain(s.base)).
		WithPath("/").
		WithExpires(&expires).
		WithSecure(s.base.Scheme == "https").
		WithHTTPOnly(true)

	if err := s.run(ctx, setCookie); err != nil {
		return errs.Browser("failed to set auth cookie", err)
	}
	s.logger.WithField("domain", CookieDomain(s.base)).Info("Auth cookie set")
	return nil
}

// Navigate loads target and waits for the document body
func (s *Session) Navigate(ctx context.Context, target string) error {
	waitCtx, cancel := context.WithTimeout(ctx, 3*s.opts.WaitTimeout)
	defer cancel()

	err := s.run(waitCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return errs.Browser("navigation to "+target+" failed", err)
	}
	s.logger.WithField("url", target).Debug("Navigated")
	return nil
}

// Probe captures the front item and the banner state in one evaluation
func (s *Session) Probe(ctx context.Context) (timeline.Probe, error) {
	var raw string
	if err := s.run(ctx, chromedp.Evaluate(probeScript(s.opts.ItemSelector, s.opts.BannerText), &raw)); err != nil {
		return timeline.Probe{}, errs.Browser("probing timeline failed", err)
	}
	return decodeProbe(raw)
}

// Remove deletes the tagged item from the document
func (s *Session) Remove(ctx context.Context, id string) error {
	var removed bool
	if err := s.run(ctx, chromedp.Evaluate(removeScript(s.opts.ItemSelector, id), &removed)); err != nil {
		return errs.Browser("removing front item failed", err)
	}
	if !removed {
		return errs.Browser("front item "+id+" already gone", nil)
	}
	return nil
}

// ClickTab clicks the profile tab with the given label
func (s *Session) ClickTab(ctx context.Context, label string) error {
	clickCtx, cancel := context.WithTimeout(ctx, s.opts.WaitTimeout)
	defer cancel()

	if err := s.run(clickCtx, chromedp.Click(tabXPath(label), chromedp.BySearch, chromedp.NodeVisible)); err != nil {
		return errs.Browser("clicking tab "+label+" failed", err)
	}
	return nil
}

// Close shuts the browser down
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
	s.logger.Debug("Browser closed")
}

// run executes actions on the session tab, aborting when ctx is done
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
