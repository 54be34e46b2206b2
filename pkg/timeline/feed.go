// Package timeline waits for the front item of a live timeline and recovers
// from the site's "Try reloading" banner.
package timeline

import (
	"context"
	"time"

	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/retry"
)

// Element is a front item captured from the live document
type Element struct {
	// ID tags the element in the document so it can be removed later
	ID string
	// HTML is the element's outer HTML at capture time
	HTML string
}

// Probe is one atomic look at the timeline
type Probe struct {
	// Element is the front item, or nil when none is rendered
	Element *Element
	// ErrorBanner is set when the site shows its reload prompt
	ErrorBanner bool
}

// Driver is the live-timeline capability a Feed needs
type Driver interface {
	Probe(ctx context.Context) (Probe, error)
	Remove(ctx context.Context, id string) error
	ClickTab(ctx context.Context, label string) error
}

// Options tune waiting and recovery
type Options struct {
	WaitTimeout    time.Duration
	PollInterval   time.Duration
	TabSwitchDelay time.Duration
	// ReloadWorkaround enables switching tabs when the error banner shows
	ReloadWorkaround bool
	TargetTab        string
	AlternateTab     string
	// OnReload is called each time the tab workaround runs
	OnReload func()
}

// Feed exposes the live timeline one front item at a time
type Feed struct {
	driver Driver
	opts   Options
	logger logger.Logger
}

// NewFeed creates a feed over driver
func NewFeed(driver Driver, opts Options, log logger.Logger) *Feed {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Feed{driver: driver, opts: opts, logger: log}
}

// Next waits up to WaitTimeout for a front item. When the error banner shows
// first and the workaround is enabled, it switches tabs and waits again for
// an item only. A missing item is a timeout error.
func (f *Feed) Next(ctx context.Context) (Element, error) {
	el, banner, err := f.await(ctx, true)
	if err != nil {
		return Element{}, err
	}
	if el != nil {
		return *el, nil
	}

	if !banner || !f.opts.ReloadWorkaround {
		return Element{}, errs.Timeout("error banner shown instead of timeline", nil)
	}

	f.logger.WithFields(map[string]interface{}{
		"alternate_tab": f.opts.AlternateTab,
		"target_tab":    f.opts.TargetTab,
	}).Warn("Timeline asked to reload, switching tabs")
	if f.opts.OnReload != nil {
		f.opts.OnReload()
	}

	if err := f.switchTab(ctx, f.opts.AlternateTab); err != nil {
		return Element{}, err
	}
	if err := f.switchTab(ctx, f.opts.TargetTab); err != nil {
		return Element{}, err
	}

	el, _, err = f.await(ctx, false)
	if err != nil {
		return Element{}, err
	}
	return *el, nil
}

// Front captures the current front item without waiting
func (f *Feed) Front(ctx context.Context) (Element, error) {
	p, err := f.driver.Probe(ctx)
	if err != nil {
		return Element{}, err
	}
	if p.Element == nil {
		return Element{}, errs.Extraction("front item disappeared", "", nil)
	}
	return *p.Element, nil
}

// Advance removes el from the live view. A vanished element is not an error.
func (f *Feed) Advance(ctx context.Context, el Element) {
	if err := f.driver.Remove(ctx, el.ID); err != nil {
		f.logger.WithError(err).WithField("element", el.ID).Warn("Could not remove front item")
	}
}

// await polls until an item shows, or the banner shows when acceptBanner is
// set, or the wait times out
func (f *Feed) await(ctx context.Context, acceptBanner bool) (*Element, bool, error) {
	deadline := time.Now().Add(f.opts.WaitTimeout)
	for {
		p, err := f.driver.Probe(ctx)
		if err != nil {
			return nil, false, err
		}
		if p.Element != nil {
			return p.Element, false, nil
		}
		if acceptBanner && p.ErrorBanner {
			return nil, true, nil
		}

		if !time.Now().Before(deadline) {
			return nil, false, errs.Timeout("front item never appeared", nil)
		}
		if err := retry.Wait(ctx, f.opts.PollInterval); err != nil {
			return nil, false, err
		}
	}
}

func (f *Feed) switchTab(ctx context.Context, label string) error {
	if err := f.driver.ClickTab(ctx, label); err != nil {
		f.logger.WithError(err).WithField("tab", label).Warn("Tab click failed")
	}
	return retry.Wait(ctx, f.opts.TabSwitchDelay)
}
