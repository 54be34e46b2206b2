// Package crawler drives the extract-and-advance loop over a live timeline.
//
// Each iteration waits for the front item, extracts it, decides against the
// crawl window and removes it from the view so the next item becomes the
// front. The loop ends at the first item older than the window start.
package crawler

import (
	"context"
	"fmt"
	"time"

	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/metrics"
	"tweetcrawl/pkg/models"
	"tweetcrawl/pkg/ratelimit"
	"tweetcrawl/pkg/retry"
	"tweetcrawl/pkg/storage"
	"tweetcrawl/pkg/timeline"
)

// previewRunes is how much item text goes into progress logs
const previewRunes = 50

// Feed yields front items; *timeline.Feed implements it
type Feed interface {
	Next(ctx context.Context) (timeline.Element, error)
	Front(ctx context.Context) (timeline.Element, error)
	Advance(ctx context.Context, el timeline.Element)
}

// Extractor turns a captured element into an item; *extract.Extractor implements it
type Extractor interface {
	Extract(el timeline.Element) (*models.Item, error)
}

// Observer is told about every handled item
type Observer interface {
	ItemHandled(decision string, item *models.Item, stats Stats)
}

// Stats summarises a run
type Stats struct {
	Extracted    int
	Persisted    int
	SkippedNewer int
	Undated      int
	// Unreadable counts items skipped because their date matched no layout
	Unreadable int
	// StoppedAt is the date of the item that ended the run, if any
	StoppedAt string
	Elapsed   time.Duration
}

// Options configure a Crawler
type Options struct {
	Window models.Window
	// Wait governs waiting for the front item; only timeouts should be retried
	Wait *retry.Config
	// Extract governs extraction; retries re-capture the front item
	Extract *retry.Config
	// Limiter paces advances; nil disables pacing
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Recorder
	Observer Observer
}

// Crawler runs the loop for one timeline
type Crawler struct {
	feed      Feed
	extractor Extractor
	sinks     []storage.Sink
	opts      Options
	logger    logger.Logger
}

// New creates a Crawler writing persisted items to every sink in order
func New(feed Feed, extractor Extractor, sinks []storage.Sink, opts Options, log logger.Logger) *Crawler {
	if opts.Wait == nil {
		opts.Wait = retry.Fixed(5, 2*time.Second, retry.OnlyType(errs.ErrorTypeTimeout))
	}
	if opts.Extract == nil {
		opts.Extract = retry.Fixed(2, time.Second, retry.OnlyType(errs.ErrorTypeExtraction))
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Crawler{
		feed:      feed,
		extractor: extractor,
		sinks:     sinks,
		opts:      opts,
		logger:    log.WithField("window", opts.Window.String()),
	}
}

// Run crawls until an item older than the window start appears, an error
// aborts the run, or ctx is cancelled. Stats are returned in every case.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	started := time.Now()

	c.logger.Info("Crawl started")
	err := c.run(ctx, &stats)
	stats.Elapsed = time.Since(started)

	fields := map[string]interface{}{
		"persisted":     stats.Persisted,
		"skipped_newer": stats.SkippedNewer,
		"undated":       stats.Undated,
		"elapsed":       stats.Elapsed.String(),
	}
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("Crawl ended early")
	} else {
		c.logger.WithFields(fields).Info("Crawl finished")
	}
	return stats, err
}

func (c *Crawler) run(ctx context.Context, stats *Stats) error {
	waiter := retry.NewRetrier(c.opts.Wait).WithContext(ctx).WithLogger(c.logger)
	extractor := retry.NewRetrier(c.opts.Extract).WithContext(ctx).WithLogger(c.logger)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		el, err := c.awaitFront(ctx, waiter)
		if err != nil {
			return fmt.Errorf("waiting for front item: %w", err)
		}

		el, item, err := c.extract(ctx, extractor, el)
		if err != nil {
			return fmt.Errorf("extracting front item: %w", err)
		}
		stats.Extracted++

		decision := c.decide(item)
		switch decision {
		case metrics.DecisionBoundary:
			stats.StoppedAt = item.Date
			c.opts.Metrics.Item(decision)
			c.notify(decision, item, *stats)
			c.logger.WithFields(map[string]interface{}{
				"date": item.Date,
				"url":  item.URL,
			}).Info("Reached item older than window start, stopping")
			return nil

		case metrics.DecisionSkippedNewer:
			stats.SkippedNewer++
			c.logger.WithFields(map[string]interface{}{
				"date": item.Date,
				"url":  item.URL,
			}).Debug("Skipping item newer than window end")

		case metrics.DecisionUnreadable:
			stats.Unreadable++

		default:
			if err := c.persist(ctx, item); err != nil {
				return err
			}
			stats.Persisted++
			if decision == metrics.DecisionUndated {
				stats.Undated++
			}
			c.logger.WithFields(map[string]interface{}{
				"date":   item.Date,
				"author": item.AuthorName,
				"text":   item.Preview(previewRunes),
			}).Info("Saving item")
		}

		c.opts.Metrics.Item(decision)
		c.notify(decision, item, *stats)

		if c.opts.Limiter != nil {
			if err := c.opts.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		c.feed.Advance(ctx, el)
	}
}

func (c *Crawler) awaitFront(ctx context.Context, waiter *retry.Retrier) (timeline.Element, error) {
	var el timeline.Element
	err := waiter.Do(func() error {
		var err error
		el, err = c.feed.Next(ctx)
		if errs.IsType(err, errs.ErrorTypeTimeout) {
			c.opts.Metrics.Timeout()
		}
		return err
	})
	return el, err
}

// extract reads el, re-capturing the front item before each retry since the
// live document may have changed under it
func (c *Crawler) extract(ctx context.Context, extractor *retry.Retrier, el timeline.Element) (timeline.Element, *models.Item, error) {
	var item *models.Item
	attempt := 0
	err := extractor.Do(func() error {
		attempt++
		if attempt > 1 {
			fresh, err := c.feed.Front(ctx)
			if err != nil {
				c.opts.Metrics.ExtractionFailure()
				return err
			}
			el = fresh
		}

		start := time.Now()
		extracted, err := c.extractor.Extract(el)
		if err != nil {
			c.opts.Metrics.ExtractionFailure()
			return err
		}
		c.opts.Metrics.ObserveExtract(time.Since(start))
		item = extracted
		return nil
	})
	return el, item, err
}

// decide places item against the window, normalising its date. Items with
// no date are kept without a boundary decision; a date that matches neither
// layout cannot be placed, so the item is skipped.
func (c *Crawler) decide(item *models.Item) string {
	if item.Date == "" {
		c.logger.WithField("url", item.URL).Warn("Item has no date, saving without window check")
		return metrics.DecisionUndated
	}

	date, err := models.ParseDate(item.Date)
	if err != nil {
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"url":  item.URL,
			"date": item.Date,
		}).Warn("Item date unreadable, skipping")
		return metrics.DecisionUnreadable
	}
	item.Date = date.String()

	switch c.opts.Window.Classify(date) {
	case models.Before:
		return metrics.DecisionBoundary
	case models.After:
		return metrics.DecisionSkippedNewer
	default:
		return metrics.DecisionPersisted
	}
}

func (c *Crawler) persist(ctx context.Context, item *models.Item) error {
	for _, sink := range c.sinks {
		if err := sink.Append(ctx, item); err != nil {
			c.logger.WithError(err).WithField("url", item.URL).Error("Failed to persist item")
			return fmt.Errorf("persisting item: %w", err)
		}
	}
	return nil
}

func (c *Crawler) notify(decision string, item *models.Item, stats Stats) {
	if c.opts.Observer != nil {
		c.opts.Observer.ItemHandled(decision, item, stats)
	}
}
