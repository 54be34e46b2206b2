package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"tweetcrawl/pkg/crawler"
	"tweetcrawl/pkg/metrics"
	"tweetcrawl/pkg/models"
)

// CrawlProgress shows a spinner with running counts while a crawl runs.
// It implements crawler.Observer.
type CrawlProgress struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	out     io.Writer
	started time.Time
	stats   crawler.Stats
	last    string
}

var _ crawler.Observer = (*CrawlProgress)(nil)

// NewCrawlProgress renders to w, or stderr when w is nil. The spinner only
// animates when w is a terminal.
func NewCrawlProgress(w io.Writer) *CrawlProgress {
	if w == nil {
		w = os.Stderr
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w))
	s.Prefix = " "
	return &CrawlProgress{spinner: s, out: w}
}

// Start begins animating
func (p *CrawlProgress) Start(window models.Window) {
	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()

	p.spinner.Suffix = " crawling " + window.String()
	p.spinner.Start()
}

// ItemHandled updates the counts after each item
func (p *CrawlProgress) ItemHandled(decision string, item *models.Item, stats crawler.Stats) {
	p.mu.Lock()
	p.stats = stats
	p.last = lastItemLabel(decision, item)
	line := p.statusLine()
	p.mu.Unlock()

	p.spinner.Lock()
	p.spinner.Suffix = " " + line
	p.spinner.Unlock()
}

// Stop halts the spinner and prints the final counts
func (p *CrawlProgress) Stop(err error) {
	p.spinner.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	printer := NewPrinter(p.out)
	summary := fmt.Sprintf("%d saved, %d newer skipped, %d undated in %s",
		p.stats.Persisted, p.stats.SkippedNewer, p.stats.Undated, formatDuration(time.Since(p.started)))
	if err != nil {
		printer.Error("Crawl stopped early ("+summary+")", err)
		return
	}
	printer.Success("Crawl finished: " + summary)
}

func (p *CrawlProgress) statusLine() string {
	parts := []string{
		fmt.Sprintf("%d saved", p.stats.Persisted),
		fmt.Sprintf("%d skipped", p.stats.SkippedNewer),
	}
	if p.stats.Undated > 0 {
		parts = append(parts, fmt.Sprintf("%d undated", p.stats.Undated))
	}
	if p.stats.Unreadable > 0 {
		parts = append(parts, fmt.Sprintf("%d bad dates", p.stats.Unreadable))
	}
	if elapsed := time.Since(p.started).Minutes(); elapsed > 0 && p.stats.Extracted > 0 {
		parts = append(parts, fmt.Sprintf("%.1f/min", float64(p.stats.Extracted)/elapsed))
	}
	if p.last != "" {
		parts = append(parts, p.last)
	}
	return strings.Join(parts, " • ")
}

func lastItemLabel(decision string, item *models.Item) string {
	if item == nil {
		return ""
	}
	date := item.Date
	if date == "" {
		date = "no date"
	}
	switch decision {
	case metrics.DecisionBoundary:
		return "reached " + date
	case metrics.DecisionSkippedNewer:
		return "skipping " + date
	case metrics.DecisionUnreadable:
		return "bad date " + date
	default:
		return date + " " + item.AuthorHandle
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
