package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"tweetcrawl/pkg/auth"
	"tweetcrawl/pkg/browser"
	"tweetcrawl/pkg/checkpoint"
	"tweetcrawl/pkg/config"
	"tweetcrawl/pkg/crawler"
	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/extract"
	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/metrics"
	"tweetcrawl/pkg/models"
	"tweetcrawl/pkg/ratelimit"
	"tweetcrawl/pkg/retry"
	"tweetcrawl/pkg/storage"
	"tweetcrawl/pkg/timeline"
	"tweetcrawl/pkg/ui"
)

var (
	crawlStart            string
	crawlEnd              string
	crawlResume           bool
	crawlAccount          string
	crawlAuthToken        string
	crawlTab              string
	crawlHeadless         bool
	crawlReloadWorkaround bool
	crawlOutput           string
	crawlItemsPerMinute   int
	crawlPostgresDSN      string
	crawlMetricsAddr      string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <profile-url>",
	Short: "Crawl a profile timeline between two dates",
	Long: `Crawl opens the profile in a browser signed in with your auth token and
reads the timeline from the newest item down.

Items newer than --end are skipped, items inside the window are appended to
the crawl log, and the crawl stops at the first item older than --start.
When it ends the log is exported to a spreadsheet next to it.

Examples:
  # Likes from the first week of March
  tweetcrawl crawl https://twitter.com/someone/likes --start 2024-03-01 --end 2024-03-07

  # Continue an interrupted crawl of the same window
  tweetcrawl crawl https://twitter.com/someone/likes --start 2024-03-01 --end 2024-03-07 --resume

  # Watch the browser and expose metrics
  tweetcrawl crawl https://twitter.com/someone --start 2024-01-01 --end 2024-01-31 \
      --tab Posts --headless=false --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	f := crawlCmd.Flags()
	f.StringVar(&crawlStart, "start", "", "oldest day to keep (YYYY-MM-DD)")
	f.StringVar(&crawlEnd, "end", "", "newest day to keep (YYYY-MM-DD)")
	f.BoolVar(&crawlResume, "resume", false, "append to the log of an unfinished crawl of the same window")
	f.StringVar(&crawlAccount, "account", "", "stored account to take the auth token from")
	f.StringVar(&crawlAuthToken, "auth-token", "", "auth_token cookie value (overrides stored credentials)")
	f.StringVar(&crawlTab, "tab", "", "profile tab being crawled (default Likes)")
	f.BoolVar(&crawlHeadless, "headless", true, "run the browser without a window")
	f.BoolVar(&crawlReloadWorkaround, "reload-workaround", true, "switch tabs when the site asks to reload")
	f.StringVarP(&crawlOutput, "output", "o", "", "output directory for logs and snapshots")
	f.IntVar(&crawlItemsPerMinute, "items-per-minute", 0, "pace item advances (0 = unpaced)")
	f.StringVar(&crawlPostgresDSN, "postgres-dsn", "", "also write items to this Postgres database")
	f.StringVar(&crawlMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	_ = crawlCmd.MarkFlagRequired("start")
	_ = crawlCmd.MarkFlagRequired("end")
}

// crawlFlags returns the flags that override configuration. Booleans and
// counts are only passed when set so they don't mask file or env values.
func crawlFlags(cmd *cobra.Command) map[string]interface{} {
	flags := map[string]interface{}{
		"auth-token":   crawlAuthToken,
		"tab":          crawlTab,
		"output":       crawlOutput,
		"postgres-dsn": crawlPostgresDSN,
		"metrics-addr": crawlMetricsAddr,
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = crawlHeadless
	}
	if cmd.Flags().Changed("reload-workaround") {
		flags["reload-workaround"] = crawlReloadWorkaround
	}
	if cmd.Flags().Changed("items-per-minute") {
		flags["items-per-minute"] = crawlItemsPerMinute
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) error {
	profileURL := strings.TrimSpace(args[0])

	window, err := models.NewWindow(crawlStart, crawlEnd)
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig(crawlFlags(cmd))
	if err != nil {
		return err
	}

	token, err := resolveToken(cfg, crawlAccount)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log = log.WithFields(map[string]interface{}{
		"run_id":  runID,
		"profile": profileURL,
	})

	printer := ui.NewPrinter(nil)
	if !quiet {
		printer.Banner()
	}
	printer.Info("Profile", profileURL)
	printer.Info("Window", window.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewManager(cfg.Output.BaseDirectory, cfg.Output.FilePrefix)
	if err != nil {
		return err
	}
	checkpoints, err := checkpoint.NewManager(profileURL, log)
	if err != nil {
		return err
	}
	run, err := openRun(checkpoints, store, runID, profileURL, window, printer)
	if err != nil {
		return err
	}

	crawlLog, err := storage.OpenLog(run.LogPath)
	if err != nil {
		return err
	}
	defer crawlLog.Close()
	if n := crawlLog.DroppedBytes(); n > 0 {
		log.WarnWithFields("Dropped partial record at end of crawl log", map[string]interface{}{
			"path":          crawlLog.Path(),
			"dropped_bytes": n,
		})
	}
	printer.Info("Log", crawlLog.Path())

	sinks := []storage.Sink{crawlLog}
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		mirror, err := storage.NewPostgresSink(ctx, dsn, run.RunID)
		if err != nil {
			return err
		}
		defer mirror.Close()
		sinks = append(sinks, mirror)
	}
	sinks = append(sinks, checkpoints.Sink(run))

	rec := metrics.New()

	session, err := browser.Start(ctx, browser.OptionsFromConfig(cfg), log)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Authenticate(ctx, token); err != nil {
		return err
	}
	if err := session.Navigate(ctx, profileURL); err != nil {
		return err
	}

	var (
		progress *ui.CrawlProgress
		observer crawler.Observer
	)
	if !quiet {
		progress = ui.NewCrawlProgress(nil)
		observer = progress
	}

	c, err := newCrawler(cfg, session, sinks, window, rec, observer, log)
	if err != nil {
		return err
	}

	stats, crawlErr := runWithMetrics(ctx, c, rec, cfg.Metrics.Addr, window, progress, log)

	// The log is exported even after an interrupted crawl; it only holds
	// items that were fully written.
	snapshot := storage.SnapshotPath(run.LogPath)
	unique, err := storage.Export(run.LogPath, snapshot)
	if err != nil {
		log.WithError(err).Error("Export failed")
		if crawlErr == nil {
			crawlErr = err
		}
	} else {
		printer.Info("Snapshot", snapshot)
		printer.Info("Unique", fmt.Sprintf("%d items", unique))
	}

	if crawlErr != nil {
		return crawlErr
	}
	if err := checkpoints.Complete(run); err != nil {
		log.WithError(err).Warn("Failed to mark checkpoint complete")
	}
	printer.Info("Stopped at", stats.StoppedAt)
	return nil
}

// resolveToken prefers a token from flags, env or config and falls back to
// the credential store
func resolveToken(cfg *config.Config, account string) (string, error) {
	if account == "" && cfg.HasUsableToken() {
		return cfg.Twitter.AuthToken, nil
	}

	manager, err := auth.NewManager()
	if err == nil {
		if token, err := manager.Token(account); err == nil {
			return token, browser.ValidateToken(token)
		}
	}
	if account != "" {
		return "", errs.Configuration(fmt.Sprintf("no stored auth token for account %q; run 'tweetcrawl auth login --account %s'", account, account))
	}
	return "", browser.ValidateToken(cfg.Twitter.AuthToken)
}

// openRun resumes the previous run when asked and possible, otherwise it
// starts a new checkpoint with a fresh log
func openRun(checkpoints *checkpoint.Manager, store *storage.Manager, runID, profileURL string, window models.Window, printer *ui.Printer) (*checkpoint.Checkpoint, error) {
	if crawlResume {
		previous, err := checkpoints.Load()
		if err != nil {
			return nil, err
		}
		if previous.Resumable(window) {
			printer.Warning(fmt.Sprintf("Resuming run %s (%d items so far, last %s)", previous.RunID, previous.Persisted, previous.LastDate))
			return previous, nil
		}
		printer.Warning("No unfinished crawl of this window, starting a new one")
	}
	return checkpoints.Create(runID, profileURL, window, store.LogPath(time.Now()))
}

func newCrawler(cfg *config.Config, session *browser.Session, sinks []storage.Sink, window models.Window, rec *metrics.Recorder, observer crawler.Observer, log logger.Logger) (*crawler.Crawler, error) {
	feed := timeline.NewFeed(session, timeline.Options{
		WaitTimeout:      cfg.Browser.WaitTimeout,
		PollInterval:     cfg.Browser.PollInterval,
		TabSwitchDelay:   cfg.Browser.TabSwitchDelay,
		ReloadWorkaround: cfg.Browser.ReloadWorkaround,
		TargetTab:        cfg.Twitter.TargetTab,
		AlternateTab:     cfg.Twitter.AlternateTab,
		OnReload:         rec.Reload,
	}, log)

	extractor, err := extract.New(cfg.Twitter.BaseURL, log)
	if err != nil {
		return nil, err
	}

	return crawler.New(feed, extractor, sinks, crawler.Options{
		Window:   window,
		Wait:     retry.Fixed(cfg.Retry.WaitAttempts, cfg.Retry.WaitDelay, retry.OnlyType(errs.ErrorTypeTimeout)),
		Extract:  retry.Fixed(cfg.Retry.ExtractAttempts, cfg.Retry.ExtractDelay, retry.OnlyType(errs.ErrorTypeExtraction)),
		Limiter:  ratelimit.PerMinute(cfg.Crawl.ItemsPerMinute),
		Metrics:  rec,
		Observer: observer,
	}, log), nil
}

// runWithMetrics runs the crawl and, when addr is set, a metrics listener
// that stops once the crawl returns
func runWithMetrics(ctx context.Context, c *crawler.Crawler, rec *metrics.Recorder, addr string, window models.Window, progress *ui.CrawlProgress, log logger.Logger) (crawler.Stats, error) {
	listenCtx, stopListener := context.WithCancel(ctx)
	defer stopListener()

	g, gctx := errgroup.WithContext(listenCtx)
	if addr != "" {
		g.Go(func() error {
			return rec.Serve(gctx, addr, log)
		})
	}

	var stats crawler.Stats
	g.Go(func() error {
		defer stopListener()
		if progress != nil {
			progress.Start(window)
		}
		var err error
		stats, err = c.Run(gctx)
		if progress != nil {
			progress.Stop(err)
		}
		return err
	})

	return stats, g.Wait()
}
