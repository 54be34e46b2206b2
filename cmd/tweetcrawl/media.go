package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"tweetcrawl/internal/downloader"
	"tweetcrawl/pkg/ratelimit"
	"tweetcrawl/pkg/storage"
	"tweetcrawl/pkg/ui"
)

var (
	mediaDir       string
	mediaWorkers   int
	mediaPerMinute int
)

var mediaCmd = &cobra.Command{
	Use:   "media <log.json>",
	Short: "Download the images of a crawl log",
	Long: `Media downloads every image attached to the items of a crawl log into a
folder, ready for 'tweetcrawl search index'. Images already in the folder
are not downloaded again.

Examples:
  tweetcrawl media data/tweets_2024-03-07_10-00-00.json
  tweetcrawl media data/tweets_2024-03-07_10-00-00.json --dir ./media --workers 8
  tweetcrawl search query ./media "a cat on a keyboard"`,
	Args: cobra.ExactArgs(1),
	RunE: runMedia,
}

func init() {
	rootCmd.AddCommand(mediaCmd)

	mediaCmd.Flags().StringVarP(&mediaDir, "dir", "d", "", "image folder (default: media/ next to the log)")
	mediaCmd.Flags().IntVarP(&mediaWorkers, "workers", "w", 4, "concurrent downloads")
	mediaCmd.Flags().IntVar(&mediaPerMinute, "per-minute", 0, "limit downloads per minute (0 = unlimited)")
}

func runMedia(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}

	logPath := args[0]
	items, err := storage.ReadLog(logPath)
	if err != nil {
		return err
	}
	jobs := downloader.JobsFromItems(storage.Dedupe(items))

	dir := mediaDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(logPath), "media")
	}
	store, err := downloader.NewDirStore(dir)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(nil)
	printer.Info("Log", logPath)
	printer.Info("Folder", dir)
	printer.Info("Images", fmt.Sprintf("%d", len(jobs)))
	if len(jobs) == 0 {
		printer.Warning("No image items in this log")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := downloader.NewHTTPFetcher(30*time.Second, cfg.Browser.UserAgent, log)
	pool := downloader.NewWorkerPool(ctx, mediaWorkers, fetcher, store, ratelimit.PerMinute(mediaPerMinute), log)

	var s *spinner.Spinner
	if !quiet {
		s = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " downloading"
		s.Start()
	}
	done := 0
	summary := pool.Download(jobs, func(r downloader.Result) {
		done++
		if s != nil {
			s.Lock()
			s.Suffix = fmt.Sprintf(" downloading %d/%d", done, len(jobs))
			s.Unlock()
		}
	})
	if s != nil {
		s.Stop()
	}

	msg := fmt.Sprintf("%d saved, %d already present, %d failed (%.1f MB)",
		summary.Saved, summary.Skipped, summary.Failed, float64(summary.Bytes)/(1<<20))
	if summary.Failed > 0 {
		printer.Warning(msg)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	printer.Success(msg)
	return nil
}
