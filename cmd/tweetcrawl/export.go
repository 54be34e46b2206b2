package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"tweetcrawl/pkg/storage"
	"tweetcrawl/pkg/ui"
)

var (
	exportOutput string
	exportLatest bool
)

var exportCmd = &cobra.Command{
	Use:   "export [log.json]",
	Short: "Rebuild the spreadsheet snapshot of a crawl log",
	Long: `Export reads a crawl log, drops records whose URL was already seen and
writes the rest to a spreadsheet. The log itself is never changed, so export
can be run any number of times.

Examples:
  # Snapshot next to the log (tweets_2024-03-07_10-00-00.xlsx)
  tweetcrawl export data/tweets_2024-03-07_10-00-00.json

  # Newest log in the configured output directory
  tweetcrawl export --latest

  # Custom destination
  tweetcrawl export data/tweets_2024-03-07_10-00-00.json -o march.xlsx`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "snapshot path (default: log path with .xlsx)")
	exportCmd.Flags().BoolVar(&exportLatest, "latest", false, "export the newest log in the output directory")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var logPath string
	switch {
	case len(args) == 1:
		logPath = args[0]
	case exportLatest:
		store, err := storage.NewManager(cfg.Output.BaseDirectory, cfg.Output.FilePrefix)
		if err != nil {
			return err
		}
		if logPath, err = store.LatestLog(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("give a crawl log path or --latest")
	}

	snapshot := exportOutput
	if snapshot == "" {
		snapshot = storage.SnapshotPath(logPath)
	}

	unique, err := storage.Export(logPath, snapshot)
	if err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"log":      logPath,
		"snapshot": snapshot,
		"unique":   unique,
	}).Info("Snapshot exported")

	printer := ui.NewPrinter(nil)
	printer.Info("Log", logPath)
	printer.Info("Snapshot", snapshot)
	printer.Success(fmt.Sprintf("Exported %d unique items", unique))
	return nil
}
