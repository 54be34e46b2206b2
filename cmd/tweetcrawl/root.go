package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"tweetcrawl/pkg/config"
	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tweetcrawl",
	Short: "Crawl a profile timeline into a dated log and spreadsheet",
	Long: `tweetcrawl walks a profile timeline in a real browser, newest item first,
and keeps every item whose day falls inside a date window.

Each item is read from the top of the timeline, written to an append-only
JSON log and then removed from the page so the next one moves up. The crawl
stops at the first item older than the window start. A spreadsheet snapshot
without duplicate URLs is exported when the crawl ends.

Features:
  - Auth token injection from flags, environment, config or the system keychain
  - Recovery from the site's "Try reloading" banner by switching tabs
  - Resume of interrupted crawls for the same window
  - Optional Postgres mirror and Prometheus metrics
  - Text search over downloaded images through an embedding service`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.NewPrinter(os.Stderr).Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./tweetcrawl.yaml or $HOME/.config/tweetcrawl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "hide the banner and progress spinner")

	rootCmd.SetVersionTemplate(`tweetcrawl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags into flags, loads the layered
// configuration and builds the logger every command shares
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log.WithField("version", version), nil
}
