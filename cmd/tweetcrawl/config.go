package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"tweetcrawl/pkg/auth"
	"tweetcrawl/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Create, show and check tweetcrawl configuration.

Settings are layered, later sources winning:
  defaults < config file < .env < TWEETCRAWL_* environment < flags`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example configuration file",
	Example: `  tweetcrawl config init
  tweetcrawl config init ~/.config/tweetcrawl/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# tweetcrawl configuration
#
# Every value can also be set with a TWEETCRAWL_ environment variable,
# for example TWEETCRAWL_AUTH_TOKEN or TWEETCRAWL_OUTPUT_DIR.

twitter:
  # Value of the auth_token cookie. Prefer 'tweetcrawl auth login' over
  # keeping it in this file.
  auth_token: "YOUR_TWITTER_AUTH_TOKEN_HERE"
  base_url: "https://twitter.com"
  # Profile tab being crawled, and the tab clicked to force a reload
  target_tab: "Likes"
  alternate_tab: "Media"

browser:
  headless: true
  user_agent: ""
  # How long to wait for the next item before retrying
  wait_timeout: 10s
  poll_interval: 250ms
  tab_switch_delay: 2s
  # Switch tabs when the site shows "Try reloading"
  reload_workaround: true

crawl:
  # Pace item advances; 0 disables pacing
  items_per_minute: 0

retry:
  wait_attempts: 5
  wait_delay: 2s
  extract_attempts: 2
  extract_delay: 1s

output:
  base_directory: "./data"
  file_prefix: "tweets"

storage:
  # Mirror every saved item into Postgres (optional)
  postgres_dsn: ""

metrics:
  # Serve Prometheus metrics during a crawl, e.g. ":9090" (optional)
  addr: ""

search:
  embedder_url: "http://localhost:8000"
  model: "uform-vl-english"
  top_k: 7
  timeout: 60s

logging:
  # debug, info, warn, error
  level: "info"
  # text, json
  format: "text"
  # Also write JSON logs to this file (optional)
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "tweetcrawl.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	printer := ui.NewPrinter(nil)
	if _, err := os.Stat(path); err == nil {
		printer.Error("Configuration file already exists", nil)
		fmt.Printf("\nTo overwrite, first remove the existing file:\n  rm %s\n", path)
		return fmt.Errorf("%s exists", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	printer.Success("Configuration written to " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Store your token: tweetcrawl auth login")
	fmt.Println("  2. Check the result: tweetcrawl config validate")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		return err
	}

	shown := *cfg
	if shown.Twitter.AuthToken != "" {
		shown.Twitter.AuthToken = auth.MaskToken(shown.Twitter.AuthToken)
	}
	if shown.Storage.PostgresDSN != "" {
		shown.Storage.PostgresDSN = "(set)"
	}

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(nil)
	printer.Success("Configuration is valid")
	printer.Info("Output", cfg.Output.BaseDirectory)
	printer.Info("Tabs", cfg.Twitter.TargetTab+" / "+cfg.Twitter.AlternateTab)
	if !cfg.HasUsableToken() {
		printer.Warning("No auth token in configuration; crawl will use stored credentials")
	}
	return nil
}
