package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Twitter.BaseURL != "https://twitter.com" {
		t.Errorf("Expected default base URL to be https://twitter.com, got %s", config.Twitter.BaseURL)
	}

	if config.Twitter.TargetTab != "Likes" || config.Twitter.AlternateTab != "Media" {
		t.Errorf("Expected default tabs Likes/Media, got %s/%s", config.Twitter.TargetTab, config.Twitter.AlternateTab)
	}

	if config.Browser.WaitTimeout != 10*time.Second {
		t.Errorf("Expected default wait timeout to be 10s, got %v", config.Browser.WaitTimeout)
	}

	if config.Retry.WaitAttempts != 5 || config.Retry.WaitDelay != 2*time.Second {
		t.Errorf("Expected wait retry 5 x 2s, got %d x %v", config.Retry.WaitAttempts, config.Retry.WaitDelay)
	}

	if config.Retry.ExtractAttempts != 2 || config.Retry.ExtractDelay != time.Second {
		t.Errorf("Expected extract retry 2 x 1s, got %d x %v", config.Retry.ExtractAttempts, config.Retry.ExtractDelay)
	}

	if config.Search.TopK != 7 {
		t.Errorf("Expected default top_k to be 7, got %d", config.Search.TopK)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TWEETCRAWL_AUTH_TOKEN", "env-token")
	t.Setenv("TWEETCRAWL_TARGET_TAB", "Posts")
	t.Setenv("TWEETCRAWL_HEADLESS", "false")
	t.Setenv("TWEETCRAWL_WAIT_TIMEOUT", "15s")
	t.Setenv("TWEETCRAWL_ITEMS_PER_MINUTE", "30")
	t.Setenv("TWEETCRAWL_OUTPUT_DIR", "/tmp/crawl-out")
	t.Setenv("TWEETCRAWL_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Twitter.AuthToken != "env-token" {
		t.Errorf("Expected auth token to be env-token, got %s", config.Twitter.AuthToken)
	}
	if config.Twitter.TargetTab != "Posts" {
		t.Errorf("Expected target tab to be Posts, got %s", config.Twitter.TargetTab)
	}
	if config.Browser.Headless {
		t.Errorf("Expected headless to be false")
	}
	if config.Browser.WaitTimeout != 15*time.Second {
		t.Errorf("Expected wait timeout to be 15s, got %v", config.Browser.WaitTimeout)
	}
	if config.Crawl.ItemsPerMinute != 30 {
		t.Errorf("Expected items per minute to be 30, got %d", config.Crawl.ItemsPerMinute)
	}
	if config.Output.BaseDirectory != "/tmp/crawl-out" {
		t.Errorf("Expected output directory to be /tmp/crawl-out, got %s", config.Output.BaseDirectory)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("TWEETCRAWL_HEADLESS", "maybe")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected error for invalid TWEETCRAWL_HEADLESS")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "same tabs",
			mutate:    func(c *Config) { c.Twitter.AlternateTab = c.Twitter.TargetTab },
			wantError: "alternate tab must differ",
		},
		{
			name:      "zero wait timeout",
			mutate:    func(c *Config) { c.Browser.WaitTimeout = 0 },
			wantError: "wait timeout must be positive",
		},
		{
			name:      "no retry attempts",
			mutate:    func(c *Config) { c.Retry.ExtractAttempts = 0 },
			wantError: "retry attempts must be at least 1",
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantError: "invalid log level",
		},
		{
			name:      "negative pacing",
			mutate:    func(c *Config) { c.Crawl.ItemsPerMinute = -1 },
			wantError: "items per minute cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantError)
			}
		})
	}
}

func TestHasUsableToken(t *testing.T) {
	config := DefaultConfig()
	if config.HasUsableToken() {
		t.Error("Expected empty token to be unusable")
	}

	config.Twitter.AuthToken = PlaceholderAuthToken
	if config.HasUsableToken() {
		t.Error("Expected placeholder token to be unusable")
	}

	config.Twitter.AuthToken = "abc123"
	if !config.HasUsableToken() {
		t.Error("Expected real token to be usable")
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"auth-token":        "flag-token",
		"tab":               "Posts",
		"output":            "/flag/output",
		"items-per-minute":  12,
		"reload-workaround": false,
		"log-level":         "error",
	}

	config.MergeCommandLineFlags(flags)

	if config.Twitter.AuthToken != "flag-token" {
		t.Errorf("Expected auth token to be flag-token, got %s", config.Twitter.AuthToken)
	}
	if config.Twitter.TargetTab != "Posts" {
		t.Errorf("Expected target tab to be Posts, got %s", config.Twitter.TargetTab)
	}
	if config.Output.BaseDirectory != "/flag/output" {
		t.Errorf("Expected output directory to be /flag/output, got %s", config.Output.BaseDirectory)
	}
	if config.Crawl.ItemsPerMinute != 12 {
		t.Errorf("Expected items per minute to be 12, got %d", config.Crawl.ItemsPerMinute)
	}
	if config.Browser.ReloadWorkaround {
		t.Error("Expected reload workaround to be disabled")
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "tweetcrawl.yaml")

	config := DefaultConfig()
	config.Twitter.AuthToken = "saved-token"
	config.Browser.TabSwitchDelay = 3 * time.Second
	config.Search.TopK = 3

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Config file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected config file mode 0600, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Twitter.AuthToken != "saved-token" {
		t.Errorf("Expected loaded auth token to be saved-token, got %s", loaded.Twitter.AuthToken)
	}
	if loaded.Browser.TabSwitchDelay != 3*time.Second {
		t.Errorf("Expected loaded tab switch delay to be 3s, got %v", loaded.Browser.TabSwitchDelay)
	}
	if loaded.Search.TopK != 3 {
		t.Errorf("Expected loaded top_k to be 3, got %d", loaded.Search.TopK)
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("twitter: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err == nil {
		t.Error("Expected parse error for invalid YAML")
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweetcrawl.yaml")
	content := "twitter:\n  auth_token: file-token\n  target_tab: Posts\noutput:\n  base_directory: /from/file\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TWEETCRAWL_OUTPUT_DIR", "/from/env")

	config, err := Load(path, map[string]interface{}{"auth-token": "flag-token"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Twitter.AuthToken != "flag-token" {
		t.Errorf("Expected flag to win for auth token, got %s", config.Twitter.AuthToken)
	}
	if config.Twitter.TargetTab != "Posts" {
		t.Errorf("Expected file value for target tab, got %s", config.Twitter.TargetTab)
	}
	if config.Output.BaseDirectory != "/from/env" {
		t.Errorf("Expected env to win for output dir, got %s", config.Output.BaseDirectory)
	}
}
