package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PlaceholderAuthToken is the value shipped in example configs; it is never a real token
const PlaceholderAuthToken = "YOUR_TWITTER_AUTH_TOKEN_HERE"

// Config holds all configuration options for the timeline crawler
type Config struct {
	// Site credentials and targets
	Twitter TwitterConfig `yaml:"twitter" json:"twitter"`

	// Browser session settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Crawl loop settings
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Retry policies
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Optional Postgres mirror of the crawl log
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Prometheus metrics listener
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Image search glue
	Search SearchConfig `yaml:"search" json:"search"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TwitterConfig holds site-specific configuration
type TwitterConfig struct {
	AuthToken string `yaml:"auth_token" json:"auth_token"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
	// TargetTab is the profile tab being crawled; the reload workaround switches back to it
	TargetTab string `yaml:"target_tab" json:"target_tab"`
	// AlternateTab is clicked to force the timeline to reload
	AlternateTab string `yaml:"alternate_tab" json:"alternate_tab"`
}

// BrowserConfig holds chromedp session configuration
type BrowserConfig struct {
	Headless         bool          `yaml:"headless" json:"headless"`
	UserAgent        string        `yaml:"user_agent" json:"user_agent"`
	WaitTimeout      time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval" json:"poll_interval"`
	TabSwitchDelay   time.Duration `yaml:"tab_switch_delay" json:"tab_switch_delay"`
	ReloadWorkaround bool          `yaml:"reload_workaround" json:"reload_workaround"`
}

// CrawlConfig holds settings for the extraction loop
type CrawlConfig struct {
	// ItemsPerMinute paces item advances; 0 disables pacing
	ItemsPerMinute int `yaml:"items_per_minute" json:"items_per_minute"`
}

// RetryConfig holds the two fixed retry policies of the crawl
type RetryConfig struct {
	WaitAttempts    int           `yaml:"wait_attempts" json:"wait_attempts"`
	WaitDelay       time.Duration `yaml:"wait_delay" json:"wait_delay"`
	ExtractAttempts int           `yaml:"extract_attempts" json:"extract_attempts"`
	ExtractDelay    time.Duration `yaml:"extract_delay" json:"extract_delay"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	FilePrefix    string `yaml:"file_prefix" json:"file_prefix"`
}

// StorageConfig holds the optional Postgres mirror
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`
}

// MetricsConfig holds the Prometheus listener address; empty disables it
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// SearchConfig holds embedding service and cache settings
type SearchConfig struct {
	EmbedderURL string        `yaml:"embedder_url" json:"embedder_url"`
	Model       string        `yaml:"model" json:"model"`
	TopK        int           `yaml:"top_k" json:"top_k"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			BaseURL:      "https://twitter.com",
			TargetTab:    "Likes",
			AlternateTab: "Media",
		},
		Browser: BrowserConfig{
			Headless:         true,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			WaitTimeout:      10 * time.Second,
			PollInterval:     250 * time.Millisecond,
			TabSwitchDelay:   2 * time.Second,
			ReloadWorkaround: true,
		},
		Crawl: CrawlConfig{
			ItemsPerMinute: 0,
		},
		Retry: RetryConfig{
			WaitAttempts:    5,
			WaitDelay:       2 * time.Second,
			ExtractAttempts: 2,
			ExtractDelay:    1 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory: "./data",
			FilePrefix:    "tweets",
		},
		Search: SearchConfig{
			EmbedderURL: "http://localhost:8000",
			Model:       "uform-vl-english",
			TopK:        7,
			Timeout:     60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("TWEETCRAWL_AUTH_TOKEN"); token != "" {
		c.Twitter.AuthToken = token
	}
	if baseURL := os.Getenv("TWEETCRAWL_BASE_URL"); baseURL != "" {
		c.Twitter.BaseURL = baseURL
	}
	if tab := os.Getenv("TWEETCRAWL_TARGET_TAB"); tab != "" {
		c.Twitter.TargetTab = tab
	}

	if headless := os.Getenv("TWEETCRAWL_HEADLESS"); headless != "" {
		val, err := strconv.ParseBool(headless)
		if err != nil {
			return fmt.Errorf("invalid TWEETCRAWL_HEADLESS: %w", err)
		}
		c.Browser.Headless = val
	}
	if timeout := os.Getenv("TWEETCRAWL_WAIT_TIMEOUT"); timeout != "" {
		val, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid TWEETCRAWL_WAIT_TIMEOUT: %w", err)
		}
		c.Browser.WaitTimeout = val
	}

	if ipm := os.Getenv("TWEETCRAWL_ITEMS_PER_MINUTE"); ipm != "" {
		var val int
		fmt.Sscanf(ipm, "%d", &val)
		if val >= 0 {
			c.Crawl.ItemsPerMinute = val
		}
	}

	if outputDir := os.Getenv("TWEETCRAWL_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if dsn := os.Getenv("TWEETCRAWL_POSTGRES_DSN"); dsn != "" {
		c.Storage.PostgresDSN = dsn
	}
	if addr := os.Getenv("TWEETCRAWL_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}
	if embedder := os.Getenv("TWEETCRAWL_EMBEDDER_URL"); embedder != "" {
		c.Search.EmbedderURL = embedder
	}

	if logLevel := os.Getenv("TWEETCRAWL_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("TWEETCRAWL_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"tweetcrawl.yaml",
		"tweetcrawl.yml",
		".tweetcrawl.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "tweetcrawl", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".tweetcrawl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are not checked
// here; a missing token is reported by the session when a crawl starts.
func (c *Config) Validate() error {
	var errs []error

	if c.Twitter.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	if c.Twitter.TargetTab == "" || c.Twitter.AlternateTab == "" {
		errs = append(errs, errors.New("target and alternate tabs are required"))
	}
	if c.Twitter.TargetTab != "" && c.Twitter.TargetTab == c.Twitter.AlternateTab {
		errs = append(errs, errors.New("alternate tab must differ from target tab"))
	}

	if c.Browser.WaitTimeout <= 0 {
		errs = append(errs, errors.New("wait timeout must be positive"))
	}
	if c.Browser.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Browser.TabSwitchDelay < 0 {
		errs = append(errs, errors.New("tab switch delay cannot be negative"))
	}

	if c.Crawl.ItemsPerMinute < 0 {
		errs = append(errs, errors.New("items per minute cannot be negative"))
	}

	if c.Retry.WaitAttempts < 1 || c.Retry.ExtractAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if c.Retry.WaitDelay < 0 || c.Retry.ExtractDelay < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.FilePrefix == "" {
		errs = append(errs, errors.New("file prefix is required"))
	}

	if c.Search.TopK <= 0 {
		errs = append(errs, errors.New("search top_k must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.New("invalid log format"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// HasUsableToken reports whether the configured token is present and not the placeholder
func (c *Config) HasUsableToken() bool {
	return c.Twitter.AuthToken != "" && c.Twitter.AuthToken != PlaceholderAuthToken
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["auth-token"].(string); ok && token != "" {
		c.Twitter.AuthToken = token
	}
	if tab, ok := flags["tab"].(string); ok && tab != "" {
		c.Twitter.TargetTab = tab
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if timeout, ok := flags["wait-timeout"].(time.Duration); ok && timeout > 0 {
		c.Browser.WaitTimeout = timeout
	}
	if workaround, ok := flags["reload-workaround"].(bool); ok {
		c.Browser.ReloadWorkaround = workaround
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if ipm, ok := flags["items-per-minute"].(int); ok && ipm >= 0 {
		c.Crawl.ItemsPerMinute = ipm
	}
	if dsn, ok := flags["postgres-dsn"].(string); ok && dsn != "" {
		c.Storage.PostgresDSN = dsn
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Addr = addr
	}
	if embedder, ok := flags["embedder-url"].(string); ok && embedder != "" {
		c.Search.EmbedderURL = embedder
	}
	if topK, ok := flags["top-k"].(int); ok && topK > 0 {
		c.Search.TopK = topK
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tweetcrawl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
