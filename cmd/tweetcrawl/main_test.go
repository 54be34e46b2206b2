package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tweetcrawl/pkg/config"
)

func TestExampleConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweetcrawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0600))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "Likes", cfg.Twitter.TargetTab)
	assert.Equal(t, "Media", cfg.Twitter.AlternateTab)
	assert.Equal(t, 10*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Browser.PollInterval)
	assert.Equal(t, 5, cfg.Retry.WaitAttempts)
	assert.Equal(t, 7, cfg.Search.TopK)
	assert.False(t, cfg.HasUsableToken())
}

func TestCrawlFlagsPassOnlyChangedSwitches(t *testing.T) {
	cmd := &cobra.Command{Use: "crawl"}
	cmd.Flags().BoolVar(&crawlHeadless, "headless", true, "")
	cmd.Flags().BoolVar(&crawlReloadWorkaround, "reload-workaround", true, "")
	cmd.Flags().IntVar(&crawlItemsPerMinute, "items-per-minute", 0, "")

	flags := crawlFlags(cmd)
	assert.NotContains(t, flags, "headless")
	assert.NotContains(t, flags, "reload-workaround")
	assert.NotContains(t, flags, "items-per-minute")

	require.NoError(t, cmd.Flags().Parse([]string{"--headless=false", "--items-per-minute", "30"}))
	flags = crawlFlags(cmd)
	assert.Equal(t, false, flags["headless"])
	assert.Equal(t, 30, flags["items-per-minute"])
	assert.NotContains(t, flags, "reload-workaround")
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{
		{"crawl"},
		{"export"},
		{"media"},
		{"auth", "login"},
		{"auth", "logout"},
		{"auth", "list"},
		{"config", "init"},
		{"config", "show"},
		{"config", "validate"},
		{"search", "index"},
		{"search", "query"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
