package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RunTimestampLayout names the files of one crawl run
const RunTimestampLayout = "2006-01-02_15-04-05"

// Manager owns the output directory and names run artifacts
type Manager struct {
	outputDir string
	prefix    string
}

// NewManager creates a new storage manager, creating outputDir if needed
func NewManager(outputDir, prefix string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir, prefix: prefix}, nil
}

// LogPath returns the crawl log path for a run started at t
func (m *Manager) LogPath(t time.Time) string {
	return filepath.Join(m.outputDir, fmt.Sprintf("%s_%s.json", m.prefix, t.Format(RunTimestampLayout)))
}

// SnapshotPath returns the spreadsheet path that pairs with logPath
func SnapshotPath(logPath string) string {
	return strings.TrimSuffix(logPath, filepath.Ext(logPath)) + ".xlsx"
}

// LatestLog returns the most recent crawl log in the output directory
func (m *Manager) LatestLog() (string, error) {
	logs, err := filepath.Glob(filepath.Join(m.outputDir, m.prefix+"_*.json"))
	if err != nil {
		return "", fmt.Errorf("failed to list crawl logs: %w", err)
	}
	if len(logs) == 0 {
		return "", fmt.Errorf("no crawl logs in %s", m.outputDir)
	}
	// Timestamps in the names sort lexically
	sort.Strings(logs)
	return logs[len(logs)-1], nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}
