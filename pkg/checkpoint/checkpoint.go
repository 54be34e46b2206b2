package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/models"
)

// Checkpoint represents the state of a crawl run for one profile
type Checkpoint struct {
	RunID      string        `json:"run_id"`
	ProfileURL string        `json:"profile_url"`
	Window     models.Window `json:"window"`
	LogPath    string        `json:"log_path"`
	Persisted  int           `json:"persisted"`
	LastURL    string        `json:"last_url"`
	LastDate   string        `json:"last_date"`
	Completed  bool          `json:"completed"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Version    int           `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	mu             sync.Mutex
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key turns a profile URL into a file-name-safe checkpoint key
func Key(profileURL string) string {
	key := profileURL
	for _, scheme := range []string{"https://", "http://"} {
		key = strings.TrimPrefix(key, scheme)
	}
	key = strings.Trim(unsafeKeyChars.ReplaceAllString(key, "_"), "_")
	if key == "" {
		key = "profile"
	}
	return key
}

// NewManager creates a checkpoint manager for profileURL
func NewManager(profileURL string, log logger.Logger) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		checkpointPath: filepath.Join(checkpointsDir, Key(profileURL)+".checkpoint.json"),
		logger:         log,
	}, nil
}

// Create starts a fresh checkpoint for a run and saves it
func (m *Manager) Create(runID, profileURL string, window models.Window, logPath string) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		RunID:      runID,
		ProfileURL: profileURL,
		Window:     window,
		LogPath:    logPath,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_id": runID,
		"path":   m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint; it returns nil when there is none
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":    checkpoint.RunID,
		"persisted": checkpoint.Persisted,
		"last_date": checkpoint.LastDate,
		"log":       checkpoint.LogPath,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordItem notes a persisted item
func (m *Manager) RecordItem(checkpoint *Checkpoint, item *models.Item) error {
	checkpoint.Persisted++
	checkpoint.LastURL = item.URL
	checkpoint.LastDate = item.Date
	return m.Save(checkpoint)
}

// Complete marks the run as finished
func (m *Manager) Complete(checkpoint *Checkpoint) error {
	checkpoint.Completed = true
	return m.Save(checkpoint)
}

// Resumable reports whether checkpoint describes an unfinished run over the
// same window whose log still exists
func (checkpoint *Checkpoint) Resumable(window models.Window) bool {
	if checkpoint == nil || checkpoint.Completed || !checkpoint.Window.Equal(window) {
		return false
	}
	_, err := os.Stat(checkpoint.LogPath)
	return err == nil
}

// Sink records every item appended through it; it satisfies storage.Sink
type Sink struct {
	manager    *Manager
	checkpoint *Checkpoint
}

// Sink returns a sink that records items into checkpoint
func (m *Manager) Sink(checkpoint *Checkpoint) *Sink {
	return &Sink{manager: m, checkpoint: checkpoint}
}

// Append records item
func (s *Sink) Append(_ context.Context, item *models.Item) error {
	return s.manager.RecordItem(s.checkpoint, item)
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "tweetcrawl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "tweetcrawl")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "tweetcrawl")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "tweetcrawl")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
