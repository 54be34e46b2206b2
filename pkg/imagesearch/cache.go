package imagesearch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CacheFile is the cache file name inside an indexed folder
const CacheFile = "embeddings.json"

// Entry is one embedded image
type Entry struct {
	Path      string    `json:"path"`
	Embedding []float32 `json:"embedding"`
}

// Cache holds the embeddings of one image folder
type Cache struct {
	Model     string    `json:"model"`
	Entries   []Entry   `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lookup returns the embedding stored for path
func (c *Cache) Lookup(path string) ([]float32, bool) {
	for _, e := range c.Entries {
		if e.Path == path {
			return e.Embedding, true
		}
	}
	return nil, false
}

// LoadCache reads a cache file. A missing file yields nil and no error.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}

	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode embedding cache: %w", err)
	}
	return &c, nil
}

// SaveCache writes c to path through a temporary file
func SaveCache(path string, c *Cache) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	c.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal embedding cache: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write embedding cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace embedding cache: %w", err)
	}
	return nil
}
