package imagesearch

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/metrics"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// ImageFiles lists the images directly inside dir, sorted by name
func ImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// IndexOptions tune Index
type IndexOptions struct {
	// Model is recorded in the cache; a cache built with another model is discarded
	Model string
	// CachePath defaults to CacheFile inside the folder
	CachePath string
	Metrics   *metrics.Recorder
	// Progress is called after each image is handled
	Progress func(done, total int)
}

// Index returns embeddings for every image in dir. Images already in the
// cache are reused; the rest are embedded and the cache is rewritten.
func Index(ctx context.Context, dir string, embedder Embedder, opts IndexOptions, log logger.Logger) (*Cache, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve image folder: %w", err)
	}
	if opts.CachePath == "" {
		opts.CachePath = filepath.Join(dir, CacheFile)
	}

	files, err := ImageFiles(dir)
	if err != nil {
		return nil, err
	}

	previous, err := LoadCache(opts.CachePath)
	if err != nil {
		log.WithError(err).Warn("Ignoring unreadable embedding cache")
		previous = nil
	}
	if previous != nil && previous.Model != opts.Model {
		log.WithFields(map[string]interface{}{
			"cached_model": previous.Model,
			"model":        opts.Model,
		}).Info("Embedding model changed, rebuilding cache")
		previous = nil
	}

	cache := &Cache{Model: opts.Model, Entries: make([]Entry, 0, len(files))}
	reused, computed := 0, 0
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if previous != nil {
			if vec, ok := previous.Lookup(path); ok {
				cache.Entries = append(cache.Entries, Entry{Path: path, Embedding: vec})
				reused++
				report(opts.Progress, i+1, len(files))
				continue
			}
		}

		vec, err := embedder.EmbedImage(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("embed %s: %w", filepath.Base(path), err)
		}
		cache.Entries = append(cache.Entries, Entry{Path: path, Embedding: vec})
		computed++
		report(opts.Progress, i+1, len(files))
	}

	opts.Metrics.Embeddings("cache", reused)
	opts.Metrics.Embeddings("model", computed)

	stale := previous != nil && len(previous.Entries) != reused
	if computed > 0 || stale || previous == nil {
		if err := SaveCache(opts.CachePath, cache); err != nil {
			return nil, err
		}
	}

	log.WithFields(map[string]interface{}{
		"images":   len(files),
		"reused":   reused,
		"computed": computed,
		"cache":    opts.CachePath,
	}).Info("Image folder indexed")
	return cache, nil
}

func report(progress func(done, total int), done, total int) {
	if progress != nil {
		progress(done, total)
	}
}

// Result is one ranked image
type Result struct {
	Path  string
	Score float64
}

// Cosine is the cosine similarity of a and b, or 0 when either is zero or
// their lengths differ
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK ranks entries against query, best first. Ties keep cache order.
func TopK(query []float32, entries []Entry, k int) []Result {
	results := make([]Result, len(entries))
	for i, e := range entries {
		results[i] = Result{Path: e.Path, Score: Cosine(query, e.Embedding)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	return results
}

// Query embeds text and returns the k closest images in cache
func Query(ctx context.Context, embedder Embedder, cache *Cache, text string, k int) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty query")
	}
	vec, err := embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return TopK(vec, cache.Entries, k), nil
}
