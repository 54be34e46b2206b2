package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/models"
	"tweetcrawl/pkg/retry"
)

// maxImageBytes caps a single download
const maxImageBytes = 32 << 20

// JobsFromItems lists every image of the image items, named
// <item id>_<n><ext>. Items repeated in the log yield their images once.
func JobsFromItems(items []models.Item) []Job {
	var jobs []Job
	seen := make(map[string]bool)
	for _, item := range items {
		if item.Media != models.MediaImage {
			continue
		}
		id := itemID(item.URL)
		for i, imageURL := range item.ImageURLs {
			name := fmt.Sprintf("%s_%d%s", id, i+1, imageExt(imageURL))
			if seen[name] {
				continue
			}
			seen[name] = true
			jobs = append(jobs, Job{URL: imageURL, Name: name, ItemURL: item.URL})
		}
	}
	return jobs
}

// itemID is the last path segment of an item URL, e.g. the status number
func itemID(itemURL string) string {
	u, err := url.Parse(itemURL)
	if err != nil || u.Path == "" {
		return "item"
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "." || id == "/" || id == "" {
		return "item"
	}
	return id
}

// imageExt reads the extension from the path or a format= query parameter,
// defaulting to .jpg
func imageExt(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return ".jpg"
	}
	if format := u.Query().Get("format"); format != "" {
		return "." + strings.ToLower(format)
	}
	if ext := strings.ToLower(path.Ext(u.Path)); ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
		return ext
	}
	return ".jpg"
}

// HTTPFetcher downloads images over HTTP with retries on transient failures
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	retry     *retry.Config
	logger    logger.Logger
}

// NewHTTPFetcher creates a fetcher; 5xx responses and transport errors are retried
func NewHTTPFetcher(timeout time.Duration, userAgent string, log logger.Logger) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		retry:     retry.DefaultConfig(),
		logger:    log,
	}
}

// Fetch returns the body at rawURL
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	cfg := *f.retry
	cfg.Context = ctx
	cfg.Logger = f.logger.WithField("url", rawURL)

	return retry.DoWithResult(func() ([]byte, error) {
		return f.get(ctx, rawURL)
	}, &cfg)
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Timeout("image host unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.Timeout(fmt.Sprintf("image host returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, errs.Timeout("failed to read image body", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	return data, nil
}

// DirStore keeps images as files in one directory
type DirStore struct {
	dir string
}

// NewDirStore creates dir if needed
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Storage("failed to create image directory", err)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the image directory
func (s *DirStore) Dir() string {
	return s.dir
}

// Exists reports whether name was already saved
func (s *DirStore) Exists(name string) bool {
	info, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil && info.Size() > 0
}

// Save writes r to name through a temp file so readers never see a partial image
func (s *DirStore) Save(r io.Reader, name string) error {
	target := filepath.Join(s.dir, filepath.Base(name))
	tmp, err := os.CreateTemp(s.dir, ".download-*")
	if err != nil {
		return errs.Storage("failed to create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return errs.Storage("failed to write image", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Storage("failed to close image", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return errs.Storage("failed to move image into place", err)
	}
	return nil
}
