package imagesearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/metrics"
	"tweetcrawl/pkg/retry"
)

// fakeEmbedder maps file base names and query strings to fixed vectors
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   []string
}

func (f *fakeEmbedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	name := filepath.Base(path)
	f.calls = append(f.calls, name)
	return f.vectors[name], nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, "text:"+text)
	return f.vectors[text], nil
}

func imageFolder(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}
	return dir
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 1}, []float32{-1, -1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 1}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestTopK(t *testing.T) {
	entries := []Entry{
		{Path: "cat.jpg", Embedding: []float32{1, 0}},
		{Path: "dog.jpg", Embedding: []float32{0, 1}},
		{Path: "catdog.jpg", Embedding: []float32{1, 1}},
		{Path: "cat2.jpg", Embedding: []float32{2, 0}},
	}

	results := TopK([]float32{1, 0}, entries, 3)
	require.Len(t, results, 3)
	assert.Equal(t, "cat.jpg", results[0].Path)
	assert.Equal(t, "cat2.jpg", results[1].Path)
	assert.Equal(t, "catdog.jpg", results[2].Path)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	assert.Len(t, TopK([]float32{1, 0}, entries, 10), 4)
	assert.Empty(t, TopK([]float32{1, 0}, nil, 3))
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", CacheFile)

	missing, err := LoadCache(path)
	require.NoError(t, err)
	assert.Nil(t, missing)

	in := &Cache{Model: "m", Entries: []Entry{{Path: "/a.jpg", Embedding: []float32{0.5, 0.25}}}}
	require.NoError(t, SaveCache(path, in))

	out, err := LoadCache(path)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "m", out.Model)
	assert.Equal(t, in.Entries, out.Entries)
	assert.False(t, out.UpdatedAt.IsZero())

	vec, ok := out.Lookup("/a.jpg")
	assert.True(t, ok)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
	_, ok = out.Lookup("/b.jpg")
	assert.False(t, ok)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestImageFiles(t *testing.T) {
	dir := imageFolder(t, "b.PNG", "a.jpg", "notes.txt", "c.jpeg")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0755))

	files, err := ImageFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(dir, "c.jpeg"),
	}, files)
}

func TestIndexReusesCache(t *testing.T) {
	dir := imageFolder(t, "cat.jpg", "dog.png")
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"cat.jpg": {1, 0},
		"dog.png": {0, 1},
		"owl.jpg": {1, 1},
		"a cat":   {0.9, 0.1},
	}}
	rec := metrics.New()
	opts := IndexOptions{Model: "m", Metrics: rec}

	first, err := Index(context.Background(), dir, embedder, opts, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, first.Entries, 2)
	assert.Equal(t, []string{"cat.jpg", "dog.png"}, embedder.calls)

	// a new image is the only one embedded on the second pass
	require.NoError(t, os.WriteFile(filepath.Join(dir, "owl.jpg"), []byte("owl"), 0644))
	embedder.calls = nil
	var progress []int
	opts.Progress = func(done, total int) { progress = append(progress, done) }

	second, err := Index(context.Background(), dir, embedder, opts, nil)
	require.NoError(t, err)
	assert.Len(t, second.Entries, 3)
	assert.Equal(t, []string{"owl.jpg"}, embedder.calls)
	assert.Equal(t, []int{1, 2, 3}, progress)
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.EmbeddingsTotal.WithLabelValues("cache")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.EmbeddingsTotal.WithLabelValues("model")))

	results, err := Query(context.Background(), embedder, second, "a cat", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(dir, "cat.jpg"), results[0].Path)
	assert.Equal(t, filepath.Join(dir, "owl.jpg"), results[1].Path)
}

func TestIndexRebuildsOnModelChange(t *testing.T) {
	dir := imageFolder(t, "cat.jpg")
	embedder := &fakeEmbedder{vectors: map[string][]float32{"cat.jpg": {1, 0}}}

	_, err := Index(context.Background(), dir, embedder, IndexOptions{Model: "old"}, nil)
	require.NoError(t, err)
	embedder.calls = nil

	cache, err := Index(context.Background(), dir, embedder, IndexOptions{Model: "new"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "new", cache.Model)
	assert.Equal(t, []string{"cat.jpg"}, embedder.calls)
}

func TestQueryRejectsEmptyText(t *testing.T) {
	_, err := Query(context.Background(), &fakeEmbedder{}, &Cache{}, "  ", 3)
	assert.Error(t, err)
}

func TestHTTPEmbedder(t *testing.T) {
	var textCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/embed/text":
			var req textRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			// the first text call fails to exercise the retry
			if atomic.AddInt32(&textCalls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			assert.Equal(t, "m", req.Model)
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{float32(len(req.Text)), 1}})
		case "/embed/image":
			var req imageRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Y2F0", req.Image)
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 0}})
		default:
			http.Error(w, "no such endpoint", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL+"/", "m", 0, nil)
	e.retry = retry.Fixed(3, 0, nil)
	assert.Equal(t, "m", e.Model())

	vec, err := e.EmbedText(context.Background(), "cats")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, vec)
	assert.Equal(t, int32(2), atomic.LoadInt32(&textCalls))

	dir := imageFolder(t, "cat")
	vec, err = e.EmbedImage(context.Background(), filepath.Join(dir, "cat"))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)

	_, err = e.EmbedImage(context.Background(), filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}

func TestHTTPEmbedderClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "m", 0, nil)
	e.retry = retry.Fixed(3, 0, nil)

	_, err := e.EmbedText(context.Background(), "cats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
