package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/models"
)

func sampleItems() []models.Item {
	return []models.Item{
		{Text: "first", URL: "https://twitter.com/a/status/1", Date: "2024-03-04", Media: models.MediaImage,
			ImageURLs: []string{"https://img/1.jpg", "https://img/2.jpg"}, NumLike: 5},
		{Text: "second", URL: "https://twitter.com/a/status/2", Date: "2024-03-03", MentionedURLs: []string{"https://t.co/x"}},
		{Text: "first again", URL: "https://twitter.com/a/status/1", Date: "2024-03-04"},
	}
}

func writeLog(t *testing.T, path string, items []models.Item) {
	t.Helper()
	log, err := OpenLog(path)
	require.NoError(t, err)
	defer log.Close()
	for i := range items {
		require.NoError(t, log.Append(context.Background(), &items[i]))
	}
	assert.Equal(t, len(items), log.Count())
}

func TestDedupeKeepsFirst(t *testing.T) {
	unique := Dedupe(sampleItems())

	require.Len(t, unique, 2)
	assert.Equal(t, "first", unique[0].Text)
	assert.Equal(t, "second", unique[1].Text)
	assert.Empty(t, Dedupe(nil))
}

func TestCrawlLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweets.json")
	writeLog(t, path, sampleItems())

	items, err := ReadLog(path)
	require.NoError(t, err)
	assert.Equal(t, sampleItems(), items)

	// Reopening appends rather than truncating
	writeLog(t, path, sampleItems()[:1])
	items, err = ReadLog(path)
	require.NoError(t, err)
	assert.Len(t, items, 4)
}

func TestReadLogTruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweets.json")
	writeLog(t, path, sampleItems()[:2])

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"text":"half`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	items, err := ReadLog(path)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestOpenLogResumesAfterTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tweets_2024-03-05_10-00-00.json")
	items := sampleItems()
	writeLog(t, path, items[:2])

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"text":"half`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	log, err := OpenLog(path)
	require.NoError(t, err)
	assert.EqualValues(t, len(`{"text":"half`), log.DroppedBytes())
	require.NoError(t, log.Append(context.Background(), &models.Item{
		Text: "third", URL: "https://twitter.com/a/status/3", Date: "2024-03-02",
	}))
	require.NoError(t, log.Close())

	read, err := ReadLog(path)
	require.NoError(t, err)
	require.Len(t, read, 3)
	assert.Equal(t, "third", read[2].Text)

	n, err := Export(path, SnapshotPath(path))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestOpenLogKeepsCompleteLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweets.json")
	writeLog(t, path, sampleItems()[:2])
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	log, err := OpenLog(path)
	require.NoError(t, err)
	assert.Zero(t, log.DroppedBytes())
	require.NoError(t, log.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestOpenLogOnlyPartialRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"text":"cut`), 0644))

	log, err := OpenLog(path)
	require.NoError(t, err)
	assert.EqualValues(t, 12, log.DroppedBytes())
	require.NoError(t, log.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestReadLogMalformedMiddle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweets.json")
	content := `{"text":"ok","url":"u1","media_type":"No media"}` + "\n" + "not json\n" + `{"text":"ok","url":"u2","media_type":"No media"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := ReadLog(path)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeStorage))
	assert.Contains(t, err.Error(), "line 2")
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "tweets_2024-03-05_10-00-00.json")
	writeLog(t, logPath, sampleItems())
	before, err := os.ReadFile(logPath)
	require.NoError(t, err)

	snapshot := SnapshotPath(logPath)
	n, err := Export(logPath, snapshot)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	after, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	rows := readRows(t, snapshot)
	require.Len(t, rows, 3)
	assert.Equal(t, models.Columns, rows[0])
	assert.Equal(t, "first", rows[1][0])
	assert.Equal(t, "https://twitter.com/a/status/1", rows[1][5])
	assert.Equal(t, "Image", rows[1][8])
	assert.Equal(t, "https://img/1.jpg\nhttps://img/2.jpg", rows[1][9])
	assert.Equal(t, "5", rows[1][12])
	assert.Equal(t, "second", rows[2][0])
	assert.Equal(t, "https://t.co/x", rows[2][6])

	// Exporting again yields the same snapshot
	n, err = Export(logPath, snapshot)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, rows, readRows(t, snapshot))

	_, err = os.Stat(filepath.Join(dir, "tweets_2024-03-05_10-00-00.tmp.xlsx"))
	assert.True(t, os.IsNotExist(err))
}

func TestExportMissingLog(t *testing.T) {
	_, err := Export(filepath.Join(t.TempDir(), "missing.json"), filepath.Join(t.TempDir(), "out.xlsx"))
	assert.True(t, errs.IsType(err, errs.ErrorTypeStorage))
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SnapshotSheet)
	require.NoError(t, err)
	return rows
}

func TestManagerPaths(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	mgr, err := NewManager(dir, "tweets")
	require.NoError(t, err)

	started := time.Date(2024, 3, 5, 14, 3, 22, 0, time.UTC)
	logPath := mgr.LogPath(started)
	assert.Equal(t, filepath.Join(dir, "tweets_2024-03-05_14-03-22.json"), logPath)
	assert.Equal(t, filepath.Join(dir, "tweets_2024-03-05_14-03-22.xlsx"), SnapshotPath(logPath))

	_, err = mgr.LatestLog()
	assert.Error(t, err)

	older := mgr.LogPath(started.Add(-time.Hour))
	require.NoError(t, os.WriteFile(older, nil, 0644))
	require.NoError(t, os.WriteFile(logPath, nil, 0644))

	latest, err := mgr.LatestLog()
	require.NoError(t, err)
	assert.Equal(t, logPath, latest)
	assert.Equal(t, dir, mgr.GetOutputDir())
}
