package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/models"
)

// Sink receives every persisted item
type Sink interface {
	Append(ctx context.Context, item *models.Item) error
}

// CrawlLog is an append-only file of one JSON record per line. Each Append
// is flushed to disk before returning, so a crash loses at most the line
// being written.
type CrawlLog struct {
	path    string
	file    *os.File
	count   int
	dropped int64
	mu      sync.Mutex
}

// OpenLog opens path for appending, creating it if needed. An unterminated
// last line left by an interrupted Append is cut off first so new records
// start on a line of their own.
func OpenLog(path string) (*CrawlLog, error) {
	dropped, err := trimPartialTail(path)
	if err != nil {
		return nil, errs.Storage("failed to repair crawl log", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errs.Storage("failed to open crawl log", err)
	}
	return &CrawlLog{path: path, file: file, dropped: dropped}, nil
}

// trimPartialTail truncates path to just after its last newline and returns
// the number of bytes removed
func trimPartialTail(path string) (int64, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()

	buf := make([]byte, 4096)
	end := size
	for end > 0 {
		start := end - int64(len(buf))
		if start < 0 {
			start = 0
		}
		chunk := buf[:end-start]
		if _, err := file.ReadAt(chunk, start); err != nil && err != io.EOF {
			return 0, err
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			end = start + int64(i) + 1
			break
		}
		end = start
	}

	if end == size {
		return 0, nil
	}
	if err := file.Truncate(end); err != nil {
		return 0, err
	}
	return size - end, file.Sync()
}

// Append writes item as one line and syncs the file
func (l *CrawlLog) Append(_ context.Context, item *models.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return errs.Storage("failed to encode item", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(data); err != nil {
		return errs.Storage("failed to append item", err)
	}
	if err := l.file.Sync(); err != nil {
		return errs.Storage("failed to sync crawl log", err)
	}
	l.count++
	return nil
}

// Count returns the number of items appended through this handle
func (l *CrawlLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// DroppedBytes is the size of the partial record OpenLog removed, if any
func (l *CrawlLog) DroppedBytes() int64 {
	return l.dropped
}

// Path returns the log file path
func (l *CrawlLog) Path() string {
	return l.path
}

// Close closes the underlying file
func (l *CrawlLog) Close() error {
	return l.file.Close()
}

// ReadLog reads every record of a crawl log in order. A truncated final line
// left by an interrupted write is ignored.
func ReadLog(path string) ([]models.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Storage("failed to read crawl log", err)
	}

	var items []models.Item
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var item models.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			if isLastLine(data, scanner.Bytes()) {
				break
			}
			return nil, errs.Storage(fmt.Sprintf("malformed record on line %d", line), err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Storage("failed to scan crawl log", err)
	}
	return items, nil
}

// isLastLine reports whether tok is the unterminated tail of data
func isLastLine(data, tok []byte) bool {
	return len(data) > 0 && data[len(data)-1] != '\n' && bytes.HasSuffix(data, tok)
}
