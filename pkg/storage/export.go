package storage

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/models"
)

// SnapshotSheet is the worksheet holding exported items
const SnapshotSheet = "tweets"

// Dedupe keeps the first item seen for each URL, preserving order
func Dedupe(items []models.Item) []models.Item {
	seen := make(map[string]bool, len(items))
	unique := make([]models.Item, 0, len(items))
	for _, item := range items {
		if seen[item.URL] {
			continue
		}
		seen[item.URL] = true
		unique = append(unique, item)
	}
	return unique
}

// Export reads the crawl log at logPath, removes duplicate URLs and writes
// the result as a spreadsheet at snapshotPath. The log is not modified.
// It returns the number of unique items written.
func Export(logPath, snapshotPath string) (int, error) {
	items, err := ReadLog(logPath)
	if err != nil {
		return 0, err
	}
	unique := Dedupe(items)

	if err := writeSnapshot(snapshotPath, unique); err != nil {
		return 0, err
	}
	return len(unique), nil
}

func writeSnapshot(path string, items []models.Item) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SnapshotSheet); err != nil {
		return errs.Storage("failed to name snapshot sheet", err)
	}

	header := make([]interface{}, len(models.Columns))
	for i, col := range models.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(SnapshotSheet, "A1", &header); err != nil {
		return errs.Storage("failed to write snapshot header", err)
	}

	for i := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errs.Storage("failed to address snapshot row", err)
		}
		row := snapshotRow(&items[i])
		if err := f.SetSheetRow(SnapshotSheet, cell, &row); err != nil {
			return errs.Storage(fmt.Sprintf("failed to write snapshot row %d", i+2), err)
		}
	}

	// Same directory keeps the rename atomic
	tmp := strings.TrimSuffix(path, ".xlsx") + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return errs.Storage("failed to save snapshot", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.Storage("failed to replace snapshot", err)
	}
	return nil
}

// snapshotRow lays out an item in models.Columns order
func snapshotRow(item *models.Item) []interface{} {
	return []interface{}{
		item.Text,
		item.AuthorName,
		item.AuthorHandle,
		item.Date,
		item.Lang,
		item.URL,
		strings.Join(item.MentionedURLs, "\n"),
		item.IsReshare,
		item.Media.String(),
		strings.Join(item.ImageURLs, "\n"),
		item.NumReply,
		item.NumReshare,
		item.NumLike,
	}
}
