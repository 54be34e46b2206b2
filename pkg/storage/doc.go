// Package storage persists crawled items.
//
// A crawl run writes an append-only CrawlLog: one JSON object per line,
// synced after every append so that an interrupted run keeps everything it
// extracted. When the run ends, Export reads the log, keeps the first record
// for each URL and writes a spreadsheet snapshot next to it. The log itself is
// never rewritten, so exporting twice yields the same snapshot.
//
// Run artifacts are named from the run's start time:
//
//	mgr, _ := storage.NewManager("./data", "tweets")
//	logPath := mgr.LogPath(time.Now())          // data/tweets_2024-03-05_14-03-22.json
//	snapshot := storage.SnapshotPath(logPath)   // data/tweets_2024-03-05_14-03-22.xlsx
//
// PostgresSink optionally mirrors every appended item into a table keyed by
// URL.
package storage
