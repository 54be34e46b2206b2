// Package checkpoint records the progress of a crawl run so that an
// interrupted run can be resumed with --resume.
//
// One checkpoint is kept per profile URL. It names the run's crawl log and
// window and counts the items persisted so far. Resuming reuses that log;
// items extracted again are removed by the export's URL deduplication.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: $XDG_DATA_HOME/tweetcrawl/checkpoints/ or ~/.local/share/tweetcrawl/checkpoints/
//   - macOS: ~/Library/Application Support/tweetcrawl/checkpoints/
//   - Windows: %APPDATA%/tweetcrawl/checkpoints/
//
// Files are written to a temporary path, synced, then renamed over the old
// checkpoint.
package checkpoint
