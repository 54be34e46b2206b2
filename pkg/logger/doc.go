// Package logger provides the structured logging interface used across tweetcrawl.
//
// It wraps zerolog behind a small Logger interface so that every component
// receives its logger explicitly; there is no package-level logger.
//
//	log, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	log.WithField("profile", url).Info("Crawl started")
//
// Console output is human-readable by default (Format "text") and goes to
// stderr; Format "json" emits raw zerolog lines. When File is set, lines are
// also appended to that file.
//
// Tests use NewTestLogger to capture and assert on messages, or NewNopLogger
// to discard them.
package logger
