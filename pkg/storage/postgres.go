package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/models"
)

const createItemsTable = `
	CREATE TABLE IF NOT EXISTS timeline_items (
		url            TEXT PRIMARY KEY,
		text           TEXT NOT NULL,
		author_name    TEXT NOT NULL,
		author_handle  TEXT NOT NULL,
		published_on   TEXT NOT NULL,
		lang           TEXT NOT NULL,
		mentioned_urls TEXT[] NOT NULL,
		is_retweet     BOOLEAN NOT NULL,
		media_type     TEXT NOT NULL,
		images_urls    TEXT[],
		num_reply      INTEGER NOT NULL,
		num_retweet    INTEGER NOT NULL,
		num_like       INTEGER NOT NULL,
		run_id         TEXT NOT NULL,
		crawled_at     TIMESTAMPTZ NOT NULL
	);
`

const upsertItem = `
	INSERT INTO timeline_items (url, text, author_name, author_handle, published_on, lang, mentioned_urls, is_retweet, media_type, images_urls, num_reply, num_retweet, num_like, run_id, crawled_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (url) DO UPDATE SET
		text = EXCLUDED.text,
		author_name = EXCLUDED.author_name,
		author_handle = EXCLUDED.author_handle,
		published_on = EXCLUDED.published_on,
		lang = EXCLUDED.lang,
		mentioned_urls = EXCLUDED.mentioned_urls,
		is_retweet = EXCLUDED.is_retweet,
		media_type = EXCLUDED.media_type,
		images_urls = EXCLUDED.images_urls,
		num_reply = EXCLUDED.num_reply,
		num_retweet = EXCLUDED.num_retweet,
		num_like = EXCLUDED.num_like,
		run_id = EXCLUDED.run_id,
		crawled_at = EXCLUDED.crawled_at;
`

// PostgresSink mirrors persisted items into a table keyed by URL, so the
// database holds the deduplicated view across runs
type PostgresSink struct {
	db    *pgxpool.Pool
	runID string
}

// NewPostgresSink connects to dsn and ensures the items table exists
func NewPostgresSink(ctx context.Context, dsn, runID string) (*PostgresSink, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errs.Storage("failed to create postgres pool", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, errs.Storage("failed to reach postgres", err)
	}
	if _, err := db.Exec(ctx, createItemsTable); err != nil {
		db.Close()
		return nil, errs.Storage("failed to create items table", err)
	}
	return &PostgresSink{db: db, runID: runID}, nil
}

// Append stores or updates item
func (s *PostgresSink) Append(ctx context.Context, item *models.Item) error {
	mentioned := item.MentionedURLs
	if mentioned == nil {
		mentioned = []string{}
	}
	_, err := s.db.Exec(ctx, upsertItem,
		item.URL,
		item.Text,
		item.AuthorName,
		item.AuthorHandle,
		item.Date,
		item.Lang,
		mentioned,
		item.IsReshare,
		item.Media.String(),
		item.ImageURLs,
		item.NumReply,
		item.NumReshare,
		item.NumLike,
		s.runID,
		time.Now().UTC(),
	)
	if err != nil {
		return errs.Storage("failed to upsert item", err)
	}
	return nil
}

// Close releases the pool
func (s *PostgresSink) Close() {
	s.db.Close()
}
