package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "tweetcrawl/pkg/errors"
)

func TestPostgresSinkBadDSN(t *testing.T) {
	_, err := NewPostgresSink(context.Background(), "host=localhost port=notaport", "run")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeStorage))
}

// Runs against a real database when TWEETCRAWL_TEST_POSTGRES_DSN is set
func TestPostgresSinkUpsert(t *testing.T) {
	dsn := os.Getenv("TWEETCRAWL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TWEETCRAWL_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sink, err := NewPostgresSink(ctx, dsn, "run-test")
	require.NoError(t, err)
	defer sink.Close()

	items := sampleItems()
	for i := range items {
		require.NoError(t, sink.Append(ctx, &items[i]))
	}

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	var text string
	var likes int
	err = pool.QueryRow(ctx,
		`SELECT text, num_like FROM timeline_items WHERE url = $1`, items[0].URL,
	).Scan(&text, &likes)
	require.NoError(t, err)
	// the mirror keeps the latest write for a URL
	assert.Equal(t, "first again", text)
	assert.Equal(t, 0, likes)

	_, err = pool.Exec(ctx, `DELETE FROM timeline_items WHERE run_id = 'run-test'`)
	require.NoError(t, err)
}
