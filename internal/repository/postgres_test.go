package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/deckledger/internal/actionlog"
	"github.com/magefree/deckledger/internal/config"
)

func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("DECKLEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DECKLEDGER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	pool, err := NewDB(ctx, config.DatabaseConfig{URL: url, MaxConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store, err := NewPostgresStore(ctx, pool, logger)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "TRUNCATE action_log")
	require.NoError(t, err)
	return store
}

func TestPostgresStore_WriteQueryLoad(t *testing.T) {
	ctx := context.Background()
	store := openTestPostgres(t)
	log := sampleLog()

	require.NoError(t, store.WriteBatch(ctx, log.Entries()))

	loaded, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, log.Entries(), loaded)

	f := actionlog.Filter{FromSeq: 2, Limit: 2}
	got, err := store.Query(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, log.Query(f), got)
}

func TestPostgresStore_DuplicateSeq(t *testing.T) {
	ctx := context.Background()
	store := openTestPostgres(t)
	entries := sampleLog().Entries()

	require.NoError(t, store.WriteBatch(ctx, entries[:2]))
	assert.ErrorIs(t, store.WriteBatch(ctx, entries[1:3]), ErrDuplicateSeq)
}

func TestPostgresStore_ImportIsRerunnable(t *testing.T) {
	ctx := context.Background()
	store := openTestPostgres(t)
	entries := sampleLog().Entries()

	n, err := store.Import(ctx, entries[:3], 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = store.Import(ctx, entries, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loaded, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, len(entries))
}
