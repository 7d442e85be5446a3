package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/deckledger/internal/actionlog"
	"github.com/magefree/deckledger/internal/game/tokens"
	"github.com/magefree/deckledger/internal/persistence"
)

func sampleLog() *actionlog.Log {
	now := int64(1_700_000_000_000)
	log := actionlog.New(actionlog.WithClock(func() time.Time {
		now += 10
		return time.UnixMilli(now)
	}))
	insight := tokens.New(tokens.TokenInsight)
	log.Append("", actionlog.SetSeed{Seed: 7})
	log.Append("", actionlog.GrantToken{TokenID: insight, Amount: 10, ResultingAmount: 10}, actionlog.WithActor("alice"))
	log.Append("", actionlog.DrawEncounter{AreaID: "forest", EncounterID: 13})
	log.Append("", actionlog.PlayCard{CardID: 8}, actionlog.WithRequestID("r-1"), actionlog.WithVersion(3))
	log.Append("", actionlog.ConsumeToken{TokenID: insight, Amount: 4, ResultingAmount: 6})
	return log
}

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "actions.sqlite"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_WriteAndLoad(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)
	log := sampleLog()

	require.NoError(t, store.WriteBatch(ctx, log.Entries()[:2]))
	require.NoError(t, store.WriteBatch(ctx, log.Entries()[2:]))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	loaded, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, log.Entries(), loaded)
}

func TestSQLiteStore_QueryMatchesInMemoryFilter(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)
	log := sampleLog()
	require.NoError(t, store.WriteBatch(ctx, log.Entries()))

	filters := map[string]actionlog.Filter{
		"all":         {},
		"from seq":    {FromSeq: 3},
		"limit":       {Limit: 2},
		"action type": {ActionType: actionlog.TypePlayCard},
		"since":       {Since: time.UnixMilli(1_700_000_000_030)},
		"combined":    {FromSeq: 2, ActionType: actionlog.TypeGrantToken, Limit: 1},
		"no match":    {FromSeq: 100},
	}
	for name, f := range filters {
		t.Run(name, func(t *testing.T) {
			got, err := store.Query(ctx, f)
			require.NoError(t, err)
			assert.Equal(t, log.Query(f), got)
		})
	}
}

func TestSQLiteStore_DuplicateSeqRollsBackBatch(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)
	entries := sampleLog().Entries()

	require.NoError(t, store.WriteBatch(ctx, entries[:2]))
	err := store.WriteBatch(ctx, entries[1:4])
	assert.ErrorIs(t, err, ErrDuplicateSeq)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLiteStore_LoadAllDetectsGap(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)
	entries := sampleLog().Entries()

	require.NoError(t, store.WriteBatch(ctx, []actionlog.Entry{entries[0], entries[2]}))
	_, err := store.LoadAll(ctx)
	assert.ErrorIs(t, err, actionlog.ErrSequenceGap)
}

func TestSQLiteStore_BehindPersistenceWorker(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)

	w := persistence.NewWorker(store, zaptest.NewLogger(t), persistence.WithPollInterval(time.Millisecond))
	log := actionlog.New(actionlog.WithSink(w))
	insight := tokens.New(tokens.TokenInsight)
	for i := 1; i <= 100; i++ {
		log.Append("", actionlog.GrantToken{TokenID: insight, Amount: 1, ResultingAmount: int64(i)})
	}
	require.NoError(t, w.Close())

	// the worker closed the store; reopen through a fresh handle
	reopened, err := OpenSQLite(store.Path(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, log.Entries(), loaded)
}
