package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/deckledger/internal/actionlog"
	"github.com/magefree/deckledger/internal/config"
)

func TestSkipThrough(t *testing.T) {
	var got []uint64
	sink := skipThrough(actionlog.SinkFunc(func(entries []actionlog.Entry) error {
		for _, e := range entries {
			got = append(got, e.Seq)
		}
		return nil
	}), 2)

	for seq := uint64(1); seq <= 4; seq++ {
		require.NoError(t, sink.Submit([]actionlog.Entry{{Seq: seq}}))
	}
	assert.Equal(t, []uint64{3, 4}, got)
}

func TestOpenStore_FileRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Persistence: config.PersistenceConfig{
		Backend: config.BackendFile,
		Path:    filepath.Join(t.TempDir(), "actions.jsonl"),
	}}
	logger := zaptest.NewLogger(t)

	s, err := openStore(ctx, cfg, logger)
	require.NoError(t, err)
	existing, err := s.load(ctx)
	require.NoError(t, err)
	assert.Empty(t, existing)

	log := actionlog.New()
	entries := []actionlog.Entry{
		log.Append("", actionlog.SetSeed{Seed: 4}),
		log.Append("", actionlog.RngSnapshot{Snapshot: "AA=="}),
	}
	require.NoError(t, s.writer.WriteBatch(ctx, entries))
	require.NoError(t, s.writer.Close())

	reopened, err := openStore(ctx, cfg, logger)
	require.NoError(t, err)
	defer reopened.writer.Close()
	loaded, err := reopened.load(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, err := openStore(context.Background(), &config.Config{Persistence: config.PersistenceConfig{Backend: "tape"}}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOpenStore_None(t *testing.T) {
	s, err := openStore(context.Background(), &config.Config{Persistence: config.PersistenceConfig{Backend: config.BackendNone}}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, s)
}
