package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/deckledger/internal/actionlog"
	"github.com/magefree/deckledger/internal/game/tokens"
)

type memoryWriter struct {
	mu      sync.Mutex
	batches [][]actionlog.Entry
	closed  bool
	fail    error
	block   chan struct{}
}

func (m *memoryWriter) WriteBatch(_ context.Context, entries []actionlog.Entry) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.batches = append(m.batches, append([]actionlog.Entry(nil), entries...))
	return nil
}

func (m *memoryWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memoryWriter) seqs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uint64
	for _, b := range m.batches {
		for _, e := range b {
			out = append(out, e.Seq)
		}
	}
	return out
}

func appendN(log *actionlog.Log, n int) {
	for i := 0; i < n; i++ {
		log.Append("", actionlog.GrantToken{
			TokenID:         tokens.New(tokens.TokenInsight),
			Amount:          1,
			ResultingAmount: int64(i + 1),
		})
	}
}

func TestWorker_CloseDrainsQueue(t *testing.T) {
	mem := &memoryWriter{}
	w := NewWorker(mem, zaptest.NewLogger(t), WithPollInterval(time.Hour))
	log := actionlog.New(actionlog.WithSink(w))

	appendN(log, 50)
	require.NoError(t, w.Close())

	assert.True(t, mem.closed)
	seqs := mem.seqs()
	require.Len(t, seqs, 50)
	for i, s := range seqs {
		assert.Equal(t, uint64(i+1), s)
	}
	assert.Equal(t, uint64(50), w.Stats().Written)
}

func TestWorker_PollIntervalFlushes(t *testing.T) {
	mem := &memoryWriter{}
	w := NewWorker(mem, zaptest.NewLogger(t), WithPollInterval(5*time.Millisecond))
	defer w.Close()

	log := actionlog.New(actionlog.WithSink(w))
	appendN(log, 3)

	assert.Eventually(t, func() bool { return len(mem.seqs()) == 3 }, time.Second, 5*time.Millisecond)
}

func TestWorker_MaxBatchSplitsWrites(t *testing.T) {
	mem := &memoryWriter{}
	w := NewWorker(mem, zaptest.NewLogger(t), WithPollInterval(time.Hour), WithMaxBatch(4))
	log := actionlog.New(actionlog.WithSink(w))

	appendN(log, 10)
	require.NoError(t, w.Close())

	mem.mu.Lock()
	defer mem.mu.Unlock()
	for _, b := range mem.batches {
		assert.LessOrEqual(t, len(b), 4)
	}
	assert.GreaterOrEqual(t, len(mem.batches), 3)
}

func TestWorker_SubmitAfterCloseFails(t *testing.T) {
	w := NewWorker(&memoryWriter{}, zaptest.NewLogger(t))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err := w.Submit([]actionlog.Entry{{Seq: 1}})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWorker_FullQueueBlocksProducer(t *testing.T) {
	mem := &memoryWriter{block: make(chan struct{})}
	w := NewWorker(mem, zaptest.NewLogger(t), WithQueueSize(2), WithMaxBatch(1), WithPollInterval(time.Hour))

	// The first entry is taken by the worker and parks in WriteBatch; two
	// more fill the queue; the fourth has to wait.
	submitted := make(chan struct{})
	go func() {
		for i := 1; i <= 4; i++ {
			_ = w.Submit([]actionlog.Entry{{Seq: uint64(i)}})
		}
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("producer did not block on a full queue")
	case <-time.After(50 * time.Millisecond):
	}

	close(mem.block)
	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("producer still blocked after the writer resumed")
	}
	require.NoError(t, w.Close())
	assert.Equal(t, []uint64{1, 2, 3, 4}, mem.seqs())
}

func TestWorker_WriteFailureIsCountedNotFatal(t *testing.T) {
	mem := &memoryWriter{fail: errors.New("read-only filesystem")}
	w := NewWorker(mem, zaptest.NewLogger(t), WithPollInterval(time.Hour))
	log := actionlog.New(actionlog.WithSink(w))

	appendN(log, 3)
	require.NoError(t, w.Close())

	assert.Equal(t, 3, log.Len())
	assert.Equal(t, uint64(3), w.Stats().Failed)
	assert.Zero(t, w.Stats().Written)
}

func TestFileWriter_PersistsThreeEntriesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "actions.jsonl")
	fw, err := OpenFile(path, FileOptions{Fsync: true})
	require.NoError(t, err)

	w := NewWorker(fw, zaptest.NewLogger(t))
	log := actionlog.New(actionlog.WithSink(w))
	appendN(log, 3)
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)

	entries, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, uint64(i+1), e.Seq)
		assert.Equal(t, actionlog.TypeGrantToken, e.ActionType)
		assert.Equal(t, int64(i+1), e.Payload.(actionlog.GrantToken).ResultingAmount)
	}
}

func TestFileWriter_CompressedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.jsonl.zst")
	fw, err := OpenFile(path, FileOptions{Compress: true})
	require.NoError(t, err)

	log := actionlog.New()
	appendN(log, 20)
	require.NoError(t, fw.WriteBatch(context.Background(), log.Entries()[:10]))
	require.NoError(t, fw.WriteBatch(context.Background(), log.Entries()[10:]))
	require.NoError(t, fw.Close())

	entries, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, log.Entries(), entries)
}

func TestFileWriter_WriteAfterClose(t *testing.T) {
	fw, err := OpenFile(filepath.Join(t.TempDir(), "a.jsonl"), FileOptions{})
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	require.NoError(t, fw.Close())

	err = fw.WriteBatch(context.Background(), []actionlog.Entry{{Seq: 1}})
	assert.ErrorIs(t, err, ErrClosed)
}
