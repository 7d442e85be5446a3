// Package persistence moves appended action entries off the game's hot
// path and onto durable storage.
package persistence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/magefree/deckledger/internal/actionlog"
)

const (
	DefaultQueueSize    = 1000
	DefaultPollInterval = 50 * time.Millisecond
	DefaultMaxBatch     = 256
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("persistence worker closed")

// BatchWriter stores entries. WriteBatch is only ever called from the
// worker goroutine, in the order entries were submitted. That order is seq
// order when the log's appends are serialized, as under the game lock.
type BatchWriter interface {
	WriteBatch(ctx context.Context, entries []actionlog.Entry) error
	Close() error
}

// Stats counts what the worker has done so far.
type Stats struct {
	Written uint64
	Failed  uint64
	Batches uint64
}

// Worker is an actionlog.Sink backed by a bounded queue. Submit blocks
// while the queue is full; a single goroutine drains it in batches.
type Worker struct {
	logger       *zap.Logger
	writer       BatchWriter
	pollInterval time.Duration
	maxBatch     int

	queue chan actionlog.Entry
	done  chan struct{}

	// mu keeps Close from closing queue under a blocked Submit.
	mu     sync.RWMutex
	closed bool

	written atomic.Uint64
	failed  atomic.Uint64
	batches atomic.Uint64
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan actionlog.Entry, n)
		}
	}
}

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithMaxBatch(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxBatch = n
		}
	}
}

// NewWorker starts the background writer goroutine.
func NewWorker(writer BatchWriter, logger *zap.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		logger:       logger,
		writer:       writer,
		pollInterval: DefaultPollInterval,
		maxBatch:     DefaultMaxBatch,
		queue:        make(chan actionlog.Entry, DefaultQueueSize),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.run()

	w.logger.Info("persistence worker started",
		zap.Int("queue_size", cap(w.queue)),
		zap.Duration("poll_interval", w.pollInterval),
	)
	return w
}

// Submit enqueues entries, blocking while the queue is full.
func (w *Worker) Submit(entries []actionlog.Entry) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	for _, e := range entries {
		w.queue <- e
	}
	return nil
}

// Close stops accepting entries, writes everything still queued, closes
// the writer and waits for the goroutine to exit. Calling it twice is safe.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	<-w.done

	stats := w.Stats()
	w.logger.Info("persistence worker stopped",
		zap.Uint64("written", stats.Written),
		zap.Uint64("failed", stats.Failed),
		zap.Uint64("batches", stats.Batches),
	)
	return w.writer.Close()
}

// Stats returns current counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Written: w.written.Load(),
		Failed:  w.failed.Load(),
		Batches: w.batches.Load(),
	}
}

func (w *Worker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	batch := make([]actionlog.Entry, 0, w.maxBatch)
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				w.flush(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= w.maxBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			batch = w.drain(batch)
			w.flush(batch)
			batch = batch[:0]
		}
	}
}

// drain pulls whatever is already queued without blocking.
func (w *Worker) drain(batch []actionlog.Entry) []actionlog.Entry {
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				return batch
			}
			batch = append(batch, e)
		default:
			return batch
		}
	}
}

func (w *Worker) flush(batch []actionlog.Entry) {
	if len(batch) == 0 {
		return
	}
	w.batches.Add(1)
	if err := w.writer.WriteBatch(context.Background(), batch); err != nil {
		w.failed.Add(uint64(len(batch)))
		w.logger.Error("failed to persist action entries",
			zap.Uint64("first_seq", batch[0].Seq),
			zap.Int("count", len(batch)),
			zap.Error(err),
		)
		return
	}
	w.written.Add(uint64(len(batch)))
}
