// Package actionlog is the append-only record every game state change is
// written to and replayed from.
//
// Sequence numbers come from an atomic counter so producers never wait on
// each other to get one; only the in-memory insert takes the mutex.
package actionlog

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sink receives copies of appended entries, typically to persist them.
// Submit may block to apply backpressure; its errors never reach the
// caller of Append. Entries arrive in seq order only when appends are
// serialized by the caller, as game.Game does under its lock; concurrent
// direct appenders can reach the sink out of order.
type Sink interface {
	Submit(entries []Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(entries []Entry) error

func (f SinkFunc) Submit(entries []Entry) error { return f(entries) }

// Sinks forwards to each sink in order. Every sink sees the entries even
// when an earlier one fails; the errors are joined.
type Sinks []Sink

func (s Sinks) Submit(entries []Entry) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Submit(entries); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log is an append-only, concurrency-safe sequence of entries.
type Log struct {
	logger *zap.Logger
	sink   Sink
	now    func() time.Time

	seq atomic.Uint64

	mu      sync.RWMutex
	entries []Entry
}

// Option configures a Log.
type Option func(*Log)

// WithSink forwards every appended entry to s.
func WithSink(s Sink) Option {
	return func(l *Log) { l.sink = s }
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates an empty log. The first entry gets seq 1.
func New(opts ...Option) *Log {
	l := &Log{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AppendOption sets optional entry metadata.
type AppendOption func(*Entry)

func WithActor(actor string) AppendOption         { return func(e *Entry) { e.Actor = actor } }
func WithRequestID(requestID string) AppendOption { return func(e *Entry) { e.RequestID = requestID } }
func WithVersion(version uint32) AppendOption     { return func(e *Entry) { e.Version = version } }

// WithTimestamp keeps a recorded timestamp instead of reading the clock.
func WithTimestamp(ts string) AppendOption { return func(e *Entry) { e.Timestamp = ts } }

// Append records payload and returns the stored entry. An empty
// actionType defaults to the payload variant name.
func (l *Log) Append(actionType string, payload Payload, opts ...AppendOption) Entry {
	if actionType == "" {
		actionType = payload.Variant()
	}
	e := Entry{
		Seq:        l.seq.Add(1),
		ActionType: actionType,
		Payload:    payload,
		Timestamp:  FormatTimestamp(l.now()),
	}
	for _, opt := range opts {
		opt(&e)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// producers can reach the lock out of seq order
	i := sort.Search(len(l.entries), func(i int) bool { return l.entries[i].Seq > e.Seq })
	if i == len(l.entries) {
		l.entries = append(l.entries, e)
	} else {
		l.entries = append(l.entries, Entry{})
		copy(l.entries[i+1:], l.entries[i:])
		l.entries[i] = e
	}

	if l.sink != nil {
		if err := l.sink.Submit([]Entry{e}); err != nil {
			l.logger.Warn("failed to forward action entry to sink",
				zap.Uint64("seq", e.Seq),
				zap.String("action_type", e.ActionType),
				zap.Error(err),
			)
		}
	}
	return e
}

// Entries returns a consistent copy of every entry in seq order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Query returns the entries matching f in seq order.
func (l *Log) Query(f Filter) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return f.Apply(l.entries)
}
