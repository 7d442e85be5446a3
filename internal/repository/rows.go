// Package repository stores the action log in SQL databases so it can be
// queried and replayed outside the process that wrote it.
package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/magefree/deckledger/internal/actionlog"
)

// ErrDuplicateSeq is returned when a batch contains a seq already stored.
var ErrDuplicateSeq = errors.New("action entry seq already stored")

// actionRow is the column form of an entry shared by both stores.
type actionRow struct {
	Seq         int64
	ActionType  string
	TimestampMS int64
	Actor       string
	RequestID   string
	Version     int64
	Payload     []byte
}

func toRow(e actionlog.Entry) (actionRow, error) {
	ts, err := strconv.ParseInt(e.Timestamp, 10, 64)
	if err != nil {
		return actionRow{}, fmt.Errorf("%w: seq %d: bad timestamp %q", actionlog.ErrMalformedEntry, e.Seq, e.Timestamp)
	}
	payload, err := actionlog.MarshalPayload(e.Payload)
	if err != nil {
		return actionRow{}, fmt.Errorf("failed to encode payload of seq %d: %w", e.Seq, err)
	}
	return actionRow{
		Seq:         int64(e.Seq),
		ActionType:  e.ActionType,
		TimestampMS: ts,
		Actor:       e.Actor,
		RequestID:   e.RequestID,
		Version:     int64(e.Version),
		Payload:     payload,
	}, nil
}

func (r actionRow) entry() (actionlog.Entry, error) {
	payload, err := actionlog.UnmarshalPayload(r.Payload)
	if err != nil {
		return actionlog.Entry{}, fmt.Errorf("seq %d: %w", r.Seq, err)
	}
	return actionlog.Entry{
		Seq:        uint64(r.Seq),
		ActionType: r.ActionType,
		Payload:    payload,
		Timestamp:  strconv.FormatInt(r.TimestampMS, 10),
		Actor:      r.Actor,
		RequestID:  r.RequestID,
		Version:    uint32(r.Version),
	}, nil
}

// buildQuery renders f as a SELECT over action_log. placeholder returns
// the driver's bind syntax for the n-th argument, starting at 1.
func buildQuery(f actionlog.Filter, placeholder func(n int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if f.FromSeq > 0 {
		conds = append(conds, "seq >= "+bind(int64(f.FromSeq)))
	}
	if f.ActionType != "" {
		conds = append(conds, "action_type = "+bind(f.ActionType))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "timestamp_ms >= "+bind(f.Since.UnixMilli()))
	}

	var b strings.Builder
	b.WriteString("SELECT seq, action_type, timestamp_ms, actor, request_id, version, payload FROM action_log")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY seq")
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + bind(f.Limit))
	}
	return b.String(), args
}
