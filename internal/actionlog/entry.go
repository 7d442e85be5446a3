package actionlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrMalformedEntry = errors.New("malformed action entry")
	ErrSequenceGap    = errors.New("action log sequence is not contiguous")
)

// Entry is one immutable record of the log.
type Entry struct {
	Seq        uint64  `json:"seq"`
	ActionType string  `json:"action_type"`
	Payload    Payload `json:"payload"`
	// Timestamp is milliseconds since the Unix epoch, as a decimal string.
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Version   uint32 `json:"version,omitempty"`
}

type entryJSON struct {
	Seq        uint64          `json:"seq"`
	ActionType string          `json:"action_type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  string          `json:"timestamp"`
	Actor      string          `json:"actor,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	Version    uint32          `json:"version,omitempty"`
}

// MarshalJSON writes the persisted line form.
func (e Entry) MarshalJSON() ([]byte, error) {
	payload, err := MarshalPayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{
		Seq:        e.Seq,
		ActionType: e.ActionType,
		Payload:    payload,
		Timestamp:  e.Timestamp,
		Actor:      e.Actor,
		RequestID:  e.RequestID,
		Version:    e.Version,
	})
}

// UnmarshalJSON reads the persisted line form, rejecting entries with no
// seq, no action type, an unknown payload or a non-numeric timestamp.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if raw.Seq == 0 {
		return fmt.Errorf("%w: missing seq", ErrMalformedEntry)
	}
	if raw.ActionType == "" {
		return fmt.Errorf("%w: seq %d: missing action_type", ErrMalformedEntry, raw.Seq)
	}
	if _, err := strconv.ParseInt(raw.Timestamp, 10, 64); err != nil {
		return fmt.Errorf("%w: seq %d: bad timestamp %q", ErrMalformedEntry, raw.Seq, raw.Timestamp)
	}
	payload, err := UnmarshalPayload(raw.Payload)
	if err != nil {
		return fmt.Errorf("seq %d: %w", raw.Seq, err)
	}
	*e = Entry{
		Seq:        raw.Seq,
		ActionType: raw.ActionType,
		Payload:    payload,
		Timestamp:  raw.Timestamp,
		Actor:      raw.Actor,
		RequestID:  raw.RequestID,
		Version:    raw.Version,
	}
	return nil
}

// Time parses the timestamp. Invalid timestamps return the zero time.
func (e Entry) Time() time.Time {
	ms, err := strconv.ParseInt(e.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// FormatTimestamp renders t the way entries store it.
func FormatTimestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
