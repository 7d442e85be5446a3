package actionlog

import "time"

// Filter selects entries for the log-query surface. Zero fields match
// everything.
type Filter struct {
	FromSeq    uint64    `json:"from_seq,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	ActionType string    `json:"action_type,omitempty"`
	Since      time.Time `json:"since,omitempty"`
}

// Match reports whether e passes every set field except Limit.
func (f Filter) Match(e Entry) bool {
	if e.Seq < f.FromSeq {
		return false
	}
	if f.ActionType != "" && e.ActionType != f.ActionType {
		return false
	}
	if !f.Since.IsZero() && e.Time().Before(f.Since) {
		return false
	}
	return true
}

// Apply filters entries, which must already be in seq order.
func (f Filter) Apply(entries []Entry) []Entry {
	out := []Entry{}
	for _, e := range entries {
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
