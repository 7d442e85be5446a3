package actionlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

const maxLineBytes = 4 << 20

// WriteEntries writes one JSON line per entry.
func WriteEntries(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode entry %d: %w", e.Seq, err)
		}
		b = append(b, '\n')
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// ReadEntries decodes a newline-delimited log. Any malformed line fails
// the whole read; nothing is skipped. The result is sorted by seq and
// checked with ValidateSequence.
func ReadEntries(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var entries []Entry
	line := 0
	for scanner.Scan() {
		line++
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			if !errors.Is(err, ErrMalformedEntry) {
				err = fmt.Errorf("%w: %v", ErrMalformedEntry, err)
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read action log: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	if err := ValidateSequence(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ValidateSequence checks that seq values are exactly 1..len(entries).
func ValidateSequence(entries []Entry) error {
	for i, e := range entries {
		if want := uint64(i + 1); e.Seq != want {
			return fmt.Errorf("%w: position %d has seq %d, want %d", ErrSequenceGap, i, e.Seq, want)
		}
	}
	return nil
}
