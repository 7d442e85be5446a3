package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/magefree/deckledger/internal/actionlog"
)

// FileOptions controls how FileWriter stores lines.
type FileOptions struct {
	// Compress wraps the file in a zstd stream. Paths should end in .zst.
	Compress bool
	// Fsync syncs the file after every batch.
	Fsync bool
}

// FileWriter appends action entries to a newline-delimited JSON file.
type FileWriter struct {
	path string
	opts FileOptions

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// OpenFile opens path for appending, creating parent directories.
func OpenFile(path string, opts FileOptions) (*FileWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("empty action log path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create action log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open action log: %w", err)
	}

	fw := &FileWriter{path: path, opts: opts, f: f}
	var dst io.Writer = f
	if opts.Compress {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		fw.enc = enc
		dst = enc
	}
	fw.w = bufio.NewWriterSize(dst, 128*1024)
	return fw, nil
}

// Path returns the file being written.
func (fw *FileWriter) Path() string { return fw.path }

// WriteBatch writes one line per entry and flushes the batch to the file.
func (fw *FileWriter) WriteBatch(_ context.Context, entries []actionlog.Entry) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.w == nil {
		return ErrClosed
	}
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode entry %d: %w", e.Seq, err)
		}
		if _, err := fw.w.Write(b); err != nil {
			return err
		}
		if err := fw.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := fw.w.Flush(); err != nil {
		return err
	}
	if fw.enc != nil {
		if err := fw.enc.Flush(); err != nil {
			return err
		}
	}
	if fw.opts.Fsync {
		return fw.f.Sync()
	}
	return nil
}

// Close flushes buffered data and closes the file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.w == nil {
		return nil
	}
	var firstErr error
	if err := fw.w.Flush(); err != nil {
		firstErr = err
	}
	if fw.enc != nil {
		if err := fw.enc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		fw.enc = nil
	}
	if err := fw.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	fw.w = nil
	return firstErr
}

// ReadFile loads every entry from a log written by FileWriter. Files
// ending in .zst are decompressed.
func ReadFile(path string) ([]actionlog.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open action log: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return actionlog.ReadEntries(r)
}
