package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/magefree/deckledger/internal/actionlog"
)

// SQLiteStore keeps the action log in a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// one writer; WAL lets readers proceed alongside it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSQLitePragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite action store opened", zap.String("path", path))
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

func initSQLitePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS action_log (
			seq INTEGER PRIMARY KEY,
			action_type TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_action_log_type_seq ON action_log(action_type, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_action_log_ts ON action_log(timestamp_ms);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("failed to create action_log schema: %w", err)
		}
	}
	return nil
}

// WriteBatch inserts entries in one transaction.
func (s *SQLiteStore) WriteBatch(ctx context.Context, entries []actionlog.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO action_log
		(seq, action_type, timestamp_ms, actor, request_id, version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		r, err := toRow(e)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.Seq, r.ActionType, r.TimestampMS, r.Actor, r.RequestID, r.Version, string(r.Payload)); err != nil {
			if isSQLiteConstraint(err) {
				return fmt.Errorf("%w: %d", ErrDuplicateSeq, e.Seq)
			}
			return fmt.Errorf("failed to insert seq %d: %w", e.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func isSQLiteConstraint(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// Query returns entries matching f in seq order.
func (s *SQLiteStore) Query(ctx context.Context, f actionlog.Filter) ([]actionlog.Entry, error) {
	query, args := buildQuery(f, func(int) string { return "?" })
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query action log: %w", err)
	}
	defer rows.Close()

	out := []actionlog.Entry{}
	for rows.Next() {
		var (
			r       actionRow
			payload string
		)
		if err := rows.Scan(&r.Seq, &r.ActionType, &r.TimestampMS, &r.Actor, &r.RequestID, &r.Version, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}
		r.Payload = []byte(payload)
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read action rows: %w", err)
	}
	return out, nil
}

// LoadAll returns the full log, checked for gaps.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]actionlog.Entry, error) {
	entries, err := s.Query(ctx, actionlog.Filter{})
	if err != nil {
		return nil, err
	}
	if err := actionlog.ValidateSequence(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM action_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count action log: %w", err)
	}
	return n, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
