package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/magefree/deckledger/internal/actionlog"
	"github.com/magefree/deckledger/internal/config"
)

const pgUniqueViolation = "23505"

// NewDB creates a connection pool from cfg and verifies it with a ping.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		logger.Info("database connection established",
			zap.String("host", poolCfg.ConnConfig.Host),
			zap.String("database", poolCfg.ConnConfig.Database),
			zap.Int32("max_conns", poolCfg.MaxConns),
		)
	}
	return pool, nil
}

// PostgresStore keeps the action log in a Postgres table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore wraps pool and ensures the schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS action_log (
			seq BIGINT PRIMARY KEY,
			action_type TEXT NOT NULL,
			timestamp_ms BIGINT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 0,
			payload JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_action_log_type_seq ON action_log(action_type, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_action_log_ts ON action_log(timestamp_ms)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return nil, fmt.Errorf("failed to create action_log schema: %w", err)
		}
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// WriteBatch inserts entries in one transaction using a pipelined batch.
func (s *PostgresStore) WriteBatch(ctx context.Context, entries []actionlog.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		r, err := toRow(e)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO action_log
			(seq, action_type, timestamp_ms, actor, request_id, version, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.Seq, r.ActionType, r.TimestampMS, r.Actor, r.RequestID, r.Version, string(r.Payload))
	}

	results := tx.SendBatch(ctx, batch)
	for _, e := range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return fmt.Errorf("%w: %d", ErrDuplicateSeq, e.Seq)
			}
			return fmt.Errorf("failed to insert seq %d: %w", e.Seq, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to finish batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Query returns entries matching f in seq order.
func (s *PostgresStore) Query(ctx context.Context, f actionlog.Filter) ([]actionlog.Entry, error) {
	query, args := buildQuery(f, func(n int) string { return "$" + strconv.Itoa(n) })
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query action log: %w", err)
	}
	defer rows.Close()

	out := []actionlog.Entry{}
	for rows.Next() {
		var r actionRow
		if err := rows.Scan(&r.Seq, &r.ActionType, &r.TimestampMS, &r.Actor, &r.RequestID, &r.Version, &r.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}
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
func (s *PostgresStore) LoadAll(ctx context.Context) ([]actionlog.Entry, error) {
	entries, err := s.Query(ctx, actionlog.Filter{})
	if err != nil {
		return nil, err
	}
	if err := actionlog.ValidateSequence(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Import copies entries in chunks of batchSize, skipping seqs already
// present so an interrupted import can be rerun.
func (s *PostgresStore) Import(ctx context.Context, entries []actionlog.Entry, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	imported := 0
	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))
		chunk := entries[i:end]

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return imported, fmt.Errorf("failed to begin transaction: %w", err)
		}
		for _, e := range chunk {
			r, err := toRow(e)
			if err != nil {
				_ = tx.Rollback(ctx)
				return imported, err
			}
			tag, err := tx.Exec(ctx, `INSERT INTO action_log
				(seq, action_type, timestamp_ms, actor, request_id, version, payload)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (seq) DO NOTHING`,
				r.Seq, r.ActionType, r.TimestampMS, r.Actor, r.RequestID, r.Version, string(r.Payload))
			if err != nil {
				_ = tx.Rollback(ctx)
				return imported, fmt.Errorf("failed to import seq %d: %w", e.Seq, err)
			}
			imported += int(tag.RowsAffected())
		}
		if err := tx.Commit(ctx); err != nil {
			return imported, fmt.Errorf("failed to commit import batch: %w", err)
		}
		s.logger.Debug("imported action batch", zap.Int("through", end), zap.Int("total", len(entries)))
	}
	return imported, nil
}

// Close is a no-op; the pool is owned by whoever created it.
func (s *PostgresStore) Close() error { return nil }
