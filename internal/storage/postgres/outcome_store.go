// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

// DefaultOutcomeTable is used when no table name is configured.
const DefaultOutcomeTable = "title_checks"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PoolConfig controls the Postgres connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// NewPool opens a pgx pool using cfg.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// OutcomeStore mirrors every recorded outcome into a Postgres table.
type OutcomeStore struct {
	pool  execCloser
	table string
	runID uuid.UUID
	now   func() time.Time
}

// NewOutcomeStoreWithPool constructs a store for runID on top of an existing pool.
func NewOutcomeStoreWithPool(pool execCloser, table string, runID uuid.UUID) (*OutcomeStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultOutcomeTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &OutcomeStore{
		pool:  pool,
		table: table,
		runID: runID,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the underlying pool resources.
func (s *OutcomeStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Record inserts one outcome row.
func (s *OutcomeStore) Record(ctx context.Context, outcome verify.Outcome) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("outcome store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	url,
	expected_title,
	found_text,
	sink,
	stage,
	screenshot,
	attempts,
	duration_ms,
	checked_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)

	args := []any{
		s.runID,
		outcome.URL,
		outcome.ExpectedTitle,
		outcome.FoundText,
		string(outcome.Sink()),
		string(outcome.Stage),
		outcome.ScreenshotPath,
		outcome.Attempts,
		outcome.Duration.Milliseconds(),
		s.now(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}
