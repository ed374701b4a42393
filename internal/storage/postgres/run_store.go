package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/titlecheck/internal/store"
)

// RunStore implements store.RunRepository on the check_runs table.
type RunStore struct {
	pool execCloser
}

// NewRunStoreWithPool creates a RunStore on top of an existing pool.
func NewRunStoreWithPool(pool execCloser) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *RunStore) Close() {
	s.pool.Close()
}

// StartRun inserts a running run, leaving an existing row untouched.
func (s *RunStore) StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time, items int) error {
	query := `
		INSERT INTO check_runs (id, started_at, items, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING;
	`
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, items, store.RunRunning); err != nil {
		return fmt.Errorf("failed to insert run start: %w", err)
	}
	return nil
}

// FinishRun marks a run as finished with its totals and optional error message.
func (s *RunStore) FinishRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	totals store.RunTotals,
	errMsg *string,
) error {
	query := `
		UPDATE check_runs
		SET finished_at = $1, status = $2, processed = $3, matched = $4,
			failed = $5, bot_blocked = $6, error_message = $7
		WHERE id = $8;
	`
	_, err := s.pool.Exec(ctx, query,
		finishedAt,
		status,
		totals.Processed,
		totals.Matched,
		totals.Failed,
		totals.BotBlocked,
		errMsg,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}
