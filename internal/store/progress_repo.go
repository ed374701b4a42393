package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunStatus mirrors the check_runs status column.
type RunStatus string

// Run statuses persisted in check_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// RunTotals aggregates outcome counts for a finished run.
type RunTotals struct {
	Processed  int
	Matched    int
	Failed     int
	BotBlocked int
}

// RunRepository persists the lifecycle of verification runs.
type RunRepository interface {
	// StartRun inserts (or idempotently updates) a running run.
	StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time, items int) error
	// FinishRun marks the run finished with its totals and optional error.
	FinishRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, totals RunTotals, errMsg *string) error
}
