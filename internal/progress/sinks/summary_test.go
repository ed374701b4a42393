package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/progress"
)

func TestSummarySinkTracksRun(t *testing.T) {
	t.Parallel()

	s := NewSummarySink()
	assert.Equal(t, "idle", s.Snapshot().Status)

	id := uuid.New()
	runID := progress.UUIDToBytes(id)
	now := time.Now()
	require.NoError(t, s.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Total: 3},
		{RunID: runID, TS: now, Stage: progress.StageCheckStart, URL: "a"},
		{RunID: runID, TS: now, Stage: progress.StageCheckStart, URL: "b"},
		{RunID: runID, TS: now, Stage: progress.StageCheckDone, URL: "a", Sink: "failed", Evidence: progress.EvidenceCaptured},
	}))

	snap := s.Snapshot()
	assert.Equal(t, id.String(), snap.RunID)
	assert.Equal(t, "running", snap.Status)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 1, snap.Done)
	assert.Equal(t, 1, snap.InFlight)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Evidence)

	require.NoError(t, s.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageCheckDone, URL: "b", Sink: "matched"},
		{RunID: runID, TS: now, Stage: progress.StageCheckDone, URL: "c", Sink: "bot_blocked"},
		{RunID: runID, TS: now.Add(time.Second), Stage: progress.StageRunDone},
	}))
	snap = s.Snapshot()
	assert.Equal(t, "done", snap.Status)
	assert.Equal(t, 3, snap.Done)
	assert.Equal(t, 0, snap.InFlight)
	assert.Equal(t, 1, snap.Matched)
	assert.Equal(t, 1, snap.BotBlocked)
	assert.False(t, snap.FinishedAt.IsZero())
}

func TestSummarySinkSettlesOnFinalCounts(t *testing.T) {
	t.Parallel()

	s := NewSummarySink()
	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	require.NoError(t, s.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Total: 5},
		{RunID: runID, TS: now, Stage: progress.StageCheckStart, URL: "a"},
		{RunID: runID, TS: now, Stage: progress.StageRunError, Note: "record 1 outcomes", Counts: &progress.Counts{
			Processed: 5, Matched: 2, Failed: 2, BotBlocked: 1, Evidence: 2,
		}},
	}))

	snap := s.Snapshot()
	assert.Equal(t, "error", snap.Status)
	assert.Equal(t, "record 1 outcomes", snap.Error)
	assert.Equal(t, 5, snap.Done)
	assert.Equal(t, 0, snap.InFlight)
	assert.Equal(t, 2, snap.Matched)
	assert.Equal(t, 2, snap.Failed)
	assert.Equal(t, 1, snap.BotBlocked)
	assert.Equal(t, 2, snap.Evidence)
}

func TestLogSinkConsumes(t *testing.T) {
	t.Parallel()

	s := NewLogSink(zap.NewNop())
	runID := progress.UUIDToBytes(uuid.New())
	require.NoError(t, s.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart, Total: 1},
		{RunID: runID, TS: time.Now(), Stage: progress.StageCheckDone, URL: "u", Sink: "matched", Note: "n"},
	}))
	require.NoError(t, s.Close(context.Background()))
}
