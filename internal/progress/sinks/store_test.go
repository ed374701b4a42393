package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/titlecheck/internal/progress"
	"github.com/JakeFAU/titlecheck/internal/store"
)

// TestStoreSinkPersistsRun ensures check outcomes are tallied into the finished run.
func TestStoreSinkPersistsRun(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	now := time.Now()

	first := []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: now, Total: 3},
		{RunID: runID, Stage: progress.StageCheckDone, URL: "a", Sink: "matched", TS: now},
		{RunID: runID, Stage: progress.StageCheckDone, URL: "b", Sink: "failed", TS: now},
	}
	second := []progress.Event{
		{RunID: runID, Stage: progress.StageCheckDone, URL: "c", Sink: "bot_blocked", TS: now},
		{RunID: runID, Stage: progress.StageRunDone, TS: now.Add(3 * time.Second), Dur: 3 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), first))
	require.NoError(t, sink.Consume(context.Background(), second))

	require.Equal(t, []uuid.UUID{runUUID}, repo.starts)
	require.Equal(t, 3, repo.items)
	require.Len(t, repo.finishes, 1)
	require.Equal(t, store.RunSuccess, repo.finishes[0].status)
	require.Equal(t, store.RunTotals{Processed: 3, Matched: 1, Failed: 1, BotBlocked: 1}, repo.finishes[0].totals)
	require.Nil(t, repo.finishes[0].errMsg)
}

// TestStoreSinkPrefersFinalCounts finishes with the run totals even when check
// events never arrived.
func TestStoreSinkPrefersFinalCounts(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: now, Total: 4},
		{RunID: runID, Stage: progress.StageCheckDone, URL: "a", Sink: "matched", TS: now},
		{RunID: runID, Stage: progress.StageRunDone, TS: now, Counts: &progress.Counts{
			Processed: 4, Matched: 2, Failed: 1, BotBlocked: 1,
		}},
	}))
	require.Len(t, repo.finishes, 1)
	require.Equal(t, store.RunTotals{Processed: 4, Matched: 2, Failed: 1, BotBlocked: 1}, repo.finishes[0].totals)
}

// TestStoreSinkRecordsRunError keeps the error note on failed runs.
func TestStoreSinkRecordsRunError(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunError, TS: time.Now(), Note: "disk full", Counts: &progress.Counts{
			Processed: 2, Failed: 2,
		}},
	}))
	require.Len(t, repo.finishes, 1)
	require.Equal(t, store.RunError, repo.finishes[0].status)
	require.Equal(t, store.RunTotals{Processed: 2, Failed: 2}, repo.finishes[0].totals)
	require.NotNil(t, repo.finishes[0].errMsg)
	require.Equal(t, "disk full", *repo.finishes[0].errMsg)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{fail: true}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())
	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: time.Now()},
	})
	require.Error(t, err)

	var nilSink *StoreSink
	require.NoError(t, nilSink.Consume(context.Background(), nil))
}

type fakeRunRepo struct {
	fail     bool
	starts   []uuid.UUID
	items    int
	finishes []finishCall
}

type finishCall struct {
	runID  uuid.UUID
	status store.RunStatus
	totals store.RunTotals
	errMsg *string
}

func (f *fakeRunRepo) StartRun(_ context.Context, runID uuid.UUID, _ time.Time, items int) error {
	if f.fail {
		return assertErr("start")
	}
	f.starts = append(f.starts, runID)
	f.items = items
	return nil
}

func (f *fakeRunRepo) FinishRun(
	_ context.Context,
	runID uuid.UUID,
	_ time.Time,
	status store.RunStatus,
	totals store.RunTotals,
	errMsg *string,
) error {
	if f.fail {
		return assertErr("finish")
	}
	f.finishes = append(f.finishes, finishCall{runID: runID, status: status, totals: totals, errMsg: errMsg})
	return nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
