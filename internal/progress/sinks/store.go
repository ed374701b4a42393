package sinks

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/progress"
	"github.com/JakeFAU/titlecheck/internal/store"
)

// StoreSink persists run lifecycle via a store.RunRepository. The run is
// finished with the totals carried by the final event; check outcomes are
// tallied in memory only for events without them.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger

	mu     sync.Mutex
	totals map[[16]byte]*store.RunTotals
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger, totals: make(map[[16]byte]*store.RunTotals)}
}

// Consume forwards run milestones to the repository and returns repository errors verbatim.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			if err := s.repo.StartRun(ctx, evt.RunUUID(), evt.TS, evt.Total); err != nil {
				return fmt.Errorf("start run: %w", err)
			}
		case progress.StageCheckDone:
			s.tally(evt)
		case progress.StageRunDone, progress.StageRunError:
			if err := s.finish(ctx, evt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *StoreSink) tally(evt progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.totals[evt.RunID]
	if t == nil {
		t = &store.RunTotals{}
		s.totals[evt.RunID] = t
	}
	t.Processed++
	switch evt.Sink {
	case "matched":
		t.Matched++
	case "bot_blocked":
		t.BotBlocked++
	default:
		t.Failed++
	}
}

func (s *StoreSink) finish(ctx context.Context, evt progress.Event) error {
	s.mu.Lock()
	var totals store.RunTotals
	if t := s.totals[evt.RunID]; t != nil {
		totals = *t
	}
	delete(s.totals, evt.RunID)
	s.mu.Unlock()
	if c := evt.Counts; c != nil {
		totals = store.RunTotals{
			Processed:  c.Processed,
			Matched:    c.Matched,
			Failed:     c.Failed,
			BotBlocked: c.BotBlocked,
		}
	}

	status := store.RunSuccess
	var note *string
	if evt.Stage == progress.StageRunError {
		status = store.RunError
		if evt.Note != "" {
			note = &evt.Note
		}
	}
	if err := s.repo.FinishRun(ctx, evt.RunUUID(), evt.TS, status, totals, note); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
