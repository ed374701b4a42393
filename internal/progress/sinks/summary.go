package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/titlecheck/internal/progress"
)

// RunSnapshot is a point-in-time view of the current run.
type RunSnapshot struct {
	RunID      string    `json:"run_id,omitempty"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Total      int       `json:"total"`
	Done       int       `json:"done"`
	InFlight   int       `json:"in_flight"`
	Matched    int       `json:"matched"`
	Failed     int       `json:"failed"`
	BotBlocked int       `json:"bot_blocked"`
	Evidence   int       `json:"screenshots"`
	Error      string    `json:"error,omitempty"`
}

// SummarySink keeps live counters for the most recent run.
type SummarySink struct {
	mu   sync.RWMutex
	snap RunSnapshot
}

// NewSummarySink returns an idle SummarySink.
func NewSummarySink() *SummarySink {
	return &SummarySink{snap: RunSnapshot{Status: "idle"}}
}

// Consume folds the batch into the snapshot.
func (s *SummarySink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.snap = RunSnapshot{
				RunID:     uuid.UUID(evt.RunID).String(),
				Status:    "running",
				StartedAt: evt.TS,
				Total:     evt.Total,
			}
		case progress.StageCheckStart:
			s.snap.InFlight++
		case progress.StageCheckDone:
			if s.snap.InFlight > 0 {
				s.snap.InFlight--
			}
			s.snap.Done++
			switch evt.Sink {
			case "matched":
				s.snap.Matched++
			case "bot_blocked":
				s.snap.BotBlocked++
			default:
				s.snap.Failed++
			}
			if evt.Evidence == progress.EvidenceCaptured {
				s.snap.Evidence++
			}
		case progress.StageRunDone:
			s.snap.Status = "done"
			s.finish(evt)
		case progress.StageRunError:
			s.snap.Status = "error"
			s.snap.Error = evt.Note
			s.finish(evt)
		}
	}
	return nil
}

// finish settles the counters on the final totals, which cover check events
// the hub may have dropped.
func (s *SummarySink) finish(evt progress.Event) {
	s.snap.FinishedAt = evt.TS
	s.snap.InFlight = 0
	if c := evt.Counts; c != nil {
		s.snap.Done = c.Processed
		s.snap.Matched = c.Matched
		s.snap.Failed = c.Failed
		s.snap.BotBlocked = c.BotBlocked
		s.snap.Evidence = c.Evidence
	}
}

// Snapshot returns a copy of the current counters.
func (s *SummarySink) Snapshot() RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Close implements the Sink interface; it performs no action.
func (s *SummarySink) Close(context.Context) error {
	return nil
}
