// Package scheduler runs verification checks under a fixed concurrency cap and
// records every outcome exactly once.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/titlecheck/internal/metrics"
	"github.com/JakeFAU/titlecheck/internal/progress"
	"github.com/JakeFAU/titlecheck/internal/recorder"
	"github.com/JakeFAU/titlecheck/internal/verify"
)

// DefaultConcurrency is the number of checks in flight when none is configured.
const DefaultConcurrency = 5

const tracerName = "github.com/JakeFAU/titlecheck/internal/scheduler"

// Checker classifies items and captures failure evidence.
type Checker interface {
	Check(ctx context.Context, item verify.WorkItem) verify.Outcome
	CaptureEvidence(ctx context.Context, item verify.WorkItem) ([]byte, error)
}

// Config controls Scheduler behavior.
type Config struct {
	Concurrency int
	Naming      verify.Naming
	RunID       uuid.UUID
	// Emitter defaults to progress.NopEmitter.
	Emitter progress.Emitter
	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
	// Clock defaults to the wall clock.
	Clock verify.Clock
}

// Summary aggregates one run.
type Summary struct {
	Total            int
	Matched          int
	Failed           int
	BotBlocked       int
	ScreenshotErrors int
	Screenshots      int
	RecordErrors     int
	Duration         time.Duration
}

func (sum Summary) counts() *progress.Counts {
	return &progress.Counts{
		Processed:  sum.Matched + sum.Failed + sum.BotBlocked,
		Matched:    sum.Matched,
		Failed:     sum.Failed,
		BotBlocked: sum.BotBlocked,
		Evidence:   sum.Screenshots,
	}
}

// Scheduler drives checks through a Checker and hands outcomes to a Recorder.
type Scheduler struct {
	checker  Checker
	recorder recorder.Recorder
	shots    verify.ScreenshotStore
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Scheduler.
func New(
	checker Checker,
	rec recorder.Recorder,
	shots verify.ScreenshotStore,
	cfg Config,
	logger *zap.Logger,
) (*Scheduler, error) {
	switch {
	case checker == nil:
		return nil, errors.New("checker is required")
	case rec == nil:
		return nil, errors.New("recorder is required")
	case shots == nil:
		return nil, errors.New("screenshot store is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Naming == "" {
		cfg.Naming = verify.NamingIndex
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	if cfg.Emitter == nil {
		cfg.Emitter = progress.NopEmitter{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if cfg.Clock == nil {
		cfg.Clock = wallClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		checker:  checker,
		recorder: rec,
		shots:    shots,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// RunID returns the identifier attached to events of this scheduler.
func (s *Scheduler) RunID() uuid.UUID {
	return s.cfg.RunID
}

// Run checks every item with at most Concurrency in flight and returns after
// all of them are recorded. Per-item failures never abort the run; the error
// reports outcomes the recorder could not persist.
func (s *Scheduler) Run(ctx context.Context, items []verify.WorkItem) (Summary, error) {
	start := s.cfg.Clock.Now()
	s.emit(progress.Event{Stage: progress.StageRunStart, Total: len(items)})
	s.logger.Info("run started",
		zap.String("run_id", s.cfg.RunID.String()),
		zap.Int("items", len(items)),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	var (
		mu       sync.Mutex
		summary  = Summary{Total: len(items)}
		firstErr error
	)
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for _, item := range items {
		g.Go(func() error {
			res := s.process(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			summary.add(res)
			if res.recordErr != nil && firstErr == nil {
				firstErr = res.recordErr
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = s.cfg.Clock.Now().Sub(start)
	fields := []zap.Field{
		zap.String("run_id", s.cfg.RunID.String()),
		zap.Int("total", summary.Total),
		zap.Int("matched", summary.Matched),
		zap.Int("failed", summary.Failed),
		zap.Int("bot_blocked", summary.BotBlocked),
		zap.Int("screenshot_errors", summary.ScreenshotErrors),
		zap.Duration("duration", summary.Duration),
	}
	if firstErr != nil {
		err := fmt.Errorf("record %d outcomes: %w", summary.RecordErrors, firstErr)
		s.emit(progress.Event{
			Stage:  progress.StageRunError,
			Total:  summary.Total,
			Dur:    summary.Duration,
			Note:   err.Error(),
			Counts: summary.counts(),
		})
		s.logger.Error("run finished with recording errors", append(fields, zap.Error(err))...)
		return summary, err
	}
	s.emit(progress.Event{
		Stage:  progress.StageRunDone,
		Total:  summary.Total,
		Dur:    summary.Duration,
		Counts: summary.counts(),
	})
	s.logger.Info("run finished", fields...)
	return summary, nil
}

type itemResult struct {
	outcome   verify.Outcome
	evidence  progress.Evidence
	recordErr error
}

func (s *Scheduler) process(ctx context.Context, item verify.WorkItem) itemResult {
	ctx, span := s.cfg.Tracer.Start(ctx, "titlecheck.check", trace.WithAttributes(
		attribute.String("url", item.URL),
		attribute.Int("index", item.Index),
	))
	defer span.End()

	site := verify.BaseDomain(item.URL)
	s.emit(progress.Event{Stage: progress.StageCheckStart, URL: item.URL, Index: item.Index, Site: site})

	out := s.checker.Check(ctx, item)
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "unreachable")
	}
	res := s.settle(ctx, item, out)
	sink := res.outcome.Sink()
	span.SetAttributes(
		attribute.String("sink", string(sink)),
		attribute.String("stage", string(res.outcome.Stage)),
		attribute.Int("attempts", res.outcome.Attempts),
	)
	s.logOutcome(res)

	note := ""
	if res.outcome.Err != nil {
		note = res.outcome.Err.Error()
	}
	s.emit(progress.Event{
		Stage:    progress.StageCheckDone,
		URL:      item.URL,
		Index:    item.Index,
		Site:     site,
		Sink:     string(sink),
		Decision: string(res.outcome.Stage),
		Evidence: res.evidence,
		Attempts: res.outcome.Attempts,
		Dur:      res.outcome.Duration,
		Note:     note,
	})
	return res
}

// Settle captures a screenshot for an outcome that needs one and records it.
// It returns the outcome as recorded. Callers that check items themselves use
// it to get the same evidence handling as Run.
func (s *Scheduler) Settle(ctx context.Context, item verify.WorkItem, out verify.Outcome) (verify.Outcome, error) {
	res := s.settle(ctx, item, out)
	return res.outcome, res.recordErr
}

func (s *Scheduler) settle(ctx context.Context, item verify.WorkItem, out verify.Outcome) itemResult {
	span := trace.SpanFromContext(ctx)
	res := itemResult{outcome: out, evidence: progress.EvidenceNone}
	if out.NeedsEvidence() {
		path, err := s.captureEvidence(ctx, item)
		if err != nil {
			res.evidence = progress.EvidenceFailed
			s.logger.Warn("screenshot capture failed", zap.String("url", item.URL), zap.Error(err))
			span.AddEvent("screenshot failed", trace.WithAttributes(attribute.String("error", err.Error())))
		} else {
			res.evidence = progress.EvidenceCaptured
			res.outcome.ScreenshotPath = path
		}
	}

	if err := s.recorder.Record(ctx, res.outcome); err != nil {
		res.recordErr = fmt.Errorf("record %s: %w", item.URL, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "record outcome")
		s.logger.Error("record outcome failed", zap.String("url", item.URL), zap.Error(err))
	}
	return res
}

// captureEvidence runs inside the item's slot so the cap also bounds screenshot pages.
func (s *Scheduler) captureEvidence(ctx context.Context, item verify.WorkItem) (string, error) {
	png, err := s.checker.CaptureEvidence(ctx, item)
	if err != nil {
		return "", err
	}
	path, err := s.shots.PutScreenshot(ctx, verify.ScreenshotName(s.cfg.Naming, item), png)
	if err != nil {
		return "", fmt.Errorf("store screenshot: %w", err)
	}
	metrics.ObserveScreenshot(item.URL, len(png))
	return path, nil
}

func (s *Scheduler) logOutcome(res itemResult) {
	out := res.outcome
	fields := []zap.Field{
		zap.Int("index", out.Index),
		zap.String("url", out.URL),
		zap.String("sink", string(out.Sink())),
		zap.String("stage", string(out.Stage)),
		zap.String("found", out.FoundText),
		zap.Int("attempts", out.Attempts),
		zap.Duration("duration", out.Duration),
	}
	if out.ScreenshotPath != "" {
		fields = append(fields, zap.String("screenshot", out.ScreenshotPath))
	}
	if out.Err != nil {
		fields = append(fields, zap.Error(out.Err))
	}
	switch out.Sink() {
	case verify.SinkMatched:
		s.logger.Info("title matched", fields...)
	case verify.SinkBotBlocked:
		s.logger.Warn("bot wall suspected", fields...)
	default:
		s.logger.Warn("title not found", fields...)
	}
}

func (s *Scheduler) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(s.cfg.RunID)
	evt.TS = s.cfg.Clock.Now().UTC()
	s.cfg.Emitter.Emit(evt)
}

func (sum *Summary) add(res itemResult) {
	switch res.outcome.Sink() {
	case verify.SinkMatched:
		sum.Matched++
	case verify.SinkBotBlocked:
		sum.BotBlocked++
	default:
		sum.Failed++
	}
	switch res.evidence {
	case progress.EvidenceFailed:
		sum.ScreenshotErrors++
	case progress.EvidenceCaptured:
		sum.Screenshots++
	}
	if res.recordErr != nil {
		sum.RecordErrors++
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }
