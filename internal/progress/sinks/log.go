package sinks

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/progress"
)

// LogSink emits debug logs for progress streams.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", uuid.UUID(evt.RunID).String()),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageCheckStart, progress.StageCheckDone:
			fields = append(fields,
				zap.Int("index", evt.Index),
				zap.String("site", evt.Site),
				zap.String("url", evt.URL),
			)
			if evt.Stage == progress.StageCheckDone {
				fields = append(fields,
					zap.String("sink", evt.Sink),
					zap.String("decision", evt.Decision),
					zap.String("evidence", string(evt.Evidence)),
					zap.Int("attempts", evt.Attempts),
					zap.Duration("dur", evt.Dur),
				)
			}
		default:
			fields = append(fields, zap.Int("total", evt.Total), zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
