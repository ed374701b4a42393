// Package recorder appends classified outcomes to the three CSV sinks.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

// Header is the first line of every sink file.
var Header = []string{"URL", "Expected Title", "Found Title", "Matched", "Screenshot"}

// Recorder persists one Outcome.
type Recorder interface {
	Record(ctx context.Context, outcome verify.Outcome) error
}

// Paths locates the sink files.
type Paths struct {
	Matched    string
	Failed     string
	BotBlocked string
}

// For returns the file path of sink.
func (p Paths) For(sink verify.Sink) string {
	switch sink {
	case verify.SinkMatched:
		return p.Matched
	case verify.SinkBotBlocked:
		return p.BotBlocked
	default:
		return p.Failed
	}
}

func (p Paths) validate() error {
	seen := make(map[string]verify.Sink, len(verify.Sinks))
	for _, sink := range verify.Sinks {
		path := p.For(sink)
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("%s sink path is required", sink)
		}
		clean := filepath.Clean(path)
		if other, ok := seen[clean]; ok {
			return fmt.Errorf("output sink paths must be distinct: %s and %s both use %s", other, sink, clean)
		}
		seen[clean] = sink
	}
	return nil
}

// CSVRecorder appends one fully quoted line per outcome. Files are opened in
// append mode for every row so nothing is buffered across rows.
type CSVRecorder struct {
	paths Paths
	locks map[verify.Sink]*sync.Mutex
}

// New validates paths and writes headers into sink files that do not exist yet.
// Existing files are never truncated.
func New(paths Paths) (*CSVRecorder, error) {
	if err := paths.validate(); err != nil {
		return nil, err
	}
	r := &CSVRecorder{
		paths: paths,
		locks: make(map[verify.Sink]*sync.Mutex, len(verify.Sinks)),
	}
	for _, sink := range verify.Sinks {
		r.locks[sink] = &sync.Mutex{}
		if err := ensureHeader(paths.For(sink)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func ensureHeader(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create sink dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create sink %s: %w", path, err)
	}
	if _, err := f.WriteString(formatLine(Header)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close sink %s: %w", path, err)
	}
	return nil
}

// Record appends outcome to the sink chosen by outcome.Sink().
// Cancellation is ignored so rows of in-flight items still land.
func (r *CSVRecorder) Record(_ context.Context, outcome verify.Outcome) error {
	sink := outcome.Sink()
	path := r.paths.For(sink)
	line := formatLine(Row(outcome))

	mu := r.locks[sink]
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open sink %s: %w", path, err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close sink %s: %w", path, err)
	}
	return nil
}

// Paths returns the configured sink paths.
func (r *CSVRecorder) Paths() Paths {
	return r.paths
}

// Row renders outcome as the five sink columns.
func Row(outcome verify.Outcome) []string {
	return []string{
		outcome.URL,
		outcome.ExpectedTitle,
		outcome.FoundText,
		strconv.FormatBool(outcome.Matched),
		outcome.ScreenshotPath,
	}
}

func formatLine(fields []string) string {
	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	return b.String()
}

// Fanout writes to a primary recorder and mirrors the row to secondary ones.
// Mirror failures are logged and never fail the row.
type Fanout struct {
	primary Recorder
	mirrors map[string]Recorder
	logger  *zap.Logger
}

// NewFanout builds a Fanout. Mirrors are keyed by a name used in logs.
func NewFanout(primary Recorder, mirrors map[string]Recorder, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{primary: primary, mirrors: mirrors, logger: logger}
}

// Record writes to the primary recorder, then to every mirror.
func (f *Fanout) Record(ctx context.Context, outcome verify.Outcome) error {
	if err := f.primary.Record(ctx, outcome); err != nil {
		return err
	}
	for name, mirror := range f.mirrors {
		if err := mirror.Record(ctx, outcome); err != nil {
			f.logger.Warn("mirror outcome failed",
				zap.String("mirror", name),
				zap.String("url", outcome.URL),
				zap.Error(err),
			)
		}
	}
	return nil
}
