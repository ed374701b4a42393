package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageRunError   Stage = "RUN_ERROR"
	StageCheckStart Stage = "CHECK_START"
	StageCheckDone  Stage = "CHECK_DONE"
)

func (s Stage) terminal() bool {
	return s == StageRunDone || s == StageRunError
}

// Evidence reports what happened to the failure screenshot of a check.
type Evidence string

// Evidence states carried by CHECK_DONE events.
const (
	EvidenceNone     Evidence = ""
	EvidenceCaptured Evidence = "captured"
	EvidenceFailed   Evidence = "failed"
)

// Event captures a single milestone of a verification run.
type Event struct {
	// RunID identifies the run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	Stage Stage
	// Site is the base domain of the checked URL.
	Site string
	URL  string
	// Index is the work item position.
	Index int
	// Sink is the output an outcome was routed to (CHECK_DONE only).
	Sink string
	// Decision is the classifier stage that decided the outcome.
	Decision string
	Evidence Evidence
	Attempts int
	// Total is the item count on RUN_START and the processed count on RUN_DONE.
	Total int
	// Dur captures check latency or run wall time.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
	// Counts carries the final totals on RUN_DONE and RUN_ERROR.
	Counts *Counts
}

// Counts are the per-sink totals of a finished run.
type Counts struct {
	Processed  int
	Matched    int
	Failed     int
	BotBlocked int
	Evidence   int
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageCheckStart:
		if e.URL == "" {
			return errors.New("check start requires url")
		}
	case StageCheckDone:
		if e.URL == "" {
			return errors.New("check done requires url")
		}
		if e.Sink == "" {
			return errors.New("check done requires sink")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
