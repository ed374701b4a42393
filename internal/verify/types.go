package verify

import (
	"time"
)

// NoMatchFound is the FoundText recorded when a page could not be classified.
const NoMatchFound = "[NO MATCH FOUND]"

// WorkItem is one input row to verify.
type WorkItem struct {
	Index         int
	URL           string
	ExpectedTitle string
}

// Stage names the classifier step that decided an Outcome.
type Stage string

const (
	// StageHeading means the first h1 matched after normalization.
	StageHeading Stage = "heading"
	// StageTitle means the document title matched exactly.
	StageTitle Stage = "title"
	// StageBotDomain means the title looked like a bot wall for the site.
	StageBotDomain Stage = "bot_domain"
	// StageMismatch means the page loaded but nothing matched.
	StageMismatch Stage = "mismatch"
	// StageUnreachable means navigation or classification failed.
	StageUnreachable Stage = "unreachable"
)

// Sink identifies the output a given Outcome is written to.
type Sink string

const (
	SinkMatched    Sink = "matched"
	SinkFailed     Sink = "failed"
	SinkBotBlocked Sink = "bot_blocked"
)

// Sinks lists every sink in output order.
var Sinks = []Sink{SinkMatched, SinkFailed, SinkBotBlocked}

// Outcome is the classified result for one WorkItem.
type Outcome struct {
	Index          int
	URL            string
	ExpectedTitle  string
	FoundText      string
	Matched        bool
	BotBlocked     bool
	ScreenshotPath string
	Stage          Stage
	Attempts       int
	Duration       time.Duration
	// Err keeps the terminal error of an unreachable outcome for logging.
	Err error
}

// Sink selects the output for the outcome. Bot-blocked wins over matched.
func (o Outcome) Sink() Sink {
	switch {
	case o.BotBlocked:
		return SinkBotBlocked
	case o.Matched:
		return SinkMatched
	default:
		return SinkFailed
	}
}

// NeedsEvidence reports whether a screenshot should be captured.
func (o Outcome) NeedsEvidence() bool {
	return o.Sink() == SinkFailed
}

func newOutcome(item WorkItem) Outcome {
	return Outcome{
		Index:         item.Index,
		URL:           item.URL,
		ExpectedTitle: item.ExpectedTitle,
	}
}

// Unreachable builds the terminal outcome for an item that could not be classified.
func Unreachable(item WorkItem, err error) Outcome {
	out := newOutcome(item)
	out.FoundText = NoMatchFound
	out.Stage = StageUnreachable
	out.Err = err
	return out
}
