// Package publisher turns non-matching outcomes into outbound notifications.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

// Publisher sends one payload to a topic and returns the broker message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Notification is the JSON payload published per failed or bot-blocked outcome.
type Notification struct {
	RunID         string    `json:"run_id"`
	URL           string    `json:"url"`
	ExpectedTitle string    `json:"expected_title"`
	FoundText     string    `json:"found_text"`
	Sink          string    `json:"sink"`
	Stage         string    `json:"stage"`
	Screenshot    string    `json:"screenshot,omitempty"`
	Error         string    `json:"error,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Notifier publishes failed and bot-blocked outcomes. Matched outcomes are skipped.
type Notifier struct {
	pub   Publisher
	topic string
	runID string
	now   func() time.Time
}

// NewNotifier builds a Notifier for runID.
func NewNotifier(pub Publisher, topic, runID string) (*Notifier, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("pubsub.topic_name is required")
	}
	return &Notifier{
		pub:   pub,
		topic: topic,
		runID: runID,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Record publishes outcome unless it matched.
func (n *Notifier) Record(ctx context.Context, outcome verify.Outcome) error {
	if outcome.Sink() == verify.SinkMatched {
		return nil
	}
	msg := Notification{
		RunID:         n.runID,
		URL:           outcome.URL,
		ExpectedTitle: outcome.ExpectedTitle,
		FoundText:     outcome.FoundText,
		Sink:          string(outcome.Sink()),
		Stage:         string(outcome.Stage),
		Screenshot:    outcome.ScreenshotPath,
		CheckedAt:     n.now(),
	}
	if outcome.Err != nil {
		msg.Error = outcome.Err.Error()
	}
	if _, err := n.pub.Publish(ctx, n.topic, msg); err != nil {
		return fmt.Errorf("publish %s outcome: %w", msg.Sink, err)
	}
	return nil
}
