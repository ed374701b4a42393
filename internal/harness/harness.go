// Package harness runs verification checks as Go subtests, one per work item.
package harness

import (
	"context"
	"fmt"
	"testing"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

// Checker classifies one item.
type Checker interface {
	Check(ctx context.Context, item verify.WorkItem) verify.Outcome
}

// Report receives every outcome from its subtest goroutine. A returned error
// fails the subtest.
type Report func(ctx context.Context, item verify.WorkItem, out verify.Outcome) error

// Settler persists an outcome along with its failure evidence.
type Settler interface {
	Settle(ctx context.Context, item verify.WorkItem, out verify.Outcome) (verify.Outcome, error)
}

// Record reports through s, so harness outcomes land in the same sinks and
// screenshot store as a scheduled run.
func Record(s Settler) Report {
	return func(ctx context.Context, item verify.WorkItem, out verify.Outcome) error {
		_, err := s.Settle(ctx, item, out)
		return err
	}
}

// Run starts a parallel subtest per item. A subtest fails unless its outcome matched.
func Run(t *testing.T, checker Checker, items []verify.WorkItem, report Report) {
	t.Helper()
	for _, item := range items {
		t.Run(SubtestName(item), func(t *testing.T) {
			t.Parallel()
			out := checker.Check(t.Context(), item)
			if report != nil {
				if err := report(t.Context(), item, out); err != nil {
					t.Errorf("%s: report outcome: %v", item.URL, err)
				}
			}
			if !out.Matched || out.BotBlocked {
				t.Errorf("%s: expected %q, found %q (%s)", item.URL, item.ExpectedTitle, out.FoundText, out.Stage)
			}
		})
	}
}

// SubtestName names the subtest for item.
func SubtestName(item verify.WorkItem) string {
	return fmt.Sprintf("%03d_%s", item.Index, verify.BaseDomain(item.URL))
}
