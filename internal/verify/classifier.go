package verify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultHeadingTimeout bounds the wait for the first h1.
const DefaultHeadingTimeout = 5 * time.Second

// Normalize lowercases s, collapses whitespace runs to a single space and trims it.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// BaseDomain returns the lowercase hostname of rawURL without a leading "www.".
func BaseDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Classify runs the ordered heuristic against a loaded page:
// heading match, exact title match, bot-block domain heuristic, mismatch.
// Missing headings fall through; any other page error is returned.
func Classify(ctx context.Context, page Page, item WorkItem, headingTimeout time.Duration) (Outcome, error) {
	if headingTimeout <= 0 {
		headingTimeout = DefaultHeadingTimeout
	}
	out := newOutcome(item)

	heading, found, err := firstHeading(ctx, page, headingTimeout)
	if err != nil {
		return Outcome{}, err
	}
	if found && Normalize(heading) == Normalize(item.ExpectedTitle) {
		out.FoundText = heading
		out.Matched = true
		out.Stage = StageHeading
		return out, nil
	}

	title, err := page.Title(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("read title: %w", err)
	}
	out.FoundText = title

	switch {
	case title == item.ExpectedTitle:
		out.Matched = true
		out.Stage = StageTitle
	case looksBotBlocked(title, item.URL):
		out.BotBlocked = true
		out.Stage = StageBotDomain
	default:
		out.Stage = StageMismatch
	}
	return out, nil
}

func firstHeading(ctx context.Context, page Page, timeout time.Duration) (string, bool, error) {
	headingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	heading, err := page.FirstHeading(headingCtx)
	switch {
	case err == nil:
		return heading, true, nil
	case ctx.Err() != nil:
		return "", false, fmt.Errorf("wait for heading: %w", ctx.Err())
	case errors.Is(err, ErrElementNotFound), errors.Is(err, context.DeadlineExceeded):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("wait for heading: %w", err)
	}
}

// looksBotBlocked flags challenge pages that only echo the site's domain.
func looksBotBlocked(title, rawURL string) bool {
	domain := BaseDomain(rawURL)
	if domain == "" {
		return false
	}
	return strings.Contains(strings.ToLower(title), domain)
}
