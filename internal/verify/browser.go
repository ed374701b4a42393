package verify

import (
	"context"
	"time"
)

// Browser is a shared, long-lived browser that spawns isolated pages.
// Implementations must be safe for concurrent NewPage calls.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one isolated browsing context (no cookies or storage shared with
// other pages). A Page is used by a single goroutine.
type Page interface {
	// Navigate loads url and returns once DOMContentLoaded fired.
	Navigate(ctx context.Context, url string) error
	// FirstHeading waits for the first h1 and returns its text content.
	// It returns ErrElementNotFound when no h1 appears before ctx expires.
	FirstHeading(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Screenshot captures the full scrollable page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// ScreenshotStore persists failure evidence and returns the location recorded
// in the output row.
type ScreenshotStore interface {
	PutScreenshot(ctx context.Context, name string, png []byte) (string, error)
}

// DomainLimiter throttles navigations per host.
type DomainLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
