package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultNavigationTimeout bounds a single navigation.
const DefaultNavigationTimeout = 15 * time.Second

// DefaultScreenshotTimeout bounds the evidence navigation plus capture.
const DefaultScreenshotTimeout = 30 * time.Second

// CheckerConfig tunes a Checker.
type CheckerConfig struct {
	NavigationTimeout time.Duration
	HeadingTimeout    time.Duration
	ScreenshotTimeout time.Duration
	Retry             RetryPolicy
	// Limiter is optional.
	Limiter DomainLimiter
	// Clock defaults to the wall clock.
	Clock Clock
}

// Checker verifies single WorkItems against a shared Browser.
type Checker struct {
	browser Browser
	cfg     CheckerConfig
	logger  *zap.Logger
}

// NewChecker builds a Checker. The browser stays owned by the caller.
func NewChecker(browser Browser, cfg CheckerConfig, logger *zap.Logger) (*Checker, error) {
	if browser == nil {
		return nil, errors.New("browser is required")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if cfg.HeadingTimeout <= 0 {
		cfg.HeadingTimeout = DefaultHeadingTimeout
	}
	if cfg.ScreenshotTimeout <= 0 {
		cfg.ScreenshotTimeout = DefaultScreenshotTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = wallClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{browser: browser, cfg: cfg, logger: logger}, nil
}

// Check classifies item. It never fails: errors resolve to an unreachable Outcome.
func (c *Checker) Check(ctx context.Context, item WorkItem) Outcome {
	start := c.cfg.Clock.Now()
	for attempt := 1; ; attempt++ {
		out, err := c.attempt(ctx, item)
		if err == nil {
			out.Attempts = attempt
			out.Duration = c.cfg.Clock.Now().Sub(start)
			return out
		}
		if !c.cfg.Retry.ShouldRetry(err, attempt) || ctx.Err() != nil {
			out = Unreachable(item, err)
			out.Attempts = attempt
			out.Duration = c.cfg.Clock.Now().Sub(start)
			return out
		}
		delay := c.cfg.Retry.Backoff(attempt)
		c.logger.Debug("retrying unreachable page",
			zap.String("url", item.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			out = Unreachable(item, fmt.Errorf("retry wait: %w", ctx.Err()))
			out.Attempts = attempt
			out.Duration = c.cfg.Clock.Now().Sub(start)
			return out
		case <-timer.C:
		}
	}
}

func (c *Checker) attempt(ctx context.Context, item WorkItem) (Outcome, error) {
	page, err := c.open(ctx, item.URL)
	if err != nil {
		return Outcome{}, err
	}
	defer c.closePage(page, item.URL)

	return Classify(ctx, page, item, c.cfg.HeadingTimeout)
}

// CaptureEvidence reloads item in a fresh page and returns a full-page PNG.
func (c *Checker) CaptureEvidence(ctx context.Context, item WorkItem) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ScreenshotTimeout)
	defer cancel()

	page, err := c.open(ctx, item.URL)
	if err != nil {
		return nil, err
	}
	defer c.closePage(page, item.URL)

	png, err := page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return png, nil
}

// open returns a navigated page. The page is closed on error.
func (c *Checker) open(ctx context.Context, rawURL string) (Page, error) {
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("domain budget: %w", err)
		}
	}
	page, err := c.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
	defer cancel()

	if err := page.Navigate(navCtx, rawURL); err != nil {
		c.closePage(page, rawURL)
		return nil, navigationError(ctx, navCtx, err)
	}
	return page, nil
}

func (c *Checker) closePage(page Page, rawURL string) {
	if err := page.Close(); err != nil {
		c.logger.Debug("close page", zap.String("url", rawURL), zap.Error(err))
	}
}

func navigationError(parent, navCtx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrNavigationTimeout), errors.Is(err, ErrNavigationFailed):
		return err
	case parent.Err() != nil:
		return fmt.Errorf("navigate: %w", parent.Err())
	case navCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrNavigationTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrNavigationFailed, err)
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }
