// Package chromedpbrowser drives headless Chrome through chromedp.
package chromedpbrowser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

// Config controls how Chrome is launched.
type Config struct {
	Headless  bool
	BinPath   string
	NoSandbox bool
	UserAgent string
}

// Browser owns one Chrome process. Pages are tabs in fresh browser contexts.
type Browser struct {
	cfg           Config
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New launches Chrome and waits for the first target to come up.
func New(cfg Config, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: chromedp warmup: %w", verify.ErrBrowserLaunch, err)
	}
	logger.Info("chrome started", zap.Bool("headless", cfg.Headless), zap.String("bin", cfg.BinPath))
	return &Browser{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.BinPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.BinPath))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

// NewPage opens a tab in a new browser context so no cookies or storage are shared.
func (b *Browser) NewPage(ctx context.Context) (verify.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	// The first Run allocates the target and must not carry a deadline.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("new page: %w", err)
	}
	p := &tab{tabCtx: tabCtx, cancel: cancel, userAgent: b.cfg.UserAgent}
	if err := p.run(ctx, p.setup()); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return p, nil
}

// Close shuts Chrome down.
func (b *Browser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

type tab struct {
	tabCtx    context.Context
	cancel    context.CancelFunc
	userAgent string
}

func (p *tab) setup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if p.userAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(p.userAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

// run executes actions on the tab bounded by ctx without tying the tab's lifetime to ctx.
func (p *tab) run(ctx context.Context, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if dl, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.tabCtx, dl)
	} else {
		runCtx, cancel = context.WithCancel(p.tabCtx)
	}
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && runCtx.Err() != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (p *tab) Navigate(ctx context.Context, url string) error {
	var ready bool
	err := p.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errorText, _, err := page.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return fmt.Errorf("%w: %s", verify.ErrNavigationFailed, errorText)
			}
			return nil
		}),
		chromedp.Poll(`document.readyState !== "loading"`, &ready),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *tab) FirstHeading(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, chromedp.TextContent("h1", &text, chromedp.ByQuery))
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, context.DeadlineExceeded):
		return "", fmt.Errorf("%w: h1: %w", verify.ErrElementNotFound, err)
	default:
		return "", fmt.Errorf("read h1: %w", err)
	}
}

func (p *tab) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

func (p *tab) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// quality 100 keeps PNG encoding.
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("full screenshot: %w", err)
	}
	return buf, nil
}

func (p *tab) Close() error {
	err := chromedp.Cancel(p.tabCtx)
	p.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil || parent.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
