// Package rodbrowser drives Chrome through go-rod, optionally with stealth patches.
package rodbrowser

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

// Config controls how the browser is launched.
type Config struct {
	Headless  bool
	BinPath   string
	NoSandbox bool
	UserAgent string
	// Stealth injects evasion scripts into every page.
	Stealth bool
}

// Browser owns one launched Chrome. Each page lives in its own incognito context.
type Browser struct {
	cfg      Config
	logger   *zap.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// New launches Chrome and connects to it over CDP.
func New(cfg Config, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := newLauncher(cfg)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch: %w", verify.ErrBrowserLaunch, err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: connect: %w", verify.ErrBrowserLaunch, err)
	}
	logger.Info("rod browser started", zap.Bool("headless", cfg.Headless), zap.Bool("stealth", cfg.Stealth))
	return &Browser{cfg: cfg, logger: logger, launcher: l, browser: browser}, nil
}

func newLauncher(cfg Config) *launcher.Launcher {
	l := launcher.New()
	if cfg.BinPath != "" {
		l = l.Bin(cfg.BinPath)
	}
	if cfg.Headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false)
	}
	if cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	return l.Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")
}

// NewPage opens a page inside a fresh incognito context.
func (b *Browser) NewPage(ctx context.Context) (verify.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	incognito, err := b.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	incognito = incognito.Context(context.Background())

	var p *rod.Page
	if b.cfg.Stealth {
		p, err = stealth.Page(incognito)
	} else {
		p, err = incognito.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	if b.cfg.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
			_ = incognito.Close()
			return nil, fmt.Errorf("set user-agent: %w", err)
		}
	}
	return &page{page: p, incognito: incognito}, nil
}

// Close shuts the browser down and removes its profile directory.
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("close rod browser: %w", err)
	}
	return nil
}

type page struct {
	page      *rod.Page
	incognito *rod.Browser
}

func (p *page) Navigate(ctx context.Context, url string) error {
	cp := p.page.Context(ctx)
	wait := cp.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := cp.Navigate(url); err != nil {
		var navErr *rod.NavigationError
		if errors.As(err, &navErr) {
			return fmt.Errorf("%w: %s", verify.ErrNavigationFailed, navErr.Reason)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wait for DOMContentLoaded: %w", err)
	}
	return nil
}

func (p *page) FirstHeading(ctx context.Context) (string, error) {
	el, err := p.page.Context(ctx).Element("h1")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: h1: %w", verify.ErrElementNotFound, err)
		}
		return "", fmt.Errorf("find h1: %w", err)
	}
	text, err := el.Property("textContent")
	if err != nil {
		return "", fmt.Errorf("read h1: %w", err)
	}
	return text.Str(), nil
}

func (p *page) Title(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return res.Value.Str(), nil
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("full screenshot: %w", err)
	}
	return png, nil
}

// Close disposes the page's incognito context, which also closes the page.
func (p *page) Close() error {
	if err := p.incognito.Close(); err != nil {
		return fmt.Errorf("close incognito context: %w", err)
	}
	return nil
}
