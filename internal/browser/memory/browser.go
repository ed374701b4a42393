// Package memory provides a scripted in-memory browser.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

// pngHeader is a minimal PNG signature used when a script carries no image.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Script describes how a URL renders.
type Script struct {
	Title         string
	Heading       string
	HasHeading    bool
	NavDelay      time.Duration
	NavErr        error
	PNG           []byte
	ScreenshotErr error
}

// Browser serves pages from scripts keyed by URL and tracks page counts.
type Browser struct {
	mu       sync.Mutex
	scripts  map[string]Script
	fallback Script
	open     int
	peak     int
	opened   int
	closed   bool
}

// New creates a Browser. URLs without a script render the fallback.
func New(scripts map[string]Script, fallback Script) *Browser {
	copied := make(map[string]Script, len(scripts))
	for k, v := range scripts {
		copied[k] = v
	}
	return &Browser{scripts: copied, fallback: fallback}
}

// NewPage opens an isolated page.
func (b *Browser) NewPage(ctx context.Context) (verify.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("browser closed")
	}
	b.open++
	b.opened++
	if b.open > b.peak {
		b.peak = b.open
	}
	return &page{browser: b}, nil
}

// Close marks the browser closed; later NewPage calls fail.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Stats reports currently open pages, the peak seen and total pages opened.
func (b *Browser) Stats() (open, peak, opened int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open, b.peak, b.opened
}

func (b *Browser) script(url string) Script {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.scripts[url]; ok {
		return s
	}
	return b.fallback
}

func (b *Browser) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open--
}

type page struct {
	browser *Browser
	script  Script
	loaded  bool
	closed  bool
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if p.closed {
		return verify.ErrPageClosed
	}
	s := p.browser.script(url)
	if s.NavDelay > 0 {
		timer := time.NewTimer(s.NavDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.NavErr != nil {
		return s.NavErr
	}
	p.script = s
	p.loaded = true
	return nil
}

func (p *page) FirstHeading(ctx context.Context) (string, error) {
	if p.closed {
		return "", verify.ErrPageClosed
	}
	if !p.loaded || !p.script.HasHeading {
		<-ctx.Done()
		return "", verify.ErrElementNotFound
	}
	return p.script.Heading, nil
}

func (p *page) Title(context.Context) (string, error) {
	if p.closed {
		return "", verify.ErrPageClosed
	}
	return p.script.Title, nil
}

func (p *page) Screenshot(context.Context) ([]byte, error) {
	if p.closed {
		return nil, verify.ErrPageClosed
	}
	if p.script.ScreenshotErr != nil {
		return nil, p.script.ScreenshotErr
	}
	if len(p.script.PNG) == 0 {
		return append([]byte(nil), pngHeader...), nil
	}
	return append([]byte(nil), p.script.PNG...), nil
}

func (p *page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.browser.release()
	return nil
}
