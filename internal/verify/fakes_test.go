package verify

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakePage struct {
	navErr     error
	navDelay   time.Duration
	heading    string
	hasHeading bool
	headingErr error
	title      string
	titleErr   error
	png        []byte
	shotErr    error

	mu     sync.Mutex
	closed bool
}

func (p *fakePage) Navigate(ctx context.Context, _ string) error {
	if p.navDelay > 0 {
		select {
		case <-time.After(p.navDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.navErr
}

func (p *fakePage) FirstHeading(ctx context.Context) (string, error) {
	if p.headingErr != nil {
		return "", p.headingErr
	}
	if !p.hasHeading {
		<-ctx.Done()
		return "", ErrElementNotFound
	}
	return p.heading, nil
}

func (p *fakePage) Title(context.Context) (string, error) {
	return p.title, p.titleErr
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	return p.png, p.shotErr
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeBrowser hands out scripted pages in order, then copies of the last one.
type fakeBrowser struct {
	mu      sync.Mutex
	pages   []*fakePage
	opened  []*fakePage
	openErr error
}

func (b *fakeBrowser) NewPage(context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	if len(b.pages) == 0 {
		return nil, errors.New("no pages scripted")
	}
	var p *fakePage
	if n := len(b.opened); n < len(b.pages) {
		p = b.pages[n]
	} else {
		last := b.pages[len(b.pages)-1]
		p = &fakePage{
			navErr: last.navErr, navDelay: last.navDelay,
			heading: last.heading, hasHeading: last.hasHeading, headingErr: last.headingErr,
			title: last.title, titleErr: last.titleErr,
			png: last.png, shotErr: last.shotErr,
		}
	}
	b.opened = append(b.opened, p)
	return p, nil
}

func (b *fakeBrowser) Close() error { return nil }
