// Package staticbrowser classifies pages from their raw HTML without running JavaScript.
package staticbrowser

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

// Config controls the HTTP collector.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Browser fetches documents with colly and parses them with goquery.
// Screenshots are not supported.
type Browser struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Browser. Cookies are disabled so pages stay isolated.
func New(cfg Config, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = verify.DefaultNavigationTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newHTTPTransport())
	c.DisableCookies()
	return &Browser{cfg: cfg, logger: logger, baseCollector: c}
}

// NewPage returns an empty page.
func (b *Browser) NewPage(ctx context.Context) (verify.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &page{browser: b}, nil
}

// Close is a no-op.
func (b *Browser) Close() error { return nil }

func (b *Browser) buildCollector(body *[]byte, fetchErr *error) *colly.Collector {
	collector := b.baseCollector.Clone()
	if b.cfg.UserAgent != "" {
		collector.UserAgent = b.cfg.UserAgent
	}
	collector.SetRequestTimeout(b.cfg.Timeout)
	collector.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
	return collector
}

type page struct {
	browser *Browser
	doc     *goquery.Document
	closed  bool
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if p.closed {
		return verify.ErrPageClosed
	}
	var (
		body     []byte
		fetchErr error
	)
	collector := p.browser.buildCollector(&body, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch %s: %w", url, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: visit %s: %w", verify.ErrNavigationFailed, url, err)
		}
		if fetchErr != nil {
			return fmt.Errorf("%w: response %s: %w", verify.ErrNavigationFailed, url, fetchErr)
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: parse %s: %w", verify.ErrNavigationFailed, url, err)
	}
	p.doc = doc
	return nil
}

func (p *page) FirstHeading(context.Context) (string, error) {
	if p.closed {
		return "", verify.ErrPageClosed
	}
	if p.doc == nil {
		return "", verify.ErrElementNotFound
	}
	h1 := p.doc.Find("h1").First()
	if h1.Length() == 0 {
		return "", verify.ErrElementNotFound
	}
	return h1.Text(), nil
}

// Title mirrors document.title, which strips and collapses whitespace.
func (p *page) Title(context.Context) (string, error) {
	if p.closed {
		return "", verify.ErrPageClosed
	}
	if p.doc == nil {
		return "", nil
	}
	raw := p.doc.Find("title").First().Text()
	return strings.Join(strings.Fields(raw), " "), nil
}

func (p *page) Screenshot(context.Context) ([]byte, error) {
	return nil, verify.ErrScreenshotUnsupported
}

func (p *page) Close() error {
	p.closed = true
	p.doc = nil
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
