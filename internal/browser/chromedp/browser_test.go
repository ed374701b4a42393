package chromedpbrowser

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

func TestAllocatorOptions(t *testing.T) {
	t.Parallel()

	base := len(chromedp.DefaultExecAllocatorOptions)
	minimal := allocatorOptions(Config{Headless: true})
	full := allocatorOptions(Config{Headless: false, BinPath: "/usr/bin/chromium", NoSandbox: true, UserAgent: "agent"})

	assert.Len(t, minimal, base+4)
	assert.Len(t, full, base+7)
}

func newTestBrowser(t *testing.T) *Browser {
	t.Helper()
	b, err := New(Config{Headless: true, NoSandbox: true}, zap.NewNop())
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBrowserReadsRenderedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><head><title>Doc Title</title></head><body>`+
			`<script>document.addEventListener("DOMContentLoaded", function () {`+
			`var h = document.createElement("h1"); h.textContent = "Late  Heading"; document.body.appendChild(h);`+
			`});</script></body></html>`)
	}))
	defer srv.Close()

	b := newTestBrowser(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	p, err := b.NewPage(ctx)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Navigate(ctx, srv.URL))

	headingCtx, headingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer headingCancel()
	heading, err := p.FirstHeading(headingCtx)
	require.NoError(t, err)
	assert.Equal(t, "Late  Heading", heading)

	title, err := p.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Doc Title", title)

	png, err := p.Screenshot(ctx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestBrowserMissingHeading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Plain</title></head><body><p>no heading</p></body></html>`)
	}))
	defer srv.Close()

	b := newTestBrowser(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	p, err := b.NewPage(ctx)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Navigate(ctx, srv.URL))

	headingCtx, headingCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer headingCancel()
	_, err = p.FirstHeading(headingCtx)
	require.ErrorIs(t, err, verify.ErrElementNotFound)
}

func TestBrowserNavigationError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := newTestBrowser(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	p, err := b.NewPage(ctx)
	require.NoError(t, err)
	defer p.Close()

	err = p.Navigate(ctx, url)
	require.ErrorIs(t, err, verify.ErrNavigationFailed)
}
