package rodbrowser

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

func TestNewLauncherFlags(t *testing.T) {
	t.Parallel()

	l := newLauncher(Config{Headless: true, NoSandbox: true, BinPath: "/opt/chrome"})
	assert.Equal(t, "new", l.Get("headless"))
	assert.True(t, l.Has("no-sandbox"))
	assert.True(t, l.Has("disable-dev-shm-usage"))
	assert.False(t, l.Has("enable-automation"))
	assert.Equal(t, "/opt/chrome", l.Get("rod-bin"))

	headed := newLauncher(Config{Headless: false})
	assert.False(t, headed.Has("headless"))
}

func newTestBrowser(t *testing.T, stealthy bool) *Browser {
	t.Helper()
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no local chrome for rod")
	}
	b, err := New(Config{Headless: true, NoSandbox: true, BinPath: bin, Stealth: stealthy}, zap.NewNop())
	if err != nil {
		t.Skipf("rod unavailable: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBrowserReadsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Rod Title</title></head><body><h1> Rod   Heading </h1></body></html>`)
	}))
	defer srv.Close()

	for _, stealthy := range []bool{false, true} {
		b := newTestBrowser(t, stealthy)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)

		p, err := b.NewPage(ctx)
		require.NoError(t, err)
		require.NoError(t, p.Navigate(ctx, srv.URL))

		heading, err := p.FirstHeading(ctx)
		require.NoError(t, err)
		assert.Equal(t, " Rod   Heading ", heading)
		assert.Equal(t, "rod heading", verify.Normalize(heading))

		title, err := p.Title(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Rod Title", title)

		png, err := p.Screenshot(ctx)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

		require.NoError(t, p.Close())
		cancel()
	}
}

func TestBrowserMissingHeading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>x</title></head><body></body></html>`)
	}))
	defer srv.Close()

	b := newTestBrowser(t, false)
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
