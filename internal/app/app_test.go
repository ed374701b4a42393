package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/titlecheck/internal/browser/memory"
	"github.com/JakeFAU/titlecheck/internal/config"
	"github.com/JakeFAU/titlecheck/internal/recorder"
	memorystore "github.com/JakeFAU/titlecheck/internal/storage/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "links.csv")
	require.NoError(t, os.WriteFile(input, []byte(
		"article_link,title\n"+
			"https://news.test/1,Hello World\n"+
			"https://other.test/2,Missing Headline\n"+
			"https://www.example.com/3,Real Headline\n"+
			",no url\n",
	), 0o600))

	return config.Config{
		Checker: config.CheckerConfig{
			Concurrency:       2,
			NavTimeout:        time.Second,
			HeadingTimeout:    20 * time.Millisecond,
			ScreenshotTimeout: time.Second,
		},
		Browser: config.BrowserConfig{Backend: config.BackendChromedp},
		Input: config.InputConfig{
			Path:        input,
			URLColumn:   "article_link",
			TitleColumn: "title",
		},
		Output: config.OutputConfig{
			MatchedPath:    filepath.Join(dir, "success.csv"),
			FailedPath:     filepath.Join(dir, "failure.csv"),
			BotBlockedPath: filepath.Join(dir, "bot_blocked.csv"),
		},
		Screenshots: config.ScreenshotConfig{Backend: config.ShotsMemory, Naming: "index"},
		DB:          config.DBConfig{Table: "title_checks"},
	}
}

func testBrowser() *memory.Browser {
	return memory.New(map[string]memory.Script{
		"https://news.test/1":       {Title: "News", Heading: "Hello World", HasHeading: true},
		"https://other.test/2":      {Title: "Something else"},
		"https://www.example.com/3": {Title: "Just a moment | example.com"},
	}, memory.Script{})
}

func TestBuildAndRun(t *testing.T) {
	cfg := testConfig(t)
	browser := testBrowser()
	shots := memorystore.NewScreenshotStore()

	a, err := Build(context.Background(), cfg, zaptest.NewLogger(t), Overrides{
		Browser:    browser,
		Shots:      shots,
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	sum, err := a.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Matched)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.BotBlocked)

	matched, err := recorder.ReadSink(cfg.Output.MatchedPath)
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	failed, err := recorder.ReadSink(cfg.Output.FailedPath)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "https://other.test/2", failed[0][0])
	assert.Equal(t, "memory://fail_1.png", failed[0][4])
	_, ok := shots.Get("fail_1.png")
	assert.True(t, ok)

	snap := a.summary.Snapshot()
	assert.Equal(t, 3, snap.Done)
	assert.Equal(t, 1, snap.BotBlocked)

	_, err = browser.NewPage(context.Background())
	assert.Error(t, err, "browser is closed with the app")
}

func TestBuildRejectsBadDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.DB.DSN = "postgres://%zz"
	browser := testBrowser()

	_, err := Build(context.Background(), cfg, nil, Overrides{
		Browser:    browser,
		Registerer: prometheus.NewRegistry(),
	})
	require.Error(t, err)

	_, err = browser.NewPage(context.Background())
	assert.Error(t, err, "partially built app is cleaned up")
}

func TestRunMissingInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.Path = filepath.Join(t.TempDir(), "absent.csv")

	a, err := Build(context.Background(), cfg, nil, Overrides{
		Browser:    testBrowser(),
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	_, err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open input")
}

func TestLocalScreenshotsAreDefault(t *testing.T) {
	cfg := testConfig(t)
	cfg.Screenshots = config.ScreenshotConfig{
		Backend: config.ShotsLocal,
		Dir:     filepath.Join(t.TempDir(), "shots"),
		Naming:  "url",
	}

	a, err := Build(context.Background(), cfg, nil, Overrides{
		Browser:    testBrowser(),
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.DirExists(t, cfg.Screenshots.Dir)
	assert.NotEqual(t, [16]byte{}, [16]byte(a.RunID()))
	assert.Equal(t, cfg.Output.FailedPath, a.Paths().Failed)
}
