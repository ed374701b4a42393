package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	cases := map[string]string{
		"https://www.Example.com/path": "example.com",
		"http://example.com:8080/a":    "example.com",
		"example.com/path":             "example.com",
		"news.example.co.uk":           "news.example.co.uk",
		"192.168.1.1":                  "192.168.1.1",
		"http://%":                     "unknown",
		"  ":                           "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeSite(in), in)
	}
}

func TestCollectorsRegisterOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newCollectors(reg)
	c.screenshotBytes.WithLabelValues("a.test").Add(1)

	n, err := testutil.GatherAndCount(reg, "titlecheck_screenshot_bytes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Panics(t, func() { newCollectors(reg) }, "duplicate registration")
}

func TestObserveScreenshot(t *testing.T) {
	Init()
	before := testutil.ToFloat64(std.screenshotBytes.WithLabelValues("shots.example"))

	ObserveScreenshot("https://Shots.example/a", 100)
	ObserveScreenshot("https://www.shots.example/b", 50)
	ObserveScreenshot("https://shots.example/c", 0)

	assert.Equal(t, before+150, testutil.ToFloat64(std.screenshotBytes.WithLabelValues("shots.example")))
	assert.Positive(t, testutil.CollectAndCount(std.screenshotSize))
}

func TestObserveRateLimitDelay(t *testing.T) {
	ObserveRateLimitDelay("delay.example", 250*time.Millisecond)
	assert.Positive(t, testutil.CollectAndCount(std.rateLimitDelay))
}

func FuzzSanitizeSite(f *testing.F) {
	for _, seed := range []string{"http://example.com", "https://www.google.com", "ftp://example.com", ""} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		if SanitizeSite(in) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty label", in)
		}
	})
}
