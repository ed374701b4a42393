package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: " Foo   Bar ", want: "foo bar"},
		{in: "Hello\t\nWorld", want: "hello world"},
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: "ÉTÉ  Chaud", want: "été chaud"},
	}
	for _, tt := range tests {
		got := Normalize(tt.in)
		assert.Equal(t, tt.want, got, "Normalize(%q)", tt.in)
		assert.Equal(t, got, Normalize(got), "Normalize must be idempotent for %q", tt.in)
	}
}

func TestBaseDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", BaseDomain("https://www.example.com/article"))
	assert.Equal(t, "news.example.com", BaseDomain("https://News.Example.com:8443/a?b=c"))
	assert.Equal(t, "example.com", BaseDomain("  http://example.com  "))
	assert.Empty(t, BaseDomain("not a url"))
	assert.Empty(t, BaseDomain("://broken"))
}

func TestClassifyHeadingMatchWinsOverTitle(t *testing.T) {
	t.Parallel()

	page := &fakePage{hasHeading: true, heading: "Breaking News", title: "Something Else"}
	item := WorkItem{URL: "https://example.com/a", ExpectedTitle: "breaking   news"}

	out, err := Classify(context.Background(), page, item, time.Second)
	require.NoError(t, err)
	assert.True(t, out.Matched)
	assert.False(t, out.BotBlocked)
	assert.Equal(t, "Breaking News", out.FoundText)
	assert.Equal(t, StageHeading, out.Stage)
}

func TestClassifyKeepsRawHeadingText(t *testing.T) {
	t.Parallel()

	page := &fakePage{hasHeading: true, heading: "Hello   World"}
	item := WorkItem{URL: "https://example.com/a", ExpectedTitle: "Hello World"}

	out, err := Classify(context.Background(), page, item, time.Second)
	require.NoError(t, err)
	assert.True(t, out.Matched)
	assert.Equal(t, "Hello   World", out.FoundText)
	assert.Equal(t, SinkMatched, out.Sink())
}

func TestClassifyTitleExactMatch(t *testing.T) {
	t.Parallel()

	page := &fakePage{hasHeading: true, heading: "Section", title: "Exact Title"}
	item := WorkItem{URL: "https://example.com/a", ExpectedTitle: "Exact Title"}

	out, err := Classify(context.Background(), page, item, time.Second)
	require.NoError(t, err)
	assert.True(t, out.Matched)
	assert.Equal(t, StageTitle, out.Stage)
	assert.Equal(t, "Exact Title", out.FoundText)
}

func TestClassifyTitleComparisonIsExact(t *testing.T) {
	t.Parallel()

	page := &fakePage{title: "exact title"}
	item := WorkItem{URL: "https://other.org/a", ExpectedTitle: "Exact Title"}

	out, err := Classify(context.Background(), page, item, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, out.Matched)
	assert.Equal(t, StageMismatch, out.Stage)
	assert.Equal(t, SinkFailed, out.Sink())
}

func TestClassifyBotBlockedTitle(t *testing.T) {
	t.Parallel()

	for _, title := range []string{
		"Example.com \u2014 Access Denied",
		"Example.com | Access Denied",
		"Just a moment... EXAMPLE.COM",
	} {
		t.Run(title, func(t *testing.T) {
			t.Parallel()

			page := &fakePage{title: title}
			item := WorkItem{URL: "https://www.example.com/article", ExpectedTitle: "Real Headline"}

			out, err := Classify(context.Background(), page, item, 10*time.Millisecond)
			require.NoError(t, err)
			assert.True(t, out.BotBlocked)
			assert.False(t, out.Matched)
			assert.Equal(t, title, out.FoundText)
			assert.Equal(t, SinkBotBlocked, out.Sink())
		})
	}
}

func TestClassifyMissingHeadingFallsThrough(t *testing.T) {
	t.Parallel()

	page := &fakePage{title: "Unrelated"}
	item := WorkItem{URL: "https://example.com/a", ExpectedTitle: "Headline"}

	start := time.Now()
	out, err := Classify(context.Background(), page, item, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StageMismatch, out.Stage)
	assert.Equal(t, "Unrelated", out.FoundText)
}

func TestClassifyPropagatesPageErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("target crashed")

	_, err := Classify(context.Background(), &fakePage{headingErr: boom}, WorkItem{}, time.Second)
	require.ErrorIs(t, err, boom)

	_, err = Classify(context.Background(), &fakePage{hasHeading: true, heading: "x", titleErr: boom}, WorkItem{ExpectedTitle: "y"}, time.Second)
	require.ErrorIs(t, err, boom)
}

func TestClassifyCanceledParent(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Classify(ctx, &fakePage{title: "t"}, WorkItem{ExpectedTitle: "t"}, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOutcomeSinkIsExclusive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		matched, bot bool
		want         Sink
	}{
		{matched: true, bot: false, want: SinkMatched},
		{matched: false, bot: false, want: SinkFailed},
		{matched: false, bot: true, want: SinkBotBlocked},
		{matched: true, bot: true, want: SinkBotBlocked},
	}
	for _, tt := range tests {
		out := Outcome{Matched: tt.matched, BotBlocked: tt.bot}
		assert.Equal(t, tt.want, out.Sink())
		assert.Equal(t, tt.want == SinkFailed, out.NeedsEvidence())
	}
}

func TestScreenshotName(t *testing.T) {
	t.Parallel()

	item := WorkItem{Index: 7, URL: "https://example.com/a?b=1"}
	assert.Equal(t, "fail_7.png", ScreenshotName(NamingIndex, item))
	assert.Equal(t, "fail_7.png", ScreenshotName("", item))

	name := ScreenshotName(NamingURL, item)
	assert.NotContains(t, name, "=")
	assert.NotContains(t, name, "/")
	assert.Equal(t, "aHR0cHM6Ly9leGFtcGxlLmNvbS9hP2I9MQ.png", name)
}
