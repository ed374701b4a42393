// Package metrics exposes process-wide Prometheus collectors for titlecheck.
// Run and check counters live in progress/sinks; this package covers the ops
// server, politeness waits and evidence volume.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JakeFAU/titlecheck/internal/verify"
)

type collectors struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rateLimitDelay  *prometheus.HistogramVec
	screenshotBytes *prometheus.CounterVec
	screenshotSize  prometheus.Histogram
}

var (
	std  *collectors
	once sync.Once
)

// Init registers the collectors with the default registerer once.
func Init() {
	once.Do(func() {
		std = newCollectors(prometheus.DefaultRegisterer)
	})
}

func newCollectors(reg prometheus.Registerer) *collectors {
	f := promauto.With(reg)
	return &collectors{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "titlecheck_http_requests_total",
			Help: "Ops server requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "titlecheck_http_request_duration_seconds",
			Help:    "Ops server request latency by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route"}),
		rateLimitDelay: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "titlecheck_rate_limit_delay_seconds",
			Help:    "Time spent waiting for a per-site token before navigation.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"domain"}),
		screenshotBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "titlecheck_screenshot_bytes_total",
			Help: "Bytes of stored failure screenshots by site.",
		}, []string{"site"}),
		screenshotSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "titlecheck_screenshot_size_bytes",
			Help:    "Size distribution of stored failure screenshots.",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
	}
}

// SanitizeSite reduces a URL or bare host to a low-cardinality site label:
// the lowercase host without "www.", or "unknown".
func SanitizeSite(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "unknown"
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	if site := verify.BaseDomain(rawURL); site != "" {
		return site
	}
	return "unknown"
}

// Handler serves the default Prometheus gatherer.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest records one ops server request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	std.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	std.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records how long a navigation waited for its site's token.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	std.rateLimitDelay.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveScreenshot records a stored failure screenshot. Empty captures are ignored.
func ObserveScreenshot(rawURL string, size int) {
	if size <= 0 {
		return
	}
	Init()
	std.screenshotBytes.WithLabelValues(SanitizeSite(rawURL)).Add(float64(size))
	std.screenshotSize.Observe(float64(size))
}
