package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/mw-ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/mw-teapot", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(std.httpRequests.WithLabelValues("GET", "418"))

	ts := httptest.NewServer(r)
	defer ts.Close()

	for _, path := range []string{"/mw-ok", "/mw-teapot"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}

	assert.Equal(t, before+1, testutil.ToFloat64(std.httpRequests.WithLabelValues("GET", "418")))
	assert.Positive(t, testutil.CollectAndCount(std.httpDuration))
}

func TestMiddlewareLabelsUnmatchedRoutes(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/known", func(w http.ResponseWriter, _ *http.Request) {})

	before := testutil.ToFloat64(std.httpRequests.WithLabelValues("GET", "404"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(std.httpRequests.WithLabelValues("GET", "404")))
	assert.Equal(t, "unknown", routePattern(httptest.NewRequest(http.MethodGet, "/", nil)))
}
