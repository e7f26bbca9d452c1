package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/researchmate/internal/api"
	mw "github.com/kiranshivaraju/researchmate/internal/api/middleware"
	"github.com/kiranshivaraju/researchmate/internal/cache"
	"github.com/kiranshivaraju/researchmate/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- stub cache ---

type stubCache struct{}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                          { return nil }
func (c *stubCache) Ping(_ context.Context) error                                      { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func okJSON(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func newTestRouter(t *testing.T, hashes []string) http.Handler {
	t.Helper()
	return api.NewRouter(api.Dependencies{
		Auth:          mw.NewAuth(hashes),
		RateLimit:     mw.NewRateLimit(&stubCache{}, 60),
		Metrics:       metrics.New(),
		HealthHandler: okJSON,
		SubmitHandler: okJSON,
		StatusHandler: okJSON,
		ResultHandler: okJSON,
	})
}

func lockedHashes(t *testing.T) []string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte("rmk_router_key_123456"), bcrypt.MinCost)
	require.NoError(t, err)
	return []string{string(h)}
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter(t, lockedHashes(t))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MetricsEndpoint_Public(t *testing.T) {
	router := newTestRouter(t, lockedHashes(t))

	// one instrumented request so the http histogram has a sample
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `handler="health"`)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter(t, lockedHashes(t))

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/jobs"},
		{"GET", "/jobs/0f8fad5b-d9cb-469f-a165-70867728950e/status"},
		{"GET", "/jobs/0f8fad5b-d9cb-469f-a165-70867728950e/result"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_OpenWithoutKeys(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest("POST", "/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RESOURCE_NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest("DELETE", "/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_NilMetrics(t *testing.T) {
	router := api.NewRouter(api.Dependencies{HealthHandler: okJSON})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/jobs/abc/status", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

var _ cache.Cache = (*stubCache)(nil)
