package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/researchmate/internal/config"
	"github.com/kiranshivaraju/researchmate/internal/store"
	"github.com/kiranshivaraju/researchmate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, Env: "test", ShutdownTimeout: 5 * time.Second},
		Store:  config.StoreConfig{Driver: config.StoreMemory},
		Cache:  config.CacheConfig{Size: 64, TTL: time.Minute},
		Queue:  config.QueueConfig{Driver: config.QueueMemory, Workers: 2, Depth: 8},
		TextGen: config.TextGenConfig{
			Provider:  "mock",
			Timeout:   5 * time.Second,
			MaxTokens: 128,
		},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 100},
	}
}

// buildApp wires an app without starting its workers.
func buildApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.stopWorkers(ctx)
		a.close()
	})
	return a
}

func startApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a := buildApp(t, cfg)
	require.NoError(t, a.start(context.Background()))
	return a
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, &buf))

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

// ─── wiring tests ───────────────────────────────────────────────────────────

func TestNewApp_EndToEnd(t *testing.T) {
	a := startApp(t, testConfig(t))

	code, body := doJSON(t, a.router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = doJSON(t, a.router, "POST", "/jobs", map[string]string{"query": "AAPL outlook"})
	require.Equal(t, http.StatusAccepted, code)
	id := body["job_id"].(string)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		code, body = doJSON(t, a.router, "GET", "/jobs/"+id+"/status", nil)
		require.Equal(t, http.StatusOK, code)
		if body["status"] == "completed" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, "completed", body["status"])

	code, body = doJSON(t, a.router, "GET", "/jobs/"+id+"/result", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["result"], "[mock ")
}

func TestNewApp_SQLiteStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = config.StoreConfig{Driver: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "jobs.db")}

	a := startApp(t, cfg)
	code, _ := doJSON(t, a.router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestNewApp_StartOnEmptyStore(t *testing.T) {
	a := buildApp(t, testConfig(t))
	require.NoError(t, a.start(context.Background()))

	n, err := a.service.Requeue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewApp_RecoversLeftoverJobsInOrder(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Queue = config.QueueConfig{Driver: config.QueueMemory, Workers: 1, Depth: 2}
	cfg.Store = config.StoreConfig{Driver: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "jobs.db")}

	// A previous process left one job running and a backlog deeper than the queue.
	prev, closePrev, err := store.Open(ctx, cfg.Store)
	require.NoError(t, err)
	stuck, err := prev.CreateJob(ctx, store.CreateJobParams{Input: "AAPL", Pipeline: "market"})
	require.NoError(t, err)
	require.NoError(t, prev.SetJobStatus(ctx, stuck.ID, models.JobStatusRunning))
	var pending []uuid.UUID
	for i := 0; i < 6; i++ {
		j, err := prev.CreateJob(ctx, store.CreateJobParams{Input: fmt.Sprintf("backlog %d", i), Pipeline: "market"})
		require.NoError(t, err)
		pending = append(pending, j.ID)
	}
	closePrev()

	a := buildApp(t, cfg)

	// Nothing runs before start.
	time.Sleep(20 * time.Millisecond)
	for _, id := range pending {
		j, err := a.service.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPending, j.Status)
	}

	require.NoError(t, a.start(ctx))

	j, err := a.service.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, j.Status)
	assert.Equal(t, "interrupted by restart", *j.ErrorMessage)

	for _, id := range pending {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			j, err = a.service.Get(ctx, id)
			require.NoError(t, err)
			if j.IsTerminal() {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		assert.Equal(t, models.JobStatusCompleted, j.Status, "job %s", id)
	}
}

func TestNewApp_FailsOnUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.RedisURL = "redis://127.0.0.1:1/0"

	_, err := newApp(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping cache")
}

func TestNewApp_FailsOnUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.TextGen.Provider = "telepathy"

	_, err := newApp(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create text generator")
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnInvalidConfig(t *testing.T) {
	t.Setenv("TEXTGEN_PROVIDER", "telepathy")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnMissingDatabaseURL(t *testing.T) {
	t.Setenv("TEXTGEN_PROVIDER", "mock")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
