package monitoring_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mediacache/internal/monitoring"
	"github.com/charlesng35/mediacache/internal/monitoring/checks"
)

func setupModule(t *testing.T) *monitoring.Module {
	t.Helper()

	mod, err := monitoring.NewModule(monitoring.Options{DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(mod)
	return mod
}

func TestSummaryAggregatesMetrics(t *testing.T) {
	mod := setupModule(t)

	monitoring.RecordCacheLookup("image", true)
	monitoring.RecordCacheLookup("image", true)
	monitoring.RecordCacheLookup("video", false)
	monitoring.RecordOriginFetch("full", 200, 10*time.Millisecond)
	monitoring.RecordOriginFetch("full", 0, time.Millisecond)
	monitoring.RecordCommit("image", "success", 2048)
	monitoring.RecordCommit("video", "failure", 0)
	monitoring.RecordEviction("ttl", "all", 3, 4096)
	monitoring.RecordEviction("capacity", "video", 0, 0)
	monitoring.RecordMaintenanceRun("cache_eviction", "success", "", time.Second)

	summary := mod.Summary()
	require.Equal(t, uint64(2), summary.Cache.Hits)
	require.Equal(t, uint64(1), summary.Cache.Misses)
	require.InDelta(t, 2.0/3.0, summary.Cache.HitRatio, 1e-9)
	require.Equal(t, uint64(1), summary.Origin.Success)
	require.Equal(t, uint64(1), summary.Origin.Failure)
	require.Equal(t, uint64(2048), summary.Commits.Bytes)
	require.Equal(t, uint64(1), summary.Commits.Failure)
	require.Equal(t, uint64(3), summary.Eviction.Deleted)
	require.Equal(t, uint64(4096), summary.Eviction.FreedBytes)
	require.Len(t, summary.Maintenance.Jobs, 1)
}

func TestHandlerExposesCollectors(t *testing.T) {
	mod := setupModule(t)
	monitoring.RecordCacheLookup("image", false)

	rec := httptest.NewRecorder()
	mod.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `mediacache_cache_lookups_total{category="image",result="miss"} 1`)
}

func TestStatusClass(t *testing.T) {
	require.Equal(t, "2xx", monitoring.StatusClass(206))
	require.Equal(t, "4xx", monitoring.StatusClass(429))
	require.Equal(t, "error", monitoring.StatusClass(0))
}

func TestHealthManagerEvaluate(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("blob", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "bucket missing"}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("panics", func(ctx context.Context) monitoring.ProbeResult {
		panic("boom")
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 3)
	require.Equal(t, "database", report.Checks[0].Component)
	require.Equal(t, "blob", report.Checks[1].Component)
	require.Equal(t, "boom", report.Checks[2].Details)

	live := manager.EvaluateLiveness(context.Background())
	require.True(t, live.Success)
	require.Empty(t, live.Checks)
}

func TestResultFromError(t *testing.T) {
	require.Equal(t, monitoring.StatusUp, monitoring.ResultFromError("x", nil, 0).Status)
	require.Equal(t, monitoring.StatusDown, monitoring.ResultFromError("x", errors.New("down"), 0).Status)
	require.Equal(t, monitoring.StatusDegraded, monitoring.ResultFromError("x", context.DeadlineExceeded, 0).Status)
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	up := checks.Ping("blob", pingerFunc(func(context.Context) error { return nil }), false).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, up.Status)

	down := checks.Ping("redis", pingerFunc(func(context.Context) error { return errors.New("refused") }), true).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, down.Status)

	disabled := checks.Ping("redis", nil, true).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, disabled.Status)

	missing := checks.Ping("blob", nil, false).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, missing.Status)
}

func TestMaintenanceCheck(t *testing.T) {
	setupModule(t)

	pending := checks.Maintenance("cache_eviction", 0).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, pending.Status)

	monitoring.RecordMaintenanceRun("cache_eviction", "failure", "blob store offline", time.Second)
	failed := checks.Maintenance("cache_eviction", 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, failed.Status)
	require.Contains(t, failed.Details, "blob store offline")

	monitoring.RecordMaintenanceRun("cache_eviction", "success", "", time.Second)
	recovered := checks.Maintenance("cache_eviction", time.Hour).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, recovered.Status)
}
