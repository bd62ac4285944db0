package checks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mediacache/internal/database/testutil"
	"github.com/charlesng35/mediacache/internal/monitoring"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestDatabaseCheck(t *testing.T) {
	ctx := context.Background()

	migrated := Database(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.Equal(t, monitoring.StatusUp, migrated.Run(ctx).Status)

	bare := Database(testutil.MustOpenTestDB(t))
	result := bare.Run(ctx)
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "cache_entries missing")

	require.Equal(t, monitoring.StatusDown, Database(nil).Run(ctx).Status)
}

func TestPingCheck(t *testing.T) {
	ctx := context.Background()

	up := Ping("blob_store", pingFunc(func(context.Context) error { return nil }), false)
	require.Equal(t, monitoring.StatusUp, up.Run(ctx).Status)

	down := Ping("blob_store", pingFunc(func(context.Context) error { return errors.New("bucket missing") }), false)
	result := down.Run(ctx)
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Equal(t, "bucket missing", result.Details)

	slow := Ping("redis", pingFunc(func(context.Context) error { return context.DeadlineExceeded }), true)
	require.Equal(t, monitoring.StatusDegraded, slow.Run(ctx).Status)

	require.Equal(t, monitoring.StatusUp, Ping("redis", nil, true).Run(ctx).Status)
	require.Equal(t, monitoring.StatusDown, Ping("redis", nil, false).Run(ctx).Status)
}

func TestMaintenanceCheck(t *testing.T) {
	mod, err := monitoring.NewModule(monitoring.Options{DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(mod)

	ctx := context.Background()
	check := Maintenance("cache_eviction", time.Hour)

	result := check.Run(ctx)
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "pending first run")

	monitoring.RecordMaintenanceRun("cache_eviction", "success", "", time.Millisecond)
	require.Equal(t, monitoring.StatusUp, check.Run(ctx).Status)

	monitoring.RecordMaintenanceRun("cache_eviction", "failure", "blob delete failed", time.Millisecond)
	result = check.Run(ctx)
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "blob delete failed")
}
