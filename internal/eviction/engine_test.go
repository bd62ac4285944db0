package eviction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/mediacache/internal/blob"
	"github.com/charlesng35/mediacache/internal/database/testutil"
	"github.com/charlesng35/mediacache/internal/index"
	"github.com/charlesng35/mediacache/internal/models"
)

type capacityMap map[models.Category]float64

func (c capacityMap) CapacityMB(_ context.Context, category models.Category) (float64, error) {
	return c[category], nil
}

type failingBlobs struct{}

func (failingBlobs) Delete(context.Context, []string) error {
	return errors.New("bucket unavailable")
}

type fixture struct {
	repo  *index.Repository
	blobs *blob.FilesystemStore
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := index.NewRepository(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)
	blobs, err := blob.NewFilesystemStore(blob.FilesystemConfig{Root: t.TempDir()})
	require.NoError(t, err)
	return &fixture{repo: repo, blobs: blobs, now: time.UnixMilli(1_700_000_000_000)}
}

// add stores a blob of size bytes and its index row, last accessed ago before now.
func (f *fixture) add(t *testing.T, category models.Category, name string, size int, ago time.Duration) string {
	t.Helper()
	key := string(category) + "/" + name
	_, err := f.blobs.Put(context.Background(), key, strings.NewReader(strings.Repeat("x", size)), blob.PutOptions{})
	require.NoError(t, err)

	at := f.now.Add(-ago).UnixMilli()
	require.NoError(t, f.repo.Upsert(context.Background(), models.CacheEntry{
		Key:          key,
		Category:     category,
		Size:         int64(size),
		CreatedAt:    at,
		LastAccessAt: at,
	}))
	return key
}

func (f *fixture) engine(t *testing.T, capacity Capacity, policy Policy) *Engine {
	t.Helper()
	e, err := NewEngine(f.repo, f.blobs, capacity, policy,
		WithNow(func() time.Time { return f.now }),
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	return e
}

func (f *fixture) exists(t *testing.T, key string) bool {
	t.Helper()
	_, err := f.repo.Get(context.Background(), key)
	if errors.Is(err, index.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func (f *fixture) blobExists(t *testing.T, key string) bool {
	t.Helper()
	obj, err := f.blobs.Get(context.Background(), key, nil)
	if errors.Is(err, blob.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	_ = obj.Close()
	return true
}

func TestRunEvictsEntriesOlderThanTTL(t *testing.T) {
	f := newFixture(t)
	day := 24 * time.Hour
	old1 := f.add(t, models.CategoryImage, "old1.jpg", 100, 9*day)
	old2 := f.add(t, models.CategoryVideo, "old2.mp4", 250, 8*day)
	fresh := f.add(t, models.CategoryImage, "fresh.jpg", 40, day)
	edge := f.add(t, models.CategoryImage, "edge.jpg", 10, 7*day-time.Minute)

	e := f.engine(t, capacityMap{}, Policy{TTLDays: 7, BatchSize: 200})
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Deleted: 2, FreedBytes: 350}, result)

	require.False(t, f.exists(t, old1))
	require.False(t, f.exists(t, old2))
	require.False(t, f.blobExists(t, old1))
	require.False(t, f.blobExists(t, old2))
	require.True(t, f.exists(t, fresh))
	require.True(t, f.exists(t, edge))
	require.True(t, f.blobExists(t, fresh))

	second, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{}, second)
}

func TestRunTTLDisabled(t *testing.T) {
	f := newFixture(t)
	key := f.add(t, models.CategoryImage, "ancient.jpg", 10, 365*24*time.Hour)

	e := f.engine(t, capacityMap{}, Policy{TTLDays: 0, BatchSize: 10})
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{}, result)
	require.True(t, f.exists(t, key))
}

func TestRunTTLBeyondEpochKeepsFreshRows(t *testing.T) {
	f := newFixture(t)
	key := f.add(t, models.CategoryImage, "recent.jpg", 10, time.Hour)

	e := f.engine(t, nil, ParsePolicy("30000", ""))
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{}, result)
	require.True(t, f.exists(t, key))
	require.True(t, f.blobExists(t, key))
}

func TestRunTTLIterationBound(t *testing.T) {
	f := newFixture(t)
	for i := range 12 {
		f.add(t, models.CategoryImage, fmt.Sprintf("old-%02d.jpg", i), 1, 30*24*time.Hour+time.Duration(i)*time.Minute)
	}

	e := f.engine(t, nil, Policy{TTLDays: 7, BatchSize: 1})
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ttlIterations, result.Deleted)

	remaining, err := f.repo.ListOldest(context.Background(), index.OldestFilter{}, 100)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

func TestRunEnforcesCapacityCeiling(t *testing.T) {
	f := newFixture(t)
	const chunk = 600 * 1024
	oldest := f.add(t, models.CategoryImage, "a.jpg", chunk, 3*time.Hour)
	middle := f.add(t, models.CategoryImage, "b.jpg", chunk, 2*time.Hour)
	newest := f.add(t, models.CategoryImage, "c.jpg", chunk, time.Hour)
	video := f.add(t, models.CategoryVideo, "v.mp4", chunk, 4*time.Hour)

	e := f.engine(t, capacityMap{models.CategoryImage: 1}, Policy{TTLDays: 7, BatchSize: 1})
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Deleted: 2, FreedBytes: 2 * chunk}, result)

	require.False(t, f.exists(t, oldest))
	require.False(t, f.exists(t, middle))
	require.True(t, f.exists(t, newest))
	require.True(t, f.exists(t, video), "video has no ceiling")

	total, err := f.repo.BytesByCategory(context.Background(), models.CategoryImage)
	require.NoError(t, err)
	require.LessOrEqual(t, total, MBToBytes(1))

	second, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{}, second)
}

func TestRunCapacityIterationBound(t *testing.T) {
	f := newFixture(t)
	for i := range 25 {
		f.add(t, models.CategoryVideo, fmt.Sprintf("clip-%02d.mp4", i), 1024, time.Duration(25-i)*time.Minute)
	}

	e := f.engine(t, capacityMap{models.CategoryVideo: 1.0 / 1024}, Policy{TTLDays: 7, BatchSize: 1})
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, capacityIterations, result.Deleted)
	require.Equal(t, int64(capacityIterations*1024), result.FreedBytes)
}

func TestRunStopsPhaseOnBlobFailure(t *testing.T) {
	f := newFixture(t)
	key := f.add(t, models.CategoryImage, "old.jpg", 10, 30*24*time.Hour)

	e, err := NewEngine(f.repo, failingBlobs{}, capacityMap{models.CategoryImage: 1e-9}, Policy{TTLDays: 7, BatchSize: 10},
		WithNow(func() time.Time { return f.now }),
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)

	result, err := e.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ttl phase")
	require.Contains(t, err.Error(), "bucket unavailable")
	require.Equal(t, Result{}, result)
	require.True(t, f.exists(t, key), "index row survives a failed blob delete")
}

func TestNewEngineValidates(t *testing.T) {
	_, err := NewEngine(nil, failingBlobs{}, nil, Policy{})
	require.Error(t, err)

	f := newFixture(t)
	e, err := NewEngine(f.repo, f.blobs, nil, Policy{BatchSize: 10_000})
	require.NoError(t, err)
	require.Equal(t, Policy{TTLDays: 0, BatchSize: MaxBatchSize}, e.Policy())
}
