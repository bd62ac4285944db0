package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mediacache/internal/database/testutil"
	"github.com/charlesng35/mediacache/internal/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	repo, err := NewRepository(db)
	require.NoError(t, err)
	return repo
}

func entry(key string, category models.Category, size, accessMs int64) models.CacheEntry {
	return models.CacheEntry{
		Key:          key,
		Category:     category,
		Size:         size,
		CreatedAt:    accessMs,
		LastAccessAt: accessMs,
	}
}

func TestNewRepositoryRequiresDB(t *testing.T) {
	_, err := NewRepository(nil)
	require.Error(t, err)
}

func TestUpsertInsertsAndOverwrites(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := entry("image/a.jpg", models.CategoryImage, 10, 1_000)
	first.Validator = models.OptionalString("v1")
	first.ContentType = models.OptionalString("image/jpeg")
	require.NoError(t, repo.Upsert(ctx, first))

	second := entry("image/a.jpg", models.CategoryImage, 25, 5_000)
	second.Validator = models.OptionalString("v2")
	require.NoError(t, repo.Upsert(ctx, second))

	got, err := repo.Get(ctx, "image/a.jpg")
	require.NoError(t, err)
	require.Equal(t, int64(25), got.Size)
	require.Equal(t, "v2", got.ValidatorValue())
	require.Empty(t, got.ContentTypeValue())
	require.Equal(t, int64(5_000), got.CreatedAt)
	require.Equal(t, int64(5_000), got.LastAccessAt)
}

func TestUpsertRejectsInvalidRows(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.Error(t, repo.Upsert(ctx, entry("  ", models.CategoryImage, 1, 1)))
	require.Error(t, repo.Upsert(ctx, entry("image/x.png", models.CategoryImage, -1, 1)))
}

func TestTouchUpdatesOnlyLastAccess(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	original := entry("video/clip.mp4", models.CategoryVideo, 4096, 100)
	original.Validator = models.OptionalString("etag")
	original.ContentType = models.OptionalString("video/mp4")
	require.NoError(t, repo.Upsert(ctx, original))

	require.NoError(t, repo.Touch(ctx, "video/clip.mp4", 9_999))
	require.NoError(t, repo.Touch(ctx, "video/missing.mp4", 9_999))

	got, err := repo.Get(ctx, "video/clip.mp4")
	require.NoError(t, err)
	require.Equal(t, int64(9_999), got.LastAccessAt)
	require.Equal(t, int64(100), got.CreatedAt)
	require.Equal(t, int64(4096), got.Size)
	require.Equal(t, "etag", got.ValidatorValue())
	require.Equal(t, "video/mp4", got.ContentTypeValue())
	require.Equal(t, models.CategoryVideo, got.Category)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.Get(context.Background(), "image/none.jpg")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAndDeleteMany(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	keys := make([]string, 0, 600)
	for i := 0; i < 600; i++ {
		key := fmt.Sprintf("image/%03d.jpg", i)
		keys = append(keys, key)
		require.NoError(t, repo.Upsert(ctx, entry(key, models.CategoryImage, 1, int64(i))))
	}

	require.NoError(t, repo.Delete(ctx, keys[0]))
	require.NoError(t, repo.Delete(ctx, keys[0]))
	_, err := repo.Get(ctx, keys[0])
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.DeleteMany(ctx, keys[1:599]))
	require.NoError(t, repo.DeleteMany(ctx, nil))

	page, err := repo.List(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	require.Equal(t, keys[599], page.Items[0].Key)
}

func TestTotalBytesAndBytesByCategory(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	empty, err := repo.TotalBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, Sizes{}, empty)

	require.NoError(t, repo.Upsert(ctx, entry("image/a.jpg", models.CategoryImage, 100, 1)))
	require.NoError(t, repo.Upsert(ctx, entry("image/b.jpg", models.CategoryImage, 50, 2)))
	require.NoError(t, repo.Upsert(ctx, entry("video/c.mp4", models.CategoryVideo, 1000, 3)))

	sizes, err := repo.TotalBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, Sizes{Image: 150, Video: 1000, Total: 1150}, sizes)

	video, err := repo.BytesByCategory(ctx, models.CategoryVideo)
	require.NoError(t, err)
	require.Equal(t, int64(1000), video)

	require.NoError(t, repo.Delete(ctx, "video/c.mp4"))
	video, err = repo.BytesByCategory(ctx, models.CategoryVideo)
	require.NoError(t, err)
	require.Zero(t, video)
}

func TestListOrdersByMostRecentAccess(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, entry("image/old.jpg", models.CategoryImage, 1, 10)))
	require.NoError(t, repo.Upsert(ctx, entry("image/new.jpg", models.CategoryImage, 1, 30)))
	require.NoError(t, repo.Upsert(ctx, entry("video/mid.mp4", models.CategoryVideo, 1, 20)))

	page, err := repo.List(ctx, "", 2, 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 2)
	require.Equal(t, "image/new.jpg", page.Items[0].Key)
	require.Equal(t, "video/mid.mp4", page.Items[1].Key)

	page, err = repo.List(ctx, "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "image/old.jpg", page.Items[0].Key)

	page, err = repo.List(ctx, models.CategoryImage, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
	require.Equal(t, "image/new.jpg", page.Items[0].Key)
}

func TestListOldestAppliesFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, entry("image/1.jpg", models.CategoryImage, 1, 100)))
	require.NoError(t, repo.Upsert(ctx, entry("video/2.mp4", models.CategoryVideo, 1, 200)))
	require.NoError(t, repo.Upsert(ctx, entry("image/3.jpg", models.CategoryImage, 1, 300)))

	all, err := repo.ListOldest(ctx, OldestFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"image/1.jpg", "video/2.mp4", "image/3.jpg"}, keysOf(all))

	before, err := repo.ListOldest(ctx, OldestFilter{Before: 300}, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"image/1.jpg", "video/2.mp4"}, keysOf(before))

	images, err := repo.ListOldest(ctx, OldestFilter{Category: models.CategoryImage}, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"image/1.jpg"}, keysOf(images))

	none, err := repo.ListOldest(ctx, OldestFilter{}, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func keysOf(entries []models.CacheEntry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}
