package blob

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFilesystemStore(t *testing.T) *FilesystemStore {
	t.Helper()
	store, err := NewFilesystemStore(FilesystemConfig{Root: t.TempDir()})
	require.NoError(t, err)
	return store
}

func readAll(t *testing.T, obj *Object) []byte {
	t.Helper()
	defer obj.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	return data
}

func TestFilesystemStorePutGet(t *testing.T) {
	store := newTestFilesystemStore(t)
	ctx := context.Background()
	payload := bytes.Repeat([]byte("0123456789"), 100)

	res, err := store.Put(ctx, "video/a/b.mp4", bytes.NewReader(payload), PutOptions{
		ContentType:  "video/mp4",
		CacheControl: "public, max-age=86400",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1000), res.Size)
	sum := md5.Sum(payload)
	require.Equal(t, hex.EncodeToString(sum[:]), res.ETag)

	obj, err := store.Get(ctx, "video/a/b.mp4", nil)
	require.NoError(t, err)
	require.Nil(t, obj.Span)
	require.Equal(t, int64(1000), obj.Size)
	require.Equal(t, int64(1000), obj.ContentLength())
	require.Equal(t, res.ETag, obj.ETag)
	require.Equal(t, "video/mp4", obj.ContentType)
	require.Equal(t, "public, max-age=86400", obj.CacheControl)
	require.Equal(t, payload, readAll(t, obj))
}

func TestFilesystemStoreRangedGet(t *testing.T) {
	store := newTestFilesystemStore(t)
	ctx := context.Background()
	payload := bytes.Repeat([]byte("x"), 990)
	payload = append(payload, []byte("0123456789")...)

	_, err := store.Put(ctx, "video/clip.mp4", bytes.NewReader(payload), PutOptions{})
	require.NoError(t, err)

	obj, err := store.Get(ctx, "video/clip.mp4", OffsetRange(990, 50))
	require.NoError(t, err)
	require.NotNil(t, obj.Span)
	require.Equal(t, "bytes 990-999/1000", obj.Span.ContentRange())
	require.Equal(t, int64(10), obj.ContentLength())
	require.Equal(t, "0123456789", string(readAll(t, obj)))

	obj, err = store.Get(ctx, "video/clip.mp4", SuffixRange(3))
	require.NoError(t, err)
	require.Equal(t, "789", string(readAll(t, obj)))

	_, err = store.Get(ctx, "video/clip.mp4", OffsetRange(1000, 1))
	require.ErrorIs(t, err, ErrRangeNotSatisfiable)
}

func TestFilesystemStoreOverwrite(t *testing.T) {
	store := newTestFilesystemStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "image/a.jpg", strings.NewReader("first version"), PutOptions{ContentType: "image/jpeg"})
	require.NoError(t, err)
	_, err = store.Put(ctx, "image/a.jpg", strings.NewReader("v2"), PutOptions{ContentType: "image/png"})
	require.NoError(t, err)

	obj, err := store.Get(ctx, "image/a.jpg", nil)
	require.NoError(t, err)
	require.Equal(t, "image/png", obj.ContentType)
	require.Equal(t, "v2", string(readAll(t, obj)))
}

func TestFilesystemStoreMissing(t *testing.T) {
	store := newTestFilesystemStore(t)
	_, err := store.Get(context.Background(), "image/none.jpg", nil)
	require.ErrorIs(t, err, ErrNotFound)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("origin reset")
}

func TestFilesystemStoreFailedPutLeavesNothing(t *testing.T) {
	store := newTestFilesystemStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "image/broken.jpg", io.MultiReader(strings.NewReader("partial"), failingReader{}), PutOptions{})
	require.Error(t, err)

	_, err = store.Get(ctx, "image/broken.jpg", nil)
	require.ErrorIs(t, err, ErrNotFound)

	entries, err := os.ReadDir(filepath.Join(store.Root(), dataDir, "image"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFilesystemStoreFailedCommitWritesNoSidecar(t *testing.T) {
	store := newTestFilesystemStore(t)
	ctx := context.Background()

	blocker := filepath.Join(store.Root(), dataDir, "image", "blocked.jpg")
	require.NoError(t, os.MkdirAll(blocker, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocker, "child"), []byte("x"), 0o644))

	_, err := store.Put(ctx, "image/blocked.jpg", strings.NewReader("body"), PutOptions{ContentType: "image/jpeg"})
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(store.Root(), metaDir, "image", "blocked.jpg.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFilesystemStoreIgnoresMismatchedSidecar(t *testing.T) {
	store := newTestFilesystemStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "image/swap.jpg", strings.NewReader("short"), PutOptions{ContentType: "image/jpeg"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), dataDir, "image", "swap.jpg"), []byte("a longer body"), 0o644))

	obj, err := store.Get(ctx, "image/swap.jpg", nil)
	require.NoError(t, err)
	require.Empty(t, obj.ETag)
	require.Empty(t, obj.ContentType)
	require.Equal(t, int64(len("a longer body")), obj.Size)
	require.Equal(t, []byte("a longer body"), readAll(t, obj))
}

func TestFilesystemStoreDelete(t *testing.T) {
	store := newTestFilesystemStore(t)
	ctx := context.Background()

	for _, key := range []string{"image/1.jpg", "image/2.jpg", "video/3.mp4"} {
		_, err := store.Put(ctx, key, strings.NewReader(key), PutOptions{})
		require.NoError(t, err)
	}

	require.NoError(t, store.Delete(ctx, []string{"image/1.jpg", "video/3.mp4", "image/missing.jpg"}))
	require.NoError(t, store.Delete(ctx, nil))

	_, err := store.Get(ctx, "image/1.jpg", nil)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "video/3.mp4", nil)
	require.ErrorIs(t, err, ErrNotFound)

	obj, err := store.Get(ctx, "image/2.jpg", nil)
	require.NoError(t, err)
	require.Equal(t, "image/2.jpg", string(readAll(t, obj)))
}

func TestFilesystemStoreRejectsEscapingKeys(t *testing.T) {
	store := newTestFilesystemStore(t)
	ctx := context.Background()

	for _, key := range []string{"", "../etc/passwd", "image/../../x", "/abs", "image//a", `image\a`} {
		_, err := store.Get(ctx, key, nil)
		require.ErrorIs(t, err, ErrInvalidKey, key)
		_, err = store.Put(ctx, key, strings.NewReader("x"), PutOptions{})
		require.ErrorIs(t, err, ErrInvalidKey, key)
	}
	require.ErrorIs(t, store.Delete(ctx, []string{"../x"}), ErrInvalidKey)
}

func TestFilesystemStorePing(t *testing.T) {
	store := newTestFilesystemStore(t)
	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(store.Root()))
	require.Error(t, store.Ping(context.Background()))
}

func TestNewFilesystemStoreRequiresRoot(t *testing.T) {
	_, err := NewFilesystemStore(FilesystemConfig{})
	require.Error(t, err)
}
