package blob

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	dataDir            = "data"
	metaDir            = "meta"
	defaultDeleteLimit = 8
)

// FilesystemConfig configures a FilesystemStore.
type FilesystemConfig struct {
	Root        string
	DeleteLimit int
}

// FilesystemStore keeps objects under Root/data and a JSON metadata sidecar
// under Root/meta. Writes land in a temp file that is renamed into place.
type FilesystemStore struct {
	root        string
	deleteLimit int
}

type objectMeta struct {
	ETag         string `json:"etag"`
	ContentType  string `json:"content_type,omitempty"`
	CacheControl string `json:"cache_control,omitempty"`
	Size         int64  `json:"size"`
}

// NewFilesystemStore creates the root layout if needed.
func NewFilesystemStore(cfg FilesystemConfig) (*FilesystemStore, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, errors.New("blob: filesystem root is required")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blob: resolve root: %w", err)
	}
	for _, dir := range []string{dataDir, metaDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("blob: create %s dir: %w", dir, err)
		}
	}

	limit := cfg.DeleteLimit
	if limit <= 0 {
		limit = defaultDeleteLimit
	}
	return &FilesystemStore{root: root, deleteLimit: limit}, nil
}

// Root returns the absolute store directory.
func (s *FilesystemStore) Root() string {
	return s.root
}

func (s *FilesystemStore) paths(key string) (string, string, error) {
	if err := validateKey(key); err != nil {
		return "", "", err
	}
	rel := filepath.FromSlash(key)
	return filepath.Join(s.root, dataDir, rel), filepath.Join(s.root, metaDir, rel+".json"), nil
}

// Get opens the stored object, seeking to the requested range.
func (s *FilesystemStore) Get(ctx context.Context, key string, rng *Range) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blob: open %q: %w", key, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("blob: stat %q: %w", key, err)
	}

	meta := readMeta(metaPath)
	if meta.Size != info.Size() {
		// Sidecar from another write; serve the bytes without it.
		meta = objectMeta{}
	}
	obj := &Object{
		Body:         file,
		Size:         info.Size(),
		ETag:         meta.ETag,
		ContentType:  meta.ContentType,
		CacheControl: meta.CacheControl,
	}

	if rng == nil {
		return obj, nil
	}

	span, err := rng.Resolve(obj.Size)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if _, err := file.Seek(span.Start, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("blob: seek %q: %w", key, err)
	}
	obj.Span = &span
	obj.Body = &limitedFile{Reader: io.LimitReader(file, span.Length), file: file}
	return obj, nil
}

// Put streams r into a temp file, renames it into place, then writes its
// metadata sidecar.
func (s *FilesystemStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (PutResult, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return PutResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return PutResult{}, fmt.Errorf("blob: create dir for %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), "."+uuid.NewString()+"-*.tmp")
	if err != nil {
		return PutResult{}, fmt.Errorf("blob: create temp for %q: %w", key, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	hash := md5.New()
	size, copyErr := io.Copy(io.MultiWriter(tmp, hash), &contextReader{ctx: ctx, r: r})
	closeErr := tmp.Close()
	if copyErr != nil {
		return PutResult{}, fmt.Errorf("blob: write %q: %w", key, copyErr)
	}
	if closeErr != nil {
		return PutResult{}, fmt.Errorf("blob: close temp for %q: %w", key, closeErr)
	}

	meta := objectMeta{
		ETag:         hex.EncodeToString(hash.Sum(nil)),
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		Size:         size,
	}
	if err := os.Rename(tmpName, dataPath); err != nil {
		return PutResult{}, fmt.Errorf("blob: commit %q: %w", key, err)
	}
	committed = true
	if err := writeMeta(metaPath, meta); err != nil {
		// The previous sidecar describes bytes that are gone.
		_ = os.Remove(dataPath)
		_ = os.Remove(metaPath)
		return PutResult{}, fmt.Errorf("blob: write metadata for %q: %w", key, err)
	}

	return PutResult{Size: size, ETag: meta.ETag}, nil
}

// Delete removes objects concurrently. Missing objects are ignored.
func (s *FilesystemStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.deleteLimit)
	for _, key := range keys {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dataPath, metaPath, err := s.paths(key)
			if err != nil {
				return err
			}
			for _, path := range []string{dataPath, metaPath} {
				if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("blob: delete %q: %w", key, err)
				}
			}
			return nil
		})
	}
	return group.Wait()
}

// Ping verifies the root directory is still present.
func (s *FilesystemStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Join(s.root, dataDir))
	if err != nil {
		return fmt.Errorf("blob: stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("blob: %s is not a directory", s.root)
	}
	return nil
}

func readMeta(path string) objectMeta {
	var meta objectMeta
	raw, err := os.ReadFile(path)
	if err != nil {
		return meta
	}
	_ = json.Unmarshal(raw, &meta)
	return meta
}

func writeMeta(path string, meta objectMeta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

type limitedFile struct {
	io.Reader
	file *os.File
}

func (l *limitedFile) Close() error {
	return l.file.Close()
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
