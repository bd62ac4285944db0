package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/multierr"
)

// S3Config configures an S3-compatible store (R2, MinIO, AWS S3).
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	// Prefix namespaces every key inside the bucket.
	Prefix string
	// Client overrides the connection fields when set.
	Client *minio.Client
}

func (c *S3Config) validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if c.Client != nil {
		return nil
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required when client is not provided")
	}
	if c.AccessKey == "" {
		return errors.New("access key is required when client is not provided")
	}
	if c.SecretKey == "" {
		return errors.New("secret key is required when client is not provided")
	}
	return nil
}

// S3Store stores objects in an S3-compatible bucket.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Store validates cfg and builds the client.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("blob: invalid s3 config: %w", err)
	}

	client := cfg.Client
	if client == nil {
		var err error
		client, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("blob: create s3 client: %w", err)
		}
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/")
	if prefix == "" {
		return ""
	}
	return path.Clean(prefix) + "/"
}

func (s *S3Store) objectKey(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return s.prefix + key, nil
}

// Get stats the object, then opens a ranged reader when requested.
func (s *S3Store) Get(ctx context.Context, key string, rng *Range) (*Object, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}

	info, err := s.client.StatObject(ctx, s.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return nil, translateS3Error(err)
	}

	obj := &Object{
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, `"`),
		ContentType:  info.ContentType,
		CacheControl: info.Metadata.Get("Cache-Control"),
	}

	opts := minio.GetObjectOptions{}
	if rng != nil {
		span, err := rng.Resolve(info.Size)
		if err != nil {
			return nil, err
		}
		if err := opts.SetRange(span.Start, span.End); err != nil {
			return nil, fmt.Errorf("blob: set range for %q: %w", key, err)
		}
		obj.Span = &span
	}

	reader, err := s.client.GetObject(ctx, s.bucket, objectKey, opts)
	if err != nil {
		return nil, translateS3Error(err)
	}
	obj.Body = reader
	return obj, nil
}

// Put streams r with unknown length; the SDK switches to multipart as needed.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (PutResult, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return PutResult{}, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, objectKey, r, -1, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return PutResult{}, translateS3Error(err)
	}
	return PutResult{Size: info.Size, ETag: strings.Trim(info.ETag, `"`)}, nil
}

// Delete removes keys in one batch request.
func (s *S3Store) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectKey, err := s.objectKey(key)
		if err != nil {
			close(objectsCh)
			return err
		}
		objectsCh <- minio.ObjectInfo{Key: objectKey}
	}
	close(objectsCh)

	var errs error
	for result := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if result.Err == nil {
			continue
		}
		if errors.Is(translateS3Error(result.Err), ErrNotFound) {
			continue
		}
		errs = multierr.Append(errs, fmt.Errorf("blob: delete %q: %w", result.ObjectName, result.Err))
	}
	return errs
}

// Ping checks that the bucket exists.
func (s *S3Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("blob: bucket check: %w", err)
	}
	if !ok {
		return fmt.Errorf("blob: bucket %q does not exist", s.bucket)
	}
	return nil
}

func translateS3Error(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return ErrNotFound
	case "InvalidRange":
		return ErrRangeNotSatisfiable
	}
	return fmt.Errorf("blob: s3: %w", err)
}
