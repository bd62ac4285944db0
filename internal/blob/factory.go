package blob

import (
	"fmt"
	"strings"
)

// Config selects and configures a Store implementation.
type Config struct {
	Driver     string
	Filesystem FilesystemConfig
	S3         S3Config
}

// New builds the Store named by cfg.Driver. An empty driver means filesystem.
func New(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "filesystem", "fs", "local":
		return NewFilesystemStore(cfg.Filesystem)
	case "s3", "r2", "minio":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("blob: unsupported driver %q", cfg.Driver)
	}
}
