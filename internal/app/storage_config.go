package app

import (
	"strings"

	"github.com/charlesng35/mediacache/internal/blob"
	"github.com/charlesng35/mediacache/internal/cache"
	"github.com/charlesng35/mediacache/internal/database"
)

// ConnectionConfig converts the database section into database.Config.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   c.Path,
		DSN:    c.DSN,
	}

	var auth DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		auth = c.Postgres
	case "mysql":
		auth = c.MySQL
	}
	if auth.Enabled {
		cfg.Host = auth.Host
		cfg.Port = auth.Port
		cfg.Name = auth.Database
		cfg.User = auth.Username
		cfg.Password = auth.Password
	}
	return cfg
}

// StoreConfig converts the blob section into blob.Config.
func (c BlobConfig) StoreConfig() blob.Config {
	return blob.Config{
		Driver: c.Driver,
		Filesystem: blob.FilesystemConfig{
			Root:        c.Filesystem.Root,
			DeleteLimit: c.Filesystem.DeleteLimit,
		},
		S3: blob.S3Config{
			Endpoint:  strings.TrimSpace(c.S3.Endpoint),
			Bucket:    strings.TrimSpace(c.S3.Bucket),
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
			Region:    c.S3.Region,
			UseSSL:    c.S3.UseSSL,
			Prefix:    c.S3.Prefix,
		},
	}
}

// RedisClientConfig converts the cooldown store section into cache.RedisConfig.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	r := c.Redis
	return cache.RedisConfig{
		Address:   strings.TrimSpace(r.Address),
		Username:  strings.TrimSpace(r.Username),
		Password:  r.Password,
		DB:        r.DB,
		TLS:       r.TLS,
		Timeout:   r.Timeout,
		KeyPrefix: r.KeyPrefix,
	}
}
