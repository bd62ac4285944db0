package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/mediacache/pkg/validator"
)

// Config represents the runtime configuration for the media cache.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Blob       BlobConfig       `mapstructure:"blob"`
	Origin     OriginConfig     `mapstructure:"origin"`
	Eviction   EvictionConfig   `mapstructure:"eviction"`
	Settings   SettingsConfig   `mapstructure:"settings"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format" validate:"omitempty,oneof=json console"`
	AdminToken        string        `mapstructure:"admin_token"`
	BackgroundTimeout time.Duration `mapstructure:"background_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver" validate:"oneof=sqlite postgres postgresql mysql"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes the cooldown store backend.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Address   string        `mapstructure:"address" validate:"required_if=Enabled true"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db" validate:"gte=0"`
	TLS       bool          `mapstructure:"tls"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// BlobConfig selects the object store.
type BlobConfig struct {
	Driver     string               `mapstructure:"driver" validate:"oneof=filesystem fs local s3 r2 minio"`
	Filesystem FilesystemBlobConfig `mapstructure:"filesystem"`
	S3         S3BlobConfig         `mapstructure:"s3"`
}

// FilesystemBlobConfig configures the local object store.
type FilesystemBlobConfig struct {
	Root        string `mapstructure:"root"`
	DeleteLimit int    `mapstructure:"delete_limit" validate:"gte=0"`
}

// S3BlobConfig configures an S3 compatible bucket such as R2 or MinIO.
type S3BlobConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

// OriginConfig configures the upstream media origin and its credentials.
type OriginConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"omitempty,url"`
	Referer           string        `mapstructure:"referer"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gte=0"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout" validate:"gte=0"`
	Tokens            []string      `mapstructure:"tokens"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	RateLimitCooldown time.Duration `mapstructure:"rate_limit_cooldown"`
	AuthCooldown      time.Duration `mapstructure:"auth_cooldown"`
	MaxFailures       int64         `mapstructure:"max_failures" validate:"gte=0"`
	FailureWindow     time.Duration `mapstructure:"failure_window"`
}

// EvictionConfig keeps TTL days and batch size as raw strings; invalid
// values fall back rather than failing startup.
type EvictionConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Schedule  string `mapstructure:"schedule"`
	TTLDays   string `mapstructure:"ttl_days"`
	BatchSize string `mapstructure:"batch_size"`
}

// SettingsConfig provides defaults for runtime settings that are not yet
// stored in the database.
type SettingsConfig struct {
	ImageMaxSizeMB  float64           `mapstructure:"image_max_size_mb" validate:"gte=0"`
	VideoMaxSizeMB  float64           `mapstructure:"video_max_size_mb" validate:"gte=0"`
	CFClearance     string            `mapstructure:"cf_clearance"`
	UserAgent       string            `mapstructure:"user_agent"`
	ExtraHeaders    map[string]string `mapstructure:"extra_headers"`
	RefreshInterval time.Duration     `mapstructure:"refresh_interval"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// MaintenanceMaxAge marks readiness degraded when eviction has not
	// succeeded for this long. Zero disables the check.
	MaintenanceMaxAge time.Duration `mapstructure:"maintenance_max_age"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	return load(v)
}

// LoadConfigFile reads an explicit configuration file.
func LoadConfigFile(file string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigFile(file)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("MEDIACACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	config.Origin.Tokens = cleanTokens(config.Origin.Tokens)

	if err := validator.ValidateStruct(config); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.background_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/mediacache.sqlite")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.key_prefix", "mediacache:")

	v.SetDefault("blob.driver", "filesystem")
	v.SetDefault("blob.filesystem.root", "./data/blobs")
	v.SetDefault("blob.filesystem.delete_limit", 8)
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.access_key", "")
	v.SetDefault("blob.s3.secret_key", "")
	v.SetDefault("blob.s3.region", "auto")
	v.SetDefault("blob.s3.use_ssl", true)
	v.SetDefault("blob.s3.prefix", "")

	v.SetDefault("origin.base_url", "https://assets.grok.com")
	v.SetDefault("origin.referer", "https://grok.com/")
	v.SetDefault("origin.timeout", "30s")
	v.SetDefault("origin.fetch_timeout", "10m")
	v.SetDefault("origin.tokens", []string{})
	v.SetDefault("origin.cooldown", "30s")
	v.SetDefault("origin.rate_limit_cooldown", "5m")
	v.SetDefault("origin.auth_cooldown", "30m")
	v.SetDefault("origin.max_failures", 5)
	v.SetDefault("origin.failure_window", "10m")

	v.SetDefault("eviction.enabled", true)
	v.SetDefault("eviction.schedule", "@every 15m")
	v.SetDefault("eviction.ttl_days", "7")
	v.SetDefault("eviction.batch_size", "200")

	v.SetDefault("settings.image_max_size_mb", 0)
	v.SetDefault("settings.video_max_size_mb", 0)
	v.SetDefault("settings.cf_clearance", "")
	v.SetDefault("settings.user_agent", "")
	v.SetDefault("settings.refresh_interval", "30s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.maintenance_max_age", "0s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func cleanTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token = strings.TrimSpace(token); token != "" {
			out = append(out, token)
		}
	}
	return out
}
