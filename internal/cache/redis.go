package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultRedisTimeout = 5 * time.Second
	redisKeyPrefix      = "mediacache:"
)

// RedisConfig captures the connection parameters for the Redis-backed store.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      bool
	Timeout  time.Duration
	// KeyPrefix namespaces every key so deployments can share one Redis.
	KeyPrefix string
}

// ErrNilClient is returned when a RedisStore is built without a client.
var ErrNilClient = errors.New("cache: redis client is nil")

// RedisStore implements Store on top of go-redis.
type RedisStore struct {
	rdb         goredis.UniversalClient
	prefix      string
	closeClient bool
}

// incrementScript increments the counter and starts the window on first use.
var incrementScript = goredis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("PTTL", KEYS[1])}
`)

// NewRedisStore dials Redis and verifies the connection so misconfiguration
// surfaces during startup.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("cache: redis address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}

	opts := &goredis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsConfig(cfg.Address)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	store, err := NewRedisStoreFromClient(client)
	if err != nil {
		return nil, err
	}
	store.closeClient = true
	if prefix := strings.TrimSpace(cfg.KeyPrefix); prefix != "" {
		store.prefix = strings.TrimSuffix(prefix, ":") + ":"
	}
	return store, nil
}

// NewRedisStoreFromClient wraps an existing client. The caller keeps ownership.
func NewRedisStoreFromClient(client goredis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &RedisStore{rdb: client, prefix: redisKeyPrefix}, nil
}

// Close releases the client when this store created it.
func (s *RedisStore) Close() error {
	if !s.closeClient {
		return nil
	}
	if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// IncrementWithTTL increments the key and starts its window on the first hit.
// It returns the current count and the remaining time-to-live.
func (s *RedisStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	res, err := incrementScript.Run(ctx, s.rdb, []string{s.prefixed(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, errors.New("cache: unexpected increment reply")
	}

	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	return res[0], ttl, nil
}

// Set stores value with the given ttl. A non-positive ttl never expires.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, s.prefixed(key), value, ttl).Err()
}

// Get retrieves the value for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefixed(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Delete removes keys from Redis.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.prefixed(key)
	}
	return s.rdb.Del(ctx, prefixed...).Err()
}

func (s *RedisStore) prefixed(key string) string {
	return s.prefix + key
}

func tlsConfig(address string) *tls.Config {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
}
