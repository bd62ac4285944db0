package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Pool defaults for server databases. Touch updates arrive concurrently
// with every cache hit, so the pool is kept warm.
const (
	defaultMaxOpenConns    = 20
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return openPooled(postgres.Open(dsn), cfg)
}

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return openPooled(mysql.Open(dsn), cfg)
}

func openPooled(dialector gorm.Dialector, cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(min(defaultMaxIdleConns, maxOpen))

	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = defaultConnMaxLifetime
	}
	sqlDB.SetConnMaxLifetime(lifetime)
	return db, nil
}

type endpoint struct {
	host string
	port int
}

func (c Config) endpoint(host string, port int) (endpoint, error) {
	if c.User == "" || c.Name == "" {
		return endpoint{}, errors.New("requires user and database name")
	}
	ep := endpoint{host: c.Host, port: c.Port}
	if ep.host == "" {
		ep.host = host
	}
	if ep.port == 0 {
		ep.port = port
	}
	return ep, nil
}

// mergeOptions overlays caller options on driver defaults and renders them
// as key=value pairs in key order so DSNs are stable.
func mergeOptions(defaults, overrides map[string]string) []string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+merged[key])
	}
	return pairs
}

func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	ep, err := cfg.endpoint("localhost", 5432)
	if err != nil {
		return "", fmt.Errorf("postgres configuration %w", err)
	}

	params := []string{
		fmt.Sprintf("host=%s", ep.host),
		fmt.Sprintf("port=%d", ep.port),
		fmt.Sprintf("user=%s", cfg.User),
		fmt.Sprintf("dbname=%s", cfg.Name),
	}
	if cfg.Password != "" {
		params = append(params, fmt.Sprintf("password=%s", cfg.Password))
	}
	params = append(params, mergeOptions(map[string]string{
		"application_name": "mediacache",
		"sslmode":          "disable",
	}, cfg.Options)...)
	return strings.Join(params, " "), nil
}

func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	ep, err := cfg.endpoint("127.0.0.1", 3306)
	if err != nil {
		return "", fmt.Errorf("mysql configuration %w", err)
	}

	user := cfg.User
	if cfg.Password != "" {
		user = cfg.User + ":" + cfg.Password
	}
	// Row timestamps are epoch milliseconds; loc only affects gorm's own
	// created/updated columns.
	opts := mergeOptions(map[string]string{
		"charset":   "utf8mb4",
		"parseTime": "True",
		"loc":       "UTC",
	}, cfg.Options)
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s", user, ep.host, ep.port, cfg.Name, strings.Join(opts, "&")), nil
}
