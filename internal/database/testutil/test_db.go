package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/mediacache/internal/database"
)

// TestDBOption customises MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	autoMigrate bool
	rows        []any
}

// WithAutoMigrate applies the cache schema after opening.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
	}
}

// WithRows inserts rows (pointers to models) once the schema exists.
// It implies WithAutoMigrate.
func WithRows(rows ...any) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
		cfg.rows = append(cfg.rows, rows...)
	}
}

// MustOpenTestDB opens a private in-memory SQLite database closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var cfg testDBConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close(db)
	})

	if cfg.autoMigrate {
		require.NoError(t, database.AutoMigrate(db))
	}
	for _, row := range cfg.rows {
		require.NoError(t, db.Create(row).Error)
	}
	return db
}
