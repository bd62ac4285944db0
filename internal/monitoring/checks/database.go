package checks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/mediacache/internal/models"
	"github.com/charlesng35/mediacache/internal/monitoring"
)

// Database probes the metadata store: the pool must answer a ping and the
// cache index table must exist, otherwise every miss would fail to commit.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}
		return monitoring.ResultFromError("database", probeIndex(ctx, db), time.Since(start))
	})
}

func probeIndex(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if !db.WithContext(ctx).Migrator().HasTable(&models.CacheEntry{}) {
		return fmt.Errorf("table %s missing", models.CacheEntry{}.TableName())
	}
	return nil
}
