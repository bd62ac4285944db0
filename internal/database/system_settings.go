package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/mediacache/internal/models"
)

const settingKeyColumn = "setting_key"

var errNilDB = errors.New("runtime settings: db is nil")

// GetSystemSetting returns the stored value for key, or "" when unset.
func GetSystemSetting(ctx context.Context, db *gorm.DB, key string) (string, error) {
	values, err := GetSystemSettings(ctx, db, key)
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// GetSystemSettings loads the requested keys in one query. Unset keys are
// absent from the map.
func GetSystemSettings(ctx context.Context, db *gorm.DB, keys ...string) (map[string]string, error) {
	if db == nil {
		return nil, errNilDB
	}
	values := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	var rows []models.SystemSetting
	if err := db.WithContext(ctx).Where(settingKeyColumn+" IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("runtime settings: list: %w", err)
	}
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

// UpsertSystemSetting stores value under key, replacing any previous value.
func UpsertSystemSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	if db == nil {
		return errNilDB
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("runtime settings: key is required")
	}

	row := models.SystemSetting{Key: key, Value: value}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: settingKeyColumn}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("runtime settings: upsert %q: %w", key, err)
	}
	return nil
}
