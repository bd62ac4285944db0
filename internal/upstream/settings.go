package upstream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"gorm.io/gorm"

	"github.com/charlesng35/mediacache/internal/database"
	"github.com/charlesng35/mediacache/internal/models"
)

// System setting keys.
const (
	SettingImageMaxSizeMB = "cache.image_max_size_mb"
	SettingVideoMaxSizeMB = "cache.video_max_size_mb"
	SettingCFClearance    = "origin.cf_clearance"
	SettingUserAgent      = "origin.user_agent"
)

const snapshotKey = "settings"

// Settings is the bundle consulted on every origin request and eviction run.
type Settings struct {
	ImageMaxSizeMB float64           `json:"image_cache_max_size_mb"`
	VideoMaxSizeMB float64           `json:"video_cache_max_size_mb"`
	CFClearance    string            `json:"cf_clearance"`
	UserAgent      string            `json:"user_agent"`
	ExtraHeaders   map[string]string `json:"extra_headers,omitempty"`
}

// CapacityMB returns the configured ceiling for category in megabytes.
func (s Settings) CapacityMB(category models.Category) float64 {
	switch category {
	case models.CategoryImage:
		return s.ImageMaxSizeMB
	case models.CategoryVideo:
		return s.VideoMaxSizeMB
	default:
		return 0
	}
}

// SettingsProvider returns the current settings bundle.
type SettingsProvider interface {
	Settings(ctx context.Context) (Settings, error)
}

// SettingsPatch carries optional updates. Nil fields are left unchanged.
type SettingsPatch struct {
	ImageMaxSizeMB *float64 `json:"image_cache_max_size_mb" validate:"omitempty,gte=0"`
	VideoMaxSizeMB *float64 `json:"video_cache_max_size_mb" validate:"omitempty,gte=0"`
	CFClearance    *string  `json:"cf_clearance" validate:"omitempty,max=4096"`
	UserAgent      *string  `json:"user_agent" validate:"omitempty,max=512"`
}

// DatabaseSettings reads overrides from runtime_settings on top of defaults
// and caches the merged snapshot for RefreshInterval.
type DatabaseSettings struct {
	db       *gorm.DB
	defaults Settings
	refresh  time.Duration
	cache    *ristretto.Cache
}

// NewDatabaseSettings builds a provider. A non-positive refresh disables caching.
func NewDatabaseSettings(db *gorm.DB, defaults Settings, refresh time.Duration) (*DatabaseSettings, error) {
	if db == nil {
		return nil, errors.New("upstream: db is required")
	}
	snapshots, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100,
		MaxCost:     10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: settings cache: %w", err)
	}
	defaults.CFClearance = NormalizeClearance(defaults.CFClearance)
	return &DatabaseSettings{db: db, defaults: defaults, refresh: refresh, cache: snapshots}, nil
}

// Close releases the snapshot cache.
func (s *DatabaseSettings) Close() {
	s.cache.Close()
}

// Settings returns the merged settings bundle.
func (s *DatabaseSettings) Settings(ctx context.Context) (Settings, error) {
	if cached, ok := s.cache.Get(snapshotKey); ok {
		if snapshot, ok := cached.(Settings); ok {
			return snapshot, nil
		}
	}

	values, err := database.GetSystemSettings(ctx, s.db,
		SettingImageMaxSizeMB, SettingVideoMaxSizeMB, SettingCFClearance, SettingUserAgent)
	if err != nil {
		return Settings{}, err
	}

	merged := s.defaults
	if len(s.defaults.ExtraHeaders) > 0 {
		merged.ExtraHeaders = make(map[string]string, len(s.defaults.ExtraHeaders))
		for k, v := range s.defaults.ExtraHeaders {
			merged.ExtraHeaders[k] = v
		}
	}
	if mb, ok := parseMB(values[SettingImageMaxSizeMB]); ok {
		merged.ImageMaxSizeMB = mb
	}
	if mb, ok := parseMB(values[SettingVideoMaxSizeMB]); ok {
		merged.VideoMaxSizeMB = mb
	}
	if v, ok := values[SettingCFClearance]; ok {
		merged.CFClearance = NormalizeClearance(v)
	}
	if v := strings.TrimSpace(values[SettingUserAgent]); v != "" {
		merged.UserAgent = v
	}

	if s.refresh > 0 {
		s.cache.SetWithTTL(snapshotKey, merged, 1, s.refresh)
		s.cache.Wait()
	}
	return merged, nil
}

// CapacityMB returns the ceiling for category from the current snapshot.
func (s *DatabaseSettings) CapacityMB(ctx context.Context, category models.Category) (float64, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return 0, err
	}
	return settings.CapacityMB(category), nil
}

// Update persists the patch and drops the cached snapshot.
func (s *DatabaseSettings) Update(ctx context.Context, patch SettingsPatch) (Settings, error) {
	updates := map[string]string{}
	if patch.ImageMaxSizeMB != nil {
		updates[SettingImageMaxSizeMB] = formatMB(*patch.ImageMaxSizeMB)
	}
	if patch.VideoMaxSizeMB != nil {
		updates[SettingVideoMaxSizeMB] = formatMB(*patch.VideoMaxSizeMB)
	}
	if patch.CFClearance != nil {
		updates[SettingCFClearance] = NormalizeClearance(*patch.CFClearance)
	}
	if patch.UserAgent != nil {
		updates[SettingUserAgent] = strings.TrimSpace(*patch.UserAgent)
	}

	for key, value := range updates {
		if err := database.UpsertSystemSetting(ctx, s.db, key, value); err != nil {
			return Settings{}, err
		}
	}

	s.cache.Del(snapshotKey)
	s.cache.Wait()
	return s.Settings(ctx)
}

func parseMB(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	mb, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(mb) {
		return 0, false
	}
	return mb, true
}

func formatMB(mb float64) string {
	return strconv.FormatFloat(mb, 'f', -1, 64)
}

// NormalizeClearance turns a bare clearance value into a cookie fragment.
func NormalizeClearance(raw string) string {
	value := strings.Trim(strings.TrimSpace(raw), "; ")
	if value == "" {
		return ""
	}
	if strings.Contains(value, "=") {
		return value
	}
	return "cf_clearance=" + value
}
