// Package index persists cache entry bookkeeping rows. It carries no policy;
// callers decide when rows are written, touched or removed.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/mediacache/internal/models"
)

// ErrNotFound is returned by Get when no row exists for the key.
var ErrNotFound = errors.New("index: entry not found")

// deleteChunkSize bounds the size of IN (...) lists sent in one statement.
const deleteChunkSize = 500

// Sizes aggregates stored bytes per category.
type Sizes struct {
	Image int64 `json:"image"`
	Video int64 `json:"video"`
	Total int64 `json:"total"`
}

// OldestFilter narrows ListOldest. A zero Category matches all categories and
// a non-positive Before disables the age bound.
type OldestFilter struct {
	Category models.Category
	Before   int64
}

// Page is one slice of a List result.
type Page struct {
	Total int64               `json:"total"`
	Items []models.CacheEntry `json:"items"`
}

// Repository reads and writes cache_entries rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a Repository bound to db.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("index: db is required")
	}
	return &Repository{db: db}, nil
}

// Upsert inserts the entry or overwrites every non-key column of an existing row.
func (r *Repository) Upsert(ctx context.Context, entry models.CacheEntry) error {
	entry.Key = strings.TrimSpace(entry.Key)
	if entry.Key == "" {
		return errors.New("index: key is required")
	}
	if entry.Size < 0 {
		return fmt.Errorf("index: negative size %d for %q", entry.Size, entry.Key)
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			UpdateAll: true,
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("index: upsert %q: %w", entry.Key, err)
	}
	return nil
}

// Touch updates last_access_at only. A missing row is not an error.
func (r *Repository) Touch(ctx context.Context, key string, atMs int64) error {
	err := r.db.WithContext(ctx).
		Model(&models.CacheEntry{}).
		Where("cache_key = ?", key).
		UpdateColumn("last_access_at", atMs).Error
	if err != nil {
		return fmt.Errorf("index: touch %q: %w", key, err)
	}
	return nil
}

// Delete removes a single row. Deleting a missing row is a no-op.
func (r *Repository) Delete(ctx context.Context, key string) error {
	return r.DeleteMany(ctx, []string{key})
}

// DeleteMany removes every listed row.
func (r *Repository) DeleteMany(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(keys))
		chunk := keys[start:end]
		if err := r.db.WithContext(ctx).
			Where("cache_key IN ?", chunk).
			Delete(&models.CacheEntry{}).Error; err != nil {
			return fmt.Errorf("index: delete %d keys: %w", len(chunk), err)
		}
	}
	return nil
}

// Get loads the row for key or returns ErrNotFound.
func (r *Repository) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := r.db.WithContext(ctx).Take(&entry, "cache_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get %q: %w", key, err)
	}
	return &entry, nil
}

// TotalBytes sums stored bytes per category and overall.
func (r *Repository) TotalBytes(ctx context.Context) (Sizes, error) {
	var rows []struct {
		Category models.Category
		Bytes    int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.CacheEntry{}).
		Select("category, COALESCE(SUM(size), 0) AS bytes").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return Sizes{}, fmt.Errorf("index: total bytes: %w", err)
	}

	var sizes Sizes
	for _, row := range rows {
		switch row.Category {
		case models.CategoryImage:
			sizes.Image = row.Bytes
		case models.CategoryVideo:
			sizes.Video = row.Bytes
		}
		sizes.Total += row.Bytes
	}
	return sizes, nil
}

// BytesByCategory sums stored bytes for one category.
func (r *Repository) BytesByCategory(ctx context.Context, category models.Category) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CacheEntry{}).
		Where("category = ?", category).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("index: bytes for %s: %w", category, err)
	}
	return total, nil
}

// List returns the total row count and one page ordered by most recent access.
func (r *Repository) List(ctx context.Context, category models.Category, limit, offset int) (Page, error) {
	query := r.db.WithContext(ctx).Model(&models.CacheEntry{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var page Page
	if err := query.Count(&page.Total).Error; err != nil {
		return Page{}, fmt.Errorf("index: count: %w", err)
	}
	if limit <= 0 || page.Total == 0 {
		page.Items = []models.CacheEntry{}
		return page, nil
	}
	if offset < 0 {
		offset = 0
	}

	if err := query.
		Order("last_access_at DESC").
		Order("cache_key ASC").
		Limit(limit).
		Offset(offset).
		Find(&page.Items).Error; err != nil {
		return Page{}, fmt.Errorf("index: list: %w", err)
	}
	return page, nil
}

// ListOldest returns up to limit rows ordered by least recent access.
func (r *Repository) ListOldest(ctx context.Context, filter OldestFilter, limit int) ([]models.CacheEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := r.db.WithContext(ctx).Model(&models.CacheEntry{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Before > 0 {
		query = query.Where("last_access_at < ?", filter.Before)
	}

	var entries []models.CacheEntry
	if err := query.
		Order("last_access_at ASC").
		Order("cache_key ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("index: list oldest: %w", err)
	}
	return entries, nil
}
