package models

// CacheEntry is the bookkeeping row for one object held in the blob store.
// Timestamps are epoch milliseconds.
type CacheEntry struct {
	Key          string   `gorm:"column:cache_key;primaryKey;size:512" json:"key"`
	Category     Category `gorm:"size:16;not null;index:idx_cache_entries_category_access,priority:1" json:"category"`
	Size         int64    `gorm:"not null" json:"size"`
	Validator    *string  `gorm:"size:256" json:"validator,omitempty"`
	ContentType  *string  `gorm:"size:256" json:"content_type,omitempty"`
	CreatedAt    int64    `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	LastAccessAt int64    `gorm:"column:last_access_at;not null;index;index:idx_cache_entries_category_access,priority:2" json:"last_access_at"`
}

// TableName pins the table name independent of gorm's naming strategy.
func (CacheEntry) TableName() string {
	return "cache_entries"
}

// ValidatorValue returns the validator or an empty string.
func (e CacheEntry) ValidatorValue() string {
	if e.Validator == nil {
		return ""
	}
	return *e.Validator
}

// ContentTypeValue returns the content type or an empty string.
func (e CacheEntry) ContentTypeValue() string {
	if e.ContentType == nil {
		return ""
	}
	return *e.ContentType
}

// OptionalString converts empty strings to nil for nullable columns.
func OptionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
