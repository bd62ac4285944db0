package models

import (
	"time"
)

// KVEntry is one short-lived value in the SQL fallback of the cooldown
// store. The key column is renamed because KEY is reserved in MySQL.
type KVEntry struct {
	Key       string    `gorm:"column:kv_key;primaryKey;size:256"`
	Value     []byte    `gorm:"type:blob"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name independent of gorm's naming strategy.
func (KVEntry) TableName() string {
	return "kv_entries"
}
