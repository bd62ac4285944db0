package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Origin token states.
const (
	TokenStatusActive   = "active"
	TokenStatusDisabled = "disabled"
)

// OriginToken is a credential used to authenticate requests to the media origin.
type OriginToken struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	Token             string     `gorm:"uniqueIndex;size:1024;not null" json:"-"`
	Label             string     `gorm:"size:128" json:"label"`
	Status            string     `gorm:"size:16;not null;default:active;index" json:"status"`
	FailureCount      int64      `gorm:"not null;default:0" json:"failure_count"`
	LastFailureStatus int        `json:"last_failure_status,omitempty"`
	LastFailureDetail string     `gorm:"size:256" json:"last_failure_detail,omitempty"`
	LastFailureAt     *time.Time `json:"last_failure_at,omitempty"`
	LastUsedAt        *time.Time `gorm:"index" json:"last_used_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// BeforeCreate ensures UUID identifiers are generated automatically.
func (t *OriginToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
