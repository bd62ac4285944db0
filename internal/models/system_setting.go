package models

import "time"

// SystemSetting is one operator-editable runtime knob (size ceilings,
// clearance cookie, user agent, extra headers). Values are stored as text
// and parsed by their reader.
type SystemSetting struct {
	Key       string    `gorm:"column:setting_key;primaryKey;size:128" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name independent of gorm's naming strategy.
func (SystemSetting) TableName() string {
	return "runtime_settings"
}
