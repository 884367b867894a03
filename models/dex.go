package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Unlock rule types
const (
	UnlockRuleLevel  = "level"
	UnlockRuleStreak = "streak"
)

// UnlockRule gates a DexCard behind a progression threshold.
type UnlockRule struct {
	Type  string `json:"type"` // level, streak
	Value int    `json:"value"`
}

// DexCard is unlockable reward content (guides, resources, tools).
type DexCard struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description,omitempty"`
	UnlockRule  UnlockRule `gorm:"serializer:json;type:jsonb" json:"unlock_rule"`
	IsActive    bool       `gorm:"not null;index" json:"is_active"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (d *DexCard) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// UserDexUnlock records a granted card. Unlocks are permanent; the unique
// index makes re-grants a no-op rather than a duplicate.
type UserDexUnlock struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_dex_card" json:"user_id"`
	DexCardID string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_dex_card" json:"dex_card_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (u *UserDexUnlock) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
