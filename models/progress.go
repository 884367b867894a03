package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// XP event source types
const (
	XPSourceCompletion = "completion"
	XPSourceAdminGrant = "admin_grant"
)

// XPEvent is an immutable ledger entry. The ledger is the source of truth
// for XP; UserStats.XPTotal is a cached rollup that must always equal the
// sum of a user's events (the reconciler repairs drift).
type XPEvent struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string    `gorm:"type:uuid;not null;index" json:"user_id"`
	SourceType string    `gorm:"type:varchar(32);not null" json:"source_type"`
	SourceID   *string   `gorm:"type:uuid" json:"source_id,omitempty"` // mission id for completions
	XP         int64     `gorm:"not null" json:"xp"`
	SkillID    *string   `gorm:"type:uuid;index" json:"skill_id,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (e *XPEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// UserStats tracks gamified progression for each user (denormalized for performance).
// Mutated only by the progression service. Version backs the optimistic
// concurrency check on the read-modify-write of the whole row.
type UserStats struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	XPTotal       int64 `json:"xp_total" gorm:"default:0"`
	Level         int   `json:"level" gorm:"default:1"`
	StreakCurrent int   `json:"streak_current" gorm:"default:0"`
	StreakBest    int   `json:"streak_best" gorm:"default:0"`

	LastDailyCompletedAt *time.Time `json:"last_daily_completed_at,omitempty"`
	LastActiveAt         *time.Time `json:"last_active_at,omitempty"`
	LastLevelUpAt        *time.Time `json:"last_level_up_at,omitempty"`

	Version int64 `json:"-" gorm:"default:0"`

	Timestamps
}

func (s *UserStats) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// UserProfile is a local snapshot of the account service's profile fields
// the planner needs (track choice, daily time budget). Populated by the
// profile sync worker; read-only for the engine itself.
type UserProfile struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	DisplayName string  `json:"display_name,omitempty"`
	TrackID     *string `gorm:"type:uuid;index" json:"track_id,omitempty"`
	TimeDaily   int     `gorm:"default:30" json:"time_daily"` // minutes per day

	Timestamps
}

func (p *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
