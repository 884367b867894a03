package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Mission types
const (
	MissionTypeDaily = "daily"
	MissionTypeSide  = "side"
	MissionTypeMain  = "main"
)

// Skill is a catalog axis XP can be attributed to (e.g. "Ventas & Outreach").
// Maintained by catalog tooling; read-only for the engine.
type Skill struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Slug        string `gorm:"uniqueIndex" json:"slug"`
	Description string `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (s *Skill) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Slug == "" {
		s.Slug = slug.Make(s.Name)
	}
	return nil
}

// Track is an optional thematic grouping. Missions with a nil TrackID are
// universal; others only apply to users on that track.
type Track struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Slug        string `gorm:"uniqueIndex" json:"slug"`
	Description string `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (t *Track) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Slug == "" {
		t.Slug = slug.Make(t.Name)
	}
	return nil
}

// Mission is an immutable-per-day catalog entry users can complete for XP.
type Mission struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string  `gorm:"not null" json:"title"`
	Slug        string  `gorm:"index" json:"slug"`
	Description string  `json:"description,omitempty"`
	Type        string  `gorm:"type:varchar(16);not null;index" json:"type"` // daily, side, main
	Difficulty  int     `gorm:"default:1" json:"difficulty"`                 // 1..4
	XPReward    int64   `gorm:"not null;default:0" json:"xp_reward"`
	SkillID     *string `gorm:"type:uuid;index" json:"skill_id,omitempty"`
	TrackID     *string `gorm:"type:uuid;index" json:"track_id,omitempty"` // nil = universal
	IsActive    bool    `gorm:"not null;index" json:"is_active"`

	Skill *Skill `gorm:"foreignKey:SkillID" json:"skill,omitempty"`
	Track *Track `gorm:"foreignKey:TrackID" json:"track,omitempty"`

	Timestamps
}

func (m *Mission) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Slug == "" {
		m.Slug = slug.Make(m.Title)
	}
	return nil
}
