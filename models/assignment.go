package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Assignment statuses
const (
	AssignmentStatusAssigned  = "assigned"
	AssignmentStatusCompleted = "completed"
)

// Assignment puts a mission on a user's plate for one calendar day.
// AssignedOn carries the day component of AssignedAt; the composite unique
// index keeps the planner from double-assigning the same mission to the
// same user on the same day.
type Assignment struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string     `gorm:"type:uuid;not null;index;uniqueIndex:idx_assignment_per_day" json:"user_id"`
	MissionID  string     `gorm:"type:uuid;not null;uniqueIndex:idx_assignment_per_day" json:"mission_id"`
	Status     string     `gorm:"type:varchar(16);not null;default:'assigned';index" json:"status"`
	AssignedAt time.Time  `gorm:"not null" json:"assigned_at"`
	AssignedOn string     `gorm:"type:varchar(10);not null;index;uniqueIndex:idx_assignment_per_day" json:"assigned_on"` // YYYY-MM-DD
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Mission *Mission `gorm:"foreignKey:MissionID" json:"mission,omitempty"`
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Completion is the immutable audit record of a finished assignment.
// Never mutated after insert.
type Completion struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	MissionID   string    `gorm:"type:uuid;not null;index" json:"mission_id"`
	EvidenceURL *string   `json:"evidence_url,omitempty"`
	Reflection  *string   `gorm:"type:text" json:"reflection,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *Completion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
