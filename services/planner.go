package services

import (
	"errors"
	"math/rand"

	"lifequest-engine/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanPolicy defines how many missions land on a user's plate per day
// (tunable via config/env later)
type PlanPolicy struct {
	TimeThresholdMinutes int
	QuotaHigh            int
	QuotaLow             int
}

var DefaultPlanPolicy = PlanPolicy{
	TimeThresholdMinutes: 60,
	QuotaHigh:            3,
	QuotaLow:             2,
}

// QuotaFor maps a user's daily time budget to a target quota, never below 1.
func (p PlanPolicy) QuotaFor(timeDaily int) int {
	quota := p.QuotaLow
	if timeDaily >= p.TimeThresholdMinutes {
		quota = p.QuotaHigh
	}
	if quota < 1 {
		quota = 1
	}
	return quota
}

// ActiveForTrack scopes the mission catalog to active entries a user on the
// given track may receive. Missions with a nil track are universal.
func ActiveForTrack(trackID *string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("is_active = ?", true)
		if trackID != nil {
			return db.Where("track_id IS NULL OR track_id = ?", *trackID)
		}
		return db.Where("track_id IS NULL")
	}
}

type PlannerService struct {
	DB     *gorm.DB
	Clock  clockwork.Clock
	Policy PlanPolicy
	Rand   *rand.Rand
}

func NewPlannerService(db *gorm.DB, clock clockwork.Clock) *PlannerService {
	return &PlannerService{
		DB:     db,
		Clock:  clock,
		Policy: DefaultPlanPolicy,
		Rand:   rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// PlanResult reports what a generate call did.
type PlanResult struct {
	AssignedCount int                 `json:"assigned_count"`
	NoCandidates  bool                `json:"no_candidates"`
	Assignments   []models.Assignment `json:"assignments"`
}

// GeneratePlan assigns today's missions to the user, up to the quota derived
// from their daily time budget. Non-force calls are idempotent: once the
// quota is met for today (any status), repeat calls are a no-op. Force first
// clears today's still-assigned rows; completed work is never clawed back.
//
// Zero eligible candidates is a degenerate success, not an error.
func (s *PlannerService) GeneratePlan(userID string, force bool) (*PlanResult, error) {
	if userID == "" {
		return nil, ValidationError("user id is required")
	}

	now := s.Clock.Now()
	today := dayKey(now)
	result := &PlanResult{}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if force {
			if err := tx.Where("user_id = ? AND assigned_on = ? AND status = ?",
				userID, today, models.AssignmentStatusAssigned).
				Delete(&models.Assignment{}).Error; err != nil {
				return StoreError("failed to clear today's open assignments", err)
			}
		}

		var existing []models.Assignment
		if err := tx.Where("user_id = ? AND assigned_on = ?", userID, today).
			Find(&existing).Error; err != nil {
			return StoreError("failed to load today's assignments", err)
		}

		profile := s.loadProfile(tx, userID)
		quota := s.Policy.QuotaFor(profile.TimeDaily)

		slots := quota - len(existing)
		if slots <= 0 {
			result.Assignments = existing
			return nil
		}

		assignedIDs := make(map[string]bool, len(existing))
		for _, a := range existing {
			assignedIDs[a.MissionID] = true
		}

		var candidates []models.Mission
		if err := tx.Scopes(ActiveForTrack(profile.TrackID)).
			Find(&candidates).Error; err != nil {
			return StoreError("failed to load mission catalog", err)
		}

		// One-off missions a user already finished never come back; dailies
		// are repeatable by nature.
		completedIDs, err := s.completedMissionIDs(tx, userID)
		if err != nil {
			return err
		}

		var dailies, others []models.Mission
		for _, m := range candidates {
			if assignedIDs[m.ID] {
				continue
			}
			if m.Type == models.MissionTypeDaily {
				dailies = append(dailies, m)
			} else if !completedIDs[m.ID] {
				others = append(others, m)
			}
		}

		if len(dailies) == 0 && len(others) == 0 {
			result.NoCandidates = true
			result.Assignments = existing
			return nil
		}

		var picked []models.Mission
		if slots > 0 && len(dailies) > 0 {
			picked = append(picked, dailies[s.Rand.Intn(len(dailies))])
			slots--
		}
		s.Rand.Shuffle(len(others), func(i, j int) {
			others[i], others[j] = others[j], others[i]
		})
		if slots > len(others) {
			slots = len(others)
		}
		picked = append(picked, others[:slots]...)

		if len(picked) == 0 {
			result.Assignments = existing
			return nil
		}

		assignments := make([]models.Assignment, 0, len(picked))
		for _, m := range picked {
			assignments = append(assignments, models.Assignment{
				UserID:     userID,
				MissionID:  m.ID,
				Status:     models.AssignmentStatusAssigned,
				AssignedAt: now,
				AssignedOn: today,
			})
		}

		// Single batch; the per-day unique index absorbs a concurrent
		// generate racing us.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&assignments)
		if res.Error != nil {
			return StoreError("failed to insert assignments", res.Error)
		}
		result.AssignedCount = int(res.RowsAffected)

		// Re-read rather than trust the in-memory batch: a concurrent
		// generate may have won some rows, and DoNothing skips those
		// silently.
		var persisted []models.Assignment
		if err := tx.Where("user_id = ? AND assigned_on = ?", userID, today).
			Order("assigned_at ASC, id ASC").
			Find(&persisted).Error; err != nil {
			return StoreError("failed to reload today's assignments", err)
		}
		result.Assignments = persisted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TodayPlan returns the user's assignments for the current day with mission
// details attached.
func (s *PlannerService) TodayPlan(userID string) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := s.DB.Where("user_id = ? AND assigned_on = ?", userID, dayKey(s.Clock.Now())).
		Preload("Mission").
		Preload("Mission.Skill").
		Order("assigned_at ASC, id ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, StoreError("failed to load today's plan", err)
	}
	return assignments, nil
}

// CatalogForUser lists the active missions the caller can receive, track
// filter applied, skill and track names attached for display.
func (s *PlannerService) CatalogForUser(userID string) ([]models.Mission, error) {
	profile := s.loadProfile(s.DB, userID)
	var missions []models.Mission
	err := s.DB.Scopes(ActiveForTrack(profile.TrackID)).
		Preload("Skill").
		Preload("Track").
		Order("type ASC, difficulty ASC").
		Find(&missions).Error
	if err != nil {
		return nil, StoreError("failed to load mission catalog", err)
	}
	return missions, nil
}

// loadProfile returns the synced profile, or planner defaults when the
// mirror has no row yet for this user.
func (s *PlannerService) loadProfile(tx *gorm.DB, userID string) models.UserProfile {
	var profile models.UserProfile
	err := tx.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserProfile{UserID: userID, TimeDaily: 30}
	}
	if err != nil {
		return models.UserProfile{UserID: userID, TimeDaily: 30}
	}
	return profile
}

func (s *PlannerService) completedMissionIDs(tx *gorm.DB, userID string) (map[string]bool, error) {
	var ids []string
	if err := tx.Model(&models.Completion{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("mission_id", &ids).Error; err != nil {
		return nil, StoreError("failed to load completion history", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
