package services

import (
	"errors"
	"log"
	"unicode/utf8"

	"lifequest-engine/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Bonus rules: both bonuses are floors of the base reward, so stacking
// order does not matter.
const (
	ReflectionBonusRate = 0.10
	EvidenceBonusRate   = 0.15
	MinReflectionRunes  = 10
)

// ScoreXP computes the XP for a completion: base reward plus independent,
// stacking bonuses for a written reflection and an evidence link.
func ScoreXP(base int64, evidenceURL, reflection *string) int64 {
	total := base
	if reflection != nil && utf8.RuneCountInString(*reflection) >= MinReflectionRunes {
		total += int64(float64(base) * ReflectionBonusRate)
	}
	if evidenceURL != nil && *evidenceURL != "" {
		total += int64(float64(base) * EvidenceBonusRate)
	}
	return total
}

type ScorerService struct {
	DB          *gorm.DB
	Clock       clockwork.Clock
	Progression *ProgressionService
	Dex         *DexService
}

func NewScorerService(db *gorm.DB, clock clockwork.Clock, progression *ProgressionService, dex *DexService) *ScorerService {
	return &ScorerService{DB: db, Clock: clock, Progression: progression, Dex: dex}
}

// CompletionResult is the summary returned to the caller after scoring.
type CompletionResult struct {
	XPGained   int64 `json:"xp_gained"`
	NewLevel   int   `json:"new_level"`
	LevelUp    bool  `json:"level_up"`
	NewStreak  int   `json:"new_streak"`
	NewUnlocks int   `json:"new_unlocks"`
}

// CompleteMission scores a mission completion atomically: flips the
// assignment (compare-and-swap on status so two racing calls cannot both
// win), records the completion and its XP ledger entry, folds the delta
// into the user's stats, and evaluates unlock rules against the new state.
// Everything runs in one transaction; a failure at any step leaves no
// visible state behind.
func (s *ScorerService) CompleteMission(userID, assignmentID string, evidenceURL, reflection *string) (*CompletionResult, error) {
	if assignmentID == "" {
		return nil, ValidationError("assignment_id is required")
	}

	result := &CompletionResult{}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var assignment models.Assignment
		err := tx.Preload("Mission").
			Where("id = ? AND user_id = ?", assignmentID, userID).
			First(&assignment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError("assignment not found")
		}
		if err != nil {
			return StoreError("failed to load assignment", err)
		}
		if assignment.Status == models.AssignmentStatusCompleted {
			return AlreadyCompletedError("mission already completed")
		}
		if assignment.Mission == nil {
			return NotFoundError("mission not found for assignment")
		}

		// Status flip is the race guard: the loser of two concurrent
		// completions matches zero rows here and the transaction unwinds.
		now := s.Clock.Now()
		res := tx.Model(&models.Assignment{}).
			Where("id = ? AND user_id = ? AND status = ?",
				assignmentID, userID, models.AssignmentStatusAssigned).
			Updates(map[string]interface{}{
				"status":       models.AssignmentStatusCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return StoreError("failed to update assignment", res.Error)
		}
		if res.RowsAffected == 0 {
			return AlreadyCompletedError("mission already completed")
		}

		completion := models.Completion{
			UserID:      userID,
			MissionID:   assignment.MissionID,
			EvidenceURL: evidenceURL,
			Reflection:  reflection,
		}
		if err := tx.Create(&completion).Error; err != nil {
			return StoreError("failed to record completion", err)
		}

		xpGained := ScoreXP(assignment.Mission.XPReward, evidenceURL, reflection)

		missionID := assignment.MissionID
		event := models.XPEvent{
			UserID:     userID,
			SourceType: models.XPSourceCompletion,
			SourceID:   &missionID,
			XP:         xpGained,
			SkillID:    assignment.Mission.SkillID,
		}
		if err := tx.Create(&event).Error; err != nil {
			return StoreError("failed to record xp event", err)
		}

		if _, err := s.Progression.EnsureStatsRecord(tx, userID); err != nil {
			return err
		}
		prog, err := s.Progression.ApplyXPDelta(tx, userID, xpGained, assignment.Mission.Type)
		if err != nil {
			return err
		}

		granted, err := s.Dex.EvaluateUnlocks(tx, userID, prog.NewLevel, prog.NewStreak)
		if err != nil {
			return err
		}

		result.XPGained = xpGained
		result.NewLevel = prog.NewLevel
		result.LevelUp = prog.LeveledUp
		result.NewStreak = prog.NewStreak
		result.NewUnlocks = granted
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎮 Mission scored: user=%s assignment=%s xp=%d level=%d streak=%d unlocks=%d",
		userID, assignmentID, result.XPGained, result.NewLevel, result.NewStreak, result.NewUnlocks)
	return result, nil
}

// GrantXP awards XP outside the mission flow (admin operation). The grant
// goes through the same ledger, progression and unlock path as a
// completion, so the rollup invariant holds. Never touches the streak.
func (s *ScorerService) GrantXP(userID string, xp int64, reason string) (*CompletionResult, error) {
	if xp < 1 {
		return nil, ValidationError("xp must be positive")
	}

	result := &CompletionResult{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		event := models.XPEvent{
			UserID:     userID,
			SourceType: models.XPSourceAdminGrant,
			XP:         xp,
		}
		if err := tx.Create(&event).Error; err != nil {
			return StoreError("failed to record xp event", err)
		}

		if _, err := s.Progression.EnsureStatsRecord(tx, userID); err != nil {
			return err
		}
		prog, err := s.Progression.ApplyXPDelta(tx, userID, xp, "")
		if err != nil {
			return err
		}

		granted, err := s.Dex.EvaluateUnlocks(tx, userID, prog.NewLevel, prog.NewStreak)
		if err != nil {
			return err
		}

		result.XPGained = xp
		result.NewLevel = prog.NewLevel
		result.LevelUp = prog.LeveledUp
		result.NewStreak = prog.NewStreak
		result.NewUnlocks = granted
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎮 XP granted: user=%s xp=%d (reason: %s)", userID, xp, reason)
	return result, nil
}
