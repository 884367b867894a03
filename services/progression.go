package services

import (
	"errors"
	"time"

	"lifequest-engine/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// LevelThresholds holds cumulative XP needed to reach each level
// (level = index + 1). Ascending, starts at 0 so everyone is at least level 1.
var LevelThresholds = []int64{
	0, 200, 500, 900, 1400, 2000, 2700, 3500, 4400, 5400,
	6500, 7700, 9000, 10400, 11900, 13500, 15200, 17000, 18900, 20900,
}

// LevelForXP returns the highest level whose threshold has been reached.
// Pure and monotonic; XP is never subtracted in this system so level never
// goes down.
func LevelForXP(xp int64) int {
	for i := len(LevelThresholds) - 1; i >= 0; i-- {
		if xp >= LevelThresholds[i] {
			return i + 1
		}
	}
	return 1
}

// statsUpdateRetries bounds the optimistic-lock retry loop in ApplyXPDelta.
const statsUpdateRetries = 3

type ProgressionService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewProgressionService(db *gorm.DB, clock clockwork.Clock) *ProgressionService {
	return &ProgressionService{DB: db, Clock: clock}
}

// ProgressionResult summarizes one fold of an XP delta into user stats.
type ProgressionResult struct {
	NewXPTotal int64 `json:"new_xp_total"`
	NewLevel   int   `json:"new_level"`
	NewStreak  int   `json:"new_streak"`
	LeveledUp  bool  `json:"leveled_up"`
}

// EnsureStatsRecord ensures a UserStats row exists (idempotent). It runs on
// the given handle so scoring can bootstrap stats inside its transaction.
func (s *ProgressionService) EnsureStatsRecord(db *gorm.DB, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	err := db.Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.UserStats{UserID: userID, Level: 1}
		if err := db.Create(&stats).Error; err != nil {
			return nil, StoreError("failed to create stats record", err)
		}
		return &stats, nil
	}
	if err != nil {
		return nil, StoreError("failed to load stats record", err)
	}
	return &stats, nil
}

// dayKey truncates a timestamp to its local calendar day.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ApplyXPDelta folds an XP delta into the user's aggregate stats: new total,
// level via the threshold table, and streak continuity when the completed
// mission was a daily. The write is a conditional update guarded by the
// stats row version; a concurrent writer makes the update match zero rows
// and we re-read and retry.
//
// Runs on the handle it is given so callers can place it inside the same
// transaction as the ledger insert.
func (s *ProgressionService) ApplyXPDelta(tx *gorm.DB, userID string, xpDelta int64, missionType string) (*ProgressionResult, error) {
	now := s.Clock.Now()

	for attempt := 0; attempt < statsUpdateRetries; attempt++ {
		var stats models.UserStats
		if err := tx.Where("user_id = ?", userID).First(&stats).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NotFoundError("stats record not found for user")
			}
			return nil, StoreError("failed to load stats", err)
		}

		newTotal := stats.XPTotal + xpDelta
		newLevel := LevelForXP(newTotal)
		leveledUp := newLevel > stats.Level

		newStreak := stats.StreakCurrent
		if missionType == models.MissionTypeDaily {
			newStreak = nextStreak(stats.StreakCurrent, stats.LastDailyCompletedAt, now)
		}
		newBest := stats.StreakBest
		if newStreak > newBest {
			newBest = newStreak
		}

		updates := map[string]interface{}{
			"xp_total":       newTotal,
			"level":          newLevel,
			"streak_current": newStreak,
			"streak_best":    newBest,
			"last_active_at": now,
			"version":        stats.Version + 1,
		}
		if leveledUp {
			updates["last_level_up_at"] = now
		}
		if missionType == models.MissionTypeDaily {
			updates["last_daily_completed_at"] = now
		}

		res := tx.Model(&models.UserStats{}).
			Where("user_id = ? AND version = ?", userID, stats.Version).
			Updates(updates)
		if res.Error != nil {
			return nil, StoreError("failed to update stats", res.Error)
		}
		if res.RowsAffected == 1 {
			return &ProgressionResult{
				NewXPTotal: newTotal,
				NewLevel:   newLevel,
				NewStreak:  newStreak,
				LeveledUp:  leveledUp,
			}, nil
		}
		// Version moved under us; reload and recompute.
	}
	return nil, StoreError("stats update contention not resolved", nil)
}

// nextStreak applies the day-boundary continuity rules for daily missions.
func nextStreak(current int, lastDaily *time.Time, now time.Time) int {
	if lastDaily == nil {
		return 1 // first daily ever
	}
	today := dayKey(now)
	last := dayKey(*lastDaily)
	if last == today {
		return current // second daily same day: no increment, no break
	}
	yesterday := dayKey(now.AddDate(0, 0, -1))
	if last == yesterday {
		return current + 1
	}
	// Gap of 2+ days, or lastDaily in the future from clock skew.
	return 1
}

// SkillXPTotal is a per-skill rollup of the XP ledger, for display.
type SkillXPTotal struct {
	SkillID   *string `json:"skill_id"`
	SkillName string  `json:"skill_name"`
	XP        int64   `json:"xp"`
}

// SkillXPTotals sums the user's ledger grouped by skill.
func (s *ProgressionService) SkillXPTotals(userID string) ([]SkillXPTotal, error) {
	var totals []SkillXPTotal
	err := s.DB.Raw(`
		SELECT e.skill_id, COALESCE(sk.name, '') AS skill_name, SUM(e.xp) AS xp
		FROM xp_events e
		LEFT JOIN skills sk ON sk.id = e.skill_id
		WHERE e.user_id = ?
		GROUP BY e.skill_id, sk.name
		ORDER BY xp DESC
	`, userID).Scan(&totals).Error
	if err != nil {
		return nil, StoreError("failed to sum skill xp", err)
	}
	return totals, nil
}
