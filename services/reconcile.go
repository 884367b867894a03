package services

import (
	"log"
	"time"

	"lifequest-engine/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// StartReconciler schedules the ledger/rollup consistency sweep. The XP
// ledger is the source of truth; the rollup on user_stats can only drift if
// a bug or manual intervention bypasses the transactional path, and this
// sweep notices and repairs it.
func (s *ProgressionService) StartReconciler(interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			cutoff := s.Clock.Now().Add(-24 * time.Hour)
			var rows []models.UserStats
			if err := s.DB.Where("last_active_at >= ?", cutoff).Find(&rows).Error; err != nil {
				log.Printf("[RECONCILE] DB error: %v", err)
				return
			}
			repaired := 0
			for _, stats := range rows {
				fixed, err := s.ReconcileUser(stats.UserID)
				if err != nil {
					log.Printf("[RECONCILE] user %s failed: %v", stats.UserID, err)
					continue
				}
				if fixed {
					repaired++
				}
			}
			if repaired > 0 {
				log.Printf("[RECONCILE] repaired %d drifted rollups (of %d active users)", repaired, len(rows))
			}
		}),
	)
}

// ReconcileUser compares the user's rollup against the summed ledger and
// repairs xp_total and level when they disagree. Returns whether a repair
// was written. The write carries the usual version guard so it cannot
// trample a concurrent completion.
func (s *ProgressionService) ReconcileUser(userID string) (bool, error) {
	repaired := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var stats models.UserStats
		if err := tx.Where("user_id = ?", userID).First(&stats).Error; err != nil {
			return StoreError("failed to load stats", err)
		}

		var ledgerTotal int64
		if err := tx.Model(&models.XPEvent{}).
			Where("user_id = ?", userID).
			Select("COALESCE(SUM(xp), 0)").
			Scan(&ledgerTotal).Error; err != nil {
			return StoreError("failed to sum ledger", err)
		}

		if ledgerTotal == stats.XPTotal {
			return nil
		}

		log.Printf("⚠️ [RECONCILE] rollup drift for user %s: stats=%d ledger=%d",
			userID, stats.XPTotal, ledgerTotal)

		res := tx.Model(&models.UserStats{}).
			Where("user_id = ? AND version = ?", userID, stats.Version).
			Updates(map[string]interface{}{
				"xp_total": ledgerTotal,
				"level":    LevelForXP(ledgerTotal),
				"version":  stats.Version + 1,
			})
		if res.Error != nil {
			return StoreError("failed to repair rollup", res.Error)
		}
		// Zero rows means a completion landed mid-check; its write already
		// included this ledger state, so skip and let the next sweep verify.
		repaired = res.RowsAffected == 1
		return nil
	})
	return repaired, err
}
