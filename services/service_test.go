package services

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"lifequest-engine/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Skill{},
		&models.Track{},
		&models.Mission{},
		&models.UserProfile{},
		&models.Assignment{},
		&models.Completion{},
		&models.XPEvent{},
		&models.UserStats{},
		&models.DexCard{},
		&models.UserDexUnlock{},
	))
	return db
}

// newFileTestDB backs the store with a real file and immediate write
// transactions so genuinely concurrent callers serialize at the database
// instead of tripping over shared-cache table locks.
func newFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s/engine.db?_busy_timeout=10000&_txlock=immediate", t.TempDir())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Skill{},
		&models.Track{},
		&models.Mission{},
		&models.UserProfile{},
		&models.Assignment{},
		&models.Completion{},
		&models.XPEvent{},
		&models.UserStats{},
		&models.DexCard{},
		&models.UserDexUnlock{},
	))
	return db
}

type engine struct {
	db          *gorm.DB
	clock       *clockwork.FakeClock
	planner     *PlannerService
	scorer      *ScorerService
	progression *ProgressionService
	dex         *DexService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	return newEngineWithDB(t, newTestDB(t))
}

func newEngineWithDB(t *testing.T, db *gorm.DB) *engine {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC))

	progression := NewProgressionService(db, clock)
	dex := NewDexService(db)
	planner := NewPlannerService(db, clock)
	planner.Rand = rand.New(rand.NewSource(1))
	scorer := NewScorerService(db, clock, progression, dex)

	return &engine{
		db:          db,
		clock:       clock,
		planner:     planner,
		scorer:      scorer,
		progression: progression,
		dex:         dex,
	}
}

func seedMission(t *testing.T, db *gorm.DB, title, mtype string, xp int64, trackID, skillID *string) models.Mission {
	t.Helper()
	m := models.Mission{
		Title:    title,
		Type:     mtype,
		XPReward: xp,
		TrackID:  trackID,
		SkillID:  skillID,
		IsActive: true,
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}

func seedProfile(t *testing.T, db *gorm.DB, userID string, trackID *string, timeDaily int) {
	t.Helper()
	require.NoError(t, db.Create(&models.UserProfile{
		UserID:    userID,
		TrackID:   trackID,
		TimeDaily: timeDaily,
	}).Error)
}

func seedCard(t *testing.T, db *gorm.DB, title, ruleType string, value int) models.DexCard {
	t.Helper()
	card := models.DexCard{
		Title:      title,
		UnlockRule: models.UnlockRule{Type: ruleType, Value: value},
		IsActive:   true,
	}
	require.NoError(t, db.Create(&card).Error)
	return card
}

func seedAssignment(t *testing.T, e *engine, userID string, mission models.Mission) models.Assignment {
	t.Helper()
	now := e.clock.Now()
	a := models.Assignment{
		UserID:     userID,
		MissionID:  mission.ID,
		Status:     models.AssignmentStatusAssigned,
		AssignedAt: now,
		AssignedOn: dayKey(now),
	}
	require.NoError(t, e.db.Create(&a).Error)
	return a
}

func ledgerTotal(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var total int64
	require.NoError(t, db.Model(&models.XPEvent{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(xp), 0)").
		Scan(&total).Error)
	return total
}

func userStats(t *testing.T, db *gorm.DB, userID string) models.UserStats {
	t.Helper()
	var stats models.UserStats
	require.NoError(t, db.Where("user_id = ?", userID).First(&stats).Error)
	return stats
}

func strPtr(s string) *string { return &s }
