package services

import (
	"fmt"
	"sync"
	"testing"

	"lifequest-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreXP(t *testing.T) {
	t.Parallel()

	evidence := strPtr("http://x")
	longReflection := strPtr("learned a lot")  // 13 runes
	shortReflection := strPtr("ok")
	empty := strPtr("")

	assert.EqualValues(t, 60, ScoreXP(60, nil, nil), "base only")
	assert.EqualValues(t, 66, ScoreXP(60, nil, longReflection), "reflection bonus floor(60*0.10)")
	assert.EqualValues(t, 69, ScoreXP(60, evidence, nil), "evidence bonus floor(60*0.15)")
	assert.EqualValues(t, 75, ScoreXP(60, evidence, longReflection), "bonuses stack: 60+6+9")
	assert.EqualValues(t, 60, ScoreXP(60, nil, shortReflection), "short reflection earns nothing")
	assert.EqualValues(t, 60, ScoreXP(60, empty, nil), "empty evidence url earns nothing")

	// Both bonuses floor the base, not the running total.
	assert.EqualValues(t, 25+2+3, ScoreXP(25, evidence, longReflection))

	// Rune count, not byte count.
	accented := strPtr("reflexión!") // 10 runes, 11 bytes
	assert.EqualValues(t, 66, ScoreXP(60, nil, accented))
}

func TestCompleteMissionHappyPath(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	skill := models.Skill{Name: "Sales & Outreach"}
	require.NoError(t, e.db.Create(&skill).Error)
	mission := seedMission(t, e.db, "Ten messages", models.MissionTypeDaily, 60, nil, &skill.ID)
	a := seedAssignment(t, e, "user-1", mission)

	res, err := e.scorer.CompleteMission("user-1", a.ID, strPtr("http://proof"), strPtr("went really well"))
	require.NoError(t, err)

	assert.EqualValues(t, 75, res.XPGained)
	assert.Equal(t, 1, res.NewLevel)
	assert.False(t, res.LevelUp)
	assert.Equal(t, 1, res.NewStreak)

	var updated models.Assignment
	require.NoError(t, e.db.First(&updated, "id = ?", a.ID).Error)
	assert.Equal(t, models.AssignmentStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)

	var completion models.Completion
	require.NoError(t, e.db.First(&completion, "user_id = ?", "user-1").Error)
	assert.Equal(t, mission.ID, completion.MissionID)
	require.NotNil(t, completion.Reflection)

	var event models.XPEvent
	require.NoError(t, e.db.First(&event, "user_id = ?", "user-1").Error)
	assert.Equal(t, models.XPSourceCompletion, event.SourceType)
	assert.EqualValues(t, 75, event.XP)
	require.NotNil(t, event.SkillID)
	assert.Equal(t, skill.ID, *event.SkillID)

	stats := userStats(t, e.db, "user-1")
	assert.Equal(t, stats.XPTotal, ledgerTotal(t, e.db, "user-1"), "rollup equals ledger sum")
}

func TestCompleteMissionTwiceIsConflict(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	mission := seedMission(t, e.db, "Ten messages", models.MissionTypeDaily, 60, nil, nil)
	a := seedAssignment(t, e, "user-1", mission)

	_, err := e.scorer.CompleteMission("user-1", a.ID, nil, nil)
	require.NoError(t, err)

	_, err = e.scorer.CompleteMission("user-1", a.ID, nil, nil)
	require.Error(t, err)
	assert.Equal(t, KindAlreadyCompleted, KindOf(err))

	var completions, events int64
	require.NoError(t, e.db.Model(&models.Completion{}).Where("user_id = ?", "user-1").Count(&completions).Error)
	require.NoError(t, e.db.Model(&models.XPEvent{}).Where("user_id = ?", "user-1").Count(&events).Error)
	assert.EqualValues(t, 1, completions)
	assert.EqualValues(t, 1, events)

	stats := userStats(t, e.db, "user-1")
	assert.EqualValues(t, 60, stats.XPTotal, "xp awarded exactly once")
}

func TestCompleteMissionNotFound(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	_, err := e.scorer.CompleteMission("user-1", "00000000-0000-0000-0000-000000000000", nil, nil)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCompleteMissionOwnedByAnotherUser(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	mission := seedMission(t, e.db, "Ten messages", models.MissionTypeDaily, 60, nil, nil)
	a := seedAssignment(t, e, "user-1", mission)

	_, err := e.scorer.CompleteMission("user-2", a.ID, nil, nil)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err), "foreign assignments look absent, not conflicted")
}

func TestCompleteMissionRequiresAssignmentID(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	_, err := e.scorer.CompleteMission("user-1", "", nil, nil)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCompleteMissionConcurrentSameAssignment(t *testing.T) {
	t.Parallel()
	e := newEngineWithDB(t, newFileTestDB(t))
	mission := seedMission(t, e.db, "Ten messages", models.MissionTypeDaily, 60, nil, nil)
	a := seedAssignment(t, e, "user-1", mission)

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.scorer.CompleteMission("user-1", a.ID, nil, nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.Equal(t, KindAlreadyCompleted, KindOf(err))
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent completion succeeds")

	var completions, events int64
	require.NoError(t, e.db.Model(&models.Completion{}).Where("user_id = ?", "user-1").Count(&completions).Error)
	require.NoError(t, e.db.Model(&models.XPEvent{}).Where("user_id = ?", "user-1").Count(&events).Error)
	assert.EqualValues(t, 1, completions)
	assert.EqualValues(t, 1, events)
}

func TestCompleteMissionConcurrentDistinctAssignments(t *testing.T) {
	t.Parallel()
	e := newEngineWithDB(t, newFileTestDB(t))

	const callers = 4
	assignments := make([]models.Assignment, callers)
	for i := 0; i < callers; i++ {
		m := seedMission(t, e.db, fmt.Sprintf("Side quest %d", i), models.MissionTypeSide, 60, nil, nil)
		assignments[i] = seedAssignment(t, e, "user-1", m)
	}

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.scorer.CompleteMission("user-1", assignments[i].ID, nil, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "completion %d", i)
	}

	stats := userStats(t, e.db, "user-1")
	assert.EqualValues(t, callers*60, stats.XPTotal, "no lost update on the rollup")
	assert.Equal(t, stats.XPTotal, ledgerTotal(t, e.db, "user-1"))
	assert.Equal(t, LevelForXP(stats.XPTotal), stats.Level)
}

func TestLedgerConsistencyAcrossCompletions(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	seedProfile(t, e.db, "user-1", nil, 90)
	m1 := seedMission(t, e.db, "Daily one", models.MissionTypeDaily, 10, nil, nil)
	m2 := seedMission(t, e.db, "Side one", models.MissionTypeSide, 120, nil, nil)
	m3 := seedMission(t, e.db, "Main one", models.MissionTypeMain, 60, nil, nil)

	for _, m := range []models.Mission{m1, m2, m3} {
		a := seedAssignment(t, e, "user-1", m)
		_, err := e.scorer.CompleteMission("user-1", a.ID, strPtr("http://proof"), nil)
		require.NoError(t, err)

		stats := userStats(t, e.db, "user-1")
		assert.Equal(t, stats.XPTotal, ledgerTotal(t, e.db, "user-1"),
			"rollup equals ledger after every completion")
		assert.Equal(t, LevelForXP(stats.XPTotal), stats.Level,
			"level always consistent with xp_total")
	}
}

func TestCompleteMissionGrantsUnlocks(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	seedCard(t, e.db, "Starter guide", models.UnlockRuleLevel, 2)
	seedCard(t, e.db, "Streak keeper", models.UnlockRuleStreak, 1)
	seedCard(t, e.db, "Long haul", models.UnlockRuleStreak, 30)

	mission := seedMission(t, e.db, "Big one", models.MissionTypeDaily, 250, nil, nil)
	a := seedAssignment(t, e, "user-1", mission)

	res, err := e.scorer.CompleteMission("user-1", a.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewLevel)
	assert.True(t, res.LevelUp)
	assert.Equal(t, 2, res.NewUnlocks, "level-2 and streak-1 cards granted, streak-30 not")
}

func TestGrantXPFlowsThroughLedger(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	seedCard(t, e.db, "Starter guide", models.UnlockRuleLevel, 2)

	res, err := e.scorer.GrantXP("user-1", 250, "manual correction")
	require.NoError(t, err)
	assert.EqualValues(t, 250, res.XPGained)
	assert.Equal(t, 2, res.NewLevel)
	assert.True(t, res.LevelUp)
	assert.Equal(t, 0, res.NewStreak, "grants never touch the streak")
	assert.Equal(t, 1, res.NewUnlocks)

	stats := userStats(t, e.db, "user-1")
	assert.Equal(t, stats.XPTotal, ledgerTotal(t, e.db, "user-1"))
}

func TestGrantXPRejectsNonPositive(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	_, err := e.scorer.GrantXP("user-1", 0, "noop")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}
