package services

import (
	"log"

	"lifequest-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DexService struct {
	DB *gorm.DB
}

func NewDexService(db *gorm.DB) *DexService {
	return &DexService{DB: db}
}

// ruleSatisfied checks an unlock rule against the user's fresh progression
// state. Unknown rule types never match.
func ruleSatisfied(rule models.UnlockRule, level, streak int) bool {
	switch rule.Type {
	case models.UnlockRuleLevel:
		return level >= rule.Value
	case models.UnlockRuleStreak:
		return streak >= rule.Value
	}
	return false
}

// EvaluateUnlocks grants every active card whose rule the new state
// satisfies and the user does not hold yet. Grants are a set union: the
// unique (user, card) index plus OnConflict DoNothing make re-evaluation
// on every completion idempotent. Unlocks are never revoked.
//
// Runs on the given handle so scoring can evaluate inside its transaction.
func (s *DexService) EvaluateUnlocks(tx *gorm.DB, userID string, level, streak int) (int, error) {
	var cards []models.DexCard
	if err := tx.Where("is_active = ?", true).Find(&cards).Error; err != nil {
		return 0, StoreError("failed to load dex cards", err)
	}
	if len(cards) == 0 {
		return 0, nil
	}

	var unlockedIDs []string
	if err := tx.Model(&models.UserDexUnlock{}).
		Where("user_id = ?", userID).
		Pluck("dex_card_id", &unlockedIDs).Error; err != nil {
		return 0, StoreError("failed to load existing unlocks", err)
	}
	unlocked := make(map[string]bool, len(unlockedIDs))
	for _, id := range unlockedIDs {
		unlocked[id] = true
	}

	var grants []models.UserDexUnlock
	for _, card := range cards {
		if unlocked[card.ID] {
			continue
		}
		if ruleSatisfied(card.UnlockRule, level, streak) {
			grants = append(grants, models.UserDexUnlock{
				UserID:    userID,
				DexCardID: card.ID,
			})
		}
	}
	if len(grants) == 0 {
		return 0, nil
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grants)
	if res.Error != nil {
		return 0, StoreError("failed to grant unlocks", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("🎖️ Dex unlocks granted: user=%s count=%d", userID, res.RowsAffected)
	}
	return int(res.RowsAffected), nil
}

// DexCardView is a card plus whether the user holds it.
type DexCardView struct {
	models.DexCard
	Unlocked bool `json:"unlocked"`
}

// ListForUser returns every active card flagged with the user's unlock state.
func (s *DexService) ListForUser(userID string) ([]DexCardView, error) {
	var cards []models.DexCard
	if err := s.DB.Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&cards).Error; err != nil {
		return nil, StoreError("failed to load dex cards", err)
	}

	var unlockedIDs []string
	if err := s.DB.Model(&models.UserDexUnlock{}).
		Where("user_id = ?", userID).
		Pluck("dex_card_id", &unlockedIDs).Error; err != nil {
		return nil, StoreError("failed to load unlocks", err)
	}
	unlocked := make(map[string]bool, len(unlockedIDs))
	for _, id := range unlockedIDs {
		unlocked[id] = true
	}

	views := make([]DexCardView, 0, len(cards))
	for _, card := range cards {
		views = append(views, DexCardView{DexCard: card, Unlocked: unlocked[card.ID]})
	}
	return views, nil
}
