package handler

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lunchbreak/internal/database/models"
	"lunchbreak/internal/database/repository"
)

// SaveTemporaryOrder replaces the user's draft basket at a store. Drafts are
// validated like orders apart from any timing rule, and never keep a
// deleted food or ingredient alive.
func (s *OrderHandler) SaveTemporaryOrder(ctx context.Context, userID, storeID int64, items []LineItem) (*models.TemporaryOrder, error) {
	now := s.now()
	var draft models.TemporaryOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store, err := repository.LoadStore(tx, storeID)
		if err != nil {
			return err
		}

		draft = models.TemporaryOrder{UserID: userID, StoreID: store.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&draft).Error; err != nil {
			return fmt.Errorf("failed to create draft: %w", err)
		}
		if err := tx.Where("user_id = ? AND store_id = ?", userID, store.ID).First(&draft).Error; err != nil {
			return err
		}
		if err := clearDraft(tx, draft.ID); err != nil {
			return err
		}

		for i, item := range items {
			line, ingredientIDs, err := buildLineItem(tx, store, item, nil, now)
			if err != nil {
				return fmt.Errorf("line item %d: %w", i+1, err)
			}
			line.TemporaryOrderID = &draft.ID
			if err := saveLineItem(tx, &line, ingredientIDs); err != nil {
				return err
			}
		}
		return tx.Model(&draft).UpdateColumn("updated_at", now).Error
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Preload("OrderedFoods", func(q *gorm.DB) *gorm.DB { return q.Order("id") }).
		Preload("OrderedFoods.Ingredients").
		First(&draft, draft.ID).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

func clearDraft(tx *gorm.DB, draftID int64) error {
	var lineIDs []int64
	err := tx.Model(&models.OrderedFood{}).Where("temporary_order_id = ?", draftID).Pluck("id", &lineIDs).Error
	if err != nil || len(lineIDs) == 0 {
		return err
	}
	if err := tx.Exec("DELETE FROM ordered_food_ingredients WHERE ordered_food_id IN ?", lineIDs).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", lineIDs).Delete(&models.OrderedFood{}).Error
}
