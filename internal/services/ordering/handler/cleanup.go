package handler

import (
	"gorm.io/gorm"

	"lunchbreak/internal/database/models"
	"lunchbreak/internal/database/repository"
)

// releaseCatalog hard deletes foods and ingredients that were marked
// deleted and waited on this order. Each release locks its row and
// re-checks usage, so concurrent cleanups cannot free a row twice.
func releaseCatalog(tx *gorm.DB, order *models.Order) error {
	var lines []models.OrderedFood
	if err := tx.Preload("Ingredients").Where("order_id = ?", order.ID).Find(&lines).Error; err != nil {
		return err
	}

	foods := make(map[int64]bool)
	ingredients := make(map[int64]bool)
	for _, line := range lines {
		if line.OriginalID != nil && !foods[*line.OriginalID] {
			foods[*line.OriginalID] = true
			if _, err := repository.ReleaseFood(tx, *line.OriginalID); err != nil {
				return err
			}
		}
		for _, i := range line.Ingredients {
			if ingredients[i.ID] {
				continue
			}
			ingredients[i.ID] = true
			if _, err := repository.ReleaseIngredient(tx, i.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
