package repository

import (
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lunchbreak/internal/database/models"
	"lunchbreak/internal/errs"
)

// FoodInUse reports whether a line item of a non-terminal order still
// references the food. Drafts never count.
func FoodInUse(tx *gorm.DB, foodID int64) (bool, error) {
	var n int64
	err := tx.Model(&models.OrderedFood{}).
		Joins("JOIN orders ON orders.id = ordered_foods.order_id").
		Where("ordered_foods.original_id = ? AND orders.status NOT IN ?", foodID, models.TerminalStatuses).
		Count(&n).Error
	return n > 0, err
}

func IngredientInUse(tx *gorm.DB, ingredientID int64) (bool, error) {
	var n int64
	err := tx.Table("ordered_food_ingredients").
		Joins("JOIN ordered_foods ON ordered_foods.id = ordered_food_ingredients.ordered_food_id").
		Joins("JOIN orders ON orders.id = ordered_foods.order_id").
		Where("ordered_food_ingredients.ingredient_id = ? AND orders.status NOT IN ?", ingredientID, models.TerminalStatuses).
		Count(&n).Error
	return n > 0, err
}

// DeleteFood removes the food right away when nothing active uses it and
// marks it deleted otherwise. It reports whether the row is gone.
func DeleteFood(tx *gorm.DB, foodID int64) (bool, error) {
	var food models.Food
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&food, foodID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, errs.DoesNotExist.Withf("food %d does not exist", foodID)
		}
		return false, err
	}

	inUse, err := FoodInUse(tx, foodID)
	if err != nil {
		return false, err
	}
	if inUse {
		return false, tx.Model(&food).Update("deleted", true).Error
	}
	return true, hardDeleteFood(tx, foodID)
}

// ReleaseFood hard deletes a food marked deleted once no active order
// references it. The row lock serialises concurrent releases.
func ReleaseFood(tx *gorm.DB, foodID int64) (bool, error) {
	var food models.Food
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&food, foodID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil || !food.Deleted {
		return false, err
	}

	inUse, err := FoodInUse(tx, foodID)
	if err != nil || inUse {
		return false, err
	}
	return true, hardDeleteFood(tx, foodID)
}

func hardDeleteFood(tx *gorm.DB, foodID int64) error {
	inUse, err := FoodInUse(tx, foodID)
	if err != nil {
		return err
	}
	if inUse {
		logrus.WithField("food_id", foodID).Error("refusing to hard delete referenced food")
		return errs.Internal.Withf("food %d is still referenced by an active order", foodID)
	}

	if err := tx.Model(&models.OrderedFood{}).Where("original_id = ?", foodID).
		Update("original_id", nil).Error; err != nil {
		return err
	}
	if err := tx.Where("food_id = ?", foodID).Delete(&models.IngredientRelation{}).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM food_ingredient_groups WHERE food_id = ?", foodID).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.Food{}, foodID).Error; err != nil {
		return err
	}
	logrus.WithField("food_id", foodID).Info("food hard deleted")
	return nil
}

func DeleteIngredient(tx *gorm.DB, ingredientID int64) (bool, error) {
	var ingredient models.Ingredient
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ingredient, ingredientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, errs.DoesNotExist.Withf("ingredient %d does not exist", ingredientID)
		}
		return false, err
	}

	inUse, err := IngredientInUse(tx, ingredientID)
	if err != nil {
		return false, err
	}
	if inUse {
		return false, tx.Model(&ingredient).Update("deleted", true).Error
	}
	return true, hardDeleteIngredient(tx, ingredientID)
}

func ReleaseIngredient(tx *gorm.DB, ingredientID int64) (bool, error) {
	var ingredient models.Ingredient
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ingredient, ingredientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil || !ingredient.Deleted {
		return false, err
	}

	inUse, err := IngredientInUse(tx, ingredientID)
	if err != nil || inUse {
		return false, err
	}
	return true, hardDeleteIngredient(tx, ingredientID)
}

func hardDeleteIngredient(tx *gorm.DB, ingredientID int64) error {
	inUse, err := IngredientInUse(tx, ingredientID)
	if err != nil {
		return err
	}
	if inUse {
		logrus.WithField("ingredient_id", ingredientID).Error("refusing to hard delete referenced ingredient")
		return errs.Internal.Withf("ingredient %d is still referenced by an active order", ingredientID)
	}

	if err := tx.Exec("DELETE FROM ordered_food_ingredients WHERE ingredient_id = ?", ingredientID).Error; err != nil {
		return err
	}
	if err := tx.Where("ingredient_id = ?", ingredientID).Delete(&models.IngredientRelation{}).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.Ingredient{}, ingredientID).Error; err != nil {
		return err
	}
	logrus.WithField("ingredient_id", ingredientID).Info("ingredient hard deleted")
	return nil
}
