package repository

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lunchbreak/internal/database/models"
	"lunchbreak/internal/errs"
	"lunchbreak/internal/services/availability"
	"lunchbreak/internal/services/pricing"
	"lunchbreak/internal/services/schedule"
)

// LoadFood fetches a food with everything pricing needs. A non-empty lock
// strength locks the food row for the rest of the transaction.
func LoadFood(tx *gorm.DB, foodID int64, lock string) (*models.Food, error) {
	q := tx
	if lock != "" {
		q = q.Clauses(clause.Locking{Strength: lock})
	}
	var food models.Food
	if err := q.First(&food, foodID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.DoesNotExist.Withf("food %d does not exist", foodID)
		}
		return nil, err
	}

	err := tx.Preload("Menu").
		Preload("FoodType").
		Preload("IngredientRelations.Ingredient.Group").
		Preload("IngredientGroups.Ingredients", "deleted = ?", false).
		Preload("IngredientGroups.Ingredients.Group").
		First(&food, foodID).Error
	if err != nil {
		return nil, err
	}
	return &food, nil
}

// LoadIngredients fetches the ingredients by id, rejecting unknown or
// deleted ones.
func LoadIngredients(tx *gorm.DB, ids []int64) ([]models.Ingredient, error) {
	if len(ids) == 0 {
		return []models.Ingredient{}, nil
	}
	var found []models.Ingredient
	if err := tx.Preload("Group").Where("id IN ? AND deleted = ?", ids, false).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[int64]models.Ingredient, len(found))
	for _, i := range found {
		byID[i.ID] = i
	}
	out := make([]models.Ingredient, 0, len(ids))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok {
			return nil, errs.DoesNotExist.Withf("ingredient %d does not exist", id)
		}
		out = append(out, i)
	}
	return out, nil
}

func PricedIngredient(i models.Ingredient) pricing.Ingredient {
	return pricing.Ingredient{
		ID:   i.ID,
		Name: i.Name,
		Cost: i.Cost,
		Group: pricing.Group{
			ID:      i.Group.ID,
			Name:    i.Group.Name,
			Cost:    i.Group.Cost,
			Mode:    pricing.Mode(i.Group.Calculation),
			Minimum: int(i.Group.Minimum),
			Maximum: int(i.Group.Maximum),
		},
	}
}

func PricedIngredients(ingredients []models.Ingredient) []pricing.Ingredient {
	out := make([]pricing.Ingredient, 0, len(ingredients))
	for _, i := range ingredients {
		out = append(out, PricedIngredient(i))
	}
	return out
}

// PricedFood converts a food loaded by LoadFood into its pricing view.
func PricedFood(food *models.Food) pricing.Food {
	pf := pricing.Food{
		ID:        food.ID,
		Cost:      food.Cost,
		InputType: pricing.InputType(food.FoodType.InputType),
		Amount:    food.Amount,
	}

	seen := make(map[int64]bool)
	for _, rel := range food.IngredientRelations {
		if rel.Ingredient.Deleted {
			continue
		}
		ing := PricedIngredient(rel.Ingredient)
		if rel.Selected {
			pf.Selected = append(pf.Selected, ing)
		}
		pf.Selectable = append(pf.Selectable, ing)
		seen[ing.ID] = true
	}
	for _, g := range food.IngredientGroups {
		for _, i := range g.Ingredients {
			if seen[i.ID] {
				continue
			}
			pf.Selectable = append(pf.Selectable, PricedIngredient(i))
			seen[i.ID] = true
		}
	}
	return pf
}

// Preorder resolves the food's preorder settings against its food type.
func Preorder(food *models.Food) (availability.Preorder, error) {
	typeCutoff, err := schedule.ParseClock(food.FoodType.PreorderTime)
	if err != nil {
		return availability.Preorder{}, err
	}
	foodType := availability.Preorder{Cutoff: &typeCutoff, Days: intPtr(food.FoodType.PreorderDays)}

	own := availability.Preorder{Disabled: food.PreorderDisabled, Days: intPtr(food.PreorderDays)}
	if food.PreorderTime != nil {
		cutoff, err := schedule.ParseClock(*food.PreorderTime)
		if err != nil {
			return availability.Preorder{}, err
		}
		own.Cutoff = &cutoff
	}
	return availability.Resolve(own, foodType), nil
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

// Quantity returns the amount bounds of a food type at a store, if any.
func Quantity(tx *gorm.DB, foodTypeID, storeID int64) (*pricing.Quantity, error) {
	var q models.Quantity
	err := tx.Where("food_type_id = ? AND store_id = ?", foodTypeID, storeID).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pricing.Quantity{Minimum: q.Minimum, Maximum: q.Maximum}, nil
}

func StoreLocation(store *models.Store) (*time.Location, error) {
	if store.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(store.Timezone)
	if err != nil {
		return nil, fmt.Errorf("store %d timezone: %w", store.ID, err)
	}
	return loc, nil
}

// StoreSchedule builds the availability definition of a store from its
// preloaded opening and holiday periods.
func StoreSchedule(store *models.Store) (schedule.Schedule, error) {
	loc, err := StoreLocation(store)
	if err != nil {
		return schedule.Schedule{}, err
	}
	s := schedule.Schedule{Location: loc}
	for _, p := range store.OpeningPeriods {
		start, err := schedule.ParseClock(p.Time)
		if err != nil {
			return schedule.Schedule{}, fmt.Errorf("opening period %d: %w", p.ID, err)
		}
		s.Weekly = append(s.Weekly, schedule.WeeklyPeriod{
			Weekday:  int(p.Weekday),
			Start:    start,
			Duration: p.Duration,
		})
	}
	for _, h := range store.HolidayPeriods {
		s.Holidays = append(s.Holidays, schedule.Holiday{Start: h.Start, End: h.End, Closed: h.Closed})
	}
	return s, nil
}

// LoadStore fetches a store with its periods.
func LoadStore(tx *gorm.DB, storeID int64) (*models.Store, error) {
	var store models.Store
	err := tx.Preload("OpeningPeriods").Preload("HolidayPeriods").Preload("Regions").First(&store, storeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.DoesNotExist.Withf("store %d does not exist", storeID)
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func StoreRules(store *models.Store) (availability.Rules, error) {
	s, err := StoreSchedule(store)
	if err != nil {
		return availability.Rules{}, err
	}
	return availability.Rules{Schedule: s, Wait: store.Wait}, nil
}
