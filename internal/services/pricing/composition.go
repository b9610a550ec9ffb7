package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"lunchbreak/internal/errs"
)

// Quantity bounds the amount of a food type that can be ordered at a store.
type Quantity struct {
	Minimum decimal.Decimal
	Maximum decimal.Decimal
}

func ValidateAmount(inputType InputType, amount decimal.Decimal, q *Quantity) error {
	if !amount.IsPositive() {
		return errs.InvalidAmount.Withf("amount %s must be positive", amount)
	}
	if inputType == InputCount && !amount.Equal(amount.Truncate(0)) {
		return errs.InvalidAmount.Withf("amount %s must be a whole number", amount)
	}
	if q != nil && (amount.LessThan(q.Minimum) || amount.GreaterThan(q.Maximum)) {
		return errs.InvalidAmount.Withf("amount %s outside %s-%s", amount, q.Minimum, q.Maximum)
	}
	return nil
}

// CheckIngredients validates a selection against group limits and the
// food's allowed ingredients.
func CheckIngredients(selected []Ingredient, food Food) error {
	counts := make(map[int64]int)
	for _, i := range uniqueIngredients(selected) {
		counts[i.Group.ID]++
		if i.Group.Maximum > 0 && counts[i.Group.ID] > i.Group.Maximum {
			return errs.MaxIngredientsExceed.Withf("group %q allows at most %d", i.Group.Name, i.Group.Maximum)
		}
	}

	if err := CheckLinking(selected, food); err != nil {
		return err
	}

	for _, i := range food.Selected {
		g := i.Group
		if g.Minimum > 0 && counts[g.ID] < g.Minimum {
			return errs.MinIngredientsUnmet.Withf("group %q requires at least %d", g.Name, g.Minimum)
		}
	}
	return nil
}

// CheckLinking rejects ingredients the food does not offer.
func CheckLinking(selected []Ingredient, food Food) error {
	allowed := ingredientIDs(food.Selectable)
	for _, i := range food.Selected {
		allowed[i.ID] = struct{}{}
	}
	for _, i := range selected {
		if !allowed.has(i.ID) {
			return errs.IngredientLinking.Withf("ingredient %d not allowed on food %d", i.ID, food.ID)
		}
	}
	return nil
}

// Changes summarises a selection relative to the defaults, for example
// "With bacon, egg. Without onion."
func Changes(selected []Ingredient, food Food) string {
	if selected == nil {
		return ""
	}
	defaults := ingredientIDs(food.Selected)
	chosen := ingredientIDs(selected)

	var added, removed []string
	for _, i := range uniqueIngredients(selected) {
		if !defaults.has(i.ID) {
			added = append(added, i.Name)
		}
	}
	for _, i := range food.Selected {
		if !chosen.has(i.ID) {
			removed = append(removed, i.Name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	var parts []string
	if len(added) > 0 {
		parts = append(parts, "With "+strings.Join(added, ", ")+".")
	}
	if len(removed) > 0 {
		parts = append(parts, "Without "+strings.Join(removed, ", ")+".")
	}
	return strings.Join(parts, " ")
}
