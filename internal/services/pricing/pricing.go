package pricing

import (
	"github.com/shopspring/decimal"

	"lunchbreak/internal/errs"
)

type Mode int32

const (
	GroupCostAlways Mode = 0
	ChargeAdditions Mode = 1
	ChargeBoth      Mode = 2
)

type InputType int32

const (
	InputCount      InputType = 0
	InputWeight     InputType = 1
	InputFixedUnits InputType = 2
)

type Group struct {
	ID      int64
	Name    string
	Cost    int64
	Mode    Mode
	Minimum int
	Maximum int
}

type Ingredient struct {
	ID    int64
	Name  string
	Cost  int64
	Group Group
}

// Food is the priced view of a menu item. Selected holds the ingredients
// selected by default. Selectable holds every ingredient that may appear in
// a selection, selected or not.
type Food struct {
	ID         int64
	Cost       int64
	InputType  InputType
	Amount     decimal.Decimal
	Selected   []Ingredient
	Selectable []Ingredient
}

type idSet map[int64]struct{}

func ingredientIDs(ingredients []Ingredient) idSet {
	set := make(idSet, len(ingredients))
	for _, i := range ingredients {
		set[i.ID] = struct{}{}
	}
	return set
}

func (s idSet) has(id int64) bool {
	_, ok := s[id]
	return ok
}

// CalculateCost returns the unit cost in cents of food with the given
// ingredient selection. Group costs are charged at most once per group in
// each direction: a group that gains representation adds its cost, a group
// that loses all its selected ingredients subtracts it. Ingredient costs are
// added in ChargeAdditions and ChargeBoth modes and subtracted only in
// ChargeBoth mode.
func CalculateCost(selected []Ingredient, food Food) int64 {
	defaults := ingredientIDs(food.Selected)
	chosen := ingredientIDs(selected)

	defaultGroups := make(map[int64]Group)
	for _, i := range food.Selected {
		defaultGroups[i.Group.ID] = i.Group
	}
	chosenGroups := make(map[int64]struct{})
	for _, i := range selected {
		chosenGroups[i.Group.ID] = struct{}{}
	}

	cost := food.Cost

	addedGroups := make(map[int64]Group)
	for _, i := range uniqueIngredients(selected) {
		if defaults.has(i.ID) {
			continue
		}
		if i.Group.Mode == ChargeAdditions || i.Group.Mode == ChargeBoth {
			cost += i.Cost
		}
		if _, ok := defaultGroups[i.Group.ID]; !ok {
			addedGroups[i.Group.ID] = i.Group
		}
	}
	for _, g := range addedGroups {
		cost += g.Cost
	}

	for _, i := range food.Selected {
		if chosen.has(i.ID) {
			continue
		}
		if i.Group.Mode == ChargeBoth {
			cost -= i.Cost
		}
	}
	for id, g := range defaultGroups {
		if _, ok := chosenGroups[id]; !ok {
			cost -= g.Cost
		}
	}

	return cost
}

func uniqueIngredients(ingredients []Ingredient) []Ingredient {
	seen := make(idSet, len(ingredients))
	out := make([]Ingredient, 0, len(ingredients))
	for _, i := range ingredients {
		if seen.has(i.ID) {
			continue
		}
		seen[i.ID] = struct{}{}
		out = append(out, i)
	}
	return out
}

// IsOriginal reports whether the selection equals the default selection.
// A nil selection means the client kept the defaults.
func IsOriginal(selected []Ingredient, food Food) bool {
	if selected == nil {
		return true
	}
	chosen := ingredientIDs(selected)
	defaults := ingredientIDs(food.Selected)
	if len(chosen) != len(defaults) {
		return false
	}
	for id := range chosen {
		if !defaults.has(id) {
			return false
		}
	}
	return true
}

// UnitMultiplier is the per-unit weight for fixed weight foods, 1 otherwise.
func UnitMultiplier(food Food) decimal.Decimal {
	if food.InputType == InputFixedUnits {
		return food.Amount
	}
	return decimal.NewFromInt(1)
}

// ExpectedTotal is the amount a client must submit for a line item.
func ExpectedTotal(baseCost int64, food Food, amount decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(baseCost).
		Mul(amount).
		Mul(UnitMultiplier(food)).
		Round(2)
}

func CheckTotal(baseCost int64, food Food, amount, clientTotal decimal.Decimal) error {
	expected := ExpectedTotal(baseCost, food, amount)
	if !expected.Equal(clientTotal) {
		return errs.CostCheckFailed.Withf("%s != %s", expected.StringFixed(2), clientTotal.StringFixed(2))
	}
	return nil
}

// LineTotal is the stored total of a line item in cents, rounded up.
func LineTotal(unitCost int64, amount, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(unitCost).
		Mul(amount).
		Mul(multiplier).
		Ceil().
		IntPart()
}

// OrderTotal applies a percentage discount and truncates to whole cents.
func OrderTotal(lineTotals []int64, discount decimal.Decimal) int64 {
	sum := decimal.Zero
	for _, t := range lineTotals {
		sum = sum.Add(decimal.NewFromInt(t))
	}
	hundred := decimal.NewFromInt(100)
	return sum.Mul(hundred.Sub(discount)).Div(hundred).Truncate(0).IntPart()
}
