package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Menu struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	StoreID   int64  `gorm:"not null;index"`
	Name      string `gorm:"size:255;not null"`
	CreatedAt time.Time
}

// FoodType input semantics.
const (
	InputCount      int32 = 0
	InputWeight     int32 = 1
	InputFixedUnits int32 = 2
)

type FoodType struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	StoreID      int64  `gorm:"not null;index"`
	Name         string `gorm:"size:255;not null"`
	InputType    int32  `gorm:"not null;default:0"`
	PreorderTime string `gorm:"size:8;not null;default:'12:00'"`
	PreorderDays *int32
}

type Quantity struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	FoodTypeID int64           `gorm:"not null;uniqueIndex:idx_quantity_foodtype_store"`
	StoreID    int64           `gorm:"not null;uniqueIndex:idx_quantity_foodtype_store"`
	Minimum    decimal.Decimal `gorm:"type:decimal(7,3);not null"`
	Maximum    decimal.Decimal `gorm:"type:decimal(7,3);not null"`
}

// IngredientGroup calculation modes.
const (
	CalculationGroupCostAlways int32 = 0
	CalculationAdditions       int32 = 1
	CalculationBoth            int32 = 2
)

type IngredientGroup struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	StoreID     int64  `gorm:"not null;index"`
	FoodTypeID  int64  `gorm:"not null;index"`
	Name        string `gorm:"size:255;not null"`
	Minimum     int32  `gorm:"not null;default:0"`
	Maximum     int32  `gorm:"not null;default:0"`
	Cost        int64  `gorm:"not null;default:0"`
	Calculation int32  `gorm:"not null;default:0"`

	Ingredients []Ingredient `gorm:"foreignKey:GroupID"`
}

type Ingredient struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	StoreID int64  `gorm:"not null;index"`
	GroupID int64  `gorm:"not null;index"`
	Name    string `gorm:"size:255;not null"`
	Cost    int64  `gorm:"not null;default:0"`
	Deleted bool   `gorm:"not null;default:false;index"`

	Group IngredientGroup `gorm:"foreignKey:GroupID"`
}

type Food struct {
	ID               int64           `gorm:"primaryKey;autoIncrement"`
	MenuID           int64           `gorm:"not null;index"`
	FoodTypeID       int64           `gorm:"not null;index"`
	Name             string          `gorm:"size:255;not null"`
	Cost             int64           `gorm:"not null"`
	Amount           decimal.Decimal `gorm:"type:decimal(7,3);not null;default:1"`
	Enabled          bool            `gorm:"not null"`
	Commentable      bool            `gorm:"not null;default:false"`
	PreorderDisabled bool            `gorm:"not null;default:false"`
	PreorderDays     *int32
	PreorderTime     *string `gorm:"size:8"`
	Deleted          bool    `gorm:"not null;default:false;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Menu                Menu                 `gorm:"foreignKey:MenuID"`
	FoodType            FoodType             `gorm:"foreignKey:FoodTypeID"`
	IngredientRelations []IngredientRelation `gorm:"foreignKey:FoodID"`
	IngredientGroups    []IngredientGroup    `gorm:"many2many:food_ingredient_groups"`
}

// IngredientRelation links an ingredient to a food, selected or not by
// default.
type IngredientRelation struct {
	FoodID       int64 `gorm:"primaryKey"`
	IngredientID int64 `gorm:"primaryKey"`
	Selected     bool  `gorm:"not null;default:false"`

	Ingredient Ingredient `gorm:"foreignKey:IngredientID"`
}
