package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus int32

const (
	StatusPlaced       OrderStatus = 0
	StatusDenied       OrderStatus = 1
	StatusReceived     OrderStatus = 2
	StatusStarted      OrderStatus = 3
	StatusWaiting      OrderStatus = 4
	StatusCompleted    OrderStatus = 5
	StatusNotCollected OrderStatus = 6
)

// TerminalStatuses are the statuses an order never leaves.
var TerminalStatuses = []OrderStatus{StatusDenied, StatusCompleted, StatusNotCollected}

func (s OrderStatus) Valid() bool {
	return s >= StatusPlaced && s <= StatusNotCollected
}

func (s OrderStatus) Terminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string {
	switch s {
	case StatusPlaced:
		return "placed"
	case StatusDenied:
		return "denied"
	case StatusReceived:
		return "received"
	case StatusStarted:
		return "started"
	case StatusWaiting:
		return "waiting"
	case StatusCompleted:
		return "completed"
	case StatusNotCollected:
		return "not_collected"
	}
	return "unknown"
}

type PaymentMethod int32

const (
	PaymentCash       PaymentMethod = 0
	PaymentGocardless PaymentMethod = 1
	PaymentPayconiq   PaymentMethod = 2
)

type PaymentStatus int32

const (
	PaymentStatusNone     PaymentStatus = 0
	PaymentStatusPending  PaymentStatus = 1
	PaymentStatusCaptured PaymentStatus = 2
	PaymentStatusFailed   PaymentStatus = 3
)

type Order struct {
	ID                int64           `gorm:"primaryKey;autoIncrement"`
	UserID            int64           `gorm:"not null;index"`
	StoreID           int64           `gorm:"not null;index"`
	Receipt           time.Time       `gorm:"not null;index"`
	Status            OrderStatus     `gorm:"not null;default:0;index"`
	Total             int64           `gorm:"not null;default:0"`
	Discount          decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	PaymentMethod     PaymentMethod   `gorm:"not null;default:0"`
	PaymentStatus     PaymentStatus   `gorm:"not null;default:0"`
	GroupID           *int64          `gorm:"index"`
	GroupOrderID      *int64          `gorm:"index"`
	DeliveryAddressID *int64
	Description       string `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	OrderedFoods []OrderedFood `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeSave(tx *gorm.DB) error {
	o.Receipt = o.Receipt.UTC()
	return nil
}

// GroupOrder wraps the orders of one group for one receipt date.
type GroupOrder struct {
	ID      int64       `gorm:"primaryKey;autoIncrement"`
	GroupID int64       `gorm:"not null;uniqueIndex:idx_group_order_group_date"`
	Date    string      `gorm:"size:10;not null;uniqueIndex:idx_group_order_group_date"`
	Receipt time.Time   `gorm:"not null"`
	Status  OrderStatus `gorm:"not null;default:0"`

	Orders []Order `gorm:"foreignKey:GroupOrderID"`
}

func (g *GroupOrder) BeforeSave(tx *gorm.DB) error {
	g.Receipt = g.Receipt.UTC()
	return nil
}

type LineStatus int32

const (
	LineOK         LineStatus = 0
	LineOutOfStock LineStatus = 1
)

type OrderedFood struct {
	ID               int64           `gorm:"primaryKey;autoIncrement"`
	OrderID          *int64          `gorm:"index"`
	TemporaryOrderID *int64          `gorm:"index"`
	OriginalID       *int64          `gorm:"index"`
	Cost             int64           `gorm:"not null"`
	Amount           decimal.Decimal `gorm:"type:decimal(7,3);not null;default:1"`
	Total            int64           `gorm:"not null;default:0"`
	UnitMultiplier   decimal.Decimal `gorm:"type:decimal(7,3);not null;default:1"`
	IsOriginal       bool            `gorm:"not null;default:false"`
	Comment          string          `gorm:"type:text"`
	Status           LineStatus      `gorm:"not null;default:0"`

	Ingredients []Ingredient `gorm:"many2many:ordered_food_ingredients"`
}

// TemporaryOrder is a user's draft basket at a store.
type TemporaryOrder struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"not null;uniqueIndex:idx_temporary_order_user_store"`
	StoreID   int64 `gorm:"not null;uniqueIndex:idx_temporary_order_user_store"`
	UpdatedAt time.Time

	OrderedFoods []OrderedFood `gorm:"foreignKey:TemporaryOrderID"`
}
