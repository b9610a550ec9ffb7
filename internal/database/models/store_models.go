package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"lunchbreak/internal/errs"
)

type Store struct {
	ID                int64         `gorm:"primaryKey;autoIncrement"`
	Name              string        `gorm:"size:255;not null"`
	Timezone          string        `gorm:"size:64;not null;default:'Europe/Brussels'"`
	Wait              time.Duration `gorm:"not null"`
	PreorderTime      string        `gorm:"size:8;not null;default:'12:00'"`
	SeatsMax          int32         `gorm:"not null;default:0"`
	CashEnabled       bool          `gorm:"not null"`
	GocardlessEnabled bool          `gorm:"not null;default:false"`
	PayconiqEnabled   bool          `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Regions        []Region        `gorm:"many2many:store_regions"`
	OpeningPeriods []OpeningPeriod `gorm:"foreignKey:StoreID"`
	HolidayPeriods []HolidayPeriod `gorm:"foreignKey:StoreID"`
}

func (s *Store) BeforeSave(tx *gorm.DB) error {
	if s.Wait < 0 {
		return errs.InvalidRequest.Withf("store wait must not be negative, got %s", s.Wait)
	}
	return nil
}

// Region is a delivery area identified by postcode.
type Region struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Country  string `gorm:"size:2;not null;default:'BE'"`
	Postcode string `gorm:"size:20;not null;index"`
}

type OpeningPeriod struct {
	ID       int64         `gorm:"primaryKey;autoIncrement"`
	StoreID  int64         `gorm:"not null;index"`
	Weekday  int32         `gorm:"not null"`
	Time     string        `gorm:"size:8;not null"`
	Duration time.Duration `gorm:"not null"`
}

type HolidayPeriod struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	StoreID     int64     `gorm:"not null;index"`
	Description string    `gorm:"size:255"`
	Start       time.Time `gorm:"not null;index"`
	End         time.Time `gorm:"not null;index"`
	Closed      bool      `gorm:"not null"`
}

func (h *HolidayPeriod) BeforeSave(tx *gorm.DB) error {
	h.Start = h.Start.UTC()
	h.End = h.End.UTC()
	return nil
}

type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:255;not null"`
	Phone     string `gorm:"size:32;uniqueIndex"`
	CreatedAt time.Time
}

type Address struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	UserID   int64  `gorm:"not null;index"`
	Country  string `gorm:"size:2;not null;default:'BE'"`
	City     string `gorm:"size:255"`
	Street   string `gorm:"size:255"`
	Number   string `gorm:"size:10"`
	Postcode string `gorm:"size:20;not null"`
}

// PaymentLink holds the gateway mandate of a user at a store.
type PaymentLink struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    int64  `gorm:"not null;uniqueIndex:idx_payment_link_user_store"`
	StoreID   int64  `gorm:"not null;uniqueIndex:idx_payment_link_user_store"`
	MandateID string `gorm:"size:64"`
	Confirmed bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Group is a recurring order group with a shared daily receipt time.
type Group struct {
	ID                int64           `gorm:"primaryKey;autoIncrement"`
	StoreID           int64           `gorm:"not null;index"`
	Name              string          `gorm:"size:255;not null"`
	Deadline          string          `gorm:"size:8;not null;default:'12:00'"`
	Delay             time.Duration   `gorm:"not null"`
	Discount          decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	PaymentOnlineOnly bool            `gorm:"not null;default:false"`
	CreatedAt         time.Time

	Members []User `gorm:"many2many:group_members"`
}
