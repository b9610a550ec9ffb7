package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lunchbreak/internal/auth"
	"lunchbreak/internal/database/dbtest"
	"lunchbreak/internal/database/models"
	"lunchbreak/internal/errs"
)

func setup(t *testing.T) (*StoreHandler, *gorm.DB, *miniredis.Miniredis, models.Store) {
	t.Helper()
	db := dbtest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := models.Store{Name: "Broodjesbar", Timezone: "UTC", Wait: 15 * time.Minute, PreorderTime: "12:00", CashEnabled: true}
	if err := db.Omit(clause.Associations).Create(&store).Error; err != nil {
		t.Fatal(err)
	}
	h := NewStoreHandler(db, rdb)
	h.now = func() time.Time { return time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC) }
	return h, db, mr, store
}

func staffOf(storeID int64) auth.Actor {
	return auth.Actor{UserID: 1, StoreID: &storeID}
}

func utc(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func TestOpeningHoursCachedUntilPeriodsChange(t *testing.T) {
	h, _, mr, store := setup(t)
	ctx := context.Background()
	staff := staffOf(store.ID)

	if _, err := h.CreateOpeningPeriod(ctx, staff, store.ID, OpeningPeriodInput{Weekday: 1, Time: "10:00", Duration: 4 * time.Hour}); err != nil {
		t.Fatalf("CreateOpeningPeriod() = %v", err)
	}

	from, to := utc(8, 0), utc(15, 0)
	hours, err := h.OpeningHours(ctx, store.ID, from, to)
	if err != nil {
		t.Fatalf("OpeningHours() = %v", err)
	}
	if len(hours) != 1 || !hours[0].Start.Equal(utc(8, 10)) || !hours[0].End.Equal(utc(8, 14)) {
		t.Fatalf("hours = %+v, want Monday 10:00-14:00", hours)
	}
	if !mr.Exists(hoursCacheKey(store.ID)) {
		t.Fatal("projection was not cached")
	}

	if _, err := h.CreateHolidayPeriod(ctx, staff, store.ID, HolidayPeriodInput{
		Description: "Inventory",
		Start:       utc(8, 0),
		End:         utc(9, 0),
		Closed:      true,
	}); err != nil {
		t.Fatalf("CreateHolidayPeriod() = %v", err)
	}
	if mr.Exists(hoursCacheKey(store.ID)) {
		t.Error("cache survived a holiday change")
	}

	hours, err = h.OpeningHours(ctx, store.ID, from, to)
	if err != nil {
		t.Fatalf("OpeningHours() = %v", err)
	}
	if len(hours) != 0 {
		t.Errorf("hours during closed holiday = %+v, want none", hours)
	}

	holidays, err := h.HolidayPeriods(ctx, store.ID, from, to)
	if err != nil || len(holidays) != 1 || holidays[0].Description != "Inventory" {
		t.Errorf("HolidayPeriods() = %+v, %v", holidays, err)
	}
}

func TestOpeningHoursRejectsBadWindow(t *testing.T) {
	h, _, _, store := setup(t)
	ctx := context.Background()
	if _, err := h.OpeningHours(ctx, store.ID, utc(9, 0), utc(8, 0)); !errors.Is(err, errs.InvalidRequest) {
		t.Errorf("reversed window = %v", err)
	}
	if _, err := h.OpeningHours(ctx, store.ID, utc(1, 0), utc(1, 0).AddDate(0, 3, 0)); !errors.Is(err, errs.InvalidRequest) {
		t.Errorf("oversized window = %v", err)
	}
}

func TestCreateOpeningPeriodValidation(t *testing.T) {
	h, _, _, store := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor auth.Actor
		in    OpeningPeriodInput
		want  error
	}{
		{"customer", auth.Actor{UserID: 5}, OpeningPeriodInput{Weekday: 1, Time: "10:00", Duration: time.Hour}, errs.Forbidden},
		{"weekday zero", staffOf(store.ID), OpeningPeriodInput{Weekday: 0, Time: "10:00", Duration: time.Hour}, errs.InvalidRequest},
		{"bad clock", staffOf(store.ID), OpeningPeriodInput{Weekday: 1, Time: "25:00", Duration: time.Hour}, errs.InvalidRequest},
		{"longer than a week", staffOf(store.ID), OpeningPeriodInput{Weekday: 1, Time: "10:00", Duration: 8 * 24 * time.Hour}, errs.InvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.CreateOpeningPeriod(ctx, tt.actor, store.ID, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("CreateOpeningPeriod() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCheckOpen(t *testing.T) {
	h, _, _, store := setup(t)
	ctx := context.Background()
	if _, err := h.CreateOpeningPeriod(ctx, staffOf(store.ID), store.ID, OpeningPeriodInput{Weekday: 1, Time: "08:00", Duration: 10 * time.Hour}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		at   time.Time
		want error
	}{
		{utc(8, 12), nil},
		{utc(8, 8), errs.PastOrderDenied},
		{time.Date(2024, 1, 8, 9, 10, 0, 0, time.UTC), errs.LeadTimeNotMet},
		{utc(8, 19), errs.StoreClosed},
		{utc(9, 12), errs.StoreClosed},
	}
	for _, tt := range tests {
		err := h.CheckOpen(ctx, store.ID, tt.at)
		if tt.want == nil && err != nil {
			t.Errorf("CheckOpen(%s) = %v", tt.at, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("CheckOpen(%s) = %v, want %v", tt.at, err, tt.want)
		}
	}
}

func TestDeleteFood(t *testing.T) {
	h, db, _, store := setup(t)
	ctx := context.Background()

	menu := models.Menu{StoreID: store.ID, Name: "Broodjes"}
	db.Create(&menu)
	foodType := models.FoodType{StoreID: store.ID, Name: "broodje", PreorderTime: "12:00"}
	db.Create(&foodType)
	food := models.Food{MenuID: menu.ID, FoodTypeID: foodType.ID, Name: "Smos", Cost: 450, Amount: decimal.NewFromInt(1), Enabled: true}
	if err := db.Omit(clause.Associations).Create(&food).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := h.DeleteFood(ctx, staffOf(store.ID+1), food.ID); !errors.Is(err, errs.Forbidden) {
		t.Fatalf("other store DeleteFood() = %v, want forbidden", err)
	}

	order := models.Order{UserID: 3, StoreID: store.ID, Receipt: utc(8, 12), Status: models.StatusReceived}
	db.Omit(clause.Associations).Create(&order)
	db.Create(&models.OrderedFood{OrderID: &order.ID, OriginalID: &food.ID, Cost: 450, Amount: decimal.NewFromInt(1), UnitMultiplier: decimal.NewFromInt(1), Total: 450})

	gone, err := h.DeleteFood(ctx, staffOf(store.ID), food.ID)
	if err != nil || gone {
		t.Fatalf("DeleteFood() = %v, %v, want soft delete", gone, err)
	}
	var got models.Food
	if err := db.First(&got, food.ID).Error; err != nil || !got.Deleted {
		t.Fatalf("food after soft delete = %+v, %v", got, err)
	}

	db.Model(&order).Update("status", models.StatusCompleted)
	gone, err = h.DeleteFood(ctx, staffOf(store.ID), food.ID)
	if err != nil || !gone {
		t.Fatalf("DeleteFood() after completion = %v, %v, want hard delete", gone, err)
	}
	if _, err := h.DeleteFood(ctx, staffOf(store.ID), food.ID); !errors.Is(err, errs.DoesNotExist) {
		t.Errorf("DeleteFood(gone) = %v, want not found", err)
	}
}
