package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"lunchbreak/internal/auth"
	"lunchbreak/internal/database/models"
	"lunchbreak/internal/database/repository"
	"lunchbreak/internal/errs"
	"lunchbreak/internal/services/availability"
	"lunchbreak/internal/services/schedule"
)

const (
	STORE_CACHE_PREFIX = "lunch:store:"
	CACHE_TTL_SHORT    = 5 * time.Minute
	CACHE_TTL_MEDIUM   = 30 * time.Minute

	// maxProjection bounds the window a caller may project periods over.
	maxProjection = 8 * schedule.Week
)

func hoursCacheKey(storeID int64) string {
	return fmt.Sprintf("%s%d:hours", STORE_CACHE_PREFIX, storeID)
}

func holidaysCacheKey(storeID int64) string {
	return fmt.Sprintf("%s%d:holidays", STORE_CACHE_PREFIX, storeID)
}

type StoreHandler struct {
	db    *gorm.DB
	redis *redis.Client
	now   func() time.Time
}

func NewStoreHandler(db *gorm.DB, redisClient *redis.Client) *StoreHandler {
	return &StoreHandler{
		db:    db,
		redis: redisClient,
		now:   time.Now,
	}
}

// InvalidateStoreCaches drops every cached projection of the store.
func (s *StoreHandler) InvalidateStoreCaches(ctx context.Context, storeID int64) {
	_ = s.redis.Del(ctx, hoursCacheKey(storeID), holidaysCacheKey(storeID))
}

func checkWindow(from, to time.Time) error {
	if !to.After(from) {
		return errs.InvalidRequest.Withf("window end %s must lie after its start", to.Format(time.RFC3339))
	}
	if to.Sub(from) > maxProjection {
		return errs.InvalidRequest.Withf("window may span at most %s", maxProjection)
	}
	return nil
}

func windowField(from, to time.Time) string {
	return fmt.Sprintf("%d:%d", from.Unix(), to.Unix())
}

// cached serves field of the hash at key, computing and storing it on a
// miss. Cache failures fall through to compute.
func (s *StoreHandler) cached(ctx context.Context, key, field string, ttl time.Duration, out interface{}, compute func() (interface{}, error)) error {
	if raw, err := s.redis.HGet(ctx, key, field).Result(); err == nil {
		if err := json.Unmarshal([]byte(raw), out); err == nil {
			return nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logrus.WithError(err).WithField("key", key).Warn("Store cache read failed")
	}

	v, err := compute()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key, field, payload)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Store cache write failed")
	}
	return json.Unmarshal(payload, out)
}

// OpeningHours projects the store's merged opening windows over
// [from, to], holidays applied.
func (s *StoreHandler) OpeningHours(ctx context.Context, storeID int64, from, to time.Time) ([]schedule.Interval, error) {
	if err := checkWindow(from, to); err != nil {
		return nil, err
	}
	var intervals []schedule.Interval
	err := s.cached(ctx, hoursCacheKey(storeID), windowField(from, to), CACHE_TTL_MEDIUM, &intervals, func() (interface{}, error) {
		store, err := repository.LoadStore(s.db.WithContext(ctx), storeID)
		if err != nil {
			return nil, err
		}
		sched, err := repository.StoreSchedule(store)
		if err != nil {
			return nil, err
		}
		return sched.OpenIntervals(from, to), nil
	})
	if err != nil {
		return nil, err
	}
	return intervals, nil
}

// HolidayPeriods lists the holiday periods overlapping [from, to].
func (s *StoreHandler) HolidayPeriods(ctx context.Context, storeID int64, from, to time.Time) ([]models.HolidayPeriod, error) {
	if err := checkWindow(from, to); err != nil {
		return nil, err
	}
	var holidays []models.HolidayPeriod
	err := s.cached(ctx, holidaysCacheKey(storeID), windowField(from, to), CACHE_TTL_SHORT, &holidays, func() (interface{}, error) {
		var found []models.HolidayPeriod
		err := s.db.WithContext(ctx).
			Where("store_id = ? AND start <= ? AND \"end\" >= ?", storeID, to.UTC(), from.UTC()).
			Order("start").
			Find(&found).Error
		return found, err
	})
	if err != nil {
		return nil, err
	}
	return holidays, nil
}

// CheckOpen runs the availability gate for a prospective receipt time.
func (s *StoreHandler) CheckOpen(ctx context.Context, storeID int64, at time.Time) error {
	store, err := repository.LoadStore(s.db.WithContext(ctx), storeID)
	if err != nil {
		return err
	}
	rules, err := repository.StoreRules(store)
	if err != nil {
		return err
	}
	return availability.IsOpen(rules, at, s.now(), false)
}

type OpeningPeriodInput struct {
	Weekday  int
	Time     string
	Duration time.Duration
}

func (s *StoreHandler) CreateOpeningPeriod(ctx context.Context, actor auth.Actor, storeID int64, in OpeningPeriodInput) (*models.OpeningPeriod, error) {
	if !actor.StaffOf(storeID) {
		return nil, errs.Forbidden
	}
	start, err := schedule.ParseClock(in.Time)
	if err != nil {
		return nil, errs.InvalidRequest.Withf("%v", err)
	}
	p := schedule.WeeklyPeriod{Weekday: in.Weekday, Start: start, Duration: in.Duration}
	if err := p.Validate(); err != nil {
		return nil, errs.InvalidRequest.Withf("%v", err)
	}

	period := models.OpeningPeriod{
		StoreID:  storeID,
		Weekday:  int32(in.Weekday),
		Time:     schedule.FormatClock(start),
		Duration: in.Duration,
	}
	if err := s.db.WithContext(ctx).Create(&period).Error; err != nil {
		return nil, fmt.Errorf("failed to create opening period: %w", err)
	}
	s.InvalidateStoreCaches(ctx, storeID)
	return &period, nil
}

type HolidayPeriodInput struct {
	Description string
	Start       time.Time
	End         time.Time
	Closed      bool
}

func (s *StoreHandler) CreateHolidayPeriod(ctx context.Context, actor auth.Actor, storeID int64, in HolidayPeriodInput) (*models.HolidayPeriod, error) {
	if !actor.StaffOf(storeID) {
		return nil, errs.Forbidden
	}
	if !in.End.After(in.Start) {
		return nil, errs.InvalidRequest.Withf("holiday must end after it starts")
	}

	period := models.HolidayPeriod{
		StoreID:     storeID,
		Description: in.Description,
		Start:       in.Start,
		End:         in.End,
		Closed:      in.Closed,
	}
	if err := s.db.WithContext(ctx).Create(&period).Error; err != nil {
		return nil, fmt.Errorf("failed to create holiday period: %w", err)
	}
	s.InvalidateStoreCaches(ctx, storeID)
	return &period, nil
}

func (s *StoreHandler) DeleteOpeningPeriod(ctx context.Context, actor auth.Actor, storeID, periodID int64) error {
	return s.deletePeriod(ctx, actor, storeID, periodID, &models.OpeningPeriod{})
}

func (s *StoreHandler) DeleteHolidayPeriod(ctx context.Context, actor auth.Actor, storeID, periodID int64) error {
	return s.deletePeriod(ctx, actor, storeID, periodID, &models.HolidayPeriod{})
}

func (s *StoreHandler) deletePeriod(ctx context.Context, actor auth.Actor, storeID, periodID int64, model interface{}) error {
	if !actor.StaffOf(storeID) {
		return errs.Forbidden
	}
	res := s.db.WithContext(ctx).Where("id = ? AND store_id = ?", periodID, storeID).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.DoesNotExist.Withf("period %d does not exist", periodID)
	}
	s.InvalidateStoreCaches(ctx, storeID)
	return nil
}

// DeleteFood removes a food from the menu. A food still on an open order
// is only marked deleted and disappears once that order finishes.
func (s *StoreHandler) DeleteFood(ctx context.Context, actor auth.Actor, foodID int64) (bool, error) {
	var gone bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var menu models.Menu
		err := tx.Joins("JOIN foods ON foods.menu_id = menus.id").Where("foods.id = ?", foodID).First(&menu).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.DoesNotExist.Withf("food %d does not exist", foodID)
		}
		if err != nil {
			return err
		}
		if !actor.StaffOf(menu.StoreID) {
			return errs.Forbidden
		}
		gone, err = repository.DeleteFood(tx, foodID)
		return err
	})
	if err != nil {
		return false, err
	}
	logrus.WithFields(logrus.Fields{"food_id": foodID, "hard": gone}).Info("Food deleted")
	return gone, nil
}

func (s *StoreHandler) DeleteIngredient(ctx context.Context, actor auth.Actor, ingredientID int64) (bool, error) {
	var gone bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ingredient models.Ingredient
		err := tx.First(&ingredient, ingredientID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.DoesNotExist.Withf("ingredient %d does not exist", ingredientID)
		}
		if err != nil {
			return err
		}
		if !actor.StaffOf(ingredient.StoreID) {
			return errs.Forbidden
		}
		gone, err = repository.DeleteIngredient(tx, ingredientID)
		return err
	})
	if err != nil {
		return false, err
	}
	logrus.WithFields(logrus.Fields{"ingredient_id": ingredientID, "hard": gone}).Info("Ingredient deleted")
	return gone, nil
}
