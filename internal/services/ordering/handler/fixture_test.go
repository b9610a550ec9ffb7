package handler

import (
	"encoding/json"
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
	"lunchbreak/internal/jobs"
)

var brussels = mustLocation("Europe/Brussels")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// monday is 2024-01-08, a Monday, at the given wall clock in Brussels.
func monday(hour, min int) time.Time {
	return time.Date(2024, 1, 8, hour, min, 0, 0, brussels)
}

type fixture struct {
	t       *testing.T
	db      *gorm.DB
	rdb     *redis.Client
	queue   *jobs.RedisQueue
	handler *OrderHandler

	store   models.Store
	burger  models.Food
	cheese  models.Ingredient
	bacon   models.Ingredient
	userID  int64
	staffOf int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	queue := jobs.NewRedisQueue(rdb, "test:jobs")
	h := NewOrderHandler(db, jobs.NewRelay(db, queue), jobs.NewNotifier(rdb))
	h.now = func() time.Time { return monday(9, 0) }

	f := &fixture{t: t, db: db, rdb: rdb, queue: queue, handler: h}
	f.seed()
	return f
}

func (f *fixture) create(v interface{}) {
	f.t.Helper()
	if err := f.db.Omit(clause.Associations).Create(v).Error; err != nil {
		f.t.Fatalf("create %T: %v", v, err)
	}
}

func (f *fixture) seed() {
	f.store = models.Store{
		Name:              "De Frietketel",
		Timezone:          "Europe/Brussels",
		Wait:              30 * time.Minute,
		PreorderTime:      "12:00",
		CashEnabled:       true,
		GocardlessEnabled: true,
	}
	f.create(&f.store)
	for weekday := int32(1); weekday <= 7; weekday++ {
		f.create(&models.OpeningPeriod{StoreID: f.store.ID, Weekday: weekday, Time: "08:00", Duration: 10 * time.Hour})
	}

	user := models.User{Name: "Robin", Phone: "+32470000001"}
	f.create(&user)
	f.userID = user.ID
	f.staffOf = f.store.ID

	menu := models.Menu{StoreID: f.store.ID, Name: "Burgers"}
	f.create(&menu)
	foodType := models.FoodType{StoreID: f.store.ID, Name: "burger", InputType: models.InputCount, PreorderTime: "12:00"}
	f.create(&foodType)

	toppings := models.IngredientGroup{
		StoreID:     f.store.ID,
		FoodTypeID:  foodType.ID,
		Name:        "toppings",
		Maximum:     2,
		Calculation: models.CalculationAdditions,
	}
	f.create(&toppings)
	f.cheese = models.Ingredient{StoreID: f.store.ID, GroupID: toppings.ID, Name: "cheese", Cost: 50}
	f.create(&f.cheese)
	f.bacon = models.Ingredient{StoreID: f.store.ID, GroupID: toppings.ID, Name: "bacon", Cost: 75}
	f.create(&f.bacon)

	f.burger = models.Food{
		MenuID:      menu.ID,
		FoodTypeID:  foodType.ID,
		Name:        "Cheeseburger",
		Cost:        500,
		Amount:      decimal.NewFromInt(1),
		Enabled:     true,
		Commentable: true,
	}
	f.create(&f.burger)
	f.create(&models.IngredientRelation{FoodID: f.burger.ID, IngredientID: f.cheese.ID, Selected: true})
	f.create(&models.IngredientRelation{FoodID: f.burger.ID, IngredientID: f.bacon.ID})
}

func (f *fixture) staff() auth.Actor {
	storeID := f.staffOf
	return auth.Actor{UserID: 999, StoreID: &storeID}
}

func (f *fixture) customer() auth.Actor {
	return auth.Actor{UserID: f.userID}
}

func (f *fixture) defaultBurgers(n int64) LineItem {
	return LineItem{
		OriginalID: f.burger.ID,
		Amount:     decimal.NewFromInt(n),
		Total:      decimal.NewFromInt(500 * n),
	}
}

func (f *fixture) baconBurger() LineItem {
	return LineItem{
		OriginalID:    f.burger.ID,
		Amount:        decimal.NewFromInt(1),
		IngredientIDs: []int64{f.cheese.ID, f.bacon.ID},
		Total:         decimal.NewFromInt(575),
	}
}

func (f *fixture) order(items ...LineItem) PlaceOrder {
	return PlaceOrder{
		UserID:        f.userID,
		StoreID:       f.store.ID,
		Receipt:       monday(12, 0),
		PaymentMethod: models.PaymentCash,
		Items:         items,
	}
}

func (f *fixture) count(model interface{}, query string, args ...interface{}) int64 {
	f.t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		f.t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func (f *fixture) jobsOfKind(orderID int64, kind string) int64 {
	f.t.Helper()
	var staged []models.OutboxJob
	if err := f.db.Where("kind = ?", kind).Find(&staged).Error; err != nil {
		f.t.Fatalf("outbox: %v", err)
	}
	var n int64
	for _, s := range staged {
		var job jobs.Job
		if err := json.Unmarshal([]byte(s.Payload), &job); err != nil {
			f.t.Fatalf("decode job: %v", err)
		}
		if job.OrderID == orderID {
			n++
		}
	}
	return n
}
