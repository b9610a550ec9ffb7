package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm/clause"

	"lunchbreak/internal/auth"
	"lunchbreak/internal/database/dbtest"
	"lunchbreak/internal/database/models"
	"lunchbreak/internal/errs"
	"lunchbreak/internal/gateway/middleware"
	"lunchbreak/internal/jobs"
	ordering "lunchbreak/internal/services/ordering/handler"
	stores "lunchbreak/internal/services/stores/handler"
	"lunchbreak/internal/utils"
)

var secret = []byte("gateway-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router *gin.Engine
	store  models.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db := dbtest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := models.Store{Name: "Frituur", Timezone: "UTC", Wait: 15 * time.Minute, PreorderTime: "12:00", CashEnabled: true}
	if err := db.Omit(clause.Associations).Create(&store).Error; err != nil {
		t.Fatal(err)
	}
	// Every day, all day.
	for wd := int32(1); wd <= 7; wd++ {
		db.Create(&models.OpeningPeriod{StoreID: store.ID, Weekday: wd, Time: "00:00", Duration: 24 * time.Hour})
	}

	orderHandler := NewOrderHTTPHandler(ordering.NewOrderHandler(db,
		jobs.NewRelay(db, jobs.NewRedisQueue(rdb, "test:jobs")), jobs.NewNotifier(rdb)))
	storeHandler := NewStoreHTTPHandler(stores.NewStoreHandler(db, rdb))

	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/stores/:id/open", storeHandler.CheckOpen)
	r.GET("/stores/:id/opening-periods", storeHandler.GetOpeningHours)
	protected := r.Group("/", middleware.JWTAuth(secret))
	protected.POST("/orders", orderHandler.CreateOrder)
	protected.GET("/orders/:id", orderHandler.GetOrder)
	protected.POST("/stores/:id/opening-periods", storeHandler.CreateOpeningPeriod)

	return &testAPI{router: r, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, body string, actor *auth.Actor) (int, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, _, err := utils.GenerateToken(secret, *actor, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: undecodable body %q", method, path, w.Body.String())
	}
	return w.Code, resp
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  *errs.Error
		want int
	}{
		{errs.LeadTimeNotMet, http.StatusBadRequest},
		{errs.MaxIngredientsExceed, http.StatusBadRequest},
		{errs.CostCheckFailed, http.StatusBadRequest},
		{errs.InvalidTransition, http.StatusBadRequest},
		{errs.InvalidRequest, http.StatusBadRequest},
		{errs.DoesNotExist, http.StatusNotFound},
		{errs.NotGroupMember, http.StatusForbidden},
		{errs.Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err.Kind); got != tt.want {
			t.Errorf("statusOf(%d) = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, fmt.Errorf("query failed: %w", errors.New("connection reset")))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "connection reset") {
		t.Errorf("internal detail leaked: %s", w.Body.String())
	}
}

func TestCheckOpenEndpoint(t *testing.T) {
	api := newTestAPI(t)
	future := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	code, resp := api.do(t, http.MethodGet, fmt.Sprintf("/stores/%d/open?at=%s", api.store.ID, future), "", nil)
	if code != http.StatusOK || !resp.Success {
		t.Errorf("future instant: %d %+v", code, resp)
	}

	code, resp = api.do(t, http.MethodGet, fmt.Sprintf("/stores/%d/open?at=%s", api.store.ID, past), "", nil)
	if code != http.StatusBadRequest || resp.Code != errs.PastOrderDenied.Code {
		t.Errorf("past instant: %d %+v", code, resp)
	}

	code, resp = api.do(t, http.MethodGet, "/stores/abc/open", "", nil)
	if code != http.StatusBadRequest || resp.Code != errs.InvalidRequest.Code {
		t.Errorf("bad id: %d %+v", code, resp)
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	api := newTestAPI(t)
	customer := &auth.Actor{UserID: 11}

	code, _ := api.do(t, http.MethodPost, "/orders", `{"store_id": 1}`, nil)
	if code != http.StatusUnauthorized {
		t.Errorf("anonymous order: %d", code)
	}

	code, resp := api.do(t, http.MethodPost, "/orders", `{"store_id": "x"}`, customer)
	if code != http.StatusBadRequest || resp.Code != errs.InvalidRequest.Code {
		t.Errorf("malformed body: %d %+v", code, resp)
	}

	receipt := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{"store_id": %d, "receipt": %q, "items": []}`, api.store.ID, receipt)
	code, resp = api.do(t, http.MethodPost, "/orders", body, customer)
	if code != http.StatusBadRequest || resp.Code != errs.EmptyOrder.Code {
		t.Errorf("empty order: %d %+v", code, resp)
	}

	code, resp = api.do(t, http.MethodGet, "/orders/999", "", customer)
	if code != http.StatusNotFound || resp.Code != errs.DoesNotExist.Code {
		t.Errorf("missing order: %d %+v", code, resp)
	}
}

func TestCreateOpeningPeriodEndpoint(t *testing.T) {
	api := newTestAPI(t)
	path := fmt.Sprintf("/stores/%d/opening-periods", api.store.ID)
	body := `{"weekday": 3, "time": "11:30", "duration": "2h30m"}`

	code, resp := api.do(t, http.MethodPost, path, body, &auth.Actor{UserID: 4})
	if code != http.StatusForbidden {
		t.Errorf("customer: %d %+v", code, resp)
	}

	storeID := api.store.ID
	code, resp = api.do(t, http.MethodPost, path, body, &auth.Actor{UserID: 5, StoreID: &storeID})
	if code != http.StatusCreated || !resp.Success {
		t.Fatalf("staff: %d %+v", code, resp)
	}
	data := resp.Data.(map[string]interface{})
	if data["time"] != "11:30" || data["duration"] != "2h30m0s" {
		t.Errorf("created period = %v", data)
	}

	code, resp = api.do(t, http.MethodPost, path, `{"weekday": 9, "time": "11:30", "duration": "1h"}`, &auth.Actor{UserID: 5, StoreID: &storeID})
	if code != http.StatusBadRequest {
		t.Errorf("weekday 9: %d %+v", code, resp)
	}
}
