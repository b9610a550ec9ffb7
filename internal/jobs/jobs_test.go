package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"lunchbreak/internal/database/dbtest"
	"lunchbreak/internal/database/models"
	"lunchbreak/internal/payments"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func subscribe(t *testing.T, rdb *redis.Client, channel string) *redis.PubSub {
	t.Helper()
	sub := rdb.Subscribe(context.Background(), channel)
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe %s: %v", channel, err)
	}
	t.Cleanup(func() { sub.Close() })
	return sub
}

func receive(t *testing.T, sub *redis.PubSub) Notification {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var n Notification
	if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	return n
}

func TestRelayOnlyMovesCommittedJobs(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	queue := NewRedisQueue(newRedis(t), "test:jobs")
	relay := NewRelay(db, queue)

	rolledBack := errors.New("rollback")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := Stage(tx, Job{Kind: KindNotifyUser, OrderID: 1}); err != nil {
			return err
		}
		return rolledBack
	})
	if !errors.Is(err, rolledBack) {
		t.Fatalf("transaction: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := Stage(tx, Job{Kind: KindNotifyUser, OrderID: 2, UserID: 7}); err != nil {
			return err
		}
		return Stage(tx, Job{Kind: KindNotifyStaff, OrderID: 2, StoreID: 3})
	})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	n, err := relay.Flush(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Flush() = %d, %v, want 2", n, err)
	}
	if n, err := relay.Flush(ctx); err != nil || n != 0 {
		t.Fatalf("second Flush() = %d, %v, want 0", n, err)
	}

	first, err := queue.Pop(ctx, 100*time.Millisecond)
	if err != nil || first == nil {
		t.Fatalf("Pop() = %v, %v", first, err)
	}
	if first.Kind != KindNotifyUser || first.UserID != 7 || first.ID == "" {
		t.Errorf("first job = %+v, want the notify_user job", first)
	}
	second, err := queue.Pop(ctx, 100*time.Millisecond)
	if err != nil || second == nil || second.Kind != KindNotifyStaff {
		t.Fatalf("second Pop() = %+v, %v", second, err)
	}
	if empty, err := queue.Pop(ctx, 100*time.Millisecond); err != nil || empty != nil {
		t.Fatalf("Pop() on empty queue = %+v, %v", empty, err)
	}
}

type fakeCapturer struct {
	err   error
	calls []payments.CaptureRequest
}

func (f *fakeCapturer) Capture(ctx context.Context, req payments.CaptureRequest) error {
	f.calls = append(f.calls, req)
	return f.err
}

func seedPendingOrder(t *testing.T, db *gorm.DB, status models.PaymentStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:        7,
		StoreID:       3,
		Receipt:       time.Now().Add(time.Hour),
		Status:        models.StatusWaiting,
		Total:         1250,
		PaymentMethod: models.PaymentGocardless,
		PaymentStatus: status,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	link := &models.PaymentLink{UserID: 7, StoreID: 3, MandateID: "MD123", Confirmed: true}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("create payment link: %v", err)
	}
	return order
}

func TestWorkerCapturesPendingPayment(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	rdb := newRedis(t)
	capturer := &fakeCapturer{}
	worker := NewWorker(db, NewRedisQueue(rdb, "test:jobs"), NewNotifier(rdb), capturer, "EUR")

	order := seedPendingOrder(t, db, models.PaymentStatusPending)
	job := CapturePayment(order)
	if err := worker.Handle(ctx, &job); err != nil {
		t.Fatalf("Handle() = %v", err)
	}
	// A redelivered job must not capture twice.
	if err := worker.Handle(ctx, &job); err != nil {
		t.Fatalf("second Handle() = %v", err)
	}

	if len(capturer.calls) != 1 {
		t.Fatalf("capture calls = %d, want 1", len(capturer.calls))
	}
	call := capturer.calls[0]
	if call.MandateID != "MD123" || call.Amount != 1250 || call.Currency != "EUR" || call.Method != "gocardless" {
		t.Errorf("capture request = %+v", call)
	}

	var got models.Order
	db.First(&got, order.ID)
	if got.PaymentStatus != models.PaymentStatusCaptured {
		t.Errorf("payment status = %d, want captured", got.PaymentStatus)
	}
}

func TestWorkerFallsBackToCash(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	rdb := newRedis(t)
	capturer := &fakeCapturer{err: errors.New("gateway down")}
	worker := NewWorker(db, NewRedisQueue(rdb, "test:jobs"), NewNotifier(rdb), capturer, "EUR")

	order := seedPendingOrder(t, db, models.PaymentStatusPending)
	userSub := subscribe(t, rdb, UserChannel(order.UserID))
	staffSub := subscribe(t, rdb, StaffChannel(order.StoreID))

	job := CapturePayment(order)
	if err := worker.Handle(ctx, &job); err != nil {
		t.Fatalf("Handle() = %v", err)
	}

	var got models.Order
	db.First(&got, order.ID)
	if got.PaymentMethod != models.PaymentCash || got.PaymentStatus != models.PaymentStatusFailed {
		t.Errorf("order payment = method %d status %d, want cash/failed", got.PaymentMethod, got.PaymentStatus)
	}
	if n := receive(t, userSub); n.OrderID != order.ID {
		t.Errorf("user notification = %+v", n)
	}
	if n := receive(t, staffSub); n.OrderID != order.ID {
		t.Errorf("staff notification = %+v", n)
	}
}

func TestWorkerSkipsSettledPayment(t *testing.T) {
	db := dbtest.Open(t)
	rdb := newRedis(t)
	capturer := &fakeCapturer{}
	worker := NewWorker(db, NewRedisQueue(rdb, "test:jobs"), NewNotifier(rdb), capturer, "EUR")

	order := seedPendingOrder(t, db, models.PaymentStatusCaptured)
	job := CapturePayment(order)
	if err := worker.Handle(context.Background(), &job); err != nil {
		t.Fatalf("Handle() = %v", err)
	}
	if len(capturer.calls) != 0 {
		t.Errorf("settled order captured %d times", len(capturer.calls))
	}
}

func TestWorkerPublishesNotifications(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	rdb := newRedis(t)
	worker := NewWorker(db, NewRedisQueue(rdb, "test:jobs"), NewNotifier(rdb), &fakeCapturer{}, "EUR")

	order := &models.Order{ID: 42, UserID: 9, StoreID: 4}
	userSub := subscribe(t, rdb, UserChannel(9))
	staffSub := subscribe(t, rdb, StaffChannel(4))

	for _, job := range []Job{NotifyUser(order, "ready"), NotifyStaff(order, "new order")} {
		job := job
		if err := worker.Handle(ctx, &job); err != nil {
			t.Fatalf("Handle(%s) = %v", job.Kind, err)
		}
	}

	if n := receive(t, userSub); n.Message != "ready" || n.OrderID != 42 {
		t.Errorf("user notification = %+v", n)
	}
	if n := receive(t, staffSub); n.Message != "new order" {
		t.Errorf("staff notification = %+v", n)
	}

	if err := worker.Handle(ctx, &Job{Kind: "bogus"}); err == nil {
		t.Error("unknown job kind accepted")
	}
}
