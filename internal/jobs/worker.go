package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"lunchbreak/internal/database/models"
	"lunchbreak/internal/payments"
)

const popTimeout = 5 * time.Second

// HealthService is the gRPC health service name of the worker process.
const HealthService = "lunchbreak.worker"

type Worker struct {
	db       *gorm.DB
	queue    *RedisQueue
	notifier *Notifier
	capturer payments.Capturer
	currency string
}

func NewWorker(db *gorm.DB, queue *RedisQueue, notifier *Notifier, capturer payments.Capturer, currency string) *Worker {
	return &Worker{db: db, queue: queue, notifier: notifier, capturer: capturer, currency: currency}
}

// Run consumes the queue until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Pop(ctx, popTimeout)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logrus.WithError(err).Warn("queue pop failed")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		log := logrus.WithFields(logrus.Fields{"job_id": job.ID, "kind": job.Kind, "order_id": job.OrderID})
		if err := w.Handle(ctx, job); err != nil {
			log.WithError(err).Error("job failed")
			continue
		}
		log.Debug("job done")
	}
}

func (w *Worker) Handle(ctx context.Context, job *Job) error {
	switch job.Kind {
	case KindNotifyUser:
		return w.notifier.NotifyUser(ctx, job.UserID, job.OrderID, job.Message)
	case KindNotifyStaff:
		return w.notifier.NotifyStaff(ctx, job.StoreID, job.OrderID, job.Message)
	case KindCapturePayment:
		return w.capture(ctx, job)
	}
	return fmt.Errorf("unknown job kind %q", job.Kind)
}

// capture runs at most once per order: only an order whose payment is
// pending is captured, and the outcome moves it out of pending.
func (w *Worker) capture(ctx context.Context, job *Job) error {
	var order models.Order
	if err := w.db.WithContext(ctx).First(&order, job.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithField("order_id", job.OrderID).Warn("capture for unknown order skipped")
			return nil
		}
		return err
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		return nil
	}

	req := payments.CaptureRequest{
		OrderID:  order.ID,
		Method:   methodName(order.PaymentMethod),
		Amount:   order.Total,
		Currency: w.currency,
	}
	var link models.PaymentLink
	err := w.db.WithContext(ctx).Where("user_id = ? AND store_id = ?", order.UserID, order.StoreID).First(&link).Error
	if err == nil {
		req.MandateID = link.MandateID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	captureErr := w.capturer.Capture(ctx, req)
	if captureErr == nil {
		return w.db.WithContext(ctx).Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", order.ID, models.PaymentStatusPending).
			Update("payment_status", models.PaymentStatusCaptured).Error
	}

	logrus.WithFields(logrus.Fields{"order_id": order.ID, "store_id": order.StoreID}).
		WithError(captureErr).Warn("payment capture failed, falling back to cash")
	return w.fallbackToCash(ctx, &order)
}

func (w *Worker) fallbackToCash(ctx context.Context, order *models.Order) error {
	res := w.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", order.ID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_method": models.PaymentCash,
			"payment_status": models.PaymentStatusFailed,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return notifyCashFallback(ctx, w.notifier, order)
}

// notifyCashFallback tells both parties that an order will be paid in cash.
func notifyCashFallback(ctx context.Context, n *Notifier, order *models.Order) error {
	msg := fmt.Sprintf("Online payment for order %d failed, it will be paid in cash.", order.ID)
	if err := n.NotifyUser(ctx, order.UserID, order.ID, msg); err != nil {
		return err
	}
	return n.NotifyStaff(ctx, order.StoreID, order.ID, msg)
}

func methodName(m models.PaymentMethod) string {
	switch m {
	case models.PaymentGocardless:
		return "gocardless"
	case models.PaymentPayconiq:
		return "payconiq"
	}
	return "cash"
}
