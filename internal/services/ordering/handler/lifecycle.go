package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lunchbreak/internal/auth"
	"lunchbreak/internal/database/models"
	"lunchbreak/internal/errs"
	"lunchbreak/internal/jobs"
	"lunchbreak/internal/logger"
	"lunchbreak/internal/services/pricing"
)

// sideEffect runs inside the transaction that changes the status. Anything
// that leaves the database is staged as a job.
type sideEffect func(tx *gorm.DB, order *models.Order) error

// transitionEffects lists what entering a status triggers. Every non-terminal
// status may move to any other status, so the entered status alone decides.
var transitionEffects = map[models.OrderStatus][]sideEffect{
	models.StatusWaiting:      {notifyReady, capturePayment},
	models.StatusCompleted:    {capturePayment, releaseCatalog},
	models.StatusNotCollected: {capturePayment, releaseCatalog},
	models.StatusDenied:       {notifyDenied, releaseCatalog},
}

// CanTransition rejects unknown statuses, no-op updates and any move out of
// a terminal status.
func CanTransition(from, to models.OrderStatus) error {
	if !to.Valid() {
		return errs.InvalidTransition.Withf("unknown status %d", to)
	}
	if from.Terminal() {
		return errs.InvalidTransition.Withf("order is already %s", from)
	}
	if from == to {
		return errs.InvalidTransition.Withf("order is already %s", from)
	}
	return nil
}

// UpdateStatus moves an order to a new status on behalf of the staff of its
// store. The order row is locked so concurrent updates apply one at a time.
func (s *OrderHandler) UpdateStatus(ctx context.Context, actor auth.Actor, orderID int64, status models.OrderStatus) (*models.Order, error) {
	var order models.Order
	var from models.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if !actor.StaffOf(order.StoreID) {
			return errs.Forbidden.Withf("order %d belongs to another store", order.ID)
		}
		from = order.Status
		return transition(tx, &order, status)
	})
	if err != nil {
		if !errs.IsUserFacing(err) {
			logrus.WithError(err).WithField("order_id", orderID).Error("Failed to update order status")
		}
		return nil, err
	}

	logger.WithOrder(order.ID, order.StoreID).
		WithFields(logrus.Fields{"from": from.String(), "to": order.Status.String()}).
		Info("Order status changed")
	s.afterCommit(ctx, &order, jobs.EventOrderStatusChanged)
	return &order, nil
}

func lockOrder(tx *gorm.DB, orderID int64, order *models.Order) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.DoesNotExist.Withf("order %d does not exist", orderID)
	}
	return err
}

// transition expects the order row to be locked by tx.
func transition(tx *gorm.DB, order *models.Order, to models.OrderStatus) error {
	if err := CanTransition(order.Status, to); err != nil {
		return err
	}
	order.Status = to
	if err := tx.Model(order).UpdateColumn("status", to).Error; err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	for _, effect := range transitionEffects[to] {
		if err := effect(tx, order); err != nil {
			return err
		}
	}
	return nil
}

func notifyReady(tx *gorm.DB, order *models.Order) error {
	return jobs.Stage(tx, jobs.NotifyUser(order, fmt.Sprintf("Your order #%d is ready for pickup.", order.ID)))
}

func notifyDenied(tx *gorm.DB, order *models.Order) error {
	return jobs.Stage(tx, jobs.NotifyUser(order, fmt.Sprintf("Your order #%d was denied by the store.", order.ID)))
}

// capturePayment stages the capture of an online payment once. Gocardless
// orders without a confirmed mandate are switched to cash on the spot.
func capturePayment(tx *gorm.DB, order *models.Order) error {
	if order.PaymentStatus != models.PaymentStatusNone || order.PaymentMethod == models.PaymentCash {
		return nil
	}

	if order.PaymentMethod == models.PaymentGocardless {
		var link models.PaymentLink
		err := tx.Where("user_id = ? AND store_id = ?", order.UserID, order.StoreID).First(&link).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err != nil || !link.Confirmed || link.MandateID == "" {
			return fallbackToCash(tx, order)
		}
	}

	order.PaymentStatus = models.PaymentStatusPending
	if err := tx.Model(order).UpdateColumn("payment_status", order.PaymentStatus).Error; err != nil {
		return err
	}
	return jobs.Stage(tx, jobs.CapturePayment(order))
}

func fallbackToCash(tx *gorm.DB, order *models.Order) error {
	order.PaymentMethod = models.PaymentCash
	if err := tx.Model(order).UpdateColumn("payment_method", order.PaymentMethod).Error; err != nil {
		return err
	}
	if err := jobs.Stage(tx, jobs.NotifyUser(order, fmt.Sprintf("Online payment for order #%d is not possible, please pay in cash.", order.ID))); err != nil {
		return err
	}
	return jobs.Stage(tx, jobs.NotifyStaff(order, fmt.Sprintf("Order #%d must be paid in cash.", order.ID)))
}

// SetLineStatus marks a line item out of stock or back in stock and
// recalculates the order total.
func (s *OrderHandler) SetLineStatus(ctx context.Context, actor auth.Actor, orderID, lineID int64, status models.LineStatus) (*models.Order, error) {
	if status != models.LineOK && status != models.LineOutOfStock {
		return nil, errs.InvalidTransition.Withf("unknown line status %d", status)
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if !actor.StaffOf(order.StoreID) {
			return errs.Forbidden.Withf("order %d belongs to another store", order.ID)
		}
		if order.Status.Terminal() {
			return errs.InvalidTransition.Withf("order is already %s", order.Status)
		}

		var line models.OrderedFood
		err := tx.Where("id = ? AND order_id = ?", lineID, order.ID).First(&line).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.DoesNotExist.Withf("line item %d does not exist", lineID)
		}
		if err != nil {
			return err
		}

		total := int64(0)
		if status == models.LineOK {
			total = pricing.LineTotal(line.Cost, line.Amount, line.UnitMultiplier)
		}
		err = tx.Model(&line).UpdateColumns(map[string]interface{}{"status": status, "total": total}).Error
		if err != nil {
			return err
		}
		return recalculateOrderTotal(tx, &order)
	})
	if err != nil {
		return nil, err
	}

	logger.WithOrder(order.ID, order.StoreID).
		WithFields(logrus.Fields{"line_id": lineID, "total": order.Total}).
		Info("Line item status changed")
	s.afterCommit(ctx, &order, jobs.EventOrderUpdated)
	return &order, nil
}
