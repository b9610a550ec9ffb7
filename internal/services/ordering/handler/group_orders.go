package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lunchbreak/internal/auth"
	"lunchbreak/internal/database/models"
	"lunchbreak/internal/errs"
	"lunchbreak/internal/jobs"
	"lunchbreak/internal/services/schedule"
)

// groupReceipt returns the receipt of a group order on the calendar date of
// requested and the deadline for joining it, both in requested's location.
func groupReceipt(group *models.Group, requested time.Time) (receipt, deadline time.Time, err error) {
	clock, err := schedule.ParseClock(group.Deadline)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("group %d deadline: %w", group.ID, err)
	}
	deadline = schedule.OnDate(requested, clock)
	return deadline.Add(group.Delay), deadline, nil
}

// UpdateGroupOrderStatus moves a group order and each of its open orders to
// a new status. Orders that already finished are left alone.
func (s *OrderHandler) UpdateGroupOrderStatus(ctx context.Context, actor auth.Actor, groupOrderID int64, status models.OrderStatus) (*models.GroupOrder, error) {
	var groupOrder models.GroupOrder
	var changed []models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&groupOrder, groupOrderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.DoesNotExist.Withf("group order %d does not exist", groupOrderID)
		}
		if err != nil {
			return err
		}

		var group models.Group
		if err := tx.First(&group, groupOrder.GroupID).Error; err != nil {
			return err
		}
		if !actor.StaffOf(group.StoreID) {
			return errs.Forbidden.Withf("group order %d belongs to another store", groupOrder.ID)
		}
		if err := CanTransition(groupOrder.Status, status); err != nil {
			return err
		}

		groupOrder.Status = status
		if err := tx.Model(&groupOrder).UpdateColumn("status", status).Error; err != nil {
			return err
		}

		var orders []models.Order
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_order_id = ? AND status NOT IN ?", groupOrder.ID, models.TerminalStatuses).
			Order("id").
			Find(&orders).Error
		if err != nil {
			return err
		}
		for i := range orders {
			if orders[i].Status == status {
				continue
			}
			if err := transition(tx, &orders[i], status); err != nil {
				return fmt.Errorf("order %d: %w", orders[i].ID, err)
			}
			changed = append(changed, orders[i])
		}
		return nil
	})
	if err != nil {
		if !errs.IsUserFacing(err) {
			logrus.WithError(err).WithField("group_order_id", groupOrderID).Error("Failed to update group order status")
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"group_order_id": groupOrder.ID,
		"status":         status.String(),
		"orders":         len(changed),
	}).Info("Group order status changed")
	for i := range changed {
		s.afterCommit(ctx, &changed[i], jobs.EventOrderStatusChanged)
	}
	return &groupOrder, nil
}
