package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lunchbreak/internal/database/models"
)

const (
	KindNotifyUser     = "notify_user"
	KindNotifyStaff    = "notify_staff"
	KindCapturePayment = "capture_payment"
)

type Job struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id,omitempty"`
	StoreID int64  `json:"store_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Stage records the job in the outbox table of the running transaction, so
// it only becomes visible to the relay if the transaction commits.
func Stage(tx *gorm.DB, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return tx.Create(&models.OutboxJob{
		JobID:   job.ID,
		Kind:    job.Kind,
		Payload: string(payload),
	}).Error
}

func NotifyUser(order *models.Order, message string) Job {
	return Job{Kind: KindNotifyUser, OrderID: order.ID, UserID: order.UserID, StoreID: order.StoreID, Message: message}
}

func NotifyStaff(order *models.Order, message string) Job {
	return Job{Kind: KindNotifyStaff, OrderID: order.ID, UserID: order.UserID, StoreID: order.StoreID, Message: message}
}

func CapturePayment(order *models.Order) Job {
	return Job{Kind: KindCapturePayment, OrderID: order.ID, UserID: order.UserID, StoreID: order.StoreID}
}

func decode(payload string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
