package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderUpdated       = "order.updated"
)

func UserChannel(userID int64) string {
	return fmt.Sprintf("lunch:notify:user:%d", userID)
}

func StaffChannel(storeID int64) string {
	return fmt.Sprintf("lunch:notify:staff:%d", storeID)
}

type Notification struct {
	OrderID   int64     `json:"order_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderEvent struct {
	EventType string    `json:"event_type"`
	OrderID   int64     `json:"order_id"`
	StoreID   int64     `json:"store_id"`
	UserID    int64     `json:"user_id"`
	Status    int32     `json:"status"`
	Total     int64     `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier hands notifications to the push/SMS service over Redis pub/sub.
type Notifier struct {
	redis *redis.Client
}

func NewNotifier(redisClient *redis.Client) *Notifier {
	return &Notifier{redis: redisClient}
}

func (n *Notifier) NotifyUser(ctx context.Context, userID, orderID int64, message string) error {
	return n.publish(ctx, UserChannel(userID), Notification{OrderID: orderID, Message: message, Timestamp: time.Now()})
}

func (n *Notifier) NotifyStaff(ctx context.Context, storeID, orderID int64, message string) error {
	return n.publish(ctx, StaffChannel(storeID), Notification{OrderID: orderID, Message: message, Timestamp: time.Now()})
}

func (n *Notifier) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := fmt.Sprintf("lunch:events:%s", event.EventType)
	if err := n.redis.Publish(ctx, channel, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := n.redis.Publish(ctx, "lunch:events:all", eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish to all channel: %w", err)
	}

	return nil
}

func (n *Notifier) publish(ctx context.Context, channel string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := n.redis.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
