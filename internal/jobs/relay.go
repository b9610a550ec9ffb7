package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lunchbreak/internal/database/models"
)

const relayBatchSize = 100

// Relay moves committed outbox jobs onto the queue. Delivery is at least
// once: a crash between push and commit pushes the batch again.
type Relay struct {
	db    *gorm.DB
	queue *RedisQueue
}

func NewRelay(db *gorm.DB, queue *RedisQueue) *Relay {
	return &Relay{db: db, queue: queue}
}

func (r *Relay) Flush(ctx context.Context) (int, error) {
	relayed := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []models.OutboxJob
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("relayed = ?", false).
			Order("id").
			Limit(relayBatchSize).
			Find(&pending).Error; err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		payloads := make([]string, len(pending))
		ids := make([]int64, len(pending))
		for i, job := range pending {
			payloads[i] = job.Payload
			ids[i] = job.ID
		}
		if err := r.queue.Push(ctx, payloads...); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&models.OutboxJob{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{"relayed": true, "relayed_at": now}).Error; err != nil {
			return err
		}
		relayed = len(pending)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if relayed > 0 {
		logrus.WithField("jobs", relayed).Debug("outbox flushed")
	}
	return relayed, nil
}

// Run flushes on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Warn("outbox flush failed")
			}
		}
	}
}
