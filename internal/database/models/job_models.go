package models

import "time"

// OutboxJob is a side effect staged inside the transaction that caused it
// and relayed to the worker queue after commit.
type OutboxJob struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	JobID     string `gorm:"size:36;uniqueIndex;not null"`
	Kind      string `gorm:"size:32;not null"`
	Payload   string `gorm:"type:text;not null"`
	Relayed   bool   `gorm:"not null;default:false;index"`
	CreatedAt time.Time
	RelayedAt *time.Time
}
