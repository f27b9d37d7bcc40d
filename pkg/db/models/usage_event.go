package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageEvent is an append-only record of one metered operation.
type UsageEvent struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_usage_events_user_created,priority:1"`
	Endpoint     string    `gorm:"column:endpoint;not null"`
	Model        string    `gorm:"column:model;not null"`
	InputTokens  int64     `gorm:"column:input_tokens;not null"`
	OutputTokens int64     `gorm:"column:output_tokens;not null"`
	CostCents    int64     `gorm:"column:cost_cents;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index:idx_usage_events_user_created,priority:2"`
}

func (UsageEvent) TableName() string { return "usage_events" }
