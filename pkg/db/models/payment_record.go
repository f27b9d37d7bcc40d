package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/creditmeter-backend/pkg/enums"
)

// PaymentRecord stores one external checkout outcome. ExternalSessionID is
// the dedupe key; at most one row exists per provider session.
type PaymentRecord struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	ExternalSessionID string              `gorm:"column:external_session_id;not null;uniqueIndex:ux_payment_records_external_session_id"`
	AmountCents       int64               `gorm:"column:amount_cents;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;not null"`
	CreatedAt         time.Time           `gorm:"column:created_at;not null"`
}

func (PaymentRecord) TableName() string { return "payment_records" }
