package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditAccount is the per-user ledger row. The balance is always derived
// from the two running totals and is never stored.
type CreditAccount struct {
	UserID             uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	TotalToppedUpCents int64     `gorm:"column:total_topped_up_cents;not null"`
	TotalSpentCents    int64     `gorm:"column:total_spent_cents;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CreditAccount) TableName() string { return "credit_accounts" }

// BalanceCents may be negative when a debit raced past the funds check.
func (a CreditAccount) BalanceCents() int64 {
	return a.TotalToppedUpCents - a.TotalSpentCents
}
