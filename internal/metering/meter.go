package metering

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/creditmeter-backend/internal/credits"
	"github.com/angelmondragon/creditmeter-backend/internal/usage"
	"github.com/angelmondragon/creditmeter-backend/pkg/db/models"
	"github.com/angelmondragon/creditmeter-backend/pkg/metrics"
	"github.com/google/uuid"
)

// CostCalculator prices token usage in whole cents.
type CostCalculator interface {
	Calculate(model string, inputTokens, outputTokens int64) int64
	Known(model string) bool
}

// Ledger is the slice of the credit ledger the meter needs.
type Ledger interface {
	EnsureFunds(ctx context.Context, userID uuid.UUID) (credits.Balance, error)
	DeductCredits(ctx context.Context, userID uuid.UUID, costCents int64) error
}

// UsageLogger appends usage events.
type UsageLogger interface {
	LogUsage(ctx context.Context, input usage.LogUsageInput) *models.UsageEvent
}

// Charge describes a metered operation that already succeeded upstream.
type Charge struct {
	UserID       uuid.UUID
	Endpoint     string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Receipt is what a charge cost.
type Receipt struct {
	CostCents int64
	Logged    bool
}

// Meter sequences the funds check before a metered call and the
// price/log/debit steps after it.
type Meter struct {
	calc    CostCalculator
	ledger  Ledger
	usage   UsageLogger
	metrics *metrics.LedgerMetrics
}

func NewMeter(calc CostCalculator, ledger Ledger, usageLog UsageLogger, m *metrics.LedgerMetrics) (*Meter, error) {
	if calc == nil {
		return nil, fmt.Errorf("cost calculator required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("credit ledger required")
	}
	if usageLog == nil {
		return nil, fmt.Errorf("usage ledger required")
	}
	return &Meter{calc: calc, ledger: ledger, usage: usageLog, metrics: m}, nil
}

// Supports reports whether model has a price of its own. Charges for
// unpriced models still go through at the fallback rate.
func (m *Meter) Supports(model string) bool {
	return m.calc.Known(model)
}

// Authorize must be called before the metered operation. It fails with
// PAYMENT_REQUIRED when the balance is zero or negative.
func (m *Meter) Authorize(ctx context.Context, userID uuid.UUID) (credits.Balance, error) {
	return m.ledger.EnsureFunds(ctx, userID)
}

// Charge prices the operation, logs it, then debits the ledger, in that
// order. Only the debit can fail the call.
func (m *Meter) Charge(ctx context.Context, charge Charge) (Receipt, error) {
	endpoint := strings.TrimSpace(charge.Endpoint)
	cost := m.calc.Calculate(charge.Model, charge.InputTokens, charge.OutputTokens)

	event := m.usage.LogUsage(ctx, usage.LogUsageInput{
		UserID:       charge.UserID,
		Endpoint:     endpoint,
		Model:        charge.Model,
		InputTokens:  charge.InputTokens,
		OutputTokens: charge.OutputTokens,
		CostCents:    cost,
	})

	if err := m.ledger.DeductCredits(ctx, charge.UserID, cost); err != nil {
		return Receipt{CostCents: cost, Logged: event != nil}, err
	}
	m.metrics.AddDebit(endpoint, cost)
	return Receipt{CostCents: cost, Logged: event != nil}, nil
}
