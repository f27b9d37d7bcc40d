package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for payments_recorded_total.
const (
	PaymentOutcomeCredited  = "credited"
	PaymentOutcomeRecorded  = "recorded"
	PaymentOutcomeDuplicate = "duplicate"
	PaymentOutcomeFailed    = "failed"
)

// LedgerMetrics tracks money movement, metering and limiter activity.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	credits         *prometheus.CounterVec
	debits          *prometheus.CounterVec
	payments        *prometheus.CounterVec
	usageFailures   *prometheus.CounterVec
	rateLimitDenied *prometheus.CounterVec
	meteredDuration *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	credits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_credit_cents_total",
		Help: "Cents added to user balances.",
	}, []string{"source"})
	debits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_debit_cents_total",
		Help: "Cents deducted from user balances for metered usage.",
	}, []string{"endpoint"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Payment events processed, by outcome.",
	}, []string{"outcome"})
	usageFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_log_failures_total",
		Help: "Usage events that could not be logged or published.",
	}, []string{"reason"})
	rateLimitDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_denied_total",
		Help: "Requests rejected by a rate limiter.",
	}, []string{"limiter"})
	meteredDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metered_operation_duration_seconds",
		Help:    "Duration of upstream metered operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	reg.MustRegister(credits, debits, payments, usageFailures, rateLimitDenied, meteredDuration)
	return &LedgerMetrics{
		credits:         credits,
		debits:          debits,
		payments:        payments,
		usageFailures:   usageFailures,
		rateLimitDenied: rateLimitDenied,
		meteredDuration: meteredDuration,
	}
}

func (m *LedgerMetrics) AddCredit(source string, cents int64) {
	if m == nil || m.credits == nil || cents <= 0 {
		return
	}
	m.credits.WithLabelValues(normalizeLabel(source)).Add(float64(cents))
}

func (m *LedgerMetrics) AddDebit(endpoint string, cents int64) {
	if m == nil || m.debits == nil || cents <= 0 {
		return
	}
	m.debits.WithLabelValues(normalizeLabel(endpoint)).Add(float64(cents))
}

func (m *LedgerMetrics) IncPayment(outcome string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *LedgerMetrics) IncUsageFailure(reason string) {
	if m == nil || m.usageFailures == nil {
		return
	}
	m.usageFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *LedgerMetrics) IncRateLimited(limiter string) {
	if m == nil || m.rateLimitDenied == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(normalizeLabel(limiter)).Inc()
}

// ObserveMetered records how long the upstream call behind a metered endpoint took.
func (m *LedgerMetrics) ObserveMetered(endpoint string, duration time.Duration) {
	if m == nil || m.meteredDuration == nil {
		return
	}
	m.meteredDuration.WithLabelValues(normalizeLabel(endpoint)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
