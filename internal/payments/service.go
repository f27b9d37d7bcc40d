package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/creditmeter-backend/pkg/db"
	"github.com/angelmondragon/creditmeter-backend/pkg/db/models"
	"github.com/angelmondragon/creditmeter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/angelmondragon/creditmeter-backend/pkg/metrics"
	"github.com/angelmondragon/creditmeter-backend/pkg/pagination"
	"github.com/google/uuid"
)

const creditSourcePayment = "payment"

// Crediter is the slice of the credit ledger the recorder needs.
type Crediter interface {
	AddCredits(ctx context.Context, userID uuid.UUID, amountCents int64) error
}

// Service records provider payments exactly once per external session.
type Service interface {
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*RecordPaymentResult, error)
	GetPaymentHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.PaymentRecord, error)
}

type RecordPaymentInput struct {
	UserID            uuid.UUID           `json:"user_id"`
	ExternalSessionID string              `json:"external_session_id"`
	AmountCents       int64               `json:"amount_cents"`
	Status            enums.PaymentStatus `json:"status"`
}

func (in RecordPaymentInput) validate() error {
	if in.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(in.ExternalSessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "external session id is required")
	}
	if !in.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", in.Status))
	}
	if in.AmountCents < 0 || (in.Status.Credits() && in.AmountCents == 0) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

// RecordPaymentResult has the same shape for fresh and replayed events.
type RecordPaymentResult struct {
	Record    *models.PaymentRecord `json:"record"`
	Duplicate bool                  `json:"duplicate"`
	Credited  bool                  `json:"credited"`
}

type service struct {
	repo    Repository
	credits Crediter
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

type ServiceParams struct {
	Repo    Repository
	Credits Crediter
	Metrics *metrics.LedgerMetrics
	Now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credits service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		credits: params.Credits,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// RecordPayment inserts the record first and credits second. A crash
// between the two leaves an under-credit that a replay will not repair,
// which is preferred over any chance of crediting twice.
func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*RecordPaymentResult, error) {
	input.ExternalSessionID = strings.TrimSpace(input.ExternalSessionID)
	if err := input.validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindBySessionID(ctx, input.ExternalSessionID)
	if err != nil {
		s.metrics.IncPayment(metrics.PaymentOutcomeFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment record")
	}
	if existing != nil {
		s.metrics.IncPayment(metrics.PaymentOutcomeDuplicate)
		return &RecordPaymentResult{Record: existing, Duplicate: true}, nil
	}

	record := &models.PaymentRecord{
		ID:                uuid.New(),
		UserID:            input.UserID,
		ExternalSessionID: input.ExternalSessionID,
		AmountCents:       input.AmountCents,
		Status:            input.Status,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if db.IsUniqueViolation(err, "") {
			// A concurrent delivery of the same session won the insert.
			winner, findErr := s.repo.FindBySessionID(ctx, input.ExternalSessionID)
			if findErr == nil && winner != nil {
				s.metrics.IncPayment(metrics.PaymentOutcomeDuplicate)
				return &RecordPaymentResult{Record: winner, Duplicate: true}, nil
			}
		}
		s.metrics.IncPayment(metrics.PaymentOutcomeFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment record")
	}

	if !record.Status.Credits() {
		s.metrics.IncPayment(metrics.PaymentOutcomeRecorded)
		return &RecordPaymentResult{Record: record}, nil
	}

	if err := s.credits.AddCredits(ctx, record.UserID, record.AmountCents); err != nil {
		s.metrics.IncPayment(metrics.PaymentOutcomeFailed)
		return &RecordPaymentResult{Record: record}, fmt.Errorf("credit payment %s: %w", record.ExternalSessionID, err)
	}
	s.metrics.AddCredit(creditSourcePayment, record.AmountCents)
	s.metrics.IncPayment(metrics.PaymentOutcomeCredited)
	return &RecordPaymentResult{Record: record, Credited: true}, nil
}

func (s *service) GetPaymentHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.PaymentRecord, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	records, err := s.repo.ListRecentByUser(ctx, userID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}
	return records, nil
}
