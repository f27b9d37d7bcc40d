package credits

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/google/uuid"
)

// Balance is the read view of a credit account. BalanceCents is derived
// from the two totals.
type Balance struct {
	BalanceCents       int64 `json:"balance_cents"`
	TotalToppedUpCents int64 `json:"total_topped_up_cents"`
	TotalSpentCents    int64 `json:"total_spent_cents"`
}

// Service exposes the credit ledger operations.
type Service interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (Balance, error)
	// EnsureFunds returns PAYMENT_REQUIRED when the balance is zero or below.
	EnsureFunds(ctx context.Context, userID uuid.UUID) (Balance, error)
	// DeductCredits records spend without re-checking sufficiency.
	DeductCredits(ctx context.Context, userID uuid.UUID, costCents int64) error
	AddCredits(ctx context.Context, userID uuid.UUID, amountCents int64) error
}

type service struct {
	repo Repository
}

// NewService wires a credits service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("credits repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (Balance, error) {
	if userID == uuid.Nil {
		return Balance{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	account, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return Balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit account")
	}
	if account == nil {
		return Balance{}, nil
	}
	return Balance{
		BalanceCents:       account.BalanceCents(),
		TotalToppedUpCents: account.TotalToppedUpCents,
		TotalSpentCents:    account.TotalSpentCents,
	}, nil
}

func (s *service) EnsureFunds(ctx context.Context, userID uuid.UUID) (Balance, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	if balance.BalanceCents <= 0 {
		return balance, pkgerrors.New(pkgerrors.CodePaymentRequired, "insufficient credits").
			WithDetails(map[string]any{"balance_cents": balance.BalanceCents})
	}
	return balance, nil
}

func (s *service) DeductCredits(ctx context.Context, userID uuid.UUID, costCents int64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if costCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cost must not be negative")
	}
	if costCents == 0 {
		return nil
	}
	if err := s.repo.IncrementSpent(ctx, userID, costCents); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deduct credits")
	}
	return nil
}

func (s *service) AddCredits(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	if err := s.repo.IncrementToppedUp(ctx, userID, amountCents); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add credits")
	}
	return nil
}
