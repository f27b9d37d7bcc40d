package checkout

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/creditmeter-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

type sessionCreator interface {
	CreateCheckoutSession(ctx context.Context, params pkgstripe.CheckoutParams) (*stripe.CheckoutSession, error)
}

// Service opens hosted checkout sessions for credit top-ups. Credits are
// granted later by the webhook, never here.
type Service interface {
	CreateTopUp(ctx context.Context, userID uuid.UUID, amountCents int64) (*Session, error)
}

// Session is what the client needs to redirect the user.
type Session struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	AmountCents int64  `json:"amount_cents"`
}

type Limits struct {
	MinCents int64
	MaxCents int64
}

type service struct {
	sessions sessionCreator
	limits   Limits
}

// NewService builds the top-up service.
func NewService(sessions sessionCreator, limits Limits) (Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("checkout session creator required")
	}
	if limits.MinCents <= 0 {
		return nil, fmt.Errorf("minimum top up must be positive")
	}
	if limits.MaxCents > 0 && limits.MaxCents < limits.MinCents {
		return nil, fmt.Errorf("maximum top up below minimum")
	}
	return &service{sessions: sessions, limits: limits}, nil
}

func (s *service) CreateTopUp(ctx context.Context, userID uuid.UUID, amountCents int64) (*Session, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if amountCents < s.limits.MinCents || (s.limits.MaxCents > 0 && amountCents > s.limits.MaxCents) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount out of range").
			WithDetails(map[string]any{
				"min_cents": s.limits.MinCents,
				"max_cents": s.limits.MaxCents,
			})
	}

	created, err := s.sessions.CreateCheckoutSession(ctx, pkgstripe.CheckoutParams{
		UserID:      userID,
		AmountCents: amountCents,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	if created == nil || created.URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "checkout session missing url")
	}
	return &Session{ID: created.ID, URL: created.URL, AmountCents: amountCents}, nil
}
