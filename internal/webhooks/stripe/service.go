package stripewebhook

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/angelmondragon/creditmeter-backend/internal/payments"
	"github.com/angelmondragon/creditmeter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/creditmeter-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

const (
	MetadataUserID      = pkgstripe.MetadataUserID
	MetadataAmountCents = pkgstripe.MetadataAmountCents
)

type PaymentRecorder interface {
	RecordPayment(ctx context.Context, input payments.RecordPaymentInput) (*payments.RecordPaymentResult, error)
}

type ServiceParams struct {
	Payments PaymentRecorder
	Logger   *logger.Logger
}

// Service turns verified Stripe checkout events into payment records.
type Service struct {
	payments PaymentRecorder
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment recorder required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: params.Payments, logg: params.Logger}, nil
}

// HandleEvent returns an error only for malformed events. Failures while
// recording or crediting are logged for reconciliation and swallowed so
// the provider stops retrying.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var status enums.PaymentStatus
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		status = enums.PaymentStatusCompleted
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		status = enums.PaymentStatusFailed
	case stripe.EventTypeCheckoutSessionExpired:
		status = enums.PaymentStatusExpired
	default:
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	if session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}

	// Delayed methods complete the session unpaid; the async success event credits later.
	if status == enums.PaymentStatusCompleted && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":       event.ID,
			"session_id":     session.ID,
			"payment_status": string(session.PaymentStatus),
		}), "webhook.stripe.awaiting_payment")
		return nil
	}

	userID, err := userIDFromSession(&session)
	if err != nil {
		return err
	}
	amount, err := amountFromSession(&session)
	if err != nil {
		return err
	}

	input := payments.RecordPaymentInput{
		UserID:            userID,
		ExternalSessionID: session.ID,
		AmountCents:       amount,
		Status:            status,
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":     event.ID,
		"event_type":   string(event.Type),
		"session_id":   session.ID,
		"user_id":      userID.String(),
		"amount_cents": amount,
		"status":       string(status),
	})

	result, err := s.payments.RecordPayment(ctx, input)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeValidation) {
			return err
		}
		s.logg.Error(logCtx, "webhook.stripe.reconcile", err)
		return nil
	}

	switch {
	case result.Duplicate:
		s.logg.Info(logCtx, "webhook.stripe.duplicate")
	case result.Credited:
		s.logg.Info(logCtx, "webhook.stripe.credited")
	default:
		s.logg.Info(logCtx, "webhook.stripe.recorded")
	}
	return nil
}

func userIDFromSession(session *stripe.CheckoutSession) (uuid.UUID, error) {
	raw := strings.TrimSpace(session.Metadata[MetadataUserID])
	if raw == "" {
		raw = strings.TrimSpace(session.ClientReferenceID)
	}
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing user id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id in checkout session")
	}
	return id, nil
}

func amountFromSession(session *stripe.CheckoutSession) (int64, error) {
	if session.AmountTotal > 0 {
		return session.AmountTotal, nil
	}
	raw := strings.TrimSpace(session.Metadata[MetadataAmountCents])
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing amount")
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid amount in checkout session")
	}
	return amount, nil
}
