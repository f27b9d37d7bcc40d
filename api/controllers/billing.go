package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/creditmeter-backend/api/middleware"
	"github.com/angelmondragon/creditmeter-backend/api/responses"
	"github.com/angelmondragon/creditmeter-backend/api/validators"
	"github.com/angelmondragon/creditmeter-backend/internal/checkout"
	"github.com/angelmondragon/creditmeter-backend/internal/credits"
	"github.com/angelmondragon/creditmeter-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
	"github.com/angelmondragon/creditmeter-backend/pkg/pagination"
	"github.com/google/uuid"
)

type balanceReader interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (credits.Balance, error)
}

type usageHistoryReader interface {
	GetUsageHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.UsageEvent, error)
}

type paymentHistoryReader interface {
	GetPaymentHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.PaymentRecord, error)
}

type usageEventResponse struct {
	ID           uuid.UUID `json:"id"`
	Endpoint     string    `json:"endpoint"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostCents    int64     `json:"cost_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

type paymentRecordResponse struct {
	ID                uuid.UUID `json:"id"`
	ExternalSessionID string    `json:"external_session_id"`
	AmountCents       int64     `json:"amount_cents"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type billingOverviewResponse struct {
	Balance        credits.Balance         `json:"balance"`
	UsageHistory   []usageEventResponse    `json:"usage_history"`
	PaymentHistory []paymentRecordResponse `json:"payment_history"`
}

type checkoutRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"required,gt=0"`
}

// BillingOverview returns balance, recent usage and recent payments in one call.
func BillingOverview(balances balanceReader, usageSvc usageHistoryReader, paymentSvc paymentHistoryReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if balances == nil || usageSvc == nil || paymentSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing services unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := historyLimit(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := balances.GetBalance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := usageSvc.GetUsageHistory(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		records, err := paymentSvc.GetPaymentHistory(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, billingOverviewResponse{
			Balance:        balance,
			UsageHistory:   toUsageResponses(events),
			PaymentHistory: toPaymentResponses(records),
		})
	}
}

func BillingBalance(balances balanceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if balances == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := balances.GetBalance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

func BillingUsage(usageSvc usageHistoryReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if usageSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := historyLimit(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := usageSvc.GetUsageHistory(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toUsageResponses(events))
	}
}

func BillingPayments(paymentSvc paymentHistoryReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if paymentSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := historyLimit(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		records, err := paymentSvc.GetPaymentHistory(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPaymentResponses(records))
	}
}

// BillingCheckout opens a Stripe checkout session for a credit top-up.
func BillingCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.CreateTopUp(r.Context(), userID, payload.AmountCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"session_id":   session.ID,
				"amount_cents": session.AmountCents,
			})
			logg.Info(ctx, "billing.checkout.created")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	return userID, nil
}

func historyLimit(r *http.Request) (int, error) {
	return validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
}

func toUsageResponses(events []models.UsageEvent) []usageEventResponse {
	out := make([]usageEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, usageEventResponse{
			ID:           event.ID,
			Endpoint:     event.Endpoint,
			Model:        event.Model,
			InputTokens:  event.InputTokens,
			OutputTokens: event.OutputTokens,
			CostCents:    event.CostCents,
			CreatedAt:    event.CreatedAt,
		})
	}
	return out
}

func toPaymentResponses(records []models.PaymentRecord) []paymentRecordResponse {
	out := make([]paymentRecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, paymentRecordResponse{
			ID:                record.ID,
			ExternalSessionID: record.ExternalSessionID,
			AmountCents:       record.AmountCents,
			Status:            string(record.Status),
			CreatedAt:         record.CreatedAt,
		})
	}
	return out
}
