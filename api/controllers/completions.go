package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/creditmeter-backend/api/responses"
	"github.com/angelmondragon/creditmeter-backend/api/validators"
	"github.com/angelmondragon/creditmeter-backend/internal/ai"
	"github.com/angelmondragon/creditmeter-backend/internal/credits"
	"github.com/angelmondragon/creditmeter-backend/internal/metering"
	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
	"github.com/angelmondragon/creditmeter-backend/pkg/metrics"
	"github.com/google/uuid"
)

// CompletionsEndpoint labels usage events and debit metrics for this route.
const CompletionsEndpoint = "completions"

type meter interface {
	Supports(model string) bool
	Authorize(ctx context.Context, userID uuid.UUID) (credits.Balance, error)
	Charge(ctx context.Context, charge metering.Charge) (metering.Receipt, error)
}

type completionRequest struct {
	Model     string `json:"model" validate:"required,max=64"`
	Prompt    string `json:"prompt" validate:"required,max=32000"`
	MaxTokens int64  `json:"max_tokens" validate:"min=0,max=16384"`
}

type completionResponse struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	CostCents    int64  `json:"cost_cents"`
	BalanceCents int64  `json:"balance_cents"`
}

// Completions runs a metered AI completion. Funds are checked before the
// provider call and the caller is only charged when the call succeeds.
func Completions(m meter, completer ai.Completer, balances balanceReader, lm *metrics.LedgerMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m == nil || completer == nil || balances == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "completion service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload completionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		model := validators.SanitizeString(payload.Model, 64)
		if !m.Supports(model) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported model").
				WithDetails(map[string]any{"model": model}))
			return
		}

		if _, err := m.Authorize(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		start := time.Now()
		result, err := completer.Complete(r.Context(), ai.Request{
			Model:     model,
			Prompt:    payload.Prompt,
			MaxTokens: payload.MaxTokens,
		})
		lm.ObserveMetered(CompletionsEndpoint, time.Since(start))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := m.Charge(r.Context(), metering.Charge{
			UserID:       userID,
			Endpoint:     CompletionsEndpoint,
			Model:        result.Model,
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := balances.GetBalance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"model":         result.Model,
				"input_tokens":  result.InputTokens,
				"output_tokens": result.OutputTokens,
				"cost_cents":    receipt.CostCents,
				"usage_logged":  receipt.Logged,
			})
			logg.Info(ctx, "completions.charged")
		}

		responses.WriteSuccess(w, completionResponse{
			Text:         result.Text,
			Model:        result.Model,
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
			CostCents:    receipt.CostCents,
			BalanceCents: balance.BalanceCents,
		})
	}
}
