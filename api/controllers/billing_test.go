package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/creditmeter-backend/internal/checkout"
	"github.com/angelmondragon/creditmeter-backend/internal/usage"
	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/google/uuid"
)

func TestBillingOverviewForNewUserIsEmpty(t *testing.T) {
	h := newLedgerHarness(t)
	handler := BillingOverview(h.credits, h.usage, h.payments, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/billing", "", uuid.New()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Data billingOverviewResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Balance.BalanceCents != 0 || len(body.Data.UsageHistory) != 0 || len(body.Data.PaymentHistory) != 0 {
		t.Fatalf("expected empty overview, got %+v", body.Data)
	}
}

func TestBillingOverviewReflectsLedger(t *testing.T) {
	h := newLedgerHarness(t)
	userID := uuid.New()
	h.topUp(t, userID, "sess_overview", 500)
	h.usage.LogUsage(context.Background(), usage.LogUsageInput{
		UserID: userID, Endpoint: "completions", Model: "gpt-4o", InputTokens: 10, OutputTokens: 5, CostCents: 120,
	})
	if err := h.credits.DeductCredits(context.Background(), userID, 120); err != nil {
		t.Fatalf("deduct: %v", err)
	}

	rec := httptest.NewRecorder()
	BillingOverview(h.credits, h.usage, h.payments, nil).ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/billing?limit=10", "", userID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Data billingOverviewResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Balance.BalanceCents != 380 || body.Data.Balance.TotalToppedUpCents != 500 || body.Data.Balance.TotalSpentCents != 120 {
		t.Fatalf("unexpected balance %+v", body.Data.Balance)
	}
	if len(body.Data.UsageHistory) != 1 || body.Data.UsageHistory[0].CostCents != 120 {
		t.Fatalf("unexpected usage history %+v", body.Data.UsageHistory)
	}
	if len(body.Data.PaymentHistory) != 1 || body.Data.PaymentHistory[0].Status != "completed" {
		t.Fatalf("unexpected payment history %+v", body.Data.PaymentHistory)
	}
}

func TestBillingReadsRequireUser(t *testing.T) {
	h := newLedgerHarness(t)
	handlers := map[string]http.HandlerFunc{
		"overview": BillingOverview(h.credits, h.usage, h.payments, nil),
		"balance":  BillingBalance(h.credits, nil),
		"usage":    BillingUsage(h.usage, nil),
		"payments": BillingPayments(h.payments, nil),
	}
	for name, handler := range handlers {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/billing", "", uuid.Nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", name, rec.Code)
		}
	}
}

func TestBillingHistoryRejectsBadLimit(t *testing.T) {
	h := newLedgerHarness(t)
	for _, target := range []string{"/api/v1/billing/usage?limit=abc", "/api/v1/billing/usage?limit=0", "/api/v1/billing/usage?limit=101"} {
		rec := httptest.NewRecorder()
		BillingUsage(h.usage, nil).ServeHTTP(rec, authedRequest(http.MethodGet, target, "", uuid.New()))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", target, rec.Code)
		}
	}
}

func TestBillingBalanceForUnknownUserIsZero(t *testing.T) {
	h := newLedgerHarness(t)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	BillingBalance(h.credits, nil).ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/billing/balance", "", userID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var body struct {
		Data struct {
			BalanceCents int64 `json:"balance_cents"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.BalanceCents != 0 {
		t.Fatalf("expected zero balance, got %d", body.Data.BalanceCents)
	}
}

type stubCheckout struct {
	amounts []int64
	err     error
}

func (s *stubCheckout) CreateTopUp(ctx context.Context, userID uuid.UUID, amountCents int64) (*checkout.Session, error) {
	s.amounts = append(s.amounts, amountCents)
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.Session{ID: "cs_1", URL: "https://checkout.test/cs_1", AmountCents: amountCents}, nil
}

func TestBillingCheckoutCreatesSession(t *testing.T) {
	svc := &stubCheckout{}
	rec := httptest.NewRecorder()
	BillingCheckout(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/billing/checkout", `{"amount_cents":2000}`, uuid.New()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Data checkout.Session `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.URL == "" || body.Data.AmountCents != 2000 {
		t.Fatalf("unexpected session %+v", body.Data)
	}
}

func TestBillingCheckoutValidatesAmount(t *testing.T) {
	svc := &stubCheckout{}
	for _, payload := range []string{`{"amount_cents":"abc"}`, `{"amount_cents":0}`, `{}`, `not json`} {
		rec := httptest.NewRecorder()
		BillingCheckout(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/billing/checkout", payload, uuid.New()))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", payload, rec.Code)
		}
	}
	if len(svc.amounts) != 0 {
		t.Fatalf("invalid payloads must not reach the checkout service")
	}

	below := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeValidation, "amount out of range")}
	rec := httptest.NewRecorder()
	BillingCheckout(below, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/billing/checkout", `{"amount_cents":100}`, uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for below minimum, got %d", rec.Code)
	}

	down := &stubCheckout{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("stripe down"), "create checkout session")}
	rec = httptest.NewRecorder()
	BillingCheckout(down, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/billing/checkout", `{"amount_cents":1000}`, uuid.New()))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for provider failure, got %d", rec.Code)
	}
}
