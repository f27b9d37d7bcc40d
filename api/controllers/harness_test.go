package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/creditmeter-backend/api/middleware"
	"github.com/angelmondragon/creditmeter-backend/internal/credits"
	"github.com/angelmondragon/creditmeter-backend/internal/payments"
	"github.com/angelmondragon/creditmeter-backend/internal/usage"
	"github.com/angelmondragon/creditmeter-backend/pkg/db/models"
	"github.com/angelmondragon/creditmeter-backend/pkg/enums"
	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ledgerHarness struct {
	credits  credits.Service
	usage    usage.Service
	payments payments.Service
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(&models.CreditAccount{}, &models.UsageEvent{}, &models.PaymentRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newLedgerHarness(t *testing.T) ledgerHarness {
	t.Helper()
	db := openTestDB(t)
	creditSvc, err := credits.NewService(credits.NewRepository(db))
	if err != nil {
		t.Fatalf("credits service: %v", err)
	}
	clock := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	usageSvc, err := usage.NewService(usage.ServiceParams{
		Repo:   usage.NewRepository(db),
		Logger: logger.Nop(),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	if err != nil {
		t.Fatalf("usage service: %v", err)
	}
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repo:    payments.NewRepository(db),
		Credits: creditSvc,
	})
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	return ledgerHarness{credits: creditSvc, usage: usageSvc, payments: paymentSvc}
}

func (h ledgerHarness) topUp(t *testing.T, userID uuid.UUID, session string, cents int64) {
	t.Helper()
	_, err := h.payments.RecordPayment(context.Background(), payments.RecordPaymentInput{
		UserID:            userID,
		ExternalSessionID: session,
		AmountCents:       cents,
		Status:            enums.PaymentStatusCompleted,
	})
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
}

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != uuid.Nil {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	}
	return req
}
