package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/creditmeter-backend/pkg/config"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthLiveSetsEnvHeader(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	rec := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := rec.Header().Get(envHeader); got != "dev" {
		t.Fatalf("expected env header dev, got %q", got)
	}
}

func TestHealthReadyReportsChecks(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	deps := map[string]Pinger{
		"db":     pingerFunc(func(ctx context.Context) error { return nil }),
		"redis":  nil,
		"pubsub": pingerFunc(func(ctx context.Context) error { return nil }),
	}

	rec := httptest.NewRecorder()
	HealthReady(cfg, deps, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Status != "ready" || len(body.Data.Checks) != 2 {
		t.Fatalf("unexpected body %+v", body.Data)
	}
	if _, ok := body.Data.Checks["redis"]; ok {
		t.Fatalf("unconfigured dependency should be skipped")
	}
}

func TestHealthReadyFailsWhenDependencyDown(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	deps := map[string]Pinger{
		"db":    pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
		"redis": pingerFunc(func(ctx context.Context) error { return nil }),
	}

	rec := httptest.NewRecorder()
	HealthReady(cfg, deps, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Checks map[string]string `json:"checks"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Details.Checks["db"] != "down" || body.Error.Details.Checks["redis"] != "up" {
		t.Fatalf("unexpected checks %+v", body.Error.Details.Checks)
	}
}
