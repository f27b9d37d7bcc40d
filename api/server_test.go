package api

import (
	"net/http"
	"testing"

	"github.com/angelmondragon/creditmeter-backend/pkg/config"
)

func TestNewServerFallsBackToConfiguredPort(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Port: "8081"}}
	srv := NewServer(cfg, "", http.NotFoundHandler())
	if srv.Addr != ":8081" {
		t.Fatalf("expected :8081 got %q", srv.Addr)
	}
	if srv.WriteTimeout < srv.ReadTimeout {
		t.Fatalf("write timeout should cover slow completions")
	}

	srv = NewServer(cfg, ":9000", http.NotFoundHandler())
	if srv.Addr != ":9000" {
		t.Fatalf("explicit addr should win, got %q", srv.Addr)
	}
}
