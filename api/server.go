package api

import (
	"net/http"
	"time"

	"github.com/angelmondragon/creditmeter-backend/pkg/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	// Completions can hold a request open while the provider streams tokens.
	writeTimeout = 90 * time.Second
	idleTimeout  = 120 * time.Second
)

// NewServer wraps the router in an http.Server listening on addr.
func NewServer(cfg *config.Config, addr string, handler http.Handler) *http.Server {
	if addr == "" {
		addr = ":" + cfg.App.Port
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
