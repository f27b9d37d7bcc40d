package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
)

func TestLoggingRecordsStatusAndPath(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"})
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte("no funds"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/completions", nil))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log entry %q: %v", buf.String(), err)
	}
	if entry["message"] != "request.complete" {
		t.Fatalf("unexpected message %v", entry["message"])
	}
	if entry["status"] != float64(http.StatusPaymentRequired) || entry["path"] != "/api/v1/completions" || entry["bytes"] != float64(8) {
		t.Fatalf("unexpected fields %v", entry)
	}
}
