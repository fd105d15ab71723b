package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info written at warn level: %q", buf.String())
	}
	logger.Warn("shown")
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Errorf("warn not written: %q", buf.String())
	}
}

// withDefault swaps the default logger for the duration of a test.
func withDefault(t *testing.T, l *slog.Logger) {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(l)
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestFromContextFields(t *testing.T) {
	var buf bytes.Buffer
	withDefault(t, New(&buf, "info", "json"))

	var ctx context.Context
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	ctx = WithOperator(ctx, "admin@uc.edu")
	ctx = WithJob(ctx, "job-1")
	WithFields(ctx, "file", "students.csv").Info("upload started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	for _, key := range []string{"request_id", "operator", "job_id", "file"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("log entry missing %q: %v", key, entry)
		}
	}
	if entry["operator"] != "admin@uc.edu" || entry["job_id"] != "job-1" {
		t.Errorf("entry = %v", entry)
	}
}

func TestOperator(t *testing.T) {
	ctx := context.Background()
	if Operator(ctx) != "" {
		t.Error("Operator on empty context should be blank")
	}
	if got := WithOperator(ctx, ""); got != ctx {
		t.Error("WithOperator(\"\") should return ctx unchanged")
	}
	if Operator(WithOperator(ctx, "ops")) != "ops" {
		t.Error("Operator did not round trip")
	}
}
