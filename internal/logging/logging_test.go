package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Debug(context.Background(), "hidden")
	log.With(String("sweep", "snr")).Info(context.Background(), "point done",
		Float64("snr_db", 12), Int("index", 3), Bool("comp", false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line (debug filtered), got %d: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "point done" || rec["sweep"] != "snr" || rec["snr_db"] != 12.0 || rec["index"] != 3.0 {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "WARNING", Output: &buf})
	log.Info(context.Background(), "quiet")
	log.Warn(context.Background(), "loud")

	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "loud") {
		t.Errorf("warn level not honoured: %q", out)
	}
}

func TestWithRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx, log := WithRequestLogger(context.Background(), New(Config{Format: "json", Output: &buf}))

	id := RequestIDFromContext(ctx)
	if id == "" {
		t.Fatal("request id not attached to context")
	}
	if again, same := EnsureRequestID(ctx); again != ctx || same != id {
		t.Error("EnsureRequestID replaced an existing id")
	}

	log.Info(ctx, "hello")
	if !strings.Contains(buf.String(), id) {
		t.Errorf("log line missing request id %q: %s", id, buf.String())
	}
}

func TestNoop(t *testing.T) {
	log := Noop().With(String("k", "v"))
	log.Error(context.Background(), "dropped", Err(nil))
}
