package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "hello", F("count", 3))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", lines[0]["msg"])
	}
	if lines[0]["count"] != float64(3) {
		t.Errorf("count = %v, want 3", lines[0]["count"])
	}
	if _, ok := lines[0]["timestamp"]; !ok {
		t.Error("missing timestamp field")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines at warn level, got %d", len(lines))
	}
	if lines[0]["msg"] != "warn" || lines[1]["msg"] != "error" {
		t.Errorf("unexpected messages: %v, %v", lines[0]["msg"], lines[1]["msg"])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "call",
		F("content", "file body"),
		F("token", "abc"),
		F("path", "/tmp/x"),
	)

	line := decodeLines(t, &buf)[0]
	if line["content"] != "[REDACTED]" {
		t.Errorf("content = %v, want redacted", line["content"])
	}
	if line["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want redacted", line["token"])
	}
	if line["path"] != "/tmp/x" {
		t.Errorf("path = %v, want /tmp/x", line["path"])
	}
}

func TestLogger_WithCall(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithCall(CallMeta{
		Tool:   "read_file",
		CallID: "call-1",
		Class:  "parallel",
	})

	logger.Info(context.Background(), "done")

	line := decodeLines(t, &buf)[0]
	if line["tool.name"] != "read_file" {
		t.Errorf("tool.name = %v", line["tool.name"])
	}
	if line["tool.call_id"] != "call-1" {
		t.Errorf("tool.call_id = %v", line["tool.call_id"])
	}
	if line["tool.class"] != "parallel" {
		t.Errorf("tool.class = %v", line["tool.class"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Info(context.Background(), "ignored", F("k", "v"))
	logger.WithCall(CallMeta{Tool: "x"}).Error(context.Background(), "ignored")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() = %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewZapLogger(t *testing.T) {
	core, logs := zapobserver.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core)).WithCall(CallMeta{Tool: "glob", CallID: "c1"})

	logger.Debug(context.Background(), "lookup", F("hit", true), F("token", "abc"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["tool.name"] != "glob" || fields["tool.call_id"] != "c1" {
		t.Errorf("call fields missing: %v", fields)
	}
	if fields["hit"] != true || fields["token"] != "[REDACTED]" {
		t.Errorf("fields = %v", fields)
	}

	if NewZapLogger(nil).Sync() != nil {
		t.Error("nil logger should fall back to a no-op")
	}
}
