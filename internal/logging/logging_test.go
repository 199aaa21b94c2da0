package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	var buf bytes.Buffer

	oldLogger := defaultLogger

	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	defaultLogger = slog.New(handler)

	f()

	defaultLogger = oldLogger

	return buf.String()
}

func decodeLine(t *testing.T, output string) map[string]any {
	t.Helper()
	var entry map[string]any
	line := strings.TrimSpace(strings.Split(strings.TrimSpace(output), "\n")[0])
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return entry
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		format Format
	}{
		{name: "Debug level JSON format", level: LevelDebug, format: FormatJSON},
		{name: "Info level JSON format", level: LevelInfo, format: FormatJSON},
		{name: "Warn level Text format", level: LevelWarn, format: FormatText},
		{name: "Error level Text format", level: LevelError, format: FormatText},
		{name: "Default level (invalid value)", level: Level(999), format: FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level, tt.format)
			if GetLogger() == nil {
				t.Error("Expected logger to be initialized, got nil")
			}
		})
	}

	InitLogger(LevelWarn, FormatText)
}

func TestInitLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelInfo, FormatJSON)
	defer InitLogger(LevelWarn, FormatText)

	Debug("hidden")
	Info("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message logged at info level: %s", out)
	}

	entry := decodeLine(t, out)
	if entry["msg"] != "shown" || entry["key"] != "value" {
		t.Errorf("unexpected entry: %v", entry)
	}
	ts, ok := entry["time"].(string)
	if !ok || !strings.Contains(ts, "T") {
		t.Errorf("time = %v, want RFC3339 string", entry["time"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("JSON") != FormatJSON {
		t.Error("ParseFormat(JSON) should be FormatJSON")
	}
	if ParseFormat("text") != FormatText || ParseFormat("") != FormatText {
		t.Error("ParseFormat should default to FormatText")
	}
}

func TestSessionID(t *testing.T) {
	id := NewSessionID()
	if len(id) != 36 {
		t.Errorf("NewSessionID() = %q, want a 36-char UUID", id)
	}
	if id == NewSessionID() {
		t.Error("NewSessionID() returned the same value twice")
	}

	ctx := WithSessionID(context.Background(), id)
	if got := GetSessionID(ctx); got != id {
		t.Errorf("GetSessionID() = %q, want %q", got, id)
	}
	if got := GetSessionID(context.Background()); got != "" {
		t.Errorf("GetSessionID() on empty context = %q", got)
	}
	wrongType := context.WithValue(context.Background(), SessionIDKey, 12345)
	if got := GetSessionID(wrongType); got != "" {
		t.Errorf("GetSessionID() with wrong type = %q", got)
	}
}

func TestLoggerFromContext(t *testing.T) {
	output := captureLogOutput(func() {
		LoggerFromContext(WithSessionID(context.Background(), "abc")).Info("hello")
	})
	entry := decodeLine(t, output)
	if entry["session_id"] != "abc" {
		t.Errorf("session_id = %v, want abc", entry["session_id"])
	}

	output = captureLogOutput(func() {
		InfoContext(context.Background(), "plain")
	})
	if strings.Contains(output, "session_id") {
		t.Errorf("unexpected session_id in %s", output)
	}
}

func TestLoggingFunctions(t *testing.T) {
	tests := []struct {
		name  string
		fn    func()
		level string
	}{
		{"Debug", func() { Debug("m") }, "DEBUG"},
		{"Info", func() { Info("m") }, "INFO"},
		{"Warn", func() { Warn("m") }, "WARN"},
		{"Error", func() { Error("m") }, "ERROR"},
		{"DebugContext", func() { DebugContext(context.Background(), "m") }, "DEBUG"},
		{"WarnContext", func() { WarnContext(context.Background(), "m") }, "WARN"},
		{"ErrorContext", func() { ErrorContext(context.Background(), "m") }, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := decodeLine(t, captureLogOutput(tt.fn))
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
		})
	}
}

func TestTableOpened(t *testing.T) {
	entry := decodeLine(t, captureLogOutput(func() {
		TableOpened("/tmp/t.db", 3, 2, "read_only", false)
	}))
	if entry["msg"] != "table_opened" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["path"] != "/tmp/t.db" || entry["pages"] != float64(3) || entry["root"] != float64(2) {
		t.Errorf("unexpected fields: %v", entry)
	}
	if entry["read_only"] != false {
		t.Errorf("extra arg missing: %v", entry)
	}
}

func TestNodeSplit(t *testing.T) {
	entry := decodeLine(t, captureLogOutput(func() {
		NodeSplit("leaf", 0, 1)
	}))
	if entry["msg"] != "node_split" || entry["kind"] != "leaf" || entry["level"] != "DEBUG" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestStatementFailed(t *testing.T) {
	ctx := WithSessionID(context.Background(), "s1")
	entry := decodeLine(t, captureLogOutput(func() {
		StatementFailed(ctx, "insert 1 a b", errors.New("duplicate key"))
	}))
	if entry["msg"] != "statement_failed" || entry["error"] != "duplicate key" || entry["session_id"] != "s1" {
		t.Errorf("unexpected entry: %v", entry)
	}
}
