package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	dl.Debug("handling event", "command", "host.tap", "queued", 3)

	entry := decode(t, &buf)
	if entry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", entry["level"])
	}
	if entry["message"] != "handling event" {
		t.Errorf("expected message 'handling event', got %v", entry["message"])
	}
	if entry["command"] != "host.tap" {
		t.Errorf("expected command='host.tap', got %v", entry["command"])
	}
	if entry["queued"] != float64(3) {
		t.Errorf("expected queued=3, got %v", entry["queued"])
	}
}

func TestDispatcherLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("event failed", "command", "ui.message", "error", "queue full")

	entry := decode(t, &buf)
	if entry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", entry["level"])
	}
	if entry["error"] != "queue full" {
		t.Errorf("expected error='queue full', got %v", entry["error"])
	}
}

func TestDispatcherLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered, got %q", buf.String())
	}

	dl.Info("shown")
	if entry := decode(t, &buf); entry["message"] != "shown" {
		t.Errorf("expected message 'shown', got %v", entry["message"])
	}
}

func TestDispatcherLogger_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("odd", "key", "value", 42, "ignored", "dangling")

	entry := decode(t, &buf)
	if entry["key"] != "value" {
		t.Errorf("expected key='value', got %v", entry["key"])
	}
	if _, ok := entry["dangling"]; ok {
		t.Error("dangling key should be dropped")
	}
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "bogus")

	logger.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("unknown level should default to info, got %q", buf.String())
	}

	logger.Warn().Msg("visible")
	entry := decode(t, &buf)
	if entry["service"] != ServiceName {
		t.Errorf("expected service=%s, got %v", ServiceName, entry["service"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}
