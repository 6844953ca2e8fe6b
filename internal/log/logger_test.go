package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

func TestSetupWriterUsesLevel(t *testing.T) {
	logger = nil
	once = *new(sync.Once)

	var buf bytes.Buffer
	SetupWriter(&buf, "WARN")
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}

	Info("dropped")
	Warn("kept")

	var out map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if out["msg"] != "kept" {
		t.Errorf("Expected msg 'kept', got %v", out["msg"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))

	WithComponent("video").Info("hello")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["component"] != "video" {
		t.Errorf("Expected component 'video', got %v", out["component"])
	}
	if out["msg"] != "hello" {
		t.Errorf("Expected msg 'hello', got %v", out["msg"])
	}
}

func TestWithSessionAndVideo(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))

	WithSession("sess-1").Info("session msg")
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["session_id"] != "sess-1" {
		t.Errorf("Expected session_id 'sess-1', got %v", out["session_id"])
	}

	buf.Reset()
	WithVideo("abc_0x0-1920x1080").Info("video msg")
	out = nil
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["video_id"] != "abc_0x0-1920x1080" {
		t.Errorf("Expected video_id, got %v", out["video_id"])
	}
}
