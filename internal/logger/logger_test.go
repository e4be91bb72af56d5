package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"nonsense", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelGate(t *testing.T) {
	Init("warn", "json")
	var buf bytes.Buffer
	SetOutput(&buf)

	Debug("dropped")
	Info("dropped too")
	Warn("kept %d", 1)
	Error("kept %d", 2)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("below-threshold messages leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] kept 1") || !strings.Contains(out, "[ERROR] kept 2") {
		t.Errorf("expected warn and error entries, got %q", out)
	}
}

func TestUninitializedIsSafe(t *testing.T) {
	defaultLogger = nil
	Debug("no logger")
	Info("no logger")
	Warn("no logger")
	Error("no logger")
}
