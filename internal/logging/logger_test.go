package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("also hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below configured level, got %q", buf.String())
	}

	logger.Warn("degraded mode")
	if !strings.Contains(buf.String(), "degraded mode") {
		t.Fatalf("expected warn message in output, got %q", buf.String())
	}
}

func TestLoggerArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("trigger accepted", "sequence", 7, "bit", 3)
	out := buf.String()
	if !strings.Contains(out, "sequence=7") || !strings.Contains(out, "bit=3") {
		t.Errorf("expected key=value pairs in output, got %q", out)
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&Config{Level: LevelDebug, Output: &buf})
	scoped := base.With("component", "receiver")

	scoped.Info("listening", "port", 9000)
	out := buf.String()
	if !strings.Contains(out, "component=receiver") {
		t.Errorf("expected component=receiver in output, got %q", out)
	}
	if !strings.Contains(out, "port=9000") {
		t.Errorf("expected port=9000 in output, got %q", out)
	}
}

func TestDefaultLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	defer SetDefault(NewLogger(nil))

	Info("hello", "who", "world")
	if !strings.Contains(buf.String(), "who=world") {
		t.Errorf("expected global Info to use default logger, got %q", buf.String())
	}
}
