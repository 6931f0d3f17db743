package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LevelWarn)

	l.Debugf("debug message")
	l.Infof("info message")
	l.Warnf("warn message")
	l.Errorf("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Fatalf("logger at LevelWarn should suppress debug/info, got: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Fatalf("logger at LevelWarn should emit warn/error, got: %q", out)
	}
}

func TestDiscardLoggerIsSilent(t *testing.T) {
	Discard.Errorf("x")
	Discard.Warnf("x")
	Discard.Infof("x")
	Discard.Debugf("x")
}

func TestIsNilAndOrDefault(t *testing.T) {
	var l *DefaultLogger
	var asInterface Logger = l
	if !IsNil(asInterface) {
		t.Fatalf("IsNil should detect a typed-nil *DefaultLogger")
	}
	if IsNil(Discard) {
		t.Fatalf("IsNil(Discard) should be false")
	}
	if OrDefault(nil) == nil {
		t.Fatalf("OrDefault(nil) should never return nil")
	}
}
