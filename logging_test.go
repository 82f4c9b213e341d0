package engine

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestNoOpLoggerDiscardsEverything(t *testing.T) {
	l := NewNoOpLogger()
	if l.IsEnabled(LogLevelCrit) {
		t.Fatal("NoOpLogger should never report a level enabled")
	}
	// Log must not panic even though nothing observes the call.
	l.Log(LogEntry{Level: LogLevelCrit, Message: "should be discarded"})
}

func TestDefaultLoggerLevelGating(t *testing.T) {
	l := NewDefaultLogger(LogLevelWarn)
	if l.IsEnabled(LogLevelDebug) {
		t.Fatal("LogLevelDebug should be disabled when the floor is Warn")
	}
	if !l.IsEnabled(LogLevelError) {
		t.Fatal("LogLevelError should be enabled when the floor is Warn")
	}

	l.SetLevel(LogLevelDebug)
	if !l.IsEnabled(LogLevelDebug) {
		t.Fatal("SetLevel should lower the floor, enabling LogLevelDebug")
	}
}

func TestDefaultLoggerWritesFormattedLine(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	defer r.Close()

	l := NewFileLogger(w, LogLevelInfo)
	l.Log(LogEntry{
		Level:    LogLevelError,
		Category: "engine",
		EngineID: 7,
		Message:  "something broke",
		Err:      errors.New("disk full"),
		Context:  map[string]any{"fd": 42},
	})
	w.Close()

	var buf bytes.Buffer
	buf.ReadFrom(r)
	line := buf.String()

	for _, want := range []string{"ERROR", "engine=7", "engine:", "something broke", `err="disk full"`, "fd=42"} {
		if !strings.Contains(line, want) {
			t.Errorf("logged line %q does not contain %q", line, want)
		}
	}
}

func TestSetStructuredLoggerIsUsedWhenNoneSupplied(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	defer r.Close()
	defer w.Close()

	custom := NewFileLogger(w, LogLevelDebug)
	SetStructuredLogger(custom)
	defer SetStructuredLogger(nil)

	if got := getGlobalLogger(); got != custom {
		t.Fatal("getGlobalLogger() should return the installed custom logger")
	}
}

func TestGetGlobalLoggerDefaultsToNoOp(t *testing.T) {
	SetStructuredLogger(nil)
	l := getGlobalLogger()
	if _, ok := l.(*NoOpLogger); !ok {
		t.Fatalf("getGlobalLogger() without an installed logger = %T, want *NoOpLogger", l)
	}
}
