package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "runner", LevelInfo)

	l.Debugf("hidden")
	l.Infof("shown key=%s", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line must be filtered at info level")
	}
	if !strings.Contains(out, "INFO runner: shown key=value") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestPrefixWriter_PrefixesLines(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	w := NewPrefixWriter(&mu, &buf, "build::packages/utils |")

	_, _ = w.Write([]byte("one\ntwo\n"))

	want := "build::packages/utils | one\nbuild::packages/utils | two\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestPrefixWriter_BuffersPartialLines(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	w := NewPrefixWriter(&mu, &buf, "k |")

	_, _ = w.Write([]byte("par"))
	if buf.Len() != 0 {
		t.Fatalf("partial line emitted early: %q", buf.String())
	}
	_, _ = w.Write([]byte("tial\n"))
	if got, want := buf.String(), "k | partial\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrefixWriter_FlushTerminatesPartialLine(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	w := NewPrefixWriter(&mu, &buf, "k !")

	_, _ = w.Write([]byte("no newline"))
	if err := w.Flush(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got, want := buf.String(), "k ! no newline\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	// A second flush is a no-op.
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "k ! no newline\n" {
		t.Errorf("flush must be idempotent, got %q", got)
	}
}
