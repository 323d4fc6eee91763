package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, LevelWarn)
	lg.Info("should be dropped")
	lg.Warn("should appear", "k", "v")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line leaked through warn filter: %q", out)
	}
	if !strings.Contains(out, "should appear") || !strings.Contains(out, "k=v") {
		t.Fatalf("warn line missing expected content: %q", out)
	}
}

func TestKeyValuePairing(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, LevelDebug)
	lg.Debug("tick", "task", "heartbeat", "id", 7)

	out := buf.String()
	if !strings.Contains(out, "task=heartbeat") || !strings.Contains(out, "id=7") {
		t.Fatalf("missing key/value pairs: %q", out)
	}
}

func TestOddKeyValueListMarksMissing(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, LevelDebug)
	lg.Info("oops", "onlykey")

	if !strings.Contains(buf.String(), "onlykey=MISSING") {
		t.Fatalf("expected MISSING marker, got %q", buf.String())
	}
}

func TestDebugfWarnfSatisfyInterpLoggerShape(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, LevelDebug)
	lg.Debugf("sind: %s in %s", "type error", "ADD")
	lg.Warnf("sind: %s", "aborted")

	out := buf.String()
	if !strings.Contains(out, "type error in ADD") {
		t.Fatalf("Debugf output missing formatted message: %q", out)
	}
	if !strings.Contains(out, "aborted") {
		t.Fatalf("Warnf output missing formatted message: %q", out)
	}
}

func TestNoColorWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, LevelInfo)
	if lg.color {
		t.Fatalf("expected color disabled for a plain io.Writer")
	}
	lg.Info("plain")
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("unexpected ANSI escape in non-terminal output: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"WARN":    LevelWarn,
		"error":   LevelError,
		"crit":    LevelCrit,
		"bogus":   LevelInfo,
		"":        LevelInfo,
		"Info":    LevelInfo,
		"warning": LevelWarn,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
