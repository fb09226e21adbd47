package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.in, slog.LevelInfo); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPrettyHandlerFormat(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, slog.LevelDebug)
	log := slog.New(h).With(slog.String("comp", "test"))

	log.Info("something happened", slog.Int("n", 3), slog.String("s", "v"))

	out := buf.String()
	for _, want := range []string{"INF", "[test]", "something happened", "n=3", `s="v"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestPrettyHandlerLevelGate(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, slog.LevelWarn))

	log.Info("quiet")
	log.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Error("info record passed a warn-level handler")
	}
	if !strings.Contains(out, "loud") {
		t.Error("warn record missing")
	}
}

type countHandler struct {
	n     int
	level slog.Level
}

func (c *countHandler) Enabled(_ context.Context, lvl slog.Level) bool { return lvl >= c.level }
func (c *countHandler) Handle(context.Context, slog.Record) error      { c.n++; return nil }
func (c *countHandler) WithAttrs([]slog.Attr) slog.Handler             { return c }
func (c *countHandler) WithGroup(string) slog.Handler                  { return c }

func TestFanoutDeliversToAll(t *testing.T) {
	t.Parallel()
	a := &countHandler{level: slog.LevelDebug}
	b := &countHandler{level: slog.LevelError}
	log := slog.New(Fanout(a, b))

	log.Info("hello")

	if a.n != 1 {
		t.Errorf("first handler got %d records", a.n)
	}
	// Fanout hands the record to every sink; each sink's own level
	// filtering happens in Handle for real handlers. countHandler counts
	// everything it is handed.
	if b.n != 1 {
		t.Errorf("second handler got %d records", b.n)
	}
}

func TestAtomicHandlerSwap(t *testing.T) {
	t.Parallel()
	first := &countHandler{level: slog.LevelDebug}
	second := &countHandler{level: slog.LevelDebug}
	ah := NewAtomicHandler(first)
	log := slog.New(ah)

	log.Info("one")
	ah.Swap(second)
	log.Info("two")

	if first.n != 1 || second.n != 1 {
		t.Fatalf("first=%d second=%d, want 1 and 1", first.n, second.n)
	}
}

func TestServiceApplyKeepsLogger(t *testing.T) {
	t.Parallel()
	svc, log := New(Config{Level: "info", Console: false}, nil)
	defer svc.Close()

	before := log
	svc.Apply(Config{Level: "debug", Console: false})
	if log != before {
		t.Fatal("Apply replaced the logger instance")
	}
	// The swapped-in handler must still accept records.
	log.Info("fine", slog.Time("at", time.Now()))
}
