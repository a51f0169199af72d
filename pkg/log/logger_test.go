package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"info":    InfoLevel,
		"":        InfoLevel,
		"WARN":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("shout"); err == nil {
		t.Fatal("unknown level should error")
	}
}

func TestLoggerEmitsFieldsAndHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithLevel(WarnLevel), WithWriter(&buf)).WithComponent("store")

	logger.Info("dropped", F("rn", "task/1"))
	if buf.Len() != 0 {
		t.Fatalf("info below warn level was emitted: %s", buf.String())
	}

	logger.Warn("kept", F("rn", "task/1"))
	out := buf.String()
	for _, want := range []string{"kept", "component=store", "rn=task/1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithWriter(&buf), WithJSON())
	logger.Info("hello", F("queue", "q1"))
	if !strings.Contains(buf.String(), `"queue":"q1"`) {
		t.Fatalf("json output missing field: %s", buf.String())
	}
}
