package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"clever/internal/config"
)

func TestNew_JSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.Log{Level: "info", Format: "auto"}, &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Debug().Msg("hidden")
	log.Info().Str("thread", "t1").Msg("started")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if rec["message"] != "started" || rec["thread"] != "t1" || rec["level"] != "info" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.Log{Level: "warn", Format: "console"}, &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Warn().Msg("careful")
	out := buf.String()
	if !strings.Contains(out, "careful") || strings.HasPrefix(out, "{") {
		t.Fatalf("unexpected console output %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("console output to a buffer should not be coloured: %q", out)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(config.Log{Level: "loud", Format: "json"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := New(config.Log{Level: "info", Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
