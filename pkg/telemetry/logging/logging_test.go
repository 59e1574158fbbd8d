package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("policy cached", "policy_id", "require-owner")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "policy cached" || entry["policy_id"] != "require-owner" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("evaluating", "operation", "capsule.create")
	if !strings.Contains(buf.String(), "operation=capsule.create") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info entry emitted at warn level: %q", buf.String())
	}

	logger.Warn("emitted")
	if buf.Len() == 0 {
		t.Error("warn entry not emitted at warn level")
	}
}

func TestNewInvalidConfig(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("New(invalid level) expected error")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("New(invalid format) expected error")
	}
}
