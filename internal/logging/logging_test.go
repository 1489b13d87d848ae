// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level info, got %v", cfg.Level)
	}
	if cfg.Format != "text" {
		t.Errorf("expected format text, got %s", cfg.Format)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Info("should be filtered")
	logger.Warn("should appear", "reason", "test")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Error("info message emitted despite warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn message missing from output: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: "json", Output: &buf})

	logger.Info("hello", "iface", "eth0")

	out := buf.String()
	if !strings.Contains(out, `"iface":"eth0"`) {
		t.Errorf("expected JSON attribute in output: %s", out)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Output: &buf}).With("component", "ctlplane")

	logger.Info("started")

	if !strings.Contains(buf.String(), "component=ctlplane") {
		t.Errorf("expected attached attribute in output: %s", buf.String())
	}
}
