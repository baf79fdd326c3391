package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger_CreatesDirAndLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	log, _, err := NewLogger(dir, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log dir missing: %v", err)
	}

	log.Info("test_message_from_logging_test")
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "pingmonitor.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"test_message_from_logging_test"`) || !strings.Contains(string(b), `"ts":`) ||
		!strings.Contains(string(b), `"service":"pingmonitor"`) {
		t.Fatalf("unexpected log line: %s", b)
	}
}

func TestNewLogger_Level(t *testing.T) {
	dir := t.TempDir()
	log, lvl, err := NewLogger(dir, "warn")
	if err != nil {
		t.Fatal(err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be disabled at warn")
	}
	lvl.SetLevel(zapcore.DebugLevel)
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("atomic level change should take effect")
	}

	if _, _, err := NewLogger(dir, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
