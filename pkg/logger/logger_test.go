package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNoopBeforeInit(t *testing.T) {
	Close()
	Info("dropped %d", 1)
	if L().Core().Enabled(zap.ErrorLevel) {
		t.Error("logger should be a no-op before Init")
	}
}

func TestInitWritesLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path, Options{Level: "debug"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	Debug("debug %s", "one")
	Info("info %d", 2)
	Warn("warn")
	Error("error")
	L().Info("structured", zap.String("session_id", "s-1"))
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)
	for _, want := range []string{"DEBUG", "debug one", "INFO", "info 2", "WARN", "ERROR", `"session_id": "s-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestInitRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path, Options{Level: "warn", Format: "json"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	Info("hidden")
	Warn("shown")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("info message written at warn level")
	}
	if !strings.Contains(string(data), `"msg":"shown"`) {
		t.Errorf("expected json warn entry, got %s", data)
	}
}

func TestInitRejectsBadOptions(t *testing.T) {
	dir := t.TempDir()
	if err := Init(filepath.Join(dir, "a.log"), Options{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if err := Init(filepath.Join(dir, "b.log"), Options{Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}
