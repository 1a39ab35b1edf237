package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/detection-viewer/internal/config"
)

func TestNew_WritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "viewer.log")
	cfg := config.Default().Logging
	cfg.File = file
	cfg.Compress = false

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("level: got %v", logger.GetLevel())
	}

	logger.WithField("filename", "street.jpg").Info("image rendered")
	logger.Debug("hidden")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "image rendered") || !strings.Contains(out, "street.jpg") {
		t.Errorf("log file missing entry: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug entry written at info level")
	}
}

func TestNew_BadLevel(t *testing.T) {
	cfg := config.Default().Logging
	cfg.Level = "loud"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("dropped")
}
