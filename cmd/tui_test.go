package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theirongolddev/fintrack/internal/config"
)

func TestLogToFileKeepsConfiguredFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.File = "/var/log/fintrack.log"
	logToFile(&cfg)
	if cfg.Log.File != "/var/log/fintrack.log" {
		t.Errorf("Log.File = %q, want the configured path", cfg.Log.File)
	}
}

func TestTUIRuntimeLogsToCacheFile(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", cache)
	t.Setenv("FINTRACK_LOG_LEVEL", "")

	rt, err := newRuntime(logToFile)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}

	want := filepath.Join(cache, "fintrack", "fintrack-tui.log")
	if rt.cfg.Log.File != want {
		t.Errorf("Log.File = %q, want %q", rt.cfg.Log.File, want)
	}

	rt.log.Warnw("poll failed", "error", "dial tcp: connection refused")
	rt.Close()

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "poll failed") {
		t.Errorf("log file missing the warning:\n%s", data)
	}
}
