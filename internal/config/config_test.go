package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/five82/panelwatch/internal/logtail"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	wantDir, err := expandPath(defaultRegistryDir)
	if err != nil {
		t.Fatalf("expandPath(defaultRegistryDir) returned error: %v", err)
	}
	if cfg.RegistryDir != wantDir {
		t.Fatalf("RegistryDir = %q, want %q", cfg.RegistryDir, wantDir)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("PollInterval = %v, want 1s", cfg.PollInterval)
	}
	if cfg.InactiveTimeout != 5*time.Minute {
		t.Fatalf("InactiveTimeout = %v, want 5m", cfg.InactiveTimeout)
	}
	if cfg.MaxConcurrentReads != 8 {
		t.Fatalf("MaxConcurrentReads = %d, want 8", cfg.MaxConcurrentReads)
	}
	if cfg.MaxReadBytes != logtail.DefaultMaxReadBytes {
		t.Fatalf("MaxReadBytes = %d, want %d", cfg.MaxReadBytes, logtail.DefaultMaxReadBytes)
	}
	if !reflect.DeepEqual(cfg.Encodings, logtail.DefaultEncodings) {
		t.Fatalf("Encodings = %v, want %v", cfg.Encodings, logtail.DefaultEncodings)
	}
	if cfg.ForceReload != 0 {
		t.Fatalf("ForceReload = %v, want 0", cfg.ForceReload)
	}
	if !strings.HasPrefix(cfg.LogFile, home) || cfg.LogLevel != "info" {
		t.Fatalf("LogFile/LogLevel = %q/%q, want under HOME and info", cfg.LogFile, cfg.LogLevel)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
registry_dir = "  ~/workers  "
poll_interval = 0.5
inactive_timeout = 10
max_concurrent_reads = 3
max_read_bytes = 65536
encodings = [" UTF-8 ", "gb18030"]
force_reload = 5
log_file = " ~/pw.log "
log_level = " DEBUG "
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RegistryDir != filepath.Join(home, "workers") {
		t.Fatalf("RegistryDir = %q, want %q", cfg.RegistryDir, filepath.Join(home, "workers"))
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("PollInterval = %v, want 500ms", cfg.PollInterval)
	}
	if cfg.InactiveTimeout != 10*time.Minute {
		t.Fatalf("InactiveTimeout = %v, want 10m", cfg.InactiveTimeout)
	}
	if cfg.MaxConcurrentReads != 3 || cfg.MaxReadBytes != 65536 {
		t.Fatalf("reads = %d/%d, want 3/65536", cfg.MaxConcurrentReads, cfg.MaxReadBytes)
	}
	if want := []string{"utf-8", "gb18030"}; !reflect.DeepEqual(cfg.Encodings, want) {
		t.Fatalf("Encodings = %v, want %v", cfg.Encodings, want)
	}
	if cfg.ForceReload != 5*time.Second {
		t.Fatalf("ForceReload = %v, want 5s", cfg.ForceReload)
	}
	if cfg.LogFile != filepath.Join(home, "pw.log") {
		t.Fatalf("LogFile = %q", cfg.LogFile)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
registry_dir = "   "
poll_interval = 0
max_concurrent_reads = -1
encodings = ["  "]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Default()
	if cfg.RegistryDir != want.RegistryDir {
		t.Fatalf("RegistryDir = %q, want %q", cfg.RegistryDir, want.RegistryDir)
	}
	if cfg.PollInterval != want.PollInterval || cfg.MaxConcurrentReads != want.MaxConcurrentReads {
		t.Fatalf("PollInterval/MaxConcurrentReads = %v/%d, want defaults", cfg.PollInterval, cfg.MaxConcurrentReads)
	}
	if !reflect.DeepEqual(cfg.Encodings, want.Encodings) {
		t.Fatalf("Encodings = %v, want %v", cfg.Encodings, want.Encodings)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := writeConfig(t, `registry_dir = [`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_UnknownEncodingFails(t *testing.T) {
	path := writeConfig(t, `encodings = ["klingon"]`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "klingon") {
		t.Fatalf("Load error = %v, want unknown encoding", err)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
