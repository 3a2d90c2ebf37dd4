package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/five82/panelwatch/internal/filter"
	"github.com/five82/panelwatch/internal/logline"
	"github.com/five82/panelwatch/internal/logtail"
	"github.com/five82/panelwatch/internal/registration"
)

const workerLog = `2025-03-27 22:03:14,456 - INFO - [#status]loaded 120 files
2025-03-27 22:03:15,001 - WARNING - [#status]disk is slow
plain line without a tag
2025-03-27 22:03:16,000 - INFO - [@progress]导入 (3/10) 30%
2025-03-27 22:03:16,500 - INFO - [@progress]完成 100%
`

func writeWorkerLog(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "worker.log")
	if err := os.WriteFile(path, []byte(workerLog), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRegisterCmd(t *testing.T) {
	dir := t.TempDir()
	registry := filepath.Join(dir, "scripts")
	logPath := writeWorkerLog(t, dir)
	layoutPath := filepath.Join(dir, "layout.yaml")
	if err := os.WriteFile(layoutPath, []byte("status:\n  title: Status\n"), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}

	out, err := execute(t, "register", "--id", "importer", "--log-file", logPath, "--layout", layoutPath, "--dir", registry)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.Contains(out, "Registered importer") {
		t.Fatalf("output = %q, want confirmation", out)
	}

	rec, err := registration.Load(filepath.Join(registry, "importer.json"))
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.LogFile != logPath {
		t.Errorf("LogFile = %q, want %q", rec.LogFile, logPath)
	}
	if got := rec.Layout["status"].Title; got != "Status" {
		t.Errorf("layout title = %q, want Status", got)
	}
}

func TestRegisterCmdRequiresFlags(t *testing.T) {
	if _, err := execute(t, "register", "--id", "x", "--dir", t.TempDir()); err == nil {
		t.Fatal("expected error without --log-file")
	}
}

func TestSnapshotCmd(t *testing.T) {
	dir := t.TempDir()
	registry := filepath.Join(dir, "scripts")
	logPath := writeWorkerLog(t, dir)
	if _, err := registration.Write(registry, registration.Record{ScriptID: "importer", LogFile: logPath}); err != nil {
		t.Fatalf("write registration: %v", err)
	}
	cfgPath := filepath.Join(dir, "config.toml")
	cfg := "log_file = \"" + filepath.Join(dir, "panelwatch.log") + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := execute(t, "--config", cfgPath, "snapshot", registry)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	var got struct {
		Scripts []struct {
			ID string `json:"id"`
		} `json:"scripts"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(got.Scripts) != 1 || got.Scripts[0].ID != "importer" {
		t.Fatalf("scripts = %+v, want importer", got.Scripts)
	}
}

func TestTailCmd(t *testing.T) {
	logPath := writeWorkerLog(t, t.TempDir())

	out, err := execute(t, "tail", logPath, "-n", "2")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "完成 100%") {
		t.Fatalf("tail -n 2 = %q", lines)
	}

	out, err = execute(t, "tail", logPath, "-n", "0", "--decoded")
	if err != nil {
		t.Fatalf("tail --decoded: %v", err)
	}
	if strings.Contains(out, "plain line") {
		t.Errorf("decoded output kept untagged line: %q", out)
	}
	if !strings.Contains(out, "22:03:15 warning [#status] disk is slow") {
		t.Errorf("decoded output = %q", out)
	}
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{
			"2025-03-27 22:03:15,001 - WARN - [#status]disk is slow",
			"22:03:15 warning [#status] disk is slow",
		},
		{
			"2025-03-27 22:03:16,000 - INFO - [@progress]导入 (3/10) 30%",
			"22:03:16 info    [@progress] 导入 (3/10) 30.0%",
		},
		{
			"2025-03-27 22:03:16,000 - INFO - [@progress]no percentage here",
			"22:03:16 info    [@progress] no percentage here",
		},
	}
	for _, tt := range tests {
		ev, ok := logline.Decode(tt.raw)
		if !ok {
			t.Fatalf("Decode(%q) failed", tt.raw)
		}
		if got := formatEvent(ev); got != tt.want {
			t.Errorf("formatEvent(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestPrintEventsFilters(t *testing.T) {
	eval, err := filter.New(filter.Criteria{Expr: `kind == "progress" && percentage >= 50`})
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}

	lines := make(chan logtail.Line, 8)
	for _, l := range strings.Split(strings.TrimSpace(workerLog), "\n") {
		lines <- logtail.Line{Text: l}
	}
	lines <- logtail.Line{Err: os.ErrClosed}
	close(lines)

	var out, errOut bytes.Buffer
	if err := printEvents(&out, &errOut, lines, eval); err != nil {
		t.Fatalf("printEvents: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "22:03:16 info    [@progress] 完成 100.0%" {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(errOut.String(), "file already closed") {
		t.Errorf("stderr = %q, want line error", errOut.String())
	}
}
