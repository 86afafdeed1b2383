package main

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"vidshrink/config"
	"vidshrink/tui"
)

func parseRootFlags(t *testing.T, args ...string) (*rootOptions, *cobra.Command) {
	t.Helper()
	opts := &rootOptions{}
	cmd := &cobra.Command{Use: "vidshrink"}
	bindRootFlags(cmd, opts)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	return opts, cmd
}

func TestResolveConfigDefaults(t *testing.T) {
	opts, cmd := parseRootFlags(t)
	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg != config.Default() {
		t.Errorf("config = %+v, want defaults", cfg)
	}
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidshrink.toml")
	content := `input_dir = "/srv/raw"
output_dir = "/srv/small"
audio_reserve_kbps = 96
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, cmd := parseRootFlags(t, "-c", path, "--output", "/tmp/out", "--log-level", "debug")
	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.InputDir != "/srv/raw" {
		t.Errorf("InputDir = %q, want value from file", cfg.InputDir)
	}
	if cfg.OutputDir != "/tmp/out" {
		t.Errorf("OutputDir = %q, want flag value", cfg.OutputDir)
	}
	if cfg.AudioReserveKbps != 96 {
		t.Errorf("AudioReserveKbps = %d, want 96", cfg.AudioReserveKbps)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestResolveConfigRejectsInvalid(t *testing.T) {
	opts, cmd := parseRootFlags(t, "--audio-reserve=-1")
	if _, err := opts.resolveConfig(cmd); err == nil {
		t.Fatal("expected validation error for a negative audio reserve")
	}
}

func TestPresetsCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"presets"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("presets: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "╭") {
		t.Error("table is not drawn with rounded borders")
	}
	for _, p := range config.AvailablePresets() {
		if !strings.Contains(text, string(p)) {
			t.Errorf("output lacks preset %q", p)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, nil)
	if !strings.Contains(out, "only") {
		t.Errorf("table = %s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("table without headers should be empty")
	}
}

func TestReportOutcome(t *testing.T) {
	m := tui.NewModel(tui.Options{InputDir: "./input"})

	m.State = tui.StateEmptyCatalog
	var out bytes.Buffer
	if err := reportOutcome(&out, m); err != nil {
		t.Fatalf("reportOutcome: %v", err)
	}
	want := "No files in \"./input\": move the files you want to compress there\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	m.State = tui.StateFatal
	m.Err = errors.New("list input directory: permission denied")
	if err := reportOutcome(&out, m); err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("err = %v", err)
	}

	out.Reset()
	m.State = tui.StateAwaitFile
	if err := reportOutcome(&out, m); err != nil || out.Len() != 0 {
		t.Errorf("quit mid-session: err %v, output %q", err, out.String())
	}
}

func TestSessionLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	release, err := acquireSessionLock(dir, logger)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	if _, err := acquireSessionLock(dir, logger); !errors.Is(err, errSessionActive) {
		t.Errorf("second lock err = %v, want errSessionActive", err)
	}

	release()
	again, err := acquireSessionLock(dir, logger)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	again()
}

func TestSessionLockSkippedWithoutOutputDir(t *testing.T) {
	release, err := acquireSessionLock(filepath.Join(t.TempDir(), "missing"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	release()
}
