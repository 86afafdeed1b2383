package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"

	"vidshrink/config"
	"vidshrink/encoder"
	"vidshrink/logging"
	"vidshrink/tui"
)

const lockFileName = ".vidshrink.lock"

var errSessionActive = errors.New("another vidshrink session is writing to this output directory")

// runSession wires the logger, the session lock and the compressor into the
// interactive program and blocks until the user quits.
func runSession(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	ring := logging.NewRing(logging.DefaultRingSize)
	logger, closer, err := logging.NewFromConfig(cfg.Logging, ring)
	if err != nil {
		return err
	}
	defer closer.Close()

	release, err := acquireSessionLock(cfg.OutputDir, logger)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("session started", "input_dir", cfg.InputDir, "output_dir", cfg.OutputDir)

	model := tui.NewModel(tui.Options{
		InputDir:   cfg.InputDir,
		OutputDir:  cfg.OutputDir,
		Compressor: encoder.NewCompressor(cfg, logger),
		Logs:       ring,
		Logger:     logger,
		Context:    ctx,
	})

	var programOpts []tea.ProgramOption
	if isTerminal(os.Stdout) {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	final, err := tea.NewProgram(model, programOpts...).Run()
	// Run may return while a cancelled ffmpeg is still exiting
	cancel()
	model.Wait()
	if err != nil {
		return fmt.Errorf("run session: %w", err)
	}
	return reportOutcome(stdout, final)
}

// reportOutcome prints what the alternate screen hid when the program
// stopped on its own.
func reportOutcome(w io.Writer, final tea.Model) error {
	m, ok := final.(tui.Model)
	if !ok {
		return nil
	}
	switch m.State {
	case tui.StateEmptyCatalog:
		fmt.Fprintf(w, "No files in %q: move the files you want to compress there\n", m.InputDir())
	case tui.StateFatal:
		return m.Err
	}
	return nil
}

// acquireSessionLock takes a non-blocking lock in the output directory so
// two sessions never write the same files. A missing output directory is
// left for ffmpeg to report and the lock is skipped.
func acquireSessionLock(outputDir string, logger *slog.Logger) (release func(), err error) {
	info, statErr := os.Stat(outputDir)
	if statErr != nil || !info.IsDir() {
		logger.Warn("output directory not found, session lock skipped", "dir", outputDir)
		return func() {}, nil
	}

	path := filepath.Join(outputDir, lockFileName)
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errSessionActive, path)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release session lock", "path", path, "error", err)
		}
	}, nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
