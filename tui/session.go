package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"vidshrink/catalog"
	"vidshrink/config"
	"vidshrink/encoder"
)

// Session holds the choices made during one prompt cycle. It is reset
// whenever the cycle restarts.
type Session struct {
	Entry    catalog.Entry
	HasEntry bool
	SizeMB   float64
	Preset   config.Preset
}

// Reset discards every choice
func (s *Session) Reset() {
	*s = Session{}
}

// SelectFile resolves the typed index against the current listing
func (s *Session) SelectFile(entries []catalog.Entry, text string) error {
	index, err := catalog.ParseIndex(text)
	if err != nil {
		return err
	}
	entry, err := catalog.Find(entries, index)
	if err != nil {
		return err
	}
	s.Entry = entry
	s.HasEntry = true
	return nil
}

// SetSize records the target size typed in megabytes
func (s *Session) SetSize(text string) error {
	size, err := ParseSize(text)
	if err != nil {
		return err
	}
	s.SizeMB = size
	return nil
}

// SetPreset records the preset token typed at the bare prompt
func (s *Session) SetPreset(text string) error {
	preset, err := config.ParsePreset(text)
	if err != nil {
		return err
	}
	s.Preset = preset
	return nil
}

// Request builds the compression request for the current choices. The
// output keeps the input's file name.
func (s Session) Request(outputDir string) encoder.Request {
	return encoder.Request{
		InputPath:     s.Entry.Path,
		OutputPath:    catalog.JoinPath(outputDir, s.Entry.FileName),
		DesiredSizeMB: s.SizeMB,
		Preset:        s.Preset,
		JobID:         encoder.NewJobID(),
	}
}

// ParseSize parses a size in megabytes; it must be a finite number above zero
func ParseSize(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	size, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", encoder.ErrInvalidSize, trimmed)
	}
	if math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return 0, fmt.Errorf("%w: %q", encoder.ErrInvalidSize, trimmed)
	}
	return size, nil
}
