package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultInputDir           = "./input"
	defaultOutputDir          = "./output"
	defaultProgressIntervalMS = 500
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultLogLevel           = "info"
	defaultLogFormat          = "text"
)

// Logging contains configuration for log output
type Logging struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level"`
	// Format is text or json
	Format string `toml:"format"`
	// File receives log records in addition to the in-app log panel (empty = panel only)
	File string `toml:"file"`
}

// Config holds the compressor settings
type Config struct {
	// InputDir is listed every cycle for candidate files
	InputDir string `toml:"input_dir"`
	// OutputDir receives <OutputDir>/<input file name>; it must already exist
	OutputDir string `toml:"output_dir"`
	// ProgressIntervalMS is the period of the progress indicator
	ProgressIntervalMS int `toml:"progress_interval_ms"`
	// AudioReserveKbps is subtracted from the planned bitrate to leave room
	// for the audio stream (0 = plan the whole budget for video)
	AudioReserveKbps int `toml:"audio_reserve_kbps"`
	// FFmpegBinary and FFprobeBinary name the external transcoder executables
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`

	Logging Logging `toml:"logging"`
}

// Default returns the built-in configuration: ./input, ./output, 500ms ticks
func Default() Config {
	return Config{
		InputDir:           defaultInputDir,
		OutputDir:          defaultOutputDir,
		ProgressIntervalMS: defaultProgressIntervalMS,
		AudioReserveKbps:   0,
		FFmpegBinary:       defaultFFmpegBinary,
		FFprobeBinary:      defaultFFprobeBinary,
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Load returns the defaults overlaid with the TOML file at path. An empty
// path means no file: the defaults are returned unchanged. A named file
// that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ProgressInterval returns the progress indicator period
func (c Config) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalMS) * time.Millisecond
}

// Validate checks the configuration for values the session cannot work with
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.InputDir) == "" {
		problems = append(problems, "input_dir must not be empty")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		problems = append(problems, "output_dir must not be empty")
	}
	if c.ProgressIntervalMS <= 0 {
		problems = append(problems, "progress_interval_ms must be positive")
	}
	if c.AudioReserveKbps < 0 {
		problems = append(problems, "audio_reserve_kbps must not be negative")
	}
	if strings.TrimSpace(c.FFmpegBinary) == "" {
		problems = append(problems, "ffmpeg_binary must not be empty")
	}
	if strings.TrimSpace(c.FFprobeBinary) == "" {
		problems = append(problems, "ffprobe_binary must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of text, json", c.Logging.Format))
	}
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}
