package encoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult is the subset of ffprobe's JSON output the compressor uses
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// ProbeStream describes a single stream in the container
type ProbeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	BitRate   string `json:"bit_rate"`
}

// ProbeFormat captures container-level metadata
type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// ParseProbeJSON decodes raw ffprobe JSON. Exported so parsing can be
// tested without an ffprobe binary.
func ParseProbeJSON(data []byte) (ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return result, nil
}

// DurationSeconds returns the container duration. Missing, non-numeric,
// non-finite and non-positive values are errors: nothing downstream may
// divide by them.
func (r ProbeResult) DurationSeconds() (float64, error) {
	raw := strings.TrimSpace(r.Format.Duration)
	if raw == "" || raw == "N/A" {
		return 0, fmt.Errorf("%w: no duration in container metadata", ErrInvalidDuration)
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0, fmt.Errorf("%w: %v seconds", ErrInvalidDuration, d)
	}
	return d, nil
}

// VideoStreamCount returns the number of video streams discovered
func (r ProbeResult) VideoStreamCount() int {
	return r.countStreams("video")
}

// AudioStreamCount returns the number of audio streams discovered
func (r ProbeResult) AudioStreamCount() int {
	return r.countStreams("audio")
}

func (r ProbeResult) countStreams(codecType string) int {
	count := 0
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, codecType) {
			count++
		}
	}
	return count
}

// BitRateKbps returns the container bitrate in kbit/s, or 0 when unavailable
func (r ProbeResult) BitRateKbps() int64 {
	bps, err := strconv.ParseInt(strings.TrimSpace(r.Format.BitRate), 10, 64)
	if err != nil || bps < 0 {
		return 0
	}
	return bps / 1000
}

// FFprobe probes media files with the ffprobe binary
type FFprobe struct {
	Binary string
	Logger *slog.Logger
}

// Inspect runs ffprobe against path and decodes its JSON output
func (f *FFprobe) Inspect(ctx context.Context, path string) (ProbeResult, error) {
	binary := strings.TrimSpace(f.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return ProbeResult{}, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return ProbeResult{}, fmt.Errorf("ffprobe: %w: %s", err, msg)
		}
		return ProbeResult{}, fmt.Errorf("ffprobe: %w", err)
	}
	return ParseProbeJSON(output)
}

// ProbeDuration returns the media duration of path in seconds
func (f *FFprobe) ProbeDuration(ctx context.Context, path string) (float64, error) {
	result, err := f.Inspect(ctx, path)
	if err != nil {
		return 0, &Error{Kind: KindProbe, Path: path, Err: err}
	}
	duration, err := result.DurationSeconds()
	if err != nil {
		return 0, &Error{Kind: KindProbe, Path: path, Err: err}
	}

	if f.Logger != nil {
		f.Logger.Debug("probed input",
			"path", path,
			"format", result.Format.FormatName,
			"duration_seconds", duration,
			"video_streams", result.VideoStreamCount(),
			"audio_streams", result.AudioStreamCount(),
			"source_bitrate_kbps", result.BitRateKbps(),
		)
	}
	return duration, nil
}
