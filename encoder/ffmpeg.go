package encoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"vidshrink/config"
)

// Job is a single encode submitted to the external transcoder
type Job struct {
	InputPath   string
	OutputPath  string
	BitrateKbps int
	Preset      config.Preset
	// Duration of the input, used for percentage and ETA
	Duration time.Duration
}

// Progress represents the current encoding progress
type Progress struct {
	Frame         int64
	FPS           float64
	Bitrate       string
	TotalSize     int64
	OutTimeUs     int64
	Speed         string
	Percentage    float64
	TotalDuration time.Duration
	ETA           time.Duration

	// Fields for accuracy and display
	SpeedRaw       string // Raw speed string from FFmpeg (may be "N/A")
	BitrateRaw     string // Raw bitrate string from FFmpeg
	ETAAvailable   bool   // Whether ETA can be calculated
	LastValidSpeed float64
	Done           bool // progress=end seen
}

// ClampPercentage limits pct to [0, 100]
func ClampPercentage(pct float64) float64 {
	return math.Max(0, math.Min(100, pct))
}

// parseOutTime parses FFmpeg's out_time format "HH:MM:SS.microseconds"
func parseOutTime(timeStr string) int64 {
	timeStr = strings.TrimSpace(timeStr)
	if timeStr == "" || timeStr == "N/A" {
		return -1
	}

	parts := strings.Split(timeStr, ":")
	if len(parts) != 3 {
		return -1
	}

	hours, err1 := strconv.ParseInt(parts[0], 10, 64)
	mins, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || hours < 0 || mins < 0 {
		return -1
	}

	secParts := strings.Split(parts[2], ".")
	secs, err3 := strconv.ParseInt(secParts[0], 10, 64)
	if err3 != nil || secs < 0 {
		return -1
	}

	var microsecs int64
	if len(secParts) > 1 {
		// Pad or truncate to 6 digits
		usStr := secParts[1]
		for len(usStr) < 6 {
			usStr += "0"
		}
		if len(usStr) > 6 {
			usStr = usStr[:6]
		}
		microsecs, _ = strconv.ParseInt(usStr, 10, 64)
	}

	return hours*3600*1000000 + mins*60*1000000 + secs*1000000 + microsecs
}

// progressUpdate holds a batch of progress values
type progressUpdate struct {
	frame      int64
	frameSet   bool
	fps        float64
	fpsSet     bool
	bitrate    string
	bitrateRaw string
	bitrateSet bool
	size       int64
	sizeSet    bool
	outTimeUs  int64
	outTimeSet bool
	speed      float64
	speedRaw   string
	speedSet   bool
}

// progressTracker folds ffmpeg -progress batches into a Progress. It is
// owned by the goroutine reading ffmpeg's stdout.
type progressTracker struct {
	progress Progress
	start    time.Time
	onUpdate func(Progress)
}

func newProgressTracker(total time.Duration, onUpdate func(Progress)) *progressTracker {
	return &progressTracker{
		progress: Progress{TotalDuration: total, ETA: -1},
		start:    time.Now(),
		onUpdate: onUpdate,
	}
}

// parse reads ffmpeg -progress output. ffmpeg emits key=value pairs with
// "progress=continue" or "progress=end" closing each batch.
func (t *progressTracker) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	const maxScannerBuffer = 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxScannerBuffer)

	var batch progressUpdate
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "progress=") {
			t.apply(batch)
			if line == "progress=end" {
				t.finalize()
			}
			t.publish()
			batch = progressUpdate{}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "frame":
			if frame, err := strconv.ParseInt(value, 10, 64); err == nil && frame >= 0 {
				batch.frame = frame
				batch.frameSet = true
			}

		case "fps":
			if fps, err := strconv.ParseFloat(value, 64); err == nil && fps >= 0 {
				batch.fps = fps
				batch.fpsSet = true
			}

		case "bitrate":
			batch.bitrateRaw = value
			if value != "N/A" && value != "" {
				batch.bitrate = value
			} else {
				batch.bitrate = "N/A"
			}
			batch.bitrateSet = true

		case "total_size":
			if size, err := strconv.ParseInt(value, 10, 64); err == nil && size >= 0 {
				batch.size = size
				batch.sizeSet = true
			}

		case "out_time_us":
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				batch.outTimeUs = us
				batch.outTimeSet = true
			}

		case "out_time_ms":
			// Despite the name ffmpeg reports microseconds here too
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 && !batch.outTimeSet {
				batch.outTimeUs = us
				batch.outTimeSet = true
			}

		case "out_time":
			if us := parseOutTime(value); us >= 0 && !batch.outTimeSet {
				batch.outTimeUs = us
				batch.outTimeSet = true
			}

		case "speed":
			batch.speedRaw = value
			if value == "N/A" {
				batch.speedSet = true
			} else if speed, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil && speed >= 0 {
				batch.speed = speed
				batch.speedSet = true
			}
		}
	}

	if batch.frameSet || batch.outTimeSet || batch.sizeSet {
		t.apply(batch)
		t.publish()
	}
	return scanner.Err()
}

func (t *progressTracker) apply(batch progressUpdate) {
	p := &t.progress
	if batch.frameSet {
		p.Frame = batch.frame
	}
	if batch.fpsSet {
		p.FPS = batch.fps
	}
	if batch.bitrateSet {
		p.BitrateRaw = batch.bitrateRaw
		p.Bitrate = batch.bitrate
	}
	if batch.sizeSet {
		p.TotalSize = batch.size
	}
	if batch.outTimeSet {
		p.OutTimeUs = batch.outTimeUs
	}
	if batch.speedSet {
		p.SpeedRaw = batch.speedRaw
		switch {
		case batch.speedRaw == "N/A":
			// Keep LastValidSpeed for the ETA
			p.Speed = "N/A"
		case batch.speed > 0:
			p.Speed = batch.speedRaw
			p.LastValidSpeed = batch.speed
		default:
			p.Speed = batch.speedRaw
		}
	}

	if total := p.TotalDuration.Microseconds(); total > 0 && p.OutTimeUs > 0 {
		p.Percentage = ClampPercentage(float64(p.OutTimeUs) / float64(total) * 100)
	}
	t.calculateETA()
}

// calculateETA derives the remaining time from the speed multiplier, which
// is the ratio of media time to wall time.
func (t *progressTracker) calculateETA() {
	p := &t.progress
	total := p.TotalDuration.Microseconds()
	if p.LastValidSpeed <= 0 || total <= 0 || p.OutTimeUs <= 0 {
		p.ETAAvailable = false
		p.ETA = -1
		return
	}
	remaining := total - p.OutTimeUs
	if remaining <= 0 {
		p.ETAAvailable = true
		p.ETA = 0
		return
	}
	p.ETA = time.Duration(float64(remaining)/p.LastValidSpeed) * time.Microsecond
	p.ETAAvailable = true
}

func (t *progressTracker) finalize() {
	t.progress.Percentage = 100
	t.progress.ETA = 0
	t.progress.ETAAvailable = false
	t.progress.Done = true
}

func (t *progressTracker) publish() {
	if t.onUpdate != nil {
		t.onUpdate(t.progress)
	}
}

// BuildArgs constructs the ffmpeg arguments for a job. The bitrate is
// given in kbit/s, the preset is passed through verbatim and faststart
// moves the moov atom to the front for progressive playback.
func BuildArgs(job Job) []string {
	return []string{
		"-hide_banner",
		"-nostats",
		"-progress", "pipe:1",
		"-y",
		"-i", job.InputPath,
		"-b:v", strconv.Itoa(job.BitrateKbps) + "k",
		"-preset", string(job.Preset),
		"-movflags", "+faststart",
		job.OutputPath,
	}
}

// FFmpeg runs encode jobs with the ffmpeg binary
type FFmpeg struct {
	Binary string
	Logger *slog.Logger
}

// Encode runs job to completion. onProgress is called from the stdout
// reader goroutine after every progress batch.
func (f *FFmpeg) Encode(ctx context.Context, job Job, onProgress func(Progress)) error {
	binary := strings.TrimSpace(f.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	args := BuildArgs(job)
	cmd := exec.CommandContext(ctx, binary, args...)
	f.log().Debug("starting ffmpeg", "command", binary+" "+strings.Join(args, " "))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tracker := newProgressTracker(job.Duration, onProgress)
	tail := &stderrTail{max: 20}

	// Both pipes must be drained before Wait
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := tracker.parse(stdout); err != nil {
			f.log().Warn("progress reader error", "error", err)
		}
		// ffmpeg blocks on a full pipe, so keep reading after a parse error
		_, _ = io.Copy(io.Discard, stdout)
	}()
	go func() {
		defer wg.Done()
		f.captureStderr(stderr, tail)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		removePartialOutput(job.OutputPath, started)
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg: %w", ctx.Err())
		}
		if last := tail.last(); last != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, last)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func (f *FFmpeg) captureStderr(r io.Reader, tail *stderrTail) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail.add(line)
		f.log().Debug("ffmpeg", "line", line)
	}
	if err := scanner.Err(); err != nil {
		f.log().Warn("stderr reader error", "error", err)
		_, _ = io.Copy(io.Discard, r)
	}
}

func (f *FFmpeg) log() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.Logger
}

// stderrTail keeps the last max lines of ffmpeg's stderr for error messages
type stderrTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (s *stderrTail) add(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	if len(s.lines) > s.max {
		s.lines = s.lines[len(s.lines)-s.max:]
	}
}

func (s *stderrTail) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return ""
	}
	return s.lines[len(s.lines)-1]
}

// removePartialOutput deletes an output file written by a failed run. A file
// older than the run belongs to someone else and is left alone.
func removePartialOutput(path string, started time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.ModTime().Before(started.Add(-time.Second)) {
		return
	}
	_ = os.Remove(path)
}
