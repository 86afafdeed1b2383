package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidshrink/config"
)

// DefaultProgressInterval is the period of the progress indicator
const DefaultProgressInterval = 500 * time.Millisecond

// Prober reads the duration of a media file
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Encoder runs one encode job to completion
type Encoder interface {
	Encode(ctx context.Context, job Job, onProgress func(Progress)) error
}

// Request is one compression asked for by the user
type Request struct {
	InputPath     string
	OutputPath    string
	DesiredSizeMB float64
	Preset        config.Preset
	// JobID correlates log records; NewJobID is used when empty
	JobID string
}

// Result is the outcome of Compress. Message is ready for display.
type Result struct {
	OK              bool
	Message         string
	OutputPath      string
	BitrateKbps     int
	DurationSeconds float64
	OutputSize      int64
	Elapsed         time.Duration
	Err             error
}

// Status is handed to the progress notifier on every tick
type Status struct {
	Tick        int
	Indicator   string
	BitrateKbps int
	Progress    Progress
	Elapsed     time.Duration
}

// Indicator returns the animated progress text for a tick. The number of
// trailing dots cycles 0, 1, 2, 3.
func Indicator(tick int) string {
	if tick < 0 {
		tick = 0
	}
	return "Compressing" + strings.Repeat(".", tick%4)
}

// NewJobID returns a time-ordered identifier for a compression job
func NewJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("job-%d", time.Now().UnixNano())
	}
	return id.String()
}

// Compressor probes, plans and encodes one file at a time
type Compressor struct {
	Prober           Prober
	Encoder          Encoder
	Interval         time.Duration
	AudioReserveKbps int
	Logger           *slog.Logger
}

// NewCompressor wires a Compressor to the ffprobe and ffmpeg binaries named in cfg
func NewCompressor(cfg config.Config, logger *slog.Logger) *Compressor {
	return &Compressor{
		Prober:           &FFprobe{Binary: cfg.FFprobeBinary, Logger: logger},
		Encoder:          &FFmpeg{Binary: cfg.FFmpegBinary, Logger: logger},
		Interval:         cfg.ProgressInterval(),
		AudioReserveKbps: cfg.AudioReserveKbps,
		Logger:           logger,
	}
}

// Compress probes the input, plans the bitrate and runs the encode. It
// blocks until ffmpeg exits. notify, when non-nil, is called from a
// separate goroutine once right away and then every Interval while the
// encode runs; it is never called after Compress returns.
func (c *Compressor) Compress(ctx context.Context, req Request, notify func(Status)) Result {
	if req.JobID == "" {
		req.JobID = NewJobID()
	}
	logger := c.log().With(
		"job_id", req.JobID,
		"input", req.InputPath,
		"output", req.OutputPath,
		"preset", string(req.Preset),
		"target_mb", req.DesiredSizeMB,
	)

	if !req.Preset.Valid() {
		return c.fail(logger, &Error{Kind: KindPlan, Err: fmt.Errorf("%w: %q", config.ErrUnknownPreset, req.Preset)})
	}
	if sameFile(req.InputPath, req.OutputPath) {
		return c.fail(logger, &Error{Kind: KindPlan, Path: req.OutputPath, Err: ErrSameFile})
	}

	duration, err := c.Prober.ProbeDuration(ctx, req.InputPath)
	if err != nil {
		if KindOf(err) == KindUnknown {
			err = &Error{Kind: KindProbe, Path: req.InputPath, Err: err}
		}
		return c.fail(logger, err)
	}

	bitrate, err := PlanVideoBitrateKbps(req.DesiredSizeMB, duration, c.AudioReserveKbps)
	if err != nil {
		return c.fail(logger, err)
	}
	logger.Info("compression started", "duration_seconds", duration, "bitrate_kbps", bitrate)

	job := Job{
		InputPath:   req.InputPath,
		OutputPath:  req.OutputPath,
		BitrateKbps: bitrate,
		Preset:      req.Preset,
		Duration:    time.Duration(duration * float64(time.Second)),
	}

	var (
		mu     sync.Mutex
		latest = Progress{TotalDuration: job.Duration, ETA: -1}
	)
	snapshot := func() Progress {
		mu.Lock()
		defer mu.Unlock()
		return latest
	}

	start := time.Now()
	stop := c.startNotifier(start, bitrate, snapshot, notify)
	defer stop()

	err = c.Encoder.Encode(ctx, job, func(p Progress) {
		mu.Lock()
		latest = p
		mu.Unlock()
	})
	elapsed := time.Since(start)
	if err != nil {
		res := c.fail(logger, &Error{Kind: KindEncode, Path: req.InputPath, Err: err})
		res.BitrateKbps = bitrate
		res.DurationSeconds = duration
		res.Elapsed = elapsed
		return res
	}

	var size int64
	if info, statErr := os.Stat(req.OutputPath); statErr == nil {
		size = info.Size()
	}
	logger.Info("compression finished", "elapsed", elapsed.Round(time.Millisecond), "output_bytes", size)
	return Result{
		OK:              true,
		Message:         "Video compressed successfully: " + req.OutputPath,
		OutputPath:      req.OutputPath,
		BitrateKbps:     bitrate,
		DurationSeconds: duration,
		OutputSize:      size,
		Elapsed:         elapsed,
	}
}

// startNotifier starts the progress ticker and returns the function that
// stops it. stop waits for the ticker goroutine to exit and is safe to call
// more than once.
func (c *Compressor) startNotifier(start time.Time, bitrate int, snapshot func() Progress, notify func(Status)) (stop func()) {
	if notify == nil {
		return func() {}
	}
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	status := func(tick int) Status {
		return Status{
			Tick:        tick,
			Indicator:   Indicator(tick),
			BitrateKbps: bitrate,
			Progress:    snapshot(),
			Elapsed:     time.Since(start),
		}
	}
	notify(status(0))

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for tick := 1; ; tick++ {
			select {
			case <-done:
				return
			case <-ticker.C:
				notify(status(tick))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}

func (c *Compressor) fail(logger *slog.Logger, err error) Result {
	logger.Error("compression failed", "kind", KindOf(err).String(), "error", err)
	prefix := "Compression failed: "
	if KindOf(err) == KindProbe {
		prefix = "Probe failed: "
	}
	return Result{
		OK:      false,
		Message: prefix + err.Error(),
		Err:     err,
	}
}

func (c *Compressor) log() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// sameFile reports whether two paths name the same file, either lexically
// or, when both exist, on disk.
func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

// IsInvalidSize reports whether err rejects the requested size
func IsInvalidSize(err error) bool {
	return errors.Is(err, ErrInvalidSize)
}
