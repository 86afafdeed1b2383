package encoder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidshrink/config"
)

type fakeProber struct {
	duration float64
	err      error
	calls    atomic.Int32
}

func (f *fakeProber) ProbeDuration(ctx context.Context, path string) (float64, error) {
	f.calls.Add(1)
	return f.duration, f.err
}

type fakeEncoder struct {
	err      error
	delay    time.Duration
	progress []Progress

	mu   sync.Mutex
	jobs []Job
}

func (f *fakeEncoder) Encode(ctx context.Context, job Job, onProgress func(Progress)) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	for _, p := range f.progress {
		onProgress(p)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.err
}

func (f *fakeEncoder) jobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

// statusRecorder counts notifier calls and remembers the statuses it saw
type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) notify(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func (r *statusRecorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func newTestCompressor(p Prober, e Encoder) *Compressor {
	return &Compressor{Prober: p, Encoder: e, Interval: 5 * time.Millisecond}
}

func clipRequest(preset config.Preset) Request {
	return Request{
		InputPath:     "./input/clip.mp4",
		OutputPath:    "./output/clip.mp4",
		DesiredSizeMB: 10,
		Preset:        preset,
	}
}

func TestCompressEndToEnd(t *testing.T) {
	prober := &fakeProber{duration: 100}
	enc := &fakeEncoder{delay: 20 * time.Millisecond}
	rec := &statusRecorder{}

	res := newTestCompressor(prober, enc).Compress(context.Background(), clipRequest(config.PresetFast), rec.notify)

	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.BitrateKbps != 819 {
		t.Errorf("BitrateKbps = %d, want 819", res.BitrateKbps)
	}
	if !strings.Contains(res.Message, "./output/clip.mp4") {
		t.Errorf("message %q does not reference the output path", res.Message)
	}
	if res.OutputPath != "./output/clip.mp4" {
		t.Errorf("OutputPath = %q", res.OutputPath)
	}

	if enc.jobCount() != 1 {
		t.Fatalf("expected one encode job, got %d", enc.jobCount())
	}
	job := enc.jobs[0]
	if job.BitrateKbps != 819 || job.Preset != config.PresetFast {
		t.Errorf("job = %+v", job)
	}
	if job.Duration != 100*time.Second {
		t.Errorf("job duration = %v", job.Duration)
	}

	statuses := rec.all()
	if len(statuses) == 0 {
		t.Fatal("notifier never called")
	}
	if statuses[0].Tick != 0 || statuses[0].BitrateKbps != 819 {
		t.Errorf("first status = %+v", statuses[0])
	}
}

func TestCompressNotifierStopsOnSuccess(t *testing.T) {
	enc := &fakeEncoder{delay: 30 * time.Millisecond}
	rec := &statusRecorder{}

	res := newTestCompressor(&fakeProber{duration: 100}, enc).Compress(context.Background(), clipRequest(config.PresetMedium), rec.notify)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}

	after := rec.count()
	if after < 2 {
		t.Errorf("expected ticks during a 30ms encode at 5ms interval, got %d", after)
	}
	time.Sleep(30 * time.Millisecond)
	if rec.count() != after {
		t.Errorf("notifier kept running after Compress returned: %d -> %d", after, rec.count())
	}
}

func TestCompressNotifierStopsOnFailure(t *testing.T) {
	enc := &fakeEncoder{delay: 20 * time.Millisecond, err: errors.New("Conversion failed!")}
	rec := &statusRecorder{}

	res := newTestCompressor(&fakeProber{duration: 100}, enc).Compress(context.Background(), clipRequest(config.PresetSlow), rec.notify)
	if res.OK {
		t.Fatal("expected failure")
	}
	if KindOf(res.Err) != KindEncode {
		t.Errorf("KindOf = %v, want encode", KindOf(res.Err))
	}
	if !strings.Contains(res.Message, "Conversion failed!") {
		t.Errorf("message %q does not carry the encoder error", res.Message)
	}

	after := rec.count()
	time.Sleep(30 * time.Millisecond)
	if rec.count() != after {
		t.Errorf("notifier kept running after failure: %d -> %d", after, rec.count())
	}
}

func TestCompressProbeFailure(t *testing.T) {
	prober := &fakeProber{err: &Error{Kind: KindProbe, Path: "./input/clip.mp4", Err: errors.New("Invalid data found when processing input")}}
	enc := &fakeEncoder{}
	rec := &statusRecorder{}

	res := newTestCompressor(prober, enc).Compress(context.Background(), clipRequest(config.PresetFast), rec.notify)
	if res.OK {
		t.Fatal("expected failure")
	}
	if KindOf(res.Err) != KindProbe {
		t.Errorf("KindOf = %v, want probe", KindOf(res.Err))
	}
	if !strings.Contains(res.Message, "Invalid data found") {
		t.Errorf("message %q does not carry the probe error", res.Message)
	}
	if enc.jobCount() != 0 {
		t.Error("encode attempted after probe failure")
	}
	if rec.count() != 0 {
		t.Error("notifier started after probe failure")
	}
}

func TestCompressWrapsUntaggedProbeErrors(t *testing.T) {
	res := newTestCompressor(&fakeProber{err: errors.New("boom")}, &fakeEncoder{}).
		Compress(context.Background(), clipRequest(config.PresetFast), nil)
	if KindOf(res.Err) != KindProbe {
		t.Errorf("KindOf = %v, want probe", KindOf(res.Err))
	}
}

func TestCompressRejectsUnusableDuration(t *testing.T) {
	prober := &fakeProber{duration: 0}
	enc := &fakeEncoder{}
	rec := &statusRecorder{}

	res := newTestCompressor(prober, enc).Compress(context.Background(), clipRequest(config.PresetFast), rec.notify)
	if res.OK {
		t.Fatal("expected failure for zero duration")
	}
	if !errors.Is(res.Err, ErrInvalidDuration) {
		t.Errorf("error = %v, want ErrInvalidDuration", res.Err)
	}
	if enc.jobCount() != 0 || rec.count() != 0 {
		t.Error("encode or notifier started for an unusable duration")
	}
}

func TestCompressRejectsInvalidSize(t *testing.T) {
	req := clipRequest(config.PresetFast)
	req.DesiredSizeMB = -1
	enc := &fakeEncoder{}

	res := newTestCompressor(&fakeProber{duration: 100}, enc).Compress(context.Background(), req, nil)
	if !errors.Is(res.Err, ErrInvalidSize) {
		t.Errorf("error = %v, want ErrInvalidSize", res.Err)
	}
	if enc.jobCount() != 0 {
		t.Error("encode attempted for invalid size")
	}
}

func TestCompressRejectsUnknownPreset(t *testing.T) {
	prober := &fakeProber{duration: 100}
	res := newTestCompressor(prober, &fakeEncoder{}).Compress(context.Background(), clipRequest("turbo"), nil)
	if res.OK {
		t.Fatal("expected failure for unknown preset")
	}
	if !errors.Is(res.Err, config.ErrUnknownPreset) {
		t.Errorf("error = %v, want ErrUnknownPreset", res.Err)
	}
	if prober.calls.Load() != 0 {
		t.Error("probe ran for an unknown preset")
	}
}

func TestCompressRejectsOverwritingInput(t *testing.T) {
	req := clipRequest(config.PresetFast)
	req.OutputPath = "input/../input/clip.mp4"
	res := newTestCompressor(&fakeProber{duration: 100}, &fakeEncoder{}).Compress(context.Background(), req, nil)
	if !errors.Is(res.Err, ErrSameFile) {
		t.Errorf("error = %v, want ErrSameFile", res.Err)
	}
}

func TestCompressAudioReserve(t *testing.T) {
	c := newTestCompressor(&fakeProber{duration: 100}, &fakeEncoder{})
	c.AudioReserveKbps = 128
	res := c.Compress(context.Background(), clipRequest(config.PresetFast), nil)
	if !res.OK || res.BitrateKbps != 819-128 {
		t.Errorf("result = %+v, want bitrate %d", res, 819-128)
	}
}

func TestCompressForwardsEncoderProgress(t *testing.T) {
	enc := &fakeEncoder{
		delay:    40 * time.Millisecond,
		progress: []Progress{{Percentage: 50, OutTimeUs: 50000000}},
	}
	rec := &statusRecorder{}
	res := newTestCompressor(&fakeProber{duration: 100}, enc).Compress(context.Background(), clipRequest(config.PresetFast), rec.notify)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}

	seen := false
	for _, s := range rec.all() {
		if s.Progress.Percentage == 50 {
			seen = true
		}
	}
	if !seen {
		t.Error("encoder progress never reached the notifier")
	}
}

func TestIndicator(t *testing.T) {
	expected := []string{
		"Compressing",
		"Compressing.",
		"Compressing..",
		"Compressing...",
		"Compressing",
		"Compressing.",
	}
	for tick, want := range expected {
		if got := Indicator(tick); got != want {
			t.Errorf("Indicator(%d) = %q, want %q", tick, got, want)
		}
	}
	if Indicator(-1) != "Compressing" {
		t.Errorf("Indicator(-1) = %q", Indicator(-1))
	}
}

func TestNewJobID(t *testing.T) {
	a, b := NewJobID(), NewJobID()
	if a == "" || a == b {
		t.Errorf("job IDs not unique: %q %q", a, b)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Kind: KindProbe, Path: "./input/x.mp4", Err: errors.New("boom")}
	if err.Error() != "probe ./input/x.mp4: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	bare := &Error{Kind: KindPlan, Err: ErrInvalidSize}
	if bare.Error() != "plan: invalid target size" {
		t.Errorf("Error() = %q", bare.Error())
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain error has a kind")
	}
}
