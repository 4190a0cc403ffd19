package engine

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/austinkregel/local-media/beatd/internal/audio"
	"github.com/austinkregel/local-media/beatd/internal/media"
	"github.com/austinkregel/local-media/beatd/internal/spectrum"
	"github.com/austinkregel/local-media/beatd/internal/synth"
)

const testRate = 8000

// blockedDevice is a null device that never agrees to start
type blockedDevice struct {
	*audio.NullDevice
}

func (d blockedDevice) Resume() error {
	return errors.New("no audio session")
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Autoplay = false
	return opts
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e := New(audio.NewNullDevice(testRate, 2), nil, opts)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeTrack(t *testing.T, name string, buf *audio.Buffer) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := synth.WriteWAV(path, buf); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadEstimatesTempo(t *testing.T) {
	e := newTestEngine(t, testOptions())
	path := writeTrack(t, "click.wav", synth.ClickTrack(testRate, 120, 10))

	var (
		mu     sync.Mutex
		events []BeatEvent
	)
	e.SetOnBeat(func(ev BeatEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	if err := e.Load(context.Background(), path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	e.WaitEstimates()

	clock := e.Clock()
	if math.Abs(clock.BPM-120) > 2 {
		t.Errorf("Expected about 120 BPM, got %v", clock.BPM)
	}
	if clock.Offset != 0 {
		t.Errorf("Expected offset 0 after detection, got %v", clock.Offset)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("Expected 1 beat event, got %d", len(events))
	}
	if !events[0].Detected || events[0].Path != path {
		t.Errorf("Expected detected event for %s, got %+v", path, events[0])
	}
}

func TestStaleEstimateIsDiscarded(t *testing.T) {
	e := newTestEngine(t, testOptions())
	click := writeTrack(t, "click.wav", synth.ClickTrack(testRate, 120, 10))
	silence := writeTrack(t, "silence.wav", synth.Silence(testRate, 3))

	if err := e.Load(context.Background(), click); err != nil {
		t.Fatalf("Load click failed: %v", err)
	}
	if err := e.Load(context.Background(), silence); err != nil {
		t.Fatalf("Load silence failed: %v", err)
	}
	e.WaitEstimates()

	if e.Clock().Known() {
		t.Errorf("Expected unknown tempo for silence, got %v", e.Clock().BPM)
	}

	// An estimate started for an older load never lands
	old := e.generation.Load() - 1
	if e.applyEstimate(old, click, 120, true) {
		t.Error("Expected stale estimate to be rejected")
	}
	if e.Clock().Known() {
		t.Errorf("Expected stale estimate to leave tempo unknown, got %v", e.Clock().BPM)
	}

	if !e.applyEstimate(e.generation.Load(), silence, 95, true) {
		t.Error("Expected current estimate to be applied")
	}
	if e.Clock().BPM != 95 {
		t.Errorf("Expected 95 BPM, got %v", e.Clock().BPM)
	}
}

func TestLoadFailureLeavesEngineIdle(t *testing.T) {
	e := newTestEngine(t, testOptions())
	path := writeTrack(t, "click.wav", synth.ClickTrack(testRate, 120, 2))
	if err := e.Load(context.Background(), path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if e.Sample() == nil {
		t.Fatal("Expected a frame while loaded")
	}

	err := e.Load(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, audio.ErrDecode) {
		t.Fatalf("Expected ErrDecode, got %v", err)
	}

	if e.Source() != nil {
		t.Error("Expected no active source after a failed load")
	}
	if frame := e.Sample(); frame != nil {
		t.Errorf("Expected nil frame when idle, got %d bytes", len(frame))
	}
	if err := e.Play(); !errors.Is(err, audio.ErrNoSource) {
		t.Errorf("Expected ErrNoSource, got %v", err)
	}
	if st := e.Status(); st.State != audio.StateStopped {
		t.Errorf("Expected stopped state, got %s", st.State)
	}
}

func TestAutoplayBlockedIsNotAnError(t *testing.T) {
	opts := DefaultOptions()
	e := New(blockedDevice{audio.NewNullDevice(testRate, 2)}, nil, opts)
	defer e.Close()

	path := writeTrack(t, "click.wav", synth.ClickTrack(testRate, 120, 2))
	if err := e.Load(context.Background(), path); err != nil {
		t.Fatalf("Expected blocked autoplay to be tolerated, got %v", err)
	}
	if st := e.Status(); st.State != audio.StatePaused {
		t.Errorf("Expected paused source, got %s", st.State)
	}
	if _, err := e.TogglePlay(); !errors.Is(err, audio.ErrAutoplayBlocked) {
		t.Errorf("Expected ErrAutoplayBlocked from toggle, got %v", err)
	}
}

func TestControlsWithoutSource(t *testing.T) {
	e := newTestEngine(t, testOptions())

	if _, err := e.Seek(10); !errors.Is(err, audio.ErrNoSource) {
		t.Errorf("Expected ErrNoSource from seek, got %v", err)
	}
	if _, err := e.TogglePlay(); !errors.Is(err, audio.ErrNoSource) {
		t.Errorf("Expected ErrNoSource from toggle, got %v", err)
	}
	if got := e.SetVolume(0.3); got != 0.3 {
		t.Errorf("Expected volume 0.3, got %v", got)
	}
	if got := e.ToggleMute(); got != 0 {
		t.Errorf("Expected mute, got %v", got)
	}
	if got := e.RestoreVolume(); got != 0.3 {
		t.Errorf("Expected restore to 0.3, got %v", got)
	}
	if got := e.Pulse(); got != 0 {
		t.Errorf("Expected pulse 0 without tempo, got %v", got)
	}
}

func TestVolumeCarriesToNextSource(t *testing.T) {
	e := newTestEngine(t, testOptions())
	e.SetVolume(0.4)

	path := writeTrack(t, "click.wav", synth.ClickTrack(testRate, 120, 2))
	if err := e.Load(context.Background(), path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := e.Status().Volume; got != 0.4 {
		t.Errorf("Expected volume 0.4 on the new source, got %v", got)
	}
}

func TestConfigure(t *testing.T) {
	e := newTestEngine(t, testOptions())
	path := writeTrack(t, "click.wav", synth.ClickTrack(testRate, 120, 2))
	if err := e.Load(context.Background(), path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := e.Configure(1000, spectrum.Time); got != spectrum.MaxBars {
		t.Errorf("Expected bars clamped to %d, got %d", spectrum.MaxBars, got)
	}
	if e.Domain() != spectrum.Time {
		t.Errorf("Expected time domain, got %s", e.Domain())
	}
	want := spectrum.FFTSizeForBars(spectrum.MaxBars) / 2
	if got := len(e.Sample()); got != want {
		t.Errorf("Expected frame of %d, got %d", want, got)
	}

	if got := e.Configure(4, spectrum.Frequency); got != spectrum.MinBars {
		t.Errorf("Expected bars clamped to %d, got %d", spectrum.MinBars, got)
	}
	want = spectrum.FFTSizeForBars(spectrum.MinBars) / 2
	if got := len(e.Sample()); got != want {
		t.Errorf("Expected frame of %d, got %d", want, got)
	}

	if err := e.SetDomain("sideways"); err == nil {
		t.Error("Expected error for unknown domain")
	}

	e.SetSmoothing(0.5)
	if got := e.Status().Smoothing; got != 0.5 {
		t.Errorf("Expected status smoothing 0.5, got %v", got)
	}
}

func TestBeatControls(t *testing.T) {
	e := newTestEngine(t, testOptions())

	if got := e.HalveBPM().BPM; got != 0 {
		t.Errorf("Expected halve without tempo to stay 0, got %v", got)
	}

	e.SetBPM(120)
	steps := []struct {
		name string
		fn   func() float64
		want float64
	}{
		{"halve", func() float64 { return e.HalveBPM().BPM }, 60},
		{"halve", func() float64 { return e.HalveBPM().BPM }, 40},
		{"double", func() float64 { return e.DoubleBPM().BPM }, 80},
		{"double", func() float64 { return e.DoubleBPM().BPM }, 160},
		{"double", func() float64 { return e.DoubleBPM().BPM }, 240},
	}
	for i, step := range steps {
		if got := step.fn(); got != step.want {
			t.Errorf("Step %d (%s): expected %v, got %v", i, step.name, step.want, got)
		}
	}

	if _, err := e.SetSubdivision(3); err == nil {
		t.Error("Expected error for subdivision 3")
	}
	clock, err := e.SetSubdivision(4)
	if err != nil {
		t.Fatalf("SetSubdivision failed: %v", err)
	}
	if clock.Subdivision != 4 || clock.BPM != 240 {
		t.Errorf("Expected 240 BPM at subdivision 4, got %+v", clock)
	}

	// Idle position is 0, so realign puts the boundary at 0
	if got := e.Realign().Offset; got != 0 {
		t.Errorf("Expected offset 0, got %v", got)
	}
	if got := e.Pulse(); got != 1 {
		t.Errorf("Expected pulse 1 on a boundary, got %v", got)
	}
}

func TestLoadResetsTempoKeepsSubdivision(t *testing.T) {
	e := newTestEngine(t, testOptions())
	e.SetBPM(100)
	e.SetSubdivision(2)

	path := writeTrack(t, "silence.wav", synth.Silence(testRate, 2))
	if err := e.Load(context.Background(), path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	e.WaitEstimates()

	clock := e.Clock()
	if clock.Known() {
		t.Errorf("Expected tempo reset on load, got %v", clock.BPM)
	}
	if clock.Subdivision != 2 {
		t.Errorf("Expected subdivision 2 to survive load, got %d", clock.Subdivision)
	}
}

func TestOnCommand(t *testing.T) {
	e := newTestEngine(t, testOptions())
	path := writeTrack(t, "click.wav", synth.ClickTrack(testRate, 120, 4))
	if err := e.Load(context.Background(), path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := e.OnCommand(media.CmdSetVolume, 0.5); err != nil {
		t.Errorf("SetVolume command failed: %v", err)
	}
	if got := e.Volume(); got != 0.5 {
		t.Errorf("Expected volume 0.5, got %v", got)
	}

	if err := e.OnCommand(media.CmdSeek, 2*time.Second); err != nil {
		t.Errorf("Seek command failed: %v", err)
	}
	if got := e.CurrentTime(); got != 2 {
		t.Errorf("Expected position 2, got %v", got)
	}
	if err := e.OnCommand(media.CmdSeek, "later"); err == nil {
		t.Error("Expected error for malformed seek data")
	}

	if err := e.OnCommand(media.CmdSetLoopStatus, media.LoopNone); err != nil {
		t.Errorf("Loop command failed: %v", err)
	}
	if e.Status().Loop {
		t.Error("Expected loop disabled")
	}

	if err := e.OnCommand(media.CmdStop, nil); err != nil {
		t.Errorf("Stop command failed: %v", err)
	}
	if st := e.Status(); st.State != audio.StatePaused || st.CurrentTime != 0 {
		t.Errorf("Expected paused at 0 after stop, got %s at %v", st.State, st.CurrentTime)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	e := New(audio.NewNullDevice(testRate, 2), nil, testOptions())
	path := writeTrack(t, "click.wav", synth.ClickTrack(testRate, 120, 2))
	if err := e.Load(context.Background(), path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := e.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
	if err := e.Load(context.Background(), path); err == nil {
		t.Error("Expected load after close to fail")
	}
}
