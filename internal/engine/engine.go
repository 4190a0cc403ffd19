// Package engine owns the audio device, the active source, the spectrum
// sampler and the beat state, and is the only thing callers talk to.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/austinkregel/local-media/beatd/internal/audio"
	"github.com/austinkregel/local-media/beatd/internal/beat"
	"github.com/austinkregel/local-media/beatd/internal/media"
	"github.com/austinkregel/local-media/beatd/internal/spectrum"
)

// Options configures a new Engine
type Options struct {
	Volume      float64
	Loop        bool
	Autoplay    bool
	Bars        int
	Mode        spectrum.Mode
	Smoothing   float64
	Subdivision int
	Verbose     bool
}

// DefaultOptions mirror the config defaults
func DefaultOptions() Options {
	return Options{
		Volume:      1,
		Loop:        true,
		Autoplay:    true,
		Bars:        spectrum.DefaultBars,
		Mode:        spectrum.Frequency,
		Smoothing:   audio.DefaultSmoothing,
		Subdivision: 1,
	}
}

// BeatEvent reports a finished tempo estimate for the current track
type BeatEvent struct {
	Path     string     `json:"path"`
	Detected bool       `json:"detected"`
	Clock    beat.Clock `json:"clock"`
}

// BeatCallback is called when an estimate for the current track lands
type BeatCallback func(ev BeatEvent)

// Status is the combined transport, analysis and beat state
type Status struct {
	audio.Status
	Bars      int           `json:"bars"`
	Domain    spectrum.Mode `json:"domain"`
	BinCount  int           `json:"binCount"`
	Smoothing float64       `json:"smoothing"`
	Beat      beat.Clock    `json:"beat"`
}

// Engine is an explicitly owned audio engine. At most one source is active.
type Engine struct {
	device  audio.Device
	decoder *audio.Decoder
	sampler *spectrum.Sampler
	volume  *audio.Volume
	session media.Session
	verbose bool

	// Serializes Load and Close
	loadMu sync.Mutex

	mu             sync.RWMutex
	source         *audio.Source
	loop           bool
	autoplay       bool
	bars           int
	cancelEstimate context.CancelFunc
	onBeat         BeatCallback
	closed         bool

	// Load generation; estimates carry the generation they were started for
	generation atomic.Uint64
	clock      atomic.Pointer[beat.Clock]

	estimates sync.WaitGroup
}

// New creates an engine on dev. session may be nil.
func New(dev audio.Device, session media.Session, opts Options) *Engine {
	if session == nil {
		session = media.NewNoOpSession()
	}
	bars := spectrum.ClampBars(opts.Bars)

	e := &Engine{
		device:   dev,
		decoder:  audio.NewDecoder(dev.SampleRate()),
		sampler:  spectrum.NewSampler(bars, opts.Mode, opts.Smoothing),
		volume:   audio.NewVolume(opts.Volume),
		session:  session,
		verbose:  opts.Verbose,
		loop:     opts.Loop,
		autoplay: opts.Autoplay,
		bars:     bars,
	}
	clock := beat.NewClock(0, opts.Subdivision)
	e.clock.Store(&clock)

	session.UpdateVolume(e.volume.Level())
	session.UpdateLoopStatus(media.LoopStatusFor(opts.Loop))
	return e
}

// SetOnBeat sets the callback for landed tempo estimates
func (e *Engine) SetOnBeat(cb BeatCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onBeat = cb
}

// Load replaces the active source with path. The previous source is
// disposed and its pending estimate cancelled before decoding starts. A
// device that refuses to start leaves the new source paused and is not an
// error. Tempo estimation continues in the background.
func (e *Engine) Load(ctx context.Context, path string) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.New("engine closed")
	}
	gen := e.generation.Add(1)
	if e.cancelEstimate != nil {
		e.cancelEstimate()
		e.cancelEstimate = nil
	}
	old := e.source
	e.source = nil
	reset := e.Clock().WithBPM(0).Realigned(0)
	e.clock.Store(&reset)
	e.mu.Unlock()

	e.sampler.Detach()
	if old != nil {
		if err := old.Dispose(); err != nil {
			log.Printf("[ENGINE] Warning: failed to dispose %s: %v", old.Path(), err)
		}
		e.session.UpdatePlaybackState(media.StateStopped, 0)
	}

	start := time.Now()
	buf, err := e.decoder.Decode(ctx, path)
	if err != nil {
		log.Printf("[ENGINE] Failed to load %s: %v", path, err)
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	log.Printf("[ENGINE] Decoded %s (%.1fs, %d channels) in %v", path, buf.Seconds(), buf.NumChannels(), time.Since(start).Round(time.Millisecond))

	e.mu.Lock()
	src, err := audio.NewSource(path, buf, e.device, e.volume, e.loop)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to create source: %w", err)
	}
	e.source = src
	estimateCtx, cancel := context.WithCancel(context.Background())
	e.cancelEstimate = cancel
	autoplay := e.autoplay
	e.mu.Unlock()

	e.sampler.Attach(src.Analyzer())

	e.session.UpdateMetadata(media.Metadata{
		Title:    audio.TitleFromPath(path),
		Path:     path,
		Duration: buf.Duration(),
	})

	e.estimates.Add(1)
	go e.estimate(estimateCtx, gen, path, buf)

	if autoplay {
		if err := src.Play(); err != nil {
			if !errors.Is(err, audio.ErrAutoplayBlocked) {
				e.publishState()
				return fmt.Errorf("failed to start playback: %w", err)
			}
			log.Printf("[ENGINE] Autoplay blocked, source left paused: %v", err)
		}
	}
	e.publishState()

	return nil
}

// estimate runs the tempo estimator for generation gen
func (e *Engine) estimate(ctx context.Context, gen uint64, path string, buf *audio.Buffer) {
	defer e.estimates.Done()

	start := time.Now()
	bpm, ok := beat.Estimate(ctx, buf)
	if e.verbose {
		log.Printf("[BEAT] Estimate for %s finished in %v (bpm=%.2f ok=%v)", path, time.Since(start).Round(time.Millisecond), bpm, ok)
	}
	e.applyEstimate(gen, path, bpm, ok)
}

// applyEstimate stores an estimate if gen is still the current load and
// reports whether it was applied.
func (e *Engine) applyEstimate(gen uint64, path string, bpm float64, ok bool) bool {
	e.mu.Lock()
	if gen != e.generation.Load() || e.closed {
		e.mu.Unlock()
		if e.verbose {
			log.Printf("[BEAT] Discarding stale estimate for %s (generation %d)", path, gen)
		}
		return false
	}

	next := e.Clock()
	if ok {
		next = next.WithBPM(bpm).Realigned(0)
		e.clock.Store(&next)
		log.Printf("[BEAT] %s: %.1f BPM", audio.TitleFromPath(path), bpm)
	} else {
		log.Printf("[BEAT] %s: no tempo detected", audio.TitleFromPath(path))
	}
	cb := e.onBeat
	src := e.source
	e.mu.Unlock()

	if ok && src != nil {
		e.session.UpdateMetadata(media.Metadata{
			Title:    audio.TitleFromPath(path),
			Path:     path,
			Duration: src.Buffer().Duration(),
			BPM:      bpm,
		})
	}
	if cb != nil {
		cb(BeatEvent{Path: path, Detected: ok, Clock: next})
	}
	return true
}

// WaitEstimates blocks until every started estimate has finished
func (e *Engine) WaitEstimates() {
	e.estimates.Wait()
}

// Source returns the active source, or nil when idle
func (e *Engine) Source() *audio.Source {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.source
}

// Unload disposes the active source and returns to the idle state
func (e *Engine) Unload() error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.mu.Lock()
	e.generation.Add(1)
	if e.cancelEstimate != nil {
		e.cancelEstimate()
		e.cancelEstimate = nil
	}
	src := e.source
	e.source = nil
	reset := e.Clock().WithBPM(0).Realigned(0)
	e.clock.Store(&reset)
	e.mu.Unlock()

	e.sampler.Detach()
	e.session.UpdateMetadata(media.Metadata{})
	e.session.UpdatePlaybackState(media.StateStopped, 0)
	return src.Dispose()
}

// Close disposes the source, waits for estimates and closes the device.
func (e *Engine) Close() error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	if e.cancelEstimate != nil {
		e.cancelEstimate()
		e.cancelEstimate = nil
	}
	src := e.source
	e.source = nil
	e.mu.Unlock()

	e.sampler.Detach()
	e.estimates.Wait()

	var errs []error
	if err := src.Dispose(); err != nil {
		errs = append(errs, err)
	}
	if err := e.device.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
