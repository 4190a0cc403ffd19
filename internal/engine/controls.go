package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/austinkregel/local-media/beatd/internal/audio"
	"github.com/austinkregel/local-media/beatd/internal/beat"
	"github.com/austinkregel/local-media/beatd/internal/media"
	"github.com/austinkregel/local-media/beatd/internal/spectrum"
)

// Play starts playback of the active source
func (e *Engine) Play() error {
	src := e.Source()
	if src == nil {
		return audio.ErrNoSource
	}
	if err := src.Play(); err != nil {
		return err
	}
	e.publishState()
	return nil
}

// Pause pauses the active source
func (e *Engine) Pause() error {
	src := e.Source()
	if src == nil {
		return audio.ErrNoSource
	}
	if err := src.Pause(); err != nil {
		return err
	}
	e.publishState()
	return nil
}

// TogglePlay flips between playing and paused and reports the new state
func (e *Engine) TogglePlay() (bool, error) {
	src := e.Source()
	if src == nil {
		return false, audio.ErrNoSource
	}
	playing, err := src.TogglePlay()
	if err != nil {
		return false, err
	}
	e.publishState()
	return playing, nil
}

// Seek moves playback to t seconds and returns the clamped position
func (e *Engine) Seek(t float64) (float64, error) {
	src := e.Source()
	if src == nil {
		return 0, audio.ErrNoSource
	}
	pos := src.Seek(t)
	e.publishState()
	return pos, nil
}

// CurrentTime is the playback position of the active source, 0 when idle
func (e *Engine) CurrentTime() float64 {
	return e.Source().CurrentTime()
}

// SetVolume sets the output volume. It works without a source and carries
// over to the next one.
func (e *Engine) SetVolume(v float64) float64 {
	level := e.volume.Set(v)
	e.session.UpdateVolume(level)
	return level
}

// ToggleMute mutes or restores the last audible volume
func (e *Engine) ToggleMute() float64 {
	level := e.volume.ToggleMute()
	e.session.UpdateVolume(level)
	return level
}

// RestoreVolume returns to the last non-zero volume
func (e *Engine) RestoreVolume() float64 {
	level := e.volume.Restore()
	e.session.UpdateVolume(level)
	return level
}

// Volume returns the current output volume
func (e *Engine) Volume() float64 {
	return e.volume.Level()
}

// SetLoop enables or disables looping for the current and future sources
func (e *Engine) SetLoop(loop bool) {
	e.mu.Lock()
	e.loop = loop
	src := e.source
	e.mu.Unlock()

	if src != nil {
		src.SetLoop(loop)
	}
	e.session.UpdateLoopStatus(media.LoopStatusFor(loop))
}

// SetAutoplay controls whether Load starts playback
func (e *Engine) SetAutoplay(autoplay bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoplay = autoplay
}

// Configure sets the bar resolution and domain. Bars are clamped to
// [spectrum.MinBars, spectrum.MaxBars]; an invalid mode keeps the current
// domain. It returns the applied bar count.
func (e *Engine) Configure(bars int, mode spectrum.Mode) int {
	bars = spectrum.ClampBars(bars)
	e.mu.Lock()
	e.bars = bars
	e.mu.Unlock()

	e.sampler.Configure(bars, mode)
	if e.verbose {
		log.Printf("[ENGINE] Configured %d bars (fft %d, %s)", bars, e.sampler.FFTSize(), e.sampler.Domain())
	}
	return bars
}

// SetDomain switches between frequency and time domain frames
func (e *Engine) SetDomain(mode spectrum.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown domain %q", mode)
	}
	e.sampler.SetDomain(mode)
	return nil
}

// SetSmoothing sets the analyzer time constant
func (e *Engine) SetSmoothing(tau float64) {
	e.sampler.SetSmoothing(tau)
}

// Bars returns the configured bar count
func (e *Engine) Bars() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bars
}

// Domain returns the active domain
func (e *Engine) Domain() spectrum.Mode {
	return e.sampler.Domain()
}

// BinCount returns the length of a sampled frame
func (e *Engine) BinCount() int {
	return e.sampler.BinCount()
}

// Sample returns a fresh frame, or nil when nothing is loaded
func (e *Engine) Sample() []byte {
	return e.sampler.Sample()
}

// SampleInto samples into dst, reusing its storage when large enough
func (e *Engine) SampleInto(dst []byte) []byte {
	return e.sampler.SampleInto(dst)
}

// Clock returns the current beat state
func (e *Engine) Clock() beat.Clock {
	return *e.clock.Load()
}

// Pulse returns the beat envelope at the current playback position
func (e *Engine) Pulse() float64 {
	return e.Clock().Pulse(e.CurrentTime())
}

// updateClock applies fn to the clock and returns the result
func (e *Engine) updateClock(fn func(c beat.Clock) beat.Clock) beat.Clock {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := fn(e.Clock())
	e.clock.Store(&next)
	return next
}

// HalveBPM halves the tempo within the manual range
func (e *Engine) HalveBPM() beat.Clock {
	return e.updateClock(beat.Clock.Halved)
}

// DoubleBPM doubles the tempo within the manual range
func (e *Engine) DoubleBPM() beat.Clock {
	return e.updateClock(beat.Clock.Doubled)
}

// SetBPM sets the tempo by hand, clamped to the manual range
func (e *Engine) SetBPM(bpm float64) beat.Clock {
	return e.updateClock(func(c beat.Clock) beat.Clock {
		return c.WithBPM(beat.ClampManual(bpm))
	})
}

// SetSubdivision sets the number of pulses per beat (1, 2 or 4)
func (e *Engine) SetSubdivision(n int) (beat.Clock, error) {
	n, err := beat.ParseSubdivision(n)
	if err != nil {
		return e.Clock(), err
	}
	return e.updateClock(func(c beat.Clock) beat.Clock {
		return c.WithSubdivision(n)
	}), nil
}

// Realign declares the current playback position a beat boundary
func (e *Engine) Realign() beat.Clock {
	t := e.CurrentTime()
	return e.updateClock(func(c beat.Clock) beat.Clock {
		return c.Realigned(t)
	})
}

// Status returns the combined engine state
func (e *Engine) Status() Status {
	src := e.Source()
	st := Status{
		Status:    src.Status(),
		Bars:      e.Bars(),
		Domain:    e.sampler.Domain(),
		BinCount:  e.sampler.BinCount(),
		Smoothing: e.sampler.Smoothing(),
		Beat:      e.Clock(),
	}
	if src == nil {
		e.mu.RLock()
		st.Loop = e.loop
		e.mu.RUnlock()
		st.Volume = e.volume.Level()
		st.Muted = e.volume.Muted()
	}
	return st
}

// publishState pushes the transport state to the media session
func (e *Engine) publishState() {
	src := e.Source()
	state := media.StateStopped
	switch src.Status().State {
	case audio.StatePlaying:
		state = media.StatePlaying
	case audio.StatePaused:
		state = media.StatePaused
	}
	pos := time.Duration(src.CurrentTime() * float64(time.Second))
	if err := e.session.UpdatePlaybackState(state, pos); err != nil && e.verbose {
		log.Printf("[MEDIA] Failed to update playback state: %v", err)
	}
}

// OnCommand implements media.CommandHandler
func (e *Engine) OnCommand(cmd media.Command, data interface{}) error {
	if e.verbose {
		log.Printf("[MEDIA] Command: %s", cmd)
	}

	switch cmd {
	case media.CmdPlay:
		return e.Play()
	case media.CmdPause:
		return e.Pause()
	case media.CmdPlayPause:
		_, err := e.TogglePlay()
		return err
	case media.CmdStop:
		if err := e.Pause(); err != nil {
			return err
		}
		_, err := e.Seek(0)
		return err
	case media.CmdSeek:
		pos, ok := data.(time.Duration)
		if !ok {
			return fmt.Errorf("seek: unexpected data %T", data)
		}
		_, err := e.Seek(pos.Seconds())
		return err
	case media.CmdSetVolume:
		v, ok := data.(float64)
		if !ok {
			return fmt.Errorf("volume: unexpected data %T", data)
		}
		e.SetVolume(v)
		return nil
	case media.CmdSetLoopStatus:
		status, ok := data.(media.LoopStatus)
		if !ok {
			return fmt.Errorf("loop status: unexpected data %T", data)
		}
		e.SetLoop(status == media.LoopTrack)
		return nil
	default:
		return fmt.Errorf("unsupported media command %s", cmd)
	}
}
