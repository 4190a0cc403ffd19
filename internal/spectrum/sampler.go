// Package spectrum pulls fixed-size magnitude frames from an analysis tap.
package spectrum

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/austinkregel/local-media/beatd/internal/audio"
)

// Mode selects what a frame holds
type Mode string

const (
	// Frequency frames hold the smoothed magnitude per frequency bin.
	Frequency Mode = "frequency"
	// Time frames hold the rectified waveform.
	Time Mode = "time"
)

// Bar limits of the resolution control.
const (
	MinBars     = 16
	MaxBars     = 192
	DefaultBars = 64
)

// ParseMode parses "frequency" or "time" (case-insensitive)
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Frequency:
		return Frequency, nil
	case Time:
		return Time, nil
	default:
		return "", fmt.Errorf("unknown domain mode %q", s)
	}
}

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == Frequency || m == Time
}

// ClampBars bounds a requested bar count to [MinBars, MaxBars].
func ClampBars(bars int) int {
	if bars < MinBars {
		return MinBars
	}
	if bars > MaxBars {
		return MaxBars
	}
	return bars
}

// NearestPow2 rounds n to the power of two nearest in log scale,
// 2^round(log2 n). Non-positive input maps to the smallest FFT size.
func NearestPow2(n int) int {
	if n <= 0 {
		return audio.MinFFTSize
	}
	return 1 << int(math.Round(math.Log2(float64(n))))
}

// FFTSizeForBars maps a bar count to the analyzer FFT size: twice the bars,
// rounded to a power of two and clamped to the supported range.
func FFTSizeForBars(bars int) int {
	n := NearestPow2(2 * bars)
	if n < audio.MinFFTSize {
		return audio.MinFFTSize
	}
	if n > audio.MaxFFTSize {
		return audio.MaxFFTSize
	}
	return n
}

// TimeMagnitude rectifies a waveform byte centred on 128 onto the 0-255
// magnitude scale used by frequency frames.
func TimeMagnitude(raw byte) byte {
	v := (int(raw) - 128) * 2
	if v < 0 {
		v = -v
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}

// Sampler reads frames from the analyzer of the active source. Resolution
// and smoothing survive source changes and are applied on Attach.
type Sampler struct {
	mu        sync.Mutex
	analyzer  *audio.Analyzer
	fftSize   int
	mode      Mode
	smoothing float64
}

// NewSampler creates a sampler with no source attached.
func NewSampler(bars int, mode Mode, smoothing float64) *Sampler {
	if !mode.Valid() {
		mode = Frequency
	}
	return &Sampler{
		fftSize:   FFTSizeForBars(bars),
		mode:      mode,
		smoothing: smoothing,
	}
}

// Configure sets resolution and domain. An unknown mode leaves the domain
// unchanged. Takes effect no later than the next Sample call.
func (s *Sampler) Configure(bars int, mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fftSize = FFTSizeForBars(bars)
	if mode.Valid() {
		s.mode = mode
	}
	if s.analyzer != nil {
		s.analyzer.SetFFTSize(s.fftSize)
	}
}

// SetDomain switches between frequency and time frames without touching
// the resolution.
func (s *Sampler) SetDomain(mode Mode) {
	if !mode.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Domain returns the current mode
func (s *Sampler) Domain() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetSmoothing sets the analyzer smoothing time constant
func (s *Sampler) SetSmoothing(tau float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.smoothing = tau
	if s.analyzer != nil {
		s.analyzer.SetSmoothing(tau)
	}
}

// Smoothing returns the smoothing in effect: the attached analyzer's
// clamped value, or the configured one when nothing is attached.
func (s *Sampler) Smoothing() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analyzer != nil {
		return s.analyzer.Smoothing()
	}
	return s.smoothing
}

// FFTSize returns the configured FFT size
func (s *Sampler) FFTSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fftSize
}

// BinCount returns the frame length
func (s *Sampler) BinCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fftSize / 2
}

// Attach makes a the tap read by Sample and applies the current settings.
func (s *Sampler) Attach(a *audio.Analyzer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analyzer = a
	if a != nil {
		a.SetFFTSize(s.fftSize)
		a.SetSmoothing(s.smoothing)
	}
}

// Detach disconnects the current tap
func (s *Sampler) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzer = nil
}

// Sample returns a fresh frame, or nil when no source is attached.
func (s *Sampler) Sample() []byte {
	return s.SampleInto(nil)
}

// SampleInto fills dst (reallocated if too small) and returns the frame,
// or nil when no source is attached.
func (s *Sampler) SampleInto(dst []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.analyzer == nil {
		return nil
	}

	n := s.fftSize / 2
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]

	switch s.mode {
	case Time:
		n = s.analyzer.TimeDomainBytes(dst)
		for i := 0; i < n; i++ {
			dst[i] = TimeMagnitude(dst[i])
		}
	default:
		n = s.analyzer.FrequencyBytes(dst)
	}
	return dst[:n]
}
