package audio

import (
	"math"
	"math/bits"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFT size bounds, matching the limits of a browser AnalyserNode.
	MinFFTSize = 32
	MaxFFTSize = 2048

	// DefaultFFTSize is used until the sampler configures a resolution.
	DefaultFFTSize = 2048

	// DefaultSmoothing is the time constant applied between spectra.
	DefaultSmoothing = 0.8

	// Decibel range mapped onto 0-255 by FrequencyBytes.
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Analyzer is the live analysis tap of a Source. The playback goroutine
// writes mono samples into a ring buffer; frame readers pull a smoothed
// byte spectrum or a byte waveform of the most recent samples.
type Analyzer struct {
	mu sync.Mutex

	// Most recent MaxFFTSize mono samples, oldest overwritten first
	ring     []float64
	writePos int

	fftSize   int
	smoothing float64
	fft       *fourier.FFT
	window    []float64
	windowed  []float64
	coeffs    []complex128
	smoothed  []float64

	// Set by Write, cleared once the spectrum has been recomputed
	dirty bool
}

// NewAnalyzer creates an analyzer with the default FFT size and smoothing.
func NewAnalyzer() *Analyzer {
	a := &Analyzer{
		ring:      make([]float64, MaxFFTSize),
		smoothing: DefaultSmoothing,
	}
	a.resize(DefaultFFTSize)
	return a
}

// resize allocates FFT state for n. Caller holds a.mu.
func (a *Analyzer) resize(n int) {
	a.fftSize = n
	a.fft = fourier.NewFFT(n)
	a.window = blackmanWindow(n)
	a.windowed = make([]float64, n)
	a.coeffs = make([]complex128, n/2+1)
	a.smoothed = make([]float64, n/2)
	a.dirty = true
}

// blackmanWindow returns the classic Blackman window (alpha 0.16).
func blackmanWindow(n int) []float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}

// clampFFTSize bounds n to [MinFFTSize, MaxFFTSize] and rounds it down to
// a power of two.
func clampFFTSize(n int) int {
	if n < MinFFTSize {
		return MinFFTSize
	}
	if n > MaxFFTSize {
		return MaxFFTSize
	}
	if n&(n-1) != 0 {
		n = 1 << (bits.Len(uint(n)) - 1)
	}
	return n
}

// SetFFTSize changes the transform size and discards smoothed history.
func (a *Analyzer) SetFFTSize(n int) {
	n = clampFFTSize(n)

	a.mu.Lock()
	defer a.mu.Unlock()

	if n == a.fftSize {
		return
	}
	a.resize(n)
}

// FFTSize returns the current transform size
func (a *Analyzer) FFTSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fftSize
}

// BinCount returns the number of frequency bins (half the FFT size)
func (a *Analyzer) BinCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fftSize / 2
}

// SetSmoothing sets the smoothing time constant, clamped to [0, 1].
func (a *Analyzer) SetSmoothing(tau float64) {
	if math.IsNaN(tau) || tau < 0 {
		tau = 0
	}
	if tau > 1 {
		tau = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.smoothing = tau
}

// Smoothing returns the smoothing time constant
func (a *Analyzer) Smoothing() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.smoothing
}

// Write appends mono samples to the ring buffer.
func (a *Analyzer) Write(samples []float64) {
	if len(samples) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Only the tail can survive in the ring
	if len(samples) > len(a.ring) {
		samples = samples[len(samples)-len(a.ring):]
	}
	for _, s := range samples {
		a.ring[a.writePos] = s
		a.writePos = (a.writePos + 1) % len(a.ring)
	}
	a.dirty = true
}

// latest copies the most recent len(dst) samples, oldest first. Missing
// history reads as silence. Caller holds a.mu.
func (a *Analyzer) latest(dst []float64) {
	n := len(dst)
	start := a.writePos - n
	for i := 0; i < n; i++ {
		idx := start + i
		for idx < 0 {
			idx += len(a.ring)
		}
		dst[i] = a.ring[idx%len(a.ring)]
	}
}

// computeSpectrum refreshes the smoothed magnitude spectrum from the newest
// fftSize samples. Caller holds a.mu.
func (a *Analyzer) computeSpectrum() {
	a.latest(a.windowed)
	for i := range a.windowed {
		a.windowed[i] *= a.window[i]
	}

	a.coeffs = a.fft.Coefficients(a.coeffs, a.windowed)

	scale := 1.0 / float64(a.fftSize)
	tau := a.smoothing
	for k := range a.smoothed {
		mag := math.Hypot(real(a.coeffs[k]), imag(a.coeffs[k])) * scale
		v := tau*a.smoothed[k] + (1-tau)*mag
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		a.smoothed[k] = v
	}
	a.dirty = false
}

// FrequencyBytes fills dst with the smoothed spectrum mapped from
// [minDecibels, maxDecibels] onto 0-255 and returns the number of bins
// written, at most BinCount. A new spectrum is computed only when samples
// arrived since the previous call.
func (a *Analyzer) FrequencyBytes(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dirty {
		a.computeSpectrum()
	}

	n := len(dst)
	if n > len(a.smoothed) {
		n = len(a.smoothed)
	}
	rangeScale := 255.0 / (maxDecibels - minDecibels)
	for i := 0; i < n; i++ {
		mag := a.smoothed[i]
		if mag <= 0 {
			dst[i] = 0
			continue
		}
		db := 20 * math.Log10(mag)
		dst[i] = clampByte(rangeScale * (db - minDecibels))
	}
	return n
}

// TimeDomainBytes fills dst with the most recent waveform samples encoded
// as 128*(1+x) and returns the number written, at most FFTSize.
func (a *Analyzer) TimeDomainBytes(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(dst)
	if n > a.fftSize {
		n = a.fftSize
	}
	start := a.writePos - n
	for i := 0; i < n; i++ {
		idx := start + i
		for idx < 0 {
			idx += len(a.ring)
		}
		dst[i] = clampByte(128 * (1 + a.ring[idx%len(a.ring)]))
	}
	return n
}

// Reset clears buffered samples and smoothing history.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.ring {
		a.ring[i] = 0
	}
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
	a.writePos = 0
	a.dirty = true
}

// clampByte truncates v into the 0-255 byte range.
func clampByte(v float64) byte {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}
