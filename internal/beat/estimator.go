// Package beat estimates track tempo and evaluates a beat-synchronized
// pulse envelope from playback time.
package beat

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/austinkregel/local-media/beatd/internal/audio"
)

const (
	// EnvelopeRate is the amplitude envelope resolution in Hz.
	EnvelopeRate = 200

	// Tempo range searched by the estimator
	MinDetectBPM = 60.0
	MaxDetectBPM = 200.0

	// Range reachable by manual halving and doubling
	MinManualBPM = 40.0
	MaxManualBPM = 240.0

	// Envelope peaks are divided by at least this much
	normalizeFloor = 1e-9
)

// Lag bounds in envelope samples for the detection range
var (
	minLag = int(math.Round(EnvelopeRate * 60 / MaxDetectBPM))
	maxLag = int(math.Ceil(EnvelopeRate * 60 / MinDetectBPM))
)

// Estimate returns the tempo of buf in BPM. ok is false for empty or
// silent input and when ctx is cancelled. The result is deterministic.
func Estimate(ctx context.Context, buf *audio.Buffer) (bpm float64, ok bool) {
	env := Envelope(ctx, buf)
	if len(env) == 0 || ctx.Err() != nil {
		return 0, false
	}

	normalize(env)

	lag, ok := bestLag(ctx, env, minLag, maxLag)
	if !ok {
		return 0, false
	}
	return Fold(60 * EnvelopeRate / float64(lag))
}

// Envelope computes the mean absolute amplitude of the channel-averaged
// signal over consecutive hops of floor(sampleRate/EnvelopeRate) frames.
func Envelope(ctx context.Context, buf *audio.Buffer) []float64 {
	if buf == nil || buf.NumChannels() == 0 {
		return nil
	}
	hop := buf.SampleRate / EnvelopeRate
	if hop < 1 {
		return nil
	}

	n := buf.Frames() / hop
	env := make([]float64, n)
	for i := 0; i < n; i++ {
		// Roughly once per second of audio
		if i%EnvelopeRate == 0 && ctx.Err() != nil {
			return nil
		}
		var sum float64
		start := i * hop
		for j := start; j < start+hop; j++ {
			sum += math.Abs(buf.Mono(j))
		}
		env[i] = sum / float64(hop)
	}
	return env
}

// normalize removes the envelope mean, clamps negatives to zero and scales
// the peak to one.
func normalize(env []float64) {
	floats.AddConst(-stat.Mean(env, nil), env)
	for i, v := range env {
		if v < 0 {
			env[i] = 0
		}
	}
	floats.Scale(1/math.Max(floats.Max(env), normalizeFloor), env)
}

// bestLag returns the lag in [lo, hi] with the largest autocorrelation.
// Only a strictly larger sum replaces the best, so the smallest lag wins
// ties, and an all-zero envelope has no best lag.
func bestLag(ctx context.Context, env []float64, lo, hi int) (int, bool) {
	best, bestVal := 0, 0.0
	for lag := lo; lag <= hi && lag < len(env); lag++ {
		if ctx.Err() != nil {
			return 0, false
		}
		sum := floats.Dot(env[:len(env)-lag], env[lag:])
		if sum > bestVal {
			best, bestVal = lag, sum
		}
	}
	return best, best > 0
}

// Fold doubles or halves bpm until it lies in [MinDetectBPM, MaxDetectBPM].
// Non-positive and non-finite input has no tempo.
func Fold(bpm float64) (float64, bool) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return 0, false
	}
	for bpm < MinDetectBPM {
		bpm *= 2
	}
	for bpm > MaxDetectBPM {
		bpm /= 2
	}
	return bpm, true
}

// ClampManual bounds a user-corrected tempo to [MinManualBPM, MaxManualBPM].
func ClampManual(bpm float64) float64 {
	return math.Min(MaxManualBPM, math.Max(MinManualBPM, bpm))
}

// Halve halves bpm within the manual range
func Halve(bpm float64) float64 {
	return ClampManual(bpm / 2)
}

// Double doubles bpm within the manual range
func Double(bpm float64) float64 {
	return ClampManual(bpm * 2)
}
