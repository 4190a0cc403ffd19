package beat

import (
	"context"
	"math"
	"testing"

	"github.com/austinkregel/local-media/beatd/internal/audio"
	"github.com/austinkregel/local-media/beatd/internal/synth"
)

func TestLagBounds(t *testing.T) {
	if minLag != 60 {
		t.Errorf("Expected min lag 60, got %d", minLag)
	}
	if maxLag != 200 {
		t.Errorf("Expected max lag 200, got %d", maxLag)
	}
}

func TestEstimateClickTrack(t *testing.T) {
	buf := synth.ClickTrack(44100, 120, 2)

	bpm, ok := Estimate(context.Background(), buf)
	if !ok {
		t.Fatal("Expected a tempo for a click track")
	}
	if math.Abs(bpm-120) > 2 {
		t.Errorf("Expected 120 +/- 2 BPM, got %v", bpm)
	}
}

func TestEstimateStereoClickTrack(t *testing.T) {
	buf := synth.Stereo(synth.ClickTrack(48000, 90, 4))

	bpm, ok := Estimate(context.Background(), buf)
	if !ok {
		t.Fatal("Expected a tempo for a click track")
	}
	if math.Abs(bpm-90) > 2 {
		t.Errorf("Expected 90 +/- 2 BPM, got %v", bpm)
	}
}

func TestEstimateDeterministic(t *testing.T) {
	buf := synth.ClickTrack(22050, 137, 3)

	first, ok1 := Estimate(context.Background(), buf)
	second, ok2 := Estimate(context.Background(), buf)
	if ok1 != ok2 || first != second {
		t.Errorf("Expected identical results, got (%v, %v) and (%v, %v)", first, ok1, second, ok2)
	}
}

func TestEstimateNoTempo(t *testing.T) {
	tests := []struct {
		name string
		buf  *audio.Buffer
	}{
		{"nil buffer", nil},
		{"empty buffer", audio.NewBuffer(44100, 1, 0)},
		{"silence", synth.Silence(44100, 2)},
		{"too short", synth.ClickTrack(44100, 120, 0.1)},
		{"no channels", &audio.Buffer{SampleRate: 44100}},
		{"rate below envelope rate", synth.ClickTrack(100, 120, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if bpm, ok := Estimate(context.Background(), tt.buf); ok {
				t.Errorf("Expected no tempo, got %v", bpm)
			}
		})
	}
}

func TestEstimateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if bpm, ok := Estimate(ctx, synth.ClickTrack(44100, 120, 2)); ok {
		t.Errorf("Expected no tempo after cancellation, got %v", bpm)
	}
}

func TestEnvelope(t *testing.T) {
	buf := audio.NewBuffer(1000, 2, 12)
	for i := 0; i < 12; i++ {
		buf.Channels[0] = append(buf.Channels[0], 0.5)
		buf.Channels[1] = append(buf.Channels[1], -0.25)
	}

	// hop of 5 frames; the trailing partial hop is dropped
	env := Envelope(context.Background(), buf)
	if len(env) != 2 {
		t.Fatalf("Expected 2 envelope samples, got %d", len(env))
	}
	for i, v := range env {
		if v != 0.125 {
			t.Errorf("Sample %d: expected 0.125, got %v", i, v)
		}
	}
}

func TestBestLagSmallestWinsTies(t *testing.T) {
	env := make([]float64, 200)
	env[0] = 1
	env[60] = 1
	env[130] = 1

	// lags 60, 70 and 130 all correlate to 1
	lag, ok := bestLag(context.Background(), env, 60, 200)
	if !ok {
		t.Fatal("Expected a lag")
	}
	if lag != 60 {
		t.Errorf("Expected smallest tied lag 60, got %d", lag)
	}
}

func TestBestLagSilent(t *testing.T) {
	if _, ok := bestLag(context.Background(), make([]float64, 400), 60, 200); ok {
		t.Error("Expected no lag for a silent envelope")
	}
}

func TestFoldRange(t *testing.T) {
	maxSteps := int(math.Log2(MaxDetectBPM/MinDetectBPM)) + 1

	for _, in := range []float64{1, 7.5, 29.99, 30, 59.9, 60, 100, 200, 200.1, 399, 400, 401, 1000, 12345} {
		out, ok := Fold(in)
		if !ok {
			t.Errorf("Fold(%v): expected a tempo", in)
			continue
		}
		if out < MinDetectBPM || out > MaxDetectBPM {
			t.Errorf("Fold(%v): %v outside [%v, %v]", in, out, MinDetectBPM, MaxDetectBPM)
		}
		if in >= MinDetectBPM/4 && in <= MaxDetectBPM*4 {
			steps := math.Abs(math.Log2(out / in))
			if steps > float64(maxSteps) {
				t.Errorf("Fold(%v): took %v octave steps, expected at most %d", in, steps, maxSteps)
			}
		}
	}

	for _, in := range []float64{0, -120, math.NaN(), math.Inf(1)} {
		if _, ok := Fold(in); ok {
			t.Errorf("Fold(%v): expected no tempo", in)
		}
	}
}

func TestManualOctaveCorrection(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"halve 100", Halve(100), 50},
		{"halve 60 clamps", Halve(60), MinManualBPM},
		{"double 100", Double(100), 200},
		{"double 150 clamps", Double(150), MaxManualBPM},
		{"clamp low", ClampManual(10), MinManualBPM},
		{"clamp high", ClampManual(1000), MaxManualBPM},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, tt.got)
		}
	}
}
