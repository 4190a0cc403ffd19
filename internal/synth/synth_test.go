package synth

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/austinkregel/local-media/beatd/internal/audio"
)

func TestClickTrackPlacement(t *testing.T) {
	buf := ClickTrack(8000, 120, 2)
	if buf.Frames() != 16000 {
		t.Fatalf("Expected 16000 frames, got %d", buf.Frames())
	}

	// Clicks start every 4000 frames; the gaps are silent
	for _, at := range []int{0, 4000, 8000, 12000} {
		var energy float64
		for j := at; j < at+20; j++ {
			energy += math.Abs(float64(buf.Channels[0][j]))
		}
		if energy == 0 {
			t.Errorf("Expected a click at frame %d", at)
		}
	}
	for _, at := range []int{800, 2000, 5600, 15999} {
		if buf.Channels[0][at] != 0 {
			t.Errorf("Expected silence at frame %d, got %v", at, buf.Channels[0][at])
		}
	}
}

func TestSilenceAndSine(t *testing.T) {
	s := Silence(8000, 0.5)
	if s.Frames() != 4000 {
		t.Errorf("Expected 4000 frames, got %d", s.Frames())
	}

	sine := Sine(8000, 1000, 0.5, 0.01)
	var peak float32
	for _, v := range sine.Channels[0] {
		if v > peak {
			peak = v
		}
	}
	if peak < 0.49 || peak > 0.5 {
		t.Errorf("Expected sine peak near 0.5, got %v", peak)
	}

	if Silence(8000, -1).Frames() != 0 {
		t.Error("Expected negative duration to give an empty buffer")
	}
}

func TestWriteWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "click.wav")
	src := Stereo(ClickTrack(44100, 120, 1))
	if err := WriteWAV(path, src); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	dec := audio.NewDecoder(44100)
	got, err := dec.Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if got.Frames() != src.Frames() {
		t.Errorf("Expected %d frames, got %d", src.Frames(), got.Frames())
	}
	if got.NumChannels() != 2 {
		t.Errorf("Expected 2 channels, got %d", got.NumChannels())
	}
	for i := 0; i < 200; i++ {
		diff := math.Abs(float64(got.Channels[0][i] - src.Channels[0][i]))
		if diff > 1.0/16384 {
			t.Fatalf("Frame %d: expected %v, got %v", i, src.Channels[0][i], got.Channels[0][i])
		}
	}
}

func TestWriteWAVRejectsEmpty(t *testing.T) {
	if err := WriteWAV(filepath.Join(t.TempDir(), "x.wav"), nil); err == nil {
		t.Error("Expected error for nil buffer")
	}
}
