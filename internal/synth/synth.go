// Package synth generates deterministic test signals and writes them as WAV.
package synth

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/austinkregel/local-media/beatd/internal/audio"
)

const (
	// ClickFrequency is the tone of each click
	ClickFrequency = 1000.0
	// ClickLength is the duration of each click in seconds
	ClickLength = 0.02
	clickAmplitude = 0.9
	clickDecay     = 200.0 // 1/s
)

func frames(sampleRate int, seconds float64) int {
	if sampleRate <= 0 || seconds <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(sampleRate)))
}

// Silence returns a mono buffer of zeros
func Silence(sampleRate int, seconds float64) *audio.Buffer {
	n := frames(sampleRate, seconds)
	buf := audio.NewBuffer(sampleRate, 1, n)
	buf.Channels[0] = buf.Channels[0][:n]
	return buf
}

// Sine returns a mono sine tone
func Sine(sampleRate int, freq, amplitude, seconds float64) *audio.Buffer {
	buf := Silence(sampleRate, seconds)
	w := 2 * math.Pi * freq / float64(sampleRate)
	for i := range buf.Channels[0] {
		buf.Channels[0][i] = float32(amplitude * math.Sin(w*float64(i)))
	}
	return buf
}

// ClickTrack returns a mono metronome: a short decaying sine burst at
// every beat of bpm, the first at t=0.
func ClickTrack(sampleRate int, bpm, seconds float64) *audio.Buffer {
	buf := Silence(sampleRate, seconds)
	if bpm <= 0 || sampleRate <= 0 {
		return buf
	}

	samples := buf.Channels[0]
	interval := 60 / bpm
	clickFrames := frames(sampleRate, ClickLength)
	w := 2 * math.Pi * ClickFrequency / float64(sampleRate)

	for beat := 0; ; beat++ {
		start := int(math.Round(float64(beat) * interval * float64(sampleRate)))
		if start >= len(samples) {
			break
		}
		for j := 0; j < clickFrames && start+j < len(samples); j++ {
			t := float64(j) / float64(sampleRate)
			samples[start+j] = float32(clickAmplitude * math.Exp(-clickDecay*t) * math.Sin(w*float64(j)))
		}
	}
	return buf
}

// Stereo duplicates a mono buffer into two channels
func Stereo(buf *audio.Buffer) *audio.Buffer {
	out := audio.NewBuffer(buf.SampleRate, 2, buf.Frames())
	for ch := range out.Channels {
		out.Channels[ch] = append(out.Channels[ch], buf.Channels[0]...)
	}
	return out
}

// WriteWAV encodes buf as 16-bit PCM.
func WriteWAV(path string, buf *audio.Buffer) error {
	if buf == nil || buf.NumChannels() == 0 {
		return fmt.Errorf("nothing to write")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	channels := buf.NumChannels()
	enc := wav.NewEncoder(f, buf.SampleRate, 16, channels, 1)

	n := buf.Frames()
	intBuf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           make([]int, n*channels),
		SourceBitDepth: 16,
	}
	for i := 0; i < n; i++ {
		for ch := 0; ch < channels; ch++ {
			v := math.Round(float64(buf.Channels[ch][i]) * 32767)
			intBuf.Data[i*channels+ch] = int(math.Max(-32768, math.Min(32767, v)))
		}
	}

	if err := enc.Write(intBuf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return nil
}
