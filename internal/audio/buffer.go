package audio

import (
	"path/filepath"
	"strings"
	"time"
)

// Buffer is a fully decoded track held in memory, one slice per channel.
// Samples are normalized to [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NewBuffer allocates a buffer with the given channel count and capacity in frames.
func NewBuffer(sampleRate, channels, capacity int) *Buffer {
	b := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for i := range b.Channels {
		b.Channels[i] = make([]float32, 0, capacity)
	}
	return b
}

// NumChannels returns the number of channels
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// Frames returns the number of sample frames per channel
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Seconds returns the buffer length in seconds
func (b *Buffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Duration returns the buffer length as a time.Duration
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// Mono returns the channel average at frame i.
func (b *Buffer) Mono(i int) float64 {
	var sum float64
	for _, ch := range b.Channels {
		sum += float64(ch[i])
	}
	return sum / float64(len(b.Channels))
}

// TitleFromPath derives a display title from a file name.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
