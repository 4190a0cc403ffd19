package audio

import (
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/oto/v2"
)

const (
	// DefaultSampleRate is the output rate used when the config leaves it unset.
	DefaultSampleRate = 44100
	// DefaultChannels is the output channel count
	DefaultChannels = 2

	bytesPerSample = 2 // 16-bit

	resumeAttempts = 3
	resumeDelay    = 20 * time.Millisecond
)

// Handle is a single playback stream on a Device.
type Handle interface {
	Play()
	Pause()
	IsPlaying() bool
	// UnplayedBufferSize is the number of bytes read from the source but
	// not yet audible.
	UnplayedBufferSize() int
	Close() error
}

// Device is the platform audio output.
type Device interface {
	SampleRate() int
	Channels() int
	// NewPlayer creates a paused stream that pulls 16-bit little-endian
	// interleaved PCM from r.
	NewPlayer(r io.Reader) Handle
	Resume() error
	Suspend() error
	Close() error
}

// OtoDevice plays audio through an oto context. Only one may exist per process.
type OtoDevice struct {
	context     *oto.Context
	sampleRate  int
	channels    int
	bufferBytes int
}

// NewOtoDevice creates the oto context and waits until it is ready.
// bufferSize bounds how far playback runs ahead of what is audible; zero
// keeps the oto default.
func NewOtoDevice(sampleRate, channels int, bufferSize time.Duration) (*OtoDevice, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}

	ctx, ready, err := oto.NewContext(sampleRate, channels, bytesPerSample)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	frameBytes := channels * bytesPerSample
	bufferBytes := int(bufferSize.Seconds()*float64(sampleRate)) * frameBytes

	return &OtoDevice{
		context:     ctx,
		sampleRate:  sampleRate,
		channels:    channels,
		bufferBytes: bufferBytes,
	}, nil
}

// SampleRate returns the sample rate
func (d *OtoDevice) SampleRate() int {
	return d.sampleRate
}

// Channels returns the number of channels
func (d *OtoDevice) Channels() int {
	return d.channels
}

// NewPlayer creates an oto player reading from r.
func (d *OtoDevice) NewPlayer(r io.Reader) Handle {
	p := d.context.NewPlayer(r)
	if d.bufferBytes > 0 {
		if bs, ok := p.(interface{ SetBufferSize(int) }); ok {
			bs.SetBufferSize(d.bufferBytes)
		}
	}
	return p
}

// Resume resumes a suspended context.
func (d *OtoDevice) Resume() error {
	if err := d.context.Resume(); err != nil {
		return err
	}
	return d.context.Err()
}

// Suspend stops all output on the context.
func (d *OtoDevice) Suspend() error {
	return d.context.Suspend()
}

// Close suspends the context. oto contexts cannot be destroyed.
func (d *OtoDevice) Close() error {
	return d.Suspend()
}

// resumeDevice resumes dev, retrying with a growing delay.
func resumeDevice(dev Device) error {
	var lastErr error
	for attempt := 0; attempt < resumeAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(resumeDelay * time.Duration(attempt))
		}
		if lastErr = dev.Resume(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

var _ Device = (*OtoDevice)(nil)
