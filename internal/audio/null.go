package audio

import (
	"io"
	"sync"
	"time"
)

// nullTick is how much audio a null handle consumes per wake-up.
const nullTick = 10 * time.Millisecond

// NullDevice consumes audio at real-time rate and discards it. It stands in
// for the sound card on headless machines so analysis and the beat clock
// keep running.
type NullDevice struct {
	sampleRate int
	channels   int

	mu        sync.Mutex
	suspended bool
}

// NewNullDevice creates a discarding device
func NewNullDevice(sampleRate, channels int) *NullDevice {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	return &NullDevice{sampleRate: sampleRate, channels: channels}
}

// SampleRate returns the sample rate
func (d *NullDevice) SampleRate() int {
	return d.sampleRate
}

// Channels returns the number of channels
func (d *NullDevice) Channels() int {
	return d.channels
}

// NewPlayer creates a paused handle reading from r
func (d *NullDevice) NewPlayer(r io.Reader) Handle {
	frames := int(nullTick.Seconds() * float64(d.sampleRate))
	return &nullHandle{
		reader:    r,
		chunkSize: frames * d.channels * bytesPerSample,
	}
}

// Resume marks the device running
func (d *NullDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = false
	return nil
}

// Suspend marks the device stopped
func (d *NullDevice) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = true
	return nil
}

// Close suspends the device
func (d *NullDevice) Close() error {
	return d.Suspend()
}

type nullHandle struct {
	reader    io.Reader
	chunkSize int

	mu      sync.Mutex
	playing bool
	closed  bool
	stop    chan struct{}
}

func (h *nullHandle) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.playing || h.closed {
		return
	}
	h.playing = true
	h.stop = make(chan struct{})
	go h.run(h.stop)
}

func (h *nullHandle) run(stop chan struct{}) {
	chunk := make([]byte, h.chunkSize)
	ticker := time.NewTicker(nullTick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := h.reader.Read(chunk); err != nil {
				h.Pause()
				return
			}
		}
	}
}

func (h *nullHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.playing {
		return
	}
	h.playing = false
	close(h.stop)
}

func (h *nullHandle) IsPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *nullHandle) UnplayedBufferSize() int {
	return 0
}

func (h *nullHandle) Close() error {
	h.Pause()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

var _ Device = (*NullDevice)(nil)
