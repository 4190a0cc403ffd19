// Package audio decodes local files, plays them through the output device
// and exposes a live analysis tap of what is playing.
package audio

import (
	"fmt"
	"io"
	"math"
	"sync"
)

// PlaybackState represents the transport state of a source
type PlaybackState string

const (
	StateStopped PlaybackState = "stopped"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// Status is a snapshot of the transport state. Times are in seconds.
type Status struct {
	State       PlaybackState `json:"state"`
	Path        string        `json:"path,omitempty"`
	Title       string        `json:"title,omitempty"`
	CurrentTime float64       `json:"currentTime"`
	Duration    float64       `json:"duration"`
	Volume      float64       `json:"volume"`
	Muted       bool          `json:"muted"`
	Loop        bool          `json:"loop"`
}

// Source is one loaded track: a decoded buffer, a playback handle on the
// device and the analysis tap fed by that handle.
type Source struct {
	mu sync.Mutex

	path     string
	buf      *Buffer
	device   Device
	handle   Handle
	analyzer *Analyzer
	volume   *Volume
	loop     bool

	// Next frame handed to the device
	cursor int
	// Frames the cursor advanced since the last seek, used to bound the
	// device latency correction
	advanced int

	playing  bool
	ended    bool
	disposed bool

	// Scratch space for the analyzer
	mono []float64
}

// NewSource creates a paused source for buf on dev. The buffer must already
// be at the device rate.
func NewSource(path string, buf *Buffer, dev Device, vol *Volume, loop bool) (*Source, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrDecode)
	}
	if buf.SampleRate != dev.SampleRate() {
		return nil, fmt.Errorf("buffer rate %d does not match device rate %d", buf.SampleRate, dev.SampleRate())
	}
	if vol == nil {
		vol = NewVolume(1)
	}

	s := &Source{
		path:     path,
		buf:      buf,
		device:   dev,
		analyzer: NewAnalyzer(),
		volume:   vol,
		loop:     loop,
	}
	s.handle = dev.NewPlayer(&sourceReader{s: s})
	return s, nil
}

// sourceReader feeds the device with 16-bit PCM from the source cursor and
// copies the pre-gain mono mix into the analyzer.
type sourceReader struct {
	s *Source
}

func (r *sourceReader) Read(p []byte) (int, error) {
	s := r.s
	channels := s.device.Channels()
	frameBytes := channels * bytesPerSample
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return 0, io.EOF
	}

	gain := s.volume.Level()
	total := s.buf.Frames()
	bufChannels := s.buf.NumChannels()
	mono := s.mono[:0]
	var reachedEnd bool

	i := 0
	for ; i < frames && s.playing; i++ {
		if s.cursor >= total {
			if !s.loop {
				s.playing = false
				s.ended = true
				reachedEnd = true
				break
			}
			s.cursor = 0
			s.advanced = 0
		}

		m := s.buf.Mono(s.cursor)
		off := i * frameBytes
		for ch := 0; ch < channels; ch++ {
			var x float64
			switch {
			case channels == 1:
				x = m
			case ch < bufChannels:
				x = float64(s.buf.Channels[ch][s.cursor])
			default:
				x = float64(s.buf.Channels[bufChannels-1][s.cursor])
			}
			putSample(p[off+ch*bytesPerSample:], x*gain)
		}
		mono = append(mono, m)
		s.cursor++
		s.advanced++
	}
	// Silence for the rest of the request
	for j := i * frameBytes; j < frames*frameBytes; j++ {
		p[j] = 0
	}

	s.mono = mono
	s.analyzer.Write(mono)
	handle := s.handle
	s.mu.Unlock()

	// Pausing from inside the device read would deadlock the player
	if reachedEnd && handle != nil {
		go handle.Pause()
	}
	return frames * frameBytes, nil
}

// putSample writes x as a clamped 16-bit little-endian sample
func putSample(dst []byte, x float64) {
	v := math.Round(x * 32767)
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	sample := int16(v)
	dst[0] = byte(sample)
	dst[1] = byte(sample >> 8)
}

// Play starts playback. The device is resumed first; if it keeps refusing
// after retries the source stays paused and ErrAutoplayBlocked is returned.
// Playing an ended source restarts it from the beginning.
func (s *Source) Play() error {
	if s == nil {
		return ErrNoSource
	}

	s.mu.Lock()
	if s.disposed || s.handle == nil {
		s.mu.Unlock()
		return ErrNoSource
	}
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	if s.ended || s.cursor >= s.buf.Frames() {
		s.cursor = 0
		s.advanced = 0
		s.ended = false
	}
	dev := s.device
	s.mu.Unlock()

	if err := resumeDevice(dev); err != nil {
		return fmt.Errorf("%w: %v", ErrAutoplayBlocked, err)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrNoSource
	}
	s.playing = true
	handle := s.handle
	s.mu.Unlock()

	handle.Play()
	return nil
}

// Pause pauses playback (idempotent)
func (s *Source) Pause() error {
	if s == nil {
		return ErrNoSource
	}

	s.mu.Lock()
	if s.disposed || s.handle == nil {
		s.mu.Unlock()
		return ErrNoSource
	}
	s.playing = false
	handle := s.handle
	s.mu.Unlock()

	handle.Pause()
	return nil
}

// TogglePlay pauses a playing source or resumes a paused one and reports
// whether the source is now playing.
func (s *Source) TogglePlay() (bool, error) {
	if s.IsPlaying() {
		return false, s.Pause()
	}
	if err := s.Play(); err != nil {
		return false, err
	}
	return true, nil
}

// Seek moves playback to t seconds, clamped to [0, duration], and returns
// the clamped time. The analysis tap is cleared.
func (s *Source) Seek(t float64) float64 {
	if s == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf == nil {
		return 0
	}
	duration := s.buf.Seconds()
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > duration {
		t = duration
	}

	cursor := int(math.Round(t * float64(s.buf.SampleRate)))
	if cursor > s.buf.Frames() {
		cursor = s.buf.Frames()
	}
	s.cursor = cursor
	s.advanced = 0
	s.ended = cursor >= s.buf.Frames() && !s.loop

	// Frames after a jump must not show audio from before it
	s.analyzer.Reset()
	return t
}

// CurrentTime returns the audible playback position in seconds. Audio
// already handed to the device but not yet played is subtracted.
func (s *Source) CurrentTime() float64 {
	if s == nil {
		return 0
	}

	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()

	unplayed := 0
	if handle != nil {
		unplayed = handle.UnplayedBufferSize() / (s.device.Channels() * bytesPerSample)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked(unplayed)
}

func (s *Source) positionLocked(unplayedFrames int) float64 {
	if s.buf == nil || s.buf.SampleRate <= 0 {
		return 0
	}
	if unplayedFrames > s.advanced {
		unplayedFrames = s.advanced
	}
	frame := s.cursor - unplayedFrames
	if frame < 0 {
		frame = 0
	}
	t := float64(frame) / float64(s.buf.SampleRate)
	if d := s.buf.Seconds(); t > d {
		t = d
	}
	return t
}

// Duration returns the track length in seconds
func (s *Source) Duration() float64 {
	if s == nil || s.buf == nil {
		return 0
	}
	return s.buf.Seconds()
}

// IsPlaying reports whether the source is playing
func (s *Source) IsPlaying() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing && !s.disposed
}

// SetVolume clamps v to [0, 1] and returns the applied level.
func (s *Source) SetVolume(v float64) float64 {
	if s == nil || s.volume == nil {
		return 0
	}
	return s.volume.Set(v)
}

// ToggleMute mutes or restores the last audible volume.
func (s *Source) ToggleMute() float64 {
	if s == nil || s.volume == nil {
		return 0
	}
	return s.volume.ToggleMute()
}

// RestoreVolume returns to the last non-zero volume.
func (s *Source) RestoreVolume() float64 {
	if s == nil || s.volume == nil {
		return 0
	}
	return s.volume.Restore()
}

// SetLoop enables or disables looping at the end of the track
func (s *Source) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = loop
}

// Analyzer returns the analysis tap of this source
func (s *Source) Analyzer() *Analyzer {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzer
}

// Buffer returns the decoded audio
func (s *Source) Buffer() *Buffer {
	if s == nil {
		return nil
	}
	return s.buf
}

// Path returns the file the source was loaded from
func (s *Source) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Status returns a snapshot of the transport state.
func (s *Source) Status() Status {
	if s == nil {
		return Status{State: StateStopped}
	}

	st := Status{
		Path:        s.path,
		Title:       TitleFromPath(s.path),
		CurrentTime: s.CurrentTime(),
		Duration:    s.Duration(),
	}
	if s.volume != nil {
		st.Volume = s.volume.Level()
		st.Muted = st.Volume == 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st.Loop = s.loop
	switch {
	case s.disposed:
		st.State = StateStopped
	case s.playing:
		st.State = StatePlaying
	default:
		st.State = StatePaused
	}
	return st
}

// Dispose stops playback and releases the playback handle. It is safe to
// call more than once and on a partially constructed source.
func (s *Source) Dispose() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.playing = false
	handle := s.handle
	s.handle = nil
	s.mu.Unlock()

	if handle == nil {
		return nil
	}
	handle.Pause()
	if err := handle.Close(); err != nil {
		return fmt.Errorf("failed to close player: %w", err)
	}
	return nil
}
