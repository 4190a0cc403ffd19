package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// resampleQuality is the beep resampler quality used when the file rate
// differs from the output device rate.
const resampleQuality = 4

// streamChunk is the number of frames pulled from a beep streamer per read.
const streamChunk = 4096

// Decoder turns audio files into in-memory Buffers at a fixed sample rate.
// WAV, MP3 and FLAC are decoded in-process; anything else goes through FFmpeg.
type Decoder struct {
	sampleRate int
	ffmpegPath string
}

// NewDecoder creates a decoder producing buffers at sampleRate.
// FFmpeg is optional and only consulted for formats beep cannot read.
func NewDecoder(sampleRate int) *Decoder {
	ffmpegPath, _ := exec.LookPath("ffmpeg")
	return &Decoder{
		sampleRate: sampleRate,
		ffmpegPath: ffmpegPath,
	}
}

// Decode fully decodes path. Every failure wraps ErrDecode.
func (d *Decoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	var (
		buf *Buffer
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave", ".mp3", ".flac":
		buf, err = d.decodeNative(ctx, path)
	default:
		buf, err = d.decodeFFmpeg(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, filepath.Base(path), err)
	}
	if buf.Frames() == 0 {
		return nil, fmt.Errorf("%w: %s: no audio frames", ErrDecode, filepath.Base(path))
	}
	return buf, nil
}

func (d *Decoder) decodeNative(ctx context.Context, path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	default:
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	channels := format.NumChannels
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		// beep mixes everything down to a stereo pair
		channels = 2
	}

	var s beep.Streamer = streamer
	target := beep.SampleRate(d.sampleRate)
	capacity := streamer.Len()
	if format.SampleRate != target {
		s = beep.Resample(resampleQuality, format.SampleRate, target, s)
		capacity = int(float64(capacity) * float64(target) / float64(format.SampleRate))
	}

	buf := NewBuffer(d.sampleRate, channels, capacity+streamChunk)
	chunk := make([][2]float64, streamChunk)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, ok := s.Stream(chunk)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				buf.Channels[ch] = append(buf.Channels[ch], float32(chunk[i][ch]))
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}

// decodeFFmpeg pipes the file through ffmpeg as signed 16-bit little-endian
// stereo PCM at the decoder rate.
func (d *Decoder) decodeFFmpeg(ctx context.Context, path string) (*Buffer, error) {
	if d.ffmpegPath == "" {
		return nil, fmt.Errorf("unsupported format %q and ffmpeg not found in PATH", filepath.Ext(path))
	}

	args := []string{
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "2",
		"-ar", fmt.Sprintf("%d", d.sampleRate),
		"-loglevel", "error",
		"-",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	pcm, readErr := io.ReadAll(stdout)
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if readErr != nil {
		return nil, fmt.Errorf("read ffmpeg output: %w", readErr)
	}

	return bufferFromPCM16(pcm, d.sampleRate, 2), nil
}

// bufferFromPCM16 converts interleaved 16-bit little-endian PCM into a Buffer.
func bufferFromPCM16(data []byte, sampleRate, channels int) *Buffer {
	frameBytes := 2 * channels
	frames := len(data) / frameBytes
	buf := NewBuffer(sampleRate, channels, frames)
	for i := 0; i < frames; i++ {
		offset := i * frameBytes
		for ch := 0; ch < channels; ch++ {
			o := offset + ch*2
			sample := int16(data[o]) | int16(data[o+1])<<8
			buf.Channels[ch] = append(buf.Channels[ch], float32(sample)/32768.0)
		}
	}
	return buf
}
