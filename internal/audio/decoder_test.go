package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBufferFromPCM16(t *testing.T) {
	// Two stereo frames: (0x4000, 0xC000) and (0x7FFF, 0x0000)
	data := []byte{0x00, 0x40, 0x00, 0xC0, 0xFF, 0x7F, 0x00, 0x00}
	buf := bufferFromPCM16(data, 44100, 2)

	if buf.Frames() != 2 {
		t.Fatalf("Expected 2 frames, got %d", buf.Frames())
	}
	if buf.NumChannels() != 2 {
		t.Fatalf("Expected 2 channels, got %d", buf.NumChannels())
	}
	if buf.Channels[0][0] != 0.5 {
		t.Errorf("Expected left sample 0.5, got %v", buf.Channels[0][0])
	}
	if buf.Channels[1][0] != -0.5 {
		t.Errorf("Expected right sample -0.5, got %v", buf.Channels[1][0])
	}
	if buf.Mono(0) != 0 {
		t.Errorf("Expected mono mix 0, got %v", buf.Mono(0))
	}
}

func TestBufferFromPCM16IgnoresPartialFrame(t *testing.T) {
	buf := bufferFromPCM16([]byte{0x00, 0x40, 0x00}, 44100, 1)
	if buf.Frames() != 1 {
		t.Errorf("Expected 1 frame, got %d", buf.Frames())
	}
}

func TestDecodeMissingFile(t *testing.T) {
	d := NewDecoder(44100)
	_, err := d.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	if err := os.WriteFile(path, []byte("definitely not a RIFF file"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	d := NewDecoder(44100)
	_, err := d.Decode(context.Background(), path)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestTitleFromPath(t *testing.T) {
	if got := TitleFromPath("/music/Artist - Song.flac"); got != "Artist - Song" {
		t.Errorf("Expected 'Artist - Song', got %q", got)
	}
}
