package audio

import "errors"

var (
	// ErrDecode is returned when a file cannot be decoded as audio.
	ErrDecode = errors.New("audio decode failed")

	// ErrAutoplayBlocked is returned when the output device refuses to start.
	// It is not fatal: the source stays loaded and paused.
	ErrAutoplayBlocked = errors.New("playback blocked by output device")

	// ErrNoSource is returned by transport calls when nothing is loaded.
	ErrNoSource = errors.New("no audio source loaded")
)
