package audio

import (
	"math"
	"sync"
)

// Volume is a shared gain setting that remembers the last audible level so
// mute can be undone exactly.
type Volume struct {
	mu          sync.Mutex
	level       float64
	lastNonZero float64
}

// NewVolume creates a volume at the given level, clamped to [0, 1].
func NewVolume(level float64) *Volume {
	v := &Volume{lastNonZero: 1}
	v.Set(level)
	return v
}

func clampUnit(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Set clamps level to [0, 1], stores it and returns the stored value.
func (v *Volume) Set(level float64) float64 {
	level = clampUnit(level)

	v.mu.Lock()
	defer v.mu.Unlock()

	v.level = level
	if level > 0 {
		v.lastNonZero = level
	}
	return level
}

// Level returns the current gain
func (v *Volume) Level() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.level
}

// Muted reports whether the gain is zero
func (v *Volume) Muted() bool {
	return v.Level() == 0
}

// Restore returns to the last non-zero level.
func (v *Volume) Restore() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.level = v.lastNonZero
	return v.level
}

// ToggleMute mutes an audible volume or restores a muted one.
func (v *Volume) ToggleMute() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.level > 0 {
		v.level = 0
	} else {
		v.level = v.lastNonZero
	}
	return v.level
}
