package beat

import (
	"fmt"
	"math"
)

// pulseDecay sets how fast the pulse falls off within a grid cell.
const pulseDecay = 10

// ParseSubdivision accepts 1, 2 or 4 pulses per beat.
func ParseSubdivision(n int) (int, error) {
	switch n {
	case 1, 2, 4:
		return n, nil
	default:
		return 0, fmt.Errorf("subdivision must be 1, 2 or 4, got %d", n)
	}
}

// PulseAt evaluates the beat envelope at playback time t. It is 1 on every
// grid boundary (offset plus a multiple of 60/(bpm*subdivision) seconds)
// and decays as exp(-10x) across the cell, x in [0, 1).
func PulseAt(t, bpm, offset float64, subdivision int) float64 {
	if subdivision < 1 {
		subdivision = 1
	}
	beatDuration := 60 / math.Max(1, bpm)
	grid := beatDuration / float64(subdivision)

	phase := math.Mod(math.Mod(t-offset, grid)+grid, grid)
	x := phase / grid
	return math.Exp(-x * pulseDecay)
}

// Clock is the beat state shared with the frame loop. It is a value;
// every change produces a new Clock.
type Clock struct {
	BPM         float64 `json:"bpm"`
	Offset      float64 `json:"offset"`
	Subdivision int     `json:"subdivision"`
}

// NewClock creates a clock at bpm with no phase offset.
func NewClock(bpm float64, subdivision int) Clock {
	if _, err := ParseSubdivision(subdivision); err != nil {
		subdivision = 1
	}
	return Clock{BPM: bpm, Subdivision: subdivision}
}

// Known reports whether the clock has a tempo
func (c Clock) Known() bool {
	return c.BPM > 0
}

// Pulse returns the envelope at t, or 0 when no tempo is known.
func (c Clock) Pulse(t float64) float64 {
	if !c.Known() {
		return 0
	}
	return PulseAt(t, c.BPM, c.Offset, c.Subdivision)
}

// Realigned declares t a beat boundary
func (c Clock) Realigned(t float64) Clock {
	c.Offset = t
	return c
}

// WithBPM replaces the tempo
func (c Clock) WithBPM(bpm float64) Clock {
	c.BPM = bpm
	return c
}

// WithSubdivision replaces the subdivision
func (c Clock) WithSubdivision(n int) Clock {
	c.Subdivision = n
	return c
}

// Halved halves the tempo within the manual range. A clock without a
// tempo is returned unchanged.
func (c Clock) Halved() Clock {
	if c.Known() {
		c.BPM = Halve(c.BPM)
	}
	return c
}

// Doubled doubles the tempo within the manual range
func (c Clock) Doubled() Clock {
	if c.Known() {
		c.BPM = Double(c.BPM)
	}
	return c
}
