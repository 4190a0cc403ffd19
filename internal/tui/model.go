// Package tui is a terminal renderer for the engine: it pulls a frame and
// the beat pulse on every tick and maps keys onto the engine controls.
package tui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/austinkregel/local-media/beatd/internal/audio"
	"github.com/austinkregel/local-media/beatd/internal/engine"
	"github.com/austinkregel/local-media/beatd/internal/spectrum"
)

const (
	seekStep   = 5.0
	volumeStep = 0.05
)

type tickMsg time.Time

// Model is the Bubbletea model for the beat display.
type Model struct {
	engine   *engine.Engine
	interval time.Duration

	frame  []byte
	pulse  float64
	status engine.Status

	err      error
	quitting bool
	width    int
	height   int
}

// NewModel creates a Model that redraws fps times per second.
func NewModel(eng *engine.Engine, fps int) Model {
	if fps <= 0 {
		fps = 30
	}
	m := Model{
		engine:   eng,
		interval: time.Second / time.Duration(fps),
	}
	m.refresh()
	return m
}

// Init starts the frame tick and requests the terminal size.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), tea.WindowSize())
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh pulls the current frame, pulse and transport state
func (m *Model) refresh() {
	m.frame = m.engine.SampleInto(m.frame)
	m.pulse = m.engine.Pulse()
	m.status = m.engine.Status()
}

// Update handles key presses, ticks and window resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.handleKey(msg)
		if m.quitting {
			return m, tea.Quit
		}
		m.refresh()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.refresh()
		return m, m.tickCmd()
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) {
	e := m.engine
	var err error

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
	case " ":
		_, err = e.TogglePlay()
	case "left":
		_, err = e.Seek(e.CurrentTime() - seekStep)
	case "right":
		_, err = e.Seek(e.CurrentTime() + seekStep)
	case "up", "+", "=":
		e.SetVolume(e.Volume() + volumeStep)
	case "down", "-":
		e.SetVolume(e.Volume() - volumeStep)
	case "m":
		e.ToggleMute()
	case "d":
		if e.Domain() == spectrum.Frequency {
			err = e.SetDomain(spectrum.Time)
		} else {
			err = e.SetDomain(spectrum.Frequency)
		}
	case "]":
		e.Configure(e.Bars()*2, e.Domain())
	case "[":
		e.Configure(e.Bars()/2, e.Domain())
	case "h":
		e.HalveBPM()
	case "H":
		e.DoubleBPM()
	case "1":
		_, err = e.SetSubdivision(1)
	case "2":
		_, err = e.SetSubdivision(2)
	case "4":
		_, err = e.SetSubdivision(4)
	case "r":
		e.Realign()
	default:
		return
	}

	// Transport keys without a loaded file are ignored
	if errors.Is(err, audio.ErrNoSource) {
		err = nil
	}
	m.err = err
}
