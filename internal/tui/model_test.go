package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/austinkregel/local-media/beatd/internal/audio"
	"github.com/austinkregel/local-media/beatd/internal/engine"
	"github.com/austinkregel/local-media/beatd/internal/spectrum"
	"github.com/austinkregel/local-media/beatd/internal/synth"
)

const testRate = 8000

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	opts := engine.DefaultOptions()
	opts.Autoplay = false
	eng := engine.New(audio.NewNullDevice(testRate, 2), nil, opts)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func loadClick(t *testing.T, eng *engine.Engine) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "click.wav")
	if err := synth.WriteWAV(path, synth.ClickTrack(testRate, 120, 10)); err != nil {
		t.Fatalf("Failed to write click track: %v", err)
	}
	if err := eng.Load(context.Background(), path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	eng.WaitEstimates()
}

func press(m Model, key string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestIdleView(t *testing.T) {
	m := NewModel(newTestEngine(t), 30)

	if m.frame != nil {
		t.Errorf("Expected no frame when idle, got %d bytes", len(m.frame))
	}
	view := m.View()
	if !strings.Contains(view, "No track loaded") {
		t.Error("Expected idle view to say no track is loaded")
	}

	// Transport keys without a file are not errors
	m, _ = press(m, " ")
	if m.err != nil {
		t.Errorf("Expected no error for play while idle, got %v", m.err)
	}
}

func TestTickPullsFrame(t *testing.T) {
	eng := newTestEngine(t)
	loadClick(t, eng)
	m := NewModel(eng, 30)

	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if cmd == nil {
		t.Error("Expected tick to schedule the next tick")
	}
	if len(m.frame) != eng.BinCount() {
		t.Errorf("Expected frame of %d, got %d", eng.BinCount(), len(m.frame))
	}
	if !strings.Contains(m.View(), "click") {
		t.Error("Expected view to show the track title")
	}
}

func TestKeysDriveEngine(t *testing.T) {
	eng := newTestEngine(t)
	loadClick(t, eng)
	eng.SetBPM(120)
	m := NewModel(eng, 30)

	m, _ = press(m, "right")
	if got := eng.CurrentTime(); got != seekStep {
		t.Errorf("Expected position %v, got %v", seekStep, got)
	}
	m, _ = press(m, "left")
	if got := eng.CurrentTime(); got != 0 {
		t.Errorf("Expected position 0, got %v", got)
	}

	m, _ = press(m, "d")
	if eng.Domain() != spectrum.Time {
		t.Errorf("Expected time domain, got %s", eng.Domain())
	}
	m, _ = press(m, "d")
	if eng.Domain() != spectrum.Frequency {
		t.Errorf("Expected frequency domain, got %s", eng.Domain())
	}

	m, _ = press(m, "]")
	if eng.Bars() != 128 {
		t.Errorf("Expected 128 bars, got %d", eng.Bars())
	}

	m, _ = press(m, "h")
	if eng.Clock().BPM != 60 {
		t.Errorf("Expected 60 BPM after halve, got %v", eng.Clock().BPM)
	}
	m, _ = press(m, "H")
	if eng.Clock().BPM != 120 {
		t.Errorf("Expected 120 BPM after double, got %v", eng.Clock().BPM)
	}

	m, _ = press(m, "4")
	if eng.Clock().Subdivision != 4 {
		t.Errorf("Expected subdivision 4, got %d", eng.Clock().Subdivision)
	}
	if m.status.Beat.Subdivision != 4 {
		t.Errorf("Expected model to refresh after a key, got %d", m.status.Beat.Subdivision)
	}

	m, _ = press(m, "m")
	if eng.Volume() != 0 {
		t.Errorf("Expected mute, got %v", eng.Volume())
	}
	if !strings.Contains(m.View(), "muted") {
		t.Error("Expected view to show muted volume")
	}

	_, cmd := press(m, "q")
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected quit message")
	}
}

func TestColumns(t *testing.T) {
	levels := columns([]byte{0, 255, 255, 255}, 2)
	if levels[0] != 0.5 || levels[1] != 1 {
		t.Errorf("Expected [0.5 1], got %v", levels)
	}

	if got := columns(nil, 3); len(got) != 3 || got[0] != 0 {
		t.Errorf("Expected 3 zero levels, got %v", got)
	}
}
