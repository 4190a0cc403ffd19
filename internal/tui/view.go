package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/austinkregel/local-media/beatd/internal/audio"
)

const (
	panelWidth   = 64 // usable inner width
	spectrumRows = 6
)

// Block elements for fractional bar heights (9 levels including space)
var barBlocks = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// View renders the full frame.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		titleStyle.Render("B E A T D"),
		m.renderTrackInfo(),
		m.renderTimeStatus(),
		"",
		m.renderSpectrum(),
		m.renderSeekBar(),
		"",
		m.renderBeat(),
		m.renderVolume(),
		"",
		m.renderHelp(),
	}

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("ERR: %s", m.err)))
	}

	return frameStyle.Render(strings.Join(sections, "\n"))
}

func (m Model) renderTrackInfo() string {
	name := m.status.Title
	if name == "" {
		return dimStyle.Render("No track loaded")
	}
	runes := []rune(name)
	if len(runes) > panelWidth-2 {
		name = string(runes[:panelWidth-3]) + "…"
	}
	return trackStyle.Render("♫ " + name)
}

func formatTime(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func (m Model) renderTimeStatus() string {
	left := textStyle.Render(formatTime(m.status.CurrentTime) + " / " + formatTime(m.status.Duration))

	var status string
	switch m.status.State {
	case audio.StatePlaying:
		status = statusStyle.Render("▶ Playing")
	case audio.StatePaused:
		status = statusStyle.Render("⏸ Paused")
	default:
		status = dimStyle.Render("■ Stopped")
	}

	gap := panelWidth - lipgloss.Width(left) - lipgloss.Width(status)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + status
}

// columns averages the frame into n levels in [0, 1]
func columns(frame []byte, n int) []float64 {
	levels := make([]float64, n)
	if len(frame) == 0 || n <= 0 {
		return levels
	}
	for c := 0; c < n; c++ {
		lo := c * len(frame) / n
		hi := (c + 1) * len(frame) / n
		if hi <= lo {
			hi = lo + 1
		}
		sum := 0
		for _, v := range frame[lo:hi] {
			sum += int(v)
		}
		levels[c] = float64(sum) / float64(hi-lo) / 255
	}
	return levels
}

func levelStyle(level float64) lipgloss.Style {
	switch {
	case level > 0.75:
		return specHighStyle
	case level > 0.45:
		return specMidStyle
	default:
		return specLowStyle
	}
}

func (m Model) renderSpectrum() string {
	n := panelWidth
	if len(m.frame) < n {
		n = len(m.frame)
	}
	if n == 0 {
		return dimStyle.Render(strings.Repeat("\n", spectrumRows-1) + strings.Repeat("·", panelWidth))
	}
	levels := columns(m.frame, n)

	rows := make([]string, spectrumRows)
	for r := 0; r < spectrumRows; r++ {
		// Row 0 is the top
		floor := float64(spectrumRows-1-r) / spectrumRows
		var sb strings.Builder
		for _, level := range levels {
			fill := (level - floor) * spectrumRows
			idx := int(fill * float64(len(barBlocks)-1))
			idx = max(0, min(idx, len(barBlocks)-1))
			sb.WriteString(levelStyle(level).Render(barBlocks[idx]))
		}
		rows[r] = sb.String()
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderSeekBar() string {
	var progress float64
	if m.status.Duration > 0 {
		progress = m.status.CurrentTime / m.status.Duration
	}
	progress = max(0, min(1, progress))

	filled := int(progress * float64(panelWidth-1))
	return trackStyle.Render(strings.Repeat("━", filled)+"●") +
		dimStyle.Render(strings.Repeat("━", max(0, panelWidth-filled-1)))
}

func (m Model) renderBeat() string {
	clock := m.status.Beat
	bpm := dimStyle.Render("BPM  ---.-")
	if clock.Known() {
		bpm = labelStyle.Render("BPM ") + activeStyle.Render(fmt.Sprintf("%5.1f", clock.BPM))
	}

	subs := make([]string, 0, 3)
	for _, n := range []int{1, 2, 4} {
		label := fmt.Sprintf("×%d", n)
		if n == clock.Subdivision {
			subs = append(subs, activeStyle.Render(label))
		} else {
			subs = append(subs, dimStyle.Render(label))
		}
	}

	const pulseWidth = 24
	lit := int(m.pulse * pulseWidth)
	meter := pulseStyle.Render(strings.Repeat("█", lit)) + dimStyle.Render(strings.Repeat("░", pulseWidth-lit))

	return bpm + "  " + strings.Join(subs, " ") + "  " + meter
}

func (m Model) renderVolume() string {
	const barW = 24
	vol := m.status.Volume
	filled := int(max(0, min(1, vol)) * barW)
	bar := statusStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", barW-filled))

	label := fmt.Sprintf(" %3.0f%%", vol*100)
	if m.status.Muted {
		label = " muted"
	}
	domain := fmt.Sprintf("%s %d bars", m.status.Domain, m.status.Bars)
	return labelStyle.Render("VOL ") + bar + dimStyle.Render(label) + "   " + dimStyle.Render(domain)
}

func (m Model) renderHelp() string {
	return helpStyle.Render("[Spc]Play [←→]Seek [↑↓]Vol [M]ute [D]omain [[ ]]Bars [h/H]BPM [1/2/4]Sub [R]ealign [Q]uit")
}
