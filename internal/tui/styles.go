package tui

import "github.com/charmbracelet/lipgloss"

// Standard ANSI colors (0-15) so the palette follows the terminal theme.
var (
	colorBorder = lipgloss.ANSIColor(8)
	colorTitle  = lipgloss.ANSIColor(14) // bright cyan
	colorText   = lipgloss.ANSIColor(7)
	colorDim    = lipgloss.ANSIColor(8)
	colorAccent = lipgloss.ANSIColor(11)
	colorPlay   = lipgloss.ANSIColor(10)
	colorPulse  = lipgloss.ANSIColor(13) // bright magenta

	// Spectrum gradient: green -> yellow -> red
	spectrumLow  = lipgloss.ANSIColor(10)
	spectrumMid  = lipgloss.ANSIColor(11)
	spectrumHigh = lipgloss.ANSIColor(9)
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	titleStyle  = lipgloss.NewStyle().Foreground(colorTitle).Bold(true)
	trackStyle  = lipgloss.NewStyle().Foreground(colorAccent)
	textStyle   = lipgloss.NewStyle().Foreground(colorText)
	statusStyle = lipgloss.NewStyle().Foreground(colorPlay).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	labelStyle  = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	pulseStyle  = lipgloss.NewStyle().Foreground(colorPulse)
	helpStyle   = lipgloss.NewStyle().Foreground(colorDim)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(9))

	specLowStyle  = lipgloss.NewStyle().Foreground(spectrumLow)
	specMidStyle  = lipgloss.NewStyle().Foreground(spectrumMid)
	specHighStyle = lipgloss.NewStyle().Foreground(spectrumHigh)
)
