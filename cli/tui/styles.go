// Package tui provides Bubble Tea views of batch reports.
//
// TUI is opt-in (--tui) and read-only. Views render the same report
// payload as the json/yaml/table formats.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/svgswap/rewrite"
	"github.com/pithecene-io/svgswap/runtime"
	"github.com/pithecene-io/svgswap/types"
)

// Palette. Adaptive colors keep the views readable on light terminals.
var (
	primaryColor   = lipgloss.AdaptiveColor{Light: "#5B21B6", Dark: "#A78BFA"}
	successColor   = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	warningColor   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	errorColor     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	mutedColor     = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	highlightColor = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	textColor      = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)
	LabelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(10)
	ValueStyle = lipgloss.NewStyle().Foreground(textColor)
	ErrorStyle = lipgloss.NewStyle().Foreground(errorColor)
	HelpStyle  = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)

	// Stat boxes in the summary header; the border and value colour are
	// set per box.
	StatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(16).Align(lipgloss.Center)
	StatLabelStyle = lipgloss.NewStyle().Foreground(mutedColor)
	StatValueStyle = lipgloss.NewStyle().Bold(true)
)

// tone groups outcome values by how they should read at a glance.
type tone int

const (
	toneNeutral tone = iota
	toneGood
	toneCaution
	toneBad
)

// tones covers every outcome a report, resume or rewrite can carry.
var tones = map[string]tone{
	string(types.BatchSuccess):          toneGood,
	string(types.BatchPartial):          toneCaution,
	string(types.BatchAborted):          toneBad,
	string(types.CandidateConverted):    toneGood,
	string(types.CandidateKeptOriginal): toneCaution,
	string(types.CandidateFailed):       toneBad,
	string(runtime.ResumeCompleted):     toneGood,
	string(runtime.ResumeSkipped):       toneCaution,
	string(rewrite.FileUpdated):         toneGood,
}

var toneStyles = map[tone]lipgloss.Style{
	toneNeutral: ValueStyle,
	toneGood:    lipgloss.NewStyle().Foreground(successColor),
	toneCaution: lipgloss.NewStyle().Foreground(warningColor),
	toneBad:     ErrorStyle,
}

// StateStyle returns the style for an outcome value. Unknown values
// render neutral.
func StateStyle(state string) lipgloss.Style {
	return toneStyles[tones[state]]
}
