package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// RunModel shows a spinner and live counters while a snapshot is built.
type RunModel struct {
	spinner   spinner.Model
	label     string
	progress  types.ScanProgress
	startTime time.Time
}

// NewRunModel creates a progress view for the named operation.
func NewRunModel(label string) RunModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return RunModel{
		spinner:   s,
		label:     label,
		startTime: time.Now(),
	}
}

// Init starts the spinner.
func (m RunModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update advances the spinner.
func (m RunModel) Update(msg tea.Msg) (RunModel, tea.Cmd) {
	if tick, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(tick)
		return m, cmd
	}
	return m, nil
}

// SetProgress records the latest build progress.
func (m *RunModel) SetProgress(p types.ScanProgress) {
	m.progress = p
}

// View renders the label, the current path and the counters.
func (m RunModel) View(width int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), accentTextStyle.Render(m.label))
	if m.progress.CurrentPath != "" {
		b.WriteString(mutedTextStyle.Render(truncatePath(m.progress.CurrentPath, max(width-4, 20))))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderStats(width))
	return b.String()
}

func (m RunModel) renderStats(totalWidth int) string {
	boxWidth := max((totalWidth-8)/4, 10)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Dirs", humanize.Comma(m.progress.DirsScanned), boxWidth), " ",
		renderStatBox("Files", humanize.Comma(m.progress.FilesScanned), boxWidth), " ",
		renderStatBox("Hashed", humanize.IBytes(uint64(m.progress.BytesHashed)), boxWidth), " ",
		renderStatBox("Time", formatDuration(time.Since(m.startTime)), boxWidth))
}

func renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		statLabelStyle.Render(label),
		statValueStyle.Render(value))
	return statBoxStyle.Width(width).Render(content)
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}

// truncatePath shortens p to width runes, keeping its tail.
func truncatePath(p string, width int) string {
	r := []rune(p)
	if len(r) <= width {
		return p
	}
	if width <= 3 {
		return string(r[len(r)-width:])
	}
	return "..." + string(r[len(r)-width+3:])
}
