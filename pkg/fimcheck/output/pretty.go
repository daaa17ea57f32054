package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

const timeLayout = "2006-01-02 15:04:05"

// PrettyFormatter renders a styled report for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted report to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatChanges(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 || len(r.Skipped) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r))
	}
	w.WriteString("\n")
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Report) string {
	field := func(label, value string) string {
		return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
	}

	lines := []string{
		TitleStyle.Render(ResultsHeader),
		field("Root:    ", r.Root),
		field("Baseline:", r.BaselinePath),
		field("Scanned: ", fmt.Sprintf("%d files, %s in %s (%s)",
			r.Stats.FilesScanned,
			humanize.IBytes(uint64(max(r.Stats.BytesHashed, 0))),
			formatDuration(r.Stats.Duration),
			r.Algorithm)),
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatChanges(r *Report) string {
	changes := orderedChanges(r.Changes)
	if len(changes) == 0 {
		return SuccessStyle.Render("  "+NoChangesMessage) + "\n"
	}

	var sb strings.Builder
	for _, c := range changes {
		switch c.kind {
		case types.ChangeAdded:
			fmt.Fprintf(&sb, "  %s  %s\n", AddedMarker, PathStyle.Render(c.path))
		case types.ChangeModified:
			fmt.Fprintf(&sb, "  %s  %s\n", ModifiedMarker, PathStyle.Render(c.path))
			sb.WriteString(formatRecord("old", c.mod.Old))
			sb.WriteString(formatRecord("new", c.mod.New))
		case types.ChangeRemoved:
			fmt.Fprintf(&sb, "  %s  %s\n", RemovedMarker, PathStyle.Render(c.path))
		}
	}
	return sb.String()
}

// formatRecord renders one side of a modification: digest, size and mtime.
func formatRecord(label string, r types.FileRecord) string {
	meta := r.HumanSize()
	if r.ModTime > 0 {
		meta += ", " + r.ModifiedAt().Local().Format(timeLayout)
	}
	return fmt.Sprintf("              %s %s  %s\n",
		LabelStyle.Render(label), HashStyle.Render(r.Digest), MutedStyle.Render(meta))
}

func (f *PrettyFormatter) formatFooter(r *Report) string {
	c := r.Changes
	parts := []string{
		LabelStyle.Render("Added:") + " " + SuccessStyle.Render(fmt.Sprint(len(c.Added))),
		LabelStyle.Render("Modified:") + " " + WarningStyle.Render(fmt.Sprint(len(c.Modified))),
		LabelStyle.Render("Deleted:") + " " + ErrorStyle.Render(fmt.Sprint(len(c.Removed))),
		LabelStyle.Render("Unchanged:") + " " + ValueStyle.Render(fmt.Sprint(c.Unchanged)),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(r *Report) string {
	var sb strings.Builder

	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range r.Warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	for _, e := range r.Skipped {
		sb.WriteString(WarningStyle.Render(fmt.Sprintf("  unreadable %s: %s", e.Path, e.Error)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
