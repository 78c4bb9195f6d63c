// Package status renders the single-line progress bar aget prints on
// its 2-second status tick (spec.md §4.J/§4.K/§4.O). It is adapted
// from the teacher's internal/core/downloader/progress.go: the
// lipgloss color palette and bubbles/progress bar are kept, but the
// bubbletea event loop is dropped (see DESIGN.md) since the core's
// concurrency model drives rendering from an explicit tick, not a
// tea.Program update loop.
package status

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Renderer formats a one-line progress bar as a string on each tick;
// it writes nothing itself and holds no channel or event loop of its
// own.
type Renderer struct {
	bar   progress.Model
	label string
}

// New creates a renderer for a single task, labeled with the output
// filename as the teacher's progress.go labels its bar.
func New(label string) *Renderer {
	return &Renderer{
		bar:   progress.New(progress.WithDefaultGradient()),
		label: label,
	}
}

// Render formats one status line: label, bar, percent, speed, ETA.
func (r *Renderer) Render(completed, total uint64, bytesPerSec float64, eta time.Duration) string {
	var pct float64
	if total > 0 {
		pct = float64(completed) / float64(total)
		if pct > 1 {
			pct = 1
		}
	}
	return fmt.Sprintf("%s %s %s  %s/s  ETA %s",
		infoStyle.Render(r.label),
		r.bar.ViewAs(pct),
		formatBytes(int64(completed)),
		formatBytes(int64(bytesPerSec)),
		formatDuration(eta))
}

// RenderDone formats the final, success-styled line.
func (r *Renderer) RenderDone(total uint64, elapsed time.Duration) string {
	return doneStyle.Render(fmt.Sprintf("%s done: %s in %s", r.label, formatBytes(int64(total)), formatDuration(elapsed)))
}

// RenderError formats the final, error-styled line.
func (r *Renderer) RenderError(err error) string {
	return errStyle.Render(fmt.Sprintf("%s failed: %v", r.label, err))
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	if m > 60 {
		h := m / 60
		m = m % 60
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
