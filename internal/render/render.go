// Package render implements the default terminal renderer for a
// dashboard.Snapshot. It is intentionally minimal (spec §6 Non-goals:
// layout, scrolling, and full-screen chrome are left to the product's own
// presentation layer); this renderer exists so C7's Bubbletea loop has
// something to show and so the merge/ordering invariants in spec §3 are
// visibly exercised end to end.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskdash/taskdash/internal/dashboard"
)

var (
	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleBlocked   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	stylePending   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleDim       = lipgloss.NewStyle().Faint(true)
)

// Default is the package's stock Renderer, used unless a command overrides
// it for testing.
type Default struct{}

// Render formats a Snapshot as a flat, phase-grouped task list followed by
// an agent activity panel. width/height are accepted for the loop.Renderer
// interface but this minimal renderer does not wrap or paginate its output.
func (Default) Render(snap dashboard.Snapshot, width, height int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %d/%d tasks (%.0f%%)",
		styleHeader.Render("taskdash"),
		snap.Metrics.Completed, snap.Metrics.TotalTasks, snap.Metrics.OverallProgress*100)
	if snap.SessionMarker != "" {
		fmt.Fprintf(&b, "  %s", styleDim.Render("session "+snap.SessionMarker))
	}
	b.WriteString("\n\n")

	if snap.Plan != nil {
		for _, ph := range snap.Plan.Phases {
			renderPhase(&b, ph)
		}
	}

	if len(snap.Agents) > 0 {
		b.WriteString("\n")
		b.WriteString(styleHeader.Render("agents"))
		b.WriteString("\n")
		for _, a := range snap.Agents {
			renderAgent(&b, a)
		}
	}

	if len(snap.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(styleDim.Render(fmt.Sprintf("%d parse warning(s)", len(snap.Warnings))))
		b.WriteString("\n")
	}

	return b.String()
}

func renderPhase(b *strings.Builder, ph *dashboard.Phase) {
	fmt.Fprintf(b, "%s %s (%.0f%%)\n", collapseMarker(ph.Collapsed), ph.Name, ph.Progress*100)
	if ph.Collapsed {
		return
	}
	for _, t := range ph.Tasks {
		renderTask(b, t)
	}
}

func collapseMarker(collapsed bool) string {
	if collapsed {
		return "▸"
	}
	return "▾"
}

func renderTask(b *strings.Builder, t *dashboard.Task) {
	style := statusStyle(t.Status)
	fmt.Fprintf(b, "  %s %s", style.Render(t.Status.ShortTag()), t.Name)
	if t.Agent != "" {
		fmt.Fprintf(b, " @%s", t.Agent)
	}
	if t.ErrorExcerpt != "" {
		fmt.Fprintf(b, "  %s", styleFailed.Render(t.ErrorExcerpt))
	}
	b.WriteString("\n")
}

func statusStyle(s dashboard.Status) lipgloss.Style {
	switch s {
	case dashboard.StatusCompleted:
		return styleCompleted
	case dashboard.StatusFailed:
		return styleFailed
	case dashboard.StatusInProgress:
		return styleRunning
	case dashboard.StatusBlocked:
		return styleBlocked
	default:
		return stylePending
	}
}

func renderAgent(b *strings.Builder, a *dashboard.AgentRuntime) {
	state := "idle"
	if a.State == dashboard.AgentRunning {
		state = "running"
	}
	fmt.Fprintf(b, "  %s [%s]", a.AgentID, state)
	if a.CurrentTool != "" {
		fmt.Fprintf(b, " %s", styleDim.Render(a.CurrentTool))
	}
	if a.LastError != "" {
		fmt.Fprintf(b, "  %s", styleFailed.Render(a.LastError))
	}
	b.WriteString("\n")
}
