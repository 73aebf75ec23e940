package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/insajin/lazyscroll/internal/session"
)

// ProgressMsg carries a session progress update into the model.
type ProgressMsg session.Progress

// clockMsg refreshes the elapsed time while nothing else happens.
type clockMsg time.Time

// Model renders the progress of a single scroll run.
type Model struct {
	url     string
	backend string

	runID   string
	phase   session.Phase
	ticks   int
	dist    int64
	height  int64
	err     error
	started time.Time
	now     time.Time

	// cancel aborts the run when the user quits early.
	cancel context.CancelFunc

	width    int
	done     bool
	quitting bool
}

// NewModel creates a progress model for a run against url. cancel is
// called if the user quits before the run finishes.
func NewModel(url, backend string, cancel context.CancelFunc) Model {
	now := time.Now()
	return Model{
		url:     url,
		backend: backend,
		phase:   session.PhaseLaunching,
		started: now,
		now:     now,
		cancel:  cancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return clockCmd()
}

func clockCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.cancel != nil && !m.done {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case clockMsg:
		if m.done {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, clockCmd()

	case ProgressMsg:
		if msg.RunID != "" {
			m.runID = msg.RunID
		}
		m.phase = msg.Phase
		if msg.Phase == session.PhaseScrolling || msg.Phase == session.PhaseDone {
			if msg.State.Ticks > 0 {
				m.ticks = msg.State.Ticks
				m.dist = msg.State.Distance
				m.height = msg.Height
			}
		}
		if msg.Phase == session.PhaseDone {
			m.done = true
			m.err = msg.Err
			m.now = time.Now()
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting && !m.done {
		return "Scroll aborted.\n"
	}

	w := m.width
	if w == 0 {
		w = 80
	}
	contentWidth := w - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	runLines := []string{
		labelStyle.Render("Phase:") + " " + m.formatPhase(),
		labelStyle.Render("URL:") + " " + valueStyle.Render(truncate(m.url, contentWidth-16)),
		labelStyle.Render("Backend:") + " " + valueStyle.Render(m.backend),
		labelStyle.Render("Run:") + " " + valueStyle.Render(orDash(m.runID)),
		labelStyle.Render("Elapsed:") + " " + valueStyle.Render(formatDuration(m.now.Sub(m.started))),
	}
	if m.err != nil {
		runLines = append(runLines, labelStyle.Render("Error:")+" "+phaseFailed.Render(truncate(m.err.Error(), contentWidth-16)))
	}

	scrollLines := []string{
		labelStyle.Render("Ticks:") + " " + valueStyle.Render(fmt.Sprintf("%d", m.ticks)),
		labelStyle.Render("Distance:") + " " + valueStyle.Render(fmt.Sprintf("%d px", m.dist)),
		labelStyle.Render("Height:") + " " + valueStyle.Render(fmt.Sprintf("%d px", m.height)),
		renderBar(m.dist, m.height, contentWidth-6),
	}

	box := panelStyle.Width(contentWidth - 2)
	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render(" Run "),
		box.Render(strings.Join(runLines, "\n")),
		titleStyle.Render(" Scroll "),
		box.Render(strings.Join(scrollLines, "\n")),
		helpKeyStyle.Render("q")+" "+helpStyle.Render("abort"),
	)
}

func (m Model) formatPhase() string {
	switch {
	case m.done && m.err != nil:
		return phaseFailed.Render("failed")
	case m.done:
		return phaseDone.Render("done")
	default:
		return phaseActive.Render(string(m.phase))
	}
}

// renderBar draws distance/height as a bar of the given width. Distance
// may overshoot height by up to one step; the bar is clamped to full.
func renderBar(dist, height int64, width int) string {
	if width < 10 {
		width = 10
	}
	ratio := 0.0
	switch {
	case height > 0:
		ratio = float64(dist) / float64(height)
	case dist > 0:
		ratio = 1
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	return barFilled.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3.0f%%", ratio*100)
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	totalSeconds := int(d.Seconds())
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// truncate shortens a string to maxLen, adding an ellipsis if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "--"
	}
	return s
}
