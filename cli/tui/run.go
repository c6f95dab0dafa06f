package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/plonegovbr/transmute/metrics"
)

// ProgressMsg carries a counter update from the running pipeline.
type ProgressMsg struct {
	Processed int64
	Total     int64
}

// DoneMsg signals run completion. Err is nil on success.
type DoneMsg struct {
	Snapshot  metrics.Snapshot
	IndexPath string
	Err       error
}

// RunModel is a Bubble Tea model rendering live run progress.
type RunModel struct {
	runID string
	src   string
	dst   string

	bar       progress.Model
	processed int64
	total     int64

	done     bool
	err      error
	snapshot metrics.Snapshot
	index    string
	width    int

	// Cancelled is set when the user hit Ctrl+C before the run finished.
	// The caller inspects it on the final model to cancel the run context.
	Cancelled bool
	// Detached is set when the user pressed q. The run keeps going.
	Detached bool
}

// NewRunModel creates a run view for the given run context.
func NewRunModel(runID, src, dst string, total int64) RunModel {
	return RunModel{
		runID: runID,
		src:   src,
		dst:   dst,
		total: total,
		bar:   progress.New(progress.WithDefaultGradient()),
	}
}

// Init implements tea.Model.
func (m RunModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		width := msg.Width - 12
		if width > 60 {
			width = 60
		}
		if width > 0 {
			m.bar.Width = width
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if !m.done {
				m.Cancelled = true
			}
			return m, tea.Quit
		case "q":
			if !m.done {
				m.Detached = true
			}
			return m, tea.Quit
		}
		return m, nil

	case ProgressMsg:
		m.processed = msg.Processed
		m.total = msg.Total
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.snapshot = msg.Snapshot
		m.index = msg.IndexPath
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m RunModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("transmute " + m.runID))
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("source:") + ValueStyle.Render(m.src))
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("dest:") + ValueStyle.Render(m.dst))
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(m.ratio()))
	b.WriteString(fmt.Sprintf("  %d/%d", m.processed, m.total))
	b.WriteString("\n")

	if m.done {
		if m.err != nil {
			b.WriteString("\n" + ErrorStyle.Render("run failed: "+m.err.Error()))
		} else {
			b.WriteString("\n" + SuccessStyle.Render(fmt.Sprintf(
				"done: %d exported, %d dropped, %d skipped",
				m.snapshot.ExportedTotal(), m.snapshot.DroppedTotal(), m.snapshot.Skipped)))
			if m.index != "" {
				b.WriteString("\n" + LabelStyle.Render("index:") + ValueStyle.Render(m.index))
			}
		}
	}

	view := BoxStyle.Render(b.String())
	if !m.done {
		view += "\n" + HelpStyle.Render("q detaches the view, ctrl+c cancels the run")
	}
	return view + "\n"
}

func (m RunModel) ratio() float64 {
	if m.total <= 0 {
		return 0
	}
	r := float64(m.processed) / float64(m.total)
	if r > 1 {
		r = 1
	}
	return r
}
