// internal/tui/model.go
//
// Live view of one orchestrated phase. It uses bubbletea, which follows The
// Elm Architecture:
//
// 1. Model: the level grid and the state of every agent
// 2. Update: observer events and key presses change the grid
// 3. View: the grid rendered to a string
//
// Events arrive from the orchestrator goroutine through Observer; the view
// never touches the orchestrator directly.

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/wheee/internal/orchestrator"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

// agentState is where one agent is in the run.
type agentState int

const (
	agentPending agentState = iota
	agentRunning
	agentSucceeded
	agentFailed
	agentSkipped
)

type discoveryMsg struct{ duplicates int }

type levelStartedMsg struct {
	level  int
	agents []string
}

type levelFinishedMsg struct {
	level   int
	elapsed time.Duration
}

type agentFinishedMsg struct {
	agent   string
	outcome string
	elapsed time.Duration
}

// doneMsg carries the orchestrator's return values and ends the program.
type doneMsg struct {
	report *orchestrator.Report
	err    error
}

// Model is the bubbletea model for a watched run.
type Model struct {
	phase   string
	mode    string
	batches [][]string

	states   map[string]agentState
	elapsed  map[string]time.Duration
	level    int
	blocked  int
	spinner  spinner.Model
	cancel   context.CancelFunc
	stopping bool
	done     bool
	err      error
	started  time.Time
}

// NewModel builds the view for phase with the precomputed schedule. cancel is
// invoked when the user asks to stop; the orchestrator honours it between
// levels.
func NewModel(phase, mode string, batches [][]string, cancel context.CancelFunc) Model {
	states := make(map[string]agentState)
	for _, batch := range batches {
		for _, name := range batch {
			states[name] = agentPending
		}
	}
	return Model{
		phase:   phase,
		mode:    mode,
		batches: batches,
		states:  states,
		elapsed: make(map[string]time.Duration),
		level:   -1,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(runningStyle)),
		cancel:  cancel,
		started: time.Now(),
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update applies one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.stopping && m.cancel != nil {
				m.cancel()
			}
			m.stopping = true
		}
		return m, nil
	case discoveryMsg:
		m.blocked = msg.duplicates
		return m, nil
	case levelStartedMsg:
		m.level = msg.level
		for _, name := range msg.agents {
			m.states[name] = agentRunning
		}
		return m, nil
	case agentFinishedMsg:
		m.states[msg.agent] = outcomeState(msg.outcome)
		m.elapsed[msg.agent] = msg.elapsed
		return m, nil
	case levelFinishedMsg:
		return m, nil
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func outcomeState(outcome string) agentState {
	switch outcome {
	case "success":
		return agentSucceeded
	case "skipped":
		return agentSkipped
	default:
		return agentFailed
	}
}

// View renders the level grid.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("PHASE %s · %s", m.phase, m.mode)))
	b.WriteString("\n")
	switch {
	case m.blocked > 0:
		b.WriteString(failedStyle.Render(fmt.Sprintf("discovery blocked: %d proposed name(s) already exist", m.blocked)))
		b.WriteString("\n")
	case m.level < 0 && !m.done:
		b.WriteString(m.spinner.View() + " discovering")
		b.WriteString("\n")
	}
	for i, batch := range m.batches {
		labels := make([]string, 0, len(batch))
		for _, name := range batch {
			labels = append(labels, m.label(name))
		}
		fmt.Fprintf(&b, "L%d  %s\n", i, strings.Join(labels, "  "))
	}
	if m.done {
		return b.String()
	}
	help := "q stop after this level"
	if m.stopping {
		help = "stopping after the current level"
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf("%s · %s", time.Since(m.started).Round(time.Second), help)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) label(name string) string {
	switch m.states[name] {
	case agentRunning:
		return m.spinner.View() + " " + runningStyle.Render(name)
	case agentSucceeded:
		return readyStyle.Render("✓ " + name)
	case agentFailed:
		return failedStyle.Render("✗ " + name)
	case agentSkipped:
		return skippedStyle.Render("○ " + name)
	default:
		return pendingStyle.Render("· " + name)
	}
}
