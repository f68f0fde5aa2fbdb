package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/wheee/internal/orchestrator"
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards orchestrator events to the view.
type Observer struct {
	sender Sender
}

// NewObserver returns an observer sending to s.
func NewObserver(s Sender) *Observer {
	return &Observer{sender: s}
}

var _ orchestrator.Observer = (*Observer)(nil)

func (o *Observer) DiscoveryFinished(_ string, duplicates int) {
	o.sender.Send(discoveryMsg{duplicates: duplicates})
}

func (o *Observer) LevelStarted(level int, agents []string) {
	o.sender.Send(levelStartedMsg{level: level, agents: append([]string(nil), agents...)})
}

func (o *Observer) LevelFinished(level int, elapsed time.Duration) {
	o.sender.Send(levelFinishedMsg{level: level, elapsed: elapsed})
}

func (o *Observer) AgentFinished(agent, outcome string, elapsed time.Duration) {
	o.sender.Send(agentFinishedMsg{agent: agent, outcome: outcome, elapsed: elapsed})
}

// RunFinished is a no-op; the session delivers the final report itself.
func (o *Observer) RunFinished(string, string, string, time.Duration) {}

// Session couples a program with the run it displays.
type Session struct {
	program *tea.Program
}

// NewSession creates the program for model. Options are passed through to
// bubbletea, e.g. tea.WithOutput.
func NewSession(model Model, opts ...tea.ProgramOption) *Session {
	return &Session{program: tea.NewProgram(model, opts...)}
}

// Observer returns the observer to hand to the orchestrator.
func (s *Session) Observer() *Observer {
	return NewObserver(s.program)
}

// Run starts run on its own goroutine and drives the view until it returns.
// The run always finishes, even when the program exits early.
func (s *Session) Run(run func() (*orchestrator.Report, error)) (*orchestrator.Report, error) {
	type outcome struct {
		report *orchestrator.Report
		err    error
	}
	finished := make(chan outcome, 1)
	go func() {
		report, err := run()
		s.program.Send(doneMsg{report: report, err: err})
		finished <- outcome{report: report, err: err}
	}()
	_, progErr := s.program.Run()
	res := <-finished
	if progErr != nil && res.err == nil {
		return res.report, fmt.Errorf("tui: %w", progErr)
	}
	return res.report, res.err
}
