// Package orchestrator runs one phase: the duplicate gate first, then the
// agent graph level by level. A level is launched all at once and joined
// before the next one starts; the join is the only point where the
// controller waits. There is no cancellation of running agents.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/wheee/internal/gatekeeper"
	"github.com/kingrea/wheee/internal/logbook"
	"github.com/kingrea/wheee/internal/runner"
	"github.com/kingrea/wheee/internal/workflow"
	"github.com/kingrea/wheee/internal/workflow/scheduler"
)

// State is the orchestrator lifecycle position.
type State string

const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateBlocked     State = "blocked"
	StateScheduling  State = "scheduling"
	StateExecuting   State = "executing"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Discoverer is the pre-execution duplicate gate.
type Discoverer interface {
	Discover(ctx context.Context, phase string) (gatekeeper.Report, error)
}

// Merger applies document entries spooled by the agents of a level.
type Merger interface {
	Merge() (int, error)
}

// Observer receives run events, typically the metrics recorder. Calls come
// from the goroutine running Run, never from agent goroutines.
type Observer interface {
	DiscoveryFinished(phase string, duplicates int)
	LevelStarted(level int, agents []string)
	LevelFinished(level int, elapsed time.Duration)
	AgentFinished(agent, outcome string, elapsed time.Duration)
	RunFinished(phase, mode, state string, elapsed time.Duration)
}

// Config wires an Orchestrator.
type Config struct {
	Graph workflow.Graph
	// Discoverer may be nil, in which case discovery always passes.
	Discoverer Discoverer
	Runner     runner.Runner
	// Documents is merged after every level. Optional.
	Documents Merger
	Observer  Observer
	Logbook   *logbook.Logbook
	Logger    *zap.Logger
	// MaxParallel caps concurrently running members of one level; 0 means
	// the whole level at once.
	MaxParallel int
	// RunID tags logs, the logbook and the spool directory. Generated when
	// empty.
	RunID string
}

// Orchestrator drives a single run. It is not safe for concurrent Run calls.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	state State
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// New validates cfg and returns an idle orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("orchestrator: runner is required")
	}
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("orchestrator: max parallel must be >= 0")
	}
	if cfg.RunID == "" {
		cfg.RunID = NewRunID()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logbook = cfg.Logbook.WithRun(cfg.RunID)
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.Named("orchestrator").With(zap.String("run_id", cfg.RunID)),
		state:  StateIdle,
	}, nil
}

// RunID returns the identifier of this orchestrator's run.
func (o *Orchestrator) RunID() string {
	return o.cfg.RunID
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) transition(report *Report, next State) {
	o.mu.Lock()
	prev := o.state
	o.state = next
	o.mu.Unlock()
	report.State = next
	o.logger.Debug("state changed", zap.String("from", string(prev)), zap.String("to", string(next)))
}

// Run executes phase in mode. The returned report is never nil; the error is
// a *gatekeeper.BlockError when discovery blocked, a *workflow.GraphError
// when the graph cannot be scheduled, or a *NodeFailureError when an agent
// failed.
func (o *Orchestrator) Run(ctx context.Context, phase string, mode scheduler.Mode) (report *Report, err error) {
	start := time.Now()
	report = &Report{RunID: o.cfg.RunID, Phase: phase, Mode: mode, State: StateIdle}
	book := o.cfg.Logbook
	logger := o.logger.With(zap.String("phase", phase), zap.String("mode", string(mode)))

	defer func() {
		report.Elapsed = time.Since(start)
		if o.cfg.Observer != nil {
			o.cfg.Observer.RunFinished(phase, string(mode), string(report.State), report.Elapsed)
		}
		switch report.State {
		case StateCompleted:
			logger.Info("run completed", zap.Int("agents", len(report.Results)), zap.Duration("elapsed", report.Elapsed))
			book.Info("run completed phase=%s agents=%d elapsed=%s", phase, len(report.Results), report.Elapsed.Round(time.Millisecond))
		default:
			logger.Error("run ended", zap.String("state", string(report.State)), zap.Error(err))
			book.Error("run %s phase=%s: %v", report.State, phase, err)
		}
	}()

	if strings.TrimSpace(phase) == "" {
		o.transition(report, StateFailed)
		return report, fmt.Errorf("orchestrator: phase is required")
	}
	logger.Info("run started")
	book.Info("run started phase=%s mode=%s", phase, mode)

	o.transition(report, StateDiscovering)
	if o.cfg.Discoverer != nil {
		discovery, err := o.cfg.Discoverer.Discover(ctx, phase)
		if err != nil {
			o.transition(report, StateFailed)
			return report, fmt.Errorf("orchestrator: discovery: %w", err)
		}
		report.Discovery = discovery
		if o.cfg.Observer != nil {
			o.cfg.Observer.DiscoveryFinished(phase, len(discovery.Findings))
		}
		if discovery.Blocked() {
			o.transition(report, StateBlocked)
			book.Error("discovery blocked phase=%s duplicates=%s", phase, strings.Join(discovery.DuplicateNames(), ","))
			return report, discovery.Err()
		}
		if discovery.PlanPath == "" {
			book.Warn("no plan found for phase=%s, discovery skipped", phase)
		}
	}

	o.transition(report, StateScheduling)
	batches, err := scheduler.Batches(o.cfg.Graph, mode)
	if err != nil {
		o.transition(report, StateFailed)
		return report, err
	}
	report.Batches = batches
	logger.Info("schedule ready", zap.Int("levels", len(batches)), zap.Any("batches", batches))

	o.transition(report, StateExecuting)
	for level, batch := range batches {
		if err := ctx.Err(); err != nil {
			o.transition(report, StateFailed)
			return report, err
		}
		report.Executed++
		results := o.runLevel(ctx, logger, level, batch, phase)
		report.Results = append(report.Results, results...)

		if o.cfg.Documents != nil {
			merged, err := o.cfg.Documents.Merge()
			report.Merged += merged
			if err != nil {
				o.transition(report, StateFailed)
				return report, fmt.Errorf("orchestrator: merge documents after level %d: %w", level, err)
			}
		}
		for _, res := range results {
			if res.Success {
				continue
			}
			o.transition(report, StateFailed)
			return report, &NodeFailureError{Phase: phase, Level: level, Node: res.Name, ExitCode: res.ExitCode, Err: res.Err}
		}
	}
	o.transition(report, StateCompleted)
	return report, nil
}

// runLevel launches every member of batch and waits for all of them. Each
// goroutine returns nil so a failing sibling never cancels the others.
func (o *Orchestrator) runLevel(ctx context.Context, logger *zap.Logger, level int, batch []string, phase string) []runner.Result {
	start := time.Now()
	logger.Info("level started", zap.Int("level", level), zap.Strings("agents", batch))
	o.cfg.Logbook.Info("level %d started: %s", level, strings.Join(batch, ", "))
	if o.cfg.Observer != nil {
		o.cfg.Observer.LevelStarted(level, batch)
	}

	results := make([]runner.Result, len(batch))
	var g errgroup.Group
	if o.cfg.MaxParallel > 0 {
		g.SetLimit(o.cfg.MaxParallel)
	}
	for i, name := range batch {
		i := i
		node, _ := o.cfg.Graph.Node(name)
		g.Go(func() error {
			results[i] = o.cfg.Runner.Run(ctx, node, phase)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		o.recordResult(logger, level, res)
	}
	elapsed := time.Since(start)
	if o.cfg.Observer != nil {
		o.cfg.Observer.LevelFinished(level, elapsed)
	}
	logger.Info("level finished", zap.Int("level", level), zap.Duration("elapsed", elapsed))
	return results
}

func (o *Orchestrator) recordResult(logger *zap.Logger, level int, res runner.Result) {
	fields := []zap.Field{
		zap.Int("level", level),
		zap.String("agent", res.Name),
		zap.String("outcome", res.Outcome()),
		zap.Duration("elapsed", res.Elapsed),
	}
	if o.cfg.Observer != nil {
		o.cfg.Observer.AgentFinished(res.Name, res.Outcome(), res.Elapsed)
	}
	switch {
	case !res.Success:
		logger.Error("agent failed", append(fields, zap.Int("exit_code", res.ExitCode), zap.Error(res.Err))...)
		o.cfg.Logbook.Error("agent %s failed (exit %d): %v", res.Name, res.ExitCode, res.Err)
	case res.Skipped:
		logger.Warn("agent skipped", fields...)
		o.cfg.Logbook.Warn("agent %s has no implementation, skipped", res.Name)
	default:
		logger.Info("agent finished", fields...)
		o.cfg.Logbook.Info("agent %s finished in %s", res.Name, res.Elapsed.Round(time.Millisecond))
	}
}
