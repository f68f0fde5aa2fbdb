package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/wheee/internal/agent"
	"github.com/kingrea/wheee/internal/config"
	"github.com/kingrea/wheee/internal/document"
	"github.com/kingrea/wheee/internal/metrics"
	"github.com/kingrea/wheee/internal/orchestrator"
	"github.com/kingrea/wheee/internal/report"
	"github.com/kingrea/wheee/internal/runner"
	"github.com/kingrea/wheee/internal/tui"
	"github.com/kingrea/wheee/internal/workflow/scheduler"
)

func runPhase(cmd *cobra.Command, opts *rootOptions, phase, modeArg string) error {
	console := cmd.ErrOrStderr()
	if opts.watch {
		console = io.Discard
	}
	a, err := loadApp(opts, console)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	mode := cfg.Mode()
	if modeArg != "" {
		if mode, err = scheduler.ParseMode(modeArg); err != nil {
			return err
		}
	}
	graph, err := a.graph()
	if err != nil {
		return err
	}
	gk, err := a.gatekeeper()
	if err != nil {
		return err
	}

	runID := orchestrator.NewRunID()
	journal, err := document.NewJournal(document.NewFileStore(cfg.ProjectDir), cfg.Policy(), cfg.SpoolDir(runID))
	if err != nil {
		return err
	}
	defer func() {
		if err := journal.Close(); err != nil {
			a.logger.Warn("spool cleanup failed", zap.Error(err))
		}
	}()

	var run runner.Runner
	switch cfg.Execution.Isolation {
	case config.IsolationInProcess:
		reg := agent.NewRegistry()
		agent.RegisterBuiltins(reg)
		run = &runner.InProcessRunner{
			Registry:     reg,
			Journal:      journal,
			MissingDelay: cfg.Execution.MissingAgentDelay,
			Logger:       a.logger.Logger,
		}
	default:
		stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
		if opts.watch {
			out, err := agentOutput(cfg, runID)
			if err != nil {
				return err
			}
			defer out.Close()
			stdout, stderr = out, out
		}
		run = &runner.ProcessRunner{
			AgentsDir:    cfg.AgentsDir(),
			ProjectDir:   cfg.ProjectDir,
			Env:          journal.Environ(),
			Stdout:       stdout,
			Stderr:       stderr,
			MissingDelay: cfg.Execution.MissingAgentDelay,
			Logger:       a.logger.Logger,
		}
	}

	recorder := metrics.NewRecorder(a.logger.Logger)
	var observer orchestrator.Observer = recorder
	ctx := cmd.Context()
	var session *tui.Session
	if opts.watch {
		// A graph that cannot be scheduled is reported by the run itself.
		batches, _ := scheduler.Batches(graph, mode)
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		session = tui.NewSession(tui.NewModel(phase, string(mode), batches, cancel), tea.WithOutput(cmd.OutOrStdout()))
		observer = orchestrator.Observers(recorder, session.Observer())
	}
	orch, err := orchestrator.New(orchestrator.Config{
		Graph:       graph,
		Discoverer:  gk,
		Runner:      run,
		Documents:   journal,
		Observer:    observer,
		Logbook:     a.book,
		Logger:      a.logger.Logger,
		MaxParallel: cfg.Execution.MaxParallel,
		RunID:       runID,
	})
	if err != nil {
		return err
	}

	var result *orchestrator.Report
	var runErr error
	if session != nil {
		result, runErr = session.Run(func() (*orchestrator.Report, error) {
			return orch.Run(ctx, phase, mode)
		})
	} else {
		result, runErr = orch.Run(ctx, phase, mode)
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Run(result, runErr))
	if err := recorder.WriteTextfile(cfg.MetricsTextfile()); err != nil {
		a.logger.Warn("metrics export failed", zap.Error(err))
	}
	if runErr != nil {
		return &reportedError{err: runErr}
	}
	return nil
}

// agentOutput opens the file agent stdio goes to while the live view owns
// the terminal.
func agentOutput(cfg *config.Config, runID string) (*os.File, error) {
	path := filepath.Join(cfg.LogsDir(), "agents-"+runID+".out")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open agent output: %w", err)
	}
	return f, nil
}
