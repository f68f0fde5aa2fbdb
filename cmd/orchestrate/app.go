package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kingrea/wheee/internal/config"
	"github.com/kingrea/wheee/internal/gatekeeper"
	"github.com/kingrea/wheee/internal/logbook"
	"github.com/kingrea/wheee/internal/logging"
	"github.com/kingrea/wheee/internal/similarity"
	"github.com/kingrea/wheee/internal/workflow"
)

// app holds what every subcommand needs from the project directory.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	book   *logbook.Logbook
}

func loadApp(opts *rootOptions, console io.Writer) (*app, error) {
	project := opts.projectDir
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		project = cwd
	}
	project, err := filepath.Abs(project)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	if err := config.InitProjectDir(project); err != nil {
		return nil, fmt.Errorf("init %s: %w", config.WheeeDir, err)
	}
	cfg, err := config.Load(project, opts.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		File:    cfg.LogFile(),
		Console: console,
	})
	if err != nil {
		return nil, err
	}
	book, err := logbook.New(cfg.LogbookPath())
	if err != nil {
		logger.Close()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, book: book}, nil
}

func (a *app) Close() error {
	return a.logger.Close()
}

func (a *app) graph() (workflow.Graph, error) {
	return workflow.LoadGraph(a.cfg.GraphPath())
}

func (a *app) index() *similarity.Index {
	idx := similarity.New(a.cfg.ComponentsDir())
	idx.Base = a.cfg.ProjectDir
	idx.Extensions = a.cfg.Discovery.Extensions
	if len(a.cfg.Discovery.Exclude) > 0 {
		idx.Exclude = a.cfg.Discovery.Exclude
	}
	return idx
}

func (a *app) gatekeeper() (*gatekeeper.Gatekeeper, error) {
	return gatekeeper.New(gatekeeper.Options{
		PlanningDir:   a.cfg.PlanningDir(),
		ComponentRoot: a.cfg.Paths.Components,
		PlanMarker:    a.cfg.Discovery.PlanMarker,
		Extensions:    a.cfg.Discovery.Extensions,
		Index:         a.index(),
		Logger:        a.logger.Logger,
	})
}
