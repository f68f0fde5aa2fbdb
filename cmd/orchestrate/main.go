// cmd/orchestrate/main.go
//
// Entry point for the phase orchestrator.
//
// Flow:
// 1. Load .wheee/config.yaml (created on first use) and WHEEE_* overrides
// 2. Run the duplicate-component gate for the phase
// 3. Execute the agent graph level by level and print a summary
//
// The process exit status is 0 on success, the failing agent's status when
// one failed with a nonzero code, and 1 for everything else.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kingrea/wheee/internal/orchestrator"
)

// DefaultPhase is run when no phase argument is given.
const DefaultPhase = "01-foundation"

var version = "dev"

type rootOptions struct {
	projectDir string
	configPath string
	watch      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return orchestrator.ExitCode(err)
	}
	return 0
}

// reportedError marks an error already shown in the run summary.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "orchestrate [phase] [mode]",
		Short: "Run the agent graph for a phase behind the duplicate-component gate",
		Long: `orchestrate runs every agent of the graph for one phase, in dependency order.

Before anything runs, the phase plan is scanned for proposed component files.
If any proposed name resembles an existing component the whole run is blocked.

Examples:
  # Run phase 03 with every level in parallel
  orchestrate 03-dashboard

  # Same, one agent at a time in priority order
  orchestrate phase 03-dashboard sequential`,
		Version:       version,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			phase, mode := DefaultPhase, ""
			if len(args) > 0 {
				phase = args[0]
			}
			if len(args) > 1 {
				mode = args[1]
			}
			return runPhase(cmd, opts, phase, mode)
		},
	}
	root.PersistentFlags().StringVar(&opts.projectDir, "project", "", "project directory (defaults to cwd)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (defaults to <project>/.wheee/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.watch, "watch", "w", false, "show a live level view while the phase runs")

	root.AddCommand(
		newPhaseCmd(opts),
		newLevelsCmd(opts),
		newSimilarCmd(opts),
		newHistoryCmd(opts),
		newAgentsCmd(opts),
	)
	return root
}

func newPhaseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "phase <phase> [mode]",
		Short: "Run the agent graph for a phase (mode: parallel or sequential)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := ""
			if len(args) > 1 {
				mode = args[1]
			}
			return runPhase(cmd, opts, args[0], mode)
		},
	}
}
