package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kingrea/wheee/internal/agent"
	"github.com/kingrea/wheee/internal/report"
	"github.com/kingrea/wheee/internal/runner"
	"github.com/kingrea/wheee/internal/workflow/scheduler"
)

func newLevelsCmd(opts *rootOptions) *cobra.Command {
	var sequential bool
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the execution levels computed from the agent graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			graph, err := a.graph()
			if err != nil {
				return err
			}
			mode := scheduler.ModeParallel
			if sequential {
				mode = scheduler.ModeSequential
			}
			batches, err := scheduler.Batches(graph, mode)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Levels(graph, batches))
			return nil
		},
	}
	cmd.Flags().BoolVar(&sequential, "sequential", false, "show the sequential order instead of levels")
	return cmd
}

func newSimilarCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "similar <name>",
		Short: "List existing components whose names resemble <name>",
		Long: `similar runs the same containment check the discovery gate uses.

A file path is reduced to its base name first, so both of these work:
  orchestrate similar UserCard
  orchestrate similar src/components/profile/usercard-new.tsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			name := filepath.Base(args[0])
			name = name[:len(name)-len(filepath.Ext(name))]
			matches, err := a.index().Query(name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Matches(name, matches))
			return nil
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent entries of the run logbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			tail, total := a.book.Tail(lines)
			fmt.Fprintln(cmd.OutOrStdout(), report.Log(filepath.Base(a.book.Path()), tail, total))
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "number of entries to show")
	return cmd
}

func newAgentsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List graph agents and whether an executable is installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			graph, err := a.graph()
			if err != nil {
				return err
			}
			reg := agent.NewRegistry()
			agent.RegisterBuiltins(reg)
			rows := make([]report.AgentRow, 0, len(graph.Nodes))
			for _, node := range graph.Nodes {
				rows = append(rows, report.AgentRow{
					Name:       node.Name,
					Priority:   node.Priority,
					DependsOn:  node.DependsOn,
					Builtin:    reg.Has(node.Name),
					Executable: isExecutable(runner.ExecutablePath(a.cfg.AgentsDir(), node.Name)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Agents(rows))
			return nil
		},
	}
	cmd.AddCommand(newAgentsInstallCmd(opts))
	return cmd
}

func newAgentsInstallCmd(opts *rootOptions) *cobra.Command {
	var binary string
	var force bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Link <name>-agent to the wheee-agent binary for every graph agent",
		Long: `install creates <agents-dir>/<name>-agent symlinks pointing at wheee-agent,
which runs the built-in agent named after the link.

Existing executables are left alone unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			graph, err := a.graph()
			if err != nil {
				return err
			}
			target, err := agentBinary(binary)
			if err != nil {
				return err
			}
			dir := a.cfg.AgentsDir()
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create agents dir: %w", err)
			}
			for _, name := range graph.Names() {
				link := runner.ExecutablePath(dir, name)
				if _, err := os.Lstat(link); err == nil {
					if !force {
						cmd.Printf("skip %s (exists)\n", link)
						continue
					}
					if err := os.Remove(link); err != nil {
						return fmt.Errorf("replace %s: %w", link, err)
					}
				}
				if err := os.Symlink(target, link); err != nil {
					return fmt.Errorf("link %s: %w", link, err)
				}
				cmd.Printf("linked %s -> %s\n", link, target)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&binary, "binary", "", "wheee-agent binary (defaults to wheee-agent next to this executable)")
	cmd.Flags().BoolVar(&force, "force", false, "replace existing executables")
	return cmd
}

func agentBinary(flagValue string) (string, error) {
	path := flagValue
	if path == "" {
		self, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("find executable: %w", err)
		}
		path = filepath.Join(filepath.Dir(self), "wheee-agent")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if !isExecutable(abs) {
		return "", fmt.Errorf("%s is not an executable file", abs)
	}
	return abs, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
