// cmd/wheee-agent/main.go
//
// Runs one built-in agent for a phase. The orchestrator's process runner
// invokes <agents-dir>/<name>-agent <phase>; `orchestrate agents install`
// points those names at this binary, which picks the agent from the link
// name unless --agent is given.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/kingrea/wheee/internal/agent"
	"github.com/kingrea/wheee/internal/document"
	"github.com/kingrea/wheee/internal/logging"
	"github.com/kingrea/wheee/internal/runner"
)

const defaultPhase = "01-foundation"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[0], os.Args[1:], os.Getenv, os.Stderr)
	stop()
	if err != nil {
		die("%v", err)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func run(ctx context.Context, argv0 string, args []string, getenv func(string) string, stderr io.Writer) error {
	flags := flag.NewFlagSet("wheee-agent", flag.ContinueOnError)
	flags.SetOutput(stderr)
	name := flags.String("agent", agentFromArgv0(argv0), "built-in agent to run (defaults to the <name>-agent link name)")
	projectDir := flags.String("project", "", "path to the project directory (defaults to cwd)")
	verbose := flags.Bool("v", false, "log at debug level")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" {
		return fmt.Errorf("--agent is required when not invoked as <name>%s", runner.ExecutableSuffix)
	}
	phase := defaultPhase
	if flags.NArg() > 0 {
		phase = flags.Arg(0)
	}

	project := *projectDir
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		project = cwd
	}
	project, err := filepath.Abs(project)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}

	journal, err := document.JournalFromEnv(document.NewFileStore(project), getenv)
	if err != nil {
		return fmt.Errorf("documents: %w", err)
	}
	level := "info"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Console: stderr})
	if err != nil {
		return err
	}
	defer logger.Close()

	reg := agent.NewRegistry()
	agent.RegisterBuiltins(reg)
	a, err := reg.Resolve(*name, agent.Env{Documents: journal.For(*name), Logger: logger.Logger})
	if err != nil {
		return fmt.Errorf("resolve agent: %w", err)
	}
	if err := a.Execute(ctx, phase); err != nil {
		return err
	}
	return nil
}

// agentFromArgv0 maps ".../frontend-agent" to "frontend". Any other program
// name yields "".
func agentFromArgv0(argv0 string) string {
	base := filepath.Base(argv0)
	if !strings.HasSuffix(base, runner.ExecutableSuffix) || base == "wheee"+runner.ExecutableSuffix {
		return ""
	}
	return strings.TrimSuffix(base, runner.ExecutableSuffix)
}
