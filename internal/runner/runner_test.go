package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kingrea/wheee/internal/agent"
	"github.com/kingrea/wheee/internal/document"
	"github.com/kingrea/wheee/internal/workflow"
)

func writeAgent(t *testing.T, dir, name, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell agents need a POSIX shell")
	}
	path := ExecutablePath(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
}

func node(name string) workflow.TaskNode {
	return workflow.TaskNode{Name: name, Priority: 1}
}

func TestProcessRunnerPassesPhaseAndWorkingDir(t *testing.T) {
	agents := t.TempDir()
	project := t.TempDir()
	writeAgent(t, agents, "blueprint", `echo "phase=$1 env=$WHEEE_DOCUMENT_POLICY" > out.txt; echo done`)

	var stdout bytes.Buffer
	r := &ProcessRunner{AgentsDir: agents, ProjectDir: project, Env: []string{"WHEEE_DOCUMENT_POLICY=merge"}, Stdout: &stdout}
	res := r.Run(context.Background(), node("blueprint"), "01-foundation")

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.False(t, res.Skipped)
	assert.Zero(t, res.ExitCode)
	assert.Equal(t, "success", res.Outcome())
	assert.Equal(t, "done\n", stdout.String())

	out, err := os.ReadFile(filepath.Join(project, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "phase=01-foundation env=merge\n", string(out))
}

func TestProcessRunnerReportsExitStatus(t *testing.T) {
	agents := t.TempDir()
	writeAgent(t, agents, "tester", "echo broken >&2; exit 3")

	var stderr bytes.Buffer
	r := &ProcessRunner{AgentsDir: agents, ProjectDir: t.TempDir(), Stderr: &stderr}
	res := r.Run(context.Background(), node("tester"), "02")

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.ExitCode)
	assert.Error(t, res.Err)
	assert.Equal(t, "failure", res.Outcome())
	assert.Equal(t, "broken\n", stderr.String())
}

func TestProcessRunnerMissingExecutableIsNoop(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := &ProcessRunner{AgentsDir: t.TempDir(), ProjectDir: t.TempDir(), MissingDelay: 20 * time.Millisecond, Logger: zap.New(core)}

	res := r.Run(context.Background(), node("ghost"), "01")

	assert.True(t, res.Success)
	assert.True(t, res.Skipped)
	assert.NoError(t, res.Err)
	assert.GreaterOrEqual(t, res.Elapsed, 20*time.Millisecond)
	assert.Equal(t, "skipped", res.Outcome())
	assert.Equal(t, 1, logs.FilterMessage("agent executable missing, treating as no-op").Len())
}

func TestProcessRunnerFailsOnUnrunnableExecutable(t *testing.T) {
	agents := t.TempDir()
	require.NoError(t, os.Mkdir(ExecutablePath(agents, "dir"), 0o755))
	require.NoError(t, os.WriteFile(ExecutablePath(agents, "plain"), []byte("not a program"), 0o644))

	r := &ProcessRunner{AgentsDir: agents, ProjectDir: t.TempDir()}
	for _, name := range []string{"dir", "plain"} {
		res := r.Run(context.Background(), node(name), "01")
		assert.False(t, res.Success, name)
		assert.Equal(t, -1, res.ExitCode, name)
		assert.Error(t, res.Err, name)
	}
}

type panicAgent struct{}

func (panicAgent) Name() string                          { return "boom" }
func (panicAgent) Execute(context.Context, string) error { panic("kaboom") }

func TestInProcessRunnerExecutesRegisteredAgent(t *testing.T) {
	files := document.NewFileStore(t.TempDir())
	j, err := document.NewJournal(files, document.PolicyRace, "")
	require.NoError(t, err)
	reg := agent.NewRegistry()
	agent.RegisterBuiltins(reg)

	r := &InProcessRunner{Registry: reg, Journal: j}
	res := r.Run(context.Background(), node("link"), "04")
	require.NoError(t, res.Err)
	assert.True(t, res.Success)

	content, ok, err := files.Read(document.Findings.Path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(content, "- Link: API/credentials verified (or documented as N/A).\n"))
}

func TestInProcessRunnerFailures(t *testing.T) {
	reg := agent.NewRegistry()
	agent.RegisterBuiltins(reg)
	reg.MustRegister("boom", func(agent.Env) (agent.Agent, error) { return panicAgent{}, nil })

	r := &InProcessRunner{Registry: reg}

	res := r.Run(context.Background(), node("boom"), "01")
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.ExitCode)
	assert.ErrorContains(t, res.Err, "kaboom")

	// Built-ins refuse to run without a journal.
	res = r.Run(context.Background(), node("docs"), "01")
	assert.False(t, res.Success)
	assert.Error(t, res.Err)

	res = r.Run(context.Background(), node("unknown"), "01")
	assert.True(t, res.Success)
	assert.True(t, res.Skipped)
}
