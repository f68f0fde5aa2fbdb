package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type project struct {
	dir string
}

func newProject(t *testing.T, configYAML string) project {
	t.Helper()
	p := project{dir: t.TempDir()}
	if configYAML != "" {
		p.write(t, ".wheee/config.yaml", configYAML)
	}
	return p
}

func (p project) write(t *testing.T, rel, body string) string {
	t.Helper()
	path := filepath.Join(p.dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func (p project) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(p.dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (p project) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	args = append([]string{"--project", p.dir}, args...)
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell agents need a POSIX shell")
	}
}

const inProcessConfig = `
execution:
  isolation: inprocess
  missing_agent_delay: 1ms
documents:
  policy: merge
logging:
  level: warn
`

func TestPhaseRunsBuiltinAgentsInProcess(t *testing.T) {
	p := newProject(t, inProcessConfig)

	code, stdout, _ := p.run("phase", "02-core")
	require.Equal(t, 0, code, stdout)
	assert.Contains(t, stdout, "COMPLETED 11 agents in 7 levels")
	assert.Contains(t, stdout, "11 document entries merged")

	progress := p.read(t, "project/progress.md")
	assert.True(t, strings.HasPrefix(progress, "# Progress\n"))
	assert.Equal(t, 8, strings.Count(progress, "## Phase: 02-core"))
	assert.Contains(t, p.read(t, "project/gemini.md"), "Behavioral Rules established.")

	spool, err := os.ReadDir(filepath.Join(p.dir, ".wheee", "spool"))
	require.NoError(t, err)
	assert.Empty(t, spool, "per-run spool dir is removed after a clean merge")
}

func TestPhaseBlockedByExistingComponent(t *testing.T) {
	p := newProject(t, inProcessConfig)
	p.write(t, "src/components/cards/UserCard.tsx", "export {}\n")
	p.write(t, ".planning/phases/04-profile/04-01-PLAN.md", "- Create `src/components/profile/usercard-new.tsx`\n")

	code, stdout, _ := p.run("04-profile")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "BLOCKED")
	assert.Contains(t, stdout, "src/components/cards/UserCard.tsx")
	_, err := os.Stat(filepath.Join(p.dir, "project"))
	assert.True(t, os.IsNotExist(err), "no agent may run when discovery blocks")
}

func TestPhaseFailingAgentExitStatus(t *testing.T) {
	requireShell(t)
	p := newProject(t, "execution:\n  missing_agent_delay: 1ms\nlogging:\n  level: error\n")
	p.write(t, ".wheee/agents/blueprint-agent", "#!/bin/sh\necho \"blueprint $1\"\n")
	p.write(t, ".wheee/agents/architect-agent", "#!/bin/sh\nexit 3\n")

	code, stdout, _ := p.run("05-api")
	assert.Equal(t, 3, code)
	assert.Contains(t, stdout, "blueprint 05-api")
	assert.Contains(t, stdout, "level 1 stopped at architect (exit 3)")
	assert.Contains(t, stdout, "not started")
}

func TestRootDefaultsToFoundationPhase(t *testing.T) {
	p := newProject(t, "execution:\n  missing_agent_delay: 1ms\nlogging:\n  level: error\n")

	code, stdout, _ := p.run()
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "PHASE 01-foundation · parallel")
	assert.Contains(t, stdout, "○ blueprint")
}

func TestPhaseRejectsUnknownMode(t *testing.T) {
	p := newProject(t, "")
	code, _, stderr := p.run("01", "turbo")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
	assert.Contains(t, stderr, "turbo")
}

func TestLevelsCommand(t *testing.T) {
	p := newProject(t, "")
	code, stdout, _ := p.run("levels")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "GRAPH blast · 7 levels")
	assert.Contains(t, stdout, "L1  link")

	p.write(t, "graph.yaml", "id: loop\nnodes:\n  - {name: x, priority: 1, depends_on: [y]}\n  - {name: y, priority: 1, depends_on: [x]}\n")
	p.write(t, ".wheee/config.yaml", "paths:\n  graph: graph.yaml\n")
	code, _, stderr := p.run("levels")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "cycle")
}

func TestSimilarCommand(t *testing.T) {
	p := newProject(t, "")
	p.write(t, "src/components/UserCard.tsx", "")

	code, stdout, _ := p.run("similar", "src/components/x/usercard-new.tsx")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, `resemble "usercard-new"`)
	assert.Contains(t, stdout, "src/components/UserCard.tsx")

	_, stdout, _ = p.run("similar", "Sidebar")
	assert.Contains(t, stdout, "no existing component")
}

func TestHistoryShowsPreviousRun(t *testing.T) {
	p := newProject(t, inProcessConfig)
	code, _, _ := p.run("history")
	require.Equal(t, 0, code)

	_, _, _ = p.run("03-ui")
	code, stdout, _ := p.run("history", "-n", "3")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "LOG · runs.log (3 of")
	assert.Contains(t, stdout, "run completed phase=03-ui")
}

func TestAgentsInstallLinksEveryNode(t *testing.T) {
	requireShell(t)
	p := newProject(t, "")
	binary := p.write(t, "bin/wheee-agent", "#!/bin/sh\nexit 0\n")
	p.write(t, ".wheee/agents/docs-agent", "#!/bin/sh\nexit 0\n")

	code, stdout, stderr := p.run("agents", "install", "--binary", binary)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "skip")
	assert.Equal(t, 10, strings.Count(stdout, "linked "))

	target, err := os.Readlink(filepath.Join(p.dir, ".wheee", "agents", "tester-agent"))
	require.NoError(t, err)
	assert.Equal(t, binary, target)

	code, stdout, _ = p.run("agents")
	require.Equal(t, 0, code)
	assert.NotContains(t, stdout, "no executable")
	assert.Contains(t, stdout, "builtin")

	code, _, stderr = p.run("agents", "install", "--binary", filepath.Join(p.dir, "missing"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not an executable")
}
