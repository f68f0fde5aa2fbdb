package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/wheee/internal/workflow"
)

// ExecutableSuffix is appended to a node name to form its executable name.
const ExecutableSuffix = "-agent"

// ExecutablePath returns where the executable for name is expected.
func ExecutablePath(agentsDir, name string) string {
	return filepath.Join(agentsDir, name+ExecutableSuffix)
}

// ProcessRunner runs every node as its own OS process:
// <AgentsDir>/<name>-agent <phase>, started in ProjectDir with stdio
// inherited unless overridden.
type ProcessRunner struct {
	AgentsDir  string
	ProjectDir string
	// Env is appended to the parent environment.
	Env          []string
	Stdout       io.Writer
	Stderr       io.Writer
	MissingDelay time.Duration
	Logger       *zap.Logger
}

func (r *ProcessRunner) Run(ctx context.Context, node workflow.TaskNode, phase string) Result {
	start := time.Now()
	logger := r.logger().With(zap.String("agent", node.Name), zap.String("phase", phase))
	path := ExecutablePath(r.AgentsDir, node.Name)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("agent executable missing, treating as no-op", zap.String("path", path))
		waitMissing(ctx, r.MissingDelay)
		return Result{Name: node.Name, Success: true, Skipped: true, Elapsed: time.Since(start)}
	}
	if err == nil && info.IsDir() {
		err = fmt.Errorf("%s is a directory", path)
	}
	if err != nil {
		return failed(node.Name, start, -1, fmt.Errorf("runner: stat %s: %w", node.Name, err))
	}
	if err := ctx.Err(); err != nil {
		return failed(node.Name, start, -1, err)
	}

	// TODO(runner): add a per-agent timeout; a hung agent currently blocks its level forever.
	cmd := exec.Command(path, phase)
	cmd.Dir = r.ProjectDir
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = writerOr(r.Stdout, os.Stdout)
	cmd.Stderr = writerOr(r.Stderr, os.Stderr)

	logger.Debug("starting agent", zap.String("path", path))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return failed(node.Name, start, exitErr.ExitCode(), fmt.Errorf("runner: %s exited: %w", node.Name, err))
		}
		return failed(node.Name, start, -1, fmt.Errorf("runner: start %s: %w", node.Name, err))
	}
	return Result{Name: node.Name, Success: true, Elapsed: time.Since(start)}
}

func (r *ProcessRunner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func failed(name string, start time.Time, code int, err error) Result {
	return Result{Name: name, ExitCode: code, Elapsed: time.Since(start), Err: err}
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}
