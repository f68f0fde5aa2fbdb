package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/wheee/internal/agent"
	"github.com/kingrea/wheee/internal/document"
	"github.com/kingrea/wheee/internal/workflow"
)

// InProcessRunner resolves nodes from the agent registry and runs them on
// the calling goroutine. Every agent gets its own appender from Journal.
type InProcessRunner struct {
	Registry     *agent.Registry
	Journal      *document.Journal
	MissingDelay time.Duration
	Logger       *zap.Logger
}

func (r *InProcessRunner) Run(ctx context.Context, node workflow.TaskNode, phase string) (result Result) {
	start := time.Now()
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("agent", node.Name), zap.String("phase", phase))

	if r.Registry == nil || !r.Registry.Has(node.Name) {
		logger.Warn("agent not registered, treating as no-op")
		waitMissing(ctx, r.MissingDelay)
		return Result{Name: node.Name, Success: true, Skipped: true, Elapsed: time.Since(start)}
	}
	env := agent.Env{Logger: logger}
	if r.Journal != nil {
		env.Documents = r.Journal.For(node.Name)
	}
	a, err := r.Registry.Resolve(node.Name, env)
	if err != nil {
		return failed(node.Name, start, 1, fmt.Errorf("runner: resolve %s: %w", node.Name, err))
	}

	defer func() {
		if p := recover(); p != nil {
			result = failed(node.Name, start, 1, fmt.Errorf("runner: %s panicked: %v", node.Name, p))
		}
	}()
	if err := a.Execute(ctx, phase); err != nil {
		return failed(node.Name, start, 1, err)
	}
	return Result{Name: node.Name, Success: true, Elapsed: time.Since(start)}
}
