// Package runner executes a single graph node and reports how it went. The
// process runner launches one executable per node with the phase as its only
// argument; the in-process runner resolves the node from the agent registry
// and runs it on the calling goroutine.
package runner

import (
	"context"
	"time"

	"github.com/kingrea/wheee/internal/workflow"
)

// DefaultMissingDelay is how long a node without an implementation pretends
// to work before reporting success.
const DefaultMissingDelay = 500 * time.Millisecond

// Result captures the outcome of one node execution.
type Result struct {
	Name     string
	Success  bool
	ExitCode int
	Elapsed  time.Duration
	// Skipped is set when no implementation existed and the node was treated
	// as a successful no-op.
	Skipped bool
	Err     error
}

// Outcome labels the result for logs and metrics.
func (r Result) Outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Success:
		return "success"
	default:
		return "failure"
	}
}

// Runner executes one node for a phase. Failures are reported in the Result,
// never by panicking.
type Runner interface {
	Run(ctx context.Context, node workflow.TaskNode, phase string) Result
}

func waitMissing(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
