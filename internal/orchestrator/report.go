package orchestrator

import (
	"time"

	"github.com/kingrea/wheee/internal/gatekeeper"
	"github.com/kingrea/wheee/internal/runner"
	"github.com/kingrea/wheee/internal/workflow/scheduler"
)

// Report describes one run, whatever state it ended in.
type Report struct {
	RunID     string
	Phase     string
	Mode      scheduler.Mode
	State     State
	Discovery gatekeeper.Report
	// Batches holds the planned levels (one node per batch in sequential
	// mode); Executed counts how many of them were started.
	Batches  [][]string
	Executed int
	// Results holds one entry per started agent in level order.
	Results []runner.Result
	// Merged counts spooled document entries applied under the merge policy.
	Merged  int
	Elapsed time.Duration
}

// Failures returns the results of agents that did not succeed.
func (r *Report) Failures() []runner.Result {
	var out []runner.Result
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res)
		}
	}
	return out
}

// Skipped returns the names of agents that had no implementation.
func (r *Report) Skipped() []string {
	var out []string
	for _, res := range r.Results {
		if res.Skipped {
			out = append(out, res.Name)
		}
	}
	return out
}
