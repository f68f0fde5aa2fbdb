package gatekeeper

import (
	"fmt"
	"strings"

	"github.com/kingrea/wheee/internal/similarity"
)

// Finding records one proposed file whose name overlaps existing components.
type Finding struct {
	Proposed string             `json:"proposed"`
	Name     string             `json:"name"`
	Matches  []similarity.Match `json:"matches"`
}

// Report summarizes a discovery pass.
type Report struct {
	Phase    string    `json:"phase"`
	PlanPath string    `json:"plan_path,omitempty"`
	Proposed []string  `json:"proposed,omitempty"`
	Skipped  []string  `json:"skipped,omitempty"`
	Findings []Finding `json:"findings,omitempty"`
}

// Blocked reports whether any proposed name overlapped an existing component.
func (r Report) Blocked() bool {
	return len(r.Findings) > 0
}

// DuplicateNames lists the proposed base names that were blocked.
func (r Report) DuplicateNames() []string {
	names := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		names = append(names, f.Name)
	}
	return names
}

// Err returns a *BlockError for a blocked report and nil otherwise.
func (r Report) Err() error {
	if !r.Blocked() {
		return nil
	}
	return &BlockError{Phase: r.Phase, Findings: r.Findings}
}

// BlockError aborts a run before scheduling because the plan proposes
// components that already exist.
type BlockError struct {
	Phase    string
	Findings []Finding
}

func (e *BlockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "discovery blocked phase %s:", e.Phase)
	for i, f := range e.Findings {
		if i > 0 {
			b.WriteString(";")
		}
		existing := make([]string, 0, len(f.Matches))
		for _, m := range f.Matches {
			existing = append(existing, m.Path)
		}
		fmt.Fprintf(&b, " %q already exists (%s)", f.Name, strings.Join(existing, ", "))
	}
	return b.String()
}
