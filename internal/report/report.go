// Package report renders run summaries and helper command output for the
// terminal with lipgloss.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/wheee/internal/gatekeeper"
	"github.com/kingrea/wheee/internal/orchestrator"
	"github.com/kingrea/wheee/internal/runner"
	"github.com/kingrea/wheee/internal/similarity"
	"github.com/kingrea/wheee/internal/workflow"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// Run renders the summary printed after orchestrate finishes.
func Run(r *orchestrator.Report, err error) string {
	if r == nil {
		return errStyle.Render(fmt.Sprintf("run failed: %v", err))
	}
	head := titleStyle.Render(fmt.Sprintf("PHASE %s · %s", r.Phase, r.Mode))
	lines := []string{head, mutedStyle.Render("run " + r.RunID)}

	var blockErr *gatekeeper.BlockError
	var nodeErr *orchestrator.NodeFailureError
	switch {
	case errors.As(err, &blockErr):
		lines = append(lines, errStyle.Render("BLOCKED: proposed components already exist"))
		lines = append(lines, findingLines(blockErr.Findings)...)
	case r.State == orchestrator.StateCompleted:
		lines = append(lines, okStyle.Render(fmt.Sprintf("COMPLETED %d agents in %d levels", len(r.Results), r.Executed)))
	default:
		lines = append(lines, errStyle.Render(fmt.Sprintf("FAILED (%s)", r.State)))
	}

	if len(r.Results) > 0 {
		lines = append(lines, "")
		lines = append(lines, resultLines(r)...)
	}
	if r.Merged > 0 {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("%d document entries merged", r.Merged)))
	}
	if errors.As(err, &nodeErr) {
		lines = append(lines, "", errStyle.Render(fmt.Sprintf("level %d stopped at %s (exit %d)", nodeErr.Level, nodeErr.Node, orchestrator.ExitCode(err))))
		if nodeErr.Err != nil {
			lines = append(lines, mutedStyle.Render(nodeErr.Err.Error()))
		}
	} else if err != nil && blockErr == nil {
		lines = append(lines, "", errStyle.Render(err.Error()))
	}
	lines = append(lines, mutedStyle.Render("elapsed "+r.Elapsed.Round(time.Millisecond).String()))
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func findingLines(findings []gatekeeper.Finding) []string {
	var lines []string
	for _, f := range findings {
		lines = append(lines, fmt.Sprintf("  %s  %s", warnStyle.Render(f.Name), mutedStyle.Render(f.Proposed)))
		for _, m := range f.Matches {
			lines = append(lines, fmt.Sprintf("    ↳ %s (%.1f)", m.Path, m.Confidence))
		}
	}
	return lines
}

func resultLines(r *orchestrator.Report) []string {
	byName := make(map[string]runner.Result, len(r.Results))
	for _, res := range r.Results {
		byName[res.Name] = res
	}
	var lines []string
	for i, batch := range r.Batches {
		if i >= r.Executed {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("L%d  %s  not started", i, strings.Join(batch, ", "))))
			continue
		}
		parts := make([]string, 0, len(batch))
		for _, name := range batch {
			parts = append(parts, resultLabel(byName[name]))
		}
		lines = append(lines, fmt.Sprintf("L%d  %s", i, strings.Join(parts, "  ")))
	}
	return lines
}

func resultLabel(res runner.Result) string {
	switch res.Outcome() {
	case "success":
		return okStyle.Render("✓ " + res.Name)
	case "skipped":
		return warnStyle.Render("○ " + res.Name)
	default:
		return errStyle.Render("✗ " + res.Name)
	}
}

// Levels renders the computed schedule of a graph.
func Levels(g workflow.Graph, levels [][]string) string {
	head := titleStyle.Render(fmt.Sprintf("GRAPH %s · %d levels", g.ID, len(levels)))
	lines := []string{head}
	for i, level := range levels {
		parts := make([]string, 0, len(level))
		for _, name := range level {
			node, _ := g.Node(name)
			parts = append(parts, fmt.Sprintf("%s%s", name, mutedStyle.Render(fmt.Sprintf("(p%d)", node.Priority))))
		}
		lines = append(lines, fmt.Sprintf("L%d  %s", i, strings.Join(parts, "  ")))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// Matches renders the result of a similarity query.
func Matches(query string, matches []similarity.Match) string {
	if len(matches) == 0 {
		return okStyle.Render(fmt.Sprintf("no existing component resembles %q", query))
	}
	lines := []string{warnStyle.Render(fmt.Sprintf("%d component(s) resemble %q", len(matches), query))}
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("  %s  %s", m.Name, mutedStyle.Render(fmt.Sprintf("%s (%.1f)", m.Path, m.Confidence))))
	}
	return strings.Join(lines, "\n")
}

// Log renders the tail of the run logbook.
func Log(name string, lines []string, total int) string {
	if len(lines) == 0 {
		return mutedStyle.Render("no runs recorded yet")
	}
	head := titleStyle.Render(fmt.Sprintf("LOG · %s (%d of %d)", name, len(lines), total))
	body := mutedStyle.Render(strings.Join(lines, "\n"))
	return boxStyle.Render(head + "\n" + body)
}

// AgentRow describes one graph node for the agents command.
type AgentRow struct {
	Name       string
	Priority   int
	DependsOn  []string
	Builtin    bool
	Executable bool
}

// Agents renders the agent inventory.
func Agents(rows []AgentRow) string {
	lines := []string{titleStyle.Render("AGENTS")}
	for _, row := range rows {
		deps := "-"
		if len(row.DependsOn) > 0 {
			deps = strings.Join(row.DependsOn, ",")
		}
		status := warnStyle.Render("no executable")
		if row.Executable {
			status = okStyle.Render("executable")
		}
		builtin := ""
		if row.Builtin {
			builtin = mutedStyle.Render(" builtin")
		}
		lines = append(lines, fmt.Sprintf("%-10s p%-2d ← %-10s %s%s", row.Name, row.Priority, deps, status, builtin))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
