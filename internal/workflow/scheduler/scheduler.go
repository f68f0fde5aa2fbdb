package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/wheee/internal/workflow"
)

// Mode selects how the orchestrator walks the graph.
type Mode string

const (
	ModeParallel   Mode = "parallel"
	ModeSequential Mode = "sequential"
)

// ParseMode maps user input onto a Mode. Empty input selects parallel.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeParallel:
		return ModeParallel, nil
	case ModeSequential:
		return ModeSequential, nil
	default:
		return "", fmt.Errorf("scheduler: unknown mode %q (want parallel or sequential)", value)
	}
}

// Levels layers the graph Kahn-style: each round collects every unplaced node
// whose dependencies are all placed, and that set becomes the next level. A
// round that places nothing while nodes remain means a cycle; the graph is
// rejected and no levels are returned.
//
// Members of a level are ordered by priority, then declaration order.
func Levels(g workflow.Graph) ([][]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	order := declarationIndex(g)
	placed := make(map[string]struct{}, len(g.Nodes))
	var levels [][]string
	for len(placed) < len(g.Nodes) {
		var level []workflow.TaskNode
		for _, node := range g.Nodes {
			if _, done := placed[node.Name]; done {
				continue
			}
			if dependenciesPlaced(node, placed) {
				level = append(level, node)
			}
		}
		if len(level) == 0 {
			return nil, workflow.CycleError(unplaced(g, placed))
		}
		sortByPriority(level, order)
		names := make([]string, 0, len(level))
		for _, node := range level {
			placed[node.Name] = struct{}{}
			names = append(names, node.Name)
		}
		levels = append(levels, names)
	}
	return levels, nil
}

// Sequence orders every node by ascending priority (declaration order breaks
// ties). Levels are bypassed, but the graph is still checked so sequential
// runs fail at startup on the same graphs parallel runs do.
func Sequence(g workflow.Graph) ([]string, error) {
	if _, err := Levels(g); err != nil {
		return nil, err
	}
	nodes := make([]workflow.TaskNode, len(g.Nodes))
	copy(nodes, g.Nodes)
	sortByPriority(nodes, declarationIndex(g))
	names := make([]string, 0, len(nodes))
	for _, node := range nodes {
		names = append(names, node.Name)
	}
	return names, nil
}

// Batches returns the execution batches for mode: the levels in parallel mode
// and single-node batches in sequential mode.
func Batches(g workflow.Graph, mode Mode) ([][]string, error) {
	switch mode {
	case ModeParallel:
		return Levels(g)
	case ModeSequential:
		seq, err := Sequence(g)
		if err != nil {
			return nil, err
		}
		batches := make([][]string, 0, len(seq))
		for _, name := range seq {
			batches = append(batches, []string{name})
		}
		return batches, nil
	default:
		return nil, fmt.Errorf("scheduler: unknown mode %q", mode)
	}
}

func dependenciesPlaced(node workflow.TaskNode, placed map[string]struct{}) bool {
	for _, dep := range node.DependsOn {
		if _, ok := placed[dep]; !ok {
			return false
		}
	}
	return true
}

func unplaced(g workflow.Graph, placed map[string]struct{}) []string {
	var out []string
	for _, node := range g.Nodes {
		if _, ok := placed[node.Name]; !ok {
			out = append(out, node.Name)
		}
	}
	return out
}

func declarationIndex(g workflow.Graph) map[string]int {
	index := make(map[string]int, len(g.Nodes))
	for i, node := range g.Nodes {
		index[node.Name] = i
	}
	return index
}

func sortByPriority(nodes []workflow.TaskNode, order map[string]int) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Priority != nodes[j].Priority {
			return nodes[i].Priority < nodes[j].Priority
		}
		return order[nodes[i].Name] < order[nodes[j].Name]
	})
}
