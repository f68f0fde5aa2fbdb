package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// TaskNode is one named unit of work in the orchestration graph. Priority
// orders nodes in sequential mode; DependsOn lists the nodes that must finish
// before this one may start.
type TaskNode struct {
	Name      string   `json:"name" yaml:"name"`
	Priority  int      `json:"priority" yaml:"priority"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Clone returns a deep copy of the node.
func (n TaskNode) Clone() TaskNode {
	n.DependsOn = cloneStringSlice(n.DependsOn)
	return n
}

// Graph declares the static set of task nodes for a run. A Graph is built once
// (from the defaults or a YAML file) and handed to the scheduler and
// orchestrator at construction; nothing mutates it afterwards.
type Graph struct {
	ID          string     `json:"id,omitempty" yaml:"id,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []TaskNode `json:"nodes" yaml:"nodes"`
}

// Clone returns a deep copy of the graph.
func (g Graph) Clone() Graph {
	clone := Graph{ID: g.ID, Description: g.Description}
	if len(g.Nodes) > 0 {
		clone.Nodes = make([]TaskNode, len(g.Nodes))
		for i, node := range g.Nodes {
			clone.Nodes[i] = node.Clone()
		}
	}
	return clone
}

// Validate ensures every node is well-formed and every dependency names a
// declared node. Cycles are detected by the scheduler while layering.
func (g Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return &GraphError{Kind: ErrInvalidGraph, Msg: "at least one node is required"}
	}
	seen := make(map[string]struct{}, len(g.Nodes))
	for idx, node := range g.Nodes {
		if strings.TrimSpace(node.Name) == "" {
			return invalidf("", "node[%d] has no name", idx)
		}
		if _, exists := seen[node.Name]; exists {
			return invalidf(node.Name, "duplicate node %s", node.Name)
		}
		if node.Priority <= 0 {
			return invalidf(node.Name, "node %s priority must be positive, got %d", node.Name, node.Priority)
		}
		seen[node.Name] = struct{}{}
	}
	for _, node := range g.Nodes {
		for _, dep := range node.DependsOn {
			if dep == node.Name {
				return invalidf(node.Name, "node %s depends on itself", node.Name)
			}
			if _, ok := seen[dep]; !ok {
				return danglingError(node.Name, dep)
			}
		}
	}
	return nil
}

// Normalized clones the graph, collapses duplicate dependency entries (the
// dependency list is a set) and validates the result.
func (g Graph) Normalized() (Graph, error) {
	clone := g.Clone()
	for i := range clone.Nodes {
		clone.Nodes[i].Name = strings.TrimSpace(clone.Nodes[i].Name)
		clone.Nodes[i].DependsOn = mergeDependencies(clone.Nodes[i].DependsOn)
	}
	if err := clone.Validate(); err != nil {
		return Graph{}, err
	}
	return clone, nil
}

// Names returns node names in declaration order.
func (g Graph) Names() []string {
	names := make([]string, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		names = append(names, node.Name)
	}
	return names
}

// Node looks up a node by name.
func (g Graph) Node(name string) (TaskNode, bool) {
	for _, node := range g.Nodes {
		if node.Name == name {
			return node.Clone(), true
		}
	}
	return TaskNode{}, false
}

// Dependencies returns a copy of the dependency list for name.
func (g Graph) Dependencies(name string) []string {
	node, ok := g.Node(name)
	if !ok {
		return nil
	}
	return node.DependsOn
}

// String renders the graph as "name<-dep,dep" pairs, mostly for logs.
func (g Graph) String() string {
	parts := make([]string, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		if len(node.DependsOn) == 0 {
			parts = append(parts, node.Name)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s<-%s", node.Name, strings.Join(node.DependsOn, ",")))
	}
	return strings.Join(parts, " ")
}

func mergeDependencies(deps []string) []string {
	if len(deps) == 0 {
		return nil
	}
	set := map[string]struct{}{}
	for _, id := range deps {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clone := make([]string, len(values))
	copy(clone, values)
	return clone
}
