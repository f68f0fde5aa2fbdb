package scheduler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kingrea/wheee/internal/workflow"
)

func graphOf(deps map[string][]string, order ...string) workflow.Graph {
	g := workflow.Graph{ID: "test"}
	for i, name := range order {
		g.Nodes = append(g.Nodes, workflow.TaskNode{Name: name, Priority: i + 1, DependsOn: deps[name]})
	}
	return g
}

func TestLevelsDiamond(t *testing.T) {
	g := graphOf(map[string][]string{
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	}, "a", "b", "c", "d")

	levels, err := Levels(g)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, levels)
}

func TestLevelsTwoNodeCycle(t *testing.T) {
	g := graphOf(map[string][]string{
		"x": {"y"},
		"y": {"x"},
	}, "x", "y")

	levels, err := Levels(g)
	require.Error(t, err)
	assert.Nil(t, levels)

	var graphErr *workflow.GraphError
	require.True(t, errors.As(err, &graphErr))
	assert.ErrorIs(t, err, workflow.ErrCycle)
	assert.ElementsMatch(t, []string{"x", "y"}, graphErr.Nodes)
}

func TestLevelsDanglingDependency(t *testing.T) {
	g := graphOf(map[string][]string{"a": {"ghost"}}, "a")

	levels, err := Levels(g)
	assert.Nil(t, levels)
	assert.ErrorIs(t, err, workflow.ErrDanglingDependency)
}

func TestLevelsDefaultGraph(t *testing.T) {
	levels, err := Levels(workflow.DefaultGraph())
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"blueprint"},
		{"link", "architect"},
		{"navigator"},
		{"tools"},
		{"tester"},
		{"stylize"},
		{"frontend", "backend", "test", "docs"},
	}, levels)
}

func TestLevelsOrdersMembersByPriority(t *testing.T) {
	g := workflow.Graph{Nodes: []workflow.TaskNode{
		{Name: "root", Priority: 1},
		{Name: "late", Priority: 9, DependsOn: []string{"root"}},
		{Name: "early", Priority: 2, DependsOn: []string{"root"}},
	}}
	levels, err := Levels(g)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"root"}, {"early", "late"}}, levels)
}

func TestSequenceOrdersByPriorityKeepingDeclarationTies(t *testing.T) {
	seq, err := Sequence(workflow.DefaultGraph())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"blueprint", "link", "architect", "navigator", "tools", "tester", "stylize",
		"frontend", "backend", "test", "docs",
	}, seq)
}

func TestSequenceRejectsCycle(t *testing.T) {
	g := graphOf(map[string][]string{"x": {"y"}, "y": {"x"}}, "x", "y")
	seq, err := Sequence(g)
	assert.Nil(t, seq)
	assert.ErrorIs(t, err, workflow.ErrCycle)
}

func TestBatches(t *testing.T) {
	g := graphOf(map[string][]string{"b": {"a"}, "c": {"a"}}, "a", "b", "c")

	parallel, err := Batches(g, ModeParallel)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}}, parallel)

	sequential, err := Batches(g, ModeSequential)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, sequential)

	_, err = Batches(g, Mode("bogus"))
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeParallel},
		{in: "parallel", want: ModeParallel},
		{in: " Sequential ", want: ModeSequential},
		{in: "turbo", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// drawDAG builds a random acyclic graph: node i may only depend on nodes
// created before it, then declaration order is shuffled.
func drawDAG(t *rapid.T) workflow.Graph {
	n := rapid.IntRange(1, 12).Draw(t, "n")
	nodes := make([]workflow.TaskNode, n)
	for i := 0; i < n; i++ {
		nodes[i] = workflow.TaskNode{
			Name:     fmt.Sprintf("n%d", i),
			Priority: rapid.IntRange(1, 5).Draw(t, fmt.Sprintf("p%d", i)),
		}
		for j := 0; j < i; j++ {
			if rapid.Bool().Draw(t, fmt.Sprintf("e%d_%d", i, j)) {
				nodes[i].DependsOn = append(nodes[i].DependsOn, nodes[j].Name)
			}
		}
	}
	shuffled := rapid.Permutation(nodes).Draw(t, "order")
	return workflow.Graph{ID: "prop", Nodes: shuffled}
}

func TestPropertyLevelsPlaceEveryNodeOnceAfterItsDependencies(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawDAG(t)
		levels, err := Levels(g)
		if err != nil {
			t.Fatalf("acyclic graph rejected: %v", err)
		}
		levelOf := map[string]int{}
		for i, level := range levels {
			if len(level) == 0 {
				t.Fatalf("level %d is empty", i)
			}
			for _, name := range level {
				if _, dup := levelOf[name]; dup {
					t.Fatalf("node %s placed twice", name)
				}
				levelOf[name] = i
			}
		}
		if len(levelOf) != len(g.Nodes) {
			t.Fatalf("placed %d nodes, graph has %d", len(levelOf), len(g.Nodes))
		}
		for _, node := range g.Nodes {
			for _, dep := range node.DependsOn {
				if levelOf[dep] >= levelOf[node.Name] {
					t.Fatalf("%s (level %d) depends on %s (level %d)", node.Name, levelOf[node.Name], dep, levelOf[dep])
				}
			}
		}
	})
}

func TestPropertyLevelsRejectCycles(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawDAG(t)
		// Close a loop: a node picks up a dependency on one of its own
		// transitive dependents (itself included for a chain of one).
		var withDeps []int
		for i, node := range g.Nodes {
			if len(node.DependsOn) > 0 {
				withDeps = append(withDeps, i)
			}
		}
		if len(withDeps) == 0 {
			g.Nodes = append(g.Nodes,
				workflow.TaskNode{Name: "cx", Priority: 1, DependsOn: []string{"cy"}},
				workflow.TaskNode{Name: "cy", Priority: 1, DependsOn: []string{"cx"}},
			)
		} else {
			idx := rapid.SampledFrom(withDeps).Draw(t, "loop")
			child := g.Nodes[idx]
			parent := child.DependsOn[0]
			for i := range g.Nodes {
				if g.Nodes[i].Name == parent {
					g.Nodes[i].DependsOn = append(g.Nodes[i].DependsOn, child.Name)
				}
			}
		}
		levels, err := Levels(g)
		if levels != nil {
			t.Fatalf("cyclic graph produced levels %v", levels)
		}
		if !errors.Is(err, workflow.ErrCycle) {
			t.Fatalf("expected cycle error, got %v", err)
		}
	})
}

func TestPropertyLevelsRejectDanglingDependencies(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawDAG(t)
		idx := rapid.IntRange(0, len(g.Nodes)-1).Draw(t, "victim")
		g.Nodes[idx].DependsOn = append(g.Nodes[idx].DependsOn, "ghost")
		levels, err := Levels(g)
		if levels != nil {
			t.Fatalf("dangling graph produced levels %v", levels)
		}
		if !errors.Is(err, workflow.ErrDanglingDependency) {
			t.Fatalf("expected dangling dependency error, got %v", err)
		}
	})
}
