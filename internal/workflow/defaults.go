package workflow

// DefaultGraphID names the built-in agent graph.
const DefaultGraphID = "blast"

// DefaultGraph returns a fresh copy of the built-in graph: seven planning
// agents chained behind blueprint, then four execution agents that share a
// level once stylize has finished.
func DefaultGraph() Graph {
	return Graph{
		ID:          DefaultGraphID,
		Description: "B.L.A.S.T. planning agents followed by the execution roles",
		Nodes: []TaskNode{
			{Name: "blueprint", Priority: 1},
			{Name: "link", Priority: 2, DependsOn: []string{"blueprint"}},
			{Name: "architect", Priority: 3, DependsOn: []string{"blueprint"}},
			{Name: "navigator", Priority: 4, DependsOn: []string{"architect"}},
			{Name: "tools", Priority: 5, DependsOn: []string{"navigator"}},
			{Name: "tester", Priority: 6, DependsOn: []string{"tools"}},
			{Name: "stylize", Priority: 7, DependsOn: []string{"tester"}},
			{Name: "frontend", Priority: 8, DependsOn: []string{"stylize"}},
			{Name: "backend", Priority: 8, DependsOn: []string{"stylize"}},
			{Name: "test", Priority: 8, DependsOn: []string{"stylize"}},
			{Name: "docs", Priority: 8, DependsOn: []string{"stylize"}},
		},
	}
}
