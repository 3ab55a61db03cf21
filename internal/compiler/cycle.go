package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// ImportCycle is a set of specs that import each other.
type ImportCycle struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeImports finds import cycles among specs.
//
// The algorithm:
//  1. Build the spec -> imported spec graph
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-imports as a cycle
//
// Imports of undeclared specs are ignored here. Cycles are reported in a
// deterministic order.
func AnalyzeImports(specs []SpecDecl) []ImportCycle {
	if len(specs) == 0 {
		return []ImportCycle{}
	}

	graph := buildImportGraph(specs)
	sccs := tarjanSCC(graph)

	cycles := []ImportCycle{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	slices.SortFunc(cycles, func(a, b ImportCycle) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return cycles
}

// importGraph maps spec name -> imported spec names, with sorted nodes.
type importGraph struct {
	nodes []string
	edges map[string][]string
}

func buildImportGraph(specs []SpecDecl) importGraph {
	g := importGraph{edges: make(map[string][]string)}
	declared := make(map[string]bool)
	for _, s := range specs {
		declared[s.Name] = true
	}
	for _, s := range specs {
		if _, seen := g.edges[s.Name]; !seen {
			g.nodes = append(g.nodes, s.Name)
			g.edges[s.Name] = []string{}
		}
		for _, imp := range s.Imports {
			if declared[imp] {
				g.edges[s.Name] = append(g.edges[s.Name], imp)
			}
		}
	}
	slices.Sort(g.nodes)
	return g
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, g importGraph) bool {
	return slices.Contains(g.edges[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Single-node SCCs without self-loops are NOT cycles. SCCs come out in
// reverse topological order: a spec's imports precede it.
func tarjanSCC(g importGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func sccToCycle(scc []string, g importGraph) ImportCycle {
	if len(scc) == 1 {
		name := scc[0]
		return ImportCycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("spec %s imports itself", name),
		}
	}

	path := reconstructCyclePath(scc, g)
	return ImportCycle{
		Path:    path,
		Message: fmt.Sprintf("import cycle: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath follows edges within the SCC from its smallest name
// until it returns to the start.
func reconstructCyclePath(scc []string, g importGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool)
	for _, node := range scc {
		members[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range g.edges[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}

// BuildOrder returns specs ordered so that every spec follows the specs it
// imports. Ties keep declaration order. Cycles and unknown imports are
// errors.
func BuildOrder(specs []SpecDecl) ([]SpecDecl, error) {
	if cycles := AnalyzeImports(specs); len(cycles) > 0 {
		return nil, fmt.Errorf("build order: %s", cycles[0].Message)
	}

	byName := make(map[string]SpecDecl, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	var out []SpecDecl
	done := make(map[string]bool)
	var visit func(s SpecDecl) error
	visit = func(s SpecDecl) error {
		if done[s.Name] {
			return nil
		}
		for _, imp := range s.Imports {
			dep, ok := byName[imp]
			if !ok {
				return fmt.Errorf("build order: spec %s imports unknown spec %s", s.Name, imp)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		done[s.Name] = true
		out = append(out, s)
		return nil
	}

	for _, s := range specs {
		if err := visit(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}
