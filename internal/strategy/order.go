package strategy

import (
	"fmt"
	"log/slog"
	"slices"
)

// relationGraph holds the "runs before" edges between the strategies of
// one phase. Nodes are kept in registration order, which is the tie-break
// for both cycle reporting and topological sorting.
type relationGraph struct {
	nodes []string
	rank  map[string]int
	edges map[string][]string
}

func newRelationGraph(nodes []string) *relationGraph {
	g := &relationGraph{
		nodes: nodes,
		rank:  make(map[string]int, len(nodes)),
		edges: make(map[string][]string, len(nodes)),
	}
	for i, n := range nodes {
		g.rank[n] = i
	}
	return g
}

// addEdge records that from runs before to. Duplicate edges are ignored and
// each adjacency list stays sorted by registration rank.
func (g *relationGraph) addEdge(from, to string) {
	if slices.Contains(g.edges[from], to) {
		return
	}
	g.edges[from] = append(g.edges[from], to)
	slices.SortFunc(g.edges[from], func(a, b string) int { return g.rank[a] - g.rank[b] })
}

// deriveOrder computes the total application order of the given strategies
// (in registration order). Phases run in their fixed order; within a phase
// a topological sort honors Prior/Posterior relations, breaking ties by
// registration order. Returns a *ConfigError for a cycle or a relation that
// crosses phases.
func deriveOrder(registered []Strategy) ([]Strategy, error) {
	byName := make(map[string]Strategy, len(registered))
	for _, s := range registered {
		byName[s.Name()] = s
	}

	order := make([]Strategy, 0, len(registered))
	for _, phase := range Phases {
		var names []string
		for _, s := range registered {
			if s.Phase() == phase {
				names = append(names, s.Name())
			}
		}
		if len(names) == 0 {
			continue
		}

		g := newRelationGraph(names)
		for _, name := range names {
			if err := addRelations(g, byName, byName[name]); err != nil {
				return nil, err
			}
		}

		if path := findCycle(g); path != nil {
			return nil, &ConfigError{
				Code:    ErrCodeOrderingCycle,
				Message: fmt.Sprintf("ordering relations in phase %s form a cycle", phase),
				Phase:   phase,
				Path:    path,
			}
		}

		for _, name := range topoSort(g) {
			order = append(order, byName[name])
		}
	}
	return order, nil
}

func addRelations(g *relationGraph, byName map[string]Strategy, s Strategy) error {
	o, ok := s.(Ordered)
	if !ok {
		return nil
	}
	link := func(other string, after bool) error {
		target, ok := byName[other]
		if !ok {
			slog.Debug("ignoring ordering relation to unregistered strategy",
				"strategy", s.Name(),
				"other", other,
			)
			return nil
		}
		if target.Phase() != s.Phase() {
			return &ConfigError{
				Code: ErrCodeCrossPhase,
				Message: fmt.Sprintf("%s (%s) cannot be ordered against %s (%s)",
					s.Name(), s.Phase(), other, target.Phase()),
				Phase: s.Phase(),
			}
		}
		if after {
			g.addEdge(other, s.Name())
		} else {
			g.addEdge(s.Name(), other)
		}
		return nil
	}
	for _, other := range o.Prior() {
		if err := link(other, true); err != nil {
			return err
		}
	}
	for _, other := range o.Posterior() {
		if err := link(other, false); err != nil {
			return err
		}
	}
	return nil
}

// findCycle returns a cycle path such as [a b c a], or nil when the graph is
// acyclic. Strongly connected components are found with Tarjan's algorithm;
// the reported cycle is the one through the earliest-registered strategy
// that sits on any cycle.
func findCycle(g *relationGraph) []string {
	var cyclic []string
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || slices.Contains(g.edges[scc[0]], scc[0]) {
			cyclic = append(cyclic, scc...)
		}
	}
	if len(cyclic) == 0 {
		return nil
	}
	start := slices.MinFunc(cyclic, func(a, b string) int { return g.rank[a] - g.rank[b] })

	members := make(map[string]bool)
	for _, scc := range tarjanSCC(g) {
		if slices.Contains(scc, start) {
			for _, n := range scc {
				members[n] = true
			}
		}
	}
	return shortestCycle(g, start, members)
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// registration order so the result is deterministic.
func tarjanSCC(g *relationGraph) [][]string {
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

// shortestCycle walks breadth-first from start inside one component until
// it returns to start, and returns the path including both ends.
func shortestCycle(g *relationGraph, start string, members map[string]bool) []string {
	parent := make(map[string]string)
	queue := []string{start}
	seen := map[string]bool{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.edges[cur] {
			if !members[next] {
				continue
			}
			if next == start {
				path := []string{start}
				for n := cur; n != start; n = parent[n] {
					path = append(path, n)
				}
				path = append(path, start)
				slices.Reverse(path[1 : len(path)-1])
				return path
			}
			if !seen[next] {
				seen[next] = true
				parent[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return []string{start, start}
}

// topoSort is Kahn's algorithm choosing, at every step, the ready node with
// the lowest registration rank. The graph must be acyclic.
func topoSort(g *relationGraph) []string {
	indegree := make(map[string]int, len(g.nodes))
	for _, from := range g.nodes {
		for _, to := range g.edges[from] {
			indegree[to]++
		}
	}
	done := make(map[string]bool, len(g.nodes))
	out := make([]string, 0, len(g.nodes))
	for len(out) < len(g.nodes) {
		next := ""
		for _, n := range g.nodes {
			if !done[n] && indegree[n] == 0 {
				next = n
				break
			}
		}
		if next == "" {
			break
		}
		done[next] = true
		out = append(out, next)
		for _, to := range g.edges[next] {
			indegree[to]--
		}
	}
	return out
}
