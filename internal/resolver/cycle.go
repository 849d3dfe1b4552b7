package resolver

import (
	"slices"

	"github.com/roach88/linkctl/internal/ir"
)

// cycleError names the contracts and links caught in cycles among the
// residual nodes left over by Kahn's algorithm.
//
// The residual set also contains nodes that merely sit downstream of a
// cycle, so cycles are isolated with Tarjan's algorithm first; only SCCs
// of size > 1 are reported (self-edges are never added to the graph).
func (g *Graph) cycleError(residual []int) *ir.CycleError {
	inResidual := make(map[int]bool, len(residual))
	for _, v := range residual {
		inResidual[v] = true
	}

	var cycles [][]int
	for _, scc := range g.tarjanSCC(residual, inResidual) {
		if len(scc) > 1 {
			cycles = append(cycles, scc)
		}
	}

	contractSet := make(map[string]bool)
	for _, scc := range cycles {
		for _, v := range scc {
			contractSet[g.descriptors[v].Contract] = true
		}
	}
	contracts := make([]string, 0, len(contractSet))
	for c := range contractSet {
		contracts = append(contracts, c)
	}
	slices.Sort(contracts)

	var links []string
	if len(cycles) > 0 {
		for _, v := range g.reconstructCyclePath(cycles[0]) {
			links = append(links, g.descriptors[v].ID)
		}
	}

	return &ir.CycleError{Contracts: contracts, Links: links}
}

// tarjanSCC finds strongly connected components restricted to the given
// nodes. Nodes are visited in ascending order for deterministic output.
func (g *Graph) tarjanSCC(nodes []int, member map[int]bool) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.dependents[v] {
			if !member[w] {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into an SCC
		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, v := range nodes {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	slices.SortFunc(sccs, func(a, b []int) int { return a[0] - b[0] })
	return sccs
}

// reconstructCyclePath returns the shortest cycle through the SCC's
// smallest member, closed on itself, e.g. [a, b, c, a]. The search stays
// inside the SCC, which guarantees a way back to the start.
func (g *Graph) reconstructCyclePath(scc []int) []int {
	member := make(map[int]bool, len(scc))
	for _, v := range scc {
		member[v] = true
	}

	start := scc[0]
	parent := map[int]int{start: -1}
	queue := []int{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range g.dependents[v] {
			if !member[w] {
				continue
			}
			if w == start {
				var path []int
				for n := v; n != -1; n = parent[n] {
					path = append(path, n)
				}
				slices.Reverse(path)
				return append(path, start)
			}
			if _, seen := parent[w]; !seen {
				parent[w] = v
				queue = append(queue, w)
			}
		}
	}
	return []int{start}
}
