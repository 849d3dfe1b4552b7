package resolver

import (
	"fmt"
	"slices"

	"github.com/roach88/linkctl/internal/ir"
)

// Graph is the dependency graph over a descriptor set. Nodes are indices
// into the descriptor slice.
type Graph struct {
	descriptors []ir.LinkDescriptor
	index       map[string]int
	deps        [][]int // deps[b] = nodes b waits for, ascending
	dependents  [][]int // dependents[a] = nodes waiting for a, ascending
}

// Build constructs the dependency graph. Descriptor IDs must be unique and
// depends_on entries must name known IDs.
func Build(descriptors []ir.LinkDescriptor) (*Graph, error) {
	g := &Graph{
		descriptors: descriptors,
		index:       make(map[string]int, len(descriptors)),
		deps:        make([][]int, len(descriptors)),
		dependents:  make([][]int, len(descriptors)),
	}

	// contract name -> descriptors configuring it
	configures := make(map[string][]int)
	for i, d := range descriptors {
		if _, dup := g.index[d.ID]; dup {
			return nil, &ir.ConfigurationError{Message: fmt.Sprintf("duplicate link id %q", d.ID)}
		}
		g.index[d.ID] = i
		configures[d.Contract] = append(configures[d.Contract], i)
	}

	for b, d := range descriptors {
		seen := make(map[int]bool)
		addEdge := func(a int) {
			if a == b || seen[a] {
				return
			}
			seen[a] = true
			g.deps[b] = append(g.deps[b], a)
			g.dependents[a] = append(g.dependents[a], b)
		}

		for _, ref := range d.Refs() {
			for _, a := range configures[ref] {
				addEdge(a)
			}
		}
		for _, id := range d.DependsOn {
			a, ok := g.index[id]
			if !ok {
				return nil, &ir.ConfigurationError{
					Message: fmt.Sprintf("link %q depends on unknown link %q", d.ID, id),
				}
			}
			addEdge(a)
		}
	}

	for i := range g.deps {
		slices.Sort(g.deps[i])
	}
	for i := range g.dependents {
		slices.Sort(g.dependents[i])
	}
	return g, nil
}

// Len returns the number of descriptors.
func (g *Graph) Len() int { return len(g.descriptors) }

// Descriptor returns the descriptor at node i.
func (g *Graph) Descriptor(i int) ir.LinkDescriptor { return g.descriptors[i] }

// Deps returns the direct dependencies of node i.
func (g *Graph) Deps(i int) []int { return g.deps[i] }

// TransitiveDeps returns every node i waits for, directly or through
// other nodes, ascending.
func (g *Graph) TransitiveDeps(i int) []int {
	seen := make(map[int]bool)
	stack := append([]int(nil), g.deps[i]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.deps[n]...)
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
