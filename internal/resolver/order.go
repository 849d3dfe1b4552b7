package resolver

import (
	"container/heap"
	"slices"

	"github.com/roach88/linkctl/internal/ir"
)

// Plan is the resolved execution plan for a descriptor set.
type Plan struct {
	Graph *Graph

	// Order is a total order of node indices respecting every edge.
	Order []int

	// Layers groups nodes by longest-path depth. Nodes in the same layer
	// have no ordering constraint between them.
	Layers [][]int
}

// Ordered returns the descriptors in plan order.
func (p *Plan) Ordered() []ir.LinkDescriptor {
	out := make([]ir.LinkDescriptor, len(p.Order))
	for i, n := range p.Order {
		out[i] = p.Graph.Descriptor(n)
	}
	return out
}

// LayerIDs returns the link IDs of each layer.
func (p *Plan) LayerIDs() [][]string {
	out := make([][]string, len(p.Layers))
	for i, layer := range p.Layers {
		ids := make([]string, len(layer))
		for k, n := range layer {
			ids[k] = p.Graph.Descriptor(n).ID
		}
		out[i] = ids
	}
	return out
}

// Resolve builds the dependency graph and orders it.
func Resolve(descriptors []ir.LinkDescriptor) (*Plan, error) {
	g, err := Build(descriptors)
	if err != nil {
		return nil, err
	}
	order, err := g.Order()
	if err != nil {
		return nil, err
	}
	return &Plan{Graph: g, Order: order, Layers: g.layers(order)}, nil
}

// Order performs Kahn's topological sort. Among ready nodes the one with
// the smallest input index goes first, so unconstrained descriptors keep
// their input order.
//
// Returns *ir.CycleError when some nodes can never become ready.
func (g *Graph) Order() ([]int, error) {
	n := g.Len()
	indegree := make([]int, n)
	ready := &minHeap{}
	for i := 0; i < n; i++ {
		indegree[i] = len(g.deps[i])
		if indegree[i] == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]int, 0, n)
	for ready.Len() > 0 {
		v := heap.Pop(ready).(int)
		order = append(order, v)
		for _, w := range g.dependents[v] {
			indegree[w]--
			if indegree[w] == 0 {
				heap.Push(ready, w)
			}
		}
	}

	if len(order) < n {
		var residual []int
		for i := 0; i < n; i++ {
			if indegree[i] > 0 {
				residual = append(residual, i)
			}
		}
		return nil, g.cycleError(residual)
	}
	return order, nil
}

// layers assigns each node depth = 1 + max(depth of deps).
func (g *Graph) layers(order []int) [][]int {
	depth := make([]int, g.Len())
	maxDepth := -1
	for _, v := range order {
		d := 0
		for _, u := range g.deps[v] {
			d = max(d, depth[u]+1)
		}
		depth[v] = d
		maxDepth = max(maxDepth, d)
	}

	layers := make([][]int, maxDepth+1)
	for _, v := range order {
		layers[depth[v]] = append(layers[depth[v]], v)
	}
	for _, layer := range layers {
		slices.Sort(layer)
	}
	return layers
}

// minHeap is a min-heap of node indices.
type minHeap []int

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *minHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
