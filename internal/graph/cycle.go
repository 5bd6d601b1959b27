package graph

import (
	"strings"

	"github.com/n2go/n2go/internal/builderrors"
)

func (g *Graph) cyclePathString(path []EdgeID) string {
	var b strings.Builder
	for i, id := range path {
		if i > 0 {
			b.WriteString(" -> ")
		}
		e := g.Edge(id)
		if e == nil || len(e.Outputs) == 0 {
			b.WriteString("<edge>")
			continue
		}
		b.WriteString(g.Interner.Path(e.Outputs[0]))
	}
	return b.String()
}

// detector walks the edge graph depth-first, tracking the current
// recursion stack so a revisited on-stack edge can be reported with the
// exact path that closed the loop. This is the same "onStack" shape used
// by Tarjan's algorithm, adapted here to stop fatally at the first cycle
// found rather than enumerate every strongly connected component — a
// build graph's want-set expansion only needs to know that a cycle
// exists and where, not its full membership.
type detector struct {
	g        *Graph
	visited  map[EdgeID]bool
	onStack  map[EdgeID]bool
	stack    []EdgeID
	wanted   map[EdgeID]bool
}

func newDetector(g *Graph) *detector {
	return &detector{
		g:       g,
		visited: make(map[EdgeID]bool),
		onStack: make(map[EdgeID]bool),
		wanted:  make(map[EdgeID]bool),
	}
}

// visitEdge marks e and its transitive input edges as wanted, erroring
// with the closing path if doing so revisits an edge still on the
// current recursion stack.
func (d *detector) visitEdge(id EdgeID) error {
	if d.onStack[id] {
		closing := append(append([]EdgeID{}, d.stack...), id)
		return builderrors.Graph(d.g.cyclePathString(closing), "cycle detected in build graph")
	}
	if d.visited[id] {
		return nil
	}

	d.onStack[id] = true
	d.stack = append(d.stack, id)

	e := d.g.Edge(id)
	if e != nil {
		for _, fid := range e.OrderingInputs() {
			f := d.g.File(fid)
			if f == nil || f.InputEdge == NoEdge {
				continue
			}
			if err := d.visitEdge(f.InputEdge); err != nil {
				return err
			}
		}
	}

	d.stack = d.stack[:len(d.stack)-1]
	d.onStack[id] = false
	d.visited[id] = true
	d.wanted[id] = true
	return nil
}
