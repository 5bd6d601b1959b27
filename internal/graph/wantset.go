package graph

import (
	"github.com/n2go/n2go/internal/builderrors"
	"github.com/n2go/n2go/internal/filestate"
)

// WantSet is the set of edges reachable, by reverse traversal along
// input_edge chains, from a set of requested target files.
type WantSet struct {
	edges map[EdgeID]bool
}

// Contains reports whether id was marked wanted.
func (w *WantSet) Contains(id EdgeID) bool { return w.edges[id] }

// Len returns the number of wanted edges.
func (w *WantSet) Len() int { return len(w.edges) }

// Edges returns the wanted edge ids in no particular order.
func (w *WantSet) Edges() []EdgeID {
	out := make([]EdgeID, 0, len(w.edges))
	for id := range w.edges {
		out = append(out, id)
	}
	return out
}

// ExpandWantSet computes the want-set for a list of target paths: the
// producing edge of each target, and every ancestor edge reachable by
// following inputs back to their producing edges. A target that names a
// source file (InputEdge == NoEdge) contributes no edge of its own —
// per spec, that is "no work" rather than an error, as long as the file
// exists; existence is checked by the caller against FileStateCache.
func (g *Graph) ExpandWantSet(targets []FileID) (*WantSet, error) {
	d := newDetector(g)

	for _, fid := range targets {
		f := g.File(fid)
		if f == nil || f.InputEdge == NoEdge {
			continue
		}
		if err := d.visitEdge(f.InputEdge); err != nil {
			return nil, err
		}
	}

	return &WantSet{edges: d.wanted}, nil
}

// DefaultTargets returns every file with no dependent edges pointing at
// it from outside its own producing edge's output set — i.e. every leaf
// output that nothing else in the graph consumes — used when the build
// is invoked with zero targets and no configured default, per spec
// §8's "zero targets ⇒ build all leaves" boundary behavior.
func (g *Graph) DefaultTargets() []FileID {
	consumed := make(map[FileID]bool)
	for _, e := range g.Edges() {
		for _, fid := range e.OrderingInputs() {
			consumed[fid] = true
		}
	}

	var leaves []FileID
	for _, f := range g.Files() {
		if f.InputEdge == NoEdge {
			continue
		}
		if !consumed[f.ID] {
			leaves = append(leaves, f.ID)
		}
	}
	return leaves
}

// ValidateTarget is the "target equals a source file" boundary check
// from spec.md §8: a requested target with no producing edge is legal
// (it means "nothing to build") as long as it actually exists on disk;
// a target naming neither a known file nor an existing source is a
// GraphError.
func ValidateTarget(g *Graph, fid FileID, cache *filestate.Cache) error {
	f := g.File(fid)
	if f == nil {
		return builderrors.Graph(g.Interner.Path(fid), "unknown target")
	}
	if f.InputEdge != NoEdge {
		return nil
	}
	st, err := cache.Stat(fid, f.Path)
	if err != nil {
		return builderrors.Stat(f.Path, err)
	}
	if st.Missing {
		return builderrors.Graph(f.Path, "target is a source file but does not exist")
	}
	return nil
}
