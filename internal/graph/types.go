// Package graph implements the in-memory build DAG: files, edges, and the
// staleness algorithm that decides which edges must run.
package graph

import (
	"fmt"
	"time"

	"github.com/n2go/n2go/internal/builderrors"
	"github.com/n2go/n2go/internal/pathutil"
)

// FileID identifies a file path. Re-exported from pathutil so callers of
// this package don't need to import both.
type FileID = pathutil.FileID

// EdgeID is a dense index into a Graph's edge slice.
type EdgeID int32

// MTimeState is the tri-state freshness of a file as known to the engine.
type MTimeState int

const (
	// Unknown means no stat has been performed yet this build.
	Unknown MTimeState = iota
	// Missing means a stat was performed and the file does not exist.
	Missing
	// Stamp means a stat was performed and the file exists with mtime Time.
	Stamp
)

// FileState is a file's current freshness: either Unknown, Missing, or a
// concrete Stamp(time).
type FileState struct {
	State MTimeState
	Time  time.Time
}

func (s FileState) String() string {
	switch s.State {
	case Missing:
		return "missing"
	case Stamp:
		return fmt.Sprintf("stamp(%s)", s.Time)
	default:
		return "unknown"
	}
}

// File is one node of the build graph.
type File struct {
	Path  string
	ID    FileID
	State FileState

	// InputEdge is the edge that produces this file as an output, or -1
	// if this file is a source (no producing edge).
	InputEdge EdgeID

	// DependentEdges lists edges that consume this file as an input
	// (explicit, implicit, or order-only).
	DependentEdges []EdgeID
}

// NoEdge is the sentinel EdgeID meaning "no edge" (e.g. File.InputEdge for
// a source file).
const NoEdge EdgeID = -1

// Edge is one declared build command: a rule invocation mapping inputs to
// outputs.
type Edge struct {
	ID   EdgeID
	Rule string

	Explicit  []FileID // contribute to staleness, passed as $in
	Implicit  []FileID // contribute to staleness, not passed as $in
	OrderOnly []FileID // constrain ordering only, never trigger rebuilds

	Outputs         []FileID
	ImplicitOutputs []FileID

	// Command is the fully resolved shell command string ($in/$out and
	// other bindings already substituted). Empty means a phony edge.
	Command string

	// Bindings carries the rule+edge+file-global variable scope that
	// produced Command, kept around for diagnostics and for recomputing
	// the command hash's key bindings.
	Bindings map[string]string

	Pool string // "" means the default unbounded pool

	Restat bool // rule declares restat = 1

	Depfile  string // path template for a depfile, or ""
	DepsMode string // "gcc" to ingest a depfile/DepsLog entry, or ""

	// DiscoveredDeps are additional inputs learned from a prior run (via
	// DepsLog) or from this run's depfile; promoted to implicit inputs
	// for staleness purposes.
	DiscoveredDeps []FileID

	// commandHash is computed once on first staleness check and cached.
	commandHash    uint64
	commandHashSet bool
}

// AllInputs returns explicit, implicit, and discovered inputs combined —
// the set that both contributes to staleness and is considered "promoted"
// implicit inputs, but excludes order-only inputs.
func (e *Edge) AllInputs() []FileID {
	out := make([]FileID, 0, len(e.Explicit)+len(e.Implicit)+len(e.DiscoveredDeps))
	out = append(out, e.Explicit...)
	out = append(out, e.Implicit...)
	out = append(out, e.DiscoveredDeps...)
	return out
}

// OrderingInputs returns AllInputs plus order-only inputs: the full set
// that gates an edge's Ready transition (want-set membership, cycle
// detection, unmet-input counting), as opposed to AllInputs' narrower
// "contributes to staleness" set. Order-only inputs must still be built
// and waited on, they just never make this edge Dirty by themselves.
func (e *Edge) OrderingInputs() []FileID {
	out := make([]FileID, 0, len(e.Explicit)+len(e.Implicit)+len(e.DiscoveredDeps)+len(e.OrderOnly))
	out = append(out, e.AllInputs()...)
	out = append(out, e.OrderOnly...)
	return out
}

// AllOutputs returns explicit and implicit outputs combined.
func (e *Edge) AllOutputs() []FileID {
	out := make([]FileID, 0, len(e.Outputs)+len(e.ImplicitOutputs))
	out = append(out, e.Outputs...)
	out = append(out, e.ImplicitOutputs...)
	return out
}

// IsPhony reports whether this edge has no command — a pure dependency
// aggregator that is never executed.
func (e *Edge) IsPhony() bool {
	return e.Command == ""
}

// Graph is the in-memory DAG of files and edges produced by the (external)
// parser and consumed by the Scheduler.
type Graph struct {
	Interner *pathutil.Interner

	files []*File
	edges []*Edge
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{Interner: pathutil.NewInterner()}
}

// FileFor returns the File for path, interning it and creating a fresh
// File record if this is the first time path has been seen.
func (g *Graph) FileFor(path string) *File {
	id := g.Interner.Intern(path)
	for int(id) >= len(g.files) {
		g.files = append(g.files, nil)
	}
	if g.files[id] == nil {
		g.files[id] = &File{Path: g.Interner.Path(id), ID: id, InputEdge: NoEdge}
	}
	return g.files[id]
}

// File returns the File for an already-interned id.
func (g *Graph) File(id FileID) *File {
	return g.files[id]
}

// Files returns every file known to the graph, indexed by FileID.
func (g *Graph) Files() []*File {
	return g.files
}

// AddEdge appends a fully-populated edge to the graph, wires its
// dependent-edge backlinks, and sets each output's InputEdge. Returns an
// error (GraphError per spec) if any output already has a producing edge.
func (g *Graph) AddEdge(e *Edge) error {
	e.ID = EdgeID(len(g.edges))
	g.edges = append(g.edges, e)

	for _, out := range e.AllOutputs() {
		f := g.File(out)
		if f.InputEdge != NoEdge {
			return builderrors.Graph(f.Path, fmt.Sprintf("multiple rules generate this output (first by edge %d, now by edge %d)", f.InputEdge, e.ID))
		}
		f.InputEdge = e.ID
	}

	for _, in := range e.Explicit {
		g.File(in).DependentEdges = append(g.File(in).DependentEdges, e.ID)
	}
	for _, in := range e.Implicit {
		g.File(in).DependentEdges = append(g.File(in).DependentEdges, e.ID)
	}
	for _, in := range e.OrderOnly {
		g.File(in).DependentEdges = append(g.File(in).DependentEdges, e.ID)
	}

	return nil
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id EdgeID) *Edge {
	return g.edges[id]
}

// Edges returns every edge known to the graph, indexed by EdgeID.
func (g *Graph) Edges() []*Edge {
	return g.edges
}
