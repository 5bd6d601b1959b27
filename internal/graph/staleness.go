package graph

import (
	"time"

	"github.com/n2go/n2go/internal/builderrors"
	"github.com/n2go/n2go/internal/buildlog"
	"github.com/n2go/n2go/internal/filestate"
)

// Status is the result of a staleness check for one edge.
type Status int

const (
	// Clean means the edge need not run: every output is up to date.
	Clean Status = iota
	// Dirty means the edge must run before its outputs can be trusted.
	Dirty
)

// StaleReason names which predicate, in the ordered list from spec.md
// §4.4, decided an edge was Dirty — used only for -d explain-style
// diagnostic logging, never for control flow.
type StaleReason string

const (
	ReasonClean            StaleReason = ""
	ReasonMissingOutput    StaleReason = "missing output"
	ReasonNoRecord         StaleReason = "no build log record"
	ReasonCommandChanged   StaleReason = "command changed"
	ReasonInputNewer       StaleReason = "input newer than output"
	ReasonMTimeMismatch    StaleReason = "recorded mtime mismatch"
	ReasonDirtyInput       StaleReason = "phony input dirty or missing"
)

// Check evaluates the five ordered staleness predicates for edge e and
// returns Clean or Dirty plus the reason, first-true-wins. cache serves
// every stat; log serves the last-known command hash and output mtime.
// For a phony edge, Check instead asks whether every input is itself
// Clean and present (spec §4.4 "Phony edges").
func Check(g *Graph, e *Edge, cache *filestate.Cache, log *buildlog.Log, cleanEdges map[EdgeID]bool) (Status, StaleReason, error) {
	if e.IsPhony() {
		return checkPhony(g, e, cache, cleanEdges)
	}

	outputs := e.AllOutputs()

	// 1. Missing output.
	oldestOutput, anyMissing, err := oldestOutputMTime(g, outputs, cache)
	if err != nil {
		return Dirty, "", err
	}
	if anyMissing {
		return Dirty, ReasonMissingOutput, nil
	}

	// 2. No BuildLog record for at least one output.
	for _, fid := range outputs {
		if _, ok := log.Lookup(g.Interner.Path(fid)); !ok {
			return Dirty, ReasonNoRecord, nil
		}
	}

	// 3. Command changed.
	hash := e.CommandHash()
	for _, fid := range outputs {
		rec, _ := log.Lookup(g.Interner.Path(fid))
		if rec.Hash != hash {
			return Dirty, ReasonCommandChanged, nil
		}
	}

	// 4. Input newer than (oldest) output.
	for _, fid := range e.AllInputs() {
		f := g.File(fid)
		s, err := cache.Stat(fid, f.Path)
		if err != nil {
			return Dirty, "", err
		}
		if s.Missing {
			// A phony producer is a workaround marker never meant to exist
			// on disk (e.g. an "always rerun" dependency); that alone is
			// not a fault. Anything else missing at this point — a source
			// file, or a real rule's output that still isn't there once
			// its own producing edge has already run — is a required
			// input this edge cannot proceed without, and must be
			// reported rather than handed to the command as a missing
			// file it didn't expect.
			if f.InputEdge != NoEdge && g.Edge(f.InputEdge).IsPhony() {
				continue
			}
			return Dirty, "", builderrors.Graph(f.Path, "required input is missing")
		}
		if s.MTime.After(oldestOutput) {
			return Dirty, ReasonInputNewer, nil
		}
	}

	// 5. Recorded mtime mismatch against current mtime.
	for _, fid := range outputs {
		f := g.File(fid)
		s, err := cache.Stat(fid, f.Path)
		if err != nil {
			return Dirty, "", err
		}
		rec, _ := log.Lookup(f.Path)
		if s.MTime.UnixNano() != rec.MTimeNS {
			return Dirty, ReasonMTimeMismatch, nil
		}
	}

	return Clean, ReasonClean, nil
}

// checkPhony implements "never executed; Clean iff all its inputs are
// Clean and exist". cleanEdges records the outcome of every
// already-evaluated edge in this build, since phony status depends on
// sibling edges having already been checked — the scheduler evaluates
// edges in input-before-dependent order, so by the time a phony is
// checked every edge producing one of its inputs has a known status.
func checkPhony(g *Graph, e *Edge, cache *filestate.Cache, cleanEdges map[EdgeID]bool) (Status, StaleReason, error) {
	for _, fid := range e.AllInputs() {
		f := g.File(fid)
		s, err := cache.Stat(fid, f.Path)
		if err != nil {
			return Dirty, "", err
		}
		if s.Missing {
			return Dirty, ReasonDirtyInput, nil
		}
		if f.InputEdge != NoEdge && !cleanEdges[f.InputEdge] {
			return Dirty, ReasonDirtyInput, nil
		}
	}
	return Clean, ReasonClean, nil
}

func oldestOutputMTime(g *Graph, outputs []FileID, cache *filestate.Cache) (time.Time, bool, error) {
	var oldest time.Time
	first := true
	for _, fid := range outputs {
		f := g.File(fid)
		s, err := cache.Stat(fid, f.Path)
		if err != nil {
			return time.Time{}, false, err
		}
		if s.Missing {
			return time.Time{}, true, nil
		}
		if first || s.MTime.Before(oldest) {
			oldest = s.MTime
			first = false
		}
	}
	return oldest, false, nil
}

// RestatMTime implements the restat rule: after a successful run of an
// edge declaring restat = 1, the BuildLog record for an output should
// use the newest input mtime instead of the output's own mtime, if the
// output did not advance past it. actualMTime is the output's freshly
// re-stat'd mtime; newestInput is the newest mtime among the edge's
// inputs (order-only excluded).
func RestatMTime(actualMTime, newestInput time.Time) time.Time {
	if !actualMTime.After(newestInput) {
		return newestInput
	}
	return actualMTime
}
