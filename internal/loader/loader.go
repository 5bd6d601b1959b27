// Package loader reads a small JSON graph description into a
// graph.Graph. It is not a Ninja-syntax parser — build-file parsing is
// explicitly out of scope (spec.md §1) — this exists only so the CLI and
// its integration tests have an in-module way to describe a build graph
// without shelling out to a real ninja frontend.
package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/n2go/n2go/internal/builderrors"
	"github.com/n2go/n2go/internal/graph"
)

// Doc is the on-disk JSON shape: a flat list of edges. Every file path
// referenced by an edge is interned implicitly; a file with no producing
// edge is a source file.
type Doc struct {
	Edges []EdgeDoc `json:"edges"`
}

// EdgeDoc mirrors graph.Edge's fields in their JSON-friendly form.
type EdgeDoc struct {
	Rule            string            `json:"rule"`
	Explicit        []string          `json:"inputs,omitempty"`
	Implicit        []string          `json:"implicit_inputs,omitempty"`
	OrderOnly       []string          `json:"order_only_inputs,omitempty"`
	Outputs         []string          `json:"outputs"`
	ImplicitOutputs []string          `json:"implicit_outputs,omitempty"`
	Command         string            `json:"command,omitempty"` // "" means phony
	Bindings        map[string]string `json:"bindings,omitempty"`
	Pool            string            `json:"pool,omitempty"`
	Restat          bool              `json:"restat,omitempty"`
	Depfile         string            `json:"depfile,omitempty"`
	DepsMode        string            `json:"deps,omitempty"`
}

// Load parses the JSON graph description at path into a fresh
// graph.Graph.
func Load(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, builderrors.IO(path, err)
	}

	var doc Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, builderrors.Parse(path, fmt.Sprintf("invalid graph JSON: %v", err))
	}

	g := graph.New()
	for i, ed := range doc.Edges {
		if len(ed.Outputs) == 0 && len(ed.ImplicitOutputs) == 0 {
			return nil, builderrors.Parse(path, fmt.Sprintf("edge %d (rule %q) declares no outputs", i, ed.Rule))
		}
		e := &graph.Edge{
			Rule:            ed.Rule,
			Explicit:        internAll(g, ed.Explicit),
			Implicit:        internAll(g, ed.Implicit),
			OrderOnly:       internAll(g, ed.OrderOnly),
			Outputs:         internAll(g, ed.Outputs),
			ImplicitOutputs: internAll(g, ed.ImplicitOutputs),
			Command:         ed.Command,
			Bindings:        ed.Bindings,
			Pool:            ed.Pool,
			Restat:          ed.Restat,
			Depfile:         ed.Depfile,
			DepsMode:        ed.DepsMode,
		}
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func internAll(g *graph.Graph, paths []string) []graph.FileID {
	out := make([]graph.FileID, len(paths))
	for i, p := range paths {
		out[i] = g.FileFor(p).ID
	}
	return out
}

// ResolveTargets interns each requested target path. It does not
// validate that source-only targets exist on disk — see
// graph.ValidateTarget for the stat-backed check, applied once a
// filestate.Cache is available.
func ResolveTargets(g *graph.Graph, paths []string) []graph.FileID {
	out := make([]graph.FileID, len(paths))
	for i, p := range paths {
		out[i] = g.FileFor(p).ID
	}
	return out
}
