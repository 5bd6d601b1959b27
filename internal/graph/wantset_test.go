package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n2go/n2go/internal/builderrors"
	"github.com/n2go/n2go/internal/filestate"
)

func TestExpandWantSetFollowsInputChain(t *testing.T) {
	g := New()
	aID := g.FileFor("a.c").ID
	bID := g.FileFor("b.o").ID
	cID := g.FileFor("app").ID

	require.NoError(t, g.AddEdge(&Edge{Rule: "cc", Explicit: []FileID{aID}, Outputs: []FileID{bID}, Command: "cc"}))
	require.NoError(t, g.AddEdge(&Edge{Rule: "link", Explicit: []FileID{bID}, Outputs: []FileID{cID}, Command: "ld"}))

	want, err := g.ExpandWantSet([]FileID{cID})
	require.NoError(t, err)
	assert.Equal(t, 2, want.Len())
}

func TestExpandWantSetSourceTargetContributesNoEdge(t *testing.T) {
	g := New()
	aID := g.FileFor("a.c").ID

	want, err := g.ExpandWantSet([]FileID{aID})
	require.NoError(t, err)
	assert.Equal(t, 0, want.Len())
}

func TestExpandWantSetDetectsCycle(t *testing.T) {
	g := New()
	aID := g.FileFor("a").ID
	bID := g.FileFor("b").ID

	require.NoError(t, g.AddEdge(&Edge{Rule: "r1", Explicit: []FileID{bID}, Outputs: []FileID{aID}, Command: "x"}))
	// b's producing edge depends on a again, closing the cycle.
	e2 := &Edge{Rule: "r2", Explicit: []FileID{aID}, Outputs: []FileID{bID}, Command: "y"}
	require.NoError(t, g.AddEdge(e2))

	_, err := g.ExpandWantSet([]FileID{aID})
	require.Error(t, err)
	assert.True(t, builderrors.IsKind(err, builderrors.KindGraph))
}

func TestExpandWantSetFollowsOrderOnlyInputChain(t *testing.T) {
	g := New()
	genID := g.FileFor("gen.stamp").ID
	aID := g.FileFor("a.c").ID
	bID := g.FileFor("b.o").ID

	// b.o only orders after gen.stamp (e.g. "create the output directory
	// first"); gen.stamp contributes nothing to b.o's own staleness.
	require.NoError(t, g.AddEdge(&Edge{Rule: "mkdir", Outputs: []FileID{genID}, Command: "mkdir"}))
	require.NoError(t, g.AddEdge(&Edge{Rule: "cc", Explicit: []FileID{aID}, OrderOnly: []FileID{genID}, Outputs: []FileID{bID}, Command: "cc"}))

	want, err := g.ExpandWantSet([]FileID{bID})
	require.NoError(t, err)
	assert.Equal(t, 2, want.Len(), "the purely order-only producer must still be pulled into the want-set")
}

func TestExpandWantSetDetectsCycleThroughOrderOnlyInput(t *testing.T) {
	g := New()
	aID := g.FileFor("a").ID
	bID := g.FileFor("b").ID

	require.NoError(t, g.AddEdge(&Edge{Rule: "r1", Explicit: []FileID{bID}, Outputs: []FileID{aID}, Command: "x"}))
	require.NoError(t, g.AddEdge(&Edge{Rule: "r2", OrderOnly: []FileID{aID}, Outputs: []FileID{bID}, Command: "y"}))

	_, err := g.ExpandWantSet([]FileID{aID})
	require.Error(t, err)
	assert.True(t, builderrors.IsKind(err, builderrors.KindGraph))
}

func TestDefaultTargetsReturnsUnconsumedOutputs(t *testing.T) {
	g := New()
	aID := g.FileFor("a.c").ID
	bID := g.FileFor("b.o").ID
	cID := g.FileFor("app").ID

	require.NoError(t, g.AddEdge(&Edge{Rule: "cc", Explicit: []FileID{aID}, Outputs: []FileID{bID}, Command: "cc"}))
	require.NoError(t, g.AddEdge(&Edge{Rule: "link", Explicit: []FileID{bID}, Outputs: []FileID{cID}, Command: "ld"}))

	defaults := g.DefaultTargets()
	require.Len(t, defaults, 1)
	assert.Equal(t, cID, defaults[0])
}

func TestValidateTargetAcceptsExistingSourceFile(t *testing.T) {
	dir := t.TempDir()
	g := New()
	p := filepath.Join(dir, "src.c")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	id := g.FileFor(p).ID
	cache := filestate.New()
	assert.NoError(t, ValidateTarget(g, id, cache))
}

func TestValidateTargetRejectsMissingSourceFile(t *testing.T) {
	g := New()
	id := g.FileFor("/nonexistent/does-not-exist.c").ID
	cache := filestate.New()
	err := ValidateTarget(g, id, cache)
	require.Error(t, err)
	assert.True(t, builderrors.IsKind(err, builderrors.KindGraph))
}

