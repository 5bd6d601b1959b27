package tracewriter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n2go/n2go/internal/observer"
)

func TestWriterRecordsCompleteEventsPerEdge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	w := New(path)

	info := observer.EdgeInfo{Outputs: []string{"out.o"}, Rule: "cc", Command: "cc -c in.c"}
	start := time.Now()
	w.OnEdgeStarted(1, info, start)
	w.OnEdgeFinished(2, info, start.Add(10*time.Millisecond), 10*time.Millisecond, true, nil, nil)

	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal(data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "cc", events[0].Name)
	assert.Equal(t, "X", events[0].Ph)
	assert.Equal(t, int64(10000), events[0].Dur)
}

func TestWriterReusesThreadSlotsAfterEdgeFinishes(t *testing.T) {
	dir := t.TempDir()
	w := New(filepath.Join(dir, "trace.json"))

	a := observer.EdgeInfo{Outputs: []string{"a.o"}, Rule: "cc"}
	b := observer.EdgeInfo{Outputs: []string{"b.o"}, Rule: "cc"}

	now := time.Now()
	w.OnEdgeStarted(1, a, now)
	w.OnEdgeFinished(2, a, now, time.Millisecond, true, nil, nil)
	w.OnEdgeStarted(3, b, now)
	w.OnEdgeFinished(4, b, now, time.Millisecond, true, nil, nil)

	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "trace.json"))
	require.NoError(t, err)
	var events []Event
	require.NoError(t, json.Unmarshal(data, &events))
	require.Len(t, events, 2)
	assert.Equal(t, events[0].Tid, events[1].Tid, "the freed slot from the first edge should be reused, not grow unboundedly")
}
