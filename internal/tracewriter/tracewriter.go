// Package tracewriter implements an observer.Observer that records a
// build as a Chrome Trace Event JSON file (the "-d trace" flag), so a
// build's edge timings can be inspected in chrome://tracing or any other
// Trace Event viewer.
package tracewriter

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/n2go/n2go/internal/observer"
)

// Event is one Chrome Trace Event, the "Complete" ("X") phase variant:
// a single span with a start timestamp and a duration, both in
// microseconds per the format's convention.
type Event struct {
	Name string            `json:"name"`
	Cat  string            `json:"cat"`
	Ph   string            `json:"ph"`
	Ts   int64             `json:"ts"`
	Dur  int64             `json:"dur,omitempty"`
	Pid  int               `json:"pid"`
	Tid  int               `json:"tid"`
	Args map[string]string `json:"args,omitempty"`
}

// Writer accumulates events in memory and writes them out as a single
// JSON array on Close. It implements observer.Observer; the coordinator
// serializes every call so no locking would be strictly required, but a
// mutex is kept since nothing prevents a Writer from being reused
// outside that guarantee (e.g. shared across builds in a test).
type Writer struct {
	mu     sync.Mutex
	path   string
	epoch  time.Time
	events []Event
	tid    int // monotonically assigned per concurrently-running edge slot
	free   []int
	slots  map[string]int // output path -> assigned tid, for the matching OnEdgeFinished
}

// New creates a Writer that will write its trace to path on Close.
func New(path string) *Writer {
	return &Writer{path: path, epoch: time.Now(), slots: make(map[string]int)}
}

func (w *Writer) microsSince(at time.Time) int64 {
	return at.Sub(w.epoch).Microseconds()
}

func key(e observer.EdgeInfo) string {
	if len(e.Outputs) == 0 {
		return e.Rule
	}
	return e.Outputs[0]
}

// OnEdgeWanted implements observer.Observer; tracing only records
// execution, not want-set membership, so this is a no-op.
func (w *Writer) OnEdgeWanted(int64, observer.EdgeInfo) {}

func (w *Writer) OnEdgeStarted(_ int64, e observer.EdgeInfo, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var tid int
	if len(w.free) > 0 {
		tid = w.free[len(w.free)-1]
		w.free = w.free[:len(w.free)-1]
	} else {
		tid = w.tid
		w.tid++
	}
	w.slots[key(e)] = tid
}

func (w *Writer) OnEdgeFinished(_ int64, e observer.EdgeInfo, at time.Time, dur time.Duration, success bool, stdout, stderr []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tid, ok := w.slots[key(e)]
	if !ok {
		tid = 0
	} else {
		delete(w.slots, key(e))
		w.free = append(w.free, tid)
	}

	args := map[string]string{"command": e.Command}
	if !success {
		args["status"] = "failed"
	}
	w.events = append(w.events, Event{
		Name: e.Rule,
		Cat:  "build",
		Ph:   "X",
		Ts:   w.microsSince(at.Add(-dur)),
		Dur:  dur.Microseconds(),
		Pid:  1,
		Tid:  tid,
		Args: args,
	})
}

func (w *Writer) OnBuildDone(built, failed int) {}

// Close writes the accumulated trace to disk as a Chrome Trace Event
// JSON array (the bare-array form, with no {"traceEvents": ...} object
// wrapper).
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.Create(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	return enc.Encode(w.events)
}
