// Package observer defines the narrow event-sink capability the
// scheduler reports progress through. The coordinator serializes every
// call to an Observer — events for a single build arrive in a
// consistent, single-threaded sequence regardless of how many edges run
// concurrently — so implementations need no locking of their own.
package observer

import "time"

// EdgeInfo is the static description of an edge passed to observer
// callbacks, cheap enough to copy: the output paths and the rule name,
// nothing that requires looking back into the graph.
type EdgeInfo struct {
	Outputs []string
	Rule    string
	Command string
}

// Observer receives progress events from a single build run, in
// sequence order (see scheduler.Clock).
type Observer interface {
	// OnEdgeWanted fires once per edge, when want-set expansion marks it.
	OnEdgeWanted(seq int64, e EdgeInfo)
	// OnEdgeStarted fires when an edge transitions Ready -> Running.
	OnEdgeStarted(seq int64, e EdgeInfo, at time.Time)
	// OnEdgeFinished fires when an edge reaches Done, whether it ran and
	// succeeded, failed, or needed no command (phony/clean).
	OnEdgeFinished(seq int64, e EdgeInfo, at time.Time, dur time.Duration, success bool, stdout, stderr []byte)
	// OnBuildDone fires exactly once, after the coordinator has stopped
	// dispatching and every in-flight command has finished draining.
	OnBuildDone(built, failed int)
}

// Multi fans events out to several observers, in declaration order.
type Multi []Observer

func (m Multi) OnEdgeWanted(seq int64, e EdgeInfo) {
	for _, o := range m {
		o.OnEdgeWanted(seq, e)
	}
}

func (m Multi) OnEdgeStarted(seq int64, e EdgeInfo, at time.Time) {
	for _, o := range m {
		o.OnEdgeStarted(seq, e, at)
	}
}

func (m Multi) OnEdgeFinished(seq int64, e EdgeInfo, at time.Time, dur time.Duration, success bool, stdout, stderr []byte) {
	for _, o := range m {
		o.OnEdgeFinished(seq, e, at, dur, success, stdout, stderr)
	}
}

func (m Multi) OnBuildDone(built, failed int) {
	for _, o := range m {
		o.OnBuildDone(built, failed)
	}
}

// Nop is an Observer that discards every event.
type Nop struct{}

func (Nop) OnEdgeWanted(int64, EdgeInfo)                                               {}
func (Nop) OnEdgeStarted(int64, EdgeInfo, time.Time)                                    {}
func (Nop) OnEdgeFinished(int64, EdgeInfo, time.Time, time.Duration, bool, []byte, []byte) {}
func (Nop) OnBuildDone(int, int)                                                        {}
