// Package scheduler implements the single-writer coordinator that drives
// a build to completion: it owns the graph, caches, and logs exclusively,
// dispatches ready edges to a bounded set of command executors, and
// applies each completion's effects (restat, log writes, dependent
// unblocking) before deciding what becomes ready next.
package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/n2go/n2go/internal/buildlog"
	"github.com/n2go/n2go/internal/depfile"
	"github.com/n2go/n2go/internal/depslog"
	"github.com/n2go/n2go/internal/filestate"
	"github.com/n2go/n2go/internal/graph"
	"github.com/n2go/n2go/internal/observer"
	"github.com/n2go/n2go/internal/spawner"
	"go.uber.org/zap"
)

type edgeID = graph.EdgeID

type state int

const (
	stateWant state = iota
	stateReady
	stateRunning
	stateDone
)

// consolePool is the implicit pool forcing serial execution, per spec
// §4.5.
const consolePool = "console"

type poolState struct {
	depth    int // 0 means unbounded
	inflight int
}

// Config bundles a coordinator's dependencies and per-run options.
type Config struct {
	Graph    *graph.Graph
	Cache    *filestate.Cache
	BuildLog *buildlog.Log
	DepsLog  *depslog.Log // nil if no edge in this build declares deps/depfile
	Spawner  spawner.Spawner
	Observer observer.Observer

	// Logger receives "-d explain"-style diagnostics: which staleness
	// predicate fired for each dirty edge. A nil Logger disables this
	// (the coordinator itself never requires one).
	Logger *zap.Logger

	// PoolDepths overrides the depth of named pools (beyond the implicit
	// console pool, which is always depth 1). A pool not named here is
	// unbounded.
	PoolDepths map[string]int

	// KeepGoing is -k N: how many command failures to tolerate before
	// stopping dispatch. <= 0 means stop at the first failure.
	KeepGoing int
}

type completion struct {
	id        edgeID
	start, end time.Time
	res       spawner.Result
}

// Summary is the terminal result of one build run.
type Summary struct {
	Built  int
	Failed int
	// Err is nil unless want-set expansion failed (a GraphError such as a
	// cycle) or the keep-going budget ran out (*BudgetExceededError). An
	// error from one edge's staleness check counts as that edge's failure.
	Err error
}

// Coordinator runs a single build. It is not safe for concurrent Run
// calls, and Run must be called from exactly one goroutine — the same
// single-writer discipline as the rest of the corpus's event loops.
type Coordinator struct {
	g     *graph.Graph
	cache *filestate.Cache
	blog  *buildlog.Log
	dlog  *depslog.Log
	sp    spawner.Spawner
	obs   observer.Observer
	log   *zap.Logger
	clock *Clock

	ctx context.Context // set for the duration of Run; read by goroutines it starts

	states     map[edgeID]state
	unmet      map[edgeID]int
	cleanEdges map[edgeID]bool
	pools      map[string]*poolState
	poolWait   map[string][]edgeID
	ready      *readyQueue
	running    int

	completions chan completion

	budget    *failBudget
	exhausted bool
	cancelled bool
	built     int
	failed    int
}

// New creates a Coordinator for one build run.
func New(cfg Config) *Coordinator {
	obs := cfg.Observer
	if obs == nil {
		obs = observer.Nop{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		g:           cfg.Graph,
		cache:       cfg.Cache,
		blog:        cfg.BuildLog,
		dlog:        cfg.DepsLog,
		sp:          cfg.Spawner,
		obs:         obs,
		log:         log,
		clock:       NewClock(),
		states:      make(map[edgeID]state),
		unmet:       make(map[edgeID]int),
		cleanEdges:  make(map[edgeID]bool),
		pools:       make(map[string]*poolState),
		poolWait:    make(map[string][]edgeID),
		ready:       newReadyQueue(),
		completions: make(chan completion),
		budget:      newFailBudget(cfg.KeepGoing),
	}
	c.pools[consolePool] = &poolState{depth: 1}
	for name, depth := range cfg.PoolDepths {
		c.pools[name] = &poolState{depth: depth}
	}
	return c
}

// Run expands the want-set from targets and drives every wanted edge to
// Done, respecting pool limits and the keep-going budget, then returns a
// Summary. ctx cancellation (SIGINT) stops new dispatch; in-flight
// commands are drained and their results still applied to the logs.
func (c *Coordinator) Run(ctx context.Context, targets []graph.FileID) Summary {
	c.ctx = ctx
	want, err := c.g.ExpandWantSet(targets)
	if err != nil {
		return Summary{Err: err}
	}

	for _, id := range want.Edges() {
		c.states[id] = stateWant
		c.seedDiscoveredDeps(c.g.Edge(id))
	}
	for _, id := range want.Edges() {
		c.unmet[id] = c.countUnmetInputs(id, want)
		if c.unmet[id] == 0 {
			c.states[id] = stateReady
			c.ready.Push(id)
		}
		seq := c.clock.Next()
		c.obs.OnEdgeWanted(seq, edgeInfoOf(c.g, c.g.Edge(id)))
	}

	c.drive(ctx)

	c.obs.OnBuildDone(c.built, c.failed)

	var runErr error
	if c.exhausted {
		runErr = &BudgetExceededError{Failed: c.budget.Failed(), Limit: c.budget.limit}
	}
	return Summary{Built: c.built, Failed: c.failed, Err: runErr}
}

// countUnmetInputs counts the distinct producing edges, among id's
// inputs, that are themselves in the want-set and not yet Done.
func (c *Coordinator) countUnmetInputs(id edgeID, want *graph.WantSet) int {
	e := c.g.Edge(id)
	producers := make(map[edgeID]bool)
	for _, fid := range e.OrderingInputs() {
		f := c.g.File(fid)
		if f.InputEdge == graph.NoEdge || !want.Contains(f.InputEdge) {
			continue
		}
		producers[f.InputEdge] = true
	}
	return len(producers)
}

// drive is the coordinator's main loop: dispatch everything currently
// dispatchable, then block for the next completion or cancellation.
func (c *Coordinator) drive(ctx context.Context) {
	for {
		stopping := c.cancelled || c.exhausted
		if !stopping {
			c.dispatchReady()
		}
		// Once dispatch has stopped for good, anything still sitting in
		// ready or poolWait will never be drained — only in-flight
		// commands are worth waiting on.
		if c.running == 0 && (stopping || c.ready.Len() == 0) {
			return
		}

		select {
		case <-ctx.Done():
			c.cancelled = true
			// No new dispatch happens now that cancelled is set, but
			// in-flight commands still must be drained and their results
			// applied to the logs, per spec's cancellation semantics.
			if c.running == 0 {
				return
			}
			comp := <-c.completions
			c.running--
			c.apply(comp)
		case comp := <-c.completions:
			c.running--
			c.apply(comp)
		}
	}
}

// dispatchReady starts every edge whose pool has room, pulling from the
// ready queue in FIFO order and parking pool-blocked edges in poolWait.
func (c *Coordinator) dispatchReady() {
	for {
		id, ok := c.ready.TryPop()
		if !ok {
			return
		}
		c.tryStart(id)
	}
}

func (c *Coordinator) tryStart(id edgeID) {
	e := c.g.Edge(id)
	pool := c.poolFor(e)
	if pool.depth > 0 && pool.inflight >= pool.depth {
		c.poolWait[e.Pool] = append(c.poolWait[e.Pool], id)
		return
	}
	c.startEdge(id, e, pool)
}

func (c *Coordinator) poolFor(e *graph.Edge) *poolState {
	name := e.Pool
	if name == "" {
		p, ok := c.pools[""]
		if !ok {
			p = &poolState{depth: 0}
			c.pools[""] = p
		}
		return p
	}
	p, ok := c.pools[name]
	if !ok {
		p = &poolState{depth: 0}
		c.pools[name] = p
	}
	return p
}

// startEdge evaluates E's staleness and either finishes it immediately
// (Clean, or phony) or spawns its command.
func (c *Coordinator) startEdge(id edgeID, e *graph.Edge, pool *poolState) {
	status, reason, err := graph.Check(c.g, e, c.cache, c.blog, c.cleanEdges)
	if err != nil {
		c.failed++
		c.obs.OnEdgeFinished(c.clock.Next(), edgeInfoOf(c.g, e), time.Now(), 0, false, nil, []byte(err.Error()))
		c.finishWithoutCommand(id, false)
		c.recordFailure()
		return
	}

	if status == graph.Dirty && !e.IsPhony() {
		c.log.Debug("edge dirty", zap.Strings("outputs", pathsOf(c.g, e.AllOutputs())), zap.String("reason", string(reason)))
	}

	if e.IsPhony() || status == graph.Clean {
		c.obs.OnEdgeFinished(c.clock.Next(), edgeInfoOf(c.g, e), time.Now(), 0, status == graph.Clean, nil, nil)
		c.finishWithoutCommand(id, status == graph.Clean)
		if status == graph.Clean {
			c.built++
		}
		return
	}

	pool.inflight++
	c.running++
	c.states[id] = stateRunning
	start := time.Now()
	seq := c.clock.Next()
	c.obs.OnEdgeStarted(seq, edgeInfoOf(c.g, e), start)

	go func() {
		res := c.sp.Run(c.ctx, "", e.Command)
		c.completions <- completion{id: id, start: start, end: time.Now(), res: res}
	}()
}

// apply processes one command completion: reports it, applies success
// effects (restat, depfile/deps ingestion, BuildLog append), frees the
// edge's pool slot, promotes any edge that was waiting on that slot, and
// unblocks dependents.
func (c *Coordinator) apply(comp completion) {
	e := c.g.Edge(comp.id)
	pool := c.poolFor(e)
	pool.inflight--

	success := comp.res.Success()
	seq := c.clock.Next()
	c.obs.OnEdgeFinished(seq, edgeInfoOf(c.g, e), comp.end, comp.end.Sub(comp.start), success, comp.res.Stdout, comp.res.Stderr)

	if success {
		c.onSuccess(e)
		c.built++
	} else {
		c.failed++
		c.recordFailure()
	}

	c.finishWithoutCommand(comp.id, success)
	if !c.cancelled && !c.exhausted {
		c.promotePoolWaiting(e.Pool, pool)
	}
}

func (c *Coordinator) recordFailure() {
	if c.budget.RecordFailure() {
		c.exhausted = true
	}
}

// promotePoolWaiting starts as many pool-blocked edges as the freed
// capacity allows, FIFO within the pool.
func (c *Coordinator) promotePoolWaiting(poolName string, pool *poolState) {
	waiting := c.poolWait[poolName]
	for len(waiting) > 0 && (pool.depth == 0 || pool.inflight < pool.depth) {
		id := waiting[0]
		waiting = waiting[1:]
		c.startEdge(id, c.g.Edge(id), pool)
	}
	c.poolWait[poolName] = waiting
}

// finishWithoutCommand marks id Done and records its clean/dirty-but-ok
// status for sibling phony checks. Dependents are unblocked only on
// success: a failed edge's outputs cannot be trusted, so anything
// downstream of it must never be scheduled, the same "skip the subtree"
// behavior Ninja itself applies under -k.
func (c *Coordinator) finishWithoutCommand(id edgeID, success bool) {
	c.states[id] = stateDone
	c.cleanEdges[id] = success
	if !success {
		return
	}

	e := c.g.Edge(id)
	deps := make(map[edgeID]bool)
	for _, fid := range e.AllOutputs() {
		f := c.g.File(fid)
		for _, d := range f.DependentEdges {
			deps[d] = true
		}
	}
	for d := range deps {
		if c.states[d] != stateWant {
			continue
		}
		c.unmet[d]--
		if c.unmet[d] <= 0 {
			c.states[d] = stateReady
			c.ready.Push(d)
		}
	}
}

// onSuccess applies the effects of a successfully run command: restat
// outputs, ingest discovered deps, and append BuildLog records honoring
// the restat rule.
func (c *Coordinator) onSuccess(e *graph.Edge) {
	var newestInput time.Time
	for _, fid := range e.AllInputs() {
		f := c.g.File(fid)
		s, err := c.cache.Stat(fid, f.Path)
		if err == nil && !s.Missing && s.MTime.After(newestInput) {
			newestInput = s.MTime
		}
	}

	if e.Depfile != "" {
		c.ingestDepfile(e)
	}

	hash := e.CommandHash()
	for _, fid := range e.AllOutputs() {
		f := c.g.File(fid)
		s, err := c.cache.Restat(fid, f.Path)
		if err != nil {
			continue
		}
		var mtimeNS int64
		switch {
		case s.Missing:
			mtimeNS = 0
		case e.Restat:
			mtimeNS = graph.RestatMTime(s.MTime, newestInput).UnixNano()
		default:
			mtimeNS = s.MTime.UnixNano()
		}
		_ = c.blog.Append(f.Path, buildlog.Record{MTimeNS: mtimeNS, Hash: hash})
	}
}

// ingestDepfile reads, parses, and deletes E's depfile, promoting its
// prerequisites to discovered (implicit) inputs and recording them in
// DepsLog as if `deps = gcc` had produced them, per spec §4.3.
func (c *Coordinator) ingestDepfile(e *graph.Edge) {
	data, err := os.ReadFile(e.Depfile)
	if err != nil {
		return
	}
	parsed, err := depfile.Parse(data)
	if err != nil {
		return
	}

	ids := make([]graph.FileID, 0, len(parsed.Inputs))
	for _, p := range parsed.Inputs {
		ids = append(ids, c.g.FileFor(p).ID)
	}
	e.DiscoveredDeps = ids

	if c.dlog != nil && len(e.Outputs) > 0 {
		outFile := c.g.File(e.Outputs[0])
		if s, err := c.cache.Restat(e.Outputs[0], outFile.Path); err == nil {
			_ = c.dlog.Record(outFile.Path, s.MTime.UnixNano(), parsed.Inputs)
		}
	}

	_ = os.Remove(e.Depfile)
}

// seedDiscoveredDeps loads any previously recorded DepsLog entry for an
// edge declaring `deps`, before its first staleness check.
func (c *Coordinator) seedDiscoveredDeps(e *graph.Edge) {
	if e.DepsMode == "" || c.dlog == nil || len(e.Outputs) == 0 {
		return
	}
	d, ok := c.dlog.Lookup(c.g.Interner.Path(e.Outputs[0]))
	if !ok {
		return
	}
	ids := make([]graph.FileID, 0, len(d.Inputs))
	for _, p := range d.Inputs {
		ids = append(ids, c.g.FileFor(p).ID)
	}
	e.DiscoveredDeps = ids
}

func pathsOf(g *graph.Graph, ids []graph.FileID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.Interner.Path(id)
	}
	return out
}

func edgeInfoOf(g *graph.Graph, e *graph.Edge) observer.EdgeInfo {
	outs := make([]string, len(e.Outputs))
	for i, fid := range e.Outputs {
		outs[i] = g.Interner.Path(fid)
	}
	return observer.EdgeInfo{Outputs: outs, Rule: e.Rule, Command: e.Command}
}
