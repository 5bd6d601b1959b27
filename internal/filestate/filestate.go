// Package filestate implements the FileStateCache: a memoization layer
// over os.Stat so each file is inspected by the filesystem at most once
// per logical "stat" (initial stat, or an explicit Restat after an edge
// that produced the file completes).
package filestate

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/n2go/n2go/internal/pathutil"
)

// State is a file's current freshness.
type State struct {
	Missing bool
	MTime   time.Time // valid only if !Missing
}

// Cache memoizes per-path existence and modification time. It never
// shrinks during a build: entries are only ever added or refreshed
// in-place via Restat, never evicted — an LRU would violate that
// invariant, so a plain mutex-guarded map is used instead of an evicting
// cache (see DESIGN.md).
type Cache struct {
	mu       sync.Mutex
	entries  map[pathutil.FileID]State
	statFn   func(path string) (os.FileInfo, error)
	statCnt  int // number of real stat() syscalls issued, for tests/diagnostics
}

// New creates an empty Cache backed by the real filesystem.
func New() *Cache {
	return &Cache{
		entries: make(map[pathutil.FileID]State),
		statFn:  os.Stat,
	}
}

// NewWithStat creates a Cache backed by a custom stat function, for tests
// that want to simulate filesystem state without touching disk.
func NewWithStat(statFn func(path string) (os.FileInfo, error)) *Cache {
	return &Cache{
		entries: make(map[pathutil.FileID]State),
		statFn:  statFn,
	}
}

// Stat returns the cached state for id, performing a real stat on first
// use and memoizing the result. path is the file's canonical path, needed
// only for the (rare) first stat.
func (c *Cache) Stat(id pathutil.FileID, path string) (State, error) {
	c.mu.Lock()
	if s, ok := c.entries[id]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	s, err := c.doStat(path)
	if err != nil {
		return State{}, err
	}

	c.mu.Lock()
	c.entries[id] = s
	c.mu.Unlock()
	return s, nil
}

// Restat forces a re-stat of id, overwriting the memoized entry. Used
// after an edge completes, for each of its outputs.
func (c *Cache) Restat(id pathutil.FileID, path string) (State, error) {
	s, err := c.doStat(path)
	if err != nil {
		return State{}, err
	}
	c.mu.Lock()
	c.entries[id] = s
	c.mu.Unlock()
	return s, nil
}

func (c *Cache) doStat(path string) (State, error) {
	c.mu.Lock()
	c.statCnt++
	c.mu.Unlock()

	info, err := c.statFn(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return State{Missing: true}, nil
		}
		// Anything other than ENOENT/ENOTDIR is a StatError fatal to the
		// edge, per spec — propagate it for the caller to wrap.
		return State{}, err
	}
	return State{MTime: info.ModTime()}, nil
}

// StatCount returns the number of real stat syscalls issued so far, for
// tests asserting the "one logical stat per file per build" invariant.
func (c *Cache) StatCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statCnt
}
