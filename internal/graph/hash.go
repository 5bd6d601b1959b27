package graph

import (
	"github.com/cespare/xxhash/v2"
)

// unitSeparator delimits the attributes folded into a command hash, the
// same separator discipline original_source's TerseHash uses (a literal
// byte that can't appear in a shell command or a binding value on its
// own, so two different (command, bindings) pairs can't collide by
// concatenation alone).
const unitSeparator = 0x1F

// CommandHash computes the 64-bit hash identifying a particular build
// command: the resolved command string plus the key bindings that also
// affect whether a rebuild is needed (rspfile_content, depfile, deps).
// Any 64-bit non-cryptographic hash with good avalanche suffices per the
// design notes; xxhash is used here. This is intentionally not
// cross-compatible with Ninja's own .ninja_log hash — an n2go-only log is
// acceptable per spec.
func CommandHash(command string, bindings map[string]string) uint64 {
	h := xxhash.New()
	writeField(h, command)
	writeField(h, bindings["rspfile_content"])
	writeField(h, bindings["depfile"])
	writeField(h, bindings["deps"])
	return h.Sum64()
}

func writeField(h *xxhash.Digest, s string) {
	_, _ = h.Write([]byte(s))
	_, _ = h.Write([]byte{unitSeparator})
}

// CommandHash returns the edge's command hash, computing and caching it on
// first call per spec's "computed once on first staleness check and
// reused."
func (e *Edge) CommandHash() uint64 {
	if !e.commandHashSet {
		e.commandHash = CommandHash(e.Command, e.Bindings)
		e.commandHashSet = true
	}
	return e.commandHash
}
