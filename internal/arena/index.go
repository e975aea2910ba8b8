package arena

import "fmt"

const DefaultIndexSize = 4096

type indexEntry struct {
	slot Slot
	gen  uint32
}

// Index maps node IDs to arena slots for the current pass. Entries written
// in an earlier pass are invisible after Reset.
type Index struct {
	entries []indexEntry
	gen     uint32
}

// NewIndex creates an index with room for size nodes.
func NewIndex(size int) *Index {
	if size <= 0 {
		size = DefaultIndexSize
	}
	return &Index{entries: make([]indexEntry, size), gen: 1}
}

// Reset empties the index and ensures it can hold n nodes. The backing array
// grows to max(2*cap, n) when too small and is never shrunk.
func (x *Index) Reset(n int) {
	if n > len(x.entries) {
		size := len(x.entries) * 2
		if size < n {
			size = n
		}
		x.entries = make([]indexEntry, size)
		x.gen = 0
	}
	x.gen++
	if x.gen == 0 {
		// generation counter wrapped, clear stale entries
		clear(x.entries)
		x.gen = 1
	}
}

// Cap returns the number of nodes the index can hold.
func (x *Index) Cap() int {
	return len(x.entries)
}

// Set records the slot of node id.
func (x *Index) Set(id uint32, s Slot) {
	x.entries[id] = indexEntry{slot: s, gen: x.gen}
}

// Lookup returns the slot of node id and whether it was written this pass.
func (x *Index) Lookup(id uint32) (Slot, bool) {
	if int(id) >= len(x.entries) {
		return Slot{}, false
	}
	e := x.entries[id]
	if e.gen != x.gen {
		return Slot{}, false
	}
	return e.slot, true
}

// Get is Lookup for callers that rely on the program ordering invariant. It
// panics if the node has no slot this pass.
func (x *Index) Get(id uint32) Slot {
	s, ok := x.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("arena: node %d read before it was written", id))
	}
	return s
}
