// Package arena holds the per-pass scratch storage of the interpreter: a
// growable byte arena that stores every node result, and an index from node
// IDs to their slots.
package arena

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/tinyrange/irvm/internal/numeric"
)

const (
	// MinSlotSize is the smallest allocation. It leaves room for a full
	// 128-bit result regardless of the node's declared size.
	MinSlotSize = 16

	DefaultSize = 4096 * 32
)

// Slot is a location inside an Arena.
type Slot struct {
	Off  int
	Size int
}

// End returns the offset one past the slot.
func (s Slot) End() int {
	return s.Off + s.Size
}

// Arena is a bump allocator over a single byte buffer. Allocations are never
// freed individually; Reset discards all of them at once.
type Arena struct {
	buf []byte
	off int
}

// New creates an arena with the given initial capacity in bytes.
func New(size int) *Arena {
	if size < MinSlotSize {
		size = DefaultSize
	}
	return &Arena{buf: make([]byte, size)}
}

// Reset logically empties the arena. Capacity is retained.
func (a *Arena) Reset() {
	a.off = 0
}

// Cap returns the current capacity in bytes.
func (a *Arena) Cap() int {
	return len(a.buf)
}

// Used returns the number of bytes handed out since the last Reset, including
// alignment padding.
func (a *Arena) Used() int {
	return a.off
}

// Alloc carves a slot of at least size bytes, aligned to its size rounded up
// to a power of two. The buffer doubles until the slot fits; bytes of earlier
// slots are preserved.
func (a *Arena) Alloc(size int) Slot {
	if size < MinSlotSize {
		size = MinSlotSize
	}

	base := alignUp(a.off, 1<<bits.Len(uint(size-1)))
	end := base + size

	if end > len(a.buf) {
		newSize := len(a.buf) * 2
		for newSize < end {
			newSize *= 2
		}
		buf := make([]byte, newSize)
		copy(buf, a.buf[:a.off])
		a.buf = buf
	}

	a.off = end
	return Slot{Off: base, Size: size}
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}

func (a *Arena) check(s Slot, n int) {
	if n > s.Size || s.Off < 0 || s.Off+n > a.off {
		panic(fmt.Sprintf("arena: access of %d bytes outside slot [%d, %d)", n, s.Off, s.End()))
	}
}

// Bytes returns the slot's storage. The slice is only valid until the next
// Alloc, which may move the buffer.
func (a *Arena) Bytes(s Slot) []byte {
	a.check(s, s.Size)
	return a.buf[s.Off:s.End():s.End()]
}

// Prefix returns the first n bytes of the slot.
func (a *Arena) Prefix(s Slot, n int) []byte {
	a.check(s, n)
	return a.buf[s.Off : s.Off+n : s.Off+n]
}

func (a *Arena) Uint8(s Slot) uint8 {
	a.check(s, 1)
	return a.buf[s.Off]
}

func (a *Arena) Uint64(s Slot) uint64 {
	a.check(s, 8)
	return binary.LittleEndian.Uint64(a.buf[s.Off:])
}

func (a *Arena) Uint128(s Slot) numeric.Uint128 {
	a.check(s, 16)
	return numeric.Uint128{
		Lo: binary.LittleEndian.Uint64(a.buf[s.Off:]),
		Hi: binary.LittleEndian.Uint64(a.buf[s.Off+8:]),
	}
}

func (a *Arena) PutUint64(s Slot, v uint64) {
	a.check(s, 8)
	binary.LittleEndian.PutUint64(a.buf[s.Off:], v)
}

func (a *Arena) PutUint128(s Slot, v numeric.Uint128) {
	a.check(s, 16)
	binary.LittleEndian.PutUint64(a.buf[s.Off:], v.Lo)
	binary.LittleEndian.PutUint64(a.buf[s.Off+8:], v.Hi)
}
