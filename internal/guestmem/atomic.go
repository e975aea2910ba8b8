package guestmem

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// splitMu serialises compare-and-swap accesses that cannot be expressed as a
// single host atomic: misaligned or word-straddling operands, and every CAS on
// big-endian hosts where guest byte order differs from the host word order.
// Native atomics hold it shared, so a split CAS never interleaves with a
// native CAS on any of its bytes.
var splitMu sync.RWMutex

// CompareAndSwap atomically replaces the size-byte little-endian value at addr
// with desired if it equals expected. It returns the value that was in memory
// before the operation and whether the swap happened. Only the low size bytes
// of expected and desired are used.
func (m *Mapper) CompareAndSwap(addr uint64, size int, expected, desired uint64) (actual uint64, swapped bool, err error) {
	switch size {
	case 1, 2, 4, 8:
	default:
		return 0, false, fmt.Errorf("guestmem: invalid CAS size %d", size)
	}

	mask := ^uint64(0)
	if size < 8 {
		mask = uint64(1)<<(8*size) - 1
	}
	expected &= mask
	desired &= mask

	m.mu.RLock()
	defer m.mu.RUnlock()

	r, off, ok := m.lookup(addr, uint64(size))
	if !ok {
		return 0, false, fmt.Errorf("%w: %#x (%d byte CAS)", ErrUnmapped, addr, size)
	}

	actual, swapped = casRegion(r.data, off, size, expected, desired)
	return actual, swapped, nil
}

func casRegion(data []byte, off uint64, size int, expected, desired uint64) (uint64, bool) {
	if !cpu.IsBigEndian {
		splitMu.RLock()
		actual, swapped, ok := casNative(data, off, size, expected, desired)
		splitMu.RUnlock()
		if ok {
			return actual, swapped
		}
	}
	return casLocked(data[off:off+uint64(size)], expected, desired)
}

// casNative performs the CAS with a host atomic. ok is false when the operand
// has no native form.
func casNative(data []byte, off uint64, size int, expected, desired uint64) (actual uint64, swapped, ok bool) {
	p := unsafe.Pointer(&data[off])
	hostAddr := uintptr(p)

	switch size {
	case 8:
		if hostAddr%8 == 0 {
			actual, swapped = cas64((*uint64)(p), expected, desired)
			return actual, swapped, true
		}
	case 4:
		if hostAddr%4 == 0 {
			v, swapped := cas32((*uint32)(p), uint32(expected), uint32(desired))
			return uint64(v), swapped, true
		}
	case 1, 2:
		// Operate on the containing aligned word when the operand does
		// not straddle it and the word lies inside the region.
		shift := hostAddr % 4
		wordOff := off - uint64(shift)
		if shift+uintptr(size) <= 4 && off >= uint64(shift) && wordOff+4 <= uint64(len(data)) {
			word := (*uint32)(unsafe.Pointer(&data[wordOff]))
			mask := uint32(1)<<(8*size) - 1
			v, swapped := casInWord(word, uint(shift*8), mask, uint32(expected), uint32(desired))
			return uint64(v), swapped, true
		}
	}
	return 0, false, false
}

func cas64(p *uint64, expected, desired uint64) (uint64, bool) {
	for {
		if atomic.CompareAndSwapUint64(p, expected, desired) {
			return expected, true
		}
		// Retry if the value changed back to expected between the failed
		// swap and the load.
		if cur := atomic.LoadUint64(p); cur != expected {
			return cur, false
		}
	}
}

func cas32(p *uint32, expected, desired uint32) (uint32, bool) {
	for {
		if atomic.CompareAndSwapUint32(p, expected, desired) {
			return expected, true
		}
		if cur := atomic.LoadUint32(p); cur != expected {
			return cur, false
		}
	}
}

// casInWord performs a CAS on the masked field at shift within *word while
// leaving the neighbouring bytes untouched.
func casInWord(word *uint32, shift uint, mask, expected, desired uint32) (uint32, bool) {
	for {
		old := atomic.LoadUint32(word)
		cur := (old >> shift) & mask
		if cur != expected {
			return cur, false
		}
		next := old&^(mask<<shift) | (desired&mask)<<shift
		if atomic.CompareAndSwapUint32(word, old, next) {
			return expected, true
		}
	}
}

func casLocked(b []byte, expected, desired uint64) (uint64, bool) {
	splitMu.Lock()
	defer splitMu.Unlock()

	var buf [8]byte
	copy(buf[:], b)
	cur := binary.LittleEndian.Uint64(buf[:])
	if cur != expected {
		return cur, false
	}
	binary.LittleEndian.PutUint64(buf[:], desired)
	copy(b, buf[:len(b)])
	return expected, true
}
