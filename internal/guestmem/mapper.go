// Package guestmem implements the guest address space shared by all
// interpreter threads of one process: page-aligned regions of host memory
// addressed by guest virtual address.
package guestmem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zeebo/blake3"
)

const PageSize = 0x1000

var (
	ErrUnmapped   = errors.New("guestmem: address not mapped")
	ErrOverlap    = errors.New("guestmem: region overlaps an existing mapping")
	ErrMisaligned = errors.New("guestmem: region base is not page aligned")
)

// Region describes one mapping.
type Region struct {
	Name string
	Base uint64
	Size uint64
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return r.Base + r.Size
}

type region struct {
	Region
	data []byte
}

func (r *region) contains(addr, size uint64) bool {
	return addr >= r.Base && size <= r.Size && addr-r.Base <= r.Size-size
}

// Mapper owns the guest address space. Translations and data accesses are
// safe for concurrent use; Map and Unmap take the write lock. Unmapping a
// region while another thread still accesses it is the caller's error.
type Mapper struct {
	mu      sync.RWMutex
	regions []*region // sorted by Base
}

// New returns an empty address space.
func New() *Mapper {
	return &Mapper{}
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}

// Map creates a zero-filled region of at least size bytes at base.
func (m *Mapper) Map(base, size uint64, name string) error {
	if base%PageSize != 0 {
		return fmt.Errorf("%w: %#x", ErrMisaligned, base)
	}
	if size == 0 {
		return fmt.Errorf("guestmem: cannot map zero-size region %q", name)
	}
	size = alignUp(size, PageSize)
	if base+size < base {
		return fmt.Errorf("guestmem: region %q at %#x wraps the address space", name, base)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.regions {
		if base < r.End() && base+size > r.Base {
			return fmt.Errorf("%w: %q [%#x-%#x) and %q [%#x-%#x)",
				ErrOverlap, name, base, base+size, r.Name, r.Base, r.End())
		}
	}

	data, err := allocate(int(size))
	if err != nil {
		return fmt.Errorf("guestmem: allocate %q: %w", name, err)
	}

	m.regions = append(m.regions, &region{
		Region: Region{Name: name, Base: base, Size: size},
		data:   data,
	})
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].Base < m.regions[j].Base })
	return nil
}

// Unmap removes the region starting at base.
func (m *Mapper) Unmap(base uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.regions {
		if r.Base != base {
			continue
		}
		m.regions = append(m.regions[:i], m.regions[i+1:]...)
		return release(r.data)
	}
	return fmt.Errorf("%w: no region at %#x", ErrUnmapped, base)
}

// Close releases every region.
func (m *Mapper) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, r := range m.regions {
		if err := release(r.data); err != nil {
			errs = append(errs, err)
		}
	}
	m.regions = nil
	return errors.Join(errs...)
}

// Regions returns the current mappings in address order.
func (m *Mapper) Regions() []Region {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Region, len(m.regions))
	for i, r := range m.regions {
		out[i] = r.Region
	}
	return out
}

// lookup finds the region holding [addr, addr+size). Callers hold mu.
func (m *Mapper) lookup(addr, size uint64) (*region, uint64, bool) {
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].End() > addr })
	if i == len(m.regions) {
		return nil, 0, false
	}
	r := m.regions[i]
	if !r.contains(addr, size) {
		return nil, 0, false
	}
	return r, addr - r.Base, true
}

// Translate returns the host bytes backing [addr, addr+size). The access must
// lie within a single region.
func (m *Mapper) Translate(addr, size uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, off, ok := m.lookup(addr, size)
	if !ok {
		return nil, fmt.Errorf("%w: %#x (%d bytes)", ErrUnmapped, addr, size)
	}
	return r.data[off : off+size : off+size], nil
}

// ReadAt copies len(p) bytes of guest memory at addr into p.
func (m *Mapper) ReadAt(p []byte, addr uint64) error {
	b, err := m.Translate(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(p, b)
	return nil
}

// WriteAt copies p into guest memory at addr.
func (m *Mapper) WriteAt(p []byte, addr uint64) error {
	b, err := m.Translate(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(b, p)
	return nil
}

// Load reads a little-endian value of size 1, 2, 4 or 8 bytes.
func (m *Mapper) Load(addr uint64, size int) (uint64, error) {
	b, err := m.Translate(addr, uint64(size))
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 8:
		return binary.LittleEndian.Uint64(b), nil
	}
	return 0, fmt.Errorf("guestmem: invalid load size %d", size)
}

// Store writes a little-endian value of size 1, 2, 4 or 8 bytes.
func (m *Mapper) Store(addr uint64, size int, v uint64) error {
	b, err := m.Translate(addr, uint64(size))
	if err != nil {
		return err
	}
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	default:
		return fmt.Errorf("guestmem: invalid store size %d", size)
	}
	return nil
}

// Digest hashes the layout and contents of every region.
func (m *Mapper) Digest() [32]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := blake3.New()
	var hdr [16]byte
	for _, r := range m.regions {
		binary.LittleEndian.PutUint64(hdr[0:], r.Base)
		binary.LittleEndian.PutUint64(hdr[8:], r.Size)
		h.Write(hdr[:])
		h.Write(r.data)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
