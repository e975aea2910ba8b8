// Package snapshot saves and restores the architectural state of a set of
// threads together with the guest memory they share.
//
// A snapshot file is the 4-byte magic "IRVS" and a little-endian uint32
// version followed by a zstd stream holding the thread states, the memory
// regions and a blake3 checksum of everything before it.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/tinyrange/irvm/internal/cpustate"
	"github.com/tinyrange/irvm/internal/guestmem"
)

const (
	magic   = "IRVS"
	version = 1

	maxThreads = 1 << 16
	maxRegions = 1 << 16
	maxNameLen = 1 << 10
)

var (
	ErrBadMagic = errors.New("snapshot: not a snapshot file")
	ErrChecksum = errors.New("snapshot: checksum mismatch")
)

// Region is the saved contents of one guest memory mapping.
type Region struct {
	guestmem.Region
	Data []byte
}

// Snapshot is a decoded snapshot.
type Snapshot struct {
	States  []cpustate.State
	Regions []Region
}

// Save writes the states and every region of m to w.
func Save(w io.Writer, states []*cpustate.State, m *guestmem.Mapper) error {
	var hdr [8]byte
	copy(hdr[:4], magic)
	binary.LittleEndian.PutUint32(hdr[4:], version)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}

	h := blake3.New()
	body := io.MultiWriter(enc, h)
	if err := writeBody(body, states, m); err != nil {
		enc.Close()
		return err
	}
	if _, err := enc.Write(h.Sum(nil)); err != nil {
		enc.Close()
		return fmt.Errorf("write snapshot checksum: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

func writeBody(w io.Writer, states []*cpustate.State, m *guestmem.Mapper) error {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(states)))
	for _, s := range states {
		buf = append(buf, s.Bytes()...)
	}

	regions := m.Regions()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(regions)))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write snapshot states: %w", err)
	}

	for _, r := range regions {
		if len(r.Name) > maxNameLen {
			return fmt.Errorf("region %q: name too long", r.Name)
		}
		var hdr []byte
		hdr = binary.LittleEndian.AppendUint64(hdr, r.Base)
		hdr = binary.LittleEndian.AppendUint64(hdr, r.Size)
		hdr = binary.LittleEndian.AppendUint16(hdr, uint16(len(r.Name)))
		hdr = append(hdr, r.Name...)
		if _, err := w.Write(hdr); err != nil {
			return fmt.Errorf("write region %q: %w", r.Name, err)
		}

		data, err := m.Translate(r.Base, r.Size)
		if err != nil {
			return fmt.Errorf("read region %q: %w", r.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write region %q: %w", r.Name, err)
		}
	}
	return nil
}

// Load decodes a snapshot written by Save.
func Load(r io.Reader) (*Snapshot, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	if string(hdr[:4]) != magic {
		return nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint32(hdr[4:]); v != version {
		return nil, fmt.Errorf("snapshot: unsupported version %d", v)
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	h := blake3.New()
	body := io.TeeReader(dec, h)

	snap, err := readBody(body)
	if err != nil {
		return nil, err
	}

	want := h.Sum(nil)
	got := make([]byte, len(want))
	if _, err := io.ReadFull(dec, got); err != nil {
		return nil, fmt.Errorf("read snapshot checksum: %w", err)
	}
	if !bytes.Equal(got, want) {
		return nil, ErrChecksum
	}
	return snap, nil
}

func readBody(r io.Reader) (*Snapshot, error) {
	var word [4]byte
	if _, err := io.ReadFull(r, word[:]); err != nil {
		return nil, fmt.Errorf("read thread count: %w", err)
	}
	nthreads := binary.LittleEndian.Uint32(word[:])
	if nthreads > maxThreads {
		return nil, fmt.Errorf("snapshot: %d threads", nthreads)
	}

	snap := &Snapshot{States: make([]cpustate.State, nthreads)}
	raw := make([]byte, cpustate.Size)
	for i := range snap.States {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("read thread %d: %w", i, err)
		}
		if err := snap.States[i].UnmarshalBinary(raw); err != nil {
			return nil, err
		}
	}

	if _, err := io.ReadFull(r, word[:]); err != nil {
		return nil, fmt.Errorf("read region count: %w", err)
	}
	nregions := binary.LittleEndian.Uint32(word[:])
	if nregions > maxRegions {
		return nil, fmt.Errorf("snapshot: %d regions", nregions)
	}

	for range nregions {
		var hdr [18]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("read region header: %w", err)
		}
		reg := Region{Region: guestmem.Region{
			Base: binary.LittleEndian.Uint64(hdr[0:]),
			Size: binary.LittleEndian.Uint64(hdr[8:]),
		}}
		name := make([]byte, binary.LittleEndian.Uint16(hdr[16:]))
		if len(name) > maxNameLen {
			return nil, fmt.Errorf("snapshot: region name of %d bytes", len(name))
		}
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("read region name: %w", err)
		}
		reg.Name = string(name)

		// Grow with the data actually present rather than trusting Size.
		var data bytes.Buffer
		if _, err := io.CopyN(&data, r, int64(reg.Size)); err != nil {
			return nil, fmt.Errorf("read region %q: %w", reg.Name, err)
		}
		reg.Data = data.Bytes()
		snap.Regions = append(snap.Regions, reg)
	}
	return snap, nil
}

// Restore copies the saved regions into guest memory. Regions m does not
// map yet are mapped; an existing mapping at the same base with a different
// size is replaced by one of the saved size.
func (s *Snapshot) Restore(m *guestmem.Mapper) error {
	existing := make(map[uint64]guestmem.Region)
	for _, r := range m.Regions() {
		existing[r.Base] = r
	}

	for _, r := range s.Regions {
		cur, ok := existing[r.Base]
		if ok && cur.Size != r.Size {
			if err := m.Unmap(r.Base); err != nil {
				return fmt.Errorf("unmap region %q: %w", cur.Name, err)
			}
			ok = false
		}
		if !ok {
			if err := m.Map(r.Base, r.Size, r.Name); err != nil {
				return fmt.Errorf("map region %q: %w", r.Name, err)
			}
		}
		if err := m.WriteAt(r.Data, r.Base); err != nil {
			return fmt.Errorf("restore region %q: %w", r.Name, err)
		}
	}
	return nil
}
