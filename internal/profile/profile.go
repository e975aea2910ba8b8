// Package profile records how long each interpreter pass takes and reads the
// recordings back.
//
// A profile is a small header followed by fixed-size little-endian records
// of thread ID, program RIP and pass duration. Records are handed to a
// background goroutine that batches them into 4 KiB writes.
package profile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

const (
	Magic   uint32 = 0x50565249 // "IRVP"
	Version uint32 = 1
)

type header struct {
	Magic   uint32
	Version uint32
}

// Record is one timed pass.
type Record struct {
	TID      uint32
	RIP      uint64
	Duration time.Duration
}

const recordSize = 4 + 8 + 8

// Writer streams records to an io.Writer. Record is safe for concurrent use.
type Writer struct {
	w    io.Writer
	ch   chan Record
	done chan error

	mu     sync.RWMutex
	closed bool
}

// NewWriter writes the profile header to w and starts the flush goroutine.
func NewWriter(w io.Writer) (*Writer, error) {
	if err := binary.Write(w, binary.LittleEndian, header{Magic: Magic, Version: Version}); err != nil {
		return nil, fmt.Errorf("profile: write header: %w", err)
	}
	pw := &Writer{
		w:    w,
		ch:   make(chan Record, 4096),
		done: make(chan error, 1),
	}
	go pw.run()
	return pw, nil
}

func (pw *Writer) run() {
	var buf [4096]byte
	off := 0
	var err error

	for r := range pw.ch {
		if err != nil {
			continue // drain so Record never blocks after a write error
		}
		if off+recordSize > len(buf) {
			_, err = pw.w.Write(buf[:off])
			off = 0
		}
		binary.LittleEndian.PutUint32(buf[off:], r.TID)
		binary.LittleEndian.PutUint64(buf[off+4:], r.RIP)
		binary.LittleEndian.PutUint64(buf[off+12:], uint64(r.Duration))
		off += recordSize
	}

	if err == nil && off > 0 {
		_, err = pw.w.Write(buf[:off])
	}
	pw.done <- err
}

// Record queues r. Records after Close are dropped.
func (pw *Writer) Record(r Record) {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	if pw.closed {
		return
	}
	pw.ch <- r
}

// Close flushes every queued record.
func (pw *Writer) Close() error {
	pw.mu.Lock()
	if pw.closed {
		pw.mu.Unlock()
		return fmt.Errorf("profile: already closed")
	}
	pw.closed = true
	close(pw.ch)
	pw.mu.Unlock()

	if err := <-pw.done; err != nil {
		return fmt.Errorf("profile: write records: %w", err)
	}
	return nil
}

// ReadAll calls fn for every record in a profile.
func ReadAll(r io.Reader, fn func(Record) error) error {
	buf := bufio.NewReaderSize(r, 4096)

	var hdr header
	if err := binary.Read(buf, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("profile: read header: %w", err)
	}
	if hdr.Magic != Magic {
		return fmt.Errorf("profile: invalid magic")
	}
	if hdr.Version != Version {
		return fmt.Errorf("profile: unsupported version %d", hdr.Version)
	}

	var raw [recordSize]byte
	for {
		if _, err := io.ReadFull(buf, raw[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("profile: read record: %w", err)
		}
		rec := Record{
			TID:      binary.LittleEndian.Uint32(raw[0:]),
			RIP:      binary.LittleEndian.Uint64(raw[4:]),
			Duration: time.Duration(binary.LittleEndian.Uint64(raw[12:])),
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Entry aggregates the passes of one program.
type Entry struct {
	RIP   uint64
	Count int
	Sum   time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (e *Entry) add(d time.Duration) {
	e.Count++
	e.Sum += d
	if e.Min == 0 || d < e.Min {
		e.Min = d
	}
	if d > e.Max {
		e.Max = d
	}
}

// Mean returns the average pass duration.
func (e *Entry) Mean() time.Duration {
	if e.Count == 0 {
		return 0
	}
	return e.Sum / time.Duration(e.Count)
}

// Summarize reads a profile and returns one entry per program, most total
// time first.
func Summarize(r io.Reader) ([]Entry, error) {
	byRIP := make(map[uint64]*Entry)
	if err := ReadAll(r, func(rec Record) error {
		e, ok := byRIP[rec.RIP]
		if !ok {
			e = &Entry{RIP: rec.RIP}
			byRIP[rec.RIP] = e
		}
		e.add(rec.Duration)
		return nil
	}); err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(byRIP))
	for _, e := range byRIP {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sum != out[j].Sum {
			return out[i].Sum > out[j].Sum
		}
		return out[i].RIP < out[j].RIP
	})
	return out, nil
}
