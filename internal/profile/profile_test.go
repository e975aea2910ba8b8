package profile

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Record(Record{TID: 1, RIP: 0x1000, Duration: 100 * time.Microsecond})
	w.Record(Record{TID: 2, RIP: 0x2000, Duration: 5 * time.Microsecond})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got []Record
	if err := ReadAll(bytes.NewReader(buf.Bytes()), func(r Record) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []Record{
		{TID: 1, RIP: 0x1000, Duration: 100 * time.Microsecond},
		{TID: 2, RIP: 0x2000, Duration: 5 * time.Microsecond},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestConcurrentRecordsSpanBuffers(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	const perThread = 1000
	var wg sync.WaitGroup
	for tid := uint32(1); tid <= 4; tid++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				w.Record(Record{TID: tid, RIP: uint64(i % 3), Duration: time.Duration(i + 1)})
			}
		}()
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	w.Record(Record{TID: 9}) // dropped after Close

	entries, err := Summarize(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	total := 0
	for _, e := range entries {
		total += e.Count
	}
	if total != 4*perThread || len(entries) != 3 {
		t.Fatalf("%d records in %d entries", total, len(entries))
	}
}

func TestSummarizeOrder(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []Record{
		{RIP: 0x10, Duration: 3},
		{RIP: 0x20, Duration: 10},
		{RIP: 0x10, Duration: 5},
		{RIP: 0x30, Duration: 1},
	} {
		w.Record(r)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := Summarize(&buf)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := []Entry{
		{RIP: 0x20, Count: 1, Sum: 10, Min: 10, Max: 10},
		{RIP: 0x10, Count: 2, Sum: 8, Min: 3, Max: 5},
		{RIP: 0x30, Count: 1, Sum: 1, Min: 1, Max: 1},
	}
	if len(entries) != len(want) {
		t.Fatalf("entries = %+v", entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
	if m := entries[1].Mean(); m != 4 {
		t.Errorf("Mean = %v", m)
	}
}

func TestDoubleClose(t *testing.T) {
	w, err := NewWriter(&bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err == nil {
		t.Fatalf("second Close succeeded")
	}
}

type failWriter struct{ n int }

var errDisk = errors.New("disk full")

func (f *failWriter) Write(p []byte) (int, error) {
	f.n++
	if f.n > 1 {
		return 0, errDisk
	}
	return len(p), nil
}

func TestWriteErrorSurfacesOnClose(t *testing.T) {
	w, err := NewWriter(&failWriter{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Record(Record{RIP: 1})
	if err := w.Close(); !errors.Is(err, errDisk) {
		t.Fatalf("Close = %v", err)
	}
}

func TestReadAllRejectsGarbage(t *testing.T) {
	if err := ReadAll(bytes.NewReader([]byte("not a profile")), func(Record) error { return nil }); err == nil {
		t.Fatalf("garbage accepted")
	}

	var buf bytes.Buffer
	w, _ := NewWriter(&buf)
	w.Record(Record{RIP: 1})
	w.Close()
	truncated := buf.Bytes()[:buf.Len()-3]
	if err := ReadAll(bytes.NewReader(truncated), func(Record) error { return nil }); err == nil {
		t.Fatalf("truncated record accepted")
	}
}
