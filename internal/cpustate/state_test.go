package cpustate

import (
	"errors"
	"testing"

	"github.com/tinyrange/irvm/internal/numeric"
)

func TestLayout(t *testing.T) {
	if OffsetXMMs%16 != 0 {
		t.Fatalf("XMM block at %d is not 16-byte aligned", OffsetXMMs)
	}
	if GPROffset(NumGPRs) > OffsetXMMs {
		t.Fatalf("GPRs overlap XMM block")
	}
	if Size != 464 {
		t.Fatalf("Size = %d, want 464", Size)
	}
}

func TestAccessors(t *testing.T) {
	var s State
	s.SetRIP(0x401000)
	s.SetGPR(RDI, 0xdead)
	s.SetXMM(3, numeric.Uint128{Lo: 1, Hi: 2})
	s.SetFSBase(0x7000)
	s.SetFlag(5, 3)

	if s.RIP() != 0x401000 {
		t.Errorf("RIP = %#x", s.RIP())
	}
	if s.GPR(RDI) != 0xdead {
		t.Errorf("RDI = %#x", s.GPR(RDI))
	}
	if got := s.XMM(3); got != (numeric.Uint128{Lo: 1, Hi: 2}) {
		t.Errorf("XMM3 = %v", got)
	}
	if s.FSBase() != 0x7000 || s.GSBase() != 0 {
		t.Errorf("segment bases = %#x, %#x", s.FSBase(), s.GSBase())
	}
	if s.Flag(5) != 1 {
		t.Errorf("flag 5 = %d, want low bit only", s.Flag(5))
	}

	b, err := s.Slice(GPROffset(RDI), 8)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if b[0] != 0xad || b[1] != 0xde {
		t.Errorf("raw RDI bytes = %x", b)
	}
}

func TestSliceOutOfRange(t *testing.T) {
	var s State
	var rerr *RangeError
	if _, err := s.Slice(Size-4, 8); !errors.As(err, &rerr) {
		t.Fatalf("got %v, want RangeError", err)
	}
	if _, err := s.Slice(-1, 1); err == nil {
		t.Fatalf("expected error for negative offset")
	}
}

func TestParseGPR(t *testing.T) {
	i, err := ParseGPR("R12")
	if err != nil || i != R12 {
		t.Fatalf("ParseGPR(R12) = %d, %v", i, err)
	}
	if GPRName(RSP) != "rsp" {
		t.Fatalf("GPRName(RSP) = %s", GPRName(RSP))
	}
	if _, err := ParseGPR("eax"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDigestAndRoundTrip(t *testing.T) {
	var a, b State
	a.SetGPR(RAX, 42)
	if a.Digest() == b.Digest() {
		t.Fatalf("different states share a digest")
	}

	data, err := a.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if err := b.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("digest differs after round trip")
	}
	if err := b.UnmarshalBinary(data[:10]); err == nil {
		t.Fatalf("expected error for short state")
	}
}
