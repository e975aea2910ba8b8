// Package cpustate defines the guest-visible x86-64 register file as a flat,
// byte-addressable block. IR context loads and stores address it by offset.
package cpustate

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/tinyrange/irvm/internal/numeric"
)

const (
	NumGPRs  = 16
	NumXMMs  = 16
	NumFlags = 48

	OffsetRIP    = 0
	OffsetGPRs   = 8
	OffsetXMMs   = 144 // GPRs end at 136, XMM registers are 16-byte aligned
	OffsetFSBase = OffsetXMMs + NumXMMs*16
	OffsetGSBase = OffsetFSBase + 8
	OffsetFlags  = OffsetGSBase + 8

	// Size is the byte size of the register file.
	Size = OffsetFlags + NumFlags
)

// General purpose register numbers in x86 encoding order.
const (
	RAX = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

var gprNames = [NumGPRs]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

// GPRName returns the assembler name of register i.
func GPRName(i int) string {
	if i < 0 || i >= NumGPRs {
		return fmt.Sprintf("gpr%d", i)
	}
	return gprNames[i]
}

// ParseGPR looks up a general purpose register by name.
func ParseGPR(name string) (int, error) {
	name = strings.ToLower(name)
	for i, n := range gprNames {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("cpustate: unknown register %q", name)
}

func GPROffset(i int) int  { return OffsetGPRs + 8*i }
func XMMOffset(i int) int  { return OffsetXMMs + 16*i }
func FlagOffset(i int) int { return OffsetFlags + i }

// RangeError reports an access outside the register file.
type RangeError struct {
	Offset int
	Size   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("cpustate: access of %d bytes at offset %d outside %d byte state", e.Size, e.Offset, Size)
}

var (
	_ error = &RangeError{}
)

// State is one guest thread's register file. The zero value is a valid,
// all-zero state.
type State struct {
	buf [Size]byte
}

// Bytes returns the raw register file.
func (s *State) Bytes() []byte {
	return s.buf[:]
}

// Slice returns size bytes at off, or a RangeError.
func (s *State) Slice(off, size int) ([]byte, error) {
	if off < 0 || size < 0 || off+size > Size {
		return nil, &RangeError{Offset: off, Size: size}
	}
	return s.buf[off : off+size : off+size], nil
}

func (s *State) RIP() uint64 {
	return binary.LittleEndian.Uint64(s.buf[OffsetRIP:])
}

func (s *State) SetRIP(v uint64) {
	binary.LittleEndian.PutUint64(s.buf[OffsetRIP:], v)
}

func (s *State) GPR(i int) uint64 {
	return binary.LittleEndian.Uint64(s.buf[GPROffset(i):])
}

func (s *State) SetGPR(i int, v uint64) {
	binary.LittleEndian.PutUint64(s.buf[GPROffset(i):], v)
}

func (s *State) XMM(i int) numeric.Uint128 {
	off := XMMOffset(i)
	return numeric.Uint128{
		Lo: binary.LittleEndian.Uint64(s.buf[off:]),
		Hi: binary.LittleEndian.Uint64(s.buf[off+8:]),
	}
}

func (s *State) SetXMM(i int, v numeric.Uint128) {
	off := XMMOffset(i)
	binary.LittleEndian.PutUint64(s.buf[off:], v.Lo)
	binary.LittleEndian.PutUint64(s.buf[off+8:], v.Hi)
}

func (s *State) FSBase() uint64 { return binary.LittleEndian.Uint64(s.buf[OffsetFSBase:]) }
func (s *State) GSBase() uint64 { return binary.LittleEndian.Uint64(s.buf[OffsetGSBase:]) }

func (s *State) SetFSBase(v uint64) { binary.LittleEndian.PutUint64(s.buf[OffsetFSBase:], v) }
func (s *State) SetGSBase(v uint64) { binary.LittleEndian.PutUint64(s.buf[OffsetGSBase:], v) }

// Flag returns flag slot i. Each slot holds a single bit in its low bit.
func (s *State) Flag(i int) uint8 {
	return s.buf[FlagOffset(i)]
}

func (s *State) SetFlag(i int, v uint8) {
	s.buf[FlagOffset(i)] = v & 1
}

// Digest hashes the full register file.
func (s *State) Digest() [32]byte {
	return blake3.Sum256(s.buf[:])
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *State) MarshalBinary() ([]byte, error) {
	out := make([]byte, Size)
	copy(out, s.buf[:])
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *State) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return fmt.Errorf("cpustate: state is %d bytes, want %d", len(data), Size)
	}
	copy(s.buf[:], data)
	return nil
}
