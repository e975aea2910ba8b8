// Package cpuid answers guest CPUID queries from a fixed leaf table.
package cpuid

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// Result holds EAX, EBX, ECX and EDX of one leaf, in that order.
type Result struct {
	Res [4]uint32
}

func (r Result) EAX() uint32 { return r.Res[0] }
func (r Result) EBX() uint32 { return r.Res[1] }
func (r Result) ECX() uint32 { return r.Res[2] }
func (r Result) EDX() uint32 { return r.Res[3] }

// Bytes returns the 16-byte little-endian encoding stored by the CPUID op.
func (r Result) Bytes() [16]byte {
	var out [16]byte
	for i, v := range r.Res {
		binary.LittleEndian.PutUint32(out[4*i:], v)
	}
	return out
}

// Features selects the optional ISA extensions the guest is told about.
type Features struct {
	SSE3, SSSE3, SSE41, SSE42 bool
	POPCNT, AES, PCLMULQDQ    bool
	AVX, AVX2, FMA            bool
	BMI1, BMI2, ERMS          bool
}

// Baseline is the fixed feature set used when results must not depend on
// the host.
func Baseline() Features {
	return Features{SSE3: true, SSSE3: true, SSE41: true, SSE42: true, POPCNT: true}
}

// Host mirrors the features of the machine running the interpreter. On
// non-x86 hosts every optional feature is absent.
func Host() Features {
	return Features{
		SSE3:      cpu.X86.HasSSE3,
		SSSE3:     cpu.X86.HasSSSE3,
		SSE41:     cpu.X86.HasSSE41,
		SSE42:     cpu.X86.HasSSE42,
		POPCNT:    cpu.X86.HasPOPCNT,
		AES:       cpu.X86.HasAES,
		PCLMULQDQ: cpu.X86.HasPCLMULQDQ,
		AVX:       cpu.X86.HasAVX,
		AVX2:      cpu.X86.HasAVX2,
		FMA:       cpu.X86.HasFMA,
		BMI1:      cpu.X86.HasBMI1,
		BMI2:      cpu.X86.HasBMI2,
		ERMS:      cpu.X86.HasERMS,
	}
}

const (
	maxBasicLeaf    = 0x7
	maxExtendedLeaf = 0x80000001

	// family 6, model 0x9e, stepping 10
	signature = 0x000906ea
)

// Service is an immutable leaf table. It is safe for concurrent use.
type Service struct {
	leaves map[uint32]Result
}

func bit(set bool, n uint) uint32 {
	if set {
		return 1 << n
	}
	return 0
}

func vendor(s string) (ebx, edx, ecx uint32) {
	b := []byte(s)
	return binary.LittleEndian.Uint32(b[0:]), binary.LittleEndian.Uint32(b[4:]), binary.LittleEndian.Uint32(b[8:])
}

// New builds the leaf table for f.
func New(f Features) *Service {
	s := &Service{leaves: make(map[uint32]Result)}

	ebx, edx, ecx := vendor("GenuineIntel")
	s.leaves[0] = Result{Res: [4]uint32{maxBasicLeaf, ebx, ecx, edx}}

	leaf1ECX := bit(f.SSE3, 0) | bit(f.PCLMULQDQ, 1) | bit(f.SSSE3, 9) | bit(f.FMA, 12) |
		bit(true, 13) | // CMPXCHG16B
		bit(f.SSE41, 19) | bit(f.SSE42, 20) | bit(f.POPCNT, 23) | bit(f.AES, 25) | bit(f.AVX, 28)
	leaf1EDX := bit(true, 0) | // FPU
		bit(true, 4) | // TSC
		bit(true, 8) | // CX8
		bit(true, 15) | // CMOV
		bit(true, 23) | // MMX
		bit(true, 24) | // FXSR
		bit(true, 25) | // SSE
		bit(true, 26) // SSE2
	s.leaves[1] = Result{Res: [4]uint32{signature, 0, leaf1ECX, leaf1EDX}}

	leaf7EBX := bit(f.BMI1, 3) | bit(f.AVX2, 5) | bit(f.BMI2, 8) | bit(f.ERMS, 9)
	s.leaves[7] = Result{Res: [4]uint32{0, leaf7EBX, 0, 0}}

	s.leaves[0x80000000] = Result{Res: [4]uint32{maxExtendedLeaf, 0, 0, 0}}
	s.leaves[0x80000001] = Result{Res: [4]uint32{
		0,
		0,
		bit(true, 0), // LAHF/SAHF in long mode
		bit(true, 11) | bit(true, 20) | bit(true, 29), // SYSCALL, NX, LM
	}}

	return s
}

// RunFunction returns the result for leaf. Unknown leaves read as zero.
func (s *Service) RunFunction(leaf uint32) Result {
	return s.leaves[leaf]
}
