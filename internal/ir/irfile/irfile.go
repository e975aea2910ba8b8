// Package irfile reads YAML program files: IR programs keyed by entry RIP
// together with the initial register and memory contents they run against.
package irfile

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/irvm/internal/core"
	"github.com/tinyrange/irvm/internal/cpustate"
	"github.com/tinyrange/irvm/internal/guestmem"
	"github.com/tinyrange/irvm/internal/ir"
	"github.com/tinyrange/irvm/internal/numeric"
)

const currentVersion = 1

// File is a decoded program file.
type File struct {
	Version int    `yaml:"version"`
	Entry   uint64 `yaml:"entry"`

	// Regions are mapped in addition to the ones the runtime config names.
	Regions []core.MemoryRegion `yaml:"regions,omitempty"`

	Registers map[string]uint64    `yaml:"registers,omitempty"`
	Vectors   map[string][2]uint64 `yaml:"vectors,omitempty"`
	Flags     map[int]uint8        `yaml:"flags,omitempty"`
	Memory    []MemoryInit         `yaml:"memory,omitempty"`

	Specs []ProgramSpec `yaml:"programs"`
}

// MemoryInit seeds guest memory at Addr with Hex bytes followed by Quads as
// little-endian 64-bit words.
type MemoryInit struct {
	Addr  uint64   `yaml:"addr"`
	Hex   string   `yaml:"hex,omitempty"`
	Quads []uint64 `yaml:"quads,omitempty"`
}

// ProgramSpec is one program as written in the file.
type ProgramSpec struct {
	RIP          uint64     `yaml:"rip"`
	Instructions uint64     `yaml:"instructions,omitempty"`
	Nodes        []NodeSpec `yaml:"nodes"`
}

// NodeSpec is one node. Args and Target refer to other nodes by name or by
// position.
type NodeSpec struct {
	Name     string   `yaml:"name,omitempty"`
	Op       string   `yaml:"op"`
	Size     uint8    `yaml:"size,omitempty"`
	Elements uint8    `yaml:"elements,omitempty"`
	Args     []string `yaml:"args,omitempty"`
	Target   string   `yaml:"target,omitempty"`

	Value        uint64 `yaml:"value,omitempty"`
	Offset       string `yaml:"offset,omitempty"`
	Flag         uint8  `yaml:"flag,omitempty"`
	Reason       string `yaml:"reason,omitempty"`
	Increment    uint64 `yaml:"increment,omitempty"`
	Cond         string `yaml:"cond,omitempty"`
	Width        uint8  `yaml:"width,omitempty"`
	Lsb          uint8  `yaml:"lsb,omitempty"`
	SrcBits      uint8  `yaml:"srcBits,omitempty"`
	RegisterSize uint8  `yaml:"registerSize,omitempty"`
	ElementSize  uint8  `yaml:"elementSize,omitempty"`
	DestIdx      uint8  `yaml:"destIdx,omitempty"`
	SrcIdx       uint8  `yaml:"srcIdx,omitempty"`
	Idx          uint8  `yaml:"idx,omitempty"`
}

// Program is a validated program ready for a program cache.
type Program struct {
	RIP     uint64
	Program *ir.Program
	Debug   ir.DebugData
}

func (f *File) normalize() {
	if f.Version == 0 {
		f.Version = currentVersion
	}
	if f.Entry == 0 && len(f.Specs) > 0 {
		if _, ok := f.Registers["rip"]; !ok {
			f.Entry = f.Specs[0].RIP
		}
	}
}

// Parse decodes a program file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse program file: %w", err)
	}
	f.normalize()
	if f.Version != currentVersion {
		return nil, fmt.Errorf("unsupported program file version %d", f.Version)
	}
	if len(f.Specs) == 0 {
		return nil, fmt.Errorf("program file has no programs")
	}
	return &f, nil
}

// Load reads and decodes the program file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Programs assembles and validates every program in the file.
func (f *File) Programs() ([]Program, error) {
	seen := make(map[uint64]bool, len(f.Specs))
	out := make([]Program, 0, len(f.Specs))
	for _, ps := range f.Specs {
		if seen[ps.RIP] {
			return nil, fmt.Errorf("program %#x: defined twice", ps.RIP)
		}
		seen[ps.RIP] = true

		prog, err := ps.build()
		if err != nil {
			return nil, fmt.Errorf("program %#x: %w", ps.RIP, err)
		}
		out = append(out, Program{
			RIP:     ps.RIP,
			Program: prog,
			Debug:   ir.DebugData{GuestInstructionCount: ps.Instructions},
		})
	}
	return out, nil
}

func (ps *ProgramSpec) build() (*ir.Program, error) {
	names := make(map[string]ir.NodeID, len(ps.Nodes))
	for i, ns := range ps.Nodes {
		if ns.Name == "" {
			continue
		}
		if _, dup := names[ns.Name]; dup {
			return nil, fmt.Errorf("node %d: duplicate name %q", i, ns.Name)
		}
		names[ns.Name] = ir.NodeID(i)
	}

	b := ir.NewBuilder()
	for i, ns := range ps.Nodes {
		n, err := ns.node(names)
		if err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, ns.Op, err)
		}
		b.Emit(n)
	}
	return b.Build()
}

func resolve(names map[string]ir.NodeID, ref string) (ir.NodeID, error) {
	if id, ok := names[ref]; ok {
		return id, nil
	}
	v, err := strconv.ParseUint(ref, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown node %q", ref)
	}
	return ir.NodeID(v), nil
}

func (ns *NodeSpec) node(names map[string]ir.NodeID) (ir.Node, error) {
	op, err := ir.ParseOpcode(ns.Op)
	if err != nil {
		return ir.Node{}, err
	}
	info := op.Info()

	n := ir.Node{
		Op:           op,
		Size:         ns.Size,
		Elements:     ns.Elements,
		Const:        ns.Value,
		Flag:         ns.Flag,
		RIPIncrement: ns.Increment,
		Width:        ns.Width,
		Lsb:          ns.Lsb,
		SrcSize:      ns.SrcBits,
		RegisterSize: ns.RegisterSize,
		ElementSize:  ns.ElementSize,
		DestIdx:      ns.DestIdx,
		SrcIdx:       ns.SrcIdx,
		Idx:          ns.Idx,
	}

	want := info.NumArgs
	if info.JumpArg >= 0 {
		want--
	}
	if len(ns.Args) != want {
		return ir.Node{}, fmt.Errorf("got %d args, want %d", len(ns.Args), want)
	}
	refs := ns.Args
	for a := 0; a < info.NumArgs; a++ {
		var ref string
		if a == info.JumpArg {
			if ns.Target == "" {
				return ir.Node{}, fmt.Errorf("missing jump target")
			}
			ref = ns.Target
		} else {
			ref, refs = refs[0], refs[1:]
		}
		if n.Args[a], err = resolve(names, ref); err != nil {
			return ir.Node{}, err
		}
	}

	switch op {
	case ir.OpConstant:
		if n.Size == 0 {
			n.Size = 8
		}
	case ir.OpLoadContext, ir.OpStoreContext:
		off, err := parseOffset(ns.Offset)
		if err != nil {
			return ir.Node{}, err
		}
		n.Offset = off
	case ir.OpBreak:
		n.Reason, err = parseReason(ns.Reason)
		if err != nil {
			return ir.Node{}, err
		}
	case ir.OpSelect:
		n.Cond, err = ir.ParseCondCode(ns.Cond)
		if err != nil {
			return ir.Node{}, err
		}
	case ir.OpSext, ir.OpSyscall, ir.OpCycleCounter:
		n.Size = 8
	case ir.OpLoadFlag, ir.OpStoreFlag:
		n.Size = 1
	case ir.OpCPUID:
		n.Size = 16
	}
	if n.Size == 0 && n.RegisterSize != 0 {
		n.Size = n.RegisterSize
	}
	return n, nil
}

// parseOffset accepts a register name (rip, rax..r15, xmm0..xmm15, fsbase,
// gsbase) or a byte offset into the register file.
func parseOffset(s string) (uint32, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return 0, fmt.Errorf("missing context offset")
	case "rip":
		return cpustate.OffsetRIP, nil
	case "fsbase":
		return cpustate.OffsetFSBase, nil
	case "gsbase":
		return cpustate.OffsetGSBase, nil
	}
	if i, err := cpustate.ParseGPR(s); err == nil {
		return uint32(cpustate.GPROffset(i)), nil
	}
	if i, ok := parseXMM(s); ok {
		return uint32(cpustate.XMMOffset(i)), nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad context offset %q", s)
	}
	return uint32(v), nil
}

func parseXMM(s string) (int, bool) {
	rest, ok := strings.CutPrefix(s, "xmm")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 || i >= cpustate.NumXMMs {
		return 0, false
	}
	return i, true
}

func parseReason(s string) (uint8, error) {
	switch strings.ToLower(s) {
	case "", "hlt":
		return ir.BreakHLT, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad break reason %q", s)
	}
	return uint8(v), nil
}

// Apply seeds s with the file's registers and writes its memory contents
// through m. A nil mapper skips memory, for threads after the first.
func (f *File) Apply(s *cpustate.State, m *guestmem.Mapper) error {
	s.SetRIP(f.Entry)
	for name, v := range f.Registers {
		switch strings.ToLower(name) {
		case "rip":
			s.SetRIP(v)
		case "fsbase":
			s.SetFSBase(v)
		case "gsbase":
			s.SetGSBase(v)
		default:
			i, err := cpustate.ParseGPR(name)
			if err != nil {
				return err
			}
			s.SetGPR(i, v)
		}
	}
	for name, v := range f.Vectors {
		i, ok := parseXMM(strings.ToLower(name))
		if !ok {
			return fmt.Errorf("unknown vector register %q", name)
		}
		s.SetXMM(i, numeric.Uint128{Lo: v[0], Hi: v[1]})
	}
	for i, v := range f.Flags {
		if i < 0 || i >= cpustate.NumFlags {
			return fmt.Errorf("flag %d out of range", i)
		}
		s.SetFlag(i, v)
	}

	if m == nil {
		return nil
	}
	for _, mi := range f.Memory {
		data, err := hex.DecodeString(strings.Join(strings.Fields(mi.Hex), ""))
		if err != nil {
			return fmt.Errorf("memory %#x: %w", mi.Addr, err)
		}
		for _, q := range mi.Quads {
			data = binary.LittleEndian.AppendUint64(data, q)
		}
		if err := m.WriteAt(data, mi.Addr); err != nil {
			return fmt.Errorf("memory %#x: %w", mi.Addr, err)
		}
	}
	return nil
}
