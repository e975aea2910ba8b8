// Package ir defines the intermediate representation executed by the
// interpreter backend: a flat, position-addressed list of typed nodes lifted
// from guest x86-64 instructions.
package ir

import (
	"errors"
	"fmt"
)

// MaxArgs is the maximum number of argument references a node carries.
const MaxArgs = 7

// NodeID is the stable position of a node within its Program.
type NodeID uint32

// InvalidNode marks an unused argument slot.
const InvalidNode = NodeID(^uint32(0))

// Node is a single IR operation.
//
// Size is the result width in bytes (OpSize). Elements is the element count of
// a vector split and is zero for scalar results. The remaining fields are
// immediates that only some opcodes read.
type Node struct {
	Op       Opcode
	Size     uint8
	Elements uint8
	HasDest  bool
	Args     [MaxArgs]NodeID

	Const        uint64 // constant
	Offset       uint32 // loadcontext, storecontext
	Flag         uint8  // loadflag, storeflag
	Reason       uint8  // break
	RIPIncrement uint64 // endblock
	Cond         CondCode
	Width        uint8 // bfi, bfe: field width in bits
	Lsb          uint8 // bfi, bfe
	SrcSize      uint8 // zext, sext: source width in bits
	RegisterSize uint8 // vector ops
	ElementSize  uint8 // vector ops
	DestIdx      uint8 // vinselement
	SrcIdx       uint8 // vinselement
	Idx          uint8 // extractelement
}

// Arg returns argument i.
func (n *Node) Arg(i int) NodeID {
	return n.Args[i]
}

// AllocSize is the number of value bytes the node's result occupies.
func (n *Node) AllocSize() int {
	elements := int(n.Elements)
	if elements < 1 {
		elements = 1
	}
	return int(n.Size) * elements
}

// DebugData carries metadata about the guest code a Program was lifted from.
type DebugData struct {
	// GuestInstructionCount is the number of guest instructions the program
	// represents.
	GuestInstructionCount uint64
}

// Program is an immutable, ordered list of nodes.
type Program struct {
	Nodes []Node
}

// Len returns the number of nodes.
func (p *Program) Len() int {
	return len(p.Nodes)
}

// Node returns the node at id.
func (p *Program) Node(id NodeID) *Node {
	return &p.Nodes[id]
}

var (
	ErrEmptyProgram = errors.New("ir: empty program")
)

// ValidationError describes a malformed node.
type ValidationError struct {
	Node   NodeID
	Op     Opcode
	Detail string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("ir: node %d (%s): %s", e.Node, e.Op, e.Detail)
}

var (
	_ error = &ValidationError{}
)

// Validate checks the structural invariants the interpreter relies on: every
// opcode is in the schema, HasDest matches the opcode, every value argument
// names a strictly earlier node and every jump target is in range.
func (p *Program) Validate() error {
	if len(p.Nodes) == 0 {
		return ErrEmptyProgram
	}

	for i := range p.Nodes {
		n := &p.Nodes[i]
		id := NodeID(i)
		if !n.Op.Valid() {
			return &ValidationError{Node: id, Op: n.Op, Detail: "opcode not in schema"}
		}
		info := opInfo[n.Op]
		if n.HasDest != info.HasDest {
			return &ValidationError{Node: id, Op: n.Op, Detail: fmt.Sprintf("HasDest=%v, want %v", n.HasDest, info.HasDest)}
		}
		if n.HasDest && n.Size == 0 {
			return &ValidationError{Node: id, Op: n.Op, Detail: "zero destination size"}
		}
		for a := 0; a < info.NumArgs; a++ {
			arg := n.Args[a]
			if a == info.JumpArg {
				if int(arg) >= len(p.Nodes) {
					return &ValidationError{Node: id, Op: n.Op, Detail: fmt.Sprintf("jump target %d out of range", arg)}
				}
				continue
			}
			if arg >= id {
				return &ValidationError{Node: id, Op: n.Op, Detail: fmt.Sprintf("argument %d references node %d which is not earlier", a, arg)}
			}
			if !p.Nodes[arg].HasDest {
				return &ValidationError{Node: id, Op: n.Op, Detail: fmt.Sprintf("argument %d references node %d which has no value", a, arg)}
			}
		}
	}

	return nil
}
