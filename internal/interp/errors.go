package interp

import (
	"fmt"
	"syscall"

	"github.com/tinyrange/irvm/internal/core"
	"github.com/tinyrange/irvm/internal/ir"
)

// InternalError reports a malformed program: an opcode outside the schema,
// an unsupported operand width or a bad immediate. It indicates a defect in
// whatever produced the IR, never guest misbehaviour.
type InternalError struct {
	Op     ir.Opcode
	Node   ir.NodeID
	Detail string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("interp: internal error at node %d (%s): %s", e.Node, e.Op, e.Detail)
}

// UnsupportedConditionError reports a Select whose condition code has no
// implementation.
type UnsupportedConditionError struct {
	Cond ir.CondCode
	Node ir.NodeID
}

func (e *UnsupportedConditionError) Error() string {
	return fmt.Sprintf("interp: unsupported condition %s at node %d", e.Cond, e.Node)
}

// FaultKind classifies a guest fault.
type FaultKind int

const (
	FaultRead FaultKind = iota
	FaultWrite
	FaultAtomic
	FaultDivide
)

func (k FaultKind) String() string {
	switch k {
	case FaultRead:
		return "read"
	case FaultWrite:
		return "write"
	case FaultAtomic:
		return "atomic"
	case FaultDivide:
		return "divide"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// GuestFault is an architectural fault raised by guest code, such as an
// access to unmapped memory or an integer division by zero.
type GuestFault struct {
	Kind FaultKind
	Addr uint64
	Size int
	RIP  uint64
	Err  error
}

func (f *GuestFault) Error() string {
	if f.Kind == FaultDivide {
		return fmt.Sprintf("guest fault: divide by zero at rip %#x", f.RIP)
	}
	return fmt.Sprintf("guest fault: %s of %d bytes at %#x (rip %#x): %v", f.Kind, f.Size, f.Addr, f.RIP, f.Err)
}

func (f *GuestFault) Unwrap() error { return f.Err }

// Signal returns the signal Linux would deliver for the fault.
func (f *GuestFault) Signal() syscall.Signal {
	if f.Kind == FaultDivide {
		return syscall.SIGFPE
	}
	return syscall.SIGSEGV
}

var (
	_ error         = &InternalError{}
	_ error         = &UnsupportedConditionError{}
	_ core.Signaler = &GuestFault{}
)
