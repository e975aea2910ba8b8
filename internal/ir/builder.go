package ir

import "fmt"

// Builder appends nodes to a Program. Every emit method returns the NodeID of
// the node it appended so later nodes can reference it.
type Builder struct {
	nodes []Node
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Len returns the number of nodes emitted so far.
func (b *Builder) Len() int {
	return len(b.nodes)
}

// Next returns the NodeID the next emitted node will receive. Useful for
// backward jump targets.
func (b *Builder) Next() NodeID {
	return NodeID(len(b.nodes))
}

// Emit appends n. Argument slots beyond the opcode's arity are cleared and
// HasDest is derived from the opcode.
func (b *Builder) Emit(n Node) NodeID {
	if n.Op.Valid() {
		info := opInfo[n.Op]
		n.HasDest = info.HasDest
		for i := info.NumArgs; i < MaxArgs; i++ {
			n.Args[i] = InvalidNode
		}
	}
	b.nodes = append(b.nodes, n)
	return NodeID(len(b.nodes) - 1)
}

func (b *Builder) emit(op Opcode, size uint8, args ...NodeID) NodeID {
	n := Node{Op: op, Size: size}
	copy(n.Args[:], args)
	return b.Emit(n)
}

// SetJumpTarget patches the target of a previously emitted jump.
func (b *Builder) SetJumpTarget(jump NodeID, target NodeID) {
	n := &b.nodes[jump]
	info := n.Op.Info()
	if info.JumpArg < 0 {
		panic(fmt.Sprintf("ir: node %d (%s) is not a jump", jump, n.Op))
	}
	n.Args[info.JumpArg] = target
}

// Build validates and returns the program.
func (b *Builder) Build() (*Program, error) {
	p := &Program{Nodes: append([]Node(nil), b.nodes...)}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustBuild is Build that panics on error. Intended for tests.
func (b *Builder) MustBuild() *Program {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

func (b *Builder) BeginBlock() NodeID { return b.emit(OpBeginBlock, 0) }

func (b *Builder) EndBlock(ripIncrement uint64) NodeID {
	return b.Emit(Node{Op: OpEndBlock, RIPIncrement: ripIncrement})
}

func (b *Builder) ExitFunction() NodeID { return b.emit(OpExitFunction, 0) }

func (b *Builder) EndFunction() NodeID { return b.emit(OpEndFunction, 0) }

func (b *Builder) Break(reason uint8) NodeID {
	return b.Emit(Node{Op: OpBreak, Reason: reason})
}

// Jump emits an unconditional jump. Pass InvalidNode for a forward target and
// patch it with SetJumpTarget.
func (b *Builder) Jump(target NodeID) NodeID {
	return b.emit(OpJump, 0, target)
}

func (b *Builder) CondJump(cond NodeID, target NodeID) NodeID {
	return b.emit(OpCondJump, 0, cond, target)
}

func (b *Builder) Constant(size uint8, v uint64) NodeID {
	return b.Emit(Node{Op: OpConstant, Size: size, Const: v})
}

func (b *Builder) Mov(size uint8, src NodeID) NodeID {
	return b.emit(OpMov, size, src)
}

func (b *Builder) LoadContext(size uint8, offset uint32) NodeID {
	return b.Emit(Node{Op: OpLoadContext, Size: size, Offset: offset})
}

func (b *Builder) StoreContext(size uint8, offset uint32, src NodeID) NodeID {
	n := Node{Op: OpStoreContext, Size: size, Offset: offset}
	n.Args[0] = src
	return b.Emit(n)
}

func (b *Builder) LoadFlag(flag uint8) NodeID {
	return b.Emit(Node{Op: OpLoadFlag, Size: 1, Flag: flag})
}

func (b *Builder) StoreFlag(flag uint8, src NodeID) NodeID {
	n := Node{Op: OpStoreFlag, Size: 1, Flag: flag}
	n.Args[0] = src
	return b.Emit(n)
}

// Syscall emits a syscall node. args[0] holds the syscall number.
func (b *Builder) Syscall(args [MaxArgs]NodeID) NodeID {
	return b.Emit(Node{Op: OpSyscall, Size: 8, Args: args})
}

func (b *Builder) LoadMem(size uint8, addr NodeID) NodeID {
	return b.emit(OpLoadMem, size, addr)
}

func (b *Builder) StoreMem(size uint8, addr, value NodeID) NodeID {
	return b.emit(OpStoreMem, size, addr, value)
}

// Binary emits a two-operand scalar op such as OpAdd or OpLshl.
func (b *Builder) Binary(op Opcode, size uint8, x, y NodeID) NodeID {
	return b.emit(op, size, x, y)
}

// Unary emits a one-operand scalar op such as OpNeg or OpPopcount.
func (b *Builder) Unary(op Opcode, size uint8, x NodeID) NodeID {
	return b.emit(op, size, x)
}

// LongDivide emits OpLDiv, OpLUDiv, OpLRem or OpLURem.
func (b *Builder) LongDivide(op Opcode, size uint8, low, high, divisor NodeID) NodeID {
	return b.emit(op, size, low, high, divisor)
}

// Zext zero-extends the low srcBits of src.
func (b *Builder) Zext(size uint8, srcBits uint8, src NodeID) NodeID {
	n := Node{Op: OpZext, Size: size, SrcSize: srcBits}
	n.Args[0] = src
	return b.Emit(n)
}

// Sext sign-extends the low srcBits of src to 64 bits.
func (b *Builder) Sext(srcBits uint8, src NodeID) NodeID {
	n := Node{Op: OpSext, Size: 8, SrcSize: srcBits}
	n.Args[0] = src
	return b.Emit(n)
}

func (b *Builder) Select(cond CondCode, size uint8, x, y, ifTrue, ifFalse NodeID) NodeID {
	n := Node{Op: OpSelect, Size: size, Cond: cond}
	n.Args[0], n.Args[1], n.Args[2], n.Args[3] = x, y, ifTrue, ifFalse
	return b.Emit(n)
}

func (b *Builder) Bfi(size, width, lsb uint8, dest, src NodeID) NodeID {
	n := Node{Op: OpBfi, Size: size, Width: width, Lsb: lsb}
	n.Args[0], n.Args[1] = dest, src
	return b.Emit(n)
}

func (b *Builder) Bfe(size, width, lsb uint8, src NodeID) NodeID {
	n := Node{Op: OpBfe, Size: size, Width: width, Lsb: lsb}
	n.Args[0] = src
	return b.Emit(n)
}

func (b *Builder) CAS(size uint8, expected, desired, addr NodeID) NodeID {
	return b.emit(OpCAS, size, expected, desired, addr)
}

func (b *Builder) CPUID(function NodeID) NodeID {
	return b.emit(OpCPUID, 16, function)
}

func (b *Builder) CycleCounter() NodeID {
	return b.emit(OpCycleCounter, 8)
}

func (b *Builder) Print(size uint8, v NodeID) NodeID {
	return b.emit(OpPrint, size, v)
}

func (b *Builder) ExtractElement(size, idx uint8, src NodeID) NodeID {
	n := Node{Op: OpExtractElement, Size: size, Idx: idx}
	n.Args[0] = src
	return b.Emit(n)
}

func (b *Builder) CreateVector2(size uint8, x, y NodeID) NodeID {
	return b.emit(OpCreateVector2, size, x, y)
}

// Splat emits OpSplatVector2, OpSplatVector3 or OpSplatVector4.
func (b *Builder) Splat(op Opcode, size uint8, src NodeID) NodeID {
	return b.emit(op, size, src)
}

// Vector emits a two-operand lane-wise vector op.
func (b *Builder) Vector(op Opcode, registerSize, elementSize uint8, x, y NodeID) NodeID {
	n := Node{Op: op, Size: registerSize, RegisterSize: registerSize, ElementSize: elementSize}
	n.Args[0], n.Args[1] = x, y
	return b.Emit(n)
}

func (b *Builder) VInsElement(registerSize, elementSize, destIdx, srcIdx uint8, dest, src NodeID) NodeID {
	n := Node{
		Op:           OpVInsElement,
		Size:         registerSize,
		RegisterSize: registerSize,
		ElementSize:  elementSize,
		DestIdx:      destIdx,
		SrcIdx:       srcIdx,
	}
	n.Args[0], n.Args[1] = dest, src
	return b.Emit(n)
}
