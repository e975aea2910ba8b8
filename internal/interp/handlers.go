package interp

import (
	"fmt"

	"github.com/tinyrange/irvm/internal/ir"
	"github.com/tinyrange/irvm/internal/numeric"
)

// opHandler executes the semantics of one node. Handlers for value-producing
// opcodes write p.dest; control-flow handlers set p.next or p.done.
type opHandler func(p *pass, n *ir.Node) error

var handlers = [ir.NumOpcodes]opHandler{
	ir.OpBeginBlock:   opNop,
	ir.OpEndBlock:     opEndBlock,
	ir.OpExitFunction: opExit,
	ir.OpEndFunction:  opExit,
	ir.OpBreak:        opBreak,
	ir.OpJump:         opJump,
	ir.OpCondJump:     opCondJump,

	ir.OpMov:          opMov,
	ir.OpConstant:     opConstant,
	ir.OpLoadContext:  opLoadContext,
	ir.OpStoreContext: opStoreContext,
	ir.OpLoadFlag:     opLoadFlag,
	ir.OpStoreFlag:    opStoreFlag,
	ir.OpSyscall:      opSyscall,
	ir.OpLoadMem:      opLoadMem,
	ir.OpStoreMem:     opStoreMem,

	ir.OpAdd: simple(numeric.Add),
	ir.OpSub: simple(numeric.Sub),
	ir.OpOr:  simple(numeric.Or),
	ir.OpAnd: simple(numeric.And),
	ir.OpXor: simple(numeric.Xor),

	ir.OpMul:   multiply(numeric.Mul),
	ir.OpUMul:  multiply(numeric.UMul),
	ir.OpMulH:  wideBinary(numeric.MulH),
	ir.OpUMulH: wideBinary(numeric.UMulH),
	ir.OpDiv:   wideBinary(numeric.Div),
	ir.OpUDiv:  wideBinary(numeric.UDiv),
	ir.OpRem:   wideBinary(numeric.Rem),
	ir.OpURem:  wideBinary(numeric.URem),

	ir.OpLDiv:  longDivide(numeric.LDiv),
	ir.OpLUDiv: longDivide(numeric.LUDiv),
	ir.OpLRem:  longDivide(numeric.LRem),
	ir.OpLURem: longDivide(numeric.LURem),

	ir.OpLshl: checked(numeric.Lshl),
	ir.OpLshr: checked(numeric.Lshr),
	ir.OpAshr: checked(numeric.Ashr),
	ir.OpRor:  checked(numeric.Ror),
	ir.OpRol:  checked(numeric.Rol),

	ir.OpZext:     opZext,
	ir.OpSext:     opSext,
	ir.OpNeg:      unary(numeric.Not),
	ir.OpPopcount: unary(numeric.Popcount),
	ir.OpFindLSB:  unary(numeric.FindLSB),
	ir.OpFindMSB:  checkedUnary(numeric.FindMSB),
	ir.OpRev:      checkedUnary(numeric.Rev),

	ir.OpSelect:         opSelect,
	ir.OpBfi:            opBfi,
	ir.OpBfe:            opBfe,
	ir.OpCAS:            opCAS,
	ir.OpCPUID:          opCPUID,
	ir.OpCycleCounter:   opCycleCounter,
	ir.OpPrint:          opPrint,
	ir.OpExtractElement: opExtractElement,

	ir.OpCreateVector2: opCreateVector2,
	ir.OpSplatVector2:  splat(2),
	ir.OpSplatVector3:  splat(3),
	ir.OpSplatVector4:  splat(4),
	ir.OpVOr:           whole(numeric.VOr),
	ir.OpVXor:          whole(numeric.VXor),
	ir.OpVAdd:          lanewise(numeric.VAdd),
	ir.OpVSub:          lanewise(numeric.VSub),
	ir.OpVUMin:         lanewise(numeric.VUMin),
	ir.OpVSMin:         lanewise(numeric.VSMin),
	ir.OpVUShl:         lanewise(numeric.VUShl),
	ir.OpVUShlS:        lanewise(numeric.VUShlS),
	ir.OpVUShr:         lanewise(numeric.VUShr),
	ir.OpVZip:          zip(false),
	ir.OpVZip2:         zip(true),
	ir.OpVInsElement:   opVInsElement,
	ir.OpVCmpEQ:        lanewise(numeric.VCmpEQ),
	ir.OpVCmpGT:        lanewise(numeric.VCmpGT),
}

func init() {
	for op, h := range handlers {
		if h == nil {
			panic(fmt.Sprintf("interp: no handler for opcode %s", ir.Opcode(op)))
		}
	}
}

func opNop(p *pass, n *ir.Node) error { return nil }

func opEndBlock(p *pass, n *ir.Node) error {
	p.t.State.SetRIP(p.t.State.RIP() + n.RIPIncrement)
	return nil
}

func opExit(p *pass, n *ir.Node) error {
	p.done = true
	return nil
}

func opBreak(p *pass, n *ir.Node) error {
	if n.Reason != ir.BreakHLT {
		return p.internal(n, "unknown break reason %d", n.Reason)
	}
	p.t.ShouldStop.Store(true)
	p.done = true
	return nil
}

func (p *pass) jumpTo(n *ir.Node, target ir.NodeID) error {
	if int(target) >= p.prog.Len() {
		return p.internal(n, "jump target %d out of range", target)
	}
	p.next = target
	return nil
}

func opJump(p *pass, n *ir.Node) error {
	return p.jumpTo(n, n.Args[0])
}

func opCondJump(p *pass, n *ir.Node) error {
	if p.u64(n.Args[0]) != 0 {
		return p.jumpTo(n, n.Args[1])
	}
	return nil
}

func opMov(p *pass, n *ir.Node) error {
	size := int(n.Size)
	if size > 16 {
		return p.internal(n, "unsupported size %d", size)
	}
	var buf [16]byte
	copy(buf[:size], p.i.arena.Prefix(p.slot(n.Args[0]), size))
	copy(p.i.arena.Prefix(p.dest, 16), buf[:])
	return nil
}

func opConstant(p *pass, n *ir.Node) error {
	p.setU64(n.Const)
	return nil
}

func simple(fn func(width int, x, y uint64) uint64) opHandler {
	return func(p *pass, n *ir.Node) error {
		p.setU64(fn(int(n.Size), p.u64(n.Args[0]), p.u64(n.Args[1])))
		return nil
	}
}

func unary(fn func(width int, x uint64) uint64) opHandler {
	return func(p *pass, n *ir.Node) error {
		p.setU64(fn(int(n.Size), p.u64(n.Args[0])))
		return nil
	}
}

func checked(fn func(width int, x, y uint64) (uint64, error)) opHandler {
	return func(p *pass, n *ir.Node) error {
		v, err := fn(int(n.Size), p.u64(n.Args[0]), p.u64(n.Args[1]))
		if err != nil {
			return p.check(n, err)
		}
		p.setU64(v)
		return nil
	}
}

func checkedUnary(fn func(width int, x uint64) (uint64, error)) opHandler {
	return func(p *pass, n *ir.Node) error {
		v, err := fn(int(n.Size), p.u64(n.Args[0]))
		if err != nil {
			return p.check(n, err)
		}
		p.setU64(v)
		return nil
	}
}

func multiply(fn func(width int, x, y uint64) (numeric.Uint128, error)) opHandler {
	return func(p *pass, n *ir.Node) error {
		width := int(n.Size)
		v, err := fn(width, p.u64(n.Args[0]), p.u64(n.Args[1]))
		if err != nil {
			return p.check(n, err)
		}
		p.setWide(width, v)
		return nil
	}
}

func wideBinary(fn func(width int, x, y numeric.Uint128) (numeric.Uint128, error)) opHandler {
	return func(p *pass, n *ir.Node) error {
		width := int(n.Size)
		v, err := fn(width, p.wide(width, n.Args[0]), p.wide(width, n.Args[1]))
		if err != nil {
			return p.check(n, err)
		}
		p.setWide(width, v)
		return nil
	}
}

func longDivide(fn func(width int, lo, hi, divisor uint64) (uint64, error)) opHandler {
	return func(p *pass, n *ir.Node) error {
		v, err := fn(int(n.Size), p.u64(n.Args[0]), p.u64(n.Args[1]), p.u64(n.Args[2]))
		if err != nil {
			return p.check(n, err)
		}
		p.setU64(v)
		return nil
	}
}

func opZext(p *pass, n *ir.Node) error {
	v, err := numeric.Zext(int(n.SrcSize), p.u64(n.Args[0]))
	if err != nil {
		return p.check(n, err)
	}
	p.setU128(v)
	return nil
}

func opSext(p *pass, n *ir.Node) error {
	v, err := numeric.Sext(int(n.SrcSize), p.u64(n.Args[0]))
	if err != nil {
		return p.check(n, err)
	}
	p.setU64(v)
	return nil
}

func opSelect(p *pass, n *ir.Node) error {
	taken, ok := numeric.Compare(n.Cond, p.u64(n.Args[0]), p.u64(n.Args[1]))
	if !ok {
		return &UnsupportedConditionError{Cond: n.Cond, Node: p.id}
	}
	if taken {
		p.setU64(p.u64(n.Args[2]))
	} else {
		p.setU64(p.u64(n.Args[3]))
	}
	return nil
}

func opBfi(p *pass, n *ir.Node) error {
	p.setU64(numeric.Bfi(int(n.Width), int(n.Lsb), p.u64(n.Args[0]), p.u64(n.Args[1])))
	return nil
}

func opBfe(p *pass, n *ir.Node) error {
	size := int(n.Size)
	v, err := numeric.Bfe(size, int(n.Width), int(n.Lsb), p.wide(size, n.Args[0]))
	if err != nil {
		return p.check(n, err)
	}
	p.setWide(size, v)
	return nil
}

func opCPUID(p *pass, n *ir.Node) error {
	res := p.i.ctx.CPUID.RunFunction(uint32(p.u64(n.Args[0])))
	b := res.Bytes()
	copy(p.i.arena.Prefix(p.dest, len(b)), b[:])
	return nil
}

func opCycleCounter(p *pass, n *ir.Node) error {
	p.setU64(p.i.ctx.Clock.Cycles())
	return nil
}

func opPrint(p *pass, n *ir.Node) error {
	if n.Size == 16 {
		v := p.u128(n.Args[0])
		p.i.log.Info("print", "tid", p.t.ID, "lo", fmt.Sprintf("%#x", v.Lo), "hi", fmt.Sprintf("%#x", v.Hi))
		return nil
	}
	if n.Size > 8 {
		return p.internal(n, "unsupported size %d", n.Size)
	}
	v := p.u64(n.Args[0]) & numeric.Mask(int(n.Size))
	p.i.log.Info("print", "tid", p.t.ID, "value", fmt.Sprintf("%#x", v))
	return nil
}

func opExtractElement(p *pass, n *ir.Node) error {
	size := int(n.Size)
	off := size * int(n.Idx)
	src := p.i.arena.Bytes(p.slot(n.Args[0]))
	if size > 16 || off+size > len(src) {
		return p.internal(n, "element %d of %d bytes outside source", n.Idx, size)
	}
	var buf [16]byte
	copy(buf[:size], src[off:off+size])
	copy(p.i.arena.Prefix(p.dest, 16), buf[:])
	return nil
}
