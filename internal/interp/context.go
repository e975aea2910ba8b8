package interp

import (
	"github.com/tinyrange/irvm/internal/cpustate"
	"github.com/tinyrange/irvm/internal/ir"
)

func opLoadContext(p *pass, n *ir.Node) error {
	size := int(n.Size)
	if !validAccessSize(size) {
		return p.internal(n, "unsupported context access size %d", size)
	}
	src, err := p.t.State.Slice(int(n.Offset), size)
	if err != nil {
		return p.internal(n, "%v", err)
	}

	var buf [16]byte
	copy(buf[:size], src)
	copy(p.i.arena.Prefix(p.dest, 16), buf[:])
	return nil
}

func opStoreContext(p *pass, n *ir.Node) error {
	size := int(n.Size)
	if !validAccessSize(size) {
		return p.internal(n, "unsupported context access size %d", size)
	}
	dst, err := p.t.State.Slice(int(n.Offset), size)
	if err != nil {
		return p.internal(n, "%v", err)
	}
	copy(dst, p.i.arena.Prefix(p.slot(n.Args[0]), size))
	return nil
}

func opLoadFlag(p *pass, n *ir.Node) error {
	if int(n.Flag) >= cpustate.NumFlags {
		return p.internal(n, "flag %d out of range", n.Flag)
	}
	p.setU64(uint64(p.t.State.Flag(int(n.Flag))))
	return nil
}

func opStoreFlag(p *pass, n *ir.Node) error {
	if int(n.Flag) >= cpustate.NumFlags {
		return p.internal(n, "flag %d out of range", n.Flag)
	}
	p.t.State.SetFlag(int(n.Flag), p.i.arena.Uint8(p.slot(n.Args[0]))&1)
	return nil
}
