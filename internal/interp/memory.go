package interp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinyrange/irvm/internal/ir"
)

func validAccessSize(size int) bool {
	switch size {
	case 1, 2, 4, 8, 16:
		return true
	}
	return false
}

func (p *pass) fault(kind FaultKind, addr uint64, size int, err error) error {
	return &GuestFault{Kind: kind, Addr: addr, Size: size, RIP: p.t.State.RIP(), Err: err}
}

func opLoadMem(p *pass, n *ir.Node) error {
	size := int(n.Size)
	if !validAccessSize(size) {
		return p.internal(n, "unsupported access size %d", size)
	}
	addr := p.u64(n.Args[0])

	src, err := p.i.ctx.Memory.Translate(addr, uint64(size))
	if err != nil {
		return p.fault(FaultRead, addr, size, err)
	}

	var buf [16]byte
	copy(buf[:size], src)
	copy(p.i.arena.Prefix(p.dest, 16), buf[:])

	if p.i.log.Enabled(context.Background(), slog.LevelDebug) {
		var diag [8]byte
		copy(diag[:], buf[:min(size, 8)])
		p.i.log.Debug("load", "addr", fmt.Sprintf("%#x", addr), "size", size, "value", fmt.Sprintf("%x", diag))
	}
	return nil
}

func opStoreMem(p *pass, n *ir.Node) error {
	size := int(n.Size)
	if !validAccessSize(size) {
		return p.internal(n, "unsupported access size %d", size)
	}
	addr := p.u64(n.Args[0])

	dst, err := p.i.ctx.Memory.Translate(addr, uint64(size))
	if err != nil {
		return p.fault(FaultWrite, addr, size, err)
	}
	copy(dst, p.i.arena.Prefix(p.slot(n.Args[1]), size))
	return nil
}

// opCAS stores the value observed in memory, which equals expected when the
// swap succeeded.
func opCAS(p *pass, n *ir.Node) error {
	size := int(n.Size)
	switch size {
	case 1, 2, 4, 8:
	default:
		return p.internal(n, "unsupported CAS size %d", size)
	}
	expected := p.u64(n.Args[0])
	desired := p.u64(n.Args[1])
	addr := p.u64(n.Args[2])

	actual, _, err := p.i.ctx.Memory.CompareAndSwap(addr, size, expected, desired)
	if err != nil {
		return p.fault(FaultAtomic, addr, size, err)
	}
	p.setU64(actual)
	return nil
}
