package interp

import (
	"github.com/tinyrange/irvm/internal/ir"
	"github.com/tinyrange/irvm/internal/syscalls"
)

func opSyscall(p *pass, n *ir.Node) error {
	var args syscalls.Arguments
	for j := range args {
		args[j] = p.u64(n.Args[j])
	}
	p.setU64(p.i.ctx.Syscalls.HandleSyscall(p.t, &args))
	return nil
}
