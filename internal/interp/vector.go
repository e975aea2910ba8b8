package interp

import (
	"github.com/tinyrange/irvm/internal/ir"
	"github.com/tinyrange/irvm/internal/numeric"
)

func lanewise(fn func(regSize, esize int, x, y numeric.Vec) (numeric.Vec, error)) opHandler {
	return func(p *pass, n *ir.Node) error {
		v, err := fn(int(n.RegisterSize), int(n.ElementSize), p.vec(n.Args[0]), p.vec(n.Args[1]))
		if err != nil {
			return p.check(n, err)
		}
		p.setVec(v)
		return nil
	}
}

// whole applies fn to the full 128-bit registers and keeps RegisterSize
// bytes of the result.
func whole(fn func(x, y numeric.Vec) numeric.Vec) opHandler {
	return func(p *pass, n *ir.Node) error {
		size := int(n.RegisterSize)
		if size == 0 {
			size = int(n.Size)
		}
		if size > 16 {
			return p.internal(n, "unsupported register size %d", size)
		}
		v := fn(p.vec(n.Args[0]), p.vec(n.Args[1]))
		var out numeric.Vec
		copy(out[:size], v[:size])
		p.setVec(out)
		return nil
	}
}

func zip(high bool) opHandler {
	return func(p *pass, n *ir.Node) error {
		v, err := numeric.VZip(int(n.RegisterSize), int(n.ElementSize), p.vec(n.Args[0]), p.vec(n.Args[1]), high)
		if err != nil {
			return p.check(n, err)
		}
		p.setVec(v)
		return nil
	}
}

func splat(count int) opHandler {
	return func(p *pass, n *ir.Node) error {
		v, err := numeric.Splat(int(n.Size), count, p.vec(n.Args[0]))
		if err != nil {
			return p.check(n, err)
		}
		p.setVec(v)
		return nil
	}
}

func opCreateVector2(p *pass, n *ir.Node) error {
	v, err := numeric.CreateVector2(int(n.Size), p.vec(n.Args[0]), p.vec(n.Args[1]))
	if err != nil {
		return p.check(n, err)
	}
	p.setVec(v)
	return nil
}

func opVInsElement(p *pass, n *ir.Node) error {
	v, err := numeric.VInsElement(int(n.RegisterSize), int(n.ElementSize), int(n.DestIdx), int(n.SrcIdx),
		p.vec(n.Args[0]), p.vec(n.Args[1]))
	if err != nil {
		return p.check(n, err)
	}
	p.setVec(v)
	return nil
}
