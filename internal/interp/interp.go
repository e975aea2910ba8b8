// Package interp executes IR programs node by node.
//
// Every node that produces a value gets a slot in a per-interpreter arena
// before its semantics run; later nodes read their operands back through the
// result index. Both are reset at the start of each pass, so one Interpreter
// must only ever drive a single thread.
package interp

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinyrange/irvm/internal/arena"
	"github.com/tinyrange/irvm/internal/core"
	"github.com/tinyrange/irvm/internal/ir"
	"github.com/tinyrange/irvm/internal/numeric"
)

// Interpreter is the IR interpreter backend.
type Interpreter struct {
	ctx   *core.Context
	log   *slog.Logger
	arena *arena.Arena
	index *arena.Index
}

var (
	_ core.Backend = &Interpreter{}
)

// New returns an interpreter for one thread of ctx.
func New(ctx *core.Context) *Interpreter {
	log := ctx.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Interpreter{
		ctx:   ctx,
		log:   log.With("backend", "interp"),
		arena: arena.New(ctx.Config.ArenaSize),
		index: arena.NewIndex(ctx.Config.IndexSize),
	}
}

func (i *Interpreter) Name() string { return "Interpreter" }

// Compile has nothing to translate. The returned function runs the calling
// thread's own backend, so it may be shared between threads.
func (i *Interpreter) Compile(p *ir.Program, d ir.DebugData) core.ExecFunc {
	return func(t *core.Thread) error {
		return t.Backend().Execute(t)
	}
}

// Execute runs one pass of the program cached for the thread's RIP.
func (i *Interpreter) Execute(t *core.Thread) error {
	rip := t.State.RIP()
	entry, ok := i.ctx.Programs.Lookup(rip)
	if !ok {
		return fmt.Errorf("%w %#x", core.ErrNoProgram, rip)
	}
	return i.Run(t, entry.Program, entry.Debug)
}

func (i *Interpreter) beginPass(nodes int) {
	i.arena.Reset()
	i.index.Reset(nodes)
}

// pass is the state of one execution of a program.
type pass struct {
	i    *Interpreter
	t    *core.Thread
	prog *ir.Program

	id   ir.NodeID
	dest arena.Slot
	next ir.NodeID
	done bool
}

// Run executes prog on t from its first node.
func (i *Interpreter) Run(t *core.Thread, prog *ir.Program, debug ir.DebugData) (err error) {
	i.beginPass(prog.Len())

	p := &pass{i: i, t: t, prog: prog}
	defer func() {
		if r := recover(); r != nil {
			op := ir.Opcode(0)
			if int(p.id) < prog.Len() {
				op = prog.Node(p.id).Op
			}
			err = &InternalError{Op: op, Node: p.id, Detail: fmt.Sprint(r)}
		}
	}()

	for int(p.id) < prog.Len() {
		n := prog.Node(p.id)
		if !n.Op.Valid() {
			return &InternalError{Op: n.Op, Node: p.id, Detail: fmt.Sprintf("unknown opcode %d", uint16(n.Op))}
		}

		if n.HasDest {
			p.dest = i.arena.Alloc(n.AllocSize())
			i.index.Set(uint32(p.id), p.dest)
		}

		p.next = p.id + 1
		if err := handlers[n.Op](p, n); err != nil {
			return err
		}
		if p.done {
			break
		}
		p.id = p.next
	}

	t.Stats.InstructionsExecuted.Add(debug.GuestInstructionCount)
	return nil
}

func (p *pass) internal(n *ir.Node, format string, args ...any) error {
	return &InternalError{Op: n.Op, Node: p.id, Detail: fmt.Sprintf(format, args...)}
}

// check converts errors from the numeric library into interpreter errors.
func (p *pass) check(n *ir.Node, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, numeric.ErrDivideByZero) {
		return &GuestFault{Kind: FaultDivide, RIP: p.t.State.RIP(), Err: err}
	}
	return p.internal(n, "%v", err)
}

func (p *pass) slot(id ir.NodeID) arena.Slot {
	return p.i.index.Get(uint32(id))
}

func (p *pass) u64(id ir.NodeID) uint64 {
	return p.i.arena.Uint64(p.slot(id))
}

func (p *pass) u128(id ir.NodeID) numeric.Uint128 {
	return p.i.arena.Uint128(p.slot(id))
}

// wide reads an operand of width bytes. Only width 16 uses the upper half.
func (p *pass) wide(width int, id ir.NodeID) numeric.Uint128 {
	if width == 16 {
		return p.u128(id)
	}
	return numeric.From64(p.u64(id))
}

func (p *pass) vec(id ir.NodeID) numeric.Vec {
	var v numeric.Vec
	copy(v[:], p.i.arena.Prefix(p.slot(id), len(v)))
	return v
}

// setU64 stores a scalar result. The upper half of the 16-byte minimum slot
// is cleared so wide readers see a zero-extended value.
func (p *pass) setU64(v uint64) {
	p.i.arena.PutUint128(p.dest, numeric.From64(v))
}

func (p *pass) setU128(v numeric.Uint128) {
	p.i.arena.PutUint128(p.dest, v)
}

// setWide stores a value that is 128 bits wide only at width 16.
func (p *pass) setWide(width int, v numeric.Uint128) {
	if width == 16 {
		p.setU128(v)
		return
	}
	p.setU64(v.Lo)
}

func (p *pass) setVec(v numeric.Vec) {
	copy(p.i.arena.Prefix(p.dest, len(v)), v[:])
}
