// Package syscalls bridges guest system calls to host implementations.
//
// The interpreter collects the seven argument values of a Syscall node into
// an Arguments block (argument 0 is the x86-64 syscall number) and hands it to
// a Dispatcher. The returned value is stored verbatim as the node result, so
// failures are reported the Linux way as a negated errno.
package syscalls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
)

// Arguments holds the syscall number followed by up to six arguments.
type Arguments [7]uint64

// Number returns the syscall number.
func (a *Arguments) Number() uint64 { return a[0] }

// Arg returns argument i, counting from 1.
func (a *Arguments) Arg(i int) uint64 { return a[i] }

// Thread is the calling guest thread as seen by syscall handlers.
type Thread interface {
	TID() int
	// Exit marks the thread as finished with the given status.
	Exit(code int)
}

// Memory translates guest addresses into host byte slices.
type Memory interface {
	Translate(addr, size uint64) ([]byte, error)
}

// Dispatcher handles guest system calls.
type Dispatcher interface {
	HandleSyscall(t Thread, args *Arguments) uint64
}

// Handler implements a single syscall.
type Handler func(t Thread, args *Arguments) uint64

type entry struct {
	name    string
	handler Handler
}

// Table is a Dispatcher keyed by syscall number. Unregistered numbers return
// -ENOSYS.
type Table struct {
	log *slog.Logger

	mu      sync.RWMutex
	entries map[uint64]entry
}

var (
	_ Dispatcher = &Table{}
)

// NewTable returns an empty table. A nil logger discards output.
func NewTable(log *slog.Logger) *Table {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Table{log: log, entries: make(map[uint64]entry)}
}

// Register installs h for nr, replacing any previous handler.
func (t *Table) Register(nr uint64, name string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[nr] = entry{name: name, handler: h}
}

// HandleSyscall implements Dispatcher.
func (t *Table) HandleSyscall(th Thread, args *Arguments) uint64 {
	t.mu.RLock()
	e, ok := t.entries[args.Number()]
	t.mu.RUnlock()
	if !ok {
		t.log.Debug("unimplemented syscall", "nr", args.Number(), "name", Name(args.Number()), "tid", th.TID())
		return Errno(syscall.ENOSYS)
	}

	ret := e.handler(th, args)
	if t.log.Enabled(context.Background(), slog.LevelDebug) {
		t.log.Debug("syscall",
			"name", e.name,
			"tid", th.TID(),
			"args", fmt.Sprintf("%#x", args[1:]),
			"ret", int64(ret),
		)
	}
	return ret
}

// Errno encodes errno as a syscall return value.
func Errno(errno syscall.Errno) uint64 {
	return uint64(-int64(errno))
}

// Result converts a host (value, error) pair into a syscall return value.
func Result(v int, err error) uint64 {
	if err != nil {
		var errno syscall.Errno
		if errors.As(err, &errno) {
			return Errno(errno)
		}
		return Errno(syscall.EIO)
	}
	return uint64(int64(v))
}
