package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tinyrange/irvm/internal/cpustate"
	"github.com/tinyrange/irvm/internal/syscalls"
)

// Stats counts the work done by a thread.
type Stats struct {
	InstructionsExecuted atomic.Uint64
	Passes               atomic.Uint64
}

// Signaler is implemented by errors that correspond to a guest signal.
type Signaler interface {
	error
	Signal() syscall.Signal
}

// Thread is one guest thread: its register file plus the backend that runs
// passes over it. A thread is driven by a single goroutine.
type Thread struct {
	ID      int
	Context *Context
	State   cpustate.State
	Stats   Stats

	// ShouldStop is set by HLT and by the exit syscalls.
	ShouldStop atomic.Bool

	backend       Backend
	exitCode      atomic.Int32
	pendingSignal atomic.Int32
}

var (
	_ syscalls.Thread = &Thread{}
)

// NewThread returns a thread of c executed by b.
func NewThread(c *Context, id int, b Backend) *Thread {
	return &Thread{ID: id, Context: c, backend: b}
}

// Backend returns the backend executing the thread.
func (t *Thread) Backend() Backend { return t.backend }

// TID implements syscalls.Thread.
func (t *Thread) TID() int { return t.ID }

// Exit implements syscalls.Thread.
func (t *Thread) Exit(code int) {
	t.exitCode.Store(int32(code))
	t.ShouldStop.Store(true)
}

func (t *Thread) ExitCode() int { return int(t.exitCode.Load()) }

// PendingSignal returns the signal recorded by a guest fault in FaultSignal
// mode, or 0.
func (t *Thread) PendingSignal() syscall.Signal {
	return syscall.Signal(t.pendingSignal.Load())
}

// Step runs a single pass for the current RIP.
func (t *Thread) Step() error {
	entry, ok := t.Context.Programs.Lookup(t.State.RIP())
	if !ok {
		return fmt.Errorf("%w %#x", ErrNoProgram, t.State.RIP())
	}

	var err error
	if entry.Exec != nil {
		err = entry.Exec(t)
	} else {
		err = t.backend.Execute(t)
	}
	if err != nil {
		return err
	}

	t.Stats.Passes.Add(1)
	if t.Context.OnPass != nil {
		t.Context.OnPass(t)
	}
	return nil
}

// Run executes passes until the thread stops, ctx is cancelled or maxPasses
// passes have run. A maxPasses of 0 means no limit.
func (t *Thread) Run(ctx context.Context, maxPasses uint64) error {
	log := t.Context.Log.With("tid", t.ID)

	for n := uint64(0); maxPasses == 0 || n < maxPasses; n++ {
		if t.ShouldStop.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := t.Step()
		if err == nil {
			continue
		}

		var sig Signaler
		if t.Context.Config.FaultMode == FaultSignal && errors.As(err, &sig) {
			log.Warn("guest fault", "signal", sig.Signal(), "err", err)
			t.pendingSignal.Store(int32(sig.Signal()))
			t.ShouldStop.Store(true)
			return nil
		}
		return fmt.Errorf("thread %d: %w", t.ID, err)
	}

	log.Debug("pass limit reached", "passes", maxPasses, "rip", fmt.Sprintf("%#x", t.State.RIP()))
	return nil
}

// RunThreads runs every thread concurrently and returns the first error. An
// error cancels the remaining threads.
func RunThreads(ctx context.Context, threads []*Thread, maxPasses uint64) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, t := range threads {
		eg.Go(func() error {
			return t.Run(ctx, maxPasses)
		})
	}
	return eg.Wait()
}
