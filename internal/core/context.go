// Package core holds the state shared by every guest thread of an emulator
// instance and the per-thread run loop that drives an execution backend.
package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinyrange/irvm/internal/cpuid"
	"github.com/tinyrange/irvm/internal/guestmem"
	"github.com/tinyrange/irvm/internal/syscalls"
)

// Context is shared by all threads of one emulated process.
type Context struct {
	Config   Config
	Memory   *guestmem.Mapper
	Syscalls syscalls.Dispatcher
	CPUID    *cpuid.Service
	Programs *ProgramCache
	Clock    Clock
	Log      *slog.Logger

	// OnPass, when set, is called after every completed pass.
	OnPass func(t *Thread)
}

// NewContext builds a context from cfg: guest memory regions are mapped, the
// Linux syscall table is installed and the program cache is created.
func NewContext(cfg Config, log *slog.Logger) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.normalize()

	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	programs, err := NewProgramCache(cfg.ProgramCacheSize)
	if err != nil {
		return nil, err
	}

	mem := guestmem.New()
	for _, r := range cfg.Memory {
		if err := mem.Map(r.Base, r.Size, r.Name); err != nil {
			return nil, errors.Join(fmt.Errorf("map %s: %w", r.Name, err), mem.Close())
		}
	}

	features := cpuid.Host()
	if cfg.CPUFeatures == CPUFeaturesBaseline {
		features = cpuid.Baseline()
	}

	var clock Clock = RealtimeClock{}
	if cfg.DeterministicCycles {
		clock = FixedClock(0)
	}

	return &Context{
		Config:   cfg,
		Memory:   mem,
		Syscalls: syscalls.NewLinux(mem, log),
		CPUID:    cpuid.New(features),
		Programs: programs,
		Clock:    clock,
		Log:      log,
	}, nil
}

// Close drops every cached program and releases guest memory.
func (c *Context) Close() error {
	c.Programs.Purge()
	return c.Memory.Close()
}
