package core

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tinyrange/irvm/internal/ir"
)

// ErrNoProgram is returned when no compiled program exists for the guest RIP.
var ErrNoProgram = errors.New("core: no program for rip")

// ExecFunc runs a compiled program on a thread.
type ExecFunc func(t *Thread) error

// Backend turns IR programs into something executable.
type Backend interface {
	Name() string
	Compile(p *ir.Program, d ir.DebugData) ExecFunc
	Execute(t *Thread) error
}

// Entry is a cached program and its compiled form.
type Entry struct {
	RIP     uint64
	Program *ir.Program
	Debug   ir.DebugData
	Exec    ExecFunc
}

// ProgramCache maps guest RIPs to programs. It is shared by every thread of a
// Context and safe for concurrent use.
type ProgramCache struct {
	entries *lru.Cache[uint64, *Entry]
}

// NewProgramCache returns a cache holding at most size programs.
func NewProgramCache(size int) (*ProgramCache, error) {
	entries, err := lru.New[uint64, *Entry](size)
	if err != nil {
		return nil, fmt.Errorf("create program cache: %w", err)
	}
	return &ProgramCache{entries: entries}, nil
}

// Insert stores p for rip, replacing any previous program.
func (c *ProgramCache) Insert(rip uint64, p *ir.Program, d ir.DebugData) *Entry {
	e := &Entry{RIP: rip, Program: p, Debug: d}
	c.entries.Add(rip, e)
	return e
}

// Lookup returns the entry for rip.
func (c *ProgramCache) Lookup(rip uint64) (*Entry, bool) {
	return c.entries.Get(rip)
}

func (c *ProgramCache) Len() int {
	return c.entries.Len()
}

// Purge drops every program.
func (c *ProgramCache) Purge() {
	c.entries.Purge()
}
