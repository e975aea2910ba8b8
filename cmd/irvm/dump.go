package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/tinyrange/irvm/internal/core"
	"github.com/tinyrange/irvm/internal/cpustate"
	"github.com/tinyrange/irvm/internal/guestmem"
)

type painter struct {
	styled bool
	bold   ansi.Style
	faint  ansi.Style
}

func newPainter(styled bool) painter {
	return painter{
		styled: styled,
		bold:   ansi.Style{}.Bold(),
		faint:  ansi.Style{}.Faint(),
	}
}

func (p painter) title(s string) string {
	if !p.styled {
		return s
	}
	return p.bold.Styled(s)
}

func (p painter) dim(s string) string {
	if !p.styled {
		return s
	}
	return p.faint.Styled(s)
}

// printThreads writes a register dump of every thread followed by the memory
// layout and digest. Zero registers are dimmed on a terminal.
func printThreads(w io.Writer, ts []*core.Thread, mem *guestmem.Mapper, styled bool) {
	p := newPainter(styled)

	for _, t := range ts {
		s := &t.State
		fmt.Fprintf(w, "%s  rip=%#x passes=%d instructions=%d\n",
			p.title(fmt.Sprintf("thread %d", t.ID)), s.RIP(), t.Stats.Passes.Load(), t.Stats.InstructionsExecuted.Load())

		var row []string
		for i := 0; i < cpustate.NumGPRs; i++ {
			cell := fmt.Sprintf("%-3s %016x", cpustate.GPRName(i), s.GPR(i))
			if s.GPR(i) == 0 {
				cell = p.dim(cell)
			}
			row = append(row, cell)
			if len(row) == 4 {
				fmt.Fprintf(w, "  %s\n", strings.Join(row, "  "))
				row = row[:0]
			}
		}

		for i := 0; i < cpustate.NumXMMs; i++ {
			v := s.XMM(i)
			if v.IsZero() {
				continue
			}
			fmt.Fprintf(w, "  %-5s %016x%016x\n", fmt.Sprintf("xmm%d", i), v.Hi, v.Lo)
		}

		var flags []string
		for i := 0; i < cpustate.NumFlags; i++ {
			if f := s.Flag(i); f != 0 {
				flags = append(flags, fmt.Sprintf("%d=%d", i, f))
			}
		}
		if len(flags) > 0 {
			fmt.Fprintf(w, "  flags %s\n", strings.Join(flags, " "))
		}
		if s.FSBase() != 0 || s.GSBase() != 0 {
			fmt.Fprintf(w, "  fsbase %#x gsbase %#x\n", s.FSBase(), s.GSBase())
		}
		if sig := t.PendingSignal(); sig != 0 {
			fmt.Fprintf(w, "  signal %v\n", sig)
		}
		fmt.Fprintf(w, "  %s\n", p.dim(fmt.Sprintf("state %x", s.Digest())))
	}

	fmt.Fprintln(w, p.title("memory"))
	for _, r := range mem.Regions() {
		fmt.Fprintf(w, "  %-10s %#x-%#x\n", r.Name, r.Base, r.End())
	}
	fmt.Fprintf(w, "  %s\n", p.dim(fmt.Sprintf("digest %x", mem.Digest())))
}

// printDigests writes one line per thread state plus one for memory, for
// comparing runs.
func printDigests(w io.Writer, ts []*core.Thread, mem *guestmem.Mapper) {
	for _, t := range ts {
		fmt.Fprintf(w, "state %d %x\n", t.ID, t.State.Digest())
	}
	fmt.Fprintf(w, "memory %x\n", mem.Digest())
}
