package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/tinyrange/irvm/internal/ir"
)

type fakeBackend struct {
	execute func(t *Thread) error
	calls   int
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Compile(*ir.Program, ir.DebugData) ExecFunc { return nil }

func (b *fakeBackend) Execute(t *Thread) error {
	b.calls++
	if b.execute != nil {
		return b.execute(t)
	}
	return nil
}

type fakeFault struct{ sig syscall.Signal }

func (f *fakeFault) Error() string          { return "fake fault" }
func (f *fakeFault) Signal() syscall.Signal { return f.sig }

func newTestContext(t *testing.T, cfg Config) *Context {
	t.Helper()
	c, err := NewContext(cfg, nil)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
arenaSize: 8192
deterministicCycles: true
faultMode: signal
cpuFeatures: baseline
logLevel: debug
memory:
  - name: stack
    base: 0x7000000
    size: 0x10000
  - base: 0x400000
    size: 0x1000
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.ArenaSize != 8192 {
		t.Errorf("ArenaSize = %d", cfg.ArenaSize)
	}
	if cfg.IndexSize != DefaultIndexSize || cfg.ProgramCacheSize != DefaultProgramCacheSize {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if !cfg.DeterministicCycles || cfg.FaultMode != FaultSignal {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level = %v", cfg.Level())
	}
	if len(cfg.Memory) != 2 || cfg.Memory[1].Name != "region1" || cfg.Memory[0].Base != 0x7000000 {
		t.Errorf("Memory = %+v", cfg.Memory)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"fault mode", "faultMode: explode\n"},
		{"cpu features", "cpuFeatures: avx512\n"},
		{"log level", "logLevel: loud\n"},
		{"negative size", "arenaSize: -1\n"},
		{"zero region", "memory:\n  - base: 0x1000\n    size: 0\n"},
		{"unaligned region", "memory:\n  - base: 0x1001\n    size: 0x1000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.yaml)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irvm.yaml")
	if err := os.WriteFile(path, []byte("programCacheSize: 16\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ProgramCacheSize != 16 || cfg.FaultMode != FaultAbort {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestProgramCacheEvicts(t *testing.T) {
	c, err := NewProgramCache(2)
	if err != nil {
		t.Fatalf("NewProgramCache: %v", err)
	}
	p := &ir.Program{}
	c.Insert(0x1000, p, ir.DebugData{GuestInstructionCount: 1})
	c.Insert(0x2000, p, ir.DebugData{})
	if _, ok := c.Lookup(0x1000); !ok {
		t.Fatalf("0x1000 missing")
	}
	c.Insert(0x3000, p, ir.DebugData{})

	if _, ok := c.Lookup(0x2000); ok {
		t.Fatalf("least recently used entry not evicted")
	}
	e, ok := c.Lookup(0x1000)
	if !ok || e.Debug.GuestInstructionCount != 1 {
		t.Fatalf("entry = %+v, %v", e, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d", c.Len())
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Len after Purge = %d", c.Len())
	}
}

func TestNewContextMapsMemory(t *testing.T) {
	c := newTestContext(t, Config{Memory: []MemoryRegion{{Name: "data", Base: 0x10000, Size: 0x1000}}})
	if _, err := c.Memory.Translate(0x10000, 8); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if c.Config.FaultMode != FaultAbort {
		t.Fatalf("FaultMode = %q", c.Config.FaultMode)
	}
	if _, err := NewContext(Config{Memory: []MemoryRegion{
		{Base: 0x10000, Size: 0x2000},
		{Base: 0x11000, Size: 0x1000},
	}}, nil); err == nil {
		t.Fatalf("expected overlap error")
	}
}

func TestDeterministicClock(t *testing.T) {
	c := newTestContext(t, Config{DeterministicCycles: true})
	if got := c.Clock.Cycles(); got != 0 {
		t.Fatalf("Cycles = %d", got)
	}
	if (RealtimeClock{}).Cycles() == 0 {
		t.Fatalf("realtime clock reads zero")
	}
}

func TestThreadRunStopsOnExit(t *testing.T) {
	c := newTestContext(t, Config{})
	c.Programs.Insert(0, &ir.Program{}, ir.DebugData{})

	passes := 0
	c.OnPass = func(*Thread) { passes++ }

	b := &fakeBackend{execute: func(t *Thread) error {
		if t.Stats.Passes.Load() == 2 {
			t.Exit(7)
		}
		return nil
	}}
	th := NewThread(c, 1, b)
	if err := th.Run(context.Background(), 100); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if b.calls != 3 || passes != 3 {
		t.Fatalf("calls = %d, passes = %d; want 3", b.calls, passes)
	}
	if th.ExitCode() != 7 {
		t.Fatalf("ExitCode = %d", th.ExitCode())
	}
}

func TestThreadRunPassLimitAndMissingProgram(t *testing.T) {
	c := newTestContext(t, Config{})
	c.Programs.Insert(0, &ir.Program{}, ir.DebugData{})

	b := &fakeBackend{}
	th := NewThread(c, 1, b)
	if err := th.Run(context.Background(), 5); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if th.Stats.Passes.Load() != 5 {
		t.Fatalf("Passes = %d", th.Stats.Passes.Load())
	}

	th.State.SetRIP(0x1234)
	if err := th.Run(context.Background(), 1); !errors.Is(err, ErrNoProgram) {
		t.Fatalf("got %v, want ErrNoProgram", err)
	}
}

func TestThreadRunUsesBoundExec(t *testing.T) {
	c := newTestContext(t, Config{})
	e := c.Programs.Insert(0, &ir.Program{}, ir.DebugData{})
	bound := 0
	e.Exec = func(*Thread) error {
		bound++
		return nil
	}

	b := &fakeBackend{}
	if err := NewThread(c, 1, b).Run(context.Background(), 3); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bound != 3 || b.calls != 0 {
		t.Fatalf("bound = %d, backend = %d", bound, b.calls)
	}
}

func TestFaultModes(t *testing.T) {
	fault := &fakeFault{sig: syscall.SIGSEGV}

	t.Run("abort", func(t *testing.T) {
		c := newTestContext(t, Config{})
		c.Programs.Insert(0, &ir.Program{}, ir.DebugData{})
		th := NewThread(c, 1, &fakeBackend{execute: func(*Thread) error { return fault }})
		err := th.Run(context.Background(), 0)
		var sig Signaler
		if !errors.As(err, &sig) {
			t.Fatalf("got %v, want the fault", err)
		}
		if th.PendingSignal() != 0 {
			t.Fatalf("PendingSignal = %v", th.PendingSignal())
		}
	})

	t.Run("signal", func(t *testing.T) {
		c := newTestContext(t, Config{FaultMode: FaultSignal})
		c.Programs.Insert(0, &ir.Program{}, ir.DebugData{})
		th := NewThread(c, 1, &fakeBackend{execute: func(*Thread) error { return fault }})
		if err := th.Run(context.Background(), 0); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if th.PendingSignal() != syscall.SIGSEGV || !th.ShouldStop.Load() {
			t.Fatalf("PendingSignal = %v, stopped = %v", th.PendingSignal(), th.ShouldStop.Load())
		}
	})
}

func TestRunThreadsCancelsOnError(t *testing.T) {
	c := newTestContext(t, Config{})
	c.Programs.Insert(0, &ir.Program{}, ir.DebugData{})

	boom := errors.New("boom")
	failing := NewThread(c, 1, &fakeBackend{execute: func(*Thread) error { return boom }})
	spinning := NewThread(c, 2, &fakeBackend{})

	err := RunThreads(context.Background(), []*Thread{failing, spinning}, 0)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
}
