package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/tinyrange/irvm/internal/core"
	"github.com/tinyrange/irvm/internal/cpustate"
	"github.com/tinyrange/irvm/internal/interp"
	"github.com/tinyrange/irvm/internal/ir/irfile"
	"github.com/tinyrange/irvm/internal/profile"
	"github.com/tinyrange/irvm/internal/snapshot"
)

// exitError carries the guest's exit status out of run.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("guest exited with status %d", e.code)
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var exitErr *exitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "irvm: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps a run error to a process status: the guest's own status,
// 1 for guest faults and usage errors, 2 for interpreter failures.
func exitCode(err error) int {
	var (
		exitErr *exitError
		ierr    *interp.InternalError
		cerr    *interp.UnsupportedConditionError
	)
	switch {
	case errors.As(err, &exitErr):
		return exitErr.code
	case errors.As(err, &ierr), errors.As(err, &cerr):
		return 2
	}
	return 1
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("irvm", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Runtime configuration (YAML)")
	threads := fs.Int("threads", 1, "Number of guest threads")
	passes := fs.Uint64("passes", 0, "Maximum passes per thread (0 for no limit)")
	dbg := fs.Bool("debug", false, "Enable debug logging")
	progress := fs.Bool("progress", false, "Show a pass progress bar")
	timeout := fs.Duration("timeout", 0, "Stop the run after this long")
	snapshotIn := fs.String("snapshot-in", "", "Restore thread state and memory from a snapshot")
	snapshotOut := fs.String("snapshot-out", "", "Write a snapshot when the run ends")
	digestOnly := fs.Bool("digest", false, "Print only state and memory digests")
	profilePath := fs.String("profile", "", "Record the duration of every pass to this file")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: irvm [flags] <program.yaml>\n\n")
		fmt.Fprintf(stderr, "Run IR programs with the interpreter backend.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one program file")
	}
	if *threads < 1 {
		return fmt.Errorf("-threads must be at least 1")
	}

	cfg := core.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = core.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *dbg {
		cfg.LogLevel = "debug"
	}

	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(log)

	file, err := irfile.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	programs, err := file.Programs()
	if err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}
	cfg.Memory = append(cfg.Memory, file.Regions...)

	// Nothing can rebuild a program evicted from the cache, so it must hold
	// every program in the file.
	cacheSize := cfg.ProgramCacheSize
	if cacheSize == 0 {
		cacheSize = core.DefaultProgramCacheSize
	}
	if cacheSize < len(programs) {
		log.Warn("program cache too small, growing it",
			"configured", cacheSize,
			"programs", len(programs),
		)
		cfg.ProgramCacheSize = len(programs)
	}

	ctx, err := core.NewContext(cfg, log)
	if err != nil {
		return err
	}
	defer ctx.Close()

	var snap *snapshot.Snapshot
	if *snapshotIn != "" {
		if snap, err = loadSnapshot(*snapshotIn); err != nil {
			return err
		}
		if len(snap.States) < *threads {
			return fmt.Errorf("snapshot holds %d threads, need %d", len(snap.States), *threads)
		}
	}

	ts := make([]*core.Thread, *threads)
	for i := range ts {
		backend := interp.New(ctx)
		ts[i] = core.NewThread(ctx, i+1, backend)

		if snap != nil {
			ts[i].State = snap.States[i]
			continue
		}
		// Memory contents are shared, so only the first thread seeds them.
		mem := ctx.Memory
		if i > 0 {
			mem = nil
		}
		if err := file.Apply(&ts[i].State, mem); err != nil {
			return fmt.Errorf("%s: %w", fs.Arg(0), err)
		}
	}
	if snap != nil {
		if err := snap.Restore(ctx.Memory); err != nil {
			return err
		}
	}

	var prof *profile.Writer
	if *profilePath != "" {
		f, err := os.Create(*profilePath)
		if err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		defer f.Close()
		if prof, err = profile.NewWriter(f); err != nil {
			return err
		}
	}

	compiler := ts[0].Backend()
	for _, p := range programs {
		entry := ctx.Programs.Insert(p.RIP, p.Program, p.Debug)
		exec := compiler.Compile(p.Program, p.Debug)
		if prof != nil {
			exec = timed(exec, prof)
		}
		entry.Exec = exec
	}
	log.Debug("programs installed", "count", len(programs), "backend", compiler.Name())

	if *progress {
		total := int64(-1)
		if *passes > 0 {
			total = int64(*passes) * int64(*threads)
		}
		bar := progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("passes"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		ctx.OnPass = func(*core.Thread) { bar.Add(1) }
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, *timeout)
		defer cancel()
	}

	start := time.Now()
	runErr := core.RunThreads(runCtx, ts, *passes)
	elapsed := time.Since(start)

	for _, t := range ts {
		log.Info("thread finished",
			"tid", t.ID,
			"passes", t.Stats.Passes.Load(),
			"instructions", t.Stats.InstructionsExecuted.Load(),
			"rip", fmt.Sprintf("%#x", t.State.RIP()),
			"elapsed", elapsed,
		)
	}

	if prof != nil {
		if err := prof.Close(); err != nil {
			return errors.Join(runErr, err)
		}
		logHotPrograms(log, *profilePath)
	}

	if *snapshotOut != "" {
		if err := saveSnapshot(*snapshotOut, ts, ctx); err != nil {
			return errors.Join(runErr, err)
		}
	}

	styled := false
	if f, ok := stdout.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	if *digestOnly {
		printDigests(stdout, ts, ctx.Memory)
	} else {
		printThreads(stdout, ts, ctx.Memory, styled)
	}

	if runErr != nil {
		return runErr
	}
	for _, t := range ts {
		if sig := t.PendingSignal(); sig != 0 {
			log.Error("thread killed by signal", "tid", t.ID, "signal", sig)
			return &exitError{code: 128 + int(sig)}
		}
	}
	if code := ts[0].ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func timed(exec core.ExecFunc, prof *profile.Writer) core.ExecFunc {
	return func(t *core.Thread) error {
		rip := t.State.RIP()
		start := time.Now()
		err := exec(t)
		prof.Record(profile.Record{TID: uint32(t.ID), RIP: rip, Duration: time.Since(start)})
		return err
	}
}

// logHotPrograms logs the programs that took the most time in total.
func logHotPrograms(log *slog.Logger, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Warn("reopen profile", "error", err)
		return
	}
	defer f.Close()

	entries, err := profile.Summarize(f)
	if err != nil {
		log.Warn("summarize profile", "error", err)
		return
	}
	for _, e := range entries[:min(len(entries), 5)] {
		log.Info("profile",
			"rip", fmt.Sprintf("%#x", e.RIP),
			"passes", e.Count,
			"total", e.Sum,
			"mean", e.Mean(),
			"max", e.Max,
		)
	}
}

func loadSnapshot(path string) (*snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := snapshot.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	return snap, nil
}

func saveSnapshot(path string, ts []*core.Thread, ctx *core.Context) error {
	states := make([]*cpustate.State, len(ts))
	for i, t := range ts {
		states[i] = &t.State
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := snapshot.Save(f, states, ctx.Memory); err != nil {
		f.Close()
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	ctx.Log.Info("snapshot written", "path", path, "threads", len(ts))
	return nil
}
