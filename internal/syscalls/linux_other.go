//go:build !linux && !darwin

package syscalls

import (
	"log/slog"
	"os"
)

// NewLinux returns a table with the host independent subset of the Linux
// syscalls. Everything else reports ENOSYS.
func NewLinux(mem Memory, log *slog.Logger) *Table {
	t := NewTable(log)
	t.Register(SYS_GETPID, "getpid", func(Thread, *Arguments) uint64 { return uint64(os.Getpid()) })
	t.Register(SYS_GETTID, "gettid", func(th Thread, _ *Arguments) uint64 { return uint64(th.TID()) })
	exit := func(th Thread, args *Arguments) uint64 {
		th.Exit(int(int32(args.Arg(1))))
		return 0
	}
	t.Register(SYS_EXIT, "exit", exit)
	t.Register(SYS_EXIT_GROUP, "exit_group", exit)
	return t
}
