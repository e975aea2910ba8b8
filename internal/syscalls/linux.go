//go:build linux || darwin

package syscalls

import (
	"encoding/binary"
	"log/slog"
	"syscall"

	"golang.org/x/sys/unix"
)

type linux struct {
	mem Memory
}

// NewLinux returns a table serving the Linux syscalls the emulator supports
// on this host. Guest pointers are translated through mem.
func NewLinux(mem Memory, log *slog.Logger) *Table {
	t := NewTable(log)
	l := &linux{mem: mem}

	t.Register(SYS_READ, "read", l.read)
	t.Register(SYS_WRITE, "write", l.write)
	t.Register(SYS_GETPID, "getpid", l.getpid)
	t.Register(SYS_GETTID, "gettid", l.gettid)
	t.Register(SYS_EXIT, "exit", l.exit)
	t.Register(SYS_EXIT_GROUP, "exit_group", l.exit)
	t.Register(SYS_CLOCK_GETTIME, "clock_gettime", l.clockGettime)

	registerPassthrough(t, mem)

	return t
}

func (l *linux) buffer(addr, count uint64) ([]byte, bool) {
	if count == 0 {
		return nil, true
	}
	b, err := l.mem.Translate(addr, count)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (l *linux) read(t Thread, args *Arguments) uint64 {
	buf, ok := l.buffer(args.Arg(2), args.Arg(3))
	if !ok {
		return Errno(syscall.EFAULT)
	}
	return Result(unix.Read(int(int32(args.Arg(1))), buf))
}

func (l *linux) write(t Thread, args *Arguments) uint64 {
	buf, ok := l.buffer(args.Arg(2), args.Arg(3))
	if !ok {
		return Errno(syscall.EFAULT)
	}
	return Result(unix.Write(int(int32(args.Arg(1))), buf))
}

func (l *linux) getpid(t Thread, args *Arguments) uint64 {
	return uint64(unix.Getpid())
}

func (l *linux) gettid(t Thread, args *Arguments) uint64 {
	return uint64(t.TID())
}

func (l *linux) exit(t Thread, args *Arguments) uint64 {
	t.Exit(int(int32(args.Arg(1))))
	return 0
}

func (l *linux) clockGettime(t Thread, args *Arguments) uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(int32(args.Arg(1)), &ts); err != nil {
		return Result(0, err)
	}
	b, ok := l.buffer(args.Arg(2), 16)
	if !ok {
		return Errno(syscall.EFAULT)
	}
	binary.LittleEndian.PutUint64(b[0:], uint64(ts.Sec))
	binary.LittleEndian.PutUint64(b[8:], uint64(ts.Nsec))
	return 0
}
