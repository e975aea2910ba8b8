package syscalls

import (
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// The guest and host share the x86-64 Linux ABI here, so timer and epoll
// calls are forwarded with their pointer arguments translated in place.

const (
	sigeventSize   = 64
	itimerspecSize = 32
	epollEventSize = 12
)

// pointer describes a guest pointer argument and how many bytes it spans.
type pointer struct {
	arg  int
	size func(args *Arguments) uint64
}

func fixed(arg int, n uint64) pointer {
	return pointer{arg: arg, size: func(*Arguments) uint64 { return n }}
}

func scaled(arg, countArg int, elem uint64) pointer {
	return pointer{arg: arg, size: func(a *Arguments) uint64 {
		return uint64(int32(a.Arg(countArg))) * elem
	}}
}

func sized(arg, sizeArg int) pointer {
	return pointer{arg: arg, size: func(a *Arguments) uint64 { return a.Arg(sizeArg) }}
}

type passthrough struct {
	mem Memory
}

func (p *passthrough) forward(nr uintptr, pointers ...pointer) Handler {
	return func(t Thread, args *Arguments) uint64 {
		var host [6]uintptr
		for i := range host {
			host[i] = uintptr(args.Arg(i + 1))
		}

		var keep [][]byte
		for _, ptr := range pointers {
			addr := args.Arg(ptr.arg)
			size := ptr.size(args)
			if addr == 0 || size == 0 {
				continue
			}
			if int64(size) < 0 {
				return Errno(syscall.EINVAL)
			}
			b, err := p.mem.Translate(addr, size)
			if err != nil {
				return Errno(syscall.EFAULT)
			}
			keep = append(keep, b)
			host[ptr.arg-1] = uintptr(unsafe.Pointer(&b[0]))
		}

		r1, _, errno := unix.Syscall6(nr, host[0], host[1], host[2], host[3], host[4], host[5])
		runtime.KeepAlive(keep)
		if errno != 0 {
			return Errno(errno)
		}
		return uint64(r1)
	}
}

func registerPassthrough(t *Table, mem Memory) {
	p := &passthrough{mem: mem}

	t.Register(SYS_TIMER_CREATE, "timer_create",
		p.forward(unix.SYS_TIMER_CREATE, fixed(2, sigeventSize), fixed(3, 4)))
	t.Register(SYS_TIMER_SETTIME, "timer_settime",
		p.forward(unix.SYS_TIMER_SETTIME, fixed(3, itimerspecSize), fixed(4, itimerspecSize)))
	t.Register(SYS_TIMER_GETTIME, "timer_gettime",
		p.forward(unix.SYS_TIMER_GETTIME, fixed(2, itimerspecSize)))
	t.Register(SYS_TIMER_GETOVERRUN, "timer_getoverrun", p.forward(unix.SYS_TIMER_GETOVERRUN))
	t.Register(SYS_TIMER_DELETE, "timer_delete", p.forward(unix.SYS_TIMER_DELETE))

	t.Register(SYS_EPOLL_CREATE, "epoll_create", p.forward(unix.SYS_EPOLL_CREATE))
	t.Register(SYS_EPOLL_CREATE1, "epoll_create1", p.forward(unix.SYS_EPOLL_CREATE1))
	t.Register(SYS_EPOLL_CTL, "epoll_ctl",
		p.forward(unix.SYS_EPOLL_CTL, fixed(4, epollEventSize)))
	t.Register(SYS_EPOLL_WAIT, "epoll_wait",
		p.forward(unix.SYS_EPOLL_WAIT, scaled(2, 3, epollEventSize)))
	t.Register(SYS_EPOLL_PWAIT, "epoll_pwait",
		p.forward(unix.SYS_EPOLL_PWAIT, scaled(2, 3, epollEventSize), sized(5, 6)))
}
