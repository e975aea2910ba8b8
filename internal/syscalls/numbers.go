package syscalls

import "strconv"

// x86-64 Linux syscall numbers known to the dispatcher.
const (
	SYS_READ             = 0
	SYS_WRITE            = 1
	SYS_GETPID           = 39
	SYS_EXIT             = 60
	SYS_GETTID           = 186
	SYS_EPOLL_CREATE     = 213
	SYS_TIMER_CREATE     = 222
	SYS_TIMER_SETTIME    = 223
	SYS_TIMER_GETTIME    = 224
	SYS_TIMER_GETOVERRUN = 225
	SYS_TIMER_DELETE     = 226
	SYS_CLOCK_GETTIME    = 228
	SYS_EXIT_GROUP       = 231
	SYS_EPOLL_WAIT       = 232
	SYS_EPOLL_CTL        = 233
	SYS_EPOLL_PWAIT      = 281
	SYS_EPOLL_CREATE1    = 291
)

var names = map[uint64]string{
	SYS_READ:             "read",
	SYS_WRITE:            "write",
	SYS_GETPID:           "getpid",
	SYS_EXIT:             "exit",
	SYS_GETTID:           "gettid",
	SYS_EPOLL_CREATE:     "epoll_create",
	SYS_TIMER_CREATE:     "timer_create",
	SYS_TIMER_SETTIME:    "timer_settime",
	SYS_TIMER_GETTIME:    "timer_gettime",
	SYS_TIMER_GETOVERRUN: "timer_getoverrun",
	SYS_TIMER_DELETE:     "timer_delete",
	SYS_CLOCK_GETTIME:    "clock_gettime",
	SYS_EXIT_GROUP:       "exit_group",
	SYS_EPOLL_WAIT:       "epoll_wait",
	SYS_EPOLL_CTL:        "epoll_ctl",
	SYS_EPOLL_PWAIT:      "epoll_pwait",
	SYS_EPOLL_CREATE1:    "epoll_create1",
}

// Name returns the name of syscall nr, or its number if unknown.
func Name(nr uint64) string {
	if n, ok := names[nr]; ok {
		return n
	}
	return "syscall_" + strconv.FormatUint(nr, 10)
}
