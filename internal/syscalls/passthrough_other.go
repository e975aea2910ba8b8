//go:build (linux && !amd64) || darwin

package syscalls

// Timer and epoll structures differ from the guest ABI on this host, so
// those calls stay unregistered and report ENOSYS.
func registerPassthrough(t *Table, mem Memory) {}
