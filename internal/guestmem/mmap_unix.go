//go:build unix

package guestmem

import "golang.org/x/sys/unix"

// allocate backs a region with anonymous private memory so large guest
// address spaces do not live on the Go heap.
func allocate(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func release(b []byte) error {
	return unix.Munmap(b)
}
