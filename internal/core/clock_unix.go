//go:build linux || darwin

package core

import "golang.org/x/sys/unix"

// RealtimeClock reports CLOCK_REALTIME in nanoseconds.
type RealtimeClock struct{}

func (RealtimeClock) Cycles() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts); err != nil {
		return 0
	}
	return uint64(ts.Sec)*1e9 + uint64(ts.Nsec)
}
