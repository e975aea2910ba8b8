//go:build !linux && !darwin

package core

import "time"

// RealtimeClock reports wall clock time in nanoseconds.
type RealtimeClock struct{}

func (RealtimeClock) Cycles() uint64 {
	return uint64(time.Now().UnixNano())
}
