package core

// Clock feeds the CycleCounter op.
type Clock interface {
	Cycles() uint64
}

// FixedClock always reports the same value.
type FixedClock uint64

func (c FixedClock) Cycles() uint64 { return uint64(c) }

var (
	_ Clock = FixedClock(0)
	_ Clock = RealtimeClock{}
)
