package numeric

import (
	"encoding/binary"
)

// Vec is a 128-bit vector register value in little-endian lane order.
type Vec [16]byte

// VecFrom128 returns the vector holding v.
func VecFrom128(v Uint128) Vec {
	var out Vec
	binary.LittleEndian.PutUint64(out[0:], v.Lo)
	binary.LittleEndian.PutUint64(out[8:], v.Hi)
	return out
}

// Uint128 returns the register as a single 128-bit value.
func (v Vec) Uint128() Uint128 {
	return Uint128{
		Lo: binary.LittleEndian.Uint64(v[0:]),
		Hi: binary.LittleEndian.Uint64(v[8:]),
	}
}

// Lane returns lane i of size esize bytes, zero-extended.
func (v *Vec) Lane(esize, i int) uint64 {
	off := esize * i
	switch esize {
	case 1:
		return uint64(v[off])
	case 2:
		return uint64(binary.LittleEndian.Uint16(v[off:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(v[off:]))
	default:
		return binary.LittleEndian.Uint64(v[off:])
	}
}

// SetLane stores the low esize bytes of x into lane i.
func (v *Vec) SetLane(esize, i int, x uint64) {
	off := esize * i
	switch esize {
	case 1:
		v[off] = byte(x)
	case 2:
		binary.LittleEndian.PutUint16(v[off:], uint16(x))
	case 4:
		binary.LittleEndian.PutUint32(v[off:], uint32(x))
	default:
		binary.LittleEndian.PutUint64(v[off:], x)
	}
}

// lanes validates a register/element size pair and returns the lane count.
func lanes(op string, regSize, esize int) (int, error) {
	switch esize {
	case 1, 2, 4, 8:
	default:
		return 0, &WidthError{Op: op, Width: esize}
	}
	if regSize <= 0 || regSize > 16 || regSize%esize != 0 {
		return 0, &WidthError{Op: op, Width: regSize}
	}
	return regSize / esize, nil
}

// lanewise applies fn to each pair of lanes. Lanes beyond regSize stay zero.
func lanewise(op string, regSize, esize int, x, y Vec, fn func(a, b uint64) uint64) (Vec, error) {
	n, err := lanes(op, regSize, esize)
	if err != nil {
		return Vec{}, err
	}
	var out Vec
	for i := 0; i < n; i++ {
		out.SetLane(esize, i, fn(x.Lane(esize, i), y.Lane(esize, i)))
	}
	return out, nil
}

func VAdd(regSize, esize int, x, y Vec) (Vec, error) {
	return lanewise("vadd", regSize, esize, x, y, func(a, b uint64) uint64 { return a + b })
}

func VSub(regSize, esize int, x, y Vec) (Vec, error) {
	return lanewise("vsub", regSize, esize, x, y, func(a, b uint64) uint64 { return a - b })
}

func VUMin(regSize, esize int, x, y Vec) (Vec, error) {
	return lanewise("vumin", regSize, esize, x, y, func(a, b uint64) uint64 { return min(a, b) })
}

func VSMin(regSize, esize int, x, y Vec) (Vec, error) {
	return lanewise("vsmin", regSize, esize, x, y, func(a, b uint64) uint64 {
		if SignExtend(a, esize) < SignExtend(b, esize) {
			return a
		}
		return b
	})
}

// VUShl shifts each lane of x left by the matching lane of y. Amounts at or
// beyond the lane width clear the lane.
func VUShl(regSize, esize int, x, y Vec) (Vec, error) {
	return lanewise("vushl", regSize, esize, x, y, func(a, b uint64) uint64 { return a << b })
}

func VUShr(regSize, esize int, x, y Vec) (Vec, error) {
	return lanewise("vushr", regSize, esize, x, y, func(a, b uint64) uint64 { return a >> b })
}

// VUShlS shifts every lane of x left by the scalar held in the first lane of
// y. A 16-byte element shifts the whole register.
func VUShlS(regSize, esize int, x, y Vec) (Vec, error) {
	if esize == 16 {
		if regSize != 16 {
			return Vec{}, &WidthError{Op: "vushls", Width: regSize}
		}
		amount := y.Uint128()
		if amount.Hi != 0 || amount.Lo >= 128 {
			return Vec{}, nil
		}
		return VecFrom128(x.Uint128().Lsh(uint(amount.Lo))), nil
	}
	n, err := lanes("vushls", regSize, esize)
	if err != nil {
		return Vec{}, err
	}
	amount := y.Lane(esize, 0)
	var out Vec
	for i := 0; i < n; i++ {
		out.SetLane(esize, i, x.Lane(esize, i)<<amount)
	}
	return out, nil
}

// VOr operates on the whole register regardless of element size.
func VOr(x, y Vec) Vec {
	return VecFrom128(x.Uint128().Or(y.Uint128()))
}

func VXor(x, y Vec) Vec {
	return VecFrom128(x.Uint128().Xor(y.Uint128()))
}

// VCmpEQ sets each lane to all ones where the lanes are equal and zero
// otherwise.
func VCmpEQ(regSize, esize int, x, y Vec) (Vec, error) {
	return lanewise("vcmpeq", regSize, esize, x, y, func(a, b uint64) uint64 {
		if a == b {
			return ^uint64(0)
		}
		return 0
	})
}

// VCmpGT is a signed lane-wise greater-than.
func VCmpGT(regSize, esize int, x, y Vec) (Vec, error) {
	return lanewise("vcmpgt", regSize, esize, x, y, func(a, b uint64) uint64 {
		if SignExtend(a, esize) > SignExtend(b, esize) {
			return ^uint64(0)
		}
		return 0
	})
}

// CreateVector2 builds a two lane vector of size bytes from the low lanes of
// x and y.
func CreateVector2(size int, x, y Vec) (Vec, error) {
	esize := size / 2
	if _, err := lanes("createvector2", size, esize); err != nil {
		return Vec{}, err
	}
	var out Vec
	out.SetLane(esize, 0, x.Lane(esize, 0))
	out.SetLane(esize, 1, y.Lane(esize, 0))
	return out, nil
}

// Splat replicates the low lane of x into count lanes spanning size bytes.
func Splat(size, count int, x Vec) (Vec, error) {
	if count <= 0 || size%count != 0 {
		return Vec{}, &WidthError{Op: "splat", Width: size}
	}
	esize := size / count
	if _, err := lanes("splat", size, esize); err != nil {
		return Vec{}, err
	}
	v := x.Lane(esize, 0)
	var out Vec
	for i := 0; i < count; i++ {
		out.SetLane(esize, i, v)
	}
	return out, nil
}

// VZip interleaves the low halves of x and y lane by lane. With high set it
// interleaves the high halves instead.
func VZip(regSize, esize int, x, y Vec, high bool) (Vec, error) {
	n, err := lanes("vzip", regSize, esize)
	if err != nil {
		return Vec{}, err
	}
	base := 0
	if high {
		base = n / 2
	}
	var out Vec
	for i := 0; i < n/2; i++ {
		out.SetLane(esize, 2*i, x.Lane(esize, base+i))
		out.SetLane(esize, 2*i+1, y.Lane(esize, base+i))
	}
	return out, nil
}

// VInsElement returns x with lane destIdx replaced by lane srcIdx of y.
func VInsElement(regSize, esize, destIdx, srcIdx int, x, y Vec) (Vec, error) {
	n, err := lanes("vinselement", regSize, esize)
	if err != nil {
		return Vec{}, err
	}
	if destIdx >= n || srcIdx >= len(y)/esize {
		return Vec{}, &WidthError{Op: "vinselement", Width: esize}
	}
	var out Vec
	copy(out[:regSize], x[:regSize])
	out.SetLane(esize, destIdx, y.Lane(esize, srcIdx))
	return out, nil
}
