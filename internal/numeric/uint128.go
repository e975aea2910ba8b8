package numeric

import (
	"fmt"
	"math/bits"
)

// Uint128 is a 128-bit two's complement value split into 64-bit halves. The
// same type carries signed values; the signed helpers interpret Hi's top bit
// as the sign.
type Uint128 struct {
	Lo, Hi uint64
}

// From64 zero-extends v.
func From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// FromInt64 sign-extends v.
func FromInt64(v int64) Uint128 {
	return Uint128{Lo: uint64(v), Hi: uint64(v >> 63)}
}

func (x Uint128) IsZero() bool {
	return x.Lo == 0 && x.Hi == 0
}

// Negative reports whether x is negative when read as signed.
func (x Uint128) Negative() bool {
	return x.Hi>>63 != 0
}

func (x Uint128) Add(y Uint128) Uint128 {
	lo, c := bits.Add64(x.Lo, y.Lo, 0)
	hi, _ := bits.Add64(x.Hi, y.Hi, c)
	return Uint128{Lo: lo, Hi: hi}
}

func (x Uint128) Sub(y Uint128) Uint128 {
	lo, b := bits.Sub64(x.Lo, y.Lo, 0)
	hi, _ := bits.Sub64(x.Hi, y.Hi, b)
	return Uint128{Lo: lo, Hi: hi}
}

// Neg returns the two's complement negation of x.
func (x Uint128) Neg() Uint128 {
	return Uint128{}.Sub(x)
}

func (x Uint128) Not() Uint128 {
	return Uint128{Lo: ^x.Lo, Hi: ^x.Hi}
}

func (x Uint128) And(y Uint128) Uint128 {
	return Uint128{Lo: x.Lo & y.Lo, Hi: x.Hi & y.Hi}
}

func (x Uint128) Or(y Uint128) Uint128 {
	return Uint128{Lo: x.Lo | y.Lo, Hi: x.Hi | y.Hi}
}

func (x Uint128) Xor(y Uint128) Uint128 {
	return Uint128{Lo: x.Lo ^ y.Lo, Hi: x.Hi ^ y.Hi}
}

// Lsh shifts left by n. Shifts of 128 or more yield zero.
func (x Uint128) Lsh(n uint) Uint128 {
	switch {
	case n >= 128:
		return Uint128{}
	case n >= 64:
		return Uint128{Hi: x.Lo << (n - 64)}
	default:
		return Uint128{Lo: x.Lo << n, Hi: x.Hi<<n | x.Lo>>(64-n)}
	}
}

// Rsh is a logical right shift by n.
func (x Uint128) Rsh(n uint) Uint128 {
	switch {
	case n >= 128:
		return Uint128{}
	case n >= 64:
		return Uint128{Lo: x.Hi >> (n - 64)}
	default:
		return Uint128{Lo: x.Lo>>n | x.Hi<<(64-n), Hi: x.Hi >> n}
	}
}

// Cmp compares x and y as unsigned values and returns -1, 0 or +1.
func (x Uint128) Cmp(y Uint128) int {
	switch {
	case x.Hi < y.Hi:
		return -1
	case x.Hi > y.Hi:
		return 1
	case x.Lo < y.Lo:
		return -1
	case x.Lo > y.Lo:
		return 1
	}
	return 0
}

// Mul returns the low 128 bits of x*y. The result is the same for signed and
// unsigned operands.
func (x Uint128) Mul(y Uint128) Uint128 {
	hi, lo := bits.Mul64(x.Lo, y.Lo)
	hi += x.Hi*y.Lo + x.Lo*y.Hi
	return Uint128{Lo: lo, Hi: hi}
}

// MulFull returns the full 256-bit unsigned product of x and y.
func (x Uint128) MulFull(y Uint128) (hi, lo Uint128) {
	h00, l00 := bits.Mul64(x.Lo, y.Lo)
	h01, l01 := bits.Mul64(x.Lo, y.Hi)
	h10, l10 := bits.Mul64(x.Hi, y.Lo)
	h11, l11 := bits.Mul64(x.Hi, y.Hi)

	r1, c1 := bits.Add64(h00, l01, 0)
	r1, c2 := bits.Add64(r1, l10, 0)

	r2, c3 := bits.Add64(h01, h10, c1)
	r2, c4 := bits.Add64(r2, l11, c2)

	r3 := h11 + c3 + c4

	return Uint128{Lo: r2, Hi: r3}, Uint128{Lo: l00, Hi: r1}
}

// SignedMulHigh returns the high 128 bits of the signed 256-bit product.
func (x Uint128) SignedMulHigh(y Uint128) Uint128 {
	hi, _ := x.MulFull(y)
	if x.Negative() {
		hi = hi.Sub(y)
	}
	if y.Negative() {
		hi = hi.Sub(x)
	}
	return hi
}

// QuoRem returns the unsigned quotient and remainder of x/y. It panics if y
// is zero.
func (x Uint128) QuoRem(y Uint128) (q, r Uint128) {
	if y.IsZero() {
		panic("numeric: 128-bit division by zero")
	}

	if y.Hi == 0 {
		if x.Hi < y.Lo {
			q.Lo, r.Lo = bits.Div64(x.Hi, x.Lo, y.Lo)
			return q, r
		}
		var rem uint64
		q.Hi, rem = x.Hi/y.Lo, x.Hi%y.Lo
		q.Lo, r.Lo = bits.Div64(rem, x.Lo, y.Lo)
		return q, r
	}

	// Normalise the divisor so its top bit is set, estimate the quotient from
	// the top 64 bits, then correct by at most one.
	n := uint(bits.LeadingZeros64(y.Hi))
	y1 := y.Lsh(n)
	x1 := x.Rsh(1)
	tq, _ := bits.Div64(x1.Hi, x1.Lo, y1.Hi)
	tq >>= 63 - n
	if tq != 0 {
		tq--
	}
	q = From64(tq)
	r = x.Sub(y.Mul(q))
	if r.Cmp(y) >= 0 {
		q = q.Add(From64(1))
		r = r.Sub(y)
	}
	return q, r
}

// SignedQuoRem divides signed x by signed y, truncating toward zero. The
// remainder takes the sign of x. MinInt128 / -1 wraps to MinInt128.
func (x Uint128) SignedQuoRem(y Uint128) (q, r Uint128) {
	xn, yn := x.Negative(), y.Negative()
	ux, uy := x, y
	if xn {
		ux = x.Neg()
	}
	if yn {
		uy = y.Neg()
	}
	q, r = ux.QuoRem(uy)
	if xn != yn {
		q = q.Neg()
	}
	if xn {
		r = r.Neg()
	}
	return q, r
}

func (x Uint128) String() string {
	if x.Hi == 0 {
		return fmt.Sprintf("%#x", x.Lo)
	}
	return fmt.Sprintf("%#x%016x", x.Hi, x.Lo)
}
