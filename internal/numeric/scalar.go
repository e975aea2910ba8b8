// Package numeric implements the width and signedness parameterised integer
// semantics of the IR. Every function is pure. Widths are in bytes; values
// travel in 64-bit containers or, for 128-bit results, as Uint128.
package numeric

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/tinyrange/irvm/internal/ir"
)

// ErrDivideByZero is returned by every division and remainder operation when
// the divisor is zero.
var ErrDivideByZero = errors.New("numeric: divide by zero")

// WidthError reports an operand or element width an operation does not
// support.
type WidthError struct {
	Op    string
	Width int
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("numeric: %s does not support width %d", e.Op, e.Width)
}

var (
	_ error = &WidthError{}
)

// Mask returns a mask of the low width bytes. Widths of 8 and above use the
// whole 64-bit container.
func Mask(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(8*width) - 1
}

// SignExtend interprets the low width bytes of v as signed.
func SignExtend(v uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	default:
		return int64(v)
	}
}

func scalarWidth(op string, width int) error {
	switch width {
	case 1, 2, 4, 8:
		return nil
	}
	return &WidthError{Op: op, Width: width}
}

func Add(width int, x, y uint64) uint64 { return (x + y) & Mask(width) }
func Sub(width int, x, y uint64) uint64 { return (x - y) & Mask(width) }
func Or(width int, x, y uint64) uint64  { return (x | y) & Mask(width) }
func And(width int, x, y uint64) uint64 { return (x & y) & Mask(width) }
func Xor(width int, x, y uint64) uint64 { return (x ^ y) & Mask(width) }

// Not is the bitwise complement at width. The IR calls it Neg.
func Not(width int, x uint64) uint64 { return ^x & Mask(width) }

// Mul multiplies x and y sign-extended from width. Widths 1 through 8 keep the
// full 64-bit product. Width 16 produces the signed 128-bit product of the
// 64-bit operands.
func Mul(width int, x, y uint64) (Uint128, error) {
	if width == 16 {
		return FromInt64(int64(x)).Mul(FromInt64(int64(y))), nil
	}
	if err := scalarWidth("mul", width); err != nil {
		return Uint128{}, err
	}
	return From64(uint64(SignExtend(x, width) * SignExtend(y, width))), nil
}

// UMul is Mul with zero-extended operands.
func UMul(width int, x, y uint64) (Uint128, error) {
	if width == 16 {
		hi, lo := bits.Mul64(x, y)
		return Uint128{Lo: lo, Hi: hi}, nil
	}
	if err := scalarWidth("umul", width); err != nil {
		return Uint128{}, err
	}
	m := Mask(width)
	return From64((x & m) * (y & m)), nil
}

// MulH returns the high half of the signed double-width product, truncated to
// width. Width 16 operands are full 128-bit values.
func MulH(width int, x, y Uint128) (Uint128, error) {
	switch width {
	case 1, 2, 4:
		p := SignExtend(x.Lo, width) * SignExtend(y.Lo, width)
		return From64(uint64(p>>(8*width)) & Mask(width)), nil
	case 8:
		p := FromInt64(int64(x.Lo)).Mul(FromInt64(int64(y.Lo)))
		return From64(p.Hi), nil
	case 16:
		return x.SignedMulHigh(y), nil
	}
	return Uint128{}, &WidthError{Op: "mulh", Width: width}
}

// UMulH returns the high half of the unsigned double-width product.
func UMulH(width int, x, y Uint128) (Uint128, error) {
	switch width {
	case 1, 2, 4:
		m := Mask(width)
		return From64(((x.Lo & m) * (y.Lo & m)) >> (8 * width)), nil
	case 8:
		hi, _ := bits.Mul64(x.Lo, y.Lo)
		return From64(hi), nil
	case 16:
		hi, _ := x.MulFull(y)
		return hi, nil
	}
	return Uint128{}, &WidthError{Op: "umulh", Width: width}
}

func divide(op string, width int, x, y Uint128, signed, rem bool) (Uint128, error) {
	if width == 16 {
		if y.IsZero() {
			return Uint128{}, ErrDivideByZero
		}
		var q, r Uint128
		if signed {
			q, r = x.SignedQuoRem(y)
		} else {
			q, r = x.QuoRem(y)
		}
		if rem {
			return r, nil
		}
		return q, nil
	}

	if err := scalarWidth(op, width); err != nil {
		return Uint128{}, err
	}
	m := Mask(width)
	if y.Lo&m == 0 {
		return Uint128{}, ErrDivideByZero
	}

	var res uint64
	if signed {
		a, b := SignExtend(x.Lo, width), SignExtend(y.Lo, width)
		if rem {
			res = uint64(a % b)
		} else {
			res = uint64(a / b)
		}
	} else {
		a, b := x.Lo&m, y.Lo&m
		if rem {
			res = a % b
		} else {
			res = a / b
		}
	}
	return From64(res & m), nil
}

// Div is signed division truncated toward zero. The result is truncated to
// width, so MIN / -1 wraps to MIN.
func Div(width int, x, y Uint128) (Uint128, error) { return divide("div", width, x, y, true, false) }

func UDiv(width int, x, y Uint128) (Uint128, error) { return divide("udiv", width, x, y, false, false) }

func Rem(width int, x, y Uint128) (Uint128, error) { return divide("rem", width, x, y, true, true) }

func URem(width int, x, y Uint128) (Uint128, error) { return divide("urem", width, x, y, false, true) }

func longDivide(op string, width int, lo, hi, divisor uint64, signed, rem bool) (uint64, error) {
	switch width {
	case 2, 4, 8:
	default:
		return 0, &WidthError{Op: op, Width: width}
	}
	m := Mask(width)
	if divisor&m == 0 {
		return 0, ErrDivideByZero
	}

	shift := uint(8 * width)
	dividend := From64(hi & m).Lsh(shift).Or(From64(lo & m))
	var d Uint128
	if signed {
		// sign-extend the double-width dividend from 2*width bytes
		if width < 8 {
			dividend = From64(uint64(SignExtend(dividend.Lo, 2*width)))
			if int64(dividend.Lo) < 0 {
				dividend.Hi = ^uint64(0)
			}
		}
		d = FromInt64(SignExtend(divisor, width))
	} else {
		d = From64(divisor & m)
	}

	var q, r Uint128
	if signed {
		q, r = dividend.SignedQuoRem(d)
	} else {
		q, r = dividend.QuoRem(d)
	}
	if rem {
		return r.Lo & m, nil
	}
	return q.Lo & m, nil
}

// LDiv divides the signed double-width value hi:lo by divisor. The quotient
// is truncated to width.
func LDiv(width int, lo, hi, divisor uint64) (uint64, error) {
	return longDivide("ldiv", width, lo, hi, divisor, true, false)
}

func LUDiv(width int, lo, hi, divisor uint64) (uint64, error) {
	return longDivide("ludiv", width, lo, hi, divisor, false, false)
}

func LRem(width int, lo, hi, divisor uint64) (uint64, error) {
	return longDivide("lrem", width, lo, hi, divisor, true, true)
}

func LURem(width int, lo, hi, divisor uint64) (uint64, error) {
	return longDivide("lurem", width, lo, hi, divisor, false, true)
}

// Lshl shifts x left by amount modulo the width in bits. The source is read at
// width and the result zero-extended.
func Lshl(width int, x, amount uint64) (uint64, error) {
	if err := scalarWidth("lshl", width); err != nil {
		return 0, err
	}
	n := amount & uint64(8*width-1)
	return (x << n) & Mask(width), nil
}

func Lshr(width int, x, amount uint64) (uint64, error) {
	if err := scalarWidth("lshr", width); err != nil {
		return 0, err
	}
	n := amount & uint64(8*width-1)
	return (x & Mask(width)) >> n, nil
}

// Ashr is an arithmetic right shift at width.
func Ashr(width int, x, amount uint64) (uint64, error) {
	if err := scalarWidth("ashr", width); err != nil {
		return 0, err
	}
	n := amount & uint64(8*width-1)
	return uint64(SignExtend(x, width)>>n) & Mask(width), nil
}

func Ror(width int, x, amount uint64) (uint64, error) {
	if err := scalarWidth("ror", width); err != nil {
		return 0, err
	}
	return rotate(width, x, -int(amount&uint64(8*width-1))), nil
}

func Rol(width int, x, amount uint64) (uint64, error) {
	if err := scalarWidth("rol", width); err != nil {
		return 0, err
	}
	return rotate(width, x, int(amount&uint64(8*width-1))), nil
}

// rotate rotates left by k bits at width; negative k rotates right.
func rotate(width int, x uint64, k int) uint64 {
	switch width {
	case 1:
		return uint64(bits.RotateLeft8(uint8(x), k))
	case 2:
		return uint64(bits.RotateLeft16(uint16(x), k))
	case 4:
		return uint64(bits.RotateLeft32(uint32(x), k))
	default:
		return bits.RotateLeft64(x, k)
	}
}

// Zext keeps the low srcBits of x. Extending a full 64-bit source yields a
// 128-bit value.
func Zext(srcBits int, x uint64) (Uint128, error) {
	switch {
	case srcBits <= 0 || srcBits > 64:
		return Uint128{}, &WidthError{Op: "zext", Width: srcBits / 8}
	case srcBits == 64:
		return From64(x), nil
	}
	return From64(x & (uint64(1)<<srcBits - 1)), nil
}

// Sext sign-extends the low srcBits of x to 64 bits.
func Sext(srcBits int, x uint64) (uint64, error) {
	switch srcBits {
	case 8, 16, 32, 64:
		return uint64(SignExtend(x, srcBits/8)), nil
	}
	return 0, &WidthError{Op: "sext", Width: srcBits / 8}
}

// Popcount counts the set bits of x at width.
func Popcount(width int, x uint64) uint64 {
	return uint64(bits.OnesCount64(x & Mask(width)))
}

// FindLSB returns the zero-based index of the lowest set bit of x at width,
// or all ones when no bit is set.
func FindLSB(width int, x uint64) uint64 {
	x &= Mask(width)
	if x == 0 {
		return ^uint64(0)
	}
	return uint64(bits.TrailingZeros64(x))
}

// FindMSB returns width_bits minus the leading zero count of x at width: the
// one-based index of the highest set bit, or 0 for a zero input.
func FindMSB(width int, x uint64) (uint64, error) {
	if err := scalarWidth("findmsb", width); err != nil {
		return 0, err
	}
	x &= Mask(width)
	return uint64(bits.Len64(x)), nil
}

// Rev reverses the byte order of x at width 2, 4 or 8.
func Rev(width int, x uint64) (uint64, error) {
	switch width {
	case 2:
		return uint64(bits.ReverseBytes16(uint16(x))), nil
	case 4:
		return uint64(bits.ReverseBytes32(uint32(x))), nil
	case 8:
		return bits.ReverseBytes64(x), nil
	}
	return 0, &WidthError{Op: "rev", Width: width}
}

func fieldMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<width - 1
}

// Bfi inserts the low width bits of src into dest at lsb.
func Bfi(width, lsb int, dest, src uint64) uint64 {
	mask := fieldMask(width)
	return (dest &^ (mask << lsb)) | ((src & mask) << lsb)
}

// Bfe extracts width bits of src starting at lsb. An operation size of 16
// bytes extracts from the full 128-bit source.
func Bfe(size, width, lsb int, src Uint128) (Uint128, error) {
	if width > 64 || size > 16 {
		return Uint128{}, &WidthError{Op: "bfe", Width: width / 8}
	}
	if size == 16 {
		mask := From64(fieldMask(width)).Lsh(uint(lsb))
		return src.And(mask).Rsh(uint(lsb)), nil
	}
	mask := fieldMask(width) << lsb
	return From64((src.Lo & mask) >> lsb), nil
}

// Compare evaluates cond on the raw 64-bit containers. ok is false for
// condition codes that have no defined semantics.
func Compare(cond ir.CondCode, x, y uint64) (result bool, ok bool) {
	switch cond {
	case ir.CondEQ:
		return x == y, true
	case ir.CondNEQ:
		return x != y, true
	case ir.CondGE:
		return x >= y, true
	case ir.CondLT:
		return x < y, true
	case ir.CondGT:
		return x > y, true
	case ir.CondLE:
		return x <= y, true
	}
	return false, false
}
