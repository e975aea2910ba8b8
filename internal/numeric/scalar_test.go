package numeric

import (
	"errors"
	"math"
	"testing"

	"github.com/tinyrange/irvm/internal/ir"
)

func TestAddWrapsAtWidth(t *testing.T) {
	tests := []struct {
		width int
		x, y  uint64
		want  uint64
	}{
		{1, 0xFF, 1, 0},
		{2, 0xFFFF, 2, 1},
		{4, 0xFFFFFFFF, 1, 0},
		{8, math.MaxUint64, 1, 0},
		{4, 0x1_0000_0005, 1, 6},
		{16, math.MaxUint32, 1, 1 << 32},
	}
	for _, tt := range tests {
		if got := Add(tt.width, tt.x, tt.y); got != tt.want {
			t.Errorf("Add(%d, %#x, %#x) = %#x, want %#x", tt.width, tt.x, tt.y, got, tt.want)
		}
	}
}

func TestSubAndBitwise(t *testing.T) {
	if got := Sub(1, 0, 1); got != 0xFF {
		t.Errorf("Sub(1, 0, 1) = %#x", got)
	}
	if got := Sub(4, 0, 1); got != 0xFFFFFFFF {
		t.Errorf("Sub(4, 0, 1) = %#x", got)
	}
	if got := Not(2, 0x00FF); got != 0xFF00 {
		t.Errorf("Not(2, 0xff) = %#x", got)
	}
	if got := Xor(8, 0xF0F0, 0xFFFF); got != 0x0F0F {
		t.Errorf("Xor = %#x", got)
	}
	if got := Or(1, 0x100, 0x01); got != 0x01 {
		t.Errorf("Or(1) = %#x", got)
	}
	if got := And(4, ^uint64(0), 0x1_2345_6789); got != 0x2345_6789 {
		t.Errorf("And(4) = %#x", got)
	}
}

func TestMul(t *testing.T) {
	got, err := Mul(1, 0xFF, 2)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	if got != From64(0xFFFFFFFFFFFFFFFE) {
		t.Fatalf("Mul(1, 0xff, 2) = %v", got)
	}

	got, _ = Mul(4, 0xFFFFFFFF, 0xFFFFFFFF)
	if got.Lo != 1 {
		t.Fatalf("Mul(4, -1, -1) = %v", got)
	}

	// -1 * 2 at width 16 is a 128-bit -2.
	got, _ = Mul(16, math.MaxUint64, 2)
	if got != (Uint128{Lo: 0xFFFFFFFFFFFFFFFE, Hi: math.MaxUint64}) {
		t.Fatalf("Mul(16, -1, 2) = %v", got)
	}

	got, _ = UMul(1, 0xFF, 2)
	if got.Lo != 0x1FE {
		t.Fatalf("UMul(1, 0xff, 2) = %v", got)
	}
	got, _ = UMul(16, math.MaxUint64, 2)
	if got != (Uint128{Lo: 0xFFFFFFFFFFFFFFFE, Hi: 1}) {
		t.Fatalf("UMul(16) = %v", got)
	}

	if _, err := Mul(3, 1, 1); err == nil {
		t.Fatalf("expected width error")
	}
}

func TestMulHigh(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(int, Uint128, Uint128) (Uint128, error)
		width int
		x, y  Uint128
		want  Uint128
	}{
		{"umulh8", UMulH, 1, From64(0xFF), From64(0xFF), From64(0xFE)},
		{"mulh8", MulH, 1, From64(0xFF), From64(0x02), From64(0xFF)},
		{"umulh32", UMulH, 4, From64(0x8000_0000), From64(4), From64(2)},
		{"umulh64", UMulH, 8, From64(math.MaxUint64), From64(math.MaxUint64), From64(math.MaxUint64 - 1)},
		{"mulh64", MulH, 8, From64(math.MaxUint64), From64(math.MaxUint64), From64(0)},
		{"mulh64neg", MulH, 8, From64(math.MaxUint64), From64(2), From64(math.MaxUint64)},
		// (2^128-1)^2 = 2^256 - 2^129 + 1, so the high half is 2^128-2.
		{"umulh128", UMulH, 16,
			Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64},
			Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64},
			Uint128{Lo: math.MaxUint64 - 1, Hi: math.MaxUint64}},
		{"umulh128small", UMulH, 16, Uint128{Hi: 1}, Uint128{Hi: 1}, From64(1)},
		// -1 * -1 = 1, high half 0.
		{"mulh128", MulH, 16,
			Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64},
			Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64},
			Uint128{}},
		// -1 * 2 = -2, high half all ones.
		{"mulh128neg", MulH, 16,
			Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64},
			From64(2),
			Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.width, tt.x, tt.y)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDivision(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(int, Uint128, Uint128) (Uint128, error)
		width int
		x, y  uint64
		want  uint64
	}{
		{"div8", Div, 1, 0xF9, 2, 0xFD},           // -7 / 2 = -3
		{"rem8", Rem, 1, 0xF9, 2, 0xFF},           // -7 % 2 = -1
		{"udiv8", UDiv, 1, 0xF9, 2, 0x7C},         // 249 / 2
		{"urem8", URem, 1, 0xF9, 2, 1},            // 249 % 2
		{"div16", Div, 2, 0x8000, 0xFFFF, 0x8000}, // MIN / -1 wraps
		{"div32", Div, 4, 100, 0xFFFFFFF6, 0xFFFFFFF6},
		{"udiv32", UDiv, 4, 0x1_0000_0064, 10, 10},
		{"div64", Div, 8, uint64(math.MaxUint64) - 99, 10, uint64(math.MaxUint64) - 9},
		{"urem64", URem, 8, math.MaxUint64, 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.width, From64(tt.x), From64(tt.y))
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got != From64(tt.want) {
				t.Fatalf("got %v, want %#x", got, tt.want)
			}
		})
	}
}

func TestDivision128(t *testing.T) {
	x := Uint128{Lo: 5, Hi: 3} // 3*2^64 + 5
	q, err := UDiv(16, x, From64(3))
	if err != nil {
		t.Fatalf("UDiv: %v", err)
	}
	if q != (Uint128{Lo: 1, Hi: 1}) {
		t.Fatalf("UDiv = %v", q)
	}
	r, _ := URem(16, x, From64(3))
	if r != From64(2) {
		t.Fatalf("URem = %v", r)
	}

	q, _ = UDiv(16, x, Uint128{Hi: 1})
	if q != From64(3) {
		t.Fatalf("UDiv by 2^64 = %v", q)
	}

	minusTen := FromInt64(-10)
	q, _ = Div(16, minusTen, From64(3))
	if q != FromInt64(-3) {
		t.Fatalf("Div(-10, 3) = %v", q)
	}
	r, _ = Rem(16, minusTen, From64(3))
	if r != FromInt64(-1) {
		t.Fatalf("Rem(-10, 3) = %v", r)
	}
}

func TestDivideByZero(t *testing.T) {
	for _, width := range []int{1, 2, 4, 8, 16} {
		if _, err := Div(width, From64(1), Uint128{}); !errors.Is(err, ErrDivideByZero) {
			t.Errorf("Div width %d: got %v", width, err)
		}
		if _, err := URem(width, From64(1), Uint128{}); !errors.Is(err, ErrDivideByZero) {
			t.Errorf("URem width %d: got %v", width, err)
		}
	}
	// Only the low width bytes of the divisor count.
	if _, err := UDiv(1, From64(1), From64(0x100)); !errors.Is(err, ErrDivideByZero) {
		t.Errorf("UDiv with truncated zero divisor: got %v", err)
	}
	if _, err := LUDiv(4, 1, 0, 0); !errors.Is(err, ErrDivideByZero) {
		t.Errorf("LUDiv: got %v", err)
	}
}

func TestLongDivide(t *testing.T) {
	tests := []struct {
		name            string
		fn              func(int, uint64, uint64, uint64) (uint64, error)
		width           int
		lo, hi, divisor uint64
		want            uint64
	}{
		{"ludiv32", LUDiv, 4, 0, 1, 2, 0x8000_0000},
		{"lurem32", LURem, 4, 7, 1, 2, 1},
		{"ldiv32", LDiv, 4, 0xFFFFFFF6, 0xFFFFFFFF, 3, 0xFFFFFFFD}, // -10 / 3
		{"lrem32", LRem, 4, 0xFFFFFFF6, 0xFFFFFFFF, 3, 0xFFFFFFFF}, // -10 % 3
		{"ludiv64", LUDiv, 8, 0, 1, 2, 1 << 63},
		{"lurem64", LURem, 8, 5, 1, 3, 0},
		{"ldiv64", LDiv, 8, uint64(math.MaxUint64) - 9, math.MaxUint64, 3, uint64(math.MaxUint64) - 2},
		{"ludiv16", LUDiv, 2, 0x0000, 0x0001, 0x0002, 0x8000},
		{"ldiv16", LDiv, 2, 0xFFF6, 0xFFFF, 0xFFFE, 5}, // -10 / -2
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.width, tt.lo, tt.hi, tt.divisor)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestShiftAmountMasked(t *testing.T) {
	got, err := Lshl(4, 1, 33)
	if err != nil {
		t.Fatalf("Lshl: %v", err)
	}
	if got != 2 {
		t.Fatalf("Lshl(4, 1, 33) = %d, want 2", got)
	}

	tests := []struct {
		name      string
		fn        func(int, uint64, uint64) (uint64, error)
		width     int
		x, amount uint64
		want      uint64
	}{
		{"lshl8", Lshl, 1, 0x81, 1, 0x02},
		{"lshl64", Lshl, 8, 1, 65, 2},
		{"lshr8", Lshr, 1, 0x180, 1, 0x40},
		{"lshr32", Lshr, 4, 0x8000_0000, 63, 1},
		{"ashr8", Ashr, 1, 0x80, 1, 0xC0},
		{"ashr32", Ashr, 4, 0x8000_0000, 31, 0xFFFFFFFF},
		{"ashr64", Ashr, 8, 1 << 63, 63, math.MaxUint64},
		{"ror8", Ror, 1, 0x01, 1, 0x80},
		{"ror16", Ror, 2, 0x0001, 17, 0x8000},
		{"rol32", Rol, 4, 0x8000_0000, 1, 1},
		{"rol64", Rol, 8, 1 << 63, 65, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.width, tt.x, tt.amount)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %#x, want %#x", got, tt.want)
			}
		})
	}

	var werr *WidthError
	if _, err := Lshl(16, 1, 1); !errors.As(err, &werr) {
		t.Fatalf("expected WidthError, got %v", err)
	}
}

func TestExtend(t *testing.T) {
	z, err := Zext(8, 0x1FF)
	if err != nil || z != From64(0xFF) {
		t.Fatalf("Zext(8) = %v, %v", z, err)
	}
	z, _ = Zext(64, math.MaxUint64)
	if z != From64(math.MaxUint64) {
		t.Fatalf("Zext(64) = %v", z)
	}
	if _, err := Zext(65, 0); err == nil {
		t.Fatalf("expected error for Zext(65)")
	}

	s, err := Sext(8, 0x80)
	if err != nil || s != 0xFFFFFFFFFFFFFF80 {
		t.Fatalf("Sext(8) = %#x, %v", s, err)
	}
	s, _ = Sext(32, 0x7FFFFFFF)
	if s != 0x7FFFFFFF {
		t.Fatalf("Sext(32) = %#x", s)
	}
	if _, err := Sext(12, 0); err == nil {
		t.Fatalf("expected error for Sext(12)")
	}
}

func TestBitUtilities(t *testing.T) {
	if got := Popcount(1, 0x1FF); got != 8 {
		t.Errorf("Popcount(1) = %d", got)
	}
	if got := Popcount(8, math.MaxUint64); got != 64 {
		t.Errorf("Popcount(8) = %d", got)
	}
	if got := FindLSB(8, 0x50); got != 4 {
		t.Errorf("FindLSB = %d", got)
	}
	if got := FindLSB(8, 0); got != math.MaxUint64 {
		t.Errorf("FindLSB(0) = %#x", got)
	}
	if got, _ := FindMSB(4, 0x8000_0000); got != 32 {
		t.Errorf("FindMSB(4) = %d", got)
	}
	if got, _ := FindMSB(8, 1); got != 1 {
		t.Errorf("FindMSB(8, 1) = %d", got)
	}
	if got, _ := FindMSB(2, 0); got != 0 {
		t.Errorf("FindMSB(2, 0) = %d", got)
	}
	if got, _ := Rev(2, 0x1234); got != 0x3412 {
		t.Errorf("Rev(2) = %#x", got)
	}
	if got, _ := Rev(4, 0x12345678); got != 0x78563412 {
		t.Errorf("Rev(4) = %#x", got)
	}
	if got, _ := Rev(8, 0x0102030405060708); got != 0x0807060504030201 {
		t.Errorf("Rev(8) = %#x", got)
	}
	if _, err := Rev(1, 0); err == nil {
		t.Errorf("expected error for Rev(1)")
	}
}

func TestBitfield(t *testing.T) {
	got, err := Bfe(8, 4, 4, From64(0xABCD))
	if err != nil {
		t.Fatalf("Bfe: %v", err)
	}
	if got != From64(0xC) {
		t.Fatalf("Bfe(0xabcd, 4, 4) = %v, want 0xc", got)
	}

	got, _ = Bfe(16, 64, 32, Uint128{Lo: 0xAAAA_BBBB_0000_0000, Hi: 0xCCCC_DDDD})
	if got != From64(0xCCCC_DDDD_AAAA_BBBB) {
		t.Fatalf("Bfe 128 = %v", got)
	}

	if _, err := Bfe(8, 65, 0, Uint128{}); err == nil {
		t.Fatalf("expected error for width 65")
	}

	if got := Bfi(8, 4, 0xFFFF, 0x0); got != 0xF00F {
		t.Fatalf("Bfi clear = %#x", got)
	}
	if got := Bfi(4, 8, 0x0000, 0x1A); got != 0x0A00 {
		t.Fatalf("Bfi insert = %#x", got)
	}
	if got := Bfi(64, 0, 0x1234, 0xFEDC); got != 0xFEDC {
		t.Fatalf("Bfi full width = %#x", got)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		cond ir.CondCode
		x, y uint64
		want bool
	}{
		{ir.CondEQ, 5, 5, true},
		{ir.CondNEQ, 5, 5, false},
		{ir.CondLT, 5, 3, false},
		{ir.CondLT, 3, 5, true},
		{ir.CondGE, 5, 5, true},
		{ir.CondGT, 6, 5, true},
		{ir.CondLE, 6, 5, false},
		// unsigned comparison of the raw containers
		{ir.CondLT, 1, math.MaxUint64, true},
	}
	for _, tt := range tests {
		got, ok := Compare(tt.cond, tt.x, tt.y)
		if !ok {
			t.Fatalf("%s reported unsupported", tt.cond)
		}
		if got != tt.want {
			t.Errorf("Compare(%s, %d, %d) = %v", tt.cond, tt.x, tt.y, got)
		}
	}

	for _, c := range []ir.CondCode{ir.CondCS, ir.CondCC, ir.CondMI, ir.CondPL, ir.CondVS, ir.CondVC, ir.CondHI, ir.CondLS} {
		if _, ok := Compare(c, 0, 0); ok {
			t.Errorf("%s should be unsupported", c)
		}
	}
}
