package numeric

import (
	"testing"
)

func vec(b ...byte) Vec {
	var v Vec
	copy(v[:], b)
	return v
}

func TestVZipLaneOrder(t *testing.T) {
	a := vec(0xA0, 0xA1, 0xA2, 0xA3)
	b := vec(0xB0, 0xB1, 0xB2, 0xB3)

	lo, err := VZip(4, 1, a, b, false)
	if err != nil {
		t.Fatalf("VZip: %v", err)
	}
	if want := vec(0xA0, 0xB0, 0xA1, 0xB1); lo != want {
		t.Fatalf("VZip = %x, want %x", lo, want)
	}

	hi, err := VZip(4, 1, a, b, true)
	if err != nil {
		t.Fatalf("VZip2: %v", err)
	}
	if want := vec(0xA2, 0xB2, 0xA3, 0xB3); hi != want {
		t.Fatalf("VZip2 = %x, want %x", hi, want)
	}
}

func TestVZipWideLanes(t *testing.T) {
	var a, b Vec
	a.SetLane(8, 0, 1)
	a.SetLane(8, 1, 2)
	b.SetLane(8, 0, 3)
	b.SetLane(8, 1, 4)

	got, err := VZip(16, 8, a, b, true)
	if err != nil {
		t.Fatalf("VZip2: %v", err)
	}
	if got.Lane(8, 0) != 2 || got.Lane(8, 1) != 4 {
		t.Fatalf("VZip2 = %x", got)
	}
}

func TestLanewiseArithmetic(t *testing.T) {
	a := vec(0xFF, 0x01, 0x80, 0x10)
	b := vec(0x01, 0x02, 0x7F, 0x20)

	tests := []struct {
		name string
		fn   func(int, int, Vec, Vec) (Vec, error)
		want Vec
	}{
		{"vadd", VAdd, vec(0x00, 0x03, 0xFF, 0x30)},
		{"vsub", VSub, vec(0xFE, 0xFF, 0x01, 0xF0)},
		{"vumin", VUMin, vec(0x01, 0x01, 0x7F, 0x10)},
		{"vsmin", VSMin, vec(0xFF, 0x01, 0x80, 0x10)},
		{"vcmpeq", VCmpEQ, vec(0x00, 0x00, 0x00, 0x00)},
		{"vcmpgt", VCmpGT, vec(0x00, 0x00, 0x00, 0x00)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(4, 1, a, b)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %x, want %x", got, tt.want)
			}
		})
	}
}

func TestVectorCompare(t *testing.T) {
	var a, b Vec
	a.SetLane(4, 0, 5)
	a.SetLane(4, 1, 0xFFFFFFFF) // -1
	a.SetLane(4, 2, 7)
	a.SetLane(4, 3, 1)
	b.SetLane(4, 0, 5)
	b.SetLane(4, 1, 0)
	b.SetLane(4, 2, 3)
	b.SetLane(4, 3, 2)

	eq, err := VCmpEQ(16, 4, a, b)
	if err != nil {
		t.Fatalf("VCmpEQ: %v", err)
	}
	gt, err := VCmpGT(16, 4, a, b)
	if err != nil {
		t.Fatalf("VCmpGT: %v", err)
	}

	wantEQ := []uint64{0xFFFFFFFF, 0, 0, 0}
	wantGT := []uint64{0, 0, 0xFFFFFFFF, 0}
	for i := 0; i < 4; i++ {
		if got := eq.Lane(4, i); got != wantEQ[i] {
			t.Errorf("eq lane %d = %#x, want %#x", i, got, wantEQ[i])
		}
		if got := gt.Lane(4, i); got != wantGT[i] {
			t.Errorf("gt lane %d = %#x, want %#x", i, got, wantGT[i])
		}
	}
}

func TestVectorShifts(t *testing.T) {
	a := vec(0x01, 0x01, 0x80, 0x81)
	amounts := vec(1, 8, 1, 0)

	got, err := VUShl(4, 1, a, amounts)
	if err != nil {
		t.Fatalf("VUShl: %v", err)
	}
	if want := vec(0x02, 0x00, 0x00, 0x81); got != want {
		t.Fatalf("VUShl = %x, want %x", got, want)
	}

	got, err = VUShr(4, 1, a, amounts)
	if err != nil {
		t.Fatalf("VUShr: %v", err)
	}
	if want := vec(0x00, 0x00, 0x40, 0x81); got != want {
		t.Fatalf("VUShr = %x, want %x", got, want)
	}

	got, err = VUShlS(4, 1, a, vec(1))
	if err != nil {
		t.Fatalf("VUShlS: %v", err)
	}
	if want := vec(0x02, 0x02, 0x00, 0x02); got != want {
		t.Fatalf("VUShlS = %x, want %x", got, want)
	}

	var wide Vec
	wide.SetLane(8, 0, 1<<63)
	got, err = VUShlS(16, 16, wide, vec(1))
	if err != nil {
		t.Fatalf("VUShlS 128: %v", err)
	}
	if got.Lane(8, 0) != 0 || got.Lane(8, 1) != 1 {
		t.Fatalf("VUShlS 128 = %x", got)
	}

	got, _ = VUShlS(16, 16, wide, vec(200))
	if got != (Vec{}) {
		t.Fatalf("VUShlS by 200 = %x", got)
	}
}

func TestWholeRegisterOps(t *testing.T) {
	a := vec(0x0F, 0x00, 0xFF)
	b := vec(0xF0, 0x01, 0xFF)
	if got, want := VOr(a, b), vec(0xFF, 0x01, 0xFF); got != want {
		t.Fatalf("VOr = %x", got)
	}
	if got, want := VXor(a, b), vec(0xFF, 0x01, 0x00); got != want {
		t.Fatalf("VXor = %x", got)
	}
}

func TestStructuralOps(t *testing.T) {
	x := vec(0x11, 0x22, 0x33, 0x44)
	y := vec(0x55, 0x66, 0x77, 0x88)

	got, err := CreateVector2(8, x, y)
	if err != nil {
		t.Fatalf("CreateVector2: %v", err)
	}
	if want := vec(0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88); got != want {
		t.Fatalf("CreateVector2 = %x", got)
	}

	got, err = Splat(12, 3, x)
	if err != nil {
		t.Fatalf("Splat: %v", err)
	}
	for i := 0; i < 3; i++ {
		if got.Lane(4, i) != 0x44332211 {
			t.Fatalf("Splat lane %d = %#x", i, got.Lane(4, i))
		}
	}
	if got.Lane(4, 3) != 0 {
		t.Fatalf("Splat wrote past its lanes")
	}

	if _, err := Splat(16, 3, x); err == nil {
		t.Fatalf("expected error for 16-byte splat of 3 lanes")
	}

	got, err = VInsElement(4, 1, 2, 3, x, y)
	if err != nil {
		t.Fatalf("VInsElement: %v", err)
	}
	if want := vec(0x11, 0x22, 0x88, 0x44); got != want {
		t.Fatalf("VInsElement = %x", got)
	}

	if _, err := VInsElement(4, 1, 4, 0, x, y); err == nil {
		t.Fatalf("expected error for out of range lane")
	}
}

func TestMalformedElementSize(t *testing.T) {
	if _, err := VAdd(16, 3, Vec{}, Vec{}); err == nil {
		t.Fatalf("expected error for element size 3")
	}
	if _, err := VAdd(32, 8, Vec{}, Vec{}); err == nil {
		t.Fatalf("expected error for register size 32")
	}
}
