package common

import (
	"math"
	"testing"
)

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestMul4Identity(t *testing.T) {
	m := make([]float32, 16)
	BuildWorldMatrix(m, 2, [3]float32{1, 2, 3})
	id := make([]float32, 16)
	Identity(id)

	out := make([]float32, 16)
	Mul4(out, m, id)
	for i := range out {
		if out[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, out[i], m[i])
		}
	}
}

func TestTransformPointWorld(t *testing.T) {
	m := make([]float32, 16)
	BuildWorldMatrix(m, 2, [3]float32{10, 20, 30})

	got := TransformPoint(m, [3]float32{1, 2, 3})
	want := [3]float32{12, 24, 36}
	if got != want {
		t.Errorf("TransformPoint: got %v, want %v", got, want)
	}

	dir := TransformDirection(m, [3]float32{1, 0, 0})
	if dir != [3]float32{2, 0, 0} {
		t.Errorf("TransformDirection should ignore translation, got %v", dir)
	}
}

func TestPerspectiveComplementaryDepth(t *testing.T) {
	const near, far = 0.05, 300.0
	p := make([]float32, 16)
	// Swapped planes: near maps to depth 1, far maps to depth 0.
	Perspective(p, math.Pi/4, 16.0/9.0, far, near)

	depth := func(z float32) float32 {
		c := MulVec4(p, [4]float32{0, 0, z, 1})
		return c[2] / c[3]
	}

	if d := depth(-near); abs32(d-1) > 1e-4 {
		t.Errorf("near plane depth: got %f, want 1", d)
	}
	if d := depth(-far); abs32(d) > 1e-4 {
		t.Errorf("far plane depth: got %f, want 0", d)
	}
	if dn, df := depth(-1), depth(-10); dn <= df {
		t.Errorf("closer points must have larger depth: %f <= %f", dn, df)
	}
}

func TestInvert4(t *testing.T) {
	m := make([]float32, 16)
	LookAt(m, [3]float32{3, 4, 5}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})

	inv := make([]float32, 16)
	if !Invert4(inv, m) {
		t.Fatal("view matrix should be invertible")
	}
	out := make([]float32, 16)
	Mul4(out, m, inv)
	for i := 0; i < 16; i++ {
		want := float32(0)
		if i%5 == 0 {
			want = 1
		}
		if abs32(out[i]-want) > 1e-4 {
			t.Errorf("M * M^-1 element %d: got %f, want %f", i, out[i], want)
		}
	}

	singular := make([]float32, 16)
	if Invert4(inv, singular) {
		t.Error("zero matrix should not be invertible")
	}
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	m := make([]float32, 16)
	eye := [3]float32{0, 10, 20}
	LookAt(m, eye, [3]float32{0, 10, 0}, [3]float32{0, 1, 0})

	if got := TransformPoint(m, eye); Length3(got) > 1e-5 {
		t.Errorf("eye should map to the origin, got %v", got)
	}
	// The target lies straight ahead, down -Z.
	got := TransformPoint(m, [3]float32{0, 10, 0})
	if abs32(got[0]) > 1e-5 || abs32(got[1]) > 1e-5 || abs32(got[2]+20) > 1e-4 {
		t.Errorf("target should map to (0, 0, -20), got %v", got)
	}
}

func TestCeilDiv(t *testing.T) {
	tests := []struct{ n, d, want int }{
		{1280, 16, 80},
		{720, 16, 45},
		{1, 16, 1},
		{17, 16, 2},
		{256, 16, 16},
	}
	for _, tt := range tests {
		if got := CeilDiv(tt.n, tt.d); got != tt.want {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d", tt.n, tt.d, got, tt.want)
		}
	}
}

func TestCoalesce(t *testing.T) {
	if got := Coalesce(0, 0, 3, 4); got != 3 {
		t.Errorf("Coalesce: got %d, want 3", got)
	}
	if got := Coalesce("", ""); got != "" {
		t.Errorf("Coalesce of zero values: got %q", got)
	}
}
