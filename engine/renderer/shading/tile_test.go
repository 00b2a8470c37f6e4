package shading

import (
	"math/rand/v2"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

func TestTileFrustumContainsItsPixels(t *testing.T) {
	const (
		width   = 1280
		height  = 720
		tileDim = 16
	)
	proj := testProj(float32(width) / float32(height))
	rng := rand.New(rand.NewPCG(7, 11))

	for range 500 {
		px := rng.Float32() * width
		py := rng.Float32() * height
		dist := 1 + rng.Float32()*100
		p := ViewPosition(ScreenToNDC(px, py, width, height), dist, proj)

		tx, ty := int(px)/tileDim, int(py)/tileDim
		f := NewTileFrustum(tx, ty, width, height, tileDim, proj, dist-0.01, dist+0.01)
		if !f.IntersectsSphere(p, 1e-3) {
			t.Fatalf("tile (%d,%d) rejected a point at pixel (%.1f,%.1f)", tx, ty, px, py)
		}
	}
}

func TestTileFrustumRejectsDistantLights(t *testing.T) {
	const (
		width   = 256
		height  = 256
		tileDim = 16
	)
	proj := testProj(1)
	f := NewTileFrustum(0, 0, width, height, tileDim, proj, 10, 20)

	tests := []struct {
		name   string
		center [3]float32
		radius float32
		want   bool
	}{
		{"inside top-left tile", ViewPosition(ScreenToNDC(8, 8, width, height), 15, proj), 0.5, true},
		{"bottom-right corner", ViewPosition(ScreenToNDC(250, 250, width, height), 15, proj), 0.5, false},
		{"neighbouring tile, large radius", ViewPosition(ScreenToNDC(24, 8, width, height), 15, proj), 5, true},
		{"nearer than tile surfaces", ViewPosition(ScreenToNDC(8, 8, width, height), 5, proj), 1, false},
		{"beyond tile surfaces", ViewPosition(ScreenToNDC(8, 8, width, height), 40, proj), 2, false},
		{"behind tile surfaces within reach", ViewPosition(ScreenToNDC(8, 8, width, height), 22, proj), 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IntersectsSphere(tt.center, tt.radius); got != tt.want {
				t.Errorf("IntersectsSphere(%v, %g) = %v, want %v", tt.center, tt.radius, got, tt.want)
			}
		})
	}
}

func TestTileFrustumSidePlanesAreUnit(t *testing.T) {
	f := NewTileFrustum(3, 5, 640, 480, 8, testProj(640.0/480.0), 1, 2)
	for i := range 4 {
		n := common.Length3([3]float32{f[i][0], f[i][1], f[i][2]})
		if !near32(n, 1, 1e-5) {
			t.Errorf("plane %d normal length = %g", i, n)
		}
	}
}

func TestTileDepthBounds(t *testing.T) {
	b := NewTileDepthBounds()
	f := NewTileFrustum(0, 0, 64, 64, 16, testProj(1), b.MinZ, b.MaxZ)
	if f.IntersectsSphere([3]float32{0, 0, -10}, 5) {
		t.Error("an empty tile should reject every light")
	}

	if b.Add(testFar, testNear, testFar) {
		t.Error("a far-plane sample must not widen the bounds")
	}
	if b.Add(0.01, testNear, testFar) {
		t.Error("a sample nearer than the near plane must not widen the bounds")
	}
	b.Add(12, testNear, testFar)
	b.Add(7, testNear, testFar)
	if b.MinZ != 7 || b.MaxZ != 12 {
		t.Errorf("bounds = [%g, %g], want [7, 12]", b.MinZ, b.MaxZ)
	}
}
