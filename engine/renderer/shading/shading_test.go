package shading

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

const (
	testNear float32 = 0.05
	testFar  float32 = 300
)

func near32(a, b, eps float32) bool {
	return abs32(a-b) <= eps
}

func testProj(aspect float32) []float32 {
	p := make([]float32, 16)
	common.Perspective(p, math.Pi/4, aspect, testFar, testNear)
	return p
}

func TestSphereMapRoundTrip(t *testing.T) {
	normals := [][3]float32{
		{0, 0, 1},
		{1, 0, 0},
		{0, -1, 0},
		common.Normalize3([3]float32{1, 1, 1}),
		common.Normalize3([3]float32{-0.3, 0.2, 0.5}),
		common.Normalize3([3]float32{0.1, 0.9, -0.6}),
	}

	for _, n := range normals {
		e := EncodeSphereMap(n)
		if e[0] < 0 || e[0] > 1 || e[1] < 0 || e[1] > 1 {
			t.Errorf("encoding of %v out of [0,1]: %v", n, e)
		}
		got := DecodeSphereMap(e)
		for i := range 3 {
			if !near32(got[i], n[i], 1e-4) {
				t.Errorf("round trip of %v = %v", n, got)
				break
			}
		}
	}
}

func TestLinearDepthComplementary(t *testing.T) {
	proj := testProj(1)

	tests := []struct {
		name string
		dist float32
	}{
		{"near plane", testNear},
		{"one unit", 1},
		{"mid range", 42},
		{"far plane", testFar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip := common.MulVec4(proj, [4]float32{0, 0, -tt.dist, 1})
			d := clip[2] / clip[3]
			got := LinearDepth(d, proj)
			if !near32(got, tt.dist, tt.dist*1e-3) {
				t.Errorf("LinearDepth(%g) = %g, want %g", d, got, tt.dist)
			}
		})
	}

	if got := LinearDepth(0, proj); !near32(got, testFar, 0.1) {
		t.Errorf("depth 0 should be the far plane, got %g", got)
	}
	if got := LinearDepth(1, proj); !near32(got, testNear, 1e-4) {
		t.Errorf("depth 1 should be the near plane, got %g", got)
	}
}

func TestViewPositionReprojects(t *testing.T) {
	proj := testProj(16.0 / 9.0)
	p := [3]float32{3, -2, -25}

	clip := common.MulVec4(proj, [4]float32{p[0], p[1], p[2], 1})
	ndc := [2]float32{clip[0] / clip[3], clip[1] / clip[3]}
	got := ViewPosition(ndc, LinearDepth(clip[2]/clip[3], proj), proj)

	for i := range 3 {
		if !near32(got[i], p[i], 1e-2) {
			t.Fatalf("ViewPosition = %v, want %v", got, p)
		}
	}
}

func TestAccumulateBRDFAttenuationWindow(t *testing.T) {
	s := Surface{
		PositionView:   [3]float32{0, 0, -10},
		Normal:         [3]float32{0, 0, 1},
		Albedo:         [4]float32{1, 1, 1, 1},
		SpecularAmount: DefaultSpecularAmount,
		SpecularPower:  DefaultSpecularPower,
	}
	white := [3]float32{1, 1, 1}

	tests := []struct {
		name     string
		distance float32
		wantZero bool
	}{
		{"inside begin", 2, false},
		{"inside window", 4.5, false},
		{"at end", 5, true},
		{"beyond end", 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lit [3]float32
			light := [3]float32{0, 0, -10 + tt.distance}
			AccumulateBRDF(&s, light, white, 4, 5, &lit)
			if tt.wantZero && lit != ([3]float32{}) {
				t.Errorf("expected no contribution, got %v", lit)
			}
			if !tt.wantZero && lit[0] <= 0 {
				t.Errorf("expected a contribution, got %v", lit)
			}
		})
	}

	var behind [3]float32
	AccumulateBRDF(&s, [3]float32{0, 0, -12}, white, 4, 5, &behind)
	if behind != ([3]float32{}) {
		t.Errorf("light behind the surface should not contribute, got %v", behind)
	}

	var full, half [3]float32
	AccumulateBRDF(&s, [3]float32{0, 0, -6}, white, 4, 5, &full)
	AccumulateBRDF(&s, [3]float32{0, 0, -5.5}, white, 4, 5, &half)
	if !near32(half[0], full[0]*0.5, 1e-3) {
		t.Errorf("halfway through the window should halve the light: full %v half %v", full, half)
	}
}

func TestRequiresPerSampleShading(t *testing.T) {
	base := Surface{PositionView: [3]float32{0, 0, -10}, Normal: [3]float32{0, 0, 1}, ZGrad: [2]float32{0.01, 0.01}}
	edge := base
	edge.PositionView[2] = -14
	tilted := base
	tilted.Normal = common.Normalize3([3]float32{1, 0, 1})

	if RequiresPerSampleShading([]Surface{base, base, base, base}) {
		t.Error("identical samples should share one shading result")
	}
	if !RequiresPerSampleShading([]Surface{base, base, edge, base}) {
		t.Error("a depth discontinuity should require per-sample shading")
	}
	if !RequiresPerSampleShading([]Surface{base, tilted}) {
		t.Error("diverging normals should require per-sample shading")
	}
}

func TestTonemap(t *testing.T) {
	got := Tonemap([3]float32{0, 1, 3})
	want := [3]float32{0, 0.5, 0.75}
	for i := range 3 {
		if !near32(got[i], want[i], 1e-6) {
			t.Errorf("Tonemap = %v, want %v", got, want)
		}
	}
}

func TestCubeFace(t *testing.T) {
	tests := []struct {
		dir  [3]float32
		face int
	}{
		{[3]float32{1, 0, 0}, 0},
		{[3]float32{-1, 0.2, 0}, 1},
		{[3]float32{0, 5, 1}, 2},
		{[3]float32{0.1, -1, 0}, 3},
		{[3]float32{0, 0, 2}, 4},
		{[3]float32{0, 0, -1}, 5},
	}

	for _, tt := range tests {
		face, u, v := CubeFace(tt.dir)
		if face != tt.face {
			t.Errorf("CubeFace(%v) face = %d, want %d", tt.dir, face, tt.face)
		}
		if u < 0 || u > 1 || v < 0 || v > 1 {
			t.Errorf("CubeFace(%v) uv out of range: %g %g", tt.dir, u, v)
		}
	}

	if _, u, v := CubeFace([3]float32{0, 0, 1}); !near32(u, 0.5, 1e-6) || !near32(v, 0.5, 1e-6) {
		t.Errorf("face centre should map to (0.5, 0.5), got (%g, %g)", u, v)
	}
}

func TestSRGBRoundTrip(t *testing.T) {
	for _, c := range []float32{0, 0.002, 0.2, 0.5, 1} {
		if got := SRGBToLinear(LinearToSRGB(c)); !near32(got, c, 1e-5) {
			t.Errorf("sRGB round trip of %g = %g", c, got)
		}
	}
}

func TestFrameConstantsLayout(t *testing.T) {
	fc := GPUFrameConstants{
		CameraNearFar:         [4]float32{testFar, testNear, 0, 0},
		FramebufferDimensions: [4]uint32{1280, 720, 4, 0},
		LightCount:            17,
	}
	fc.Proj[0] = 2.5

	buf := fc.Marshal()
	if len(buf) != 304 {
		t.Fatalf("frame constants should be 304 bytes, got %d", len(buf))
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[192:])); got != 2.5 {
		t.Errorf("proj[0] at offset 192 = %g", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[256:])); got != testFar {
		t.Errorf("camera_near_far.x should hold far, got %g", got)
	}
	if got := binary.LittleEndian.Uint32(buf[288:]); got != 17 {
		t.Errorf("light_count at offset 288 = %d", got)
	}

	decoded, err := DecodeFrameConstants(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Far() != testFar || decoded.Near() != testNear {
		t.Errorf("decoded near/far = %g/%g", decoded.Near(), decoded.Far())
	}
	if w, h, s := decoded.Dimensions(); w != 1280 || h != 720 || s != 4 {
		t.Errorf("decoded dimensions = %d %d %d", w, h, s)
	}
	if _, err := DecodeFrameConstants(buf[:100]); err == nil {
		t.Error("expected an error for a short buffer")
	}
}
