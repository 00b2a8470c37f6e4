package scene_test

import (
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/soft_device"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"go.uber.org/zap"
)

func newDevice(t *testing.T) *soft_device.Device {
	t.Helper()
	d := soft_device.New(soft_device.WithWorkers(1), soft_device.WithLogger(zap.NewNop()))
	t.Cleanup(d.Release)
	return d
}

// recordingPass is a gpu.RenderPass that records draws instead of executing them.
type recordingPass struct {
	vertexBuffer gpu.Buffer
	indexBuffer  gpu.Buffer
	draws        [][2]int // {firstIndex, indexCount}
}

func (p *recordingPass) SetPipeline(gpu.RenderPipeline) {}
func (p *recordingPass) SetBindGroup(int, gpu.BindGroup) {}
func (p *recordingPass) SetVertexBuffer(_ int, buf gpu.Buffer) { p.vertexBuffer = buf }
func (p *recordingPass) SetIndexBuffer(buf gpu.Buffer) { p.indexBuffer = buf }
func (p *recordingPass) SetStencilReference(uint32) {}
func (p *recordingPass) Draw(int, int) {}
func (p *recordingPass) ClearBindings() {}
func (p *recordingPass) End() error { return nil }
func (p *recordingPass) DrawIndexed(count, _ int, firstIndex int) {
	p.draws = append(p.draws, [2]int{firstIndex, count})
}

type recordingBinder struct {
	bound []*scene.Material
	err   error
}

func (b *recordingBinder) BindMaterial(_ gpu.RenderPass, m *scene.Material) error {
	b.bound = append(b.bound, m)
	return b.err
}

func TestCubeFacesOutward(t *testing.T) {
	cube := scene.Cube(2)
	if len(cube.Vertices) != 24 || len(cube.Indices) != 36 {
		t.Fatalf("cube has %d vertices and %d indices, want 24 and 36", len(cube.Vertices), len(cube.Indices))
	}
	for i := 0; i < len(cube.Indices); i += 3 {
		a := cube.Vertices[cube.Indices[i]].Position
		b := cube.Vertices[cube.Indices[i+1]].Position
		c := cube.Vertices[cube.Indices[i+2]].Position
		n := common.Cross3(common.Sub3(b, a), common.Sub3(c, a))
		centroid := [3]float32{(a[0] + b[0] + c[0]) / 3, (a[1] + b[1] + c[1]) / 3, (a[2] + b[2] + c[2]) / 3}
		if common.Dot3(n, centroid) <= 0 {
			t.Errorf("triangle %d winds inward", i/3)
		}
		if common.Dot3(n, cube.Vertices[cube.Indices[i]].Normal) <= 0 {
			t.Errorf("triangle %d disagrees with its vertex normal", i/3)
		}
	}
}

func TestPlaneFacesUp(t *testing.T) {
	p := scene.Plane(10, 4)
	a, b, c := p.Vertices[p.Indices[0]].Position, p.Vertices[p.Indices[1]].Position, p.Vertices[p.Indices[2]].Position
	if n := common.Cross3(common.Sub3(b, a), common.Sub3(c, a)); n[1] <= 0 {
		t.Errorf("plane normal from winding = %v, want +Y", n)
	}
	var maxUV float32
	for _, v := range p.Vertices {
		maxUV = max(maxUV, v.TexCoord[0], v.TexCoord[1])
	}
	if maxUV != 4 {
		t.Errorf("max texture coordinate = %v, want 4", maxUV)
	}
}

func TestMeshDataAppend(t *testing.T) {
	var d scene.MeshData
	mat := &scene.Material{Name: "m"}
	d.Append("a", scene.Cube(1), 1, [3]float32{}, mat)
	d.Append("b", scene.Quad(1), 2, [3]float32{5, 0, 0}, nil)

	if len(d.Vertices) != 28 || len(d.Indices) != 42 {
		t.Fatalf("got %d vertices and %d indices, want 28 and 42", len(d.Vertices), len(d.Indices))
	}
	if got := d.Submeshes[1]; got.FirstIndex != 36 || got.IndexCount != 6 || got.Material != nil {
		t.Errorf("second submesh = %+v", got)
	}
	for _, idx := range d.Indices[36:] {
		if idx < 24 {
			t.Fatalf("appended index %d not rebased past the first primitive", idx)
		}
	}
	if x := d.Vertices[25].Position[0]; x != 6 {
		t.Errorf("scaled and translated x = %v, want 6", x)
	}
}

func TestNewStaticMeshValidation(t *testing.T) {
	cube := scene.Cube(1)
	tests := []struct {
		name string
		data scene.MeshData
	}{
		{"empty", scene.MeshData{}},
		{"not a triangle list", scene.MeshData{Vertices: cube.Vertices, Indices: []uint32{0, 1}}},
		{"index out of range", scene.MeshData{Vertices: cube.Vertices[:3], Indices: []uint32{0, 1, 3}}},
		{"submesh past the end", scene.MeshData{
			Vertices:  cube.Vertices,
			Indices:   cube.Indices,
			Submeshes: []scene.Submesh{{Name: "x", FirstIndex: 30, IndexCount: 12}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDevice(t)
			if _, err := scene.NewStaticMesh(d, "bad", tt.data); !errors.Is(err, gpu.ErrInvalidConfig) {
				t.Errorf("NewStaticMesh error = %v, want ErrInvalidConfig", err)
			}
			if live := d.Stats().Live(); live != 0 {
				t.Errorf("%d resources live after a rejected mesh", live)
			}
		})
	}
}

func TestStaticMeshBounds(t *testing.T) {
	d := newDevice(t)
	var data scene.MeshData
	data.Append("crate", scene.Cube(6), 1, [3]float32{10, 3, 0}, nil)
	m, err := scene.NewStaticMesh(d, "crates", data)
	if err != nil {
		t.Fatalf("NewStaticMesh: %v", err)
	}
	defer m.Release()

	sm := m.Submeshes()[0]
	if sm.BoundsMin != [3]float32{7, 0, -3} || sm.BoundsMax != [3]float32{13, 6, 3} {
		t.Errorf("bounds = %v..%v, want [7 0 -3]..[13 6 3]", sm.BoundsMin, sm.BoundsMax)
	}
	if !m.Loaded() || m.VisibleCount() != 1 {
		t.Errorf("new mesh Loaded=%v VisibleCount=%d, want true and 1", m.Loaded(), m.VisibleCount())
	}
}

func worldViewProj(eye [3]float32) []float32 {
	var view, proj, vp [16]float32
	common.LookAt(view[:], eye, [3]float32{}, [3]float32{0, 1, 0})
	common.Perspective(proj[:], math.Pi/4, 1, 300, 0.05)
	common.Mul4(vp[:], proj[:], view[:])
	return vp[:]
}

func TestVisibilityAndRender(t *testing.T) {
	d := newDevice(t)
	front := &scene.Material{Name: "front"}
	behind := &scene.Material{Name: "behind"}
	var data scene.MeshData
	data.Append("front", scene.Cube(2), 1, [3]float32{}, front)
	data.Append("behind", scene.Cube(2), 1, [3]float32{0, 0, 50}, behind)
	m, err := scene.NewStaticMesh(d, "pair", data)
	if err != nil {
		t.Fatalf("NewStaticMesh: %v", err)
	}
	defer m.Release()

	m.UpdateVisibility(worldViewProj([3]float32{0, 0, 10}))
	if !m.Visible(0) || m.Visible(1) || m.VisibleCount() != 1 {
		t.Fatalf("visibility = %v, %v, want true, false", m.Visible(0), m.Visible(1))
	}

	tests := []struct {
		name          string
		useVisibility bool
		wantDraws     [][2]int
	}{
		{"culled", true, [][2]int{{0, 36}}},
		{"all", false, [][2]int{{0, 36}, {36, 36}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass := &recordingPass{}
			binder := &recordingBinder{}
			if err := m.Render(pass, binder, tt.useVisibility); err != nil {
				t.Fatalf("Render: %v", err)
			}
			if pass.vertexBuffer == nil || pass.indexBuffer == nil {
				t.Error("mesh buffers not bound")
			}
			if len(pass.draws) != len(tt.wantDraws) {
				t.Fatalf("draws = %v, want %v", pass.draws, tt.wantDraws)
			}
			for i, want := range tt.wantDraws {
				if pass.draws[i] != want {
					t.Errorf("draw %d = %v, want %v", i, pass.draws[i], want)
				}
			}
			if len(binder.bound) != len(tt.wantDraws) || binder.bound[0] != front {
				t.Errorf("bound materials = %v", binder.bound)
			}
		})
	}
}

func TestRenderPropagatesBinderError(t *testing.T) {
	d := newDevice(t)
	var data scene.MeshData
	data.Append("a", scene.Cube(1), 1, [3]float32{}, &scene.Material{Name: "a"})
	m, err := scene.NewStaticMesh(d, "a", data)
	if err != nil {
		t.Fatalf("NewStaticMesh: %v", err)
	}
	defer m.Release()

	want := errors.New("no bind group")
	pass := &recordingPass{}
	if err := m.Render(pass, &recordingBinder{err: want}, false); !errors.Is(err, want) {
		t.Errorf("Render error = %v, want %v", err, want)
	}
	if len(pass.draws) != 0 {
		t.Errorf("draws after a binder failure = %v, want none", pass.draws)
	}
}

func TestReleasedMeshIsSkipped(t *testing.T) {
	d := newDevice(t)
	cube := scene.Cube(1)
	m, err := scene.NewStaticMesh(d, "cube", scene.MeshData{Vertices: cube.Vertices, Indices: cube.Indices})
	if err != nil {
		t.Fatalf("NewStaticMesh: %v", err)
	}
	m.Release()
	m.Release()

	if m.Loaded() {
		t.Error("released mesh reports Loaded")
	}
	pass := &recordingPass{}
	if err := m.Render(pass, nil, false); err != nil || len(pass.draws) != 0 {
		t.Errorf("Render of released mesh = %v with %d draws, want no error and no draws", err, len(pass.draws))
	}
	if live := d.Stats().Live(); live != 0 {
		t.Errorf("%d resources live after Release", live)
	}
}

func TestCubeFaceDirectionRoundTrip(t *testing.T) {
	for face := range scene.CubeFaces {
		for _, uv := range [][2]float32{{0.5, 0.5}, {0.2, 0.7}, {0.9, 0.1}} {
			dir := scene.CubeFaceDirection(face, uv[0], uv[1])
			gotFace, u, v := shading.CubeFace(dir)
			if gotFace != face || math.Abs(float64(u-uv[0])) > 1e-5 || math.Abs(float64(v-uv[1])) > 1e-5 {
				t.Errorf("face %d uv %v: lookup gave face %d uv (%v, %v)", face, uv, gotFace, u, v)
			}
		}
	}
}

func TestGradientSky(t *testing.T) {
	zenith, horizon, ground := [3]uint8{0, 0, 255}, [3]uint8{255, 255, 255}, [3]uint8{0, 255, 0}
	sky := scene.GradientSky(8, zenith, horizon, ground)
	if sky.Layers != scene.CubeFaces || len(sky.Pixels) != 8*8*4*scene.CubeFaces {
		t.Fatalf("sky staging = %d layers, %d bytes", sky.Layers, len(sky.Pixels))
	}
	// The center of +Y looks straight up and the center of -Y straight down.
	up := sky.Layer(2)[(4*8+4)*4:]
	down := sky.Layer(3)[(4*8+4)*4:]
	if up[2] < 200 || up[0] > 60 {
		t.Errorf("zenith texel = %v, want mostly blue", up[:4])
	}
	if down[1] < 200 || down[0] > 60 {
		t.Errorf("ground texel = %v, want mostly green", down[:4])
	}
}

func TestCutoutHasTransparentTexels(t *testing.T) {
	c := scene.Cutout(32, [3]uint8{0, 200, 0})
	var opaque, clear int
	for i := 3; i < len(c.Pixels); i += 4 {
		if c.Pixels[i] == 255 {
			opaque++
		} else if c.Pixels[i] == 0 {
			clear++
		}
	}
	if opaque == 0 || clear == 0 || opaque+clear != 32*32 {
		t.Errorf("cutout alpha: %d opaque, %d clear", opaque, clear)
	}
}
