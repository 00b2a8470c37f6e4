package renderer_test

import (
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/soft_device"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"go.uber.org/zap"
)

func newDevice(t *testing.T, opts ...soft_device.DeviceBuilderOption) *soft_device.Device {
	t.Helper()
	d := soft_device.New(append([]soft_device.DeviceBuilderOption{
		soft_device.WithWorkers(4),
		soft_device.WithLogger(zap.NewNop()),
	}, opts...)...)
	t.Cleanup(d.Release)
	return d
}

// testCamera looks at the origin with the complementary-depth projection of the demo host.
type testCamera struct {
	view, proj [16]float32
	near, far  float32
}

func newCamera(eye [3]float32, aspect float32) *testCamera {
	c := &testCamera{near: 0.05, far: 300}
	common.LookAt(c.view[:], eye, [3]float32{}, [3]float32{0, 1, 0})
	common.Perspective(c.proj[:], math.Pi/4, aspect, c.far, c.near)
	return c
}

func (c *testCamera) ViewMatrix() [16]float32       { return c.view }
func (c *testCamera) ProjectionMatrix() [16]float32 { return c.proj }
func (c *testCamera) Near() float32                 { return c.near }
func (c *testCamera) Far() float32                  { return c.far }

func newTarget(t *testing.T, d gpu.Device, width, height int) gpu.TextureView {
	t.Helper()
	tex, err := gpu.NewTexture2D(d,
		gpu.WithLabel("present"),
		gpu.WithSize(width, height),
		gpu.WithFormat(gpu.FormatRGBA8UnormSrgb),
		gpu.WithBindFlags(gpu.BindRenderTarget),
	)
	if err != nil {
		t.Fatalf("NewTexture2D: %v", err)
	}
	t.Cleanup(tex.Release)
	return tex.RenderTargetView(0)
}

// floorScene is a 40x40 floor at y=0 lit by 8 lights hovering just above it.
func floorScene(t *testing.T, d gpu.Device) scene.Scene {
	t.Helper()
	return newFloorScene(t, d, []light.ManagerBuilderOption{
		light.WithCapacity(8),
		light.WithMaxRadius(5),
		light.WithHeightRange(1, 3),
		light.WithAttenuationRange(20, 30),
	})
}

// newFloorScene builds the 40x40 floor with the given light set and scene options.
func newFloorScene(t *testing.T, d gpu.Device, lights []light.ManagerBuilderOption, opts ...scene.SceneBuilderOption) scene.Scene {
	t.Helper()
	tex, err := scene.NewTexture(d, "floor.albedo", scene.Checkerboard(16, 4, [4]uint8{220, 220, 220, 255}, [4]uint8{140, 140, 140, 255}))
	if err != nil {
		t.Fatalf("NewTexture: %v", err)
	}
	var data scene.MeshData
	data.Append("floor", scene.Plane(40, 4), 1, [3]float32{}, &scene.Material{Name: "floor", Albedo: tex})
	mesh, err := scene.NewStaticMesh(d, "floor", data)
	if err != nil {
		t.Fatalf("NewStaticMesh: %v", err)
	}
	s, err := scene.NewScene(d, "floor", append([]scene.SceneBuilderOption{
		scene.WithOpaqueMesh(mesh),
		scene.WithOwned(tex),
		scene.WithLightOptions(lights...),
	}, opts...)...)
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	t.Cleanup(s.Release)
	return s
}

func newRenderer(t *testing.T, d gpu.Device, opts ...renderer.RendererBuilderOption) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(d, opts...)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

func render(t *testing.T, r renderer.Renderer, s scene.Scene, target gpu.TextureView, dt float32) {
	t.Helper()
	w, h := r.Size()
	f := renderer.Frame{
		Scene:     s,
		Camera:    newCamera([3]float32{0, 10, 20}, float32(w)/float32(h)),
		Target:    target,
		DeltaTime: dt,
	}
	if err := r.Render(f); err != nil {
		t.Fatalf("Render: %v", err)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    renderer.Strategy
		wantErr bool
	}{
		{"tiled", renderer.StrategyTiled, false},
		{"", renderer.StrategyTiled, false},
		{"per_pixel", renderer.StrategyPerPixel, false},
		{"Per-Pixel", renderer.StrategyPerPixel, false},
		{"forward", 0, true},
	}
	for _, tt := range tests {
		got, err := renderer.ParseStrategy(tt.in)
		if tt.wantErr {
			if !errors.Is(err, gpu.ErrInvalidConfig) {
				t.Errorf("ParseStrategy(%q) error = %v, want ErrInvalidConfig", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestNewRendererRejectsConfig(t *testing.T) {
	tests := []struct {
		name    string
		devOpts []soft_device.DeviceBuilderOption
		opts    []renderer.RendererBuilderOption
		want    error
	}{
		{"zero tile dim", nil, []renderer.RendererBuilderOption{renderer.WithTileDim(0)}, gpu.ErrInvalidConfig},
		{"tile over one workgroup", nil, []renderer.RendererBuilderOption{renderer.WithTileDim(32)}, gpu.ErrInvalidConfig},
		{"no lights", nil, []renderer.RendererBuilderOption{renderer.WithMaxLights(0)}, gpu.ErrInvalidConfig},
		{"depth output", nil, []renderer.RendererBuilderOption{renderer.WithOutputFormat(gpu.FormatDepth32Float)}, gpu.ErrInvalidConfig},
		{"sample count", nil, []renderer.RendererBuilderOption{renderer.WithSampleCount(3)}, gpu.ErrUnsupported},
		{"tiled without compute", []soft_device.DeviceBuilderOption{soft_device.WithoutCompute()}, nil, gpu.ErrUnsupported},
		{"zero size", nil, []renderer.RendererBuilderOption{renderer.WithSize(0, 16)}, gpu.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDevice(t, tt.devOpts...)
			r, err := renderer.NewRenderer(d, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewRenderer error = %v, want %v", err, tt.want)
			}
			if r != nil {
				t.Error("NewRenderer returned a renderer with an error")
			}
			if live := d.Stats().Live(); live != 0 {
				t.Errorf("%d resources live after a rejected NewRenderer: %+v", live, d.Stats())
			}
		})
	}
}

func TestPerPixelWithoutCompute(t *testing.T) {
	d := newDevice(t, soft_device.WithoutCompute())
	r := newRenderer(t, d, renderer.WithStrategy(renderer.StrategyPerPixel), renderer.WithSize(32, 32))

	err := r.SetStrategy(renderer.StrategyTiled)
	if !errors.Is(err, gpu.ErrUnsupported) {
		t.Fatalf("SetStrategy(tiled) error = %v, want ErrUnsupported", err)
	}
	if r.Strategy() != renderer.StrategyPerPixel || !r.Initialized() {
		t.Errorf("rejected strategy change altered the renderer: strategy %s, initialized %v", r.Strategy(), r.Initialized())
	}
	if r.Targets().LitTexture == nil {
		t.Error("lit texture released by a rejected strategy change")
	}
}

func TestResizeInvariants(t *testing.T) {
	d := newDevice(t)
	r := newRenderer(t, d, renderer.WithSampleCount(4), renderer.WithSize(64, 32))

	check := func(w, h int) {
		t.Helper()
		tg := r.Targets()
		if tg.LitBuffer == nil || tg.LitTexture != nil {
			t.Fatalf("tiled targets = %+v, want a lit buffer only", tg)
		}
		if got, want := tg.LitBuffer.Len(), w*h*4; got != want {
			t.Errorf("lit elements = %d, want %d", got, want)
		}
		for _, tex := range []*gpu.Texture2D{tg.GBuffer.NormalSpecular, tg.GBuffer.Albedo, tg.GBuffer.PosZGrad} {
			if tex.Width() != w || tex.Height() != h || tex.SampleCount() != 4 {
				t.Errorf("%s is %dx%d x%d, want %dx%d x4", tex.Label(), tex.Width(), tex.Height(), tex.SampleCount(), w, h)
			}
		}
		if tg.GBuffer.Depth.Width() != w || tg.GBuffer.Depth.Height() != h {
			t.Errorf("depth is %dx%d, want %dx%d", tg.GBuffer.Depth.Width(), tg.GBuffer.Depth.Height(), w, h)
		}
	}
	check(64, 32)
	before := d.Stats()
	lit := r.Targets().LitBuffer

	for _, size := range [][2]int{{0, 32}, {64, -1}} {
		if err := r.Resize(size[0], size[1]); !errors.Is(err, gpu.ErrInvalidConfig) {
			t.Errorf("Resize(%d, %d) error = %v, want ErrInvalidConfig", size[0], size[1], err)
		}
	}
	if !r.Initialized() || r.Targets().LitBuffer != lit {
		t.Error("a rejected resize released the targets")
	}

	if err := r.Resize(64, 32); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if r.Targets().LitBuffer == lit {
		t.Error("Resize kept the lit buffer instead of reallocating it")
	}
	if after := d.Stats(); after.Live() != before.Live() || after.Bytes != before.Bytes {
		t.Errorf("resize to the same size changed the resource footprint: %+v -> %+v", before, after)
	}

	if err := r.Resize(128, 48); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	check(128, 48)
}

func TestDispatchCoversFramebuffer(t *testing.T) {
	d := newDevice(t)
	s, err := scene.NewScene(d, "empty", scene.WithLightOptions(light.WithCapacity(8)))
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	t.Cleanup(s.Release)
	target := newTarget(t, d, 1280, 720)
	r := newRenderer(t, d, renderer.WithSize(1280, 720))

	render(t, r, s, target, 0)
	st := r.LastFrame()
	if st.Dispatch != [3]int{80, 45, 1} {
		t.Errorf("dispatch = %v, want [80 45 1]", st.Dispatch)
	}
	if st.LitElements != 1280*720 {
		t.Errorf("lit elements = %d, want %d", st.LitElements, 1280*720)
	}
	if st.ActiveLights != 8 || st.Strategy != renderer.StrategyTiled {
		t.Errorf("frame stats = %+v", st)
	}
}

func TestTiledLighting(t *testing.T) {
	d := newDevice(t)
	s := floorScene(t, d)
	target := newTarget(t, d, 256, 256)
	r := newRenderer(t, d, renderer.WithSize(256, 256), renderer.WithTileDim(16))

	render(t, r, s, target, 0)

	fc := r.FrameConstants()
	if fc.Far() != 300 || fc.Near() != 0.05 {
		t.Errorf("near/far = %v/%v, want 0.05/300 stored as (far, near)", fc.Near(), fc.Far())
	}
	if w, h, n := fc.Dimensions(); w != 256 || h != 256 || n != 1 {
		t.Errorf("framebuffer dimensions = %d %d %d", w, h, n)
	}
	if fc.LightCount != 8 {
		t.Errorf("light count = %d, want 8", fc.LightCount)
	}
	if got := r.LastFrame().Dispatch; got != [3]int{16, 16, 1} {
		t.Errorf("dispatch = %v, want [16 16 1]", got)
	}

	tg := r.Targets()
	depth, err := d.ReadTexels(tg.GBuffer.Depth.Texture(), 0, 0)
	if err != nil {
		t.Fatalf("ReadTexels: %v", err)
	}
	buf, err := d.ReadBuffer(tg.LitBuffer.Buffer())
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if n := len(buf) / light.FramebufferFlatElementSize; n != 65536 {
		t.Fatalf("lit buffer holds %d elements, want 65536", n)
	}

	covered, lit := 0, 0
	for y := range 256 {
		for x := range 256 {
			i := light.FlatElementIndex(x, y, 0, 256, 256)
			e := light.DecodeFramebufferFlatElement(buf, i)
			if depth[y*256+x][0] == 0 {
				if e != (light.FramebufferFlatElement{}) {
					t.Fatalf("pixel (%d, %d) has no geometry but lit element %+v", x, y, e)
				}
				continue
			}
			covered++
			if c := e.Unpack(); c[0] > 0 || c[1] > 0 || c[2] > 0 {
				lit++
			}
		}
	}
	if covered == 0 || covered == 256*256 {
		t.Fatalf("floor covers %d pixels, want part of the frame", covered)
	}
	if lit == 0 {
		t.Error("no covered pixel received light")
	}
}

func TestPerPixelLighting(t *testing.T) {
	tests := []struct {
		name    string
		devOpts []soft_device.DeviceBuilderOption
		stencil bool
		format  gpu.Format
	}{
		{"stencil", nil, true, gpu.FormatDepth32FloatStencil8},
		{"depth fallback", []soft_device.DeviceBuilderOption{soft_device.WithoutStencil()}, false, gpu.FormatDepth32Float},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDevice(t, tt.devOpts...)
			s := floorScene(t, d)
			target := newTarget(t, d, 64, 64)
			r := newRenderer(t, d, renderer.WithStrategy(renderer.StrategyPerPixel), renderer.WithSize(64, 64))

			render(t, r, s, target, 0)
			if got := r.LastFrame().Dispatch; got != [3]int{} {
				t.Errorf("per-pixel dispatch = %v, want none", got)
			}

			tg := r.Targets()
			if tg.LitTexture == nil || tg.LitBuffer != nil {
				t.Fatalf("per-pixel targets = %+v, want a lit texture only", tg)
			}
			if tg.GBuffer.Depth.HasStencil() != tt.stencil {
				t.Fatalf("depth stencil = %v, want %v", tg.GBuffer.Depth.HasStencil(), tt.stencil)
			}
			if got := tg.GBuffer.Depth.Format(); got != tt.format {
				t.Errorf("depth format = %s, want %s", got, tt.format)
			}
			depth, err := d.ReadTexels(tg.GBuffer.Depth.Texture(), 0, 0)
			if err != nil {
				t.Fatalf("ReadTexels depth: %v", err)
			}
			texels, err := d.ReadTexels(tg.LitTexture.Texture(), 0, 0)
			if err != nil {
				t.Fatalf("ReadTexels lit: %v", err)
			}
			var stencil []uint8
			if tt.stencil {
				if stencil, err = d.ReadStencil(tg.GBuffer.Depth.Texture(), 0, 0); err != nil {
					t.Fatalf("ReadStencil: %v", err)
				}
			}

			lit := 0
			for i, c := range texels {
				covered := depth[i][0] != 0
				if stencil != nil && (stencil[i] == 1) != covered {
					t.Fatalf("texel %d: stencil %d with depth %v", i, stencil[i], depth[i][0])
				}
				if !covered {
					if c != [4]float32{} {
						t.Fatalf("texel %d has no geometry but lit color %v", i, c)
					}
					continue
				}
				if c[0] > 0 || c[1] > 0 || c[2] > 0 {
					lit++
				}
			}
			if lit == 0 {
				t.Error("no covered pixel received light")
			}
		})
	}
}

// sparseLights is a dense set of short-range lights, so that most tiles cull most of them.
func sparseLights() []light.ManagerBuilderOption {
	return []light.ManagerBuilderOption{
		light.WithCapacity(128),
		light.WithMaxRadius(20),
		light.WithHeightRange(0.5, 2),
		light.WithAttenuationRange(1, 3),
	}
}

// litColors renders one frame with strategy and returns the lit color of every pixel together
// with the G-buffer depth and the presented texels.
func litColors(t *testing.T, d *soft_device.Device, s scene.Scene, strategy renderer.Strategy, size int) (lit [][3]float32, depth, presented [][4]float32) {
	t.Helper()
	target := newTarget(t, d, size, size)
	r := newRenderer(t, d, renderer.WithStrategy(strategy), renderer.WithSize(size, size))
	render(t, r, s, target, 0)

	tg := r.Targets()
	var err error
	if depth, err = d.ReadTexels(tg.GBuffer.Depth.Texture(), 0, 0); err != nil {
		t.Fatalf("ReadTexels depth: %v", err)
	}
	if presented, err = d.ReadTexels(target.Texture(), 0, 0); err != nil {
		t.Fatalf("ReadTexels target: %v", err)
	}

	lit = make([][3]float32, size*size)
	switch strategy {
	case renderer.StrategyTiled:
		buf, err := d.ReadBuffer(tg.LitBuffer.Buffer())
		if err != nil {
			t.Fatalf("ReadBuffer: %v", err)
		}
		for y := range size {
			for x := range size {
				c := light.DecodeFramebufferFlatElement(buf, light.FlatElementIndex(x, y, 0, size, size)).Unpack()
				lit[y*size+x] = [3]float32{c[0], c[1], c[2]}
			}
		}
	case renderer.StrategyPerPixel:
		texels, err := d.ReadTexels(tg.LitTexture.Texture(), 0, 0)
		if err != nil {
			t.Fatalf("ReadTexels lit: %v", err)
		}
		for i, c := range texels {
			lit[i] = [3]float32{c[0], c[1], c[2]}
		}
	}
	return lit, depth, presented
}

func TestStrategiesAgree(t *testing.T) {
	const size = 64
	d := newDevice(t)
	s := newFloorScene(t, d, sparseLights())

	tiled, depth, _ := litColors(t, d, s, renderer.StrategyTiled, size)
	perPixel, _, _ := litColors(t, d, s, renderer.StrategyPerPixel, size)

	lit, dark := 0, 0
	for i := range tiled {
		if depth[i][0] == 0 {
			continue
		}
		for c := range 3 {
			a, b := float64(tiled[i][c]), float64(perPixel[i][c])
			if diff := math.Abs(a - b); diff > 1e-4+2e-3*math.Max(math.Abs(a), math.Abs(b)) {
				t.Fatalf("pixel %d channel %d: tiled %v, per-pixel %v", i, c, a, b)
			}
		}
		if tiled[i] == ([3]float32{}) {
			dark++
		} else {
			lit++
		}
	}
	if lit == 0 || dark == 0 {
		t.Errorf("covered pixels: %d lit, %d dark; want short-range lights to leave both", lit, dark)
	}
}

func TestCompositeResolvesSkyAndLitColor(t *testing.T) {
	const size = 48
	sky := [3]uint8{30, 60, 120}
	faces := make([]byte, 4*4*4*scene.CubeFaces)
	for i := 0; i < len(faces); i += 4 {
		faces[i], faces[i+1], faces[i+2], faces[i+3] = sky[0], sky[1], sky[2], 255
	}

	for _, strategy := range []renderer.Strategy{renderer.StrategyTiled, renderer.StrategyPerPixel} {
		t.Run(strategy.String(), func(t *testing.T) {
			d := newDevice(t)
			s := newFloorScene(t, d, sparseLights(), scene.WithSkyboxStaging(common.TextureStagingData{
				Pixels: faces, Width: 4, Height: 4, Layers: scene.CubeFaces,
			}))
			lit, depth, presented := litColors(t, d, s, strategy, size)

			srgb := func(c float32) float64 { return float64(shading.LinearToSRGB(c)) * 255 }
			skyPixels, covered := 0, 0
			for i, px := range presented {
				var want [3]float64
				if depth[i][0] == 0 {
					skyPixels++
					want = [3]float64{float64(sky[0]), float64(sky[1]), float64(sky[2])}
				} else {
					covered++
					tm := shading.Tonemap(lit[i])
					want = [3]float64{srgb(tm[0]), srgb(tm[1]), srgb(tm[2])}
				}
				for c := range 3 {
					if got := srgb(px[c]); math.Abs(got-want[c]) > 1 {
						t.Fatalf("pixel %d channel %d = %.1f, want %.1f (depth %v)", i, c, got, want[c], depth[i][0])
					}
				}
			}
			if skyPixels == 0 || covered == 0 {
				t.Errorf("%d sky and %d covered pixels, want both", skyPixels, covered)
			}
		})
	}
}

func TestSetStrategyRebuilds(t *testing.T) {
	d := newDevice(t)
	s := floorScene(t, d)
	target := newTarget(t, d, 32, 32)
	r := newRenderer(t, d, renderer.WithSize(32, 32))
	render(t, r, s, target, 0)

	if err := r.SetStrategy(renderer.StrategyPerPixel); err != nil {
		t.Fatalf("SetStrategy: %v", err)
	}
	if r.Pipeline(renderer.KeyLightingTiled) != nil || r.Pipeline(renderer.KeyLightingPerPixel) == nil {
		t.Errorf("pipelines after the switch: %v", r.Pipelines())
	}
	if tg := r.Targets(); tg.LitTexture == nil || tg.LitBuffer != nil {
		t.Errorf("targets after the switch = %+v", tg)
	}
	render(t, r, s, target, 0)
	if st := r.LastFrame(); st.Strategy != renderer.StrategyPerPixel {
		t.Errorf("rendered with %s, want per_pixel", st.Strategy)
	}

	if err := r.SetSampleCount(3); !errors.Is(err, gpu.ErrUnsupported) {
		t.Errorf("SetSampleCount(3) error = %v, want ErrUnsupported", err)
	}
	if err := r.SetSampleCount(4); err != nil {
		t.Fatalf("SetSampleCount(4): %v", err)
	}
	if got := r.Targets().LitTexture.SampleCount(); got != 4 {
		t.Errorf("lit texture samples = %d, want 4", got)
	}
	render(t, r, s, target, 0)
}

func TestRenderRejectsInvalidFrames(t *testing.T) {
	d := newDevice(t)
	s := floorScene(t, d)
	r := newRenderer(t, d)

	cam := newCamera([3]float32{0, 10, 20}, 1)
	target := newTarget(t, d, 32, 32)
	if err := r.Render(renderer.Frame{Scene: s, Camera: cam, Target: target}); !errors.Is(err, gpu.ErrInvalidConfig) {
		t.Errorf("Render before Resize error = %v, want ErrInvalidConfig", err)
	}
	if err := r.Resize(64, 64); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	tests := []struct {
		name  string
		frame renderer.Frame
	}{
		{"no scene", renderer.Frame{Camera: cam, Target: newTarget(t, d, 64, 64)}},
		{"no camera", renderer.Frame{Scene: s, Target: newTarget(t, d, 64, 64)}},
		{"target size", renderer.Frame{Scene: s, Camera: cam, Target: target}},
	}
	for _, tt := range tests {
		if err := r.Render(tt.frame); !errors.Is(err, gpu.ErrInvalidConfig) {
			t.Errorf("%s: Render error = %v, want ErrInvalidConfig", tt.name, err)
		}
	}

	valid := newTarget(t, d, 64, 64)
	d.Lose("test")
	if err := r.Render(renderer.Frame{Scene: s, Camera: cam, Target: valid}); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("Render on a lost device error = %v, want ErrDeviceLost", err)
	}
}

func TestFirstFrameAfterResizeHasNoElapsedTime(t *testing.T) {
	d := newDevice(t)
	s := floorScene(t, d)
	target := newTarget(t, d, 16, 16)
	r := newRenderer(t, d, renderer.WithSize(16, 16))

	render(t, r, s, target, 0.5)
	if got := s.Lights().TotalTime(); got != 0 {
		t.Errorf("time after the first frame = %v, want 0", got)
	}
	render(t, r, s, target, 0.5)
	if got := s.Lights().TotalTime(); got != 0.5 {
		t.Errorf("time after the second frame = %v, want 0.5", got)
	}
	if err := r.Resize(16, 16); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	render(t, r, s, target, 0.5)
	if got := s.Lights().TotalTime(); got != 0.5 {
		t.Errorf("time after the first frame at the new size = %v, want 0.5", got)
	}
}

func TestReleaseFreesEverything(t *testing.T) {
	d := soft_device.New(soft_device.WithWorkers(2), soft_device.WithLogger(zap.NewNop()))
	t.Cleanup(d.Release)

	s, err := scene.NewDemoScene(d, scene.WithLightOptions(light.WithCapacity(16)))
	if err != nil {
		t.Fatalf("NewDemoScene: %v", err)
	}
	tex, err := gpu.NewTexture2D(d, gpu.WithSize(48, 32), gpu.WithFormat(gpu.FormatRGBA8UnormSrgb), gpu.WithBindFlags(gpu.BindRenderTarget))
	if err != nil {
		t.Fatalf("NewTexture2D: %v", err)
	}
	r, err := renderer.NewRenderer(d, renderer.WithSize(48, 32))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	f := renderer.Frame{Scene: s, Camera: newCamera([3]float32{0, 40, 90}, 1.5), Target: tex.RenderTargetView(0), DeltaTime: 1.0 / 60}
	for range 2 {
		if err := r.Render(f); err != nil {
			t.Fatalf("Render: %v", err)
		}
	}
	if err := r.SetStrategy(renderer.StrategyPerPixel); err != nil {
		t.Fatalf("SetStrategy: %v", err)
	}
	if err := r.Render(f); err != nil {
		t.Fatalf("Render: %v", err)
	}

	r.Release()
	tex.Release()
	s.Release()
	if live := d.Stats().Live(); live != 0 {
		t.Errorf("%d resources live after Release: %+v", live, d.Stats())
	}
}
