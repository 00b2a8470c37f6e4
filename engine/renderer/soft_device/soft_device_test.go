package soft_device

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
	"go.uber.org/zap"
)

const (
	testProgram    = "soft_device_test"
	testOutputRole = shader.AnnotationArg("test_output")
)

func init() {
	registerVertex(testProgram, "vs_color", func(_ *bindings, in *vertexInput, out *vertexOutput) {
		out.Position = in.Attributes[0]
		copy(out.Varyings[:4], in.Attributes[1][:])
	})
	registerFragment(testProgram, "fs_color", func(_ *bindings, in *fragmentInput, out *fragmentOutput) {
		copy(out.Colors[0][:], in.Varyings[:4])
	})
	registerCompute(testProgram, "cs_ids", func(b *bindings, group [3]int, _ [3]uint32) {
		out := b.buffer(testOutputRole)
		i := group[1]*3 + group[0]
		binary.LittleEndian.PutUint32(out[i*4:], uint32(i+1))
	}, testOutputRole)
}

func newTestDevice(t *testing.T, opts ...DeviceBuilderOption) *Device {
	t.Helper()
	d := New(append([]DeviceBuilderOption{WithWorkers(4), WithLogger(zap.NewNop())}, opts...)...)
	t.Cleanup(d.Release)
	return d
}

// testVertex is a clip-space position and a color.
type testVertex struct {
	pos   [4]float32
	color [4]float32
}

var testVertexLayout = gpu.VertexBufferLayout{
	ArrayStride: 32,
	Attributes: []gpu.VertexAttribute{
		{Format: gpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
		{Format: gpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 1},
	},
}

func vertexBuffer(t *testing.T, d *Device, verts []testVertex) gpu.Buffer {
	t.Helper()
	data := make([]byte, 0, len(verts)*32)
	for _, v := range verts {
		for _, f := range append(v.pos[:], v.color[:]...) {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
		}
	}
	buf, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "vertices", Size: uint64(len(data)), Usage: gpu.BufferUsageVertex})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := d.WriteBuffer(buf, 0, data); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
	return buf
}

func colorTarget(t *testing.T, d *Device, width, height, samples int) (gpu.Texture, gpu.TextureView) {
	t.Helper()
	tex, err := d.CreateTexture(gpu.TextureDescriptor{
		Label:       "color",
		Width:       width,
		Height:      height,
		SampleCount: samples,
		Format:      gpu.FormatRGBA32Float,
		Usage:       gpu.BindRenderTarget,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	view, err := tex.CreateView(gpu.TextureViewDescriptor{})
	if err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	return tex, view
}

func colorPipelineDesc(samples int) gpu.RenderPipelineDescriptor {
	return gpu.RenderPipelineDescriptor{
		Label:         "color",
		Vertex:        gpu.ProgrammableStage{Program: testProgram, EntryPoint: "vs_color"},
		Fragment:      &gpu.ProgrammableStage{Program: testProgram, EntryPoint: "fs_color"},
		VertexBuffers: []gpu.VertexBufferLayout{testVertexLayout},
		Targets:       []gpu.ColorTargetState{{Format: gpu.FormatRGBA32Float}},
		SampleCount:   samples,
	}
}

// drawPass clears the attachments, draws verts with p, and submits.
func drawPass(t *testing.T, d *Device, desc gpu.RenderPassDescriptor, p gpu.RenderPipeline, verts []testVertex, stencilRef uint32) {
	t.Helper()
	vb := vertexBuffer(t, d, verts)
	defer vb.Release()

	enc, err := d.CreateCommandEncoder("test")
	if err != nil {
		t.Fatalf("CreateCommandEncoder: %v", err)
	}
	pass, err := enc.BeginRenderPass(desc)
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	pass.SetPipeline(p)
	pass.SetVertexBuffer(0, vb)
	pass.SetStencilReference(stencilRef)
	pass.Draw(len(verts), 1)
	if err := pass.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := enc.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestCreateTextureValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []DeviceBuilderOption
		desc gpu.TextureDescriptor
		want error
	}{
		{"zero width", nil, gpu.TextureDescriptor{Height: 4, Format: gpu.FormatRGBA8Unorm}, gpu.ErrInvalidConfig},
		{"undefined format", nil, gpu.TextureDescriptor{Width: 4, Height: 4}, gpu.ErrInvalidConfig},
		{"odd sample count", nil, gpu.TextureDescriptor{Width: 4, Height: 4, SampleCount: 3, Format: gpu.FormatRGBA8Unorm}, gpu.ErrUnsupported},
		{"restricted sample counts", []DeviceBuilderOption{WithSampleCounts(1)}, gpu.TextureDescriptor{Width: 4, Height: 4, SampleCount: 4, Format: gpu.FormatRGBA8Unorm}, gpu.ErrUnsupported},
		{"stencil disabled", []DeviceBuilderOption{WithoutStencil()}, gpu.TextureDescriptor{Width: 4, Height: 4, Format: gpu.FormatDepth32FloatStencil8}, gpu.ErrUnsupported},
		{"valid multisampled", nil, gpu.TextureDescriptor{Width: 4, Height: 4, SampleCount: 8, Format: gpu.FormatDepth32FloatStencil8}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t, tt.opts...)
			tex, err := d.CreateTexture(tt.desc)
			if !errors.Is(err, tt.want) {
				t.Fatalf("CreateTexture error = %v, want %v", err, tt.want)
			}
			if err == nil {
				tex.Release()
			}
		})
	}
}

func TestStatsTrackRelease(t *testing.T) {
	d := newTestDevice(t)
	tex, err := d.CreateTexture(gpu.TextureDescriptor{Label: "t", Width: 4, Height: 2, ArrayLayers: 6, Format: gpu.FormatRGBA8Unorm})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	view, err := tex.CreateView(gpu.TextureViewDescriptor{Dimension: gpu.ViewDimensionCube})
	if err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	buf, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "b", Size: 64})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	smp, err := d.CreateSampler(gpu.SamplerDescriptor{Label: "s"})
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}

	got := d.Stats()
	want := Stats{Textures: 1, Views: 1, Buffers: 1, Samplers: 1, Bytes: 4*2*6*16 + 64}
	if got != want {
		t.Fatalf("Stats() = %+v, want %+v", got, want)
	}

	view.Release()
	tex.Release()
	buf.Release()
	smp.Release()
	smp.Release()
	if got := d.Stats(); got.Live() != 0 || got.Bytes != 0 {
		t.Errorf("Stats() after release = %+v, want empty", got)
	}
	if _, err := tex.CreateView(gpu.TextureViewDescriptor{}); !errors.Is(err, gpu.ErrReleased) {
		t.Errorf("CreateView on released texture error = %v, want ErrReleased", err)
	}
}

func TestCreateViewValidation(t *testing.T) {
	d := newTestDevice(t)
	color, err := d.CreateTexture(gpu.TextureDescriptor{Width: 2, Height: 2, ArrayLayers: 2, Format: gpu.FormatRGBA8Unorm})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer color.Release()

	tests := []struct {
		name string
		desc gpu.TextureViewDescriptor
	}{
		{"layers out of range", gpu.TextureViewDescriptor{BaseLayer: 1, LayerCount: 2}},
		{"cube of two layers", gpu.TextureViewDescriptor{Dimension: gpu.ViewDimensionCube}},
		{"depth aspect of color", gpu.TextureViewDescriptor{Aspect: gpu.AspectDepthOnly}},
		{"read-only color", gpu.TextureViewDescriptor{ReadOnly: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := color.CreateView(tt.desc); !gpu.IsConfigError(err) {
				t.Errorf("CreateView(%+v) error = %v, want a config error", tt.desc, err)
			}
		})
	}
}

func TestWriteTextureDecodesFormats(t *testing.T) {
	tests := []struct {
		name   string
		format gpu.Format
		data   []byte
		want   [4]float32
	}{
		{"rgba8", gpu.FormatRGBA8Unorm, []byte{255, 0, 51, 255}, [4]float32{1, 0, 0.2, 1}},
		{"bgra8", gpu.FormatBGRA8Unorm, []byte{51, 0, 255, 255}, [4]float32{1, 0, 0.2, 1}},
		{"srgb black and white", gpu.FormatRGBA8UnormSrgb, []byte{255, 0, 255, 0}, [4]float32{1, 0, 1, 0}},
		{"r32", gpu.FormatR32Float, binary.LittleEndian.AppendUint32(nil, math.Float32bits(2.5)), [4]float32{2.5, 0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t)
			tex, err := d.CreateTexture(gpu.TextureDescriptor{Width: 1, Height: 1, Format: tt.format})
			if err != nil {
				t.Fatalf("CreateTexture: %v", err)
			}
			defer tex.Release()
			if err := d.WriteTexture(tex, 0, tt.data); err != nil {
				t.Fatalf("WriteTexture: %v", err)
			}
			texels, err := d.ReadTexels(tex, 0, 0)
			if err != nil {
				t.Fatalf("ReadTexels: %v", err)
			}
			for i := range 4 {
				if math.Abs(float64(texels[0][i]-tt.want[i])) > 1e-6 {
					t.Errorf("texel = %v, want %v", texels[0], tt.want)
					break
				}
			}
		})
	}
}

func TestWriteTextureRejectsWrongSize(t *testing.T) {
	d := newTestDevice(t)
	tex, err := d.CreateTexture(gpu.TextureDescriptor{Width: 2, Height: 2, Format: gpu.FormatRGBA8Unorm})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer tex.Release()
	if err := d.WriteTexture(tex, 0, make([]byte, 12)); !gpu.IsConfigError(err) {
		t.Errorf("WriteTexture error = %v, want a config error", err)
	}
	if err := d.WriteTexture(tex, 1, make([]byte, 16)); !gpu.IsConfigError(err) {
		t.Errorf("WriteTexture to missing layer error = %v, want a config error", err)
	}
}

func TestDeviceLossIsSticky(t *testing.T) {
	d := newTestDevice(t)
	buf, err := d.CreateBuffer(gpu.BufferDescriptor{Size: 16})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer buf.Release()

	d.Lose("test")
	d.Lose("second")
	if !gpu.IsDeviceLost(d.Err()) {
		t.Fatalf("Err() = %v, want device lost", d.Err())
	}
	if _, err := d.CreateBuffer(gpu.BufferDescriptor{Size: 16}); !gpu.IsDeviceLost(err) {
		t.Errorf("CreateBuffer error = %v, want device lost", err)
	}
	if err := d.WriteBuffer(buf, 0, []byte{1}); !gpu.IsDeviceLost(err) {
		t.Errorf("WriteBuffer error = %v, want device lost", err)
	}
	if _, err := d.CreateCommandEncoder("lost"); !gpu.IsDeviceLost(err) {
		t.Errorf("CreateCommandEncoder error = %v, want device lost", err)
	}
}

func TestRenderPassValidation(t *testing.T) {
	d := newTestDevice(t)
	_, small := colorTarget(t, d, 4, 4, 1)
	_, large := colorTarget(t, d, 8, 8, 1)
	_, ms := colorTarget(t, d, 4, 4, 4)

	tests := []struct {
		name string
		desc gpu.RenderPassDescriptor
	}{
		{"no attachments", gpu.RenderPassDescriptor{}},
		{"size mismatch", gpu.RenderPassDescriptor{ColorAttachments: []gpu.RenderPassColorAttachment{{View: small}, {View: large}}}},
		{"sample mismatch", gpu.RenderPassDescriptor{ColorAttachments: []gpu.RenderPassColorAttachment{{View: small}, {View: ms}}}},
		{"color as depth", gpu.RenderPassDescriptor{DepthStencilAttachment: &gpu.RenderPassDepthStencilAttachment{View: small}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := d.CreateCommandEncoder("test")
			if err != nil {
				t.Fatalf("CreateCommandEncoder: %v", err)
			}
			defer enc.Release()
			if _, err := enc.BeginRenderPass(tt.desc); !gpu.IsConfigError(err) {
				t.Errorf("BeginRenderPass error = %v, want a config error", err)
			}
		})
	}
}

func TestSubmitRejectsOpenPass(t *testing.T) {
	d := newTestDevice(t)
	_, view := colorTarget(t, d, 2, 2, 1)
	enc, err := d.CreateCommandEncoder("test")
	if err != nil {
		t.Fatalf("CreateCommandEncoder: %v", err)
	}
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{ColorAttachments: []gpu.RenderPassColorAttachment{{View: view}}})
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	if _, err := enc.BeginComputePass("second"); !errors.Is(err, errPassOpen) {
		t.Errorf("BeginComputePass with open pass error = %v, want errPassOpen", err)
	}
	if err := enc.Submit(); !errors.Is(err, errPassOpen) {
		t.Errorf("Submit with open pass error = %v, want errPassOpen", err)
	}
	if err := pass.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := enc.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := enc.Submit(); !errors.Is(err, errEncoderClosed) {
		t.Errorf("second Submit error = %v, want errEncoderClosed", err)
	}
}

func TestDrawWithoutPipelineFailsOnEnd(t *testing.T) {
	d := newTestDevice(t)
	_, view := colorTarget(t, d, 2, 2, 1)
	enc, err := d.CreateCommandEncoder("test")
	if err != nil {
		t.Fatalf("CreateCommandEncoder: %v", err)
	}
	defer enc.Release()
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{ColorAttachments: []gpu.RenderPassColorAttachment{{View: view}}})
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	pass.Draw(3, 1)
	if err := pass.End(); !gpu.IsConfigError(err) {
		t.Errorf("End error = %v, want a config error", err)
	}
}

func TestClearColorAttachment(t *testing.T) {
	d := newTestDevice(t)
	tex, view := colorTarget(t, d, 3, 2, 4)
	enc, err := d.CreateCommandEncoder("clear")
	if err != nil {
		t.Fatalf("CreateCommandEncoder: %v", err)
	}
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		ColorAttachments: []gpu.RenderPassColorAttachment{{View: view, LoadOp: gpu.LoadOpClear, ClearValue: gpu.Color{R: 0.25, G: 0.5, B: 1, A: 1}}},
	})
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	if err := pass.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := enc.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	for s := range 4 {
		texels, err := d.ReadTexels(tex, 0, s)
		if err != nil {
			t.Fatalf("ReadTexels: %v", err)
		}
		for i, c := range texels {
			if c != [4]float32{0.25, 0.5, 1, 1} {
				t.Fatalf("sample %d texel %d = %v, want the clear color", s, i, c)
			}
		}
	}
}

func TestCreatePipelineErrors(t *testing.T) {
	d := newTestDevice(t, WithoutCompute())

	desc := colorPipelineDesc(1)
	desc.Vertex.EntryPoint = "vs_missing"
	if _, err := d.CreateRenderPipeline(desc); !errors.Is(err, gpu.ErrUnsupported) {
		t.Errorf("CreateRenderPipeline with unknown kernel error = %v, want ErrUnsupported", err)
	}
	if _, err := d.CreateRenderPipeline(colorPipelineDesc(16)); !errors.Is(err, gpu.ErrUnsupported) {
		t.Errorf("CreateRenderPipeline with 16 samples error = %v, want ErrUnsupported", err)
	}
	_, err := d.CreateComputePipeline(gpu.ComputePipelineDescriptor{
		Compute:       gpu.ProgrammableStage{Program: testProgram, EntryPoint: "cs_ids"},
		WorkgroupSize: [3]uint32{1, 1, 1},
	})
	if !errors.Is(err, gpu.ErrUnsupported) {
		t.Errorf("CreateComputePipeline without compute error = %v, want ErrUnsupported", err)
	}
	enc, err := d.CreateCommandEncoder("test")
	if err != nil {
		t.Fatalf("CreateCommandEncoder: %v", err)
	}
	defer enc.Release()
	if _, err := enc.BeginComputePass("test"); !errors.Is(err, gpu.ErrUnsupported) {
		t.Errorf("BeginComputePass without compute error = %v, want ErrUnsupported", err)
	}
}

func computeIDsPipeline(t *testing.T, d *Device, workgroup [3]uint32) gpu.ComputePipeline {
	t.Helper()
	p, err := d.CreateComputePipeline(gpu.ComputePipelineDescriptor{
		Label:   "ids",
		Compute: gpu.ProgrammableStage{Program: testProgram, EntryPoint: "cs_ids"},
		BindGroupLayouts: []gpu.BindGroupLayout{{Entries: []gpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gpu.ShaderStageCompute,
			Type:       gpu.BindingTypeStorageBuffer,
			Role:       string(testOutputRole),
		}}}},
		WorkgroupSize: workgroup,
	})
	if err != nil {
		t.Fatalf("CreateComputePipeline: %v", err)
	}
	return p
}

func TestDispatchRunsEveryWorkgroup(t *testing.T) {
	d := newTestDevice(t)
	p := computeIDsPipeline(t, d, [3]uint32{16, 16, 1})
	out, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "ids", Size: 6 * 4, Usage: gpu.BufferUsageStorage})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	bg, err := d.CreateBindGroup(gpu.BindGroupDescriptor{
		Pipeline: p,
		Group:    0,
		Entries:  []gpu.BindGroupEntry{{Binding: 0, Buffer: out}},
	})
	if err != nil {
		t.Fatalf("CreateBindGroup: %v", err)
	}

	enc, err := d.CreateCommandEncoder("dispatch")
	if err != nil {
		t.Fatalf("CreateCommandEncoder: %v", err)
	}
	pass, err := enc.BeginComputePass("ids")
	if err != nil {
		t.Fatalf("BeginComputePass: %v", err)
	}
	pass.SetPipeline(p)
	pass.SetBindGroup(0, bg)
	pass.Dispatch(3, 2, 1)
	if err := pass.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := enc.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	data, err := d.ReadBuffer(out)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	for i := range 6 {
		if got := binary.LittleEndian.Uint32(data[i*4:]); got != uint32(i+1) {
			t.Errorf("workgroup %d wrote %d, want %d", i, got, i+1)
		}
	}
}

func TestDispatchRejectsLargeWorkgroups(t *testing.T) {
	d := newTestDevice(t)
	_, err := d.CreateComputePipeline(gpu.ComputePipelineDescriptor{
		Compute:       gpu.ProgrammableStage{Program: testProgram, EntryPoint: "cs_ids"},
		WorkgroupSize: [3]uint32{17, 16, 1},
	})
	if !errors.Is(err, gpu.ErrUnsupported) {
		t.Errorf("CreateComputePipeline with 272 invocations error = %v, want ErrUnsupported", err)
	}
}

func TestBindGroupValidation(t *testing.T) {
	d := newTestDevice(t)
	p := computeIDsPipeline(t, d, [3]uint32{1, 1, 1})
	buf, err := d.CreateBuffer(gpu.BufferDescriptor{Size: 16})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	smp, err := d.CreateSampler(gpu.SamplerDescriptor{})
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}

	tests := []struct {
		name    string
		group   int
		entries []gpu.BindGroupEntry
	}{
		{"missing group", 1, []gpu.BindGroupEntry{{Binding: 0, Buffer: buf}}},
		{"missing binding", 0, nil},
		{"unknown binding", 0, []gpu.BindGroupEntry{{Binding: 0, Buffer: buf}, {Binding: 1, Buffer: buf}}},
		{"sampler for buffer", 0, []gpu.BindGroupEntry{{Binding: 0, Sampler: smp}}},
		{"range past end", 0, []gpu.BindGroupEntry{{Binding: 0, Buffer: buf, Offset: 8, Size: 16}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateBindGroup(gpu.BindGroupDescriptor{Pipeline: p, Group: tt.group, Entries: tt.entries})
			if !gpu.IsConfigError(err) {
				t.Errorf("CreateBindGroup error = %v, want a config error", err)
			}
		})
	}

	buf.Release()
	if _, err := d.CreateBindGroup(gpu.BindGroupDescriptor{Pipeline: p, Entries: []gpu.BindGroupEntry{{Binding: 0, Buffer: buf}}}); !errors.Is(err, gpu.ErrReleased) {
		t.Errorf("CreateBindGroup with released buffer error = %v, want ErrReleased", err)
	}
}

func TestDepthFormatsKeepFloatPrecision(t *testing.T) {
	proj := make([]float32, 16)
	common.Perspective(proj, math.Pi/4, 1, 300, 0.05)

	for _, format := range []gpu.Format{gpu.FormatDepth32Float, gpu.FormatDepth32FloatStencil8} {
		for _, dist := range []float32{0.5, 50, 150, 250} {
			depth := -proj[10] + proj[14]/dist
			stored := quantize(format, [4]float32{depth})[0]
			got := shading.LinearDepth(stored, proj)
			if rel := math.Abs(float64(got-dist)) / float64(dist); rel > 1e-4 {
				t.Errorf("%s at %v: reconstructed %v (relative error %g)", format, dist, got, rel)
			}
		}
	}
}
