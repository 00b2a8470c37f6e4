package wgpu_device

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestTextureFormatRoundTrip(t *testing.T) {
	for f := range textureFormats {
		native, ok := textureFormat(f)
		if !ok {
			t.Fatalf("%s has no native format", f)
		}
		back, ok := formatFromWGPU(native)
		if !ok || back != f {
			t.Errorf("%s maps back to %s", f, back)
		}
	}
	if _, ok := textureFormat(gpu.FormatUndefined); ok {
		t.Error("undefined format should not map")
	}
}

func TestTextureUsage(t *testing.T) {
	tests := []struct {
		name   string
		flags  gpu.BindFlag
		format gpu.Format
		want   wgpu.TextureUsage
	}{
		{
			name:   "gbuffer target",
			flags:  gpu.BindRenderTarget | gpu.BindShaderResource,
			format: gpu.FormatRGBA16Float,
			want:   wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		},
		{
			name:   "depth is always attachable",
			flags:  gpu.BindShaderResource,
			format: gpu.FormatDepth32FloatStencil8,
			want:   wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		},
		{
			name:   "storage",
			flags:  gpu.BindUnorderedAccess | gpu.BindCopySrc,
			format: gpu.FormatRGBA32Float,
			want:   wgpu.TextureUsageCopyDst | wgpu.TextureUsageStorageBinding | wgpu.TextureUsageCopySrc,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textureUsage(tt.flags, tt.format); got != tt.want {
				t.Errorf("usage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBufferUsageAlwaysWritable(t *testing.T) {
	got := bufferUsage(gpu.BufferUsageStorage | gpu.BufferUsageCopySrc)
	want := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	if got != want {
		t.Errorf("usage = %v, want %v", got, want)
	}
}

func TestLayoutEntry(t *testing.T) {
	lit := layoutEntry(gpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gpu.ShaderStageCompute,
		Type:       gpu.BindingTypeStorageBuffer,
	})
	if lit.Buffer.Type != wgpu.BufferBindingTypeStorage || lit.Visibility != wgpu.ShaderStageCompute {
		t.Errorf("lit buffer entry = %+v", lit)
	}

	normals := layoutEntry(gpu.BindGroupLayoutEntry{
		Binding:       1,
		Visibility:    gpu.ShaderStageFragment | gpu.ShaderStageCompute,
		Type:          gpu.BindingTypeTexture,
		ViewDimension: gpu.ViewDimension2D,
		Multisampled:  true,
	})
	if normals.Texture.SampleType != wgpu.TextureSampleTypeUnfilterableFloat {
		t.Errorf("multisampled float sample type = %v, want unfilterable", normals.Texture.SampleType)
	}
	if !normals.Texture.Multisampled || normals.Visibility != wgpu.ShaderStageFragment|wgpu.ShaderStageCompute {
		t.Errorf("normals entry = %+v", normals)
	}

	depth := layoutEntry(gpu.BindGroupLayoutEntry{
		Type:       gpu.BindingTypeTexture,
		SampleType: gpu.TextureSampleTypeDepth,
	})
	if depth.Texture.SampleType != wgpu.TextureSampleTypeDepth || depth.Texture.ViewDimension != wgpu.TextureViewDimension2D {
		t.Errorf("depth entry = %+v", depth)
	}
}

func TestViewDimensionFromLayers(t *testing.T) {
	if got := viewDimension(gpu.ViewDimensionUndefined, 4); got != wgpu.TextureViewDimension2DArray {
		t.Errorf("4 layers = %v, want 2d-array", got)
	}
	if got := viewDimension(gpu.ViewDimensionUndefined, 1); got != wgpu.TextureViewDimension2D {
		t.Errorf("1 layer = %v, want 2d", got)
	}
	if got := viewDimension(gpu.ViewDimensionCube, 6); got != wgpu.TextureViewDimensionCube {
		t.Errorf("cube = %v", got)
	}
}

func TestPickSurfaceFormat(t *testing.T) {
	native, format := pickSurfaceFormat([]wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb})
	if format != gpu.FormatBGRA8UnormSrgb || native != wgpu.TextureFormatBGRA8UnormSrgb {
		t.Errorf("picked %s, want bgra8unorm-srgb", format)
	}
	_, format = pickSurfaceFormat([]wgpu.TextureFormat{wgpu.TextureFormatRGBA16Float})
	if format != gpu.FormatRGBA16Float {
		t.Errorf("fallback picked %s, want rgba16float", format)
	}
}

func TestDepthStencilAttachmentReadOnly(t *testing.T) {
	tex := &texture{desc: gpu.TextureDescriptor{Format: gpu.FormatDepth32FloatStencil8}}
	ro := depthStencilAttachment(&textureView{texture: tex, desc: gpu.TextureViewDescriptor{ReadOnly: true}},
		&gpu.RenderPassDepthStencilAttachment{DepthLoadOp: gpu.LoadOpClear})
	if !ro.DepthReadOnly || !ro.StencilReadOnly || ro.DepthLoadOp != wgpu.LoadOpUndefined {
		t.Errorf("read-only attachment = %+v", ro)
	}

	depthOnly := &texture{desc: gpu.TextureDescriptor{Format: gpu.FormatDepth32Float}}
	rw := depthStencilAttachment(&textureView{texture: depthOnly},
		&gpu.RenderPassDepthStencilAttachment{DepthLoadOp: gpu.LoadOpClear, StencilLoadOp: gpu.LoadOpClear})
	if rw.DepthLoadOp != wgpu.LoadOpClear || rw.StencilLoadOp != wgpu.LoadOpUndefined {
		t.Errorf("depth-only attachment = %+v", rw)
	}
}
