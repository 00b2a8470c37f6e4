package wgpu_device

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

var textureFormats = map[gpu.Format]wgpu.TextureFormat{
	gpu.FormatRGBA8Unorm:           wgpu.TextureFormatRGBA8Unorm,
	gpu.FormatRGBA8UnormSrgb:       wgpu.TextureFormatRGBA8UnormSrgb,
	gpu.FormatBGRA8Unorm:           wgpu.TextureFormatBGRA8Unorm,
	gpu.FormatBGRA8UnormSrgb:       wgpu.TextureFormatBGRA8UnormSrgb,
	gpu.FormatRGBA16Float:          wgpu.TextureFormatRGBA16Float,
	gpu.FormatRG16Float:            wgpu.TextureFormatRG16Float,
	gpu.FormatR32Float:             wgpu.TextureFormatR32Float,
	gpu.FormatRGBA32Float:          wgpu.TextureFormatRGBA32Float,
	gpu.FormatDepth32Float:         wgpu.TextureFormatDepth32Float,
	gpu.FormatDepth32FloatStencil8: wgpu.TextureFormatDepth32FloatStencil8,
}

func textureFormat(f gpu.Format) (wgpu.TextureFormat, bool) {
	t, ok := textureFormats[f]
	return t, ok
}

// formatFromWGPU maps a surface format back to the device-neutral format.
func formatFromWGPU(t wgpu.TextureFormat) (gpu.Format, bool) {
	for f, w := range textureFormats {
		if w == t {
			return f, true
		}
	}
	return gpu.FormatUndefined, false
}

func textureUsage(flags gpu.BindFlag, format gpu.Format) wgpu.TextureUsage {
	usage := wgpu.TextureUsageCopyDst
	if flags.Has(gpu.BindRenderTarget) || flags.Has(gpu.BindDepthStencil) || format.IsDepth() {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	if flags.Has(gpu.BindShaderResource) {
		usage |= wgpu.TextureUsageTextureBinding
	}
	if flags.Has(gpu.BindUnorderedAccess) {
		usage |= wgpu.TextureUsageStorageBinding
	}
	if flags.Has(gpu.BindCopySrc) {
		usage |= wgpu.TextureUsageCopySrc
	}
	return usage
}

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var usage wgpu.BufferUsage
	if u.Has(gpu.BufferUsageVertex) {
		usage |= wgpu.BufferUsageVertex
	}
	if u.Has(gpu.BufferUsageIndex) {
		usage |= wgpu.BufferUsageIndex
	}
	if u.Has(gpu.BufferUsageUniform) {
		usage |= wgpu.BufferUsageUniform
	}
	if u.Has(gpu.BufferUsageStorage) {
		usage |= wgpu.BufferUsageStorage
	}
	if u.Has(gpu.BufferUsageCopySrc) {
		usage |= wgpu.BufferUsageCopySrc
	}
	// Every buffer accepts queue writes and ClearBuffer.
	return usage | wgpu.BufferUsageCopyDst
}

func addressMode(m gpu.AddressMode) wgpu.AddressMode {
	if m == gpu.AddressModeRepeat {
		return wgpu.AddressModeRepeat
	}
	return wgpu.AddressModeClampToEdge
}

func filterMode(m gpu.FilterMode) wgpu.FilterMode {
	if m == gpu.FilterModeLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

func viewDimension(v gpu.ViewDimension, layers int) wgpu.TextureViewDimension {
	switch v {
	case gpu.ViewDimension2D:
		return wgpu.TextureViewDimension2D
	case gpu.ViewDimension2DArray:
		return wgpu.TextureViewDimension2DArray
	case gpu.ViewDimensionCube:
		return wgpu.TextureViewDimensionCube
	}
	if layers > 1 {
		return wgpu.TextureViewDimension2DArray
	}
	return wgpu.TextureViewDimension2D
}

func textureAspect(a gpu.Aspect) wgpu.TextureAspect {
	switch a {
	case gpu.AspectDepthOnly:
		return wgpu.TextureAspectDepthOnly
	case gpu.AspectStencilOnly:
		return wgpu.TextureAspectStencilOnly
	default:
		return wgpu.TextureAspectAll
	}
}

func compareFunction(c gpu.CompareFunction) wgpu.CompareFunction {
	switch c {
	case gpu.CompareFunctionNever:
		return wgpu.CompareFunctionNever
	case gpu.CompareFunctionLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareFunctionLessEqual:
		return wgpu.CompareFunctionLessEqual
	case gpu.CompareFunctionEqual:
		return wgpu.CompareFunctionEqual
	case gpu.CompareFunctionGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	case gpu.CompareFunctionGreater:
		return wgpu.CompareFunctionGreater
	case gpu.CompareFunctionNotEqual:
		return wgpu.CompareFunctionNotEqual
	default:
		return wgpu.CompareFunctionAlways
	}
}

func stencilOperation(op gpu.StencilOperation) wgpu.StencilOperation {
	switch op {
	case gpu.StencilOperationZero:
		return wgpu.StencilOperationZero
	case gpu.StencilOperationReplace:
		return wgpu.StencilOperationReplace
	default:
		return wgpu.StencilOperationKeep
	}
}

func cullMode(c gpu.CullMode) wgpu.CullMode {
	switch c {
	case gpu.CullModeFront:
		return wgpu.CullModeFront
	case gpu.CullModeBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func frontFace(f gpu.FrontFace) wgpu.FrontFace {
	if f == gpu.FrontFaceCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func blendFactor(f gpu.BlendFactor) wgpu.BlendFactor {
	switch f {
	case gpu.BlendFactorOne:
		return wgpu.BlendFactorOne
	case gpu.BlendFactorSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	case gpu.BlendFactorOneMinusSrcAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	default:
		return wgpu.BlendFactorZero
	}
}

func blendState(b *gpu.BlendState) *wgpu.BlendState {
	if b == nil {
		return nil
	}
	component := func(c gpu.BlendComponent) wgpu.BlendComponent {
		return wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: blendFactor(c.SrcFactor),
			DstFactor: blendFactor(c.DstFactor),
		}
	}
	return &wgpu.BlendState{
		Color: component(b.Color),
		Alpha: component(b.Alpha),
	}
}

var vertexFormats = map[gpu.VertexFormat]wgpu.VertexFormat{
	gpu.VertexFormatFloat32:   wgpu.VertexFormatFloat32,
	gpu.VertexFormatFloat32x2: wgpu.VertexFormatFloat32x2,
	gpu.VertexFormatFloat32x3: wgpu.VertexFormatFloat32x3,
	gpu.VertexFormatFloat32x4: wgpu.VertexFormatFloat32x4,
	gpu.VertexFormatUint32:    wgpu.VertexFormatUint32,
	gpu.VertexFormatUint32x2:  wgpu.VertexFormatUint32x2,
	gpu.VertexFormatUint32x3:  wgpu.VertexFormatUint32x3,
	gpu.VertexFormatUint32x4:  wgpu.VertexFormatUint32x4,
	gpu.VertexFormatSint32:    wgpu.VertexFormatSint32,
	gpu.VertexFormatSint32x2:  wgpu.VertexFormatSint32x2,
	gpu.VertexFormatSint32x3:  wgpu.VertexFormatSint32x3,
	gpu.VertexFormatSint32x4:  wgpu.VertexFormatSint32x4,
}

func vertexBufferLayouts(layouts []gpu.VertexBufferLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for _, l := range layouts {
		attrs := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
		for _, a := range l.Attributes {
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         vertexFormats[a.Format],
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			})
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: l.ArrayStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  attrs,
		})
	}
	return out
}

func shaderStage(s gpu.ShaderStage) wgpu.ShaderStage {
	stage := wgpu.ShaderStageNone
	if s&gpu.ShaderStageVertex != 0 {
		stage |= wgpu.ShaderStageVertex
	}
	if s&gpu.ShaderStageFragment != 0 {
		stage |= wgpu.ShaderStageFragment
	}
	if s&gpu.ShaderStageCompute != 0 {
		stage |= wgpu.ShaderStageCompute
	}
	return stage
}

func sampleType(e gpu.BindGroupLayoutEntry) wgpu.TextureSampleType {
	switch e.SampleType {
	case gpu.TextureSampleTypeDepth:
		return wgpu.TextureSampleTypeDepth
	case gpu.TextureSampleTypeSint:
		return wgpu.TextureSampleTypeSint
	case gpu.TextureSampleTypeUint:
		return wgpu.TextureSampleTypeUint
	case gpu.TextureSampleTypeUnfilterableFloat:
		return wgpu.TextureSampleTypeUnfilterableFloat
	}
	// Multisampled float bindings cannot be filtered.
	if e.Multisampled {
		return wgpu.TextureSampleTypeUnfilterableFloat
	}
	return wgpu.TextureSampleTypeFloat
}

// layoutEntry translates one device-neutral binding slot into its WebGPU layout entry.
func layoutEntry(e gpu.BindGroupLayoutEntry) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: shaderStage(e.Visibility),
	}
	switch e.Type {
	case gpu.BindingTypeUniformBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = e.MinBindingSize
	case gpu.BindingTypeStorageBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		entry.Buffer.MinBindingSize = e.MinBindingSize
	case gpu.BindingTypeReadOnlyStorageBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		entry.Buffer.MinBindingSize = e.MinBindingSize
	case gpu.BindingTypeSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case gpu.BindingTypeTexture:
		entry.Texture.SampleType = sampleType(e)
		entry.Texture.ViewDimension = viewDimension(e.ViewDimension, 1)
		entry.Texture.Multisampled = e.Multisampled
	case gpu.BindingTypeStorageTexture:
		format, _ := textureFormat(e.StorageFormat)
		entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
		entry.StorageTexture.Format = format
		entry.StorageTexture.ViewDimension = viewDimension(e.ViewDimension, 1)
	}
	return entry
}

func loadOp(op gpu.LoadOp) wgpu.LoadOp {
	if op == gpu.LoadOpLoad {
		return wgpu.LoadOpLoad
	}
	return wgpu.LoadOpClear
}
