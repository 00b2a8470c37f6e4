// Package gpu defines the backend-neutral device contract used by the renderer: pixel formats,
// bind flags, resource and pipeline descriptors, the Device/CommandEncoder/pass interfaces and
// the owning resource wrappers (Texture2D, Depth2D, StructuredBuffer, ConstantBuffer).
//
// Two devices implement the contract: the WebGPU device in wgpu_device and the CPU device in
// soft_device.
package gpu

// Format identifies a texel format.
type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8UnormSrgb
	FormatBGRA8Unorm
	FormatBGRA8UnormSrgb
	FormatRGBA16Float
	FormatRG16Float
	FormatR32Float
	FormatRGBA32Float
	FormatDepth32Float
	FormatDepth32FloatStencil8
)

var formatNames = map[Format]string{
	FormatUndefined:            "undefined",
	FormatRGBA8Unorm:           "rgba8unorm",
	FormatRGBA8UnormSrgb:       "rgba8unorm-srgb",
	FormatBGRA8Unorm:           "bgra8unorm",
	FormatBGRA8UnormSrgb:       "bgra8unorm-srgb",
	FormatRGBA16Float:          "rgba16float",
	FormatRG16Float:            "rg16float",
	FormatR32Float:             "r32float",
	FormatRGBA32Float:          "rgba32float",
	FormatDepth32Float:         "depth32float",
	FormatDepth32FloatStencil8: "depth32float-stencil8",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "unknown"
}

// IsDepth reports whether the format carries a depth aspect.
func (f Format) IsDepth() bool {
	return f == FormatDepth32Float || f == FormatDepth32FloatStencil8
}

// HasStencil reports whether the format carries a stencil aspect.
func (f Format) HasStencil() bool {
	return f == FormatDepth32FloatStencil8
}

// IsSRGB reports whether sampling the format decodes sRGB to linear.
func (f Format) IsSRGB() bool {
	return f == FormatRGBA8UnormSrgb || f == FormatBGRA8UnormSrgb
}

// Components returns the number of color channels, or 1 for depth formats.
func (f Format) Components() int {
	switch f {
	case FormatR32Float, FormatDepth32Float, FormatDepth32FloatStencil8:
		return 1
	case FormatRG16Float:
		return 2
	case FormatUndefined:
		return 0
	default:
		return 4
	}
}

// TexelSize returns the upload size of one texel in bytes, or 0 if the format cannot be uploaded.
func (f Format) TexelSize() int {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8UnormSrgb, FormatBGRA8Unorm, FormatBGRA8UnormSrgb,
		FormatRG16Float, FormatR32Float, FormatDepth32Float:
		return 4
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// BindFlag is a bit mask of the ways a texture may be bound.
type BindFlag uint32

const (
	// BindRenderTarget allows the texture as a color attachment.
	BindRenderTarget BindFlag = 1 << iota

	// BindShaderResource allows the texture to be read by shaders.
	BindShaderResource

	// BindUnorderedAccess allows random-access writes from compute shaders.
	BindUnorderedAccess

	// BindDepthStencil allows the texture as a depth-stencil attachment.
	BindDepthStencil

	// BindCopySrc allows the texture as a copy source.
	BindCopySrc

	// BindCopyDst allows uploads into the texture.
	BindCopyDst
)

// Has reports whether all bits of f are set.
func (b BindFlag) Has(f BindFlag) bool {
	return b&f == f
}

// BufferUsage is a bit mask of the ways a buffer may be used.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// Has reports whether all bits of u are set.
func (b BufferUsage) Has(u BufferUsage) bool {
	return b&u == u
}

// ViewDimension is the dimensionality a texture view exposes to shaders.
type ViewDimension int

const (
	// ViewDimensionUndefined derives the dimension from the texture.
	ViewDimensionUndefined ViewDimension = iota
	ViewDimension2D
	ViewDimension2DArray
	ViewDimensionCube
)

// Aspect selects the depth or stencil part of a depth-stencil texture.
type Aspect int

const (
	AspectAll Aspect = iota
	AspectDepthOnly
	AspectStencilOnly
)

// AddressMode controls sampling outside [0, 1].
type AddressMode int

const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeRepeat
)

// FilterMode controls texel filtering.
type FilterMode int

const (
	FilterModeNearest FilterMode = iota
	FilterModeLinear
)

// CompareFunction is used for depth and stencil tests.
type CompareFunction int

const (
	CompareFunctionUndefined CompareFunction = iota
	CompareFunctionNever
	CompareFunctionLess
	CompareFunctionLessEqual
	CompareFunctionEqual
	CompareFunctionGreaterEqual
	CompareFunctionGreater
	CompareFunctionNotEqual
	CompareFunctionAlways
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// FrontFace selects the winding of front-facing triangles.
type FrontFace int

const (
	FrontFaceCCW FrontFace = iota
	FrontFaceCW
)

// BlendFactor weights a blend operand.
type BlendFactor int

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
)

// BlendOperation combines weighted blend operands.
type BlendOperation int

const (
	BlendOperationAdd BlendOperation = iota
)

// BlendComponent describes how one set of channels is blended.
type BlendComponent struct {
	SrcFactor BlendFactor
	DstFactor BlendFactor
	Operation BlendOperation
}

// BlendState describes color and alpha blending for a color target.
type BlendState struct {
	Color BlendComponent
	Alpha BlendComponent
}

// BlendAdditive accumulates every fragment onto the target: dst = src + dst.
var BlendAdditive = BlendState{
	Color: BlendComponent{SrcFactor: BlendFactorOne, DstFactor: BlendFactorOne, Operation: BlendOperationAdd},
	Alpha: BlendComponent{SrcFactor: BlendFactorOne, DstFactor: BlendFactorOne, Operation: BlendOperationAdd},
}

// StencilOperation updates the stencil value after a test.
type StencilOperation int

const (
	StencilOperationKeep StencilOperation = iota
	StencilOperationZero
	StencilOperationReplace
)

// StencilFaceState is the stencil test applied to both faces.
type StencilFaceState struct {
	Compare     CompareFunction
	FailOp      StencilOperation
	DepthFailOp StencilOperation
	PassOp      StencilOperation
}

// DepthStencilState describes the depth and stencil tests of a render pipeline.
type DepthStencilState struct {
	Format            Format
	DepthWriteEnabled bool
	DepthCompare      CompareFunction
	Stencil           StencilFaceState
	StencilReadMask   uint32
	StencilWriteMask  uint32
}

// ColorTargetState describes one color attachment of a render pipeline.
type ColorTargetState struct {
	Format Format
	Blend  *BlendState
}

// PrimitiveState describes rasterization. Topology is always a triangle list.
type PrimitiveState struct {
	CullMode  CullMode
	FrontFace FrontFace
}

// VertexFormat is the type of one vertex attribute.
type VertexFormat int

const (
	VertexFormatFloat32 VertexFormat = iota
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
	VertexFormatUint32x2
	VertexFormatUint32x3
	VertexFormatUint32x4
	VertexFormatSint32
	VertexFormatSint32x2
	VertexFormatSint32x3
	VertexFormatSint32x4
)

// VertexAttribute places one attribute inside a vertex.
type VertexAttribute struct {
	Format         VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

// VertexBufferLayout describes per-vertex data in one vertex buffer slot.
type VertexBufferLayout struct {
	ArrayStride uint64
	Attributes  []VertexAttribute
}

// ShaderStage is a bit mask of pipeline stages.
type ShaderStage uint32

const (
	ShaderStageNone   ShaderStage = 0
	ShaderStageVertex ShaderStage = 1 << (iota - 1)
	ShaderStageFragment
	ShaderStageCompute
)

// BindingType classifies one entry of a bind group layout.
type BindingType int

const (
	BindingTypeUniformBuffer BindingType = iota
	BindingTypeStorageBuffer
	BindingTypeReadOnlyStorageBuffer
	BindingTypeTexture
	BindingTypeSampler
	BindingTypeStorageTexture
)

// TextureSampleType is the component type a texture binding returns.
type TextureSampleType int

const (
	TextureSampleTypeFloat TextureSampleType = iota
	TextureSampleTypeUnfilterableFloat
	TextureSampleTypeDepth
	TextureSampleTypeSint
	TextureSampleTypeUint
)

// BindGroupLayoutEntry describes one binding slot.
type BindGroupLayoutEntry struct {
	Binding        uint32
	Visibility     ShaderStage
	Type           BindingType
	ViewDimension  ViewDimension
	SampleType     TextureSampleType
	Multisampled   bool
	StorageFormat  Format
	MinBindingSize uint64

	// Role names what the binding carries, e.g. "frame_constants" or "gbuffer_albedo".
	// Backends and bind group providers match resources to slots by role.
	Role string
}

// BindGroupLayout is the ordered set of binding slots of one group.
type BindGroupLayout struct {
	Entries []BindGroupLayoutEntry
}

// Entry returns the layout entry for binding, if present.
func (l BindGroupLayout) Entry(binding uint32) (BindGroupLayoutEntry, bool) {
	for _, e := range l.Entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return BindGroupLayoutEntry{}, false
}

// EntryForRole returns the layout entry carrying role, if present.
func (l BindGroupLayout) EntryForRole(role string) (BindGroupLayoutEntry, bool) {
	for _, e := range l.Entries {
		if e.Role == role {
			return e, true
		}
	}
	return BindGroupLayoutEntry{}, false
}

// ProgrammableStage names one pipeline stage. Program is the registered program key, Source the
// pre-processed WGSL and Defines the macro set it was compiled with.
type ProgrammableStage struct {
	Program    string
	EntryPoint string
	Source     string
	Defines    map[string]string

	// PerSample requests one fragment invocation per covered sample.
	PerSample bool
}

// RenderPipelineDescriptor describes a render pipeline.
type RenderPipelineDescriptor struct {
	Label            string
	Vertex           ProgrammableStage
	Fragment         *ProgrammableStage
	VertexBuffers    []VertexBufferLayout
	BindGroupLayouts []BindGroupLayout
	Primitive        PrimitiveState
	DepthStencil     *DepthStencilState
	Targets          []ColorTargetState
	SampleCount      int
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label            string
	Compute          ProgrammableStage
	BindGroupLayouts []BindGroupLayout
	WorkgroupSize    [3]uint32
}

// TextureDescriptor describes a texture allocation. ArrayLayers and SampleCount default to 1.
type TextureDescriptor struct {
	Label       string
	Width       int
	Height      int
	ArrayLayers int
	SampleCount int
	Format      Format
	Usage       BindFlag
}

// TextureViewDescriptor selects a sub-range of a texture. LayerCount 0 selects every layer from BaseLayer.
type TextureViewDescriptor struct {
	Label      string
	Dimension  ViewDimension
	BaseLayer  int
	LayerCount int
	Aspect     Aspect

	// ReadOnly marks a depth-stencil view that may be attached while the same texture is sampled.
	ReadOnly bool
}

// BufferDescriptor describes a buffer allocation.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// SamplerDescriptor describes a sampler.
type SamplerDescriptor struct {
	Label       string
	AddressMode AddressMode
	Filter      FilterMode
}

// BindGroupEntry binds one resource. Exactly one of Buffer, TextureView or Sampler is set.
// A zero Size binds the whole buffer from Offset.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	TextureView TextureView
	Sampler     Sampler
}

// BindGroupDescriptor binds resources to group Group of Pipeline's layout.
type BindGroupDescriptor struct {
	Label    string
	Pipeline Pipeline
	Group    int
	Entries  []BindGroupEntry
}

// LoadOp selects what happens to an attachment at the start of a pass.
type LoadOp int

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

// Color is an RGBA clear color.
type Color struct {
	R, G, B, A float64
}

// RenderPassColorAttachment binds a color target to a render pass.
type RenderPassColorAttachment struct {
	View       TextureView
	LoadOp     LoadOp
	ClearValue Color
}

// RenderPassDepthStencilAttachment binds a depth-stencil target to a render pass. When View is a
// read-only view the load ops are ignored and the attachment is not written.
type RenderPassDepthStencilAttachment struct {
	View              TextureView
	DepthLoadOp       LoadOp
	DepthClearValue   float32
	StencilLoadOp     LoadOp
	StencilClearValue uint32
}

// RenderPassDescriptor describes the attachments of a render pass.
type RenderPassDescriptor struct {
	Label                  string
	ColorAttachments       []RenderPassColorAttachment
	DepthStencilAttachment *RenderPassDepthStencilAttachment
}

// Capabilities reports what a device can do.
type Capabilities struct {
	// Backend names the implementation, e.g. "wgpu" or "soft".
	Backend string

	// Compute reports compute pipeline support.
	Compute bool

	// DepthStencil reports that FormatDepth32FloatStencil8 can be allocated and sampled.
	DepthStencil bool

	// SampleCounts lists the supported multisample counts in ascending order.
	SampleCounts []int

	// MaxComputeInvocations is the largest workgroup size in invocations.
	MaxComputeInvocations int
}

// SupportsSampleCount reports whether n is in SampleCounts.
func (c Capabilities) SupportsSampleCount(n int) bool {
	for _, s := range c.SampleCounts {
		if s == n {
			return true
		}
	}
	return false
}
