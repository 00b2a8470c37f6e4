package gpu

// Resource is anything a Device allocates. Release is idempotent; using a resource after
// Release is an error reported as ErrReleased by the device.
type Resource interface {
	// Label returns the debug label the resource was created with.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Release frees the underlying device allocation.
	Release()
}

// Texture is a device image.
type Texture interface {
	Resource

	// Descriptor returns the descriptor the texture was created with, with defaults filled in.
	//
	// Returns:
	//   - TextureDescriptor: the texture descriptor
	Descriptor() TextureDescriptor

	// CreateView creates a view over a sub-range of the texture.
	// Views must be released before the texture that owns them.
	//
	// Parameters:
	//   - desc: the view descriptor
	//
	// Returns:
	//   - TextureView: the new view
	//   - error: an error if the range or aspect is invalid for the texture
	CreateView(desc TextureViewDescriptor) (TextureView, error)
}

// TextureView is a typed window onto a Texture.
type TextureView interface {
	Resource

	// Texture returns the texture the view was created from.
	//
	// Returns:
	//   - Texture: the owning texture
	Texture() Texture

	// Descriptor returns the descriptor the view was created with.
	//
	// Returns:
	//   - TextureViewDescriptor: the view descriptor
	Descriptor() TextureViewDescriptor
}

// Buffer is a linear device allocation.
type Buffer interface {
	Resource

	// Size returns the allocation size in bytes.
	//
	// Returns:
	//   - uint64: the buffer size
	Size() uint64

	// Usage returns the usage mask the buffer was created with.
	//
	// Returns:
	//   - BufferUsage: the usage mask
	Usage() BufferUsage
}

// Sampler is a texture sampling state object.
type Sampler interface {
	Resource
}

// BindGroup is a set of resources bound to one group slot of a pipeline layout.
type BindGroup interface {
	Resource
}

// Pipeline is the part shared by render and compute pipelines.
type Pipeline interface {
	Resource

	// BindGroupLayout returns the layout of bind group slot group.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - BindGroupLayout: the layout
	//   - bool: false if the pipeline has no such group
	BindGroupLayout(group int) (BindGroupLayout, bool)
}

// RenderPipeline is a compiled rasterization state object.
type RenderPipeline interface {
	Pipeline

	// Descriptor returns the descriptor the pipeline was created with.
	//
	// Returns:
	//   - RenderPipelineDescriptor: the pipeline descriptor
	Descriptor() RenderPipelineDescriptor
}

// ComputePipeline is a compiled compute state object.
type ComputePipeline interface {
	Pipeline

	// WorkgroupSize returns the invocation counts of one workgroup.
	//
	// Returns:
	//   - [3]uint32: the workgroup size (x, y, z)
	WorkgroupSize() [3]uint32
}

// Device allocates resources and records work. A Device is used from a single goroutine.
//
// Device loss is sticky: once Err returns a non-nil error wrapping ErrDeviceLost every
// further call fails with the same error and the host must rebuild the device.
type Device interface {
	// Capabilities reports what the device supports.
	//
	// Returns:
	//   - Capabilities: the device capabilities
	Capabilities() Capabilities

	// CreateTexture allocates a texture.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: a *ResourceError wrapping ErrAllocation or ErrUnsupported on failure
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - desc: the buffer descriptor
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: a *ResourceError on failure
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// CreateSampler creates a sampler.
	//
	// Parameters:
	//   - desc: the sampler descriptor
	//
	// Returns:
	//   - Sampler: the new sampler
	//   - error: a *ResourceError on failure
	CreateSampler(desc SamplerDescriptor) (Sampler, error)

	// CreateRenderPipeline compiles a render pipeline.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//
	// Returns:
	//   - RenderPipeline: the new pipeline
	//   - error: an error if a stage cannot be compiled or the state is unsupported
	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)

	// CreateComputePipeline compiles a compute pipeline.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//
	// Returns:
	//   - ComputePipeline: the new pipeline
	//   - error: ErrUnsupported if the device has no compute support
	CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error)

	// CreateBindGroup binds resources to one group slot of a pipeline.
	//
	// Parameters:
	//   - desc: the bind group descriptor
	//
	// Returns:
	//   - BindGroup: the new bind group
	//   - error: an error if an entry does not match the pipeline's layout
	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)

	// WriteBuffer replaces len(data) bytes of buf at offset. The bytes previously held in
	// that range are discarded; callers must not rely on reading them back.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the destination byte offset
	//   - data: the bytes to upload
	//
	// Returns:
	//   - error: an error if the range exceeds the buffer
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// WriteTexture uploads tightly packed texel data into one array layer of tex.
	//
	// Parameters:
	//   - tex: the destination texture (single-sampled)
	//   - layer: the array layer to write
	//   - data: width*height texels in the texture's format
	//
	// Returns:
	//   - error: an error if the data size does not match the layer size
	WriteTexture(tex Texture, layer int, data []byte) error

	// CreateCommandEncoder starts recording a batch of passes.
	//
	// Parameters:
	//   - label: debug label for the encoder
	//
	// Returns:
	//   - CommandEncoder: the new encoder
	//   - error: an error if the device is lost
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Err returns the sticky device error, or nil while the device is healthy.
	//
	// Returns:
	//   - error: an error wrapping ErrDeviceLost, or nil
	Err() error

	// Release destroys the device. Resources created from it must already be released.
	Release()
}

// CommandEncoder records passes that execute in order when Submit is called.
type CommandEncoder interface {
	// BeginRenderPass starts a render pass. Only one pass may be open at a time.
	//
	// Parameters:
	//   - desc: the render pass attachments
	//
	// Returns:
	//   - RenderPass: the open pass
	//   - error: an error if attachments are mismatched in size or sample count
	BeginRenderPass(desc RenderPassDescriptor) (RenderPass, error)

	// BeginComputePass starts a compute pass.
	//
	// Parameters:
	//   - label: debug label for the pass
	//
	// Returns:
	//   - ComputePass: the open pass
	//   - error: ErrUnsupported if the device has no compute support
	BeginComputePass(label string) (ComputePass, error)

	// ClearBuffer zeroes size bytes of buf starting at offset. A size of 0 clears to the end.
	//
	// Parameters:
	//   - buf: the buffer to clear
	//   - offset: the first byte to clear
	//   - size: the number of bytes to clear
	//
	// Returns:
	//   - error: an error if the range exceeds the buffer
	ClearBuffer(buf Buffer, offset, size uint64) error

	// Submit finishes recording and queues the work on the device.
	//
	// Returns:
	//   - error: an error if a pass is still open or the device is lost
	Submit() error

	// Release discards the encoder without submitting.
	Release()
}

// RenderPass records draws against a fixed set of attachments.
type RenderPass interface {
	// SetPipeline selects the pipeline used by following draws.
	//
	// Parameters:
	//   - p: the render pipeline
	SetPipeline(p RenderPipeline)

	// SetBindGroup binds bg at group index group.
	//
	// Parameters:
	//   - group: the bind group index
	//   - bg: the bind group
	SetBindGroup(group int, bg BindGroup)

	// SetVertexBuffer binds buf to vertex buffer slot slot.
	//
	// Parameters:
	//   - slot: the vertex buffer slot
	//   - buf: the vertex buffer
	SetVertexBuffer(slot int, buf Buffer)

	// SetIndexBuffer binds a buffer of uint32 indices.
	//
	// Parameters:
	//   - buf: the index buffer
	SetIndexBuffer(buf Buffer)

	// SetStencilReference sets the reference value for stencil tests and Replace operations.
	//
	// Parameters:
	//   - ref: the stencil reference
	SetStencilReference(ref uint32)

	// Draw issues a non-indexed draw.
	//
	// Parameters:
	//   - vertexCount: vertices per instance
	//   - instanceCount: number of instances
	Draw(vertexCount, instanceCount int)

	// DrawIndexed issues an indexed draw from the bound index buffer.
	//
	// Parameters:
	//   - indexCount: indices per instance
	//   - instanceCount: number of instances
	//   - firstIndex: the first index to read
	DrawIndexed(indexCount, instanceCount, firstIndex int)

	// ClearBindings unbinds every bind group and buffer set on the pass.
	ClearBindings()

	// End closes the pass.
	//
	// Returns:
	//   - error: the first error recorded by the pass, if any
	End() error
}

// ComputePass records dispatches.
type ComputePass interface {
	// SetPipeline selects the pipeline used by following dispatches.
	//
	// Parameters:
	//   - p: the compute pipeline
	SetPipeline(p ComputePipeline)

	// SetBindGroup binds bg at group index group.
	//
	// Parameters:
	//   - group: the bind group index
	//   - bg: the bind group
	SetBindGroup(group int, bg BindGroup)

	// Dispatch launches x*y*z workgroups.
	//
	// Parameters:
	//   - x, y, z: workgroup counts per dimension
	Dispatch(x, y, z int)

	// ClearBindings unbinds every bind group set on the pass.
	ClearBindings()

	// End closes the pass.
	//
	// Returns:
	//   - error: the first error recorded by the pass, if any
	End() error
}
