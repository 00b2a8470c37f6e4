package pipeline

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with a vertex and an optional fragment entry point.
	PipelineTypeRender
)

// pipeline is the implementation of the Pipeline interface.
// It holds the shaders and fixed-function state of a pipeline and, once built, the device object.
type pipeline struct {
	// pipelineType indicates the type of pipeline this is; compute or render
	pipelineType PipelineType
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	// the following shader references are used for pipeline creation and resource binding, the
	// stages matching pipelineType are required to be set before building a pipeline.

	vertexShader, fragmentShader, computeShader shader.Shader

	// renderPipeline is the render pipeline if this is a built render pipeline, nil otherwise
	renderPipeline gpu.RenderPipeline
	// computePipeline is the compute pipeline if this is a built compute pipeline, nil otherwise
	computePipeline gpu.ComputePipeline

	// The following properties configure the pipeline during creation and can be set with the builder options.
	// Compute pipelines keep the defaults but do not use them.

	depthTestEnabled  bool
	depthWriteEnabled bool
	depthCompare      gpu.CompareFunction
	depthFormat       gpu.Format
	stencil           *gpu.StencilFaceState
	stencilReadMask   uint32
	stencilWriteMask  uint32
	blendEnabled      bool
	blendState        *gpu.BlendState
	cullMode          gpu.CullMode
	frontFace         gpu.FrontFace
	colorTargets      []gpu.Format
	sampleCount       int
}

// Pipeline defines the interface for a GPU pipeline, encapsulating either a render pipeline
// (vertex + optional fragment shader) or a compute pipeline (compute shader). It holds all
// configuration state required for pipeline creation including depth, stencil, blend and cull
// settings, and derives the bind group layouts from its shaders.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// Pipeline returns the device pipeline, either a gpu.RenderPipeline or a gpu.ComputePipeline.
	//
	// Returns:
	//   - gpu.Pipeline: the built pipeline, or nil before Build
	Pipeline() gpu.Pipeline

	// RenderPipeline returns the built render pipeline.
	//
	// Returns:
	//   - gpu.RenderPipeline: the render pipeline, or nil for compute pipelines and before Build
	RenderPipeline() gpu.RenderPipeline

	// ComputePipeline returns the built compute pipeline.
	//
	// Returns:
	//   - gpu.ComputePipeline: the compute pipeline, or nil for render pipelines and before Build
	ComputePipeline() gpu.ComputePipeline

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth testing is enabled, false otherwise
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth writing is enabled, false otherwise
	DepthWriteEnabled() bool

	// DepthCompare returns the depth comparison used when depth testing is enabled.
	//
	// Returns:
	//   - gpu.CompareFunction: the depth comparison, GreaterEqual by default for complementary depth
	DepthCompare() gpu.CompareFunction

	// DepthFormat returns the format of the depth attachment the pipeline renders against.
	//
	// Returns:
	//   - gpu.Format: the depth format, or FormatUndefined when the pipeline has no depth attachment
	DepthFormat() gpu.Format

	// Stencil returns the stencil test of the pipeline.
	//
	// Returns:
	//   - *gpu.StencilFaceState: the stencil test, or nil when stencil testing is disabled
	Stencil() *gpu.StencilFaceState

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// BlendState returns the blend state applied to every color target when blending is enabled.
	//
	// Returns:
	//   - *gpu.BlendState: the blend state for this pipeline
	BlendState() *gpu.BlendState

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - gpu.CullMode: the cull mode for this pipeline (e.g., gpu.CullModeNone, gpu.CullModeBack)
	CullMode() gpu.CullMode

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - gpu.FrontFace: the front face winding order for this pipeline
	FrontFace() gpu.FrontFace

	// ColorTargets returns the formats of the color attachments, in attachment order.
	//
	// Returns:
	//   - []gpu.Format: the color target formats
	ColorTargets() []gpu.Format

	// SampleCount returns the sample count of the attachments the pipeline renders to.
	//
	// Returns:
	//   - int: the sample count
	SampleCount() int

	// BindGroupLayouts merges the bind group layouts of every stage of the pipeline into one
	// dense slice indexed by group. Bindings declared by more than one stage are visible to all
	// of them.
	//
	// Returns:
	//   - []gpu.BindGroupLayout: the layouts, indexed by group
	//   - error: an error if two stages declare the same binding with different types
	BindGroupLayouts() ([]gpu.BindGroupLayout, error)

	// RenderDescriptor assembles the render pipeline descriptor from the shaders and state.
	//
	// Returns:
	//   - gpu.RenderPipelineDescriptor: the descriptor
	//   - error: an error if the pipeline is not a render pipeline or its stages are missing
	RenderDescriptor() (gpu.RenderPipelineDescriptor, error)

	// ComputeDescriptor assembles the compute pipeline descriptor from the compute shader.
	//
	// Returns:
	//   - gpu.ComputePipelineDescriptor: the descriptor
	//   - error: an error if the pipeline is not a compute pipeline or has no compute shader
	ComputeDescriptor() (gpu.ComputePipelineDescriptor, error)

	// Build creates the device pipeline. Building again releases the previous device pipeline first.
	//
	// Parameters:
	//   - device: the device to create the pipeline on
	//
	// Returns:
	//   - error: the descriptor or device error, naming the pipeline key
	Build(device gpu.Device) error

	// Release frees the device pipeline. The configuration is kept so the pipeline can be built again.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface. A PipelineType must be specified and provided upon creation.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		pipelineType:      pipelineType,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		depthCompare:      gpu.CompareFunctionGreaterEqual,
		blendEnabled:      false,
		blendState:        &gpu.BlendAdditive,
		cullMode:          gpu.CullModeNone,
		frontFace:         gpu.FrontFaceCCW,
		stencilReadMask:   0xff,
		stencilWriteMask:  0xff,
		sampleCount:       1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Pipeline() gpu.Pipeline {
	switch {
	case p.pipelineType == PipelineTypeRender && p.renderPipeline != nil:
		return p.renderPipeline
	case p.pipelineType == PipelineTypeCompute && p.computePipeline != nil:
		return p.computePipeline
	default:
		return nil
	}
}

func (p *pipeline) RenderPipeline() gpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) ComputePipeline() gpu.ComputePipeline {
	return p.computePipeline
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthCompare() gpu.CompareFunction {
	return p.depthCompare
}

func (p *pipeline) DepthFormat() gpu.Format {
	return p.depthFormat
}

func (p *pipeline) Stencil() *gpu.StencilFaceState {
	return p.stencil
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) BlendState() *gpu.BlendState {
	return p.blendState
}

func (p *pipeline) CullMode() gpu.CullMode {
	return p.cullMode
}

func (p *pipeline) FrontFace() gpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) ColorTargets() []gpu.Format {
	return p.colorTargets
}

func (p *pipeline) SampleCount() int {
	return p.sampleCount
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) stages() []shader.Shader {
	var out []shader.Shader
	for _, s := range []shader.Shader{p.vertexShader, p.fragmentShader, p.computeShader} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (p *pipeline) BindGroupLayouts() ([]gpu.BindGroupLayout, error) {
	return MergeBindGroupLayouts(p.stages()...)
}

func (p *pipeline) RenderDescriptor() (gpu.RenderPipelineDescriptor, error) {
	if p.pipelineType != PipelineTypeRender {
		return gpu.RenderPipelineDescriptor{}, fmt.Errorf("pipeline %s: not a render pipeline", p.pipelineKey)
	}
	if p.vertexShader == nil {
		return gpu.RenderPipelineDescriptor{}, fmt.Errorf("pipeline %s: vertex shader not set", p.pipelineKey)
	}
	layouts, err := p.BindGroupLayouts()
	if err != nil {
		return gpu.RenderPipelineDescriptor{}, fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
	}

	desc := gpu.RenderPipelineDescriptor{
		Label:            p.pipelineKey,
		Vertex:           p.vertexShader.Stage(),
		VertexBuffers:    p.vertexShader.VertexLayouts(),
		BindGroupLayouts: layouts,
		Primitive:        gpu.PrimitiveState{CullMode: p.cullMode, FrontFace: p.frontFace},
		SampleCount:      p.sampleCount,
	}
	if p.fragmentShader != nil {
		stage := p.fragmentShader.Stage()
		desc.Fragment = &stage
	}
	for _, f := range p.colorTargets {
		target := gpu.ColorTargetState{Format: f}
		if p.blendEnabled {
			target.Blend = p.blendState
		}
		desc.Targets = append(desc.Targets, target)
	}
	if p.depthFormat != gpu.FormatUndefined {
		ds := &gpu.DepthStencilState{
			Format:            p.depthFormat,
			DepthWriteEnabled: p.depthTestEnabled && p.depthWriteEnabled,
			DepthCompare:      gpu.CompareFunctionAlways,
			StencilReadMask:   p.stencilReadMask,
			StencilWriteMask:  p.stencilWriteMask,
		}
		if p.depthTestEnabled {
			ds.DepthCompare = p.depthCompare
		}
		if p.stencil != nil {
			if !p.depthFormat.HasStencil() {
				return gpu.RenderPipelineDescriptor{}, fmt.Errorf("pipeline %s: stencil test on %s: %w", p.pipelineKey, p.depthFormat, gpu.ErrInvalidConfig)
			}
			ds.Stencil = *p.stencil
		} else {
			ds.Stencil = gpu.StencilFaceState{Compare: gpu.CompareFunctionAlways}
		}
		desc.DepthStencil = ds
	}
	return desc, nil
}

func (p *pipeline) ComputeDescriptor() (gpu.ComputePipelineDescriptor, error) {
	if p.pipelineType != PipelineTypeCompute {
		return gpu.ComputePipelineDescriptor{}, fmt.Errorf("pipeline %s: not a compute pipeline", p.pipelineKey)
	}
	if p.computeShader == nil {
		return gpu.ComputePipelineDescriptor{}, fmt.Errorf("pipeline %s: compute shader not set", p.pipelineKey)
	}
	layouts, err := p.BindGroupLayouts()
	if err != nil {
		return gpu.ComputePipelineDescriptor{}, fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
	}
	return gpu.ComputePipelineDescriptor{
		Label:            p.pipelineKey,
		Compute:          p.computeShader.Stage(),
		BindGroupLayouts: layouts,
		WorkgroupSize:    p.computeShader.WorkgroupSize(),
	}, nil
}

func (p *pipeline) Build(device gpu.Device) error {
	p.Release()
	switch p.pipelineType {
	case PipelineTypeRender:
		desc, err := p.RenderDescriptor()
		if err != nil {
			return err
		}
		rp, err := device.CreateRenderPipeline(desc)
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
		}
		p.renderPipeline = rp
	case PipelineTypeCompute:
		desc, err := p.ComputeDescriptor()
		if err != nil {
			return err
		}
		cp, err := device.CreateComputePipeline(desc)
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
		}
		p.computePipeline = cp
	default:
		return fmt.Errorf("pipeline %s: unknown pipeline type %d", p.pipelineKey, p.pipelineType)
	}
	return nil
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
}

// MergeBindGroupLayouts combines the per-stage layouts of several shaders into one dense slice
// indexed by group. Groups no stage declares are empty layouts. A binding declared by several
// stages keeps one entry whose visibility is the union of theirs.
//
// Parameters:
//   - shaders: the stages of one pipeline
//
// Returns:
//   - []gpu.BindGroupLayout: the merged layouts, indexed by group
//   - error: an error if two stages disagree on the type of a binding
func MergeBindGroupLayouts(shaders ...shader.Shader) ([]gpu.BindGroupLayout, error) {
	merged := make(map[int]map[uint32]gpu.BindGroupLayoutEntry)
	maxGroup := -1
	for _, s := range shaders {
		for g, layout := range s.BindGroupLayouts() {
			if merged[g] == nil {
				merged[g] = make(map[uint32]gpu.BindGroupLayoutEntry)
			}
			maxGroup = max(maxGroup, g)
			for _, e := range layout.Entries {
				prev, ok := merged[g][e.Binding]
				if !ok {
					merged[g][e.Binding] = e
					continue
				}
				if prev.Type != e.Type || prev.Role != e.Role {
					return nil, fmt.Errorf("@group(%d) @binding(%d): %s declares %s, another stage declares %s",
						g, e.Binding, s.EntryPoint(), e.Role, prev.Role)
				}
				prev.Visibility |= e.Visibility
				prev.MinBindingSize = max(prev.MinBindingSize, e.MinBindingSize)
				merged[g][e.Binding] = prev
			}
		}
	}

	out := make([]gpu.BindGroupLayout, maxGroup+1)
	for g, entries := range merged {
		layout := gpu.BindGroupLayout{Entries: make([]gpu.BindGroupLayoutEntry, 0, len(entries))}
		for _, e := range entries {
			layout.Entries = append(layout.Entries, e)
		}
		sort.Slice(layout.Entries, func(i, j int) bool {
			return layout.Entries[i].Binding < layout.Entries[j].Binding
		})
		out[g] = layout
	}
	return out, nil
}
