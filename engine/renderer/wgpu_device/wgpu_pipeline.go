package wgpu_device

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// pipelineLayout holds the WebGPU objects behind a pipeline's bind group layouts.
type pipelineLayout struct {
	label   string
	layouts []gpu.BindGroupLayout
	groups  []*wgpu.BindGroupLayout
	handle  *wgpu.PipelineLayout
}

func (p *pipelineLayout) Label() string {
	return p.label
}

func (p *pipelineLayout) BindGroupLayout(group int) (gpu.BindGroupLayout, bool) {
	if group < 0 || group >= len(p.layouts) {
		return gpu.BindGroupLayout{}, false
	}
	return p.layouts[group], true
}

func (p *pipelineLayout) wgpuLayout(group int) *wgpu.BindGroupLayout {
	if group < 0 || group >= len(p.groups) {
		return nil
	}
	return p.groups[group]
}

func (p *pipelineLayout) release() {
	if p.handle != nil {
		p.handle.Release()
		p.handle = nil
	}
	for i, g := range p.groups {
		if g != nil {
			g.Release()
		}
		p.groups[i] = nil
	}
}

type renderPipeline struct {
	pipelineLayout
	handle *wgpu.RenderPipeline
	desc   gpu.RenderPipelineDescriptor
}

func (p *renderPipeline) Descriptor() gpu.RenderPipelineDescriptor {
	return p.desc
}

func (p *renderPipeline) Release() {
	if p.handle == nil {
		return
	}
	p.handle.Release()
	p.handle = nil
	p.pipelineLayout.release()
}

type computePipeline struct {
	pipelineLayout
	handle        *wgpu.ComputePipeline
	workgroupSize [3]uint32
}

func (p *computePipeline) WorkgroupSize() [3]uint32 {
	return p.workgroupSize
}

func (p *computePipeline) Release() {
	if p.handle == nil {
		return
	}
	p.handle.Release()
	p.handle = nil
	p.pipelineLayout.release()
}

// createLayout builds one bind group layout per group and the pipeline layout over them. Gaps in
// the group numbering get empty layouts.
func (d *Device) createLayout(label string, layouts []gpu.BindGroupLayout) (pipelineLayout, error) {
	pl := pipelineLayout{
		label:   label,
		layouts: layouts,
		groups:  make([]*wgpu.BindGroupLayout, len(layouts)),
	}
	for g, layout := range layouts {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(layout.Entries))
		for _, e := range layout.Entries {
			entries = append(entries, layoutEntry(e))
		}
		bgl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s.group%d", label, g),
			Entries: entries,
		})
		if err != nil {
			pl.release()
			return pipelineLayout{}, err
		}
		pl.groups[g] = bgl
	}
	handle, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: pl.groups,
	})
	if err != nil {
		pl.release()
		return pipelineLayout{}, err
	}
	pl.handle = handle
	return pl, nil
}

// shaderModules compiles each distinct stage source once.
type shaderModules map[string]*wgpu.ShaderModule

func (m shaderModules) get(d *Device, stage gpu.ProgrammableStage) (*wgpu.ShaderModule, error) {
	if stage.Source == "" {
		return nil, fmt.Errorf("%w: stage %s of %q has no source", gpu.ErrInvalidConfig, stage.EntryPoint, stage.Program)
	}
	if mod, ok := m[stage.Source]; ok {
		return mod, nil
	}
	mod, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: stage.Program,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: stage.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s (%s): %w", stage.Program, stage.EntryPoint, err)
	}
	m[stage.Source] = mod
	return mod, nil
}

func (m shaderModules) release() {
	for _, mod := range m {
		mod.Release()
	}
}

func (d *Device) CreateRenderPipeline(desc gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	const op = "create render pipeline"
	if err := d.check(desc.Label, op); err != nil {
		return nil, err
	}
	count := max(desc.SampleCount, 1)
	if !d.Capabilities().SupportsSampleCount(count) {
		return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: %d samples", gpu.ErrUnsupported, count))
	}

	modules := shaderModules{}
	defer modules.release()

	vs, err := modules.get(d, desc.Vertex)
	if err != nil {
		return nil, gpu.WrapResource(desc.Label, op, err)
	}

	var fragment *wgpu.FragmentState
	if desc.Fragment != nil {
		fs, err := modules.get(d, *desc.Fragment)
		if err != nil {
			return nil, gpu.WrapResource(desc.Label, op, err)
		}
		targets := make([]wgpu.ColorTargetState, 0, len(desc.Targets))
		for _, t := range desc.Targets {
			format, ok := textureFormat(t.Format)
			if !ok {
				return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: target format %s", gpu.ErrUnsupported, t.Format))
			}
			targets = append(targets, wgpu.ColorTargetState{
				Format:    format,
				Blend:     blendState(t.Blend),
				WriteMask: wgpu.ColorWriteMaskAll,
			})
		}
		fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    targets,
		}
	}

	var depthStencil *wgpu.DepthStencilState
	if ds := desc.DepthStencil; ds != nil {
		format, ok := textureFormat(ds.Format)
		if !ok || !ds.Format.IsDepth() {
			return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: depth format %s", gpu.ErrUnsupported, ds.Format))
		}
		face := wgpu.StencilFaceState{
			Compare:     compareFunction(ds.Stencil.Compare),
			FailOp:      stencilOperation(ds.Stencil.FailOp),
			DepthFailOp: stencilOperation(ds.Stencil.DepthFailOp),
			PassOp:      stencilOperation(ds.Stencil.PassOp),
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            format,
			DepthWriteEnabled: ds.DepthWriteEnabled,
			DepthCompare:      compareFunction(ds.DepthCompare),
			StencilFront:      face,
			StencilBack:       face,
			StencilReadMask:   ds.StencilReadMask,
			StencilWriteMask:  ds.StencilWriteMask,
		}
	}

	layout, err := d.createLayout(desc.Label, desc.BindGroupLayouts)
	if err != nil {
		return nil, gpu.WrapResource(desc.Label, op, err)
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.handle,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    vertexBufferLayouts(desc.VertexBuffers),
		},
		Fragment: fragment,
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: frontFace(desc.Primitive.FrontFace),
			CullMode:  cullMode(desc.Primitive.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(count),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		layout.release()
		return nil, gpu.WrapResource(desc.Label, op, err)
	}
	d.log.Debug("render pipeline created", zap.String("label", desc.Label))
	return &renderPipeline{pipelineLayout: layout, handle: created, desc: desc}, nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	const op = "create compute pipeline"
	if err := d.check(desc.Label, op); err != nil {
		return nil, err
	}
	invocations := desc.WorkgroupSize[0] * max(desc.WorkgroupSize[1], 1) * max(desc.WorkgroupSize[2], 1)
	if int(invocations) > d.Capabilities().MaxComputeInvocations {
		return nil, gpu.WrapResource(desc.Label, op,
			fmt.Errorf("%w: workgroup of %d invocations", gpu.ErrUnsupported, invocations))
	}

	modules := shaderModules{}
	defer modules.release()

	cs, err := modules.get(d, desc.Compute)
	if err != nil {
		return nil, gpu.WrapResource(desc.Label, op, err)
	}
	layout, err := d.createLayout(desc.Label, desc.BindGroupLayouts)
	if err != nil {
		return nil, gpu.WrapResource(desc.Label, op, err)
	}
	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.handle,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     cs,
			EntryPoint: desc.Compute.EntryPoint,
		},
	})
	if err != nil {
		layout.release()
		return nil, gpu.WrapResource(desc.Label, op, err)
	}
	d.log.Debug("compute pipeline created", zap.String("label", desc.Label))
	return &computePipeline{pipelineLayout: layout, handle: created, workgroupSize: desc.WorkgroupSize}, nil
}
