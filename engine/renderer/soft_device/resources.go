package soft_device

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// resource is the bookkeeping shared by every soft device allocation.
type resource struct {
	dev      *Device
	label    string
	kind     resourceKind
	released bool
}

func (r *resource) Label() string {
	return r.label
}

func (r *resource) release() bool {
	if r.released {
		return false
	}
	r.released = true
	r.dev.untrack(r.kind)
	return true
}

func (r *resource) check(op string) error {
	if r.released {
		return &gpu.ResourceError{Resource: r.label, Op: op, Err: gpu.ErrReleased}
	}
	return nil
}

// texture stores every texel as four float32 channels, laid out layer by layer, then sample by
// sample, then row by row. Depth formats use channel 0; stencil lives in its own plane.
type texture struct {
	resource
	desc    gpu.TextureDescriptor
	data    []float32
	stencil []uint8
}

func (t *texture) Release() {
	if t.release() {
		t.dev.bytes -= t.byteSize()
		t.data, t.stencil = nil, nil
	}
}

func (t *texture) Descriptor() gpu.TextureDescriptor {
	return t.desc
}

func (t *texture) byteSize() uint64 {
	return uint64(len(t.data))*4 + uint64(len(t.stencil))
}

// texel returns the index of (layer, sample, x, y) in the stencil plane; multiply by 4 for data.
func (t *texture) texel(layer, sample, x, y int) int {
	return ((layer*t.desc.SampleCount+sample)*t.desc.Height+y)*t.desc.Width + x
}

func (t *texture) CreateView(desc gpu.TextureViewDescriptor) (gpu.TextureView, error) {
	if err := t.check("create view"); err != nil {
		return nil, err
	}
	if desc.LayerCount == 0 {
		desc.LayerCount = t.desc.ArrayLayers - desc.BaseLayer
	}
	if desc.BaseLayer < 0 || desc.LayerCount < 1 || desc.BaseLayer+desc.LayerCount > t.desc.ArrayLayers {
		return nil, &gpu.ResourceError{
			Resource: desc.Label,
			Op:       "create view",
			Err:      fmt.Errorf("%w: layers [%d, %d) of %d", gpu.ErrInvalidConfig, desc.BaseLayer, desc.BaseLayer+desc.LayerCount, t.desc.ArrayLayers),
		}
	}
	if desc.Dimension == gpu.ViewDimensionCube && desc.LayerCount != 6 {
		return nil, &gpu.ResourceError{
			Resource: desc.Label,
			Op:       "create view",
			Err:      fmt.Errorf("%w: cube view over %d layers", gpu.ErrInvalidConfig, desc.LayerCount),
		}
	}
	if desc.Aspect != gpu.AspectAll && !t.desc.Format.IsDepth() {
		return nil, &gpu.ResourceError{
			Resource: desc.Label,
			Op:       "create view",
			Err:      fmt.Errorf("%w: depth aspect of %s", gpu.ErrInvalidConfig, t.desc.Format),
		}
	}
	if desc.ReadOnly && !t.desc.Format.IsDepth() {
		return nil, &gpu.ResourceError{
			Resource: desc.Label,
			Op:       "create view",
			Err:      fmt.Errorf("%w: read-only view of color format %s", gpu.ErrInvalidConfig, t.desc.Format),
		}
	}
	if desc.Label == "" {
		desc.Label = t.label
	}

	t.dev.track(kindView)
	return &textureView{
		resource: resource{dev: t.dev, label: desc.Label, kind: kindView},
		tex:      t,
		desc:     desc,
	}, nil
}

// textureView is a layer range of a texture.
type textureView struct {
	resource
	tex  *texture
	desc gpu.TextureViewDescriptor
}

func (v *textureView) Release() {
	v.release()
}

func (v *textureView) Texture() gpu.Texture {
	return v.tex
}

func (v *textureView) Descriptor() gpu.TextureViewDescriptor {
	return v.desc
}

func (v *textureView) width() int       { return v.tex.desc.Width }
func (v *textureView) height() int      { return v.tex.desc.Height }
func (v *textureView) samples() int     { return v.tex.desc.SampleCount }
func (v *textureView) format() gpu.Format { return v.tex.desc.Format }

// texel returns the stencil-plane index of a texel in view layer i.
func (v *textureView) texel(layer, sample, x, y int) int {
	return v.tex.texel(v.desc.BaseLayer+layer, sample, x, y)
}

func (v *textureView) check(op string) error {
	if err := v.resource.check(op); err != nil {
		return err
	}
	return v.tex.check(op)
}

// buffer is a plain byte allocation.
type buffer struct {
	resource
	desc gpu.BufferDescriptor
	data []byte
}

func (b *buffer) Release() {
	if b.release() {
		b.dev.bytes -= uint64(len(b.data))
		b.data = nil
	}
}

func (b *buffer) Size() uint64 {
	return b.desc.Size
}

func (b *buffer) Usage() gpu.BufferUsage {
	return b.desc.Usage
}

type sampler struct {
	resource
	desc gpu.SamplerDescriptor
}

func (s *sampler) Release() {
	s.release()
}

// bindGroupEntry is one resolved binding of a bind group.
type bindGroupEntry struct {
	layout  gpu.BindGroupLayoutEntry
	buffer  *buffer
	offset  uint64
	size    uint64
	view    *textureView
	sampler *sampler
}

// bytes returns the bound range of a buffer binding.
func (e *bindGroupEntry) bytes() []byte {
	return e.buffer.data[e.offset : e.offset+e.size]
}

type bindGroup struct {
	resource
	group   int
	entries map[uint32]*bindGroupEntry
}

func (g *bindGroup) Release() {
	g.release()
}

func (g *bindGroup) check(op string) error {
	if err := g.resource.check(op); err != nil {
		return err
	}
	for _, e := range g.entries {
		var err error
		switch {
		case e.buffer != nil:
			err = e.buffer.check(op)
		case e.view != nil:
			err = e.view.check(op)
		case e.sampler != nil:
			err = e.sampler.check(op)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// pipeline holds the layouts shared by render and compute pipelines.
type pipeline struct {
	resource
	layouts []gpu.BindGroupLayout
}

func (p *pipeline) Release() {
	p.release()
}

func (p *pipeline) BindGroupLayout(group int) (gpu.BindGroupLayout, bool) {
	if group < 0 || group >= len(p.layouts) {
		return gpu.BindGroupLayout{}, false
	}
	return p.layouts[group], true
}

type renderPipeline struct {
	pipeline
	desc     gpu.RenderPipelineDescriptor
	vertex   vertexKernel
	fragment fragmentKernel
}

func (p *renderPipeline) Descriptor() gpu.RenderPipelineDescriptor {
	return p.desc
}

type computePipeline struct {
	pipeline
	desc   gpu.ComputePipelineDescriptor
	kernel computeKernel
}

func (p *computePipeline) WorkgroupSize() [3]uint32 {
	return p.desc.WorkgroupSize
}

var (
	_ gpu.Texture         = &texture{}
	_ gpu.TextureView     = &textureView{}
	_ gpu.Buffer          = &buffer{}
	_ gpu.Sampler         = &sampler{}
	_ gpu.BindGroup       = &bindGroup{}
	_ gpu.RenderPipeline  = &renderPipeline{}
	_ gpu.ComputePipeline = &computePipeline{}
)
