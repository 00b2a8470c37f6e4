package soft_device

import (
	"errors"
	"fmt"
	"maps"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"go.uber.org/zap"
)

var (
	errPassOpen      = errors.New("a pass is still open")
	errEncoderClosed = errors.New("command encoder already submitted or released")
)

// commandEncoder records passes as closures and runs them in order on Submit.
type commandEncoder struct {
	dev      *Device
	label    string
	commands []func() error
	open     bool
	closed   bool
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &commandEncoder{dev: d, label: label}, nil
}

func (e *commandEncoder) usable() error {
	if e.dev.err != nil {
		return e.dev.err
	}
	if e.closed {
		return fmt.Errorf("%w: %s", errEncoderClosed, e.label)
	}
	if e.open {
		return fmt.Errorf("%w: %s", errPassOpen, e.label)
	}
	return nil
}

func (e *commandEncoder) BeginRenderPass(desc gpu.RenderPassDescriptor) (gpu.RenderPass, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	target, err := newRenderTarget(desc)
	if err != nil {
		return nil, fmt.Errorf("render pass %q: %w", desc.Label, err)
	}

	for i, ca := range desc.ColorAttachments {
		if ca.LoadOp != gpu.LoadOpClear {
			continue
		}
		view := target.colors[i]
		value := [4]float32{float32(ca.ClearValue.R), float32(ca.ClearValue.G), float32(ca.ClearValue.B), float32(ca.ClearValue.A)}
		e.commands = append(e.commands, func() error {
			if err := view.check("clear"); err != nil {
				return err
			}
			view.tex.fill(view.desc.BaseLayer, value)
			return nil
		})
	}
	if ds := desc.DepthStencilAttachment; ds != nil && !target.depthReadOnly {
		view := target.depth
		depthValue, stencilValue := ds.DepthClearValue, uint8(ds.StencilClearValue)
		if ds.DepthLoadOp == gpu.LoadOpClear {
			e.commands = append(e.commands, func() error {
				if err := view.check("clear"); err != nil {
					return err
				}
				view.tex.fillDepth(view.desc.BaseLayer, depthValue)
				return nil
			})
		}
		if ds.StencilLoadOp == gpu.LoadOpClear {
			e.commands = append(e.commands, func() error {
				if err := view.check("clear"); err != nil {
					return err
				}
				view.tex.fillStencil(view.desc.BaseLayer, stencilValue)
				return nil
			})
		}
	}

	e.open = true
	return &renderPass{
		enc:     e,
		label:   desc.Label,
		target:  target,
		groups:  make(map[int]*bindGroup),
		buffers: make(map[int]*buffer),
	}, nil
}

func (e *commandEncoder) BeginComputePass(label string) (gpu.ComputePass, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	if !e.dev.caps.Compute {
		return nil, fmt.Errorf("compute pass %q: %w", label, gpu.ErrUnsupported)
	}
	e.open = true
	return &computePass{enc: e, label: label, groups: make(map[int]*bindGroup)}, nil
}

func (e *commandEncoder) ClearBuffer(buf gpu.Buffer, offset, size uint64) error {
	if err := e.usable(); err != nil {
		return err
	}
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("%w: foreign buffer", gpu.ErrInvalidConfig)
	}
	if err := b.check("clear buffer"); err != nil {
		return err
	}
	if size == 0 {
		size = b.desc.Size - min(offset, b.desc.Size)
	}
	if offset+size > b.desc.Size {
		return &gpu.ResourceError{
			Resource: b.label,
			Op:       "clear buffer",
			Err:      fmt.Errorf("%w: range [%d, %d) exceeds %d", gpu.ErrInvalidConfig, offset, offset+size, b.desc.Size),
		}
	}
	e.commands = append(e.commands, func() error {
		if err := b.check("clear buffer"); err != nil {
			return err
		}
		clear(b.data[offset : offset+size])
		return nil
	})
	return nil
}

func (e *commandEncoder) Submit() error {
	if err := e.usable(); err != nil {
		return err
	}
	e.closed = true
	commands := e.commands
	e.commands = nil
	for _, cmd := range commands {
		if err := cmd(); err != nil {
			e.dev.log.Debug("submit failed", zap.String("encoder", e.label), zap.Error(err))
			return fmt.Errorf("submit %q: %w", e.label, err)
		}
	}
	return nil
}

func (e *commandEncoder) Release() {
	e.closed = true
	e.commands = nil
}

// renderTarget is the validated attachment set of a render pass.
type renderTarget struct {
	colors        []*textureView
	depth         *textureView
	depthReadOnly bool
	width, height int
	samples       int
}

func newRenderTarget(desc gpu.RenderPassDescriptor) (*renderTarget, error) {
	t := &renderTarget{}
	attach := func(v gpu.TextureView, what string) (*textureView, error) {
		tv, ok := v.(*textureView)
		if !ok || tv == nil {
			return nil, fmt.Errorf("%w: %s is not a soft texture view", gpu.ErrInvalidConfig, what)
		}
		if err := tv.check("attach"); err != nil {
			return nil, err
		}
		if tv.desc.LayerCount != 1 {
			return nil, fmt.Errorf("%w: %s spans %d layers", gpu.ErrInvalidConfig, what, tv.desc.LayerCount)
		}
		if t.samples == 0 {
			t.width, t.height, t.samples = tv.width(), tv.height(), tv.samples()
		} else if tv.width() != t.width || tv.height() != t.height || tv.samples() != t.samples {
			return nil, fmt.Errorf("%w: %s is %dx%d x%d, pass is %dx%d x%d", gpu.ErrInvalidConfig, what,
				tv.width(), tv.height(), tv.samples(), t.width, t.height, t.samples)
		}
		return tv, nil
	}

	if len(desc.ColorAttachments) > maxColorTargets {
		return nil, fmt.Errorf("%w: %d color attachments", gpu.ErrUnsupported, len(desc.ColorAttachments))
	}
	for i, ca := range desc.ColorAttachments {
		tv, err := attach(ca.View, fmt.Sprintf("color attachment %d", i))
		if err != nil {
			return nil, err
		}
		if tv.format().IsDepth() {
			return nil, fmt.Errorf("%w: color attachment %d has depth format %s", gpu.ErrInvalidConfig, i, tv.format())
		}
		t.colors = append(t.colors, tv)
	}
	if ds := desc.DepthStencilAttachment; ds != nil {
		tv, err := attach(ds.View, "depth attachment")
		if err != nil {
			return nil, err
		}
		if !tv.format().IsDepth() {
			return nil, fmt.Errorf("%w: depth attachment has color format %s", gpu.ErrInvalidConfig, tv.format())
		}
		t.depth, t.depthReadOnly = tv, tv.desc.ReadOnly
	}
	if t.samples == 0 {
		return nil, fmt.Errorf("%w: no attachments", gpu.ErrInvalidConfig)
	}
	return t, nil
}

// drawCall is the pass state captured when a draw is recorded.
type drawCall struct {
	pipeline      *renderPipeline
	groups        map[int]*bindGroup
	buffers       map[int]*buffer
	indices       *buffer
	stencilRef    uint32
	count         int
	instanceCount int
	firstIndex    int
	indexed       bool
}

type renderPass struct {
	enc        *commandEncoder
	label      string
	target     *renderTarget
	pipeline   *renderPipeline
	groups     map[int]*bindGroup
	buffers    map[int]*buffer
	indices    *buffer
	stencilRef uint32
	err        error
	ended      bool
}

func (p *renderPass) fail(err error) {
	if p.err == nil {
		p.err = fmt.Errorf("render pass %q: %w", p.label, err)
	}
}

func (p *renderPass) SetPipeline(rp gpu.RenderPipeline) {
	pl, ok := rp.(*renderPipeline)
	if !ok || pl == nil {
		p.fail(fmt.Errorf("%w: not a soft render pipeline", gpu.ErrInvalidConfig))
		return
	}
	p.pipeline = pl
}

func (p *renderPass) SetBindGroup(group int, bg gpu.BindGroup) {
	g, ok := bg.(*bindGroup)
	if !ok || g == nil {
		p.fail(fmt.Errorf("%w: bind group %d is not a soft bind group", gpu.ErrInvalidConfig, group))
		return
	}
	p.groups[group] = g
}

func (p *renderPass) SetVertexBuffer(slot int, buf gpu.Buffer) {
	b, ok := buf.(*buffer)
	if !ok || b == nil {
		p.fail(fmt.Errorf("%w: vertex buffer %d is not a soft buffer", gpu.ErrInvalidConfig, slot))
		return
	}
	p.buffers[slot] = b
}

func (p *renderPass) SetIndexBuffer(buf gpu.Buffer) {
	b, ok := buf.(*buffer)
	if !ok || b == nil {
		p.fail(fmt.Errorf("%w: index buffer is not a soft buffer", gpu.ErrInvalidConfig))
		return
	}
	p.indices = b
}

func (p *renderPass) SetStencilReference(ref uint32) {
	p.stencilRef = ref
}

func (p *renderPass) Draw(vertexCount, instanceCount int) {
	p.record(vertexCount, instanceCount, 0, false)
}

func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex int) {
	p.record(indexCount, instanceCount, firstIndex, true)
}

func (p *renderPass) record(count, instanceCount, firstIndex int, indexed bool) {
	if p.ended || p.err != nil {
		return
	}
	if p.pipeline == nil {
		p.fail(fmt.Errorf("%w: draw without a pipeline", gpu.ErrInvalidConfig))
		return
	}
	if indexed && p.indices == nil {
		p.fail(fmt.Errorf("%w: indexed draw without an index buffer", gpu.ErrInvalidConfig))
		return
	}
	if count <= 0 || instanceCount <= 0 {
		return
	}
	call := &drawCall{
		pipeline:      p.pipeline,
		groups:        maps.Clone(p.groups),
		buffers:       maps.Clone(p.buffers),
		indices:       p.indices,
		stencilRef:    p.stencilRef,
		count:         count,
		instanceCount: instanceCount,
		firstIndex:    firstIndex,
		indexed:       indexed,
	}
	target, dev := p.target, p.enc.dev
	p.enc.commands = append(p.enc.commands, func() error {
		if err := dev.draw(target, call); err != nil {
			return fmt.Errorf("render pass %q: %w", p.label, err)
		}
		return nil
	})
}

func (p *renderPass) ClearBindings() {
	clear(p.groups)
	clear(p.buffers)
	p.indices = nil
}

func (p *renderPass) End() error {
	if p.ended {
		return nil
	}
	p.ended = true
	p.enc.open = false
	return p.err
}

// dispatchCall is the pass state captured when a dispatch is recorded.
type dispatchCall struct {
	pipeline *computePipeline
	groups   map[int]*bindGroup
	counts   [3]int
}

type computePass struct {
	enc      *commandEncoder
	label    string
	pipeline *computePipeline
	groups   map[int]*bindGroup
	err      error
	ended    bool
}

func (p *computePass) fail(err error) {
	if p.err == nil {
		p.err = fmt.Errorf("compute pass %q: %w", p.label, err)
	}
}

func (p *computePass) SetPipeline(cp gpu.ComputePipeline) {
	pl, ok := cp.(*computePipeline)
	if !ok || pl == nil {
		p.fail(fmt.Errorf("%w: not a soft compute pipeline", gpu.ErrInvalidConfig))
		return
	}
	p.pipeline = pl
}

func (p *computePass) SetBindGroup(group int, bg gpu.BindGroup) {
	g, ok := bg.(*bindGroup)
	if !ok || g == nil {
		p.fail(fmt.Errorf("%w: bind group %d is not a soft bind group", gpu.ErrInvalidConfig, group))
		return
	}
	p.groups[group] = g
}

func (p *computePass) Dispatch(x, y, z int) {
	if p.ended || p.err != nil {
		return
	}
	if p.pipeline == nil {
		p.fail(fmt.Errorf("%w: dispatch without a pipeline", gpu.ErrInvalidConfig))
		return
	}
	if x <= 0 || y <= 0 || z <= 0 {
		return
	}
	call := &dispatchCall{pipeline: p.pipeline, groups: maps.Clone(p.groups), counts: [3]int{x, y, z}}
	dev := p.enc.dev
	p.enc.commands = append(p.enc.commands, func() error {
		if err := dev.dispatch(call); err != nil {
			return fmt.Errorf("compute pass %q: %w", p.label, err)
		}
		return nil
	})
}

func (p *computePass) ClearBindings() {
	clear(p.groups)
}

func (p *computePass) End() error {
	if p.ended {
		return nil
	}
	p.ended = true
	p.enc.open = false
	return p.err
}

var (
	_ gpu.CommandEncoder = &commandEncoder{}
	_ gpu.RenderPass     = &renderPass{}
	_ gpu.ComputePass    = &computePass{}
)
