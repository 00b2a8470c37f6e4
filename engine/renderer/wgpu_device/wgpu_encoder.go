package wgpu_device

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

var errPassOpen = errors.New("a pass is still open")

type commandEncoder struct {
	device *Device
	handle *wgpu.CommandEncoder
	label  string
	open   bool
}

func (e *commandEncoder) BeginRenderPass(desc gpu.RenderPassDescriptor) (gpu.RenderPass, error) {
	if e.handle == nil {
		return nil, &gpu.ResourceError{Resource: e.label, Op: "begin render pass", Err: gpu.ErrReleased}
	}
	if e.open {
		return nil, gpu.WrapResource(desc.Label, "begin render pass", fmt.Errorf("%w: %v", gpu.ErrInvalidConfig, errPassOpen))
	}
	if err := e.device.check(desc.Label, "begin render pass"); err != nil {
		return nil, err
	}

	colors := make([]wgpu.RenderPassColorAttachment, 0, len(desc.ColorAttachments))
	for i, c := range desc.ColorAttachments {
		v, ok := c.View.(*textureView)
		if !ok || v.handle == nil {
			return nil, gpu.WrapResource(desc.Label, "begin render pass",
				fmt.Errorf("%w: color attachment %d is not a live view", gpu.ErrInvalidConfig, i))
		}
		colors = append(colors, wgpu.RenderPassColorAttachment{
			View:    v.handle,
			LoadOp:  loadOp(c.LoadOp),
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: c.ClearValue.R, G: c.ClearValue.G, B: c.ClearValue.B, A: c.ClearValue.A,
			},
		})
	}

	rp := &wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: colors,
	}
	if ds := desc.DepthStencilAttachment; ds != nil {
		v, ok := ds.View.(*textureView)
		if !ok || v.handle == nil {
			return nil, gpu.WrapResource(desc.Label, "begin render pass",
				fmt.Errorf("%w: depth attachment is not a live view", gpu.ErrInvalidConfig))
		}
		rp.DepthStencilAttachment = depthStencilAttachment(v, ds)
	}

	pass := e.handle.BeginRenderPass(rp)
	e.open = true
	return &renderPass{encoder: e, handle: pass, label: desc.Label}, nil
}

// depthStencilAttachment maps the attachment; read-only views leave both aspects untouched.
func depthStencilAttachment(v *textureView, ds *gpu.RenderPassDepthStencilAttachment) *wgpu.RenderPassDepthStencilAttachment {
	stencil := v.texture.desc.Format.HasStencil()
	if v.desc.ReadOnly {
		return &wgpu.RenderPassDepthStencilAttachment{
			View:            v.handle,
			DepthLoadOp:     wgpu.LoadOpUndefined,
			DepthStoreOp:    wgpu.StoreOpUndefined,
			DepthReadOnly:   true,
			StencilLoadOp:   wgpu.LoadOpUndefined,
			StencilStoreOp:  wgpu.StoreOpUndefined,
			StencilReadOnly: stencil,
		}
	}
	a := &wgpu.RenderPassDepthStencilAttachment{
		View:            v.handle,
		DepthLoadOp:     loadOp(ds.DepthLoadOp),
		DepthStoreOp:    wgpu.StoreOpStore,
		DepthClearValue: ds.DepthClearValue,
		StencilLoadOp:   wgpu.LoadOpUndefined,
		StencilStoreOp:  wgpu.StoreOpUndefined,
	}
	if stencil {
		a.StencilLoadOp = loadOp(ds.StencilLoadOp)
		a.StencilStoreOp = wgpu.StoreOpStore
		a.StencilClearValue = ds.StencilClearValue
	}
	return a
}

func (e *commandEncoder) BeginComputePass(label string) (gpu.ComputePass, error) {
	if e.handle == nil {
		return nil, &gpu.ResourceError{Resource: e.label, Op: "begin compute pass", Err: gpu.ErrReleased}
	}
	if e.open {
		return nil, gpu.WrapResource(label, "begin compute pass", fmt.Errorf("%w: %v", gpu.ErrInvalidConfig, errPassOpen))
	}
	if err := e.device.check(label, "begin compute pass"); err != nil {
		return nil, err
	}
	pass := e.handle.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	e.open = true
	return &computePass{encoder: e, handle: pass, label: label}, nil
}

func (e *commandEncoder) ClearBuffer(buf gpu.Buffer, offset, size uint64) error {
	const op = "clear buffer"
	b, ok := buf.(*buffer)
	if !ok || b.handle == nil || e.handle == nil {
		return &gpu.ResourceError{Resource: buf.Label(), Op: op, Err: gpu.ErrReleased}
	}
	if size == 0 {
		size = b.desc.Size - min(offset, b.desc.Size)
	}
	if offset+size > b.desc.Size || offset%4 != 0 {
		return gpu.WrapResource(b.desc.Label, op,
			fmt.Errorf("%w: range [%d, %d) of %d", gpu.ErrInvalidConfig, offset, offset+size, b.desc.Size))
	}
	// The allocation is padded to four bytes, so the cleared range may be too.
	e.handle.ClearBuffer(b.handle, offset, (size+3)&^3)
	return nil
}

func (e *commandEncoder) Submit() error {
	if e.handle == nil {
		return &gpu.ResourceError{Resource: e.label, Op: "submit", Err: gpu.ErrReleased}
	}
	if e.open {
		return gpu.WrapResource(e.label, "submit", fmt.Errorf("%w: %v", gpu.ErrInvalidConfig, errPassOpen))
	}
	if err := e.device.check(e.label, "submit"); err != nil {
		e.Release()
		return err
	}
	cb, err := e.handle.Finish(nil)
	if err != nil {
		e.Release()
		e.device.Lose(fmt.Sprintf("finish %s: %v", e.label, err))
		return e.device.Err()
	}
	e.device.queue.Submit(cb)
	cb.Release()
	e.Release()
	return nil
}

func (e *commandEncoder) Release() {
	if e.handle == nil {
		return
	}
	e.handle.Release()
	e.handle = nil
}

type renderPass struct {
	encoder *commandEncoder
	handle  *wgpu.RenderPassEncoder
	label   string
	err     error
}

func (p *renderPass) fail(err error) {
	if p.err == nil {
		p.err = gpu.WrapResource(p.label, "render pass", err)
	}
}

func (p *renderPass) SetPipeline(rp gpu.RenderPipeline) {
	pl, ok := rp.(*renderPipeline)
	if !ok || pl.handle == nil {
		p.fail(fmt.Errorf("%w: pipeline is not live", gpu.ErrInvalidConfig))
		return
	}
	p.handle.SetPipeline(pl.handle)
}

func (p *renderPass) SetBindGroup(group int, bg gpu.BindGroup) {
	b, ok := bg.(*bindGroup)
	if !ok || b.handle == nil {
		p.fail(fmt.Errorf("%w: bind group %d is not live", gpu.ErrInvalidConfig, group))
		return
	}
	p.handle.SetBindGroup(uint32(group), b.handle, nil)
}

func (p *renderPass) SetVertexBuffer(slot int, buf gpu.Buffer) {
	b, ok := buf.(*buffer)
	if !ok || b.handle == nil {
		p.fail(fmt.Errorf("%w: vertex buffer %d is not live", gpu.ErrInvalidConfig, slot))
		return
	}
	p.handle.SetVertexBuffer(uint32(slot), b.handle, 0, wgpu.WholeSize)
}

func (p *renderPass) SetIndexBuffer(buf gpu.Buffer) {
	b, ok := buf.(*buffer)
	if !ok || b.handle == nil {
		p.fail(fmt.Errorf("%w: index buffer is not live", gpu.ErrInvalidConfig))
		return
	}
	p.handle.SetIndexBuffer(b.handle, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
}

func (p *renderPass) SetStencilReference(ref uint32) {
	p.handle.SetStencilReference(ref)
}

func (p *renderPass) Draw(vertexCount, instanceCount int) {
	if p.err != nil || vertexCount <= 0 || instanceCount <= 0 {
		return
	}
	p.handle.Draw(uint32(vertexCount), uint32(instanceCount), 0, 0)
}

func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex int) {
	if p.err != nil || indexCount <= 0 || instanceCount <= 0 {
		return
	}
	p.handle.DrawIndexed(uint32(indexCount), uint32(instanceCount), uint32(firstIndex), 0, 0)
}

// ClearBindings is a no-op on WebGPU: bindings do not outlive the pass.
func (p *renderPass) ClearBindings() {}

func (p *renderPass) End() error {
	if p.handle == nil {
		return p.err
	}
	p.handle.End()
	p.handle.Release()
	p.handle = nil
	p.encoder.open = false
	return p.err
}

type computePass struct {
	encoder *commandEncoder
	handle  *wgpu.ComputePassEncoder
	label   string
	err     error
}

func (p *computePass) fail(err error) {
	if p.err == nil {
		p.err = gpu.WrapResource(p.label, "compute pass", err)
	}
}

func (p *computePass) SetPipeline(cp gpu.ComputePipeline) {
	pl, ok := cp.(*computePipeline)
	if !ok || pl.handle == nil {
		p.fail(fmt.Errorf("%w: pipeline is not live", gpu.ErrInvalidConfig))
		return
	}
	p.handle.SetPipeline(pl.handle)
}

func (p *computePass) SetBindGroup(group int, bg gpu.BindGroup) {
	b, ok := bg.(*bindGroup)
	if !ok || b.handle == nil {
		p.fail(fmt.Errorf("%w: bind group %d is not live", gpu.ErrInvalidConfig, group))
		return
	}
	p.handle.SetBindGroup(uint32(group), b.handle, nil)
}

func (p *computePass) Dispatch(x, y, z int) {
	if p.err != nil || x <= 0 || y <= 0 || z <= 0 {
		return
	}
	p.handle.DispatchWorkgroups(uint32(x), uint32(y), uint32(z))
}

func (p *computePass) ClearBindings() {}

func (p *computePass) End() error {
	if p.handle == nil {
		return p.err
	}
	p.handle.End()
	p.handle.Release()
	p.handle = nil
	p.encoder.open = false
	return p.err
}
