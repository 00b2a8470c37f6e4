package wgpu_device

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type texture struct {
	device *Device
	handle *wgpu.Texture
	desc   gpu.TextureDescriptor

	// surface textures belong to the swapchain and are only released by Present.
	surface bool
}

func (t *texture) Label() string {
	return t.desc.Label
}

func (t *texture) Descriptor() gpu.TextureDescriptor {
	return t.desc
}

func (t *texture) CreateView(desc gpu.TextureViewDescriptor) (gpu.TextureView, error) {
	const op = "create view"
	if t.handle == nil {
		return nil, &gpu.ResourceError{Resource: t.desc.Label, Op: op, Err: gpu.ErrReleased}
	}
	if err := t.device.check(t.desc.Label, op); err != nil {
		return nil, err
	}
	if desc.LayerCount == 0 {
		desc.LayerCount = t.desc.ArrayLayers - desc.BaseLayer
	}
	if desc.BaseLayer < 0 || desc.LayerCount <= 0 || desc.BaseLayer+desc.LayerCount > t.desc.ArrayLayers {
		return nil, gpu.WrapResource(t.desc.Label, op,
			fmt.Errorf("%w: layers [%d, %d) of %d", gpu.ErrInvalidConfig, desc.BaseLayer, desc.BaseLayer+desc.LayerCount, t.desc.ArrayLayers))
	}
	if desc.Aspect == gpu.AspectStencilOnly && !t.desc.Format.HasStencil() {
		return nil, gpu.WrapResource(t.desc.Label, op, fmt.Errorf("%w: %s has no stencil aspect", gpu.ErrInvalidConfig, t.desc.Format))
	}

	format, _ := textureFormat(t.desc.Format)
	v, err := t.handle.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          format,
		Dimension:       viewDimension(desc.Dimension, desc.LayerCount),
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  uint32(desc.BaseLayer),
		ArrayLayerCount: uint32(desc.LayerCount),
		Aspect:          textureAspect(desc.Aspect),
	})
	if err != nil {
		return nil, gpu.WrapResource(t.desc.Label, op, err)
	}
	return &textureView{texture: t, handle: v, desc: desc}, nil
}

func (t *texture) Release() {
	if t.handle == nil {
		return
	}
	if !t.surface {
		t.handle.Release()
	}
	t.handle = nil
}

type textureView struct {
	texture *texture
	handle  *wgpu.TextureView
	desc    gpu.TextureViewDescriptor
}

func (v *textureView) Label() string {
	return v.desc.Label
}

func (v *textureView) Texture() gpu.Texture {
	return v.texture
}

func (v *textureView) Descriptor() gpu.TextureViewDescriptor {
	return v.desc
}

func (v *textureView) Release() {
	if v.handle == nil {
		return
	}
	v.handle.Release()
	v.handle = nil
}

type buffer struct {
	handle *wgpu.Buffer
	desc   gpu.BufferDescriptor
}

func (b *buffer) Label() string {
	return b.desc.Label
}

func (b *buffer) Size() uint64 {
	return b.desc.Size
}

func (b *buffer) Usage() gpu.BufferUsage {
	return b.desc.Usage
}

func (b *buffer) Release() {
	if b.handle == nil {
		return
	}
	b.handle.Release()
	b.handle = nil
}

type sampler struct {
	handle *wgpu.Sampler
	label  string
}

func (s *sampler) Label() string {
	return s.label
}

func (s *sampler) Release() {
	if s.handle == nil {
		return
	}
	s.handle.Release()
	s.handle = nil
}

type bindGroup struct {
	handle *wgpu.BindGroup
	label  string
}

func (b *bindGroup) Label() string {
	return b.label
}

func (b *bindGroup) Release() {
	if b.handle == nil {
		return
	}
	b.handle.Release()
	b.handle = nil
}
