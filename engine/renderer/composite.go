package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

// compositeStage draws the skybox over the full presentation target and resolves each pixel to
// the sky color or the tonemapped lit color, depending on whether the G-buffer pass wrote depth.
type compositeStage struct {
	frame  bind_group_provider.BindGroupProvider
	inputs bind_group_provider.BindGroupProvider

	sky   gpu.TextureView
	dirty bool
}

func newCompositeStage(r *renderer) *compositeStage {
	return &compositeStage{
		frame: bind_group_provider.NewBindGroupProvider("composite.frame",
			bind_group_provider.WithGroup(0),
			bind_group_provider.WithBuffer(string(shader.RoleFrameConstants), r.frame.Buffer()),
		),
		inputs: bind_group_provider.NewBindGroupProvider("composite.inputs",
			bind_group_provider.WithGroup(1),
			bind_group_provider.WithSampler(string(shader.RoleLinearSampler), r.skySampler),
		),
		dirty: true,
	}
}

// bindFrame creates the group 0 binding against the composite pipeline.
func (c *compositeStage) bindFrame(r *renderer) error {
	return c.frame.Init(r.device, r.pipelineCache[KeyComposite].Pipeline())
}

// invalidate forces group 1 to be rebuilt on the next frame.
func (c *compositeStage) invalidate() {
	c.inputs.Release()
	c.sky = nil
	c.dirty = true
}

// prepare rebuilds group 1 when the lit output, the depth buffer or the skybox changed.
func (c *compositeStage) prepare(r *renderer, sky *gpu.Texture2D) error {
	view := sky.ShaderResource()
	if !c.dirty && view == c.sky {
		return nil
	}
	c.inputs.SetTextureView(string(shader.RoleDepth), r.gbuffer.Depth.ShaderResource())
	c.inputs.SetTextureView(string(shader.RoleSkybox), view)
	r.lighting.bindComposite(c.inputs)
	if err := c.inputs.Init(r.device, r.pipelineCache[KeyComposite].Pipeline()); err != nil {
		return err
	}
	c.sky = view
	c.dirty = false
	return nil
}

func (c *compositeStage) record(enc gpu.CommandEncoder, r *renderer, target gpu.TextureView, skybox scene.Mesh) error {
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label: "composite",
		ColorAttachments: []gpu.RenderPassColorAttachment{
			{View: target, LoadOp: gpu.LoadOpClear},
		},
	})
	if err != nil {
		return err
	}
	pass.SetPipeline(r.pipelineCache[KeyComposite].RenderPipeline())
	pass.SetBindGroup(0, c.frame.BindGroup())
	pass.SetBindGroup(1, c.inputs.BindGroup())
	rerr := skybox.Render(pass, nil, false)
	pass.ClearBindings()
	if err := pass.End(); err != nil {
		return err
	}
	return rerr
}

func (c *compositeStage) release() {
	c.frame.Release()
	c.inputs.Release()
	c.sky = nil
	c.dirty = true
}
