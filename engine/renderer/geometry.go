package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

// geometryStage records the G-buffer pass: opaque geometry first, then alpha-tested geometry.
type geometryStage struct {
	frames    map[string]bind_group_provider.BindGroupProvider
	materials *materialBinder
}

func newGeometryStage(r *renderer) *geometryStage {
	g := &geometryStage{
		frames:    make(map[string]bind_group_provider.BindGroupProvider, 2),
		materials: newMaterialBinder(r.device, r.materialSampler),
	}
	for _, key := range []string{KeyGBufferOpaque, KeyGBufferAlphaTest} {
		g.frames[key] = bind_group_provider.NewBindGroupProvider(key+".frame",
			bind_group_provider.WithGroup(0),
			bind_group_provider.WithBuffer(string(shader.RoleFrameConstants), r.frame.Buffer()),
		)
	}
	return g
}

// bindFrame creates the group 0 binding of each geometry pipeline.
func (g *geometryStage) bindFrame(r *renderer) error {
	for key, p := range g.frames {
		if err := p.Init(r.device, r.pipelineCache[key].Pipeline()); err != nil {
			return err
		}
	}
	return nil
}

func (g *geometryStage) record(enc gpu.CommandEncoder, r *renderer, s scene.Scene) error {
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:            "gbuffer",
		ColorAttachments: r.gbuffer.ColorAttachments(),
		DepthStencilAttachment: &gpu.RenderPassDepthStencilAttachment{
			View:            r.gbuffer.Depth.DepthStencilView(0),
			DepthLoadOp:     gpu.LoadOpClear,
			DepthClearValue: 0,
			StencilLoadOp:   gpu.LoadOpClear,
		},
	})
	if err != nil {
		return err
	}

	draws := []struct {
		key  string
		mesh scene.Mesh
	}{
		{KeyGBufferOpaque, s.OpaqueMesh()},
		{KeyGBufferAlphaTest, s.AlphaTestMesh()},
	}
	useVisibility := !s.CullingDisabled()
	var rerr error
	for _, d := range draws {
		if d.mesh == nil || !d.mesh.Loaded() {
			continue
		}
		p := r.pipelineCache[d.key]
		pass.SetPipeline(p.RenderPipeline())
		pass.SetStencilReference(gbufferStencilRef)
		pass.SetBindGroup(0, g.frames[d.key].BindGroup())
		g.materials.use(p)
		if rerr = d.mesh.Render(pass, g.materials, useVisibility); rerr != nil {
			break
		}
	}
	pass.ClearBindings()
	if err := pass.End(); err != nil {
		return err
	}
	return rerr
}

func (g *geometryStage) release() {
	g.materials.reset()
	for _, p := range g.frames {
		p.Release()
	}
}
