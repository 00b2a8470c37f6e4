package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// litTextureFormat is the accumulation format of the per-pixel lit texture.
const litTextureFormat = gpu.FormatRGBA16Float

// perPixelLighting shades every active light in one fragment invocation per pixel (or per
// sample) of a single full-screen triangle. Only pixels covered by the G-buffer pass are shaded.
type perPixelLighting struct {
	inputs   lightingInputs
	pipeline pipeline.Pipeline

	lit     *gpu.Texture2D
	depthRO gpu.TextureView
}

func (l *perPixelLighting) strategy() Strategy { return StrategyPerPixel }

func (l *perPixelLighting) pipelines(r *renderer) ([]pipeline.Pipeline, error) {
	entry := shader.EntryLighting
	if r.sampleCount > 1 {
		entry = shader.EntryLightingPerSample
	}
	vs, fs, err := renderStages(shader.ProgramLightingPerPixel, shader.EntryFullscreenVertex, entry, r.defines())
	if err != nil {
		return nil, err
	}
	composite, err := compositePipeline(r, shader.ProgramCompositeTexture)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithColorTargets(litTextureFormat),
		pipeline.WithDepthFormat(r.depthFormat()),
		pipeline.WithDepthWriteEnabled(false),
		pipeline.WithCullMode(gpu.CullModeNone),
		pipeline.WithSampleCount(r.sampleCount),
	}
	if r.stencil {
		opts = append(opts,
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithStencil(gpu.StencilFaceState{Compare: gpu.CompareFunctionEqual}),
			pipeline.WithStencilMasks(0xff, 0),
		)
	} else {
		// The triangle sits at depth 0, so Less passes exactly where geometry was written.
		opts = append(opts, pipeline.WithDepthCompare(gpu.CompareFunctionLess))
	}
	l.pipeline = pipeline.NewPipeline(KeyLightingPerPixel, pipeline.PipelineTypeRender, opts...)
	return []pipeline.Pipeline{l.pipeline, composite}, nil
}

func (l *perPixelLighting) allocate(r *renderer, gb *GBuffer) error {
	lit, err := gpu.NewTexture2D(r.device,
		gpu.WithLabel("lighting.lit_texture"),
		gpu.WithSize(r.width, r.height),
		gpu.WithFormat(litTextureFormat),
		gpu.WithSampleCount(r.sampleCount),
		gpu.WithBindFlags(gpu.BindRenderTarget|gpu.BindShaderResource),
	)
	if err != nil {
		return err
	}
	l.lit = lit
	l.depthRO = gb.Depth.ReadOnlyDepthStencilView(0)
	return l.inputs.bindGBuffer(r.device, l.pipeline.Pipeline(), gb)
}

func (l *perPixelLighting) bindLights(r *renderer, lights gpu.Buffer) error {
	return l.inputs.bindLights(r.device, l.pipeline.Pipeline(), lights)
}

func (l *perPixelLighting) bindComposite(p bind_group_provider.BindGroupProvider) {
	p.SetTextureView(string(shader.RoleLitTexture), l.lit.ShaderResource())
}

func (l *perPixelLighting) record(enc gpu.CommandEncoder, r *renderer, lightCount int) ([3]int, error) {
	pass, err := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label: "lighting.per_pixel",
		ColorAttachments: []gpu.RenderPassColorAttachment{
			{View: l.lit.RenderTargetView(0), LoadOp: gpu.LoadOpClear},
		},
		DepthStencilAttachment: &gpu.RenderPassDepthStencilAttachment{View: l.depthRO},
	})
	if err != nil {
		return [3]int{}, err
	}
	if lightCount > 0 {
		pass.SetPipeline(l.pipeline.RenderPipeline())
		pass.SetStencilReference(gbufferStencilRef)
		pass.SetBindGroup(0, l.inputs.frame.BindGroup())
		pass.SetBindGroup(1, l.inputs.gbuffer.BindGroup())
		pass.Draw(3, 1)
	}
	pass.ClearBindings()
	return [3]int{}, pass.End()
}

func (l *perPixelLighting) targets(t *Targets) {
	t.LitTexture = l.lit
}

func (l *perPixelLighting) releaseTargets() {
	l.inputs.gbuffer.Release()
	l.depthRO = nil
	l.lit.Release()
	l.lit = nil
}

func (l *perPixelLighting) release() {
	l.releaseTargets()
	l.inputs.release()
}
