package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// tiledLighting culls lights per screen tile in one compute dispatch and writes every sample
// into a flat buffer of packed RGBA16 elements.
type tiledLighting struct {
	inputs   lightingInputs
	pipeline pipeline.Pipeline

	lit    *gpu.StructuredBuffer[light.FramebufferFlatElement]
	output bind_group_provider.BindGroupProvider
}

func (l *tiledLighting) strategy() Strategy { return StrategyTiled }

func (l *tiledLighting) pipelines(r *renderer) ([]pipeline.Pipeline, error) {
	if !r.device.Capabilities().Compute {
		return nil, fmt.Errorf("%w: %s lighting needs compute support", gpu.ErrUnsupported, StrategyTiled)
	}
	cs, err := shader.NewShader(shader.ProgramLightingTiled, shader.ShaderTypeCompute, shader.EntryTiled, r.defines())
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", shader.ProgramLightingTiled, shader.EntryTiled, err)
	}
	composite, err := compositePipeline(r, shader.ProgramCompositeBuffer)
	if err != nil {
		return nil, err
	}
	l.pipeline = pipeline.NewPipeline(KeyLightingTiled, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(cs))
	return []pipeline.Pipeline{l.pipeline, composite}, nil
}

func (l *tiledLighting) allocate(r *renderer, gb *GBuffer) error {
	w, h := r.width, r.height
	lit, err := gpu.NewStructuredBuffer[light.FramebufferFlatElement](r.device, litElements(w, h, r.sampleCount),
		gpu.WithLabel("lighting.lit_buffer"),
		gpu.WithBindFlags(gpu.BindUnorderedAccess|gpu.BindCopySrc),
	)
	if err != nil {
		return err
	}
	l.lit = lit

	if err := l.inputs.bindGBuffer(r.device, l.pipeline.Pipeline(), gb); err != nil {
		return err
	}
	l.output = bind_group_provider.NewBindGroupProvider("lighting.output",
		bind_group_provider.WithGroup(2),
		bind_group_provider.WithBuffer(string(shader.RoleLitBuffer), lit.UnorderedAccess()),
	)
	return l.output.Init(r.device, l.pipeline.Pipeline())
}

func (l *tiledLighting) bindLights(r *renderer, lights gpu.Buffer) error {
	return l.inputs.bindLights(r.device, l.pipeline.Pipeline(), lights)
}

func (l *tiledLighting) bindComposite(p bind_group_provider.BindGroupProvider) {
	p.SetBuffer(string(shader.RoleLitBuffer), l.lit.Buffer())
}

func (l *tiledLighting) record(enc gpu.CommandEncoder, r *renderer, lightCount int) ([3]int, error) {
	if err := enc.ClearBuffer(l.lit.Buffer(), 0, 0); err != nil {
		return [3]int{}, gpu.WrapResource(l.lit.Label(), "clear", err)
	}

	tx, ty := light.TileCounts(r.width, r.height, r.tileDim)
	dispatch := [3]int{tx, ty, 1}

	pass, err := enc.BeginComputePass("lighting.tiled")
	if err != nil {
		return dispatch, err
	}
	pass.SetPipeline(l.pipeline.ComputePipeline())
	pass.SetBindGroup(0, l.inputs.frame.BindGroup())
	pass.SetBindGroup(1, l.inputs.gbuffer.BindGroup())
	pass.SetBindGroup(2, l.output.BindGroup())
	pass.Dispatch(dispatch[0], dispatch[1], dispatch[2])
	pass.ClearBindings()
	return dispatch, pass.End()
}

func (l *tiledLighting) targets(t *Targets) {
	t.LitBuffer = l.lit
}

func (l *tiledLighting) releaseTargets() {
	if l.output != nil {
		l.output.Release()
		l.output = nil
	}
	l.inputs.gbuffer.Release()
	l.lit.Release()
	l.lit = nil
}

func (l *tiledLighting) release() {
	l.releaseTargets()
	l.inputs.release()
}
