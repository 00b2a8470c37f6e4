package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// Pipeline cache keys.
const (
	KeyGBufferOpaque    = "gbuffer.opaque"
	KeyGBufferAlphaTest = "gbuffer.alpha_test"
	KeyLightingTiled    = "lighting.tiled"
	KeyLightingPerPixel = "lighting.per_pixel"
	KeyComposite        = "composite"
)

// defines returns the macro set every program is compiled with.
func (r *renderer) defines() shader.Defines {
	return shader.NewDefines(r.sampleCount, r.tileDim, r.maxLights)
}

// depthFormat returns the G-buffer depth format.
func (r *renderer) depthFormat() gpu.Format {
	if r.stencil {
		return gpu.FormatDepth32FloatStencil8
	}
	return gpu.FormatDepth32Float
}

// renderStages compiles the vertex and fragment entry points of one program.
func renderStages(program, vertexEntry, fragmentEntry string, defines shader.Defines) (vs, fs shader.Shader, err error) {
	if vs, err = shader.NewShader(program, shader.ShaderTypeVertex, vertexEntry, defines); err != nil {
		return nil, nil, fmt.Errorf("%s/%s: %w", program, vertexEntry, err)
	}
	if fs, err = shader.NewShader(program, shader.ShaderTypeFragment, fragmentEntry, defines); err != nil {
		return nil, nil, fmt.Errorf("%s/%s: %w", program, fragmentEntry, err)
	}
	return vs, fs, nil
}

// gbufferPipelines returns the opaque (back-face culled) and alpha-tested (double-sided)
// geometry pipelines. Both write every G-buffer target, test and write depth with the
// complementary GreaterEqual compare, and mark coverage in the stencil when available.
func gbufferPipelines(r *renderer) ([]pipeline.Pipeline, error) {
	defines := r.defines()
	vs, opaque, err := renderStages(shader.ProgramGBuffer, shader.EntryGBufferVertex, shader.EntryGBufferOpaque, defines)
	if err != nil {
		return nil, err
	}
	alphaTest, err := shader.NewShader(shader.ProgramGBuffer, shader.ShaderTypeFragment, shader.EntryGBufferAlphaTest, defines)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", shader.ProgramGBuffer, shader.EntryGBufferAlphaTest, err)
	}

	base := []pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithColorTargets(gbufferFormats...),
		pipeline.WithDepthFormat(r.depthFormat()),
		pipeline.WithDepthCompare(gpu.CompareFunctionGreaterEqual),
		pipeline.WithSampleCount(r.sampleCount),
	}
	if r.stencil {
		base = append(base, pipeline.WithStencil(gpu.StencilFaceState{
			Compare: gpu.CompareFunctionAlways,
			PassOp:  gpu.StencilOperationReplace,
		}))
	}

	return []pipeline.Pipeline{
		pipeline.NewPipeline(KeyGBufferOpaque, pipeline.PipelineTypeRender, append(base[:len(base):len(base)],
			pipeline.WithFragmentShader(opaque),
			pipeline.WithCullMode(gpu.CullModeBack),
		)...),
		pipeline.NewPipeline(KeyGBufferAlphaTest, pipeline.PipelineTypeRender, append(base[:len(base):len(base)],
			pipeline.WithFragmentShader(alphaTest),
			pipeline.WithCullMode(gpu.CullModeNone),
		)...),
	}, nil
}

// compositePipeline returns the sky/tonemap pipeline reading the lit output through program.
// It renders single-sampled into the presentation target without a depth attachment.
func compositePipeline(r *renderer, program string) (pipeline.Pipeline, error) {
	vs, fs, err := renderStages(program, shader.EntrySkyboxVertex, shader.EntryComposite, r.defines())
	if err != nil {
		return nil, err
	}
	return pipeline.NewPipeline(KeyComposite, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithColorTargets(r.outputFormat),
		pipeline.WithCullMode(gpu.CullModeNone),
		pipeline.WithSampleCount(1),
	), nil
}
