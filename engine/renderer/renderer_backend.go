package renderer

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// Strategy selects how the lighting resolve turns the G-buffer into lit color.
type Strategy int

const (
	// StrategyTiled culls lights per screen tile on the compute unit and writes a flat buffer
	// of packed RGBA16 elements. This is the default.
	StrategyTiled Strategy = iota

	// StrategyPerPixel draws one full-screen triangle whose fragments loop over every active
	// light, limited to G-buffer coverage by the stencil (or depth) test.
	StrategyPerPixel
)

func (s Strategy) String() string {
	switch s {
	case StrategyTiled:
		return "tiled"
	case StrategyPerPixel:
		return "per_pixel"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration value into a Strategy.
//
// Parameters:
//   - s: "tiled" or "per_pixel" (case-insensitive, "per-pixel" also accepted)
//
// Returns:
//   - Strategy: the parsed strategy
//   - error: an error wrapping gpu.ErrInvalidConfig for unknown values
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "tiled", "":
		return StrategyTiled, nil
	case "per_pixel":
		return StrategyPerPixel, nil
	default:
		return 0, fmt.Errorf("%w: unknown lighting strategy %q", gpu.ErrInvalidConfig, s)
	}
}

// lightingBackend is one variant of the lighting resolve. Both variants read the same inputs:
// frame constants and lights in group 0 and the G-buffer in group 1. They differ only in the
// lit output and the pass that writes it.
type lightingBackend interface {
	// strategy returns the variant tag.
	strategy() Strategy

	// pipelines returns the lighting pipeline and the composite pipeline matching its output,
	// unbuilt.
	pipelines(r *renderer) ([]pipeline.Pipeline, error)

	// allocate creates the resolution-dependent lit output and binds the G-buffer.
	allocate(r *renderer, gb *GBuffer) error

	// bindLights rebinds group 0 after the light buffer changed.
	bindLights(r *renderer, lights gpu.Buffer) error

	// bindComposite attaches the lit output to the composite inputs provider.
	bindComposite(p bind_group_provider.BindGroupProvider)

	// record clears the lit output and resolves lighting for lightCount lights.
	record(enc gpu.CommandEncoder, r *renderer, lightCount int) (dispatch [3]int, err error)

	// targets reports the lit output.
	targets(t *Targets)

	// releaseTargets frees the lit output and the bind groups referring to it.
	releaseTargets()

	// release frees everything, including the group 0 binding.
	release()
}

// lightingInputs are the bindings shared by both lighting variants.
type lightingInputs struct {
	frame   bind_group_provider.BindGroupProvider
	gbuffer bind_group_provider.BindGroupProvider
}

func newLightingInputs(r *renderer) lightingInputs {
	return lightingInputs{
		frame: bind_group_provider.NewBindGroupProvider("lighting.frame",
			bind_group_provider.WithGroup(0),
			bind_group_provider.WithBuffer(string(shader.RoleFrameConstants), r.frame.Buffer()),
		),
		gbuffer: bind_group_provider.NewBindGroupProvider("lighting.gbuffer",
			bind_group_provider.WithGroup(1),
		),
	}
}

func (in *lightingInputs) bindGBuffer(device gpu.Device, p gpu.Pipeline, gb *GBuffer) error {
	in.gbuffer.SetTextureView(string(shader.RoleGBufferNormalSpecular), gb.NormalSpecular.ShaderResource())
	in.gbuffer.SetTextureView(string(shader.RoleGBufferAlbedo), gb.Albedo.ShaderResource())
	in.gbuffer.SetTextureView(string(shader.RoleGBufferPosZGrad), gb.PosZGrad.ShaderResource())
	in.gbuffer.SetTextureView(string(shader.RoleDepth), gb.Depth.ShaderResource())
	return in.gbuffer.Init(device, p)
}

func (in *lightingInputs) bindLights(device gpu.Device, p gpu.Pipeline, lights gpu.Buffer) error {
	in.frame.SetBuffer(string(shader.RoleLights), lights)
	return in.frame.Init(device, p)
}

func (in *lightingInputs) release() {
	in.frame.Release()
	in.gbuffer.Release()
}

// newLightingBackend returns the variant for s.
func newLightingBackend(r *renderer, s Strategy) (lightingBackend, error) {
	switch s {
	case StrategyTiled:
		return &tiledLighting{inputs: newLightingInputs(r)}, nil
	case StrategyPerPixel:
		return &perPixelLighting{inputs: newLightingInputs(r)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", gpu.ErrInvalidConfig, s)
	}
}

// litElements returns the number of flat lit buffer elements for a framebuffer.
func litElements(width, height, samples int) int {
	return width * height * samples
}
