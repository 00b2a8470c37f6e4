package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// G-buffer target formats, in color attachment order.
var gbufferFormats = []gpu.Format{
	gpu.FormatRGBA16Float, // sphere-map normal, specular amount, specular power
	gpu.FormatRGBA8Unorm,  // albedo
	gpu.FormatRG16Float,   // view-space Z gradient
}

// gbufferStencilRef marks G-buffer coverage in the stencil channel.
const gbufferStencilRef = 1

// GBuffer holds the per-pixel surface attributes written by the geometry pass. Every target
// has the output resolution and the configured sample count.
type GBuffer struct {
	NormalSpecular *gpu.Texture2D
	Albedo         *gpu.Texture2D
	PosZGrad       *gpu.Texture2D
	Depth          *gpu.Depth2D
}

// NewGBuffer allocates the three color targets and the depth buffer. On failure everything
// allocated so far is released.
//
// Parameters:
//   - device: the device that owns the targets
//   - width, height: the output resolution
//   - samples: the sample count of every target
//   - stencil: true to give the depth buffer a stencil channel for coverage marking
//
// Returns:
//   - *GBuffer: the G-buffer
//   - error: the first allocation error
func NewGBuffer(device gpu.Device, width, height, samples int, stencil bool) (*GBuffer, error) {
	g := &GBuffer{}
	color := func(label string, format gpu.Format) (*gpu.Texture2D, error) {
		return gpu.NewTexture2D(device,
			gpu.WithLabel(label),
			gpu.WithSize(width, height),
			gpu.WithFormat(format),
			gpu.WithSampleCount(samples),
			gpu.WithBindFlags(gpu.BindRenderTarget|gpu.BindShaderResource),
		)
	}

	var err error
	if g.NormalSpecular, err = color("gbuffer.normal_specular", gbufferFormats[0]); err != nil {
		g.Release()
		return nil, err
	}
	if g.Albedo, err = color("gbuffer.albedo", gbufferFormats[1]); err != nil {
		g.Release()
		return nil, err
	}
	if g.PosZGrad, err = color("gbuffer.pos_zgrad", gbufferFormats[2]); err != nil {
		g.Release()
		return nil, err
	}

	depthOpts := []gpu.ResourceBuilderOption{
		gpu.WithLabel("gbuffer.depth"),
		gpu.WithSize(width, height),
		gpu.WithSampleCount(samples),
	}
	if stencil {
		depthOpts = append(depthOpts, gpu.WithStencil())
	}
	if g.Depth, err = gpu.NewDepth2D(device, depthOpts...); err != nil {
		g.Release()
		return nil, err
	}
	return g, nil
}

// ColorAttachments returns the three targets cleared to zero.
func (g *GBuffer) ColorAttachments() []gpu.RenderPassColorAttachment {
	out := make([]gpu.RenderPassColorAttachment, 0, len(gbufferFormats))
	for _, t := range []*gpu.Texture2D{g.NormalSpecular, g.Albedo, g.PosZGrad} {
		out = append(out, gpu.RenderPassColorAttachment{View: t.RenderTargetView(0), LoadOp: gpu.LoadOpClear})
	}
	return out
}

// Release frees every target. It is safe to call on a partially built G-buffer.
func (g *GBuffer) Release() {
	if g == nil {
		return
	}
	for _, t := range []*gpu.Texture2D{g.NormalSpecular, g.Albedo, g.PosZGrad} {
		t.Release()
	}
	g.Depth.Release()
	g.NormalSpecular, g.Albedo, g.PosZGrad, g.Depth = nil, nil, nil, nil
}
