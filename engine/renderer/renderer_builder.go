package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithStrategy selects the lighting strategy. The default is StrategyTiled.
//
// Parameters:
//   - s: the lighting strategy
//
// Returns:
//   - RendererBuilderOption: a function that applies the strategy option to a renderer
func WithStrategy(s Strategy) RendererBuilderOption {
	return func(r *renderer) {
		r.strategy = s
	}
}

// WithSampleCount sets the G-buffer sample count. The default is 1; the device must list the
// count in its capabilities.
//
// Parameters:
//   - n: the sample count
//
// Returns:
//   - RendererBuilderOption: a function that applies the sample count option to a renderer
func WithSampleCount(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.sampleCount = n
	}
}

// WithTileDim sets the side of a tiled lighting tile in pixels. One tile is one workgroup, so
// the side squared must fit the device's workgroup size. The default is 16.
//
// Parameters:
//   - dim: the tile side
//
// Returns:
//   - RendererBuilderOption: a function that applies the tile option to a renderer
func WithTileDim(dim int) RendererBuilderOption {
	return func(r *renderer) {
		r.tileDim = dim
	}
}

// WithMaxLights sets the light capacity the programs are compiled for. Scenes holding more
// lights are rejected by Render.
//
// Parameters:
//   - n: the light capacity
//
// Returns:
//   - RendererBuilderOption: a function that applies the light capacity option to a renderer
func WithMaxLights(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.maxLights = n
	}
}

// WithOutputFormat sets the format of the presentation target. The default is RGBA8UnormSrgb.
//
// Parameters:
//   - format: the presentation format
//
// Returns:
//   - RendererBuilderOption: a function that applies the output format option to a renderer
func WithOutputFormat(format gpu.Format) RendererBuilderOption {
	return func(r *renderer) {
		r.outputFormat = format
	}
}

// WithSize allocates the resolution-dependent resources during construction.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the size option to a renderer
func WithSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingWidth, r.pendingHeight = width, height
	}
}

// WithStencilDisabled keeps the stencil channel out of the depth buffer even when the device
// supports it. Per-pixel lighting then limits shading to G-buffer coverage with the depth test.
//
// Parameters:
//   - disabled: true to use a depth-only buffer
//
// Returns:
//   - RendererBuilderOption: a function that applies the stencil option to a renderer
func WithStencilDisabled(disabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.stencilDisabled = disabled
	}
}
