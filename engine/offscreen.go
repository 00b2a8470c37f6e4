package engine

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// Offscreen is a Presenter that renders into a texture instead of a window surface. It backs
// headless runs on the soft device and tests of the render loop.
type Offscreen struct {
	device    gpu.Device
	format    gpu.Format
	target    *gpu.Texture2D
	presented int
}

var _ Presenter = &Offscreen{}

// NewOffscreen creates an unconfigured offscreen presenter.
//
// Parameters:
//   - device: the device that owns the target
//   - format: the color format of the target, matching the renderer's output format
//
// Returns:
//   - *Offscreen: the presenter
func NewOffscreen(device gpu.Device, format gpu.Format) *Offscreen {
	return &Offscreen{device: device, format: format}
}

func (o *Offscreen) ConfigureSurface(width, height int) (gpu.Format, error) {
	if o.target != nil && o.target.Width() == width && o.target.Height() == height {
		return o.format, nil
	}
	target, err := gpu.NewTexture2D(o.device,
		gpu.WithLabel("offscreen"),
		gpu.WithSize(width, height),
		gpu.WithFormat(o.format),
		gpu.WithBindFlags(gpu.BindRenderTarget|gpu.BindCopySrc),
	)
	if err != nil {
		return gpu.FormatUndefined, err
	}
	o.Release()
	o.target = target
	return o.format, nil
}

func (o *Offscreen) Acquire() (gpu.TextureView, error) {
	if o.target == nil {
		return nil, fmt.Errorf("%w: offscreen target not configured", gpu.ErrInvalidConfig)
	}
	return o.target.RenderTargetView(0), nil
}

func (o *Offscreen) Present() {
	o.presented++
}

// Target returns the texture frames are rendered into, or nil before ConfigureSurface.
//
// Returns:
//   - *gpu.Texture2D: the current target
func (o *Offscreen) Target() *gpu.Texture2D {
	return o.target
}

// Presented returns how many frames were presented.
//
// Returns:
//   - int: the frame count
func (o *Offscreen) Presented() int {
	return o.presented
}

// Release frees the target texture.
func (o *Offscreen) Release() {
	if o.target != nil {
		o.target.Release()
		o.target = nil
	}
}
