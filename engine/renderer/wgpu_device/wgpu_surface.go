package wgpu_device

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// ErrNoSurface is returned by surface operations on a headless device.
var ErrNoSurface = errors.New("device has no surface")

// preferredSurfaceFormats are tried in order; the first one the surface offers wins.
var preferredSurfaceFormats = []gpu.Format{
	gpu.FormatBGRA8UnormSrgb,
	gpu.FormatRGBA8UnormSrgb,
	gpu.FormatBGRA8Unorm,
	gpu.FormatRGBA8Unorm,
}

// surfaceFrame is the swapchain image acquired for the current frame.
type surfaceFrame struct {
	texture *texture
	view    *textureView
}

func (f *surfaceFrame) release() {
	f.view.Release()
	if f.texture.handle != nil {
		f.texture.handle.Release()
		f.texture.handle = nil
	}
}

// ConfigureSurface (re)configures the swapchain for a new size and picks its format.
//
// Parameters:
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//
// Returns:
//   - gpu.Format: the chosen presentation format
//   - error: ErrNoSurface on a headless device, gpu.ErrInvalidConfig for an empty size
func (d *Device) ConfigureSurface(width, height int) (gpu.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil {
		return gpu.FormatUndefined, ErrNoSurface
	}
	if d.err != nil {
		return gpu.FormatUndefined, d.err
	}
	if width <= 0 || height <= 0 {
		return gpu.FormatUndefined, fmt.Errorf("%w: surface size %dx%d", gpu.ErrInvalidConfig, width, height)
	}

	capabilities := d.surface.GetCapabilities(d.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return gpu.FormatUndefined, fmt.Errorf("%w: surface reports no formats", gpu.ErrUnsupported)
	}
	native, format := pickSurfaceFormat(capabilities.Formats)
	if format == gpu.FormatUndefined {
		return gpu.FormatUndefined, fmt.Errorf("%w: no usable surface format", gpu.ErrUnsupported)
	}

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      native,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	d.surfaceFormat = format
	d.surfaceWidth, d.surfaceHeight = width, height

	d.log.Info("surface configured",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Stringer("format", format))
	return format, nil
}

func pickSurfaceFormat(offered []wgpu.TextureFormat) (wgpu.TextureFormat, gpu.Format) {
	for _, want := range preferredSurfaceFormats {
		native, _ := textureFormat(want)
		for _, f := range offered {
			if f == native {
				return native, want
			}
		}
	}
	for _, f := range offered {
		if g, ok := formatFromWGPU(f); ok && !g.IsDepth() {
			return f, g
		}
	}
	return offered[0], gpu.FormatUndefined
}

// SurfaceFormat returns the format chosen by the last ConfigureSurface.
//
// Returns:
//   - gpu.Format: the presentation format, or FormatUndefined before configuration
func (d *Device) SurfaceFormat() gpu.Format {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surfaceFormat
}

// Acquire takes the next swapchain image and returns a render target view over it. The view is
// valid until Present.
//
// Returns:
//   - gpu.TextureView: the presentation target for this frame
//   - error: ErrNoSurface, an unconfigured surface, or a lost device
func (d *Device) Acquire() (gpu.TextureView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil {
		return nil, ErrNoSurface
	}
	if d.err != nil {
		return nil, d.err
	}
	if d.surfaceFormat == gpu.FormatUndefined {
		return nil, fmt.Errorf("%w: surface not configured", gpu.ErrInvalidConfig)
	}
	if d.frame != nil {
		return d.frame.view, nil
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("acquire surface texture: %w", err)
	}
	handle, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, fmt.Errorf("create surface view: %w", err)
	}

	tex := &texture{
		device:  d,
		handle:  surfaceTexture,
		surface: true,
		desc: gpu.TextureDescriptor{
			Label:       "surface",
			Width:       d.surfaceWidth,
			Height:      d.surfaceHeight,
			ArrayLayers: 1,
			SampleCount: 1,
			Format:      d.surfaceFormat,
			Usage:       gpu.BindRenderTarget,
		},
	}
	d.frame = &surfaceFrame{
		texture: tex,
		view: &textureView{
			texture: tex,
			handle:  handle,
			desc:    gpu.TextureViewDescriptor{Label: "surface", Dimension: gpu.ViewDimension2D, LayerCount: 1},
		},
	}
	return d.frame.view, nil
}

// Present shows the acquired swapchain image and releases the frame's view. It does nothing
// when no image was acquired.
func (d *Device) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frame == nil {
		return
	}
	d.surface.Present()
	d.frame.release()
	d.frame = nil
}
