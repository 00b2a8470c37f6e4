// Package wgpu_device implements gpu.Device on WebGPU through cogentcore/webgpu. A Device owns
// the instance, adapter, logical device and queue, and optionally a presentation surface that
// the host acquires a target view from each frame.
package wgpu_device

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// Backend is the name the device reports in its capabilities.
const Backend = "wgpu"

// Device is the WebGPU implementation of gpu.Device.
type Device struct {
	mu  *sync.Mutex
	log *zap.Logger

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	limits   wgpu.Limits

	forceFallbackAdapter bool
	presentMode          wgpu.PresentMode
	sampleCounts         []int
	depthStencil         bool

	surfaceFormat gpu.Format
	surfaceWidth  int
	surfaceHeight int
	frame         *surfaceFrame

	err      error
	released bool
}

var _ gpu.Device = &Device{}

// New creates a device. When surfaceDescriptor is nil the device is headless and Acquire fails;
// otherwise the adapter is chosen to be compatible with the surface.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, typically from the window, or nil
//   - opts: variadic list of DeviceBuilderOption functions
//
// Returns:
//   - *Device: the new device
//   - error: an error wrapping gpu.ErrUnsupported if no adapter or device could be obtained
func New(surfaceDescriptor *wgpu.SurfaceDescriptor, opts ...DeviceBuilderOption) (*Device, error) {
	runtime.LockOSThread()
	d := &Device{
		mu:           &sync.Mutex{},
		log:          logger.Named("wgpu_device"),
		instance:     wgpu.CreateInstance(nil),
		presentMode:  wgpu.PresentModeFifo,
		sampleCounts: []int{1, 4},
	}
	for _, opt := range opts {
		opt(d)
	}

	if surfaceDescriptor != nil {
		d.surface = d.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("%w: request adapter: %v", gpu.ErrUnsupported, err)
	}
	d.adapter = a

	// Without depth32float-stencil8 the renderer keeps float depth and drops the stencil.
	var features []wgpu.FeatureName
	if a.HasFeature(wgpu.FeatureNameDepth32FloatStencil8) {
		features = append(features, wgpu.FeatureNameDepth32FloatStencil8)
		d.depthStencil = true
	}

	// The lighting pass binds frame, G-buffer and output groups; the default limits cover it.
	d.limits = wgpu.DefaultLimits()
	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "oxy-deferred",
		RequiredFeatures: features,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: d.limits,
		},
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("%w: request device: %v", gpu.ErrUnsupported, err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	d.log.Info("wgpu device created",
		zap.Bool("surface", d.surface != nil),
		zap.Bool("fallback_adapter", d.forceFallbackAdapter),
		zap.Bool("depth_stencil", d.depthStencil),
		zap.Ints("sample_counts", d.sampleCounts),
		zap.Uint32("max_compute_invocations", d.limits.MaxComputeInvocationsPerWorkgroup))
	return d, nil
}

func (d *Device) Capabilities() gpu.Capabilities {
	return gpu.Capabilities{
		Backend:               Backend,
		Compute:               true,
		DepthStencil:          d.depthStencil,
		SampleCounts:          append([]int(nil), d.sampleCounts...),
		MaxComputeInvocations: min(int(d.limits.MaxComputeInvocationsPerWorkgroup), light.MaxTileInvocations),
	}
}

// Lose marks the device lost. Every later call fails with an error wrapping gpu.ErrDeviceLost.
//
// Parameters:
//   - reason: a description of the loss
func (d *Device) Lose(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lose(reason)
}

func (d *Device) lose(reason string) {
	if d.err != nil {
		return
	}
	d.err = fmt.Errorf("%w: %s", gpu.ErrDeviceLost, reason)
	d.log.Error("device lost", zap.String("reason", reason))
}

func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Device) check(resource, op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return &gpu.ResourceError{Resource: resource, Op: op, Err: d.err}
	}
	if d.released {
		return &gpu.ResourceError{Resource: resource, Op: op, Err: gpu.ErrReleased}
	}
	return nil
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	if d.frame != nil {
		d.frame.release()
		d.frame = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
	d.log.Info("wgpu device released")
}

func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	const op = "create texture"
	if err := d.check(desc.Label, op); err != nil {
		return nil, err
	}
	if desc.ArrayLayers == 0 {
		desc.ArrayLayers = 1
	}
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: size %dx%d", gpu.ErrInvalidConfig, desc.Width, desc.Height))
	}
	format, ok := textureFormat(desc.Format)
	if !ok {
		return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: format %s", gpu.ErrUnsupported, desc.Format))
	}
	if !d.Capabilities().SupportsSampleCount(desc.SampleCount) {
		return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: %d samples", gpu.ErrUnsupported, desc.SampleCount))
	}

	t, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: uint32(desc.ArrayLayers),
		},
		MipLevelCount: 1,
		SampleCount:   uint32(desc.SampleCount),
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage, desc.Format),
	})
	if err != nil {
		return nil, gpu.WrapResource(desc.Label, op, err)
	}
	return &texture{device: d, handle: t, desc: desc}, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	const op = "create buffer"
	if err := d.check(desc.Label, op); err != nil {
		return nil, err
	}
	if desc.Size == 0 {
		return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: zero size", gpu.ErrInvalidConfig))
	}
	// WebGPU requires sizes in multiples of four for mapped and copied ranges.
	size := (desc.Size + 3) &^ 3
	b, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, gpu.WrapResource(desc.Label, op, err)
	}
	return &buffer{handle: b, desc: desc}, nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	const op = "create sampler"
	if err := d.check(desc.Label, op); err != nil {
		return nil, err
	}
	mode := addressMode(desc.AddressMode)
	s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  mode,
		AddressModeV:  mode,
		AddressModeW:  mode,
		MagFilter:     filterMode(desc.Filter),
		MinFilter:     filterMode(desc.Filter),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, gpu.WrapResource(desc.Label, op, err)
	}
	return &sampler{handle: s, label: desc.Label}, nil
}

func (d *Device) CreateBindGroup(desc gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	const op = "create bind group"
	if err := d.check(desc.Label, op); err != nil {
		return nil, err
	}
	layouts, ok := desc.Pipeline.(interface{ wgpuLayout(group int) *wgpu.BindGroupLayout })
	if !ok {
		return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: pipeline %q belongs to another device", gpu.ErrInvalidConfig, desc.Pipeline.Label()))
	}
	layout, _ := desc.Pipeline.BindGroupLayout(desc.Group)
	handle := layouts.wgpuLayout(desc.Group)
	if handle == nil {
		return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: pipeline %q has no group %d", gpu.ErrInvalidConfig, desc.Pipeline.Label(), desc.Group))
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		le, ok := layout.Entry(e.Binding)
		if !ok {
			return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: group %d has no binding %d", gpu.ErrInvalidConfig, desc.Group, e.Binding))
		}
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch le.Type {
		case gpu.BindingTypeUniformBuffer, gpu.BindingTypeStorageBuffer, gpu.BindingTypeReadOnlyStorageBuffer:
			b, ok := e.Buffer.(*buffer)
			if !ok || b.handle == nil {
				return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: binding %d (%s) needs a live buffer", gpu.ErrInvalidConfig, e.Binding, le.Role))
			}
			entry.Buffer = b.handle
			entry.Offset = e.Offset
			entry.Size = wgpu.WholeSize
			if e.Size != 0 {
				entry.Size = e.Size
			}
		case gpu.BindingTypeTexture, gpu.BindingTypeStorageTexture:
			v, ok := e.TextureView.(*textureView)
			if !ok || v.handle == nil {
				return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: binding %d (%s) needs a live texture view", gpu.ErrInvalidConfig, e.Binding, le.Role))
			}
			entry.TextureView = v.handle
		case gpu.BindingTypeSampler:
			s, ok := e.Sampler.(*sampler)
			if !ok || s.handle == nil {
				return nil, gpu.WrapResource(desc.Label, op, fmt.Errorf("%w: binding %d (%s) needs a live sampler", gpu.ErrInvalidConfig, e.Binding, le.Role))
			}
			entry.Sampler = s.handle
		}
		entries = append(entries, entry)
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  handle,
		Entries: entries,
	})
	if err != nil {
		return nil, gpu.WrapResource(desc.Label, op, err)
	}
	return &bindGroup{handle: bg, label: desc.Label}, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*buffer)
	if !ok || b.handle == nil {
		return &gpu.ResourceError{Resource: buf.Label(), Op: "write buffer", Err: gpu.ErrReleased}
	}
	if err := d.check(b.desc.Label, "write buffer"); err != nil {
		return err
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return gpu.WrapResource(b.desc.Label, "write buffer",
			fmt.Errorf("%w: %d bytes at %d exceed %d", gpu.ErrInvalidConfig, len(data), offset, b.desc.Size))
	}
	if len(data) == 0 {
		return nil
	}
	// Queue writes must be four-byte multiples.
	if pad := len(data) % 4; pad != 0 {
		data = append(append([]byte(nil), data...), make([]byte, 4-pad)...)
	}
	d.queue.WriteBuffer(b.handle, offset, data)
	return nil
}

func (d *Device) WriteTexture(tex gpu.Texture, layer int, data []byte) error {
	const op = "write texture"
	t, ok := tex.(*texture)
	if !ok || t.handle == nil {
		return &gpu.ResourceError{Resource: tex.Label(), Op: op, Err: gpu.ErrReleased}
	}
	if err := d.check(t.desc.Label, op); err != nil {
		return err
	}
	bpp := t.desc.Format.TexelSize()
	want := t.desc.Width * t.desc.Height * bpp
	if bpp == 0 || len(data) != want || layer < 0 || layer >= t.desc.ArrayLayers || t.desc.SampleCount != 1 {
		return gpu.WrapResource(t.desc.Label, op,
			fmt.Errorf("%w: %d bytes for layer %d, want %d", gpu.ErrInvalidConfig, len(data), layer, want))
	}
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.handle,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: uint32(layer)},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(t.desc.Width * bpp),
			RowsPerImage: uint32(t.desc.Height),
		},
		&wgpu.Extent3D{
			Width:              uint32(t.desc.Width),
			Height:             uint32(t.desc.Height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	const op = "create command encoder"
	if err := d.check(label, op); err != nil {
		return nil, err
	}
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, gpu.WrapResource(label, op, err)
	}
	return &commandEncoder{device: d, handle: enc, label: label}, nil
}
