// Package soft_device implements gpu.Device on the CPU. It rasterizes triangles with
// multisampling, runs compute workgroups, and shades with Go kernels registered for each
// entry point of the renderer's WGSL programs. Work is spread over a worker pool; results are
// read back with ReadTexels, ReadStencil and ReadBuffer.
package soft_device

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
	"go.uber.org/zap"
)

// Backend is the name the device reports in its capabilities.
const Backend = "soft"

type resourceKind int

const (
	kindTexture resourceKind = iota
	kindView
	kindBuffer
	kindSampler
	kindBindGroup
	kindPipeline
	kindCount
)

// Stats counts the live resources of a Device.
type Stats struct {
	Textures   int
	Views      int
	Buffers    int
	Samplers   int
	BindGroups int
	Pipelines  int

	// Bytes is the storage held by live textures and buffers.
	Bytes uint64
}

// Live returns the total number of live resources.
func (s Stats) Live() int {
	return s.Textures + s.Views + s.Buffers + s.Samplers + s.BindGroups + s.Pipelines
}

// Device is the CPU implementation of gpu.Device.
type Device struct {
	log     *zap.Logger
	caps    gpu.Capabilities
	workers int
	pool    worker.DynamicWorkerPool

	live  [kindCount]int
	bytes uint64
	err   error

	taskID   int
	released bool
}

var _ gpu.Device = &Device{}

// New creates a soft device with every capability enabled unless an option removes it.
//
// Parameters:
//   - opts: variadic list of DeviceBuilderOption functions
//
// Returns:
//   - *Device: the new device
func New(opts ...DeviceBuilderOption) *Device {
	d := &Device{
		log:     logger.Named("soft_device"),
		workers: runtime.NumCPU(),
		caps: gpu.Capabilities{
			Backend:               Backend,
			Compute:               true,
			DepthStencil:          true,
			SampleCounts:          []int{1, 2, 4, 8},
			MaxComputeInvocations: light.MaxTileInvocations,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.workers = max(d.workers, 1)
	// Workers stay alive for the life of the device; each batch is joined with a WaitGroup.
	d.pool = worker.NewDynamicWorkerPool(d.workers, 256, time.Second)

	d.log.Info("soft device created",
		zap.Int("workers", d.workers),
		zap.Bool("compute", d.caps.Compute),
		zap.Bool("depth_stencil", d.caps.DepthStencil),
		zap.Ints("sample_counts", d.caps.SampleCounts))
	return d
}

func (d *Device) Capabilities() gpu.Capabilities {
	caps := d.caps
	caps.SampleCounts = append([]int(nil), d.caps.SampleCounts...)
	return caps
}

// Stats reports the live resources of the device.
//
// Returns:
//   - Stats: the live resource counts
func (d *Device) Stats() Stats {
	return Stats{
		Textures:   d.live[kindTexture],
		Views:      d.live[kindView],
		Buffers:    d.live[kindBuffer],
		Samplers:   d.live[kindSampler],
		BindGroups: d.live[kindBindGroup],
		Pipelines:  d.live[kindPipeline],
		Bytes:      d.bytes,
	}
}

// Lose marks the device lost. Every later call fails with an error wrapping gpu.ErrDeviceLost.
//
// Parameters:
//   - reason: a description of the loss
func (d *Device) Lose(reason string) {
	if d.err != nil {
		return
	}
	d.err = fmt.Errorf("%w: %s", gpu.ErrDeviceLost, reason)
	d.log.Error("device lost", zap.String("reason", reason))
}

func (d *Device) Err() error {
	return d.err
}

func (d *Device) Release() {
	if d.released {
		return
	}
	d.released = true
	if s := d.Stats(); s.Live() > 0 {
		d.log.Warn("device released with live resources",
			zap.Int("textures", s.Textures),
			zap.Int("views", s.Views),
			zap.Int("buffers", s.Buffers),
			zap.Int("samplers", s.Samplers),
			zap.Int("bind_groups", s.BindGroups),
			zap.Int("pipelines", s.Pipelines))
	}
	d.pool.Stop()
	d.log.Info("soft device released")
}

func (d *Device) track(k resourceKind) {
	d.live[k]++
}

func (d *Device) untrack(k resourceKind) {
	d.live[k]--
}

// parallel runs fn(0..n-1) on the worker pool and waits for every call to return.
func (d *Device) parallel(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if n == 1 || d.workers == 1 {
		for i := range n {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		d.taskID++
		d.pool.SubmitTask(worker.Task{
			ID: d.taskID,
			Do: func() (any, error) {
				defer wg.Done()
				fn(i)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	const op = "create texture"
	if d.err != nil {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: d.err}
	}
	if desc.ArrayLayers == 0 {
		desc.ArrayLayers = 1
	}
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	if desc.Width < 1 || desc.Height < 1 || desc.ArrayLayers < 1 {
		return nil, &gpu.ResourceError{
			Resource: desc.Label,
			Op:       op,
			Err:      fmt.Errorf("%w: %dx%d with %d layers", gpu.ErrInvalidConfig, desc.Width, desc.Height, desc.ArrayLayers),
		}
	}
	if desc.Format == gpu.FormatUndefined {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: fmt.Errorf("%w: undefined format", gpu.ErrInvalidConfig)}
	}
	if !d.caps.SupportsSampleCount(desc.SampleCount) {
		return nil, &gpu.ResourceError{
			Resource: desc.Label,
			Op:       op,
			Err:      fmt.Errorf("%w: sample count %d", gpu.ErrUnsupported, desc.SampleCount),
		}
	}
	if desc.Format.HasStencil() && !d.caps.DepthStencil {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: fmt.Errorf("%w: format %s", gpu.ErrUnsupported, desc.Format)}
	}

	texels := desc.ArrayLayers * desc.SampleCount * desc.Width * desc.Height
	t := &texture{
		resource: resource{dev: d, label: desc.Label, kind: kindTexture},
		desc:     desc,
		data:     make([]float32, texels*4),
	}
	if desc.Format.HasStencil() {
		t.stencil = make([]uint8, texels)
	}
	d.track(kindTexture)
	d.bytes += t.byteSize()
	return t, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	const op = "create buffer"
	if d.err != nil {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: d.err}
	}
	if desc.Size == 0 {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: fmt.Errorf("%w: zero size", gpu.ErrInvalidConfig)}
	}
	b := &buffer{
		resource: resource{dev: d, label: desc.Label, kind: kindBuffer},
		desc:     desc,
		data:     make([]byte, desc.Size),
	}
	d.track(kindBuffer)
	d.bytes += desc.Size
	return b, nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	if d.err != nil {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: "create sampler", Err: d.err}
	}
	d.track(kindSampler)
	return &sampler{resource: resource{dev: d, label: desc.Label, kind: kindSampler}, desc: desc}, nil
}

func (d *Device) CreateRenderPipeline(desc gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	const op = "create render pipeline"
	if d.err != nil {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: d.err}
	}
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	if !d.caps.SupportsSampleCount(desc.SampleCount) {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: fmt.Errorf("%w: sample count %d", gpu.ErrUnsupported, desc.SampleCount)}
	}
	if ds := desc.DepthStencil; ds != nil && ds.Format.HasStencil() && !d.caps.DepthStencil {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: fmt.Errorf("%w: format %s", gpu.ErrUnsupported, ds.Format)}
	}

	vk, ok := lookupVertexKernel(desc.Vertex)
	if !ok {
		return nil, &gpu.ResourceError{
			Resource: desc.Label,
			Op:       op,
			Err:      fmt.Errorf("%w: no vertex kernel for %s:%s", gpu.ErrUnsupported, desc.Vertex.Program, desc.Vertex.EntryPoint),
		}
	}
	var fk fragmentKernel
	if desc.Fragment != nil {
		fk, ok = lookupFragmentKernel(*desc.Fragment)
		if !ok {
			return nil, &gpu.ResourceError{
				Resource: desc.Label,
				Op:       op,
				Err:      fmt.Errorf("%w: no fragment kernel for %s:%s", gpu.ErrUnsupported, desc.Fragment.Program, desc.Fragment.EntryPoint),
			}
		}
	}

	d.track(kindPipeline)
	return &renderPipeline{
		pipeline: pipeline{resource: resource{dev: d, label: desc.Label, kind: kindPipeline}, layouts: desc.BindGroupLayouts},
		desc:     desc,
		vertex:   vk,
		fragment: fk,
	}, nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	const op = "create compute pipeline"
	if d.err != nil {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: d.err}
	}
	if !d.caps.Compute {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: fmt.Errorf("%w: compute pipelines", gpu.ErrUnsupported)}
	}
	ws := desc.WorkgroupSize
	invocations := int(ws[0]) * int(ws[1]) * int(ws[2])
	if invocations < 1 || invocations > d.caps.MaxComputeInvocations {
		return nil, &gpu.ResourceError{
			Resource: desc.Label,
			Op:       op,
			Err:      fmt.Errorf("%w: workgroup of %d invocations", gpu.ErrUnsupported, invocations),
		}
	}
	ck, ok := lookupComputeKernel(desc.Compute)
	if !ok {
		return nil, &gpu.ResourceError{
			Resource: desc.Label,
			Op:       op,
			Err:      fmt.Errorf("%w: no compute kernel for %s:%s", gpu.ErrUnsupported, desc.Compute.Program, desc.Compute.EntryPoint),
		}
	}

	d.track(kindPipeline)
	return &computePipeline{
		pipeline: pipeline{resource: resource{dev: d, label: desc.Label, kind: kindPipeline}, layouts: desc.BindGroupLayouts},
		desc:     desc,
		kernel:   ck,
	}, nil
}

func (d *Device) CreateBindGroup(desc gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	const op = "create bind group"
	fail := func(err error) (gpu.BindGroup, error) {
		return nil, &gpu.ResourceError{Resource: desc.Label, Op: op, Err: err}
	}
	if d.err != nil {
		return fail(d.err)
	}
	if desc.Pipeline == nil {
		return fail(fmt.Errorf("%w: no pipeline", gpu.ErrInvalidConfig))
	}
	layout, ok := desc.Pipeline.BindGroupLayout(desc.Group)
	if !ok {
		return fail(fmt.Errorf("%w: pipeline %q has no group %d", gpu.ErrInvalidConfig, desc.Pipeline.Label(), desc.Group))
	}

	bg := &bindGroup{
		resource: resource{dev: d, label: desc.Label, kind: kindBindGroup},
		group:    desc.Group,
		entries:  make(map[uint32]*bindGroupEntry, len(desc.Entries)),
	}
	for _, e := range desc.Entries {
		le, ok := layout.Entry(e.Binding)
		if !ok {
			return fail(fmt.Errorf("%w: group %d has no binding %d", gpu.ErrInvalidConfig, desc.Group, e.Binding))
		}
		entry, err := resolveEntry(le, e)
		if err != nil {
			return fail(fmt.Errorf("binding %d (%s): %w", e.Binding, le.Role, err))
		}
		bg.entries[e.Binding] = entry
	}
	for _, le := range layout.Entries {
		if _, ok := bg.entries[le.Binding]; !ok {
			return fail(fmt.Errorf("%w: binding %d (%s) not provided", gpu.ErrInvalidConfig, le.Binding, le.Role))
		}
	}
	d.track(kindBindGroup)
	return bg, nil
}

// resolveEntry checks one bind group entry against its layout slot.
func resolveEntry(le gpu.BindGroupLayoutEntry, e gpu.BindGroupEntry) (*bindGroupEntry, error) {
	out := &bindGroupEntry{layout: le}
	switch le.Type {
	case gpu.BindingTypeUniformBuffer, gpu.BindingTypeStorageBuffer, gpu.BindingTypeReadOnlyStorageBuffer:
		b, ok := e.Buffer.(*buffer)
		if !ok || b == nil {
			return nil, fmt.Errorf("%w: expected a buffer", gpu.ErrInvalidConfig)
		}
		if err := b.check("bind"); err != nil {
			return nil, err
		}
		size := e.Size
		if size == 0 {
			size = b.desc.Size - min(e.Offset, b.desc.Size)
		}
		if e.Offset+size > b.desc.Size {
			return nil, fmt.Errorf("%w: range [%d, %d) exceeds buffer of %d bytes", gpu.ErrInvalidConfig, e.Offset, e.Offset+size, b.desc.Size)
		}
		if size < le.MinBindingSize {
			return nil, fmt.Errorf("%w: %d bytes bound, %d required", gpu.ErrInvalidConfig, size, le.MinBindingSize)
		}
		out.buffer, out.offset, out.size = b, e.Offset, size
	case gpu.BindingTypeTexture, gpu.BindingTypeStorageTexture:
		v, ok := e.TextureView.(*textureView)
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: expected a texture view", gpu.ErrInvalidConfig)
		}
		if err := v.check("bind"); err != nil {
			return nil, err
		}
		if ms := v.samples() > 1; ms != le.Multisampled {
			return nil, fmt.Errorf("%w: multisampled view %v bound to multisampled slot %v", gpu.ErrInvalidConfig, ms, le.Multisampled)
		}
		if le.SampleType == gpu.TextureSampleTypeDepth && !v.format().IsDepth() {
			return nil, fmt.Errorf("%w: %s view bound to a depth slot", gpu.ErrInvalidConfig, v.format())
		}
		out.view = v
	case gpu.BindingTypeSampler:
		s, ok := e.Sampler.(*sampler)
		if !ok || s == nil {
			return nil, fmt.Errorf("%w: expected a sampler", gpu.ErrInvalidConfig)
		}
		if err := s.check("bind"); err != nil {
			return nil, err
		}
		out.sampler = s
	default:
		return nil, fmt.Errorf("%w: binding type %d", gpu.ErrUnsupported, le.Type)
	}
	return out, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("%w: foreign buffer", gpu.ErrInvalidConfig)
	}
	if d.err != nil {
		return &gpu.ResourceError{Resource: b.label, Op: "write buffer", Err: d.err}
	}
	if err := b.check("write buffer"); err != nil {
		return err
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return &gpu.ResourceError{
			Resource: b.label,
			Op:       "write buffer",
			Err:      fmt.Errorf("%w: %d bytes at %d exceed %d", gpu.ErrInvalidConfig, len(data), offset, b.desc.Size),
		}
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *Device) WriteTexture(tex gpu.Texture, layer int, data []byte) error {
	t, ok := tex.(*texture)
	if !ok {
		return fmt.Errorf("%w: foreign texture", gpu.ErrInvalidConfig)
	}
	if d.err != nil {
		return &gpu.ResourceError{Resource: t.label, Op: "write texture", Err: d.err}
	}
	if err := t.check("write texture"); err != nil {
		return err
	}
	if err := t.writeLayer(layer, data); err != nil {
		return &gpu.ResourceError{Resource: t.label, Op: "write texture", Err: err}
	}
	return nil
}

// ReadTexels copies one layer and sample of a texture in row-major order. Depth formats
// return the depth in channel 0.
//
// Parameters:
//   - tex: the texture to read
//   - layer: the array layer
//   - sample: the sample index
//
// Returns:
//   - [][4]float32: width*height linear texels
//   - error: an error if the texture is not a live soft texture or the indices are out of range
func (d *Device) ReadTexels(tex gpu.Texture, layer, sample int) ([][4]float32, error) {
	t, err := d.readable(tex, layer, sample)
	if err != nil {
		return nil, err
	}
	out := make([][4]float32, t.desc.Width*t.desc.Height)
	base := t.texel(layer, sample, 0, 0) * 4
	for i := range out {
		copy(out[i][:], t.data[base+i*4:])
	}
	return out, nil
}

// ReadStencil copies the stencil plane of one layer and sample of a depth-stencil texture.
//
// Parameters:
//   - tex: the texture to read
//   - layer: the array layer
//   - sample: the sample index
//
// Returns:
//   - []uint8: width*height stencil values
//   - error: an error if the texture has no stencil aspect
func (d *Device) ReadStencil(tex gpu.Texture, layer, sample int) ([]uint8, error) {
	t, err := d.readable(tex, layer, sample)
	if err != nil {
		return nil, err
	}
	if t.stencil == nil {
		return nil, fmt.Errorf("%w: %s has no stencil", gpu.ErrInvalidConfig, t.desc.Format)
	}
	base := t.texel(layer, sample, 0, 0)
	return append([]uint8(nil), t.stencil[base:base+t.desc.Width*t.desc.Height]...), nil
}

// ReadBuffer copies the contents of a buffer.
//
// Parameters:
//   - buf: the buffer to read
//
// Returns:
//   - []byte: a copy of the buffer bytes
//   - error: an error if the buffer is not a live soft buffer
func (d *Device) ReadBuffer(buf gpu.Buffer) ([]byte, error) {
	b, ok := buf.(*buffer)
	if !ok {
		return nil, fmt.Errorf("%w: foreign buffer", gpu.ErrInvalidConfig)
	}
	if err := b.check("read buffer"); err != nil {
		return nil, err
	}
	return append([]byte(nil), b.data...), nil
}

func (d *Device) readable(tex gpu.Texture, layer, sample int) (*texture, error) {
	t, ok := tex.(*texture)
	if !ok {
		return nil, fmt.Errorf("%w: foreign texture", gpu.ErrInvalidConfig)
	}
	if err := t.check("read texture"); err != nil {
		return nil, err
	}
	if layer < 0 || layer >= t.desc.ArrayLayers || sample < 0 || sample >= t.desc.SampleCount {
		return nil, &gpu.ResourceError{
			Resource: t.label,
			Op:       "read texture",
			Err:      fmt.Errorf("%w: layer %d sample %d", gpu.ErrInvalidConfig, layer, sample),
		}
	}
	return t, nil
}
