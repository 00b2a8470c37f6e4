package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
	"go.uber.org/zap"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu  *sync.Mutex
	log *zap.Logger

	device        gpu.Device
	pipelineCache map[string]pipeline.Pipeline

	strategy        Strategy
	sampleCount     int
	tileDim         int
	maxLights       int
	outputFormat    gpu.Format
	stencil         bool
	stencilDisabled bool
	width, height   int

	// Size requested through WithSize, applied once the pipelines exist.
	pendingWidth, pendingHeight int

	frame           *gpu.ConstantBuffer[shading.GPUFrameConstants]
	frameConstants  shading.GPUFrameConstants
	materialSampler gpu.Sampler
	skySampler      gpu.Sampler

	gbuffer   *GBuffer
	lighting  lightingBackend
	geometry  *geometryStage
	composite *compositeStage

	scene       scene.Scene
	lights      gpu.Buffer
	initialized bool
	resetTime   bool
	stats       FrameStats
}

// Camera supplies the view and projection of a frame. The projection maps near to depth 1 and
// far to depth 0.
type Camera interface {
	// ViewMatrix returns the world-to-view matrix.
	//
	// Returns:
	//   - [16]float32: the view matrix, column-major
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the complementary-depth projection matrix.
	//
	// Returns:
	//   - [16]float32: the projection matrix, column-major
	ProjectionMatrix() [16]float32

	// Near returns the near clip distance.
	//
	// Returns:
	//   - float32: the near distance
	Near() float32

	// Far returns the far clip distance.
	//
	// Returns:
	//   - float32: the far distance
	Far() float32
}

// Frame is everything Render needs for one frame.
type Frame struct {
	Scene  scene.Scene
	Camera Camera

	// Target is the single-sampled presentation view. Its size must match the renderer size and
	// its format the output format.
	Target gpu.TextureView

	// DeltaTime is the elapsed time since the previous frame in seconds.
	DeltaTime float32
}

// Targets exposes the resolution-dependent resources for inspection. Exactly one of LitBuffer
// and LitTexture is set, matching the active strategy.
type Targets struct {
	GBuffer    *GBuffer
	LitBuffer  *gpu.StructuredBuffer[light.FramebufferFlatElement]
	LitTexture *gpu.Texture2D
}

// FrameStats describes the last rendered frame.
type FrameStats struct {
	Strategy     Strategy
	Width        int
	Height       int
	SampleCount  int
	ActiveLights int

	// Dispatch is the workgroup grid of the tiled lighting pass, zero for per-pixel lighting.
	Dispatch [3]int

	// LitElements is the number of lit samples the lighting pass writes.
	LitElements int
}

// Renderer is the deferred render context. It owns the frame constants, the G-buffer, the
// active lighting strategy and the composite pass, and renders a Scene through a Camera into
// a presentation target.
//
// Resolution-dependent resources are created by Resize. A Renderer is used from a single
// goroutine; its methods are serialized.
type Renderer interface {
	// Device returns the device the renderer records on.
	//
	// Returns:
	//   - gpu.Device: the device
	Device() gpu.Device

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves the entire cache of Pipelines.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// Strategy returns the active lighting strategy.
	//
	// Returns:
	//   - Strategy: the strategy
	Strategy() Strategy

	// SetStrategy switches the lighting strategy and rebuilds the pipelines and targets. An
	// unsupported strategy is rejected before anything is released.
	//
	// Parameters:
	//   - s: the new strategy
	//
	// Returns:
	//   - error: ErrUnsupported or ErrInvalidConfig on rejection, or the rebuild error
	SetStrategy(s Strategy) error

	// SampleCount returns the G-buffer sample count.
	//
	// Returns:
	//   - int: the sample count
	SampleCount() int

	// SetSampleCount changes the G-buffer sample count and rebuilds the pipelines and targets.
	//
	// Parameters:
	//   - n: the new sample count
	//
	// Returns:
	//   - error: ErrUnsupported if the device does not support n, or the rebuild error
	SetSampleCount(n int) error

	// TileDim returns the side of a tiled lighting tile in pixels.
	//
	// Returns:
	//   - int: the tile side
	TileDim() int

	// OutputFormat returns the format Render expects of the presentation target.
	//
	// Returns:
	//   - gpu.Format: the output format
	OutputFormat() gpu.Format

	// Size returns the current resolution.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	Size() (width, height int)

	// Initialized reports whether the resolution-dependent resources exist.
	//
	// Returns:
	//   - bool: true once Resize succeeded and no rebuild has failed since
	Initialized() bool

	// Resize releases every resolution-dependent resource and allocates it again at the new
	// size. The lit output holds width*height*samples elements afterwards.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: ErrInvalidConfig for a non-positive size (nothing released), or the allocation error
	Resize(width, height int) error

	// Render records and submits the G-buffer, lighting and composite passes of one frame.
	//
	// Parameters:
	//   - f: the frame to render
	//
	// Returns:
	//   - error: a configuration error for an invalid frame, or a device error
	Render(f Frame) error

	// FrameConstants returns the constants uploaded for the last frame.
	//
	// Returns:
	//   - shading.GPUFrameConstants: the frame constants
	FrameConstants() shading.GPUFrameConstants

	// Targets returns the resolution-dependent resources.
	//
	// Returns:
	//   - Targets: the G-buffer and the lit output of the active strategy
	Targets() Targets

	// LastFrame returns statistics of the last rendered frame.
	//
	// Returns:
	//   - FrameStats: the frame statistics
	LastFrame() FrameStats

	// Release frees every resource the renderer owns. The device is not released.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a render context on device. Pipelines are built immediately; the
// resolution-dependent resources are created by WithSize or the first Resize.
//
// Parameters:
//   - device: the device to render with
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the render context
//   - error: a configuration or device error
func NewRenderer(device gpu.Device, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		log:           logger.Named("renderer"),
		device:        device,
		pipelineCache: make(map[string]pipeline.Pipeline),
		strategy:      StrategyTiled,
		sampleCount:   1,
		tileDim:       light.DefaultTileDim,
		maxLights:     light.MaxLights,
		outputFormat:  gpu.FormatRGBA8UnormSrgb,
	}
	for _, opt := range options {
		opt(r)
	}
	if err := r.validate(r.strategy, r.sampleCount); err != nil {
		return nil, err
	}
	r.stencil = device.Capabilities().DepthStencil && !r.stencilDisabled

	var err error
	if r.frame, err = gpu.NewConstantBuffer[shading.GPUFrameConstants](device, gpu.WithLabel("frame_constants")); err != nil {
		return nil, err
	}
	if r.materialSampler, err = device.CreateSampler(gpu.SamplerDescriptor{
		Label:       "material_sampler",
		AddressMode: gpu.AddressModeRepeat,
		Filter:      gpu.FilterModeLinear,
	}); err != nil {
		r.Release()
		return nil, err
	}
	if r.skySampler, err = device.CreateSampler(gpu.SamplerDescriptor{
		Label:       "sky_sampler",
		AddressMode: gpu.AddressModeClampToEdge,
		Filter:      gpu.FilterModeLinear,
	}); err != nil {
		r.Release()
		return nil, err
	}
	if err := r.build(); err != nil {
		r.Release()
		return nil, err
	}

	r.log.Info("renderer created",
		zap.String("backend", device.Capabilities().Backend),
		zap.Stringer("strategy", r.strategy),
		zap.Int("samples", r.sampleCount),
		zap.Int("tile_dim", r.tileDim),
		zap.Bool("stencil", r.stencil),
	)

	if r.pendingWidth > 0 || r.pendingHeight > 0 {
		if err := r.Resize(r.pendingWidth, r.pendingHeight); err != nil {
			r.Release()
			return nil, err
		}
	}
	return r, nil
}

// validate checks a strategy and sample count against the configuration and the device.
func (r *renderer) validate(s Strategy, samples int) error {
	caps := r.device.Capabilities()
	if !light.ValidTileDim(r.tileDim) {
		return fmt.Errorf("%w: tile dim %d outside 1..%d", gpu.ErrInvalidConfig, r.tileDim, light.DefaultTileDim)
	}
	if r.maxLights <= 0 {
		return fmt.Errorf("%w: max lights %d", gpu.ErrInvalidConfig, r.maxLights)
	}
	if r.outputFormat == gpu.FormatUndefined || r.outputFormat.IsDepth() {
		return fmt.Errorf("%w: output format %s", gpu.ErrInvalidConfig, r.outputFormat)
	}
	if !caps.SupportsSampleCount(samples) {
		return fmt.Errorf("%w: sample count %d on %s device", gpu.ErrUnsupported, samples, caps.Backend)
	}
	switch s {
	case StrategyTiled:
		if !caps.Compute {
			return fmt.Errorf("%w: %s lighting needs compute support", gpu.ErrUnsupported, s)
		}
		if caps.MaxComputeInvocations > 0 && r.tileDim*r.tileDim > caps.MaxComputeInvocations {
			return fmt.Errorf("%w: tile dim %d exceeds %d invocations", gpu.ErrUnsupported, r.tileDim, caps.MaxComputeInvocations)
		}
	case StrategyPerPixel:
	default:
		return fmt.Errorf("%w: %s", gpu.ErrInvalidConfig, s)
	}
	return nil
}

// build creates the lighting variant, compiles every pipeline and creates the bindings that
// do not depend on the resolution.
func (r *renderer) build() error {
	lighting, err := newLightingBackend(r, r.strategy)
	if err != nil {
		return err
	}
	r.lighting = lighting

	gbuffer, err := gbufferPipelines(r)
	if err != nil {
		return err
	}
	resolve, err := lighting.pipelines(r)
	if err != nil {
		return err
	}
	for _, p := range append(gbuffer, resolve...) {
		if err := p.Build(r.device); err != nil {
			return err
		}
		r.pipelineCache[p.PipelineKey()] = p
	}

	r.geometry = newGeometryStage(r)
	if err := r.geometry.bindFrame(r); err != nil {
		return err
	}
	r.composite = newCompositeStage(r)
	if err := r.composite.bindFrame(r); err != nil {
		return err
	}
	r.lights = nil
	return nil
}

// teardown releases everything build created, including the resolution-dependent resources.
func (r *renderer) teardown() {
	r.releaseTargets()
	if r.lighting != nil {
		r.lighting.release()
		r.lighting = nil
	}
	if r.geometry != nil {
		r.geometry.release()
		r.geometry = nil
	}
	if r.composite != nil {
		r.composite.release()
		r.composite = nil
	}
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.lights = nil
	r.scene = nil
}

// rebuild recreates the pipelines and, when a size is known, the targets.
func (r *renderer) rebuild() error {
	r.teardown()
	r.initialized = false
	if err := r.build(); err != nil {
		r.log.Error("rebuild failed", zap.Stringer("strategy", r.strategy), zap.Int("samples", r.sampleCount), zap.Error(err))
		return err
	}
	if r.width > 0 && r.height > 0 {
		return r.resize(r.width, r.height)
	}
	return nil
}

func (r *renderer) Device() gpu.Device {
	return r.device
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, p := range r.pipelineCache {
		out[k] = p
	}
	return out
}

func (r *renderer) Strategy() Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.strategy
}

func (r *renderer) SetStrategy(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s == r.strategy && r.lighting != nil {
		return nil
	}
	if err := r.validate(s, r.sampleCount); err != nil {
		return err
	}
	r.log.Info("switching lighting strategy", zap.Stringer("from", r.strategy), zap.Stringer("to", s))
	r.strategy = s
	return r.rebuild()
}

func (r *renderer) SampleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sampleCount
}

func (r *renderer) SetSampleCount(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n == r.sampleCount && r.lighting != nil {
		return nil
	}
	if err := r.validate(r.strategy, n); err != nil {
		return err
	}
	r.log.Info("changing sample count", zap.Int("from", r.sampleCount), zap.Int("to", n))
	r.sampleCount = n
	return r.rebuild()
}

func (r *renderer) TileDim() int {
	return r.tileDim
}

func (r *renderer) OutputFormat() gpu.Format {
	return r.outputFormat
}

func (r *renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lighting == nil {
		return fmt.Errorf("%w: renderer has no pipelines, a previous rebuild failed", gpu.ErrInvalidConfig)
	}
	return r.resize(width, height)
}

func (r *renderer) resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: resize to %dx%d", gpu.ErrInvalidConfig, width, height)
	}

	r.releaseTargets()
	r.initialized = false
	r.width, r.height = width, height

	if err := r.allocateTargets(); err != nil {
		r.releaseTargets()
		r.log.Error("resize failed", zap.Int("width", width), zap.Int("height", height), zap.Error(err))
		return fmt.Errorf("resize %dx%d: %w", width, height, err)
	}
	r.initialized = true
	r.resetTime = true
	r.log.Debug("resized",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("samples", r.sampleCount),
		zap.Int("lit_elements", litElements(width, height, r.sampleCount)),
	)
	return nil
}

func (r *renderer) allocateTargets() error {
	gb, err := NewGBuffer(r.device, r.width, r.height, r.sampleCount, r.stencil)
	if err != nil {
		return err
	}
	r.gbuffer = gb
	if err := r.lighting.allocate(r, gb); err != nil {
		return err
	}
	// Group 0 of the lighting pass is rebound with the next light buffer.
	r.lights = nil
	return nil
}

func (r *renderer) releaseTargets() {
	if r.lighting != nil {
		r.lighting.releaseTargets()
	}
	if r.composite != nil {
		r.composite.invalidate()
	}
	r.gbuffer.Release()
	r.gbuffer = nil
}

func (r *renderer) Render(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.device.Err(); err != nil {
		return err
	}
	if !r.initialized {
		return fmt.Errorf("%w: renderer is not initialized", gpu.ErrInvalidConfig)
	}
	if err := r.validateFrame(f); err != nil {
		return err
	}

	if f.Scene != r.scene {
		r.geometry.materials.reset()
		r.composite.dirty = true
		r.scene = f.Scene
		r.lights = nil
	}

	dt := f.DeltaTime
	if r.resetTime {
		dt = 0
		r.resetTime = false
	}

	view := f.Camera.ViewMatrix()
	lights, err := f.Scene.UpdateLights(dt, view[:])
	if err != nil {
		return fmt.Errorf("update lights: %w", err)
	}
	if lights != r.lights {
		if err := r.lighting.bindLights(r, lights); err != nil {
			return err
		}
		r.lights = lights
	}

	activeLights := f.Scene.Lights().ActiveCount()
	r.frameConstants = r.buildFrameConstants(f, view, activeLights)
	if err := r.frame.Write(r.frameConstants); err != nil {
		return err
	}
	f.Scene.PreRender(r.frameConstants.WorldViewProj[:])

	enc, err := r.device.CreateCommandEncoder("frame")
	if err != nil {
		return err
	}
	if err := r.geometry.record(enc, r, f.Scene); err != nil {
		enc.Release()
		return fmt.Errorf("gbuffer pass: %w", err)
	}
	dispatch, err := r.lighting.record(enc, r, activeLights)
	if err != nil {
		enc.Release()
		return fmt.Errorf("lighting pass: %w", err)
	}
	if err := r.composite.prepare(r, f.Scene.SkyboxTexture()); err != nil {
		enc.Release()
		return fmt.Errorf("composite pass: %w", err)
	}
	if err := r.composite.record(enc, r, f.Target, f.Scene.SkyboxMesh()); err != nil {
		enc.Release()
		return fmt.Errorf("composite pass: %w", err)
	}
	if err := enc.Submit(); err != nil {
		return err
	}

	r.stats = FrameStats{
		Strategy:     r.strategy,
		Width:        r.width,
		Height:       r.height,
		SampleCount:  r.sampleCount,
		ActiveLights: activeLights,
		Dispatch:     dispatch,
		LitElements:  litElements(r.width, r.height, r.sampleCount),
	}
	return nil
}

// validateFrame rejects a frame before anything is recorded.
func (r *renderer) validateFrame(f Frame) error {
	if f.Scene == nil || f.Camera == nil || f.Target == nil {
		return fmt.Errorf("%w: frame needs a scene, a camera and a target", gpu.ErrInvalidConfig)
	}
	td := f.Target.Texture().Descriptor()
	if td.Width != r.width || td.Height != r.height {
		return fmt.Errorf("%w: target %dx%d, renderer %dx%d", gpu.ErrInvalidConfig, td.Width, td.Height, r.width, r.height)
	}
	if td.Format != r.outputFormat || td.SampleCount > 1 {
		return fmt.Errorf("%w: target %s x%d, want single-sampled %s", gpu.ErrInvalidConfig, td.Format, td.SampleCount, r.outputFormat)
	}
	if c := f.Scene.Lights().Capacity(); c > r.maxLights {
		return fmt.Errorf("%w: scene holds %d lights, renderer built for %d", gpu.ErrInvalidConfig, c, r.maxLights)
	}
	if f.Scene.SkyboxMesh() == nil || f.Scene.SkyboxTexture() == nil {
		return fmt.Errorf("%w: scene %s has no skybox", gpu.ErrInvalidConfig, f.Scene.Name())
	}
	return nil
}

// buildFrameConstants composes the matrices of a frame. Near and far are stored swapped.
func (r *renderer) buildFrameConstants(f Frame, view [16]float32, activeLights int) shading.GPUFrameConstants {
	world := f.Scene.WorldMatrix()
	proj := f.Camera.ProjectionMatrix()

	fc := shading.GPUFrameConstants{
		Proj:                  proj,
		CameraNearFar:         [4]float32{f.Camera.Far(), f.Camera.Near(), 0, 0},
		FramebufferDimensions: [4]uint32{uint32(r.width), uint32(r.height), uint32(r.sampleCount), 0},
		LightCount:            uint32(activeLights),
	}
	common.Mul4(fc.WorldView[:], view[:], world[:])
	common.Mul4(fc.WorldViewProj[:], proj[:], fc.WorldView[:])
	common.Mul4(fc.ViewProj[:], proj[:], view[:])
	return fc
}

func (r *renderer) FrameConstants() shading.GPUFrameConstants {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameConstants
}

func (r *renderer) Targets() Targets {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := Targets{GBuffer: r.gbuffer}
	if r.lighting != nil && r.gbuffer != nil {
		r.lighting.targets(&t)
	}
	return t
}

func (r *renderer) LastFrame() FrameStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardown()
	r.initialized = false
	if r.materialSampler != nil {
		r.materialSampler.Release()
		r.materialSampler = nil
	}
	if r.skySampler != nil {
		r.skySampler.Release()
		r.skySampler = nil
	}
	r.frame.Release()
	r.frame = nil
	r.log.Debug("renderer released")
}
