package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
	"go.uber.org/zap"
)

// ErrStopped is returned for commands submitted to an engine that has stopped.
var ErrStopped = errors.New("engine stopped")

// Presenter supplies the target each frame is rendered into. wgpu_device.Device presents to a
// window surface; Offscreen renders into a texture.
type Presenter interface {
	// ConfigureSurface (re)creates the presentation target at the given size.
	//
	// Parameters:
	//   - width: target width in pixels
	//   - height: target height in pixels
	//
	// Returns:
	//   - gpu.Format: the format of the targets Acquire returns
	//   - error: error if the target cannot be created
	ConfigureSurface(width, height int) (gpu.Format, error)

	// Acquire returns the view to render the next frame into.
	//
	// Returns:
	//   - gpu.TextureView: the single-sampled presentation view
	//   - error: error if no target is available
	Acquire() (gpu.TextureView, error)

	// Present shows the acquired target.
	Present()
}

// Command is work queued to run on the render goroutine between frames, where it has exclusive
// use of the renderer and the active scene. The scene is nil when no scene is active.
type Command func(r renderer.Renderer, s scene.Scene) error

type queuedCommand struct {
	run  Command
	done chan error
}

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	log *zap.Logger
	mu  sync.Mutex

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates
	resizeChannel   chan [2]int        // Latest pending framebuffer size
	commandChannel  chan queuedCommand

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window    window.Window
	presenter Presenter
	renderer  renderer.Renderer
	camera    camera.Camera

	// Framebuffer size owned by the render goroutine once running; 0x0 while minimized.
	width, height int

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	// fixedDeltaTime replaces the measured frame time when positive.
	fixedDeltaTime float32

	scenes map[int]scene.Scene

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	frames           atomic.Uint64

	err error
}

// Engine is the main entry point of the demo host.
// It orchestrates the tick loop, the render loop and window management: the tick goroutine runs
// game logic and moves the camera, the render goroutine owns the renderer and draws the active
// scene into the presenter.
type Engine interface {
	// Window returns the underlying window, or nil for a windowless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the render context the engine draws with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Camera returns the camera frames are rendered through.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// ProfilerEnabled reports whether profiling output is enabled.
	//
	// Returns:
	//   - bool: true if the profiler logs
	ProfilerEnabled() bool

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick, before the camera is
	// updated. Use this for input processing and camera movement.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called on the render goroutine after each
	// presented frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Resize queues a framebuffer resize for the render goroutine. Only the latest pending
	// size is applied; 0x0 pauses rendering until the next non-empty size.
	//
	// Parameters:
	//   - width: new width in pixels
	//   - height: new height in pixels
	Resize(width, height int)

	// Submit queues a command to run on the render goroutine before the next frame.
	// Blocks while the queue is full.
	//
	// Parameters:
	//   - cmd: the command to run
	//
	// Returns:
	//   - <-chan error: receives the command's result, or ErrStopped if the engine stopped first
	Submit(cmd Command) <-chan error

	// AddScene registers a scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index; the active scene with the lowest key is rendered
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	// Returns nil if no scene exists at that key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// ActiveScene returns the scene rendered next: the active scene with the lowest key.
	//
	// Returns:
	//   - scene.Scene: the scene, or nil if no scene is active
	ActiveScene() scene.Scene

	// Frames returns the number of frames presented since Run started.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// Run starts the engine. With a window it runs the message loop on the calling goroutine
	// and returns once the window closes; without one it returns after Quit.
	//
	// Returns:
	//   - error: the error that stopped the render loop, or nil
	Run() error

	// Quit signals all engine goroutines to stop and closes the window.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Err returns the error that stopped the render loop, if any.
	//
	// Returns:
	//   - error: the render error, or nil
	Err() error
}

// NewEngine creates a new Engine instance with the provided options.
// A renderer, a presenter and a camera are required before Run. When a window is set the
// engine takes over its resize callback and starts at the window's framebuffer size.
//
// Parameters:
//   - options: functional options for engine configuration (renderer, presenter, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		log:             logger.Named("engine"),
		tickRateChannel: make(chan time.Duration, 1),
		resizeChannel:   make(chan [2]int, 1),
		commandChannel:  make(chan queuedCommand, 32),
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}

	if e.window != nil {
		e.width, e.height = e.window.Width(), e.window.Height()
		e.window.SetResizeCallback(e.Resize)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Run() error {
	if e.renderer == nil || e.presenter == nil || e.camera == nil {
		return fmt.Errorf("%w: engine needs a renderer, a presenter and a camera", gpu.ErrInvalidConfig)
	}
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine is already running")
	}

	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	return e.Err()
}

func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// signalQuit closes the quit channel to signal all goroutines to exit and stops the window's
// message loop. Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
		if e.window != nil {
			e.window.RequestClose()
		}
	})
}

// fail records the first error that stops the render loop and quits.
func (e *engine) fail(err error) {
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
	if errors.Is(err, gpu.ErrDeviceLost) {
		e.log.Error("device lost, stopping", zap.Error(err))
	} else {
		e.log.Error("render loop stopped", zap.Error(err))
	}
	e.signalQuit()
}

// handle launches the tick and render goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback, then updates the camera from its controller. Listens for dynamic
// rate changes via tickRateChannel and exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
			e.camera.Update()
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Between frames it applies the latest resize and runs queued commands; each frame renders the
// active scene into the presenter. A render error stops the engine. Recovers from panics to
// avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer e.rejectPending()
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("render goroutine panic: %v", r))
		}
	}()

	if err := e.applyResize(e.width, e.height); err != nil {
		e.fail(err)
		return
	}

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		if err := e.drainResize(); err != nil {
			e.fail(err)
			return
		}
		e.drainCommands()

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now
		if e.fixedDeltaTime > 0 {
			dt = e.fixedDeltaTime
		}

		rendered, err := e.renderFrame(dt)
		if err != nil {
			e.fail(err)
			return
		}
		if !rendered {
			// Minimized or no active scene.
			time.Sleep(10 * time.Millisecond)
			continue
		}
		e.frames.Add(1)

		if e.renderCallback != nil {
			e.renderCallback(dt)
		}

		if e.profilingEnabled.Load() {
			stats := e.renderer.LastFrame()
			e.profiler.Tick(
				zap.Stringer("strategy", stats.Strategy),
				zap.Int("samples", stats.SampleCount),
				zap.Int("lights", stats.ActiveLights),
				zap.Int("width", stats.Width),
				zap.Int("height", stats.Height),
			)
		}

		e.mu.Lock()
		limit := e.renderFrameLimit
		e.mu.Unlock()
		if limit > 0 {
			if remaining := limit - time.Since(lastRender); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// renderFrame draws the active scene into the presenter's target.
func (e *engine) renderFrame(dt float32) (bool, error) {
	s := e.ActiveScene()
	if s == nil || e.width == 0 || e.height == 0 {
		return false, nil
	}

	target, err := e.presenter.Acquire()
	if err != nil {
		return false, fmt.Errorf("acquire target: %w", err)
	}
	err = e.renderer.Render(renderer.Frame{
		Scene:     s,
		Camera:    e.camera,
		Target:    target,
		DeltaTime: dt,
	})
	e.presenter.Present()
	if err != nil {
		return false, fmt.Errorf("render %s: %w", s.Name(), err)
	}
	return true, nil
}

// applyResize reconfigures the presenter, the renderer and the camera aspect. An empty size
// pauses rendering without touching any resource.
func (e *engine) applyResize(width, height int) error {
	e.width, e.height = width, height
	if width <= 0 || height <= 0 {
		e.width, e.height = 0, 0
		return nil
	}

	format, err := e.presenter.ConfigureSurface(width, height)
	if err != nil {
		return fmt.Errorf("configure surface: %w", err)
	}
	if want := e.renderer.OutputFormat(); format != want {
		return fmt.Errorf("%w: surface format %s, renderer outputs %s", gpu.ErrUnsupported, format, want)
	}
	if err := e.renderer.Resize(width, height); err != nil {
		return fmt.Errorf("resize renderer: %w", err)
	}
	e.camera.SetAspect(float32(width) / float32(height))

	e.log.Debug("resized", zap.Int("width", width), zap.Int("height", height))
	return nil
}

func (e *engine) drainResize() error {
	select {
	case size := <-e.resizeChannel:
		if size[0] == e.width && size[1] == e.height {
			return nil
		}
		return e.applyResize(size[0], size[1])
	default:
		return nil
	}
}

func (e *engine) drainCommands() {
	for {
		select {
		case cmd := <-e.commandChannel:
			cmd.done <- cmd.run(e.renderer, e.ActiveScene())
		default:
			return
		}
	}
}

// rejectPending answers every command still queued once the render goroutine exits.
func (e *engine) rejectPending() {
	for {
		select {
		case cmd := <-e.commandChannel:
			cmd.done <- ErrStopped
		default:
			return
		}
	}
}

func (e *engine) Resize(width, height int) {
	replaceLatest(e.resizeChannel, [2]int{width, height})
}

func (e *engine) Submit(cmd Command) <-chan error {
	done := make(chan error, 1)
	select {
	case <-e.quitChannel:
		done <- ErrStopped
		return done
	default:
	}
	select {
	case e.commandChannel <- queuedCommand{run: cmd, done: done}:
	case <-e.quitChannel:
		done <- ErrStopped
	}
	return done
}

// replaceLatest sends v without blocking, replacing a value still pending in the
// single-slot channel ch.
func replaceLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

func (e *engine) ProfilerEnabled() bool {
	return e.profilingEnabled.Load()
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		replaceLatest(e.tickRateChannel, newRate)
	} else {
		e.engineTickRate = newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderFrameLimit = frameDuration(fps)
}

// frameDuration converts a frame rate to a frame duration; 0 for fps <= 0.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}

func (e *engine) ActiveScene() scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		if s := e.scenes[k]; s.Active() {
			return s
		}
	}
	return nil
}

func (e *engine) Frames() uint64 {
	return e.frames.Load()
}
