package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/wgpu_device"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"github.com/Carmen-Shannon/oxy-deferred/internal/config"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
)

// runWindowed renders the demo scene into a GLFW window through WebGPU until the window closes.
func runWindowed(cfg *config.Config) error {
	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := wgpu_device.New(win.SurfaceDescriptor(),
		wgpu_device.WithVSync(cfg.Window.VSync),
		wgpu_device.WithForceFallbackAdapter(cfg.Renderer.ForceFallbackAdapter),
		wgpu_device.WithLogger(logger.Named("wgpu")),
	)
	if err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	defer dev.Release()

	format, err := dev.ConfigureSurface(win.Width(), win.Height())
	if err != nil {
		return fmt.Errorf("configure surface: %w", err)
	}

	sc, err := newScene(cfg, dev)
	if err != nil {
		return err
	}
	defer sc.Release()

	opts, err := rendererOptions(cfg, format)
	if err != nil {
		return err
	}
	r, err := renderer.NewRenderer(dev, opts...)
	if err != nil {
		return err
	}
	defer r.Release()

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithPresenter(dev),
		engine.WithCamera(newCamera(cfg)),
		engine.WithScene(0, sc),
		engine.WithTickRate(60),
	)

	bindInput(eng, win, dev.Capabilities().SampleCounts)
	showStats(eng, win, cfg.Window.Title)
	printControls()

	logger.Info("running", zap.String("surface_format", format.String()))
	return eng.Run()
}

// showStats keeps the window title in step with the renderer's last frame. Frame statistics
// are captured on the render goroutine and read on the window goroutine.
func showStats(eng engine.Engine, win window.Window, title string) {
	var last atomic.Value
	eng.SetRenderCallback(func(float32) {
		last.Store(eng.Renderer().LastFrame())
	})

	lastTime := time.Now()
	var lastFrames uint64
	win.SetUpdateCallback(func() {
		elapsed := time.Since(lastTime)
		if elapsed < 500*time.Millisecond {
			return
		}
		frames := eng.Frames()
		fps := float64(frames-lastFrames) / elapsed.Seconds()
		lastTime, lastFrames = time.Now(), frames

		stats, ok := last.Load().(renderer.FrameStats)
		if !ok {
			return
		}
		win.SetTitle(fmt.Sprintf("%s | %s | MSAA x%d | %d lights | %dx%d | %.0f fps",
			title, stats.Strategy, stats.SampleCount, stats.ActiveLights, stats.Width, stats.Height, fps))
	})
}

func printControls() {
	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║  Oxy Deferred - Tiled Deferred Shading              ║")
	fmt.Println("╠══════════════════════════════════════════════════════╣")
	fmt.Println("║  Camera: WASD=Move  Q/E=Up/Down  Scroll=Zoom        ║")
	fmt.Println("║          Left/Right-mouse drag=Orbit                ║")
	fmt.Println("║  T:      Toggle lighting strategy                   ║")
	fmt.Println("║  M:      Cycle MSAA sample count                    ║")
	fmt.Println("║  L:      Toggle light animation                     ║")
	fmt.Println("║  -/=:    Halve/double the active light count        ║")
	fmt.Println("║  C:      Toggle frustum culling                     ║")
	fmt.Println("║  F9:     Toggle profiler log                        ║")
	fmt.Println("║  Esc:    Quit                                       ║")
	fmt.Println("╚══════════════════════════════════════════════════════╝")
}
