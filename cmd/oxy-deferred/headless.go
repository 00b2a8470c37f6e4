package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/soft_device"
	"github.com/Carmen-Shannon/oxy-deferred/internal/config"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
)

// runHeadless renders the configured number of frames on the soft device and writes the last
// one to the configured PNG.
func runHeadless(cfg *config.Config) error {
	dev := soft_device.New(
		soft_device.WithSampleCounts(1, 2, 4, 8),
		soft_device.WithLogger(logger.Named("soft_device")),
	)
	defer dev.Release()

	sc, err := newScene(cfg, dev)
	if err != nil {
		return err
	}
	defer sc.Release()

	opts, err := rendererOptions(cfg, gpu.FormatRGBA8UnormSrgb)
	if err != nil {
		return err
	}
	r, err := renderer.NewRenderer(dev, opts...)
	if err != nil {
		return err
	}
	defer r.Release()

	target := engine.NewOffscreen(dev, r.OutputFormat())
	defer target.Release()

	eng := engine.NewEngine(
		engine.WithRenderer(r),
		engine.WithPresenter(target),
		engine.WithCamera(newCamera(cfg)),
		engine.WithScene(0, sc),
		engine.WithSize(cfg.Window.Width, cfg.Window.Height),
		engine.WithFixedDeltaTime(cfg.Headless.FrameTime),
	)
	frames := uint64(cfg.Headless.Frames)
	eng.SetRenderCallback(func(float32) {
		if eng.Frames() >= frames {
			eng.Quit()
		}
	})
	if err := eng.Run(); err != nil {
		return err
	}

	if err := writePNG(dev, target.Target(), cfg.Headless.Output); err != nil {
		return fmt.Errorf("write %s: %w", cfg.Headless.Output, err)
	}
	stats := r.LastFrame()
	logger.Info("frame written",
		zap.String("file", cfg.Headless.Output),
		zap.Uint64("frames", eng.Frames()),
		zap.Stringer("strategy", stats.Strategy),
		zap.Int("samples", stats.SampleCount),
		zap.Int("lights", stats.ActiveLights),
	)
	return nil
}

// writePNG encodes the first layer of an offscreen target, converting linear texels to sRGB.
func writePNG(dev *soft_device.Device, tex *gpu.Texture2D, path string) error {
	if tex == nil {
		return fmt.Errorf("%w: nothing was rendered", gpu.ErrInvalidConfig)
	}
	texels, err := dev.ReadTexels(tex.Texture(), 0, 0)
	if err != nil {
		return err
	}

	img := image.NewNRGBA(image.Rect(0, 0, tex.Width(), tex.Height()))
	for i, t := range texels {
		img.SetNRGBA(i%tex.Width(), i/tex.Width(), color.NRGBA{
			R: toSRGB8(t[0]),
			G: toSRGB8(t[1]),
			B: toSRGB8(t[2]),
			A: 255,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func toSRGB8(c float32) uint8 {
	return uint8(min(max(shading.LinearToSRGB(c), 0), 1)*255 + 0.5)
}
