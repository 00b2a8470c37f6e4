package main

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/loader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/internal/config"
)

// rendererOptions maps the renderer section of the config onto builder options.
func rendererOptions(cfg *config.Config, output gpu.Format) ([]renderer.RendererBuilderOption, error) {
	strategy, err := renderer.ParseStrategy(cfg.Renderer.Strategy)
	if err != nil {
		return nil, err
	}
	return []renderer.RendererBuilderOption{
		renderer.WithStrategy(strategy),
		renderer.WithSampleCount(cfg.Renderer.MSAA),
		renderer.WithTileDim(cfg.Renderer.TileDim),
		renderer.WithMaxLights(max(cfg.Lights.Capacity, light.MaxLights)),
		renderer.WithOutputFormat(output),
	}, nil
}

// newScene builds the configured glTF model, or the demo courtyard when none is set, with the
// configured lights, world transform and sky.
func newScene(cfg *config.Config, device gpu.Device) (scene.Scene, error) {
	var sky scene.SceneBuilderOption
	if len(cfg.Skybox.Faces) == scene.CubeFaces {
		var faces [scene.CubeFaces]string
		copy(faces[:], cfg.Skybox.Faces)
		staging, err := scene.LoadSkybox(faces, cfg.Skybox.FaceSize)
		if err != nil {
			return nil, fmt.Errorf("load skybox: %w", err)
		}
		sky = scene.WithSkyboxStaging(staging)
	} else {
		sky = scene.WithSkyboxStaging(scene.GradientSky(cfg.Skybox.FaceSize,
			[3]uint8{40, 90, 170}, [3]uint8{170, 190, 215}, [3]uint8{45, 40, 35}))
	}

	opts := []scene.SceneBuilderOption{
		sky,
		scene.WithAnimateLights(cfg.Lights.Animate),
		scene.WithWorldTransform(cfg.Scene.Scale, cfg.Scene.Translation),
		scene.WithLightOptions(
			light.WithCapacity(cfg.Lights.Capacity),
			light.WithActiveCount(cfg.Lights.Active),
			light.WithSeed(cfg.Lights.Seed),
		),
	}
	if cfg.Scene.Model == "" {
		return scene.NewDemoScene(device, opts...)
	}

	m, err := loader.NewLoader().Load(cfg.Scene.Model)
	if err != nil {
		return nil, err
	}
	return m.NewScene(device, opts...)
}

// newCamera builds the viewer camera from the camera section of the config.
func newCamera(cfg *config.Config) camera.Camera {
	ctrl := camera.NewCameraController(
		camera.WithEye(cfg.Camera.Eye, cfg.Camera.Target),
		camera.WithMoveSpeed(cfg.Camera.MoveSpeed),
	)
	return camera.NewCamera(
		camera.WithFov(cfg.Camera.FovDegrees*math.Pi/180),
		camera.WithAspect(float32(cfg.Window.Width)/float32(cfg.Window.Height)),
		camera.WithClip(cfg.Camera.Near, cfg.Camera.Far),
		camera.WithController(ctrl),
	)
}
