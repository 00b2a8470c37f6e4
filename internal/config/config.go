// Package config handles renderer and demo host configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid config")

// Lighting strategy names accepted by RendererConfig.Strategy.
const (
	StrategyTiled    = "tiled"
	StrategyPerPixel = "per_pixel"
)

// Device backend names accepted by RendererConfig.Backend.
const (
	BackendWGPU = "wgpu"
	BackendSoft = "soft"
)

// Config holds all settings for the deferred renderer and its host.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Renderer RendererConfig `yaml:"renderer"`
	Lights   LightsConfig   `yaml:"lights"`
	Camera   CameraConfig   `yaml:"camera"`
	Scene    SceneConfig    `yaml:"scene"`
	Skybox   SkyboxConfig   `yaml:"skybox"`
	Logging  LoggingConfig  `yaml:"logging"`
	Headless HeadlessConfig `yaml:"headless"`
}

// WindowConfig holds window and presentation settings.
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	VSync  bool   `yaml:"vsync"`
}

// RendererConfig holds pipeline settings.
type RendererConfig struct {
	Backend              string `yaml:"backend"`  // wgpu or soft
	Strategy             string `yaml:"strategy"` // tiled or per_pixel
	MSAA                 int    `yaml:"msaa"`     // 1, 2, 4 or 8
	TileDim              int    `yaml:"tile_dim"`
	ForceFallbackAdapter bool   `yaml:"force_fallback_adapter"`
}

// LightsConfig holds point light generation and animation settings.
type LightsConfig struct {
	Capacity int    `yaml:"capacity"`
	Active   int    `yaml:"active"`
	Seed     uint64 `yaml:"seed"`
	Animate  bool   `yaml:"animate"`
}

// CameraConfig holds the viewer camera settings. Near and Far are true distances;
// the renderer swaps them when building the complementary depth projection.
type CameraConfig struct {
	FovDegrees float32    `yaml:"fov_degrees"`
	Near       float32    `yaml:"near"`
	Far        float32    `yaml:"far"`
	Eye        [3]float32 `yaml:"eye"`
	Target     [3]float32 `yaml:"target"`
	MoveSpeed  float32    `yaml:"move_speed"`
}

// SceneConfig holds the world transform applied to every mesh. Model names a .gltf or .glb
// file drawn instead of the procedural courtyard.
type SceneConfig struct {
	Model       string     `yaml:"model"`
	Scale       float32    `yaml:"scale"`
	Translation [3]float32 `yaml:"translation"`
}

// SkyboxConfig holds the six cube face images (+X, -X, +Y, -Y, +Z, -Z).
// When Faces is empty a procedural gradient sky is generated.
type SkyboxConfig struct {
	Faces    []string `yaml:"faces"`
	FaceSize int      `yaml:"face_size"`
}

// HeadlessConfig holds the settings of a windowless run. The soft backend always renders
// headless: it renders Frames frames and writes the last one to Output as a PNG.
type HeadlessConfig struct {
	Frames    int     `yaml:"frames"`
	FrameTime float32 `yaml:"frame_time"` // seconds between frames
	Output    string  `yaml:"output"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Deferred Shading",
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Renderer: RendererConfig{
			Backend:  BackendWGPU,
			Strategy: StrategyTiled,
			MSAA:     1,
			TileDim:  16,
		},
		Lights: LightsConfig{
			Capacity: 128,
			Active:   128,
			Seed:     1337,
			Animate:  true,
		},
		Camera: CameraConfig{
			FovDegrees: 45,
			Near:       0.05,
			Far:        300,
			Eye:        [3]float32{0, 12, -60},
			Target:     [3]float32{0, 0, 0},
			MoveSpeed:  10,
		},
		Scene: SceneConfig{
			Scale: 1,
		},
		Skybox: SkyboxConfig{
			FaceSize: 256,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Headless: HeadlessConfig{
			Frames:    1,
			FrameTime: 1.0 / 60,
			Output:    "frame.png",
		},
	}
}

// Validate checks the config for values the renderer cannot honor.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d must be positive", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	switch c.Renderer.Backend {
	case BackendWGPU, BackendSoft:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Renderer.Backend)
	}
	switch c.Renderer.Strategy {
	case StrategyTiled, StrategyPerPixel:
	default:
		return fmt.Errorf("%w: unknown lighting strategy %q", ErrInvalid, c.Renderer.Strategy)
	}
	switch c.Renderer.MSAA {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: msaa must be 1, 2, 4 or 8, got %d", ErrInvalid, c.Renderer.MSAA)
	}
	if c.Renderer.TileDim < 1 || c.Renderer.TileDim*c.Renderer.TileDim > 256 {
		return fmt.Errorf("%w: tile_dim %d does not fit a 256 invocation workgroup", ErrInvalid, c.Renderer.TileDim)
	}
	if c.Lights.Capacity <= 0 {
		return fmt.Errorf("%w: light capacity must be positive, got %d", ErrInvalid, c.Lights.Capacity)
	}
	if c.Lights.Active < 0 || c.Lights.Active > c.Lights.Capacity {
		return fmt.Errorf("%w: active lights %d outside [0, %d]", ErrInvalid, c.Lights.Active, c.Lights.Capacity)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("%w: camera planes near=%g far=%g", ErrInvalid, c.Camera.Near, c.Camera.Far)
	}
	if c.Camera.FovDegrees <= 0 || c.Camera.FovDegrees >= 180 {
		return fmt.Errorf("%w: camera fov %g", ErrInvalid, c.Camera.FovDegrees)
	}
	if n := len(c.Skybox.Faces); n != 0 && n != 6 {
		return fmt.Errorf("%w: skybox needs 6 faces, got %d", ErrInvalid, n)
	}
	if c.Skybox.FaceSize <= 0 {
		return fmt.Errorf("%w: skybox face size must be positive", ErrInvalid)
	}
	if c.Renderer.Backend == BackendSoft {
		if c.Headless.Frames < 1 {
			return fmt.Errorf("%w: headless run needs at least one frame, got %d", ErrInvalid, c.Headless.Frames)
		}
		if c.Headless.Output == "" {
			return fmt.Errorf("%w: headless run needs an output path", ErrInvalid)
		}
	}
	return nil
}
