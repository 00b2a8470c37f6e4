package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagBackend  = flag.String("backend", "", "Device backend (wgpu or soft)")
	flagStrategy = flag.String("strategy", "", "Lighting strategy (tiled or per_pixel)")
	flagLights   = flag.Int("lights", -1, "Active point light count")
	flagMSAA     = flag.Int("msaa", 0, "MSAA sample count")
	flagTileDim  = flag.Int("tile-dim", 0, "Tiled lighting tile side in pixels")
	flagWidth    = flag.Int("width", 0, "Window width")
	flagHeight   = flag.Int("height", 0, "Window height")
	flagNoVSync  = flag.Bool("no-vsync", false, "Disable vsync")
	flagFrames   = flag.Int("frames", 0, "Frames rendered by a headless run")
	flagOutput   = flag.String("out", "", "PNG written by a headless run")
	flagModel    = flag.String("model", "", "glTF/GLB scene drawn instead of the courtyard")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagBackend != "" {
		cfg.Renderer.Backend = *flagBackend
	}
	if *flagStrategy != "" {
		cfg.Renderer.Strategy = *flagStrategy
	}
	if *flagLights >= 0 {
		cfg.Lights.Active = *flagLights
	}
	if *flagMSAA > 0 {
		cfg.Renderer.MSAA = *flagMSAA
	}
	if *flagTileDim > 0 {
		cfg.Renderer.TileDim = *flagTileDim
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
	if *flagNoVSync {
		cfg.Window.VSync = false
	}
	if *flagFrames > 0 {
		cfg.Headless.Frames = *flagFrames
	}
	if *flagOutput != "" {
		cfg.Headless.Output = *flagOutput
	}
	if *flagModel != "" {
		cfg.Scene.Model = *flagModel
	}
}
