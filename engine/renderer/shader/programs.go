package shader

import (
	_ "embed"
	"slices"
)

// Program keys. Each program is one WGSL module holding every entry point of a pass.
const (
	ProgramGBuffer          = "gbuffer"
	ProgramLightingPerPixel = "lighting_per_pixel"
	ProgramLightingTiled    = "lighting_tiled"
	ProgramCompositeTexture = "composite_texture"
	ProgramCompositeBuffer  = "composite_buffer"
)

// Entry point names.
const (
	EntryGBufferVertex     = "vs_main"
	EntryGBufferOpaque     = "fs_opaque"
	EntryGBufferAlphaTest  = "fs_alpha_test"
	EntryFullscreenVertex  = "vs_fullscreen"
	EntryLighting          = "fs_lighting"
	EntryLightingPerSample = "fs_lighting_per_sample"
	EntryTiled             = "cs_tiled"
	EntrySkyboxVertex      = "vs_skybox"
	EntryComposite         = "fs_composite"
)

//go:embed assets/gbuffer.wgsl
var gbufferSource string

//go:embed assets/lighting_inputs.wgsl
var lightingInputsSource string

//go:embed assets/lighting_per_pixel.wgsl
var lightingPerPixelSource string

//go:embed assets/lighting_tiled.wgsl
var lightingTiledSource string

//go:embed assets/composite_common.wgsl
var compositeCommonSource string

//go:embed assets/composite_texture.wgsl
var compositeTextureSource string

//go:embed assets/composite_buffer.wgsl
var compositeBufferSource string

var programSources = map[string]string{
	ProgramGBuffer:          gbufferSource,
	ProgramLightingPerPixel: lightingPerPixelSource,
	ProgramLightingTiled:    lightingTiledSource,
	ProgramCompositeTexture: compositeTextureSource,
	ProgramCompositeBuffer:  compositeBufferSource,
}

// Programs returns the registered program keys in sorted order.
func Programs() []string {
	keys := make([]string, 0, len(programSources))
	for k := range programSources {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ProgramSource returns the raw annotated source of a registered program.
//
// Parameters:
//   - program: the program key
//
// Returns:
//   - string: the un-processed WGSL source
//   - bool: false if the program is not registered
func ProgramSource(program string) (string, bool) {
	src, ok := programSources[program]
	return src, ok
}
