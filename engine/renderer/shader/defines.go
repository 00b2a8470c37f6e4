package shader

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Macro names substituted into the programs.
const (
	DefineSampleCount    = "SAMPLE_COUNT"
	DefineTileDim        = "TILE_DIM"
	DefineMaxLights      = "MAX_LIGHTS"
	DefineGBufferTexture = "GBUFFER_TEXTURE"
	DefineDepthTexture   = "DEPTH_TEXTURE"
	DefineLitTexture     = "LIT_TEXTURE"
)

// Defines is the macro set a program is compiled with, keyed by macro name.
type Defines map[string]string

// NewDefines builds the macro set of the deferred pipeline. The texture type macros select
// multisampled WGSL texture types when sampleCount is above 1.
//
// Parameters:
//   - sampleCount: the G-buffer sample count
//   - tileDim: the tiled lighting tile side in pixels
//   - maxLights: the light capacity, which sizes the per-tile light list
//
// Returns:
//   - Defines: the macro set
func NewDefines(sampleCount, tileDim, maxLights int) Defines {
	color, depth := "texture_2d", "texture_depth_2d"
	if sampleCount > 1 {
		color, depth = "texture_multisampled_2d", "texture_depth_multisampled_2d"
	}
	return Defines{
		DefineSampleCount:    strconv.Itoa(sampleCount),
		DefineTileDim:        strconv.Itoa(tileDim),
		DefineMaxLights:      strconv.Itoa(maxLights),
		DefineGBufferTexture: color,
		DefineDepthTexture:   depth,
		DefineLitTexture:     color,
	}
}

// Int returns a numeric macro, or fallback if it is missing or not a number.
func (d Defines) Int(name string, fallback int) int {
	if v, err := strconv.Atoi(d[name]); err == nil {
		return v
	}
	return fallback
}

// Key returns a stable string form of the macro set for use in cache keys.
func (d Defines) Key() string {
	names := slices.Sorted(maps.Keys(d))
	var sb strings.Builder
	for i, n := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(n)
		sb.WriteByte('=')
		sb.WriteString(d[n])
	}
	return sb.String()
}
