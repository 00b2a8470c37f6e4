package light

import "github.com/Carmen-Shannon/oxy-deferred/common"

// DefaultTileDim is the width and height in pixels of each screen-space tile used by tiled
// lighting. One compute workgroup of DefaultTileDim x DefaultTileDim invocations shades a tile.
const DefaultTileDim = 16

// MaxTileInvocations bounds a tile workgroup: TileDim * TileDim must not exceed it.
const MaxTileInvocations = 256

// TileCounts computes the number of tiles, and so the dispatch size, in each dimension for a
// framebuffer and tile side.
//
// Parameters:
//   - width: framebuffer width in pixels
//   - height: framebuffer height in pixels
//   - tileDim: the tile side in pixels
//
// Returns:
//   - tileCountX: number of tile columns, ceil(width / tileDim)
//   - tileCountY: number of tile rows, ceil(height / tileDim)
func TileCounts(width, height, tileDim int) (tileCountX, tileCountY int) {
	return common.CeilDiv(width, tileDim), common.CeilDiv(height, tileDim)
}

// ValidTileDim reports whether a tile side fits in one workgroup.
//
// Parameters:
//   - tileDim: the tile side in pixels
//
// Returns:
//   - bool: true if 1 <= tileDim and tileDim*tileDim <= MaxTileInvocations
func ValidTileDim(tileDim int) bool {
	return tileDim >= 1 && tileDim*tileDim <= MaxTileInvocations
}
