package shading

import (
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// Tile frustum plane indices.
const (
	TilePlaneRight = iota
	TilePlaneLeft
	TilePlaneBottom
	TilePlaneTop
	TilePlaneNear
	TilePlaneFar
)

// TileFrustum is the view-space sub-frustum covering one screen tile between the nearest and
// farthest surfaces inside it. Each plane is (a, b, c, d) with the inside at a*x+b*y+c*z+d >= 0.
type TileFrustum [6][4]float32

// NewTileFrustum builds the frustum of tile (tileX, tileY), where tile (0, 0) is the
// top-left tile of the framebuffer.
//
// Parameters:
//   - tileX, tileY: the tile (workgroup) coordinates
//   - width, height: the framebuffer dimensions
//   - tileDim: the tile side in pixels
//   - proj: the projection matrix
//   - minZ, maxZ: the positive view distances bounding the tile's surfaces
//
// Returns:
//   - TileFrustum: the normalized tile planes
func NewTileFrustum(tileX, tileY, width, height, tileDim int, proj []float32, minZ, maxZ float32) TileFrustum {
	// Re-project so the tile spans [-1, 1]: x' = scale*x_ndc + bias, with w = -z_view.
	scaleX := float32(width) / float32(tileDim)
	scaleY := float32(height) / float32(tileDim)
	biasX := scaleX - 2*float32(tileX) - 1
	biasY := scaleY - 2*float32(tileY) - 1

	c1 := [4]float32{proj[0] * scaleX, 0, -biasX, 0}
	c2 := [4]float32{0, -proj[5] * scaleY, -biasY, 0}
	c4 := [4]float32{0, 0, -1, 0}

	var f TileFrustum
	for i := range 4 {
		f[TilePlaneRight][i] = c4[i] - c1[i]
		f[TilePlaneLeft][i] = c4[i] + c1[i]
		f[TilePlaneBottom][i] = c4[i] - c2[i]
		f[TilePlaneTop][i] = c4[i] + c2[i]
	}
	for p := range 4 {
		n := float32(math.Sqrt(float64(f[p][0]*f[p][0] + f[p][1]*f[p][1] + f[p][2]*f[p][2])))
		for i := range 4 {
			f[p][i] /= n
		}
	}
	f[TilePlaneNear] = [4]float32{0, 0, -1, -minZ}
	f[TilePlaneFar] = [4]float32{0, 0, 1, maxZ}
	return f
}

// IntersectsSphere reports whether a sphere may touch the tile volume. The test is
// conservative: it never rejects a sphere that overlaps the volume.
//
// Parameters:
//   - center: view-space sphere centre
//   - radius: sphere radius
//
// Returns:
//   - bool: false only if the sphere lies entirely outside some plane
func (f *TileFrustum) IntersectsSphere(center [3]float32, radius float32) bool {
	for i := range f {
		d := common.Dot3([3]float32{f[i][0], f[i][1], f[i][2]}, center) + f[i][3]
		if d < -radius {
			return false
		}
	}
	return true
}

// TileDepthBounds tracks the view distance range of the valid surfaces in one tile.
// The zero value is not ready; use NewTileDepthBounds.
type TileDepthBounds struct {
	MinZ float32
	MaxZ float32
}

// NewTileDepthBounds returns empty bounds that reject every light until a sample is added.
func NewTileDepthBounds() TileDepthBounds {
	return TileDepthBounds{MinZ: math.MaxFloat32, MaxZ: 0}
}

// Add widens the bounds by one view distance if it lies in [near, far).
//
// Parameters:
//   - dist: positive view distance of a sample
//   - near, far: the camera clip distances
//
// Returns:
//   - bool: true if the sample was inside the clip range and counted
func (b *TileDepthBounds) Add(dist, near, far float32) bool {
	if dist < near || dist >= far {
		return false
	}
	b.MinZ = min(b.MinZ, dist)
	b.MaxZ = max(b.MaxZ, dist)
	return true
}
