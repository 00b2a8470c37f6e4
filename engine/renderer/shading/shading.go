// Package shading holds the shading math of the deferred pipeline in plain Go: G-buffer
// encodings, complementary depth linearization, view-position reconstruction, the Phong
// light accumulation with a linear attenuation window, tonemapping and cube map addressing.
//
// The WGSL programs in the shader package implement the same functions; the CPU device runs
// these directly, and the tests use them as the reference for both.
package shading

import (
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

const (
	// DefaultSpecularAmount is the specular intensity written to the G-buffer for every surface.
	DefaultSpecularAmount float32 = 0.9

	// DefaultSpecularPower is the Phong exponent written to the G-buffer for every surface.
	DefaultSpecularPower float32 = 25

	// AlphaTestThreshold is the albedo alpha below which alpha-tested fragments are discarded.
	AlphaTestThreshold float32 = 0.3

	// perSampleNormalDot is the minimum normal agreement between samples of one pixel before
	// the pixel is shaded per sample.
	perSampleNormalDot float32 = 0.99
)

// Surface is one decoded G-buffer sample in view space.
type Surface struct {
	PositionView   [3]float32
	Normal         [3]float32
	Albedo         [4]float32
	SpecularAmount float32
	SpecularPower  float32

	// ZGrad is the screen-space derivative of view-space z: (ddx, ddy).
	ZGrad [2]float32
}

// EncodeSphereMap packs a unit view-space normal into two [0, 1] values.
// The encoding is singular only for normals pointing straight away from the camera (z = -1).
//
// Parameters:
//   - n: unit normal in view space (camera looks down -z)
//
// Returns:
//   - [2]float32: the encoded normal
func EncodeSphereMap(n [3]float32) [2]float32 {
	onePlusZ := 1 + n[2]
	p := float32(math.Sqrt(float64(n[0]*n[0] + n[1]*n[1] + onePlusZ*onePlusZ)))
	if p == 0 {
		return [2]float32{0.5, 0.5}
	}
	return [2]float32{n[0]/p*0.5 + 0.5, n[1]/p*0.5 + 0.5}
}

// DecodeSphereMap unpacks a normal encoded by EncodeSphereMap.
//
// Parameters:
//   - e: the encoded normal
//
// Returns:
//   - [3]float32: the unit view-space normal
func DecodeSphereMap(e [2]float32) [3]float32 {
	tx, ty := e[0]-e[0]*e[0], e[1]-e[1]*e[1]
	f := tx + ty
	m := float32(math.Sqrt(float64(max(4*f-1, 0))))
	return [3]float32{
		m * (e[0]*4 - 2),
		m * (e[1]*4 - 2),
		8*f - 3,
	}
}

// LinearDepth converts a complementary depth-buffer value to a positive view distance.
// A depth of 0 maps to the far plane and 1 to the near plane.
//
// Parameters:
//   - d: the stored depth value
//   - proj: the column-major projection matrix built with swapped planes
//
// Returns:
//   - float32: the distance along the view direction
func LinearDepth(d float32, proj []float32) float32 {
	return proj[14] / (d + proj[10])
}

// ScreenToNDC maps a framebuffer position (pixel centres at +0.5) to normalized device
// coordinates, flipping y so that +y is up.
//
// Parameters:
//   - px, py: framebuffer position
//   - width, height: framebuffer dimensions
//
// Returns:
//   - [2]float32: the NDC position
func ScreenToNDC(px, py float32, width, height int) [2]float32 {
	return [2]float32{
		2*px/float32(width) - 1,
		1 - 2*py/float32(height),
	}
}

// ViewPosition reconstructs a view-space position from its NDC position and view distance.
//
// Parameters:
//   - ndc: the NDC position
//   - dist: positive view distance, as returned by LinearDepth
//   - proj: the projection matrix
//
// Returns:
//   - [3]float32: the view-space position
func ViewPosition(ndc [2]float32, dist float32, proj []float32) [3]float32 {
	return [3]float32{
		ndc[0] * dist / proj[0],
		ndc[1] * dist / proj[5],
		-dist,
	}
}

// Saturate clamps v to [0, 1].
func Saturate(v float32) float32 {
	return min(max(v, 0), 1)
}

// Linstep ramps linearly from 0 at lo to 1 at hi, clamped. lo may exceed hi.
func Linstep(lo, hi, v float32) float32 {
	return Saturate((v - lo) / (hi - lo))
}

// AccumulateBRDF adds the contribution of one point light to lit. Lights farther than
// attenuationEnd contribute nothing; between attenuationBegin and attenuationEnd the
// contribution falls off linearly.
//
// Parameters:
//   - s: the surface sample
//   - lightPos: view-space light position
//   - color: linear light color
//   - attenuationBegin, attenuationEnd: the attenuation window
//   - lit: accumulated radiance, updated in place
func AccumulateBRDF(s *Surface, lightPos, color [3]float32, attenuationBegin, attenuationEnd float32, lit *[3]float32) {
	toLight := common.Sub3(lightPos, s.PositionView)
	dist := common.Length3(toLight)
	if dist >= attenuationEnd || dist == 0 {
		return
	}
	attenuation := Linstep(attenuationEnd, attenuationBegin, dist)
	l := [3]float32{toLight[0] / dist, toLight[1] / dist, toLight[2] / dist}

	nDotL := common.Dot3(s.Normal, l)
	if nDotL <= 0 {
		return
	}
	view := common.Normalize3(s.PositionView)
	r := reflect(l, s.Normal)
	rDotV := max(common.Dot3(r, view), 0)
	specular := float32(math.Pow(float64(rDotV), float64(s.SpecularPower)))

	for i := range 3 {
		contrib := attenuation * color[i]
		lit[i] += s.Albedo[i] * (contrib*nDotL + s.SpecularAmount*contrib*specular)
	}
}

func reflect(i, n [3]float32) [3]float32 {
	d := 2 * common.Dot3(i, n)
	return [3]float32{i[0] - d*n[0], i[1] - d*n[1], i[2] - d*n[2]}
}

// RequiresPerSampleShading reports whether the samples of one pixel differ enough in depth
// or orientation that shading sample 0 alone would be visibly wrong.
//
// Parameters:
//   - samples: the decoded samples of one pixel, sample 0 first
//
// Returns:
//   - bool: true if each sample must be shaded separately
func RequiresPerSampleShading(samples []Surface) bool {
	if len(samples) < 2 {
		return false
	}
	s0 := &samples[0]
	maxZDelta := abs32(s0.ZGrad[0]) + abs32(s0.ZGrad[1])
	for i := 1; i < len(samples); i++ {
		si := &samples[i]
		if abs32(si.PositionView[2]-s0.PositionView[2]) > maxZDelta {
			return true
		}
		if common.Dot3(si.Normal, s0.Normal) < perSampleNormalDot {
			return true
		}
	}
	return false
}

// Tonemap applies the Reinhard operator c / (1 + c) to each color channel.
func Tonemap(c [3]float32) [3]float32 {
	return [3]float32{c[0] / (1 + c[0]), c[1] / (1 + c[1]), c[2] / (1 + c[2])}
}

// CubeFace returns the cube map face and the [0, 1] texture coordinates a direction
// addresses. Faces are ordered +X, -X, +Y, -Y, +Z, -Z.
//
// Parameters:
//   - dir: the lookup direction, need not be normalized
//
// Returns:
//   - int: the face index
//   - float32, float32: the (u, v) coordinates on that face
func CubeFace(dir [3]float32) (int, float32, float32) {
	ax, ay, az := abs32(dir[0]), abs32(dir[1]), abs32(dir[2])
	var face int
	var sc, tc, ma float32
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if dir[0] >= 0 {
			face, sc, tc = 0, -dir[2], -dir[1]
		} else {
			face, sc, tc = 1, dir[2], -dir[1]
		}
	case ay >= az:
		ma = ay
		if dir[1] >= 0 {
			face, sc, tc = 2, dir[0], dir[2]
		} else {
			face, sc, tc = 3, dir[0], -dir[2]
		}
	default:
		ma = az
		if dir[2] >= 0 {
			face, sc, tc = 4, dir[0], -dir[1]
		} else {
			face, sc, tc = 5, -dir[0], -dir[1]
		}
	}
	if ma == 0 {
		return 4, 0.5, 0.5
	}
	return face, (sc/ma + 1) / 2, (tc/ma + 1) / 2
}

// SRGBToLinear decodes one sRGB-encoded channel.
func SRGBToLinear(c float32) float32 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return float32(math.Pow((float64(c)+0.055)/1.055, 2.4))
}

// LinearToSRGB encodes one linear channel as sRGB.
func LinearToSRGB(c float32) float32 {
	c = Saturate(c)
	if c <= 0.0031308 {
		return c * 12.92
	}
	return float32(1.055*math.Pow(float64(c), 1/2.4) - 0.055)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
