package scene

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// CubeFaces is the number of layers of a cube map.
const CubeFaces = 6

// NewTexture uploads staged RGBA8 pixels into a shader-readable sRGB texture. Six-layer staging
// data becomes a cube map.
//
// Parameters:
//   - device: the device that owns the texture
//   - label: the debug label of the texture
//   - staging: the pixels to upload
//
// Returns:
//   - *gpu.Texture2D: the texture
//   - error: gpu.ErrInvalidConfig for inconsistent staging data, or the device error
func NewTexture(device gpu.Device, label string, staging common.TextureStagingData) (*gpu.Texture2D, error) {
	layers := int(max(staging.Layers, 1))
	if staging.Width == 0 || staging.Height == 0 || len(staging.Pixels) != staging.LayerSize()*layers {
		return nil, &gpu.ResourceError{
			Resource: label,
			Op:       "stage",
			Err:      fmt.Errorf("%w: %d bytes for %dx%dx%d texels", gpu.ErrInvalidConfig, len(staging.Pixels), staging.Width, staging.Height, layers),
		}
	}

	opts := []gpu.ResourceBuilderOption{
		gpu.WithLabel(label),
		gpu.WithSize(int(staging.Width), int(staging.Height)),
		gpu.WithFormat(gpu.FormatRGBA8UnormSrgb),
		gpu.WithBindFlags(gpu.BindShaderResource | gpu.BindCopyDst),
		gpu.WithArraySize(layers),
	}
	if layers == CubeFaces {
		opts = append(opts, gpu.WithCubeView())
	}
	tex, err := gpu.NewTexture2D(device, opts...)
	if err != nil {
		return nil, err
	}
	for i := range layers {
		if err := device.WriteTexture(tex.Texture(), i, staging.Layer(i)); err != nil {
			tex.Release()
			return nil, gpu.WrapResource(label, "upload", err)
		}
	}
	return tex, nil
}

// Checkerboard generates a single-layer checker pattern.
//
// Parameters:
//   - size: the edge length in pixels
//   - cells: the number of cells along each edge
//   - a, b: the RGBA colors of alternating cells
//
// Returns:
//   - common.TextureStagingData: the staged pixels
func Checkerboard(size, cells int, a, b [4]uint8) common.TextureStagingData {
	cell := max(size/max(cells, 1), 1)
	pix := make([]byte, size*size*4)
	for y := range size {
		for x := range size {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			copy(pix[(y*size+x)*4:], c[:])
		}
	}
	return common.TextureStagingData{Pixels: pix, Width: uint32(size), Height: uint32(size), Layers: 1}
}

// Cutout generates a leaf-like alpha-tested pattern: opaque inside an ellipse with transparent
// veins, fully transparent outside it.
//
// Parameters:
//   - size: the edge length in pixels
//   - color: the RGB color of the opaque texels
//
// Returns:
//   - common.TextureStagingData: the staged pixels
func Cutout(size int, color [3]uint8) common.TextureStagingData {
	pix := make([]byte, size*size*4)
	for y := range size {
		for x := range size {
			u := (float64(x)+0.5)/float64(size)*2 - 1
			v := (float64(y)+0.5)/float64(size)*2 - 1
			inside := u*u/0.36+v*v < 1
			vein := math.Abs(u) < 0.03 || math.Abs(math.Mod(v-math.Abs(u)+2, 0.4)) < 0.04
			i := (y*size + x) * 4
			copy(pix[i:], color[:])
			if inside && !vein {
				pix[i+3] = 255
			}
		}
	}
	return common.TextureStagingData{Pixels: pix, Width: uint32(size), Height: uint32(size), Layers: 1}
}

// CubeFaceDirection returns the direction addressed by texture coordinates (u, v) on a cube
// map face, the inverse of the lookup the shaders perform. Faces are ordered +X, -X, +Y, -Y, +Z, -Z.
//
// Parameters:
//   - face: the face index
//   - u, v: the [0, 1] texture coordinates
//
// Returns:
//   - [3]float32: an unnormalized direction whose major axis has magnitude 1
func CubeFaceDirection(face int, u, v float32) [3]float32 {
	s, t := 2*u-1, 2*v-1
	switch face {
	case 0:
		return [3]float32{1, -t, -s}
	case 1:
		return [3]float32{-1, -t, s}
	case 2:
		return [3]float32{s, 1, t}
	case 3:
		return [3]float32{s, -1, -t}
	case 4:
		return [3]float32{s, -t, 1}
	default:
		return [3]float32{-s, -t, -1}
	}
}

// GradientSky generates a six-face sky that blends from horizon to zenith above the horizon and
// from horizon to ground below it.
//
// Parameters:
//   - size: the edge length of each face in pixels
//   - zenith, horizon, ground: the RGB colors at elevation +90°, 0° and -90°
//
// Returns:
//   - common.TextureStagingData: six layers of staged pixels
func GradientSky(size int, zenith, horizon, ground [3]uint8) common.TextureStagingData {
	layer := size * size * 4
	pix := make([]byte, layer*CubeFaces)
	for face := range CubeFaces {
		for y := range size {
			for x := range size {
				dir := CubeFaceDirection(face, (float32(x)+0.5)/float32(size), (float32(y)+0.5)/float32(size))
				e := dir[1] / common.Length3(dir)
				target, t := zenith, float32(math.Sqrt(float64(max(e, 0))))
				if e < 0 {
					target, t = ground, min(-e*4, 1)
				}
				i := face*layer + (y*size+x)*4
				for c := range 3 {
					pix[i+c] = uint8(float32(horizon[c]) + (float32(target[c])-float32(horizon[c]))*t + 0.5)
				}
				pix[i+3] = 255
			}
		}
	}
	return common.TextureStagingData{Pixels: pix, Width: uint32(size), Height: uint32(size), Layers: CubeFaces}
}

// LoadSkybox decodes six face images, resampling each to a common square size.
//
// Parameters:
//   - faces: the image paths ordered +X, -X, +Y, -Y, +Z, -Z
//   - faceSize: the edge length of every face in the result
//
// Returns:
//   - common.TextureStagingData: six layers of staged pixels
//   - error: the first decoding error
func LoadSkybox(faces [CubeFaces]string, faceSize int) (common.TextureStagingData, error) {
	layer := faceSize * faceSize * 4
	pix := make([]byte, 0, layer*CubeFaces)
	for i, path := range faces {
		tex := common.ImportedTexture{Name: fmt.Sprintf("skybox face %d", i), Path: path}
		data, err := tex.DecodeSquare(faceSize)
		if err != nil {
			return common.TextureStagingData{}, fmt.Errorf("skybox face %d (%s): %w", i, path, err)
		}
		pix = append(pix, data...)
	}
	return common.TextureStagingData{Pixels: pix, Width: uint32(faceSize), Height: uint32(faceSize), Layers: CubeFaces}, nil
}
