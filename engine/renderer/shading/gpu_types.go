package shading

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// GPUFrameConstantsSource is the canonical WGSL definition of the FrameConstants struct.
// Matches GPUFrameConstants layout exactly (304 bytes, uniform aligned).
//
//go:embed assets/frame_constants.wgsl
var GPUFrameConstantsSource string

// GPUShadingLibrarySource holds the WGSL versions of the functions in this package, shared by
// every lighting and composite program.
//
//go:embed assets/shading.wgsl
var GPUShadingLibrarySource string

// GPUFrameConstants is the per-frame constant block bound to every pass.
// Matches the WGSL FrameConstants struct layout exactly (see GPUFrameConstantsSource).
// Size: 304 bytes.
//
// Layout:
//
//	mat4x4<f32> world_view_proj         (64 bytes, offset   0)
//	mat4x4<f32> world_view              (64 bytes, offset  64)
//	mat4x4<f32> view_proj               (64 bytes, offset 128)
//	mat4x4<f32> proj                    (64 bytes, offset 192)
//	vec4<f32>   camera_near_far         (16 bytes, offset 256)
//	vec4<u32>   framebuffer_dimensions  (16 bytes, offset 272)
//	u32         light_count + 3 pad     (16 bytes, offset 288)
type GPUFrameConstants struct {
	WorldViewProj [16]float32
	WorldView     [16]float32
	ViewProj      [16]float32
	Proj          [16]float32

	// CameraNearFar holds (far, near, 0, 0). The pair is swapped because depth is complementary.
	CameraNearFar [4]float32

	// FramebufferDimensions holds (width, height, sample count, 0).
	FramebufferDimensions [4]uint32

	LightCount uint32
	_pad       [3]uint32
}

// Size returns the size of the GPUFrameConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (304)
func (g GPUFrameConstants) Size() int {
	return int(unsafe.Sizeof(g))
}

// Marshal serializes the GPUFrameConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 304-byte buffer ready for GPU upload
func (g GPUFrameConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	for m, mat := range [4]*[16]float32{&g.WorldViewProj, &g.WorldView, &g.ViewProj, &g.Proj} {
		for i := range 16 {
			binary.LittleEndian.PutUint32(buf[m*64+i*4:], math.Float32bits(mat[i]))
		}
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[256+i*4:], math.Float32bits(g.CameraNearFar[i]))
		binary.LittleEndian.PutUint32(buf[272+i*4:], g.FramebufferDimensions[i])
	}
	binary.LittleEndian.PutUint32(buf[288:], g.LightCount)
	return buf
}

// DecodeFrameConstants reads a GPUFrameConstants back from its uploaded byte form.
//
// Parameters:
//   - buf: at least 304 bytes produced by Marshal
//
// Returns:
//   - GPUFrameConstants: the decoded constants
//   - error: an error if buf is too short
func DecodeFrameConstants(buf []byte) (GPUFrameConstants, error) {
	var g GPUFrameConstants
	if len(buf) < g.Size() {
		return g, fmt.Errorf("frame constants: need %d bytes, got %d", g.Size(), len(buf))
	}
	for m, mat := range [4]*[16]float32{&g.WorldViewProj, &g.WorldView, &g.ViewProj, &g.Proj} {
		for i := range 16 {
			mat[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[m*64+i*4:]))
		}
	}
	for i := range 4 {
		g.CameraNearFar[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[256+i*4:]))
		g.FramebufferDimensions[i] = binary.LittleEndian.Uint32(buf[272+i*4:])
	}
	g.LightCount = binary.LittleEndian.Uint32(buf[288:])
	return g, nil
}

// Far returns the far clip distance.
func (g GPUFrameConstants) Far() float32 { return g.CameraNearFar[0] }

// Near returns the near clip distance.
func (g GPUFrameConstants) Near() float32 { return g.CameraNearFar[1] }

// Dimensions returns the framebuffer width, height and sample count.
func (g GPUFrameConstants) Dimensions() (width, height, samples int) {
	return int(g.FramebufferDimensions[0]), int(g.FramebufferDimensions[1]), int(g.FramebufferDimensions[2])
}
