package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/x448/float16"
)

// GPUPointLightSource is the canonical WGSL definition of the PointLight struct.
// Matches GPUPointLight layout exactly (32 bytes, std430 aligned).
//
//go:embed assets/point_light.wgsl
var GPUPointLightSource string

// GPUPointLight is the GPU-aligned representation of one point light in view space.
// Position and attenuation begin share the first 16-byte group, color and attenuation end
// the second, so a light is fetched with two vec4 loads.
// Size: 32 bytes (std430 / WGSL aligned).
type GPUPointLight struct {
	PositionView     [3]float32 // offset  0: view-space position
	AttenuationBegin float32    // offset 12: distance where falloff starts
	Color            [3]float32 // offset 16: linear RGB color
	AttenuationEnd   float32    // offset 28: distance where the light reaches zero
}

// Size returns the size of the GPUPointLight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g GPUPointLight) Size() int {
	return int(unsafe.Sizeof(g))
}

// Marshal serializes the GPUPointLight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g GPUPointLight) Marshal() []byte {
	buf := make([]byte, 32)
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.PositionView[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Color[i]))
	}
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(g.AttenuationBegin))
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(g.AttenuationEnd))
	return buf
}

// DecodePointLights reads every complete GPUPointLight record in buf, up to limit records.
//
// Parameters:
//   - buf: bytes produced by concatenated Marshal calls
//   - limit: the maximum number of records to decode
//
// Returns:
//   - []GPUPointLight: the decoded lights
func DecodePointLights(buf []byte, limit int) []GPUPointLight {
	n := min(len(buf)/32, limit)
	out := make([]GPUPointLight, n)
	for i := range out {
		rec := buf[i*32:]
		for c := range 3 {
			out[i].PositionView[c] = math.Float32frombits(binary.LittleEndian.Uint32(rec[c*4:]))
			out[i].Color[c] = math.Float32frombits(binary.LittleEndian.Uint32(rec[16+c*4:]))
		}
		out[i].AttenuationBegin = math.Float32frombits(binary.LittleEndian.Uint32(rec[12:]))
		out[i].AttenuationEnd = math.Float32frombits(binary.LittleEndian.Uint32(rec[28:]))
	}
	return out
}

// GPUFramebufferFlatElementSource is the canonical WGSL definition of the
// FramebufferFlatElement struct (8 bytes).
//
//go:embed assets/framebuffer_flat_element.wgsl
var GPUFramebufferFlatElementSource string

// FramebufferFlatElement is one sample of the flat lit buffer written by tiled lighting:
// an RGBA16F color packed into two words, rb = r | b<<16 and ga = g | a<<16.
// Size: 8 bytes.
type FramebufferFlatElement struct {
	RB uint32
	GA uint32
}

// FramebufferFlatElementSize is the byte size of one lit buffer element.
const FramebufferFlatElementSize = 8

// Size returns the size of the FramebufferFlatElement struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (8)
func (e FramebufferFlatElement) Size() int {
	return FramebufferFlatElementSize
}

// Marshal serializes the element into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 8-byte buffer
func (e FramebufferFlatElement) Marshal() []byte {
	buf := make([]byte, FramebufferFlatElementSize)
	binary.LittleEndian.PutUint32(buf[0:], e.RB)
	binary.LittleEndian.PutUint32(buf[4:], e.GA)
	return buf
}

// PackRGBA16 packs a linear color into a FramebufferFlatElement with half-float rounding.
//
// Parameters:
//   - c: the (r, g, b, a) color
//
// Returns:
//   - FramebufferFlatElement: the packed element
func PackRGBA16(c [4]float32) FramebufferFlatElement {
	h := func(v float32) uint32 { return uint32(float16.Fromfloat32(v).Bits()) }
	return FramebufferFlatElement{
		RB: h(c[0]) | h(c[2])<<16,
		GA: h(c[1]) | h(c[3])<<16,
	}
}

// Unpack returns the color stored in the element.
//
// Returns:
//   - [4]float32: the (r, g, b, a) color
func (e FramebufferFlatElement) Unpack() [4]float32 {
	f := func(bits uint32) float32 { return float16.Frombits(uint16(bits)).Float32() }
	return [4]float32{f(e.RB & 0xffff), f(e.GA & 0xffff), f(e.RB >> 16), f(e.GA >> 16)}
}

// DecodeFramebufferFlatElement reads element i from a lit buffer's bytes.
//
// Parameters:
//   - buf: the raw lit buffer contents
//   - i: the element index
//
// Returns:
//   - FramebufferFlatElement: the element
func DecodeFramebufferFlatElement(buf []byte, i int) FramebufferFlatElement {
	o := i * FramebufferFlatElementSize
	return FramebufferFlatElement{
		RB: binary.LittleEndian.Uint32(buf[o:]),
		GA: binary.LittleEndian.Uint32(buf[o+4:]),
	}
}

// PutFramebufferFlatElement writes element i into a lit buffer's bytes.
//
// Parameters:
//   - buf: the raw lit buffer contents
//   - i: the element index
//   - e: the element to store
func PutFramebufferFlatElement(buf []byte, i int, e FramebufferFlatElement) {
	o := i * FramebufferFlatElementSize
	binary.LittleEndian.PutUint32(buf[o:], e.RB)
	binary.LittleEndian.PutUint32(buf[o+4:], e.GA)
}

// FlatElementIndex returns the lit buffer index of one sample. Samples are stored plane by
// plane: all pixels of sample 0, then all pixels of sample 1, and so on.
//
// Parameters:
//   - x, y: the pixel coordinates
//   - sample: the sample index
//   - width, height: the framebuffer dimensions
//
// Returns:
//   - int: the element index
func FlatElementIndex(x, y, sample, width, height int) int {
	return (sample*height+y)*width + x
}
