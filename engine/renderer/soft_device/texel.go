package soft_device

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
	"github.com/x448/float16"
)

func unorm8(c float32) float32 {
	return float32(math.Round(float64(shading.Saturate(c)*255))) / 255
}

func half(c float32) float32 {
	return float16.Fromfloat32(c).Float32()
}

// quantize rounds a linear color to the precision f stores it with. Channels the format lacks
// read back as 0, alpha as 1.
func quantize(f gpu.Format, c [4]float32) [4]float32 {
	switch f {
	case gpu.FormatRGBA8Unorm, gpu.FormatBGRA8Unorm:
		return [4]float32{unorm8(c[0]), unorm8(c[1]), unorm8(c[2]), unorm8(c[3])}
	case gpu.FormatRGBA8UnormSrgb, gpu.FormatBGRA8UnormSrgb:
		var out [4]float32
		for i := range 3 {
			out[i] = shading.SRGBToLinear(unorm8(shading.LinearToSRGB(c[i])))
		}
		out[3] = unorm8(c[3])
		return out
	case gpu.FormatRGBA16Float:
		return [4]float32{half(c[0]), half(c[1]), half(c[2]), half(c[3])}
	case gpu.FormatRG16Float:
		return [4]float32{half(c[0]), half(c[1]), 0, 1}
	case gpu.FormatR32Float:
		return [4]float32{c[0], 0, 0, 1}
	case gpu.FormatDepth32Float, gpu.FormatDepth32FloatStencil8:
		return [4]float32{shading.Saturate(c[0]), 0, 0, 1}
	default:
		return c
	}
}

// decodeTexel reads one uploaded texel of f into linear floats.
func decodeTexel(f gpu.Format, b []byte) [4]float32 {
	f32 := func(o int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[o:])) }
	f16 := func(o int) float32 { return float16.Frombits(binary.LittleEndian.Uint16(b[o:])).Float32() }
	u8 := func(i int) float32 { return float32(b[i]) / 255 }

	switch f {
	case gpu.FormatRGBA8Unorm:
		return [4]float32{u8(0), u8(1), u8(2), u8(3)}
	case gpu.FormatBGRA8Unorm:
		return [4]float32{u8(2), u8(1), u8(0), u8(3)}
	case gpu.FormatRGBA8UnormSrgb:
		return [4]float32{shading.SRGBToLinear(u8(0)), shading.SRGBToLinear(u8(1)), shading.SRGBToLinear(u8(2)), u8(3)}
	case gpu.FormatBGRA8UnormSrgb:
		return [4]float32{shading.SRGBToLinear(u8(2)), shading.SRGBToLinear(u8(1)), shading.SRGBToLinear(u8(0)), u8(3)}
	case gpu.FormatRGBA16Float:
		return [4]float32{f16(0), f16(2), f16(4), f16(6)}
	case gpu.FormatRG16Float:
		return [4]float32{f16(0), f16(2), 0, 1}
	case gpu.FormatR32Float:
		return [4]float32{f32(0), 0, 0, 1}
	case gpu.FormatRGBA32Float:
		return [4]float32{f32(0), f32(4), f32(8), f32(12)}
	case gpu.FormatDepth32Float:
		return [4]float32{f32(0), 0, 0, 1}
	}
	return [4]float32{}
}

// writeLayer decodes tightly packed texels into one layer of a single-sampled texture.
func (t *texture) writeLayer(layer int, data []byte) error {
	size := t.desc.Format.TexelSize()
	if size == 0 {
		return fmt.Errorf("%w: uploads to %s", gpu.ErrUnsupported, t.desc.Format)
	}
	if t.desc.SampleCount != 1 {
		return fmt.Errorf("%w: upload to a multisampled texture", gpu.ErrInvalidConfig)
	}
	if layer < 0 || layer >= t.desc.ArrayLayers {
		return fmt.Errorf("%w: layer %d of %d", gpu.ErrInvalidConfig, layer, t.desc.ArrayLayers)
	}
	want := t.desc.Width * t.desc.Height * size
	if len(data) != want {
		return fmt.Errorf("%w: layer data is %d bytes, want %d", gpu.ErrInvalidConfig, len(data), want)
	}
	base := t.texel(layer, 0, 0, 0)
	for i := range t.desc.Width * t.desc.Height {
		c := decodeTexel(t.desc.Format, data[i*size:])
		copy(t.data[(base+i)*4:], c[:])
	}
	return nil
}

// fill sets every texel of every sample of layer to c, quantized to the texture format.
func (t *texture) fill(layer int, c [4]float32) {
	c = quantize(t.desc.Format, c)
	n := t.desc.SampleCount * t.desc.Width * t.desc.Height
	base := t.texel(layer, 0, 0, 0)
	for i := range n {
		copy(t.data[(base+i)*4:], c[:])
	}
}

// fillDepth sets the depth channel of every texel of layer, leaving stencil untouched.
func (t *texture) fillDepth(layer int, d float32) {
	d = quantize(t.desc.Format, [4]float32{d})[0]
	n := t.desc.SampleCount * t.desc.Width * t.desc.Height
	base := t.texel(layer, 0, 0, 0)
	for i := range n {
		t.data[(base+i)*4] = d
	}
}

func (t *texture) fillStencil(layer int, s uint8) {
	if t.stencil == nil {
		return
	}
	n := t.desc.SampleCount * t.desc.Width * t.desc.Height
	base := t.texel(layer, 0, 0, 0)
	for i := range n {
		t.stencil[base+i] = s
	}
}

// load fetches one texel of view layer layer. Out-of-range coordinates read as zero.
func (v *textureView) load(layer, x, y, sample int) [4]float32 {
	if x < 0 || y < 0 || x >= v.width() || y >= v.height() || sample < 0 || sample >= v.samples() {
		return [4]float32{}
	}
	i := v.texel(layer, sample, x, y) * 4
	d := v.tex.data
	return [4]float32{d[i], d[i+1], d[i+2], d[i+3]}
}

func (v *textureView) store(layer, x, y, sample int, c [4]float32) {
	c = quantize(v.format(), c)
	copy(v.tex.data[v.texel(layer, sample, x, y)*4:], c[:])
}

func wrap(i, n int, mode gpu.AddressMode) int {
	if mode == gpu.AddressModeRepeat {
		i %= n
		if i < 0 {
			i += n
		}
		return i
	}
	return min(max(i, 0), n-1)
}

// sample2D filters layer of a single-sampled view at normalized coordinates (u, v).
func (v *textureView) sample2D(s *sampler, layer int, u, w float32) [4]float32 {
	width, height := v.width(), v.height()
	mode := s.desc.AddressMode
	x := u*float32(width) - 0.5
	y := w*float32(height) - 0.5
	if s.desc.Filter == gpu.FilterModeNearest {
		xi := wrap(int(math.Floor(float64(x+0.5))), width, mode)
		yi := wrap(int(math.Floor(float64(y+0.5))), height, mode)
		return v.load(layer, xi, yi, 0)
	}

	x0f, y0f := math.Floor(float64(x)), math.Floor(float64(y))
	fx, fy := x-float32(x0f), y-float32(y0f)
	x0, y0 := int(x0f), int(y0f)
	x1, y1 := wrap(x0+1, width, mode), wrap(y0+1, height, mode)
	x0, y0 = wrap(x0, width, mode), wrap(y0, height, mode)

	c00 := v.load(layer, x0, y0, 0)
	c10 := v.load(layer, x1, y0, 0)
	c01 := v.load(layer, x0, y1, 0)
	c11 := v.load(layer, x1, y1, 0)
	var out [4]float32
	for i := range 4 {
		top := c00[i] + (c10[i]-c00[i])*fx
		bottom := c01[i] + (c11[i]-c01[i])*fx
		out[i] = top + (bottom-top)*fy
	}
	return out
}

// sampleCube filters a cube view in direction dir. Filtering does not cross face edges.
func (v *textureView) sampleCube(s *sampler, dir [3]float32) [4]float32 {
	face, u, w := shading.CubeFace(dir)
	clamped := *s
	clamped.desc.AddressMode = gpu.AddressModeClampToEdge
	return v.sample2D(&clamped, face, u, w)
}
