package soft_device

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
)

var lightingRoles = []shader.AnnotationArg{
	shader.RoleFrameConstants,
	shader.RoleLights,
	shader.RoleGBufferNormalSpecular,
	shader.RoleGBufferAlbedo,
	shader.RoleGBufferPosZGrad,
	shader.RoleDepth,
}

func init() {
	registerVertex(shader.ProgramLightingPerPixel, shader.EntryFullscreenVertex, fullscreenVertex)
	registerFragment(shader.ProgramLightingPerPixel, shader.EntryLighting, perPixelLighting, lightingRoles...)
	registerFragment(shader.ProgramLightingPerPixel, shader.EntryLightingPerSample, perPixelLighting, lightingRoles...)
	registerCompute(shader.ProgramLightingTiled, shader.EntryTiled, tiledLighting,
		append([]shader.AnnotationArg{shader.RoleLitBuffer}, lightingRoles...)...)
}

// fullscreenVertex emits one triangle covering the framebuffer at device depth 0.
func fullscreenVertex(_ *bindings, in *vertexInput, out *vertexOutput) {
	u := float32((in.VertexIndex << 1) & 2)
	v := float32(in.VertexIndex & 2)
	out.Position = [4]float32{u*2 - 1, v*2 - 1, 0, 1}
}

// loadSurface decodes the G-buffer sample of pixel (x, y) shaded at framebuffer position (px, py).
func loadSurface(b *bindings, x, y, sample int, px, py float32) shading.Surface {
	proj := b.frame.Proj[:]
	w, h, _ := b.frame.Dimensions()
	d := b.view(shader.RoleDepth).load(0, x, y, sample)[0]
	ns := b.view(shader.RoleGBufferNormalSpecular).load(0, x, y, sample)
	zgrad := b.view(shader.RoleGBufferPosZGrad).load(0, x, y, sample)
	return shading.Surface{
		PositionView:   shading.ViewPosition(shading.ScreenToNDC(px, py, w, h), shading.LinearDepth(d, proj), proj),
		Normal:         shading.DecodeSphereMap([2]float32{ns[0], ns[1]}),
		Albedo:         b.view(shader.RoleGBufferAlbedo).load(0, x, y, sample),
		SpecularAmount: ns[2],
		SpecularPower:  ns[3],
		ZGrad:          [2]float32{zgrad[0], zgrad[1]},
	}
}

func shadeLight(s *shading.Surface, l *light.GPUPointLight, lit *[3]float32) {
	shading.AccumulateBRDF(s, l.PositionView, l.Color, l.AttenuationBegin, l.AttenuationEnd, lit)
}

// perPixelLighting shades every active light for one pixel. The sample index is 0 unless the
// pass runs per sample.
func perPixelLighting(b *bindings, in *fragmentInput, out *fragmentOutput) {
	s := loadSurface(b, in.X, in.Y, in.Sample, float32(in.X)+0.5, float32(in.Y)+0.5)
	var lit [3]float32
	for i := range b.lights {
		shadeLight(&s, &b.lights[i], &lit)
	}
	out.Colors[0] = [4]float32{lit[0], lit[1], lit[2], 0}
}

// tiledLighting shades one tile: it bounds the tile's depth, culls every light against the
// tile frustum, then shades each pixel with the surviving lights into the flat lit buffer.
func tiledLighting(b *bindings, group [3]int, size [3]uint32) {
	tileDim := int(size[0])
	samples := b.defines.Int(shader.DefineSampleCount, 1)
	width, height, _ := b.frame.Dimensions()
	near, far := b.frame.Near(), b.frame.Far()
	depth := b.view(shader.RoleDepth)
	lit := b.buffer(shader.RoleLitBuffer)

	x0, y0 := group[0]*tileDim, group[1]*tileDim
	x1, y1 := min(x0+tileDim, width), min(y0+tileDim, height)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	tw := x1 - x0
	surfaces := make([]shading.Surface, tw*(y1-y0)*samples)
	valid := make([]bool, len(surfaces))
	bounds := shading.NewTileDepthBounds()
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			base := ((y-y0)*tw + (x - x0)) * samples
			for si := range samples {
				s := loadSurface(b, x, y, si, float32(x)+0.5, float32(y)+0.5)
				surfaces[base+si] = s
				valid[base+si] = depth.load(0, x, y, si)[0] > 0 && bounds.Add(-s.PositionView[2], near, far)
			}
		}
	}

	frustum := shading.NewTileFrustum(group[0], group[1], width, height, tileDim, b.frame.Proj[:], bounds.MinZ, bounds.MaxZ)
	var visible []int
	for i := range b.lights {
		if frustum.IntersectsSphere(b.lights[i].PositionView, b.lights[i].AttenuationEnd) {
			visible = append(visible, i)
		}
	}

	shade := func(s *shading.Surface) light.FramebufferFlatElement {
		var c [3]float32
		for _, i := range visible {
			shadeLight(s, &b.lights[i], &c)
		}
		return light.PackRGBA16([4]float32{c[0], c[1], c[2], 1})
	}
	zero := light.PackRGBA16([4]float32{})
	put := func(x, y, si int, e light.FramebufferFlatElement) {
		i := light.FlatElementIndex(x, y, si, width, height)
		if (i+1)*light.FramebufferFlatElementSize <= len(lit) {
			light.PutFramebufferFlatElement(lit, i, e)
		}
	}

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			base := ((y-y0)*tw + (x - x0)) * samples
			px := surfaces[base : base+samples]
			if shading.RequiresPerSampleShading(px) {
				for si := range samples {
					e := zero
					if valid[base+si] {
						e = shade(&px[si])
					}
					put(x, y, si, e)
				}
				continue
			}
			e := zero
			if valid[base] {
				e = shade(&px[0])
			}
			for si := range samples {
				put(x, y, si, e)
			}
		}
	}
}
