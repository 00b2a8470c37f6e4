package soft_device

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// minClipW keeps vertices strictly in front of the eye after clipping.
const minClipW = 1e-6

// samplePositions are the standard multisample locations inside a pixel, per sample count.
var samplePositions = map[int][][2]float32{
	1: {{0.5, 0.5}},
	2: {{0.75, 0.75}, {0.25, 0.25}},
	4: {{0.375, 0.125}, {0.875, 0.375}, {0.125, 0.625}, {0.625, 0.875}},
	8: {
		{0.5625, 0.3125}, {0.4375, 0.6875}, {0.8125, 0.5625}, {0.3125, 0.1875},
		{0.1875, 0.8125}, {0.0625, 0.4375}, {0.6875, 0.9375}, {0.9375, 0.0625},
	},
}

// clipVertex is a vertex in clip space with its varyings.
type clipVertex struct {
	pos  [4]float32
	vary [maxVaryings]float32
}

func lerpVertex(a, b *clipVertex, t float32) clipVertex {
	var out clipVertex
	for i := range 4 {
		out.pos[i] = a.pos[i] + (b.pos[i]-a.pos[i])*t
	}
	for i := range maxVaryings {
		out.vary[i] = a.vary[i] + (b.vary[i]-a.vary[i])*t
	}
	return out
}

// clipPlanes are the signed distances of the clip volume: 0 <= z <= w and w > 0.
// x and y are not clipped; the bounding box is clamped to the framebuffer instead.
var clipPlanes = []func(p [4]float32) float32{
	func(p [4]float32) float32 { return p[2] },
	func(p [4]float32) float32 { return p[3] - p[2] },
	func(p [4]float32) float32 { return p[3] - minClipW },
}

// clipPolygon clips a convex polygon against every clip plane.
func clipPolygon(poly []clipVertex) []clipVertex {
	for _, dist := range clipPlanes {
		if len(poly) == 0 {
			return nil
		}
		out := make([]clipVertex, 0, len(poly)+1)
		for i := range poly {
			a, b := &poly[i], &poly[(i+1)%len(poly)]
			da, db := dist(a.pos), dist(b.pos)
			if da >= 0 {
				out = append(out, *a)
			}
			if (da >= 0) != (db >= 0) {
				out = append(out, lerpVertex(a, b, da/(da-db)))
			}
		}
		poly = out
	}
	return poly
}

// triangle is a screen-space triangle ready to rasterize. Its vertices are ordered so that
// the edge functions are non-negative inside.
type triangle struct {
	x, y, z, invW [3]float32
	vary          [3][maxVaryings]float32 // varyings divided by w
	area          float32
	frontFacing   bool
	instance      int
	topLeft       [3]bool
	minX, maxX    int
	minY, maxY    int
}

// edge is the doubled signed area of (a, b, p); positive when p is right of a->b with y down.
func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// weights returns the edge functions of point (px, py), one per opposite vertex.
func (t *triangle) weights(px, py float32) [3]float32 {
	return [3]float32{
		edge(t.x[1], t.y[1], t.x[2], t.y[2], px, py),
		edge(t.x[2], t.y[2], t.x[0], t.y[0], px, py),
		edge(t.x[0], t.y[0], t.x[1], t.y[1], px, py),
	}
}

// covers applies the top-left rule: points exactly on an edge belong to top and left edges only.
func (t *triangle) covers(w [3]float32) bool {
	for i := range 3 {
		if w[i] < 0 || (w[i] == 0 && !t.topLeft[i]) {
			return false
		}
	}
	return true
}

// depthAt interpolates depth linearly in screen space. Flat triangles keep their exact depth.
func (t *triangle) depthAt(w [3]float32) float32 {
	return t.z[2] + (w[0]*(t.z[0]-t.z[2])+w[1]*(t.z[1]-t.z[2]))/t.area
}

// varyingAt interpolates varying i with perspective correction at (px, py).
func (t *triangle) varyingAt(i int, px, py float32) float32 {
	w := t.weights(px, py)
	num := w[0]*t.vary[0][i] + w[1]*t.vary[1][i] + w[2]*t.vary[2][i]
	den := w[0]*t.invW[0] + w[1]*t.invW[1] + w[2]*t.invW[2]
	if den == 0 {
		return 0
	}
	return num / den
}

func (t *triangle) varyings(px, py float32, out *[maxVaryings]float32) float32 {
	w := t.weights(px, py)
	den := w[0]*t.invW[0] + w[1]*t.invW[1] + w[2]*t.invW[2]
	if den == 0 {
		return 0
	}
	for i := range maxVaryings {
		out[i] = (w[0]*t.vary[0][i] + w[1]*t.vary[1][i] + w[2]*t.vary[2][i]) / den
	}
	return den / t.area
}

// setupTriangle projects three clipped vertices to the framebuffer and applies face culling.
// It returns false for culled or degenerate triangles.
func setupTriangle(v [3]*clipVertex, width, height int, prim gpu.PrimitiveState, instance int, t *triangle) bool {
	for i, cv := range v {
		invW := 1 / cv.pos[3]
		t.x[i] = (cv.pos[0]*invW*0.5 + 0.5) * float32(width)
		t.y[i] = (0.5 - cv.pos[1]*invW*0.5) * float32(height)
		t.z[i] = cv.pos[2] * invW
		t.invW[i] = invW
		for k := range maxVaryings {
			t.vary[i][k] = cv.vary[k] * invW
		}
	}
	t.area = edge(t.x[0], t.y[0], t.x[1], t.y[1], t.x[2], t.y[2])
	if t.area == 0 || math.IsNaN(float64(t.area)) {
		return false
	}

	// A positive screen-space area is clockwise in NDC.
	ccw := t.area < 0
	t.frontFacing = ccw == (prim.FrontFace == gpu.FrontFaceCCW)
	switch {
	case prim.CullMode == gpu.CullModeBack && !t.frontFacing:
		return false
	case prim.CullMode == gpu.CullModeFront && t.frontFacing:
		return false
	}
	if ccw {
		t.x[1], t.x[2] = t.x[2], t.x[1]
		t.y[1], t.y[2] = t.y[2], t.y[1]
		t.z[1], t.z[2] = t.z[2], t.z[1]
		t.invW[1], t.invW[2] = t.invW[2], t.invW[1]
		t.vary[1], t.vary[2] = t.vary[2], t.vary[1]
		t.area = -t.area
	}

	// Edge i is opposite vertex i, running from vertex i+1 to vertex i+2.
	for i := range 3 {
		a, b := (i+1)%3, (i+2)%3
		dx, dy := t.x[b]-t.x[a], t.y[b]-t.y[a]
		t.topLeft[i] = (dy == 0 && dx > 0) || dy < 0
	}

	minX := min(t.x[0], t.x[1], t.x[2])
	maxX := max(t.x[0], t.x[1], t.x[2])
	minY := min(t.y[0], t.y[1], t.y[2])
	maxY := max(t.y[0], t.y[1], t.y[2])
	t.minX = max(int(math.Floor(float64(minX))), 0)
	t.maxX = min(int(math.Ceil(float64(maxX))), width-1)
	t.minY = max(int(math.Floor(float64(minY))), 0)
	t.maxY = min(int(math.Ceil(float64(maxY))), height-1)
	t.instance = instance
	return t.minX <= t.maxX && t.minY <= t.maxY
}

func readAttribute(data []byte, format gpu.VertexFormat) [4]float32 {
	out := [4]float32{0, 0, 0, 1}
	n := 1
	switch format {
	case gpu.VertexFormatFloat32x2, gpu.VertexFormatUint32x2, gpu.VertexFormatSint32x2:
		n = 2
	case gpu.VertexFormatFloat32x3, gpu.VertexFormatUint32x3, gpu.VertexFormatSint32x3:
		n = 3
	case gpu.VertexFormatFloat32x4, gpu.VertexFormatUint32x4, gpu.VertexFormatSint32x4:
		n = 4
	}
	for i := range n {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		switch format {
		case gpu.VertexFormatUint32, gpu.VertexFormatUint32x2, gpu.VertexFormatUint32x3, gpu.VertexFormatUint32x4:
			out[i] = float32(bits)
		case gpu.VertexFormatSint32, gpu.VertexFormatSint32x2, gpu.VertexFormatSint32x3, gpu.VertexFormatSint32x4:
			out[i] = float32(int32(bits))
		default:
			out[i] = math.Float32frombits(bits)
		}
	}
	return out
}

func attributeSize(format gpu.VertexFormat) uint64 {
	switch format {
	case gpu.VertexFormatFloat32x2, gpu.VertexFormatUint32x2, gpu.VertexFormatSint32x2:
		return 8
	case gpu.VertexFormatFloat32x3, gpu.VertexFormatUint32x3, gpu.VertexFormatSint32x3:
		return 12
	case gpu.VertexFormatFloat32x4, gpu.VertexFormatUint32x4, gpu.VertexFormatSint32x4:
		return 16
	default:
		return 4
	}
}

// fetchVertex reads the attributes of vertex index from the bound vertex buffers.
func fetchVertex(layouts []gpu.VertexBufferLayout, buffers map[int]*buffer, index int, in *vertexInput) error {
	for slot, layout := range layouts {
		buf := buffers[slot]
		for _, attr := range layout.Attributes {
			off := uint64(index)*layout.ArrayStride + attr.Offset
			if off+attributeSize(attr.Format) > uint64(len(buf.data)) {
				return fmt.Errorf("%w: vertex %d reads past vertex buffer %d", gpu.ErrInvalidConfig, index, slot)
			}
			if attr.ShaderLocation >= maxAttributes {
				return fmt.Errorf("%w: attribute location %d", gpu.ErrUnsupported, attr.ShaderLocation)
			}
			in.Attributes[attr.ShaderLocation] = readAttribute(buf.data[off:], attr.Format)
		}
	}
	return nil
}

// draw runs one recorded draw call against target.
func (d *Device) draw(target *renderTarget, c *drawCall) error {
	p := c.pipeline
	if err := p.check("draw"); err != nil {
		return err
	}
	if err := checkPipelineTarget(p, target); err != nil {
		return err
	}
	defines := p.desc.Vertex.Defines
	stages := []gpu.ProgrammableStage{p.desc.Vertex}
	if p.desc.Fragment != nil {
		stages = append(stages, *p.desc.Fragment)
		defines = p.desc.Fragment.Defines
	}
	b, err := newBindings(p.layouts, c.groups, defines)
	if err != nil {
		return err
	}
	if err := b.require(stageRoles(stages...)); err != nil {
		return err
	}
	for slot := range p.desc.VertexBuffers {
		buf := c.buffers[slot]
		if buf == nil {
			return fmt.Errorf("%w: vertex buffer %d not set", gpu.ErrInvalidConfig, slot)
		}
		if err := buf.check("draw"); err != nil {
			return err
		}
	}

	indices, err := c.indexList()
	if err != nil {
		return err
	}

	var tris []triangle
	for instance := range c.instanceCount {
		outputs := make(map[int]*vertexOutput)
		vertex := func(index int) (*vertexOutput, error) {
			if out, ok := outputs[index]; ok {
				return out, nil
			}
			in := vertexInput{VertexIndex: index, InstanceIndex: instance}
			if err := fetchVertex(p.desc.VertexBuffers, c.buffers, index, &in); err != nil {
				return nil, err
			}
			out := &vertexOutput{}
			p.vertex(b, &in, out)
			outputs[index] = out
			return out, nil
		}

		for i := 0; i+2 < len(indices); i += 3 {
			var poly [3]clipVertex
			for k := range 3 {
				out, err := vertex(indices[i+k])
				if err != nil {
					return err
				}
				poly[k] = clipVertex{pos: out.Position, vary: out.Varyings}
			}
			clipped := clipPolygon(poly[:])
			for k := 1; k+1 < len(clipped); k++ {
				var t triangle
				if setupTriangle([3]*clipVertex{&clipped[0], &clipped[k], &clipped[k+1]}, target.width, target.height, p.desc.Primitive, instance, &t) {
					tris = append(tris, t)
				}
			}
		}
	}
	if len(tris) == 0 {
		return nil
	}

	r := &rasterizer{
		pipeline:   p,
		target:     target,
		bindings:   b,
		stencilRef: c.stencilRef,
		positions:  samplePositions[target.samples],
		perSample:  p.desc.Fragment != nil && p.desc.Fragment.PerSample && target.samples > 1,
		tris:       tris,
	}
	bandRows := max(common.CeilDiv(target.height, d.workers*4), 1)
	bands := common.CeilDiv(target.height, bandRows)
	d.parallel(bands, func(i int) {
		r.band(i*bandRows, min((i+1)*bandRows, target.height))
	})
	return nil
}

// indexList returns the vertex indices of the draw, in order.
func (c *drawCall) indexList() ([]int, error) {
	out := make([]int, c.count)
	if !c.indexed {
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	if err := c.indices.check("draw"); err != nil {
		return nil, err
	}
	if (c.firstIndex+c.count)*4 > len(c.indices.data) {
		return nil, fmt.Errorf("%w: indices [%d, %d) exceed the index buffer", gpu.ErrInvalidConfig, c.firstIndex, c.firstIndex+c.count)
	}
	for i := range out {
		out[i] = int(binary.LittleEndian.Uint32(c.indices.data[(c.firstIndex+i)*4:]))
	}
	return out, nil
}

func checkPipelineTarget(p *renderPipeline, t *renderTarget) error {
	if p.desc.SampleCount != t.samples {
		return fmt.Errorf("%w: pipeline %q has %d samples, pass has %d", gpu.ErrInvalidConfig, p.label, p.desc.SampleCount, t.samples)
	}
	if len(p.desc.Targets) != len(t.colors) {
		return fmt.Errorf("%w: pipeline %q has %d color targets, pass has %d", gpu.ErrInvalidConfig, p.label, len(p.desc.Targets), len(t.colors))
	}
	for i, ct := range p.desc.Targets {
		if ct.Format != t.colors[i].format() {
			return fmt.Errorf("%w: pipeline %q target %d is %s, attachment is %s", gpu.ErrInvalidConfig, p.label, i, ct.Format, t.colors[i].format())
		}
	}
	if ds := p.desc.DepthStencil; ds != nil {
		if t.depth == nil {
			return fmt.Errorf("%w: pipeline %q needs a depth attachment", gpu.ErrInvalidConfig, p.label)
		}
		if ds.Format != t.depth.format() {
			return fmt.Errorf("%w: pipeline %q depth is %s, attachment is %s", gpu.ErrInvalidConfig, p.label, ds.Format, t.depth.format())
		}
	}
	return nil
}

func compare(fn gpu.CompareFunction, a, b float32) bool {
	switch fn {
	case gpu.CompareFunctionNever:
		return false
	case gpu.CompareFunctionLess:
		return a < b
	case gpu.CompareFunctionLessEqual:
		return a <= b
	case gpu.CompareFunctionEqual:
		return a == b
	case gpu.CompareFunctionGreaterEqual:
		return a >= b
	case gpu.CompareFunctionGreater:
		return a > b
	case gpu.CompareFunctionNotEqual:
		return a != b
	default:
		return true
	}
}

func stencilMask(m uint32) uint8 {
	if m == 0 {
		return 0xff
	}
	return uint8(m)
}

// rasterizer shades the triangles of one draw call. Bands of rows run in parallel; inside a
// band triangles are processed in submission order.
type rasterizer struct {
	pipeline   *renderPipeline
	target     *renderTarget
	bindings   *bindings
	stencilRef uint32
	positions  [][2]float32
	perSample  bool
	tris       []triangle
}

func (r *rasterizer) band(y0, y1 int) {
	var (
		depths [8]float32
		in     fragmentInput
		out    fragmentOutput
	)
	for ti := range r.tris {
		t := &r.tris[ti]
		for y := max(y0, t.minY); y < min(y1, t.maxY+1); y++ {
			for x := t.minX; x <= t.maxX; x++ {
				var covered uint32
				for s, pos := range r.positions {
					w := t.weights(float32(x)+pos[0], float32(y)+pos[1])
					if t.covers(w) {
						covered |= 1 << s
						depths[s] = t.depthAt(w)
					}
				}
				if covered == 0 {
					continue
				}
				passed := r.depthStencilTest(x, y, covered, &depths)
				if passed == 0 {
					continue
				}
				passed = r.shade(t, x, y, passed, &in, &out)
				r.depthStencilWrite(x, y, passed, &depths)
			}
		}
	}
}

// depthStencilTest returns the covered samples that pass the depth and stencil tests and
// applies the fail operations to the rest.
func (r *rasterizer) depthStencilTest(x, y int, covered uint32, depths *[8]float32) uint32 {
	ds := r.pipeline.desc.DepthStencil
	dv := r.target.depth
	if ds == nil || dv == nil {
		return covered
	}
	tex := dv.tex
	hasStencil := tex.stencil != nil && ds.Stencil.Compare != gpu.CompareFunctionUndefined
	readMask := stencilMask(ds.StencilReadMask)
	ref := uint8(r.stencilRef) & readMask

	var passed uint32
	for s := range r.positions {
		if covered&(1<<s) == 0 {
			continue
		}
		i := dv.texel(0, s, x, y)
		if hasStencil && !compare(ds.Stencil.Compare, float32(ref), float32(tex.stencil[i]&readMask)) {
			r.stencilOp(ds, ds.Stencil.FailOp, i)
			continue
		}
		if !compare(ds.DepthCompare, depths[s], tex.data[i*4]) {
			if hasStencil {
				r.stencilOp(ds, ds.Stencil.DepthFailOp, i)
			}
			continue
		}
		passed |= 1 << s
	}
	return passed
}

func (r *rasterizer) depthStencilWrite(x, y int, passed uint32, depths *[8]float32) {
	ds := r.pipeline.desc.DepthStencil
	dv := r.target.depth
	if ds == nil || dv == nil || passed == 0 {
		return
	}
	tex := dv.tex
	for s := range r.positions {
		if passed&(1<<s) == 0 {
			continue
		}
		i := dv.texel(0, s, x, y)
		if ds.DepthWriteEnabled && !r.target.depthReadOnly {
			tex.data[i*4] = quantize(tex.desc.Format, [4]float32{depths[s]})[0]
		}
		if tex.stencil != nil && ds.Stencil.Compare != gpu.CompareFunctionUndefined {
			r.stencilOp(ds, ds.Stencil.PassOp, i)
		}
	}
}

func (r *rasterizer) stencilOp(ds *gpu.DepthStencilState, op gpu.StencilOperation, i int) {
	if r.target.depthReadOnly {
		return
	}
	var v uint8
	switch op {
	case gpu.StencilOperationKeep:
		return
	case gpu.StencilOperationZero:
		v = 0
	case gpu.StencilOperationReplace:
		v = uint8(r.stencilRef)
	}
	m := stencilMask(ds.StencilWriteMask)
	st := r.target.depth.tex.stencil
	st[i] = st[i]&^m | v&m
}

// shade runs the fragment kernel for the passed samples of pixel (x, y), blends its outputs
// into the color targets, and returns the samples that were not discarded.
func (r *rasterizer) shade(t *triangle, x, y int, passed uint32, in *fragmentInput, out *fragmentOutput) uint32 {
	fk := r.pipeline.fragment
	if fk == nil {
		return passed
	}
	run := func(px, py float32, sample int) bool {
		*in = fragmentInput{
			X:           x,
			Y:           y,
			Sample:      sample,
			FrontFacing: t.frontFacing,
			Instance:    t.instance,
			tri:         t,
		}
		invW := t.varyings(px, py, &in.Varyings)
		w := t.weights(px, py)
		in.Position = [4]float32{px, py, t.depthAt(w), invW}
		*out = fragmentOutput{}
		fk(r.bindings, in, out)
		return !out.Discard
	}

	if r.perSample {
		for s, pos := range r.positions {
			if passed&(1<<s) == 0 {
				continue
			}
			if !run(float32(x)+pos[0], float32(y)+pos[1], s) {
				passed &^= 1 << s
				continue
			}
			r.writeColors(x, y, 1<<s, out)
		}
		return passed
	}

	if !run(float32(x)+0.5, float32(y)+0.5, 0) {
		return 0
	}
	r.writeColors(x, y, passed, out)
	return passed
}

func (r *rasterizer) writeColors(x, y int, samples uint32, out *fragmentOutput) {
	for ti, ct := range r.pipeline.desc.Targets {
		view := r.target.colors[ti]
		src := out.Colors[ti]
		for s := range r.positions {
			if samples&(1<<s) == 0 {
				continue
			}
			c := src
			if ct.Blend != nil {
				c = blend(ct.Blend, src, view.load(0, x, y, s))
			}
			view.store(0, x, y, s, c)
		}
	}
}

func blendFactor(f gpu.BlendFactor, srcAlpha float32) float32 {
	switch f {
	case gpu.BlendFactorOne:
		return 1
	case gpu.BlendFactorSrcAlpha:
		return srcAlpha
	case gpu.BlendFactorOneMinusSrcAlpha:
		return 1 - srcAlpha
	default:
		return 0
	}
}

func blend(b *gpu.BlendState, src, dst [4]float32) [4]float32 {
	var out [4]float32
	for i := range 3 {
		out[i] = src[i]*blendFactor(b.Color.SrcFactor, src[3]) + dst[i]*blendFactor(b.Color.DstFactor, src[3])
	}
	out[3] = src[3]*blendFactor(b.Alpha.SrcFactor, src[3]) + dst[3]*blendFactor(b.Alpha.DstFactor, src[3])
	return out
}
