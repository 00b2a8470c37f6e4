package scene

// face appends a quad centered at center spanning ±u and ±v. With u × v = n the quad winds
// counter-clockwise seen from the side n points to.
func (p *Primitive) face(center, n, u, v [3]float32, uvScale float32) {
	base := uint32(len(p.Vertices))
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, c := range corners {
		var pos [3]float32
		for i := range 3 {
			pos[i] = center[i] + c[0]*u[i] + c[1]*v[i]
		}
		p.Vertices = append(p.Vertices, GPUVertex{
			Position: pos,
			Normal:   n,
			TexCoord: [2]float32{(c[0] + 1) * 0.5 * uvScale, (1 - c[1]) * 0.5 * uvScale},
		})
	}
	p.Indices = append(p.Indices, base, base+1, base+2, base, base+2, base+3)
}

// Cube returns an axis-aligned cube centered on the origin with outward-facing triangles.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - Primitive: 24 vertices and 36 indices
func Cube(size float32) Primitive {
	h := size / 2
	var p Primitive
	faces := [6][3][3]float32{
		{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
		{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
		{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
		{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
		{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
		{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
	}
	for _, f := range faces {
		n, u, v := f[0], f[1], f[2]
		center := [3]float32{n[0] * h, n[1] * h, n[2] * h}
		p.face(center, n, scale3(u, h), scale3(v, h), 1)
	}
	return p
}

// Plane returns a square in the XZ plane facing +Y.
//
// Parameters:
//   - size: the edge length
//   - uvRepeat: how many times texture coordinates wrap across the plane
//
// Returns:
//   - Primitive: 4 vertices and 6 indices
func Plane(size, uvRepeat float32) Primitive {
	h := size / 2
	var p Primitive
	p.face([3]float32{}, [3]float32{0, 1, 0}, [3]float32{h, 0, 0}, [3]float32{0, 0, -h}, uvRepeat)
	return p
}

// Quad returns a square in the XY plane facing +Z with its bottom edge on y = 0, for cut-out
// geometry drawn double-sided.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - Primitive: 4 vertices and 6 indices
func Quad(size float32) Primitive {
	h := size / 2
	var p Primitive
	p.face([3]float32{0, h, 0}, [3]float32{0, 0, 1}, [3]float32{h, 0, 0}, [3]float32{0, h, 0}, 1)
	return p
}

// SkyboxCube returns the cube the composite pass draws around the camera. Only positions are
// used: each one is also the direction the skybox is sampled in.
//
// Returns:
//   - Primitive: a cube of edge 2
func SkyboxCube() Primitive {
	return Cube(2)
}

func scale3(v [3]float32, s float32) [3]float32 {
	return [3]float32{v[0] * s, v[1] * s, v[2] * s}
}
