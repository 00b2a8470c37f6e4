package scene

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// MeshData is CPU-side geometry pending upload: a triangle list and the submeshes that
// partition its indices.
type MeshData struct {
	Vertices  []GPUVertex
	Indices   []uint32
	Submeshes []Submesh
}

// Primitive is a piece of procedural geometry in its own model space.
type Primitive struct {
	Vertices []GPUVertex
	Indices  []uint32
}

// Append adds a primitive as a new submesh, scaled uniformly and then translated.
//
// Parameters:
//   - name: the submesh name
//   - p: the primitive geometry
//   - scale: the uniform scale applied to positions
//   - translation: the offset added after scaling
//   - material: the material the submesh is drawn with
func (d *MeshData) Append(name string, p Primitive, scale float32, translation [3]float32, material *Material) {
	base := uint32(len(d.Vertices))
	for _, v := range p.Vertices {
		for i := range 3 {
			v.Position[i] = v.Position[i]*scale + translation[i]
		}
		d.Vertices = append(d.Vertices, v)
	}
	first := len(d.Indices)
	for _, idx := range p.Indices {
		d.Indices = append(d.Indices, base+idx)
	}
	d.Submeshes = append(d.Submeshes, Submesh{
		Name:       name,
		FirstIndex: first,
		IndexCount: len(p.Indices),
		Material:   material,
	})
}

func (d *MeshData) validate() error {
	if len(d.Vertices) == 0 || len(d.Indices) == 0 {
		return fmt.Errorf("%w: empty geometry", gpu.ErrInvalidConfig)
	}
	if len(d.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a triangle list", gpu.ErrInvalidConfig, len(d.Indices))
	}
	for i, idx := range d.Indices {
		if int(idx) >= len(d.Vertices) {
			return fmt.Errorf("%w: index %d references vertex %d of %d", gpu.ErrInvalidConfig, i, idx, len(d.Vertices))
		}
	}
	for _, sm := range d.Submeshes {
		if sm.FirstIndex < 0 || sm.IndexCount < 0 || sm.FirstIndex+sm.IndexCount > len(d.Indices) {
			return fmt.Errorf("%w: submesh %s range [%d, %d) exceeds %d indices",
				gpu.ErrInvalidConfig, sm.Name, sm.FirstIndex, sm.FirstIndex+sm.IndexCount, len(d.Indices))
		}
	}
	return nil
}

// bounds returns the AABB of the vertices referenced by sm's index range.
func (d *MeshData) bounds(sm Submesh) (minB, maxB [3]float32) {
	if sm.IndexCount == 0 {
		return minB, maxB
	}
	for i := range 3 {
		minB[i] = math.MaxFloat32
		maxB[i] = -math.MaxFloat32
	}
	for _, idx := range d.Indices[sm.FirstIndex : sm.FirstIndex+sm.IndexCount] {
		p := d.Vertices[idx].Position
		for i := range 3 {
			minB[i] = min(minB[i], p[i])
			maxB[i] = max(maxB[i], p[i])
		}
	}
	return minB, maxB
}
