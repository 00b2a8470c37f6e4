package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// Material is the surface description one submesh is drawn with.
type Material struct {
	// Name identifies the material in logs and bind group labels.
	Name string

	// Albedo is the base color texture sampled by the geometry pass. It is borrowed: the
	// scene that created it releases it.
	Albedo *gpu.Texture2D

	// AlphaTest marks cut-out materials whose fragments below the alpha threshold are discarded.
	AlphaTest bool
}

// MaterialBinder binds the resources of a material before its submeshes are drawn.
// The renderer implements it; meshes call it once per visible submesh.
type MaterialBinder interface {
	// BindMaterial binds the material's resources on pass.
	//
	// Parameters:
	//   - pass: the open render pass
	//   - m: the material of the next draw
	//
	// Returns:
	//   - error: an error if the material's bind group cannot be created
	BindMaterial(pass gpu.RenderPass, m *Material) error
}

// Submesh is a contiguous index range of a mesh drawn with one material.
type Submesh struct {
	Name       string
	FirstIndex int
	IndexCount int
	Material   *Material

	// BoundsMin and BoundsMax are the model-space AABB of the vertices the range references.
	BoundsMin [3]float32
	BoundsMax [3]float32
}

// Mesh is a geometry source the passes draw from.
//
// A Mesh is used from the render goroutine only.
type Mesh interface {
	// Label returns the debug label of the mesh.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Loaded reports whether the mesh has geometry on the device. Passes skip unloaded meshes.
	//
	// Returns:
	//   - bool: true once vertex and index buffers exist
	Loaded() bool

	// Submeshes returns the submeshes of the mesh in draw order.
	//
	// Returns:
	//   - []Submesh: the submeshes
	Submeshes() []Submesh

	// Visible reports the visibility flag of submesh i computed by the last UpdateVisibility.
	//
	// Parameters:
	//   - i: the submesh index
	//
	// Returns:
	//   - bool: false if the submesh was outside the frustum
	Visible(i int) bool

	// VisibleCount returns the number of submeshes flagged visible.
	//
	// Returns:
	//   - int: the count
	VisibleCount() int

	// UpdateVisibility recomputes the per-submesh visibility flags against the frustum of a
	// model-to-clip matrix.
	//
	// Parameters:
	//   - worldViewProj: the column-major world-view-projection matrix
	UpdateVisibility(worldViewProj []float32)

	// Render binds the mesh buffers and issues one indexed draw per submesh.
	//
	// Parameters:
	//   - pass: the open render pass with a pipeline already set
	//   - binder: binds each submesh's material, or nil to draw without material bindings
	//   - useVisibility: skip submeshes flagged invisible by the last UpdateVisibility
	//
	// Returns:
	//   - error: the first error returned by binder
	Render(pass gpu.RenderPass, binder MaterialBinder, useVisibility bool) error

	// Release frees the vertex and index buffers. The mesh is unloaded afterwards.
	Release()
}

// staticMesh is the implementation of Mesh over immutable device buffers.
type staticMesh struct {
	label      string
	vertices   gpu.Buffer
	indices    gpu.Buffer
	indexCount int
	submeshes  []Submesh
	visible    []bool
}

var _ Mesh = &staticMesh{}

// NewStaticMesh uploads geometry to the device. Submesh bounds are computed from the vertices
// each index range references, overwriting any bounds passed in.
//
// Parameters:
//   - device: the device that owns the buffers
//   - label: the debug label of the mesh
//   - data: the vertices, indices and submeshes; a nil submesh list draws every index as one
//     submesh without material
//
// Returns:
//   - Mesh: the loaded mesh
//   - error: a gpu.ErrInvalidConfig error for malformed geometry, or the device error
func NewStaticMesh(device gpu.Device, label string, data MeshData) (Mesh, error) {
	if err := data.validate(); err != nil {
		return nil, fmt.Errorf("mesh %s: %w", label, err)
	}
	submeshes := data.Submeshes
	if submeshes == nil {
		submeshes = []Submesh{{Name: label, IndexCount: len(data.Indices)}}
	} else {
		submeshes = append([]Submesh(nil), submeshes...)
	}
	for i := range submeshes {
		submeshes[i].BoundsMin, submeshes[i].BoundsMax = data.bounds(submeshes[i])
	}

	vb, err := uploadBuffer(device, label+".vertices", gpu.BufferUsageVertex, MarshalVertices(data.Vertices))
	if err != nil {
		return nil, err
	}
	ib, err := uploadBuffer(device, label+".indices", gpu.BufferUsageIndex, MarshalIndices(data.Indices))
	if err != nil {
		vb.Release()
		return nil, err
	}

	visible := make([]bool, len(submeshes))
	for i := range visible {
		visible[i] = true
	}
	return &staticMesh{
		label:      label,
		vertices:   vb,
		indices:    ib,
		indexCount: len(data.Indices),
		submeshes:  submeshes,
		visible:    visible,
	}, nil
}

func uploadBuffer(device gpu.Device, label string, usage gpu.BufferUsage, data []byte) (gpu.Buffer, error) {
	buf, err := device.CreateBuffer(gpu.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, gpu.WrapResource(label, "create", err)
	}
	if err := device.WriteBuffer(buf, 0, data); err != nil {
		buf.Release()
		return nil, gpu.WrapResource(label, "upload", err)
	}
	return buf, nil
}

func (m *staticMesh) Label() string {
	return m.label
}

func (m *staticMesh) Loaded() bool {
	return m.vertices != nil && m.indices != nil && m.indexCount > 0
}

func (m *staticMesh) Submeshes() []Submesh {
	return m.submeshes
}

func (m *staticMesh) Visible(i int) bool {
	if i < 0 || i >= len(m.visible) {
		return false
	}
	return m.visible[i]
}

func (m *staticMesh) VisibleCount() int {
	n := 0
	for _, v := range m.visible {
		if v {
			n++
		}
	}
	return n
}

func (m *staticMesh) UpdateVisibility(worldViewProj []float32) {
	frustum := common.ExtractFrustumFromMatrix(worldViewProj)
	for i, sm := range m.submeshes {
		m.visible[i] = frustum.IntersectsAABB(sm.BoundsMin, sm.BoundsMax)
	}
}

func (m *staticMesh) Render(pass gpu.RenderPass, binder MaterialBinder, useVisibility bool) error {
	if !m.Loaded() {
		return nil
	}
	pass.SetVertexBuffer(0, m.vertices)
	pass.SetIndexBuffer(m.indices)

	for i, sm := range m.submeshes {
		if sm.IndexCount == 0 || (useVisibility && !m.visible[i]) {
			continue
		}
		if binder != nil && sm.Material != nil {
			if err := binder.BindMaterial(pass, sm.Material); err != nil {
				return fmt.Errorf("mesh %s submesh %s: %w", m.label, sm.Name, err)
			}
		}
		pass.DrawIndexed(sm.IndexCount, 1, sm.FirstIndex)
	}
	return nil
}

func (m *staticMesh) Release() {
	if m.vertices != nil {
		m.vertices.Release()
		m.vertices = nil
	}
	if m.indices != nil {
		m.indices.Release()
		m.indices = nil
	}
	m.indexCount = 0
}
