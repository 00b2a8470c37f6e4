package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

// gltfMeshExtractor flattens the node hierarchy of a parsed document into world-space
// triangle lists, one per mesh primitive instance.
type gltfMeshExtractor struct {
	parser *gltfParser
}

func newGLTFMeshExtractor(parser *gltfParser) *gltfMeshExtractor {
	return &gltfMeshExtractor{parser: parser}
}

// extractAll walks the default scene. Documents without scenes or nodes contribute every
// mesh once, untransformed.
func (e *gltfMeshExtractor) extractAll() ([]ModelSubmesh, error) {
	doc := e.parser.document
	var identity [16]float32
	common.Identity(identity[:])

	if len(doc.Nodes) == 0 {
		var out []ModelSubmesh
		for i := range doc.Meshes {
			subs, err := e.extractMesh(i, identity, "")
			if err != nil {
				return nil, err
			}
			out = append(out, subs...)
		}
		return out, nil
	}

	var out []ModelSubmesh
	visited := make(map[int]bool, len(doc.Nodes))
	var walk func(node int, parent [16]float32) error
	walk = func(node int, parent [16]float32) error {
		if node < 0 || node >= len(doc.Nodes) {
			return fmt.Errorf("%w: node %d out of range", ErrInvalidModel, node)
		}
		if visited[node] {
			return fmt.Errorf("%w: node %d is reachable twice", ErrInvalidModel, node)
		}
		visited[node] = true

		n := &doc.Nodes[node]
		local := nodeMatrix(n)
		var world [16]float32
		common.Mul4(world[:], parent[:], local[:])

		if n.Mesh != nil {
			subs, err := e.extractMesh(*n.Mesh, world, n.Name)
			if err != nil {
				return fmt.Errorf("node %d: %w", node, err)
			}
			out = append(out, subs...)
		}
		for _, child := range n.Children {
			if err := walk(child, world); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range e.rootNodes() {
		if err := walk(root, identity); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// rootNodes returns the roots of the default scene, of scene 0 when no default is set, or
// every parentless node when the document declares no scenes.
func (e *gltfMeshExtractor) rootNodes() []int {
	doc := e.parser.document
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			s = *doc.Scene
		}
		return doc.Scenes[s].Nodes
	}

	hasParent := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []int
	for i, p := range hasParent {
		if !p {
			roots = append(roots, i)
		}
	}
	return roots
}

func (e *gltfMeshExtractor) extractMesh(index int, world [16]float32, nodeName string) ([]ModelSubmesh, error) {
	doc := e.parser.document
	if index < 0 || index >= len(doc.Meshes) {
		return nil, fmt.Errorf("%w: mesh %d out of range", ErrInvalidModel, index)
	}
	mesh := &doc.Meshes[index]
	name := common.Coalesce(nodeName, mesh.Name, fmt.Sprintf("mesh_%d", index))

	out := make([]ModelSubmesh, 0, len(mesh.Primitives))
	for i := range mesh.Primitives {
		prim, err := e.extractPrimitive(&mesh.Primitives[i])
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", index, i, err)
		}
		transformPrimitive(&prim, world)

		sub := ModelSubmesh{Name: name, Primitive: prim, Material: -1}
		if len(mesh.Primitives) > 1 {
			sub.Name = fmt.Sprintf("%s_%d", name, i)
		}
		if m := mesh.Primitives[i].Material; m != nil {
			if *m < 0 || *m >= len(doc.Materials) {
				return nil, fmt.Errorf("%w: material %d out of range", ErrInvalidModel, *m)
			}
			sub.Material = *m
		}
		out = append(out, sub)
	}
	return out, nil
}

// extractPrimitive reads one triangle-list primitive in model space. Missing normals are
// generated from the geometry, missing texture coordinates are left at zero.
func (e *gltfMeshExtractor) extractPrimitive(prim *gltfPrimitive) (scene.Primitive, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return scene.Primitive{}, fmt.Errorf("%w: primitive mode %d", ErrUnsupported, *prim.Mode)
	}
	posIndex, ok := prim.Attributes["POSITION"]
	if !ok {
		return scene.Primitive{}, fmt.Errorf("%w: primitive has no POSITION", ErrInvalidModel)
	}
	positions, err := e.parser.readFloats(posIndex, 3)
	if err != nil {
		return scene.Primitive{}, fmt.Errorf("positions: %w", err)
	}

	vertices := make([]scene.GPUVertex, len(positions))
	for i, p := range positions {
		vertices[i].Position = [3]float32{p[0], p[1], p[2]}
	}

	hasNormals := false
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.readFloats(idx, 3)
		if err != nil {
			return scene.Primitive{}, fmt.Errorf("normals: %w", err)
		}
		for i := range min(len(normals), len(vertices)) {
			vertices[i].Normal = [3]float32{normals[i][0], normals[i][1], normals[i][2]}
		}
		hasNormals = true
	}
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := e.parser.readFloats(idx, 2)
		if err != nil {
			return scene.Primitive{}, fmt.Errorf("texcoords: %w", err)
		}
		for i := range min(len(uvs), len(vertices)) {
			vertices[i].TexCoord = [2]float32{uvs[i][0], uvs[i][1]}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = e.parser.readIndices(*prim.Indices); err != nil {
			return scene.Primitive{}, fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return scene.Primitive{}, fmt.Errorf("%w: %d indices is not a triangle list", ErrInvalidModel, len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return scene.Primitive{}, fmt.Errorf("%w: index %d of %d vertices", ErrInvalidModel, idx, len(vertices))
		}
	}

	if !hasNormals {
		generateNormals(vertices, indices)
	}
	return scene.Primitive{Vertices: vertices, Indices: indices}, nil
}

// nodeMatrix returns the local transform of a node: its matrix, or T * R * S.
func nodeMatrix(n *gltfNode) [16]float32 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	t := [3]float32{}
	q := [4]float32{0, 0, 0, 1}
	s := [3]float32{1, 1, 1}
	if n.Translation != nil {
		t = *n.Translation
	}
	if n.Rotation != nil {
		q = *n.Rotation
	}
	if n.Scale != nil {
		s = *n.Scale
	}

	x, y, z, w := q[0], q[1], q[2], q[3]
	return [16]float32{
		(1 - 2*(y*y+z*z)) * s[0], 2 * (x*y + z*w) * s[0], 2 * (x*z - y*w) * s[0], 0,
		2 * (x*y - z*w) * s[1], (1 - 2*(x*x+z*z)) * s[1], 2 * (y*z + x*w) * s[1], 0,
		2 * (x*z + y*w) * s[2], 2 * (y*z - x*w) * s[2], (1 - 2*(x*x+y*y)) * s[2], 0,
		t[0], t[1], t[2], 1,
	}
}

// transformPrimitive moves a primitive into world space. Normals use the inverse transpose
// and mirroring transforms flip the winding so front faces stay counter-clockwise.
func transformPrimitive(p *scene.Primitive, world [16]float32) {
	var inv, normal [16]float32
	if !common.Invert4(inv[:], world[:]) {
		common.Identity(inv[:])
	}
	for c := range 4 {
		for r := range 4 {
			normal[c*4+r] = inv[r*4+c]
		}
	}

	for i := range p.Vertices {
		v := &p.Vertices[i]
		v.Position = common.TransformPoint(world[:], v.Position)
		if n := common.TransformDirection(normal[:], v.Normal); common.Length3(n) > 1e-6 {
			v.Normal = common.Normalize3(n)
		}
	}

	basis := func(c int) [3]float32 { return [3]float32{world[c*4], world[c*4+1], world[c*4+2]} }
	if common.Dot3(common.Cross3(basis(0), basis(1)), basis(2)) < 0 {
		for i := 0; i+2 < len(p.Indices); i += 3 {
			p.Indices[i+1], p.Indices[i+2] = p.Indices[i+2], p.Indices[i+1]
		}
	}
}

// generateNormals computes smooth normals by accumulating area-weighted face normals onto
// each vertex of the triangle. Vertices no triangle touches point up.
func generateNormals(vertices []scene.GPUVertex, indices []uint32) {
	accum := make([][3]float32, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := vertices[i0].Position, vertices[i1].Position, vertices[i2].Position
		face := common.Cross3(common.Sub3(p1, p0), common.Sub3(p2, p0))
		for _, idx := range [3]uint32{i0, i1, i2} {
			for c := range 3 {
				accum[idx][c] += face[c]
			}
		}
	}
	for i := range vertices {
		if common.Length3(accum[i]) < 1e-6 {
			vertices[i].Normal = [3]float32{0, 1, 0}
			continue
		}
		vertices[i].Normal = common.Normalize3(accum[i])
	}
}
