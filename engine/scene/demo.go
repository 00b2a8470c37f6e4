package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// NewDemoScene builds a procedural courtyard: a checkered floor with rows of crates as opaque
// geometry and crossed foliage cards as alpha-tested geometry.
//
// Parameters:
//   - device: the device that owns the scene resources
//   - options: further scene options, e.g. WithLightOptions or WithSkyboxStaging
//
// Returns:
//   - Scene: the scene
//   - error: a device error
func NewDemoScene(device gpu.Device, options ...SceneBuilderOption) (Scene, error) {
	var owned []gpu.Resource
	release := func() {
		for _, r := range owned {
			r.Release()
		}
	}
	material := func(name string, alphaTest bool, stage func() (*gpu.Texture2D, error)) (*Material, error) {
		tex, err := stage()
		if err != nil {
			return nil, fmt.Errorf("material %s: %w", name, err)
		}
		owned = append(owned, tex)
		return &Material{Name: name, Albedo: tex, AlphaTest: alphaTest}, nil
	}

	floor, err := material("floor", false, func() (*gpu.Texture2D, error) {
		return NewTexture(device, "floor.albedo", Checkerboard(64, 8, [4]uint8{150, 150, 145, 255}, [4]uint8{90, 90, 95, 255}))
	})
	if err != nil {
		release()
		return nil, err
	}
	crate, err := material("crate", false, func() (*gpu.Texture2D, error) {
		return NewTexture(device, "crate.albedo", Checkerboard(32, 4, [4]uint8{170, 120, 70, 255}, [4]uint8{120, 80, 45, 255}))
	})
	if err != nil {
		release()
		return nil, err
	}
	foliage, err := material("foliage", true, func() (*gpu.Texture2D, error) {
		return NewTexture(device, "foliage.albedo", Cutout(64, [3]uint8{60, 140, 50}))
	})
	if err != nil {
		release()
		return nil, err
	}

	var opaque MeshData
	opaque.Append("floor", Plane(240, 24), 1, [3]float32{}, floor)
	for i := range 5 {
		for j := range 5 {
			x, z := float32(i-2)*36, float32(j-2)*36
			opaque.Append(fmt.Sprintf("crate_%d_%d", i, j), Cube(6), 1, [3]float32{x, 3, z}, crate)
		}
	}

	var cutout MeshData
	for i := range 4 {
		for j := range 4 {
			x, z := float32(i)*36-54, float32(j)*36-54
			name := fmt.Sprintf("plant_%d_%d", i, j)
			cutout.Append(name+"_a", Quad(10), 1, [3]float32{x, 0, z}, foliage)
			cutout.Append(name+"_b", rotateY90(Quad(10)), 1, [3]float32{x, 0, z}, foliage)
		}
	}

	opaqueMesh, err := NewStaticMesh(device, "courtyard.opaque", opaque)
	if err != nil {
		release()
		return nil, err
	}
	cutoutMesh, err := NewStaticMesh(device, "courtyard.foliage", cutout)
	if err != nil {
		opaqueMesh.Release()
		release()
		return nil, err
	}

	base := []SceneBuilderOption{
		WithOpaqueMesh(opaqueMesh),
		WithAlphaTestMesh(cutoutMesh),
		WithOwned(owned...),
	}
	return NewScene(device, "courtyard", append(base, options...)...)
}

// rotateY90 turns a primitive a quarter turn about the Y axis.
func rotateY90(p Primitive) Primitive {
	out := Primitive{Vertices: make([]GPUVertex, len(p.Vertices)), Indices: p.Indices}
	for i, v := range p.Vertices {
		v.Position = [3]float32{v.Position[2], v.Position[1], -v.Position[0]}
		v.Normal = [3]float32{v.Normal[2], v.Normal[1], -v.Normal[0]}
		out.Vertices[i] = v
	}
	return out
}
