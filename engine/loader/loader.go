// Package loader imports static glTF 2.0 scenes (.gltf with external or embedded buffers, and
// .glb) into geometry and materials the deferred renderer can draw. Node hierarchies are
// flattened into world space; skins, animations and PBR channels other than the base color
// are ignored.
package loader

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
)

var (
	// ErrInvalidModel reports a malformed document, buffer or accessor.
	ErrInvalidModel = errors.New("invalid model")

	// ErrUnsupported reports a well-formed feature the importer does not handle, such as
	// sparse accessors or non-triangle primitives.
	ErrUnsupported = fmt.Errorf("%w: model feature", gpu.ErrUnsupported)
)

// Model is a static scene flattened into world-space submeshes.
type Model struct {
	Name      string
	Submeshes []ModelSubmesh
	Materials []ModelMaterial
}

// ModelSubmesh is one primitive instance in world space.
type ModelSubmesh struct {
	Name      string
	Primitive scene.Primitive
	// Material indexes Model.Materials.
	Material int
}

// ModelMaterial is a material reduced to what the G-buffer pass samples.
type ModelMaterial struct {
	Name string
	// Albedo holds sRGB-encoded RGBA8 pixels.
	Albedo    common.TextureStagingData
	AlphaTest bool
}

// TriangleCount returns the number of triangles across all submeshes.
func (m *Model) TriangleCount() int {
	n := 0
	for _, s := range m.Submeshes {
		n += len(s.Primitive.Indices) / 3
	}
	return n
}

// NewScene uploads the model's materials and geometry and creates a scene from them. Opaque
// materials go to the scene's opaque mesh, alpha-tested ones to its alpha-tested mesh.
//
// Parameters:
//   - device: the device that owns the scene resources
//   - options: further scene options, e.g. scene.WithLightOptions or scene.WithSkyboxStaging
//
// Returns:
//   - scene.Scene: the scene, owning every uploaded resource
//   - error: a device or geometry error
func (m *Model) NewScene(device gpu.Device, options ...scene.SceneBuilderOption) (scene.Scene, error) {
	var owned []gpu.Resource
	var meshes []scene.Mesh
	release := func() {
		for _, mesh := range meshes {
			mesh.Release()
		}
		for _, r := range owned {
			r.Release()
		}
	}

	materials := make([]*scene.Material, len(m.Materials))
	for i, mm := range m.Materials {
		tex, err := scene.NewTexture(device, fmt.Sprintf("%s.%s.albedo", m.Name, mm.Name), mm.Albedo)
		if err != nil {
			release()
			return nil, fmt.Errorf("material %s: %w", mm.Name, err)
		}
		owned = append(owned, tex)
		materials[i] = &scene.Material{Name: mm.Name, Albedo: tex, AlphaTest: mm.AlphaTest}
	}

	var opaque, cutout scene.MeshData
	for _, s := range m.Submeshes {
		if s.Material < 0 || s.Material >= len(materials) {
			release()
			return nil, fmt.Errorf("%w: submesh %s uses material %d", ErrInvalidModel, s.Name, s.Material)
		}
		mat := materials[s.Material]
		if mat.AlphaTest {
			cutout.Append(s.Name, s.Primitive, 1, [3]float32{}, mat)
		} else {
			opaque.Append(s.Name, s.Primitive, 1, [3]float32{}, mat)
		}
	}

	base := []scene.SceneBuilderOption{}
	for _, d := range []struct {
		suffix string
		data   scene.MeshData
		opt    func(scene.Mesh) scene.SceneBuilderOption
	}{
		{"opaque", opaque, scene.WithOpaqueMesh},
		{"alpha_test", cutout, scene.WithAlphaTestMesh},
	} {
		if len(d.data.Submeshes) == 0 {
			continue
		}
		mesh, err := scene.NewStaticMesh(device, m.Name+"."+d.suffix, d.data)
		if err != nil {
			release()
			return nil, err
		}
		meshes = append(meshes, mesh)
		base = append(base, d.opt(mesh))
	}
	base = append(base, scene.WithOwned(owned...))

	return scene.NewScene(device, m.Name, append(base, options...)...)
}

// Loader imports model files and caches the results by path or name.
type Loader interface {
	// Load imports a .gltf or .glb file. A path loaded before is served from the cache.
	//
	// Parameters:
	//   - path: the model file
	//
	// Returns:
	//   - *Model: the imported model
	//   - error: ErrUnsupported for other extensions or features, ErrInvalidModel for malformed files
	Load(path string) (*Model, error)

	// LoadReader imports a model from a stream and caches it under name. Relative URIs are
	// resolved against the loader's base directory.
	//
	// Parameters:
	//   - name: the cache key and fallback model name
	//   - r: the glTF JSON or GLB bytes
	//   - isGLB: true for the binary container
	//
	// Returns:
	//   - *Model: the imported model
	//   - error: an import error
	LoadReader(name string, r io.Reader, isGLB bool) (*Model, error)

	// Get returns a cached model or nil.
	//
	// Parameters:
	//   - name: the cache key
	//
	// Returns:
	//   - *Model: the model, nil if absent
	Get(name string) *Model

	// Models returns a copy of the cache.
	//
	// Returns:
	//   - map[string]*Model: the cached models by key
	Models() map[string]*Model
}

type loader struct {
	mu sync.RWMutex

	log     *zap.Logger
	baseDir string
	cache   map[string]*Model
}

var _ Loader = &loader{}

// NewLoader creates a Loader.
//
// Parameters:
//   - options: functional options such as WithBaseDir or WithModel
//
// Returns:
//   - Loader: the loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		log:   logger.Named("loader"),
		cache: make(map[string]*Model),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (*Model, error) {
	if m := l.Get(path); m != nil {
		return m, nil
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
	default:
		return nil, fmt.Errorf("%w: model format %q", ErrUnsupported, ext)
	}

	parser := newGLTFParser(filepath.Dir(path))
	if err := parser.parseFile(path); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	m, err := importGLTF(parser, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return l.store(path, m), nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (*Model, error) {
	if m := l.Get(name); m != nil {
		return m, nil
	}
	parser := newGLTFParser(l.baseDir)
	if err := parser.parseReader(r, isGLB); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	m, err := importGLTF(parser, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return l.store(name, m), nil
}

func (l *loader) store(key string, m *Model) *Model {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.cache[key]; ok {
		return cached
	}
	l.cache[key] = m
	l.log.Info("model loaded",
		zap.String("model", m.Name),
		zap.String("key", key),
		zap.Int("submeshes", len(m.Submeshes)),
		zap.Int("materials", len(m.Materials)),
		zap.Int("triangles", m.TriangleCount()),
	)
	return m
}

func (l *loader) Get(name string) *Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache[name]
}

func (l *loader) Models() map[string]*Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*Model, len(l.cache))
	for k, v := range l.cache {
		out[k] = v
	}
	return out
}
