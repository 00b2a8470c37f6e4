package scene

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
	"go.uber.org/zap"
)

// Scene owns everything the deferred passes draw: an opaque mesh, an alpha-tested mesh, the
// skybox mesh and cube texture, and the animated point light set.
// Scenes can be hot-swapped via the Active flag.
// Thread-safe for concurrent access: the host goroutine may toggle settings while the render
// goroutine draws.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// OpaqueMesh returns the back-face culled geometry, or nil.
	OpaqueMesh() Mesh

	// AlphaTestMesh returns the double-sided cut-out geometry, or nil.
	AlphaTestMesh() Mesh

	// SkyboxMesh returns the cube the composite pass draws the sky with.
	SkyboxMesh() Mesh

	// SkyboxTexture returns the sky cube map.
	SkyboxTexture() *gpu.Texture2D

	// Lights returns the scene's light manager.
	Lights() light.Manager

	// WorldMatrix returns the model-to-world transform applied to the scene geometry.
	//
	// Returns:
	//   - [16]float32: the column-major world matrix (uniform scale, then translation)
	WorldMatrix() [16]float32

	// AnimateLights returns whether UpdateLights advances the light animation.
	AnimateLights() bool

	// SetAnimateLights enables or disables light animation. Paused lights keep their positions.
	//
	// Parameters:
	//   - animate: true to advance light time each frame
	SetAnimateLights(animate bool)

	// SetActiveLightCount changes the number of lights uploaded each frame.
	//
	// Parameters:
	//   - n: the new active count, 0 <= n <= Lights().Capacity()
	//
	// Returns:
	//   - error: light.ErrCapacityExceeded for an out-of-range n, or a device error
	SetActiveLightCount(n int) error

	// CullingDisabled returns whether frustum culling of submeshes is disabled.
	//
	// Returns:
	//   - bool: true if every submesh is drawn regardless of visibility
	CullingDisabled() bool

	// SetCullingDisabled enables or disables frustum culling of submeshes.
	//
	// Parameters:
	//   - disabled: true to draw every submesh
	SetCullingDisabled(disabled bool)

	// PreRender recomputes submesh visibility of the opaque and alpha-tested meshes.
	// No-ops when culling is disabled.
	//
	// Parameters:
	//   - worldViewProj: the column-major world-view-projection matrix of the frame
	PreRender(worldViewProj []float32)

	// UpdateLights advances the light animation by dt when enabled and uploads the active
	// lights in view space. Called once per frame after the geometry pass is recorded.
	//
	// Parameters:
	//   - dt: seconds since the previous frame
	//   - view: the column-major view matrix of the frame
	//
	// Returns:
	//   - gpu.Buffer: the light buffer for this frame
	//   - error: the upload error
	UpdateLights(dt float32, view []float32) (gpu.Buffer, error)

	// Materials returns every distinct material referenced by the scene's meshes.
	//
	// Returns:
	//   - []*Material: the materials in first-use order
	Materials() []*Material

	// Release frees the meshes, the light buffer and every resource the scene owns.
	Release()
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool
	log    *zap.Logger

	opaque    Mesh
	alphaTest Mesh
	skybox    Mesh
	skyTex    *gpu.Texture2D
	skyStage  *common.TextureStagingData

	lights       light.Manager
	lightOptions []light.ManagerBuilderOption
	animate      bool

	worldScale       float32
	worldTranslation [3]float32

	cullingDisabled bool

	// owned holds resources released with the scene, e.g. material textures.
	owned []gpu.Resource
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a Scene: it creates the light manager, uploads the skybox and builds the
// skybox mesh. Meshes and textures passed through options are owned by the scene afterwards.
// On error every resource created so far, including those passed in, is released.
//
// Parameters:
//   - device: the device that owns the scene resources
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
//   - error: a light configuration error or a device error
func NewScene(device gpu.Device, name string, options ...SceneBuilderOption) (Scene, error) {
	s := &scene{
		mu:         &sync.RWMutex{},
		name:       name,
		active:     true,
		log:        logger.Named("scene").With(zap.String("scene", name)),
		animate:    true,
		worldScale: 1,
	}
	for _, option := range options {
		option(s)
	}

	if err := s.init(device); err != nil {
		s.Release()
		return nil, fmt.Errorf("scene %s: %w", name, err)
	}
	s.log.Info("scene created",
		zap.Int("lights", s.lights.Capacity()),
		zap.Int("materials", len(s.Materials())),
	)
	return s, nil
}

func (s *scene) init(device gpu.Device) error {
	lights, err := light.NewManager(device, s.lightOptions...)
	if err != nil {
		return err
	}
	s.lights = lights

	if s.skyTex == nil {
		stage := GradientSky(64, [3]uint8{40, 90, 170}, [3]uint8{170, 190, 215}, [3]uint8{45, 40, 35})
		if s.skyStage != nil {
			stage = *s.skyStage
		}
		if stage.Layers != CubeFaces {
			return fmt.Errorf("%w: skybox has %d faces", gpu.ErrInvalidConfig, stage.Layers)
		}
		tex, err := NewTexture(device, s.name+".skybox", stage)
		if err != nil {
			return err
		}
		s.skyTex = tex
		s.owned = append(s.owned, tex)
	}

	sky, err := NewStaticMesh(device, s.name+".skybox", MeshData{
		Vertices: SkyboxCube().Vertices,
		Indices:  SkyboxCube().Indices,
	})
	if err != nil {
		return err
	}
	s.skybox = sky
	return nil
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) OpaqueMesh() Mesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opaque
}

func (s *scene) AlphaTestMesh() Mesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alphaTest
}

func (s *scene) SkyboxMesh() Mesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skybox
}

func (s *scene) SkyboxTexture() *gpu.Texture2D {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skyTex
}

func (s *scene) Lights() light.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lights
}

func (s *scene) WorldMatrix() [16]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var m [16]float32
	common.BuildWorldMatrix(m[:], s.worldScale, s.worldTranslation)
	return m
}

func (s *scene) AnimateLights() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.animate
}

func (s *scene) SetAnimateLights(animate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.animate = animate
}

func (s *scene) SetActiveLightCount(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lights.SetActiveCount(n); err != nil {
		return err
	}
	s.log.Info("active light count changed", zap.Int("active", n))
	return nil
}

func (s *scene) CullingDisabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cullingDisabled
}

func (s *scene) SetCullingDisabled(disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cullingDisabled = disabled
}

func (s *scene) PreRender(worldViewProj []float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cullingDisabled {
		return
	}
	for _, m := range []Mesh{s.opaque, s.alphaTest} {
		if m != nil && m.Loaded() {
			m.UpdateVisibility(worldViewProj)
		}
	}
}

func (s *scene) UpdateLights(dt float32, view []float32) (gpu.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.animate {
		s.lights.Advance(dt)
	}
	return s.lights.UploadForFrame(view)
}

func (s *scene) Materials() []*Material {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Material
	seen := make(map[*Material]bool)
	for _, m := range []Mesh{s.opaque, s.alphaTest} {
		if m == nil {
			continue
		}
		for _, sm := range m.Submeshes() {
			if sm.Material != nil && !seen[sm.Material] {
				seen[sm.Material] = true
				out = append(out, sm.Material)
			}
		}
	}
	return out
}

func (s *scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range []Mesh{s.opaque, s.alphaTest, s.skybox} {
		if m != nil {
			m.Release()
		}
	}
	if s.lights != nil {
		s.lights.Release()
	}
	for _, r := range s.owned {
		if r != nil {
			r.Release()
		}
	}
	s.owned = nil
}
