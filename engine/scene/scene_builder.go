package scene

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering. Defaults to true.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithOpaqueMesh sets the geometry drawn back-face culled with the opaque G-buffer pipeline.
// The scene takes ownership of the mesh.
//
// Parameters:
//   - m: the opaque mesh
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithOpaqueMesh(m Mesh) SceneBuilderOption {
	return func(s *scene) {
		s.opaque = m
	}
}

// WithAlphaTestMesh sets the geometry drawn double-sided with the alpha-tested G-buffer
// pipeline. The scene takes ownership of the mesh.
//
// Parameters:
//   - m: the alpha-tested mesh
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAlphaTestMesh(m Mesh) SceneBuilderOption {
	return func(s *scene) {
		s.alphaTest = m
	}
}

// WithSkyboxStaging sets six faces of pixels the scene uploads as its sky cube map.
// Without it or WithSkyboxTexture a generated gradient sky is used.
//
// Parameters:
//   - staging: six layers of RGBA8 pixels ordered +X, -X, +Y, -Y, +Z, -Z
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSkyboxStaging(staging common.TextureStagingData) SceneBuilderOption {
	return func(s *scene) {
		s.skyStage = &staging
	}
}

// WithSkyboxTexture sets an already uploaded sky cube map. The texture is borrowed.
//
// Parameters:
//   - tex: a six-layer texture created with a cube view
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSkyboxTexture(tex *gpu.Texture2D) SceneBuilderOption {
	return func(s *scene) {
		s.skyTex = tex
	}
}

// WithLightOptions configures the scene's light manager.
//
// Parameters:
//   - opts: light manager options such as light.WithCapacity and light.WithActiveCount
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLightOptions(opts ...light.ManagerBuilderOption) SceneBuilderOption {
	return func(s *scene) {
		s.lightOptions = append(s.lightOptions, opts...)
	}
}

// WithAnimateLights sets whether lights move each frame. Defaults to true.
//
// Parameters:
//   - animate: true to advance light time in UpdateLights
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAnimateLights(animate bool) SceneBuilderOption {
	return func(s *scene) {
		s.animate = animate
	}
}

// WithWorldTransform sets the uniform scale and translation applied to the scene geometry.
//
// Parameters:
//   - scale: the uniform scale
//   - translation: the offset applied after scaling
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithWorldTransform(scale float32, translation [3]float32) SceneBuilderOption {
	return func(s *scene) {
		s.worldScale = scale
		s.worldTranslation = translation
	}
}

// WithCullingDisabled disables frustum culling of submeshes. By default culling is enabled.
//
// Parameters:
//   - disabled: true to draw every submesh each frame
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCullingDisabled(disabled bool) SceneBuilderOption {
	return func(s *scene) {
		s.cullingDisabled = disabled
	}
}

// WithOwned hands resources, typically material textures, to the scene so they are released
// with it.
//
// Parameters:
//   - resources: the resources to own
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithOwned(resources ...gpu.Resource) SceneBuilderOption {
	return func(s *scene) {
		s.owned = append(s.owned, resources...)
	}
}
