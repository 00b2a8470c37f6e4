package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

type materialKey struct {
	pipeline string
	material *scene.Material
}

// materialBinder binds group 1 of the G-buffer pipelines for each submesh material. Bind groups
// are created on first use and cached per pipeline and material until reset.
type materialBinder struct {
	device  gpu.Device
	sampler gpu.Sampler

	current pipeline.Pipeline
	groups  map[materialKey]bind_group_provider.BindGroupProvider
}

var _ scene.MaterialBinder = &materialBinder{}

func newMaterialBinder(device gpu.Device, sampler gpu.Sampler) *materialBinder {
	return &materialBinder{
		device:  device,
		sampler: sampler,
		groups:  make(map[materialKey]bind_group_provider.BindGroupProvider),
	}
}

// use selects the pipeline following BindMaterial calls bind against.
func (b *materialBinder) use(p pipeline.Pipeline) {
	b.current = p
}

func (b *materialBinder) BindMaterial(pass gpu.RenderPass, m *scene.Material) error {
	if b.current == nil {
		return fmt.Errorf("material %s: no pipeline selected", m.Name)
	}
	if m.Albedo == nil {
		return fmt.Errorf("material %s: %w: no albedo texture", m.Name, gpu.ErrInvalidConfig)
	}

	key := materialKey{pipeline: b.current.PipelineKey(), material: m}
	p, ok := b.groups[key]
	if !ok {
		p = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("%s.%s", key.pipeline, m.Name),
			bind_group_provider.WithGroup(1),
			bind_group_provider.WithTextureView(string(shader.RoleAlbedoTexture), m.Albedo.ShaderResource()),
			bind_group_provider.WithSampler(string(shader.RoleLinearSampler), b.sampler),
		)
		if err := p.Init(b.device, b.current.Pipeline()); err != nil {
			return err
		}
		b.groups[key] = p
	}
	pass.SetBindGroup(1, p.BindGroup())
	return nil
}

// reset releases every cached bind group.
func (b *materialBinder) reset() {
	for k, p := range b.groups {
		p.Release()
		delete(b.groups, k)
	}
	b.current = nil
}
