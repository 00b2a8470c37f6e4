package bind_group_provider

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string
	// group is the bind group slot the provider fills.
	group int

	// bindGroup is the bind group created by Init, or nil until then.
	bindGroup gpu.BindGroup

	// The following maps hold the resources bound by role. They are borrowed: the provider never
	// releases them unless they were also handed over with Own.

	// buffers holds the buffers of this provider, keyed by binding role.
	buffers map[string]gpu.Buffer
	// textureViews holds the texture views of this provider, keyed by binding role.
	textureViews map[string]gpu.TextureView
	// samplers holds the samplers of this provider, keyed by binding role.
	samplers map[string]gpu.Sampler

	// owned holds resources released together with the provider.
	owned []gpu.Resource
}

// BindGroupProvider describes the resources one pipeline stage reads or writes through a single
// bind group slot. Resources are attached by role, the name the shader layout gives a binding,
// so the same provider can be bound to every pipeline that declares the same roles in the same
// group: the G-buffer provider serves per-pixel and tiled lighting alike.
//
// Usage pattern:
//  1. The renderer creates a provider for a group and attaches resources by role
//  2. Init creates the device bind group against a pipeline's layout for that group
//  3. Passes bind BindGroup() at Group()
//  4. Release frees the bind group and any owned resources as a unit
type BindGroupProvider interface {
	// Release frees the bind group and every resource handed over with Own. Borrowed resources
	// stay alive. The provider can be initialized again afterwards.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Group returns the bind group slot this provider fills.
	//
	// Returns:
	//   - int: the group index
	Group() int

	// BindGroup returns the created bind group for shader binding.
	// Returns nil if Init has not succeeded.
	//
	// Returns:
	//   - gpu.BindGroup: the bind group or nil
	BindGroup() gpu.BindGroup

	// Init creates the bind group for the provider's group of pipeline p, matching every layout
	// entry to the resource attached under its role. A previous bind group is released first.
	//
	// Parameters:
	//   - device: the device that creates the bind group
	//   - p: the pipeline whose layout the bind group must match
	//
	// Returns:
	//   - error: an error naming the first role with no attached resource, or the device error
	Init(device gpu.Device, p gpu.Pipeline) error

	// Buffer returns the buffer attached under role, or nil if none.
	//
	// Parameters:
	//   - role: the binding role
	//
	// Returns:
	//   - gpu.Buffer: the buffer or nil
	Buffer(role string) gpu.Buffer

	// Buffers returns every attached buffer keyed by role.
	//
	// Returns:
	//   - map[string]gpu.Buffer: the buffers
	Buffers() map[string]gpu.Buffer

	// TextureView returns the texture view attached under role, or nil if none.
	//
	// Parameters:
	//   - role: the binding role
	//
	// Returns:
	//   - gpu.TextureView: the texture view or nil
	TextureView(role string) gpu.TextureView

	// TextureViews returns every attached texture view keyed by role.
	//
	// Returns:
	//   - map[string]gpu.TextureView: the texture views
	TextureViews() map[string]gpu.TextureView

	// Sampler returns the sampler attached under role, or nil if none.
	//
	// Parameters:
	//   - role: the binding role
	//
	// Returns:
	//   - gpu.Sampler: the sampler or nil
	Sampler(role string) gpu.Sampler

	// Samplers returns every attached sampler keyed by role.
	//
	// Returns:
	//   - map[string]gpu.Sampler: the samplers
	Samplers() map[string]gpu.Sampler

	// Roles returns the roles with an attached resource, sorted.
	//
	// Returns:
	//   - []string: the roles
	Roles() []string

	// SetBuffer attaches a buffer under role. The bind group is rebuilt on the next Init.
	//
	// Parameters:
	//   - role: the binding role
	//   - buf: the buffer
	SetBuffer(role string, buf gpu.Buffer)

	// SetTextureView attaches a texture view under role.
	//
	// Parameters:
	//   - role: the binding role
	//   - tv: the texture view
	SetTextureView(role string, tv gpu.TextureView)

	// SetSampler attaches a sampler under role.
	//
	// Parameters:
	//   - role: the binding role
	//   - s: the sampler
	SetSampler(role string, s gpu.Sampler)

	// Own hands resources over to the provider so Release frees them.
	//
	// Parameters:
	//   - resources: the resources to own
	Own(resources ...gpu.Resource)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label of the provider and its bind group
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[string]gpu.Buffer),
		textureViews: make(map[string]gpu.TextureView),
		samplers:     make(map[string]gpu.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Group() int {
	return p.group
}

func (p *bindGroupProvider) BindGroup() gpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(role string) gpu.Buffer {
	return p.buffers[role]
}

func (p *bindGroupProvider) Buffers() map[string]gpu.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) TextureView(role string) gpu.TextureView {
	return p.textureViews[role]
}

func (p *bindGroupProvider) TextureViews() map[string]gpu.TextureView {
	return p.textureViews
}

func (p *bindGroupProvider) Sampler(role string) gpu.Sampler {
	return p.samplers[role]
}

func (p *bindGroupProvider) Samplers() map[string]gpu.Sampler {
	return p.samplers
}

func (p *bindGroupProvider) Roles() []string {
	roles := slices.Collect(maps.Keys(p.buffers))
	roles = slices.AppendSeq(roles, maps.Keys(p.textureViews))
	roles = slices.AppendSeq(roles, maps.Keys(p.samplers))
	slices.Sort(roles)
	return slices.Compact(roles)
}

func (p *bindGroupProvider) SetBuffer(role string, buf gpu.Buffer) {
	p.buffers[role] = buf
}

func (p *bindGroupProvider) SetTextureView(role string, tv gpu.TextureView) {
	p.textureViews[role] = tv
}

func (p *bindGroupProvider) SetSampler(role string, s gpu.Sampler) {
	p.samplers[role] = s
}

func (p *bindGroupProvider) Own(resources ...gpu.Resource) {
	p.owned = append(p.owned, resources...)
}

func (p *bindGroupProvider) Init(device gpu.Device, pl gpu.Pipeline) error {
	p.releaseBindGroup()

	layout, ok := pl.BindGroupLayout(p.group)
	if !ok {
		return fmt.Errorf("bind group %s: pipeline %q has no group %d", p.label, pl.Label(), p.group)
	}
	entries := make([]gpu.BindGroupEntry, 0, len(layout.Entries))
	for _, le := range layout.Entries {
		e := gpu.BindGroupEntry{Binding: le.Binding}
		switch le.Type {
		case gpu.BindingTypeUniformBuffer, gpu.BindingTypeStorageBuffer, gpu.BindingTypeReadOnlyStorageBuffer:
			e.Buffer = p.buffers[le.Role]
			if e.Buffer == nil {
				return fmt.Errorf("bind group %s: no buffer for role %q", p.label, le.Role)
			}
		case gpu.BindingTypeSampler:
			e.Sampler = p.samplers[le.Role]
			if e.Sampler == nil {
				return fmt.Errorf("bind group %s: no sampler for role %q", p.label, le.Role)
			}
		default:
			e.TextureView = p.textureViews[le.Role]
			if e.TextureView == nil {
				return fmt.Errorf("bind group %s: no texture view for role %q", p.label, le.Role)
			}
		}
		entries = append(entries, e)
	}

	bg, err := device.CreateBindGroup(gpu.BindGroupDescriptor{
		Label:    p.label,
		Pipeline: pl,
		Group:    p.group,
		Entries:  entries,
	})
	if err != nil {
		return fmt.Errorf("bind group %s: %w", p.label, err)
	}
	p.bindGroup = bg
	return nil
}

func (p *bindGroupProvider) releaseBindGroup() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}

func (p *bindGroupProvider) Release() {
	p.releaseBindGroup()
	for _, r := range p.owned {
		if r != nil {
			r.Release()
		}
	}
	p.owned = nil
}
