package bind_group_provider

import "github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithGroup sets the bind group slot this provider fills. Defaults to 0.
//
// Parameters:
//   - group: the bind group index
//
// Returns:
//   - BindGroupProviderOption: a function that sets the group for this provider
func WithGroup(group int) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.group = group
	}
}

// WithBuffer attaches a buffer under a binding role.
//
// Parameters:
//   - role: the binding role for this buffer
//   - buf: the buffer to associate with this role
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified role
func WithBuffer(role string, buf gpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[role] = buf
	}
}

// WithTextureView attaches a texture view under a binding role.
//
// Parameters:
//   - role: the binding role for this texture view
//   - tv: the texture view to associate with this role
//
// Returns:
//   - BindGroupProviderOption: a function that sets the texture view for the specified role
func WithTextureView(role string, tv gpu.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textureViews[role] = tv
	}
}

// WithSampler attaches a sampler under a binding role.
//
// Parameters:
//   - role: the binding role for this sampler
//   - s: the sampler to associate with this role
//
// Returns:
//   - BindGroupProviderOption: a function that sets the sampler for the specified role
func WithSampler(role string, s gpu.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers[role] = s
	}
}

// WithOwned hands resources over to the provider so they are released with it.
//
// Parameters:
//   - resources: the resources the provider owns
//
// Returns:
//   - BindGroupProviderOption: a function that records the owned resources for this provider
func WithOwned(resources ...gpu.Resource) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.owned = append(p.owned, resources...)
	}
}
