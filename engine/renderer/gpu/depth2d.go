package gpu

import "fmt"

// Depth2D owns a depth buffer, optionally with an 8-bit stencil channel, and exposes:
//
//   - a writable depth-stencil view per array element
//   - a read-only depth-stencil view per array element, for passes that test against depth
//     while sampling it
//   - a shader-readable view of the depth aspect over the whole resource
//
// Like Texture2D it supports plain, multisampled and array shapes and must not be copied.
type Depth2D struct {
	_ noCopy

	spec     resourceSpec
	texture  Texture
	dsvs     []TextureView
	readOnly []TextureView
	srv      TextureView
	released bool
}

// NewDepth2D allocates a depth buffer and its views. The format is Depth32Float, or
// Depth32FloatStencil8 when WithStencil is given.
//
// Parameters:
//   - device: the device that owns the allocation
//   - opts: variadic ResourceBuilderOption functions; WithSize is required
//
// Returns:
//   - *Depth2D: the new depth wrapper
//   - error: ErrInvalidConfig for an invalid size, ErrUnsupported when the device cannot
//     allocate a stencil channel, or the device's *ResourceError
func NewDepth2D(device Device, opts ...ResourceBuilderOption) (*Depth2D, error) {
	spec := newResourceSpec(opts)
	if err := spec.validateSize(); err != nil {
		return nil, err
	}
	spec.format = FormatDepth32Float
	if spec.stencil {
		if !device.Capabilities().DepthStencil {
			return nil, &ResourceError{
				Resource: spec.label,
				Op:       "validate",
				Err:      fmt.Errorf("%w: stencil depth format", ErrUnsupported),
			}
		}
		spec.format = FormatDepth32FloatStencil8
	}
	spec.bindFlags = BindDepthStencil | BindShaderResource

	tex, err := device.CreateTexture(TextureDescriptor{
		Label:       spec.label,
		Width:       spec.width,
		Height:      spec.height,
		ArrayLayers: spec.arraySize,
		SampleCount: spec.sampleCount,
		Format:      spec.format,
		Usage:       spec.bindFlags,
	})
	if err != nil {
		return nil, err
	}

	d := &Depth2D{spec: spec, texture: tex}
	if err := d.createViews(); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func (d *Depth2D) createViews() error {
	for i := 0; i < d.spec.arraySize; i++ {
		for _, readOnly := range []bool{false, true} {
			kind := "dsv"
			if readOnly {
				kind = "dsv-ro"
			}
			v, err := d.texture.CreateView(TextureViewDescriptor{
				Label:      fmt.Sprintf("%s.%s[%d]", d.spec.label, kind, i),
				Dimension:  ViewDimension2D,
				BaseLayer:  i,
				LayerCount: 1,
				ReadOnly:   readOnly,
			})
			if err != nil {
				return WrapResource(d.spec.label, "create view", err)
			}
			if readOnly {
				d.readOnly = append(d.readOnly, v)
			} else {
				d.dsvs = append(d.dsvs, v)
			}
		}
	}

	v, err := d.texture.CreateView(TextureViewDescriptor{
		Label:      d.spec.label + ".srv",
		Dimension:  wholeDimension(d.spec),
		LayerCount: d.spec.arraySize,
		Aspect:     AspectDepthOnly,
	})
	if err != nil {
		return WrapResource(d.spec.label, "create view", err)
	}
	d.srv = v
	return nil
}

func (d *Depth2D) Label() string { return d.spec.label }
func (d *Depth2D) Width() int { return d.spec.width }
func (d *Depth2D) Height() int { return d.spec.height }
func (d *Depth2D) ArraySize() int { return d.spec.arraySize }
func (d *Depth2D) SampleCount() int { return d.spec.sampleCount }
func (d *Depth2D) Format() Format { return d.spec.format }
func (d *Depth2D) HasStencil() bool { return d.spec.format.HasStencil() }
func (d *Depth2D) Texture() Texture { return d.texture }

// DepthStencilView returns the writable depth-stencil view of array element i.
func (d *Depth2D) DepthStencilView(i int) TextureView {
	return viewAt(d.dsvs, i)
}

// ReadOnlyDepthStencilView returns the read-only depth-stencil view of array element i.
// Depth and stencil tests still run against it but nothing is written.
func (d *Depth2D) ReadOnlyDepthStencilView(i int) TextureView {
	return viewAt(d.readOnly, i)
}

// ShaderResource returns the depth-aspect view for sampling.
func (d *Depth2D) ShaderResource() TextureView {
	return d.srv
}

// Views returns every view the wrapper created, in creation order.
func (d *Depth2D) Views() []TextureView {
	out := make([]TextureView, 0, len(d.dsvs)+len(d.readOnly)+1)
	out = append(out, d.dsvs...)
	out = append(out, d.readOnly...)
	if d.srv != nil {
		out = append(out, d.srv)
	}
	return out
}

// Release frees every view and then the texture. It is safe to call more than once.
func (d *Depth2D) Release() {
	if d == nil || d.released {
		return
	}
	d.released = true
	releaseViews(d.Views())
	d.dsvs, d.readOnly, d.srv = nil, nil, nil
	if d.texture != nil {
		d.texture.Release()
		d.texture = nil
	}
}
