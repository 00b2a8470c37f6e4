package gpu

import (
	"fmt"
)

// Texture2D owns a 2-D color texture and the views its bind flags call for:
//
//   - BindRenderTarget: one render target view per array element
//   - BindUnorderedAccess: one random-access view per array element (single-sampled only)
//   - BindShaderResource: one view over the whole resource (2-D, array or cube) plus one per element
//
// Plain, multisampled, array and multisampled-array shapes are all selected through options.
// A Texture2D is the sole owner of its allocation and must not be copied; pass *Texture2D.
type Texture2D struct {
	_ noCopy

	spec     resourceSpec
	texture  Texture
	rtvs     []TextureView
	uavs     []TextureView
	srvs     []TextureView
	srv      TextureView
	released bool
}

// NewTexture2D allocates a color texture and its views. On failure nothing stays allocated.
//
// Parameters:
//   - device: the device that owns the allocation
//   - opts: variadic ResourceBuilderOption functions; WithSize and WithFormat are required
//
// Returns:
//   - *Texture2D: the new texture wrapper
//   - error: ErrInvalidConfig for an impossible shape, or the device's *ResourceError
func NewTexture2D(device Device, opts ...ResourceBuilderOption) (*Texture2D, error) {
	spec := newResourceSpec(opts)
	if err := spec.validateSize(); err != nil {
		return nil, err
	}
	if spec.format == FormatUndefined || spec.format.IsDepth() {
		return nil, &ResourceError{
			Resource: spec.label,
			Op:       "validate",
			Err:      fmt.Errorf("%w: %s is not a color format", ErrInvalidConfig, spec.format),
		}
	}
	if spec.bindFlags.Has(BindUnorderedAccess) && spec.sampleCount > 1 {
		return nil, &ResourceError{
			Resource: spec.label,
			Op:       "validate",
			Err:      fmt.Errorf("%w: random access on a multisampled texture", ErrInvalidConfig),
		}
	}

	tex, err := device.CreateTexture(TextureDescriptor{
		Label:       spec.label,
		Width:       spec.width,
		Height:      spec.height,
		ArrayLayers: spec.arraySize,
		SampleCount: spec.sampleCount,
		Format:      spec.format,
		Usage:       spec.bindFlags | BindCopyDst,
	})
	if err != nil {
		return nil, err
	}

	t := &Texture2D{spec: spec, texture: tex}
	if err := t.createViews(); err != nil {
		t.Release()
		return nil, err
	}
	return t, nil
}

func (t *Texture2D) createViews() error {
	for i := 0; i < t.spec.arraySize; i++ {
		if t.spec.bindFlags.Has(BindRenderTarget) {
			v, err := t.elementView(i, "rtv")
			if err != nil {
				return err
			}
			t.rtvs = append(t.rtvs, v)
		}
		if t.spec.bindFlags.Has(BindUnorderedAccess) {
			v, err := t.elementView(i, "uav")
			if err != nil {
				return err
			}
			t.uavs = append(t.uavs, v)
		}
		if t.spec.bindFlags.Has(BindShaderResource) {
			v, err := t.elementView(i, "srv")
			if err != nil {
				return err
			}
			t.srvs = append(t.srvs, v)
		}
	}

	if t.spec.bindFlags.Has(BindShaderResource) {
		v, err := t.texture.CreateView(TextureViewDescriptor{
			Label:      t.spec.label + ".srv",
			Dimension:  wholeDimension(t.spec),
			LayerCount: t.spec.arraySize,
		})
		if err != nil {
			return WrapResource(t.spec.label, "create view", err)
		}
		t.srv = v
	}
	return nil
}

func (t *Texture2D) elementView(i int, kind string) (TextureView, error) {
	v, err := t.texture.CreateView(TextureViewDescriptor{
		Label:      fmt.Sprintf("%s.%s[%d]", t.spec.label, kind, i),
		Dimension:  ViewDimension2D,
		BaseLayer:  i,
		LayerCount: 1,
	})
	if err != nil {
		return nil, WrapResource(t.spec.label, "create view", err)
	}
	return v, nil
}

func wholeDimension(s resourceSpec) ViewDimension {
	switch {
	case s.cube:
		return ViewDimensionCube
	case s.arraySize > 1:
		return ViewDimension2DArray
	default:
		return ViewDimension2D
	}
}

func (t *Texture2D) Label() string { return t.spec.label }
func (t *Texture2D) Width() int { return t.spec.width }
func (t *Texture2D) Height() int { return t.spec.height }
func (t *Texture2D) ArraySize() int { return t.spec.arraySize }
func (t *Texture2D) SampleCount() int { return t.spec.sampleCount }
func (t *Texture2D) Format() Format { return t.spec.format }
func (t *Texture2D) BindFlags() BindFlag { return t.spec.bindFlags }
func (t *Texture2D) Texture() Texture { return t.texture }

// RenderTargetView returns the render target view of array element i, or nil when the
// texture was not created with BindRenderTarget.
func (t *Texture2D) RenderTargetView(i int) TextureView {
	return viewAt(t.rtvs, i)
}

// UnorderedAccessView returns the random-access view of array element i, or nil.
func (t *Texture2D) UnorderedAccessView(i int) TextureView {
	return viewAt(t.uavs, i)
}

// ShaderResourceView returns the shader-readable view of array element i, or nil.
func (t *Texture2D) ShaderResourceView(i int) TextureView {
	return viewAt(t.srvs, i)
}

// ShaderResource returns the shader-readable view over every array element, or nil.
func (t *Texture2D) ShaderResource() TextureView {
	return t.srv
}

// Views returns every view the wrapper created, in creation order.
func (t *Texture2D) Views() []TextureView {
	out := make([]TextureView, 0, len(t.rtvs)+len(t.uavs)+len(t.srvs)+1)
	out = append(out, t.rtvs...)
	out = append(out, t.uavs...)
	out = append(out, t.srvs...)
	if t.srv != nil {
		out = append(out, t.srv)
	}
	return out
}

// Release frees every view and then the texture. It is safe to call more than once.
func (t *Texture2D) Release() {
	if t == nil || t.released {
		return
	}
	t.released = true
	releaseViews(t.Views())
	t.rtvs, t.uavs, t.srvs, t.srv = nil, nil, nil, nil
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

func viewAt(views []TextureView, i int) TextureView {
	if i < 0 || i >= len(views) {
		return nil
	}
	return views[i]
}

func releaseViews(views []TextureView) {
	for _, v := range views {
		if v != nil {
			v.Release()
		}
	}
}
