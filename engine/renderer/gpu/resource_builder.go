package gpu

import "fmt"

// resourceSpec collects the options shared by every resource wrapper constructor.
type resourceSpec struct {
	label       string
	width       int
	height      int
	arraySize   int
	sampleCount int
	format      Format
	bindFlags   BindFlag
	cube        bool
	stencil     bool
}

// ResourceBuilderOption is a function that configures a resource wrapper during construction.
type ResourceBuilderOption func(*resourceSpec)

// WithLabel is an option builder that sets the debug label of the resource.
// Views derive their labels from it.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - ResourceBuilderOption: a function that applies the label option
func WithLabel(label string) ResourceBuilderOption {
	return func(s *resourceSpec) {
		s.label = label
	}
}

// WithSize is an option builder that sets the texel dimensions of a texture.
//
// Parameters:
//   - width: the width in texels
//   - height: the height in texels
//
// Returns:
//   - ResourceBuilderOption: a function that applies the size option
func WithSize(width, height int) ResourceBuilderOption {
	return func(s *resourceSpec) {
		s.width = width
		s.height = height
	}
}

// WithFormat is an option builder that sets the texel format of a texture.
//
// Parameters:
//   - format: the texel format
//
// Returns:
//   - ResourceBuilderOption: a function that applies the format option
func WithFormat(format Format) ResourceBuilderOption {
	return func(s *resourceSpec) {
		s.format = format
	}
}

// WithBindFlags is an option builder that sets how the resource may be bound.
// Only the views matching these flags are created.
//
// Parameters:
//   - flags: the bind flag mask
//
// Returns:
//   - ResourceBuilderOption: a function that applies the bind flags option
func WithBindFlags(flags BindFlag) ResourceBuilderOption {
	return func(s *resourceSpec) {
		s.bindFlags = flags
	}
}

// WithArraySize is an option builder that makes the texture an array of n layers.
//
// Parameters:
//   - n: the number of array layers
//
// Returns:
//   - ResourceBuilderOption: a function that applies the array size option
func WithArraySize(n int) ResourceBuilderOption {
	return func(s *resourceSpec) {
		s.arraySize = n
	}
}

// WithSampleCount is an option builder that makes the texture multisampled.
//
// Parameters:
//   - n: the number of samples per texel
//
// Returns:
//   - ResourceBuilderOption: a function that applies the sample count option
func WithSampleCount(n int) ResourceBuilderOption {
	return func(s *resourceSpec) {
		s.sampleCount = n
	}
}

// WithCubeView is an option builder that exposes a six-layer texture as a cube map.
// It implies WithArraySize(6).
//
// Returns:
//   - ResourceBuilderOption: a function that applies the cube view option
func WithCubeView() ResourceBuilderOption {
	return func(s *resourceSpec) {
		s.cube = true
		s.arraySize = 6
	}
}

// WithStencil is an option builder that gives a depth buffer an 8-bit stencil channel.
//
// Returns:
//   - ResourceBuilderOption: a function that applies the stencil option
func WithStencil() ResourceBuilderOption {
	return func(s *resourceSpec) {
		s.stencil = true
	}
}

func newResourceSpec(opts []ResourceBuilderOption) resourceSpec {
	s := resourceSpec{
		arraySize:   1,
		sampleCount: 1,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.arraySize < 1 {
		s.arraySize = 1
	}
	if s.sampleCount < 1 {
		s.sampleCount = 1
	}
	return s
}

func (s resourceSpec) validateSize() error {
	if s.width <= 0 || s.height <= 0 {
		return &ResourceError{
			Resource: s.label,
			Op:       "validate",
			Err:      fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, s.width, s.height),
		}
	}
	return nil
}

// noCopy flags accidental copies of owning wrappers under go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
