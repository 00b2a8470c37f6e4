package light

// ManagerBuilderOption is a function that configures a Manager instance during construction.
type ManagerBuilderOption func(*managerImpl)

// WithCapacity is an option builder that sets the number of lights generated.
//
// Parameters:
//   - capacity: the light capacity, at least 1
//
// Returns:
//   - ManagerBuilderOption: a function that applies the capacity option to a managerImpl
func WithCapacity(capacity int) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.capacity = capacity
	}
}

// WithActiveCount is an option builder that sets the initial active light count.
// Defaults to the capacity.
//
// Parameters:
//   - n: the initial active count
//
// Returns:
//   - ManagerBuilderOption: a function that applies the active count option to a managerImpl
func WithActiveCount(n int) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.initialActive = n
	}
}

// WithSeed is an option builder that sets the seed of the light generator.
//
// Parameters:
//   - seed: the generator seed
//
// Returns:
//   - ManagerBuilderOption: a function that applies the seed option to a managerImpl
func WithSeed(seed uint64) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.seed = seed
	}
}

// WithMaxRadius is an option builder that sets the largest orbit radius.
//
// Parameters:
//   - radius: the maximum orbit radius in world units
//
// Returns:
//   - ManagerBuilderOption: a function that applies the radius option to a managerImpl
func WithMaxRadius(radius float32) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.maxRadius = radius
	}
}

// WithHeightRange is an option builder that sets the range light heights are drawn from.
//
// Parameters:
//   - lo, hi: the height range in world units
//
// Returns:
//   - ManagerBuilderOption: a function that applies the height option to a managerImpl
func WithHeightRange(lo, hi float32) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.heightRange = [2]float32{lo, hi}
	}
}

// WithSpeedRange is an option builder that sets the range of linear orbit speeds.
//
// Parameters:
//   - lo, hi: the speed range in world units per second
//
// Returns:
//   - ManagerBuilderOption: a function that applies the speed option to a managerImpl
func WithSpeedRange(lo, hi float32) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.speedRange = [2]float32{lo, hi}
	}
}

// WithAttenuationRange is an option builder that sets the range attenuation end distances
// are drawn from.
//
// Parameters:
//   - lo, hi: the distance range in world units
//
// Returns:
//   - ManagerBuilderOption: a function that applies the attenuation option to a managerImpl
func WithAttenuationRange(lo, hi float32) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.attenuationRange = [2]float32{lo, hi}
	}
}

// WithIntensityRange is an option builder that sets the range light intensities are drawn from.
//
// Parameters:
//   - lo, hi: the intensity range
//
// Returns:
//   - ManagerBuilderOption: a function that applies the intensity option to a managerImpl
func WithIntensityRange(lo, hi float32) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.intensityRange = [2]float32{lo, hi}
	}
}

// WithHueColors is an option builder that tints each light with a random hue instead of
// leaving it white. The hue is drawn after every other parameter of the light.
//
// Returns:
//   - ManagerBuilderOption: a function that applies the hue option to a managerImpl
func WithHueColors() ManagerBuilderOption {
	return func(m *managerImpl) {
		m.hueColors = true
	}
}

// WithLabel is an option builder that sets the debug label of the light buffer.
//
// Parameters:
//   - label: the buffer label
//
// Returns:
//   - ManagerBuilderOption: a function that applies the label option to a managerImpl
func WithLabel(label string) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.label = label
	}
}
