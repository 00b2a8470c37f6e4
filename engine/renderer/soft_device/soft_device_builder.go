package soft_device

import "go.uber.org/zap"

// DeviceBuilderOption is a function that configures a Device during construction.
type DeviceBuilderOption func(*Device)

// WithWorkers is an option builder that sets the number of goroutines shading runs on.
// Defaults to runtime.NumCPU().
//
// Parameters:
//   - n: the worker count, at least 1
//
// Returns:
//   - DeviceBuilderOption: a function that applies the worker option to a Device
func WithWorkers(n int) DeviceBuilderOption {
	return func(d *Device) {
		d.workers = n
	}
}

// WithSampleCounts is an option builder that restricts the multisample counts the device
// reports. Defaults to 1, 2, 4 and 8.
//
// Parameters:
//   - counts: the supported sample counts in ascending order
//
// Returns:
//   - DeviceBuilderOption: a function that applies the sample count option to a Device
func WithSampleCounts(counts ...int) DeviceBuilderOption {
	return func(d *Device) {
		d.caps.SampleCounts = append([]int(nil), counts...)
	}
}

// WithoutCompute is an option builder that disables compute pipelines, the way a device
// without compute support behaves.
//
// Returns:
//   - DeviceBuilderOption: a function that disables compute on a Device
func WithoutCompute() DeviceBuilderOption {
	return func(d *Device) {
		d.caps.Compute = false
	}
}

// WithoutStencil is an option builder that disables FormatDepth32FloatStencil8.
//
// Returns:
//   - DeviceBuilderOption: a function that disables depth-stencil formats on a Device
func WithoutStencil() DeviceBuilderOption {
	return func(d *Device) {
		d.caps.DepthStencil = false
	}
}

// WithLogger is an option builder that sets the logger of the device.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - DeviceBuilderOption: a function that applies the logger option to a Device
func WithLogger(log *zap.Logger) DeviceBuilderOption {
	return func(d *Device) {
		d.log = log
	}
}
