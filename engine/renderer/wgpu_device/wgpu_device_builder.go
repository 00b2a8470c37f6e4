package wgpu_device

import (
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// DeviceBuilderOption is a function that configures a Device during construction.
type DeviceBuilderOption func(*Device)

// WithForceFallbackAdapter is an option builder that requests the software fallback adapter
// instead of a hardware one.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: a function that applies the adapter option to a Device
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *Device) {
		d.forceFallbackAdapter = force
	}
}

// WithVSync is an option builder that selects FIFO presentation when enabled and immediate
// presentation otherwise. Defaults to enabled.
//
// Parameters:
//   - enabled: true to wait for vertical blank
//
// Returns:
//   - DeviceBuilderOption: a function that applies the present mode option to a Device
func WithVSync(enabled bool) DeviceBuilderOption {
	return func(d *Device) {
		if enabled {
			d.presentMode = wgpu.PresentModeFifo
		} else {
			d.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithSampleCounts is an option builder that sets the multisample counts the device reports.
// Defaults to 1 and 4, the counts every WebGPU adapter supports for renderable formats.
//
// Parameters:
//   - counts: the supported sample counts in ascending order
//
// Returns:
//   - DeviceBuilderOption: a function that applies the sample count option to a Device
func WithSampleCounts(counts ...int) DeviceBuilderOption {
	return func(d *Device) {
		d.sampleCounts = append([]int(nil), counts...)
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
