package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation reports that the device could not create a texture, buffer or view.
	ErrAllocation = errors.New("gpu allocation failed")

	// ErrUnsupported reports a format, sample count or pipeline stage the device cannot honor.
	ErrUnsupported = errors.New("unsupported by device")

	// ErrInvalidConfig reports a request rejected before any device state was touched.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDeviceLost reports that the device stalled or was removed. It is not recoverable.
	ErrDeviceLost = errors.New("device lost")

	// ErrReleased reports use of a resource after Release.
	ErrReleased = errors.New("resource released")
)

// ResourceError names the resource and operation behind a failure. It unwraps to one
// of the package sentinel errors so callers can branch with errors.Is.
type ResourceError struct {
	// Resource is the label of the resource being created or used.
	Resource string

	// Op is the failing operation, e.g. "create texture" or "create view".
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// WrapResource attaches resource identity to err. Errors that do not already carry one of the
// package sentinels are classified as ErrAllocation.
//
// Parameters:
//   - resource: the label of the resource
//   - op: the operation that failed
//   - err: the cause, may be nil
//
// Returns:
//   - error: nil when err is nil, otherwise a *ResourceError
func WrapResource(resource, op string, err error) error {
	if err == nil {
		return nil
	}
	if !isClassified(err) {
		err = fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	return &ResourceError{Resource: resource, Op: op, Err: err}
}

// IsConfigError reports whether err was a configuration rejection.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsDeviceLost reports whether err came from a lost device.
func IsDeviceLost(err error) bool {
	return errors.Is(err, ErrDeviceLost)
}

func isClassified(err error) bool {
	return errors.Is(err, ErrAllocation) ||
		errors.Is(err, ErrUnsupported) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrDeviceLost) ||
		errors.Is(err, ErrReleased)
}
