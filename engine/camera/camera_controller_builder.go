package camera

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithEye places the eye and the look-at point. The orbit radius and angles are derived from
// the offset between them.
//
// Parameters:
//   - eye: world-space eye position
//   - target: world-space look-at point
//
// Returns:
//   - CameraControllerOption: functional option to set the eye and target
func WithEye(eye, target [3]float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.target = target
		cc.setEye(eye)
	}
}

// WithRadiusBounds sets the closest and farthest distance the eye may orbit at.
//
// Parameters:
//   - minRadius: minimum distance from the target
//   - maxRadius: maximum distance from the target
//
// Returns:
//   - CameraControllerOption: functional option to set the radius bounds
func WithRadiusBounds(minRadius, maxRadius float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minRadius = minRadius
		cc.maxRadius = maxRadius
	}
}

// WithElevationBounds sets the vertical angle limits.
//
// Parameters:
//   - minElevation: lowest elevation in radians
//   - maxElevation: highest elevation in radians
//
// Returns:
//   - CameraControllerOption: functional option to set the elevation bounds
func WithElevationBounds(minElevation, maxElevation float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minElevation = minElevation
		cc.maxElevation = maxElevation
	}
}

// WithOrbitSpeed sets the rotation speed in radians per step.
//
// Parameters:
//   - speed: radians per orbit step
//
// Returns:
//   - CameraControllerOption: functional option to set the orbit speed
func WithOrbitSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.orbitSpeed = speed
	}
}

// WithZoomSpeed sets the zoom distance per step.
//
// Parameters:
//   - speed: world units per zoom step
//
// Returns:
//   - CameraControllerOption: functional option to set the zoom speed
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.zoomSpeed = speed
	}
}

// WithMoveSpeed sets the translation speed per step.
//
// Parameters:
//   - speed: world units per move step
//
// Returns:
//   - CameraControllerOption: functional option to set the move speed
func WithMoveSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.moveSpeed = speed
	}
}
