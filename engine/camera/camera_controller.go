package camera

// CameraController owns the eye and target of a camera. The eye is kept in spherical
// coordinates (radius, azimuth, elevation) around the target, so orbiting and zooming never move
// the target while Move translates both together.
type CameraController interface {
	// Position returns the world-space eye position.
	//
	// Returns:
	//   - [3]float32: the eye position
	Position() [3]float32

	// Target returns the look-at point.
	//
	// Returns:
	//   - [3]float32: the target position
	Target() [3]float32

	// SetPosition places the eye and derives the spherical coordinates from it.
	//
	// Parameters:
	//   - eye: world-space eye position
	SetPosition(eye [3]float32)

	// SetTarget moves the look-at point, keeping the eye's offset from it.
	//
	// Parameters:
	//   - target: world-space target position
	SetTarget(target [3]float32)

	// Orbit rotates the eye around the target. Both angles are scaled by OrbitSpeed; elevation is
	// clamped to the configured bounds.
	//
	// Parameters:
	//   - azimuth: horizontal steps, positive turns right
	//   - elevation: vertical steps, positive tilts up
	Orbit(azimuth, elevation float32)

	// Zoom moves the eye toward the target by delta*ZoomSpeed, clamped to the radius bounds.
	//
	// Parameters:
	//   - delta: zoom steps, positive moves closer
	Zoom(delta float32)

	// Move translates the eye and target along the view's local axes by MoveSpeed units per step.
	// The host passes steps already scaled by the elapsed time.
	//
	// Parameters:
	//   - forward: steps toward the target
	//   - right: steps to the right
	//   - up: steps along the view's up axis
	Move(forward, right, up float32)

	// Radius returns the eye's distance from the target.
	//
	// Returns:
	//   - float32: the orbit radius
	Radius() float32

	// Azimuth returns the horizontal angle of the eye around the target's Y axis.
	//
	// Returns:
	//   - float32: azimuth in radians
	Azimuth() float32

	// Elevation returns the vertical angle of the eye above the target's horizontal plane.
	//
	// Returns:
	//   - float32: elevation in radians
	Elevation() float32

	// MoveSpeed returns the translation speed in world units per step.
	//
	// Returns:
	//   - float32: the move speed
	MoveSpeed() float32

	// OrbitSpeed returns the rotation speed in radians per step.
	//
	// Returns:
	//   - float32: the orbit speed
	OrbitSpeed() float32
}
