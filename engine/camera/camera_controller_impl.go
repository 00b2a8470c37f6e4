package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

type cameraControllerImpl struct {
	mu *sync.Mutex

	target [3]float32

	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed float32
	zoomSpeed  float32
	moveSpeed  float32
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a controller looking at the origin from 60 units away, slightly
// above the horizon.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:           &sync.Mutex{},
		radius:       60,
		elevation:    float32(math.Pi / 16),
		minRadius:    1,
		maxRadius:    250,
		minElevation: -float32(math.Pi/2 - 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),
		orbitSpeed:   1.5,
		zoomSpeed:    20,
		moveSpeed:    10,
	}
	for _, option := range options {
		option(cc)
	}
	cc.clamp()
	return cc
}

// eye computes the eye from the target and spherical coordinates. Caller must hold the mutex.
func (cc *cameraControllerImpl) eye() [3]float32 {
	cosElev := float32(math.Cos(float64(cc.elevation)))
	sinElev := float32(math.Sin(float64(cc.elevation)))
	cosAzim := float32(math.Cos(float64(cc.azimuth)))
	sinAzim := float32(math.Sin(float64(cc.azimuth)))
	return [3]float32{
		cc.target[0] + cc.radius*cosElev*sinAzim,
		cc.target[1] + cc.radius*sinElev,
		cc.target[2] + cc.radius*cosElev*cosAzim,
	}
}

// setEye derives the spherical coordinates of eye around the target. Caller must hold the mutex.
func (cc *cameraControllerImpl) setEye(eye [3]float32) {
	d := common.Sub3(eye, cc.target)
	r := common.Length3(d)
	if r < 1e-6 {
		return
	}
	cc.radius = r
	cc.elevation = float32(math.Asin(float64(d[1] / r)))
	cc.azimuth = float32(math.Atan2(float64(d[0]), float64(d[2])))
	cc.clamp()
}

func (cc *cameraControllerImpl) clamp() {
	cc.radius = min(max(cc.radius, cc.minRadius), cc.maxRadius)
	cc.elevation = min(max(cc.elevation, cc.minElevation), cc.maxElevation)
}

// axes returns the right, up and forward unit vectors of the view, matching LookAt with a +Y
// world up. Caller must hold the mutex.
func (cc *cameraControllerImpl) axes() (right, up, forward [3]float32) {
	forward = common.Normalize3(common.Sub3(cc.target, cc.eye()))
	right = common.Normalize3(common.Cross3(forward, [3]float32{0, 1, 0}))
	up = common.Cross3(right, forward)
	return right, up, forward
}

func (cc *cameraControllerImpl) Position() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.eye()
}

func (cc *cameraControllerImpl) Target() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *cameraControllerImpl) SetPosition(eye [3]float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.setEye(eye)
}

func (cc *cameraControllerImpl) SetTarget(target [3]float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = target
}

func (cc *cameraControllerImpl) Orbit(azimuth, elevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth += azimuth * cc.orbitSpeed
	cc.elevation += elevation * cc.orbitSpeed
	cc.clamp()
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius -= delta * cc.zoomSpeed
	cc.clamp()
}

func (cc *cameraControllerImpl) Move(forward, right, up float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	r, u, f := cc.axes()
	for i := range 3 {
		cc.target[i] += (f[i]*forward + r[i]*right + u[i]*up) * cc.moveSpeed
	}
}

func (cc *cameraControllerImpl) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *cameraControllerImpl) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *cameraControllerImpl) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}

func (cc *cameraControllerImpl) MoveSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.moveSpeed
}

func (cc *cameraControllerImpl) OrbitSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.orbitSpeed
}
