package camera_test

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
)

var _ renderer.Camera = camera.NewCamera()

func near(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func depthAt(t *testing.T, c camera.Camera, p [3]float32) float32 {
	t.Helper()
	vp := c.ViewProjectionMatrix()
	clip := common.MulVec4(vp[:], [4]float32{p[0], p[1], p[2], 1})
	if clip[3] <= 0 {
		t.Fatalf("point %v is behind the eye", p)
	}
	return clip[2] / clip[3]
}

func TestComplementaryDepth(t *testing.T) {
	ctrl := camera.NewCameraController(camera.WithEye([3]float32{0, 0, 10}, [3]float32{}))
	c := camera.NewCamera(camera.WithController(ctrl), camera.WithAspect(16.0/9.0))

	if c.Near() != camera.DefaultNear || c.Far() != camera.DefaultFar {
		t.Fatalf("clip = %g/%g, want %g/%g", c.Near(), c.Far(), camera.DefaultNear, camera.DefaultFar)
	}
	if d := depthAt(t, c, [3]float32{0, 0, 10 - camera.DefaultNear}); !near(d, 1, 1e-4) {
		t.Errorf("depth at near plane = %g, want 1", d)
	}
	if d := depthAt(t, c, [3]float32{0, 0, 10 - camera.DefaultFar}); !near(d, 0, 1e-4) {
		t.Errorf("depth at far plane = %g, want 0", d)
	}
	closer := depthAt(t, c, [3]float32{0, 0, 5})
	farther := depthAt(t, c, [3]float32{0, 0, -5})
	if closer <= farther {
		t.Errorf("closer depth %g should exceed farther depth %g", closer, farther)
	}
}

func TestSetAspectIgnoresEmptyTargets(t *testing.T) {
	c := camera.NewCamera(camera.WithAspect(2))
	c.SetAspect(0)
	if c.Aspect() != 2 {
		t.Errorf("aspect = %g, want 2", c.Aspect())
	}
	before := c.ProjectionMatrix()
	c.SetAspect(1)
	after := c.ProjectionMatrix()
	if before[0] == after[0] {
		t.Error("projection did not change with aspect")
	}
}

func TestControllerWithEye(t *testing.T) {
	ctrl := camera.NewCameraController(camera.WithEye([3]float32{0, 12, -60}, [3]float32{}))
	want := float32(math.Sqrt(12*12 + 60*60))
	if !near(ctrl.Radius(), want, 1e-3) {
		t.Errorf("radius = %g, want %g", ctrl.Radius(), want)
	}
	eye := ctrl.Position()
	for i, v := range [3]float32{0, 12, -60} {
		if !near(eye[i], v, 1e-3) {
			t.Fatalf("eye = %v, want (0, 12, -60)", eye)
		}
	}
}

func TestControllerOrbitKeepsTarget(t *testing.T) {
	ctrl := camera.NewCameraController(
		camera.WithEye([3]float32{0, 0, 20}, [3]float32{1, 2, 3}),
		camera.WithOrbitSpeed(1),
	)
	r := ctrl.Radius()
	ctrl.Orbit(0.5, 0.25)
	if ctrl.Target() != [3]float32{1, 2, 3} {
		t.Errorf("target moved to %v", ctrl.Target())
	}
	if !near(ctrl.Radius(), r, 1e-4) {
		t.Errorf("radius changed from %g to %g", r, ctrl.Radius())
	}
	ctrl.Orbit(0, 100)
	if ctrl.Elevation() >= float32(math.Pi/2) {
		t.Errorf("elevation %g not clamped below the pole", ctrl.Elevation())
	}
}

func TestControllerZoomClamps(t *testing.T) {
	ctrl := camera.NewCameraController(camera.WithRadiusBounds(2, 30), camera.WithZoomSpeed(1))
	ctrl.Zoom(1000)
	if ctrl.Radius() != 2 {
		t.Errorf("radius = %g, want 2", ctrl.Radius())
	}
	ctrl.Zoom(-1000)
	if ctrl.Radius() != 30 {
		t.Errorf("radius = %g, want 30", ctrl.Radius())
	}
}

func TestControllerMoveTranslatesBoth(t *testing.T) {
	ctrl := camera.NewCameraController(
		camera.WithEye([3]float32{0, 0, 10}, [3]float32{}),
		camera.WithMoveSpeed(2),
	)
	ctrl.Move(1, 0, 0)
	target := ctrl.Target()
	eye := ctrl.Position()
	if !near(target[2], -2, 1e-4) || !near(eye[2], 8, 1e-4) {
		t.Errorf("after forward move eye = %v target = %v", eye, target)
	}
	ctrl.Move(0, 1, 0)
	if !near(ctrl.Target()[0], 2, 1e-4) {
		t.Errorf("after right move target = %v", ctrl.Target())
	}
}
