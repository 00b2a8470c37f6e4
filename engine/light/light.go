package light

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
)

// MaxLights is the default light capacity. Shaders size their per-tile light lists from the
// capacity, so it is fixed for the lifetime of a Manager.
const MaxLights = 1 << 7

// DefaultSeed seeds the light generator so every run produces the same light set.
const DefaultSeed uint64 = 1337

// attenuationBeginFactor places the start of the falloff window relative to its end.
const attenuationBeginFactor float32 = 0.8

// ErrCapacityExceeded rejects an active count outside [0, capacity].
var ErrCapacityExceeded = fmt.Errorf("%w: light capacity exceeded", gpu.ErrInvalidConfig)

// PointLightInitTransform is the procedural state of one light. The light's world position
// at any time is derived from it, never integrated.
type PointLightInitTransform struct {
	Radius float32
	Angle  float32
	Height float32

	// AnimationSpeed is the signed angular speed in radians per second. It is the linear speed
	// divided by Radius so that every light covers its orbit at a comparable linear speed.
	AnimationSpeed float32
}

// Position returns the world-space position of the light after t seconds.
//
// Parameters:
//   - t: total elapsed time in seconds
//
// Returns:
//   - [3]float32: the world-space position
func (p PointLightInitTransform) Position(t float32) [3]float32 {
	theta := float64(p.Angle + t*p.AnimationSpeed)
	return [3]float32{
		p.Radius * float32(math.Cos(theta)),
		p.Height,
		p.Radius * float32(math.Sin(theta)),
	}
}

// pointLightParams holds the static shading parameters of one light.
type pointLightParams struct {
	color            [3]float32
	attenuationBegin float32
	attenuationEnd   float32
}

// managerImpl is the implementation of the Manager interface.
type managerImpl struct {
	device gpu.Device
	label  string
	log    *zap.Logger

	capacity         int
	initialActive    int
	seed             uint64
	maxRadius        float32
	heightRange      [2]float32
	speedRange       [2]float32
	attenuationRange [2]float32
	intensityRange   [2]float32
	hueColors        bool

	init      []PointLightInitTransform
	params    []pointLightParams
	world     [][3]float32
	records   []GPUPointLight
	active    int
	totalTime float32
	buffer    *gpu.StructuredBuffer[GPUPointLight]
}

// Manager owns a fixed-capacity set of procedurally animated point lights and the
// structured buffer the active subset is uploaded to each frame.
//
// A Manager has a single writer: all methods are called from the render goroutine.
type Manager interface {
	// Initialize regenerates capacity lights from the configured seed and resets elapsed time
	// to zero. The active count is clamped to the new capacity and its buffer rebuilt.
	//
	// Parameters:
	//   - capacity: the number of lights to generate, at least 1
	//
	// Returns:
	//   - error: ErrCapacityExceeded for a capacity below 1, or a device error
	Initialize(capacity int) error

	// Capacity returns the number of generated lights.
	//
	// Returns:
	//   - int: the capacity
	Capacity() int

	// ActiveCount returns the number of lights uploaded each frame.
	//
	// Returns:
	//   - int: the active count
	ActiveCount() int

	// SetActiveCount rebuilds the light buffer to hold exactly n lights and regenerates their
	// positions for the current elapsed time. An invalid n is rejected before anything changes.
	//
	// Parameters:
	//   - n: the new active count, 0 <= n <= Capacity
	//
	// Returns:
	//   - error: ErrCapacityExceeded if n is out of range, or a *gpu.ResourceError if the
	//     buffer could not be reallocated (the manager then has no buffer until the next
	//     successful call)
	SetActiveCount(n int) error

	// Advance adds dt to the elapsed time and re-derives every active light's world position.
	//
	// Parameters:
	//   - dt: seconds since the previous call
	Advance(dt float32)

	// TotalTime returns the accumulated elapsed time.
	//
	// Returns:
	//   - float32: seconds
	TotalTime() float32

	// InitTransforms returns the procedural state of every generated light.
	//
	// Returns:
	//   - []PointLightInitTransform: one entry per light, capacity long
	InitTransforms() []PointLightInitTransform

	// WorldPositions returns the current world-space positions of the active lights.
	//
	// Returns:
	//   - [][3]float32: one position per active light
	WorldPositions() [][3]float32

	// UploadForFrame transforms the active lights into view space and replaces the whole light
	// buffer with them. Call at most once per frame, after the last Advance of that frame.
	//
	// Parameters:
	//   - view: the column-major view matrix
	//
	// Returns:
	//   - gpu.Buffer: the shader-readable light buffer for this frame
	//   - error: an error if the buffer is missing or the upload failed
	UploadForFrame(view []float32) (gpu.Buffer, error)

	// Release frees the light buffer.
	Release()
}

var _ Manager = &managerImpl{}

// NewManager creates a light manager, generates its lights and allocates the light buffer.
//
// Parameters:
//   - device: the device that owns the light buffer
//   - opts: variadic list of ManagerBuilderOption functions
//
// Returns:
//   - Manager: the new manager
//   - error: an error if the options are invalid or allocation fails
func NewManager(device gpu.Device, opts ...ManagerBuilderOption) (Manager, error) {
	m := &managerImpl{
		device:           device,
		label:            "point-lights",
		log:              logger.Named("light"),
		capacity:         MaxLights,
		initialActive:    -1,
		seed:             DefaultSeed,
		maxRadius:        100,
		heightRange:      [2]float32{0, 20},
		speedRange:       [2]float32{2, 20},
		attenuationRange: [2]float32{2, 15},
		intensityRange:   [2]float32{0.1, 0.5},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.initialActive < 0 {
		m.initialActive = m.capacity
	}
	if m.initialActive > m.capacity {
		return nil, fmt.Errorf("%w: %d active lights requested, capacity is %d", ErrCapacityExceeded, m.initialActive, m.capacity)
	}
	m.active = m.initialActive

	if err := m.Initialize(m.capacity); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *managerImpl) Initialize(capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, capacity)
	}

	rng := rand.New(rand.NewPCG(m.seed, m.seed))
	uniform := func(r [2]float32) float32 { return r[0] + rng.Float32()*(r[1]-r[0]) }

	m.capacity = capacity
	m.init = make([]PointLightInitTransform, capacity)
	m.params = make([]pointLightParams, capacity)
	for i := range capacity {
		it := &m.init[i]
		it.Radius = max(float32(math.Sqrt(rng.Float64()))*m.maxRadius, 1e-3)
		it.Angle = rng.Float32() * 2 * math.Pi
		it.Height = uniform(m.heightRange)
		speed := uniform(m.speedRange)
		if rng.IntN(2) == 0 {
			speed = -speed
		}
		it.AnimationSpeed = speed / it.Radius

		p := &m.params[i]
		p.attenuationEnd = uniform(m.attenuationRange)
		p.attenuationBegin = attenuationBeginFactor * p.attenuationEnd
		intensity := uniform(m.intensityRange)
		p.color = [3]float32{intensity, intensity, intensity}
		if m.hueColors {
			p.color = hueToRGB(rng.Float32())
			for c := range 3 {
				p.color[c] *= intensity
			}
		}
	}

	m.totalTime = 0
	if err := m.SetActiveCount(min(m.active, capacity)); err != nil {
		return err
	}
	m.log.Info("lights initialized",
		zap.Int("capacity", capacity),
		zap.Uint64("seed", m.seed),
		zap.Int("active", m.active))
	return nil
}

func (m *managerImpl) Capacity() int {
	return m.capacity
}

func (m *managerImpl) ActiveCount() int {
	return m.active
}

func (m *managerImpl) SetActiveCount(n int) error {
	if n < 0 || n > m.capacity {
		return fmt.Errorf("%w: %d active lights requested, capacity is %d", ErrCapacityExceeded, n, m.capacity)
	}

	if m.buffer != nil {
		m.buffer.Release()
		m.buffer = nil
	}
	buf, err := gpu.NewStructuredBuffer[GPUPointLight](m.device, n, gpu.WithLabel(m.label))
	if err != nil {
		m.log.Error("light buffer allocation failed", zap.Int("active", n), zap.Error(err))
		return err
	}
	m.buffer = buf
	m.active = n
	m.world = make([][3]float32, n)
	m.records = make([]GPUPointLight, n)
	m.updatePositions()
	m.log.Debug("active light count changed", zap.Int("active", n))
	return nil
}

func (m *managerImpl) Advance(dt float32) {
	m.totalTime += dt
	m.updatePositions()
}

func (m *managerImpl) TotalTime() float32 {
	return m.totalTime
}

func (m *managerImpl) InitTransforms() []PointLightInitTransform {
	return m.init
}

func (m *managerImpl) WorldPositions() [][3]float32 {
	return m.world
}

func (m *managerImpl) UploadForFrame(view []float32) (gpu.Buffer, error) {
	if m.buffer == nil {
		return nil, &gpu.ResourceError{Resource: m.label, Op: "upload", Err: errors.New("light buffer not allocated")}
	}
	for i := range m.active {
		p := m.params[i]
		m.records[i] = GPUPointLight{
			PositionView:     common.TransformPoint(view, m.world[i]),
			AttenuationBegin: p.attenuationBegin,
			Color:            p.color,
			AttenuationEnd:   p.attenuationEnd,
		}
	}
	if err := m.buffer.Write(m.records); err != nil {
		return nil, err
	}
	return m.buffer.Buffer(), nil
}

func (m *managerImpl) Release() {
	if m.buffer != nil {
		m.buffer.Release()
		m.buffer = nil
	}
}

func (m *managerImpl) updatePositions() {
	for i := range m.world {
		m.world[i] = m.init[i].Position(m.totalTime)
	}
}

// hueToRGB converts a hue in [0, 1] to a fully saturated RGB color.
func hueToRGB(hue float32) [3]float32 {
	h := float64(hue) * 6
	return [3]float32{
		saturate64(math.Abs(h-3) - 1),
		saturate64(2 - math.Abs(h-2)),
		saturate64(2 - math.Abs(h-4)),
	}
}

func saturate64(v float64) float32 {
	return float32(min(max(v, 0), 1))
}
