package main

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
)

// orbitSensitivity converts dragged pixels to radians before the controller's orbit speed.
const orbitSensitivity = 0.004

// bindInput wires camera controls (WASD/QE movement, mouse drag orbit, scroll zoom) and the
// pipeline toggles. Toggles run as engine commands so they reach the renderer between frames.
//
// Parameters:
//   - eng: the engine providing the tick and the command queue
//   - win: the window delivering input events
//   - sampleCounts: the sample counts the device supports, cycled by M
func bindInput(eng engine.Engine, win window.Window, sampleCounts []int) {
	log := logger.Named("input")
	ctrl := eng.Camera().Controller()

	var mu sync.Mutex
	keyState := make(map[uint32]bool)

	submit := func(what string, cmd engine.Command) {
		done := eng.Submit(cmd)
		go func() {
			if err := <-done; err != nil {
				log.Warn("toggle rejected", zap.String("toggle", what), zap.Error(err))
			}
		}()
	}

	win.SetKeyDownCallback(func(keyCode uint32) {
		mu.Lock()
		keyState[keyCode] = true
		mu.Unlock()

		switch keyCode {
		case common.KeyT:
			submit("strategy", func(r renderer.Renderer, _ scene.Scene) error {
				next := otherStrategy(r.Strategy())
				if err := r.SetStrategy(next); err != nil {
					return err
				}
				log.Info("lighting strategy", zap.Stringer("strategy", next))
				return nil
			})
		case common.KeyM:
			submit("msaa", func(r renderer.Renderer, _ scene.Scene) error {
				next := nextSampleCount(r.SampleCount(), sampleCounts)
				if err := r.SetSampleCount(next); err != nil {
					return err
				}
				log.Info("msaa", zap.Int("samples", next))
				return nil
			})
		case common.KeyL:
			submit("animate", func(_ renderer.Renderer, s scene.Scene) error {
				if s != nil {
					s.SetAnimateLights(!s.AnimateLights())
				}
				return nil
			})
		case common.KeyC:
			submit("culling", func(_ renderer.Renderer, s scene.Scene) error {
				if s != nil {
					s.SetCullingDisabled(!s.CullingDisabled())
				}
				return nil
			})
		case common.KeyMinus, common.KeyEqual:
			double := keyCode == common.KeyEqual
			submit("lights", func(_ renderer.Renderer, s scene.Scene) error {
				if s == nil {
					return nil
				}
				lights := s.Lights()
				return s.SetActiveLightCount(nextLightCount(lights.ActiveCount(), lights.Capacity(), double))
			})
		case common.KeyF9:
			if eng.ProfilerEnabled() {
				eng.DisableProfiler()
			} else {
				eng.EnableProfiler()
			}
		}
	})

	win.SetKeyUpCallback(func(keyCode uint32) {
		mu.Lock()
		keyState[keyCode] = false
		mu.Unlock()
	})

	var dragging bool
	var lastX, lastY int32

	win.SetMouseButtonCallback(func(button int, pressed bool, x, y int32) {
		if button != common.MouseButtonLeft && button != common.MouseButtonRight {
			return
		}
		dragging = pressed
		lastX, lastY = x, y
	})

	win.SetMouseMoveCallback(func(x, y int32) {
		if !dragging {
			return
		}
		dx := float32(x-lastX) * orbitSensitivity
		dy := float32(y-lastY) * orbitSensitivity
		ctrl.Orbit(-dx, dy)
		lastX, lastY = x, y
	})

	win.SetScrollCallback(func(delta float32) {
		ctrl.Zoom(delta * 0.1)
	})

	eng.SetTickCallback(func(dt float32) {
		mu.Lock()
		var forward, right, up float32
		if keyState[common.KeyW] {
			forward += dt
		}
		if keyState[common.KeyS] {
			forward -= dt
		}
		if keyState[common.KeyD] {
			right += dt
		}
		if keyState[common.KeyA] {
			right -= dt
		}
		if keyState[common.KeyQ] {
			up += dt
		}
		if keyState[common.KeyE] {
			up -= dt
		}
		if keyState[common.KeyLeftShift] {
			forward, right, up = forward*4, right*4, up*4
		}
		mu.Unlock()

		if forward != 0 || right != 0 || up != 0 {
			ctrl.Move(forward, right, up)
		}
	})
}

func otherStrategy(s renderer.Strategy) renderer.Strategy {
	if s == renderer.StrategyTiled {
		return renderer.StrategyPerPixel
	}
	return renderer.StrategyTiled
}

// nextSampleCount returns the supported count after current, wrapping to the first.
func nextSampleCount(current int, supported []int) int {
	if len(supported) == 0 {
		return 1
	}
	i := slices.Index(supported, current)
	return supported[(i+1)%len(supported)]
}

// nextLightCount halves or doubles the active light count within [0, capacity]. Doubling from
// zero turns one light on.
func nextLightCount(active, capacity int, double bool) int {
	if !double {
		return active / 2
	}
	return min(max(active*2, 1), capacity)
}
