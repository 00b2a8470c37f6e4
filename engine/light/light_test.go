package light_test

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/soft_device"
	"go.uber.org/zap"
)

func newDevice(t *testing.T) *soft_device.Device {
	t.Helper()
	d := soft_device.New(soft_device.WithLogger(zap.NewNop()), soft_device.WithWorkers(1))
	t.Cleanup(d.Release)
	return d
}

func newManager(t *testing.T, d gpu.Device, opts ...light.ManagerBuilderOption) light.Manager {
	t.Helper()
	m, err := light.NewManager(d, opts...)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(m.Release)
	return m
}

func identity() []float32 {
	m := make([]float32, 16)
	common.Identity(m)
	return m
}

func TestUploadProducesActiveRecords(t *testing.T) {
	d := newDevice(t)
	m := newManager(t, d)

	for _, n := range []int{0, 1, 8, light.MaxLights} {
		if err := m.SetActiveCount(n); err != nil {
			t.Fatalf("SetActiveCount(%d) failed: %v", n, err)
		}
		buf, err := m.UploadForFrame(identity())
		if err != nil {
			t.Fatalf("UploadForFrame failed: %v", err)
		}
		data, err := d.ReadBuffer(buf)
		if err != nil {
			t.Fatalf("ReadBuffer failed: %v", err)
		}
		records := light.DecodePointLights(data, n)
		if len(records) != n {
			t.Fatalf("n=%d: decoded %d records", n, len(records))
		}
		for i, r := range records {
			if r.AttenuationBegin != 0.8*r.AttenuationEnd {
				t.Errorf("n=%d light %d: begin %v, want 0.8 * %v", n, i, r.AttenuationBegin, r.AttenuationEnd)
			}
			if r.AttenuationBegin > r.AttenuationEnd {
				t.Errorf("n=%d light %d: begin %v after end %v", n, i, r.AttenuationBegin, r.AttenuationEnd)
			}
			if r.PositionView != m.WorldPositions()[i] {
				t.Errorf("n=%d light %d: identity view moved the light", n, i)
			}
		}
	}
	if s := d.Stats(); s.Buffers != 1 {
		t.Errorf("live buffers = %d, want exactly one light buffer", s.Buffers)
	}
}

func TestUploadTransformsToViewSpace(t *testing.T) {
	d := newDevice(t)
	m := newManager(t, d, light.WithActiveCount(4))

	view := identity()
	view[12], view[13], view[14] = 1, -2, 3
	buf, err := m.UploadForFrame(view)
	if err != nil {
		t.Fatalf("UploadForFrame failed: %v", err)
	}
	data, _ := d.ReadBuffer(buf)
	for i, r := range light.DecodePointLights(data, 4) {
		w := m.WorldPositions()[i]
		want := [3]float32{w[0] + 1, w[1] - 2, w[2] + 3}
		if r.PositionView != want {
			t.Errorf("light %d: view position %v, want %v", i, r.PositionView, want)
		}
	}
}

func TestSetActiveCountRejectsOverCapacity(t *testing.T) {
	d := newDevice(t)
	m := newManager(t, d, light.WithCapacity(16), light.WithActiveCount(8))

	for _, n := range []int{17, -1} {
		err := m.SetActiveCount(n)
		if !errors.Is(err, light.ErrCapacityExceeded) || !gpu.IsConfigError(err) {
			t.Errorf("SetActiveCount(%d) = %v, want ErrCapacityExceeded", n, err)
		}
	}
	if m.ActiveCount() != 8 {
		t.Errorf("active count = %d after rejected calls, want 8", m.ActiveCount())
	}
	if _, err := m.UploadForFrame(identity()); err != nil {
		t.Errorf("upload after rejected call failed: %v", err)
	}

	if _, err := light.NewManager(d, light.WithCapacity(4), light.WithActiveCount(5)); !errors.Is(err, light.ErrCapacityExceeded) {
		t.Errorf("NewManager with too many active lights = %v, want ErrCapacityExceeded", err)
	}
	if _, err := light.NewManager(d, light.WithCapacity(0)); !errors.Is(err, light.ErrCapacityExceeded) {
		t.Errorf("NewManager with zero capacity = %v, want ErrCapacityExceeded", err)
	}
}

func TestAdvanceIsRestartable(t *testing.T) {
	d := newDevice(t)
	stepped := newManager(t, d, light.WithActiveCount(32))
	single := newManager(t, d, light.WithActiveCount(32))

	stepped.Advance(0.25)
	stepped.Advance(0.5)
	single.Advance(0.75)

	if stepped.TotalTime() != single.TotalTime() {
		t.Fatalf("total time %v vs %v", stepped.TotalTime(), single.TotalTime())
	}
	for i, p := range stepped.WorldPositions() {
		if p != single.WorldPositions()[i] {
			t.Errorf("light %d: %v after two steps, %v after one", i, p, single.WorldPositions()[i])
		}
		if want := stepped.InitTransforms()[i].Position(0.75); p != want {
			t.Errorf("light %d: %v, want the pure position %v", i, p, want)
		}
	}
}

func TestSetActiveCountUsesCurrentTime(t *testing.T) {
	d := newDevice(t)
	m := newManager(t, d, light.WithActiveCount(2))
	m.Advance(3)

	if err := m.SetActiveCount(10); err != nil {
		t.Fatalf("SetActiveCount failed: %v", err)
	}
	for i, p := range m.WorldPositions() {
		if want := m.InitTransforms()[i].Position(3); p != want {
			t.Errorf("light %d: %v, want %v", i, p, want)
		}
	}
}

func TestInitializeIsDeterministic(t *testing.T) {
	d := newDevice(t)
	a := newManager(t, d)
	b := newManager(t, d)
	c := newManager(t, d, light.WithSeed(light.DefaultSeed+1))

	same := true
	for i, it := range a.InitTransforms() {
		if it != b.InitTransforms()[i] {
			t.Errorf("light %d differs between runs with the same seed", i)
		}
		if it != c.InitTransforms()[i] {
			same = false
		}
	}
	if same {
		t.Error("a different seed produced the same lights")
	}

	a.Advance(5)
	if err := a.Initialize(a.Capacity()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if a.TotalTime() != 0 {
		t.Errorf("total time = %v after Initialize, want 0", a.TotalTime())
	}
	for i, it := range a.InitTransforms() {
		if it != b.InitTransforms()[i] {
			t.Errorf("light %d changed after re-initialization", i)
		}
	}
}

func TestGeneratedParameterRanges(t *testing.T) {
	d := newDevice(t)
	const maxRadius = 50
	m := newManager(t, d,
		light.WithMaxRadius(maxRadius),
		light.WithHeightRange(1, 4),
		light.WithSpeedRange(2, 6))

	for i, it := range m.InitTransforms() {
		if it.Radius <= 0 || it.Radius > maxRadius {
			t.Errorf("light %d: radius %v outside (0, %v]", i, it.Radius, maxRadius)
		}
		if it.Angle < 0 || it.Angle >= 2*3.1416 {
			t.Errorf("light %d: angle %v outside a full turn", i, it.Angle)
		}
		if it.Height < 1 || it.Height > 4 {
			t.Errorf("light %d: height %v outside [1, 4]", i, it.Height)
		}
		linear := it.AnimationSpeed * it.Radius
		if linear < 0 {
			linear = -linear
		}
		if linear < 2-1e-3 || linear > 6+1e-3 {
			t.Errorf("light %d: linear speed %v outside [2, 6]", i, linear)
		}
	}
}

func TestReleaseFreesLightBuffer(t *testing.T) {
	d := newDevice(t)
	m, err := light.NewManager(d, light.WithActiveCount(8))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	m.Release()
	m.Release()
	if s := d.Stats(); s.Live() != 0 {
		t.Errorf("live resources after Release: %+v", s)
	}
	if _, err := m.UploadForFrame(identity()); err == nil {
		t.Error("upload after Release succeeded")
	}
}

func TestPointLightLayout(t *testing.T) {
	l := light.GPUPointLight{
		PositionView:     [3]float32{1, 2, 3},
		AttenuationBegin: 4,
		Color:            [3]float32{5, 6, 7},
		AttenuationEnd:   8,
	}
	if l.Size() != 32 {
		t.Fatalf("Size() = %d, want 32", l.Size())
	}
	got := light.DecodePointLights(l.Marshal(), 1)
	if len(got) != 1 || got[0] != l {
		t.Errorf("decoded %+v, want %+v", got, l)
	}
	if got := light.DecodePointLights(append(l.Marshal(), 0, 0), 8); len(got) != 1 {
		t.Errorf("decoded %d records from a partial tail, want 1", len(got))
	}
}

func TestPackRGBA16(t *testing.T) {
	e := light.PackRGBA16([4]float32{1, 0.5, 0.25, 1})
	if e.RB != 0x3c00|0x3400<<16 {
		t.Errorf("rb = %#x", e.RB)
	}
	if e.GA != 0x3800|0x3c00<<16 {
		t.Errorf("ga = %#x", e.GA)
	}
	if got := e.Unpack(); got != [4]float32{1, 0.5, 0.25, 1} {
		t.Errorf("Unpack() = %v", got)
	}

	buf := make([]byte, 3*light.FramebufferFlatElementSize)
	light.PutFramebufferFlatElement(buf, 2, e)
	if got := light.DecodeFramebufferFlatElement(buf, 2); got != e {
		t.Errorf("element round trip = %+v, want %+v", got, e)
	}
	if got := light.DecodeFramebufferFlatElement(buf, 0); got != (light.FramebufferFlatElement{}) {
		t.Errorf("untouched element = %+v", got)
	}
}

func TestFlatElementIndex(t *testing.T) {
	tests := []struct {
		x, y, sample int
		want         int
	}{
		{0, 0, 0, 0},
		{3, 0, 0, 3},
		{0, 1, 0, 4},
		{3, 1, 0, 7},
		{0, 0, 1, 8},
		{2, 1, 1, 14},
	}
	for _, tt := range tests {
		if got := light.FlatElementIndex(tt.x, tt.y, tt.sample, 4, 2); got != tt.want {
			t.Errorf("FlatElementIndex(%d, %d, %d) = %d, want %d", tt.x, tt.y, tt.sample, got, tt.want)
		}
	}
}

func TestTileCounts(t *testing.T) {
	tests := []struct {
		w, h, tile int
		wantX      int
		wantY      int
	}{
		{1280, 720, 16, 80, 45},
		{256, 256, 16, 16, 16},
		{1281, 721, 16, 81, 46},
		{1, 1, 16, 1, 1},
		{100, 50, 8, 13, 7},
	}
	for _, tt := range tests {
		x, y := light.TileCounts(tt.w, tt.h, tt.tile)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("TileCounts(%d, %d, %d) = (%d, %d), want (%d, %d)", tt.w, tt.h, tt.tile, x, y, tt.wantX, tt.wantY)
		}
	}

	for dim, want := range map[int]bool{0: false, 1: true, 16: true, 17: false} {
		if got := light.ValidTileDim(dim); got != want {
			t.Errorf("ValidTileDim(%d) = %v, want %v", dim, got, want)
		}
	}
}
