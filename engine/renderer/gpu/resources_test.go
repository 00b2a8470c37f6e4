package gpu_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/soft_device"
	"go.uber.org/zap"
)

type record struct {
	a, b float32
	c    uint32
}

func (record) Size() int { return 12 }

func (r record) Marshal() []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(r.a))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(r.b))
	binary.LittleEndian.PutUint32(buf[8:], r.c)
	return buf
}

func newDevice(t *testing.T, opts ...soft_device.DeviceBuilderOption) *soft_device.Device {
	t.Helper()
	opts = append([]soft_device.DeviceBuilderOption{soft_device.WithLogger(zap.NewNop()), soft_device.WithWorkers(1)}, opts...)
	d := soft_device.New(opts...)
	t.Cleanup(d.Release)
	return d
}

func assertNoLiveResources(t *testing.T, d *soft_device.Device) {
	t.Helper()
	if s := d.Stats(); s.Live() != 0 || s.Bytes != 0 {
		t.Errorf("live resources after release: %+v", s)
	}
}

func TestTexture2DViews(t *testing.T) {
	tests := []struct {
		name      string
		opts      []gpu.ResourceBuilderOption
		rtvs      int
		uavs      int
		srvs      int
		dimension gpu.ViewDimension
	}{
		{
			name: "plain render target",
			opts: []gpu.ResourceBuilderOption{gpu.WithBindFlags(gpu.BindRenderTarget | gpu.BindShaderResource)},
			rtvs: 1, srvs: 1, dimension: gpu.ViewDimension2D,
		},
		{
			name: "multisampled",
			opts: []gpu.ResourceBuilderOption{gpu.WithBindFlags(gpu.BindRenderTarget | gpu.BindShaderResource), gpu.WithSampleCount(4)},
			rtvs: 1, srvs: 1, dimension: gpu.ViewDimension2D,
		},
		{
			name: "array with random access",
			opts: []gpu.ResourceBuilderOption{gpu.WithBindFlags(gpu.BindUnorderedAccess | gpu.BindShaderResource), gpu.WithArraySize(3)},
			uavs: 3, srvs: 3, dimension: gpu.ViewDimension2DArray,
		},
		{
			name: "multisampled array",
			opts: []gpu.ResourceBuilderOption{gpu.WithBindFlags(gpu.BindRenderTarget | gpu.BindShaderResource), gpu.WithArraySize(2), gpu.WithSampleCount(2)},
			rtvs: 2, srvs: 2, dimension: gpu.ViewDimension2DArray,
		},
		{
			name: "cube",
			opts: []gpu.ResourceBuilderOption{gpu.WithBindFlags(gpu.BindShaderResource), gpu.WithCubeView()},
			srvs: 6, dimension: gpu.ViewDimensionCube,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDevice(t)
			opts := append([]gpu.ResourceBuilderOption{
				gpu.WithLabel("tex"),
				gpu.WithSize(8, 4),
				gpu.WithFormat(gpu.FormatRGBA16Float),
			}, tt.opts...)
			tex, err := gpu.NewTexture2D(d, opts...)
			if err != nil {
				t.Fatalf("NewTexture2D failed: %v", err)
			}

			count := func(get func(int) gpu.TextureView) int {
				n := 0
				for get(n) != nil {
					n++
				}
				return n
			}
			if got := count(tex.RenderTargetView); got != tt.rtvs {
				t.Errorf("render target views = %d, want %d", got, tt.rtvs)
			}
			if got := count(tex.UnorderedAccessView); got != tt.uavs {
				t.Errorf("random access views = %d, want %d", got, tt.uavs)
			}
			if got := count(tex.ShaderResourceView); got != tt.srvs {
				t.Errorf("shader resource views = %d, want %d", got, tt.srvs)
			}
			whole := tex.ShaderResource()
			if whole == nil {
				t.Fatal("expected a whole-resource view")
			}
			if got := whole.Descriptor().Dimension; got != tt.dimension {
				t.Errorf("whole view dimension = %v, want %v", got, tt.dimension)
			}
			if got, want := len(tex.Views()), tt.rtvs+tt.uavs+tt.srvs+1; got != want {
				t.Errorf("Views() = %d, want %d", got, want)
			}
			for _, v := range tex.Views() {
				if v.Texture() != tex.Texture() {
					t.Errorf("view %q does not belong to the texture", v.Label())
				}
			}
			if s := d.Stats(); s.Textures != 1 || s.Views != len(tex.Views()) {
				t.Errorf("device stats = %+v", s)
			}

			tex.Release()
			tex.Release()
			assertNoLiveResources(t, d)
			if tex.ShaderResource() != nil || tex.RenderTargetView(0) != nil {
				t.Error("views still reachable after Release")
			}
		})
	}
}

func TestTexture2DValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []gpu.ResourceBuilderOption
		want error
	}{
		{
			name: "zero size",
			opts: []gpu.ResourceBuilderOption{gpu.WithSize(0, 4), gpu.WithFormat(gpu.FormatRGBA8Unorm)},
			want: gpu.ErrInvalidConfig,
		},
		{
			name: "missing format",
			opts: []gpu.ResourceBuilderOption{gpu.WithSize(4, 4)},
			want: gpu.ErrInvalidConfig,
		},
		{
			name: "depth format",
			opts: []gpu.ResourceBuilderOption{gpu.WithSize(4, 4), gpu.WithFormat(gpu.FormatDepth32Float)},
			want: gpu.ErrInvalidConfig,
		},
		{
			name: "random access on multisampled",
			opts: []gpu.ResourceBuilderOption{
				gpu.WithSize(4, 4),
				gpu.WithFormat(gpu.FormatRGBA8Unorm),
				gpu.WithBindFlags(gpu.BindUnorderedAccess),
				gpu.WithSampleCount(4),
			},
			want: gpu.ErrInvalidConfig,
		},
		{
			name: "unsupported sample count",
			opts: []gpu.ResourceBuilderOption{
				gpu.WithSize(4, 4),
				gpu.WithFormat(gpu.FormatRGBA8Unorm),
				gpu.WithBindFlags(gpu.BindRenderTarget),
				gpu.WithSampleCount(3),
			},
			want: gpu.ErrUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDevice(t)
			opts := append([]gpu.ResourceBuilderOption{gpu.WithLabel("bad")}, tt.opts...)
			_, err := gpu.NewTexture2D(d, opts...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var re *gpu.ResourceError
			if !errors.As(err, &re) || re.Resource != "bad" {
				t.Errorf("error %v does not name the resource", err)
			}
			assertNoLiveResources(t, d)
		})
	}
}

func TestDepth2DViews(t *testing.T) {
	d := newDevice(t)
	depth, err := gpu.NewDepth2D(d, gpu.WithLabel("depth"), gpu.WithSize(16, 16), gpu.WithStencil())
	if err != nil {
		t.Fatalf("NewDepth2D failed: %v", err)
	}
	if depth.Format() != gpu.FormatDepth32FloatStencil8 || !depth.HasStencil() {
		t.Errorf("format = %v, want depth32float-stencil8", depth.Format())
	}
	if depth.DepthStencilView(0) == nil || depth.DepthStencilView(1) != nil {
		t.Error("expected exactly one depth-stencil view")
	}
	ro := depth.ReadOnlyDepthStencilView(0)
	if ro == nil || !ro.Descriptor().ReadOnly {
		t.Error("expected a read-only depth-stencil view")
	}
	if depth.DepthStencilView(0).Descriptor().ReadOnly {
		t.Error("writable view marked read-only")
	}
	if got := depth.ShaderResource().Descriptor().Aspect; got != gpu.AspectDepthOnly {
		t.Errorf("shader resource aspect = %v, want depth only", got)
	}
	if got := len(depth.Views()); got != 3 {
		t.Errorf("Views() = %d, want 3", got)
	}

	depth.Release()
	assertNoLiveResources(t, d)
}

func TestDepth2DWithoutStencilSupport(t *testing.T) {
	d := newDevice(t, soft_device.WithoutStencil())

	_, err := gpu.NewDepth2D(d, gpu.WithLabel("depth"), gpu.WithSize(16, 16), gpu.WithStencil())
	if !errors.Is(err, gpu.ErrUnsupported) {
		t.Fatalf("error = %v, want ErrUnsupported", err)
	}

	depth, err := gpu.NewDepth2D(d, gpu.WithLabel("depth"), gpu.WithSize(16, 16))
	if err != nil {
		t.Fatalf("NewDepth2D without stencil failed: %v", err)
	}
	defer depth.Release()
	if depth.Format() != gpu.FormatDepth32Float || depth.HasStencil() {
		t.Errorf("format = %v, want depth32float", depth.Format())
	}
}

func TestStructuredBufferWrite(t *testing.T) {
	d := newDevice(t)
	sb, err := gpu.NewStructuredBuffer[record](d, 3, gpu.WithLabel("records"), gpu.WithBindFlags(gpu.BindUnorderedAccess))
	if err != nil {
		t.Fatalf("NewStructuredBuffer failed: %v", err)
	}
	if sb.Len() != 3 || sb.Stride() != 12 || sb.Buffer().Size() != 36 {
		t.Errorf("len %d stride %d size %d", sb.Len(), sb.Stride(), sb.Buffer().Size())
	}
	if sb.UnorderedAccess() == nil {
		t.Error("expected a random-access binding")
	}

	records := []record{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	if err := sb.Write(records); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := d.ReadBuffer(sb.Buffer())
	if err != nil {
		t.Fatalf("ReadBuffer failed: %v", err)
	}
	for i, r := range records {
		if got := binary.LittleEndian.Uint32(data[i*12+8:]); got != r.c {
			t.Errorf("record %d field c = %d, want %d", i, got, r.c)
		}
	}

	if err := sb.Write(records[:2]); !gpu.IsConfigError(err) {
		t.Errorf("short write error = %v, want a config error", err)
	}

	sb.Release()
	if err := sb.Write(records); !errors.Is(err, gpu.ErrReleased) {
		t.Errorf("write after release = %v, want ErrReleased", err)
	}
	assertNoLiveResources(t, d)
}

func TestStructuredBufferEmpty(t *testing.T) {
	d := newDevice(t)
	sb, err := gpu.NewStructuredBuffer[record](d, 0, gpu.WithLabel("empty"))
	if err != nil {
		t.Fatalf("NewStructuredBuffer failed: %v", err)
	}
	defer sb.Release()
	if sb.Len() != 0 || sb.Buffer().Size() != 12 {
		t.Errorf("len %d size %d, want 0 and one record of storage", sb.Len(), sb.Buffer().Size())
	}
	if sb.UnorderedAccess() != nil {
		t.Error("random-access binding without BindUnorderedAccess")
	}
	if err := sb.Write(nil); err != nil {
		t.Errorf("empty write failed: %v", err)
	}

	if _, err := gpu.NewStructuredBuffer[record](d, -1); !gpu.IsConfigError(err) {
		t.Errorf("negative count error = %v, want a config error", err)
	}
}

func TestConstantBufferRoundsToSixteen(t *testing.T) {
	d := newDevice(t)
	cb, err := gpu.NewConstantBuffer[record](d, gpu.WithLabel("constants"))
	if err != nil {
		t.Fatalf("NewConstantBuffer failed: %v", err)
	}
	if got := cb.Buffer().Size(); got != 16 {
		t.Errorf("size = %d, want 16", got)
	}
	if !cb.Buffer().Usage().Has(gpu.BufferUsageUniform) {
		t.Error("constant buffer is not a uniform buffer")
	}
	if err := cb.Write(record{a: 1.5}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := d.ReadBuffer(cb.Buffer())
	if err != nil {
		t.Fatalf("ReadBuffer failed: %v", err)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(data)); got != 1.5 {
		t.Errorf("first field = %v, want 1.5", got)
	}

	cb.Release()
	if err := cb.Write(record{}); !errors.Is(err, gpu.ErrReleased) {
		t.Errorf("write after release = %v, want ErrReleased", err)
	}
	assertNoLiveResources(t, d)
}

func TestWrapResource(t *testing.T) {
	if gpu.WrapResource("x", "op", nil) != nil {
		t.Error("wrapping nil returned an error")
	}
	err := gpu.WrapResource("x", "op", errors.New("out of memory"))
	if !errors.Is(err, gpu.ErrAllocation) {
		t.Errorf("unclassified error %v does not wrap ErrAllocation", err)
	}
	err = gpu.WrapResource("x", "op", gpu.ErrDeviceLost)
	if !gpu.IsDeviceLost(err) || errors.Is(err, gpu.ErrAllocation) {
		t.Errorf("classified error %v was reclassified", err)
	}
}
