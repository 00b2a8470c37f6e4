package wgpu_device

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// ReadBuffer copies buf into a mappable staging buffer, waits for the queue and returns the
// bytes. Only buffers created with gpu.BufferUsageCopySrc can be read.
//
// Parameters:
//   - buf: the buffer to read
//
// Returns:
//   - []byte: buf.Size() bytes
//   - error: an error if the buffer cannot be copied or mapped
func (d *Device) ReadBuffer(buf gpu.Buffer) ([]byte, error) {
	const op = "read buffer"
	b, ok := buf.(*buffer)
	if !ok || b.handle == nil {
		return nil, &gpu.ResourceError{Resource: buf.Label(), Op: op, Err: gpu.ErrReleased}
	}
	if err := d.check(b.desc.Label, op); err != nil {
		return nil, err
	}
	if !b.desc.Usage.Has(gpu.BufferUsageCopySrc) {
		return nil, gpu.WrapResource(b.desc.Label, op, fmt.Errorf("%w: buffer lacks copy-src usage", gpu.ErrInvalidConfig))
	}

	size := (b.desc.Size + 3) &^ 3
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.desc.Label + ".staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, gpu.WrapResource(b.desc.Label, op, err)
	}
	defer staging.Release()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, gpu.WrapResource(b.desc.Label, op, err)
	}
	enc.CopyBufferToBuffer(b.handle, 0, staging, 0, size)
	cb, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return nil, gpu.WrapResource(b.desc.Label, op, err)
	}
	d.queue.Submit(cb)
	cb.Release()

	status := wgpu.BufferMapAsyncStatusUnknown
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, gpu.WrapResource(b.desc.Label, op, fmt.Errorf("map staging buffer: status %v", status))
	}
	out := make([]byte, b.desc.Size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}
