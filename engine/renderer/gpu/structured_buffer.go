package gpu

import "fmt"

// GPUType is a fixed-layout record that can be uploaded to the device.
// Size must be constant for a type and Marshal must return exactly Size bytes.
type GPUType interface {
	Size() int
	Marshal() []byte
}

// StructuredBuffer owns a device buffer holding a fixed number of T records, readable by
// every shader stage and, when created with BindUnorderedAccess, writable from compute.
type StructuredBuffer[T GPUType] struct {
	_ noCopy

	label    string
	n        int
	stride   int
	flags    BindFlag
	device   Device
	buffer   Buffer
	scratch  []byte
	released bool
}

// NewStructuredBuffer allocates room for n records of T. A zero n still allocates one
// record so the buffer can be bound; Len reports 0.
//
// Parameters:
//   - device: the device that owns the allocation
//   - n: the number of records
//   - opts: variadic ResourceBuilderOption functions; WithLabel and WithBindFlags are honored
//
// Returns:
//   - *StructuredBuffer[T]: the new buffer wrapper
//   - error: ErrInvalidConfig for a negative n, or the device's *ResourceError
func NewStructuredBuffer[T GPUType](device Device, n int, opts ...ResourceBuilderOption) (*StructuredBuffer[T], error) {
	spec := newResourceSpec(opts)
	if n < 0 {
		return nil, &ResourceError{
			Resource: spec.label,
			Op:       "validate",
			Err:      fmt.Errorf("%w: negative element count %d", ErrInvalidConfig, n),
		}
	}

	var zero T
	stride := zero.Size()
	usage := BufferUsageStorage | BufferUsageCopyDst
	if spec.bindFlags.Has(BindCopySrc) {
		usage |= BufferUsageCopySrc
	}

	buf, err := device.CreateBuffer(BufferDescriptor{
		Label: spec.label,
		Size:  uint64(max(n, 1) * stride),
		Usage: usage,
	})
	if err != nil {
		return nil, err
	}

	return &StructuredBuffer[T]{
		label:  spec.label,
		n:      n,
		stride: stride,
		flags:  spec.bindFlags | BindShaderResource,
		device: device,
		buffer: buf,
	}, nil
}

func (s *StructuredBuffer[T]) Len() int { return s.n }
func (s *StructuredBuffer[T]) Stride() int { return s.stride }
func (s *StructuredBuffer[T]) Label() string { return s.label }

// Buffer returns the shader-readable buffer. It is also the random-access binding when the
// buffer was created with BindUnorderedAccess.
func (s *StructuredBuffer[T]) Buffer() Buffer {
	return s.buffer
}

// UnorderedAccess returns the buffer for compute writes, or nil when the buffer was not
// created with BindUnorderedAccess.
func (s *StructuredBuffer[T]) UnorderedAccess() Buffer {
	if !s.flags.Has(BindUnorderedAccess) {
		return nil
	}
	return s.buffer
}

// Write replaces the whole contents of the buffer with records. The previous contents are
// discarded and must not be read afterwards.
//
// Parameters:
//   - records: exactly Len records
//
// Returns:
//   - error: ErrInvalidConfig when len(records) != Len, ErrReleased after Release, or the device error
func (s *StructuredBuffer[T]) Write(records []T) error {
	if s.released {
		return &ResourceError{Resource: s.label, Op: "write", Err: ErrReleased}
	}
	if len(records) != s.n {
		return &ResourceError{
			Resource: s.label,
			Op:       "write",
			Err:      fmt.Errorf("%w: %d records for a buffer of %d", ErrInvalidConfig, len(records), s.n),
		}
	}
	if s.n == 0 {
		return nil
	}

	if cap(s.scratch) < s.n*s.stride {
		s.scratch = make([]byte, 0, s.n*s.stride)
	}
	s.scratch = s.scratch[:0]
	for _, r := range records {
		s.scratch = append(s.scratch, r.Marshal()...)
	}
	if err := s.device.WriteBuffer(s.buffer, 0, s.scratch); err != nil {
		return WrapResource(s.label, "write", err)
	}
	return nil
}

// Release frees the buffer. It is safe to call more than once.
func (s *StructuredBuffer[T]) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	if s.buffer != nil {
		s.buffer.Release()
		s.buffer = nil
	}
}

// ConstantBuffer owns a uniform buffer holding a single T record.
type ConstantBuffer[T GPUType] struct {
	_ noCopy

	label    string
	device   Device
	buffer   Buffer
	released bool
}

// NewConstantBuffer allocates a uniform buffer sized for T, rounded up to 16 bytes.
//
// Parameters:
//   - device: the device that owns the allocation
//   - opts: variadic ResourceBuilderOption functions; WithLabel is honored
//
// Returns:
//   - *ConstantBuffer[T]: the new buffer wrapper
//   - error: the device's *ResourceError on failure
func NewConstantBuffer[T GPUType](device Device, opts ...ResourceBuilderOption) (*ConstantBuffer[T], error) {
	spec := newResourceSpec(opts)
	var zero T
	size := (zero.Size() + 15) &^ 15

	buf, err := device.CreateBuffer(BufferDescriptor{
		Label: spec.label,
		Size:  uint64(size),
		Usage: BufferUsageUniform | BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &ConstantBuffer[T]{label: spec.label, device: device, buffer: buf}, nil
}

func (c *ConstantBuffer[T]) Label() string { return c.label }
func (c *ConstantBuffer[T]) Buffer() Buffer { return c.buffer }

// Write replaces the buffer contents with v, discarding the previous contents.
//
// Parameters:
//   - v: the record to upload
//
// Returns:
//   - error: ErrReleased after Release, or the device error
func (c *ConstantBuffer[T]) Write(v T) error {
	if c.released {
		return &ResourceError{Resource: c.label, Op: "write", Err: ErrReleased}
	}
	if err := c.device.WriteBuffer(c.buffer, 0, v.Marshal()); err != nil {
		return WrapResource(c.label, "write", err)
	}
	return nil
}

// Release frees the buffer. It is safe to call more than once.
func (c *ConstantBuffer[T]) Release() {
	if c == nil || c.released {
		return
	}
	c.released = true
	if c.buffer != nil {
		c.buffer.Release()
		c.buffer = nil
	}
}

var (
	_ Resource = (*Texture2D)(nil)
	_ Resource = (*Depth2D)(nil)
)
