package renderer

import (
	"encoding/binary"
	"fmt"
	m "math"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/math"
)

// Mat4ByteSize is the unaligned size of one 4x4 float32 matrix.
const Mat4ByteSize uint64 = 64

/**
 * @brief PackedTransformBuffer holds one aligned 4x4 model matrix per planet
 * in a single device buffer. Slot i lives at byte offset i * Stride(), where
 * the stride is the matrix size rounded up to the device minimum uniform
 * alignment. Draw calls select a slot with a dynamic offset instead of one
 * buffer per planet.
 */
type PackedTransformBuffer struct {
	backend  Backend
	stride   uint64
	capacity uint32
	data     []byte
	device   Buffer
}

func NewPackedTransformBuffer(backend Backend, capacity uint32) (*PackedTransformBuffer, error) {
	p := &PackedTransformBuffer{
		backend: backend,
		stride:  math.AlignUp(Mat4ByteSize, backend.MinUniformAlignment()),
	}
	if err := p.Resize(capacity); err != nil {
		return nil, err
	}
	return p, nil
}

// Stride returns the aligned byte distance between consecutive slots.
func (p *PackedTransformBuffer) Stride() uint64 {
	return p.stride
}

func (p *PackedTransformBuffer) Capacity() uint32 {
	return p.capacity
}

// SizeBytes returns the total packed size, capacity * stride.
func (p *PackedTransformBuffer) SizeBytes() uint64 {
	return uint64(p.capacity) * p.stride
}

// Offset returns the byte offset of slot i.
func (p *PackedTransformBuffer) Offset(i uint32) uint64 {
	return uint64(i) * p.stride
}

/**
 * @brief Resizes the buffer to hold capacity slots. The device buffer is
 * recreated and every slot is re-zeroed, so stale matrices from a previous
 * larger size can never leak into draws after a shrink-and-regrow.
 */
func (p *PackedTransformBuffer) Resize(capacity uint32) error {
	if p.device != nil {
		p.device.Destroy()
		p.device = nil
	}
	p.capacity = capacity
	p.data = make([]byte, uint64(capacity)*p.stride)
	if capacity == 0 {
		return nil
	}
	device, err := p.backend.BufferCreate(BufferKindUniform, uint64(capacity)*p.stride)
	if err != nil {
		return fmt.Errorf("func Resize: failed to create packed transform buffer for %d slots: %w", capacity, err)
	}
	p.device = device
	return nil
}

/**
 * @brief Writes the matrix for slot i into the CPU mirror. Writing past the
 * current capacity is a programming error: the packer must always resize
 * before a redraw, never during one.
 */
func (p *PackedTransformBuffer) Set(i uint32, mat math.Mat4) {
	if i >= p.capacity {
		core.LogFatal("func Set: transform slot %d exceeds packed capacity %d", i, p.capacity)
		return
	}
	offset := p.Offset(i)
	for e := 0; e < 16; e++ {
		binary.LittleEndian.PutUint32(p.data[offset+uint64(e)*4:], m.Float32bits(mat.Data[e]))
	}
}

// Slot reads back the matrix stored for slot i from the CPU mirror.
func (p *PackedTransformBuffer) Slot(i uint32) math.Mat4 {
	if i >= p.capacity {
		core.LogFatal("func Slot: transform slot %d exceeds packed capacity %d", i, p.capacity)
		return math.Mat4{}
	}
	offset := p.Offset(i)
	var mat math.Mat4
	for e := 0; e < 16; e++ {
		mat.Data[e] = m.Float32frombits(binary.LittleEndian.Uint32(p.data[offset+uint64(e)*4:]))
	}
	return mat
}

// Upload mirrors the packed CPU data to the device buffer.
func (p *PackedTransformBuffer) Upload() error {
	if p.capacity == 0 {
		return nil
	}
	return p.backend.BufferLoadRange(p.device, 0, p.data)
}

// DeviceBuffer returns the device-resident buffer for binding.
func (p *PackedTransformBuffer) DeviceBuffer() Buffer {
	return p.device
}

func (p *PackedTransformBuffer) Destroy() {
	if p.device != nil {
		p.device.Destroy()
		p.device = nil
	}
	p.capacity = 0
	p.data = nil
}
