package soft

import (
	"encoding/binary"
	"fmt"
	m "math"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/kepler/engine/renderer"
)

// Mirrors the uniform alignment of common desktop GPUs so packed strides
// exercise the same padding the Vulkan backend produces.
const softUniformAlignment uint64 = 256

type softBuffer struct {
	kind renderer.BufferKind
	data []byte
}

func (b *softBuffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *softBuffer) Destroy() {
	b.data = nil
}

type pendingReadback struct {
	buffer    *softBuffer
	pollsLeft int
}

/**
 * @brief Backend is an in-memory implementation of renderer.Backend. Buffers
 * are byte slices, draws are counted instead of rasterized, and the pairwise
 * collision kernel runs on goroutine workgroups with the same atomic
 * slot-reservation protocol the device kernel uses. Tests and headless runs
 * are driven through this backend.
 */
type Backend struct {
	// Number of ReadbackPoll calls a submission stays in flight before it
	// completes. Models device asynchrony; zero completes on the first poll.
	Latency int

	pending   []*pendingReadback
	drawCalls []DrawCall
}

// DrawCall records one GeometryDraw for test inspection.
type DrawCall struct {
	Topology      renderer.Topology
	IndexCount    uint32
	DynamicOffset uint32
}

func NewBackend() *Backend {
	return &Backend{Latency: 1}
}

func (sb *Backend) MinUniformAlignment() uint64 {
	return softUniformAlignment
}

// Frame is the pass handle a soft frame records into.
type Frame struct{}

// FrameBegin opens a frame and clears the recorded draw list.
func (sb *Backend) FrameBegin() (renderer.RenderPass, error) {
	sb.drawCalls = sb.drawCalls[:0]
	return &Frame{}, nil
}

func (sb *Backend) FrameEnd(pass renderer.RenderPass) error {
	if _, ok := pass.(*Frame); !ok {
		return fmt.Errorf("func FrameEnd: pass does not belong to this backend")
	}
	return nil
}

func (sb *Backend) BufferCreate(kind renderer.BufferKind, size uint64) (renderer.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("func BufferCreate: zero-sized buffer")
	}
	return &softBuffer{
		kind: kind,
		data: make([]byte, size),
	}, nil
}

func (sb *Backend) BufferLoadRange(buffer renderer.Buffer, offset uint64, data []byte) error {
	b, ok := buffer.(*softBuffer)
	if !ok {
		return fmt.Errorf("func BufferLoadRange: buffer does not belong to this backend")
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("func BufferLoadRange: range [%d, %d) exceeds buffer size %d", offset, offset+uint64(len(data)), len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

func (sb *Backend) GeometryDraw(pass renderer.RenderPass, topology renderer.Topology, vertexBuffer, indexBuffer renderer.Buffer, indexCount uint32, viewProjection, transforms renderer.Buffer, dynamicOffset uint32) error {
	// Index and transform bindings are optional: trail draws are non-indexed
	// and carry their positions pre-transformed.
	if vertexBuffer == nil {
		return fmt.Errorf("func GeometryDraw: nil vertex buffer")
	}
	sb.drawCalls = append(sb.drawCalls, DrawCall{
		Topology:      topology,
		IndexCount:    indexCount,
		DynamicOffset: dynamicOffset,
	})
	return nil
}

// DrawCalls returns the draws recorded since the last ResetDrawCalls.
func (sb *Backend) DrawCalls() []DrawCall {
	return sb.drawCalls
}

func (sb *Backend) ResetDrawCalls() {
	sb.drawCalls = sb.drawCalls[:0]
}

/**
 * @brief Executes the collision kernel, copies the output into the readback
 * buffer and clears the output, in that order, exactly like one device
 * command submission. The readback completes after Latency polls.
 */
func (sb *Backend) CollisionPassSubmit(input renderer.Buffer, candidateCount, groupCount uint32, output, readback renderer.Buffer) error {
	in, ok := input.(*softBuffer)
	if !ok {
		return fmt.Errorf("func CollisionPassSubmit: input buffer does not belong to this backend")
	}
	out, ok := output.(*softBuffer)
	if !ok {
		return fmt.Errorf("func CollisionPassSubmit: output buffer does not belong to this backend")
	}
	rb, ok := readback.(*softBuffer)
	if !ok {
		return fmt.Errorf("func CollisionPassSubmit: readback buffer does not belong to this backend")
	}
	if len(rb.data) < len(out.data) {
		return fmt.Errorf("func CollisionPassSubmit: readback buffer smaller than output buffer")
	}

	runCollisionKernel(in.data, candidateCount, groupCount, out.data)

	// Copy then clear, one "submission".
	copy(rb.data, out.data)
	for i := range out.data {
		out.data[i] = 0
	}

	sb.pending = append(sb.pending, &pendingReadback{
		buffer:    rb,
		pollsLeft: sb.Latency,
	})
	return nil
}

func (sb *Backend) ReadbackPoll(readback renderer.Buffer) ([]byte, bool, error) {
	rb, ok := readback.(*softBuffer)
	if !ok {
		return nil, false, fmt.Errorf("func ReadbackPoll: readback buffer does not belong to this backend")
	}
	for i, p := range sb.pending {
		if p.buffer != rb {
			continue
		}
		if p.pollsLeft > 0 {
			p.pollsLeft--
			return nil, false, nil
		}
		sb.pending = append(sb.pending[:i], sb.pending[i+1:]...)
		data := make([]byte, len(rb.data))
		copy(data, rb.data)
		return data, true, nil
	}
	// Nothing in flight for this buffer.
	return nil, false, nil
}

// CollisionDiscard drops every in-flight readback without delivering it.
func (sb *Backend) CollisionDiscard() error {
	sb.pending = nil
	return nil
}

func (sb *Backend) Shutdown() error {
	sb.pending = nil
	sb.drawCalls = nil
	return nil
}

type kernelCandidate struct {
	x, y, z, radius float32
}

/**
 * @brief Runs the pairwise sphere-overlap kernel the way the device executes
 * it: one goroutine per workgroup, each invocation i testing every j > i with
 * a squared-distance vs squared-radius-sum comparison. Colliding pairs
 * reserve an output slot through an atomic counter; pairs past the output
 * capacity are dropped, which is the documented truncation behavior of the
 * undersized output buffer.
 */
func runCollisionKernel(input []byte, candidateCount, groupCount uint32, output []byte) {
	candidates := make([]kernelCandidate, candidateCount)
	for i := uint32(0); i < candidateCount; i++ {
		base := i * 16
		candidates[i] = kernelCandidate{
			x:      m.Float32frombits(binary.LittleEndian.Uint32(input[base:])),
			y:      m.Float32frombits(binary.LittleEndian.Uint32(input[base+4:])),
			z:      m.Float32frombits(binary.LittleEndian.Uint32(input[base+8:])),
			radius: m.Float32frombits(binary.LittleEndian.Uint32(input[base+12:])),
		}
	}

	maxRecords := uint32((len(output) - 4) / 8)
	var counter atomic.Uint32
	var wg sync.WaitGroup

	for group := uint32(0); group < groupCount; group++ {
		wg.Add(1)
		go func(group uint32) {
			defer wg.Done()
			for local := uint32(0); local < renderer.CollisionWorkgroupSize; local++ {
				i := group*renderer.CollisionWorkgroupSize + local
				if i >= candidateCount {
					continue
				}
				a := candidates[i]
				for j := i + 1; j < candidateCount; j++ {
					b := candidates[j]
					dx := a.x - b.x
					dy := a.y - b.y
					dz := a.z - b.z
					distSq := dx*dx + dy*dy + dz*dz
					radii := a.radius + b.radius
					if distSq <= radii*radii {
						// The atomic reservation is the only guard on the
						// shared output array; each slot is written once.
						slot := counter.Add(1) - 1
						if slot < maxRecords {
							binary.LittleEndian.PutUint32(output[4+slot*8:], i)
							binary.LittleEndian.PutUint32(output[4+slot*8+4:], j)
						}
					}
				}
			}
		}(group)
	}
	wg.Wait()

	binary.LittleEndian.PutUint32(output[0:], counter.Load())
}
