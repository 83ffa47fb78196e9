package renderer

// CollisionWorkgroupSize is the invocation count per compute workgroup,
// matching the local_size_x of the collision kernel.
const CollisionWorkgroupSize uint32 = 64

// BufferKind selects the device usage of a buffer.
type BufferKind int

const (
	BufferKindVertex BufferKind = iota
	BufferKindIndex
	BufferKindUniform
	// Storage buffers feed the collision compute kernel.
	BufferKindStorage
	// Readback buffers are host-visible destinations for device copies.
	BufferKindReadback
)

// Topology selects one of the precompiled primitive-assembly pipelines.
type Topology int

const (
	TopologyPointList Topology = iota
	TopologyLineList
	TopologyTriangleList
)

// Buffer is a device-resident allocation handle. Buffers are exclusively
// owned by the system that created them.
type Buffer interface {
	Size() uint64
	Destroy()
}

// RenderPass is an opaque per-frame recording handle supplied by the frame
// driver. Backends type-assert it to their own pass type.
type RenderPass interface{}

/**
 * @brief Backend is the device abstraction the simulation systems render and
 * compute through. A Vulkan implementation drives a real GPU; a software
 * implementation backs tests and headless runs.
 *
 * Ordering guarantee: within one CollisionPassSubmit the device executes
 * dispatch, then copy to the readback buffer, then clear of the device-side
 * output. Across submissions there is no ordering guarantee beyond
 * "submitted before".
 */
type Backend interface {
	// MinUniformAlignment reports the device minimum uniform-buffer offset
	// alignment used to compute packed transform strides.
	MinUniformAlignment() uint64

	BufferCreate(kind BufferKind, size uint64) (Buffer, error)
	BufferLoadRange(buffer Buffer, offset uint64, data []byte) error

	// GeometryDraw issues one indexed draw with the topology's pipeline,
	// binding the packed transform buffer at the given dynamic offset.
	GeometryDraw(pass RenderPass, topology Topology, vertexBuffer, indexBuffer Buffer, indexCount uint32, viewProjection, transforms Buffer, dynamicOffset uint32) error

	// CollisionPassSubmit records and submits one command sequence:
	// dispatch groupCount workgroups of the pairwise collision kernel over
	// input, copy output into readback, clear output to zero.
	CollisionPassSubmit(input Buffer, candidateCount, groupCount uint32, output, readback Buffer) error

	// ReadbackPoll checks whether the last collision submission has reached
	// the readback buffer. It never blocks; completed is false while the
	// device is still working.
	ReadbackPoll(readback Buffer) (data []byte, completed bool, err error)

	// CollisionDiscard blocks until any in-flight collision submission has
	// finished on the device and drops its results. Buffers referenced by a
	// submission must not be destroyed before it has been collected or
	// discarded.
	CollisionDiscard() error

	Shutdown() error
}
