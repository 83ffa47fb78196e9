package systems

import (
	"encoding/binary"
	"fmt"
	m "math"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/renderer"
)

// Byte sizes of the kernel's wire records.
const (
	candidateRecordSize = 16 // x, y, z, radius as float32
	pairRecordSize      = 8  // two uint32 planet indices
	pairCountHeaderSize = 4
)

// CollisionCandidate is one planet's world-space center and radius, tagged
// with the originating slot index. Recomputed every frame from the packed
// transforms.
type CollisionCandidate struct {
	X, Y, Z float32
	Radius  float32
	Index   uint32
}

// CollisionPair is an unordered pair of colliding planet indices, a != b.
type CollisionPair struct {
	A, B uint32
}

// CollisionEngineState tracks the buffer/readback lifecycle.
type CollisionEngineState int

const (
	// No device buffers allocated.
	CollisionStateIdle CollisionEngineState = iota
	// Buffers sized for the current planet count, ready to dispatch.
	CollisionStateArmed
	// A readback is in flight on the device.
	CollisionStatePending
)

/**
 * @brief CollisionEngine owns the device buffers for the pairwise
 * sphere-overlap compute pass. Check uploads the frame's candidates and
 * submits dispatch+copy+clear as one command sequence; Collect polls the
 * asynchronous readback and, once it lands, parses and republishes the
 * discovered pairs on the collisions-found topic.
 *
 * The output buffer holds planetCount records plus a count header. The true
 * upper bound on pairs is C(n,2), but sizing for it buys nothing in
 * practice, so simultaneous collisions beyond the capacity are silently
 * dropped. That truncation is a documented limitation, not a bug.
 */
type CollisionEngine struct {
	backend renderer.Backend
	bus     *core.ParameterBus

	state    CollisionEngineState
	capacity uint32

	input    renderer.Buffer
	output   renderer.Buffer
	readback renderer.Buffer
}

func NewCollisionEngine(backend renderer.Backend, bus *core.ParameterBus) *CollisionEngine {
	return &CollisionEngine{
		backend: backend,
		bus:     bus,
		state:   CollisionStateIdle,
	}
}

// State reports the engine's current lifecycle state.
func (ce *CollisionEngine) State() CollisionEngineState {
	return ce.state
}

/**
 * @brief Allocates the input and output buffers for n candidates, releasing
 * any previous allocation. Input is n candidate records; output is a count
 * header plus n pair records. Moves the engine to Armed.
 */
func (ce *CollisionEngine) RecreateBuffers(n uint32) error {
	if n == 0 {
		return fmt.Errorf("func RecreateBuffers: candidate count must be > 0")
	}
	ce.releaseBuffers()

	input, err := ce.backend.BufferCreate(renderer.BufferKindStorage, uint64(n)*candidateRecordSize)
	if err != nil {
		return fmt.Errorf("func RecreateBuffers: input buffer: %w", err)
	}
	outputSize := uint64(n)*pairRecordSize + pairCountHeaderSize
	output, err := ce.backend.BufferCreate(renderer.BufferKindStorage, outputSize)
	if err != nil {
		input.Destroy()
		return fmt.Errorf("func RecreateBuffers: output buffer: %w", err)
	}
	readback, err := ce.backend.BufferCreate(renderer.BufferKindReadback, outputSize)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return fmt.Errorf("func RecreateBuffers: readback buffer: %w", err)
	}

	ce.input = input
	ce.output = output
	ce.readback = readback
	ce.capacity = n
	ce.state = CollisionStateArmed
	return nil
}

/**
 * @brief Uploads the frame's candidates and dispatches the collision kernel.
 * If the candidate count no longer matches the armed capacity the buffers
 * are recreated first; any readback still in flight for the old size is
 * simply abandoned and overwritten on the next cycle. A call while a
 * same-size readback is pending is a no-op.
 */
func (ce *CollisionEngine) Check(candidates []CollisionCandidate) error {
	n := uint32(len(candidates))
	if n == 0 {
		return nil
	}

	if ce.capacity != n {
		// Planet count changed, possibly while Pending. Stale in-flight
		// data is discarded, never merged.
		if err := ce.RecreateBuffers(n); err != nil {
			return err
		}
	}
	if ce.state == CollisionStatePending {
		return nil
	}

	data := make([]byte, n*candidateRecordSize)
	for i, c := range candidates {
		base := i * candidateRecordSize
		binary.LittleEndian.PutUint32(data[base:], m.Float32bits(c.X))
		binary.LittleEndian.PutUint32(data[base+4:], m.Float32bits(c.Y))
		binary.LittleEndian.PutUint32(data[base+8:], m.Float32bits(c.Z))
		binary.LittleEndian.PutUint32(data[base+12:], m.Float32bits(c.Radius))
	}
	if err := ce.backend.BufferLoadRange(ce.input, 0, data); err != nil {
		return err
	}

	groupCount := (n + renderer.CollisionWorkgroupSize - 1) / renderer.CollisionWorkgroupSize
	if err := ce.backend.CollisionPassSubmit(ce.input, n, groupCount, ce.output, ce.readback); err != nil {
		return err
	}
	ce.state = CollisionStatePending
	return nil
}

/**
 * @brief Polls the in-flight readback. When the device has populated the
 * host-visible buffer the results are parsed, republished on the
 * collisions-found topic and the engine re-arms. Returns the parsed pairs
 * and whether the readback completed on this poll.
 */
func (ce *CollisionEngine) Collect() ([]CollisionPair, bool, error) {
	if ce.state != CollisionStatePending {
		return nil, false, nil
	}
	data, completed, err := ce.backend.ReadbackPoll(ce.readback)
	if err != nil {
		return nil, false, err
	}
	if !completed {
		return nil, false, nil
	}
	ce.state = CollisionStateArmed

	pairs := ParseCollisionResults(data)
	if len(pairs) > 0 {
		core.LogDebug("collision pass found %d pair(s)", len(pairs))
		ce.bus.Publish(core.TopicCollisionsFound, core.ParamValue{
			U32: [2]uint32{uint32(len(pairs))},
			Any: pairs,
		})
	}
	return pairs, true, nil
}

/**
 * @brief Parses a raw readback: strips the 4-byte count header, reads
 * consecutive 8-byte (a, b) records and drops records where a == b, which
 * are default slots the kernel never wrote.
 */
func ParseCollisionResults(raw []byte) []CollisionPair {
	if len(raw) < pairCountHeaderSize {
		return nil
	}
	records := raw[pairCountHeaderSize:]
	pairs := []CollisionPair{}
	for off := 0; off+pairRecordSize <= len(records); off += pairRecordSize {
		a := binary.LittleEndian.Uint32(records[off:])
		b := binary.LittleEndian.Uint32(records[off+4:])
		if a == b {
			continue
		}
		pairs = append(pairs, CollisionPair{A: a, B: b})
	}
	return pairs
}

func (ce *CollisionEngine) releaseBuffers() {
	// The device may still be executing a submission that references these
	// buffers; it must finish before they are destroyed.
	if ce.state == CollisionStatePending {
		if err := ce.backend.CollisionDiscard(); err != nil {
			core.LogError("discarding in-flight collision pass failed: %s", err)
		}
	}
	if ce.input != nil {
		ce.input.Destroy()
		ce.input = nil
	}
	if ce.output != nil {
		ce.output.Destroy()
		ce.output = nil
	}
	if ce.readback != nil {
		ce.readback.Destroy()
		ce.readback = nil
	}
	ce.capacity = 0
	ce.state = CollisionStateIdle
}

func (ce *CollisionEngine) Destroy() {
	ce.releaseBuffers()
}
