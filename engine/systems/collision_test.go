package systems_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/renderer"
	"github.com/spaghettifunk/kepler/engine/renderer/soft"
	"github.com/spaghettifunk/kepler/engine/systems"
)

func candidateAt(index uint32, x float32, radius float32) systems.CollisionCandidate {
	return systems.CollisionCandidate{X: x, Radius: radius, Index: index}
}

// drain polls Collect until the in-flight readback lands.
func drain(t *testing.T, engine *systems.CollisionEngine) []systems.CollisionPair {
	t.Helper()
	for i := 0; i < 10; i++ {
		pairs, completed, err := engine.Collect()
		require.NoError(t, err)
		if completed {
			return pairs
		}
	}
	t.Fatal("readback never completed")
	return nil
}

func TestCollisionLifecycle(t *testing.T) {
	backend := soft.NewBackend()
	bus := core.NewParameterBus()
	engine := systems.NewCollisionEngine(backend, bus)
	defer engine.Destroy()

	assert.Equal(t, systems.CollisionStateIdle, engine.State())

	candidates := []systems.CollisionCandidate{
		candidateAt(0, 0, 1),
		candidateAt(1, 1.5, 1),
		candidateAt(2, 100, 1),
	}
	require.NoError(t, engine.Check(candidates))
	assert.Equal(t, systems.CollisionStatePending, engine.State())

	// A same-size Check while pending is a no-op.
	require.NoError(t, engine.Check(candidates))
	assert.Equal(t, systems.CollisionStatePending, engine.State())

	// Latency 1: the first poll reports the device still busy.
	pairs, completed, err := engine.Collect()
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Nil(t, pairs)

	pairs = drain(t, engine)
	assert.Equal(t, systems.CollisionStateArmed, engine.State())
	require.Len(t, pairs, 1)
	assert.Equal(t, systems.CollisionPair{A: 0, B: 1}, pairs[0])
}

func TestCollisionBoundaryDistance(t *testing.T) {
	tests := []struct {
		name     string
		distance float32
		want     int
	}{
		{name: "overlapping", distance: 1.0, want: 1},
		{name: "exactly touching", distance: 2.0, want: 1},
		{name: "just apart", distance: 2.0001, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := soft.NewBackend()
			backend.Latency = 0
			engine := systems.NewCollisionEngine(backend, core.NewParameterBus())
			defer engine.Destroy()

			require.NoError(t, engine.Check([]systems.CollisionCandidate{
				candidateAt(0, 0, 1),
				candidateAt(1, tt.distance, 1),
			}))
			pairs := drain(t, engine)
			assert.Len(t, pairs, tt.want)
		})
	}
}

func TestCollisionResizeDiscardsPending(t *testing.T) {
	backend := soft.NewBackend()
	engine := systems.NewCollisionEngine(backend, core.NewParameterBus())
	defer engine.Destroy()

	require.NoError(t, engine.Check([]systems.CollisionCandidate{
		candidateAt(0, 0, 1),
		candidateAt(1, 0.5, 1),
	}))
	assert.Equal(t, systems.CollisionStatePending, engine.State())

	// The planet count changed before the readback landed; the engine
	// rebuilds its buffers and dispatches fresh, dropping the stale results.
	require.NoError(t, engine.Check([]systems.CollisionCandidate{
		candidateAt(0, 0, 1),
		candidateAt(1, 50, 1),
		candidateAt(2, 100, 1),
	}))
	assert.Equal(t, systems.CollisionStatePending, engine.State())

	pairs := drain(t, engine)
	assert.Empty(t, pairs)
}

// orderedBackend records the relative order of device calls so tests can pin
// lifecycle ordering.
type orderedBackend struct {
	*soft.Backend
	calls []string
}

func (b *orderedBackend) BufferCreate(kind renderer.BufferKind, size uint64) (renderer.Buffer, error) {
	b.calls = append(b.calls, "create")
	return b.Backend.BufferCreate(kind, size)
}

func (b *orderedBackend) CollisionDiscard() error {
	b.calls = append(b.calls, "discard")
	return b.Backend.CollisionDiscard()
}

func TestCollisionResizeDrainsDeviceFirst(t *testing.T) {
	backend := &orderedBackend{Backend: soft.NewBackend()}
	engine := systems.NewCollisionEngine(backend, core.NewParameterBus())
	defer engine.Destroy()

	require.NoError(t, engine.Check([]systems.CollisionCandidate{
		candidateAt(0, 0, 1),
		candidateAt(1, 1, 1),
	}))
	require.Equal(t, systems.CollisionStatePending, engine.State())

	backend.calls = nil
	require.NoError(t, engine.Check([]systems.CollisionCandidate{
		candidateAt(0, 0, 1),
		candidateAt(1, 50, 1),
		candidateAt(2, 100, 1),
	}))

	// The in-flight submission must be drained before the buffers it
	// references are destroyed and replaced.
	require.NotEmpty(t, backend.calls)
	assert.Equal(t, "discard", backend.calls[0])
}

func TestCollisionTruncation(t *testing.T) {
	backend := soft.NewBackend()
	backend.Latency = 0
	engine := systems.NewCollisionEngine(backend, core.NewParameterBus())
	defer engine.Destroy()

	// Four coincident spheres collide in C(4,2) = 6 pairs, but the output
	// only holds one record per candidate. The excess is silently dropped.
	require.NoError(t, engine.Check([]systems.CollisionCandidate{
		candidateAt(0, 0, 1),
		candidateAt(1, 0, 1),
		candidateAt(2, 0, 1),
		candidateAt(3, 0, 1),
	}))
	pairs := drain(t, engine)
	assert.Len(t, pairs, 4)
}

func TestCollisionPublishesOnBus(t *testing.T) {
	backend := soft.NewBackend()
	backend.Latency = 0
	bus := core.NewParameterBus()
	engine := systems.NewCollisionEngine(backend, bus)
	defer engine.Destroy()

	var published core.ParamValue
	bus.Subscribe(core.TopicCollisionsFound, "listener", func(topic string, value core.ParamValue) bool {
		published = value
		return false
	})

	require.NoError(t, engine.Check([]systems.CollisionCandidate{
		candidateAt(0, 0, 1),
		candidateAt(1, 1, 1),
	}))
	pairs := drain(t, engine)
	require.Len(t, pairs, 1)
	assert.Equal(t, uint32(1), published.U32[0])
	assert.Equal(t, pairs, published.Any)
}

func TestCollisionEmptyCandidates(t *testing.T) {
	backend := soft.NewBackend()
	engine := systems.NewCollisionEngine(backend, core.NewParameterBus())
	defer engine.Destroy()

	require.NoError(t, engine.Check(nil))
	assert.Equal(t, systems.CollisionStateIdle, engine.State())

	pairs, completed, err := engine.Collect()
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Nil(t, pairs)
}

func TestParseCollisionResults(t *testing.T) {
	raw := make([]byte, 4+4*8)
	binary.LittleEndian.PutUint32(raw[0:], 2)
	writePair := func(slot int, a, b uint32) {
		binary.LittleEndian.PutUint32(raw[4+slot*8:], a)
		binary.LittleEndian.PutUint32(raw[4+slot*8+4:], b)
	}
	writePair(0, 1, 2)
	writePair(1, 0, 0) // never-written default slot
	writePair(2, 2, 4)
	writePair(3, 7, 7) // self pair, also dropped

	pairs := systems.ParseCollisionResults(raw)
	assert.Equal(t, []systems.CollisionPair{{A: 1, B: 2}, {A: 2, B: 4}}, pairs)
}

func TestParseCollisionResultsShortInput(t *testing.T) {
	assert.Nil(t, systems.ParseCollisionResults(nil))
	assert.Nil(t, systems.ParseCollisionResults([]byte{1, 2}))
	assert.Empty(t, systems.ParseCollisionResults([]byte{0, 0, 0, 0}))
}

func TestSpawnerGrowsOnCollisions(t *testing.T) {
	backend := soft.NewBackend()
	bus := core.NewParameterBus()
	packer := newTestPacker(t, backend, bus)
	defer packer.Destroy()
	spawner := systems.NewSpawner(bus, packer)
	defer spawner.Destroy()

	bus.Publish(core.TopicPlanetCount, core.ParamValue{U32: [2]uint32{3}})
	require.Equal(t, uint32(3), packer.PlanetCount())

	// Two discovered pairs spawn two planets.
	bus.Publish(core.TopicCollisionsFound, core.ParamValue{U32: [2]uint32{2}})
	assert.Equal(t, uint32(5), packer.PlanetCount())

	// An empty result spawns nothing.
	bus.Publish(core.TopicCollisionsFound, core.ParamValue{U32: [2]uint32{0}})
	assert.Equal(t, uint32(5), packer.PlanetCount())
}
