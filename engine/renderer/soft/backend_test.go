package soft

import (
	"encoding/binary"
	m "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kepler/engine/renderer"
)

func packCandidates(positions [][4]float32) []byte {
	data := make([]byte, len(positions)*16)
	for i, p := range positions {
		for c, f := range p {
			binary.LittleEndian.PutUint32(data[i*16+c*4:], m.Float32bits(f))
		}
	}
	return data
}

func submitCandidates(t *testing.T, backend *Backend, positions [][4]float32) (renderer.Buffer, renderer.Buffer, renderer.Buffer) {
	t.Helper()
	n := uint32(len(positions))
	input, err := backend.BufferCreate(renderer.BufferKindStorage, uint64(n)*16)
	require.NoError(t, err)
	output, err := backend.BufferCreate(renderer.BufferKindStorage, uint64(n)*8+4)
	require.NoError(t, err)
	readback, err := backend.BufferCreate(renderer.BufferKindReadback, uint64(n)*8+4)
	require.NoError(t, err)

	require.NoError(t, backend.BufferLoadRange(input, 0, packCandidates(positions)))
	groups := (n + renderer.CollisionWorkgroupSize - 1) / renderer.CollisionWorkgroupSize
	require.NoError(t, backend.CollisionPassSubmit(input, n, groups, output, readback))
	return input, output, readback
}

func TestBufferCreateRejectsZeroSize(t *testing.T) {
	backend := NewBackend()
	_, err := backend.BufferCreate(renderer.BufferKindVertex, 0)
	assert.Error(t, err)
}

func TestBufferLoadRangeBounds(t *testing.T) {
	backend := NewBackend()
	buffer, err := backend.BufferCreate(renderer.BufferKindVertex, 8)
	require.NoError(t, err)

	assert.NoError(t, backend.BufferLoadRange(buffer, 4, []byte{1, 2, 3, 4}))
	assert.Error(t, backend.BufferLoadRange(buffer, 6, []byte{1, 2, 3, 4}))
}

func TestReadbackLatency(t *testing.T) {
	backend := NewBackend()
	backend.Latency = 2

	_, _, readback := submitCandidates(t, backend, [][4]float32{
		{0, 0, 0, 1},
		{1, 0, 0, 1},
	})

	for poll := 0; poll < 2; poll++ {
		data, completed, err := backend.ReadbackPoll(readback)
		require.NoError(t, err)
		assert.False(t, completed)
		assert.Nil(t, data)
	}
	data, completed, err := backend.ReadbackPoll(readback)
	require.NoError(t, err)
	require.True(t, completed)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data))
}

func TestOutputClearedBetweenSubmissions(t *testing.T) {
	backend := NewBackend()
	backend.Latency = 0

	// First run finds a pair.
	input, output, readback := submitCandidates(t, backend, [][4]float32{
		{0, 0, 0, 1},
		{1, 0, 0, 1},
	})
	data, completed, err := backend.ReadbackPoll(readback)
	require.NoError(t, err)
	require.True(t, completed)
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(data))

	// Second run over the same buffers finds nothing. The cleared output
	// must not leak the first run's pair into the new readback.
	require.NoError(t, backend.BufferLoadRange(input, 0, packCandidates([][4]float32{
		{0, 0, 0, 1},
		{50, 0, 0, 1},
	})))
	require.NoError(t, backend.CollisionPassSubmit(input, 2, 1, output, readback))
	data, completed, err = backend.ReadbackPoll(readback)
	require.NoError(t, err)
	require.True(t, completed)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data))
	for _, b := range data[4:] {
		assert.Zero(t, b)
	}
}

func TestCollisionDiscardDropsInFlight(t *testing.T) {
	backend := NewBackend()
	backend.Latency = 0

	_, _, readback := submitCandidates(t, backend, [][4]float32{
		{0, 0, 0, 1},
		{1, 0, 0, 1},
	})

	// Discarded work never completes, even though it already ran.
	require.NoError(t, backend.CollisionDiscard())
	data, completed, err := backend.ReadbackPoll(readback)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Nil(t, data)
}

func TestPollWithNothingInFlight(t *testing.T) {
	backend := NewBackend()
	readback, err := backend.BufferCreate(renderer.BufferKindReadback, 12)
	require.NoError(t, err)

	data, completed, err := backend.ReadbackPoll(readback)
	assert.NoError(t, err)
	assert.False(t, completed)
	assert.Nil(t, data)
}

func TestFrameEndRejectsForeignPass(t *testing.T) {
	backend := NewBackend()
	_, err := backend.FrameBegin()
	require.NoError(t, err)
	assert.Error(t, backend.FrameEnd(struct{}{}))
}
