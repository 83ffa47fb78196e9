package renderer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kepler/engine/math"
	"github.com/spaghettifunk/kepler/engine/renderer"
	"github.com/spaghettifunk/kepler/engine/renderer/soft"
)

func TestPackedStrideAlignment(t *testing.T) {
	backend := soft.NewBackend()
	packed, err := renderer.NewPackedTransformBuffer(backend, 4)
	require.NoError(t, err)
	defer packed.Destroy()

	// 64-byte matrices padded to the backend's 256-byte uniform alignment.
	assert.Equal(t, uint64(256), packed.Stride())
	assert.Equal(t, uint64(0), packed.Offset(0))
	assert.Equal(t, uint64(256), packed.Offset(1))
	assert.Equal(t, uint64(768), packed.Offset(3))
	assert.Equal(t, uint64(1024), packed.SizeBytes())
}

func TestPackedSetSlotRoundTrip(t *testing.T) {
	backend := soft.NewBackend()
	packed, err := renderer.NewPackedTransformBuffer(backend, 3)
	require.NoError(t, err)
	defer packed.Destroy()

	mat := math.NewMat4Translation(math.NewVec3(1.5, -2.25, 7))
	packed.Set(2, mat)

	got := packed.Slot(2)
	assert.Equal(t, mat.Data, got.Data)

	// Neighboring slots stay untouched.
	assert.Equal(t, math.Mat4{}.Data, packed.Slot(1).Data)
}

func TestPackedResizeRezeroes(t *testing.T) {
	backend := soft.NewBackend()
	packed, err := renderer.NewPackedTransformBuffer(backend, 5)
	require.NoError(t, err)
	defer packed.Destroy()

	packed.Set(4, math.NewMat4Translation(math.NewVec3(9, 9, 9)))

	// Shrink then regrow. The old slot 4 contents must not resurface.
	require.NoError(t, packed.Resize(3))
	assert.Equal(t, uint32(3), packed.Capacity())
	require.NoError(t, packed.Resize(5))
	assert.Equal(t, math.Mat4{}.Data, packed.Slot(4).Data)
}

func TestPackedUploadMatchesCapacity(t *testing.T) {
	backend := soft.NewBackend()
	packed, err := renderer.NewPackedTransformBuffer(backend, 2)
	require.NoError(t, err)
	defer packed.Destroy()

	packed.Set(0, math.NewMat4Identity())
	packed.Set(1, math.NewMat4Identity())
	assert.NoError(t, packed.Upload())
	assert.Equal(t, packed.SizeBytes(), packed.DeviceBuffer().Size())
}

func TestPackedZeroCapacity(t *testing.T) {
	backend := soft.NewBackend()
	packed, err := renderer.NewPackedTransformBuffer(backend, 0)
	require.NoError(t, err)
	defer packed.Destroy()

	assert.Nil(t, packed.DeviceBuffer())
	assert.NoError(t, packed.Upload())
}
