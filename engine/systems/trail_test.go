package systems_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/math"
	"github.com/spaghettifunk/kepler/engine/renderer"
	"github.com/spaghettifunk/kepler/engine/renderer/soft"
	"github.com/spaghettifunk/kepler/engine/systems"
)

func TestTrailAppendGrowsBuffer(t *testing.T) {
	backend := soft.NewBackend()
	trail := systems.NewTrailHistory(backend)
	defer trail.Destroy()

	require.NoError(t, trail.AppendSample(0, math.NewVec3(1, 0, 0)))
	require.NoError(t, trail.AppendSample(1, math.NewVec3(0, 1, 0)))
	require.NoError(t, trail.AppendSample(0, math.NewVec3(2, 0, 0)))
	assert.Equal(t, 3, trail.SampleCount())
}

func TestTrailDrawVisibleWindow(t *testing.T) {
	backend := soft.NewBackend()
	trail := systems.NewTrailHistory(backend)
	defer trail.Destroy()

	// Two planets sampled over three frames.
	for frame := 0; frame < 3; frame++ {
		require.NoError(t, trail.AppendSample(0, math.NewVec3(float32(frame), 0, 0)))
		require.NoError(t, trail.AppendSample(1, math.NewVec3(0, float32(frame), 0)))
	}

	pass, err := backend.FrameBegin()
	require.NoError(t, err)
	require.NoError(t, trail.Draw(pass, nil, 2, 2))
	require.NoError(t, backend.FrameEnd(pass))

	calls := backend.DrawCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, renderer.TopologyPointList, calls[0].Topology)
	assert.Equal(t, uint32(4), calls[0].IndexCount)
}

func TestTrailDrawClampsToHistory(t *testing.T) {
	backend := soft.NewBackend()
	trail := systems.NewTrailHistory(backend)
	defer trail.Destroy()

	require.NoError(t, trail.AppendSample(0, math.NewVec3(1, 2, 3)))

	pass, err := backend.FrameBegin()
	require.NoError(t, err)
	// Asking for far more frames than recorded draws everything, not garbage.
	require.NoError(t, trail.Draw(pass, nil, 100, 4))
	require.NoError(t, backend.FrameEnd(pass))

	calls := backend.DrawCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, uint32(1), calls[0].IndexCount)
}

func TestTrailResetDropsEverything(t *testing.T) {
	backend := soft.NewBackend()
	trail := systems.NewTrailHistory(backend)
	defer trail.Destroy()

	require.NoError(t, trail.AppendSample(0, math.NewVec3(1, 0, 0)))
	trail.Reset()
	assert.Equal(t, 0, trail.SampleCount())

	// A draw after reset records nothing.
	pass, err := backend.FrameBegin()
	require.NoError(t, err)
	require.NoError(t, trail.Draw(pass, nil, 10, 1))
	require.NoError(t, backend.FrameEnd(pass))
	assert.Empty(t, backend.DrawCalls())
}

func TestCameraZoomClampsAtTarget(t *testing.T) {
	backend := soft.NewBackend()
	bus := core.NewParameterBus()
	camera, err := systems.NewCamera(backend, bus, 16.0/9.0)
	require.NoError(t, err)
	defer camera.Destroy()

	changed := 0
	bus.Subscribe(core.TopicCameraChanged, "listener", func(topic string, value core.ParamValue) bool {
		changed++
		return false
	})

	// Zooming past the target stops at the minimum distance instead of
	// crossing it.
	require.NoError(t, camera.Zoom(1000))
	assert.Equal(t, 1, changed)
	assert.NotNil(t, camera.ViewProjection())

	require.NoError(t, camera.Move(math.NewVec3(0, 10, 30), math.NewVec3Zero()))
	assert.Equal(t, 2, changed)
}
