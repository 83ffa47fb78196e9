package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/renderer"
)

func newHeadlessApp(t *testing.T) *Application {
	t.Helper()
	app, err := New(ApplicationConfig{
		StartWidth:  1280,
		StartHeight: 720,
		Name:        "headless-test",
		Headless:    true,
		LogLevel:    core.LogLevelError,
	})
	require.NoError(t, err)
	require.NoError(t, app.Initialize())
	t.Cleanup(func() {
		require.NoError(t, app.destroy())
	})
	return app
}

func TestTopologyFromName(t *testing.T) {
	assert.Equal(t, renderer.TopologyPointList, topologyFromName("point"))
	assert.Equal(t, renderer.TopologyLineList, topologyFromName("line"))
	assert.Equal(t, renderer.TopologyTriangleList, topologyFromName("triangle"))
	// Unknown names fall back to solid geometry.
	assert.Equal(t, renderer.TopologyTriangleList, topologyFromName("nonsense"))
}

func TestHeadlessFrames(t *testing.T) {
	app := newHeadlessApp(t)

	// Initialization seeds the default planet set over the bus.
	assert.Equal(t, uint32(8), app.packer.PlanetCount())

	for frame := uint64(0); frame < 3; frame++ {
		require.NoError(t, app.RunFrame(frame))
	}
	assert.Contains(t, app.OrbitSummary(), "8 planet(s)")
}

func TestRuntimeParameterChanges(t *testing.T) {
	app := newHeadlessApp(t)

	app.Bus().Publish(core.TopicPlanetCount, core.ParamValue{U32: [2]uint32{3}})
	assert.Equal(t, uint32(3), app.packer.PlanetCount())

	app.Bus().Publish(core.TopicEccentricity, core.ParamValue{F32: [2]float32{0.8}})
	assert.Equal(t, float32(0.8), app.params.Eccentricity)

	app.Bus().Publish(core.TopicTopology, core.ParamValue{Any: "point"})
	assert.Equal(t, renderer.TopologyPointList, app.params.Topology)

	require.NoError(t, app.RunFrame(0))
}

func TestTrailToggleRestartsHistory(t *testing.T) {
	app := newHeadlessApp(t)

	app.Bus().Publish(core.TopicTrailEnabled, core.ParamValue{B: true})
	require.NoError(t, app.RunFrame(1))
	require.NoError(t, app.RunFrame(2))
	assert.Equal(t, 16, app.trail.SampleCount())

	// Toggling off and back on discards the accumulated samples.
	app.Bus().Publish(core.TopicTrailEnabled, core.ParamValue{B: false})
	assert.Equal(t, 0, app.trail.SampleCount())
	app.Bus().Publish(core.TopicTrailEnabled, core.ParamValue{B: true})
	require.NoError(t, app.RunFrame(3))
	assert.Equal(t, 8, app.trail.SampleCount())
}

func TestApplyConfigPublishesOnCallerGoroutine(t *testing.T) {
	app := newHeadlessApp(t)

	next := app.sim
	next.PlanetCount = 12
	next.Eccentricity = 0.7
	app.applyConfig(next)

	// Subscribers ran synchronously, on this goroutine.
	assert.Equal(t, uint32(12), app.packer.PlanetCount())
	assert.Equal(t, float32(0.7), app.params.Eccentricity)
	assert.Equal(t, next, app.sim)

	require.NoError(t, app.RunFrame(0))
}

func TestPlanetCountChangeResetsTrail(t *testing.T) {
	app := newHeadlessApp(t)

	app.Bus().Publish(core.TopicTrailEnabled, core.ParamValue{B: true})
	require.NoError(t, app.RunFrame(1))
	assert.Equal(t, 8, app.trail.SampleCount())

	app.Bus().Publish(core.TopicPlanetCount, core.ParamValue{U32: [2]uint32{4}})
	assert.Equal(t, 0, app.trail.SampleCount())
}
