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

func newTestPacker(t *testing.T, backend *soft.Backend, bus *core.ParameterBus) *systems.TransformPacker {
	t.Helper()
	packer, err := systems.NewTransformPacker(backend, bus, nil, systems.TransformPackerConfig{
		LatBands:  4,
		LongBands: 4,
		RadiusMin: 1.0,
		RadiusMax: 1.0,
		Seed:      1,
	})
	require.NoError(t, err)
	return packer
}

func TestNewTransformPackerValidation(t *testing.T) {
	backend := soft.NewBackend()
	bus := core.NewParameterBus()

	tests := []struct {
		name   string
		config systems.TransformPackerConfig
	}{
		{name: "bad bands", config: systems.TransformPackerConfig{LatBands: 1, LongBands: 4, RadiusMin: 1, RadiusMax: 2}},
		{name: "zero radius", config: systems.TransformPackerConfig{LatBands: 4, LongBands: 4, RadiusMin: 0, RadiusMax: 2}},
		{name: "inverted range", config: systems.TransformPackerConfig{LatBands: 4, LongBands: 4, RadiusMin: 3, RadiusMax: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packer, err := systems.NewTransformPacker(backend, bus, nil, tt.config)
			assert.Error(t, err)
			assert.Nil(t, packer)
		})
	}
}

func TestSetPlanetCountResize(t *testing.T) {
	backend := soft.NewBackend()
	bus := core.NewParameterBus()
	packer := newTestPacker(t, backend, bus)
	defer packer.Destroy()

	require.NoError(t, packer.SetPlanetCount(5))
	assert.Equal(t, uint32(5), packer.PlanetCount())
	assert.Equal(t, uint32(5), packer.Packed().Capacity())

	require.NoError(t, packer.SetPlanetCount(3))
	assert.Equal(t, uint32(3), packer.PlanetCount())
	assert.Len(t, packer.Orbits(), 3)

	// Regrowing after a shrink starts the new slots from a zeroed matrix.
	require.NoError(t, packer.SetPlanetCount(5))
	assert.Equal(t, math.Mat4{}.Data, packer.Packed().Slot(4).Data)
}

func TestPlanetCountOverBus(t *testing.T) {
	backend := soft.NewBackend()
	bus := core.NewParameterBus()
	packer := newTestPacker(t, backend, bus)
	defer packer.Destroy()

	bus.Publish(core.TopicPlanetCount, core.ParamValue{U32: [2]uint32{4}})
	assert.Equal(t, uint32(4), packer.PlanetCount())
}

func TestChainedOrbitCenters(t *testing.T) {
	backend := soft.NewBackend()
	bus := core.NewParameterBus()
	packer := newTestPacker(t, backend, bus)
	defer packer.Destroy()

	require.NoError(t, packer.SetPlanetCount(3))
	require.NoError(t, packer.ComputeFrameTransforms(10, 0.4))

	// Every planet advanced to the same angle, so planet i's center is the
	// ellipse position accumulated i+1 times.
	ellipse, err := math.NewEllipse(10, 0.4)
	require.NoError(t, err)
	step := ellipse.Position(1)

	orbits := packer.Orbits()
	require.Len(t, orbits, 3)
	expected := math.NewVec3Zero()
	for i, orbit := range orbits {
		expected = expected.Add(step)
		assert.True(t, orbit.Center.Compare(expected, 1e-3), "planet %d center", i)
	}
}

func TestComputeFrameTransformsCandidates(t *testing.T) {
	backend := soft.NewBackend()
	bus := core.NewParameterBus()
	packer := newTestPacker(t, backend, bus)
	defer packer.Destroy()

	require.NoError(t, packer.SetPlanetCount(2))
	require.NoError(t, packer.ComputeFrameTransforms(10, 0))

	candidates := packer.Candidates()
	require.Len(t, candidates, 2)
	orbits := packer.Orbits()
	for i, c := range candidates {
		assert.Equal(t, uint32(i), c.Index)
		assert.Equal(t, orbits[i].Center.X, c.X)
		assert.Equal(t, orbits[i].Center.Y, c.Y)
		assert.Equal(t, orbits[i].Center.Z, c.Z)
		assert.Equal(t, float32(1.0), c.Radius)
	}
}

func TestRenderPlanetsDrawsPerPlanet(t *testing.T) {
	backend := soft.NewBackend()
	bus := core.NewParameterBus()
	packer := newTestPacker(t, backend, bus)
	defer packer.Destroy()

	camera, err := systems.NewCamera(backend, bus, 16.0/9.0)
	require.NoError(t, err)
	defer camera.Destroy()

	require.NoError(t, packer.SetPlanetCount(3))

	pass, err := backend.FrameBegin()
	require.NoError(t, err)
	params := systems.FrameParams{
		EllipseSemiMajor: 10,
		Eccentricity:     0.4,
		Topology:         renderer.TopologyTriangleList,
	}
	require.NoError(t, packer.RenderPlanets(pass, params, camera.ViewProjection()))
	require.NoError(t, backend.FrameEnd(pass))

	calls := backend.DrawCalls()
	require.Len(t, calls, 3)
	stride := uint32(packer.Packed().Stride())
	for i, call := range calls {
		assert.Equal(t, renderer.TopologyTriangleList, call.Topology)
		assert.Equal(t, uint32(4*4*6), call.IndexCount)
		assert.Equal(t, uint32(i)*stride, call.DynamicOffset)
	}
}

func TestRenderPlanetsEnhancedOutline(t *testing.T) {
	backend := soft.NewBackend()
	bus := core.NewParameterBus()
	packer := newTestPacker(t, backend, bus)
	defer packer.Destroy()

	camera, err := systems.NewCamera(backend, bus, 1.0)
	require.NoError(t, err)
	defer camera.Destroy()

	require.NoError(t, packer.SetPlanetCount(2))

	pass, err := backend.FrameBegin()
	require.NoError(t, err)
	params := systems.FrameParams{
		EllipseSemiMajor: 10,
		Eccentricity:     0,
		Topology:         renderer.TopologyLineList,
		EnhancedOutline:  true,
	}
	require.NoError(t, packer.RenderPlanets(pass, params, camera.ViewProjection()))
	require.NoError(t, backend.FrameEnd(pass))

	// One geometry draw plus one point overlay per planet.
	calls := backend.DrawCalls()
	require.Len(t, calls, 4)
	assert.Equal(t, renderer.TopologyLineList, calls[0].Topology)
	assert.Equal(t, renderer.TopologyPointList, calls[1].Topology)
}
