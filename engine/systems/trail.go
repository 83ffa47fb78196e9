package systems

import (
	"encoding/binary"
	"fmt"
	m "math"
	"sort"

	"github.com/spaghettifunk/kepler/engine/math"
	"github.com/spaghettifunk/kepler/engine/renderer"
)

// TrailSample is one recorded world-space center for a planet.
type TrailSample struct {
	PlanetIndex uint32
	Position    math.Vec3
}

/**
 * @brief TrailHistory accumulates every planet's orbital positions and draws
 * them as a point trail. Samples are only ever appended; the vertex buffer
 * is rebuilt from the full list, grouped by planet index, on every append.
 * That rebuild is O(total samples) per call and the history grows without
 * bound until Reset; both are deliberate simplicity-over-efficiency
 * trade-offs.
 */
type TrailHistory struct {
	backend renderer.Backend

	samples []TrailSample
	vertex  renderer.Buffer
}

func NewTrailHistory(backend renderer.Backend) *TrailHistory {
	return &TrailHistory{backend: backend}
}

// SampleCount reports the total number of stored samples.
func (th *TrailHistory) SampleCount() int {
	return len(th.samples)
}

/**
 * @brief Appends one sample and rebuilds the trail vertex buffer from the
 * entire history reordered by planet index: all of planet 0's samples in
 * arrival order, then planet 1's, and so on.
 */
func (th *TrailHistory) AppendSample(planetIndex uint32, position math.Vec3) error {
	th.samples = append(th.samples, TrailSample{
		PlanetIndex: planetIndex,
		Position:    position,
	})

	ordered := make([]TrailSample, len(th.samples))
	copy(ordered, th.samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PlanetIndex < ordered[j].PlanetIndex
	})

	data := make([]byte, len(ordered)*math.TrailVertexBytes)
	for i, s := range ordered {
		base := i * math.TrailVertexBytes
		binary.LittleEndian.PutUint32(data[base:], m.Float32bits(s.Position.X))
		binary.LittleEndian.PutUint32(data[base+4:], m.Float32bits(s.Position.Y))
		binary.LittleEndian.PutUint32(data[base+8:], m.Float32bits(s.Position.Z))
	}

	if th.vertex != nil {
		th.vertex.Destroy()
	}
	vertex, err := th.backend.BufferCreate(renderer.BufferKindVertex, uint64(len(data)))
	if err != nil {
		th.vertex = nil
		return fmt.Errorf("func AppendSample: trail vertex buffer: %w", err)
	}
	if err := th.backend.BufferLoadRange(vertex, 0, data); err != nil {
		vertex.Destroy()
		th.vertex = nil
		return err
	}
	th.vertex = vertex
	return nil
}

/**
 * @brief Draws the first visiblePerPlanet * planetCount trail vertices as
 * points, so trails lengthen as samples accumulate since the last reset.
 * Trail vertices are already in world space, so no per-planet transform is
 * bound.
 */
func (th *TrailHistory) Draw(pass renderer.RenderPass, viewProjection renderer.Buffer, visiblePerPlanet, planetCount uint32) error {
	if th.vertex == nil {
		return nil
	}
	visible := visiblePerPlanet * planetCount
	total := uint32(len(th.samples))
	visible = math.Clamp(visible, 0, total)
	if visible == 0 {
		return nil
	}
	return th.backend.GeometryDraw(pass, renderer.TopologyPointList,
		th.vertex, nil, visible, viewProjection, nil, 0)
}

/**
 * @brief Drops the entire history and releases the vertex buffer. Called
 * when trails are toggled off or when a planet-count or tessellation change
 * invalidates the recorded indices.
 */
func (th *TrailHistory) Reset() {
	th.samples = nil
	if th.vertex != nil {
		th.vertex.Destroy()
		th.vertex = nil
	}
}

func (th *TrailHistory) Destroy() {
	th.Reset()
}
