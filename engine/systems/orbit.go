package systems

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/math"
	"github.com/spaghettifunk/kepler/engine/renderer"
)

// Degrees of self-rotation per second of wall-clock time.
const spinRateDeg float32 = 12.0

// OrbitalState is the per-slot simulation state: the angle accumulator in
// degrees and the last computed world-space center. States are indexed by
// planet slot, not by a stable planet identity, so a resize reindexes them.
type OrbitalState struct {
	AngleDeg float32
	Center   math.Vec3
}

// FrameParams is the immutable per-frame configuration snapshot handed into
// each recompute, replacing any shared mutable settings object.
type FrameParams struct {
	EllipseSemiMajor float32
	Eccentricity     float32
	Topology         renderer.Topology
	EnhancedOutline  bool
}

/**
 * @brief TransformPacker owns the simulated planet set. Every frame it
 * advances each planet's orbital angle, packs all model matrices into one
 * aligned device buffer and issues one draw per planet using a dynamic
 * offset into that buffer.
 */
type TransformPacker struct {
	backend renderer.Backend
	bus     *core.ParameterBus
	pool    *TexturePool
	clock   *core.Clock
	rng     *rand.Rand

	planets []*Planet
	orbits  []OrbitalState
	packed  *renderer.PackedTransformBuffer

	latBands   uint32
	longBands  uint32
	radiusMin  float32
	radiusMax  float32
	candidates []CollisionCandidate

	subscriberID string
}

type TransformPackerConfig struct {
	LatBands  uint32
	LongBands uint32
	RadiusMin float32
	RadiusMax float32
	Seed      uint64
}

func NewTransformPacker(backend renderer.Backend, bus *core.ParameterBus, pool *TexturePool, config TransformPackerConfig) (*TransformPacker, error) {
	if config.LatBands < 2 || config.LongBands < 2 {
		return nil, fmt.Errorf("func NewTransformPacker: band counts must be >= 2, got lat=%d long=%d", config.LatBands, config.LongBands)
	}
	if config.RadiusMin <= 0 || config.RadiusMax < config.RadiusMin {
		return nil, fmt.Errorf("func NewTransformPacker: invalid radius range [%f, %f]", config.RadiusMin, config.RadiusMax)
	}

	packed, err := renderer.NewPackedTransformBuffer(backend, 0)
	if err != nil {
		return nil, err
	}

	clock := core.NewClock()
	clock.Start()

	tp := &TransformPacker{
		backend:      backend,
		bus:          bus,
		pool:         pool,
		clock:        clock,
		rng:          rand.New(rand.NewSource(config.Seed)),
		packed:       packed,
		latBands:     config.LatBands,
		longBands:    config.LongBands,
		radiusMin:    config.RadiusMin,
		radiusMax:    config.RadiusMax,
		subscriberID: core.NewSubscriberID(),
	}

	bus.Subscribe(core.TopicPlanetCount, tp.subscriberID, func(topic string, value core.ParamValue) bool {
		if err := tp.SetPlanetCount(value.U32[0]); err != nil {
			core.LogError("planet-count change to %d failed: %s", value.U32[0], err)
		}
		return false
	})
	bus.Subscribe(core.TopicLatBands, tp.subscriberID, func(topic string, value core.ParamValue) bool {
		if err := tp.SetTessellation(value.U32[0], tp.longBands); err != nil {
			core.LogError("lat-bands change to %d failed: %s", value.U32[0], err)
		}
		return false
	})
	bus.Subscribe(core.TopicLongBands, tp.subscriberID, func(topic string, value core.ParamValue) bool {
		if err := tp.SetTessellation(tp.latBands, value.U32[0]); err != nil {
			core.LogError("long-bands change to %d failed: %s", value.U32[0], err)
		}
		return false
	})

	return tp, nil
}

// PlanetCount reports the current number of simulated planets.
func (tp *TransformPacker) PlanetCount() uint32 {
	return uint32(len(tp.planets))
}

// Planets exposes the current planet records.
func (tp *TransformPacker) Planets() []*Planet {
	return tp.planets
}

// Packed exposes the packed transform buffer.
func (tp *TransformPacker) Packed() *renderer.PackedTransformBuffer {
	return tp.packed
}

/**
 * @brief Resizes the simulated set to n planets. Growth creates new planets
 * with a random radius from the configured range; shrink discards the excess
 * planets and their buffers. The packed buffer is always resized before the
 * next draw, and a resize re-zeroes every slot so a shrink-and-regrow can
 * never draw a stale matrix.
 */
func (tp *TransformPacker) SetPlanetCount(n uint32) error {
	current := uint32(len(tp.planets))
	if n == current {
		return nil
	}

	if n < current {
		for i := n; i < current; i++ {
			tp.planets[i].Destroy()
		}
		tp.planets = tp.planets[:n]
		tp.orbits = tp.orbits[:n]
	} else {
		for i := current; i < n; i++ {
			radius := tp.radiusMin + tp.rng.Float32()*(tp.radiusMax-tp.radiusMin)
			var texture *Texture
			if tp.pool != nil {
				t, err := tp.pool.Get(i)
				if err != nil {
					return err
				}
				texture = t
			}
			planet, err := NewPlanet(tp.backend, radius, tp.latBands, tp.longBands, texture)
			if err != nil {
				return err
			}
			tp.planets = append(tp.planets, planet)
			tp.orbits = append(tp.orbits, OrbitalState{})
		}
	}

	if err := tp.packed.Resize(n); err != nil {
		return err
	}
	core.LogDebug("planet count is now %d", n)
	return nil
}

/**
 * @brief Changes the tessellation resolution. All planets are discarded and
 * regenerated with their existing radii; incremental mesh updates are not
 * worth the bookkeeping.
 */
func (tp *TransformPacker) SetTessellation(latBands, longBands uint32) error {
	if latBands < 2 || longBands < 2 {
		return fmt.Errorf("func SetTessellation: band counts must be >= 2, got lat=%d long=%d", latBands, longBands)
	}
	tp.latBands = latBands
	tp.longBands = longBands

	for i, old := range tp.planets {
		planet, err := NewPlanet(tp.backend, old.Radius, latBands, longBands, old.Texture)
		if err != nil {
			return err
		}
		old.Destroy()
		tp.planets[i] = planet
	}
	return nil
}

/**
 * @brief Advances every planet's orbit by one step and packs the resulting
 * model matrices. Each planet's translation is the running sum of all
 * previous planets' ellipse positions plus its own, producing the chained
 * spiral the simulation is known for, combined with a slow wall-clock-driven
 * self-rotation about z.
 */
func (tp *TransformPacker) ComputeFrameTransforms(semiMajor, eccentricity float32) error {
	ellipse, err := math.NewEllipse(semiMajor, eccentricity)
	if err != nil {
		return err
	}

	tp.clock.Update()
	spin := math.DegToRad(math.WrapDeg(float32(tp.clock.ElapsedSeconds()) * spinRateDeg))
	rotation := math.NewMat4EulerZ(spin)

	if tp.candidates == nil || cap(tp.candidates) < len(tp.planets) {
		tp.candidates = make([]CollisionCandidate, 0, len(tp.planets))
	}
	tp.candidates = tp.candidates[:0]

	cumulative := math.NewVec3Zero()
	for i := range tp.planets {
		state := &tp.orbits[i]
		state.AngleDeg = math.WrapDeg(state.AngleDeg + 1.0)

		position := ellipse.Position(state.AngleDeg)
		cumulative = cumulative.Add(position)
		state.Center = cumulative

		matrix := math.NewMat4Translation(cumulative).Mul(rotation)
		tp.packed.Set(uint32(i), matrix)

		tp.candidates = append(tp.candidates, CollisionCandidate{
			X:      cumulative.X,
			Y:      cumulative.Y,
			Z:      cumulative.Z,
			Radius: tp.planets[i].Radius,
			Index:  uint32(i),
		})
	}

	return tp.packed.Upload()
}

// Candidates returns the collision candidates computed by the last
// ComputeFrameTransforms, one per planet slot.
func (tp *TransformPacker) Candidates() []CollisionCandidate {
	return tp.candidates
}

// Orbits exposes the per-slot orbital states.
func (tp *TransformPacker) Orbits() []OrbitalState {
	return tp.orbits
}

/**
 * @brief Packs the frame's transforms and issues one draw per planet at its
 * dynamic offset. The topology picks one of the precompiled pipelines; when
 * the enhanced outline is enabled a second cheap point-topology pass is
 * drawn over each planet.
 */
func (tp *TransformPacker) RenderPlanets(pass renderer.RenderPass, params FrameParams, viewProjection renderer.Buffer) error {
	if err := tp.ComputeFrameTransforms(params.EllipseSemiMajor, params.Eccentricity); err != nil {
		return err
	}

	for i, planet := range tp.planets {
		offset := uint32(tp.packed.Offset(uint32(i)))
		if err := tp.backend.GeometryDraw(pass, params.Topology,
			planet.VertexBuffer, planet.IndexBuffer, uint32(len(planet.Indices)),
			viewProjection, tp.packed.DeviceBuffer(), offset); err != nil {
			return err
		}
		if params.EnhancedOutline && params.Topology != renderer.TopologyPointList {
			if err := tp.backend.GeometryDraw(pass, renderer.TopologyPointList,
				planet.VertexBuffer, planet.IndexBuffer, uint32(len(planet.Indices)),
				viewProjection, tp.packed.DeviceBuffer(), offset); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tp *TransformPacker) Destroy() {
	tp.bus.Unsubscribe(core.TopicPlanetCount, tp.subscriberID)
	tp.bus.Unsubscribe(core.TopicLatBands, tp.subscriberID)
	tp.bus.Unsubscribe(core.TopicLongBands, tp.subscriberID)
	for _, planet := range tp.planets {
		planet.Destroy()
	}
	tp.planets = nil
	tp.orbits = nil
	tp.packed.Destroy()
}
