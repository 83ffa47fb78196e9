package systems

import (
	"github.com/spaghettifunk/kepler/engine/core"
)

/**
 * @brief Spawner grows the simulated set when collisions are found: for
 * every discovered pair it publishes an incremented planet count, which the
 * TransformPacker reacts to by generating new planets. The spawner holds no
 * policy beyond count-per-collision; it only wires the collisions-found
 * topic back into the planet-count topic.
 */
type Spawner struct {
	bus          *core.ParameterBus
	packer       *TransformPacker
	subscriberID string
}

func NewSpawner(bus *core.ParameterBus, packer *TransformPacker) *Spawner {
	s := &Spawner{
		bus:          bus,
		packer:       packer,
		subscriberID: core.NewSubscriberID(),
	}
	bus.Subscribe(core.TopicCollisionsFound, s.subscriberID, func(topic string, value core.ParamValue) bool {
		found := value.U32[0]
		if found == 0 {
			return false
		}
		next := s.packer.PlanetCount() + found
		core.LogInfo("spawning %d planet(s) after collisions, count -> %d", found, next)
		s.bus.Publish(core.TopicPlanetCount, core.ParamValue{U32: [2]uint32{next}})
		return false
	})
	return s
}

func (s *Spawner) Destroy() {
	s.bus.Unsubscribe(core.TopicCollisionsFound, s.subscriberID)
}
