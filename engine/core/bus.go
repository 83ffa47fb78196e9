package core

import (
	"github.com/google/uuid"
)

// Topics carried on the parameter bus. Applications may define their own
// topics beyond these.
const (
	TopicPlanetCount      = "planet-count"
	TopicEllipseAxis      = "ellipse-a"
	TopicEccentricity     = "eccentricity"
	TopicLatBands         = "lat-bands"
	TopicLongBands        = "long-bands"
	TopicTopology         = "topology"
	TopicTrailEnabled     = "trail-enabled"
	TopicCollisionEnabled = "collision-enabled"
	TopicCameraChanged    = "camera-changed"
	TopicCollisionsFound  = "collisions-found"
)

// ParamValue is the payload delivered to subscribers. Scalar parameters
// travel in the fixed slots; batched payloads (e.g. collision pairs) ride in
// Any.
type ParamValue struct {
	U32 [2]uint32
	F32 [2]float32
	B   bool
	Any interface{}
}

// Should return true if the parameter change is considered handled, stopping
// delivery to any further subscribers of the topic.
type FnOnParam func(topic string, value ParamValue) bool

type subscriber struct {
	id       string
	callback FnOnParam
}

/**
 * @brief ParameterBus is a synchronous publish/subscribe registry keyed by
 * named topics. Unlike a process-wide event singleton, a bus is explicitly
 * constructed and handed to each system at construction time, so there is no
 * hidden global state. Delivery is synchronous and in subscription order.
 */
type ParameterBus struct {
	topics map[string][]*subscriber
}

func NewParameterBus() *ParameterBus {
	return &ParameterBus{
		topics: make(map[string][]*subscriber),
	}
}

// NewSubscriberID returns a fresh unique id for use with Subscribe.
func NewSubscriberID() string {
	return uuid.New().String()
}

/**
 * @brief Registers a callback for a topic. Subscribing the same (topic, id)
 * pair twice is a no-op and returns false; the original registration and its
 * position in delivery order are kept.
 */
func (pb *ParameterBus) Subscribe(topic, id string, onParam FnOnParam) bool {
	for _, s := range pb.topics[topic] {
		if s.id == id {
			LogWarn("func Subscribe: subscriber '%s' already registered on topic '%s'", id, topic)
			return false
		}
	}
	pb.topics[topic] = append(pb.topics[topic], &subscriber{
		id:       id,
		callback: onParam,
	})
	return true
}

/**
 * @brief Removes the registration for (topic, id). Unsubscribing an unknown
 * pair is a no-op and returns false.
 */
func (pb *ParameterBus) Unsubscribe(topic, id string) bool {
	subs := pb.topics[topic]
	for i, s := range subs {
		if s.id == id {
			pb.topics[topic] = append(subs[:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * @brief Delivers value to every current subscriber of topic, synchronously,
 * in subscription order. If a subscriber returns true the value is considered
 * handled and is not passed on to any more subscribers. Returns true if any
 * subscriber handled the value.
 */
func (pb *ParameterBus) Publish(topic string, value ParamValue) bool {
	for _, s := range pb.topics[topic] {
		if s.callback(topic, value) {
			return true
		}
	}
	return false
}

// SubscriberCount reports how many callbacks are registered on a topic.
func (pb *ParameterBus) SubscriberCount(topic string) int {
	return len(pb.topics[topic])
}
