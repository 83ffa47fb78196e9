package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeIdempotent(t *testing.T) {
	bus := NewParameterBus()
	id := NewSubscriberID()

	calls := 0
	assert.True(t, bus.Subscribe(TopicPlanetCount, id, func(topic string, value ParamValue) bool {
		calls++
		return false
	}))
	// Same (topic, id) again is a no-op.
	assert.False(t, bus.Subscribe(TopicPlanetCount, id, func(topic string, value ParamValue) bool {
		calls += 100
		return false
	}))
	assert.Equal(t, 1, bus.SubscriberCount(TopicPlanetCount))

	bus.Publish(TopicPlanetCount, ParamValue{U32: [2]uint32{3}})
	assert.Equal(t, 1, calls, "only the original registration runs")
}

func TestPublishOrderAndHandled(t *testing.T) {
	bus := NewParameterBus()

	var order []string
	bus.Subscribe(TopicEccentricity, "first", func(topic string, value ParamValue) bool {
		order = append(order, "first")
		return false
	})
	bus.Subscribe(TopicEccentricity, "second", func(topic string, value ParamValue) bool {
		order = append(order, "second")
		return true
	})
	bus.Subscribe(TopicEccentricity, "third", func(topic string, value ParamValue) bool {
		order = append(order, "third")
		return false
	})

	handled := bus.Publish(TopicEccentricity, ParamValue{F32: [2]float32{0.5}})
	assert.True(t, handled)
	// Delivery is in subscription order and stops at the handler.
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewParameterBus()
	id := NewSubscriberID()

	calls := 0
	bus.Subscribe(TopicTrailEnabled, id, func(topic string, value ParamValue) bool {
		calls++
		return false
	})

	assert.True(t, bus.Unsubscribe(TopicTrailEnabled, id))
	assert.False(t, bus.Unsubscribe(TopicTrailEnabled, id))
	assert.Equal(t, 0, bus.SubscriberCount(TopicTrailEnabled))

	bus.Publish(TopicTrailEnabled, ParamValue{B: true})
	assert.Equal(t, 0, calls)
}

func TestPublishUnknownTopic(t *testing.T) {
	bus := NewParameterBus()
	assert.False(t, bus.Publish("no-such-topic", ParamValue{}))
}

func TestPayloadDelivery(t *testing.T) {
	bus := NewParameterBus()

	var got ParamValue
	bus.Subscribe(TopicCollisionsFound, "collector", func(topic string, value ParamValue) bool {
		got = value
		return false
	})

	pairs := []int{1, 2, 3}
	bus.Publish(TopicCollisionsFound, ParamValue{U32: [2]uint32{3}, Any: pairs})
	assert.Equal(t, uint32(3), got.U32[0])
	assert.Equal(t, pairs, got.Any)
}
