package bus_test

import (
	"testing"

	"taskflow/internal/bus"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPublishDeliversToRoomSubscribers(t *testing.T) {
	// Arrange
	b := bus.New(8)
	room := bus.NotificationsRoom(uuid.New())
	sub1 := b.Subscribe(room)
	sub2 := b.Subscribe(room)

	// Act
	b.Publish(room, bus.Event{Type: bus.EventNotification, Payload: "hello"})

	// Assert
	ev1 := <-sub1.Events()
	ev2 := <-sub2.Events()
	assert.Equal(t, bus.EventNotification, ev1.Type)
	assert.Equal(t, "hello", ev1.Payload)
	assert.Equal(t, bus.EventNotification, ev2.Type)
}

func TestRoomIsolation(t *testing.T) {
	// Arrange
	userA := uuid.New()
	userB := uuid.New()
	b := bus.New(8)
	subA := b.Subscribe(bus.NotificationsRoom(userA))
	subB := b.Subscribe(bus.NotificationsRoom(userB))
	subChat := b.Subscribe(bus.ChatRoom(uuid.New()))

	// Act
	b.Publish(bus.NotificationsRoom(userA), bus.Event{Type: bus.EventNotification, Payload: "for A"})
	b.Publish(bus.NotificationsRoom(userB), bus.Event{Type: bus.EventNotification, Payload: "for B"})

	// Assert: each subscriber sees only its own room's event
	evA := <-subA.Events()
	assert.Equal(t, "for A", evA.Payload)
	evB := <-subB.Events()
	assert.Equal(t, "for B", evB.Payload)
	assert.Empty(t, subA.Events())
	assert.Empty(t, subB.Events())
	assert.Empty(t, subChat.Events())
}

func TestPublishWithNoSubscribersIsDropped(t *testing.T) {
	b := bus.New(8)

	// Must not panic or block
	b.Publish("notifications:nobody", bus.Event{Type: bus.EventNotification})

	assert.Equal(t, 0, b.Subscribers("notifications:nobody"))
}

func TestUnsubscribeStopsDeliveryAndClearsRoom(t *testing.T) {
	// Arrange
	b := bus.New(8)
	room := bus.TaskCommentsRoom(uuid.New())
	sub := b.Subscribe(room)
	assert.Equal(t, 1, b.Subscribers(room))

	// Act
	b.Unsubscribe(sub)
	b.Publish(room, bus.Event{Type: bus.EventNewComment})

	// Assert: channel closed, no event delivered, no lingering membership
	_, open := <-sub.Events()
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers(room))
}

func TestUnsubscribeTwiceIsSafe(t *testing.T) {
	b := bus.New(8)
	sub := b.Subscribe("chat:1")

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	assert.Equal(t, 0, b.Subscribers("chat:1"))
}

func TestPublishOrderPreservedPerSubscriber(t *testing.T) {
	// Arrange
	b := bus.New(16)
	room := bus.ChatRoom(uuid.New())
	sub := b.Subscribe(room)

	// Act
	for i := 0; i < 10; i++ {
		b.Publish(room, bus.Event{Type: bus.EventChatMessage, Payload: i})
	}

	// Assert
	for i := 0; i < 10; i++ {
		ev := <-sub.Events()
		assert.Equal(t, i, ev.Payload)
	}
}

func TestSlowSubscriberDropsOldestEvent(t *testing.T) {
	// Arrange: buffer of 2, never drained
	b := bus.New(2)
	room := bus.ChatRoom(uuid.New())
	sub := b.Subscribe(room)

	// Act: third publish overflows; the oldest pending event gives way
	b.Publish(room, bus.Event{Payload: 1})
	b.Publish(room, bus.Event{Payload: 2})
	b.Publish(room, bus.Event{Payload: 3})

	// Assert
	ev1 := <-sub.Events()
	ev2 := <-sub.Events()
	assert.Equal(t, 2, ev1.Payload)
	assert.Equal(t, 3, ev2.Payload)
	assert.Empty(t, sub.Events())
}

func TestSlowSubscriberDoesNotStallOthers(t *testing.T) {
	// Arrange: one full subscriber, one healthy
	b := bus.New(1)
	room := bus.ChatRoom(uuid.New())
	slow := b.Subscribe(room)
	healthy := b.Subscribe(room)
	b.Publish(room, bus.Event{Payload: "first"})
	<-healthy.Events()

	// Act: slow still holds "first"; publish must not block
	b.Publish(room, bus.Event{Payload: "second"})

	// Assert
	ev := <-healthy.Events()
	assert.Equal(t, "second", ev.Payload)
	evSlow := <-slow.Events()
	assert.Equal(t, "second", evSlow.Payload)
}

func TestRoomKeys(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	assert.Equal(t, "notifications:11111111-2222-3333-4444-555555555555", bus.NotificationsRoom(id))
	assert.Equal(t, "chat:11111111-2222-3333-4444-555555555555", bus.ChatRoom(id))
	assert.Equal(t, "task_comments:11111111-2222-3333-4444-555555555555", bus.TaskCommentsRoom(id))
}
