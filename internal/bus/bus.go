// Package bus is the in-process publish/subscribe layer that routes live
// events to subscribers grouped by room key. Delivery is best-effort: the
// stored Notification/Message/Comment record is the durable source of truth,
// and a publish with no subscribers is silently dropped.
package bus

import (
	"sync"

	"github.com/google/uuid"
)

// Event is the tagged structure delivered to live connections.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventNotification       = "send_notification"
	EventChatMessage        = "chat_message"
	EventNewComment         = "new_comment"
	EventTaskListInvalidate = "task_list_invalidate"
)

// Room key constructors. One room per user for notifications, one per chat
// channel, one per task for comments.

func NotificationsRoom(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

func ChatRoom(channelID uuid.UUID) string {
	return "chat:" + channelID.String()
}

func TaskCommentsRoom(taskID uuid.UUID) string {
	return "task_comments:" + taskID.String()
}

// Subscription is one subscriber's membership in a room. Events arrive on
// Events() in publish order until Unsubscribe closes the channel.
type Subscription struct {
	room string
	ch   chan Event
}

func (s *Subscription) Room() string {
	return s.room
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Bus routes events to room subscribers. A single instance is constructed at
// process start and passed to every component that publishes or subscribes.
type Bus struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	buffer int
}

// New creates a bus whose subscriptions buffer up to buffer events each.
func New(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		rooms:  make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new subscription in the room.
func (b *Bus) Subscribe(room string) *Subscription {
	sub := &Subscription{room: room, ch: make(chan Event, b.buffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.rooms[room]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.rooms[room] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscription from its room and closes its channel.
// Safe to call once per subscription; the room entry is dropped when empty so
// no membership lingers after disconnect.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.rooms[sub.room]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.rooms, sub.room)
	}
	close(sub.ch)
}

// Publish delivers the event to every current subscriber of the room without
// blocking. When a subscriber's buffer is full its oldest pending event is
// dropped to make space, so a slow consumer never stalls the publisher or
// other subscribers.
func (b *Bus) Publish(room string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.rooms[room] {
		select {
		case sub.ch <- event:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscriptions in the room.
func (b *Bus) Subscribers(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}
