package systems

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
)

// EventType identifies bubble notifications.
type EventType uint8

const (
	EventRadiusChanged EventType = iota
	EventPositionChanged
	EventHardenedChanged
	EventAbsorbedByOther    // Subject was absorbed; Other is the new parent
	EventAbsorbedOther      // Subject absorbed Other
	EventLeftParent         // Subject separated; Other is the former parent
	EventChildLeft          // Other left Subject
	EventBecameIndividual   // Subject is Individual again
	EventBumpedIntoHardened // Subject overlapped the hardened Other
	EventBumpedByBubble     // Subject is hardened and Other bumped into it
	EventDestroyed
)

var eventTypeNames = [...]string{
	"radius_changed",
	"position_changed",
	"hardened_changed",
	"absorbed_by_other",
	"absorbed_other",
	"left_parent",
	"child_left",
	"became_individual",
	"bumped_into_hardened",
	"bumped_by_bubble",
	"destroyed",
}

// String returns the event type name.
func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "unknown"
}

// EventTypes returns every event type in declaration order.
func EventTypes() []EventType {
	types := make([]EventType, len(eventTypeNames))
	for i := range types {
		types[i] = EventType(i)
	}
	return types
}

// Event is a single notification directed at Subject.
type Event struct {
	Type      EventType
	Tick      int32
	Subject   ecs.Entity
	SubjectID uint32
	Other     ecs.Entity // zero when the event has no counterpart
	OtherID   uint32

	// Values for change events
	Radius   float64
	Position r2.Vec
	Hardened bool
}

// Listener receives bubble events.
type Listener interface {
	HandleBubbleEvent(ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev Event)

// HandleBubbleEvent calls f.
func (f ListenerFunc) HandleBubbleEvent(ev Event) {
	f(ev)
}

// Subscription identifies a registration for Unsubscribe.
type Subscription struct {
	token  uint64
	entity ecs.Entity
	all    bool
}

type subscriber struct {
	token    uint64
	listener Listener
}

// Bus queues bubble events and delivers them to subscribers.
//
// Events emitted while the state machine runs are queued and delivered in
// FIFO order by Dispatch. Entity listeners run before global listeners for
// the same event. Events emitted by listeners are delivered in the same
// Dispatch call.
type Bus struct {
	byEntity map[ecs.Entity][]subscriber
	global   []subscriber
	queue    []Event
	next     uint64

	dispatching bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{byEntity: make(map[ecs.Entity][]subscriber)}
}

// Subscribe registers l for events whose Subject is e.
func (b *Bus) Subscribe(e ecs.Entity, l Listener) Subscription {
	b.next++
	b.byEntity[e] = append(b.byEntity[e], subscriber{token: b.next, listener: l})
	return Subscription{token: b.next, entity: e}
}

// SubscribeAll registers l for every event.
func (b *Bus) SubscribeAll(l Listener) Subscription {
	b.next++
	b.global = append(b.global, subscriber{token: b.next, listener: l})
	return Subscription{token: b.next, all: true}
}

// Unsubscribe removes a registration. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	if s.all {
		b.global = removeSubscriber(b.global, s.token)
		return
	}
	subs := removeSubscriber(b.byEntity[s.entity], s.token)
	if len(subs) == 0 {
		delete(b.byEntity, s.entity)
	} else {
		b.byEntity[s.entity] = subs
	}
}

// Forget drops every registration for e.
func (b *Bus) Forget(e ecs.Entity) {
	delete(b.byEntity, e)
}

// Emit queues an event.
func (b *Bus) Emit(ev Event) {
	b.queue = append(b.queue, ev)
}

// Pending returns the number of queued events.
func (b *Bus) Pending() int {
	return len(b.queue)
}

// Dispatch delivers queued events until the queue is empty.
// Registrations for a bubble are dropped after its Destroyed event.
// A Dispatch call made by a listener returns at once; the running
// Dispatch delivers whatever that listener queued.
func (b *Bus) Dispatch() {
	if b.dispatching {
		return
	}
	b.dispatching = true
	defer func() { b.dispatching = false }()

	for i := 0; i < len(b.queue); i++ {
		ev := b.queue[i]
		// Copy so listeners may unsubscribe while being called
		subs := append([]subscriber(nil), b.byEntity[ev.Subject]...)
		for _, s := range subs {
			s.listener.HandleBubbleEvent(ev)
		}
		globals := append([]subscriber(nil), b.global...)
		for _, s := range globals {
			s.listener.HandleBubbleEvent(ev)
		}
		if ev.Type == EventDestroyed {
			b.Forget(ev.Subject)
		}
	}
	clear(b.queue)
	b.queue = b.queue[:0]
}

func removeSubscriber(subs []subscriber, token uint64) []subscriber {
	for i, s := range subs {
		if s.token == token {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
