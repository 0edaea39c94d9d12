package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish delivers ev to every subscriber of its concrete type.
// A nil bus drops the event, so components can run without one.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case UpdateCheckedEvent:
		event.Publish(b.dispatcher, e)
	case MigrationStartedEvent:
		event.Publish(b.dispatcher, e)
	case MigrationProgressEvent:
		event.Publish(b.dispatcher, e)
	case MigrationCompletedEvent:
		event.Publish(b.dispatcher, e)
	case MigrationFailedEvent:
		event.Publish(b.dispatcher, e)
	case StorageNoticeEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type in its signature and
// returns an unsubscribe function. Unknown handler types are ignored.
//
//	unsub := bus.Subscribe(func(e MigrationCompletedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(UpdateCheckedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MigrationStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MigrationProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MigrationCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MigrationFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StorageNoticeEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
