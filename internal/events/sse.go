package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch for select-based
// consumers such as the SSE handler. Events are dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeAll forwards every event type into ch and returns a single
// function that removes all of the subscriptions.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[UpdateCheckedEvent](bus, ch),
		SubscribeToChannel[MigrationStartedEvent](bus, ch),
		SubscribeToChannel[MigrationProgressEvent](bus, ch),
		SubscribeToChannel[MigrationCompletedEvent](bus, ch),
		SubscribeToChannel[MigrationFailedEvent](bus, ch),
		SubscribeToChannel[StorageNoticeEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
