// Package pubsub provides a synchronous, typed publish/subscribe event bus.
//
// Events come in two kinds. Cancellable events are sent with Dispatch and
// any handler may veto them with PreventDefault. Informational events are
// sent with Publish and cannot be vetoed.
package pubsub

import (
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time

	// Cancelable is true for events sent through Dispatch.
	Cancelable bool
	prevented  bool
}

// PreventDefault vetoes a cancellable event. It has no effect on
// informational events.
func (e *Event[T]) PreventDefault() {
	if e.Cancelable {
		e.prevented = true
	}
}

// DefaultPrevented reports whether a handler vetoed the event.
func (e *Event[T]) DefaultPrevented() bool {
	return e.prevented
}

// Handler receives events. Handlers run synchronously on the dispatching
// goroutine, in registration order.
type Handler[T any] func(e *Event[T])

// Publisher allows publishing informational events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}

// Dispatcher sends cancellable events and reports whether they were allowed.
type Dispatcher[T any] interface {
	Dispatch(eventType EventType, payload T) bool
}
