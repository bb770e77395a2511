package pubsub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// PanicHandler is called when a handler panics during delivery.
// The remaining handlers still run.
type PanicHandler func(eventType EventType, err error)

// Option configures a Bus.
type Option func(*options)

type options struct {
	onPanic PanicHandler
}

// WithPanicHandler sets the callback used to report recovered handler panics.
func WithPanicHandler(fn PanicHandler) Option {
	return func(o *options) {
		o.onPanic = fn
	}
}

// Bus is a synchronous generic event bus.
// Subscriptions live until cancelled or until their context is done.
type Bus[T any] struct {
	mu      sync.Mutex
	entries []*entry[T]
	onPanic PanicHandler
}

type entry[T any] struct {
	ctx       context.Context
	eventType EventType
	handler   Handler[T]
	sub       *Subscription
}

func (e *entry[T]) live() bool {
	return e.sub.Active() && e.ctx.Err() == nil
}

// NewBus creates an empty bus.
func NewBus[T any](opts ...Option) *Bus[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Bus[T]{onPanic: o.onPanic}
}

// Subscribe registers handler for eventType. The returned Subscription
// revokes the registration; cancelling ctx has the same effect.
func (b *Bus[T]) Subscribe(ctx context.Context, eventType EventType, handler Handler[T]) *Subscription {
	if ctx == nil {
		ctx = context.Background()
	}
	sub := &Subscription{}
	e := &entry[T]{ctx: ctx, eventType: eventType, handler: handler, sub: sub}
	sub.detach = func() { b.remove(e) }

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	b.entries = append(b.entries, e)
	return sub
}

// Dispatch sends a cancellable event to every live handler and returns
// false if any of them called PreventDefault.
func (b *Bus[T]) Dispatch(eventType EventType, payload T) bool {
	ev := &Event[T]{
		Type:       eventType,
		Payload:    payload,
		Timestamp:  time.Now(),
		Cancelable: true,
	}
	b.deliver(ev)
	return !ev.prevented
}

// Publish sends an informational event to every live handler.
func (b *Bus[T]) Publish(eventType EventType, payload T) {
	b.deliver(&Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// SubscriberCount returns the number of live subscriptions for eventType.
func (b *Bus[T]) SubscriberCount(eventType EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	n := 0
	for _, e := range b.entries {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

// Len returns the number of live subscriptions across all event types.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	return len(b.entries)
}

func (b *Bus[T]) deliver(ev *Event[T]) {
	// Snapshot so handlers may subscribe or cancel during delivery.
	b.mu.Lock()
	b.pruneLocked()
	targets := make([]*entry[T], 0, len(b.entries))
	for _, e := range b.entries {
		if e.eventType == ev.Type {
			targets = append(targets, e)
		}
	}
	b.mu.Unlock()

	for _, e := range targets {
		if !e.live() {
			continue
		}
		b.invoke(e, ev)
	}
}

func (b *Bus[T]) invoke(e *entry[T], ev *Event[T]) {
	defer func() {
		if r := recover(); r != nil {
			if b.onPanic == nil {
				return
			}
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			b.onPanic(ev.Type, err)
		}
	}()
	e.handler(ev)
}

func (b *Bus[T]) remove(target *entry[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.entries {
		if e == target {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return
		}
	}
}

func (b *Bus[T]) pruneLocked() {
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.live() {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(b.entries); i++ {
		b.entries[i] = nil
	}
	b.entries = kept
}

// Subscription is a handle for one registration on a Bus.
type Subscription struct {
	once      sync.Once
	cancelled atomic.Bool
	detach    func()
}

// Cancel revokes the registration. It is safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.cancelled.Store(true)
		if s.detach != nil {
			s.detach()
		}
	})
}

// Active reports whether Cancel has not been called yet.
func (s *Subscription) Active() bool {
	return s != nil && !s.cancelled.Load()
}
