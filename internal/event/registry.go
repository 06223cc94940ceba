// Package event provides an ordered publish/subscribe registry.
//
// Listeners run synchronously in registration order. A listener can halt
// delivery of the current dispatch with Event.StopPropagation. Listener
// lists are copied on write, so registering or removing listeners while a
// dispatch is running never disturbs the snapshot being iterated.
package event

import (
	"strings"
	"sync/atomic"
)

// Event is the record handed to every listener of a dispatch.
type Event struct {
	Type   string
	Data   any
	Target any

	stopped bool
}

// StopPropagation prevents the remaining listeners from receiving this event.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// PropagationStopped reports whether a listener halted the dispatch.
func (e *Event) PropagationStopped() bool {
	return e.stopped
}

// Listener receives dispatched events.
type Listener func(e *Event)

// Halting adapts a listener that signals "stop" by returning false.
func Halting(fn func(e *Event) bool) Listener {
	return func(e *Event) {
		if !fn(e) {
			e.StopPropagation()
		}
	}
}

// Key identifies a registered listener so it can be removed later.
type Key uint64

var nextKey atomic.Uint64

type entry struct {
	key Key
	fn  Listener
}

// Registry holds listeners per event type.
// The zero value is usable; embed it to give a type On/Once/Off/Dispatch.
type Registry struct {
	target    any
	listeners map[string][]entry
}

// NewRegistry creates a registry whose events carry target as Event.Target.
func NewRegistry(target any) *Registry {
	r := &Registry{}
	r.Init(target)
	return r
}

// Init sets the dispatch target. Types embedding Registry call it from
// their constructor with themselves as target.
func (r *Registry) Init(target any) {
	r.target = target
}

// On registers l for one or more comma-separated event types.
func (r *Registry) On(types string, l Listener) Key {
	return r.OnTypes(splitTypes(types), l, false)
}

// Once registers l for a single delivery. The listener is removed before
// it runs, so a dispatch triggered from inside l does not reach it again.
func (r *Registry) Once(types string, l Listener) Key {
	return r.OnTypes(splitTypes(types), l, true)
}

// OnTypes is the slice form of On and Once.
func (r *Registry) OnTypes(types []string, l Listener, once bool) Key {
	if l == nil {
		panic("event: nil listener")
	}
	if len(types) == 0 {
		panic("event: no event type given")
	}
	for _, t := range types {
		if t == "" {
			panic("event: empty event type")
		}
	}

	key := Key(nextKey.Add(1))
	fn := l
	if once {
		fn = func(e *Event) {
			r.Off(e.Type, key)
			l(e)
		}
	}

	if r.listeners == nil {
		r.listeners = make(map[string][]entry)
	}
	for _, t := range types {
		prev := r.listeners[t]
		next := make([]entry, len(prev), len(prev)+1)
		copy(next, prev)
		r.listeners[t] = append(next, entry{key: key, fn: fn})
	}
	return key
}

// Off removes the listeners identified by keys from the given
// comma-separated types. Without keys every listener of those types is removed.
func (r *Registry) Off(types string, keys ...Key) {
	for _, t := range splitTypes(types) {
		if len(keys) == 0 {
			delete(r.listeners, t)
			continue
		}
		prev := r.listeners[t]
		next := make([]entry, 0, len(prev))
		for _, e := range prev {
			if !containsKey(keys, e.key) {
				next = append(next, e)
			}
		}
		if len(next) == 0 {
			delete(r.listeners, t)
		} else {
			r.listeners[t] = next
		}
	}
}

// HasListeners reports whether anything is registered for typ.
func (r *Registry) HasListeners(typ string) bool {
	return len(r.listeners[typ]) > 0
}

// Dispatch delivers data to the listeners of typ in registration order and
// returns the event record so callers can inspect PropagationStopped.
func (r *Registry) Dispatch(typ string, data any) *Event {
	e := &Event{Type: typ, Data: data, Target: r.target}
	snapshot := r.listeners[typ]
	for _, l := range snapshot {
		l.fn(e)
		if e.stopped {
			break
		}
	}
	return e
}

func splitTypes(types string) []string {
	parts := strings.Split(types, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func containsKey(keys []Key, k Key) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}
