// Package binding implements the observer fan-out of the runtime: any
// number of independent bindings register type-filtered callbacks for
// inputs, state changes, outputs and errors, without coupling to the
// engine's internals. A fake variant drives the same callback surface
// with no engine behind it.
//
// The hub shares the engine's single-threaded execution model and is not
// safe for concurrent use; callbacks are assumed non-failing by contract
// and a panic inside one propagates to the caller of the broadcast.
package binding

import "github.com/aretw0/espalier/pkg/domain"

// Host is anything a binding can attach itself to. The engine and the hub
// itself both qualify.
type Host interface {
	AttachBinding(b *Binding)
	DetachBinding(b *Binding)
}

// Hub fans broadcasts out to every attached binding, in attach order.
type Hub struct {
	bindings []*Binding
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// AttachBinding registers a binding. Called by New.
func (h *Hub) AttachBinding(b *Binding) {
	h.bindings = append(h.bindings, b)
}

// DetachBinding removes a binding if present.
func (h *Hub) DetachBinding(b *Binding) {
	for i, existing := range h.bindings {
		if existing == b {
			h.bindings = append(h.bindings[:i], h.bindings[i+1:]...)
			return
		}
	}
}

// Len returns the number of attached bindings.
func (h *Hub) Len() int {
	return len(h.bindings)
}

// PublishInput delivers an input value to all matching Watch callbacks.
func (h *Hub) PublishInput(v any) {
	for _, b := range h.snapshot() {
		b.deliverInput(v)
	}
}

// PublishState delivers an actual state change to all matching When
// callbacks. The lineage carries the new state's kind plus its ancestors
// so registrations on an ancestor kind also fire.
func (h *Hub) PublishState(s domain.State, lineage []domain.Kind) {
	for _, b := range h.snapshot() {
		b.deliverState(s, lineage)
	}
}

// PublishOutput delivers an output value to all matching Handle callbacks.
func (h *Hub) PublishOutput(v any) {
	for _, b := range h.snapshot() {
		b.deliverOutput(v)
	}
}

// PublishError delivers an error event to all matching Catch callbacks.
func (h *Hub) PublishError(err error) {
	for _, b := range h.snapshot() {
		b.deliverError(err)
	}
}

// snapshot copies the binding list so a callback closing its own binding
// mid-broadcast cannot corrupt the iteration.
func (h *Hub) snapshot() []*Binding {
	return append([]*Binding(nil), h.bindings...)
}
