package binding

import (
	"errors"

	"github.com/aretw0/espalier/pkg/domain"
)

// StateChange describes one actual state change as observed by When
// callbacks: the new state and its kind lineage (self first).
type StateChange struct {
	State   domain.State
	Lineage []domain.Kind
}

type catchEntry struct {
	match  func(error) bool
	invoke func(error)
}

// Binding is one registered observer of a machine. It is constructed
// attached to a host and unregisters itself exactly once on Close.
type Binding struct {
	host   Host
	closed bool

	watch    map[domain.Kind][]func(any)
	watchAll []func(any)

	when    map[domain.Kind][]func(StateChange)
	whenAll []func(StateChange)

	handle    map[domain.Kind][]func(any)
	handleAll []func(any)

	catches  []catchEntry
	catchAll []func(error)
}

// New creates a binding attached to the given host and registers it.
func New(host Host) *Binding {
	b := &Binding{
		host:   host,
		watch:  make(map[domain.Kind][]func(any)),
		when:   make(map[domain.Kind][]func(StateChange)),
		handle: make(map[domain.Kind][]func(any)),
	}
	host.AttachBinding(b)
	return b
}

// Close unregisters the binding from its host. Idempotent.
func (b *Binding) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.host.DetachBinding(b)
}

// Watch registers cb for every input of kind I flowing through the
// machine, whether or not the current state handled it. Returns the
// binding so registrations chain.
func Watch[I any](b *Binding, cb func(I)) *Binding {
	k := domain.KindOf[I]()
	b.watch[k] = append(b.watch[k], func(v any) { cb(v.(I)) })
	return b
}

// When registers cb for every actual state change whose new state is of
// kind S or derives from it. No-op self-transitions never fire it.
func When[S any](b *Binding, cb func(StateChange)) *Binding {
	k := domain.KindOf[S]()
	b.when[k] = append(b.when[k], cb)
	return b
}

// Handle registers cb for every output of kind O announced by a handler
// or lifecycle callback.
func Handle[O any](b *Binding, cb func(O)) *Binding {
	k := domain.KindOf[O]()
	b.handle[k] = append(b.handle[k], func(v any) { cb(v.(O)) })
	return b
}

// Catch registers cb for every error event whose payload matches or wraps
// kind E. Overlapping registrations all fire; there is no single-consumer
// semantics.
func Catch[E error](b *Binding, cb func(E)) *Binding {
	b.catches = append(b.catches, catchEntry{
		match: func(err error) bool {
			var target E
			return errors.As(err, &target)
		},
		invoke: func(err error) {
			var target E
			if errors.As(err, &target) {
				cb(target)
			}
		},
	})
	return b
}

// WatchAll registers cb for every input regardless of kind.
func (b *Binding) WatchAll(cb func(any)) *Binding {
	b.watchAll = append(b.watchAll, cb)
	return b
}

// WhenAll registers cb for every actual state change regardless of kind.
func (b *Binding) WhenAll(cb func(StateChange)) *Binding {
	b.whenAll = append(b.whenAll, cb)
	return b
}

// HandleAll registers cb for every output regardless of kind.
func (b *Binding) HandleAll(cb func(any)) *Binding {
	b.handleAll = append(b.handleAll, cb)
	return b
}

// CatchAll registers cb for every error event regardless of kind.
func (b *Binding) CatchAll(cb func(error)) *Binding {
	b.catchAll = append(b.catchAll, cb)
	return b
}

func (b *Binding) deliverInput(v any) {
	for _, cb := range b.watch[domain.KindOfValue(v)] {
		cb(v)
	}
	for _, cb := range b.watchAll {
		cb(v)
	}
}

func (b *Binding) deliverState(s domain.State, lineage []domain.Kind) {
	change := StateChange{State: s, Lineage: lineage}
	for _, k := range lineage {
		for _, cb := range b.when[k] {
			cb(change)
		}
	}
	for _, cb := range b.whenAll {
		cb(change)
	}
}

func (b *Binding) deliverOutput(v any) {
	for _, cb := range b.handle[domain.KindOfValue(v)] {
		cb(v)
	}
	for _, cb := range b.handleAll {
		cb(v)
	}
}

func (b *Binding) deliverError(err error) {
	for _, entry := range b.catches {
		if entry.match(err) {
			entry.invoke(err)
		}
	}
	for _, cb := range b.catchAll {
		cb(err)
	}
}
