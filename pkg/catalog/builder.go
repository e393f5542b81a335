// Package catalog holds the behavior side table of a state tree: for each
// state kind, its parent, lifecycle callbacks, input handlers and declared
// observability metadata. Behavior is registered once per kind, never per
// instance, so state values stay structurally comparable.
package catalog

import (
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
)

// EnterFunc runs when a state of its kind becomes current.
type EnterFunc func(mc ports.MachineContext, s domain.State) error

// ExitFunc runs when a state of its kind is superseded.
type ExitFunc func(mc ports.MachineContext, s domain.State) error

// AttachFunc runs immediately when a state is bound to or unbound from an
// execution context. Ordering across attach callbacks is unspecified.
type AttachFunc func(mc ports.MachineContext, s domain.State)

// Handler processes one input and returns the resulting transition.
type Handler func(mc ports.MachineContext, input any) (domain.Transition, error)

// Builder accumulates state-kind definitions before compilation.
type Builder struct {
	name      string
	defs      map[domain.Kind]*StateDef
	order     []domain.Kind
	initial   domain.Kind
	shares    []domain.Kind
	untracked bool
}

// New creates a builder for a named machine definition.
func New(name string) *Builder {
	return &Builder{
		name: name,
		defs: make(map[domain.Kind]*StateDef),
	}
}

// Define creates (or returns the existing) definition for a state kind.
func (b *Builder) Define(kind domain.Kind) *StateDef {
	if d, ok := b.defs[kind]; ok {
		return d
	}
	d := &StateDef{
		kind:     kind,
		handlers: make(map[domain.Kind]Handler),
		edges:    make(map[domain.Kind]domain.Kind),
		emits:    make(map[Site][]domain.Kind),
	}
	b.defs[kind] = d
	b.order = append(b.order, kind)
	return d
}

// Initial declares the default initial state kind. An engine-level initial
// transition rule overrides it.
func (b *Builder) Initial(kind domain.Kind) *Builder {
	b.initial = kind
	return b
}

// Shares declares the blackboard kinds instances of this definition carry,
// so the snapshot codec can reconstruct them by name.
func (b *Builder) Shares(kinds ...domain.Kind) *Builder {
	b.shares = append(b.shares, kinds...)
	return b
}

// Untracked opts every engine instance of this definition out of registry
// monitoring.
func (b *Builder) Untracked() *Builder {
	b.untracked = true
	return b
}

// StateDef is the mutable definition of one state kind.
type StateDef struct {
	kind     domain.Kind
	parent   domain.Kind
	enter    []EnterFunc
	exit     []ExitFunc
	attach   []AttachFunc
	detach   []AttachFunc
	handlers map[domain.Kind]Handler
	edges    map[domain.Kind]domain.Kind
	emits    map[Site][]domain.Kind
	dupes    []domain.Kind // input kinds registered more than once
}

// Parent declares capability inheritance: this kind handles every input
// kind its ancestor chain declares, unless it overrides the handler.
func (d *StateDef) Parent(kind domain.Kind) *StateDef {
	d.parent = kind
	return d
}

// Enter appends an enter callback. Callbacks run in registration order,
// after every ancestor's enter callbacks.
func (d *StateDef) Enter(fn EnterFunc) *StateDef {
	d.enter = append(d.enter, fn)
	return d
}

// Exit appends an exit callback. Callbacks run in registration order,
// before any ancestor's exit callbacks.
func (d *StateDef) Exit(fn ExitFunc) *StateDef {
	d.exit = append(d.exit, fn)
	return d
}

// Attach appends a callback run when a state of this kind is bound to an
// execution context.
func (d *StateDef) Attach(fn AttachFunc) *StateDef {
	d.attach = append(d.attach, fn)
	return d
}

// Detach appends a callback run when a state of this kind is unbound.
func (d *StateDef) Detach(fn AttachFunc) *StateDef {
	d.detach = append(d.detach, fn)
	return d
}

// Emits declares the output kinds this state announces from a given site.
// Purely descriptive; consumed by the introspection export.
func (d *StateDef) Emits(site Site, kinds ...domain.Kind) *StateDef {
	d.emits[site] = append(d.emits[site], kinds...)
	return d
}

// Handle registers an untyped handler for an input kind, with optional
// declared target edges for introspection.
func (d *StateDef) Handle(input domain.Kind, h Handler, targets ...domain.Kind) *StateDef {
	if _, exists := d.handlers[input]; exists {
		d.dupes = append(d.dupes, input)
	}
	d.handlers[input] = h
	if len(targets) > 0 {
		d.edges[input] = targets[0]
	}
	return d
}

// On registers a typed handler for inputs of kind I. Methods cannot take
// type parameters, hence the package-level form; the returned def supports
// continued chaining.
func On[I any](d *StateDef, h func(mc ports.MachineContext, in I) (domain.Transition, error), targets ...domain.Kind) *StateDef {
	wrapped := func(mc ports.MachineContext, input any) (domain.Transition, error) {
		return h(mc, input.(I))
	}
	return d.Handle(domain.KindOf[I](), wrapped, targets...)
}
