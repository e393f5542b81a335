package catalog

import (
	"fmt"

	"github.com/aretw0/espalier/pkg/domain"
)

// Site names the context a state emits outputs from, for the benefit of
// external documentation tools.
type Site string

const (
	SiteEnter Site = "enter"
	SiteExit  Site = "exit"
	SiteOther Site = "other"
)

// SiteHandler returns the emission site for a named input handler.
func SiteHandler(input domain.Kind) Site {
	return Site("input:" + domain.KindName(input))
}

// compiledState is the immutable, flattened view of one state kind.
type compiledState struct {
	kind    domain.Kind
	parent  domain.Kind
	lineage []domain.Kind // self first, root last

	enterChain []EnterFunc // ancestor→descendant, registration order within a kind
	exitChain  []ExitFunc  // descendant→ancestor
	attach     []AttachFunc
	detach     []AttachFunc

	handlers map[domain.Kind]Handler // inherited handlers flattened, overrides applied

	ownInputs []domain.Kind
	edges     map[domain.Kind]domain.Kind
	emits     map[Site][]domain.Kind
}

// Catalog is the compiled, immutable behavior table for one machine
// definition. It is safe to share across engine instances.
type Catalog struct {
	name      string
	states    map[domain.Kind]*compiledState
	order     []domain.Kind
	initial   domain.Kind
	byName    map[string]domain.Kind
	shares    map[string]domain.Kind
	untracked bool
}

// Build validates the accumulated definitions and compiles them: parent
// chains are checked for unknown references and cycles, and each kind's
// dispatch table and lifecycle chains are flattened across its ancestry.
func (b *Builder) Build() (*Catalog, error) {
	var errs []error

	for _, kind := range b.order {
		d := b.defs[kind]
		if d.parent != nil {
			if _, ok := b.defs[d.parent]; !ok {
				errs = append(errs, &DefinitionError{Kind: kind,
					Reason: fmt.Sprintf("parent %s is not defined", domain.KindName(d.parent))})
			}
		}
		for _, in := range d.dupes {
			errs = append(errs, &DefinitionError{Kind: kind,
				Reason: fmt.Sprintf("input %s registered more than once", domain.KindName(in))})
		}
	}

	// Parent cycles would make flattening loop forever; detect them first.
	for _, kind := range b.order {
		seen := map[domain.Kind]bool{}
		for k := kind; k != nil; {
			if seen[k] {
				errs = append(errs, &DefinitionError{Kind: kind, Reason: "parent cycle"})
				break
			}
			seen[k] = true
			d, ok := b.defs[k]
			if !ok {
				break
			}
			k = d.parent
		}
	}

	if b.initial != nil {
		if _, ok := b.defs[b.initial]; !ok {
			errs = append(errs, &DefinitionError{Kind: b.initial, Reason: "initial kind is not defined"})
		}
	}

	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}

	c := &Catalog{
		name:      b.name,
		states:    make(map[domain.Kind]*compiledState, len(b.order)),
		order:     append([]domain.Kind(nil), b.order...),
		initial:   b.initial,
		byName:    make(map[string]domain.Kind),
		shares:    make(map[string]domain.Kind),
		untracked: b.untracked,
	}

	for _, kind := range b.order {
		chain := b.chainOf(kind) // self first, root last
		cs := &compiledState{
			kind:     kind,
			parent:   b.defs[kind].parent,
			lineage:  chain,
			handlers: make(map[domain.Kind]Handler),
			edges:    make(map[domain.Kind]domain.Kind),
			emits:    make(map[Site][]domain.Kind),
		}

		// Handlers flatten root-first so nearer kinds override.
		for i := len(chain) - 1; i >= 0; i-- {
			d := b.defs[chain[i]]
			for in, h := range d.handlers {
				cs.handlers[in] = h
			}
			cs.enterChain = append(cs.enterChain, d.enter...)
			cs.attach = append(cs.attach, d.attach...)
		}
		for _, k := range chain {
			d := b.defs[k]
			cs.exitChain = append(cs.exitChain, d.exit...)
			cs.detach = append(cs.detach, d.detach...)
		}

		own := b.defs[kind]
		for in := range own.handlers {
			cs.ownInputs = append(cs.ownInputs, in)
		}
		for in, target := range own.edges {
			cs.edges[in] = target
		}
		for site, kinds := range own.emits {
			cs.emits[site] = append([]domain.Kind(nil), kinds...)
		}

		c.states[kind] = cs
		c.byName[domain.KindName(kind)] = kind
	}

	for _, k := range b.shares {
		c.shares[domain.KindName(k)] = k
	}

	return c, nil
}

// chainOf returns kind's ancestry, self first.
func (b *Builder) chainOf(kind domain.Kind) []domain.Kind {
	var chain []domain.Kind
	for k := kind; k != nil; {
		chain = append(chain, k)
		d, ok := b.defs[k]
		if !ok {
			break
		}
		k = d.parent
	}
	return chain
}

// Name returns the definition name.
func (c *Catalog) Name() string { return c.name }

// Initial returns the declared initial kind, or nil.
func (c *Catalog) Initial() domain.Kind { return c.initial }

// Tracked reports whether instances participate in registry monitoring.
func (c *Catalog) Tracked() bool { return !c.untracked }

// Defined reports whether a state kind is part of this catalog.
func (c *Catalog) Defined(kind domain.Kind) bool {
	_, ok := c.states[kind]
	return ok
}

// Kinds returns every defined state kind in definition order.
func (c *Catalog) Kinds() []domain.Kind {
	return append([]domain.Kind(nil), c.order...)
}

// Lineage returns kind's ancestry, self first, root last. Undefined kinds
// yield a single-element chain.
func (c *Catalog) Lineage(kind domain.Kind) []domain.Kind {
	if cs, ok := c.states[kind]; ok {
		return append([]domain.Kind(nil), cs.lineage...)
	}
	return []domain.Kind{kind}
}

// HandlerFor resolves the effective handler of a state kind for an input
// kind, honoring ancestor inheritance and overrides.
func (c *Catalog) HandlerFor(state, input domain.Kind) (Handler, bool) {
	cs, ok := c.states[state]
	if !ok {
		return nil, false
	}
	h, ok := cs.handlers[input]
	return h, ok
}

// EnterChain returns the flattened enter callbacks, ancestor→descendant.
func (c *Catalog) EnterChain(kind domain.Kind) []EnterFunc {
	if cs, ok := c.states[kind]; ok {
		return append([]EnterFunc(nil), cs.enterChain...)
	}
	return nil
}

// ExitChain returns the flattened exit callbacks, descendant→ancestor.
func (c *Catalog) ExitChain(kind domain.Kind) []ExitFunc {
	if cs, ok := c.states[kind]; ok {
		return append([]ExitFunc(nil), cs.exitChain...)
	}
	return nil
}

// AttachFuncs returns the attach callbacks for a kind.
func (c *Catalog) AttachFuncs(kind domain.Kind) []AttachFunc {
	if cs, ok := c.states[kind]; ok {
		return append([]AttachFunc(nil), cs.attach...)
	}
	return nil
}

// DetachFuncs returns the detach callbacks for a kind.
func (c *Catalog) DetachFuncs(kind domain.Kind) []AttachFunc {
	if cs, ok := c.states[kind]; ok {
		return append([]AttachFunc(nil), cs.detach...)
	}
	return nil
}

// Parent returns the declared parent of a kind, or nil.
func (c *Catalog) Parent(kind domain.Kind) domain.Kind {
	if cs, ok := c.states[kind]; ok {
		return cs.parent
	}
	return nil
}

// DeclaredInputs returns the input kinds a state declares itself (not
// inherited), for introspection.
func (c *Catalog) DeclaredInputs(kind domain.Kind) []domain.Kind {
	if cs, ok := c.states[kind]; ok {
		return append([]domain.Kind(nil), cs.ownInputs...)
	}
	return nil
}

// HandledInputs returns every input kind a state handles, inherited
// handlers included.
func (c *Catalog) HandledInputs(kind domain.Kind) []domain.Kind {
	cs, ok := c.states[kind]
	if !ok {
		return nil
	}
	inputs := make([]domain.Kind, 0, len(cs.handlers))
	for in := range cs.handlers {
		inputs = append(inputs, in)
	}
	return inputs
}

// Edge returns the declared target kind for an input on a state, if any.
func (c *Catalog) Edge(state, input domain.Kind) (domain.Kind, bool) {
	cs, ok := c.states[state]
	if !ok {
		return nil, false
	}
	t, ok := cs.edges[input]
	return t, ok
}

// Emissions returns the declared output kinds of a state grouped by site.
func (c *Catalog) Emissions(kind domain.Kind) map[Site][]domain.Kind {
	cs, ok := c.states[kind]
	if !ok {
		return nil
	}
	out := make(map[Site][]domain.Kind, len(cs.emits))
	for site, kinds := range cs.emits {
		out[site] = append([]domain.Kind(nil), kinds...)
	}
	return out
}

// StateKindByName resolves a state kind from its stable name. Used by the
// snapshot codec.
func (c *Catalog) StateKindByName(name string) (domain.Kind, bool) {
	k, ok := c.byName[name]
	return k, ok
}

// ShareKindByName resolves a declared blackboard kind from its name.
func (c *Catalog) ShareKindByName(name string) (domain.Kind, bool) {
	k, ok := c.shares[name]
	return k, ok
}
