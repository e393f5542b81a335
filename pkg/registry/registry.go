// Package registry keeps a process-wide, concurrency-safe catalogue of
// live engine instances for debugging and introspection. Entries hold
// weak references only: a tracked engine remains independently garbage
// collectible, and reclaimed engines silently vanish from enumeration.
//
// This is the only concurrency-hardened component of the runtime; engines
// living on different goroutines register and are enumerated here
// concurrently.
package registry

import (
	"runtime"
	"sync"
	"weak"

	"github.com/google/uuid"
)

// DefaultSweepInterval is how many registrations pass between sweeps of
// dead entries.
const DefaultSweepInterval = 32

// Default is the process-wide registry engines track themselves in.
var Default = New()

type entry struct {
	id         uuid.UUID
	definition string
	deref      func() (any, bool)
}

// Registry maps instance ids to weakly-held engine references.
type Registry struct {
	mu            sync.RWMutex
	entries       map[uuid.UUID]*entry
	registrations uint64
	sweepEvery    uint64
	disabled      bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithSweepEvery sets how many registrations pass between sweeps.
// n <= 0 disables periodic sweeping.
func WithSweepEvery(n int) Option {
	return func(r *Registry) {
		if n <= 0 {
			r.sweepEvery = 0
			return
		}
		r.sweepEvery = uint64(n)
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries:    make(map[uuid.UUID]*entry),
		sweepEvery: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetEnabled switches monitoring on or off. While disabled, Track is a
// no-op; existing entries are kept.
func (r *Registry) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled = !enabled
}

// Enabled reports whether monitoring is on.
func (r *Registry) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.disabled
}

// Track stores a weak relation from id to v. A no-op while monitoring is
// disabled. Every Nth registration sweeps entries whose target has been
// reclaimed, and reclamation of v itself untracks it eagerly.
func Track[T any](r *Registry, id uuid.UUID, definition string, v *T) {
	if !r.Enabled() {
		return
	}

	w := weak.Make(v)
	e := &entry{
		id:         id,
		definition: definition,
		deref: func() (any, bool) {
			p := w.Value()
			if p == nil {
				return nil, false
			}
			return p, true
		},
	}

	r.mu.Lock()
	r.entries[id] = e
	r.registrations++
	if r.sweepEvery > 0 && r.registrations%r.sweepEvery == 0 {
		r.sweepLocked()
	}
	r.mu.Unlock()

	// The cleanup must not capture v, or it would never run.
	runtime.AddCleanup(v, func(id uuid.UUID) { r.Untrack(id) }, id)
}

// Untrack removes the relation for id if present.
func (r *Registry) Untrack(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// ActiveInstances dereferences every weak relation and returns the ones
// still alive. The result is always correct but possibly stale: an
// instance reclaimed while enumeration runs may or may not appear.
func (r *Registry) ActiveInstances() []any {
	var out []any
	for _, e := range r.snapshot() {
		if v, ok := e.deref(); ok {
			out = append(out, v)
		}
	}
	return out
}

// Instances returns the live tracked instances of concrete type *T.
func Instances[T any](r *Registry) []*T {
	var out []*T
	for _, e := range r.snapshot() {
		v, ok := e.deref()
		if !ok {
			continue
		}
		if t, ok := v.(*T); ok {
			out = append(out, t)
		}
	}
	return out
}

// InstancesMatching filters the live snapshot with a predicate.
func (r *Registry) InstancesMatching(pred func(any) bool) []any {
	var out []any
	for _, v := range r.ActiveInstances() {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// InstancesOf returns the live instances tracked under a definition name.
func (r *Registry) InstancesOf(definition string) []any {
	var out []any
	for _, e := range r.snapshot() {
		if e.definition != definition {
			continue
		}
		if v, ok := e.deref(); ok {
			out = append(out, v)
		}
	}
	return out
}

// InstancesByDefinition groups the live snapshot by definition name.
func (r *Registry) InstancesByDefinition() map[string][]any {
	out := make(map[string][]any)
	for _, e := range r.snapshot() {
		if v, ok := e.deref(); ok {
			out[e.definition] = append(out[e.definition], v)
		}
	}
	return out
}

// ActiveInstanceCount recomputes liveness on every call rather than
// trusting a cached counter.
func (r *Registry) ActiveInstanceCount() int {
	n := 0
	for _, e := range r.snapshot() {
		if _, ok := e.deref(); ok {
			n++
		}
	}
	return n
}

// Reset drops every entry. Test-only escape hatch.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[uuid.UUID]*entry)
	r.registrations = 0
}

// ForceCleanup drops every entry whose target has been reclaimed.
// Test-only escape hatch; normal operation sweeps lazily.
func (r *Registry) ForceCleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
}

// snapshot copies the entry set under the read lock. Dereferencing weak
// relations is individually safe and happens outside the lock.
func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// sweepLocked removes dead entries. Callers hold the write lock.
func (r *Registry) sweepLocked() {
	for id, e := range r.entries {
		if _, ok := e.deref(); !ok {
			delete(r.entries, id)
		}
	}
}
