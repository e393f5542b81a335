package espalier

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/internal/runtime"
	"github.com/aretw0/espalier/pkg/binding"
	"github.com/aretw0/espalier/pkg/blackboard"
	"github.com/aretw0/espalier/pkg/catalog"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
	"github.com/aretw0/espalier/pkg/registry"
)

// Engine is the high-level entry point for the espalier library.
// It wraps the internal runtime machine and registers itself with the
// instance registry unless its definition opted out.
type Engine struct {
	machine  *runtime.Machine
	id       uuid.UUID
	logger   *slog.Logger
	registry *registry.Registry

	runtimeOpts []runtime.Option
	untracked   bool
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithInitialTransition sets the rule that computes the first state,
// overriding the catalog's declared initial kind.
func WithInitialTransition(fn runtime.InitialFunc) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithInitial(fn))
	}
}

// WithOnStart registers a hook run once the first state materializes.
func WithOnStart(fn func(ports.MachineContext)) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithOnStart(fn))
	}
}

// WithOnStop registers a hook run at the beginning of Stop.
func WithOnStop(fn func(ports.MachineContext)) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithOnStop(fn))
	}
}

// WithOnError registers a hook receiving every handler failure before it
// reaches bindings' Catch registrations.
func WithOnError(fn func(error)) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithOnError(fn))
	}
}

// WithRegistry tracks the engine in a specific registry instead of the
// package default.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithoutTracking opts this single instance out of registry monitoring,
// regardless of its definition.
func WithoutTracking() Option {
	return func(e *Engine) {
		e.untracked = true
	}
}

// New initializes an Engine over a compiled catalog.
func New(cat *catalog.Catalog, opts ...Option) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}

	eng := &Engine{
		id:       uuid.New(),
		registry: registry.Default,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	eng.logger = eng.logger.With("machine", eng.id.String(), "definition", cat.Name())

	runtimeOpts := append([]runtime.Option{runtime.WithLogger(eng.logger)}, eng.runtimeOpts...)
	eng.machine = runtime.NewMachine(cat, runtimeOpts...)

	if cat.Tracked() && !eng.untracked {
		registry.Track(eng.registry, eng.id, cat.Name(), eng)
	}

	return eng, nil
}

// ID returns the engine's stable instance identifier.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Definition returns the compiled catalog the engine runs.
func (e *Engine) Definition() *catalog.Catalog {
	return e.machine.Catalog()
}

// Board returns the engine's blackboard.
func (e *Engine) Board() *blackboard.Board {
	return e.machine.Board()
}

// Context returns the execution context handlers run against.
func (e *Engine) Context() ports.MachineContext {
	return e.machine.Context()
}

// Start materializes the first state. A no-op if already started.
func (e *Engine) Start() error {
	return e.machine.Start()
}

// Stop detaches the current state and clears the queue. A no-op if not
// started or mid-processing.
func (e *Engine) Stop() {
	e.machine.Stop()
}

// Input routes x to the current state's handler and returns the resulting
// current state. Reentrant calls queue FIFO behind the triggering input.
func (e *Engine) Input(x any) domain.State {
	return e.machine.Input(x)
}

// ForceReset bypasses handler dispatch and installs state as current.
// Fails while processing and before Start.
func (e *Engine) ForceReset(state domain.State) error {
	return e.machine.ForceReset(state)
}

// RestoreFrom copies src's blackboard and installs its current state as
// this engine's pending restored state, consumed on the next Start.
// runEnter=false suppresses enter callbacks on that materialization.
func (e *Engine) RestoreFrom(src *Engine, runEnter bool) error {
	return e.machine.RestoreFrom(src.machine, runEnter)
}

// RestoreState installs a pending state; only legal before the engine has
// ever produced a current state.
func (e *Engine) RestoreState(state domain.State) error {
	return e.machine.RestoreState(state)
}

// CurrentState returns the current state, if one exists.
func (e *Engine) CurrentState() (domain.State, bool) {
	return e.machine.Current()
}

// IsStarted reports whether the engine is between Start and Stop.
func (e *Engine) IsStarted() bool {
	return e.machine.IsStarted()
}

// IsProcessing reports whether an input is mid-flight.
func (e *Engine) IsProcessing() bool {
	return e.machine.IsProcessing()
}

// Equals reports snapshot equality with another engine: same definition,
// structurally equivalent current states, identical blackboards.
func (e *Engine) Equals(o *Engine) bool {
	if o == nil {
		return false
	}
	return e.machine.Equals(o.machine)
}

// NewBinding creates a binding attached to this engine.
func (e *Engine) NewBinding() *binding.Binding {
	return binding.New(e.machine.Hub())
}

// AttachBinding registers an externally constructed binding.
func (e *Engine) AttachBinding(b *binding.Binding) {
	e.machine.Hub().AttachBinding(b)
}

// DetachBinding removes a binding.
func (e *Engine) DetachBinding(b *binding.Binding) {
	e.machine.Hub().DetachBinding(b)
}
