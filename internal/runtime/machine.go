// Package runtime implements the transition engine: input routing,
// hierarchical enter/exit ordering, the reentrant input queue, and the
// restore pipeline. The machine is single-threaded and reentrant, never
// concurrent; callers needing cross-goroutine access synchronize
// externally.
package runtime

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/pkg/binding"
	"github.com/aretw0/espalier/pkg/blackboard"
	"github.com/aretw0/espalier/pkg/catalog"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
)

// InitialFunc computes the first transition of a machine. It is invoked at
// most once per machine lifetime, unless a restore overrides it.
type InitialFunc func(mc ports.MachineContext) (domain.Transition, error)

// Machine runs the transition algorithm for one state tree.
type Machine struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
	hub     *binding.Hub
	board   *blackboard.Board

	current     domain.State
	hasCurrent  bool
	everCurrent bool

	restored      *domain.State
	suppressEnter bool

	started    bool
	processing bool
	queue      []any

	initial InitialFunc
	onStart func(ports.MachineContext)
	onStop  func(ports.MachineContext)
	onError func(error)

	mc *machineContext
}

// NewMachine creates a stopped machine over a compiled catalog.
func NewMachine(cat *catalog.Catalog, opts ...Option) *Machine {
	m := &Machine{
		catalog: cat,
		logger:  logging.NewNop(),
		hub:     binding.NewHub(),
		board:   blackboard.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.mc = &machineContext{m: m}
	return m
}

// Catalog returns the machine's compiled definition.
func (m *Machine) Catalog() *catalog.Catalog { return m.catalog }

// Board returns the machine's blackboard.
func (m *Machine) Board() *blackboard.Board { return m.board }

// Hub returns the broadcast hub bindings attach to.
func (m *Machine) Hub() *binding.Hub { return m.hub }

// Context returns the machine's execution context.
func (m *Machine) Context() ports.MachineContext { return m.mc }

// Current returns the current state, if one exists. The current state is
// absent before Start and after Stop, never in between.
func (m *Machine) Current() (domain.State, bool) {
	return m.current, m.hasCurrent
}

// IsStarted reports whether the machine is between Start and Stop.
func (m *Machine) IsStarted() bool { return m.started }

// IsProcessing reports whether an input is mid-flight.
func (m *Machine) IsProcessing() bool { return m.processing }

// Start materializes the first state: a pending restored state if one
// exists, otherwise the target of the initial transition rule. A no-op if
// the machine is already started or processing.
func (m *Machine) Start() error {
	if m.started || m.processing {
		return nil
	}

	var tr domain.Transition
	runEnter := true
	if m.restored != nil {
		tr = domain.Goto(*m.restored)
		runEnter = !m.suppressEnter
	} else {
		var err error
		tr, err = m.initialTransition()
		if err != nil {
			return fmt.Errorf("initial transition: %w", err)
		}
	}
	m.restored = nil
	m.suppressEnter = false

	m.started = true
	m.processing = true

	target := tr.Target
	if tr.Effect != nil {
		tr.Effect(&target)
	}
	m.applyTransition(target, nil, runEnter)

	m.drain()
	if m.onStart != nil {
		m.onStart(m.mc)
	}
	m.drain()
	m.processing = false

	m.logger.Debug("machine started", "state", domain.KindName(m.current.Kind))
	return nil
}

// Stop detaches the current state, clears the input queue and leaves the
// machine restartable. A no-op while processing or when not started.
func (m *Machine) Stop() {
	if m.processing || !m.started {
		return
	}
	if m.onStop != nil {
		m.onStop(m.mc)
	}

	if m.hasCurrent {
		// Exit callbacks run against an absent next state; inputs they
		// raise land on the queue and are discarded below.
		m.processing = true
		prev := m.current
		for _, fn := range m.catalog.ExitChain(prev.Kind) {
			if err := m.safeExit(fn, prev); err != nil {
				m.addError(&domain.HandlerError{StateKind: prev.Kind, Stage: domain.StageExit, Err: err})
			}
		}
		for _, fn := range m.catalog.DetachFuncs(prev.Kind) {
			fn(m.mc, prev)
		}
		m.processing = false
	}

	m.queue = nil
	m.current = domain.State{}
	m.hasCurrent = false
	m.started = false
	m.logger.Debug("machine stopped")
}

// Input routes x to the current state's handler. While another input is
// mid-flight the value is queued (strict FIFO) and the pre-input state is
// returned unchanged; otherwise x is processed immediately and every input
// queued as a side effect is drained before returning.
func (m *Machine) Input(x any) domain.State {
	if !m.started {
		m.logger.Warn("input before start dropped", "kind", domain.KindName(domain.KindOfValue(x)))
		return m.current
	}
	if m.processing {
		m.queue = append(m.queue, x)
		return m.current
	}

	m.processing = true
	m.processOne(x)
	m.drain()
	m.processing = false
	return m.current
}

// drain processes queued inputs in submission order. Inputs appended
// during draining are picked up by the same loop; the queue, not the call
// stack, carries the recursion.
func (m *Machine) drain() {
	for len(m.queue) > 0 {
		x := m.queue[0]
		m.queue = m.queue[1:]
		m.processOne(x)
	}
}

// processOne handles a single input end to end.
func (m *Machine) processOne(x any) {
	inKind := domain.KindOfValue(x)
	prev := m.current

	handler, handled := m.catalog.HandlerFor(prev.Kind, inKind)

	var tr domain.Transition
	var handlerErr error
	if handled {
		tr, handlerErr = m.safeDispatch(handler, x)
	}

	// The raw input reaches bindings unconditionally, before the machine
	// decides whether the state actually changed.
	m.hub.PublishInput(x)

	if !handled {
		m.logger.Debug("input has no handler, dropped",
			"state", domain.KindName(prev.Kind), "input", domain.KindName(inKind))
		return
	}
	if handlerErr != nil {
		m.addError(&domain.HandlerError{
			StateKind: prev.Kind,
			InputKind: inKind,
			Stage:     domain.StageInput,
			Err:       handlerErr,
		})
		return
	}

	target := tr.Target
	if tr.IsToSelf() {
		target = prev
	}
	if tr.Effect != nil {
		tr.Effect(&target)
	}
	m.applyTransition(target, inKind, true)
}

// applyTransition compares target to the current state by structural
// equivalence and runs the exit/detach/attach/enter pipeline when they
// differ. Equivalent targets only rebind the current reference: no
// lifecycle callbacks, no state broadcast.
func (m *Machine) applyTransition(target domain.State, inputKind domain.Kind, runEnter bool) {
	prev, hadPrev := m.current, m.hasCurrent

	if hadPrev && prev.EquivalentTo(target) {
		m.current = target
		return
	}

	if hadPrev {
		for _, fn := range m.catalog.ExitChain(prev.Kind) {
			if err := m.safeExit(fn, prev); err != nil {
				m.addError(&domain.HandlerError{
					StateKind: prev.Kind,
					InputKind: inputKind,
					Stage:     domain.StageExit,
					Err:       err,
				})
				return
			}
		}
		for _, fn := range m.catalog.DetachFuncs(prev.Kind) {
			fn(m.mc, prev)
		}
	}

	m.current = target
	m.hasCurrent = true
	m.everCurrent = true

	for _, fn := range m.catalog.AttachFuncs(target.Kind) {
		fn(m.mc, target)
	}

	if runEnter {
		for _, fn := range m.catalog.EnterChain(target.Kind) {
			if err := m.safeEnter(fn, target); err != nil {
				m.addError(&domain.HandlerError{
					StateKind: target.Kind,
					InputKind: inputKind,
					Stage:     domain.StageEnter,
					Err:       err,
				})
				m.revertTo(prev, hadPrev)
				return
			}
		}
	}

	m.hub.PublishState(target, m.catalog.Lineage(target.Kind))
	m.logger.Debug("state changed",
		"from", domain.KindName(prev.Kind), "to", domain.KindName(target.Kind))
}

// revertTo restores the pre-transition state after an enter callback
// failure, preserving machine integrity without replaying enter effects.
func (m *Machine) revertTo(prev domain.State, hadPrev bool) {
	failed := m.current
	for _, fn := range m.catalog.DetachFuncs(failed.Kind) {
		fn(m.mc, failed)
	}
	m.current = prev
	m.hasCurrent = hadPrev
	if hadPrev {
		for _, fn := range m.catalog.AttachFuncs(prev.Kind) {
			fn(m.mc, prev)
		}
	}
}

// ForceReset bypasses handler dispatch and installs state as current via
// the usual exit/attach/enter pipeline. It fails while an input is being
// processed, and before Start, because both would confuse the pipeline's
// notion of the current state.
func (m *Machine) ForceReset(state domain.State) error {
	if m.processing {
		return &domain.InvalidOperationError{Op: "ForceReset", Reason: "machine is processing an input"}
	}
	if !m.started {
		return &domain.InvalidOperationError{Op: "ForceReset", Reason: "machine is not started"}
	}
	if !m.catalog.Defined(state.Kind) {
		return fmt.Errorf("force reset to %s: %w", domain.KindName(state.Kind), domain.ErrKindNotFound)
	}

	m.processing = true
	m.applyTransition(state, nil, true)
	m.drain()
	m.processing = false
	return nil
}

// RestoreFrom copies every blackboard entry from src by overwrite and
// installs src's current (or previously restored) state as this machine's
// pending restored state, consumed by the next Start. runEnter=false
// suppresses enter callbacks on that materialization, for restores whose
// side effects already happened once.
func (m *Machine) RestoreFrom(src *Machine, runEnter bool) error {
	var state domain.State
	switch {
	case src.hasCurrent:
		state = src.current
	case src.restored != nil:
		state = *src.restored
	default:
		return &domain.InvalidOperationError{Op: "RestoreFrom", Reason: "source machine was never started"}
	}

	m.board.CopyFrom(src.board)
	restored := state
	m.restored = &restored
	m.suppressEnter = !runEnter
	return nil
}

// RestoreState installs a pending state on a machine that has never
// produced a current state; any later call fails. Enter callbacks do not
// run when the state materializes.
func (m *Machine) RestoreState(state domain.State) error {
	if m.everCurrent {
		return &domain.InvalidOperationError{Op: "RestoreState", Reason: "machine already produced a current state"}
	}
	if !m.catalog.Defined(state.Kind) {
		return fmt.Errorf("restore state %s: %w", domain.KindName(state.Kind), domain.ErrKindNotFound)
	}
	restored := state
	m.restored = &restored
	m.suppressEnter = true
	return nil
}

// Restored returns the pending restored state, if any.
func (m *Machine) Restored() (domain.State, bool) {
	if m.restored == nil {
		return domain.State{}, false
	}
	return *m.restored, true
}

// Equals reports snapshot equality: same definition, structurally
// equivalent current states and identical blackboard contents.
func (m *Machine) Equals(o *Machine) bool {
	if m.catalog != o.catalog {
		return false
	}
	if m.hasCurrent != o.hasCurrent {
		return false
	}
	if m.hasCurrent && !m.current.EquivalentTo(o.current) {
		return false
	}
	return m.board.Equal(o.board)
}

// initialTransition resolves the first transition: the engine-level rule
// if configured, else the catalog's declared initial kind with a zero
// payload.
func (m *Machine) initialTransition() (domain.Transition, error) {
	if m.initial != nil {
		return m.initial(m.mc)
	}
	k := m.catalog.Initial()
	if k == nil {
		return domain.Transition{}, &domain.InvalidOperationError{
			Op: "Start", Reason: "no initial transition rule and no declared initial kind",
		}
	}
	return domain.Goto(zeroState(k)), nil
}

// emitOutput announces an output to bindings.
func (m *Machine) emitOutput(v any) {
	m.hub.PublishOutput(v)
}

// addError delivers a handler failure: the on-error hook first when set,
// then always the bindings' Catch surfaces.
func (m *Machine) addError(err error) {
	m.logger.Debug("handler error", "err", err)
	if m.onError != nil {
		m.onError(err)
	}
	m.hub.PublishError(err)
}

// safeDispatch invokes an input handler, converting panics to errors so
// no failure unwinds past the machine boundary.
func (m *Machine) safeDispatch(h catalog.Handler, input any) (tr domain.Transition, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(m.mc, input)
}

func (m *Machine) safeEnter(fn catalog.EnterFunc, s domain.State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(m.mc, s)
}

func (m *Machine) safeExit(fn catalog.ExitFunc, s domain.State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(m.mc, s)
}
