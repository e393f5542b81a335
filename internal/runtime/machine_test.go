package runtime_test

import (
	"errors"
	"testing"

	"github.com/aretw0/espalier/internal/runtime"
	"github.com/aretw0/espalier/pkg/binding"
	"github.com/aretw0/espalier/pkg/blackboard"
	"github.com/aretw0/espalier/pkg/catalog"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
)

// Fixture kinds: two flat states plus a counter on the blackboard.
type (
	stateA struct{}
	stateB struct{}

	goToA     struct{}
	goToB     struct{}
	increment struct{}

	counter struct{ N int }
)

// buildFlat wires the A/B machine: A handles goToB, B handles goToA and
// increment (mutating the shared counter in place).
func buildFlat(t *testing.T) *catalog.Catalog {
	t.Helper()

	b := catalog.New("flat")
	b.Initial(domain.KindOf[stateA]())

	a := b.Define(domain.KindOf[stateA]())
	catalog.On(a, func(mc ports.MachineContext, in goToB) (domain.Transition, error) {
		return domain.GotoKind(stateB{}), nil
	})

	sb := b.Define(domain.KindOf[stateB]())
	catalog.On(sb, func(mc ports.MachineContext, in goToA) (domain.Transition, error) {
		return domain.GotoKind(stateA{}), nil
	})
	catalog.On(sb, func(mc ports.MachineContext, in increment) (domain.Transition, error) {
		c, err := blackboard.Get[counter](mc.Board())
		if err != nil {
			return domain.Transition{}, err
		}
		c.N++
		return domain.ToSelf(), nil
	})

	cat, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return cat
}

func newFlatMachine(t *testing.T) *runtime.Machine {
	t.Helper()
	m := runtime.NewMachine(buildFlat(t))
	if err := blackboard.Set(m.Board(), &counter{}); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	return m
}

func currentKind(t *testing.T, m *runtime.Machine) domain.Kind {
	t.Helper()
	s, ok := m.Current()
	if !ok {
		t.Fatal("expected a current state")
	}
	return s.Kind
}

func TestMachine_StartStopLifecycle(t *testing.T) {
	m := newFlatMachine(t)

	if m.IsStarted() {
		t.Error("machine should not be started before Start")
	}
	if _, ok := m.Current(); ok {
		t.Error("no current state should exist before Start")
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !m.IsStarted() {
		t.Error("machine should be started after Start")
	}
	if got := currentKind(t, m); got != domain.KindOf[stateA]() {
		t.Errorf("expected initial state A, got %s", domain.KindName(got))
	}

	// Repeated Start is an idempotent no-op.
	if err := m.Start(); err != nil {
		t.Fatalf("repeated Start failed: %v", err)
	}

	m.Stop()
	if m.IsStarted() {
		t.Error("machine should not be started after Stop")
	}
	if _, ok := m.Current(); ok {
		t.Error("current state should be absent after Stop")
	}

	// Repeated Stop is an idempotent no-op.
	m.Stop()
	if m.IsStarted() {
		t.Error("machine should stay stopped")
	}
}

func TestMachine_Scenario_FlatTransitions(t *testing.T) {
	m := newFlatMachine(t)
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s := m.Input(goToB{})
	if s.Kind != domain.KindOf[stateB]() {
		t.Fatalf("expected B after goToB, got %s", domain.KindName(s.Kind))
	}

	for i := 0; i < 3; i++ {
		s = m.Input(increment{})
		if s.Kind != domain.KindOf[stateB]() {
			t.Fatalf("increment %d left state %s, want B", i, domain.KindName(s.Kind))
		}
	}
	c, err := blackboard.Get[counter](m.Board())
	if err != nil {
		t.Fatalf("counter vanished: %v", err)
	}
	if c.N != 3 {
		t.Errorf("expected counter 3, got %d", c.N)
	}

	s = m.Input(goToA{})
	if s.Kind != domain.KindOf[stateA]() {
		t.Errorf("expected A after goToA, got %s", domain.KindName(s.Kind))
	}
}

func TestMachine_UnhandledInputIsDropped(t *testing.T) {
	m := newFlatMachine(t)
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var watched int
	b := binding.New(m.Hub())
	binding.Watch(b, func(in goToA) { watched++ })

	// State A has no handler for goToA; the input is silently dropped.
	s := m.Input(goToA{})
	if s.Kind != domain.KindOf[stateA]() {
		t.Errorf("state should be unchanged, got %s", domain.KindName(s.Kind))
	}
	if watched != 1 {
		t.Errorf("Watch should fire even without a handler, fired %d times", watched)
	}
}

func TestMachine_HandlerFailureKeepsState(t *testing.T) {
	boom := errors.New("boom")

	b := catalog.New("failing")
	b.Initial(domain.KindOf[stateA]())
	a := b.Define(domain.KindOf[stateA]())
	catalog.On(a, func(mc ports.MachineContext, in goToB) (domain.Transition, error) {
		return domain.Transition{}, boom
	})
	cat, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var hooked []error
	m := runtime.NewMachine(cat, runtime.WithOnError(func(err error) { hooked = append(hooked, err) }))

	var caught []*domain.HandlerError
	bd := binding.New(m.Hub())
	binding.Catch(bd, func(e *domain.HandlerError) { caught = append(caught, e) })

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The failure must not propagate to the caller of Input.
	s := m.Input(goToB{})
	if s.Kind != domain.KindOf[stateA]() {
		t.Errorf("failed handler must leave state unchanged, got %s", domain.KindName(s.Kind))
	}

	if len(caught) != 1 {
		t.Fatalf("expected exactly one caught error, got %d", len(caught))
	}
	if !errors.Is(caught[0], boom) {
		t.Errorf("caught error should wrap the handler failure, got %v", caught[0])
	}
	if caught[0].Stage != domain.StageInput {
		t.Errorf("expected input stage, got %s", caught[0].Stage)
	}

	// The on-error hook sees the failure too; its presence never starves
	// the bindings.
	if len(hooked) != 1 {
		t.Errorf("expected the hook to receive one error, got %d", len(hooked))
	}
}

func TestMachine_PanickingHandlerIsContained(t *testing.T) {
	b := catalog.New("panicking")
	b.Initial(domain.KindOf[stateA]())
	a := b.Define(domain.KindOf[stateA]())
	catalog.On(a, func(mc ports.MachineContext, in goToB) (domain.Transition, error) {
		panic("handler exploded")
	})
	cat, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	m := runtime.NewMachine(cat)
	var caught []error
	binding.New(m.Hub()).CatchAll(func(err error) { caught = append(caught, err) })

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s := m.Input(goToB{})
	if s.Kind != domain.KindOf[stateA]() {
		t.Errorf("panicking handler must leave state unchanged, got %s", domain.KindName(s.Kind))
	}
	if len(caught) != 1 {
		t.Fatalf("expected one error event, got %d", len(caught))
	}
}

func TestMachine_SelfTransitionSkipsLifecycle(t *testing.T) {
	var entered, exited, notified int

	b := catalog.New("selfie")
	b.Initial(domain.KindOf[stateA]())
	a := b.Define(domain.KindOf[stateA]())
	a.Enter(func(mc ports.MachineContext, s domain.State) error {
		entered++
		return nil
	})
	a.Exit(func(mc ports.MachineContext, s domain.State) error {
		exited++
		return nil
	})
	catalog.On(a, func(mc ports.MachineContext, in increment) (domain.Transition, error) {
		return domain.ToSelf(), nil
	})
	cat, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	m := runtime.NewMachine(cat)
	bd := binding.New(m.Hub())
	binding.When[stateA](bd, func(change binding.StateChange) { notified++ })

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if entered != 1 || notified != 1 {
		t.Fatalf("start should enter and notify once, got enter=%d notify=%d", entered, notified)
	}

	m.Input(increment{})
	m.Input(increment{})

	if entered != 1 {
		t.Errorf("self-transition must not re-enter, enter count %d", entered)
	}
	if exited != 0 {
		t.Errorf("self-transition must not exit, exit count %d", exited)
	}
	if notified != 1 {
		t.Errorf("self-transition must not notify When, notify count %d", notified)
	}
}

func TestMachine_ForceReset(t *testing.T) {
	m := newFlatMachine(t)

	if err := m.ForceReset(domain.Of(stateB{})); err == nil {
		t.Error("ForceReset before Start should fail")
	} else if !domain.IsInvalidOperation(err) {
		t.Errorf("expected InvalidOperationError, got %v", err)
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := m.ForceReset(domain.Of(stateB{})); err != nil {
		t.Fatalf("ForceReset failed: %v", err)
	}
	if got := currentKind(t, m); got != domain.KindOf[stateB]() {
		t.Errorf("expected B after ForceReset, got %s", domain.KindName(got))
	}
}

func TestMachine_ForceResetWhileProcessingFails(t *testing.T) {
	var resetErr error

	b := catalog.New("nested-reset")
	b.Initial(domain.KindOf[stateA]())

	var m *runtime.Machine
	a := b.Define(domain.KindOf[stateA]())
	catalog.On(a, func(mc ports.MachineContext, in goToB) (domain.Transition, error) {
		resetErr = m.ForceReset(domain.Of(stateB{}))
		return domain.ToSelf(), nil
	})
	b.Define(domain.KindOf[stateB]())
	cat, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	m = runtime.NewMachine(cat)

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s := m.Input(goToB{})

	if resetErr == nil {
		t.Fatal("ForceReset while processing should fail")
	}
	if !domain.IsInvalidOperation(resetErr) {
		t.Errorf("expected InvalidOperationError, got %v", resetErr)
	}
	if s.Kind != domain.KindOf[stateA]() {
		t.Errorf("current state must be unchanged, got %s", domain.KindName(s.Kind))
	}
}

func TestMachine_Equals(t *testing.T) {
	cat := buildFlat(t)

	newM := func() *runtime.Machine {
		m := runtime.NewMachine(cat)
		if err := blackboard.Set(m.Board(), &counter{}); err != nil {
			t.Fatalf("seed counter: %v", err)
		}
		return m
	}

	m1, m2 := newM(), newM()
	if err := m1.Start(); err != nil {
		t.Fatalf("Start m1: %v", err)
	}
	if err := m2.Start(); err != nil {
		t.Fatalf("Start m2: %v", err)
	}

	if !m1.Equals(m2) {
		t.Error("independently started machines of one definition should be equal")
	}

	// One machine diverges.
	m1.Input(goToB{})
	m1.Input(increment{})
	if m1.Equals(m2) {
		t.Error("machines should differ after one received inputs")
	}

	// The other catches up.
	m2.Input(goToB{})
	m2.Input(increment{})
	if !m1.Equals(m2) {
		t.Error("machines should be equal again after identical inputs")
	}
}
