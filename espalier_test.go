package espalier_test

import (
	"log/slog"
	goruntime "runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/espalier"
	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/pkg/binding"
	"github.com/aretw0/espalier/pkg/blackboard"
	"github.com/aretw0/espalier/pkg/catalog"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
	"github.com/aretw0/espalier/pkg/registry"
)

type (
	closed struct{}
	open   struct{ Angle int }

	push struct{}
	pull struct{}

	creak struct{}

	wear struct{ Cycles int }
)

func doorCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	b := catalog.New("door")
	b.Initial(domain.KindOf[closed]())
	b.Shares(domain.KindOf[wear]())

	c := b.Define(domain.KindOf[closed]())
	catalog.On(c, func(mc ports.MachineContext, in push) (domain.Transition, error) {
		w, err := blackboard.Get[wear](mc.Board())
		if err != nil {
			return domain.Transition{}, err
		}
		w.Cycles++
		mc.Emit(creak{})
		return domain.GotoKind(open{Angle: 90}), nil
	}, domain.KindOf[open]())

	o := b.Define(domain.KindOf[open]())
	catalog.On(o, func(mc ports.MachineContext, in pull) (domain.Transition, error) {
		return domain.GotoKind(closed{}), nil
	}, domain.KindOf[closed]())

	cat, err := b.Build()
	require.NoError(t, err)
	return cat
}

func newDoor(t *testing.T, opts ...espalier.Option) *espalier.Engine {
	t.Helper()
	opts = append([]espalier.Option{espalier.WithoutTracking()}, opts...)
	e, err := espalier.New(doorCatalog(t), opts...)
	require.NoError(t, err)
	require.NoError(t, blackboard.Set(e.Board(), &wear{}))
	return e
}

func TestNewRequiresCatalog(t *testing.T) {
	_, err := espalier.New(nil)
	assert.Error(t, err)
}

func TestEngine_Identity(t *testing.T) {
	e1, e2 := newDoor(t), newDoor(t)

	assert.NotEqual(t, e1.ID(), e2.ID())
	assert.Equal(t, "door", e1.Definition().Name())
}

func TestEngine_EndToEnd(t *testing.T) {
	e := newDoor(t, espalier.WithLogger(logging.New(slog.LevelDebug)))

	var creaks int
	var changes []binding.StateChange
	b := e.NewBinding()
	defer b.Close()
	binding.Handle(b, func(creak) { creaks++ })
	b.WhenAll(func(c binding.StateChange) { changes = append(changes, c) })

	require.NoError(t, e.Start())
	require.True(t, e.IsStarted())

	s := e.Input(push{})
	assert.Equal(t, domain.KindOf[open](), s.Kind)
	assert.Equal(t, open{Angle: 90}, s.Data)
	assert.Equal(t, 1, creaks)

	s = e.Input(pull{})
	assert.Equal(t, domain.KindOf[closed](), s.Kind)

	// Start, push, pull: three actual state changes.
	assert.Len(t, changes, 3)

	w, err := blackboard.Get[wear](e.Board())
	require.NoError(t, err)
	assert.Equal(t, 1, w.Cycles)

	e.Stop()
	assert.False(t, e.IsStarted())
	_, ok := e.CurrentState()
	assert.False(t, ok)
}

func TestEngine_InitialTransitionOverride(t *testing.T) {
	e := newDoor(t, espalier.WithInitialTransition(
		func(mc ports.MachineContext) (domain.Transition, error) {
			return domain.GotoKind(open{Angle: 45}), nil
		}))

	require.NoError(t, e.Start())
	s, ok := e.CurrentState()
	require.True(t, ok)
	assert.Equal(t, open{Angle: 45}, s.Data)
}

func TestEngine_Hooks(t *testing.T) {
	var started, stopped int
	e := newDoor(t,
		espalier.WithOnStart(func(ports.MachineContext) { started++ }),
		espalier.WithOnStop(func(ports.MachineContext) { stopped++ }),
	)

	require.NoError(t, e.Start())
	e.Stop()
	require.NoError(t, e.Start())

	assert.Equal(t, 2, started)
	assert.Equal(t, 1, stopped)
}

func TestEngine_EqualsAcrossInstances(t *testing.T) {
	cat := doorCatalog(t)

	mk := func() *espalier.Engine {
		e, err := espalier.New(cat, espalier.WithoutTracking())
		require.NoError(t, err)
		require.NoError(t, blackboard.Set(e.Board(), &wear{}))
		require.NoError(t, e.Start())
		return e
	}

	e1, e2 := mk(), mk()
	assert.True(t, e1.Equals(e2))

	e1.Input(push{})
	assert.False(t, e1.Equals(e2))

	e2.Input(push{})
	assert.True(t, e1.Equals(e2))
}

func TestEngine_RestoreFrom(t *testing.T) {
	cat := doorCatalog(t)

	src, err := espalier.New(cat, espalier.WithoutTracking())
	require.NoError(t, err)
	require.NoError(t, blackboard.Set(src.Board(), &wear{}))
	require.NoError(t, src.Start())
	src.Input(push{})

	dst, err := espalier.New(cat, espalier.WithoutTracking())
	require.NoError(t, err)
	require.NoError(t, dst.RestoreFrom(src, false))
	require.NoError(t, dst.Start())

	assert.True(t, dst.Equals(src))
}

func TestEngine_RegistryTracking(t *testing.T) {
	reg := registry.New()
	cat := doorCatalog(t)

	engines := make([]*espalier.Engine, 3)
	for i := range engines {
		e, err := espalier.New(cat, espalier.WithRegistry(reg))
		require.NoError(t, err)
		engines[i] = e
	}
	require.Equal(t, 3, reg.ActiveInstanceCount())

	doors := registry.Instances[espalier.Engine](reg)
	assert.Len(t, doors, 3)
	assert.Len(t, reg.InstancesOf("door"), 3)

	// Dropping the strong references makes the engines collectible; the
	// registry never keeps them alive.
	goruntime.KeepAlive(engines)
	for i := range engines {
		engines[i] = nil
	}
	goruntime.GC()
	goruntime.GC()
	reg.ForceCleanup()
	assert.Zero(t, reg.ActiveInstanceCount())
}

func TestEngine_WithoutTrackingSkipsRegistry(t *testing.T) {
	reg := registry.New()

	e, err := espalier.New(doorCatalog(t),
		espalier.WithRegistry(reg), espalier.WithoutTracking())
	require.NoError(t, err)

	assert.Zero(t, reg.ActiveInstanceCount())
	goruntime.KeepAlive(e)
}

func TestEngine_UntrackedDefinitionSkipsRegistry(t *testing.T) {
	reg := registry.New()

	b := catalog.New("ephemeral")
	b.Define(domain.KindOf[closed]())
	b.Initial(domain.KindOf[closed]())
	b.Untracked()
	cat, err := b.Build()
	require.NoError(t, err)

	e, err := espalier.New(cat, espalier.WithRegistry(reg))
	require.NoError(t, err)

	assert.Zero(t, reg.ActiveInstanceCount())
	goruntime.KeepAlive(e)
}
