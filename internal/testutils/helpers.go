// Package testutils provides shared fixtures for the runtime's own tests:
// a recording execution-context double and a canonical door-shaped state
// tree used across packages.
package testutils

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/espalier/pkg/blackboard"
	"github.com/aretw0/espalier/pkg/catalog"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
)

// RecordingContext is a MachineContext double: it records everything a
// handler does to it instead of driving an engine.
type RecordingContext struct {
	BoardValue *blackboard.Board
	State      domain.State
	HasState   bool

	Raised  []any
	Emitted []any
	Errors  []error
}

var _ ports.MachineContext = (*RecordingContext)(nil)

// NewRecordingContext creates a double with an empty blackboard.
func NewRecordingContext() *RecordingContext {
	return &RecordingContext{BoardValue: blackboard.New()}
}

func (c *RecordingContext) Board() *blackboard.Board { return c.BoardValue }

func (c *RecordingContext) Current() (domain.State, bool) { return c.State, c.HasState }

func (c *RecordingContext) Raise(input any) { c.Raised = append(c.Raised, input) }

func (c *RecordingContext) Emit(output any) { c.Emitted = append(c.Emitted, output) }

func (c *RecordingContext) AddError(err error) { c.Errors = append(c.Errors, err) }

// Fixture kinds for the door machine shared by several test packages.
type (
	DoorClosed struct{}
	DoorOpen   struct{ Angle int }

	Push struct{}
	Pull struct{}
)

// DoorCatalog builds the canonical two-state door definition.
// Push opens, Pull closes; an open door re-pushed stays put.
func DoorCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	b := catalog.New("door")
	b.Initial(domain.KindOf[DoorClosed]())

	closed := b.Define(domain.KindOf[DoorClosed]())
	catalog.On(closed, func(mc ports.MachineContext, in Push) (domain.Transition, error) {
		return domain.GotoKind(DoorOpen{Angle: 90}), nil
	}, domain.KindOf[DoorOpen]())

	open := b.Define(domain.KindOf[DoorOpen]())
	catalog.On(open, func(mc ports.MachineContext, in Pull) (domain.Transition, error) {
		return domain.GotoKind(DoorClosed{}), nil
	}, domain.KindOf[DoorClosed]())
	catalog.On(open, func(mc ports.MachineContext, in Push) (domain.Transition, error) {
		return domain.ToSelf(), nil
	})

	cat, err := b.Build()
	require.NoError(t, err, "door catalog should compile")
	return cat
}
