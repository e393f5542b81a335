package runtime

import (
	"reflect"

	"github.com/aretw0/espalier/pkg/blackboard"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
)

// machineContext is the real execution context states are attached to.
type machineContext struct {
	m *Machine
}

var _ ports.MachineContext = (*machineContext)(nil)

func (c *machineContext) Board() *blackboard.Board {
	return c.m.board
}

func (c *machineContext) Current() (domain.State, bool) {
	return c.m.Current()
}

func (c *machineContext) Raise(input any) {
	c.m.Input(input)
}

func (c *machineContext) Emit(output any) {
	c.m.emitOutput(output)
}

func (c *machineContext) AddError(err error) {
	c.m.addError(err)
}

// zeroState builds a state of kind k carrying k's zero payload.
func zeroState(k domain.Kind) domain.State {
	return domain.State{Kind: k, Data: reflect.New(k).Elem().Interface()}
}
