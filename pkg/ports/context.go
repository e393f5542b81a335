package ports

import (
	"github.com/aretw0/espalier/pkg/blackboard"
	"github.com/aretw0/espalier/pkg/domain"
)

// MachineContext is the execution context a state is attached to while it
// is current. Input handlers and lifecycle callbacks receive it; the engine
// provides the real implementation and test doubles provide recording ones.
type MachineContext interface {
	// Board returns the blackboard shared by all states of the machine.
	Board() *blackboard.Board

	// Current returns the machine's current state, if any.
	Current() (domain.State, bool)

	// Raise submits an input to the owning machine. Calls made while the
	// machine is processing are queued and run strictly after the
	// triggering input completes.
	Raise(input any)

	// Emit announces an output value to all bound observers. Outputs have
	// no return value and no effect on the machine's state.
	Emit(output any)

	// AddError reports a failure as an error event, delivered to the
	// machine's on-error hook and to bound Catch observers.
	AddError(err error)
}
