package domain

import "reflect"

// State is one behavioral mode of a machine: a kind identity plus its
// comparable data payload. Behavior (enter/exit callbacks, input handlers)
// is registered once per kind on the catalog, never carried by the value,
// so states stay structurally comparable.
type State struct {
	Kind Kind
	Data any
}

// NewState builds a state of the payload's own kind.
func NewState(payload any) State {
	return State{Kind: KindOfValue(payload), Data: payload}
}

// Of builds the state for payload type S.
func Of[S any](payload S) State {
	return State{Kind: KindOf[S](), Data: payload}
}

// IsZero reports whether the state is absent (before Start / after Stop).
func (s State) IsZero() bool {
	return s.Kind == nil
}

// EquivalentTo reports structural equivalence: same concrete kind and
// deeply equal payload. A state restored from a snapshot into a second
// engine compares equal to the original even though identities differ.
func (s State) EquivalentTo(o State) bool {
	if s.Kind != o.Kind {
		return false
	}
	return reflect.DeepEqual(s.Data, o.Data)
}
