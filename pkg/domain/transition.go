package domain

// Transition is the instruction a handler returns: the next state variant,
// plus an optional effect applied to the target before it becomes current.
// A transition is consumed exactly once by the engine.
type Transition struct {
	Target State
	Effect func(*State)

	// toSelf marks "stay in the current state"; the engine substitutes the
	// pre-input state as the target when resolving it.
	toSelf bool
}

// Goto transitions to the given state.
func Goto(target State) Transition {
	return Transition{Target: target}
}

// GotoKind transitions to a state of kind S carrying the given payload.
func GotoKind[S any](payload S) Transition {
	return Transition{Target: Of(payload)}
}

// ToSelf transitions to the current state. The engine rebinds the current
// reference without running exit or enter callbacks.
func ToSelf() Transition {
	return Transition{toSelf: true}
}

// WithEffect attaches a mutation applied to the target before activation.
func (t Transition) WithEffect(fn func(*State)) Transition {
	t.Effect = fn
	return t
}

// IsToSelf reports whether the transition targets the current state.
func (t Transition) IsToSelf() bool {
	return t.toSelf
}
