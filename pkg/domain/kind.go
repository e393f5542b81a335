package domain

import "reflect"

// Kind is the stable type identity of a state, input, output or blackboard
// value. Two values share a Kind iff they share a concrete Go type.
type Kind = reflect.Type

// KindOf returns the Kind for the type parameter T.
func KindOf[T any]() Kind {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// KindOfValue returns the Kind of a concrete value: its dynamic type.
func KindOfValue(v any) Kind {
	return reflect.TypeOf(v)
}

// KindName returns a stable human-readable name for a kind, used by the
// snapshot codec and the introspection export.
func KindName(k Kind) string {
	if k == nil {
		return "<nil>"
	}
	return k.String()
}
