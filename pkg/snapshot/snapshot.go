// Package snapshot captures the externally observable state of an engine
// (definition, current state, blackboard contents) into a serializable
// document and applies it to a fresh engine. A restored engine compares
// structurally equal to its source even though object identities differ.
//
// Only kinds registered on the catalog (states via Define, blackboard
// kinds via Shares) can be decoded; unknown kind names fail rather than
// guess.
package snapshot

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/espalier/pkg/blackboard"
	"github.com/aretw0/espalier/pkg/catalog"
	"github.com/aretw0/espalier/pkg/domain"
)

// Machine is the slice of the engine surface the codec needs; the facade
// Engine satisfies it.
type Machine interface {
	Definition() *catalog.Catalog
	CurrentState() (domain.State, bool)
	Board() *blackboard.Board
	RestoreState(state domain.State) error
}

// StateDoc is the serialized form of one state value.
type StateDoc struct {
	Kind string `yaml:"kind"`
	Data any    `yaml:"data,omitempty"`
}

// Snapshot is the serializable representation of one engine instance.
type Snapshot struct {
	Definition string         `yaml:"definition"`
	State      StateDoc       `yaml:"state"`
	Blackboard map[string]any `yaml:"blackboard,omitempty"`
}

// Capture reads the current state and blackboard of m. It fails if m has
// no current state.
func Capture(m Machine) (*Snapshot, error) {
	state, ok := m.CurrentState()
	if !ok {
		return nil, &domain.InvalidOperationError{Op: "Capture", Reason: "machine has no current state"}
	}

	snap := &Snapshot{
		Definition: m.Definition().Name(),
		State: StateDoc{
			Kind: domain.KindName(state.Kind),
			Data: state.Data,
		},
	}

	board := m.Board()
	if board.Len() > 0 {
		snap.Blackboard = make(map[string]any, board.Len())
		for _, k := range board.Kinds() {
			ptr, err := board.GetAny(k)
			if err != nil {
				return nil, err
			}
			snap.Blackboard[domain.KindName(k)] = reflect.ValueOf(ptr).Elem().Interface()
		}
	}

	return snap, nil
}

// Encode marshals the snapshot into its YAML exchange form.
func (s *Snapshot) Encode() ([]byte, error) {
	return yaml.Marshal(s)
}

// Decode parses an encoded snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Apply installs the snapshot on a fresh machine: the state via
// RestoreState (so the usual before-start legality applies) and the
// blackboard entries by overwrite. Payload maps are decoded back into the
// kinds the catalog registered under the serialized names.
func Apply(m Machine, snap *Snapshot) error {
	cat := m.Definition()
	if cat.Name() != snap.Definition {
		return &domain.InvalidOperationError{
			Op:     "Apply",
			Reason: fmt.Sprintf("snapshot of definition %q does not fit machine of definition %q", snap.Definition, cat.Name()),
		}
	}

	stateKind, ok := cat.StateKindByName(snap.State.Kind)
	if !ok {
		return fmt.Errorf("apply snapshot: state kind %q: %w", snap.State.Kind, domain.ErrKindNotFound)
	}
	payload, err := decodeInto(stateKind, snap.State.Data)
	if err != nil {
		return fmt.Errorf("apply snapshot: state %q: %w", snap.State.Kind, err)
	}
	if err := m.RestoreState(domain.State{Kind: stateKind, Data: payload}); err != nil {
		return err
	}

	for name, data := range snap.Blackboard {
		kind, ok := cat.ShareKindByName(name)
		if !ok {
			return fmt.Errorf("apply snapshot: blackboard kind %q: %w", name, domain.ErrKindNotFound)
		}
		ptr := reflect.New(kind)
		if err := decodePtr(ptr.Interface(), data); err != nil {
			return fmt.Errorf("apply snapshot: blackboard %q: %w", name, err)
		}
		if err := m.Board().SetAny(ptr.Interface()); err != nil {
			return err
		}
	}

	return nil
}

// decodeInto reconstructs a value of the given kind from its serialized
// payload.
func decodeInto(kind domain.Kind, data any) (any, error) {
	ptr := reflect.New(kind)
	if err := decodePtr(ptr.Interface(), data); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func decodePtr(ptr any, data any) error {
	if data == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           ptr,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
