// Package blackboard provides the shared keyed value store scoped to one
// engine instance. It holds at most one live value per data kind; values
// are stored by pointer so every state of the owning engine mutates the
// same data in place.
//
// The board is not thread-safe by contract: exactly one engine owns and
// mutates it, consistent with the engine's single-threaded execution model.
package blackboard

import (
	"fmt"
	"reflect"

	"github.com/aretw0/espalier/pkg/domain"
)

// Board maps a data kind to exactly one live value of that kind.
type Board struct {
	values map[domain.Kind]any // kind -> *T
}

// New creates an empty board.
func New() *Board {
	return &Board{values: make(map[domain.Kind]any)}
}

// Set stores v under its kind. It fails with domain.ErrDuplicateKind if a
// value of that kind already exists; use Overwrite to replace.
func Set[T any](b *Board, v *T) error {
	k := domain.KindOf[T]()
	if _, ok := b.values[k]; ok {
		return fmt.Errorf("blackboard set %s: %w", domain.KindName(k), domain.ErrDuplicateKind)
	}
	b.values[k] = v
	return nil
}

// Overwrite stores v under its kind, replacing any prior value.
func Overwrite[T any](b *Board, v *T) {
	b.values[domain.KindOf[T]()] = v
}

// Get returns the live value of kind T, or domain.ErrKindNotFound.
func Get[T any](b *Board) (*T, error) {
	k := domain.KindOf[T]()
	v, ok := b.values[k]
	if !ok {
		return nil, fmt.Errorf("blackboard get %s: %w", domain.KindName(k), domain.ErrKindNotFound)
	}
	return v.(*T), nil
}

// Has reports whether a value of kind T exists.
func Has[T any](b *Board) bool {
	return b.HasKind(domain.KindOf[T]())
}

// HasKind reports whether a value of the given kind exists.
func (b *Board) HasKind(k domain.Kind) bool {
	_, ok := b.values[k]
	return ok
}

// Len returns the number of live entries.
func (b *Board) Len() int {
	return len(b.values)
}

// Kinds returns the kinds currently held. Order is unspecified.
func (b *Board) Kinds() []domain.Kind {
	kinds := make([]domain.Kind, 0, len(b.values))
	for k := range b.values {
		kinds = append(kinds, k)
	}
	return kinds
}

// value returns the stored pointer for a kind, untyped.
func (b *Board) value(k domain.Kind) (any, bool) {
	v, ok := b.values[k]
	return v, ok
}

// setRaw stores an untyped pointer under an explicit kind. Used by the
// snapshot codec, which reconstructs values reflectively.
func (b *Board) setRaw(k domain.Kind, ptr any) {
	b.values[k] = ptr
}

// SetAny stores ptr (which must be a pointer) under its element kind,
// replacing any prior value of that kind.
func (b *Board) SetAny(ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("blackboard: value must be a non-nil pointer, got %T", ptr)
	}
	b.setRaw(rv.Type().Elem(), ptr)
	return nil
}

// GetAny returns the untyped live pointer for a kind.
func (b *Board) GetAny(k domain.Kind) (any, error) {
	v, ok := b.value(k)
	if !ok {
		return nil, fmt.Errorf("blackboard get %s: %w", domain.KindName(k), domain.ErrKindNotFound)
	}
	return v, nil
}

// CopyFrom overwrites this board with value copies of every entry in src.
// Entries are duplicated, not shared: mutating one board afterwards does
// not affect the other.
func (b *Board) CopyFrom(src *Board) {
	for k, ptr := range src.values {
		rv := reflect.ValueOf(ptr)
		dup := reflect.New(rv.Type().Elem())
		dup.Elem().Set(rv.Elem())
		b.values[k] = dup.Interface()
	}
}

// Equal reports kind-for-kind structural equivalence of two boards.
func (b *Board) Equal(o *Board) bool {
	if len(b.values) != len(o.values) {
		return false
	}
	for k, v := range b.values {
		ov, ok := o.values[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(reflect.ValueOf(v).Elem().Interface(), reflect.ValueOf(ov).Elem().Interface()) {
			return false
		}
	}
	return true
}
