package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/espalier/pkg/domain"
)

type (
	sitting  struct{}
	standing struct{ Height int }
)

func TestKindIdentity(t *testing.T) {
	assert.Equal(t, domain.KindOf[sitting](), domain.KindOfValue(sitting{}))
	assert.NotEqual(t, domain.KindOf[sitting](), domain.KindOf[standing]())

	// Pointer and value types are distinct kinds.
	assert.NotEqual(t, domain.KindOf[standing](), domain.KindOf[*standing]())

	assert.Equal(t, "<nil>", domain.KindName(nil))
	assert.NotEmpty(t, domain.KindName(domain.KindOf[standing]()))
}

func TestStateConstruction(t *testing.T) {
	s := domain.Of(standing{Height: 2})
	assert.Equal(t, domain.KindOf[standing](), s.Kind)
	assert.Equal(t, standing{Height: 2}, s.Data)
	assert.False(t, s.IsZero())

	n := domain.NewState(sitting{})
	assert.Equal(t, domain.KindOf[sitting](), n.Kind)

	assert.True(t, domain.State{}.IsZero())
}

func TestStateEquivalence(t *testing.T) {
	a := domain.Of(standing{Height: 2})
	b := domain.Of(standing{Height: 2})
	c := domain.Of(standing{Height: 3})

	assert.True(t, a.EquivalentTo(b), "same kind, same payload")
	assert.False(t, a.EquivalentTo(c), "same kind, different payload")
	assert.False(t, a.EquivalentTo(domain.Of(sitting{})), "different kind")
}

func TestTransitionForms(t *testing.T) {
	tr := domain.Goto(domain.Of(sitting{}))
	assert.False(t, tr.IsToSelf())
	assert.Equal(t, domain.KindOf[sitting](), tr.Target.Kind)

	tr = domain.GotoKind(standing{Height: 1})
	assert.Equal(t, standing{Height: 1}, tr.Target.Data)

	assert.True(t, domain.ToSelf().IsToSelf())
}

func TestTransitionEffect(t *testing.T) {
	tr := domain.GotoKind(standing{Height: 1}).WithEffect(func(s *domain.State) {
		s.Data = standing{Height: 9}
	})

	target := tr.Target
	tr.Effect(&target)
	assert.Equal(t, standing{Height: 9}, target.Data)
}

func TestInvalidOperationError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &domain.InvalidOperationError{Op: "ForceReset", Reason: "processing"})

	assert.True(t, domain.IsInvalidOperation(err))
	assert.False(t, domain.IsInvalidOperation(errors.New("other")))
	assert.Contains(t, err.Error(), "ForceReset")
}

func TestHandlerError(t *testing.T) {
	cause := errors.New("root cause")
	err := &domain.HandlerError{
		StateKind: domain.KindOf[sitting](),
		InputKind: domain.KindOf[standing](),
		Stage:     domain.StageInput,
		Err:       cause,
	}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "input handler failed")

	he, ok := domain.AsHandlerError(fmt.Errorf("outer: %w", err))
	require.True(t, ok)
	assert.Equal(t, domain.StageInput, he.Stage)

	_, ok = domain.AsHandlerError(cause)
	assert.False(t, ok)

	// Lifecycle failures carry no input kind.
	enterErr := &domain.HandlerError{StateKind: domain.KindOf[sitting](), Stage: domain.StageEnter, Err: cause}
	assert.NotContains(t, enterErr.Error(), "for input")
}
