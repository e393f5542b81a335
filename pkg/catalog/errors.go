package catalog

import (
	"errors"
	"fmt"

	"github.com/aretw0/espalier/pkg/domain"
)

// DefinitionError represents a single state-kind definition failure.
type DefinitionError struct {
	Kind   domain.Kind
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("state %s: %s", domain.KindName(e.Kind), e.Reason)
}

// AggregateError represents multiple definition failures found by Build.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d definition errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// DefinitionErrors returns all definition errors if err is an
// AggregateError, nil otherwise.
func DefinitionErrors(err error) []*DefinitionError {
	aggr, ok := err.(*AggregateError)
	if !ok {
		return nil
	}
	defs := make([]*DefinitionError, 0, len(aggr.Errors))
	for _, e := range aggr.Errors {
		var d *DefinitionError
		if errors.As(e, &d) {
			defs = append(defs, d)
		}
	}
	return defs
}
