package binding

import "github.com/aretw0/espalier/pkg/domain"

// Fake is a binding usable without a live engine: it exposes the same
// four registration surfaces plus manual triggers that invoke the
// broadcast machinery directly. Use it to unit-test consumer code in
// isolation from the transition algorithm.
type Fake struct {
	*Binding
	hub *Hub
}

// NewFake creates a fake binding attached to a private hub.
func NewFake() *Fake {
	hub := NewHub()
	return &Fake{
		Binding: New(hub),
		hub:     hub,
	}
}

// SetState announces a state change. The lineage defaults to the state's
// own kind; pass ancestors explicitly to exercise derived-kind matching.
func (f *Fake) SetState(s domain.State, lineage ...domain.Kind) {
	if len(lineage) == 0 {
		lineage = []domain.Kind{s.Kind}
	}
	f.hub.PublishState(s, lineage)
}

// Input announces an input value.
func (f *Fake) Input(v any) {
	f.hub.PublishInput(v)
}

// Output announces an output value.
func (f *Fake) Output(v any) {
	f.hub.PublishOutput(v)
}

// AddError announces an error event.
func (f *Fake) AddError(err error) {
	f.hub.PublishError(err)
}
