package runtime

import (
	"log/slog"

	"github.com/aretw0/espalier/pkg/ports"
)

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the machine's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithInitial sets the initial transition rule, overriding the catalog's
// declared initial kind.
func WithInitial(fn InitialFunc) Option {
	return func(m *Machine) {
		m.initial = fn
	}
}

// WithOnStart registers a hook run after the first state materializes.
func WithOnStart(fn func(ports.MachineContext)) Option {
	return func(m *Machine) {
		m.onStart = fn
	}
}

// WithOnStop registers a hook run at the beginning of Stop.
func WithOnStop(fn func(ports.MachineContext)) Option {
	return func(m *Machine) {
		m.onStop = fn
	}
}

// WithOnError registers a hook receiving every handler failure before it
// reaches bindings. Its absence does not prevent binding delivery.
func WithOnError(fn func(error)) Option {
	return func(m *Machine) {
		m.onError = fn
	}
}
