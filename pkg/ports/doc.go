// Package ports defines the interfaces through which handler code and
// supporting subsystems talk to the engine, keeping the core decoupled
// from its consumers.
package ports
