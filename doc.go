/*
Package espalier is a hierarchical state-machine runtime designed for embedding inside larger applications: games, UIs, workflow engines.

It implements a "Reentrant HSM with Queued Inputs" architecture, separating the behavioral state tree (Catalog) from shared data (Blackboard) and observation (Bindings).

# Concept

An application declares a tree of mutually-exclusive state kinds on a catalog, each kind listing the input kinds it handles plus optional inherited capabilities from an ancestor kind. An engine instance routes every typed input to the current state's handler, computes the resulting transition, and manages entry/exit lifecycle ordering across the hierarchy. Handlers may raise further inputs from within processing; those are queued FIFO and never interleave.

# Key Features

  - Reentrant, never concurrent: a handler may call Input on its own engine; the queue, not the call stack, carries the recursion.
  - Structural state identity: states are kind plus comparable payload; behavior lives in a per-kind side table, so snapshots restored into a second engine compare equal to the original.
  - Decoupled observation: bindings register type-filtered callbacks for inputs, state changes, outputs and errors; a fake binding drives the same surface without an engine.
  - Instance registry: every live engine is weakly tracked for introspection and remains independently collectible.

# Usage

	package main

	import (
		"log"

		"github.com/aretw0/espalier"
		"github.com/aretw0/espalier/pkg/catalog"
		"github.com/aretw0/espalier/pkg/domain"
		"github.com/aretw0/espalier/pkg/ports"
	)

	type Closed struct{}
	type Open struct{}
	type Push struct{}

	func main() {
		b := catalog.New("door")
		catalog.On(b.Define(domain.KindOf[Closed]()), func(mc ports.MachineContext, in Push) (domain.Transition, error) {
			return domain.GotoKind(Open{}), nil
		})
		catalog.On(b.Define(domain.KindOf[Open]()), func(mc ports.MachineContext, in Push) (domain.Transition, error) {
			return domain.GotoKind(Closed{}), nil
		})
		b.Initial(domain.KindOf[Closed]())

		cat, err := b.Build()
		if err != nil {
			log.Fatal(err)
		}

		eng, err := espalier.New(cat)
		if err != nil {
			log.Fatal(err)
		}
		if err := eng.Start(); err != nil {
			log.Fatal(err)
		}

		state := eng.Input(Push{})
		log.Printf("now in %s", domain.KindName(state.Kind))
	}
*/
package espalier
