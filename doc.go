// Package statechart provides a hierarchical state machine engine for Go
// with atomic and compound states, typed and eventless transitions, and a
// single-goroutine processor that runs side effects in a deterministic order.
//
// A machine is described by a Definition built from a tree of states:
//
//	locked := statechart.NewAtomic("locked",
//		statechart.WithTransitions[string](
//			statechart.On(statechart.Goto[Coin]("unlocked")),
//		),
//	)
//	def, err := statechart.NewDefinition([]statechart.State[string]{locked, unlocked})
//
// A Processor executes a Definition. Events are queued with AddEvent and
// processed one macrostep at a time; eventless transitions always take
// precedence over queued events. Drain waits for queued events and Dispose
// exits every active state and stops the processor.
//
// Transitions match events by their runtime type: a transition created with
// On[E] only sees events for which event.(E) succeeds. Use Named events and
// the pkg/builders package to match by name instead.
package statechart
