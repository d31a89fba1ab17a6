// Package builders provides fluent builders for constructing state machines
package builders

import (
	"context"
	"errors"
	"fmt"

	"github.com/anggasct/statechart"
)

// StateMachineBuilder provides a fluent interface for building state machines
type StateMachineBuilder[ID comparable] struct {
	roots      []*StateBuilder[ID]
	initial    ID
	hasInitial bool
	errs       []error
}

// StateBuilder provides a fluent interface for configuring individual states.
// A state with children becomes a compound state, otherwise it is atomic.
type StateBuilder[ID comparable] struct {
	machine     *StateMachineBuilder[ID]
	parent      *StateBuilder[ID]
	id          ID
	enter       []statechart.Effect
	exit        []statechart.Effect
	transitions []statechart.Transition[ID]
	children    []*StateBuilder[ID]
	initial     ID
	hasInitial  bool
}

// NewStateMachineBuilder creates a new state machine builder
func NewStateMachineBuilder[ID comparable]() *StateMachineBuilder[ID] {
	return &StateMachineBuilder[ID]{}
}

// WithState adds a top-level state and returns its builder
func (b *StateMachineBuilder[ID]) WithState(id ID) *StateBuilder[ID] {
	sb := &StateBuilder[ID]{machine: b, id: id}
	b.roots = append(b.roots, sb)
	return sb
}

// WithInitialState sets the initial state of the state machine. Without it
// the first top-level state is initial.
func (b *StateMachineBuilder[ID]) WithInitialState(id ID) *StateMachineBuilder[ID] {
	b.initial = id
	b.hasInitial = true
	return b
}

// Build validates and returns the constructed machine definition. Every
// construction error found in the tree is reported.
func (b *StateMachineBuilder[ID]) Build() (*statechart.Definition[ID], error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	roots := make([]statechart.State[ID], 0, len(b.roots))
	var errs []error
	for _, sb := range b.roots {
		state, err := sb.build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		roots = append(roots, state)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	var opts []statechart.DefinitionOption[ID]
	if b.hasInitial {
		opts = append(opts, statechart.WithInitialState(b.initial))
	}
	return statechart.NewDefinition(roots, opts...)
}

// MustBuild is Build that panics on error, for static machine declarations
func (b *StateMachineBuilder[ID]) MustBuild() *statechart.Definition[ID] {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

func (sb *StateBuilder[ID]) build() (statechart.State[ID], error) {
	opts := []statechart.StateOption[ID]{
		statechart.WithTransitions(sb.transitions...),
	}
	if effect := chain(sb.enter); effect != nil {
		opts = append(opts, statechart.WithEnter[ID](effect))
	}
	if effect := chain(sb.exit); effect != nil {
		opts = append(opts, statechart.WithExit[ID](effect))
	}
	if sb.hasInitial {
		opts = append(opts, statechart.WithInitial(sb.initial))
	}

	if len(sb.children) == 0 {
		if sb.hasInitial {
			return nil, statechart.NewConfigurationError(fmt.Sprintf("state '%v'", sb.id),
				statechart.ErrInitialOnAtomic, "initial child declared on a state without children")
		}
		return statechart.NewAtomic(sb.id, opts...), nil
	}

	children := make([]statechart.State[ID], 0, len(sb.children))
	for _, child := range sb.children {
		state, err := child.build()
		if err != nil {
			return nil, err
		}
		children = append(children, state)
	}

	compound, err := statechart.NewCompound(sb.id, children, opts...)
	if err != nil {
		return nil, err
	}
	return compound, nil
}

// chain runs effects in registration order, stopping at the first error
func chain(effects []statechart.Effect) statechart.Effect {
	switch len(effects) {
	case 0:
		return nil
	case 1:
		return effects[0]
	}
	return func(ctx context.Context) error {
		for _, effect := range effects {
			if err := effect(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// ID returns the identity of the state being built
func (sb *StateBuilder[ID]) ID() ID {
	return sb.id
}

// WithEntryAction adds an entry action to the state
func (sb *StateBuilder[ID]) WithEntryAction(effect statechart.Effect) *StateBuilder[ID] {
	if effect == nil {
		sb.machine.errs = append(sb.machine.errs, statechart.NewConfigurationError(
			fmt.Sprintf("state '%v'", sb.id), statechart.ErrNilEffect, "entry action is nil"))
		return sb
	}
	sb.enter = append(sb.enter, effect)
	return sb
}

// WithExitAction adds an exit action to the state
func (sb *StateBuilder[ID]) WithExitAction(effect statechart.Effect) *StateBuilder[ID] {
	if effect == nil {
		sb.machine.errs = append(sb.machine.errs, statechart.NewConfigurationError(
			fmt.Sprintf("state '%v'", sb.id), statechart.ErrNilEffect, "exit action is nil"))
		return sb
	}
	sb.exit = append(sb.exit, effect)
	return sb
}

// WithTransition adds a prebuilt transition, such as one from statechart.On
func (sb *StateBuilder[ID]) WithTransition(transition statechart.Transition[ID]) *StateBuilder[ID] {
	sb.transitions = append(sb.transitions, transition)
	return sb
}

// On adds a transition to target for events whose name is event, see
// statechart.EventName. The returned builder configures that transition.
func (sb *StateBuilder[ID]) On(event string, target ID) *TransitionBuilder[ID] {
	tb := &TransitionBuilder[ID]{state: sb, event: event, target: target}
	sb.transitions = append(sb.transitions, statechart.On[any, ID](tb.evaluate).Do(tb.fire).Describe(event).Reaches(target))
	return tb
}

// Always adds an eventless transition to target. The returned builder
// configures that transition.
func (sb *StateBuilder[ID]) Always(target ID) *TransitionBuilder[ID] {
	tb := &TransitionBuilder[ID]{state: sb, eventless: true, target: target}
	sb.transitions = append(sb.transitions, statechart.Always[ID](func(ctx context.Context) (ID, bool, error) {
		return tb.evaluate(ctx, nil)
	}).Do(func(ctx context.Context) error {
		return tb.fire(ctx, nil)
	}).Reaches(target))
	return tb
}

// WithChildState adds a child state and returns its builder
func (sb *StateBuilder[ID]) WithChildState(id ID) *StateBuilder[ID] {
	child := &StateBuilder[ID]{machine: sb.machine, parent: sb, id: id}
	sb.children = append(sb.children, child)
	return child
}

// WithInitialChildState sets the default child of a compound state
func (sb *StateBuilder[ID]) WithInitialChildState(id ID) *StateBuilder[ID] {
	sb.initial = id
	sb.hasInitial = true
	return sb
}

// Parent returns the builder of the enclosing state, nil at the top level
func (sb *StateBuilder[ID]) Parent() *StateBuilder[ID] {
	return sb.parent
}

// Done returns the machine builder to continue the fluent API chain
func (sb *StateBuilder[ID]) Done() *StateMachineBuilder[ID] {
	return sb.machine
}

// Guard reports whether a named transition may fire for event
type Guard func(ctx context.Context, event any) bool

// Action runs when a named transition fires
type Action func(ctx context.Context, event any) error

// TransitionBuilder provides a fluent interface for configuring transitions
type TransitionBuilder[ID comparable] struct {
	state     *StateBuilder[ID]
	event     string
	eventless bool
	target    ID
	guards    []Guard
	actions   []Action
}

// WithGuard adds a guard condition to the transition. All guards must pass.
func (tb *TransitionBuilder[ID]) WithGuard(guard Guard) *TransitionBuilder[ID] {
	tb.guards = append(tb.guards, guard)
	return tb
}

// WithAction adds an action to the transition
func (tb *TransitionBuilder[ID]) WithAction(action Action) *TransitionBuilder[ID] {
	tb.actions = append(tb.actions, action)
	return tb
}

// Done returns the owning state builder
func (tb *TransitionBuilder[ID]) Done() *StateBuilder[ID] {
	return tb.state
}

func (tb *TransitionBuilder[ID]) evaluate(ctx context.Context, event any) (ID, bool, error) {
	var zero ID
	if !tb.eventless && statechart.EventName(event) != tb.event {
		return zero, false, nil
	}
	for _, guard := range tb.guards {
		if !guard(ctx, event) {
			return zero, false, nil
		}
	}
	return tb.target, true, nil
}

func (tb *TransitionBuilder[ID]) fire(ctx context.Context, event any) error {
	for _, action := range tb.actions {
		if err := action(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
