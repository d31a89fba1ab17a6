package statechart

import (
	"context"
	"fmt"
)

// Effect is an enter or exit side effect. It may block; the processor waits
// for it to return before taking the next step.
type Effect func(ctx context.Context) error

// State represents a state in the state tree.
//
// The set of implementations is closed: every State is either an
// *AtomicState or a *CompoundState. Identity is the ID value; two states with
// equal IDs are the same state to the engine.
type State[ID comparable] interface {
	// ID returns the state identifier
	ID() ID
	// Parent returns the owning compound state, nil for a root state
	Parent() *CompoundState[ID]
	// Ancestors returns the chain from the nearest to the furthest ancestor
	Ancestors() []*CompoundState[ID]
	// Transitions returns the transitions in declaration order
	Transitions() []Transition[ID]
	// IsAtomic reports whether the state has no children
	IsAtomic() bool

	base() *stateBase[ID]
}

// stateBase carries the attributes shared by both state variants
type stateBase[ID comparable] struct {
	id          ID
	parent      *CompoundState[ID]
	enter       Effect
	exit        Effect
	transitions []Transition[ID]

	// set when WithInitial was applied, validated against the variant
	initial    ID
	hasInitial bool
}

func (s *stateBase[ID]) ID() ID {
	return s.id
}

func (s *stateBase[ID]) Parent() *CompoundState[ID] {
	return s.parent
}

// Ancestors walks the parent back-reference; it never keeps a second copy of the tree.
func (s *stateBase[ID]) Ancestors() []*CompoundState[ID] {
	var ancestors []*CompoundState[ID]
	for p := s.parent; p != nil; p = p.parent {
		ancestors = append(ancestors, p)
	}
	return ancestors
}

func (s *stateBase[ID]) Transitions() []Transition[ID] {
	return s.transitions
}

func (s *stateBase[ID]) base() *stateBase[ID] {
	return s
}

func (s *stateBase[ID]) runEnter(ctx context.Context) error {
	if s.enter == nil {
		return nil
	}
	if err := safeExecuteEffect(s.enter, ctx); err != nil {
		return NewEffectError(EffectEnter, s.id, err)
	}
	return nil
}

func (s *stateBase[ID]) runExit(ctx context.Context) error {
	if s.exit == nil {
		return nil
	}
	if err := safeExecuteEffect(s.exit, ctx); err != nil {
		return NewEffectError(EffectExit, s.id, err)
	}
	return nil
}

// StateOption configures a state at construction time
type StateOption[ID comparable] func(*stateBase[ID])

// WithEnter sets the effect run when the state is entered
func WithEnter[ID comparable](effect Effect) StateOption[ID] {
	return func(s *stateBase[ID]) {
		s.enter = effect
	}
}

// WithExit sets the effect run when the state is exited
func WithExit[ID comparable](effect Effect) StateOption[ID] {
	return func(s *stateBase[ID]) {
		s.exit = effect
	}
}

// WithTransitions appends transitions, keeping declaration order
func WithTransitions[ID comparable](transitions ...Transition[ID]) StateOption[ID] {
	return func(s *stateBase[ID]) {
		s.transitions = append(s.transitions, transitions...)
	}
}

// WithInitial names the default child of a compound state
func WithInitial[ID comparable](id ID) StateOption[ID] {
	return func(s *stateBase[ID]) {
		s.initial = id
		s.hasInitial = true
	}
}

// AtomicState is a leaf of the state tree
type AtomicState[ID comparable] struct {
	stateBase[ID]
}

// NewAtomic creates a new atomic state
func NewAtomic[ID comparable](id ID, opts ...StateOption[ID]) *AtomicState[ID] {
	s := &AtomicState[ID]{stateBase: stateBase[ID]{id: id}}
	for _, opt := range opts {
		opt(&s.stateBase)
	}
	return s
}

// IsAtomic returns true for atomic states
func (s *AtomicState[ID]) IsAtomic() bool {
	return true
}

// CompoundState owns an ordered, non-empty list of children, exactly one of
// which is active while the compound state is active.
type CompoundState[ID comparable] struct {
	stateBase[ID]
	children []State[ID]
}

// NewCompound creates a compound state and takes ownership of children.
// Parent links are set here and never change afterwards.
func NewCompound[ID comparable](id ID, children []State[ID], opts ...StateOption[ID]) (*CompoundState[ID], error) {
	s := &CompoundState[ID]{stateBase: stateBase[ID]{id: id}}
	for _, opt := range opts {
		opt(&s.stateBase)
	}

	if len(children) == 0 {
		return nil, NewConfigurationError(fmt.Sprintf("compound state '%v'", id), ErrEmptyCompound,
			"at least one child is required")
	}

	seen := make(map[ID]struct{}, len(children))
	for _, child := range children {
		if child == nil {
			return nil, NewConfigurationError(fmt.Sprintf("compound state '%v'", id), ErrNilState,
				"child state is nil")
		}
		if child.Parent() != nil {
			return nil, NewConfigurationError(fmt.Sprintf("compound state '%v'", id), ErrAlreadyParented,
				fmt.Sprintf("child '%v' already belongs to '%v'", child.ID(), child.Parent().ID()))
		}
		if _, dup := seen[child.ID()]; dup || child.ID() == id {
			return nil, NewConfigurationError(fmt.Sprintf("compound state '%v'", id), ErrDuplicateState,
				fmt.Sprintf("child id '%v' is not unique", child.ID()))
		}
		seen[child.ID()] = struct{}{}
	}

	if s.hasInitial {
		if _, ok := seen[s.initial]; !ok {
			return nil, NewConfigurationError(fmt.Sprintf("compound state '%v'", id), ErrInitialNotChild,
				fmt.Sprintf("initial '%v' is not a child", s.initial))
		}
	}

	s.children = append([]State[ID](nil), children...)
	for _, child := range s.children {
		child.base().parent = s
	}

	return s, nil
}

// IsAtomic returns false for compound states
func (s *CompoundState[ID]) IsAtomic() bool {
	return false
}

// Children returns the child states in declaration order
func (s *CompoundState[ID]) Children() []State[ID] {
	return s.children
}

// Initial returns the declared default child, if any
func (s *CompoundState[ID]) Initial() (ID, bool) {
	return s.initial, s.hasInitial
}

// DefaultState resolves the child entered when the compound state is the
// deepest state entered by a transition. Without a declared initial child the
// first child wins.
func (s *CompoundState[ID]) DefaultState() (State[ID], error) {
	if !s.hasInitial {
		return s.children[0], nil
	}
	for _, child := range s.children {
		if child.ID() == s.initial {
			return child, nil
		}
	}
	return nil, NewStateError(ErrCodeInvalidConfiguration, s.id, ErrInitialNotChild,
		fmt.Sprintf("initial '%v' is not a child", s.initial))
}

// Flatten returns the subtree rooted at state in depth-first pre-order
func Flatten[ID comparable](state State[ID]) []State[ID] {
	result := []State[ID]{state}
	if compound, ok := state.(*CompoundState[ID]); ok {
		for _, child := range compound.children {
			result = append(result, Flatten(child)...)
		}
	}
	return result
}

// safeExecuteEffect executes an effect with panic recovery
func safeExecuteEffect(effect Effect, ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("effect panic: %v", r)
		}
	}()

	return effect(ctx)
}
