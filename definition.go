package statechart

import (
	"fmt"
)

// Definition is the flattened, validated and read-only view of a state tree.
// It is built once and shared by any number of processors.
type Definition[ID comparable] struct {
	roots   []State[ID]
	ordered []State[ID]
	states  map[ID]State[ID]
	initial ID
}

// DefinitionOption configures a definition
type DefinitionOption[ID comparable] func(*definitionConfig[ID])

type definitionConfig[ID comparable] struct {
	initial    ID
	hasInitial bool
}

// WithInitialState overrides the designated initial state. Without it the
// first root is the initial state.
func WithInitialState[ID comparable](id ID) DefinitionOption[ID] {
	return func(c *definitionConfig[ID]) {
		c.initial = id
		c.hasInitial = true
	}
}

// DefinitionFunc builds the top-level states of a machine
type DefinitionFunc[ID comparable] func() ([]State[ID], error)

// NewDefinitionFrom builds a definition from a tree-returning factory
func NewDefinitionFrom[ID comparable](build DefinitionFunc[ID], opts ...DefinitionOption[ID]) (*Definition[ID], error) {
	roots, err := build()
	if err != nil {
		return nil, fmt.Errorf("building state tree: %w", err)
	}
	return NewDefinition(roots, opts...)
}

// NewDefinition flattens every root depth-first, parent before children, into
// one lookup map. State identities must be unique across the merged tree.
func NewDefinition[ID comparable](roots []State[ID], opts ...DefinitionOption[ID]) (*Definition[ID], error) {
	if len(roots) == 0 {
		return nil, NewConfigurationError("definition", ErrNoStates, "at least one root state is required")
	}

	cfg := &definitionConfig[ID]{}
	for _, opt := range opts {
		opt(cfg)
	}

	def := &Definition[ID]{
		roots:  append([]State[ID](nil), roots...),
		states: make(map[ID]State[ID]),
	}

	for _, root := range roots {
		if root == nil {
			return nil, NewConfigurationError("definition", ErrNilState, "root state is nil")
		}
		if root.Parent() != nil {
			return nil, NewConfigurationError("definition", ErrNotRoot,
				fmt.Sprintf("state '%v' is a child of '%v'", root.ID(), root.Parent().ID()))
		}
		for _, state := range Flatten(root) {
			if _, exists := def.states[state.ID()]; exists {
				return nil, NewConfigurationError("definition", ErrDuplicateState,
					fmt.Sprintf("state id '%v' is declared more than once", state.ID()))
			}
			if err := validateState(state); err != nil {
				return nil, err
			}
			def.states[state.ID()] = state
			def.ordered = append(def.ordered, state)
		}
	}

	def.initial = roots[0].ID()
	if cfg.hasInitial {
		if _, ok := def.states[cfg.initial]; !ok {
			return nil, NewConfigurationError("definition", ErrStateNotFound,
				fmt.Sprintf("initial state '%v' is not declared", cfg.initial))
		}
		def.initial = cfg.initial
	}

	return def, nil
}

// validateState checks the invariants NewAtomic cannot report on its own
func validateState[ID comparable](state State[ID]) error {
	component := fmt.Sprintf("state '%v'", state.ID())

	switch s := state.(type) {
	case *AtomicState[ID]:
		if s.hasInitial {
			return NewConfigurationError(component, ErrInitialOnAtomic, "initial child declared on an atomic state")
		}
	case *CompoundState[ID]:
		if _, err := s.DefaultState(); err != nil {
			return NewConfigurationError(component, ErrInitialNotChild, err.Error())
		}
	}

	for i, t := range state.Transitions() {
		if t == nil || !t.valid() {
			return NewConfigurationError(component, ErrInvalidGuard, fmt.Sprintf("transition %d has no guard", i))
		}
	}

	return nil
}

// State returns the state registered under id
func (d *Definition[ID]) State(id ID) (State[ID], error) {
	state, ok := d.states[id]
	if !ok {
		return nil, NewStateNotFoundError(id)
	}
	return state, nil
}

// Initial returns the designated initial state identity
func (d *Definition[ID]) Initial() ID {
	return d.initial
}

// Roots returns the top-level states in declaration order
func (d *Definition[ID]) Roots() []State[ID] {
	return d.roots
}

// States returns every state in flattened order
func (d *Definition[ID]) States() []State[ID] {
	return d.ordered
}

// Len returns the number of states
func (d *Definition[ID]) Len() int {
	return len(d.ordered)
}
