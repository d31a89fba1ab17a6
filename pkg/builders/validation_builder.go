package builders

import (
	"errors"
	"fmt"

	"github.com/anggasct/statechart"
	"github.com/anggasct/statechart/pkg/observers"
)

// ValidationBuilder helps build validation rules for state machines
type ValidationBuilder[ID comparable] struct {
	observer *observers.ValidationObserver[ID]
	def      *statechart.Definition[ID]
	expected []ID
	allowed  [][2]ID
}

// NewValidationBuilder creates a new validation builder
func NewValidationBuilder[ID comparable](def *statechart.Definition[ID]) *ValidationBuilder[ID] {
	return &ValidationBuilder[ID]{
		observer: observers.NewValidationObserver[ID](),
		def:      def,
	}
}

// ExpectState adds an expected state to validation
func (v *ValidationBuilder[ID]) ExpectState(id ID) *ValidationBuilder[ID] {
	v.observer.AddExpectedState(id)
	v.expected = append(v.expected, id)
	return v
}

// AllowTransition adds an allowed transition to validation
func (v *ValidationBuilder[ID]) AllowTransition(from, to ID) *ValidationBuilder[ID] {
	v.observer.AddAllowedTransition(from, to)
	v.allowed = append(v.allowed, [2]ID{from, to})
	return v
}

// Build returns the validation observer
func (v *ValidationBuilder[ID]) Build() *observers.ValidationObserver[ID] {
	return v.observer
}

// Validate checks that every state named by the rules exists in the definition
func (v *ValidationBuilder[ID]) Validate() error {
	if v.def == nil {
		return statechart.NewConfigurationError("validation", statechart.ErrNilDefinition, "definition is required")
	}

	var errs []error
	check := func(id ID, role string) {
		if _, err := v.def.State(id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", role, err))
		}
	}

	for _, id := range v.expected {
		check(id, "expected state")
	}
	for _, pair := range v.allowed {
		check(pair[0], "transition source")
		check(pair[1], "transition target")
	}

	return errors.Join(errs...)
}
