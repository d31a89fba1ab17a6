package observers

import (
	"context"
	"fmt"
	"sync"

	"github.com/anggasct/statechart"
)

// ValidationObserver validates processor behavior against expected states
// and allowed transitions
type ValidationObserver[ID comparable] struct {
	statechart.BaseObserver[ID]
	expectedStates     map[ID]bool
	visitedStates      map[ID]bool
	allowedTransitions map[ID]map[ID]bool
	violations         []string
	mutex              sync.RWMutex
}

// NewValidationObserver creates a new validation observer
func NewValidationObserver[ID comparable]() *ValidationObserver[ID] {
	return &ValidationObserver[ID]{
		expectedStates:     make(map[ID]bool),
		visitedStates:      make(map[ID]bool),
		allowedTransitions: make(map[ID]map[ID]bool),
	}
}

// AddExpectedState adds a state that must be visited
func (o *ValidationObserver[ID]) AddExpectedState(id ID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedStates[id] = true
}

// AddAllowedTransition adds an allowed transition. Sources without any
// allowed transition are not checked.
func (o *ValidationObserver[ID]) AddAllowedTransition(from, to ID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[ID]bool)
	}

	o.allowedTransitions[from][to] = true
}

// OnStateEnter marks the state as visited
func (o *ValidationObserver[ID]) OnStateEnter(_ context.Context, state ID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates[state] = true
}

// OnTransition validates transitions
func (o *ValidationObserver[ID]) OnTransition(_ context.Context, from ID, to ID, event any) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if allowed, exists := o.allowedTransitions[from]; exists && !allowed[to] {
		o.violations = append(o.violations, fmt.Sprintf(
			"invalid transition from '%v' to '%v' on event '%s'", from, to, statechart.EventName(event)))
	}
}

// OnError records the error as a violation
func (o *ValidationObserver[ID]) OnError(_ context.Context, err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, fmt.Sprintf("error occurred: %v", err))
}

// GetViolations returns all validation violations
func (o *ValidationObserver[ID]) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedStates returns states that were expected but not visited
func (o *ValidationObserver[ID]) GetUnvisitedStates() []ID {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []ID
	for state := range o.expectedStates {
		if !o.visitedStates[state] {
			unvisited = append(unvisited, state)
		}
	}

	return unvisited
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver[ID]) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset resets the validation state
func (o *ValidationObserver[ID]) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.visitedStates = make(map[ID]bool)
	o.violations = nil
}
