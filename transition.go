package statechart

import (
	"context"
	"fmt"
	"reflect"
)

// Transition is a transition definition declared on a state.
//
// The set of implementations is closed: *EventTransition and
// *EventlessTransition. Transitions are evaluated by the processor against the
// active state they are declared on or inherited through.
type Transition[ID comparable] interface {
	// Eventless reports whether the transition is evaluated without an event
	Eventless() bool
	// EventType returns the declared event type, nil for eventless transitions
	EventType() reflect.Type
	// Description returns the label set with Describe, or a default derived
	// from the event type
	Description() string
	// Targets returns the targets declared with Reaches. Guards may select
	// other targets, the list is only a hint for tooling.
	Targets() []ID

	valid() bool
	evaluate(ctx context.Context, event any) (ID, bool, error)
	fire(ctx context.Context, event any) error
}

// EventGuard selects a target for a typed event. ok=false means no match.
type EventGuard[E any, ID comparable] func(ctx context.Context, event E) (target ID, ok bool, err error)

// EventlessGuard selects a target without an event. ok=false means no match.
type EventlessGuard[ID comparable] func(ctx context.Context) (target ID, ok bool, err error)

// EventTransition is bound to events whose runtime type is E, or implements E
// when E is an interface type.
type EventTransition[E any, ID comparable] struct {
	guard       EventGuard[E, ID]
	action      func(ctx context.Context, event E) error
	description string
	targets     []ID
}

// On creates a new event transition
func On[E any, ID comparable](guard EventGuard[E, ID]) *EventTransition[E, ID] {
	return &EventTransition[E, ID]{guard: guard}
}

// Do adds an action run when the transition fires
func (t *EventTransition[E, ID]) Do(action func(ctx context.Context, event E) error) *EventTransition[E, ID] {
	t.action = action
	return t
}

// Describe sets a human readable label used by tooling
func (t *EventTransition[E, ID]) Describe(description string) *EventTransition[E, ID] {
	t.description = description
	return t
}

// Description returns the label, defaulting to the event type name
func (t *EventTransition[E, ID]) Description() string {
	if t.description != "" {
		return t.description
	}
	return t.EventType().String()
}

// Reaches declares the targets the guard can select
func (t *EventTransition[E, ID]) Reaches(targets ...ID) *EventTransition[E, ID] {
	t.targets = append(t.targets, targets...)
	return t
}

// Targets returns the declared targets
func (t *EventTransition[E, ID]) Targets() []ID {
	return t.targets
}

// Eventless returns false for event transitions
func (t *EventTransition[E, ID]) Eventless() bool {
	return false
}

// EventType returns the declared event type
func (t *EventTransition[E, ID]) EventType() reflect.Type {
	return reflect.TypeOf((*E)(nil)).Elem()
}

func (t *EventTransition[E, ID]) valid() bool {
	return t != nil && t.guard != nil
}

func (t *EventTransition[E, ID]) evaluate(ctx context.Context, event any) (ID, bool, error) {
	var zero ID
	typed, ok := event.(E)
	if !ok {
		return zero, false, nil
	}
	return safeEvaluateGuard(func() (ID, bool, error) {
		return t.guard(ctx, typed)
	})
}

func (t *EventTransition[E, ID]) fire(ctx context.Context, event any) error {
	if t.action == nil {
		return nil
	}
	typed, _ := event.(E)
	return safeExecuteEffect(func(ctx context.Context) error {
		return t.action(ctx, typed)
	}, ctx)
}

// EventlessTransition is evaluated on every processing cycle
type EventlessTransition[ID comparable] struct {
	guard       EventlessGuard[ID]
	effect      Effect
	description string
	targets     []ID
}

// Always creates a new eventless transition
func Always[ID comparable](guard EventlessGuard[ID]) *EventlessTransition[ID] {
	return &EventlessTransition[ID]{guard: guard}
}

// Do adds an effect run when the transition fires
func (t *EventlessTransition[ID]) Do(effect Effect) *EventlessTransition[ID] {
	t.effect = effect
	return t
}

// Describe sets a human readable label used by tooling
func (t *EventlessTransition[ID]) Describe(description string) *EventlessTransition[ID] {
	t.description = description
	return t
}

// Description returns the label, empty unless set
func (t *EventlessTransition[ID]) Description() string {
	return t.description
}

// Reaches declares the targets the guard can select
func (t *EventlessTransition[ID]) Reaches(targets ...ID) *EventlessTransition[ID] {
	t.targets = append(t.targets, targets...)
	return t
}

// Targets returns the declared targets
func (t *EventlessTransition[ID]) Targets() []ID {
	return t.targets
}

// Eventless returns true for eventless transitions
func (t *EventlessTransition[ID]) Eventless() bool {
	return true
}

// EventType returns nil for eventless transitions
func (t *EventlessTransition[ID]) EventType() reflect.Type {
	return nil
}

func (t *EventlessTransition[ID]) valid() bool {
	return t != nil && t.guard != nil
}

func (t *EventlessTransition[ID]) evaluate(ctx context.Context, _ any) (ID, bool, error) {
	return safeEvaluateGuard(func() (ID, bool, error) {
		return t.guard(ctx)
	})
}

func (t *EventlessTransition[ID]) fire(ctx context.Context, _ any) error {
	if t.effect == nil {
		return nil
	}
	return safeExecuteEffect(t.effect, ctx)
}

// Goto returns a guard that always selects target for events of type E
func Goto[E any, ID comparable](target ID) EventGuard[E, ID] {
	return func(context.Context, E) (ID, bool, error) {
		return target, true, nil
	}
}

// GotoIf returns a guard selecting target when pred holds
func GotoIf[E any, ID comparable](target ID, pred func(ctx context.Context, event E) bool) EventGuard[E, ID] {
	return func(ctx context.Context, event E) (ID, bool, error) {
		var zero ID
		if !pred(ctx, event) {
			return zero, false, nil
		}
		return target, true, nil
	}
}

// Immediately returns an eventless guard that always selects target
func Immediately[ID comparable](target ID) EventlessGuard[ID] {
	return func(context.Context) (ID, bool, error) {
		return target, true, nil
	}
}

// ImmediatelyIf returns an eventless guard selecting target when pred holds
func ImmediatelyIf[ID comparable](target ID, pred func(ctx context.Context) bool) EventlessGuard[ID] {
	return func(ctx context.Context) (ID, bool, error) {
		var zero ID
		if !pred(ctx) {
			return zero, false, nil
		}
		return target, true, nil
	}
}

// safeEvaluateGuard evaluates a guard with panic recovery
func safeEvaluateGuard[ID comparable](guard func() (ID, bool, error)) (target ID, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero ID
			target, ok, err = zero, false, fmt.Errorf("guard panic: %v", r)
		}
	}()

	return guard()
}

// Named is implemented by events that carry their own name
type Named interface {
	EventName() string
}

// EventName renders an event for matching, logs and errors. Named events use
// their name, strings are their own name, anything else is its type.
func EventName(event any) string {
	switch e := event.(type) {
	case nil:
		return ""
	case Named:
		return e.EventName()
	case string:
		return e
	default:
		return fmt.Sprintf("%T", event)
	}
}
