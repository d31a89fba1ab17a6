package loader

import (
	"errors"
	"fmt"
	"sync"

	"github.com/anggasct/statechart"
	"github.com/anggasct/statechart/pkg/builders"
)

var (
	// ErrUnknownGuard indicates that a document names an unregistered guard.
	ErrUnknownGuard = errors.New("unknown guard")
	// ErrUnknownEffect indicates that a document names an unregistered effect.
	ErrUnknownEffect = errors.New("unknown effect")
	// ErrUnknownAction indicates that a document names an unregistered action.
	ErrUnknownAction = errors.New("unknown action")
)

// Registry maps the names used in documents to code.
type Registry struct {
	mu      sync.RWMutex
	guards  map[string]builders.Guard
	effects map[string]statechart.Effect
	actions map[string]builders.Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		guards:  make(map[string]builders.Guard),
		effects: make(map[string]statechart.Effect),
		actions: make(map[string]builders.Action),
	}
}

// Guard registers a transition guard.
func (r *Registry) Guard(name string, guard builders.Guard) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.guards[name] = guard

	return r
}

// Effect registers a state enter or exit effect.
func (r *Registry) Effect(name string, effect statechart.Effect) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.effects[name] = effect

	return r
}

// Action registers a transition action.
func (r *Registry) Action(name string, action builders.Action) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions[name] = action

	return r
}

func (r *Registry) guard(name string) (builders.Guard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	guard, ok := r.guards[name]
	if !ok || guard == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGuard, name)
	}

	return guard, nil
}

func (r *Registry) effect(name string) (statechart.Effect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	effect, ok := r.effects[name]
	if !ok || effect == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, name)
	}

	return effect, nil
}

func (r *Registry) action(name string) (builders.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, ok := r.actions[name]
	if !ok || action == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}

	return action, nil
}
