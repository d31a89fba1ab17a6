package statechart

import (
	"context"
	"fmt"
	"sync"
)

// Observer represents an entity that observes processor lifecycle
type Observer[ID comparable] interface {
	// Required methods

	// OnTransition is called after a microstep completed its entries
	OnTransition(ctx context.Context, from ID, to ID, event any)

	// OnStateEnter is called after a state was entered
	OnStateEnter(ctx context.Context, state ID)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver[ID comparable] interface {
	Observer[ID]

	// OnStateExit is called after a state was exited
	OnStateExit(ctx context.Context, state ID)

	// OnEventUnhandled is called when an event was consumed without a transition
	OnEventUnhandled(ctx context.Context, event any)

	// OnError is called when a guard, effect or lookup failure terminates the processor
	OnError(ctx context.Context, err error)

	// OnMachineStarted is called once the initial configuration was entered
	OnMachineStarted(ctx context.Context)

	// OnMachineStopped is called once the processor terminated, with the cause if any
	OnMachineStopped(ctx context.Context, err error)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver[ID comparable] struct{}

// OnTransition implements the required Observer method
func (o *BaseObserver[ID]) OnTransition(ctx context.Context, from ID, to ID, event any) {}

// OnStateEnter implements the required Observer method
func (o *BaseObserver[ID]) OnStateEnter(ctx context.Context, state ID) {}

// OnStateExit implements the optional ExtendedObserver method
func (o *BaseObserver[ID]) OnStateExit(ctx context.Context, state ID) {}

// OnEventUnhandled implements the optional ExtendedObserver method
func (o *BaseObserver[ID]) OnEventUnhandled(ctx context.Context, event any) {}

// OnError implements the optional ExtendedObserver method
func (o *BaseObserver[ID]) OnError(ctx context.Context, err error) {}

// OnMachineStarted implements the optional ExtendedObserver method
func (o *BaseObserver[ID]) OnMachineStarted(ctx context.Context) {}

// OnMachineStopped implements the optional ExtendedObserver method
func (o *BaseObserver[ID]) OnMachineStopped(ctx context.Context, err error) {}

// ObserverManager manages a collection of observers
type ObserverManager[ID comparable] struct {
	mutex     sync.RWMutex
	observers []Observer[ID]
}

// NewObserverManager creates a new observer manager
func NewObserverManager[ID comparable]() *ObserverManager[ID] {
	return &ObserverManager[ID]{
		observers: make([]Observer[ID], 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager[ID]) AddObserver(observer Observer[ID]) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager[ID]) RemoveObserver(observer Observer[ID]) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered observers
func (om *ObserverManager[ID]) Len() int {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	return len(om.observers)
}

func (om *ObserverManager[ID]) snapshot() []Observer[ID] {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	observers := make([]Observer[ID], len(om.observers))
	copy(observers, om.observers)
	return observers
}

// notify calls fn for every observer. A panicking observer is reported to
// extended observers through OnError and never reaches the processor.
func (om *ObserverManager[ID]) notify(ctx context.Context, method string, fn func(Observer[ID])) {
	for _, observer := range om.snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if extObs, ok := observer.(ExtendedObserver[ID]); ok {
						func() {
							defer func() { _ = recover() }()
							extObs.OnError(ctx, fmt.Errorf("observer panic in %s: %v", method, r))
						}()
					}
				}
			}()
			fn(observer)
		}()
	}
}

// notifyExtended is notify restricted to extended observers
func (om *ObserverManager[ID]) notifyExtended(ctx context.Context, method string, fn func(ExtendedObserver[ID])) {
	om.notify(ctx, method, func(observer Observer[ID]) {
		if extObs, ok := observer.(ExtendedObserver[ID]); ok {
			fn(extObs)
		}
	})
}

// NotifyTransition notifies all observers of a completed microstep
func (om *ObserverManager[ID]) NotifyTransition(ctx context.Context, from ID, to ID, event any) {
	om.notify(ctx, "OnTransition", func(o Observer[ID]) { o.OnTransition(ctx, from, to, event) })
}

// NotifyStateEnter notifies all observers of state entry
func (om *ObserverManager[ID]) NotifyStateEnter(ctx context.Context, state ID) {
	om.notify(ctx, "OnStateEnter", func(o Observer[ID]) { o.OnStateEnter(ctx, state) })
}

// NotifyStateExit notifies all observers of state exit
func (om *ObserverManager[ID]) NotifyStateExit(ctx context.Context, state ID) {
	om.notifyExtended(ctx, "OnStateExit", func(o ExtendedObserver[ID]) { o.OnStateExit(ctx, state) })
}

// NotifyEventUnhandled notifies all observers of an event consumed without effect
func (om *ObserverManager[ID]) NotifyEventUnhandled(ctx context.Context, event any) {
	om.notifyExtended(ctx, "OnEventUnhandled", func(o ExtendedObserver[ID]) { o.OnEventUnhandled(ctx, event) })
}

// NotifyError notifies all observers of a fatal error
func (om *ObserverManager[ID]) NotifyError(ctx context.Context, err error) {
	om.notifyExtended(ctx, "OnError", func(o ExtendedObserver[ID]) { o.OnError(ctx, err) })
}

// NotifyMachineStarted notifies all observers that the processor is running
func (om *ObserverManager[ID]) NotifyMachineStarted(ctx context.Context) {
	om.notifyExtended(ctx, "OnMachineStarted", func(o ExtendedObserver[ID]) { o.OnMachineStarted(ctx) })
}

// NotifyMachineStopped notifies all observers that the processor terminated
func (om *ObserverManager[ID]) NotifyMachineStopped(ctx context.Context, err error) {
	om.notifyExtended(ctx, "OnMachineStopped", func(o ExtendedObserver[ID]) { o.OnMachineStopped(ctx, err) })
}
