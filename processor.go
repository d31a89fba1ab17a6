package statechart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
)

// Status is the lifecycle phase of a processor
type Status int32

const (
	// StatusCreated is the phase before the event loop starts
	StatusCreated Status = iota
	// StatusRunning means the event loop is active
	StatusRunning
	// StatusTerminated means the loop ended; the processor is unusable
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunning:
		return "running"
	case StatusTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Stats are processor counters
type Stats struct {
	Macrosteps      uint64
	Microsteps      uint64
	UnhandledEvents uint64
	// QueuedEvents counts events and drain barriers not yet taken by the loop
	QueuedEvents int
}

// cause is an entry of the internal pending-cause queue. A marker asks the
// loop to re-check eventless transitions.
type cause struct {
	event  any
	marker bool
}

// selection is a transition chosen for the current configuration
type selection[ID comparable] struct {
	transition Transition[ID]
	declaredOn State[ID]
	target     ID
}

// Processor runs a statechart over a Definition.
//
// All guards and effects execute on a single goroutine owned by the
// processor, strictly one after another. AddEvent, ActiveStates, IsInState,
// Drain and Dispose are safe for concurrent use.
type Processor[ID comparable] struct {
	id        string
	def       *Definition[ID]
	logger    *slog.Logger
	tracer    trace.Tracer
	observers *ObserverManager[ID]

	// effects run on a context detached from the caller's cancellation so
	// forced exits still see a live context
	effectCtx context.Context

	queue   *eventQueue
	pending []cause

	mu     sync.RWMutex
	active []State[ID]

	status      *atomic.Int32
	disposing   *atomic.Bool
	macrosteps  *atomic.Uint64
	microsteps  *atomic.Uint64
	unhandled   *atomic.Uint64
	stop        chan struct{}
	disposeOnce sync.Once
	done        *completion
}

// New creates a processor, enters the initial configuration of def and runs
// the startup macrostep before returning. Cancelling ctx disposes the
// processor. If initialization fails the processor is terminated and the
// error is returned.
func New[ID comparable](ctx context.Context, def *Definition[ID], opts ...Option[ID]) (*Processor[ID], error) {
	if def == nil {
		return nil, NewConfigurationError("processor", ErrNilDefinition, "definition is required")
	}

	cfg := defaultOptions[ID]()
	for _, opt := range opts {
		opt(cfg)
	}

	id := uuid.New().String()
	p := &Processor[ID]{
		id:         id,
		def:        def,
		logger:     cfg.logger.With("processor_id", id),
		tracer:     cfg.tracerProvider.Tracer(tracerName),
		observers:  NewObserverManager[ID](),
		effectCtx:  context.WithoutCancel(ctx),
		queue:      newEventQueue(),
		status:     atomic.NewInt32(int32(StatusCreated)),
		disposing:  atomic.NewBool(false),
		macrosteps: atomic.NewUint64(0),
		microsteps: atomic.NewUint64(0),
		unhandled:  atomic.NewUint64(0),
		stop:       make(chan struct{}),
		done:       newCompletion(),
	}
	for _, observer := range cfg.observers {
		p.observers.AddObserver(observer)
	}

	stopAfter := context.AfterFunc(ctx, p.Dispose)

	ready := make(chan error, 1)
	go func() {
		defer stopAfter()
		p.run(ready)
	}()

	if err := <-ready; err != nil {
		<-p.done.done
		return nil, p.Err()
	}

	return p, nil
}

// ID returns the unique identifier assigned at construction
func (p *Processor[ID]) ID() string {
	return p.id
}

// Definition returns the machine definition the processor runs
func (p *Processor[ID]) Definition() *Definition[ID] {
	return p.def
}

// Status returns the lifecycle phase
func (p *Processor[ID]) Status() Status {
	return Status(p.status.Load())
}

// Stats returns a snapshot of the processor counters
func (p *Processor[ID]) Stats() Stats {
	return Stats{
		Macrosteps:      p.macrosteps.Load(),
		Microsteps:      p.microsteps.Load(),
		UnhandledEvents: p.unhandled.Load(),
		QueuedEvents:    p.queue.len(),
	}
}

// Observers returns the observer manager
func (p *Processor[ID]) Observers() *ObserverManager[ID] {
	return p.observers
}

// AddEvent appends event to the input queue without blocking. After
// termination or disposal it returns an error wrapping ErrTerminated.
func (p *Processor[ID]) AddEvent(event any) error {
	if event == nil {
		return NewMachineError(ErrCodeInvalidEvent, "AddEvent", ErrNilEvent, "event must not be nil")
	}
	if !p.queue.push(queueItem{event: event}) {
		return NewTerminatedError("AddEvent")
	}
	return nil
}

// ActiveStates returns a snapshot of the active configuration, outermost
// state first and the active atomic state last.
func (p *Processor[ID]) ActiveStates() []ID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]ID, len(p.active))
	for i, s := range p.active {
		ids[i] = s.ID()
	}
	return ids
}

// IsInState reports whether id is anywhere in the active configuration
func (p *Processor[ID]) IsInState(id ID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, s := range p.active {
		if s.ID() == id {
			return true
		}
	}
	return false
}

// Dispose stops the processor. The input queue is closed immediately, the
// step in flight completes, then every active state is exited from the leaf
// to the root. Dispose does not wait; use Wait or Done to observe the end.
// Calling it more than once has no further effect.
func (p *Processor[ID]) Dispose() {
	p.disposeOnce.Do(func() {
		p.disposing.Store(true)
		p.queue.close()
		close(p.stop)
	})
}

// Done is closed once the processor terminated
func (p *Processor[ID]) Done() <-chan struct{} {
	return p.done.done
}

// Err returns the error that terminated the processor, nil while running or
// after a clean disposal.
func (p *Processor[ID]) Err() error {
	return p.done.current()
}

// Wait blocks until the processor terminated and returns its termination error
func (p *Processor[ID]) Wait(ctx context.Context) error {
	return p.done.wait(ctx)
}

// Drain blocks until every event added before the call has been processed.
func (p *Processor[ID]) Drain(ctx context.Context) error {
	barrier := make(chan error, 1)
	if !p.queue.push(queueItem{barrier: barrier}) {
		return orTerminated(p.Err(), "Drain")
	}

	select {
	case err := <-barrier:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// orTerminated returns err, or ErrTerminated for a clean termination
func orTerminated(err error, operation string) error {
	if err != nil {
		return err
	}
	return NewTerminatedError(operation)
}

// run is the event loop goroutine
func (p *Processor[ID]) run(ready chan<- error) {
	p.status.Store(int32(StatusRunning))

	err := p.initialize()
	ready <- err

	if err == nil {
		err = p.serve()
	}

	p.terminate(err)
}

// initialize enters the initial configuration and drains eventless transitions
func (p *Processor[ID]) initialize() (err error) {
	ctx, span := p.startSpan(p.effectCtx, SpanInitialize, idAttr("statechart.initial", p.def.Initial()))
	defer func() { endSpan(span, err) }()

	target, err := p.def.State(p.def.Initial())
	if err != nil {
		return err
	}

	if err := p.enterFrom(ctx, target, nil); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "Processor started", "active", p.ActiveStates())
	p.observers.NotifyMachineStarted(ctx)

	return p.macrostep(cause{marker: true})
}

// serve processes external events in arrival order until disposal or failure
func (p *Processor[ID]) serve() error {
	for {
		if p.disposing.Load() {
			return nil
		}

		item, ok := p.queue.pop()
		if !ok {
			select {
			case <-p.queue.wake:
			case <-p.stop:
			}
			continue
		}

		if item.barrier != nil {
			item.barrier <- nil
			continue
		}

		if err := p.macrostep(cause{event: item.event}); err != nil {
			return err
		}
	}
}

// macrostep processes one cause until no eventless transition is enabled and
// the pending-cause queue is empty. Eventless transitions always win over the
// next pending cause.
func (p *Processor[ID]) macrostep(first cause) (err error) {
	ctx, span := p.startSpan(p.effectCtx, SpanMacrostep, attribute.String("statechart.event", EventName(first.event)))
	defer func() { endSpan(span, err) }()

	p.macrosteps.Inc()
	p.pending = append(p.pending[:0], first)

	for !p.disposing.Load() {
		sel, found, err := p.selectTransition(ctx, nil, true)
		if err != nil {
			return err
		}
		if found {
			if err := p.microstep(ctx, sel, nil); err != nil {
				return err
			}
			continue
		}

		if len(p.pending) == 0 {
			return nil
		}

		next := p.pending[0]
		p.pending = p.pending[1:]
		if next.marker {
			continue
		}

		sel, found, err = p.selectTransition(ctx, next.event, false)
		if err != nil {
			return err
		}
		if !found {
			p.unhandled.Inc()
			p.logger.DebugContext(ctx, "Event unhandled",
				"event", EventName(next.event),
				"active", p.ActiveStates(),
			)
			p.observers.NotifyEventUnhandled(ctx, next.event)
			continue
		}

		if err := p.microstep(ctx, sel, next.event); err != nil {
			return err
		}
	}

	return nil
}

// selectTransition scans the active atomic state and then its ancestors,
// nearest first; within one state, declaration order. The first transition of
// the requested kind returning a target wins.
func (p *Processor[ID]) selectTransition(ctx context.Context, event any, eventless bool) (selection[ID], bool, error) {
	leaf, ok := p.leaf()
	if !ok {
		return selection[ID]{}, false, nil
	}

	for _, state := range chain(leaf) {
		for _, t := range state.Transitions() {
			if t.Eventless() != eventless {
				continue
			}
			target, ok, err := t.evaluate(ctx, event)
			if err != nil {
				return selection[ID]{}, false, NewGuardError(state.ID(), EventName(event), err)
			}
			if ok {
				return selection[ID]{transition: t, declaredOn: state, target: target}, true, nil
			}
		}
	}

	return selection[ID]{}, false, nil
}

// microstep exits up to the LCCA, runs the transition effect, then enters
// down to an atomic state.
func (p *Processor[ID]) microstep(ctx context.Context, sel selection[ID], event any) (err error) {
	leaf, _ := p.leaf()

	ctx, span := p.startSpan(ctx, SpanMicrostep,
		idAttr("statechart.source", leaf.ID()),
		idAttr("statechart.declared_on", sel.declaredOn.ID()),
		idAttr("statechart.target", sel.target),
		attribute.String("statechart.event", EventName(event)),
	)
	defer func() { endSpan(span, err) }()

	target, err := p.def.State(sel.target)
	if err != nil {
		return err
	}

	p.microsteps.Inc()
	lcca := leastCommonCompoundAncestor(leaf, target)

	for _, state := range exitSet(leaf, lcca) {
		if p.disposing.Load() {
			return nil
		}
		if err := p.exitState(ctx, state); err != nil {
			return err
		}
	}

	if p.disposing.Load() {
		return nil
	}
	if err := sel.transition.fire(ctx, event); err != nil {
		return NewEffectError(EffectTransition, sel.declaredOn.ID(), err)
	}

	if err := p.enterFrom(ctx, target, lcca); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "Transition executed",
		"from", leaf.ID(),
		"to", sel.target,
		"event", EventName(event),
		"active", p.ActiveStates(),
	)
	p.observers.NotifyTransition(ctx, leaf.ID(), sel.target, event)

	if n := len(p.pending); n == 0 || !p.pending[n-1].marker {
		p.pending = append(p.pending, cause{marker: true})
	}

	return nil
}

// enterFrom enters the ancestors of target strictly below lcca, outermost
// first, then target, then default children until an atomic state is active.
// A nil lcca means above the root.
func (p *Processor[ID]) enterFrom(ctx context.Context, target State[ID], lcca *CompoundState[ID]) error {
	for _, state := range entryPath(target, lcca) {
		if p.disposing.Load() {
			return nil
		}
		if err := p.enterState(ctx, state); err != nil {
			return err
		}
	}

	current := target
	for {
		compound, ok := current.(*CompoundState[ID])
		if !ok {
			return nil
		}
		child, err := compound.DefaultState()
		if err != nil {
			return err
		}
		if p.disposing.Load() {
			return nil
		}
		if err := p.enterState(ctx, child); err != nil {
			return err
		}
		current = child
	}
}

// enterState appends state to the configuration, then runs its enter effect
func (p *Processor[ID]) enterState(ctx context.Context, state State[ID]) error {
	p.mu.Lock()
	p.active = append(p.active, state)
	p.mu.Unlock()

	if err := state.base().runEnter(ctx); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "State entered", "state", state.ID())
	p.observers.NotifyStateEnter(ctx, state.ID())
	return nil
}

// exitState runs the exit effect of the active leaf state, then removes it.
// The state is removed even when the effect fails so it is never exited twice.
func (p *Processor[ID]) exitState(ctx context.Context, state State[ID]) error {
	err := state.base().runExit(ctx)

	p.mu.Lock()
	if n := len(p.active); n > 0 && p.active[n-1].ID() == state.ID() {
		p.active = p.active[:n-1]
	}
	p.mu.Unlock()

	if err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "State exited", "state", state.ID())
	p.observers.NotifyStateExit(ctx, state.ID())
	return nil
}

// terminate force-exits every active state, leaf to root, and resolves the
// completion signal with cause joined with any exit failure.
func (p *Processor[ID]) terminate(cause error) {
	p.disposing.Store(true)
	p.queue.close()

	ctx, span := p.startSpan(p.effectCtx, SpanDispose)

	if cause != nil {
		p.logger.ErrorContext(ctx, "Processor failed", "error", cause, "active", p.ActiveStates())
		p.observers.NotifyError(ctx, cause)
	}

	var exitErrs []error
	for {
		leaf, ok := p.leaf()
		if !ok {
			break
		}
		if err := p.exitState(ctx, leaf); err != nil {
			p.logger.ErrorContext(ctx, "Exit failed during disposal", "state", leaf.ID(), "error", err)
			exitErrs = append(exitErrs, err)
		}
	}

	err := cause
	if len(exitErrs) > 0 {
		err = errors.Join(append([]error{cause}, exitErrs...)...)
	}

	p.status.Store(int32(StatusTerminated))
	endSpan(span, err)

	for _, item := range p.queue.drain() {
		if item.barrier != nil {
			item.barrier <- orTerminated(err, "Drain")
		}
	}

	p.logger.InfoContext(ctx, "Processor stopped", "stats", p.Stats(), "error", err)
	p.observers.NotifyMachineStopped(ctx, err)
	p.done.resolve(err)
}

// leaf returns the active atomic state
func (p *Processor[ID]) leaf() (State[ID], bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.active) == 0 {
		return nil, false
	}
	return p.active[len(p.active)-1], true
}

// chain returns state followed by its ancestors, nearest first
func chain[ID comparable](state State[ID]) []State[ID] {
	ancestors := state.Ancestors()
	result := make([]State[ID], 0, len(ancestors)+1)
	result = append(result, state)
	for _, a := range ancestors {
		result = append(result, a)
	}
	return result
}

// leastCommonCompoundAncestor returns the nearest ancestor of source that is
// also an ancestor of target, or nil when they only meet above the root.
func leastCommonCompoundAncestor[ID comparable](source, target State[ID]) *CompoundState[ID] {
	targetAncestors := target.Ancestors()
	for _, candidate := range source.Ancestors() {
		for _, a := range targetAncestors {
			if a.ID() == candidate.ID() {
				return candidate
			}
		}
	}
	return nil
}

// exitSet is source and its ancestors strictly below lcca, deepest first
func exitSet[ID comparable](source State[ID], lcca *CompoundState[ID]) []State[ID] {
	var result []State[ID]
	for _, state := range chain(source) {
		if lcca != nil && state.ID() == lcca.ID() {
			break
		}
		result = append(result, state)
	}
	return result
}

// entryPath is the ancestors of target strictly below lcca, outermost first,
// followed by target itself
func entryPath[ID comparable](target State[ID], lcca *CompoundState[ID]) []State[ID] {
	path := []State[ID]{target}
	for _, a := range target.Ancestors() {
		if lcca != nil && a.ID() == lcca.ID() {
			break
		}
		path = append(path, a)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
