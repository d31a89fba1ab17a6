package statechart

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

// TestObserver is a mock observer for testing that captures all observer events
type TestObserver[ID comparable] struct {
	mutex       sync.RWMutex
	Transitions []TransitionEvent[ID]
	StateEnters []ID
	StateExits  []ID
	Unhandled   []any
	Errors      []error
	Started     int
	Stopped     []error
}

// TransitionEvent is a recorded OnTransition call
type TransitionEvent[ID comparable] struct {
	From  ID
	To    ID
	Event any
}

// NewTestObserver creates a new test observer
func NewTestObserver[ID comparable]() *TestObserver[ID] {
	return &TestObserver[ID]{}
}

func (o *TestObserver[ID]) OnTransition(_ context.Context, from ID, to ID, event any) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Transitions = append(o.Transitions, TransitionEvent[ID]{From: from, To: to, Event: event})
}

func (o *TestObserver[ID]) OnStateEnter(_ context.Context, state ID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.StateEnters = append(o.StateEnters, state)
}

func (o *TestObserver[ID]) OnStateExit(_ context.Context, state ID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.StateExits = append(o.StateExits, state)
}

func (o *TestObserver[ID]) OnEventUnhandled(_ context.Context, event any) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Unhandled = append(o.Unhandled, event)
}

func (o *TestObserver[ID]) OnError(_ context.Context, err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Errors = append(o.Errors, err)
}

func (o *TestObserver[ID]) OnMachineStarted(context.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Started++
}

func (o *TestObserver[ID]) OnMachineStopped(_ context.Context, err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Stopped = append(o.Stopped, err)
}

// Reset clears every recorded call
func (o *TestObserver[ID]) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Transitions = nil
	o.StateEnters = nil
	o.StateExits = nil
	o.Unhandled = nil
	o.Errors = nil
	o.Started = 0
	o.Stopped = nil
}

func (o *TestObserver[ID]) TransitionCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Transitions)
}

func (o *TestObserver[ID]) Entered() []ID {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return append([]ID(nil), o.StateEnters...)
}

func (o *TestObserver[ID]) Exited() []ID {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return append([]ID(nil), o.StateExits...)
}

func (o *TestObserver[ID]) UnhandledCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Unhandled)
}

// Trace records side effects in the order the processor runs them
type Trace struct {
	mutex   sync.Mutex
	entries []string
}

// NewTrace creates an empty trace
func NewTrace() *Trace {
	return &Trace{}
}

// Record appends an entry
func (tr *Trace) Record(entry string) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	tr.entries = append(tr.entries, entry)
}

// Entries returns a copy of the recorded entries
func (tr *Trace) Entries() []string {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	return append([]string(nil), tr.entries...)
}

// Reset clears the trace
func (tr *Trace) Reset() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	tr.entries = nil
}

// Effect returns an effect recording entry
func (tr *Trace) Effect(entry string) Effect {
	return func(context.Context) error {
		tr.Record(entry)
		return nil
	}
}

// Traced returns enter and exit options recording "enter:<id>" and "exit:<id>"
func Traced[ID comparable](tr *Trace, id ID) []StateOption[ID] {
	return []StateOption[ID]{
		WithEnter[ID](tr.Effect(fmt.Sprintf("enter:%v", id))),
		WithExit[ID](tr.Effect(fmt.Sprintf("exit:%v", id))),
	}
}

// Test machine builders - common machine configurations for testing

// CreateSimpleDefinition creates idle -> running -> stopped -> idle, driven by
// string events "start", "stop" and "reset"
func CreateSimpleDefinition(t testing.TB, tr *Trace) *Definition[string] {
	t.Helper()

	on := func(name, target string) Transition[string] {
		return On[string, string](GotoIf(target, func(_ context.Context, e string) bool { return e == name }))
	}

	def, err := NewDefinition([]State[string]{
		NewAtomic("idle", append(Traced(tr, "idle"), WithTransitions(on("start", "running")))...),
		NewAtomic("running", append(Traced(tr, "running"), WithTransitions(on("stop", "stopped")))...),
		NewAtomic("stopped", append(Traced(tr, "stopped"), WithTransitions(on("reset", "idle")))...),
	})
	require.NoError(t, err)
	return def
}

// CreateHierarchicalDefinition creates offline and online{idle, processing}
func CreateHierarchicalDefinition(t testing.TB, tr *Trace) *Definition[string] {
	t.Helper()

	on := func(name, target string) Transition[string] {
		return On[string, string](GotoIf(target, func(_ context.Context, e string) bool { return e == name }))
	}

	online, err := NewCompound("online", []State[string]{
		NewAtomic("online.idle", append(Traced(tr, "online.idle"), WithTransitions(on("process", "online.processing")))...),
		NewAtomic("online.processing", append(Traced(tr, "online.processing"), WithTransitions(on("complete", "online.idle")))...),
	}, append(Traced(tr, "online"), WithTransitions(on("disconnect", "offline")))...)
	require.NoError(t, err)

	def, err := NewDefinition([]State[string]{
		NewAtomic("offline", append(Traced(tr, "offline"), WithTransitions(on("connect", "online")))...),
		online,
	})
	require.NoError(t, err)
	return def
}

// StartProcessor creates a processor logging to t and disposes it on cleanup
func StartProcessor[ID comparable](t testing.TB, def *Definition[ID], opts ...Option[ID]) *Processor[ID] {
	t.Helper()

	opts = append([]Option[ID]{WithLogger[ID](slogt.New(t))}, opts...)
	p, err := New(context.Background(), def, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		p.Dispose()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Wait(ctx)
	})

	return p
}

// Send adds events and waits until all of them were processed
func Send[ID comparable](t testing.TB, p *Processor[ID], events ...any) {
	t.Helper()

	for _, event := range events {
		require.NoError(t, p.AddEvent(event))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Drain(ctx))
}

// AssertActive checks the whole active configuration, outermost first
func AssertActive[ID comparable](t testing.TB, p *Processor[ID], expected ...ID) {
	t.Helper()
	require.Equal(t, expected, p.ActiveStates())
}

// WaitTerminated waits for the processor to stop and returns its error
func WaitTerminated[ID comparable](t testing.TB, p *Processor[ID]) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	select {
	case <-p.Done():
		return p.Err()
	case <-ctx.Done():
		t.Fatalf("processor %s did not terminate", p.ID())
		return nil
	}
}
