package statechart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// when fires on the string event name
func when(name, target string) Transition[string] {
	return On[string, string](GotoIf(target, func(_ context.Context, e string) bool { return e == name }))
}

func compound(t *testing.T, id string, children []State[string], opts ...StateOption[string]) *CompoundState[string] {
	t.Helper()
	s, err := NewCompound(id, children, opts...)
	require.NoError(t, err)
	return s
}

func definition(t *testing.T, roots []State[string], opts ...DefinitionOption[string]) *Definition[string] {
	t.Helper()
	def, err := NewDefinition(roots, opts...)
	require.NoError(t, err)
	return def
}

func TestProcessor_SimpleTransition(t *testing.T) {
	trace := NewTrace()
	def := definition(t, []State[string]{
		NewAtomic("A", append(Traced(trace, "A"), WithTransitions[string](when("go", "B")))...),
		NewAtomic("B", Traced(trace, "B")...),
	})

	p := StartProcessor(t, def)
	AssertActive(t, p, "A")
	assert.Equal(t, StatusRunning, p.Status())

	trace.Reset()
	Send(t, p, "go")

	AssertActive(t, p, "B")
	assert.Equal(t, []string{"exit:A", "enter:B"}, trace.Entries())
}

func TestProcessor_InitialConfiguration(t *testing.T) {
	trace := NewTrace()
	inner := compound(t, "inner", []State[string]{
		NewAtomic("inner.a", Traced(trace, "inner.a")...),
		NewAtomic("inner.b", Traced(trace, "inner.b")...),
	}, append(Traced(trace, "inner"), WithInitial("inner.b"))...)
	outer := compound(t, "outer", []State[string]{NewAtomic("outer.x"), inner},
		append(Traced(trace, "outer"), WithInitial("inner"))...)

	t.Run("default cascade from the first root", func(t *testing.T) {
		trace.Reset()
		p := StartProcessor(t, definition(t, []State[string]{outer, NewAtomic("other")}))

		AssertActive(t, p, "outer", "inner", "inner.b")
		assert.Equal(t, []string{"enter:outer", "enter:inner", "enter:inner.b"}, trace.Entries())
	})

	t.Run("initial override enters ancestors first", func(t *testing.T) {
		trace.Reset()
		def := definition(t, []State[string]{outer, NewAtomic("other")}, WithInitialState("inner.a"))
		p := StartProcessor(t, def)

		AssertActive(t, p, "outer", "inner", "inner.a")
		assert.Equal(t, []string{"enter:outer", "enter:inner", "enter:inner.a"}, trace.Entries())
	})
}

func TestProcessor_ChildPreemptsAncestor(t *testing.T) {
	trace := NewTrace()
	parent := compound(t, "Parent", []State[string]{
		NewAtomic("Child1", append(Traced(trace, "Child1"),
			WithTransitions[string](when("go", "Target")))...),
		NewAtomic("Child2", Traced(trace, "Child2")...),
	}, append(Traced(trace, "Parent"), WithInitial("Child1"), WithTransitions[string](when("go", "OtherTarget")))...)

	targetParent := compound(t, "TargetParent", []State[string]{
		NewAtomic("Target", Traced(trace, "Target")...),
	}, Traced(trace, "TargetParent")...)

	def := definition(t, []State[string]{
		parent,
		targetParent,
		NewAtomic("OtherTarget", Traced(trace, "OtherTarget")...),
	})

	p := StartProcessor(t, def)
	trace.Reset()
	Send(t, p, "go")

	AssertActive(t, p, "TargetParent", "Target")
	assert.False(t, p.IsInState("OtherTarget"))
	assert.Equal(t, []string{
		"exit:Child1", "exit:Parent", "enter:TargetParent", "enter:Target",
	}, trace.Entries())
}

func TestProcessor_AncestorTransitionWhenChildDeclines(t *testing.T) {
	parent := compound(t, "Parent", []State[string]{
		NewAtomic("Child", WithTransitions[string](when("other", "Elsewhere"))),
	}, WithTransitions[string](when("go", "Target")))

	p := StartProcessor(t, definition(t, []State[string]{parent, NewAtomic("Target"), NewAtomic("Elsewhere")}))
	Send(t, p, "go")

	AssertActive(t, p, "Target")
}

func TestProcessor_DeclarationOrder(t *testing.T) {
	def := definition(t, []State[string]{
		NewAtomic("A", WithTransitions[string](
			On[string, string](GotoIf("never", func(context.Context, string) bool { return false })),
			when("go", "First"),
			when("go", "Second"),
		)),
		NewAtomic("First"),
		NewAtomic("Second"),
		NewAtomic("never"),
	})

	p := StartProcessor(t, def)
	Send(t, p, "go")

	AssertActive(t, p, "First")
}

func TestProcessor_EventlessChain(t *testing.T) {
	trace := NewTrace()
	def := definition(t, []State[string]{
		NewAtomic("X", append(Traced(trace, "X"), WithTransitions[string](when("start", "A")))...),
		NewAtomic("A", append(Traced(trace, "A"),
			WithTransitions[string](when("go", "Wrong"), Always(Immediately("B"))))...),
		NewAtomic("B", append(Traced(trace, "B"),
			WithTransitions[string](when("go", "Wrong"), Always(Immediately("C"))))...),
		NewAtomic("C", append(Traced(trace, "C"), WithTransitions[string](when("go", "D")))...),
		NewAtomic("D", Traced(trace, "D")...),
		NewAtomic("Wrong", Traced(trace, "Wrong")...),
	})

	p := StartProcessor(t, def)
	trace.Reset()

	// the eventless chain drains before the queued "go" is consumed
	require.NoError(t, p.AddEvent("start"))
	require.NoError(t, p.AddEvent("go"))
	Send(t, p)

	AssertActive(t, p, "D")
	assert.Equal(t, []string{
		"exit:X", "enter:A",
		"exit:A", "enter:B",
		"exit:B", "enter:C",
		"exit:C", "enter:D",
	}, trace.Entries())
}

func TestProcessor_EventlessDuringInitialization(t *testing.T) {
	def := definition(t, []State[string]{
		NewAtomic("boot", WithTransitions[string](Always(Immediately("warmup")))),
		NewAtomic("warmup", WithTransitions[string](Always(Immediately("ready")))),
		NewAtomic("ready"),
	})

	p := StartProcessor(t, def)
	AssertActive(t, p, "ready")
	assert.Equal(t, uint64(2), p.Stats().Microsteps)
}

func TestProcessor_EventlessPreemptsQueuedEvent(t *testing.T) {
	counter := 0
	def := definition(t, []State[string]{
		NewAtomic("counting", WithTransitions[string](
			Always(ImmediatelyIf("done", func(context.Context) bool { return counter >= 3 })),
			On[int, string](Goto[int]("counting")).Do(func(_ context.Context, n int) error {
				counter += n
				return nil
			}),
		)),
		NewAtomic("done", WithTransitions[string](On[int, string](Goto[int]("overflow")))),
		NewAtomic("overflow"),
	})

	p := StartProcessor(t, def)
	Send(t, p, 1, 2)
	AssertActive(t, p, "done")

	Send(t, p, 5)
	AssertActive(t, p, "overflow")
	assert.Equal(t, 3, counter)
}

func TestProcessor_MicrostepOrdering(t *testing.T) {
	trace := NewTrace()

	source := compound(t, "P1", []State[string]{
		compound(t, "P1a", []State[string]{
			NewAtomic("leaf1", append(Traced(trace, "leaf1"),
				WithTransitions[string](On[string, string](Goto[string]("P2a")).Do(func(_ context.Context, e string) error {
					trace.Record("effect:" + e)
					return nil
				})))...),
		}, Traced(trace, "P1a")...),
	}, Traced(trace, "P1")...)

	target := compound(t, "P2", []State[string]{
		NewAtomic("P2.first", Traced(trace, "P2.first")...),
		compound(t, "P2a", []State[string]{
			NewAtomic("P2a.x", Traced(trace, "P2a.x")...),
			NewAtomic("P2a.y", Traced(trace, "P2a.y")...),
		}, append(Traced(trace, "P2a"), WithInitial("P2a.y"))...),
	}, Traced(trace, "P2")...)

	p := StartProcessor(t, definition(t, []State[string]{source, target}))
	AssertActive(t, p, "P1", "P1a", "leaf1")

	trace.Reset()
	Send(t, p, "cross")

	AssertActive(t, p, "P2", "P2a", "P2a.y")
	assert.Equal(t, []string{
		"exit:leaf1", "exit:P1a", "exit:P1",
		"effect:cross",
		"enter:P2", "enter:P2a", "enter:P2a.y",
	}, trace.Entries())
}

func TestProcessor_TransitionBelowLCCA(t *testing.T) {
	trace := NewTrace()
	parent := compound(t, "Parent", []State[string]{
		NewAtomic("A", append(Traced(trace, "A"),
			WithTransitions[string](when("self", "A"), when("sibling", "B")))...),
		NewAtomic("B", append(Traced(trace, "B"), WithTransitions[string](when("up", "Parent")))...),
	}, Traced(trace, "Parent")...)

	p := StartProcessor(t, definition(t, []State[string]{parent}))

	trace.Reset()
	Send(t, p, "self")
	AssertActive(t, p, "Parent", "A")
	assert.Equal(t, []string{"exit:A", "enter:A"}, trace.Entries())

	trace.Reset()
	Send(t, p, "sibling")
	AssertActive(t, p, "Parent", "B")
	assert.Equal(t, []string{"exit:A", "enter:B"}, trace.Entries())

	// targeting the root crosses it
	trace.Reset()
	Send(t, p, "up")
	AssertActive(t, p, "Parent", "A")
	assert.Equal(t, []string{"exit:B", "exit:Parent", "enter:Parent", "enter:A"}, trace.Entries())
}

func TestProcessor_TransitionToAncestorWithinTree(t *testing.T) {
	trace := NewTrace()
	grand := compound(t, "Grand", []State[string]{
		compound(t, "Mid", []State[string]{
			NewAtomic("M1", Traced(trace, "M1")...),
			NewAtomic("M2", append(Traced(trace, "M2"), WithTransitions[string](when("reset", "Mid")))...),
		}, append(Traced(trace, "Mid"), WithInitial("M2"))...),
	}, Traced(trace, "Grand")...)

	p := StartProcessor(t, definition(t, []State[string]{grand}))

	trace.Reset()
	Send(t, p, "reset")

	AssertActive(t, p, "Grand", "Mid", "M2")
	assert.Equal(t, []string{"exit:M2", "exit:Mid", "enter:Mid", "enter:M2"}, trace.Entries())
}

func TestProcessor_EventTypeDiscrimination(t *testing.T) {
	def := definition(t, []State[string]{
		NewAtomic("start", WithTransitions[string](
			On[int, string](Goto[int]("int")),
			On[float64, string](Goto[float64]("float")),
		)),
		NewAtomic("int", WithTransitions[string](On[float64, string](Goto[float64]("start")))),
		NewAtomic("float", WithTransitions[string](On[int, string](Goto[int]("start")))),
	})

	p := StartProcessor(t, def)

	Send(t, p, 2.5)
	AssertActive(t, p, "float")

	// "float" only reacts to ints
	Send(t, p, 1.5)
	AssertActive(t, p, "float")

	Send(t, p, 3)
	AssertActive(t, p, "start")

	Send(t, p, 3)
	AssertActive(t, p, "int")

	Send(t, p, 7)
	AssertActive(t, p, "int")
	assert.Equal(t, uint64(2), p.Stats().UnhandledEvents)
}

func TestProcessor_IsInState(t *testing.T) {
	p := StartProcessor(t, CreateHierarchicalDefinition(t, NewTrace()))

	AssertActive(t, p, "offline")
	assert.True(t, p.IsInState("offline"))
	assert.False(t, p.IsInState("online"))

	Send(t, p, "connect")
	AssertActive(t, p, "online", "online.idle")
	assert.True(t, p.IsInState("online"))
	assert.True(t, p.IsInState("online.idle"))
	assert.False(t, p.IsInState("offline"))
	assert.False(t, p.IsInState("online.processing"))

	Send(t, p, "process", "disconnect")
	AssertActive(t, p, "offline")
}

func TestProcessor_ActiveStatesIsSnapshot(t *testing.T) {
	p := StartProcessor(t, CreateHierarchicalDefinition(t, NewTrace()))
	Send(t, p, "connect")

	snapshot := p.ActiveStates()
	snapshot[0] = "mutated"

	AssertActive(t, p, "online", "online.idle")
}

func TestProcessor_Dispose(t *testing.T) {
	trace := NewTrace()
	observer := NewTestObserver[string]()
	p := StartProcessor(t, CreateHierarchicalDefinition(t, trace), WithObserver[string](observer))
	Send(t, p, "connect", "process")

	trace.Reset()
	p.Dispose()
	p.Dispose()

	require.NoError(t, WaitTerminated(t, p))
	assert.Equal(t, StatusTerminated, p.Status())
	assert.Empty(t, p.ActiveStates())
	assert.Equal(t, []string{"exit:online.processing", "exit:online"}, trace.Entries())

	err := p.AddEvent("connect")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerminated)
	assert.Equal(t, ErrCodeTerminated, GetErrorCode(err))

	err = p.Drain(context.Background())
	assert.ErrorIs(t, err, ErrTerminated)

	p.Dispose()
	assert.Equal(t, []string{"exit:online.processing", "exit:online"}, trace.Entries())
	assert.Len(t, observer.Stopped, 1)
	assert.NoError(t, observer.Stopped[0])
}

func TestProcessor_DisposeWaitsForInFlightEffect(t *testing.T) {
	trace := NewTrace()
	started := make(chan struct{})
	release := make(chan struct{})

	def := definition(t, []State[string]{
		NewAtomic("A", WithTransitions[string](when("go", "B"))),
		NewAtomic("B",
			WithEnter[string](func(context.Context) error {
				close(started)
				<-release
				trace.Record("enter:B")
				return nil
			}),
			WithExit[string](trace.Effect("exit:B")),
			WithTransitions[string](Always(Immediately("C"))),
		),
		NewAtomic("C", Traced(trace, "C")...),
	})

	p := StartProcessor(t, def)
	require.NoError(t, p.AddEvent("go"))
	<-started

	p.Dispose()
	assert.ErrorIs(t, p.AddEvent("go"), ErrTerminated)

	select {
	case <-p.Done():
		t.Fatal("processor terminated while an effect was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, WaitTerminated(t, p))
	assert.Equal(t, []string{"enter:B", "exit:B"}, trace.Entries())
}

func TestProcessor_ContextCancellationDisposes(t *testing.T) {
	trace := NewTrace()
	exitCtxErr := make(chan error, 1)

	def := definition(t, []State[string]{
		NewAtomic("only", WithExit[string](func(ctx context.Context) error {
			trace.Record("exit:only")
			exitCtxErr <- ctx.Err()
			return nil
		})),
	})

	ctx, cancel := context.WithCancel(context.Background())
	p, err := New(ctx, def, WithLogger[string](slogt.New(t)))
	require.NoError(t, err)

	cancel()
	require.NoError(t, WaitTerminated(t, p))
	assert.Equal(t, []string{"exit:only"}, trace.Entries())
	assert.NoError(t, <-exitCtxErr)
}

func TestProcessor_GuardErrorTerminates(t *testing.T) {
	trace := NewTrace()
	boom := errors.New("guard broke")
	observer := NewTestObserver[string]()

	parent := compound(t, "P", []State[string]{
		NewAtomic("A", append(Traced(trace, "A"), WithTransitions[string](
			On[string, string](func(context.Context, string) (string, bool, error) {
				return "", false, boom
			}),
		))...),
	}, Traced(trace, "P")...)

	p := StartProcessor(t, definition(t, []State[string]{parent}), WithObserver[string](observer))
	trace.Reset()
	require.NoError(t, p.AddEvent("anything"))

	err := WaitTerminated(t, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrGuardFailed)
	assert.True(t, IsGuardError(err))
	assert.Equal(t, []string{"exit:A", "exit:P"}, trace.Entries())
	assert.Equal(t, StatusTerminated, p.Status())

	require.Len(t, observer.Errors, 1)
	assert.ErrorIs(t, observer.Errors[0], boom)
	assert.ErrorIs(t, p.AddEvent("more"), ErrTerminated)
}

func TestProcessor_EffectErrorsTerminate(t *testing.T) {
	boom := errors.New("effect broke")

	tests := []struct {
		name  string
		build func(trace *Trace) []State[string]
		kind  EffectKind
		exits []string
	}{
		{
			name: "transition effect",
			build: func(trace *Trace) []State[string] {
				return []State[string]{
					NewAtomic("A", append(Traced(trace, "A"), WithTransitions[string](
						On[string, string](Goto[string]("B")).Do(func(context.Context, string) error { return boom }),
					))...),
					NewAtomic("B", Traced(trace, "B")...),
				}
			},
			kind:  EffectTransition,
			exits: []string{"exit:A"},
		},
		{
			name: "enter effect",
			build: func(trace *Trace) []State[string] {
				return []State[string]{
					NewAtomic("A", append(Traced(trace, "A"), WithTransitions[string](when("go", "B")))...),
					NewAtomic("B", WithEnter[string](func(context.Context) error { return boom })),
				}
			},
			kind:  EffectEnter,
			exits: []string{"exit:A"},
		},
		{
			name: "exit effect",
			build: func(trace *Trace) []State[string] {
				return []State[string]{
					NewAtomic("A",
						WithExit[string](func(context.Context) error {
							trace.Record("exit:A")
							return boom
						}),
						WithTransitions[string](when("go", "B")),
					),
					NewAtomic("B", Traced(trace, "B")...),
				}
			},
			kind:  EffectExit,
			exits: []string{"exit:A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trace := NewTrace()
			p := StartProcessor(t, definition(t, tt.build(trace)))
			trace.Reset()
			require.NoError(t, p.AddEvent("go"))

			err := WaitTerminated(t, p)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			assert.ErrorIs(t, err, ErrEffectFailed)

			var effectErr *EffectError
			require.ErrorAs(t, err, &effectErr)
			assert.Equal(t, tt.kind, effectErr.Kind)
			assert.Equal(t, tt.exits, trace.Entries())
			assert.Empty(t, p.ActiveStates())
		})
	}
}

func TestProcessor_UnknownTargetTerminates(t *testing.T) {
	def := definition(t, []State[string]{
		NewAtomic("A", WithTransitions[string](when("go", "ghost"))),
	})

	p := StartProcessor(t, def)
	require.NoError(t, p.AddEvent("go"))

	err := WaitTerminated(t, p)
	assert.ErrorIs(t, err, ErrStateNotFound)
	assert.True(t, IsStateError(err))
}

func TestProcessor_ExitErrorsDuringDisposalAreJoined(t *testing.T) {
	boom := errors.New("cleanup failed")
	def := definition(t, []State[string]{
		NewAtomic("A", WithExit[string](func(context.Context) error { return boom })),
	})

	p := StartProcessor(t, def)
	p.Dispose()

	err := WaitTerminated(t, p)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, p.ActiveStates())
}

func TestProcessor_InitializationFailure(t *testing.T) {
	boom := errors.New("cannot boot")
	trace := NewTrace()
	observer := NewTestObserver[string]()

	parent := compound(t, "P", []State[string]{
		NewAtomic("A", WithEnter[string](func(context.Context) error { return boom })),
	}, Traced(trace, "P")...)

	p, err := New(context.Background(), definition(t, []State[string]{parent}),
		WithLogger[string](slogt.New(t)),
		WithObserver[string](observer),
	)
	require.Error(t, err)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, trace.Entries(), "exit:P")
	assert.Equal(t, 0, observer.Started)
	assert.Len(t, observer.Stopped, 1)
}

func TestProcessor_NewValidation(t *testing.T) {
	_, err := New[string](context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilDefinition)

	p := StartProcessor(t, CreateSimpleDefinition(t, NewTrace()))
	err = p.AddEvent(nil)
	assert.ErrorIs(t, err, ErrNilEvent)
	assert.Equal(t, ErrCodeInvalidEvent, GetErrorCode(err))
}

func TestProcessor_UnhandledEvents(t *testing.T) {
	observer := NewTestObserver[string]()
	p := StartProcessor(t, CreateSimpleDefinition(t, NewTrace()), WithObserver[string](observer))

	Send(t, p, "stop", 42, "start")

	AssertActive(t, p, "running")
	assert.Equal(t, 2, observer.UnhandledCount())
	assert.Equal(t, uint64(2), p.Stats().UnhandledEvents)
	assert.Equal(t, StatusRunning, p.Status())
}

func TestProcessor_ObserverNotifications(t *testing.T) {
	observer := NewTestObserver[string]()
	p := StartProcessor(t, CreateHierarchicalDefinition(t, NewTrace()), WithObserver[string](observer))

	assert.Equal(t, 1, observer.Started)
	assert.Equal(t, []string{"offline"}, observer.Entered())

	Send(t, p, "connect", "process")

	assert.Equal(t, []string{"offline", "online", "online.idle", "online.processing"}, observer.Entered())
	assert.Equal(t, []string{"offline", "online.idle"}, observer.Exited())
	require.Equal(t, 2, observer.TransitionCount())
	assert.Equal(t, TransitionEvent[string]{From: "offline", To: "online", Event: "connect"}, observer.Transitions[0])
	assert.Equal(t, TransitionEvent[string]{From: "online.idle", To: "online.processing", Event: "process"}, observer.Transitions[1])
}

func TestProcessor_ConcurrentProducers(t *testing.T) {
	total := 0
	def := definition(t, []State[string]{
		NewAtomic("counting", WithTransitions[string](
			On[int, string](Goto[int]("counting")).Do(func(_ context.Context, n int) error {
				total += n
				return nil
			}),
		)),
	})
	p := StartProcessor(t, def)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.NoError(t, p.AddEvent(1))
			}
		}()
	}

	readers := make(chan struct{})
	go func() {
		defer close(readers)
		for range 100 {
			assert.LessOrEqual(t, len(p.ActiveStates()), 1)
		}
	}()

	wg.Wait()
	<-readers
	Send(t, p)

	assert.Equal(t, 400, total)
	assert.Equal(t, uint64(401), p.Stats().Macrosteps)
	assert.Zero(t, p.Stats().QueuedEvents)
}

func TestProcessor_DrainRespectsContext(t *testing.T) {
	release := make(chan struct{})
	def := definition(t, []State[string]{
		NewAtomic("A", WithTransitions[string](when("block", "B"))),
		NewAtomic("B", WithEnter[string](func(context.Context) error {
			<-release
			return nil
		})),
	})

	p := StartProcessor(t, def)
	require.NoError(t, p.AddEvent("block"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Drain(ctx), context.DeadlineExceeded)

	close(release)
	Send(t, p)
	AssertActive(t, p, "B")
}

func TestProcessor_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	p := StartProcessor(t, CreateSimpleDefinition(t, NewTrace()), WithTracerProvider[string](provider))
	Send(t, p, "start")

	names := make(map[string]int)
	for _, span := range recorder.Ended() {
		names[span.Name()]++
	}

	assert.Equal(t, 1, names[SpanInitialize])
	assert.Equal(t, 2, names[SpanMacrostep])
	assert.Equal(t, 1, names[SpanMicrostep])

	p.Dispose()
	require.NoError(t, WaitTerminated(t, p))

	var found bool
	for _, span := range recorder.Ended() {
		if span.Name() != SpanDispose {
			continue
		}
		found = true
		for _, attr := range span.Attributes() {
			if attr.Key == "statechart.processor_id" {
				assert.Equal(t, p.ID(), attr.Value.AsString())
			}
		}
	}
	assert.True(t, found)
}

func TestProcessor_Metadata(t *testing.T) {
	def := CreateSimpleDefinition(t, NewTrace())
	p1 := StartProcessor(t, def)
	p2 := StartProcessor(t, def)

	assert.NotEmpty(t, p1.ID())
	assert.NotEqual(t, p1.ID(), p2.ID())
	assert.Same(t, def, p1.Definition())
	assert.Equal(t, "running", p1.Status().String())
	assert.Equal(t, 0, p1.Observers().Len())
}

func TestLeastCommonCompoundAncestor(t *testing.T) {
	a1 := NewAtomic("a1")
	a2 := NewAtomic("a2")
	a := compound(t, "a", []State[string]{a1, a2})
	b1 := NewAtomic("b1")
	root := compound(t, "root", []State[string]{a, compound(t, "b", []State[string]{b1})})
	lone := NewAtomic("lone")

	assert.Same(t, a, leastCommonCompoundAncestor[string](a1, a2))
	assert.Same(t, a, leastCommonCompoundAncestor[string](a1, a1))
	assert.Same(t, root, leastCommonCompoundAncestor[string](a1, b1))
	assert.Nil(t, leastCommonCompoundAncestor[string](a1, lone))
	assert.Nil(t, leastCommonCompoundAncestor[string](lone, a1))
	assert.Nil(t, leastCommonCompoundAncestor[string](a1, root))

	ids := func(states []State[string]) []string {
		var out []string
		for _, s := range states {
			out = append(out, s.ID())
		}
		return out
	}
	assert.Equal(t, []string{"a1", "a"}, ids(exitSet[string](a1, root)))
	assert.Equal(t, []string{"a1", "a", "root"}, ids(exitSet[string](a1, nil)))
	assert.Equal(t, []string{"b", "b1"}, ids(entryPath[string](b1, root)))
	assert.Equal(t, []string{"root", "b", "b1"}, ids(entryPath[string](b1, nil)))
}
