package builders

import (
	"fmt"

	"github.com/anggasct/statechart"
)

// Events driving a workflow built by WorkflowBuilder
const (
	EventNext     = "NEXT"
	EventComplete = "COMPLETE"
)

// CompletedState is the state entered by FinishWorkflow
const CompletedState = "workflow_completed"

// Branch is one outgoing path of a conditional workflow step. A nil Guard
// always matches, which makes it the fallback when it is listed last.
type Branch struct {
	Target string
	Guard  Guard
	Action statechart.Effect
}

// WorkflowBuilder provides specialized builder for workflow patterns
type WorkflowBuilder struct {
	*StateMachineBuilder[string]
	stepCount int
	pending   []*StateBuilder[string]
}

// NewWorkflowBuilder creates a new workflow builder
func NewWorkflowBuilder() *WorkflowBuilder {
	return &WorkflowBuilder{
		StateMachineBuilder: NewStateMachineBuilder[string](),
	}
}

// AddSequentialStep adds a step entered on NEXT from the previous step. The
// first step is the initial state.
func (w *WorkflowBuilder) AddSequentialStep(name string, action statechart.Effect) *WorkflowBuilder {
	step := w.WithState(name)
	if action != nil {
		step.WithEntryAction(action)
	}
	w.link(name)

	w.pending = []*StateBuilder[string]{step}
	w.stepCount++
	return w
}

// AddConditionalBranch adds a choice step: once entered, the first branch
// whose guard passes is taken without waiting for an event. Every branch
// target continues to the next step on NEXT.
func (w *WorkflowBuilder) AddConditionalBranch(name string, branches ...Branch) *WorkflowBuilder {
	choice := w.WithState(name)
	w.link(name)

	if len(branches) == 0 {
		w.errs = append(w.errs, statechart.NewConfigurationError(
			fmt.Sprintf("workflow step '%s'", name), statechart.ErrNoStates, "conditional branch has no targets"))
	}

	targets := make([]*StateBuilder[string], 0, len(branches))
	for _, branch := range branches {
		tb := choice.Always(branch.Target)
		if branch.Guard != nil {
			tb.WithGuard(branch.Guard)
		}

		target := w.WithState(branch.Target)
		if branch.Action != nil {
			target.WithEntryAction(branch.Action)
		}
		targets = append(targets, target)
	}

	w.pending = targets
	w.stepCount++
	return w
}

// FinishWorkflow adds the completed state, entered on COMPLETE from the last step
func (w *WorkflowBuilder) FinishWorkflow() *WorkflowBuilder {
	w.WithState(CompletedState)
	for _, step := range w.pending {
		step.On(EventComplete, CompletedState)
	}
	w.pending = nil
	return w
}

// Steps returns the number of steps added so far
func (w *WorkflowBuilder) Steps() int {
	return w.stepCount
}

func (w *WorkflowBuilder) link(name string) {
	for _, step := range w.pending {
		step.On(EventNext, name)
	}
}
