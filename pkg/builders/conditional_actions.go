package builders

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/anggasct/statechart"
)

// DataEvent is implemented by events carrying a payload, such as loader.Event
type DataEvent interface {
	EventData() any
}

// ConditionalActions provides helper functions for common guards and actions
type ConditionalActions struct{}

// IfEventDataEquals creates a guard that checks if event data equals a value
func (ConditionalActions) IfEventDataEquals(value any) Guard {
	return func(_ context.Context, event any) bool {
		if e, ok := event.(DataEvent); ok {
			return reflect.DeepEqual(e.EventData(), value)
		}
		return false
	}
}

// IfEventDataExists creates a guard that checks if the event carries data
func (ConditionalActions) IfEventDataExists() Guard {
	return func(_ context.Context, event any) bool {
		e, ok := event.(DataEvent)
		return ok && e.EventData() != nil
	}
}

// Not negates a guard
func (ConditionalActions) Not(guard Guard) Guard {
	return func(ctx context.Context, event any) bool {
		return !guard(ctx, event)
	}
}

// LogMessage creates an entry or exit action that logs a message
func (ConditionalActions) LogMessage(logger *slog.Logger, message string) statechart.Effect {
	return func(ctx context.Context) error {
		logger.InfoContext(ctx, message)
		return nil
	}
}

// LogEvent creates a transition action that logs the triggering event
func (ConditionalActions) LogEvent(logger *slog.Logger, message string) Action {
	return func(ctx context.Context, event any) error {
		logger.InfoContext(ctx, message, "event", statechart.EventName(event))
		return nil
	}
}

// Conditions provides a singleton instance of ConditionalActions
var Conditions = ConditionalActions{}
