// Package observers provides observers for monitoring state machine events
package observers

import (
	"context"
	"log/slog"

	"github.com/anggasct/statechart"
)

// LogLevel represents the logging level
type LogLevel int

const (
	// LogError logs only errors
	LogError LogLevel = iota
	// LogWarning logs errors and warnings
	LogWarning
	// LogInfo logs errors, warnings, and info
	LogInfo
	// LogDebug logs errors, warnings, info, and debug
	LogDebug
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogError:
		return slog.LevelError
	case LogWarning:
		return slog.LevelWarn
	case LogDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// LoggingObserver logs processor events through slog
type LoggingObserver[ID comparable] struct {
	statechart.BaseObserver[ID]
	level  LogLevel
	logger *slog.Logger
}

// NewLoggingObserver creates a new logging observer. Records are tagged with
// machine=name. A nil logger uses slog.Default().
func NewLoggingObserver[ID comparable](logger *slog.Logger, level LogLevel, name string) *LoggingObserver[ID] {
	if logger == nil {
		logger = slog.Default()
	}
	if name != "" {
		logger = logger.With("machine", name)
	}
	return &LoggingObserver[ID]{
		level:  level,
		logger: logger,
	}
}

// log logs a message at the specified level
func (o *LoggingObserver[ID]) log(ctx context.Context, level LogLevel, msg string, args ...any) {
	if level > o.level {
		return
	}
	o.logger.Log(ctx, level.slogLevel(), msg, args...)
}

// OnStateEnter logs state entry
func (o *LoggingObserver[ID]) OnStateEnter(ctx context.Context, state ID) {
	o.log(ctx, LogInfo, "Entering state", "state", state)
}

// OnStateExit logs state exit
func (o *LoggingObserver[ID]) OnStateExit(ctx context.Context, state ID) {
	o.log(ctx, LogInfo, "Exiting state", "state", state)
}

// OnTransition logs transitions
func (o *LoggingObserver[ID]) OnTransition(ctx context.Context, from ID, to ID, event any) {
	o.log(ctx, LogInfo, "Transition", "from", from, "to", to, "event", statechart.EventName(event))
}

// OnEventUnhandled logs events consumed without a transition
func (o *LoggingObserver[ID]) OnEventUnhandled(ctx context.Context, event any) {
	o.log(ctx, LogDebug, "Event unhandled", "event", statechart.EventName(event))
}

// OnError logs errors
func (o *LoggingObserver[ID]) OnError(ctx context.Context, err error) {
	o.log(ctx, LogError, "Processor error", "error", err, "code", statechart.GetErrorCode(err))
}

// OnMachineStarted logs processor start
func (o *LoggingObserver[ID]) OnMachineStarted(ctx context.Context) {
	o.log(ctx, LogInfo, "Machine started")
}

// OnMachineStopped logs processor termination
func (o *LoggingObserver[ID]) OnMachineStopped(ctx context.Context, err error) {
	if err != nil {
		o.log(ctx, LogWarning, "Machine stopped", "error", err)
		return
	}
	o.log(ctx, LogInfo, "Machine stopped")
}
