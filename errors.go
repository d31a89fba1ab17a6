package statechart

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the state machine
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// State was not found in the machine definition
	ErrCodeStateNotFound
	// State tree is malformed
	ErrCodeInvalidConfiguration
	// Guard evaluation failed
	ErrCodeGuardFailed
	// Enter, exit or transition effect failed
	ErrCodeEffectFailed
	// Processor is no longer accepting work
	ErrCodeTerminated
	// Event is invalid for the processor
	ErrCodeInvalidEvent
)

// Sentinel errors, matched with errors.Is against the typed errors below.
var (
	ErrStateNotFound   = errors.New("state not found")
	ErrDuplicateState  = errors.New("duplicate state id")
	ErrEmptyCompound   = errors.New("compound state has no children")
	ErrInitialNotChild = errors.New("initial state is not a child")
	ErrInitialOnAtomic = errors.New("atomic state cannot declare an initial child")
	ErrAlreadyParented = errors.New("state already has a parent")
	ErrNotRoot         = errors.New("state is not a root")
	ErrNoStates        = errors.New("no states provided")
	ErrNilState        = errors.New("nil state")
	ErrNilDefinition   = errors.New("nil definition")
	ErrTerminated      = errors.New("processor terminated")
	ErrNilEvent        = errors.New("nil event")
	ErrGuardFailed     = errors.New("guard evaluation failed")
	ErrEffectFailed    = errors.New("effect execution failed")
	ErrInvalidGuard    = errors.New("transition has no guard")
	ErrNilEffect       = errors.New("nil effect")
)

// StateError represents state-related errors
type StateError struct {
	Code    ErrorCode
	StateID string
	Message string
	Err     error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error [%s]: %s", e.StateID, e.Message)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// NewStateNotFoundError creates a new state not found error
func NewStateNotFoundError(stateID any) *StateError {
	return &StateError{
		Code:    ErrCodeStateNotFound,
		StateID: fmt.Sprint(stateID),
		Message: fmt.Sprintf("state '%v' not found", stateID),
		Err:     ErrStateNotFound,
	}
}

// NewStateError creates a new state error with custom values
func NewStateError(code ErrorCode, stateID any, err error, message string) *StateError {
	return &StateError{
		Code:    code,
		StateID: fmt.Sprint(stateID),
		Message: message,
		Err:     err,
	}
}

// ConfigurationError represents machine construction issues
type ConfigurationError struct {
	Component string
	Issue     string
	Err       error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Issue)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a new configuration error wrapping one of the sentinel errors
func NewConfigurationError(component string, err error, issue string) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Issue:     issue,
		Err:       err,
	}
}

// GuardError is returned when a transition guard fails or panics
type GuardError struct {
	State       string
	Event       string
	OriginalErr error
}

func (e *GuardError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("guard failed in state '%s' on %s: %v", e.State, e.Event, e.OriginalErr)
	}
	return fmt.Sprintf("eventless guard failed in state '%s': %v", e.State, e.OriginalErr)
}

func (e *GuardError) Unwrap() []error {
	return []error{ErrGuardFailed, e.OriginalErr}
}

// NewGuardError creates a new guard failure error
func NewGuardError(state any, event string, err error) *GuardError {
	return &GuardError{
		State:       fmt.Sprint(state),
		Event:       event,
		OriginalErr: err,
	}
}

// EffectKind names the point in a microstep an effect ran at
type EffectKind string

const (
	EffectEnter      EffectKind = "enter"
	EffectExit       EffectKind = "exit"
	EffectTransition EffectKind = "transition"
)

// EffectError represents enter, exit and transition effect failures
type EffectError struct {
	Kind        EffectKind
	State       string
	OriginalErr error
}

func (e *EffectError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s effect failed in state '%s': %v", e.Kind, e.State, e.OriginalErr)
	}
	return fmt.Sprintf("%s effect failed in state '%s'", e.Kind, e.State)
}

func (e *EffectError) Unwrap() []error {
	return []error{ErrEffectFailed, e.OriginalErr}
}

// NewEffectError creates a new effect execution error
func NewEffectError(kind EffectKind, state any, err error) *EffectError {
	return &EffectError{
		Kind:        kind,
		State:       fmt.Sprint(state),
		OriginalErr: err,
	}
}

// MachineError represents processor operation errors
type MachineError struct {
	Code      ErrorCode
	Operation string
	Message   string
	Err       error
}

func (e *MachineError) Error() string {
	return fmt.Sprintf("machine error during %s: %s", e.Operation, e.Message)
}

func (e *MachineError) Unwrap() error {
	return e.Err
}

// NewTerminatedError creates the error returned for work submitted after termination
func NewTerminatedError(operation string) *MachineError {
	return &MachineError{
		Code:      ErrCodeTerminated,
		Operation: operation,
		Message:   "processor is terminated",
		Err:       ErrTerminated,
	}
}

// NewMachineError creates a new machine error
func NewMachineError(code ErrorCode, operation string, err error, message string) *MachineError {
	return &MachineError{
		Code:      code,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// IsStateError checks if an error is a StateError
func IsStateError(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}

// IsGuardError checks if an error is a GuardError
func IsGuardError(err error) bool {
	var target *GuardError
	return errors.As(err, &target)
}

// IsEffectError checks if an error is an EffectError
func IsEffectError(err error) bool {
	var target *EffectError
	return errors.As(err, &target)
}

// IsConfigurationError checks if an error is a ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsMachineError checks if an error is a MachineError
func IsMachineError(err error) bool {
	var target *MachineError
	return errors.As(err, &target)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var (
		stateErr   *StateError
		machineErr *MachineError
		guardErr   *GuardError
		effectErr  *EffectError
		configErr  *ConfigurationError
	)

	switch {
	case errors.As(err, &stateErr):
		return stateErr.Code
	case errors.As(err, &machineErr):
		return machineErr.Code
	case errors.As(err, &guardErr):
		return ErrCodeGuardFailed
	case errors.As(err, &effectErr):
		return ErrCodeEffectFailed
	case errors.As(err, &configErr):
		return ErrCodeInvalidConfiguration
	default:
		return ErrCodeNone
	}
}
