// Package loader builds state machine definitions from YAML documents whose
// guards and effects are bound by name from a Registry.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/anggasct/statechart"
	"github.com/anggasct/statechart/pkg/builders"
	"gopkg.in/yaml.v3"
)

var (
	// ErrStateRequired indicates that at least one state is required.
	ErrStateRequired = errors.New("at least one state is required")
	// ErrStateIDRequired indicates that a state id is required.
	ErrStateIDRequired = errors.New("state id is required")
	// ErrTargetRequired indicates that a transition has no target.
	ErrTargetRequired = errors.New("transition target is required")
)

// Config defines the structure of a state machine document.
type Config struct {
	Name    string        `json:"name"    yaml:"name"`
	Initial string        `json:"initial" yaml:"initial"`
	States  []StateConfig `json:"states"  yaml:"states"`
}

// StateConfig defines a state. A state with children is compound.
type StateConfig struct {
	ID          string             `json:"id"          yaml:"id"`
	Enter       string             `json:"enter"       yaml:"enter"`
	Exit        string             `json:"exit"        yaml:"exit"`
	Initial     string             `json:"initial"     yaml:"initial"`
	States      []StateConfig      `json:"states"      yaml:"states"`
	Transitions []TransitionConfig `json:"transitions" yaml:"transitions"`
}

// TransitionConfig defines a transition. Without an event it is eventless.
type TransitionConfig struct {
	Event  string `json:"event"  yaml:"event"`
	Target string `json:"target" yaml:"target"`
	Guard  string `json:"guard"  yaml:"guard"`
	Action string `json:"action" yaml:"action"`
}

// LoadConfig reads and validates a document from the filesystem.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes parses and validates a document.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFromFS loads a document from an embedded filesystem.
func LoadConfigFromFS(fsys fs.FS, path string) (*Config, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS: %w", err)
	}

	return LoadConfigFromBytes(data)
}

// Validate checks the document shape. Tree rules such as unique ids and
// initial children are enforced when the definition is built.
func (c *Config) Validate() error {
	if len(c.States) == 0 {
		return ErrStateRequired
	}

	var errs []error
	for i := range c.States {
		errs = append(errs, c.States[i].validate("states")...)
	}

	return errors.Join(errs...)
}

func (s *StateConfig) validate(path string) []error {
	if s.ID == "" {
		return []error{fmt.Errorf("%s: %w", path, ErrStateIDRequired)}
	}

	var errs []error
	for i, t := range s.Transitions {
		if t.Target == "" {
			errs = append(errs, fmt.Errorf("state %s: transition %d: %w", s.ID, i, ErrTargetRequired))
		}
	}
	for i := range s.States {
		errs = append(errs, s.States[i].validate(s.ID)...)
	}

	return errs
}

// Build binds every named guard and effect from reg and returns the
// resulting definition. Unknown names are reported together.
func (c *Config) Build(reg *Registry) (*statechart.Definition[string], error) {
	if reg == nil {
		reg = NewRegistry()
	}

	b := builders.NewStateMachineBuilder[string]()
	if c.Initial != "" {
		b.WithInitialState(c.Initial)
	}

	var errs []error
	for i := range c.States {
		errs = append(errs, c.States[i].apply(b.WithState(c.States[i].ID), reg)...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", c.Name, err)
	}

	return def, nil
}

func (s *StateConfig) apply(sb *builders.StateBuilder[string], reg *Registry) []error {
	var errs []error

	if s.Enter != "" {
		effect, err := reg.effect(s.Enter)
		if err != nil {
			errs = append(errs, fmt.Errorf("state %s: enter: %w", s.ID, err))
		} else {
			sb.WithEntryAction(effect)
		}
	}

	if s.Exit != "" {
		effect, err := reg.effect(s.Exit)
		if err != nil {
			errs = append(errs, fmt.Errorf("state %s: exit: %w", s.ID, err))
		} else {
			sb.WithExitAction(effect)
		}
	}

	if s.Initial != "" {
		sb.WithInitialChildState(s.Initial)
	}

	for _, t := range s.Transitions {
		var tb *builders.TransitionBuilder[string]
		if t.Event == "" {
			tb = sb.Always(t.Target)
		} else {
			tb = sb.On(t.Event, t.Target)
		}

		if t.Guard != "" {
			guard, err := reg.guard(t.Guard)
			if err != nil {
				errs = append(errs, fmt.Errorf("state %s: transition to %s: %w", s.ID, t.Target, err))
			} else {
				tb.WithGuard(guard)
			}
		}

		if t.Action != "" {
			action, err := reg.action(t.Action)
			if err != nil {
				errs = append(errs, fmt.Errorf("state %s: transition to %s: %w", s.ID, t.Target, err))
			} else {
				tb.WithAction(action)
			}
		}
	}

	for i := range s.States {
		errs = append(errs, s.States[i].apply(sb.WithChildState(s.States[i].ID), reg)...)
	}

	return errs
}

// Load reads a document from path and builds it with reg.
func Load(path string, reg *Registry) (*statechart.Definition[string], error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return config.Build(reg)
}

// Parse builds a definition from YAML bytes with reg.
func Parse(data []byte, reg *Registry) (*statechart.Definition[string], error) {
	config, err := LoadConfigFromBytes(data)
	if err != nil {
		return nil, err
	}

	return config.Build(reg)
}
