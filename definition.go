// Package agentflow executes declarative agent workflows: a workflow
// definition names its steps, their data dependencies and the agent
// capability each step delegates to; the engine derives a dependency graph
// and runs steps in readiness waves, passing values through a shared data
// bag scoped to one run.
package agentflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// WorkflowDefinition is the immutable, declarative description of a workflow.
// Step declaration order carries no execution semantics; execution order is
// derived from dependencies.
type WorkflowDefinition struct {
	Name    string           `json:"name" yaml:"name" validate:"required"`
	Version string           `json:"version,omitempty" yaml:"version,omitempty"`
	Steps   []StepDefinition `json:"steps" yaml:"steps" validate:"required,min=1,dive"`

	// Wall-clock budget for the whole run, in milliseconds. Zero means
	// unbounded.
	TimeoutMs int64 `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty" validate:"min=0"`

	// Default retry policy inherited by steps that do not override it
	RetryPolicy *RetryPolicy `json:"retryPolicy,omitempty" yaml:"retryPolicy,omitempty"`
}

// StepDefinition declares one unit of work bound to an agent capability.
type StepDefinition struct {
	ID     string `json:"id" yaml:"id" validate:"required"`
	Agent  string `json:"agent" yaml:"agent" validate:"required"`
	Action string `json:"action,omitempty" yaml:"action,omitempty"`

	// Data-bag keys resolved as the agent's inputs. A "name?" suffix marks
	// the reference optional: a missing value is omitted instead of failing
	// the step.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Data-bag keys this step writes on success. The agent result must
	// contain every declared key.
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// Step ids that must be SUCCEEDED or SKIPPED before this step is ready
	DependsOn []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`

	// Hint that this step has no required ordering within its readiness wave
	Parallel bool `json:"parallel,omitempty" yaml:"parallel,omitempty"`

	// Optional boolean expression over data-bag values; false means the
	// step is SKIPPED without invoking its agent
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	TimeoutMs   int64        `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty" validate:"min=0"`
	RetryPolicy *RetryPolicy `json:"retryPolicy,omitempty" yaml:"retryPolicy,omitempty"`
}

// InputRef is a parsed input reference.
type InputRef struct {
	Key      string
	Optional bool
}

// ParseInputRef splits the optional-marker suffix off an input reference.
func ParseInputRef(ref string) InputRef {
	if key, ok := strings.CutSuffix(ref, "?"); ok {
		return InputRef{Key: key, Optional: true}
	}
	return InputRef{Key: ref}
}

// InputRefs returns the step's parsed input references.
func (s *StepDefinition) InputRefs() []InputRef {
	refs := make([]InputRef, 0, len(s.Inputs))
	for _, in := range s.Inputs {
		refs = append(refs, ParseInputRef(in))
	}
	return refs
}

// Timeout returns the per-invocation budget, zero when unbounded.
func (s *StepDefinition) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// Timeout returns the whole-run budget, zero when unbounded.
func (d *WorkflowDefinition) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// Step returns the step declared with the given id, or nil.
func (d *WorkflowDefinition) Step(id string) *StepDefinition {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural invariants: required fields, non-empty steps,
// unique step ids. Dependency references and cycles are checked at
// graph-build time.
func (d *WorkflowDefinition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return &DefinitionError{Reason: fmt.Sprintf("invalid definition: %v", err)}
	}

	seen := make(map[string]struct{}, len(d.Steps))
	for i := range d.Steps {
		step := &d.Steps[i]
		if _, dup := seen[step.ID]; dup {
			return &DefinitionError{Step: step.ID, Reason: "duplicate step id"}
		}
		seen[step.ID] = struct{}{}

		if step.RetryPolicy != nil {
			if err := step.RetryPolicy.validate(); err != nil {
				return &DefinitionError{Step: step.ID, Reason: err.Error()}
			}
		}
	}

	if d.RetryPolicy != nil {
		if err := d.RetryPolicy.validate(); err != nil {
			return &DefinitionError{Reason: err.Error()}
		}
	}

	return nil
}

// ParseDefinition parses and validates a JSON workflow definition document.
func ParseDefinition(data []byte) (*WorkflowDefinition, error) {
	if err := validateDefinitionDocument(data); err != nil {
		return nil, err
	}

	var def WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, &DefinitionError{Reason: fmt.Sprintf("failed to decode definition: %v", err)}
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return &def, nil
}

// ParseDefinitionYAML parses and validates a YAML workflow definition document.
func ParseDefinitionYAML(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &DefinitionError{Reason: fmt.Sprintf("failed to decode definition: %v", err)}
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return &def, nil
}
