// Package builder provides a fluent API for assembling workflow definitions
// in code, as an alternative to parsing JSON or YAML documents.
package builder

import (
	"fmt"
	"time"

	"github.com/sicko7947/agentflow"
)

// WorkflowBuilder accumulates step definitions and finalizes them into a
// validated WorkflowDefinition.
type WorkflowBuilder struct {
	def         *agentflow.WorkflowDefinition
	lastStepIDs []string
}

// NewWorkflow creates a new workflow builder
func NewWorkflow(name, version string) *WorkflowBuilder {
	return &WorkflowBuilder{
		def: &agentflow.WorkflowDefinition{
			Name:    name,
			Version: version,
		},
	}
}

// WithTimeout sets the whole-run wall-clock budget
func (b *WorkflowBuilder) WithTimeout(timeout time.Duration) *WorkflowBuilder {
	b.def.TimeoutMs = timeout.Milliseconds()
	return b
}

// WithRetryPolicy sets the definition-level retry default
func (b *WorkflowBuilder) WithRetryPolicy(policy agentflow.RetryPolicy) *WorkflowBuilder {
	b.def.RetryPolicy = &policy
	return b
}

// Step adds a step with explicit dependencies (none unless WithDependsOn is
// given). It does not affect the chain position used by Then.
func (b *WorkflowBuilder) Step(id, agent, action string, opts ...StepOption) *WorkflowBuilder {
	step := agentflow.StepDefinition{
		ID:     id,
		Agent:  agent,
		Action: action,
	}
	for _, opt := range opts {
		opt(&step)
	}
	b.def.Steps = append(b.def.Steps, step)
	return b
}

// Then adds a step depending on the previously chained step(s).
func (b *WorkflowBuilder) Then(id, agent, action string, opts ...StepOption) *WorkflowBuilder {
	opts = append(opts, WithDependsOn(b.lastStepIDs...))
	b.Step(id, agent, action, opts...)
	b.lastStepIDs = []string{id}
	return b
}

// ParallelStep describes one branch of a Parallel call.
type ParallelStep struct {
	ID      string
	Agent   string
	Action  string
	Options []StepOption
}

// Parallel adds several steps that all depend on the previously chained
// step(s) and run in the same readiness wave. A subsequent Then depends on
// all of them.
func (b *WorkflowBuilder) Parallel(steps ...ParallelStep) *WorkflowBuilder {
	var ids []string
	for _, s := range steps {
		opts := append(s.Options, WithDependsOn(b.lastStepIDs...), WithParallel())
		b.Step(s.ID, s.Agent, s.Action, opts...)
		ids = append(ids, s.ID)
	}
	b.lastStepIDs = ids
	return b
}

// Build finalizes the definition: structural validation plus graph
// construction (missing dependencies, cycles).
func (b *WorkflowBuilder) Build() (*agentflow.WorkflowDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	if _, err := agentflow.BuildGraph(b.def); err != nil {
		return nil, err
	}
	return b.def, nil
}

// MustBuild is Build for static definitions; it panics on error.
func (b *WorkflowBuilder) MustBuild() *agentflow.WorkflowDefinition {
	def, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("invalid workflow definition: %v", err))
	}
	return def
}
