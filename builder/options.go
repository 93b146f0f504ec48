package builder

import (
	"time"

	"github.com/sicko7947/agentflow"
)

// StepOption is a functional option for configuring steps
type StepOption func(*agentflow.StepDefinition)

// WithInputs declares the data bag keys the step consumes. Suffix a key
// with "?" to mark it optional.
func WithInputs(keys ...string) StepOption {
	return func(s *agentflow.StepDefinition) {
		s.Inputs = append(s.Inputs, keys...)
	}
}

// WithOutputs declares the data bag keys the step produces
func WithOutputs(keys ...string) StepOption {
	return func(s *agentflow.StepDefinition) {
		s.Outputs = append(s.Outputs, keys...)
	}
}

// WithDependsOn adds explicit dependencies
func WithDependsOn(ids ...string) StepOption {
	return func(s *agentflow.StepDefinition) {
		s.DependsOn = append(s.DependsOn, ids...)
	}
}

// WithCondition gates the step on a condition expression
func WithCondition(expr string) StepOption {
	return func(s *agentflow.StepDefinition) {
		s.Condition = expr
	}
}

// WithParallel marks the step as parallel-eligible
func WithParallel() StepOption {
	return func(s *agentflow.StepDefinition) {
		s.Parallel = true
	}
}

// WithStepTimeout bounds a single invocation of the step
func WithStepTimeout(timeout time.Duration) StepOption {
	return func(s *agentflow.StepDefinition) {
		s.TimeoutMs = timeout.Milliseconds()
	}
}

// WithStepRetryPolicy overrides the retry policy for this step
func WithStepRetryPolicy(policy agentflow.RetryPolicy) StepOption {
	return func(s *agentflow.StepDefinition) {
		s.RetryPolicy = &policy
	}
}
