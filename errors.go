package agentflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error codes
const (
	ErrCodeDefinition      = "DEFINITION_ERROR"
	ErrCodeUnknownAgent    = "UNKNOWN_AGENT"
	ErrCodeMissingInput    = "MISSING_INPUT"
	ErrCodeEvaluation      = "EVALUATION_ERROR"
	ErrCodeAgentExecution  = "AGENT_EXECUTION_FAILED"
	ErrCodeMissingOutput   = "MISSING_OUTPUT"
	ErrCodeStepTimeout     = "STEP_TIMEOUT"
	ErrCodeWorkflowTimeout = "WORKFLOW_TIMEOUT"
	ErrCodeDeadlock        = "WORKFLOW_DEADLOCK"
	ErrCodeCancelled       = "CANCELLED"
	ErrCodePanic           = "PANIC"
)

// DefinitionError reports a malformed workflow definition (duplicate or
// missing step references, cycles). The workflow never starts.
type DefinitionError struct {
	Step   string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s (step: %s)", ErrCodeDefinition, e.Reason, e.Step)
	}
	return fmt.Sprintf("[%s] %s", ErrCodeDefinition, e.Reason)
}

// UnknownAgentError reports a step naming an agent absent from the registry.
type UnknownAgentError struct {
	Step  string
	Agent string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("[%s] agent %q not registered (step: %s)", ErrCodeUnknownAgent, e.Agent, e.Step)
}

// MissingInputError reports a required input key absent from the data bag
// at execution time.
type MissingInputError struct {
	Step string
	Key  string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("[%s] required input %q not present in data bag (step: %s)", ErrCodeMissingInput, e.Key, e.Step)
}

// EvaluationError reports a condition expression that could not be evaluated,
// either because it is syntactically invalid or because it references an
// absent key outside a defined(...) check.
type EvaluationError struct {
	Expression string
	Reason     string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("[%s] %s in %q", ErrCodeEvaluation, e.Reason, e.Expression)
}

// AgentExecutionError wraps an error returned by an agent invocation.
// Transient errors are eligible for retry.
type AgentExecutionError struct {
	Step      string
	Agent     string
	Transient bool
	Err       error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("[%s] agent %q failed (step: %s): %v", ErrCodeAgentExecution, e.Agent, e.Step, e.Err)
}

func (e *AgentExecutionError) Unwrap() error {
	return e.Err
}

// MissingOutputError reports an agent result lacking a declared output key.
type MissingOutputError struct {
	Step string
	Key  string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("[%s] agent result missing declared output %q (step: %s)", ErrCodeMissingOutput, e.Key, e.Step)
}

// StepTimeoutError reports a single step invocation exceeding its budget.
// Feeds into the step's retry policy.
type StepTimeoutError struct {
	Step    string
	Timeout time.Duration
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("[%s] step %s timed out after %s", ErrCodeStepTimeout, e.Step, e.Timeout)
}

// WorkflowTimeoutError reports the whole-run wall-clock budget being exceeded.
// Always aborts the run.
type WorkflowTimeoutError struct {
	Timeout time.Duration
}

func (e *WorkflowTimeoutError) Error() string {
	return fmt.Sprintf("[%s] workflow exceeded budget of %s", ErrCodeWorkflowTimeout, e.Timeout)
}

// WorkflowDeadlockError reports a run where pending steps exist but none can
// become ready. Stuck maps each stuck step to its unmet dependencies.
type WorkflowDeadlockError struct {
	Stuck map[string][]string
}

func (e *WorkflowDeadlockError) Error() string {
	parts := make([]string, 0, len(e.Stuck))
	for stepID, deps := range e.Stuck {
		parts = append(parts, fmt.Sprintf("%s waiting on [%s]", stepID, strings.Join(deps, ", ")))
	}
	return fmt.Sprintf("[%s] no steps ready: %s", ErrCodeDeadlock, strings.Join(parts, "; "))
}

// transientError marks an agent error as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// MarkTransient wraps err so the engine classifies it as retryable.
// Agents return this for failures worth another attempt (rate limits,
// flaky upstreams).
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked transient by the agent.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// IsRetryable reports whether err should be retried under the default
// classification: step timeouts and transient agent errors only.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ste *StepTimeoutError
	if errors.As(err, &ste) {
		return true
	}

	var aee *AgentExecutionError
	if errors.As(err, &aee) {
		return aee.Transient
	}

	return IsTransient(err)
}

// ErrorCode extracts the taxonomy code from err for record keeping.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var (
		defErr      *DefinitionError
		unknownErr  *UnknownAgentError
		inputErr    *MissingInputError
		evalErr     *EvaluationError
		outputErr   *MissingOutputError
		stepTimeout *StepTimeoutError
		wfTimeout   *WorkflowTimeoutError
		deadlockErr *WorkflowDeadlockError
		agentErr    *AgentExecutionError
	)

	switch {
	case errors.As(err, &defErr):
		return ErrCodeDefinition
	case errors.As(err, &unknownErr):
		return ErrCodeUnknownAgent
	case errors.As(err, &inputErr):
		return ErrCodeMissingInput
	case errors.As(err, &evalErr):
		return ErrCodeEvaluation
	case errors.As(err, &outputErr):
		return ErrCodeMissingOutput
	case errors.As(err, &stepTimeout):
		return ErrCodeStepTimeout
	case errors.As(err, &wfTimeout):
		return ErrCodeWorkflowTimeout
	case errors.As(err, &deadlockErr):
		return ErrCodeDeadlock
	case errors.As(err, &agentErr):
		return ErrCodeAgentExecution
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeWorkflowTimeout
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled
	default:
		return ErrCodeAgentExecution
	}
}
