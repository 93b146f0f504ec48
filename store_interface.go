package agentflow

import "context"

// ExecutionStore persists workflow runs and step executions. Implementations
// live in the store package; the interface sits here to avoid import cycles
// between the domain and store packages.
type ExecutionStore interface {
	// Workflow runs
	CreateRun(ctx context.Context, run *WorkflowRun) error
	GetRun(ctx context.Context, runID string) (*WorkflowRun, error)
	UpdateRun(ctx context.Context, run *WorkflowRun) error
	ListRuns(ctx context.Context, filter RunFilter) ([]*WorkflowRun, error)

	// Step executions
	CreateStepExecution(ctx context.Context, exec *StepExecution) error
	GetStepExecution(ctx context.Context, runID, stepID string) (*StepExecution, error)
	UpdateStepExecution(ctx context.Context, exec *StepExecution) error
	ListStepExecutions(ctx context.Context, runID string) ([]*StepExecution, error)
}

// RunFilter defines filtering criteria for workflow runs
type RunFilter struct {
	WorkflowName string
	Status       *RunStatus
	Limit        int
}
