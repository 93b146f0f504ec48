package agentflow

import (
	"context"

	"github.com/rs/zerolog"
)

// Monitor is the append-only execution record. Writes are best-effort: a
// store failure is logged and never alters workflow outcome. Reads serve
// polling observability tooling while a run is in flight.
type Monitor struct {
	store  ExecutionStore
	logger zerolog.Logger
}

// NewMonitor creates a monitor backed by the given store.
func NewMonitor(store ExecutionStore, logger zerolog.Logger) *Monitor {
	return &Monitor{store: store, logger: logger}
}

// RecordRunStarted persists the initial run record.
func (m *Monitor) RecordRunStarted(ctx context.Context, run *WorkflowRun) {
	if err := m.store.CreateRun(ctx, run); err != nil {
		LogMonitorError(m.logger, run.RunID, "create_run", err)
	}
}

// RecordRunProgress persists an updated run record mid-flight.
func (m *Monitor) RecordRunProgress(ctx context.Context, run *WorkflowRun) {
	if err := m.store.UpdateRun(ctx, run); err != nil {
		LogMonitorError(m.logger, run.RunID, "update_run", err)
	}
}

// RecordWorkflowCompletion persists the terminal run record.
func (m *Monitor) RecordWorkflowCompletion(ctx context.Context, run *WorkflowRun) {
	if err := m.store.UpdateRun(ctx, run); err != nil {
		LogMonitorError(m.logger, run.RunID, "complete_run", err)
	}
}

// RecordStepStarted persists a fresh step execution record.
func (m *Monitor) RecordStepStarted(ctx context.Context, exec *StepExecution) {
	if err := m.store.CreateStepExecution(ctx, exec); err != nil {
		LogMonitorError(m.logger, exec.RunID, "create_step_execution", err)
	}
}

// RecordStepExecution persists a step execution update (retry, terminal).
func (m *Monitor) RecordStepExecution(ctx context.Context, exec *StepExecution) {
	if err := m.store.UpdateStepExecution(ctx, exec); err != nil {
		LogMonitorError(m.logger, exec.RunID, "update_step_execution", err)
	}
}

// GetRun returns the current run record by id.
func (m *Monitor) GetRun(ctx context.Context, runID string) (*WorkflowRun, error) {
	return m.store.GetRun(ctx, runID)
}

// ListRuns returns run records matching the filter.
func (m *Monitor) ListRuns(ctx context.Context, filter RunFilter) ([]*WorkflowRun, error) {
	return m.store.ListRuns(ctx, filter)
}

// ListStepExecutions returns all step records for a run.
func (m *Monitor) ListStepExecutions(ctx context.Context, runID string) ([]*StepExecution, error) {
	return m.store.ListStepExecutions(ctx, runID)
}
