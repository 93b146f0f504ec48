package agentflow

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore errors on every operation to exercise best-effort semantics.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) CreateRun(context.Context, *WorkflowRun) error  { return errStoreDown }
func (failingStore) GetRun(context.Context, string) (*WorkflowRun, error) {
	return nil, errStoreDown
}
func (failingStore) UpdateRun(context.Context, *WorkflowRun) error { return errStoreDown }
func (failingStore) ListRuns(context.Context, RunFilter) ([]*WorkflowRun, error) {
	return nil, errStoreDown
}
func (failingStore) CreateStepExecution(context.Context, *StepExecution) error { return errStoreDown }
func (failingStore) GetStepExecution(context.Context, string, string) (*StepExecution, error) {
	return nil, errStoreDown
}
func (failingStore) UpdateStepExecution(context.Context, *StepExecution) error { return errStoreDown }
func (failingStore) ListStepExecutions(context.Context, string) ([]*StepExecution, error) {
	return nil, errStoreDown
}

// recordingStore counts writes.
type recordingStore struct {
	failingStore
	createRunCalls  int
	updateRunCalls  int
	createStepCalls int
	updateStepCalls int
}

func (s *recordingStore) CreateRun(context.Context, *WorkflowRun) error {
	s.createRunCalls++
	return nil
}

func (s *recordingStore) UpdateRun(context.Context, *WorkflowRun) error {
	s.updateRunCalls++
	return nil
}

func (s *recordingStore) CreateStepExecution(context.Context, *StepExecution) error {
	s.createStepCalls++
	return nil
}

func (s *recordingStore) UpdateStepExecution(context.Context, *StepExecution) error {
	s.updateStepCalls++
	return nil
}

func TestMonitor_WritesReachStore(t *testing.T) {
	store := &recordingStore{}
	monitor := NewMonitor(store, zerolog.Nop())
	ctx := context.Background()

	run := &WorkflowRun{RunID: "r1", WorkflowName: "w", Status: RunStatusRunning}
	exec := &StepExecution{RunID: "r1", StepID: "a", State: StepStatePending}

	monitor.RecordRunStarted(ctx, run)
	monitor.RecordRunProgress(ctx, run)
	monitor.RecordWorkflowCompletion(ctx, run)
	monitor.RecordStepStarted(ctx, exec)
	monitor.RecordStepExecution(ctx, exec)

	assert.Equal(t, 1, store.createRunCalls)
	assert.Equal(t, 2, store.updateRunCalls) // progress + completion
	assert.Equal(t, 1, store.createStepCalls)
	assert.Equal(t, 1, store.updateStepCalls)
}

func TestMonitor_WritesAreBestEffort(t *testing.T) {
	monitor := NewMonitor(failingStore{}, zerolog.Nop())
	ctx := context.Background()

	run := &WorkflowRun{RunID: "r1", WorkflowName: "w", Status: RunStatusRunning}
	exec := &StepExecution{RunID: "r1", StepID: "a", State: StepStatePending}

	// None of these may panic or surface the store error
	monitor.RecordRunStarted(ctx, run)
	monitor.RecordRunProgress(ctx, run)
	monitor.RecordWorkflowCompletion(ctx, run)
	monitor.RecordStepStarted(ctx, exec)
	monitor.RecordStepExecution(ctx, exec)
}

func TestMonitor_ReadsPropagateErrors(t *testing.T) {
	monitor := NewMonitor(failingStore{}, zerolog.Nop())
	ctx := context.Background()

	_, err := monitor.GetRun(ctx, "r1")
	require.ErrorIs(t, err, errStoreDown)

	_, err = monitor.ListRuns(ctx, RunFilter{})
	require.ErrorIs(t, err, errStoreDown)

	_, err = monitor.ListStepExecutions(ctx, "r1")
	require.ErrorIs(t, err, errStoreDown)
}
