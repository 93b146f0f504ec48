package events

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sicko7947/agentflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_StepEvents(t *testing.T) {
	bus := NewGoChannelBus(zerolog.Nop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *StepEvent, 1)
	err := bus.SubscribeSteps(ctx, func(ctx context.Context, event *StepEvent) error {
		received <- event
		return nil
	})
	require.NoError(t, err)

	exec := &agentflow.StepExecution{
		RunID:      "run-1",
		StepID:     "fetch",
		State:      agentflow.StepStateSucceeded,
		Attempts:   2,
		DurationMs: 42,
	}
	bus.NotifyStep(ctx, exec)

	select {
	case event := <-received:
		assert.Equal(t, "run-1", event.RunID)
		assert.Equal(t, "fetch", event.StepID)
		assert.Equal(t, agentflow.StepStateSucceeded, event.State)
		assert.Equal(t, 2, event.Attempts)
		assert.EqualValues(t, 42, event.DurationMs)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for step event")
	}
}

func TestBus_WorkflowEvents(t *testing.T) {
	bus := NewGoChannelBus(zerolog.Nop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *WorkflowEvent, 1)
	err := bus.SubscribeWorkflows(ctx, func(ctx context.Context, event *WorkflowEvent) error {
		received <- event
		return nil
	})
	require.NoError(t, err)

	run := &agentflow.WorkflowRun{
		RunID:        "run-1",
		WorkflowName: "pipeline",
		Status:       agentflow.RunStatusCompleted,
	}
	result := &agentflow.WorkflowResult{
		RunID:           "run-1",
		Success:         true,
		StepsExecuted:   3,
		ExecutionTimeMs: 120,
	}
	bus.NotifyWorkflow(ctx, run, result)

	select {
	case event := <-received:
		assert.Equal(t, "pipeline", event.WorkflowName)
		assert.Equal(t, agentflow.RunStatusCompleted, event.Status)
		assert.True(t, event.Success)
		assert.Equal(t, 3, event.StepsExecuted)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for workflow event")
	}
}

func TestBus_NotifyWorkflow_NilResult(t *testing.T) {
	bus := NewGoChannelBus(zerolog.Nop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *WorkflowEvent, 1)
	err := bus.SubscribeWorkflows(ctx, func(ctx context.Context, event *WorkflowEvent) error {
		received <- event
		return nil
	})
	require.NoError(t, err)

	run := &agentflow.WorkflowRun{
		RunID:        "run-1",
		WorkflowName: "pipeline",
		Status:       agentflow.RunStatusFailed,
	}
	bus.NotifyWorkflow(ctx, run, nil)

	select {
	case event := <-received:
		assert.False(t, event.Success)
		assert.Equal(t, agentflow.RunStatusFailed, event.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for workflow event")
	}
}
