package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sicko7947/agentflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyAgent fails the first failures invocations, then succeeds.
func flakyAgent(failures int32, failWith func() error) (*agentflow.Registry, *int32) {
	registry := agentflow.NewRegistry()
	var calls int32

	registry.RegisterFunc("flaky", func(ctx context.Context, action string, inputs map[string]any) (map[string]any, error) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			return nil, failWith()
		}
		return map[string]any{"out": "ok"}, nil
	})

	return registry, &calls
}

func retryDefinition(policy *agentflow.RetryPolicy) *agentflow.WorkflowDefinition {
	return &agentflow.WorkflowDefinition{
		Name:    "retrying",
		Version: "1.0",
		Steps: []agentflow.StepDefinition{
			{ID: "a", Agent: "flaky", Action: "act", Outputs: []string{"out"}, RetryPolicy: policy},
		},
	}
}

func TestEngine_RetryTransientThenSucceed(t *testing.T) {
	registry, calls := flakyAgent(2, func() error {
		return agentflow.MarkTransient(errors.New("rate limited"))
	})
	eng, monitor := newTestEngine(t, registry)

	def := retryDefinition(&agentflow.RetryPolicy{MaxRetries: 3, DelayMs: 1, Backoff: agentflow.BackoffNone})

	result, err := eng.ExecuteWorkflow(context.Background(), def, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "ok", result.StepResults["a"]["out"])
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))

	steps, err := monitor.ListStepExecutions(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, agentflow.StepStateSucceeded, steps[0].State)
	assert.Equal(t, 3, steps[0].Attempts)
}

func TestEngine_RetryExhaustion(t *testing.T) {
	registry, calls := flakyAgent(100, func() error {
		return agentflow.MarkTransient(errors.New("still down"))
	})
	eng, _ := newTestEngine(t, registry)

	def := retryDefinition(&agentflow.RetryPolicy{MaxRetries: 2, DelayMs: 1, Backoff: agentflow.BackoffNone})

	result, err := eng.ExecuteWorkflow(context.Background(), def, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	// MaxRetries 2 means three invocations total
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))

	require.Contains(t, result.Errors, "a")
	fault := result.Errors["a"]
	assert.Equal(t, agentflow.ErrCodeAgentExecution, fault.Code)
	assert.Equal(t, 3, fault.Attempt)
}

func TestEngine_PermanentErrorNotRetried(t *testing.T) {
	registry, calls := flakyAgent(100, func() error {
		return errors.New("bad request")
	})
	eng, _ := newTestEngine(t, registry)

	def := retryDefinition(&agentflow.RetryPolicy{MaxRetries: 5, DelayMs: 1, Backoff: agentflow.BackoffNone})

	result, err := eng.ExecuteWorkflow(context.Background(), def, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestEngine_StepTimeoutRetries(t *testing.T) {
	registry := agentflow.NewRegistry()
	var calls int32

	registry.RegisterFunc("stuck", func(ctx context.Context, action string, inputs map[string]any) (map[string]any, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	eng, _ := newTestEngine(t, registry)

	def := &agentflow.WorkflowDefinition{
		Name:    "timing-out",
		Version: "1.0",
		Steps: []agentflow.StepDefinition{
			{
				ID: "a", Agent: "stuck", Action: "act",
				TimeoutMs:   50,
				RetryPolicy: &agentflow.RetryPolicy{MaxRetries: 1, DelayMs: 1, Backoff: agentflow.BackoffNone},
			},
		},
	}

	result, err := eng.ExecuteWorkflow(context.Background(), def, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	require.Contains(t, result.Errors, "a")
	assert.Equal(t, agentflow.ErrCodeStepTimeout, result.Errors["a"].Code)
}

func TestEngine_CustomRetryClassifier(t *testing.T) {
	registry, calls := flakyAgent(2, func() error {
		return errors.New("looks permanent but is not")
	})

	eng, _ := newTestEngine(t, registry, WithRetryClassifier(func(err error) bool {
		return err != nil
	}))

	def := retryDefinition(&agentflow.RetryPolicy{MaxRetries: 2, DelayMs: 1, Backoff: agentflow.BackoffNone})

	result, err := eng.ExecuteWorkflow(context.Background(), def, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestEngine_RetryDelayHonored(t *testing.T) {
	registry, _ := flakyAgent(1, func() error {
		return agentflow.MarkTransient(errors.New("transient"))
	})
	eng, _ := newTestEngine(t, registry)

	def := retryDefinition(&agentflow.RetryPolicy{MaxRetries: 1, DelayMs: 100, Backoff: agentflow.BackoffLinear})

	started := time.Now()
	result, err := eng.ExecuteWorkflow(context.Background(), def, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.GreaterOrEqual(t, time.Since(started), 100*time.Millisecond)
}

func TestEffectiveRetryPolicy_Precedence(t *testing.T) {
	stepPolicy := &agentflow.RetryPolicy{MaxRetries: 9}
	defPolicy := &agentflow.RetryPolicy{MaxRetries: 5}
	optPolicy := &agentflow.RetryPolicy{MaxRetries: 1}

	step := &agentflow.StepDefinition{ID: "a", RetryPolicy: stepPolicy}
	def := &agentflow.WorkflowDefinition{RetryPolicy: defPolicy}
	options := &agentflow.ExecuteOptions{RetryPolicy: optPolicy}

	assert.Equal(t, 9, effectiveRetryPolicy(step, def, options).MaxRetries)

	step.RetryPolicy = nil
	assert.Equal(t, 5, effectiveRetryPolicy(step, def, options).MaxRetries)

	def.RetryPolicy = nil
	assert.Equal(t, 1, effectiveRetryPolicy(step, def, options).MaxRetries)

	options.RetryPolicy = nil
	assert.Equal(t, agentflow.DefaultRetryPolicy, effectiveRetryPolicy(step, def, options))
}

func TestEffectiveStepTimeout(t *testing.T) {
	options := &agentflow.ExecuteOptions{DefaultStepTimeout: 30 * time.Second}

	step := &agentflow.StepDefinition{ID: "a", TimeoutMs: 5000}
	assert.Equal(t, 5*time.Second, effectiveStepTimeout(step, options))

	step.TimeoutMs = 0
	assert.Equal(t, 30*time.Second, effectiveStepTimeout(step, options))

	options.DefaultStepTimeout = 0
	assert.Equal(t, time.Duration(0), effectiveStepTimeout(step, options))
}
