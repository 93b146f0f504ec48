package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sicko7947/agentflow"
)

// runStep takes one step from READY to a terminal state: condition check,
// input resolution, agent invocation under timeout and retry, and output
// merge into the data bag. Side effects are confined to the data bag and
// this step's execution record.
func (e *Engine) runStep(
	ctx context.Context,
	recordCtx context.Context,
	def *agentflow.WorkflowDefinition,
	step *agentflow.StepDefinition,
	exec *agentflow.StepExecution,
	bag *agentflow.DataBag,
	options *agentflow.ExecuteOptions,
	runLogger zerolog.Logger,
) {
	logger := agentflow.StepLogger(runLogger, step.ID, step.Agent)

	now := time.Now()
	exec.State = agentflow.StepStateRunning
	exec.StartedAt = &now
	exec.UpdatedAt = now
	e.recordStep(recordCtx, exec)

	agentflow.LogStepStarted(logger, exec.RunID, step.ID, step.Agent)

	// Condition check precedes everything; false means skipped, the agent
	// is never invoked.
	if step.Condition != "" {
		shouldRun, err := agentflow.EvaluateCondition(step.Condition, bag.Snapshot())
		if err != nil {
			e.failStep(recordCtx, logger, exec, err)
			return
		}
		if !shouldRun {
			e.skipStep(recordCtx, logger, exec, step.Condition)
			return
		}
	}

	inputs := make(map[string]any)
	for _, ref := range step.InputRefs() {
		val, ok := bag.Get(ref.Key)
		if !ok {
			if ref.Optional {
				continue
			}
			e.failStep(recordCtx, logger, exec, &agentflow.MissingInputError{Step: step.ID, Key: ref.Key})
			return
		}
		inputs[ref.Key] = val
	}

	agent, ok := e.registry.Get(step.Agent)
	if !ok {
		e.failStep(recordCtx, logger, exec, &agentflow.UnknownAgentError{Step: step.ID, Agent: step.Agent})
		return
	}

	policy := effectiveRetryPolicy(step, def, options)
	timeout := effectiveStepTimeout(step, options)

	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt)
			agentflow.LogStepRetrying(logger, exec.RunID, step.ID, attempt, delay)
			e.recordStep(recordCtx, exec)

			if delay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(delay):
				}
			}
			if err := ctx.Err(); err != nil {
				lastErr = fmt.Errorf("run aborted during backoff: %w", err)
				break
			}
		}

		exec.Attempts = attempt + 1
		exec.UpdatedAt = time.Now()

		stepCtx := ctx
		cancel := context.CancelFunc(func() {})
		if timeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		started := time.Now()
		outputs, err := invokeAgent(stepCtx, agent, step, inputs)
		cancel()
		exec.DurationMs = time.Since(started).Milliseconds()

		if err == nil {
			declared, missErr := declaredOutputs(step, outputs)
			if missErr != nil {
				lastErr = missErr
			} else {
				bag.Merge(declared)
				e.succeedStep(recordCtx, logger, exec, declared)
				return
			}
		} else {
			switch {
			case ctx.Err() != nil:
				// Run-level abort: the whole run is ending, stop retrying
				lastErr = fmt.Errorf("run aborted mid-step: %w", ctx.Err())
			case stepCtx.Err() == context.DeadlineExceeded:
				lastErr = &agentflow.StepTimeoutError{Step: step.ID, Timeout: timeout}
			default:
				lastErr = &agentflow.AgentExecutionError{
					Step:      step.ID,
					Agent:     step.Agent,
					Transient: agentflow.IsTransient(err),
					Err:       err,
				}
			}
		}

		if ctx.Err() != nil || !e.classifier(lastErr) {
			break
		}
	}

	e.failStep(recordCtx, logger, exec, lastErr)
}

// invokeAgent calls the agent with panic recovery; a panicking agent fails
// the attempt instead of the process.
func invokeAgent(
	ctx context.Context,
	agent agentflow.Agent,
	step *agentflow.StepDefinition,
	inputs map[string]any,
) (outputs map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()

	return agent.Execute(ctx, step.Action, inputs)
}

// declaredOutputs projects the agent result onto the step's declared output
// keys; every declared key must be present.
func declaredOutputs(step *agentflow.StepDefinition, result map[string]any) (map[string]any, error) {
	declared := make(map[string]any, len(step.Outputs))
	for _, key := range step.Outputs {
		val, ok := result[key]
		if !ok {
			return nil, &agentflow.MissingOutputError{Step: step.ID, Key: key}
		}
		declared[key] = val
	}
	return declared, nil
}

func (e *Engine) succeedStep(ctx context.Context, logger zerolog.Logger, exec *agentflow.StepExecution, outputs map[string]any) {
	endedAt := time.Now()
	exec.State = agentflow.StepStateSucceeded
	exec.Output = outputs
	exec.EndedAt = &endedAt
	exec.UpdatedAt = endedAt

	e.recordStep(ctx, exec)
	e.notifyStep(ctx, exec)
	agentflow.LogStepSucceeded(logger, exec.RunID, exec.StepID, exec.DurationMs, exec.Attempts)
}

func (e *Engine) skipStep(ctx context.Context, logger zerolog.Logger, exec *agentflow.StepExecution, condition string) {
	endedAt := time.Now()
	exec.State = agentflow.StepStateSkipped
	exec.EndedAt = &endedAt
	exec.UpdatedAt = endedAt

	e.recordStep(ctx, exec)
	e.notifyStep(ctx, exec)
	agentflow.LogStepSkipped(logger, exec.RunID, exec.StepID, condition)
}

func (e *Engine) failStep(ctx context.Context, logger zerolog.Logger, exec *agentflow.StepExecution, err error) {
	endedAt := time.Now()
	exec.State = agentflow.StepStateFailed
	exec.Error = agentflow.NewStepFault(err, exec.Attempts)
	exec.EndedAt = &endedAt
	exec.UpdatedAt = endedAt

	e.recordStep(ctx, exec)
	e.notifyStep(ctx, exec)
	agentflow.LogStepFailed(logger, exec.RunID, exec.StepID, err, exec.Attempts)
}

func (e *Engine) recordStep(ctx context.Context, exec *agentflow.StepExecution) {
	if e.monitor != nil {
		e.monitor.RecordStepExecution(ctx, exec)
	}
}

func (e *Engine) notifyStep(ctx context.Context, exec *agentflow.StepExecution) {
	if e.notifier != nil {
		e.notifier.NotifyStep(ctx, exec)
	}
}

// effectiveRetryPolicy resolves step override, then definition default, then
// run option, then the package default.
func effectiveRetryPolicy(step *agentflow.StepDefinition, def *agentflow.WorkflowDefinition, options *agentflow.ExecuteOptions) agentflow.RetryPolicy {
	switch {
	case step.RetryPolicy != nil:
		return *step.RetryPolicy
	case def.RetryPolicy != nil:
		return *def.RetryPolicy
	case options.RetryPolicy != nil:
		return *options.RetryPolicy
	default:
		return agentflow.DefaultRetryPolicy
	}
}

// effectiveStepTimeout resolves step override, then the run's default step
// timeout; zero means unbounded.
func effectiveStepTimeout(step *agentflow.StepDefinition, options *agentflow.ExecuteOptions) time.Duration {
	if step.TimeoutMs > 0 {
		return step.Timeout()
	}
	return options.DefaultStepTimeout
}
