// Package engine drives workflow execution: it derives the dependency graph
// from a definition, repeatedly computes the set of ready steps, dispatches
// each wave concurrently and joins on a barrier before recomputing
// readiness, until every step is terminal or the run aborts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sicko7947/agentflow"
)

// Notifier receives push-style completion events. Implementations must be
// best-effort; the engine ignores notification failures.
type Notifier interface {
	NotifyStep(ctx context.Context, exec *agentflow.StepExecution)
	NotifyWorkflow(ctx context.Context, run *agentflow.WorkflowRun, result *agentflow.WorkflowResult)
}

// Engine orchestrates workflow execution against a read-only agent registry.
// One Engine may serve many concurrent runs; all per-run state lives in the
// run itself.
type Engine struct {
	registry   *agentflow.Registry
	monitor    *agentflow.Monitor
	notifier   Notifier
	logger     zerolog.Logger
	classifier func(error) bool

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// EngineOption configures the workflow engine
type EngineOption func(*Engine)

// WithLogger sets a custom logger for the engine
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMonitor attaches an execution monitor. Without one, runs are not
// persisted and the polling read API is unavailable.
func WithMonitor(monitor *agentflow.Monitor) EngineOption {
	return func(e *Engine) {
		e.monitor = monitor
	}
}

// WithNotifier attaches a push-style completion notifier.
func WithNotifier(notifier Notifier) EngineOption {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

// WithRetryClassifier overrides the default classification of retryable
// failures (timeouts and transient agent errors).
func WithRetryClassifier(classifier func(error) bool) EngineOption {
	return func(e *Engine) {
		e.classifier = classifier
	}
}

// NewEngine creates a workflow engine bound to the given agent registry.
// If no logger is provided, a default stdout logger with Info level is used.
func NewEngine(registry *agentflow.Registry, opts ...EngineOption) *Engine {
	defaultLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)

	eng := &Engine{
		registry:   registry,
		logger:     defaultLogger,
		classifier: agentflow.IsRetryable,
		cancels:    make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(eng)
	}

	return eng
}

// ExecuteWorkflow runs a definition to completion and returns the structured
// result. The result is non-nil whenever a run started, even on abort, so
// callers can consume whichever step outputs succeeded. The error is non-nil
// only for definition rejection and workflow-level aborts (timeout, deadlock,
// cancellation); step-local failures surface through result.Errors with
// Success=false.
func (e *Engine) ExecuteWorkflow(
	ctx context.Context,
	def *agentflow.WorkflowDefinition,
	inputs map[string]any,
	opts ...agentflow.ExecuteOption,
) (*agentflow.WorkflowResult, error) {
	options := &agentflow.ExecuteOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	graph, err := agentflow.BuildGraph(def)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	return e.run(ctx, runID, def, graph, inputs, options)
}

// StartWorkflow validates the definition, then executes it in the
// background and returns the run id immediately. Requires a monitor so the
// caller can poll run status.
func (e *Engine) StartWorkflow(
	ctx context.Context,
	def *agentflow.WorkflowDefinition,
	inputs map[string]any,
	opts ...agentflow.ExecuteOption,
) (string, error) {
	if e.monitor == nil {
		return "", fmt.Errorf("background execution requires a monitor for status polling")
	}

	options := &agentflow.ExecuteOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if err := def.Validate(); err != nil {
		return "", err
	}

	graph, err := agentflow.BuildGraph(def)
	if err != nil {
		return "", err
	}

	runID := uuid.New().String()

	go func() {
		//nolint:errcheck // aborts are recorded on the run itself
		_, _ = e.run(context.Background(), runID, def, graph, inputs, options)
	}()

	return runID, nil
}

// Cancel cooperatively cancels an in-flight run.
func (e *Engine) Cancel(runID string) error {
	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("run %s is not in flight", runID)
	}
	cancel()
	return nil
}

// GetRun retrieves the current run record by id.
func (e *Engine) GetRun(ctx context.Context, runID string) (*agentflow.WorkflowRun, error) {
	if e.monitor == nil {
		return nil, fmt.Errorf("engine has no monitor")
	}
	return e.monitor.GetRun(ctx, runID)
}

// run executes one workflow instance. All state created here (data bag, step
// execution map) is scoped to this run and discarded when it returns.
func (e *Engine) run(
	ctx context.Context,
	runID string,
	def *agentflow.WorkflowDefinition,
	graph *agentflow.DependencyGraph,
	inputs map[string]any,
	options *agentflow.ExecuteOptions,
) (*agentflow.WorkflowResult, error) {
	logger := agentflow.RunLogger(e.logger, runID, def.Name)
	start := time.Now()

	run := &agentflow.WorkflowRun{
		RunID:           runID,
		WorkflowName:    def.Name,
		WorkflowVersion: def.Version,
		Status:          agentflow.RunStatusRunning,
		CreatedAt:       start,
		StartedAt:       &start,
		UpdatedAt:       start,
		Input:           inputs,
		Tags:            options.Tags,
	}
	if options.TTL > 0 {
		run.TTL = start.Add(options.TTL).Unix()
	}

	budget := def.Timeout()
	if options.RunTimeout > 0 {
		budget = options.RunTimeout
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if budget > 0 {
		runCtx, cancel = context.WithTimeout(ctx, budget)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	e.mu.Lock()
	e.cancels[runID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, runID)
		e.mu.Unlock()
	}()

	// Records must still land after the run context expires
	recordCtx := context.WithoutCancel(ctx)

	bag := agentflow.NewDataBag(inputs)

	execs := make(map[string]*agentflow.StepExecution, len(def.Steps))
	for _, id := range graph.StepIDs() {
		execs[id] = &agentflow.StepExecution{
			RunID:     runID,
			StepID:    id,
			State:     agentflow.StepStatePending,
			CreatedAt: start,
			UpdatedAt: start,
		}
	}

	if e.monitor != nil {
		e.monitor.RecordRunStarted(recordCtx, run)
		for _, id := range graph.StepIDs() {
			e.monitor.RecordStepStarted(recordCtx, execs[id])
		}
	}

	agentflow.LogWorkflowStarted(logger, runID, def.Name, len(def.Steps))

	var abortErr error
	wave := 0

	for !allTerminal(execs) {
		if err := runCtx.Err(); err != nil {
			abortErr = runAbort(err, budget)
			break
		}

		ready := readySteps(graph, execs)
		if len(ready) == 0 {
			if allBlockedByFailure(graph, execs) {
				// Remaining steps are downstream of failed steps; they stay
				// pending and the run fails through the step faults.
				break
			}
			abortErr = &agentflow.WorkflowDeadlockError{Stuck: stuckDetail(graph, execs)}
			break
		}

		agentflow.LogWaveDispatched(logger, runID, wave, ready)

		var wg sync.WaitGroup
		for _, id := range ready {
			exec := execs[id]
			exec.State = agentflow.StepStateReady
			exec.UpdatedAt = time.Now()

			step := def.Step(id)
			wg.Add(1)
			go func() {
				defer wg.Done()
				e.runStep(runCtx, recordCtx, def, step, exec, bag, options, logger)
			}()
		}
		wg.Wait()
		wave++

		if e.monitor != nil {
			run.Progress = progressOf(execs)
			run.ProducedKeys = bag.Keys()
			run.UpdatedAt = time.Now()
			e.monitor.RecordRunProgress(recordCtx, run)
		}

		if err := runCtx.Err(); err != nil {
			abortErr = runAbort(err, budget)
			break
		}
	}

	return e.finish(recordCtx, logger, run, execs, start, abortErr)
}

// finish assembles the result, persists the terminal run record and emits
// completion events.
func (e *Engine) finish(
	recordCtx context.Context,
	logger zerolog.Logger,
	run *agentflow.WorkflowRun,
	execs map[string]*agentflow.StepExecution,
	start time.Time,
	abortErr error,
) (*agentflow.WorkflowResult, error) {
	result := &agentflow.WorkflowResult{
		RunID:       run.RunID,
		StepResults: make(map[string]map[string]any),
		Errors:      make(map[string]*agentflow.StepFault),
	}

	executed := 0
	failures := 0
	for id, exec := range execs {
		switch exec.State {
		case agentflow.StepStateSucceeded:
			result.StepResults[id] = exec.Output
			executed++
		case agentflow.StepStateFailed:
			result.Errors[id] = exec.Error
			executed++
			failures++
		}
	}

	result.StepsExecuted = executed
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	result.Success = abortErr == nil && failures == 0 && allTerminal(execs)

	var deadlock *agentflow.WorkflowDeadlockError
	switch {
	case result.Success:
		run.Status = agentflow.RunStatusCompleted
	case errors.As(abortErr, &deadlock):
		run.Status = agentflow.RunStatusDeadlocked
	default:
		run.Status = agentflow.RunStatusFailed
	}
	result.Status = run.Status

	if abortErr != nil {
		run.Error = &agentflow.RunFault{
			Code:      agentflow.ErrorCode(abortErr),
			Message:   abortErr.Error(),
			Timestamp: time.Now(),
		}
	}

	completedAt := time.Now()
	run.CompletedAt = &completedAt
	run.UpdatedAt = completedAt
	run.Progress = progressOf(execs)

	if e.monitor != nil {
		e.monitor.RecordWorkflowCompletion(recordCtx, run)
	}
	if e.notifier != nil {
		e.notifier.NotifyWorkflow(recordCtx, run, result)
	}

	switch {
	case abortErr == nil:
		agentflow.LogWorkflowCompleted(logger, run.RunID, result.Success, time.Since(start))
	case run.Status == agentflow.RunStatusDeadlocked:
		agentflow.LogWorkflowDeadlocked(logger, run.RunID, abortErr)
	default:
		agentflow.LogWorkflowFailed(logger, run.RunID, abortErr)
	}

	return result, abortErr
}

// runAbort translates a run-context error into the workflow-level error.
func runAbort(err error, budget time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &agentflow.WorkflowTimeoutError{Timeout: budget}
	}
	return err
}

func allTerminal(execs map[string]*agentflow.StepExecution) bool {
	for _, exec := range execs {
		if !exec.State.IsTerminal() {
			return false
		}
	}
	return true
}

func progressOf(execs map[string]*agentflow.StepExecution) float64 {
	if len(execs) == 0 {
		return 0
	}
	terminal := 0
	for _, exec := range execs {
		if exec.State.IsTerminal() {
			terminal++
		}
	}
	return float64(terminal) / float64(len(execs))
}

// readySteps returns pending steps whose every dependency is SUCCEEDED or
// SKIPPED, in declaration order. Declaration order carries no semantic
// weight; it only keeps logs stable.
func readySteps(graph *agentflow.DependencyGraph, execs map[string]*agentflow.StepExecution) []string {
	var ready []string
	for _, id := range graph.StepIDs() {
		if execs[id].State != agentflow.StepStatePending {
			continue
		}

		satisfied := true
		for _, dep := range graph.Dependencies(id) {
			if !execs[dep].State.Satisfied() {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}
	return ready
}

// allBlockedByFailure reports whether every remaining non-terminal step is
// (transitively) downstream of a failed step. Such steps can never become
// ready; the run fails through the upstream faults rather than deadlocking.
func allBlockedByFailure(graph *agentflow.DependencyGraph, execs map[string]*agentflow.StepExecution) bool {
	blocked := make(map[string]bool)

	// Propagate blockage from failed steps through dependents
	var mark func(id string)
	mark = func(id string) {
		for _, dep := range graph.Dependents(id) {
			if !blocked[dep] {
				blocked[dep] = true
				mark(dep)
			}
		}
	}
	for id, exec := range execs {
		if exec.State == agentflow.StepStateFailed {
			mark(id)
		}
	}

	for id, exec := range execs {
		if !exec.State.IsTerminal() && !blocked[id] {
			return false
		}
	}
	return true
}

// stuckDetail maps each non-terminal step to its unsatisfied dependencies
// for deadlock diagnostics.
func stuckDetail(graph *agentflow.DependencyGraph, execs map[string]*agentflow.StepExecution) map[string][]string {
	stuck := make(map[string][]string)
	for id, exec := range execs {
		if exec.State.IsTerminal() {
			continue
		}
		var unmet []string
		for _, dep := range graph.Dependencies(id) {
			if !execs[dep].State.Satisfied() {
				unmet = append(unmet, dep)
			}
		}
		stuck[id] = unmet
	}
	return stuck
}
