package agentflow

import (
	"time"

	"github.com/rs/zerolog"
)

// Log event names
const (
	// Workflow-level events
	EventWorkflowStarted    = "workflow_started"
	EventWorkflowCompleted  = "workflow_completed"
	EventWorkflowFailed     = "workflow_failed"
	EventWorkflowDeadlocked = "workflow_deadlocked"
	EventWorkflowTimedOut   = "workflow_timed_out"
	EventWaveDispatched     = "wave_dispatched"

	// Step-level events
	EventStepStarted   = "step_started"
	EventStepRetrying  = "step_retrying"
	EventStepSucceeded = "step_succeeded"
	EventStepFailed    = "step_failed"
	EventStepSkipped   = "step_skipped"

	// Monitor events
	EventMonitorError = "monitor_error"
)

// LogWorkflowStarted logs when a run begins execution
func LogWorkflowStarted(logger zerolog.Logger, runID, workflowName string, steps int) {
	logger.Info().
		Str("event", EventWorkflowStarted).
		Str("run_id", runID).
		Str("workflow_name", workflowName).
		Int("steps", steps).
		Msg("Workflow started")
}

// LogWaveDispatched logs the steps dispatched in one readiness wave
func LogWaveDispatched(logger zerolog.Logger, runID string, wave int, stepIDs []string) {
	logger.Debug().
		Str("event", EventWaveDispatched).
		Str("run_id", runID).
		Int("wave", wave).
		Strs("steps", stepIDs).
		Msg("Readiness wave dispatched")
}

// LogWorkflowCompleted logs a run that reached a terminal state
func LogWorkflowCompleted(logger zerolog.Logger, runID string, success bool, duration time.Duration) {
	logger.Info().
		Str("event", EventWorkflowCompleted).
		Str("run_id", runID).
		Bool("success", success).
		Dur("duration", duration).
		Msg("Workflow completed")
}

// LogWorkflowFailed logs a workflow-level abort
func LogWorkflowFailed(logger zerolog.Logger, runID string, err error) {
	logger.Error().
		Str("event", EventWorkflowFailed).
		Str("run_id", runID).
		Err(err).
		Msg("Workflow failed")
}

// LogWorkflowDeadlocked logs a run aborted because no step could become ready
func LogWorkflowDeadlocked(logger zerolog.Logger, runID string, err error) {
	logger.Error().
		Str("event", EventWorkflowDeadlocked).
		Str("run_id", runID).
		Err(err).
		Msg("Workflow deadlocked")
}

// LogStepStarted logs when a step is dispatched
func LogStepStarted(logger zerolog.Logger, runID, stepID, agent string) {
	logger.Info().
		Str("event", EventStepStarted).
		Str("run_id", runID).
		Str("step_id", stepID).
		Str("agent", agent).
		Msg("Step started")
}

// LogStepRetrying logs a retry attempt
func LogStepRetrying(logger zerolog.Logger, runID, stepID string, attempt int, delay time.Duration) {
	logger.Warn().
		Str("event", EventStepRetrying).
		Str("run_id", runID).
		Str("step_id", stepID).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("Step retrying")
}

// LogStepSucceeded logs successful step completion
func LogStepSucceeded(logger zerolog.Logger, runID, stepID string, durationMs int64, attempts int) {
	logger.Info().
		Str("event", EventStepSucceeded).
		Str("run_id", runID).
		Str("step_id", stepID).
		Int64("duration_ms", durationMs).
		Int("attempts", attempts).
		Msg("Step succeeded")
}

// LogStepFailed logs terminal step failure
func LogStepFailed(logger zerolog.Logger, runID, stepID string, err error, attempts int) {
	logger.Error().
		Str("event", EventStepFailed).
		Str("run_id", runID).
		Str("step_id", stepID).
		Err(err).
		Int("attempts", attempts).
		Msg("Step failed")
}

// LogStepSkipped logs a conditional step whose condition evaluated false
func LogStepSkipped(logger zerolog.Logger, runID, stepID, condition string) {
	logger.Info().
		Str("event", EventStepSkipped).
		Str("run_id", runID).
		Str("step_id", stepID).
		Str("condition", condition).
		Msg("Step skipped")
}

// LogMonitorError logs a best-effort persistence failure
func LogMonitorError(logger zerolog.Logger, runID, operation string, err error) {
	logger.Error().
		Str("event", EventMonitorError).
		Str("run_id", runID).
		Str("operation", operation).
		Err(err).
		Msg("Monitor error")
}

// RunLogger creates a logger enriched with run context
func RunLogger(baseLogger zerolog.Logger, runID, workflowName string) zerolog.Logger {
	return baseLogger.With().
		Str("run_id", runID).
		Str("workflow_name", workflowName).
		Logger()
}

// StepLogger creates a logger enriched with step context
func StepLogger(runLogger zerolog.Logger, stepID, agent string) zerolog.Logger {
	return runLogger.With().
		Str("step_id", stepID).
		Str("agent", agent).
		Logger()
}
