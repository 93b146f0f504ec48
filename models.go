package agentflow

import (
	"time"
)

// RunStatus represents the current state of a workflow run
type RunStatus string

const (
	RunStatusInitializing RunStatus = "INITIALIZING"
	RunStatusRunning      RunStatus = "RUNNING"
	RunStatusCompleted    RunStatus = "COMPLETED"
	RunStatusFailed       RunStatus = "FAILED"
	RunStatusDeadlocked   RunStatus = "DEADLOCKED"
)

// IsTerminal returns true if the status is a final state
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusDeadlocked
}

// String returns the string representation
func (s RunStatus) String() string {
	return string(s)
}

// StepState represents the current state of a step execution
type StepState string

const (
	StepStatePending   StepState = "PENDING"
	StepStateReady     StepState = "READY"
	StepStateRunning   StepState = "RUNNING"
	StepStateSucceeded StepState = "SUCCEEDED"
	StepStateSkipped   StepState = "SKIPPED"
	StepStateFailed    StepState = "FAILED"
)

// IsTerminal returns true if the state is final. Terminal states are never
// re-entered; retries happen inside the RUNNING->terminal transition.
func (s StepState) IsTerminal() bool {
	return s == StepStateSucceeded || s == StepStateSkipped || s == StepStateFailed
}

// Satisfied returns true if the state satisfies a downstream dependency.
func (s StepState) Satisfied() bool {
	return s == StepStateSucceeded || s == StepStateSkipped
}

// String returns the string representation
func (s StepState) String() string {
	return string(s)
}

// StepFault is the serializable payload of a failed step.
type StepFault struct {
	Code      string    `json:"code" dynamodbav:"code"`
	Message   string    `json:"message" dynamodbav:"message"`
	Attempt   int       `json:"attempt" dynamodbav:"attempt"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// Error implements the error interface
func (f *StepFault) Error() string {
	return f.Message
}

// NewStepFault classifies err into a fault record.
func NewStepFault(err error, attempt int) *StepFault {
	if err == nil {
		return nil
	}
	return &StepFault{
		Code:      ErrorCode(err),
		Message:   err.Error(),
		Attempt:   attempt,
		Timestamp: time.Now(),
	}
}

// RunFault is the serializable payload of a workflow-level abort.
type RunFault struct {
	Code      string    `json:"code" dynamodbav:"code"`
	Message   string    `json:"message" dynamodbav:"message"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// Error implements the error interface
func (f *RunFault) Error() string {
	return f.Message
}

// StepExecution tracks one step within one workflow run.
type StepExecution struct {
	RunID  string `json:"runId" dynamodbav:"run_id"`
	StepID string `json:"stepId" dynamodbav:"step_id"`

	State    StepState `json:"state" dynamodbav:"state"`
	Attempts int       `json:"attempts" dynamodbav:"attempts"`

	// Terminal payload: declared outputs on success, fault on failure
	Output map[string]any `json:"output,omitempty" dynamodbav:"output,omitempty"`
	Error  *StepFault     `json:"error,omitempty" dynamodbav:"error,omitempty"`

	StartedAt  *time.Time `json:"startedAt,omitempty" dynamodbav:"started_at,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty" dynamodbav:"ended_at,omitempty"`
	DurationMs int64      `json:"durationMs" dynamodbav:"duration_ms"`

	CreatedAt time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// WorkflowRun is the persisted record of a single workflow execution instance.
type WorkflowRun struct {
	RunID           string `json:"runId" dynamodbav:"run_id"`
	WorkflowName    string `json:"workflowName" dynamodbav:"workflow_name"`
	WorkflowVersion string `json:"workflowVersion" dynamodbav:"workflow_version"`

	Status   RunStatus `json:"status" dynamodbav:"status"`
	Progress float64   `json:"progress" dynamodbav:"progress"` // 0.0 to 1.0

	CreatedAt   time.Time  `json:"createdAt" dynamodbav:"created_at"`
	StartedAt   *time.Time `json:"startedAt,omitempty" dynamodbav:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt" dynamodbav:"updated_at"`

	Input map[string]any `json:"input,omitempty" dynamodbav:"input,omitempty"`

	// Data-bag keys produced so far, for in-flight polling
	ProducedKeys []string `json:"producedKeys,omitempty" dynamodbav:"produced_keys,omitempty"`

	Error *RunFault `json:"error,omitempty" dynamodbav:"error,omitempty"`

	Tags map[string]string `json:"tags,omitempty" dynamodbav:"tags,omitempty"`

	// DynamoDB TTL
	TTL int64 `json:"-" dynamodbav:"ttl,omitempty"`
}

// WorkflowResult is returned to the caller once a run is terminal. Step
// outputs that succeeded are always present, even when the run as a whole
// failed, enabling partial-result consumption.
type WorkflowResult struct {
	RunID   string    `json:"runId"`
	Success bool      `json:"success"`
	Status  RunStatus `json:"status"`

	// Declared outputs keyed by step id, for every succeeded step
	StepResults map[string]map[string]any `json:"stepResults"`

	// Step faults keyed by step id
	Errors map[string]*StepFault `json:"errors,omitempty"`

	ExecutionTimeMs int64 `json:"executionTimeMs"`
	StepsExecuted   int   `json:"stepsExecuted"`
}
