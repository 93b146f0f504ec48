package store

import "fmt"

// DynamoDB schema constants for single-table design
const (
	// Table attributes
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrGSI1PK     = "GSI1PK"
	AttrGSI1SK     = "GSI1SK"
	AttrEntityType = "entity_type"
	AttrTTL        = "ttl"

	// Entity types
	EntityTypeWorkflowRun   = "WorkflowRun"
	EntityTypeStepExecution = "StepExecution"

	// Index names
	IndexWorkflowStatus = "GSI1"
)

// Key builders for single-table design

// WorkflowRun keys: PK=RUN#{runID}, SK=META
func workflowRunPK(runID string) string {
	return fmt.Sprintf("RUN#%s", runID)
}

func workflowRunSK() string {
	return "META"
}

func workflowRunGSI1PK(workflowName, status string) string {
	return fmt.Sprintf("WF#%s#STATUS#%s", workflowName, status)
}

func workflowRunGSI1SK(createdAt string) string {
	return createdAt
}

// StepExecution keys: PK=RUN#{runID}, SK=STEP#{stepID}
func stepExecutionPK(runID string) string {
	return fmt.Sprintf("RUN#%s", runID)
}

func stepExecutionSK(stepID string) string {
	return fmt.Sprintf("STEP#%s", stepID)
}

// Prefix for range queries
func stepPrefix() string {
	return "STEP#"
}
