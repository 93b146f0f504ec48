// Package store provides persistence implementations for workflow execution
// records. The ExecutionStore interface is defined in the parent agentflow
// package (../store_interface.go) to avoid import cycles between the domain
// and store packages.
//
// This package contains concrete implementations:
//   - DynamoDBStore: AWS DynamoDB backend following single-table patterns
//     defined in schema.go
//   - MemoryStore: In-memory backend for testing and embedded use
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sicko7947/agentflow"
)

// MemoryStore implements agentflow.ExecutionStore using in-memory storage.
type MemoryStore struct {
	runs           map[string]*agentflow.WorkflowRun
	stepExecutions map[string]map[string]*agentflow.StepExecution // runID -> stepID -> execution
	mu             sync.RWMutex
}

// NewMemoryStore creates a new in-memory execution store
func NewMemoryStore() agentflow.ExecutionStore {
	return &MemoryStore{
		runs:           make(map[string]*agentflow.WorkflowRun),
		stepExecutions: make(map[string]map[string]*agentflow.StepExecution),
	}
}

// Workflow run operations

func (s *MemoryStore) CreateRun(ctx context.Context, run *agentflow.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return fmt.Errorf("workflow run %s already exists", run.RunID)
	}

	runCopy := *run
	s.runs[run.RunID] = &runCopy
	s.stepExecutions[run.RunID] = make(map[string]*agentflow.StepExecution)

	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, runID string) (*agentflow.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("workflow run %s not found", runID)
	}

	runCopy := *run
	return &runCopy, nil
}

func (s *MemoryStore) UpdateRun(ctx context.Context, run *agentflow.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; !exists {
		return fmt.Errorf("workflow run %s not found", run.RunID)
	}

	runCopy := *run
	s.runs[run.RunID] = &runCopy

	return nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, filter agentflow.RunFilter) ([]*agentflow.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*agentflow.WorkflowRun

	for _, run := range s.runs {
		if filter.WorkflowName != "" && run.WorkflowName != filter.WorkflowName {
			continue
		}
		if filter.Status != nil && run.Status != *filter.Status {
			continue
		}

		runCopy := *run
		runs = append(runs, &runCopy)
	}

	// Newest first, stable for equal timestamps
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}

	return runs, nil
}

// Step execution operations

func (s *MemoryStore) CreateStepExecution(ctx context.Context, exec *agentflow.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stepExecutions[exec.RunID]; !exists {
		s.stepExecutions[exec.RunID] = make(map[string]*agentflow.StepExecution)
	}

	execCopy := *exec
	s.stepExecutions[exec.RunID][exec.StepID] = &execCopy

	return nil
}

func (s *MemoryStore) GetStepExecution(ctx context.Context, runID, stepID string) (*agentflow.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runExecs, exists := s.stepExecutions[runID]
	if !exists {
		return nil, fmt.Errorf("no step executions for run %s", runID)
	}

	exec, exists := runExecs[stepID]
	if !exists {
		return nil, fmt.Errorf("step execution %s/%s not found", runID, stepID)
	}

	execCopy := *exec
	return &execCopy, nil
}

func (s *MemoryStore) UpdateStepExecution(ctx context.Context, exec *agentflow.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stepExecutions[exec.RunID]; !exists {
		return fmt.Errorf("no step executions for run %s", exec.RunID)
	}

	execCopy := *exec
	s.stepExecutions[exec.RunID][exec.StepID] = &execCopy

	return nil
}

func (s *MemoryStore) ListStepExecutions(ctx context.Context, runID string) ([]*agentflow.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runExecs, exists := s.stepExecutions[runID]
	if !exists {
		return []*agentflow.StepExecution{}, nil
	}

	executions := make([]*agentflow.StepExecution, 0, len(runExecs))
	for _, exec := range runExecs {
		execCopy := *exec
		executions = append(executions, &execCopy)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StepID < executions[j].StepID
	})

	return executions, nil
}
