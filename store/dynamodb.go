package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sicko7947/agentflow"
)

// DynamoDBStore implements agentflow.ExecutionStore using AWS DynamoDB
type DynamoDBStore struct {
	client    DynamoDBClient
	tableName string
}

// NewDynamoDBStore creates a new DynamoDB-backed execution store
func NewDynamoDBStore(client DynamoDBClient, tableName string) agentflow.ExecutionStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
	}
}

// Workflow run operations

func (s *DynamoDBStore) CreateRun(ctx context.Context, run *agentflow.WorkflowRun) error {
	item, err := s.runItem(run)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("failed to create workflow run: %w", err)
	}

	return nil
}

func (s *DynamoDBStore) GetRun(ctx context.Context, runID string) (*agentflow.WorkflowRun, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: workflowRunPK(runID)},
			AttrSK: &types.AttributeValueMemberS{Value: workflowRunSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow run: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("workflow run %s not found", runID)
	}

	var run agentflow.WorkflowRun
	if err := attributevalue.UnmarshalMap(result.Item, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow run: %w", err)
	}

	return &run, nil
}

func (s *DynamoDBStore) UpdateRun(ctx context.Context, run *agentflow.WorkflowRun) error {
	run.UpdatedAt = time.Now()

	item, err := s.runItem(run)
	if err != nil {
		return err
	}

	// Use transaction for atomic update
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName: aws.String(s.tableName),
					Item:      item,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update workflow run: %w", err)
	}

	return nil
}

// ListRuns queries GSI1 for runs of a workflow in a given status, newest
// first. The single-table layout has no scan-friendly listing, so both
// WorkflowName and Status are required.
func (s *DynamoDBStore) ListRuns(ctx context.Context, filter agentflow.RunFilter) ([]*agentflow.WorkflowRun, error) {
	if filter.WorkflowName == "" || filter.Status == nil {
		return nil, fmt.Errorf("listing runs requires both workflowName and status filters")
	}

	var runs []*agentflow.WorkflowRun
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(IndexWorkflowStatus),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{
					Value: workflowRunGSI1PK(filter.WorkflowName, string(*filter.Status)),
				},
			},
			ScanIndexForward: aws.Bool(false),
		}

		if filter.Limit > 0 {
			queryInput.Limit = aws.Int32(int32(filter.Limit - len(runs)))
		}

		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list workflow runs: %w", err)
		}

		for _, item := range result.Items {
			var run agentflow.WorkflowRun
			if err := attributevalue.UnmarshalMap(item, &run); err != nil {
				return nil, fmt.Errorf("failed to unmarshal workflow run: %w", err)
			}
			runs = append(runs, &run)
		}

		if filter.Limit > 0 && len(runs) >= filter.Limit {
			return runs[:filter.Limit], nil
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return runs, nil
}

// Step execution operations

func (s *DynamoDBStore) CreateStepExecution(ctx context.Context, exec *agentflow.StepExecution) error {
	return s.putStepExecution(ctx, exec, "create")
}

func (s *DynamoDBStore) GetStepExecution(ctx context.Context, runID, stepID string) (*agentflow.StepExecution, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: stepExecutionPK(runID)},
			AttrSK: &types.AttributeValueMemberS{Value: stepExecutionSK(stepID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get step execution: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("step execution %s/%s not found", runID, stepID)
	}

	var exec agentflow.StepExecution
	if err := attributevalue.UnmarshalMap(result.Item, &exec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step execution: %w", err)
	}

	return &exec, nil
}

func (s *DynamoDBStore) UpdateStepExecution(ctx context.Context, exec *agentflow.StepExecution) error {
	return s.putStepExecution(ctx, exec, "update")
}

func (s *DynamoDBStore) ListStepExecutions(ctx context.Context, runID string) ([]*agentflow.StepExecution, error) {
	var executions []*agentflow.StepExecution
	var lastEvaluatedKey map[string]types.AttributeValue

	// Paginate through all results
	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: stepExecutionPK(runID)},
				":sk": &types.AttributeValueMemberS{Value: stepPrefix()},
			},
		}

		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list step executions: %w", err)
		}

		for _, item := range result.Items {
			var exec agentflow.StepExecution
			if err := attributevalue.UnmarshalMap(item, &exec); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step execution: %w", err)
			}
			executions = append(executions, &exec)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return executions, nil
}

// Item builders

func (s *DynamoDBStore) runItem(run *agentflow.WorkflowRun) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(run)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow run: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: workflowRunPK(run.RunID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: workflowRunSK()}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeWorkflowRun}

	// GSI keys track status, which changes over the run's lifetime
	item[AttrGSI1PK] = &types.AttributeValueMemberS{
		Value: workflowRunGSI1PK(run.WorkflowName, string(run.Status)),
	}
	item[AttrGSI1SK] = &types.AttributeValueMemberS{
		Value: workflowRunGSI1SK(run.CreatedAt.Format(time.RFC3339Nano)),
	}

	if run.TTL > 0 {
		item[AttrTTL] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", run.TTL)}
	}

	return item, nil
}

func (s *DynamoDBStore) putStepExecution(ctx context.Context, exec *agentflow.StepExecution, op string) error {
	exec.UpdatedAt = time.Now()

	item, err := attributevalue.MarshalMap(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal step execution: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: stepExecutionPK(exec.RunID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: stepExecutionSK(exec.StepID)}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeStepExecution}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to %s step execution: %w", op, err)
	}

	return nil
}
