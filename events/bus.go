// Package events publishes workflow lifecycle events over a watermill
// pub/sub channel. The Bus implements engine.Notifier so an engine can be
// wired to it directly; consumers subscribe by topic.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/sicko7947/agentflow"
	"github.com/sicko7947/agentflow/engine"
)

// Topics
const (
	TopicStepCompleted     = "agentflow.step.completed"
	TopicWorkflowCompleted = "agentflow.workflow.completed"
)

// StepEvent is published whenever a step reaches a terminal state.
type StepEvent struct {
	RunID      string               `json:"run_id"`
	StepID     string               `json:"step_id"`
	State      agentflow.StepState  `json:"state"`
	Attempts   int                  `json:"attempts"`
	DurationMs int64                `json:"duration_ms"`
	Error      *agentflow.StepFault `json:"error,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

// WorkflowEvent is published when a run reaches a terminal status.
type WorkflowEvent struct {
	RunID           string              `json:"run_id"`
	WorkflowName    string              `json:"workflow_name"`
	Status          agentflow.RunStatus `json:"status"`
	Success         bool                `json:"success"`
	StepsExecuted   int                 `json:"steps_executed"`
	ExecutionTimeMs int64               `json:"execution_time_ms"`
	Error           *agentflow.RunFault `json:"error,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

// StepHandler consumes step events. A non-nil error nacks the message.
type StepHandler func(ctx context.Context, event *StepEvent) error

// WorkflowHandler consumes workflow events. A non-nil error nacks the message.
type WorkflowHandler func(ctx context.Context, event *WorkflowEvent) error

// Bus bridges the engine's notifier hook to a watermill publisher and
// subscriber pair. Publishing is best-effort: a failed publish is logged,
// never surfaced to the run.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     zerolog.Logger
}

var _ engine.Notifier = (*Bus)(nil)

// NewBus creates a Bus over an existing publisher/subscriber pair
// (kafka, nats, or any other watermill backend).
func NewBus(pub message.Publisher, sub message.Subscriber, logger zerolog.Logger) *Bus {
	return &Bus{
		publisher:  pub,
		subscriber: sub,
		logger:     logger,
	}
}

// NewGoChannelBus creates an in-memory Bus suitable for embedded use and
// tests; publisher and subscriber share one GoChannel instance.
func NewGoChannelBus(logger zerolog.Logger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 1000,
			Persistent:          false,
		},
		watermill.NopLogger{},
	)
	return NewBus(pubSub, pubSub, logger)
}

// NotifyStep implements engine.Notifier.
func (b *Bus) NotifyStep(ctx context.Context, exec *agentflow.StepExecution) {
	event := &StepEvent{
		RunID:      exec.RunID,
		StepID:     exec.StepID,
		State:      exec.State,
		Attempts:   exec.Attempts,
		DurationMs: exec.DurationMs,
		Error:      exec.Error,
		Timestamp:  time.Now(),
	}
	b.publish(TopicStepCompleted, event)
}

// NotifyWorkflow implements engine.Notifier.
func (b *Bus) NotifyWorkflow(ctx context.Context, run *agentflow.WorkflowRun, result *agentflow.WorkflowResult) {
	event := &WorkflowEvent{
		RunID:        run.RunID,
		WorkflowName: run.WorkflowName,
		Status:       run.Status,
		Error:        run.Error,
		Timestamp:    time.Now(),
	}
	if result != nil {
		event.Success = result.Success
		event.StepsExecuted = result.StepsExecuted
		event.ExecutionTimeMs = result.ExecutionTimeMs
	}
	b.publish(TopicWorkflowCompleted, event)
}

func (b *Bus) publish(topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Str("topic", topic).Msg("failed to marshal event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.publisher.Publish(topic, msg); err != nil {
		b.logger.Error().Err(err).Str("topic", topic).Msg("failed to publish event")
	}
}

// SubscribeSteps delivers step events to handler until ctx is cancelled.
func (b *Bus) SubscribeSteps(ctx context.Context, handler StepHandler) error {
	return subscribe(ctx, b.subscriber, TopicStepCompleted, func(ctx context.Context, event *StepEvent) error {
		return handler(ctx, event)
	})
}

// SubscribeWorkflows delivers workflow events to handler until ctx is cancelled.
func (b *Bus) SubscribeWorkflows(ctx context.Context, handler WorkflowHandler) error {
	return subscribe(ctx, b.subscriber, TopicWorkflowCompleted, func(ctx context.Context, event *WorkflowEvent) error {
		return handler(ctx, event)
	})
}

func subscribe[T any](ctx context.Context, sub message.Subscriber, topic string, handler func(context.Context, *T) error) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var event T
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				msg.Nack()
				continue
			}

			if err := handler(ctx, &event); err != nil {
				msg.Nack()
				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

// Close releases the underlying publisher and subscriber.
func (b *Bus) Close() error {
	if err := b.publisher.Close(); err != nil {
		return err
	}
	return b.subscriber.Close()
}
