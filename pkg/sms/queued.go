package sms

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/studygroup-api/pkg/jobs"
)

// TaskKind identifies SMS deliveries on a job queue.
const TaskKind = "sms.send"

// QueuedSender hands messages to a background queue so that request handlers
// do not wait on the provider. Failed deliveries are retried by the queue.
type QueuedSender struct {
	queue    *jobs.Queue
	delegate Sender
	logger   *zap.Logger
}

// NewQueuedSender registers the delivery handler on queue. The queue must be
// started before Send is called.
func NewQueuedSender(queue *jobs.Queue, delegate Sender, logger *zap.Logger) *QueuedSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &QueuedSender{queue: queue, delegate: delegate, logger: logger}
	queue.Handle(TaskKind, s.deliver)
	return s
}

// Send enqueues the message for delivery.
func (s *QueuedSender) Send(_ context.Context, msg Message) error {
	if msg.Phone == "" {
		return fmt.Errorf("sms phone is required")
	}
	if err := s.queue.Enqueue(jobs.Task{Kind: TaskKind, Payload: msg}); err != nil {
		return fmt.Errorf("enqueue sms: %w", err)
	}
	return nil
}

func (s *QueuedSender) deliver(ctx context.Context, task jobs.Task) error {
	msg, ok := task.Payload.(Message)
	if !ok {
		s.logger.Error("unexpected sms payload", zap.String("task_id", task.ID))
		return nil
	}
	return s.delegate.Send(ctx, msg)
}
