package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/booking-reminders/internal/models"
	"github.com/noah-isme/booking-reminders/pkg/jobs"
)

// ReminderSentRoutingKey is the topic routing key for persisted reminders.
const ReminderSentRoutingKey = "booking.reminder_sent"

const reminderSentJobType = "reminder_sent"

type messagePublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type eventQueue interface {
	TryEnqueue(job jobs.Job) error
}

// ReminderEventService hands reminder events to a background queue that publishes them to the broker.
type ReminderEventService struct {
	publisher messagePublisher
	queue     eventQueue
	logger    *zap.Logger
}

// NewReminderEventService constructs the event service. The queue is attached with AttachQueue.
func NewReminderEventService(publisher messagePublisher, logger *zap.Logger) *ReminderEventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderEventService{publisher: publisher, logger: logger}
}

// AttachQueue sets the queue used by PublishReminderSent.
func (s *ReminderEventService) AttachQueue(queue eventQueue) {
	s.queue = queue
}

// PublishReminderSent enqueues event without blocking. A full queue drops the event.
func (s *ReminderEventService) PublishReminderSent(_ context.Context, event models.ReminderSentEvent) error {
	if s.publisher == nil {
		return nil
	}
	if s.queue == nil {
		return fmt.Errorf("reminder event queue not attached")
	}
	return s.queue.TryEnqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    reminderSentJobType,
		Payload: event,
	})
}

// HandleJob is the queue handler that publishes a queued event.
func (s *ReminderEventService) HandleJob(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.ReminderSentEvent)
	if !ok {
		s.logger.Sugar().Errorw("unexpected reminder event payload", "job_id", job.ID, "type", job.Type)
		return nil
	}
	if err := s.publisher.PublishJSON(ctx, ReminderSentRoutingKey, event); err != nil {
		return fmt.Errorf("publish %s for booking %s: %w", ReminderSentRoutingKey, event.BookingID, err)
	}
	s.logger.Sugar().Debugw("reminder event published", "booking_id", event.BookingID, "job_id", job.ID)
	return nil
}
