package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/booking-reminders/internal/models"
	"github.com/noah-isme/booking-reminders/pkg/jobs"
)

type publisherStub struct {
	mu        sync.Mutex
	keys      []string
	payloads  []any
	failTimes int
}

func (p *publisherStub) PublishJSON(ctx context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failTimes > 0 {
		p.failTimes--
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, v)
	return nil
}

func (p *publisherStub) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func TestReminderEventServicePublishesThroughQueue(t *testing.T) {
	publisher := &publisherStub{failTimes: 1}
	svc := NewReminderEventService(publisher, nil)
	queue := jobs.NewQueue("reminder-events", svc.HandleJob, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	svc.AttachQueue(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	event := models.ReminderSentEvent{BookingID: "bk-1", HostID: "host-1", Recipients: []string{"client"}, Channels: []string{"email"}}
	require.NoError(t, svc.PublishReminderSent(context.Background(), event))

	require.Eventually(t, func() bool { return publisher.published() == 1 }, time.Second, 5*time.Millisecond)
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	assert.Equal(t, []string{ReminderSentRoutingKey}, publisher.keys)
	assert.Equal(t, event, publisher.payloads[0])
}

func TestReminderEventServiceWithoutPublisherIsNoop(t *testing.T) {
	svc := NewReminderEventService(nil, nil)
	assert.NoError(t, svc.PublishReminderSent(context.Background(), models.ReminderSentEvent{BookingID: "bk-1"}))
}

func TestReminderEventServiceRequiresQueue(t *testing.T) {
	svc := NewReminderEventService(&publisherStub{}, nil)
	assert.Error(t, svc.PublishReminderSent(context.Background(), models.ReminderSentEvent{BookingID: "bk-1"}))
}

func TestReminderEventServiceIgnoresForeignPayload(t *testing.T) {
	publisher := &publisherStub{}
	svc := NewReminderEventService(publisher, nil)
	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: "x", Payload: "not an event"}))
	assert.Zero(t, publisher.published())
}
