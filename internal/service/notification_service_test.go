package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/booking-reminders/internal/models"
	"github.com/noah-isme/booking-reminders/pkg/mailer"
)

type mailSenderStub struct {
	messages []mailer.Message
	err      error
}

func (m *mailSenderStub) Send(ctx context.Context, msg mailer.Message) error {
	m.messages = append(m.messages, msg)
	return m.err
}

type smsSenderStub struct {
	numbers  []string
	messages []string
}

func (s *smsSenderStub) Send(ctx context.Context, number, message string) error {
	s.numbers = append(s.numbers, number)
	s.messages = append(s.messages, message)
	return nil
}

func notificationFixture() models.BookingWithHost {
	item := bookingFixture("bk-1", "2025-12-09", "14:00", "Asia/Manila")
	item.Booking.EndTime = "15:00:00"
	item.Booking.ClientPhone = ptr("09171234567")
	item.Host.SMSPhone = ptr("09998887777")
	return item
}

func newTestNotificationService(mail *mailSenderStub, sms *smsSenderStub) *NotificationService {
	svc := NewNotificationService(mail, sms, nil, "")
	svc.now = func() time.Time { return time.Date(2025, 12, 9, 5, 30, 0, 0, time.UTC) }
	return svc
}

func TestNotificationServiceClientEmail(t *testing.T) {
	mail := &mailSenderStub{}
	svc := newTestNotificationService(mail, &smsSenderStub{})

	require.NoError(t, svc.SendClientReminderEmail(context.Background(), notificationFixture()))
	require.Len(t, mail.messages, 1)
	msg := mail.messages[0]
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Reminder: your appointment with Dr. Cruz at 2:00 PM", msg.Subject)
	assert.Contains(t, msg.Text, "Hi Ana,")
	assert.Contains(t, msg.Text, "Tuesday, December 9, 2025")
	assert.Contains(t, msg.Text, "2:00 PM - 3:00 PM (Asia/Manila)")
}

func TestNotificationServiceHostEmail(t *testing.T) {
	mail := &mailSenderStub{}
	svc := newTestNotificationService(mail, &smsSenderStub{})

	item := notificationFixture()
	item.Booking.EndTime = ""
	require.NoError(t, svc.SendHostReminderEmail(context.Background(), item))
	require.Len(t, mail.messages, 1)
	msg := mail.messages[0]
	assert.Equal(t, "host@example.com", msg.To)
	assert.Equal(t, "Upcoming: Ana at 2:00 PM", msg.Subject)
	assert.Contains(t, msg.Text, "Time: 2:00 PM (Asia/Manila)")
	assert.Contains(t, msg.Text, "Status: confirmed")
}

func TestNotificationServiceMissingRecipient(t *testing.T) {
	mail := &mailSenderStub{}
	svc := newTestNotificationService(mail, &smsSenderStub{})

	item := notificationFixture()
	item.Booking.ClientEmail = ptr(" ")
	item.Host.Email = nil

	assert.ErrorIs(t, svc.SendClientReminderEmail(context.Background(), item), ErrMissingRecipient)
	assert.ErrorIs(t, svc.SendHostReminderEmail(context.Background(), item), ErrMissingRecipient)
	assert.Empty(t, mail.messages)
}

func TestNotificationServiceSMSRequiresProAccess(t *testing.T) {
	expired := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		host func(*models.Host)
	}{
		{name: "not pro", host: func(h *models.Host) { h.IsPro = false }},
		{name: "pro expired", host: func(h *models.Host) { h.IsPro = true; h.ProExpiresAt = &expired }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sms := &smsSenderStub{}
			svc := newTestNotificationService(&mailSenderStub{}, sms)
			item := notificationFixture()
			tt.host(&item.Host)

			assert.ErrorIs(t, svc.SendClientReminderSms(context.Background(), item), ErrSMSNotEligible)
			assert.ErrorIs(t, svc.SendHostReminderSms(context.Background(), item), ErrSMSNotEligible)
			assert.Empty(t, sms.messages)
		})
	}
}

func TestNotificationServiceSMSForProHost(t *testing.T) {
	sms := &smsSenderStub{}
	svc := newTestNotificationService(&mailSenderStub{}, sms)
	item := notificationFixture()
	item.Host.IsPro = true
	future := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	item.Host.ProExpiresAt = &future

	require.NoError(t, svc.SendClientReminderSms(context.Background(), item))
	require.NoError(t, svc.SendHostReminderSms(context.Background(), item))
	assert.Equal(t, []string{"09171234567", "09998887777"}, sms.numbers)
	assert.Equal(t, "Reminder: your appointment with Dr. Cruz is on Dec 9 at 2:00 PM.", sms.messages[0])
	assert.Equal(t, "Upcoming: Ana on Dec 9 at 2:00 PM.", sms.messages[1])

	item.Host.SMSPhone = nil
	assert.ErrorIs(t, svc.SendHostReminderSms(context.Background(), item), ErrMissingRecipient)
}
