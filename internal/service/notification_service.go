package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/booking-reminders/internal/models"
	"github.com/noah-isme/booking-reminders/pkg/mailer"
	"github.com/noah-isme/booking-reminders/pkg/timezone"
)

var (
	// ErrSMSNotEligible is returned for SMS reminders when the host has no active pro access.
	ErrSMSNotEligible = errors.New("host not eligible for sms reminders")
	// ErrMissingRecipient is returned when the booking or host lacks the contact for a channel.
	ErrMissingRecipient = errors.New("reminder recipient missing")
)

// MailSender delivers rendered reminder emails.
type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// SMSSender delivers rendered reminder texts.
type SMSSender interface {
	Send(ctx context.Context, number, message string) error
}

// NotificationService renders reminder content and hands it to the mail and SMS transports.
type NotificationService struct {
	mail        MailSender
	sms         SMSSender
	logger      *zap.Logger
	defaultZone string
	now         func() time.Time
}

// NewNotificationService constructs the dispatcher used by the reminder sweep.
func NewNotificationService(mail MailSender, sms SMSSender, logger *zap.Logger, defaultZone string) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(defaultZone) == "" {
		defaultZone = timezone.DefaultZone
	}
	return &NotificationService{
		mail:        mail,
		sms:         sms,
		logger:      logger,
		defaultZone: defaultZone,
		now:         time.Now,
	}
}

// SendClientReminderEmail emails the client about their upcoming booking.
func (s *NotificationService) SendClientReminderEmail(ctx context.Context, item models.BookingWithHost) error {
	if !models.HasValue(item.Booking.ClientEmail) {
		return fmt.Errorf("client email for booking %s: %w", item.Booking.ID, ErrMissingRecipient)
	}
	when := s.describe(item)
	host := displayName(item.Host.Name, "your host")

	msg := mailer.Message{
		To:      strings.TrimSpace(*item.Booking.ClientEmail),
		Subject: fmt.Sprintf("Reminder: your appointment with %s at %s", host, when.start),
		Text: fmt.Sprintf("Hi %s,\n\nThis is a reminder that your appointment with %s starts soon.\n\nDate: %s\nTime: %s (%s)\n\nSee you there!",
			displayName(item.Booking.ClientName, "there"), host, when.date, when.span, when.zone),
	}
	return s.mail.Send(ctx, msg)
}

// SendHostReminderEmail emails the host about the upcoming booking.
func (s *NotificationService) SendHostReminderEmail(ctx context.Context, item models.BookingWithHost) error {
	if !models.HasValue(item.Host.Email) {
		return fmt.Errorf("host email for booking %s: %w", item.Booking.ID, ErrMissingRecipient)
	}
	when := s.describe(item)
	client := displayName(item.Booking.ClientName, "a client")

	msg := mailer.Message{
		To:      strings.TrimSpace(*item.Host.Email),
		Subject: fmt.Sprintf("Upcoming: %s at %s", client, when.start),
		Text: fmt.Sprintf("Hi %s,\n\nYour appointment with %s starts soon.\n\nDate: %s\nTime: %s (%s)\nStatus: %s",
			displayName(item.Host.Name, "there"), client, when.date, when.span, when.zone, item.Booking.Status),
	}
	return s.mail.Send(ctx, msg)
}

// SendClientReminderSms texts the client. Only hosts with pro access may send SMS.
func (s *NotificationService) SendClientReminderSms(ctx context.Context, item models.BookingWithHost) error {
	if !item.Host.HasProAccess(s.now()) {
		return ErrSMSNotEligible
	}
	if !models.HasValue(item.Booking.ClientPhone) {
		return fmt.Errorf("client phone for booking %s: %w", item.Booking.ID, ErrMissingRecipient)
	}
	when := s.describe(item)
	text := fmt.Sprintf("Reminder: your appointment with %s is on %s at %s.",
		displayName(item.Host.Name, "your host"), when.shortDate, when.start)
	return s.sms.Send(ctx, *item.Booking.ClientPhone, text)
}

// SendHostReminderSms texts the host. Only hosts with pro access may send SMS.
func (s *NotificationService) SendHostReminderSms(ctx context.Context, item models.BookingWithHost) error {
	if !item.Host.HasProAccess(s.now()) {
		return ErrSMSNotEligible
	}
	if !models.HasValue(item.Host.SMSPhone) {
		return fmt.Errorf("host phone for booking %s: %w", item.Booking.ID, ErrMissingRecipient)
	}
	when := s.describe(item)
	text := fmt.Sprintf("Upcoming: %s on %s at %s.",
		displayName(item.Booking.ClientName, "a client"), when.shortDate, when.start)
	return s.sms.Send(ctx, *item.Host.SMSPhone, text)
}

type bookingWhen struct {
	date      string
	shortDate string
	start     string
	span      string
	zone      string
}

// describe formats the booking's civil date and times for humans. Unparseable
// values are passed through as stored.
func (s *NotificationService) describe(item models.BookingWithHost) bookingWhen {
	when := bookingWhen{
		date:      item.Booking.Date,
		shortDate: item.Booking.Date,
		start:     item.Booking.StartTime,
		zone:      timezone.ResolveTimezone(item.Host.Timezone, s.defaultZone),
	}
	if day, err := time.Parse("2006-01-02", item.Booking.Date); err == nil {
		when.date = day.Format("Monday, January 2, 2006")
		when.shortDate = day.Format("Jan 2")
	}
	when.start = formatClock(item.Booking.StartTime)
	when.span = when.start
	if end := formatClock(item.Booking.EndTime); end != "" && item.Booking.EndTime != "" {
		when.span = when.start + " - " + end
	}
	return when
}

func formatClock(raw string) string {
	clock, err := timezone.NormalizeClock(raw)
	if err != nil {
		return raw
	}
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return raw
	}
	return parsed.Format("3:04 PM")
}

func displayName(name, fallback string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return fallback
}
