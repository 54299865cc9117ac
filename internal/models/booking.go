package models

import (
	"strings"
	"time"
)

// BookingStatus mirrors the lifecycle maintained by booking CRUD.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is an appointment row. Date and times are host-local civil values.
type Booking struct {
	ID                 string        `db:"id" json:"id"`
	HostID             string        `db:"host_id" json:"host_id"`
	Date               string        `db:"date" json:"date"`
	StartTime          string        `db:"start_time" json:"start_time"`
	EndTime            string        `db:"end_time" json:"end_time"`
	Status             BookingStatus `db:"status" json:"status"`
	ClientName         string        `db:"client_name" json:"client_name"`
	ClientEmail        *string       `db:"client_email" json:"client_email,omitempty"`
	ClientPhone        *string       `db:"client_phone" json:"client_phone,omitempty"`
	ClientReminderSent bool          `db:"client_reminder_sent" json:"client_reminder_sent"`
	HostReminderSent   bool          `db:"host_reminder_sent" json:"host_reminder_sent"`
}

// Host is the read-only view of the user owning a booking.
type Host struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        *string    `db:"email" json:"email,omitempty"`
	SMSPhone     *string    `db:"sms_phone" json:"sms_phone,omitempty"`
	Timezone     *string    `db:"timezone" json:"timezone,omitempty"`
	IsPro        bool       `db:"is_pro" json:"is_pro"`
	ProExpiresAt *time.Time `db:"pro_expires_at" json:"pro_expires_at,omitempty"`
}

// HasProAccess reports whether the host's subscription is active at now. A nil expiry never lapses.
func (h Host) HasProAccess(now time.Time) bool {
	if !h.IsPro {
		return false
	}
	return h.ProExpiresAt == nil || h.ProExpiresAt.After(now)
}

// BookingWithHost joins a booking with the host fields reminders need.
type BookingWithHost struct {
	Booking Booking `json:"booking"`
	Host    Host    `json:"host"`
}

// HasValue reports whether an optional contact field carries a usable value.
func HasValue(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}
