package models

import "time"

// ReminderWindow is the delivery range for one sweep, inclusive at both ends.
type ReminderWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewReminderWindow builds [now+offset-halfWidth, now+offset+halfWidth].
func NewReminderWindow(now time.Time, offset, halfWidth time.Duration) ReminderWindow {
	center := now.Add(offset)
	return ReminderWindow{Start: center.Add(-halfWidth), End: center.Add(halfWidth)}
}

// Contains reports whether t falls inside the window.
func (w ReminderWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ReminderRecipient distinguishes the two independently tracked reminders.
type ReminderRecipient string

const (
	RecipientClient ReminderRecipient = "client"
	RecipientHost   ReminderRecipient = "host"
)

// ReminderChannel is the transport used for a reminder.
type ReminderChannel string

const (
	ChannelEmail ReminderChannel = "email"
	ChannelSMS   ReminderChannel = "sms"
)

// CandidateStatus summarises what a sweep did with one booking.
type CandidateStatus string

const (
	CandidateDispatched CandidateStatus = "dispatched"
	CandidateSkipped    CandidateStatus = "skipped"
	CandidateFailed     CandidateStatus = "failed"
)

// Skip and failure reasons recorded on candidate outcomes.
const (
	ReasonInvalidStart    = "invalid_start"
	ReasonOutsideWindow   = "outside_window"
	ReasonAlreadySent     = "already_sent"
	ReasonNoRecipient     = "no_recipient"
	ReasonDispatchFailed  = "dispatch_failed"
	ReasonPersistFailed   = "persist_failed"
	ReasonLockHeld        = "lock_held"
	ReasonLockUnavailable = "lock_unavailable"
	ReasonFetchFailed     = "fetch_failed"
)

// CandidateOutcome is the structured result of processing one booking in a sweep.
type CandidateOutcome struct {
	BookingID       string          `json:"booking_id"`
	Status          CandidateStatus `json:"status"`
	Reason          string          `json:"reason,omitempty"`
	StartsAt        *time.Time      `json:"starts_at,omitempty"`
	ClientEmailSent bool            `json:"client_email_sent"`
	HostEmailSent   bool            `json:"host_email_sent"`
	ClientSMSSent   bool            `json:"client_sms_sent"`
	HostSMSSent     bool            `json:"host_sms_sent"`
	Errors          []string        `json:"errors,omitempty"`
}

// SweepResult aggregates one tick of the reminder sweep.
type SweepResult struct {
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    time.Time          `json:"finished_at"`
	Window        ReminderWindow     `json:"window"`
	Candidates    int                `json:"candidates"`
	Dispatched    int                `json:"dispatched"`
	Skipped       int                `json:"skipped"`
	Failed        int                `json:"failed"`
	SkippedReason string             `json:"skipped_reason,omitempty"`
	Error         string             `json:"error,omitempty"`
	SkipReasons   map[string]int     `json:"skip_reasons,omitempty"`
	Outcomes      []CandidateOutcome `json:"-"`
}

// Duration returns how long the sweep took.
func (r *SweepResult) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Tally recomputes the aggregate counters from Outcomes.
func (r *SweepResult) Tally() {
	r.Dispatched, r.Skipped, r.Failed = 0, 0, 0
	r.SkipReasons = map[string]int{}
	for _, outcome := range r.Outcomes {
		switch outcome.Status {
		case CandidateDispatched:
			r.Dispatched++
		case CandidateSkipped:
			r.Skipped++
			r.SkipReasons[outcome.Reason]++
		case CandidateFailed:
			r.Failed++
		}
	}
}

// ReminderSentEvent is published after a booking's sent-flags are persisted.
type ReminderSentEvent struct {
	BookingID  string    `json:"booking_id"`
	HostID     string    `json:"host_id"`
	Recipients []string  `json:"recipients"`
	Channels   []string  `json:"channels"`
	StartsAt   time.Time `json:"starts_at"`
	SentAt     time.Time `json:"sent_at"`
}

// ReminderMetricsSnapshot exposes lifetime counters for the status endpoint.
type ReminderMetricsSnapshot struct {
	SweepsTotal      uint64    `json:"sweeps_total"`
	SweepsSkipped    uint64    `json:"sweeps_skipped"`
	RemindersSent    uint64    `json:"reminders_sent"`
	DispatchFailures uint64    `json:"dispatch_failures"`
	AverageSweepMs   float64   `json:"average_sweep_ms"`
	DBQueryCount     uint64    `json:"db_query_count"`
	AverageDBQueryMs float64   `json:"average_db_query_ms"`
	RequestsTotal    uint64    `json:"requests_total"`
	AverageRequestMs float64   `json:"average_request_ms"`
	Goroutines       int       `json:"goroutines"`
	GeneratedAt      time.Time `json:"generated_at"`
}
