package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/booking-reminders/internal/models"
)

const (
	// candidateLookbackDays and candidateLookaheadDays bound the candidate fetch
	// generously so zone offsets of up to ±14h never push a booking out of range.
	candidateLookbackDays  = 1
	candidateLookaheadDays = 30
)

const (
	reminderColumnsUnknown int32 = iota
	reminderColumnsPresent
	reminderColumnsAbsent
)

const reminderColumnsQuery = `SELECT COUNT(*) FROM information_schema.columns
WHERE table_name = 'bookings' AND column_name IN ('client_reminder_sent', 'host_reminder_sent')`

const candidateSelect = `SELECT b.id, b.host_id, to_char(b.date, 'YYYY-MM-DD') AS date,
CAST(b.start_time AS TEXT) AS start_time, CAST(b.end_time AS TEXT) AS end_time, b.status,
COALESCE(b.client_name, '') AS client_name, b.client_email, b.client_phone, %s,
COALESCE(u.name, '') AS host_name, u.email AS host_email, u.sms_phone AS host_sms_phone,
u.timezone AS host_timezone, COALESCE(u.is_pro, false) AS host_is_pro, u.pro_expires_at AS host_pro_expires_at
FROM bookings b
JOIN users u ON u.id = b.host_id
WHERE b.status <> 'cancelled' AND b.date BETWEEN $1::date AND $2::date
ORDER BY b.date ASC, b.start_time ASC`

const (
	flagColumns      = `COALESCE(b.client_reminder_sent, false) AS client_reminder_sent, COALESCE(b.host_reminder_sent, false) AS host_reminder_sent`
	flagPlaceholders = `false AS client_reminder_sent, false AS host_reminder_sent`
)

const markReminderSentQuery = `UPDATE bookings
SET client_reminder_sent = COALESCE(client_reminder_sent, false) OR $1,
    host_reminder_sent = COALESCE(host_reminder_sent, false) OR $2,
    updated_at = NOW()
WHERE id = $3`

const touchBookingQuery = `UPDATE bookings SET updated_at = NOW() WHERE id = $1`

// QueryObserver receives query timings; MetricsService satisfies it.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

type candidateRow struct {
	ID                 string     `db:"id"`
	HostID             string     `db:"host_id"`
	Date               string     `db:"date"`
	StartTime          string     `db:"start_time"`
	EndTime            string     `db:"end_time"`
	Status             string     `db:"status"`
	ClientName         string     `db:"client_name"`
	ClientEmail        *string    `db:"client_email"`
	ClientPhone        *string    `db:"client_phone"`
	ClientReminderSent bool       `db:"client_reminder_sent"`
	HostReminderSent   bool       `db:"host_reminder_sent"`
	HostName           string     `db:"host_name"`
	HostEmail          *string    `db:"host_email"`
	HostSMSPhone       *string    `db:"host_sms_phone"`
	HostTimezone       *string    `db:"host_timezone"`
	HostIsPro          bool       `db:"host_is_pro"`
	HostProExpiresAt   *time.Time `db:"host_pro_expires_at"`
}

func (r candidateRow) toModel() models.BookingWithHost {
	return models.BookingWithHost{
		Booking: models.Booking{
			ID:                 r.ID,
			HostID:             r.HostID,
			Date:               r.Date,
			StartTime:          r.StartTime,
			EndTime:            r.EndTime,
			Status:             models.BookingStatus(r.Status),
			ClientName:         r.ClientName,
			ClientEmail:        r.ClientEmail,
			ClientPhone:        r.ClientPhone,
			ClientReminderSent: r.ClientReminderSent,
			HostReminderSent:   r.HostReminderSent,
		},
		Host: models.Host{
			ID:           r.HostID,
			Name:         r.HostName,
			Email:        r.HostEmail,
			SMSPhone:     r.HostSMSPhone,
			Timezone:     r.HostTimezone,
			IsPro:        r.HostIsPro,
			ProExpiresAt: r.HostProExpiresAt,
		},
	}
}

// BookingReminderRepository reads reminder candidates and persists sent-flags.
type BookingReminderRepository struct {
	db       *sqlx.DB
	observer QueryObserver

	// reminderColumns caches whether the sent-flag columns exist. Schema is
	// static at runtime, so the first successful answer holds for the process.
	reminderColumns atomic.Int32
}

// NewBookingReminderRepository constructs the repository. observer may be nil.
func NewBookingReminderRepository(db *sqlx.DB, observer QueryObserver) *BookingReminderRepository {
	return &BookingReminderRepository{db: db, observer: observer}
}

// HasReminderColumns reports whether bookings carries both sent-flag columns.
func (r *BookingReminderRepository) HasReminderColumns(ctx context.Context) (bool, error) {
	switch r.reminderColumns.Load() {
	case reminderColumnsPresent:
		return true, nil
	case reminderColumnsAbsent:
		return false, nil
	}

	start := time.Now()
	var count int
	err := r.db.GetContext(ctx, &count, reminderColumnsQuery)
	r.observe("reminder_columns", start)
	if err != nil {
		return false, fmt.Errorf("check reminder columns: %w", err)
	}

	present := count >= 2
	if present {
		r.reminderColumns.Store(reminderColumnsPresent)
	} else {
		r.reminderColumns.Store(reminderColumnsAbsent)
	}
	return present, nil
}

// FetchCandidateBookings returns non-cancelled bookings dated from one day before
// now through thirty days after, joined with their host. Without flag columns
// every row reports both flags as false.
func (r *BookingReminderRepository) FetchCandidateBookings(ctx context.Context, now time.Time) ([]models.BookingWithHost, error) {
	hasFlags, err := r.HasReminderColumns(ctx)
	if err != nil {
		return nil, err
	}

	flags := flagPlaceholders
	if hasFlags {
		flags = flagColumns
	}
	query := fmt.Sprintf(candidateSelect, flags)

	day := now.UTC()
	from := day.AddDate(0, 0, -candidateLookbackDays).Format("2006-01-02")
	to := day.AddDate(0, 0, candidateLookaheadDays).Format("2006-01-02")

	start := time.Now()
	var rows []candidateRow
	err = r.db.SelectContext(ctx, &rows, query, from, to)
	r.observe("fetch_reminder_candidates", start)
	if err != nil {
		return nil, fmt.Errorf("fetch reminder candidates: %w", err)
	}

	candidates := make([]models.BookingWithHost, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, row.toModel())
	}
	return candidates, nil
}

// MarkReminderSent OR-merges the provided flags into the stored ones so a sent
// flag never reverts. Without flag columns it only touches updated_at.
func (r *BookingReminderRepository) MarkReminderSent(ctx context.Context, bookingID string, clientSent, hostSent bool) error {
	hasFlags, err := r.HasReminderColumns(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	if hasFlags {
		_, err = r.db.ExecContext(ctx, markReminderSentQuery, clientSent, hostSent, bookingID)
	} else {
		_, err = r.db.ExecContext(ctx, touchBookingQuery, bookingID)
	}
	r.observe("mark_reminder_sent", start)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

// Ping verifies database connectivity for readiness checks.
func (r *BookingReminderRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *BookingReminderRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}
