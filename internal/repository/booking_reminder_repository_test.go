package repository

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBookingReminderRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	labels []string
}

func (o *recordingObserver) ObserveDBQuery(label string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.labels = append(o.labels, label)
}

var candidateColumns = []string{
	"id", "host_id", "date", "start_time", "end_time", "status", "client_name", "client_email", "client_phone",
	"client_reminder_sent", "host_reminder_sent", "host_name", "host_email", "host_sms_phone", "host_timezone",
	"host_is_pro", "host_pro_expires_at",
}

func expectColumnCount(mock sqlmock.Sqlmock, count int) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM information_schema.columns")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestBookingReminderRepositoryFetchWithFlags(t *testing.T) {
	db, mock, cleanup := newBookingReminderRepoMock(t)
	defer cleanup()

	observer := &recordingObserver{}
	repo := NewBookingReminderRepository(db, observer)
	now := time.Date(2025, 12, 9, 5, 31, 0, 0, time.UTC)
	expires := now.Add(48 * time.Hour)

	expectColumnCount(mock, 2)
	rows := sqlmock.NewRows(candidateColumns).
		AddRow("bk-1", "host-1", "2025-12-09", "14:00:00", "15:00:00", "confirmed", "Ana", "ana@example.com", "09171234567",
			false, true, "Host One", "host@example.com", "09998887777", "Asia/Manila", true, expires)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(b.client_reminder_sent, false) AS client_reminder_sent")).
		WithArgs("2025-12-08", "2026-01-08").
		WillReturnRows(rows)

	candidates, err := repo.FetchCandidateBookings(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	got := candidates[0]
	assert.Equal(t, "bk-1", got.Booking.ID)
	assert.Equal(t, "2025-12-09", got.Booking.Date)
	assert.Equal(t, "14:00:00", got.Booking.StartTime)
	assert.False(t, got.Booking.ClientReminderSent)
	assert.True(t, got.Booking.HostReminderSent)
	require.NotNil(t, got.Booking.ClientEmail)
	assert.Equal(t, "ana@example.com", *got.Booking.ClientEmail)
	assert.Equal(t, "host-1", got.Host.ID)
	require.NotNil(t, got.Host.Timezone)
	assert.Equal(t, "Asia/Manila", *got.Host.Timezone)
	assert.True(t, got.Host.HasProAccess(now))
	assert.Equal(t, []string{"reminder_columns", "fetch_reminder_candidates"}, observer.labels)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingReminderRepositoryFetchWithoutFlagColumns(t *testing.T) {
	db, mock, cleanup := newBookingReminderRepoMock(t)
	defer cleanup()

	repo := NewBookingReminderRepository(db, nil)
	now := time.Date(2025, 12, 9, 5, 31, 0, 0, time.UTC)

	expectColumnCount(mock, 0)
	rows := sqlmock.NewRows(candidateColumns).
		AddRow("bk-2", "host-2", "2025-12-09", "09:00:00", "10:00:00", "pending", "Ben", nil, nil,
			false, false, "Host Two", nil, nil, nil, false, nil)
	mock.ExpectQuery(regexp.QuoteMeta("false AS client_reminder_sent, false AS host_reminder_sent")).
		WithArgs("2025-12-08", "2026-01-08").
		WillReturnRows(rows)

	candidates, err := repo.FetchCandidateBookings(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.False(t, candidates[0].Booking.ClientReminderSent)
	assert.False(t, candidates[0].Booking.HostReminderSent)
	assert.Nil(t, candidates[0].Host.Timezone)
	assert.Nil(t, candidates[0].Booking.ClientEmail)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingReminderRepositoryCachesColumnCheck(t *testing.T) {
	db, mock, cleanup := newBookingReminderRepoMock(t)
	defer cleanup()

	repo := NewBookingReminderRepository(db, nil)
	expectColumnCount(mock, 2)

	for i := 0; i < 3; i++ {
		present, err := repo.HasReminderColumns(context.Background())
		require.NoError(t, err)
		assert.True(t, present)
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingReminderRepositoryDoesNotCacheFailedCheck(t *testing.T) {
	db, mock, cleanup := newBookingReminderRepoMock(t)
	defer cleanup()

	repo := NewBookingReminderRepository(db, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM information_schema.columns")).
		WillReturnError(errors.New("connection reset"))
	expectColumnCount(mock, 2)

	_, err := repo.HasReminderColumns(context.Background())
	require.Error(t, err)

	present, err := repo.HasReminderColumns(context.Background())
	require.NoError(t, err)
	assert.True(t, present)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingReminderRepositoryFetchPropagatesQueryError(t *testing.T) {
	db, mock, cleanup := newBookingReminderRepoMock(t)
	defer cleanup()

	repo := NewBookingReminderRepository(db, nil)
	expectColumnCount(mock, 2)
	mock.ExpectQuery("SELECT b.id").WillReturnError(errors.New("boom"))

	_, err := repo.FetchCandidateBookings(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch reminder candidates")
}

func TestBookingReminderRepositoryMarkReminderSentMergesFlags(t *testing.T) {
	db, mock, cleanup := newBookingReminderRepoMock(t)
	defer cleanup()

	repo := NewBookingReminderRepository(db, nil)
	expectColumnCount(mock, 2)
	mock.ExpectExec(regexp.QuoteMeta("SET client_reminder_sent = COALESCE(client_reminder_sent, false) OR $1")).
		WithArgs(true, false, "bk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkReminderSent(context.Background(), "bk-1", true, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingReminderRepositoryMarkReminderSentWithoutColumnsTouchesRow(t *testing.T) {
	db, mock, cleanup := newBookingReminderRepoMock(t)
	defer cleanup()

	repo := NewBookingReminderRepository(db, nil)
	expectColumnCount(mock, 1)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET updated_at = NOW() WHERE id = $1")).
		WithArgs("bk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkReminderSent(context.Background(), "bk-1", true, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingReminderRepositoryMarkReminderSentError(t *testing.T) {
	db, mock, cleanup := newBookingReminderRepoMock(t)
	defer cleanup()

	repo := NewBookingReminderRepository(db, nil)
	expectColumnCount(mock, 2)
	mock.ExpectExec("UPDATE bookings").
		WithArgs(false, true, "bk-9").
		WillReturnError(errors.New("deadlock"))

	err := repo.MarkReminderSent(context.Background(), "bk-9", false, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark reminder sent")
}
