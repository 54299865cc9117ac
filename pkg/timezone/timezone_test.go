package timezone

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalToUTCRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		date string
		time string
		zone string
		want time.Time
	}{
		{name: "manila ahead of utc", date: "2025-12-09", time: "14:00", zone: "Asia/Manila", want: time.Date(2025, 12, 9, 6, 0, 0, 0, time.UTC)},
		{name: "los angeles behind utc", date: "2025-07-01", time: "09:15", zone: "America/Los_Angeles", want: time.Date(2025, 7, 1, 16, 15, 0, 0, time.UTC)},
		{name: "new york spring forward day", date: "2025-03-09", time: "12:00", zone: "America/New_York", want: time.Date(2025, 3, 9, 16, 0, 0, 0, time.UTC)},
		{name: "new york day before spring forward", date: "2025-03-08", time: "12:00", zone: "America/New_York", want: time.Date(2025, 3, 8, 17, 0, 0, 0, time.UTC)},
		{name: "new york fall back day", date: "2025-11-02", time: "12:00", zone: "America/New_York", want: time.Date(2025, 11, 2, 17, 0, 0, 0, time.UTC)},
		{name: "kolkata half hour", date: "2025-05-20", time: "09:30", zone: "Asia/Kolkata", want: time.Date(2025, 5, 20, 4, 0, 0, 0, time.UTC)},
		{name: "kathmandu quarter hour", date: "2025-05-20", time: "06:00", zone: "Asia/Kathmandu", want: time.Date(2025, 5, 20, 0, 15, 0, 0, time.UTC)},
		{name: "adelaide half hour with dst", date: "2025-01-15", time: "10:30", zone: "Australia/Adelaide", want: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{name: "adelaide half hour standard", date: "2025-07-15", time: "09:30", zone: "Australia/Adelaide", want: time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)},
		{name: "st johns negative half hour", date: "2025-01-10", time: "08:00", zone: "America/St_Johns", want: time.Date(2025, 1, 10, 11, 30, 0, 0, time.UTC)},
		{name: "kiritimati crosses date line", date: "2025-06-01", time: "08:00", zone: "Pacific/Kiritimati", want: time.Date(2025, 5, 31, 18, 0, 0, 0, time.UTC)},
		{name: "utc", date: "2024-02-29", time: "23:59", zone: "UTC", want: time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LocalToUTC(tt.date, tt.time, tt.zone)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "LocalToUTC() = %s, want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())

			date, clock, err := UTCToLocal(got, tt.zone)
			require.NoError(t, err)
			assert.Equal(t, tt.date, date)
			assert.Equal(t, tt.time, clock)
		})
	}
}

func TestLocalToUTCAmbiguousHourRoundTrips(t *testing.T) {
	got, err := LocalToUTC("2025-11-02", "01:30", "America/New_York")
	require.NoError(t, err)

	date, clock, err := UTCToLocal(got, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "2025-11-02", date)
	assert.Equal(t, "01:30", clock)
}

func TestLocalToUTCNormalizesClock(t *testing.T) {
	want := time.Date(2025, 12, 9, 1, 0, 0, 0, time.UTC)
	for _, input := range []string{"9", "09", "9:00", "09:0", "09:00:00", " 9:00 "} {
		got, err := LocalToUTC("2025-12-09", input, "Asia/Manila")
		require.NoError(t, err, input)
		assert.True(t, want.Equal(got), "input %q produced %s", input, got)
	}
}

func TestLocalToUTCRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		time    string
		zone    string
		wantErr error
	}{
		{name: "slashed date", date: "2025/12/09", time: "14:00", zone: "Asia/Manila", wantErr: ErrInvalidDate},
		{name: "short year", date: "25-12-09", time: "14:00", zone: "Asia/Manila", wantErr: ErrInvalidDate},
		{name: "impossible day", date: "2025-02-30", time: "14:00", zone: "Asia/Manila", wantErr: ErrInvalidDate},
		{name: "empty date", date: "", time: "14:00", zone: "Asia/Manila", wantErr: ErrInvalidDate},
		{name: "hour out of range", date: "2025-12-09", time: "24:00", zone: "Asia/Manila", wantErr: ErrInvalidTime},
		{name: "minute out of range", date: "2025-12-09", time: "14:60", zone: "Asia/Manila", wantErr: ErrInvalidTime},
		{name: "letters", date: "2025-12-09", time: "2pm", zone: "Asia/Manila", wantErr: ErrInvalidTime},
		{name: "empty time", date: "2025-12-09", time: "", zone: "Asia/Manila", wantErr: ErrInvalidTime},
		{name: "unknown zone", date: "2025-12-09", time: "14:00", zone: "Mars/Olympus_Mons", wantErr: ErrUnknownZone},
		{name: "empty zone", date: "2025-12-09", time: "14:00", zone: "", wantErr: ErrUnknownZone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LocalToUTC(tt.date, tt.time, tt.zone)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "unexpected error: %v", err)
			assert.True(t, got.IsZero())
		})
	}
}

func TestNormalizeClock(t *testing.T) {
	cases := map[string]string{
		"7":        "07:00",
		"7:5":      "07:05",
		"14:30":    "14:30",
		"00:00":    "00:00",
		"23:59:59": "23:59",
	}
	for input, want := range cases {
		got, err := NormalizeClock(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := NormalizeClock("1:2:3:4")
	assert.ErrorIs(t, err, ErrInvalidTime)
	_, err = NormalizeClock("123:00")
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestUserTimezone(t *testing.T) {
	zone := "Europe/Berlin"
	blank := "   "

	assert.Equal(t, "Europe/Berlin", UserTimezone(&zone))
	assert.Equal(t, DefaultZone, UserTimezone(nil))
	assert.Equal(t, DefaultZone, UserTimezone(&blank))
	assert.Equal(t, "UTC", ResolveTimezone(nil, "UTC"))
	assert.Equal(t, DefaultZone, ResolveTimezone(nil, ""))
}

func TestLoadLocationCaches(t *testing.T) {
	first, err := LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	second, err := LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	assert.Same(t, first, second)
}
