package timezone

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	// Embedded IANA database so slim images still resolve host zones.
	_ "time/tzdata"
)

// DefaultZone is used for hosts that never configured a timezone.
const DefaultZone = "Asia/Manila"

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

var (
	// ErrInvalidDate reports a civil date that is not YYYY-MM-DD or not on the calendar.
	ErrInvalidDate = errors.New("invalid civil date")
	// ErrInvalidTime reports a time-of-day that cannot be normalised to HH:MM.
	ErrInvalidTime = errors.New("invalid civil time")
	// ErrUnknownZone reports an IANA identifier the tz database does not know.
	ErrUnknownZone = errors.New("unknown timezone")
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var locations sync.Map // zone name -> *time.Location

// LoadLocation resolves an IANA zone, caching the result for the process lifetime.
func LoadLocation(zone string) (*time.Location, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return nil, fmt.Errorf("%w: empty zone", ErrUnknownZone)
	}
	if cached, ok := locations.Load(zone); ok {
		return cached.(*time.Location), nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownZone, zone, err)
	}
	locations.Store(zone, loc)
	return loc, nil
}

// UserTimezone returns the host zone when set, otherwise DefaultZone.
func UserTimezone(hostZone *string) string {
	return ResolveTimezone(hostZone, DefaultZone)
}

// ResolveTimezone returns the trimmed host zone or the provided fallback.
func ResolveTimezone(hostZone *string, fallback string) string {
	if hostZone != nil {
		if trimmed := strings.TrimSpace(*hostZone); trimmed != "" {
			return trimmed
		}
	}
	if strings.TrimSpace(fallback) == "" {
		return DefaultZone
	}
	return fallback
}

// NormalizeClock turns inputs such as "9", "9:5" or "14:00:00" into "HH:MM".
func NormalizeClock(timeStr string) (string, error) {
	raw := strings.TrimSpace(timeStr)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTime)
	}
	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, timeStr)
	}
	hourPart := parts[0]
	minutePart := "00"
	if len(parts) > 1 {
		minutePart = parts[1]
	}

	hour, err := parseClockPart(hourPart, 23)
	if err != nil {
		return "", fmt.Errorf("%w: hour %q", ErrInvalidTime, hourPart)
	}
	minute, err := parseClockPart(minutePart, 59)
	if err != nil {
		return "", fmt.Errorf("%w: minute %q", ErrInvalidTime, minutePart)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

func parseClockPart(part string, max int) (int, error) {
	if part == "" || len(part) > 2 {
		return 0, ErrInvalidTime
	}
	for _, r := range part {
		if r < '0' || r > '9' {
			return 0, ErrInvalidTime
		}
	}
	value, err := strconv.Atoi(part)
	if err != nil || value > max {
		return 0, ErrInvalidTime
	}
	return value, nil
}

// LocalToUTC converts a host-local civil date and time in zone into an absolute UTC instant.
// The offset is the one the zone observes at that civil moment, so DST is honoured.
func LocalToUTC(dateStr, timeStr, zone string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if !datePattern.MatchString(dateStr) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, dateStr)
	}
	day, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, dateStr)
	}
	clock, err := NormalizeClock(timeStr)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := LoadLocation(zone)
	if err != nil {
		return time.Time{}, err
	}

	// NormalizeClock guarantees the HH:MM shape.
	hour, _ := strconv.Atoi(clock[:2])
	minute, _ := strconv.Atoi(clock[3:])

	local := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	return local.UTC(), nil
}

// UTCToLocal renders an instant as the civil date and HH:MM clock observed in zone.
func UTCToLocal(instant time.Time, zone string) (string, string, error) {
	loc, err := LoadLocation(zone)
	if err != nil {
		return "", "", err
	}
	local := instant.In(loc)
	return local.Format(dateLayout), local.Format(clockLayout), nil
}
