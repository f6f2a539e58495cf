package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dayLayout   = "2006-01-02"
	localLayout = "2006-01-02T15:04"
)

// ParseDay parses "YYYY-MM-DD" as local midnight in loc.
func ParseDay(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dayLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", raw)
	}
	return t, nil
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(raw string) (int, time.Month, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if ok && len(y) == 4 && len(m) == 2 {
		year, errY := strconv.Atoi(y)
		month, errM := strconv.Atoi(m)
		if errY == nil && errM == nil && month >= 1 && month <= 12 {
			return year, time.Month(month), nil
		}
	}
	return 0, 0, fmt.Errorf("invalid month %q: want YYYY-MM", raw)
}

// ParseSlotStart accepts RFC 3339 or a wall-clock "YYYY-MM-DDTHH:MM" in loc.
func ParseSlotStart(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(localLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid slot start %q: want RFC 3339 or YYYY-MM-DDTHH:MM", raw)
}
