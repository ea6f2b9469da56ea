package utils

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDateFormat is the canonical internal date format. Broker exports are
// normalized to this by the readers; everything downstream assumes it.
const DefaultDateFormat = "2006-01-02"

// acceptedFormats covers the raw shapes seen in broker exports before
// normalization: IBKR flex "yyyyMMdd" and "yyyyMMdd;HHmmss".
var acceptedFormats = []string{
	DefaultDateFormat,
	"20060102",
}

// ParseDate parses a date string, trying the canonical format first and the
// known broker formats after. Returns an error for anything unparseable so
// callers can distinguish a real date from the zero-time sentinel.
func ParseDate(dateStr string) (time.Time, error) {
	s := dateStr
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	for _, layout := range acceptedFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date %q", dateStr)
}

// ParseDateOrZero is the lenient variant used where a missing date is a
// data-quality problem, not an integrity one.
func ParseDateOrZero(dateStr string) time.Time {
	t, err := ParseDate(dateStr)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatDate renders a time in the canonical internal format.
func FormatDate(t time.Time) string {
	return t.Format(DefaultDateFormat)
}
