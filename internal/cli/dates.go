package cli

import (
	"fmt"
	"strings"
	"time"

	"dues/internal/core"
)

// DateLayout is the calendar date form accepted on the command line.
const DateLayout = "2006-01-02"

// ParseDate reads a calendar date as midnight UTC, the frame schedules are
// computed in, or a full RFC 3339 instant.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(DateLayout, s, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q (want YYYY-MM-DD or RFC 3339)", core.ErrInvalidDate, s)
}
