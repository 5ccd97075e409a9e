package reminders

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

var (
	relativePattern  = regexp.MustCompile(`^in\s+(\d+)\s+(minute|minutes|hour|hours|day|days)$`)
	clockPattern     = regexp.MustCompile(`^(\d{1,2}):(\d{2})(\s*(am|pm))?$`)
	isoLocalLayouts  = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}
	isoOffsetLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04Z07:00"}
)

// ParseWhen resolves a reminder time relative to now. Accepted forms:
//
//	in N minute(s)|hour(s)|day(s)
//	ISO timestamps, with or without an offset (local time when absent)
//	HH:MM with optional am/pm, rolled to tomorrow when already past
//	cron <expr>, the next tick of a five-field cron expression
//
// Past results are not rejected here; the scheduler does that.
func ParseWhen(text string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(text)
	raw := strings.ToLower(trimmed)
	if raw == "" {
		return time.Time{}, ErrTimeRequired
	}

	if m := relativePattern.FindStringSubmatch(raw); m != nil {
		amount, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, ErrUnparseableTime
		}
		switch {
		case strings.HasPrefix(m[2], "hour"):
			return now.Add(time.Duration(amount) * time.Hour), nil
		case strings.HasPrefix(m[2], "day"):
			return now.AddDate(0, 0, amount), nil
		default:
			return now.Add(time.Duration(amount) * time.Minute), nil
		}
	}

	if t, ok := parseISO(trimmed, now.Location()); ok {
		return t, nil
	}

	if m := clockPattern.FindStringSubmatch(raw); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		switch m[4] {
		case "pm":
			if hour != 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
		if hour > 23 || minute > 59 {
			return time.Time{}, ErrUnparseableTime
		}
		candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, nil
	}

	if expr, ok := strings.CutPrefix(raw, "cron "); ok {
		expr = strings.TrimSpace(expr)
		if !gronx.New().IsValid(expr) {
			return time.Time{}, ErrUnparseableTime
		}
		next, err := gronx.NextTickAfter(expr, now, false)
		if err != nil {
			return time.Time{}, ErrUnparseableTime
		}
		return next, nil
	}

	return time.Time{}, ErrUnparseableTime
}

func parseISO(text string, loc *time.Location) (time.Time, bool) {
	for _, layout := range isoOffsetLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	for _, layout := range isoLocalLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
