package timeparse

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Canonical layouts. Dates carry no year: the bot always books within the
// current month and the monthly reset clears everything before the ambiguity
// could matter. Known limitation, kept deliberately.
const (
	DateLayout  = "02/01"
	ClockLayout = "03:04 PM"
)

var (
	ErrInvalidDate = errors.New("invalid date format")
	ErrInvalidTime = errors.New("invalid time format")
)

// clock layouts tried in order after input cleanup. Single-digit hours and
// minutes are accepted by the non-padded verbs.
var clockLayouts = []string{
	"3:4 PM",
	"15:4",
	"3 PM",
	"15",
}

// NormalizeDate turns a 1- or 2-digit day-of-month into the canonical "dd/mm"
// form, taking year and month from now. Anything else fails with
// ErrInvalidDate, including days that do not exist in the current month.
func NormalizeDate(raw string, now time.Time) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 1 || len(raw) > 2 {
		return "", ErrInvalidDate
	}

	day, err := strconv.Atoi(raw)
	if err != nil || day < 1 {
		return "", ErrInvalidDate
	}

	date := time.Date(now.Year(), now.Month(), day, 0, 0, 0, 0, now.Location())
	if date.Month() != now.Month() {
		// time.Date normalizes overflow (Feb 30 -> Mar 2), which we must reject
		return "", ErrInvalidDate
	}

	return date.Format(DateLayout), nil
}

// NormalizeTime parses the accepted shapes h, h:m, hh:mm and hh-mm, each with
// an optional AM/PM suffix, into the canonical "hh:mm AM/PM" form. Input
// without a suffix is read as 24-hour.
func NormalizeTime(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", ":")
	s = strings.Join(strings.Fields(s), " ")

	// tolerate a missing space before the meridiem ("3:00PM")
	for _, suffix := range []string{"AM", "PM"} {
		if rest, ok := strings.CutSuffix(s, suffix); ok && !strings.HasSuffix(rest, " ") {
			s = strings.TrimSpace(rest) + " " + suffix
			break
		}
	}

	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	return "", ErrInvalidTime
}

// ParseClock re-parses a canonical time produced by NormalizeTime. The zero
// date it returns is the same for every input, so results are directly
// comparable within one day.
func ParseClock(canonical string) (time.Time, error) {
	t, err := time.Parse(ClockLayout, canonical)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}
	return t, nil
}
