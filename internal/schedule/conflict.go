package schedule

import (
	"fmt"
	"time"

	"github.com/Montivagant/calenbot/internal/timeparse"
)

// Interval is a booked [From, To) slot in canonical clock form.
type Interval struct {
	From string
	To   string
}

// ConflictKind describes how a proposed slot collides with an existing one.
type ConflictKind string

const (
	// ConflictExactStart means the proposed start equals an existing start.
	ConflictExactStart ConflictKind = "exact_start"
	// ConflictWithinInterval means the proposed start falls strictly inside
	// an existing interval.
	ConflictWithinInterval ConflictKind = "within_interval"
	// ConflictOverlap means the proposed range overlaps an existing interval.
	ConflictOverlap ConflictKind = "overlap"
)

// Conflict reports the first existing interval a proposal collides with.
type Conflict struct {
	Kind ConflictKind
	With Interval
}

// FindConflict checks a proposed start time against the intervals already
// booked for the same place and date. Intervals are evaluated in input order
// and the first match wins. All values must be canonical; a stored interval
// that fails to re-parse is reported as an error.
func FindConflict(existing []Interval, proposedStart string) (*Conflict, error) {
	start, err := timeparse.ParseClock(proposedStart)
	if err != nil {
		return nil, fmt.Errorf("parse proposed start %q: %w", proposedStart, err)
	}

	for _, iv := range existing {
		from, to, err := parseInterval(iv)
		if err != nil {
			return nil, err
		}

		if start.Equal(from) {
			return &Conflict{Kind: ConflictExactStart, With: iv}, nil
		}
		if from.Before(start) && start.Before(to) {
			return &Conflict{Kind: ConflictWithinInterval, With: iv}, nil
		}
	}
	return nil, nil
}

// FindRangeConflict checks the whole proposed [from, to) range for overlap
// with any existing interval. The original start-only check admits slots whose
// tail runs into a later booking; this closes that gap.
func FindRangeConflict(existing []Interval, proposedFrom, proposedTo string) (*Conflict, error) {
	from, to, err := parseInterval(Interval{From: proposedFrom, To: proposedTo})
	if err != nil {
		return nil, err
	}

	for _, iv := range existing {
		a, b, err := parseInterval(iv)
		if err != nil {
			return nil, err
		}

		if from.Equal(a) {
			return &Conflict{Kind: ConflictExactStart, With: iv}, nil
		}
		if from.Before(b) && a.Before(to) {
			return &Conflict{Kind: ConflictOverlap, With: iv}, nil
		}
	}
	return nil, nil
}

func parseInterval(iv Interval) (from, to time.Time, err error) {
	from, err = timeparse.ParseClock(iv.From)
	if err != nil {
		return from, to, fmt.Errorf("parse interval start %q: %w", iv.From, err)
	}
	to, err = timeparse.ParseClock(iv.To)
	if err != nil {
		return from, to, fmt.Errorf("parse interval end %q: %w", iv.To, err)
	}
	return from, to, nil
}
