// Package session holds the per-user interactive flows. A session is an
// explicit state machine: the bot feeds each incoming reply into Advance and
// sends back whatever text the step produced. No write happens before the
// single commit in the final step, so a session can be dropped at any point
// without cleanup.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Montivagant/calenbot/internal/models"
	"github.com/Montivagant/calenbot/internal/schedule"
	"github.com/Montivagant/calenbot/internal/timeparse"
)

type State string

const (
	StateAwaitingDate         State = "awaiting_date"
	StateAwaitingStartTime    State = "awaiting_start_time"
	StateAwaitingEndTime      State = "awaiting_end_time"
	StateAwaitingParticipants State = "awaiting_participants"
	StateAwaitingConfirmation State = "awaiting_confirmation"

	StateCommitted        State = "committed"
	StateInvalidDate      State = "invalid_date"
	StateInvalidTime      State = "invalid_time"
	StateRetriesExhausted State = "retries_exhausted"
	StateSlotTaken        State = "slot_taken"
	StateCancelled        State = "cancelled"
	StateAbandoned        State = "abandoned"
	StateFailed           State = "failed"
)

// Terminal reports whether the session is finished and may be discarded.
func (s State) Terminal() bool {
	switch s {
	case StateAwaitingDate, StateAwaitingStartTime, StateAwaitingEndTime,
		StateAwaitingParticipants, StateAwaitingConfirmation:
		return false
	}
	return true
}

const (
	promptDate         = "📅 Please enter the date (d or dd):"
	promptStartTime    = "🕒 Please enter the start time (h:m PM/AM, hh:mm PM/AM, h PM/AM, or hh-mm PM/AM):"
	promptEndTime      = "🕒 Please enter the end time (h:m PM/AM, hh:mm PM/AM, h PM/AM, or hh-mm PM/AM):"
	promptParticipants = "👥 Please mention the participants (separated by spaces):"

	msgInvalidDate      = "❌ Invalid date format. Please enter the day as d or dd."
	msgInvalidTime      = "❌ Invalid time format. Please try again."
	msgInvalidEndTime   = "❌ Invalid time format."
	msgStartConflict    = "❌ The start time conflicts with an existing reservation. Please enter a different start time."
	msgStartWithin      = "❌ The start time is within an existing reservation period. Please enter a different start time."
	msgEndOverlap       = "❌ The end time overlaps an existing reservation. Please enter a different end time."
	msgEndBeforeStart   = "❌ The end time must be after the start time. Please try again."
	msgRetriesExhausted = "❌ Too many invalid attempts. Reservation cancelled."
	msgSlotTaken        = "❌ That slot was just booked by someone else. Please start over with /reserve."
)

// Reserve walks a user through booking a slot on an existing place calendar:
// date, start time, end time, participants, then one atomic insert. The start
// and end time steps re-prompt on bad or conflicting input, bounded by
// maxRetries; the date step aborts on first failure, mirroring the command's
// historical behavior.
type Reserve struct {
	ID     string
	UserID int64
	Place  string

	svc        *schedule.Service
	now        func() time.Time
	maxRetries int

	state        State
	retries      int
	date         string
	timeFrom     string
	timeTo       string
	participants string
}

func NewReserve(svc *schedule.Service, userID int64, place string, maxRetries int, now func() time.Time) *Reserve {
	return &Reserve{
		ID:         uuid.NewString(),
		UserID:     userID,
		Place:      place,
		svc:        svc,
		now:        now,
		maxRetries: maxRetries,
		state:      StateAwaitingDate,
	}
}

// Prompt is the first message of the flow, sent when the session is created.
func (s *Reserve) Prompt() string { return promptDate }

func (s *Reserve) State() State { return s.state }

func (s *Reserve) Done() bool { return s.state.Terminal() }

// Cancel marks the session terminal without committing anything.
func (s *Reserve) Cancel() { s.state = StateCancelled }

// Abandon marks an expired session; nothing was written.
func (s *Reserve) Abandon() { s.state = StateAbandoned }

// Advance feeds one user reply into the machine and returns the text to send
// back. A non-nil error is an infrastructure failure: the session is terminal
// and the caller should apologize generically.
func (s *Reserve) Advance(ctx context.Context, input string) (string, error) {
	switch s.state {
	case StateAwaitingDate:
		return s.stepDate(input)
	case StateAwaitingStartTime:
		return s.stepStartTime(ctx, input)
	case StateAwaitingEndTime:
		return s.stepEndTime(ctx, input)
	case StateAwaitingParticipants:
		return s.stepParticipants(ctx, input)
	default:
		return "", nil
	}
}

func (s *Reserve) stepDate(input string) (string, error) {
	date, err := timeparse.NormalizeDate(input, s.now())
	if err != nil {
		s.state = StateInvalidDate
		return msgInvalidDate, nil
	}

	s.date = date
	s.state = StateAwaitingStartTime
	s.retries = 0
	return promptStartTime, nil
}

func (s *Reserve) stepStartTime(ctx context.Context, input string) (string, error) {
	timeFrom, err := timeparse.NormalizeTime(input)
	if err != nil {
		return s.retry(msgInvalidTime, promptStartTime), nil
	}

	existing, err := s.svc.ExistingIntervals(ctx, s.Place, s.date)
	if err != nil {
		s.state = StateFailed
		return "", err
	}

	conflict, err := schedule.FindConflict(existing, timeFrom)
	if err != nil {
		s.state = StateFailed
		return "", err
	}
	if conflict != nil {
		reason := msgStartConflict
		if conflict.Kind == schedule.ConflictWithinInterval {
			reason = msgStartWithin
		}
		return s.retry(reason, promptStartTime), nil
	}

	s.timeFrom = timeFrom
	s.state = StateAwaitingEndTime
	s.retries = 0
	return promptEndTime, nil
}

func (s *Reserve) stepEndTime(ctx context.Context, input string) (string, error) {
	timeTo, err := timeparse.NormalizeTime(input)
	if err != nil {
		// a malformed end time aborts the whole flow
		s.state = StateInvalidTime
		return msgInvalidEndTime, nil
	}

	from, _ := timeparse.ParseClock(s.timeFrom)
	to, err := timeparse.ParseClock(timeTo)
	if err != nil || !from.Before(to) {
		return s.retry(msgEndBeforeStart, promptEndTime), nil
	}

	existing, err := s.svc.ExistingIntervals(ctx, s.Place, s.date)
	if err != nil {
		s.state = StateFailed
		return "", err
	}

	conflict, err := schedule.FindRangeConflict(existing, s.timeFrom, timeTo)
	if err != nil {
		s.state = StateFailed
		return "", err
	}
	if conflict != nil {
		return s.retry(msgEndOverlap, promptEndTime), nil
	}

	s.timeTo = timeTo
	s.state = StateAwaitingParticipants
	s.retries = 0
	return promptParticipants, nil
}

func (s *Reserve) stepParticipants(ctx context.Context, input string) (string, error) {
	// whitespace-separated mentions, stored comma-joined; empty is fine
	s.participants = strings.Join(strings.Fields(input), ",")

	res := models.Reservation{
		Place:        s.Place,
		Date:         s.date,
		TimeFrom:     s.timeFrom,
		TimeTo:       s.timeTo,
		OwnerID:      s.UserID,
		Participants: s.participants,
	}

	if err := s.svc.Reserve(ctx, res); err != nil {
		if errors.Is(err, schedule.ErrSlotConflict) {
			s.state = StateSlotTaken
			return msgSlotTaken, nil
		}
		s.state = StateFailed
		return "", err
	}

	s.state = StateCommitted
	return "✅ Reserved " + s.Place + " on " + s.date + " from " + s.timeFrom +
		" to " + s.timeTo + " with participants " + s.participants + ".", nil
}

// retry re-prompts the current step until the retry budget runs out.
func (s *Reserve) retry(reason, prompt string) string {
	s.retries++
	if s.retries >= s.maxRetries {
		s.state = StateRetriesExhausted
		return msgRetriesExhausted
	}
	return reason + "\n" + prompt
}
