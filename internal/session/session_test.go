package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Montivagant/calenbot/internal/models"
	"github.com/Montivagant/calenbot/internal/schedule"
	"github.com/Montivagant/calenbot/internal/session"
	"github.com/Montivagant/calenbot/internal/storage/memstore"
)

// June 2026, mid-month
func fixedNow() time.Time {
	return time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T) (*memstore.Store, *schedule.Service) {
	t.Helper()
	store := memstore.New()
	require.NoError(t, store.InsertPlace(context.Background(), "Room1"))
	return store, schedule.NewService(store)
}

func advance(t *testing.T, s *session.Reserve, input string) string {
	t.Helper()
	reply, err := s.Advance(context.Background(), input)
	require.NoError(t, err)
	return reply
}

func TestReserveHappyPath(t *testing.T) {
	store, svc := newFixture(t)
	s := session.NewReserve(svc, 77, "Room1", 5, fixedNow)

	assert.Contains(t, s.Prompt(), "enter the date")
	assert.Equal(t, session.StateAwaitingDate, s.State())

	reply := advance(t, s, "5")
	assert.Contains(t, reply, "start time")
	assert.Equal(t, session.StateAwaitingStartTime, s.State())

	reply = advance(t, s, "2:00 PM")
	assert.Contains(t, reply, "end time")
	assert.Equal(t, session.StateAwaitingEndTime, s.State())

	reply = advance(t, s, "3:00 PM")
	assert.Contains(t, reply, "participants")
	assert.Equal(t, session.StateAwaitingParticipants, s.State())

	reply = advance(t, s, "alice bob")
	assert.Equal(t, session.StateCommitted, s.State())
	assert.True(t, s.Done())
	assert.Equal(t, "✅ Reserved Room1 on 05/06 from 02:00 PM to 03:00 PM with participants alice,bob.", reply)

	all, err := store.AllReservations(context.Background(), "Room1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.Reservation{
		Place:        "Room1",
		Date:         "05/06",
		TimeFrom:     "02:00 PM",
		TimeTo:       "03:00 PM",
		OwnerID:      77,
		Participants: "alice,bob",
	}, all[0])
}

func TestReserveConflictingStartReprompts(t *testing.T) {
	store, svc := newFixture(t)
	require.NoError(t, store.InsertReservation(context.Background(), models.Reservation{
		Place: "Room1", Date: "05/06", TimeFrom: "02:00 PM", TimeTo: "03:00 PM", OwnerID: 1,
	}))

	s := session.NewReserve(svc, 77, "Room1", 5, fixedNow)
	advance(t, s, "5")

	reply := advance(t, s, "2:00 PM")
	assert.Contains(t, reply, "conflicts with an existing reservation")
	assert.Equal(t, session.StateAwaitingStartTime, s.State(), "session stays in the start-time step")

	reply = advance(t, s, "2:30 PM")
	assert.Contains(t, reply, "within an existing reservation period")
	assert.Equal(t, session.StateAwaitingStartTime, s.State())

	// no partial write happened
	all, err := store.AllReservations(context.Background(), "Room1")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// a free slot lets the session move on
	reply = advance(t, s, "3:00 PM")
	assert.Contains(t, reply, "end time")
}

func TestReserveInvalidDateAborts(t *testing.T) {
	_, svc := newFixture(t)
	s := session.NewReserve(svc, 77, "Room1", 5, fixedNow)

	reply := advance(t, s, "not-a-day")
	assert.Contains(t, reply, "Invalid date format")
	assert.Equal(t, session.StateInvalidDate, s.State())
	assert.True(t, s.Done())
}

func TestReserveInvalidStartTimeRetries(t *testing.T) {
	_, svc := newFixture(t)
	s := session.NewReserve(svc, 77, "Room1", 5, fixedNow)
	advance(t, s, "5")

	reply := advance(t, s, "soonish")
	assert.Contains(t, reply, "Invalid time format")
	assert.Equal(t, session.StateAwaitingStartTime, s.State())

	reply = advance(t, s, "14:00")
	assert.Contains(t, reply, "end time")
}

func TestReserveRetriesExhausted(t *testing.T) {
	_, svc := newFixture(t)
	s := session.NewReserve(svc, 77, "Room1", 3, fixedNow)
	advance(t, s, "5")

	advance(t, s, "nope")
	advance(t, s, "still nope")
	reply := advance(t, s, "nope again")

	assert.Contains(t, reply, "Too many invalid attempts")
	assert.Equal(t, session.StateRetriesExhausted, s.State())
	assert.True(t, s.Done())
}

func TestReserveInvalidEndTimeAborts(t *testing.T) {
	store, svc := newFixture(t)
	s := session.NewReserve(svc, 77, "Room1", 5, fixedNow)
	advance(t, s, "5")
	advance(t, s, "2:00 PM")

	reply := advance(t, s, "whenever")
	assert.Contains(t, reply, "Invalid time format")
	assert.Equal(t, session.StateInvalidTime, s.State())
	assert.True(t, s.Done())

	all, err := store.AllReservations(context.Background(), "Room1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReserveEndBeforeStartReprompts(t *testing.T) {
	_, svc := newFixture(t)
	s := session.NewReserve(svc, 77, "Room1", 5, fixedNow)
	advance(t, s, "5")
	advance(t, s, "2:00 PM")

	reply := advance(t, s, "1:00 PM")
	assert.Contains(t, reply, "must be after the start time")
	assert.Equal(t, session.StateAwaitingEndTime, s.State())

	reply = advance(t, s, "2:00 PM")
	assert.Contains(t, reply, "must be after the start time")

	reply = advance(t, s, "2:30 PM")
	assert.Contains(t, reply, "participants")
}

func TestReserveEndTimeOverlapReprompts(t *testing.T) {
	store, svc := newFixture(t)
	require.NoError(t, store.InsertReservation(context.Background(), models.Reservation{
		Place: "Room1", Date: "05/06", TimeFrom: "03:00 PM", TimeTo: "04:00 PM", OwnerID: 1,
	}))

	s := session.NewReserve(svc, 77, "Room1", 5, fixedNow)
	advance(t, s, "5")
	advance(t, s, "2:00 PM")

	// the start is free but this end would run into the 3 PM booking
	reply := advance(t, s, "3:30 PM")
	assert.Contains(t, reply, "overlaps an existing reservation")
	assert.Equal(t, session.StateAwaitingEndTime, s.State())

	reply = advance(t, s, "3:00 PM")
	assert.Contains(t, reply, "participants")
}

func TestReserveEmptyParticipants(t *testing.T) {
	store, svc := newFixture(t)
	s := session.NewReserve(svc, 77, "Room1", 5, fixedNow)
	advance(t, s, "5")
	advance(t, s, "2:00 PM")
	advance(t, s, "3:00 PM")

	advance(t, s, "")
	assert.Equal(t, session.StateCommitted, s.State())

	all, err := store.AllReservations(context.Background(), "Room1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "", all[0].Participants)
}

func TestReserveSlotTakenAtCommit(t *testing.T) {
	store, svc := newFixture(t)
	s := session.NewReserve(svc, 77, "Room1", 5, fixedNow)
	advance(t, s, "5")
	advance(t, s, "2:00 PM")
	advance(t, s, "3:00 PM")

	// another session commits an overlapping slot between the check and the
	// participants reply
	require.NoError(t, svc.Reserve(context.Background(), models.Reservation{
		Place: "Room1", Date: "05/06", TimeFrom: "02:30 PM", TimeTo: "03:30 PM", OwnerID: 2,
	}))

	reply := advance(t, s, "alice")
	assert.Contains(t, reply, "just booked by someone else")
	assert.Equal(t, session.StateSlotTaken, s.State())

	all, err := store.AllReservations(context.Background(), "Room1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConfirmSession(t *testing.T) {
	t.Run("literal yes commits", func(t *testing.T) {
		cleared := false
		s := session.NewConfirm(77, func(context.Context) error {
			cleared = true
			return nil
		})

		assert.Contains(t, s.Prompt(), "Reply with \"yes\"")

		reply, err := s.Advance(context.Background(), "YES")
		require.NoError(t, err)
		assert.Contains(t, reply, "cleared")
		assert.True(t, cleared)
		assert.Equal(t, session.StateCommitted, s.State())
	})

	t.Run("anything else abandons", func(t *testing.T) {
		cleared := false
		s := session.NewConfirm(77, func(context.Context) error {
			cleared = true
			return nil
		})

		reply, err := s.Advance(context.Background(), "yes please")
		require.NoError(t, err)
		assert.Contains(t, reply, "left untouched")
		assert.False(t, cleared)
		assert.Equal(t, session.StateAbandoned, s.State())
		assert.True(t, s.Done())
	})
}
