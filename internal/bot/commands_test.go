package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Montivagant/calenbot/internal/auth"
	"github.com/Montivagant/calenbot/internal/config"
	"github.com/Montivagant/calenbot/internal/models"
	"github.com/Montivagant/calenbot/internal/schedule"
	"github.com/Montivagant/calenbot/internal/session"
	"github.com/Montivagant/calenbot/internal/storage/memstore"
)

// June 2026
func fixedNow() time.Time {
	return time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func newTestBot(admins ...int64) (*Bot, *fakeSender, *memstore.Store) {
	store := memstore.New()
	sender := &fakeSender{}
	b := &Bot{
		sender: sender,
		cfg: &config.Config{
			Session: config.SessionConfig{MaxTimeRetries: 5, IdleTimeoutMinutes: 10},
		},
		store:    store,
		svc:      schedule.NewService(store),
		gate:     auth.NewGate(store, admins),
		sessions: session.NewManager(10*time.Minute, fixedNow),
		now:      fixedNow,
	}
	return b, sender, store
}

func message(userID int64, name, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, UserName: name},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}
}

func say(b *Bot, userID int64, name, text string) {
	b.handleMessage(context.Background(), message(userID, name, text))
}

func TestReserveEndToEnd(t *testing.T) {
	b, sender, store := newTestBot()
	ctx := context.Background()

	say(b, 7, "alice", "/create_place Room1")
	assert.Equal(t, `✅ Place calendar "Room1" created.`, sender.last())

	say(b, 7, "alice", "/reserve Room1")
	assert.Contains(t, sender.last(), "enter the date")

	say(b, 7, "alice", "5")
	assert.Contains(t, sender.last(), "start time")

	say(b, 7, "alice", "2:00 PM")
	assert.Contains(t, sender.last(), "end time")

	say(b, 7, "alice", "3:00 PM")
	assert.Contains(t, sender.last(), "participants")

	say(b, 7, "alice", "alice bob")
	assert.Equal(t, "✅ Reserved Room1 on 05/06 from 02:00 PM to 03:00 PM with participants alice,bob.", sender.last())

	all, err := store.AllReservations(ctx, "Room1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(7), all[0].OwnerID)
}

func TestReserveConflictKeepsSessionOpen(t *testing.T) {
	b, sender, store := newTestBot()
	ctx := context.Background()

	require.NoError(t, store.InsertPlace(ctx, "Room1"))
	require.NoError(t, store.InsertReservation(ctx, models.Reservation{
		Place: "Room1", Date: "05/06", TimeFrom: "02:00 PM", TimeTo: "03:00 PM", OwnerID: 1,
	}))

	say(b, 7, "alice", "/reserve Room1")
	say(b, 7, "alice", "5")
	say(b, 7, "alice", "2:00 PM")
	assert.Contains(t, sender.last(), "conflicts with an existing reservation")

	// the session is still waiting for a start time
	say(b, 7, "alice", "3:00 PM")
	assert.Contains(t, sender.last(), "end time")

	all, err := store.AllReservations(ctx, "Room1")
	require.NoError(t, err)
	assert.Len(t, all, 1, "no new record was written")
}

func TestReserveUnknownPlace(t *testing.T) {
	b, sender, _ := newTestBot()

	say(b, 7, "alice", "/reserve Nowhere")
	assert.Equal(t, `❌ Place "Nowhere" does not exist. Please create it first.`, sender.last())

	// no session was opened: a date-like reply goes nowhere
	count := len(sender.sent)
	say(b, 7, "alice", "5")
	assert.Len(t, sender.sent, count)
}

func TestCreatePlaceDuplicate(t *testing.T) {
	b, sender, _ := newTestBot()

	say(b, 7, "alice", "/create_place Room1")
	say(b, 7, "alice", "/create_place Room1")
	assert.Equal(t, `❌ Place "Room1" already exists.`, sender.last())
}

func TestRoleGating(t *testing.T) {
	b, sender, _ := newTestBot(1)

	// admin restricts create_place to "staff"
	say(b, 1, "admin", "/assign_role create_place staff")
	assert.Equal(t, `✅ Role "staff" assigned to command "create_place".`, sender.last())

	say(b, 7, "alice", "/create_place Room1")
	assert.Equal(t, msgRoleMissing, sender.last())

	say(b, 1, "admin", "/grant_role 7 staff")
	say(b, 7, "alice", "/create_place Room1")
	assert.Equal(t, `✅ Place calendar "Room1" created.`, sender.last())

	// lifting the binding opens the command again
	say(b, 1, "admin", "/remove_role create_place staff")
	say(b, 8, "bob", "/create_place Room2")
	assert.Equal(t, `✅ Place calendar "Room2" created.`, sender.last())
}

func TestAdminOnlyCommands(t *testing.T) {
	b, sender, _ := newTestBot(1)

	for _, cmd := range []string{
		"/assign_role create_place staff",
		"/remove_role create_place staff",
		"/grant_role 7 staff",
		"/revoke_role 7 staff",
	} {
		say(b, 7, "alice", cmd)
		assert.Equal(t, msgAdminOnly, sender.last(), cmd)
	}
}

func TestDeleteReservationInvalidDate(t *testing.T) {
	b, sender, store := newTestBot()
	ctx := context.Background()

	require.NoError(t, store.InsertReservation(ctx, models.Reservation{
		Place: "Room1", Date: "05/06", TimeFrom: "02:00 PM", TimeTo: "03:00 PM", OwnerID: 1,
	}))

	say(b, 7, "alice", "/delete_reservation Room1 banana 2:00PM")
	assert.Equal(t, "❌ Invalid date or time format.", sender.last())

	all, err := store.AllReservations(ctx, "Room1")
	require.NoError(t, err)
	assert.Len(t, all, 1, "no row affected")
}

func TestDeleteReservation(t *testing.T) {
	b, sender, store := newTestBot()
	ctx := context.Background()

	require.NoError(t, store.InsertReservation(ctx, models.Reservation{
		Place: "Room1", Date: "05/06", TimeFrom: "02:00 PM", TimeTo: "03:00 PM", OwnerID: 1,
	}))

	say(b, 7, "alice", "/delete_reservation Room1 5 2:00PM")
	assert.Equal(t, "🗑️ Reservation for Room1 on 05/06 from 02:00 PM deleted.", sender.last())

	all, err := store.AllReservations(ctx, "Room1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestShowReservations(t *testing.T) {
	b, sender, store := newTestBot()
	ctx := context.Background()

	say(b, 7, "alice", "/show_reservations Room1")
	assert.Equal(t, "❌ No reservations for Room1.", sender.last())

	require.NoError(t, store.RememberUser(ctx, 7, "alice"))
	require.NoError(t, store.InsertReservation(ctx, models.Reservation{
		Place: "Room1", Date: "05/06", TimeFrom: "02:00 PM", TimeTo: "03:00 PM",
		OwnerID: 7, Participants: "bob,carol",
	}))
	require.NoError(t, store.InsertReservation(ctx, models.Reservation{
		Place: "Room1", Date: "06/06", TimeFrom: "09:00 AM", TimeTo: "10:00 AM",
		OwnerID: 999, // never seen by the bot
	}))

	say(b, 7, "alice", "/show_reservations Room1")
	out := sender.last()
	assert.Contains(t, out, "Reservations for Room1")
	assert.Contains(t, out, "📅 Date: 05/06")
	assert.Contains(t, out, "From: 02:00 PM To: 03:00 PM")
	assert.Contains(t, out, "By: alice")
	assert.Contains(t, out, "Participants: bob,carol")
	assert.Contains(t, out, "By: Unknown User")
}

func TestListPlaces(t *testing.T) {
	b, sender, _ := newTestBot()

	say(b, 7, "alice", "/list_places")
	assert.Equal(t, "❌ No places found.", sender.last())

	say(b, 7, "alice", "/create_place Room1")
	say(b, 7, "alice", "/create_place Garage")
	say(b, 7, "alice", "/list_places")
	assert.Equal(t, "Available places:\nGarage\nRoom1", sender.last())
}

func TestClearDatabaseConfirmation(t *testing.T) {
	b, sender, store := newTestBot()
	ctx := context.Background()

	require.NoError(t, store.InsertPlace(ctx, "Room1"))
	require.NoError(t, store.InsertReservation(ctx, models.Reservation{
		Place: "Room1", Date: "05/06", TimeFrom: "02:00 PM", TimeTo: "03:00 PM", OwnerID: 1,
	}))

	t.Run("wrong token abandons", func(t *testing.T) {
		say(b, 7, "alice", "/clear_database")
		assert.Contains(t, sender.last(), "Are you sure")

		say(b, 7, "alice", "no")
		assert.Contains(t, sender.last(), "left untouched")

		all, err := store.AllReservations(ctx, "Room1")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("yes clears reservations but keeps places", func(t *testing.T) {
		say(b, 7, "alice", "/clear_database")
		say(b, 7, "alice", "yes")
		assert.Contains(t, sender.last(), "cleared")

		all, err := store.AllReservations(ctx, "Room1")
		require.NoError(t, err)
		assert.Empty(t, all)

		exists, err := store.PlaceExists(ctx, "Room1")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestCancel(t *testing.T) {
	b, sender, _ := newTestBot()

	say(b, 7, "alice", "/cancel")
	assert.Equal(t, "Nothing to cancel.", sender.last())

	say(b, 7, "alice", "/create_place Room1")
	say(b, 7, "alice", "/reserve Room1")
	say(b, 7, "alice", "/cancel")
	assert.Equal(t, "✅ Cancelled.", sender.last())

	// the dropped session no longer consumes replies
	count := len(sender.sent)
	say(b, 7, "alice", "5")
	assert.Len(t, sender.sent, count)
}

func TestCommandWithBotSuffix(t *testing.T) {
	b, sender, _ := newTestBot()

	say(b, 7, "alice", "/list_places@calenbot")
	assert.Equal(t, "❌ No places found.", sender.last())
}

func TestHelp(t *testing.T) {
	b, sender, _ := newTestBot()

	say(b, 7, "alice", "/help")
	assert.True(t, strings.Contains(sender.last(), "/reserve"))
}
