package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Montivagant/calenbot/internal/session"
	"github.com/Montivagant/calenbot/internal/storage"
	"github.com/Montivagant/calenbot/internal/timeparse"
)

const (
	msgRoleMissing = "❌ You do not have the required role to use this command."
	msgAdminOnly   = "❌ You do not have permission to use this command."

	helpText = `📖 Calendar bot commands:
/create_place <name> - create a place calendar
/delete_place <name> - delete a place calendar and its reservations
/reserve <name> - book a time slot interactively
/delete_reservation <place> <date> <time> - delete one reservation
/show_reservations <name> - list reservations for a place
/list_places - list all places
/clear_database - wipe all reservations (asks for confirmation)
/cancel - abort your current interactive flow

Admin only:
/assign_role <command> <role> - restrict a command to a role
/remove_role <command> <role> - lift a restriction
/grant_role <user_id> <role> - give a user a role
/revoke_role <user_id> <role> - take a role away`
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	started := time.Now()

	fields := strings.Fields(msg.Text)
	command := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	args := fields[1:]
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if b.metrics != nil {
		b.metrics.CommandsProcessed.Inc()
		defer func() {
			b.metrics.CommandDuration.WithLabelValues(command).Observe(time.Since(started).Seconds())
		}()
	}

	switch command {
	case "start", "help":
		b.sendMessage(chatID, helpText)
	case "assign_role":
		b.handleAssignRole(ctx, chatID, userID, args)
	case "remove_role":
		b.handleRemoveRole(ctx, chatID, userID, args)
	case "grant_role":
		b.handleGrantRole(ctx, chatID, userID, args)
	case "revoke_role":
		b.handleRevokeRole(ctx, chatID, userID, args)
	case "create_place":
		b.handleCreatePlace(ctx, chatID, userID, args)
	case "delete_place":
		b.handleDeletePlace(ctx, chatID, userID, args)
	case "reserve":
		b.handleReserve(ctx, chatID, userID, args)
	case "delete_reservation":
		b.handleDeleteReservation(ctx, chatID, userID, args)
	case "show_reservations":
		b.handleShowReservations(ctx, chatID, args)
	case "list_places":
		b.handleListPlaces(ctx, chatID)
	case "clear_database":
		b.handleClearDatabase(chatID, userID)
	case "cancel":
		b.handleCancel(chatID, userID)
	}
}

// allowed runs the role gate for a command and reports the denial itself.
func (b *Bot) allowed(ctx context.Context, command string, chatID, userID int64) bool {
	ok, err := b.gate.Allow(ctx, command, userID)
	if err != nil {
		log.Printf("authorization check for %q: %v", command, err)
		b.sendMessage(chatID, msgInternalError)
		return false
	}
	if !ok {
		b.sendMessage(chatID, msgRoleMissing)
		return false
	}
	return true
}

func (b *Bot) handleAssignRole(ctx context.Context, chatID, userID int64, args []string) {
	if !b.gate.IsAdmin(userID) {
		b.sendMessage(chatID, msgAdminOnly)
		return
	}
	if len(args) != 2 {
		b.sendMessage(chatID, "Usage: /assign_role <command> <role>")
		return
	}

	if err := b.store.AddBinding(ctx, args[0], args[1]); err != nil {
		log.Printf("add binding %s->%s: %v", args[0], args[1], err)
		b.sendMessage(chatID, msgInternalError)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ Role %q assigned to command %q.", args[1], args[0]))
}

func (b *Bot) handleRemoveRole(ctx context.Context, chatID, userID int64, args []string) {
	if !b.gate.IsAdmin(userID) {
		b.sendMessage(chatID, msgAdminOnly)
		return
	}
	if len(args) != 2 {
		b.sendMessage(chatID, "Usage: /remove_role <command> <role>")
		return
	}

	if err := b.store.RemoveBinding(ctx, args[0], args[1]); err != nil {
		log.Printf("remove binding %s->%s: %v", args[0], args[1], err)
		b.sendMessage(chatID, msgInternalError)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ Role %q removed from command %q.", args[1], args[0]))
}

func (b *Bot) handleGrantRole(ctx context.Context, chatID, userID int64, args []string) {
	if !b.gate.IsAdmin(userID) {
		b.sendMessage(chatID, msgAdminOnly)
		return
	}
	if len(args) != 2 {
		b.sendMessage(chatID, "Usage: /grant_role <user_id> <role>")
		return
	}

	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMessage(chatID, "❌ Invalid user ID.")
		return
	}

	if err := b.store.GrantRole(ctx, target, args[1]); err != nil {
		log.Printf("grant role %s to %d: %v", args[1], target, err)
		b.sendMessage(chatID, msgInternalError)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ Role %q granted to user %d.", args[1], target))
}

func (b *Bot) handleRevokeRole(ctx context.Context, chatID, userID int64, args []string) {
	if !b.gate.IsAdmin(userID) {
		b.sendMessage(chatID, msgAdminOnly)
		return
	}
	if len(args) != 2 {
		b.sendMessage(chatID, "Usage: /revoke_role <user_id> <role>")
		return
	}

	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMessage(chatID, "❌ Invalid user ID.")
		return
	}

	if err := b.store.RevokeRole(ctx, target, args[1]); err != nil {
		log.Printf("revoke role %s from %d: %v", args[1], target, err)
		b.sendMessage(chatID, msgInternalError)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ Role %q revoked from user %d.", args[1], target))
}

func (b *Bot) handleCreatePlace(ctx context.Context, chatID, userID int64, args []string) {
	if !b.allowed(ctx, "create_place", chatID, userID) {
		return
	}
	if len(args) == 0 {
		b.sendMessage(chatID, "Usage: /create_place <name>")
		return
	}

	name := strings.Join(args, " ")
	err := b.svc.CreatePlace(ctx, name)
	if errors.Is(err, storage.ErrPlaceExists) {
		b.sendMessage(chatID, fmt.Sprintf("❌ Place %q already exists.", name))
		return
	}
	if err != nil {
		log.Printf("create place %q: %v", name, err)
		b.sendMessage(chatID, msgInternalError)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ Place calendar %q created.", name))
}

func (b *Bot) handleDeletePlace(ctx context.Context, chatID, userID int64, args []string) {
	if !b.allowed(ctx, "delete_place", chatID, userID) {
		return
	}
	if len(args) == 0 {
		b.sendMessage(chatID, "Usage: /delete_place <name>")
		return
	}

	name := strings.Join(args, " ")
	if err := b.svc.DeletePlace(ctx, name); err != nil {
		log.Printf("delete place %q: %v", name, err)
		b.sendMessage(chatID, msgInternalError)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("🗑️ Place calendar %q deleted.", name))
}

func (b *Bot) handleReserve(ctx context.Context, chatID, userID int64, args []string) {
	if !b.allowed(ctx, "reserve", chatID, userID) {
		return
	}
	if len(args) == 0 {
		b.sendMessage(chatID, "Usage: /reserve <place>")
		return
	}

	name := strings.Join(args, " ")
	exists, err := b.svc.PlaceExists(ctx, name)
	if err != nil {
		log.Printf("check place %q: %v", name, err)
		b.sendMessage(chatID, msgInternalError)
		return
	}
	if !exists {
		b.sendMessage(chatID, fmt.Sprintf("❌ Place %q does not exist. Please create it first.", name))
		return
	}

	flow := session.NewReserve(b.svc, userID, name, b.cfg.Session.MaxTimeRetries, b.now)
	b.sessions.Put(userID, flow)
	log.Printf("reservation session %s started (user %d, place %q)", flow.ID, userID, name)
	b.sendMessage(chatID, flow.Prompt())
}

func (b *Bot) handleDeleteReservation(ctx context.Context, chatID, userID int64, args []string) {
	if !b.allowed(ctx, "delete_reservation", chatID, userID) {
		return
	}
	if len(args) < 3 {
		b.sendMessage(chatID, "Usage: /delete_reservation <place> <date> <time>")
		return
	}

	place := args[0]
	date, dateErr := timeparse.NormalizeDate(args[1], b.now())
	timeFrom, timeErr := timeparse.NormalizeTime(strings.Join(args[2:], " "))
	if dateErr != nil || timeErr != nil {
		b.sendMessage(chatID, "❌ Invalid date or time format.")
		return
	}

	if err := b.svc.DeleteReservation(ctx, place, date, timeFrom); err != nil {
		log.Printf("delete reservation %s %s %s: %v", place, date, timeFrom, err)
		b.sendMessage(chatID, msgInternalError)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("🗑️ Reservation for %s on %s from %s deleted.", place, date, timeFrom))
}

func (b *Bot) handleShowReservations(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.sendMessage(chatID, "Usage: /show_reservations <name>")
		return
	}

	name := strings.Join(args, " ")
	reservations, err := b.svc.Reservations(ctx, name)
	if err != nil {
		log.Printf("list reservations for %q: %v", name, err)
		b.sendMessage(chatID, msgInternalError)
		return
	}
	if len(reservations) == 0 {
		b.sendMessage(chatID, fmt.Sprintf("❌ No reservations for %s.", name))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📒 Reservations for %s:\n", name)
	for _, res := range reservations {
		owner, err := b.store.UserName(ctx, res.OwnerID)
		if err != nil {
			log.Printf("look up owner %d: %v", res.OwnerID, err)
			owner = ""
		}
		if owner == "" {
			owner = "Unknown User"
		}

		fmt.Fprintf(&sb, "\n📅 Date: %s\n", res.Date)
		fmt.Fprintf(&sb, "🕒 From: %s To: %s\n", res.TimeFrom, res.TimeTo)
		fmt.Fprintf(&sb, "👤 By: %s\n", owner)
		fmt.Fprintf(&sb, "👥 Participants: %s\n", res.Participants)
	}
	b.sendMessage(chatID, sb.String())
}

func (b *Bot) handleListPlaces(ctx context.Context, chatID int64) {
	places, err := b.svc.Places(ctx)
	if err != nil {
		log.Printf("list places: %v", err)
		b.sendMessage(chatID, msgInternalError)
		return
	}
	if len(places) == 0 {
		b.sendMessage(chatID, "❌ No places found.")
		return
	}
	b.sendMessage(chatID, "Available places:\n"+strings.Join(places, "\n"))
}

func (b *Bot) handleClearDatabase(chatID, userID int64) {
	flow := session.NewConfirm(userID, func(ctx context.Context) error {
		return b.svc.ClearAllReservations(ctx)
	})
	b.sessions.Put(userID, flow)
	b.sendMessage(chatID, flow.Prompt())
}

func (b *Bot) handleCancel(chatID, userID int64) {
	if active, ok := b.sessions.Get(userID); ok {
		if r, isReserve := active.(*session.Reserve); isReserve {
			r.Cancel()
		}
		b.sessions.Delete(userID)
		b.sendMessage(chatID, "✅ Cancelled.")
		return
	}
	b.sendMessage(chatID, "Nothing to cancel.")
}
