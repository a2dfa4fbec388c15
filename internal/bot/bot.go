package bot

import (
	"context"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Montivagant/calenbot/internal/auth"
	"github.com/Montivagant/calenbot/internal/config"
	"github.com/Montivagant/calenbot/internal/schedule"
	"github.com/Montivagant/calenbot/internal/session"
	"github.com/Montivagant/calenbot/internal/storage"
)

const msgInternalError = "⚠️ Something went wrong. Please try again later."

// Sender is the slice of the Telegram API the handlers need. *tgbotapi.BotAPI
// satisfies it; tests swap in a recorder.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	cfg      *config.Config
	store    storage.Store
	svc      *schedule.Service
	gate     *auth.Gate
	sessions *session.Manager
	metrics  *Metrics
	now      func() time.Time
}

func New(cfg *config.Config, store storage.Store, svc *schedule.Service, gate *auth.Gate, sessions *session.Manager) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}
	api.Debug = cfg.Telegram.Debug

	return &Bot{
		api:      api,
		sender:   api,
		cfg:      cfg,
		store:    store,
		svc:      svc,
		gate:     gate,
		sessions: sessions,
		metrics:  NewMetrics(),
		now:      time.Now,
	}, nil
}

// Start runs the long-poll update loop until the context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	log.Printf("Authorized on account %s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if b.metrics != nil {
		b.metrics.MessagesProcessed.Inc()
	}

	userID := msg.From.ID
	if err := b.store.RememberUser(ctx, userID, displayName(msg.From)); err != nil {
		log.Printf("remember user %d: %v", userID, err)
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, msg)
		return
	}

	if active, ok := b.sessions.Get(userID); ok {
		b.advanceSession(ctx, msg.Chat.ID, userID, active, text)
	}
	// plain text without an active session is ignored; group chats are noisy
}

func (b *Bot) advanceSession(ctx context.Context, chatID, userID int64, active session.Session, input string) {
	reply, err := active.Advance(ctx, input)
	if err != nil {
		log.Printf("session for user %d failed: %v", userID, err)
		b.sessions.Delete(userID)
		b.sendMessage(chatID, msgInternalError)
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		return
	}

	if reply != "" {
		b.sendMessage(chatID, reply)
	}
	if active.Done() {
		b.sessions.Delete(userID)
		if r, ok := active.(*session.Reserve); ok && r.State() == session.StateCommitted {
			log.Printf("reservation committed (session %s, user %d)", r.ID, userID)
			if b.metrics != nil {
				b.metrics.ReservationsCommitted.Inc()
			}
		}
	}
	if b.metrics != nil {
		b.metrics.ActiveSessions.Set(float64(b.sessions.Active()))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
