// Package bot implements the Telegram side: the section menu, snapshot
// listing and export, and the admin panel.
package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/erazemk/popis/internal/dialog"
	"github.com/erazemk/popis/internal/export"
	"github.com/erazemk/popis/internal/metrics"
)

// Sender is the part of *tgbotapi.BotAPI the bot needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Inventory is the part of *inventory.Service the bot needs.
type Inventory interface {
	IsAdmin(userID int64) bool
	ListSnapshotNames(ctx context.Context, userID int64) ([]string, error)
	Export(ctx context.Context, name string, userID int64) (*export.File, error)
	DeleteSnapshot(ctx context.Context, userID int64, name string) (int64, error)
	FilterByDate(ctx context.Context, userID int64, date string) ([]string, error)
}

// Bot dispatches Telegram updates.
type Bot struct {
	api         Sender
	inv         Inventory
	states      dialog.Store
	baseURL     string
	tokenSecret string
}

// New creates a Bot. baseURL is where the WebApp form is served and
// tokenSecret signs the per-user WebApp tokens; an empty secret omits them.
func New(api Sender, inv Inventory, states dialog.Store, baseURL, tokenSecret string) *Bot {
	return &Bot{
		api:         api,
		inv:         inv,
		states:      states,
		baseURL:     baseURL,
		tokenSecret: tokenSecret,
	}
}

// HandleUpdate processes one update. Errors are reported to the user and
// logged, never returned.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		metrics.BotUpdates.WithLabelValues("message").Inc()
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		metrics.BotUpdates.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, update.CallbackQuery)
	default:
		metrics.BotUpdates.WithLabelValues("other").Inc()
	}
}

// Run consumes updates until ctx is cancelled or the channel closes.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		slog.Error("sending telegram message", "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) answer(queryID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		slog.Error("answering callback query", "error", err)
	}
}

func (b *Bot) state(ctx context.Context, chatID int64) dialog.State {
	s, err := b.states.Get(ctx, chatID)
	if err != nil {
		slog.Error("reading dialog state", "chat_id", chatID, "error", err)
		return dialog.StateIdle
	}
	return s
}

func (b *Bot) setState(ctx context.Context, chatID int64, s dialog.State) {
	if err := b.states.Set(ctx, chatID, s); err != nil {
		slog.Error("writing dialog state", "chat_id", chatID, "state", s, "error", err)
	}
}

// advance applies ev to the chat state and returns the state before it.
func (b *Bot) advance(ctx context.Context, chatID int64, ev dialog.Event, isAdmin bool) dialog.State {
	current := b.state(ctx, chatID)
	next := dialog.Transition(current, ev, isAdmin)
	if next != current {
		b.setState(ctx, chatID, next)
	}
	return current
}
