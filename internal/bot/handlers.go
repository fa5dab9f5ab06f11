package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/erazemk/popis/internal/dialog"
	"github.com/erazemk/popis/internal/inventory"
)

const (
	msgChooseSection = "Izberi razdel:"
	msgGenericError  = "Prišlo je do napake, poskusi znova kasneje."
	msgNoSnapshots   = "Ni shranjenih popisov."
	msgNotFound      = "Popis ne obstaja."
	msgForbidden     = "Za to nimaš dovoljenja."
	msgCancelled     = "Prekinjeno."
	msgUnknown       = "Neznan ukaz. Uporabi /start."
	msgUseMenu       = "Izberi razdel v meniju ali uporabi /start."
	msgAskDelete     = "Vpiši ime popisa, ki ga želiš izbrisati:"
	msgAskDate       = "Vpiši datum v obliki YYYY-MM-DD:"
	msgBadDate       = "Napačen format datuma. Uporabi YYYY-MM-DD, npr. 2024-03-01."
	msgAdminPanel    = "Skrbniška plošča:"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	chatID, userID := msg.Chat.ID, msg.From.ID
	isAdmin := b.inv.IsAdmin(userID)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.advance(ctx, chatID, dialog.EventStart, isAdmin)
			m := tgbotapi.NewMessage(chatID, msgChooseSection)
			m.ReplyMarkup = b.mainMenu(userID, isAdmin)
			b.send(m)
		case "cancel":
			b.advance(ctx, chatID, dialog.EventCancel, isAdmin)
			b.reply(chatID, msgCancelled)
		default:
			b.reply(chatID, msgUnknown)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case text == btnInventories:
		b.advance(ctx, chatID, dialog.EventMenu, isAdmin)
		b.listSnapshots(ctx, chatID, userID)
		return
	case text == btnAdminPanel:
		b.advance(ctx, chatID, dialog.EventMenu, isAdmin)
		if !isAdmin {
			b.reply(chatID, msgForbidden)
			return
		}
		m := tgbotapi.NewMessage(chatID, msgAdminPanel)
		m.ReplyMarkup = adminPanelKeyboard()
		b.send(m)
		return
	case strings.HasPrefix(text, exportMarker):
		b.advance(ctx, chatID, dialog.EventMenu, isAdmin)
		name := strings.TrimSpace(strings.TrimPrefix(text, exportMarker))
		b.sendExport(ctx, chatID, userID, name)
		return
	}

	switch b.advance(ctx, chatID, dialog.EventText, isAdmin) {
	case dialog.StateAwaitingDeleteName:
		b.deleteSnapshot(ctx, chatID, userID, text)
	case dialog.StateAwaitingDateFilter:
		b.filterByDate(ctx, chatID, userID, text)
	default:
		b.reply(chatID, msgUseMenu)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil || q.Message == nil || q.Message.Chat == nil {
		b.answer(q.ID, "")
		return
	}
	chatID, userID := q.Message.Chat.ID, q.From.ID
	isAdmin := b.inv.IsAdmin(userID)

	switch data := q.Data; {
	case data == cbAdminDelete, data == cbAdminDate:
		if !isAdmin {
			b.answer(q.ID, msgForbidden)
			return
		}
		ev, prompt := dialog.EventRequestDelete, msgAskDelete
		if data == cbAdminDate {
			ev, prompt = dialog.EventRequestDateFilter, msgAskDate
		}
		b.advance(ctx, chatID, ev, isAdmin)
		b.answer(q.ID, "")
		m := tgbotapi.NewMessage(chatID, prompt)
		m.ReplyMarkup = cancelKeyboard()
		b.send(m)

	case data == cbAdminCancel:
		b.advance(ctx, chatID, dialog.EventCancel, isAdmin)
		b.answer(q.ID, msgCancelled)
		b.reply(chatID, msgCancelled)

	case strings.HasPrefix(data, cbExport):
		b.answer(q.ID, "")
		b.sendExport(ctx, chatID, userID, strings.TrimPrefix(data, cbExport))

	case strings.HasPrefix(data, cbExportHash):
		b.answer(q.ID, "")
		name, ok := b.resolveHash(ctx, userID, strings.TrimPrefix(data, cbExportHash))
		if !ok {
			b.reply(chatID, msgNotFound)
			return
		}
		b.sendExport(ctx, chatID, userID, name)

	default:
		b.answer(q.ID, "")
	}
}

func (b *Bot) listSnapshots(ctx context.Context, chatID, userID int64) {
	names, err := b.inv.ListSnapshotNames(ctx, userID)
	if err != nil {
		slog.Error("listing snapshots", "user_id", userID, "error", err)
		b.reply(chatID, msgGenericError)
		return
	}
	if len(names) == 0 {
		b.reply(chatID, msgNoSnapshots)
		return
	}

	text := "Shranjeni popisi:"
	if len(names) > maxListed {
		text = fmt.Sprintf("Shranjeni popisi (prikazanih zadnjih %d od %d):", maxListed, len(names))
		names = names[:maxListed]
	}

	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyMarkup = snapshotKeyboard(names)
	b.send(m)
}

func (b *Bot) resolveHash(ctx context.Context, userID int64, hash string) (string, bool) {
	names, err := b.inv.ListSnapshotNames(ctx, userID)
	if err != nil {
		slog.Error("resolving snapshot hash", "user_id", userID, "error", err)
		return "", false
	}
	for _, name := range names {
		if nameHash(name) == hash {
			return name, true
		}
	}
	return "", false
}

func (b *Bot) sendExport(ctx context.Context, chatID, userID int64, name string) {
	file, err := b.inv.Export(ctx, name, userID)
	if errors.Is(err, inventory.ErrNotFound) {
		b.reply(chatID, msgNotFound)
		return
	}
	if err != nil {
		slog.Error("exporting snapshot", "snapshot", name, "user_id", userID, "error", err)
		b.reply(chatID, msgGenericError)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: file.Name, Bytes: file.Data})
	doc.Caption = exportMarker + " " + name
	b.send(doc)
}

func (b *Bot) deleteSnapshot(ctx context.Context, chatID, userID int64, name string) {
	n, err := b.inv.DeleteSnapshot(ctx, userID, name)
	switch {
	case errors.Is(err, inventory.ErrForbidden):
		b.reply(chatID, msgForbidden)
	case err != nil:
		slog.Error("deleting snapshot", "snapshot", name, "user_id", userID, "error", err)
		b.reply(chatID, msgGenericError)
	case n == 0:
		b.reply(chatID, fmt.Sprintf("Popis »%s« ne obstaja, nič ni bilo izbrisano.", name))
	default:
		b.reply(chatID, fmt.Sprintf("Popis »%s« izbrisan (vrstic: %d).", name, n))
	}
}

func (b *Bot) filterByDate(ctx context.Context, chatID, userID int64, date string) {
	names, err := b.inv.FilterByDate(ctx, userID, date)
	switch {
	case errors.Is(err, inventory.ErrValidation):
		b.reply(chatID, msgBadDate)
		return
	case errors.Is(err, inventory.ErrForbidden):
		b.reply(chatID, msgForbidden)
		return
	case err != nil:
		slog.Error("filtering snapshots by date", "date", date, "user_id", userID, "error", err)
		b.reply(chatID, msgGenericError)
		return
	}

	if len(names) == 0 {
		b.reply(chatID, fmt.Sprintf("Za %s ni popisov.", date))
		return
	}
	if len(names) > maxListed {
		names = names[:maxListed]
	}
	m := tgbotapi.NewMessage(chatID, fmt.Sprintf("Popisi za %s:", date))
	m.ReplyMarkup = snapshotKeyboard(names)
	b.send(m)
}
