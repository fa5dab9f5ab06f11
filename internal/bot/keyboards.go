package bot

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/erazemk/popis/internal/auth"
)

// Reply keyboard labels.
const (
	btnShop        = "🛒 Trgovina"
	btnKitchen     = "🍳 Kuhinja"
	btnBar         = "🍸 Bar"
	btnFreezer     = "❄ Zamrzovalnik"
	btnInventories = "📊 Popisi"
	btnAdminPanel  = "🛠 Skrbniška plošča"
)

// Callback data prefixes and values.
const (
	cbExport      = "exp:"
	cbExportHash  = "exh:"
	cbAdminDelete = "adm:del"
	cbAdminDate   = "adm:date"
	cbAdminCancel = "adm:cancel"
)

// Telegram rejects callback data longer than this many bytes.
const maxCallbackData = 64

// maxListed caps the number of snapshot buttons in one message.
const maxListed = 50

// exportMarker prefixes snapshot labels; "📁 <name>" sent as text also exports.
const exportMarker = "📁"

// The library version in use predates WebApp buttons, so the reply keyboard
// is declared here and serialized as-is into reply_markup.
type webAppInfo struct {
	URL string `json:"url"`
}

type keyboardButton struct {
	Text   string      `json:"text"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

type replyKeyboard struct {
	Keyboard       [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard"`
}

type section struct {
	label string
	key   string
}

var sections = [][]section{
	{{btnShop, "shop"}, {btnKitchen, "kitchen"}},
	{{btnBar, "bar"}, {btnFreezer, "freezer"}},
}

func (b *Bot) mainMenu(userID int64, isAdmin bool) replyKeyboard {
	kb := replyKeyboard{ResizeKeyboard: true}
	for _, row := range sections {
		buttons := make([]keyboardButton, 0, len(row))
		for _, s := range row {
			buttons = append(buttons, keyboardButton{
				Text:   s.label,
				WebApp: &webAppInfo{URL: b.webAppURL(s.key, userID)},
			})
		}
		kb.Keyboard = append(kb.Keyboard, buttons)
	}

	kb.Keyboard = append(kb.Keyboard, []keyboardButton{{Text: btnInventories}})
	if isAdmin {
		kb.Keyboard = append(kb.Keyboard, []keyboardButton{{Text: btnAdminPanel}})
	}
	return kb
}

// webAppURL points the form at a section and binds it to the user with a token.
func (b *Bot) webAppURL(sectionKey string, userID int64) string {
	q := url.Values{}
	q.Set("section", sectionKey)
	q.Set("uid", strconv.FormatInt(userID, 10))

	if b.tokenSecret != "" {
		token, err := auth.GenerateToken(b.tokenSecret, userID)
		if err != nil {
			slog.Error("generating webapp token", "user_id", userID, "error", err)
		} else {
			q.Set("token", token)
		}
	}

	return strings.TrimRight(b.baseURL, "/") + "/?" + q.Encode()
}

func adminPanelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Izbriši popis", cbAdminDelete),
			tgbotapi.NewInlineKeyboardButtonData("📅 Filtriraj po datumu", cbAdminDate),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖ Prekliči", cbAdminCancel),
		),
	)
}

func cancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖ Prekliči", cbAdminCancel),
		),
	)
}

func snapshotKeyboard(names []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(names))
	for _, name := range names {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(exportMarker+" "+name, exportCallback(name)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// exportCallback encodes name into callback data. Names too long for the
// callback limit are sent as a short hash and resolved against the listing.
func exportCallback(name string) string {
	if len(cbExport)+len(name) <= maxCallbackData {
		return cbExport + name
	}
	return cbExportHash + nameHash(name)
}

func nameHash(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:12])
}
