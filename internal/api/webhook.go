package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SecretTokenHeader carries the secret registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// WebhookHandler receives Telegram updates in webhook mode.
type WebhookHandler struct {
	Bot    UpdateHandler
	Secret string
}

// ServeHTTP handles POST /webhook. Telegram retries on non-2xx, so handler
// failures are logged and still acknowledged.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Secret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			jsonError(w, http.StatusUnauthorized, "invalid secret token")
			return
		}
	}

	var update tgbotapi.Update
	if err := decodeJSON(r, &update); err != nil {
		slog.Warn("decoding telegram update", "error", err)
		jsonError(w, http.StatusBadRequest, "invalid update")
		return
	}

	h.Bot.HandleUpdate(r.Context(), update)
	jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}
