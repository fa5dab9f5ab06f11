package bot

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/auth"
	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/dialog"
	"github.com/erazemk/popis/internal/inventory"
)

const (
	adminID = int64(900)
	userID  = int64(1)
	secret  = "webapp-secret"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) documents() []tgbotapi.DocumentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.DocumentConfig
	for _, c := range f.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeSender) lastText(t *testing.T) string {
	t.Helper()
	msgs := f.messages()
	if len(msgs) == 0 {
		t.Fatal("no messages sent")
	}
	return msgs[len(msgs)-1].Text
}

type fixture struct {
	bot    *Bot
	api    *fakeSender
	svc    *inventory.Service
	states *dialog.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	current := start
	svc := inventory.NewService(db.NewTestDB(t), inventory.NewAdmins(adminID),
		inventory.WithClock(func() time.Time {
			ts := current
			current = current.Add(time.Minute)
			return ts
		}),
	)
	api := &fakeSender{}
	states := dialog.NewMemoryStore(dialog.DefaultTTL)
	return &fixture{
		bot:    New(api, svc, states, "https://popis.example.com/", secret),
		api:    api,
		svc:    svc,
		states: states,
	}
}

func (f *fixture) seed(t *testing.T, owner int64, name string) {
	t.Helper()
	q := decimal.RequireFromString("3.5")
	_, err := f.svc.Submit(context.Background(), inventory.Submission{
		OwnerID:      owner,
		SnapshotName: name,
		Items:        []inventory.Item{{Article: "A1", Group: "Dairy", Quantity: &q}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func (f *fixture) state(t *testing.T, chatID int64) dialog.State {
	t.Helper()
	s, _ := f.states.Get(context.Background(), chatID)
	return s
}

func command(from int64, cmd string) tgbotapi.Update {
	text := "/" + cmd
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: from},
		From:     &tgbotapi.User{ID: from},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func text(from int64, s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: from},
		From: &tgbotapi.User{ID: from},
		Text: s,
	}}
}

func callback(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: from}},
		Data:    data,
	}}
}

func TestStartMenu(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, command(userID, "start"))
	msgs := f.api.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	kb, ok := msgs[0].ReplyMarkup.(replyKeyboard)
	if !ok {
		t.Fatalf("expected reply keyboard, got %T", msgs[0].ReplyMarkup)
	}
	if len(kb.Keyboard) != 3 {
		t.Fatalf("expected 3 rows for a regular user, got %d", len(kb.Keyboard))
	}

	shop := kb.Keyboard[0][0]
	if shop.Text != btnShop || shop.WebApp == nil {
		t.Fatalf("expected shop webapp button, got %+v", shop)
	}
	u, err := url.Parse(shop.WebApp.URL)
	if err != nil {
		t.Fatalf("parsing webapp url: %v", err)
	}
	if u.Host != "popis.example.com" || u.Path != "/" {
		t.Errorf("unexpected webapp url %q", shop.WebApp.URL)
	}
	if u.Query().Get("section") != "shop" || u.Query().Get("uid") != strconv.FormatInt(userID, 10) {
		t.Errorf("unexpected query %q", u.RawQuery)
	}
	claims, err := auth.ValidateToken(secret, u.Query().Get("token"))
	if err != nil {
		t.Errorf("expected valid token: %v", err)
	} else if claims.UserID != userID {
		t.Errorf("expected token for user %d, got %d", userID, claims.UserID)
	}

	f.bot.HandleUpdate(ctx, command(adminID, "start"))
	msgs = f.api.messages()
	kb = msgs[len(msgs)-1].ReplyMarkup.(replyKeyboard)
	if len(kb.Keyboard) != 4 || kb.Keyboard[3][0].Text != btnAdminPanel {
		t.Errorf("expected admin panel row for admin, got %+v", kb.Keyboard)
	}
}

func TestListAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, userID, "jan")
	f.seed(t, userID, "feb")
	f.seed(t, 2, "other")

	f.bot.HandleUpdate(ctx, text(userID, btnInventories))
	msgs := f.api.messages()
	kb, ok := msgs[len(msgs)-1].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline keyboard, got %T", msgs[len(msgs)-1].ReplyMarkup)
	}
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("expected 2 snapshots for user, got %d", len(kb.InlineKeyboard))
	}
	first := kb.InlineKeyboard[0][0]
	if first.CallbackData == nil || *first.CallbackData != "exp:feb" {
		t.Errorf("expected newest snapshot first, got %+v", first)
	}

	f.bot.HandleUpdate(ctx, callback(userID, *first.CallbackData))
	docs := f.api.documents()
	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
	file, ok := docs[0].File.(tgbotapi.FileBytes)
	if !ok || file.Name != "feb.xlsx" || len(file.Bytes) == 0 {
		t.Errorf("unexpected document %+v", docs[0].File)
	}

	// Another user's snapshot is not visible.
	f.bot.HandleUpdate(ctx, callback(userID, "exp:other"))
	if got := f.api.lastText(t); got != msgNotFound {
		t.Errorf("expected not found, got %q", got)
	}
}

func TestExportByText(t *testing.T) {
	f := newFixture(t)
	f.seed(t, userID, "jan")

	f.bot.HandleUpdate(context.Background(), text(userID, "📁 jan"))
	if docs := f.api.documents(); len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
}

func TestListEmpty(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleUpdate(context.Background(), text(userID, btnInventories))
	if got := f.api.lastText(t); got != msgNoSnapshots {
		t.Errorf("expected %q, got %q", msgNoSnapshots, got)
	}
}

func TestLongNameUsesHashedCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := "Popis " + strings.Repeat("zelo dolgo ime ", 6)
	f.seed(t, userID, long)

	data := exportCallback(long)
	if len(data) > maxCallbackData || !strings.HasPrefix(data, cbExportHash) {
		t.Fatalf("expected short hashed callback, got %q", data)
	}

	f.bot.HandleUpdate(ctx, callback(userID, data))
	if docs := f.api.documents(); len(docs) != 1 {
		t.Fatalf("expected export via hashed callback, got %d documents", len(docs))
	}

	f.bot.HandleUpdate(ctx, callback(userID, cbExportHash+"deadbeef"))
	if got := f.api.lastText(t); got != msgNotFound {
		t.Errorf("expected not found for unknown hash, got %q", got)
	}
}

func TestAdminDeleteFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, userID, "jan")
	f.seed(t, 2, "jan")

	f.bot.HandleUpdate(ctx, text(adminID, btnAdminPanel))
	msgs := f.api.messages()
	if _, ok := msgs[len(msgs)-1].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Fatal("expected admin panel keyboard")
	}

	f.bot.HandleUpdate(ctx, callback(adminID, cbAdminDelete))
	if s := f.state(t, adminID); s != dialog.StateAwaitingDeleteName {
		t.Fatalf("expected awaiting_delete_name, got %s", s)
	}

	f.bot.HandleUpdate(ctx, text(adminID, "jan"))
	if got := f.api.lastText(t); !strings.Contains(got, "vrstic: 2") {
		t.Errorf("expected 2 deleted rows reported, got %q", got)
	}
	if s := f.state(t, adminID); s != dialog.StateIdle {
		t.Errorf("expected idle after delete, got %s", s)
	}

	// The next text is not treated as a delete request.
	f.bot.HandleUpdate(ctx, text(adminID, "jan"))
	if got := f.api.lastText(t); got != msgUseMenu {
		t.Errorf("expected menu hint, got %q", got)
	}
}

func TestAdminDeletePaddedName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, userID, "jan ")

	f.bot.HandleUpdate(ctx, callback(adminID, cbAdminDelete))
	f.bot.HandleUpdate(ctx, text(adminID, "jan "))
	if got := f.api.lastText(t); !strings.Contains(got, "vrstic: 1") {
		t.Errorf("expected 1 deleted row reported, got %q", got)
	}

	names, err := f.svc.ListSnapshotNames(ctx, adminID)
	if err != nil {
		t.Fatalf("ListSnapshotNames: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no snapshots left, got %q", names)
	}
}

func TestAdminDateFilterFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, userID, "march")

	f.bot.HandleUpdate(ctx, callback(adminID, cbAdminDate))
	f.bot.HandleUpdate(ctx, text(adminID, "1.3.2024"))
	if got := f.api.lastText(t); got != msgBadDate {
		t.Errorf("expected bad date message, got %q", got)
	}
	if s := f.state(t, adminID); s != dialog.StateIdle {
		t.Errorf("expected idle after one response, got %s", s)
	}

	f.bot.HandleUpdate(ctx, callback(adminID, cbAdminDate))
	f.bot.HandleUpdate(ctx, text(adminID, "2024-03-01"))
	msgs := f.api.messages()
	kb, ok := msgs[len(msgs)-1].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 || *kb.InlineKeyboard[0][0].CallbackData != "exp:march" {
		t.Errorf("expected march listed, got %+v", msgs[len(msgs)-1])
	}
}

func TestAdminCancelAndMenuReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, callback(adminID, cbAdminDelete))
	f.bot.HandleUpdate(ctx, callback(adminID, cbAdminCancel))
	if s := f.state(t, adminID); s != dialog.StateIdle {
		t.Errorf("expected idle after cancel, got %s", s)
	}

	f.bot.HandleUpdate(ctx, callback(adminID, cbAdminDate))
	f.bot.HandleUpdate(ctx, text(adminID, btnInventories))
	if s := f.state(t, adminID); s != dialog.StateIdle {
		t.Errorf("expected idle after menu button, got %s", s)
	}

	f.bot.HandleUpdate(ctx, callback(adminID, cbAdminDelete))
	f.bot.HandleUpdate(ctx, command(adminID, "cancel"))
	if s := f.state(t, adminID); s != dialog.StateIdle {
		t.Errorf("expected idle after /cancel, got %s", s)
	}
}

func TestNonAdminDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, userID, "jan")

	f.bot.HandleUpdate(ctx, callback(userID, cbAdminDelete))
	if s := f.state(t, userID); s != dialog.StateIdle {
		t.Errorf("non-admin must stay idle, got %s", s)
	}
	last := f.api.sent[len(f.api.sent)-1]
	if cb, ok := last.(tgbotapi.CallbackConfig); !ok || cb.Text != msgForbidden {
		t.Errorf("expected forbidden callback answer, got %+v", last)
	}

	f.bot.HandleUpdate(ctx, text(userID, "jan"))
	if got := f.api.lastText(t); got != msgUseMenu {
		t.Errorf("expected menu hint, got %q", got)
	}

	f.bot.HandleUpdate(ctx, text(userID, btnAdminPanel))
	if got := f.api.lastText(t); got != msgForbidden {
		t.Errorf("expected forbidden, got %q", got)
	}

	names, _ := f.svc.ListSnapshotNames(ctx, userID)
	if len(names) != 1 {
		t.Errorf("snapshot must survive, got %v", names)
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleUpdate(context.Background(), command(userID, "foo"))
	if got := f.api.lastText(t); got != msgUnknown {
		t.Errorf("expected %q, got %q", msgUnknown, got)
	}
}

func TestRunStopsOnClosedChannel(t *testing.T) {
	f := newFixture(t)
	updates := make(chan tgbotapi.Update, 1)
	updates <- command(userID, "start")
	close(updates)

	done := make(chan struct{})
	go func() {
		f.bot.Run(context.Background(), updates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after channel close")
	}
	if len(f.api.messages()) != 1 {
		t.Errorf("expected the queued update to be handled")
	}
}
