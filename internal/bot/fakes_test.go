// AngelaMos | 2026
// fakes_test.go

package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/identity"
	"github.com/carterperez-dev/notesbot/internal/intake"
	"github.com/carterperez-dev/notesbot/internal/lifecycle"
	"github.com/carterperez-dev/notesbot/internal/note"
)

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	sendErr error
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) messages() []tgbotapi.MessageConfig {
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

func (f *fakeMessenger) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()

	msgs := f.messages()
	if len(msgs) == 0 {
		t.Fatal("no message sent")
	}
	return msgs[len(msgs)-1]
}

func (f *fakeMessenger) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeMessenger) callbacks() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.CallbackConfig
	for _, c := range f.sent {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb)
		}
	}
	return out
}

type fakeIdentities struct {
	mu      sync.Mutex
	byID    map[int64]*identity.Identity
	nextID  int64
	changes []identity.RoleChange
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{byID: map[int64]*identity.Identity{}}
}

func (f *fakeIdentities) add(handle int64, role identity.Role) *identity.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := &identity.Identity{ID: f.nextID, Handle: handle, Role: role}
	f.byID[handle] = id
	return id
}

func (f *fakeIdentities) GetOrCreate(_ context.Context, handle int64, label string) (*identity.Identity, error) {
	f.mu.Lock()
	if id, ok := f.byID[handle]; ok {
		f.mu.Unlock()
		cp := *id
		return &cp, nil
	}
	f.mu.Unlock()

	id := f.add(handle, identity.RoleRequester)
	if label != "" {
		id.Label = &label
	}
	cp := *id
	return &cp, nil
}

func (f *fakeIdentities) FindByHandle(_ context.Context, handle int64) (*identity.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.byID[handle]
	if !ok {
		return nil, fmt.Errorf("identity %d: %w", handle, core.ErrNotFound)
	}
	cp := *id
	return &cp, nil
}

func (f *fakeIdentities) ChangeRole(
	_ context.Context,
	actor *identity.Identity,
	targetHandle int64,
	role identity.Role,
) (*identity.RoleChange, error) {
	if !actor.IsAdmin() {
		return nil, core.ErrForbidden
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.byID[targetHandle]
	if !ok {
		return nil, core.ErrNotFound
	}
	change := identity.RoleChange{IdentityID: id.ID, Handle: id.Handle, OldRole: id.Role, NewRole: role}
	id.Role = role
	f.changes = append(f.changes, change)
	return &change, nil
}

func (f *fakeIdentities) CountByRole(_ context.Context) (identity.RoleCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := identity.RoleCounts{}
	for _, id := range f.byID {
		counts[id.Role]++
	}
	return counts, nil
}

func (f *fakeIdentities) ListReaders(_ context.Context) ([]identity.Identity, []identity.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var priests, servers []identity.Identity
	for _, id := range f.byID {
		switch id.Role {
		case identity.RolePriest:
			priests = append(priests, *id)
		case identity.RoleAltarServer:
			servers = append(servers, *id)
		}
	}
	return priests, servers, nil
}

type fakeLifecycle struct {
	mu         sync.Mutex
	submitted  []lifecycle.Submission
	submitRes  *lifecycle.SubmitResult
	submitErr  error
	stats      note.QueueStats
	next       *note.Note
	confirmErr error
	confirmed  []int64
	calls      int
}

func (f *fakeLifecycle) Submit(
	_ context.Context,
	_ *identity.Identity,
	in lifecycle.Submission,
) (*lifecycle.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.submitted = append(f.submitted, in)
	return f.submitRes, f.submitErr
}

func (f *fakeLifecycle) QueueStats(_ context.Context, _ *identity.Identity) (note.QueueStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	return f.stats, nil
}

func (f *fakeLifecycle) NextInQueue(_ context.Context, _ *identity.Identity, c note.Category) (*note.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.next == nil || f.next.Category != c {
		return nil, fmt.Errorf("dequeue oldest: %w", core.ErrNotFound)
	}
	return f.next, nil
}

func (f *fakeLifecycle) ConfirmRead(_ context.Context, _ *identity.Identity, noteID int64) (*note.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	f.confirmed = append(f.confirmed, noteID)
	return &note.Note{ID: noteID, Status: note.StatusRetired}, nil
}

func (f *fakeLifecycle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testBot struct {
	bot        *Bot
	msg        *fakeMessenger
	identities *fakeIdentities
	lifecycle  *fakeLifecycle
	flows      *intake.RedisStore
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tb := &testBot{
		msg:        &fakeMessenger{},
		identities: newFakeIdentities(),
		lifecycle:  &fakeLifecycle{},
		flows:      intake.NewRedisStore(client, 30*time.Minute),
	}

	tb.bot = New(Deps{
		Messenger:  tb.msg,
		Identities: tb.identities,
		Lifecycle:  tb.lifecycle,
		Flows:      tb.flows,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Settings{
		Limits:             intake.Limits{MaxNames: 10, MinAmount: 100, MaxAmount: 1000000},
		PaymentDescription: "Пожертвование",
	})

	return tb
}

func (tb *testBot) text(from int64, text string) {
	tb.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: from, UserName: "user"},
			Chat:      &tgbotapi.Chat{ID: from},
			Text:      text,
		},
	})
}

func (tb *testBot) command(from int64, cmd string) {
	text := "/" + cmd
	tb.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: from, UserName: "user"},
			Chat:      &tgbotapi.Chat{ID: from},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		},
	})
}

func (tb *testBot) press(from int64, data string) {
	tb.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-" + data,
			From: &tgbotapi.User{ID: from},
			Message: &tgbotapi.Message{
				MessageID: 77,
				Chat:      &tgbotapi.Chat{ID: from},
			},
			Data: data,
		},
	})
}

func (tb *testBot) step(t *testing.T, handle int64) intake.Step {
	t.Helper()

	f, err := tb.flows.Load(context.Background(), handle)
	if err != nil {
		t.Fatal(err)
	}
	return f.Step
}
