// AngelaMos | 2026
// bot.go

// Package bot is the Telegram front end. It maps chat messages and button
// callbacks onto the intake flow, the note lifecycle and the identity
// registry, and renders their results as Russian chat text.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/carterperez-dev/notesbot/internal/identity"
	"github.com/carterperez-dev/notesbot/internal/intake"
	"github.com/carterperez-dev/notesbot/internal/lifecycle"
	"github.com/carterperez-dev/notesbot/internal/note"
)

// Messenger is the part of *tgbotapi.BotAPI the bot talks through.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Identities interface {
	GetOrCreate(ctx context.Context, handle int64, label string) (*identity.Identity, error)
	FindByHandle(ctx context.Context, handle int64) (*identity.Identity, error)
	ChangeRole(
		ctx context.Context,
		actor *identity.Identity,
		targetHandle int64,
		role identity.Role,
	) (*identity.RoleChange, error)
	CountByRole(ctx context.Context) (identity.RoleCounts, error)
	ListReaders(ctx context.Context) ([]identity.Identity, []identity.Identity, error)
}

type Lifecycle interface {
	Submit(
		ctx context.Context,
		owner *identity.Identity,
		in lifecycle.Submission,
	) (*lifecycle.SubmitResult, error)
	QueueStats(ctx context.Context, actor *identity.Identity) (note.QueueStats, error)
	NextInQueue(ctx context.Context, reader *identity.Identity, c note.Category) (*note.Note, error)
	ConfirmRead(ctx context.Context, reader *identity.Identity, noteID int64) (*note.Note, error)
}

type Settings struct {
	Limits             intake.Limits
	PaymentDescription string
}

type Deps struct {
	Messenger  Messenger
	Identities Identities
	Lifecycle  Lifecycle
	Flows      intake.Store
	Logger     *slog.Logger
}

type Bot struct {
	msg        Messenger
	identities Identities
	lifecycle  Lifecycle
	flows      intake.Store
	settings   Settings
	logger     *slog.Logger
}

func New(deps Deps, settings Settings) *Bot {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Bot{
		msg:        deps.Messenger,
		identities: deps.Identities,
		lifecycle:  deps.Lifecycle,
		flows:      deps.Flows,
		settings:   settings,
		logger:     deps.Logger,
	}
}

// session is one inbound event with the sender already resolved.
type session struct {
	who    *identity.Identity
	chatID int64
	flow   *intake.Flow
}

// HandleUpdate processes a single update. Failures are logged and turned
// into a generic apology; nothing escapes to the transport loop.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panicked",
				"update_id", upd.UpdateID,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	switch {
	case upd.Message != nil && upd.Message.From != nil:
		b.onMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		b.onCallback(ctx, upd.CallbackQuery)
	}
}

func (b *Bot) open(ctx context.Context, from *tgbotapi.User, chatID int64) (*session, error) {
	who, err := b.identities.GetOrCreate(ctx, from.ID, from.UserName)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	flow, err := b.flows.Load(ctx, from.ID)
	if err != nil {
		return nil, err
	}

	return &session{who: who, chatID: chatID, flow: flow}, nil
}

func (b *Bot) saveFlow(ctx context.Context, s *session) error {
	return b.flows.Save(ctx, s.who.Handle, s.flow)
}

func (b *Bot) onMessage(ctx context.Context, m *tgbotapi.Message) {
	s, err := b.open(ctx, m.From, m.Chat.ID)
	if err != nil {
		b.fail(m.Chat.ID, "open session", err)
		return
	}

	if err := b.route(ctx, s, m); err != nil {
		b.fail(s.chatID, "handle message", err)
	}
}

func (b *Bot) route(ctx context.Context, s *session, m *tgbotapi.Message) error {
	if m.IsCommand() {
		switch m.Command() {
		case "start":
			return b.start(ctx, s)
		case "help":
			return b.reply(s.chatID, helpText(b.settings), nil, true)
		}
	}

	text := strings.TrimSpace(m.Text)

	switch text {
	case btnCancel:
		return b.cancel(ctx, s)
	case btnHelp:
		return b.reply(s.chatID, helpText(b.settings), nil, true)
	case btnCreateNote:
		return b.beginNote(ctx, s)
	case btnQueueStats:
		return b.queueStats(ctx, s)
	case btnReadNote:
		return b.chooseReadType(ctx, s)
	case btnSystemStats:
		return b.systemStats(ctx, s)
	case btnManageRoles:
		return b.beginRoleChange(ctx, s)
	case btnActivity:
		return b.activity(ctx, s)
	case btnSettings:
		return b.showSettings(s)
	}

	switch s.flow.Step {
	case intake.StepHealthNames, intake.StepReposeNames:
		return b.collectNames(ctx, s, text)
	case intake.StepAmount:
		return b.collectAmount(ctx, s, text)
	case intake.StepConfirming:
		return b.confirmNote(ctx, s, text)
	case intake.StepAwaitingHandle:
		return b.collectTarget(ctx, s, text)
	case intake.StepAwaitingRole:
		return b.collectRole(ctx, s, text)
	case intake.StepChoosingType:
		return b.reply(s.chatID, msgChooseType, noteTypeKeyboard(), false)
	default:
		return b.reply(s.chatID, msgUseMenu, menuFor(s.who), false)
	}
}

func (b *Bot) onCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	chatID := q.From.ID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}

	s, err := b.open(ctx, q.From, chatID)
	if err != nil {
		b.answer(q.ID, msgInternal, true)
		b.fail(0, "open session", err)
		return
	}

	action, arg, _ := strings.Cut(q.Data, ":")

	switch action {
	case actionNoteType:
		err = b.chooseCategory(ctx, s, q, arg)
	case actionCancel:
		err = b.cancelInline(ctx, s, q)
	case actionReadNote:
		err = b.showNext(ctx, s, q, arg)
	case actionConfirmRead:
		err = b.confirmRead(ctx, s, q, arg)
	case actionBackToMenu:
		err = b.backToMenu(s, q)
	default:
		b.answer(q.ID, "", false)
	}

	if err != nil {
		b.answer(q.ID, msgInternal, true)
		b.fail(0, "handle callback", err)
	}
}

func (b *Bot) start(ctx context.Context, s *session) error {
	s.flow.Reset()
	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}
	return b.reply(s.chatID, welcomeFor(s.who), menuFor(s.who), false)
}

func (b *Bot) cancel(ctx context.Context, s *session) error {
	s.flow.Reset()
	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}
	return b.reply(s.chatID, msgCanceled, menuFor(s.who), false)
}

func (b *Bot) cancelInline(ctx context.Context, s *session, q *tgbotapi.CallbackQuery) error {
	s.flow.Reset()
	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}
	b.edit(q, msgCanceled, nil, false)
	b.answer(q.ID, "", false)
	return b.reply(s.chatID, msgChooseAction, menuFor(s.who), false)
}

func (b *Bot) backToMenu(s *session, q *tgbotapi.CallbackQuery) error {
	b.edit(q, msgMainMenu, nil, false)
	b.answer(q.ID, "", false)
	return b.reply(s.chatID, msgChooseAction, menuFor(s.who), false)
}

// reply sends text to chatID. markup may be nil.
func (b *Bot) reply(chatID int64, text string, markup any, asHTML bool) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if asHTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	if _, err := b.msg.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// edit replaces the text of the message a callback came from. Edit
// failures, such as an unchanged text, are only logged.
func (b *Bot) edit(q *tgbotapi.CallbackQuery, text string, markup *tgbotapi.InlineKeyboardMarkup, asHTML bool) {
	if q.Message == nil || q.Message.Chat == nil {
		return
	}

	cfg := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, text)
	cfg.ReplyMarkup = markup
	if asHTML {
		cfg.ParseMode = tgbotapi.ModeHTML
	}

	if _, err := b.msg.Send(cfg); err != nil {
		b.logger.Warn("edit message failed", "error", err)
	}
}

func (b *Bot) answer(callbackID, text string, alert bool) {
	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = alert

	if _, err := b.msg.Request(cfg); err != nil {
		b.logger.Warn("answer callback failed", "error", err)
	}
}

// fail logs err and, when chatID is known, apologises to the user.
func (b *Bot) fail(chatID int64, op string, err error) {
	b.logger.Error("bot operation failed",
		"operation", op,
		"error", err,
	)

	if chatID == 0 {
		return
	}
	if sendErr := b.reply(chatID, msgInternal, nil, false); sendErr != nil {
		b.logger.Warn("apology not delivered", "error", sendErr)
	}
}

func validationMessage(err error) (string, bool) {
	var verr *intake.ValidationError
	if errors.As(err, &verr) {
		return verr.Message, true
	}
	return "", false
}
