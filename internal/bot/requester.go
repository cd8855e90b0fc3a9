// AngelaMos | 2026
// requester.go

package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/carterperez-dev/notesbot/internal/intake"
	"github.com/carterperez-dev/notesbot/internal/note"
	"github.com/carterperez-dev/notesbot/internal/payment"
)

func (b *Bot) beginNote(ctx context.Context, s *session) error {
	s.flow.Begin()
	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}
	return b.reply(s.chatID, msgChooseType, noteTypeKeyboard(), false)
}

func (b *Bot) chooseCategory(ctx context.Context, s *session, q *tgbotapi.CallbackQuery, arg string) error {
	c, err := note.ParseCategory(arg)
	if err != nil {
		b.answer(q.ID, "", false)
		return nil
	}

	if err := s.flow.ChooseCategory(c); err != nil {
		if errors.Is(err, intake.ErrUnexpectedStep) {
			b.answer(q.ID, "", false)
			return nil
		}
		return err
	}

	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}

	b.edit(q, msgHealthPrompt, nil, true)
	b.answer(q.ID, "", false)
	return nil
}

func (b *Bot) collectNames(ctx context.Context, s *session, text string) error {
	if intake.IsAdvance(text) {
		return b.advanceNames(ctx, s)
	}

	count, err := s.flow.AddNames(text, b.settings.Limits)
	if msg, ok := validationMessage(err); ok {
		return b.reply(s.chatID, "❌ "+msg, nil, false)
	}
	if err != nil {
		return err
	}

	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}

	return b.reply(s.chatID, fmt.Sprintf(msgNamesAdded, count), nil, false)
}

func (b *Bot) advanceNames(ctx context.Context, s *session) error {
	err := s.flow.Advance()
	if msg, ok := validationMessage(err); ok {
		return b.reply(s.chatID, "❌ "+msg, nil, false)
	}
	if err != nil {
		return err
	}

	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}

	if s.flow.Step == intake.StepReposeNames {
		return b.reply(s.chatID, msgReposePrompt, nil, true)
	}

	return b.reply(s.chatID,
		fmt.Sprintf(msgAmountPrompt, b.settings.Limits.MinAmount),
		cancelKeyboard(), false)
}

func (b *Bot) collectAmount(ctx context.Context, s *session, text string) error {
	err := s.flow.SetAmount(text, b.settings.Limits)
	if msg, ok := validationMessage(err); ok {
		return b.reply(s.chatID, "❌ "+msg, nil, false)
	}
	if err != nil {
		return err
	}

	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}

	summary := noteSummary(s.flow.Category, s.flow.HealthNames, s.flow.ReposeNames, s.flow.Amount)
	return b.reply(s.chatID, summary+"\n\n"+msgConfirmPrompt, cancelKeyboard(), true)
}

// confirmNote submits the collected note and hands the payment link over.
// The flow is cleared whatever the outcome so a retry starts fresh.
func (b *Bot) confirmNote(ctx context.Context, s *session, text string) error {
	if !intake.IsConfirm(text) {
		return b.reply(s.chatID, msgConfirmHint, nil, false)
	}

	sub, err := s.flow.Submission()
	if err != nil {
		return err
	}

	s.flow.Reset()
	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}

	menu := menuFor(s.who)

	res, err := b.lifecycle.Submit(ctx, s.who, sub)
	if err != nil {
		var gwErr *payment.GatewayError
		if res != nil && res.Note != nil {
			b.logger.Warn("payment creation failed",
				"note_id", res.Note.ID,
				"error", err,
			)
			reason := "платёжный сервис недоступен"
			if errors.As(err, &gwErr) && gwErr.Description != "" {
				reason = gwErr.Description
			}
			return b.reply(s.chatID, fmt.Sprintf(msgPaymentFailed, reason), menu, false)
		}
		return err
	}

	if res.Intent == nil || res.Intent.RedirectURL == "" {
		return b.reply(s.chatID, msgNoPaymentLink, menu, false)
	}

	return b.reply(s.chatID, fmt.Sprintf(msgNoteCreated, res.Intent.RedirectURL), menu, false)
}
