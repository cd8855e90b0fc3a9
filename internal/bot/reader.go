// AngelaMos | 2026
// reader.go

package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/lifecycle"
	"github.com/carterperez-dev/notesbot/internal/note"
)

func (b *Bot) queueStats(ctx context.Context, s *session) error {
	if !s.who.IsReader() {
		return b.reply(s.chatID, msgNoAccess, nil, false)
	}

	stats, err := b.lifecycle.QueueStats(ctx, s.who)
	if err != nil {
		return err
	}

	return b.reply(s.chatID, queueStatsText(stats), nil, true)
}

func (b *Bot) chooseReadType(ctx context.Context, s *session) error {
	if !s.who.IsReader() {
		return b.reply(s.chatID, msgNoAccess, nil, false)
	}

	stats, err := b.lifecycle.QueueStats(ctx, s.who)
	if err != nil {
		return err
	}
	if stats.Total == 0 {
		return b.reply(s.chatID, msgQueueEmpty, nil, false)
	}

	return b.reply(s.chatID, msgChooseReadType, readTypeKeyboard(), false)
}

// showNext displays the oldest queued note of a category. Several readers
// may be shown the same note; confirmRead settles who read it.
func (b *Bot) showNext(ctx context.Context, s *session, q *tgbotapi.CallbackQuery, arg string) error {
	if !s.who.IsReader() {
		b.answer(q.ID, msgDenied, true)
		return nil
	}

	c, err := note.ParseCategory(arg)
	if err != nil {
		b.answer(q.ID, "", false)
		return nil
	}

	n, err := b.lifecycle.NextInQueue(ctx, s.who, c)
	if errors.Is(err, core.ErrNotFound) {
		b.edit(q, fmt.Sprintf(msgNoQueuedOfType, categoryTitle(c)), nil, false)
		b.answer(q.ID, "", false)
		return nil
	}
	if err != nil {
		return err
	}

	kb := noteActionsKeyboard(n.ID)
	b.edit(q, prayerText(n), &kb, true)
	b.answer(q.ID, "", false)
	return nil
}

func (b *Bot) confirmRead(ctx context.Context, s *session, q *tgbotapi.CallbackQuery, arg string) error {
	if !s.who.IsReader() {
		b.answer(q.ID, msgDenied, true)
		return nil
	}

	noteID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.answer(q.ID, msgNoteNotFound, true)
		return nil
	}

	_, err = b.lifecycle.ConfirmRead(ctx, s.who, noteID)
	switch {
	case errors.Is(err, lifecycle.ErrAlreadyTaken):
		b.edit(q, msgAlreadyTaken, nil, false)
		b.answer(q.ID, msgAlreadyTaken, true)
		return nil
	case errors.Is(err, core.ErrNotFound):
		b.answer(q.ID, msgNoteNotFound, true)
		return nil
	case errors.Is(err, core.ErrForbidden):
		b.answer(q.ID, msgDenied, true)
		return nil
	case err != nil:
		return err
	}

	b.edit(q, msgReadDone, nil, false)
	b.answer(q.ID, msgReadAck, false)
	return nil
}
