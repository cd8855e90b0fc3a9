// AngelaMos | 2026
// keyboards.go

package bot

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/carterperez-dev/notesbot/internal/identity"
	"github.com/carterperez-dev/notesbot/internal/note"
)

const (
	actionNoteType    = "note_type"
	actionReadNote    = "read_note"
	actionConfirmRead = "confirm_read"
	actionBackToMenu  = "back_to_menu"
	actionCancel      = "cancel"
)

func replyKeyboard(rows ...[]string) tgbotapi.ReplyKeyboardMarkup {
	buttons := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, text := range row {
			line = append(line, tgbotapi.NewKeyboardButton(text))
		}
		buttons = append(buttons, line)
	}

	kb := tgbotapi.NewReplyKeyboard(buttons...)
	kb.ResizeKeyboard = true
	return kb
}

func requesterMenu() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard([]string{btnCreateNote}, []string{btnHelp})
}

func readerMenu() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard([]string{btnQueueStats}, []string{btnReadNote}, []string{btnHelp})
}

func adminMenu() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(
		[]string{btnSystemStats},
		[]string{btnManageRoles},
		[]string{btnActivity},
		[]string{btnSettings},
	)
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard([]string{btnCancel})
}

func menuFor(who *identity.Identity) tgbotapi.ReplyKeyboardMarkup {
	switch {
	case who.IsAdmin():
		return adminMenu()
	case who.IsReader():
		return readerMenu()
	default:
		return requesterMenu()
	}
}

func callbackData(action, arg string) string {
	return action + ":" + arg
}

func categoryRow(action string) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(categoryTitle(note.CategoryHealth),
			callbackData(action, string(note.CategoryHealth))),
		tgbotapi.NewInlineKeyboardButtonData(categoryTitle(note.CategoryRepose),
			callbackData(action, string(note.CategoryRepose))),
	)
}

func noteTypeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		categoryRow(actionNoteType),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnCancel, actionCancel)),
	)
}

func readTypeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		categoryRow(actionReadNote),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", actionBackToMenu)),
	)
}

func noteActionsKeyboard(noteID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(
			"✅ Подтвердить прочтение",
			callbackData(actionConfirmRead, strconv.FormatInt(noteID, 10)),
		)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 В главное меню", actionBackToMenu)),
	)
}
