// AngelaMos | 2026
// texts.go

package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/carterperez-dev/notesbot/internal/identity"
	"github.com/carterperez-dev/notesbot/internal/note"
)

const (
	btnCreateNote  = "📝 Создать записку"
	btnHelp        = "ℹ️ Помощь"
	btnCancel      = "❌ Отмена"
	btnQueueStats  = "📊 Статистика очереди"
	btnReadNote    = "📖 Прочитать записку"
	btnSystemStats = "📊 Статистика"
	btnManageRoles = "👥 Управление ролями"
	btnActivity    = "📈 Активность"
	btnSettings    = "⚙️ Настройки"
)

const (
	msgWelcome = "Добро пожаловать! Я помогу вам отправить записку на молитву.\n\n" +
		"Используйте кнопки меню для навигации."
	msgWelcomeReader = "Добро пожаловать! Вы вошли как священник/алтарник.\n\n" +
		"Используйте кнопки меню для работы с записками."
	msgWelcomeAdmin = "Добро пожаловать! Вы вошли как администратор.\n\n" +
		"Используйте кнопки меню для управления системой."

	msgCanceled     = "Действие отменено."
	msgNoAccess     = "❌ У вас нет доступа к этой функции."
	msgDenied       = "❌ У вас нет доступа."
	msgInternal     = "❌ Произошла ошибка. Пожалуйста, попробуйте позже."
	msgUseMenu      = "Используйте кнопки меню для навигации."
	msgChooseAction = "Выберите действие:"
	msgMainMenu     = "Главное меню"

	msgChooseType   = "Выберите тип записки:"
	msgHealthPrompt = "Введите имена для молитвы <b>За здравие</b>.\n" +
		"По одному имени на строку.\n" +
		"Когда закончите, отправьте 'Готово' или 'Далее'."
	msgReposePrompt = "Введите имена для молитвы <b>Об упокоении</b>.\n" +
		"По одному имени на строку.\n" +
		"Когда закончите, отправьте 'Готово' или 'Далее'.\n" +
		"Если не нужно, отправьте 'Пропустить'."
	msgNamesAdded    = "✅ Добавлено имен: %d\nОтправьте 'Готово' или 'Далее' для продолжения."
	msgAmountPrompt  = "Введите сумму пожертвования (минимум %.2f руб.):"
	msgConfirmPrompt = "Подтвердите создание записки:"
	msgConfirmHint   = "Для подтверждения отправьте 'Подтвердить' или 'Да'."
	msgNoteCreated   = "✅ Записка создана!\n\nПерейдите по ссылке для оплаты:\n%s"
	msgNoPaymentLink = "✅ Записка создана, но произошла ошибка при создании платежа. " +
		"Пожалуйста, обратитесь к администратору."
	msgPaymentFailed = "❌ Ошибка при создании платежа: %s\n" +
		"Пожалуйста, попробуйте позже или обратитесь к администратору."

	msgQueueEmpty     = "📭 В очереди нет записок."
	msgChooseReadType = "Выберите тип записки для прочтения:"
	msgNoQueuedOfType = "📭 Нет записок типа '%s' в очереди."
	msgReadDone       = "✅ Записка прочитана и удалена из системы.\n" +
		"Пользователю отправлено уведомление."
	msgReadAck      = "Записка прочитана"
	msgAlreadyTaken = "❌ Эту записку уже прочитали."
	msgNoteNotFound = "❌ Записка не найдена."

	msgEnterHandle  = "Введите Telegram ID пользователя, роль которого хотите изменить:"
	msgUserNotFound = "❌ Пользователь с таким ID не найден."
	msgBadRole      = "❌ Неверная роль. Попробуйте снова."
	msgRoleChanged  = "✅ Роль пользователя изменена на: <b>%s</b>"
	msgRoleFailed   = "❌ Ошибка при изменении роли."
)

func welcomeFor(who *identity.Identity) string {
	switch {
	case who.IsAdmin():
		return msgWelcomeAdmin
	case who.IsReader():
		return msgWelcomeReader
	default:
		return msgWelcome
	}
}

func categoryTitle(c note.Category) string {
	if c == note.CategoryHealth {
		return "За здравие"
	}
	return "Об упокоении"
}

func helpText(s Settings) string {
	return fmt.Sprintf("📖 <b>Помощь</b>\n\n"+
		"Для создания записки:\n"+
		"1. Нажмите 'Создать записку'\n"+
		"2. Выберите тип записки\n"+
		"3. Введите имена (по одному на строку)\n"+
		"4. Укажите сумму пожертвования\n"+
		"5. Подтвердите и перейдите к оплате\n\n"+
		"Максимальное количество имен: %d\n"+
		"Минимальная сумма: %.2f руб.",
		s.Limits.MaxNames, s.Limits.MinAmount)
}

func writeNumbered(b *strings.Builder, names []string) {
	for i, name := range names {
		fmt.Fprintf(b, "%d. %s\n", i+1, html.EscapeString(name))
	}
}

// noteSummary renders the collected note for confirmation.
func noteSummary(c note.Category, health, repose []string, amount float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📝 <b>Записка: %s</b>\n\n", categoryTitle(c))

	if len(health) > 0 {
		b.WriteString("🙏 <b>За здравие:</b>\n")
		writeNumbered(&b, health)
		b.WriteString("\n")
	}
	if len(repose) > 0 {
		b.WriteString("🕯️ <b>Об упокоении:</b>\n")
		writeNumbered(&b, repose)
	}

	fmt.Fprintf(&b, "\n💰 Сумма пожертвования: %.2f руб.", amount)

	return b.String()
}

func prayerBlock(c note.Category, names []string) string {
	var b strings.Builder

	emoji := "🙏"
	if c == note.CategoryRepose {
		emoji = "🕯️"
	}

	fmt.Fprintf(&b, "%s <b>Молитва %s</b>\n\n", emoji, categoryTitle(c))
	b.WriteString("Господи, помилуй и спаси рабов Твоих:\n\n")
	writeNumbered(&b, names)
	b.WriteString("\nАминь.")

	return b.String()
}

// prayerText renders a queued note for reading aloud, health names first.
func prayerText(n *note.Note) string {
	var blocks []string

	if names := n.NamesFor(note.CategoryHealth); len(names) > 0 {
		blocks = append(blocks, prayerBlock(note.CategoryHealth, names))
	}
	if names := n.NamesFor(note.CategoryRepose); len(names) > 0 {
		blocks = append(blocks, prayerBlock(note.CategoryRepose, names))
	}

	return strings.Join(blocks, "\n\n")
}

func queueStatsText(s note.QueueStats) string {
	return fmt.Sprintf("📊 <b>Статистика очереди</b>\n\n"+
		"Всего записок: %d\n"+
		"За здравие: %d\n"+
		"Об упокоении: %d",
		s.Total, s.Health, s.Repose)
}

func systemStatsText(queued int, counts identity.RoleCounts) string {
	return fmt.Sprintf("📊 <b>Статистика системы</b>\n\n"+
		"📝 Записок в очереди: %d\n\n"+
		"👥 <b>Пользователи:</b>\n"+
		"Обычные пользователи: %d\n"+
		"Священники: %d\n"+
		"Алтарники: %d\n"+
		"Администраторы: %d",
		queued,
		counts[identity.RoleRequester],
		counts[identity.RolePriest],
		counts[identity.RoleAltarServer],
		counts[identity.RoleAdmin])
}

func activityText(priests, servers []identity.Identity) string {
	var b strings.Builder

	b.WriteString("📈 <b>Активность священников и алтарников</b>\n\n")

	if len(priests) == 0 && len(servers) == 0 {
		b.WriteString("Нет назначенных священников или алтарников.")
		return b.String()
	}

	if len(priests) > 0 {
		b.WriteString("🙏 <b>Священники:</b>\n")
		for i := range priests {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(priests[i].DisplayName()))
		}
		b.WriteString("\n")
	}
	if len(servers) > 0 {
		b.WriteString("🕯️ <b>Алтарники:</b>\n")
		for i := range servers {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(servers[i].DisplayName()))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func settingsText(s Settings) string {
	return fmt.Sprintf("⚙️ <b>Настройки системы</b>\n\n"+
		"Минимальная сумма пожертвования: %.2f руб.\n"+
		"Максимальное количество имен: %d\n"+
		"Описание платежа: %s",
		s.Limits.MinAmount, s.Limits.MaxNames, html.EscapeString(s.PaymentDescription))
}

func rolePromptText(current identity.Role) string {
	return fmt.Sprintf("Текущая роль пользователя: <b>%s</b>\n\n"+
		"Выберите новую роль:\n"+
		"1. requester - Обычный пользователь\n"+
		"2. priest - Священник\n"+
		"3. altar_server - Алтарник\n"+
		"4. admin - Администратор\n\n"+
		"Отправьте номер или название роли:",
		current)
}

const readDateLayout = "02.01.2006 15:04"

func readNoticeText(n *note.Note) string {
	when := "Не указано"
	if n.ReadAt != nil {
		when = n.ReadAt.Format(readDateLayout)
	}

	return fmt.Sprintf("✅ Ваша записка прочитана на богослужении.\n\n"+
		"Тип: %s\n"+
		"Дата прочтения: %s",
		categoryTitle(n.Category), when)
}
