package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dailyflow/internal/localdate"
)

func (b *Bot) handleTimezone(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	if args == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Текущий часовой пояс: <code>%s</code>. Чтобы сменить: /timezone Europe/Moscow", escape(user.Timezone)))
	}

	if _, err := localdate.Load(args); err != nil {
		return b.sendText(msg.Chat.ID, "Не знаю такой зоны. Нужно имя из базы IANA, например <code>Europe/Moscow</code> или <code>Asia/Yekaterinburg</code>.")
	}

	if err := b.userRepo.UpdateSettings(ctx, user.ID, map[string]interface{}{"timezone": args}); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🌍 Часовой пояс обновлён: <code>%s</code>.", escape(args)))
}

func (b *Bot) handleTimes(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf(
			"Сейчас: утро %s, вечер %s.\nЧтобы сменить, укажи оба времени: /times 08:00 21:30",
			user.MorningTime, user.EveningTime))
	}

	for _, t := range fields {
		if _, err := localdate.ParseClock(t); err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Не понял время «%s». Формат: HH:MM.", escape(t)))
		}
	}

	updates := map[string]interface{}{"morning_time": fields[0], "evening_time": fields[1]}
	if err := b.userRepo.UpdateSettings(ctx, user.ID, updates); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏰ Утреннее напоминание в %s, вечернее в %s.", fields[0], fields[1]))
}

func (b *Bot) handleReminders(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf(
			"Дневные напоминания: %s.\nЧтобы сменить: /reminders 12:00,16:00 (от одного до трёх времён)",
			user.ReminderTimes))
	}

	raw := strings.FieldsFunc(args, func(r rune) bool { return r == ',' || r == ' ' })
	var times []string
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, err := localdate.ParseClock(t); err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Не понял время «%s». Формат: HH:MM.", escape(t)))
		}
		times = append(times, t)
	}
	if len(times) < 1 || len(times) > 3 {
		return b.sendText(msg.Chat.ID, "Нужно от одного до трёх времён, например: /reminders 12:00,16:00")
	}

	updates := map[string]interface{}{
		"reminder_times": strings.Join(times, ","),
		"reminder_count": len(times),
	}
	if err := b.userRepo.UpdateSettings(ctx, user.ID, updates); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔔 Дневные напоминания: %s.", strings.Join(times, ", ")))
}

func (b *Bot) handleLanguage(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	lang := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if lang != "ru" && lang != "en" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Сейчас выбран «%s». Доступно: /language ru или /language en.", escape(user.Language)))
	}

	if err := b.userRepo.UpdateSettings(ctx, user.ID, map[string]interface{}{"language": lang}); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗣 Язык уведомлений: %s.", lang))
}

func (b *Bot) startResetConfirmation(msg *tgbotapi.Message) error {
	b.setConversation(msg.From.ID, &conversationState{kind: kindResetConfirm})
	return b.sendWithReplyMarkup(msg.Chat.ID,
		"⚠️ Это удалит все планы, задачи и настройки без возможности восстановления. Подтвердить?",
		confirmKeyboard())
}

func (b *Bot) confirmReset(ctx context.Context, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConversation(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		if err := b.userRepo.Reset(ctx, user.ID); err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось удалить данные: %s", escape(err.Error())))
		}
		b.logger.Infow("account reset", "user", msg.From.ID)
		return b.sendText(msg.Chat.ID, "🧹 Все данные удалены. /start — начать заново.")
	case isCancelInput(text):
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Удаление отменено.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Подтверди или отмени удаление данных.", confirmKeyboard())
	}
}
