package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dailyflow/internal/model"
	"dailyflow/internal/service"
)

func (b *Bot) startPlanConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, _, today, err := b.userDay(ctx, msg.From, msg.Chat.ID)
	if err != nil || user == nil {
		return err
	}

	existing, err := b.planSvc.PlanFor(ctx, user, today)
	if err != nil {
		return err
	}

	if existing.IsPlanned() {
		b.setConversation(msg.From.ID, &conversationState{kind: kindPlanReplaceConfirm, day: today})
		text := fmt.Sprintf("На сегодня уже есть план из %d задач. Заменить его? Текущие задачи будут удалены.", len(existing.Tasks))
		return b.sendWithReplyMarkup(msg.Chat.ID, text, confirmKeyboard())
	}

	b.setConversation(msg.From.ID, &conversationState{kind: kindPlanCollect, day: today})
	return b.sendWithReplyMarkup(msg.Chat.ID,
		"🆕 Составляем план на сегодня.\nПрисылай задачи по одной (до 10), к задаче можно добавить сферу: <code>Отчёт #работа</code>.\nКогда закончишь — нажми «Готово».",
		finishKeyboard())
}

func (b *Bot) confirmPlanReplace(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		state.kind = kindPlanCollect
		state.lines = nil
		return b.sendWithReplyMarkup(msg.Chat.ID,
			"🆕 Составляем план заново. Присылай задачи по одной, затем нажми «Готово».",
			finishKeyboard())
	case isCancelInput(text):
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "План оставлен без изменений.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Подтверди или отмени замену плана.", confirmKeyboard())
	}
}

func (b *Bot) collectPlanLine(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)

	if isCancelInput(text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Составление плана отменено.")
	}

	if isFinishInput(text) {
		if len(state.lines) == 0 {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Список пуст. Пришли хотя бы одну задачу или нажми «Отмена».", finishKeyboard())
		}
		return b.commitPlan(ctx, msg, state)
	}

	if len(state.lines) >= model.MaxTasksPerPlan {
		return b.sendWithReplyMarkup(msg.Chat.ID,
			fmt.Sprintf("Лимит — %d задач в день. Нажми «Готово», чтобы сохранить план.", model.MaxTasksPerPlan),
			finishKeyboard())
	}

	line := service.ParseTaskLine(text)
	if line.Body == "" {
		return b.sendWithReplyMarkup(msg.Chat.ID, "Пустую задачу не записал. Пришли текст задачи.", finishKeyboard())
	}

	state.lines = append(state.lines, line)
	return b.sendWithReplyMarkup(msg.Chat.ID,
		fmt.Sprintf("Записал (%d/%d). Следующая задача или «Готово».", len(state.lines), model.MaxTasksPerPlan),
		finishKeyboard())
}

func (b *Bot) commitPlan(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	plan, err := b.planSvc.Commit(ctx, user, state.day, state.lines, model.SourceManual)
	b.clearConversation(msg.From.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить план: %s", escape(err.Error())))
	}

	b.logger.Infow("plan committed", "user", user.TelegramID, "day", plan.LocalDay, "tasks", len(plan.Tasks))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ <b>План на %s сохранён</b>\n\n", plan.LocalDay))
	sb.WriteString(renderTasks(plan.Tasks))
	sb.WriteString("\nВечером отправь /review, чтобы подвести итоги.")
	return b.sendText(msg.Chat.ID, sb.String())
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, _, today, err := b.userDay(ctx, msg.From, msg.Chat.ID)
	if err != nil || user == nil {
		return err
	}

	plan, err := b.planSvc.PlanFor(ctx, user, today)
	if err != nil {
		return err
	}
	if !plan.IsPlanned() {
		return b.sendText(msg.Chat.ID, "На сегодня плана нет. Отправь /plan, чтобы его составить.")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 <b>План на %s</b>\n\n", plan.LocalDay))
	sb.WriteString(renderTasks(plan.Tasks))
	if plan.Status == model.PlanReviewed {
		sb.WriteString("\n🌙 Итоги дня уже подведены.")
	}
	return b.sendText(msg.Chat.ID, sb.String())
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Укажи текст задачи: /add Позвонить стоматологу")
	}

	user, _, today, err := b.userDay(ctx, msg.From, msg.Chat.ID)
	if err != nil || user == nil {
		return err
	}

	plan, err := b.planSvc.PlanFor(ctx, user, today)
	if err != nil {
		return err
	}
	if !plan.IsPlanned() {
		return b.sendText(msg.Chat.ID, "Сначала составь план: /plan")
	}

	before := len(plan.Tasks)
	tasks, err := b.planSvc.Append(ctx, user, plan.ID, []service.TaskLine{service.ParseTaskLine(args)})
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось добавить задачу: %s", escape(err.Error())))
	}
	if len(tasks) == before {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Все %d мест на сегодня заняты.", model.MaxTasksPerPlan))
	}

	return b.sendText(msg.Chat.ID, "➕ Задача добавлена.\n\n"+renderTasks(tasks))
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	pos, err := parsePosition(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи номер задачи: /done 2")
	}

	user, _, today, err := b.userDay(ctx, msg.From, msg.Chat.ID)
	if err != nil || user == nil {
		return err
	}

	plan, err := b.planSvc.PlanFor(ctx, user, today)
	if err != nil {
		return err
	}
	if !plan.IsPlanned() {
		return b.sendText(msg.Chat.ID, "На сегодня плана нет. Отправь /plan.")
	}

	for _, task := range plan.Tasks {
		if task.Position == pos {
			if _, err := b.planSvc.MarkTask(ctx, task.ID, model.TaskDone); err != nil {
				return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
			}
			return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Задача «%s» выполнена.", escape(task.Body)))
		}
	}
	return b.sendText(msg.Chat.ID, "Задачи с таким номером нет.")
}

func (b *Bot) handleRemove(ctx context.Context, msg *tgbotapi.Message) error {
	pos, err := parsePosition(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи номер задачи: /remove 2")
	}

	user, _, today, err := b.userDay(ctx, msg.From, msg.Chat.ID)
	if err != nil || user == nil {
		return err
	}

	plan, err := b.planSvc.PlanFor(ctx, user, today)
	if err != nil {
		return err
	}
	if !plan.IsPlanned() {
		return b.sendText(msg.Chat.ID, "На сегодня плана нет.")
	}

	tasks, err := b.planSvc.RemoveAt(ctx, plan.ID, pos)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	if tasks == nil {
		return b.sendText(msg.Chat.ID, "Задачи с таким номером нет.")
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "🗑 Задача удалена. План пуст.")
	}
	return b.sendText(msg.Chat.ID, "🗑 Задача удалена.\n\n"+renderTasks(tasks))
}
