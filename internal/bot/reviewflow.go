package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dailyflow/internal/localdate"
	"dailyflow/internal/model"
)

// reviewVerbs map callback data to task outcomes.
var reviewVerbs = map[string]model.TaskStatus{
	"done":  model.TaskDone,
	"carry": model.TaskInProgress,
	"skip":  model.TaskSkipped,
}

func (b *Bot) handleReview(ctx context.Context, msg *tgbotapi.Message) error {
	user, loc, today, err := b.userDay(ctx, msg.From, msg.Chat.ID)
	if err != nil || user == nil {
		return err
	}

	plan, err := b.reviewablePlan(ctx, user, loc, today)
	if err != nil {
		return err
	}
	if plan == nil {
		return b.sendText(msg.Chat.ID, "Подводить нечего: нет плана, который ждёт итогов.")
	}

	if plan.Status == model.PlanConfirmed {
		if _, err := b.planSvc.StartReview(ctx, plan.ID); err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
		}
	}

	b.logger.Infow("review started", "user", user.TelegramID, "day", plan.LocalDay)
	return b.askNextReviewTask(ctx, msg.Chat.ID, msg.From, plan.ID)
}

// reviewablePlan picks the plan whose review is due: today's, or
// yesterday's when today has none.
func (b *Bot) reviewablePlan(ctx context.Context, user *model.User, loc *time.Location, today localdate.Day) (*model.Plan, error) {
	plan, err := b.planSvc.PlanFor(ctx, user, today)
	if err != nil {
		return nil, err
	}
	if plan.IsPlanned() && plan.Status != model.PlanReviewed && len(plan.Tasks) > 0 {
		return plan, nil
	}

	prev, err := b.planSvc.PlanFor(ctx, user, today.Shift(loc, -1))
	if err != nil {
		return nil, err
	}
	if prev.IsPlanned() && prev.Status != model.PlanReviewed && len(prev.Tasks) > 0 {
		return prev, nil
	}
	return nil, nil
}

func (b *Bot) askNextReviewTask(ctx context.Context, chatID int64, from *tgbotapi.User, planID uint) error {
	plan, err := b.planSvc.PlanByID(ctx, planID)
	if err != nil {
		return err
	}

	for _, task := range plan.Tasks {
		if task.Status != model.TaskPending {
			continue
		}
		text := fmt.Sprintf("Задача %d из %d:\n<b>%s</b>\n\nКак прошло?", task.Position, len(plan.Tasks), escape(task.Body))
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Сделано", fmt.Sprintf("%sdone:%d", cbReviewPrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("➡️ На завтра", fmt.Sprintf("%scarry:%d", cbReviewPrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("⏭️ Не делал", fmt.Sprintf("%sskip:%d", cbReviewPrefix, task.ID)),
			),
		)
		return b.sendWithReplyMarkup(chatID, text, markup)
	}

	return b.finishReview(ctx, chatID, from, plan)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warnw("callback ack", "err", err)
	}

	if !strings.HasPrefix(cb.Data, cbReviewPrefix) {
		return nil
	}

	parts := strings.SplitN(strings.TrimPrefix(cb.Data, cbReviewPrefix), ":", 2)
	if len(parts) != 2 {
		return nil
	}
	status, ok := reviewVerbs[parts[0]]
	if !ok {
		return nil
	}
	taskID64, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil
	}

	task, err := b.planSvc.MarkTask(ctx, uint(taskID64), status)
	if err != nil {
		return b.sendText(cb.Message.Chat.ID, "Задача не найдена, возможно план уже изменился.")
	}

	b.logger.Infow("review outcome", "user", cb.From.ID, "task", task.ID, "status", task.Status)
	return b.askNextReviewTask(ctx, cb.Message.Chat.ID, cb.From, task.PlanID)
}

func (b *Bot) finishReview(ctx context.Context, chatID int64, from *tgbotapi.User, plan *model.Plan) error {
	if plan.Status != model.PlanReviewed {
		if _, err := b.planSvc.CompleteReview(ctx, plan.ID); err != nil {
			if errors.Is(err, model.ErrInvalidTransition) {
				return b.sendText(chatID, "Итоги этого дня уже подведены.")
			}
			return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
		}
	}

	user, loc, _, err := b.userDay(ctx, from, chatID)
	if err != nil || user == nil {
		return err
	}

	var done, carried, skipped int
	for _, task := range plan.Tasks {
		switch task.Status {
		case model.TaskDone:
			done++
		case model.TaskInProgress:
			carried++
		case model.TaskSkipped:
			skipped++
		}
	}

	tomorrow := plan.LocalDay.Shift(loc, 1)
	moved, err := b.carrySvc.CarryOver(ctx, user, plan.LocalDay, tomorrow)
	if err != nil {
		b.logger.Errorw("carry over", "user", user.TelegramID, "err", err)
	}

	streak, err := b.statsSvc.Streak(ctx, user, time.Now())
	if err != nil {
		b.logger.Errorw("streak", "user", user.TelegramID, "err", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🌙 <b>Итоги за %s</b>\n", plan.LocalDay))
	sb.WriteString(fmt.Sprintf("✅ Сделано: %d · ➡️ Перенесено: %d · ⏭️ Пропущено: %d\n", done, carried, skipped))
	if len(moved) > 0 {
		sb.WriteString(fmt.Sprintf("\nНа %s перенесено:\n", tomorrow))
		for _, task := range moved {
			if task.CarriedFromTaskID != nil {
				sb.WriteString(fmt.Sprintf("• %s\n", escape(task.Body)))
			}
		}
	}
	sb.WriteString(fmt.Sprintf("\n🔥 Серия: %d дн. подряд с подведёнными итогами.", streak))
	b.logger.Infow("review completed", "user", user.TelegramID, "day", plan.LocalDay, "streak", streak)
	return b.sendText(chatID, sb.String())
}

func (b *Bot) handleCarryover(ctx context.Context, msg *tgbotapi.Message) error {
	user, loc, today, err := b.userDay(ctx, msg.From, msg.Chat.ID)
	if err != nil || user == nil {
		return err
	}

	moved, err := b.carrySvc.CarryOver(ctx, user, today.Shift(loc, -1), today)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось перенести задачи: %s", escape(err.Error())))
	}
	if len(moved) == 0 {
		return b.sendText(msg.Chat.ID, "Со вчера переносить нечего.")
	}

	return b.sendText(msg.Chat.ID, "➡️ Перенёс незакрытое со вчера.\n\n"+renderTasks(moved))
}

func (b *Bot) handleStreak(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	streak, err := b.statsSvc.Streak(ctx, user, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось посчитать серию: %s", escape(err.Error())))
	}
	if streak == 0 {
		return b.sendText(msg.Chat.ID, "Серии пока нет. Подведи итоги дня через /review — и она начнётся.")
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔥 Серия: %d дн. подряд с подведёнными итогами.", streak))
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	stats, err := b.statsSvc.Weekly(ctx, user, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось собрать статистику: %s", escape(err.Error())))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📈 <b>Неделя %s — %s</b>\n", stats.WeekStart, stats.WeekEnd))
	sb.WriteString(fmt.Sprintf("Дней с планом: %d\n", stats.PlannedDays))
	sb.WriteString(fmt.Sprintf("Задач: %d, выполнено: %d (%d%%)\n", stats.TotalTasks, stats.DoneTasks, stats.CompletionRate))
	if stats.PlannedDays > 0 {
		sb.WriteString(fmt.Sprintf("В среднем %.1f задач в день\n", stats.AvgTasksPerDay))
	}
	if len(stats.Areas) > 0 {
		sb.WriteString("\n<b>По сферам</b>\n")
		for _, area := range stats.Areas {
			name := area.Name
			if name == "" {
				name = "без названия"
			}
			sb.WriteString(fmt.Sprintf("• %s: %d/%d\n", escape(name), area.Done, area.Total))
		}
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(sb.String()))
}
