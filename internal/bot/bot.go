package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"dailyflow/internal/localdate"
	"dailyflow/internal/model"
	"dailyflow/internal/repository"
	"dailyflow/internal/service"
)

type conversationKind int

const (
	kindNone conversationKind = iota
	kindPlanCollect
	kindPlanReplaceConfirm
	kindResetConfirm
)

const (
	cbReviewPrefix = "rv:"
)

const (
	btnFinish       = "✅ Готово"
	btnConfirm      = "✅ Подтвердить"
	btnCancel       = "↩️ Отмена"
	menuLabelPlan   = "📝 План"
	menuLabelToday  = "📋 Сегодня"
	menuLabelReview = "🌙 Итоги"
	menuLabelStats  = "📈 Статистика"
)

type conversationState struct {
	kind  conversationKind
	day   localdate.Day
	lines []service.TaskLine
}

// Bot aggregates the Telegram API with services. It is also the Sender the
// notification dispatcher delivers through.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	planSvc       *service.PlanService
	carrySvc      *service.CarryoverService
	statsSvc      *service.StatsService
	areaSvc       *service.AreaService
	logger        *zap.SugaredLogger
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, planSvc *service.PlanService, carrySvc *service.CarryoverService, statsSvc *service.StatsService, areaSvc *service.AreaService, logger *zap.SugaredLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger.Infow("bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		planSvc:       planSvc,
		carrySvc:      carrySvc,
		statsSvc:      statsSvc,
		areaSvc:       areaSvc,
		logger:        logger,
		conversations: make(map[int64]*conversationState),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.logger.Errorw("handle callback", "err", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.logger.Errorw("handle message", "err", err)
			}
		}
	}

	return nil
}

// SendTo delivers a scheduler notification.
func (b *Bot) SendTo(telegramID int64, text string) error {
	msg := tgbotapi.NewMessage(telegramID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.logger.Infow("command", "user", msg.From.ID, "cmd", msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "Я не понял сообщение. Отправь /plan, чтобы составить план, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "plan":
		return b.startPlanConversation(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "add":
		return b.handleAdd(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "remove":
		return b.handleRemove(ctx, msg)
	case "review":
		return b.handleReview(ctx, msg)
	case "carryover":
		return b.handleCarryover(ctx, msg)
	case "streak":
		return b.handleStreak(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "areas":
		return b.handleAreas(ctx, msg)
	case "timezone":
		return b.handleTimezone(ctx, msg)
	case "times":
		return b.handleTimes(ctx, msg)
	case "reminders":
		return b.handleReminders(ctx, msg)
	case "language":
		return b.handleLanguage(ctx, msg)
	case "reset":
		return b.startResetConfirmation(msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Текущий ввод отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я помогаю планировать день и держать серию.</b>\n\n"+
			"Утром составляешь план (до 10 задач), днём я напоминаю, вечером подводим итоги.\n\n"+
			"Команды:\n"+
			"• /plan — составить план на сегодня\n"+
			"• /today — показать план\n"+
			"• /done &lt;номер&gt; — отметить задачу выполненной\n"+
			"• /review — подвести итоги дня\n"+
			"• /streak — текущая серия\n"+
			"• /stats — статистика недели\n"+
			"• /timezone &lt;зона&gt; — часовой пояс (например, Europe/Moscow)\n"+
			"• /help — остальные команды",
		escape(name),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /plan — составить или заменить план на сегодня\n" +
		"• /today — показать план на сегодня\n" +
		"• /add &lt;текст&gt; — добавить задачу, пока есть места (всего до 10)\n" +
		"• /done &lt;номер&gt; — отметить задачу выполненной\n" +
		"• /remove &lt;номер&gt; — удалить задачу\n" +
		"• /review — подвести итоги дня\n" +
		"• /carryover — перенести незакрытое со вчера\n" +
		"• /streak — серия подряд подведённых дней\n" +
		"• /stats — итоги недели по задачам и сферам\n" +
		"• /areas — список твоих сфер\n" +
		"• /timezone &lt;IANA-зона&gt; — часовой пояс\n" +
		"• /times HH:MM HH:MM — время утреннего и вечернего напоминаний\n" +
		"• /reminders HH:MM[,HH:MM[,HH:MM]] — дневные напоминания (1–3)\n" +
		"• /language ru|en — язык уведомлений\n" +
		"• /reset — удалить все данные\n" +
		"• /cancel — отменить текущий ввод\n\n" +
		"К задаче можно добавить сферу: <code>Отчёт по проекту #работа</code>"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleAreas(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	areas, err := b.areaSvc.List(ctx, user)
	if err != nil {
		return err
	}
	if len(areas) == 0 {
		return b.sendText(msg.Chat.ID, "Сфер пока нет. Добавь тег к задаче: <code>Отчёт по проекту #работа</code>")
	}

	var sb strings.Builder
	sb.WriteString("🗂️ <b>Твои сферы</b>\n")
	for _, area := range areas {
		sb.WriteString(fmt.Sprintf("• %s\n", escape(area.Name)))
	}
	return b.sendText(msg.Chat.ID, sb.String())
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(msg.Text)
	switch text {
	case menuLabelPlan:
		return true, b.startPlanConversation(ctx, msg)
	case menuLabelToday:
		return true, b.handleToday(ctx, msg)
	case menuLabelReview:
		return true, b.handleReview(ctx, msg)
	case menuLabelStats:
		return true, b.handleStats(ctx, msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	switch state.kind {
	case kindPlanCollect:
		return b.collectPlanLine(ctx, msg, state)
	case kindPlanReplaceConfirm:
		return b.confirmPlanReplace(ctx, msg, state)
	case kindResetConfirm:
		return b.confirmReset(ctx, msg)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз.")
	}
}

// userDay resolves the user and the current local day; an invalid stored
// timezone is reported to the user instead of being defaulted.
func (b *Bot) userDay(ctx context.Context, from *tgbotapi.User, chatID int64) (*model.User, *time.Location, localdate.Day, error) {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return nil, nil, "", err
	}
	loc, err := localdate.Load(user.Timezone)
	if err != nil {
		return nil, nil, "", b.sendText(chatID, "⚠️ Часовой пояс настроен неверно. Отправь /timezone, например: /timezone Europe/Moscow")
	}
	return user, loc, localdate.At(time.Now(), loc), nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelPlan),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelReview),
			tgbotapi.NewKeyboardButton(menuLabelStats),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func finishKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnFinish),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "подтвердить" || value == "да"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "отмена"
}

func isFinishInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnFinish) || value == "готово"
}

func parsePosition(args string) (int, error) {
	pos, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || pos < 1 {
		return 0, fmt.Errorf("invalid position %q", args)
	}
	return pos, nil
}

func escape(s string) string {
	return html.EscapeString(s)
}

func taskIcon(status model.TaskStatus) string {
	switch status {
	case model.TaskDone:
		return "✅"
	case model.TaskInProgress:
		return "➡️"
	case model.TaskSkipped:
		return "⏭️"
	default:
		return "▫️"
	}
}

func renderTasks(tasks []model.Task) string {
	var sb strings.Builder
	for _, task := range tasks {
		sb.WriteString(fmt.Sprintf("%s <b>%d.</b> %s\n", taskIcon(task.Status), task.Position, escape(task.Body)))
	}
	return sb.String()
}
