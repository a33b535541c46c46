package service

import (
	"fmt"
	"html"
	"strings"

	"dailyflow/internal/model"
)

// Number of task bodies quoted in a mid-day reminder.
const middayPreviewLimit = 3

// DigestService renders notification texts for the scheduler. Two catalogs
// are shipped; anything that is not "en" falls back to Russian.
type DigestService struct{}

func NewDigestService() *DigestService {
	return &DigestService{}
}

// MorningPrompt asks the user to commit a plan for the new day.
func (s *DigestService) MorningPrompt(lang string) string {
	if english(lang) {
		return "🌅 Good morning! Time to plan the day. Send /plan and list up to 10 tasks."
	}
	return "🌅 Доброе утро! Пора составить план на день. Отправь /plan и перечисли до 10 задач."
}

// ReviewNudge reminds that yesterday's plan was never reviewed.
func (s *DigestService) ReviewNudge(lang string) string {
	if english(lang) {
		return "🌓 Yesterday's plan was never reviewed. Send /review to close it out."
	}
	return "🌓 Вчерашний план остался без итогов. Отправь /review, чтобы их подвести."
}

// MiddayReminder lists up to three remaining tasks.
func (s *DigestService) MiddayReminder(lang string, remaining []model.Task) string {
	var b strings.Builder
	if english(lang) {
		b.WriteString("⏰ <b>How is the plan going?</b>\n")
		b.WriteString(fmt.Sprintf("Still open: %d\n", len(remaining)))
	} else {
		b.WriteString("⏰ <b>Как продвигается план?</b>\n")
		b.WriteString(fmt.Sprintf("Ещё открыто: %d\n", len(remaining)))
	}

	shown := remaining
	if len(shown) > middayPreviewLimit {
		shown = shown[:middayPreviewLimit]
	}
	for _, task := range shown {
		b.WriteString(fmt.Sprintf("• %s\n", html.EscapeString(strings.TrimSpace(task.Body))))
	}
	if extra := len(remaining) - len(shown); extra > 0 {
		if english(lang) {
			b.WriteString(fmt.Sprintf("…and %d more\n", extra))
		} else {
			b.WriteString(fmt.Sprintf("…и ещё %d\n", extra))
		}
	}
	return strings.TrimSpace(b.String())
}

// AllClear congratulates on an empty remaining list.
func (s *DigestService) AllClear(lang string) string {
	if english(lang) {
		return "🎉 Everything on today's plan is closed. Great pace!"
	}
	return "🎉 Все задачи на сегодня закрыты. Отличный темп!"
}

// EveningPrompt invites the user to start the review.
func (s *DigestService) EveningPrompt(lang string) string {
	if english(lang) {
		return "🌙 The day is winding down. Send /review to record how it went and keep the streak."
	}
	return "🌙 День подходит к концу. Отправь /review, чтобы подвести итоги и сохранить серию."
}

func english(lang string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "en")
}
