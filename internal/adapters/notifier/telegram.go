package notifier

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-moderation-bot/internal/domain"
)

const maxPreviewLen = 200

// TelegramNotifier отправляет записи на ручную проверку в чат модераторов.
type TelegramNotifier struct {
	bot        *tgbotapi.BotAPI
	log        zerolog.Logger
	reviewChat int64
}

var _ domain.ReviewNotifier = (*TelegramNotifier)(nil)

// NewTelegram создаёт нотификатор. reviewChat — идентификатор чата модераторов.
func NewTelegram(bot *tgbotapi.BotAPI, logger zerolog.Logger, reviewChat int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, log: logger, reviewChat: reviewChat}
}

// NotifyReview присылает модераторам краткую карточку записи.
func (n *TelegramNotifier) NotifyReview(ctx context.Context, record domain.ContentRecord) error {
	if record.Decision == nil {
		return nil
	}
	text := formatReview(record)
	msg := tgbotapi.NewMessage(n.reviewChat, text)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("отправка карточки проверки: %w", err)
	}
	return nil
}

func formatReview(record domain.ContentRecord) string {
	d := record.Decision
	preview := record.Text
	if runes := []rune(preview); len(runes) > maxPreviewLen {
		preview = string(runes[:maxPreviewLen]) + "…"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Требуется проверка (приоритет %d)\n", d.ReviewPriority)
	fmt.Fprintf(&b, "Запись: %s\n", record.RecordID)
	fmt.Fprintf(&b, "Чат: %d, пользователь: %d\n", record.ChatID, record.UserID)
	fmt.Fprintf(&b, "Риск: %s, действие: %s\n", d.Risk, d.Value)
	if d.PrimaryReason != "" {
		fmt.Fprintf(&b, "Причина: %s\n", d.PrimaryReason)
	}
	if preview != "" {
		fmt.Fprintf(&b, "Текст: %s", preview)
	}
	return b.String()
}
