package executor

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-moderation-bot/internal/domain"
)

const defaultMuteDuration = 24 * time.Hour

// TelegramExecutor применяет решения конвейера через Bot API.
type TelegramExecutor struct {
	bot          *tgbotapi.BotAPI
	log          zerolog.Logger
	muteDuration time.Duration
}

var _ domain.ActionExecutor = (*TelegramExecutor)(nil)

// NewTelegram создаёт исполнитель действий.
func NewTelegram(bot *tgbotapi.BotAPI, logger zerolog.Logger, muteDuration time.Duration) *TelegramExecutor {
	if muteDuration <= 0 {
		muteDuration = defaultMuteDuration
	}
	return &TelegramExecutor{bot: bot, log: logger, muteDuration: muteDuration}
}

// Execute выполняет действие из решения. ALLOW и FLAG действий не требуют.
func (e *TelegramExecutor) Execute(ctx context.Context, record domain.ContentRecord) error {
	if record.Decision == nil {
		return nil
	}
	action := record.Decision.Value
	switch action {
	case domain.DecisionDelete:
		return e.deleteMessage(record)
	case domain.DecisionMute:
		// полный запрет на отправку
		return e.restrictSender(record, time.Now().Add(e.muteDuration).Unix(), &tgbotapi.ChatPermissions{})
	case domain.DecisionRestrict:
		// текст разрешён, медиа и ссылки — нет
		return e.restrictSender(record, time.Now().Add(e.muteDuration).Unix(), &tgbotapi.ChatPermissions{CanSendMessages: true})
	case domain.DecisionKick:
		return e.kickSender(record)
	case domain.DecisionBan:
		return e.banSender(record)
	case domain.DecisionShadowban:
		// платформа не поддерживает теневой бан, решение остаётся в записи
		e.log.Info().Str("record_id", record.RecordID).Msg("executor: shadowban отмечен без действия")
		return nil
	}
	return nil
}

func (e *TelegramExecutor) deleteMessage(record domain.ContentRecord) error {
	cfg := tgbotapi.NewDeleteMessage(record.ChatID, int(record.MessageID))
	if _, err := e.bot.Request(cfg); err != nil {
		return fmt.Errorf("удаление сообщения: %w", err)
	}
	return nil
}

func (e *TelegramExecutor) restrictSender(record domain.ContentRecord, until int64, perms *tgbotapi.ChatPermissions) error {
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: record.ChatID,
			UserID: record.UserID,
		},
		UntilDate:   until,
		Permissions: perms,
	}
	if _, err := e.bot.Request(cfg); err != nil {
		return fmt.Errorf("ограничение отправителя: %w", err)
	}
	return nil
}

func (e *TelegramExecutor) kickSender(record domain.ContentRecord) error {
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: record.ChatID,
			UserID: record.UserID,
		},
	}
	if _, err := e.bot.Request(ban); err != nil {
		return fmt.Errorf("исключение отправителя: %w", err)
	}
	unban := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: record.ChatID,
			UserID: record.UserID,
		},
		OnlyIfBanned: true,
	}
	if _, err := e.bot.Request(unban); err != nil {
		return fmt.Errorf("снятие бана после исключения: %w", err)
	}
	return nil
}

func (e *TelegramExecutor) banSender(record domain.ContentRecord) error {
	cfg := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: record.ChatID,
			UserID: record.UserID,
		},
	}
	if _, err := e.bot.Request(cfg); err != nil {
		return fmt.Errorf("бан отправителя: %w", err)
	}
	return nil
}
