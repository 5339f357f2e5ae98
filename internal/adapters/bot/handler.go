package bot

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"tg-moderation-bot/internal/adapters/features"
	"tg-moderation-bot/internal/domain"
	"tg-moderation-bot/internal/infra/metrics"
)

const (
	frequencyWindow = time.Minute
	senderCacheSize = 1024
)

// Handler обслуживает вебхук бота: превращает апдейты групп во входящие
// сообщения конвейера и применяет принятые решения.
type Handler struct {
	bot      *tgbotapi.BotAPI
	log      zerolog.Logger
	pipeline domain.ModerationService
	executor domain.ActionExecutor

	mu       sync.Mutex
	lastSeen *expirable.LRU[int64, []time.Time]
}

// NewHandler создаёт обработчик. Окно частоты живёт в LRU с TTL на запись,
// поэтому замолчавшие отправители вычищаются сами, а память ограничена.
func NewHandler(bot *tgbotapi.BotAPI, logger zerolog.Logger, pipeline domain.ModerationService, executor domain.ActionExecutor) *Handler {
	return &Handler{
		bot:      bot,
		log:      logger,
		pipeline: pipeline,
		executor: executor,
		lastSeen: expirable.NewLRU[int64, []time.Time](senderCacheSize, nil, frequencyWindow),
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		msg = upd.EditedMessage
	}
	if msg == nil || msg.From == nil {
		return
	}
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		return
	}
	h.handleGroupMessage(ctx, msg)
}

func (h *Handler) handleGroupMessage(ctx context.Context, msg *tgbotapi.Message) {
	inbound := h.toInbound(msg)

	record, err := h.pipeline.Process(ctx, inbound, msg.Chat.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("bot: конвейер вернул ошибку")
		return
	}
	if record.Status != domain.StatusCompleted || record.Decision == nil {
		return
	}

	if record.Decision.Value.IsEnforcement() {
		if err := h.executor.Execute(ctx, record); err != nil {
			metrics.ExecutorErrors.WithLabelValues(string(record.Decision.Value)).Inc()
			h.log.Error().Err(err).
				Str("record_id", record.RecordID).
				Str("action", string(record.Decision.Value)).
				Msg("bot: не удалось применить решение")
		}
	}
}

// toInbound собирает InboundMessage из tgbotapi-сообщения.
func (h *Handler) toInbound(msg *tgbotapi.Message) domain.InboundMessage {
	text := msg.Text
	entities := msg.Entities
	if text == "" && msg.Caption != "" {
		text = msg.Caption
		entities = msg.CaptionEntities
	}

	var mentions, hashtags, commands []string
	for _, e := range entities {
		value := entityText(text, e.Offset, e.Length)
		switch e.Type {
		case "mention", "text_mention":
			mentions = append(mentions, value)
		case "hashtag":
			hashtags = append(hashtags, value)
		case "bot_command":
			commands = append(commands, value)
		}
	}

	return domain.InboundMessage{
		MessageID:          int64(msg.MessageID),
		ChatID:             msg.Chat.ID,
		UserID:             msg.From.ID,
		Text:               text,
		ContentType:        features.DetectContentType(len(msg.Photo) > 0, msg.Video != nil, msg.Document != nil, msg.Sticker != nil, msg.Voice != nil, text),
		Mentions:           mentions,
		Hashtags:           hashtags,
		Commands:           commands,
		IsForwarded:        msg.ForwardDate != 0,
		ForwardFromChannel: msg.ForwardFromChat != nil && msg.ForwardFromChat.IsChannel(),
		FileHash:           fileHash(msg),
		SenderFrequency:    h.observeSender(msg.From.ID),
		ReceivedAt:         time.Unix(int64(msg.Date), 0).UTC(),
	}
}

// observeSender фиксирует отправку и возвращает частоту сообщений в минуту.
// Мьютекс покрывает чтение-изменение-запись: сам LRU потокобезопасен, но
// обновление слайса отметок атомарным не является.
func (h *Handler) observeSender(userID int64) float64 {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()

	seen, _ := h.lastSeen.Get(userID)
	kept := append(pruneSeen(seen, now), now)
	h.lastSeen.Add(userID, kept)
	return float64(len(kept))
}

// pruneSeen отбрасывает отметки старше окна частоты.
func pruneSeen(seen []time.Time, now time.Time) []time.Time {
	kept := seen[:0]
	for _, t := range seen {
		if now.Sub(t) <= frequencyWindow {
			kept = append(kept, t)
		}
	}
	return kept
}

// fileHash возвращает стабильный идентификатор вложения для поиска дубликатов.
func fileHash(msg *tgbotapi.Message) string {
	switch {
	case len(msg.Photo) > 0:
		return msg.Photo[len(msg.Photo)-1].FileUniqueID
	case msg.Video != nil:
		return msg.Video.FileUniqueID
	case msg.Document != nil:
		return msg.Document.FileUniqueID
	case msg.Sticker != nil:
		return msg.Sticker.FileUniqueID
	case msg.Voice != nil:
		return msg.Voice.FileUniqueID
	}
	return ""
}

// entityText вырезает текст сущности. Смещения Telegram считает в UTF-16.
func entityText(text string, offset, length int) string {
	units := utf16.Encode([]rune(text))
	if offset < 0 || offset >= len(units) {
		return ""
	}
	end := offset + length
	if end > len(units) {
		end = len(units)
	}
	return strings.TrimSpace(string(utf16.Decode(units[offset:end])))
}
