package features

import (
	"regexp"
	"strings"
	"unicode"

	"tg-moderation-bot/internal/domain"
)

// urlPattern намеренно ловит и ссылки без схемы (bit.ly/xyz).
var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)?[a-z0-9][a-z0-9-]*(?:\.[a-z0-9][a-z0-9-]*)+(?:/[^\s]*)?`)

// Extractor извлекает признаки из входящего сообщения. Чистая функция без
// побочных эффектов: любой вход даёт корректный ContentFeatures.
type Extractor struct{}

// NewExtractor создаёт экстрактор признаков.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract строит ContentFeatures по сообщению. Пустой текст даёт нулевые
// соотношения: деление выполняется только по непустому тексту.
func (e *Extractor) Extract(msg domain.InboundMessage) domain.ContentFeatures {
	f := domain.ContentFeatures{
		MentionCount:       len(msg.Mentions),
		HashtagCount:       len(msg.Hashtags),
		CommandCount:       len(msg.Commands),
		IsForwarded:        msg.IsForwarded,
		ForwardFromChannel: msg.ForwardFromChannel,
		SenderFrequency:    msg.SenderFrequency,
		DuplicateCount:     msg.DuplicateHint,
	}

	text := msg.Text
	runes := []rune(text)
	f.TextLength = len(runes)
	if f.TextLength == 0 {
		return f
	}

	f.WordCount = len(strings.Fields(text))
	f.URLs = urlPattern.FindAllString(text, -1)
	f.URLCount = len(f.URLs)

	var letters, upper, digits, special, emoji int
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		case unicode.IsDigit(r):
			digits++
		case isEmoji(r):
			emoji++
		case !unicode.IsSpace(r):
			special++
		}
	}
	f.EmojiCount = emoji
	if letters > 0 {
		f.CapsRatio = float64(upper) / float64(letters)
	}
	f.DigitRatio = float64(digits) / float64(f.TextLength)
	f.SpecialCharRatio = float64(special) / float64(f.TextLength)

	return f
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // пиктограммы и смайлы
		return true
	case r >= 0x2600 && r <= 0x27BF: // разное и dingbats
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // региональные индикаторы
		return true
	case r == 0x2764 || r == 0xFE0F:
		return true
	}
	return false
}

// DetectContentType определяет тип содержимого по признакам tgbotapi-сообщения.
// Вынесен сюда, чтобы гейтвей и тесты использовали одну и ту же таблицу.
func DetectContentType(hasPhoto, hasVideo, hasDocument, hasSticker, hasVoice bool, text string) domain.ContentType {
	switch {
	case hasPhoto:
		return domain.ContentPhoto
	case hasVideo:
		return domain.ContentVideo
	case hasDocument:
		return domain.ContentDocument
	case hasSticker:
		return domain.ContentSticker
	case hasVoice:
		return domain.ContentVoice
	case strings.TrimSpace(text) != "":
		return domain.ContentText
	}
	return domain.ContentOther
}
